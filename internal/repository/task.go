package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/atinyakov/GTDKeeper/internal/models"
)

// emptyAccountData seeds a row so it can be locked before first use.
const emptyAccountData = `{"projects":[],"items":[],"nextProjectId":1,"nextItemId":1}`

// PostgresTaskRepository stores each account's data set as one JSONB row in
// account_data. Updates lock the row for the duration of the transaction.
type PostgresTaskRepository struct {
	DB *sql.DB
}

// NewPostgresTaskRepository creates a repository over db.
func NewPostgresTaskRepository(db *sql.DB) *PostgresTaskRepository {
	return &PostgresTaskRepository{DB: db}
}

func decodeAccountData(raw []byte) (*models.AccountData, error) {
	d := models.NewAccountData()
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decode account data: %w", err)
	}
	d.Normalize()
	return d, nil
}

// Load returns the stored data set, or an empty one if the account has none.
func (r *PostgresTaskRepository) Load(ctx context.Context, username string) (*models.AccountData, error) {
	var raw []byte
	err := r.DB.QueryRowContext(ctx,
		`SELECT data FROM account_data WHERE user_login = $1`, username,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewAccountData(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return decodeAccountData(raw)
}

// Update applies fn to the locked data set and writes it back.
func (r *PostgresTaskRepository) Update(ctx context.Context, username string, fn func(*models.AccountData) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO account_data (user_login, data) VALUES ($1, $2) ON CONFLICT (user_login) DO NOTHING
	`, username, emptyAccountData)
	if err != nil {
		return fmt.Errorf("ensure row: %w", err)
	}

	var raw []byte
	err = tx.QueryRowContext(ctx,
		`SELECT data FROM account_data WHERE user_login = $1 FOR UPDATE`, username,
	).Scan(&raw)
	if err != nil {
		return fmt.Errorf("select data: %w", err)
	}
	d, err := decodeAccountData(raw)
	if err != nil {
		return err
	}

	if err := fn(d); err != nil {
		return err
	}

	out, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode account data: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE account_data SET data = $2 WHERE user_login = $1`, username, out,
	); err != nil {
		return fmt.Errorf("update data: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes the account's data row.
func (r *PostgresTaskRepository) Delete(ctx context.Context, username string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM account_data WHERE user_login = $1`, username)
	return err
}
