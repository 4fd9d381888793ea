package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/atinyakov/GTDKeeper/internal/models"
)

// PostgresCredentialRepository stores accounts in the users table.
type PostgresCredentialRepository struct {
	// DB is the database handle for executing queries.
	DB *sql.DB
}

// NewPostgresCredentialRepository creates a repository over db.
// db must be a valid *sql.DB connected to a PostgreSQL instance.
func NewPostgresCredentialRepository(db *sql.DB) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (models.Account, error) {
	var (
		acc  models.Account
		hash sql.NullString
	)
	if err := row.Scan(&acc.Username, &hash, &acc.IsAdmin, &acc.NeedsPasswordReset); err != nil {
		return models.Account{}, err
	}
	if hash.Valid {
		acc.PasswordHash = &hash.String
	}
	return acc, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// GetAccount returns the account with the given login, or nil if there is none.
func (r *PostgresCredentialRepository) GetAccount(ctx context.Context, username string) (*models.Account, error) {
	acc, err := scanAccount(r.DB.QueryRowContext(ctx, `
		SELECT login, password_hash, is_admin, needs_password_reset FROM users WHERE login = $1
	`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetAccount: %w", err)
	}
	return &acc, nil
}

// ListAccounts returns all accounts ordered by login.
func (r *PostgresCredentialRepository) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT login, password_hash, is_admin, needs_password_reset FROM users ORDER BY login
	`)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// CreateAccount inserts acc. The ON CONFLICT DO NOTHING clause turns a
// duplicate login into zero affected rows, reported as models.ErrAlreadyExists.
func (r *PostgresCredentialRepository) CreateAccount(ctx context.Context, acc models.Account) error {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO users (login, password_hash, is_admin, needs_password_reset)
		VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING
	`, acc.Username, nullString(acc.PasswordHash), acc.IsAdmin, acc.NeedsPasswordReset)
	if err != nil {
		return fmt.Errorf("CreateAccount: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("CreateAccount: %w", err)
	}
	if n == 0 {
		return models.ErrAlreadyExists
	}
	return nil
}

// UpdateAccount locks the account row, applies fn and writes it back in one transaction.
func (r *PostgresCredentialRepository) UpdateAccount(ctx context.Context, username string, fn func(*models.Account) error) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	acc, err := scanAccount(tx.QueryRowContext(ctx, `
		SELECT login, password_hash, is_admin, needs_password_reset FROM users WHERE login = $1 FOR UPDATE
	`, username))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("select account: %w", err)
	}

	if err := fn(&acc); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET password_hash = $2, is_admin = $3, needs_password_reset = $4 WHERE login = $1
	`, username, nullString(acc.PasswordHash), acc.IsAdmin, acc.NeedsPasswordReset)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteAccount removes the account; sessions and data rows cascade.
func (r *PostgresCredentialRepository) DeleteAccount(ctx context.Context, username string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM users WHERE login = $1`, username)
	if err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("DeleteAccount: %w", err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// PostgresSessionRepository stores session tokens in the sessions table.
type PostgresSessionRepository struct {
	DB *sql.DB
}

// NewPostgresSessionRepository creates a repository over db.
func NewPostgresSessionRepository(db *sql.DB) *PostgresSessionRepository {
	return &PostgresSessionRepository{DB: db}
}

// CreateSession inserts s.
func (r *PostgresSessionRepository) CreateSession(ctx context.Context, s models.Session) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO sessions (token, user_login, created_at) VALUES ($1, $2, $3)`,
		s.Token, s.Username, s.CreatedAt,
	)
	return err
}

// GetSession returns the session for token, or nil if unknown.
func (r *PostgresSessionRepository) GetSession(ctx context.Context, token string) (*models.Session, error) {
	var s models.Session
	err := r.DB.QueryRowContext(ctx,
		`SELECT token, user_login, created_at FROM sessions WHERE token = $1`, token,
	).Scan(&s.Token, &s.Username, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetSession: %w", err)
	}
	return &s, nil
}

// DeleteSession removes token if present.
func (r *PostgresSessionRepository) DeleteSession(ctx context.Context, token string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	return err
}

// DeleteUserSessions removes all sessions of username.
func (r *PostgresSessionRepository) DeleteUserSessions(ctx context.Context, username string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM sessions WHERE user_login = $1`, username)
	return err
}
