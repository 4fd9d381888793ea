// Package repository provides persistence implementations for accounts,
// sessions and task data, backed either by flat JSON files or PostgreSQL.
package repository

import (
	"context"
	"maps"
	"path/filepath"
	"sync"

	"github.com/atinyakov/GTDKeeper/internal/models"
)

const (
	usersFile    = "users.json"
	sessionsFile = "sessions.json"
)

// FileCredentialRepository keeps every account in a single users.json,
// keyed by username.
type FileCredentialRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileCredentialRepository stores accounts under dir.
func NewFileCredentialRepository(dir string) *FileCredentialRepository {
	return &FileCredentialRepository{path: filepath.Join(dir, usersFile)}
}

func (r *FileCredentialRepository) load() (map[string]models.Account, error) {
	users := map[string]models.Account{}
	if _, err := readJSON(r.path, &users); err != nil {
		return nil, err
	}
	for name, acc := range users {
		acc.Username = name
		users[name] = acc
	}
	return users, nil
}

// GetAccount returns the account, or nil if it does not exist.
func (r *FileCredentialRepository) GetAccount(_ context.Context, username string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}
	acc, ok := users[username]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

// ListAccounts returns every account in no particular order.
func (r *FileCredentialRepository) ListAccounts(_ context.Context) ([]models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.Account, 0, len(users))
	for acc := range maps.Values(users) {
		out = append(out, acc)
	}
	return out, nil
}

// CreateAccount adds acc, failing with models.ErrAlreadyExists on collision.
func (r *FileCredentialRepository) CreateAccount(_ context.Context, acc models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := users[acc.Username]; ok {
		return models.ErrAlreadyExists
	}
	users[acc.Username] = acc
	return writeJSON(r.path, users)
}

// UpdateAccount applies fn to the stored account and saves it.
func (r *FileCredentialRepository) UpdateAccount(_ context.Context, username string, fn func(*models.Account) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return err
	}
	acc, ok := users[username]
	if !ok {
		return models.ErrNotFound
	}
	if err := fn(&acc); err != nil {
		return err
	}
	acc.Username = username
	users[username] = acc
	return writeJSON(r.path, users)
}

// DeleteAccount removes the account, failing with models.ErrNotFound if absent.
func (r *FileCredentialRepository) DeleteAccount(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := users[username]; !ok {
		return models.ErrNotFound
	}
	delete(users, username)
	return writeJSON(r.path, users)
}

// FileSessionRepository keeps the token -> username map in sessions.json.
type FileSessionRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileSessionRepository stores sessions under dir.
func NewFileSessionRepository(dir string) *FileSessionRepository {
	return &FileSessionRepository{path: filepath.Join(dir, sessionsFile)}
}

func (r *FileSessionRepository) load() (map[string]string, error) {
	sessions := map[string]string{}
	if _, err := readJSON(r.path, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CreateSession records s.
func (r *FileSessionRepository) CreateSession(_ context.Context, s models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load()
	if err != nil {
		return err
	}
	sessions[s.Token] = s.Username
	return writeJSON(r.path, sessions)
}

// GetSession returns the session for token, or nil if unknown.
func (r *FileSessionRepository) GetSession(_ context.Context, token string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load()
	if err != nil {
		return nil, err
	}
	username, ok := sessions[token]
	if !ok {
		return nil, nil
	}
	return &models.Session{Token: token, Username: username}, nil
}

// DeleteSession removes token if present.
func (r *FileSessionRepository) DeleteSession(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load()
	if err != nil {
		return err
	}
	if _, ok := sessions[token]; !ok {
		return nil
	}
	delete(sessions, token)
	return writeJSON(r.path, sessions)
}

// DeleteUserSessions removes every token owned by username.
func (r *FileSessionRepository) DeleteUserSessions(_ context.Context, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions, err := r.load()
	if err != nil {
		return err
	}
	n := len(sessions)
	maps.DeleteFunc(sessions, func(_, owner string) bool { return owner == username })
	if len(sessions) == n {
		return nil
	}
	return writeJSON(r.path, sessions)
}
