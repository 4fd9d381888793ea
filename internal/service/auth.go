// Package service provides authentication and task business logic,
// delegating persistence to repository interfaces.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atinyakov/GTDKeeper/internal/models"
	"github.com/atinyakov/GTDKeeper/internal/passhash"
)

// CredentialRepository defines the persistence operations for account records.
type CredentialRepository interface {
	// GetAccount returns the account, or nil if it does not exist.
	GetAccount(ctx context.Context, username string) (*models.Account, error)
	// ListAccounts returns every account.
	ListAccounts(ctx context.Context) ([]models.Account, error)
	// CreateAccount stores a new account, failing with models.ErrAlreadyExists on collision.
	CreateAccount(ctx context.Context, acc models.Account) error
	// UpdateAccount applies fn to the stored account atomically and persists
	// the result. Returns models.ErrNotFound if the account does not exist;
	// an error from fn aborts the update and is returned as is.
	UpdateAccount(ctx context.Context, username string, fn func(*models.Account) error) error
	// DeleteAccount removes the account, failing with models.ErrNotFound if absent.
	DeleteAccount(ctx context.Context, username string) error
}

// SessionRepository defines the persistence operations for session tokens.
type SessionRepository interface {
	// CreateSession stores a new session.
	CreateSession(ctx context.Context, s models.Session) error
	// GetSession returns the session for token, or nil if unknown.
	GetSession(ctx context.Context, token string) (*models.Session, error)
	// DeleteSession removes a session; unknown tokens are not an error.
	DeleteSession(ctx context.Context, token string) error
	// DeleteUserSessions removes every session owned by username.
	DeleteUserSessions(ctx context.Context, username string) error
}

// AccountDataRemover drops an account's task data.
type AccountDataRemover interface {
	Delete(ctx context.Context, username string) error
}

// LoginResult describes a successful login or password setup.
type LoginResult struct {
	// Token is the new session token; empty when NeedsSetup is set.
	Token    string
	Username string
	IsAdmin  bool
	// NeedsSetup means the account must choose a password before a session is issued.
	NeedsSetup bool
}

// AuthService implements login, sessions and account administration.
type AuthService struct {
	creds    CredentialRepository
	sessions SessionRepository
	data     AccountDataRemover
	log      *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs an AuthService over the given stores.
// A nil logger disables logging.
func NewAuthService(creds CredentialRepository, sessions SessionRepository, data AccountDataRemover, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		creds:    creds,
		sessions: sessions,
		data:     data,
		log:      log,
		now:      time.Now,
	}
}

// Init seeds the admin account with adminPassword if it does not exist yet.
func (s *AuthService) Init(ctx context.Context, adminPassword string) error {
	acc, err := s.creds.GetAccount(ctx, models.AdminUsername)
	if err != nil {
		return fmt.Errorf("load admin account: %w", err)
	}
	if acc != nil {
		return nil
	}

	hash, err := passhash.Hash(adminPassword)
	if err != nil {
		return err
	}
	err = s.creds.CreateAccount(ctx, models.Account{
		Username:     models.AdminUsername,
		PasswordHash: &hash,
		IsAdmin:      true,
	})
	if err != nil && !errors.Is(err, models.ErrAlreadyExists) {
		return fmt.Errorf("seed admin account: %w", err)
	}
	s.log.Info("seeded default admin account")
	return nil
}

// Login checks credentials and opens a session.
//
// An account awaiting a password reset only accepts an empty password, in
// which case the result has NeedsSetup set and no session is created.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return LoginResult{}, ErrMissingInput
	}

	acc, err := s.creds.GetAccount(ctx, username)
	if err != nil {
		return LoginResult{}, fmt.Errorf("load account: %w", err)
	}
	if acc == nil {
		return LoginResult{}, ErrUnknownAccount
	}

	if acc.NeedsPasswordReset {
		if password != "" {
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{Username: username, IsAdmin: acc.IsAdmin, NeedsSetup: true}, nil
	}

	if password == "" {
		return LoginResult{}, ErrMissingInput
	}
	if acc.PasswordHash == nil || !passhash.Verify(password, *acc.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}

	return s.openSession(ctx, username, acc.IsAdmin)
}

// SetPassword completes a pending reset and signs the account in.
func (s *AuthService) SetPassword(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return LoginResult{}, ErrMissingInput
	}

	hash, err := passhash.Hash(password)
	if err != nil {
		return LoginResult{}, err
	}

	var isAdmin bool
	err = s.creds.UpdateAccount(ctx, username, func(acc *models.Account) error {
		if !acc.NeedsPasswordReset {
			return ErrResetNotPending
		}
		acc.PasswordHash = &hash
		acc.NeedsPasswordReset = false
		isAdmin = acc.IsAdmin
		return nil
	})
	switch {
	case errors.Is(err, ErrResetNotPending), errors.Is(err, models.ErrNotFound):
		return LoginResult{}, err
	case err != nil:
		return LoginResult{}, fmt.Errorf("update account: %w", err)
	}

	s.log.Info("password set", zap.String("user", username))
	return s.openSession(ctx, username, isAdmin)
}

// Logout revokes the session. Unknown or empty tokens are ignored.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.DeleteSession(ctx, token)
}

// ResolveSession returns the username owning token.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (string, bool, error) {
	if token == "" {
		return "", false, nil
	}
	sess, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		return "", false, err
	}
	if sess == nil {
		return "", false, nil
	}
	return sess.Username, true, nil
}

// IsAdmin reports whether username exists and is an admin.
func (s *AuthService) IsAdmin(ctx context.Context, username string) (bool, error) {
	acc, err := s.creds.GetAccount(ctx, username)
	if err != nil {
		return false, err
	}
	return acc != nil && acc.IsAdmin, nil
}

// CreateAccount provisions an invite-style account with no password; the
// new user sets one on first login.
func (s *AuthService) CreateAccount(ctx context.Context, caller, username string) error {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrMissingInput
	}

	err := s.creds.CreateAccount(ctx, models.Account{
		Username:           username,
		NeedsPasswordReset: true,
	})
	if err != nil {
		return err
	}
	s.log.Info("account created", zap.String("user", username), zap.String("by", caller))
	return nil
}

// DeleteAccount removes a non-admin account together with its data and sessions.
func (s *AuthService) DeleteAccount(ctx context.Context, caller, username string) error {
	username = strings.TrimSpace(username)
	if username == models.AdminUsername {
		return ErrCannotDeleteAdmin
	}
	if err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}
	if username == "" {
		return ErrMissingInput
	}

	if err := s.creds.DeleteAccount(ctx, username); err != nil {
		return err
	}
	// sessions go first so no request can write data after it is removed
	if err := s.sessions.DeleteUserSessions(ctx, username); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	if err := s.data.Delete(ctx, username); err != nil {
		return fmt.Errorf("delete account data: %w", err)
	}
	s.log.Info("account deleted", zap.String("user", username), zap.String("by", caller))
	return nil
}

// ResetPassword clears the account's password so the next login goes
// through setup. Existing sessions stay valid.
func (s *AuthService) ResetPassword(ctx context.Context, caller, username string) error {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return err
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrMissingInput
	}

	err := s.creds.UpdateAccount(ctx, username, func(acc *models.Account) error {
		acc.PasswordHash = nil
		acc.NeedsPasswordReset = true
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("password reset", zap.String("user", username), zap.String("by", caller))
	return nil
}

// ListAccounts returns every account sorted by username.
func (s *AuthService) ListAccounts(ctx context.Context, caller string) ([]models.AccountSummary, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return nil, err
	}
	accounts, err := s.creds.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.AccountSummary, 0, len(accounts))
	for _, acc := range accounts {
		out = append(out, models.AccountSummary{Username: acc.Username, IsAdmin: acc.IsAdmin})
	}
	slices.SortFunc(out, func(a, b models.AccountSummary) int {
		return strings.Compare(a.Username, b.Username)
	})
	return out, nil
}

func (s *AuthService) requireAdmin(ctx context.Context, caller string) error {
	ok, err := s.IsAdmin(ctx, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (s *AuthService) openSession(ctx context.Context, username string, isAdmin bool) (LoginResult, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return LoginResult{}, fmt.Errorf("generate session token: %w", err)
	}
	sess := models.Session{Token: id.String(), Username: username, CreatedAt: s.now()}
	if err := s.sessions.CreateSession(ctx, sess); err != nil {
		return LoginResult{}, fmt.Errorf("create session: %w", err)
	}
	return LoginResult{Token: sess.Token, Username: username, IsAdmin: isAdmin}, nil
}
