// Package models defines the core data structures for accounts, sessions,
// projects and items.
package models

import "time"

// AdminUsername is the account that always exists and can never be deleted.
const AdminUsername = "admin"

// Account represents a login with its credential state.
type Account struct {
	// Username is the unique login name. The legacy users.json file keys
	// records by username, so it is not part of the record itself.
	Username string `json:"-"`
	// PasswordHash is the stored "salt:hexhash" string, nil while a reset is pending.
	PasswordHash *string `json:"password"`
	// IsAdmin grants access to account management.
	IsAdmin bool `json:"isAdmin"`
	// NeedsPasswordReset means the next login must go through password setup.
	NeedsPasswordReset bool `json:"needsPasswordReset,omitempty"`
}

// AccountSummary is the public view of an account returned by admin listings.
type AccountSummary struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"isAdmin"`
}

// Session binds an opaque token to a username.
type Session struct {
	// Token is the random identifier carried in the session cookie.
	Token string `json:"token"`
	// Username is the owner of the session.
	Username string `json:"username"`
	// CreatedAt is when the session was minted.
	CreatedAt time.Time `json:"createdAt"`
}
