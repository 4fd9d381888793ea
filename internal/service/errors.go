package service

import (
	"errors"

	"github.com/atinyakov/GTDKeeper/internal/models"
)

// Outcomes surfaced to callers. Anything else returned by a service is a
// storage failure.
var (
	ErrMissingInput       = errors.New("missing input")
	ErrUnknownAccount     = errors.New("account does not exist")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrResetNotPending    = errors.New("password reset not pending")
	ErrCannotDeleteAdmin  = errors.New("cannot delete admin account")
	ErrForbidden          = errors.New("admin access required")
	ErrInvalidData        = errors.New("invalid data set")

	ErrNotFound      = models.ErrNotFound
	ErrAlreadyExists = models.ErrAlreadyExists
	ErrInvalidStatus = models.ErrInvalidStatus
)
