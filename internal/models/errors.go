package models

import "errors"

var (
	// ErrNotFound is returned by stores when a keyed record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned by stores when a create collides with an existing key.
	ErrAlreadyExists = errors.New("already exists")
)
