package store

import "errors"

var (
	// ErrCorruptDocument is returned when a stored collection is not valid JSON.
	ErrCorruptDocument = errors.New("store: corrupt document")
	ErrUserNotFound    = errors.New("store: user not found")
)
