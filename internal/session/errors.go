package session

import "errors"

var (
	ErrSessionNotFound = errors.New("session: not found")
	ErrInvalidToken    = errors.New("session: invalid token")
	ErrInvalidRequest  = errors.New("session: invalid request")
)
