package session

import (
	"context"
	"errors"

	"github.com/wolfman30/lumeskin-platform/internal/store"
)

type ctxKey string

const sessionKey ctxKey = "lumeskin.session"

func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// FromContext extracts the session placed by the auth middleware.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(sessionKey).(*Session)
	return sess, ok && sess != nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrUserNotFound)
}
