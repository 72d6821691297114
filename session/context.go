package session

import (
	"context"

	"github.com/goliatone/go-generic-dao/daoerrors"
)

type contextKey struct{}

// NewContext returns a copy of ctx carrying s.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session carried by ctx, or ErrNoSession.
func FromContext(ctx context.Context) (*Session, error) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	if !ok || s == nil {
		return nil, daoerrors.ErrNoSession
	}
	return s, nil
}
