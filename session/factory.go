package session

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-generic-dao/metadata"
)

// Factory opens sessions on one database.
type Factory struct {
	db       *bun.DB
	registry *metadata.Registry
	opts     []Option
}

// NewFactory returns a factory whose sessions share registry and opts.
func NewFactory(db *bun.DB, registry *metadata.Registry, opts ...Option) *Factory {
	return &Factory{db: db, registry: registry, opts: opts}
}

// DB returns the underlying database.
func (f *Factory) DB() *bun.DB {
	return f.db
}

// Open returns a session running each statement on its own connection.
func (f *Factory) Open() *Session {
	return New(f.db, f.registry, f.opts...)
}

// Begin starts a transaction and returns a session bound to it.
func (f *Factory) Begin(ctx context.Context) (*Session, error) {
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	s := New(tx, f.registry, f.opts...)
	s.tx = &tx
	return s, nil
}

// RunInTx runs fn with a transactional session in its context. The session
// is committed when fn succeeds and rolled back otherwise.
func (f *Factory) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	s, err := f.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.Rollback()
			panic(p)
		}
	}()

	if err := fn(NewContext(ctx, s)); err != nil {
		if rbErr := s.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := s.Commit(ctx); err != nil {
		_ = s.Rollback()
		return err
	}
	return nil
}
