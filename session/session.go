package session

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-generic-dao/daoerrors"
	"github.com/goliatone/go-generic-dao/metadata"
)

var uuidType = reflect.TypeFor[uuid.UUID]()

// Session is a unit-of-work over a bun database or transaction. It keeps one
// instance per stored row, writes inserts and deletes immediately and
// defers updates to Flush, where only changed entities are written.
//
// A Session is not safe for concurrent use.
type Session struct {
	db       bun.IDB
	tx       *bun.Tx
	registry *metadata.Registry
	logger   *slog.Logger

	entries map[key]*entry
	order   []key
	closed  bool
}

type key struct {
	typ string
	id  any
}

type entry struct {
	entity   *metadata.Entity
	value    any
	snapshot []byte
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New returns a session running its statements on db.
func New(db bun.IDB, registry *metadata.Registry, opts ...Option) *Session {
	s := &Session{
		db:       db,
		registry: registry,
		logger:   slog.Default(),
		entries:  make(map[key]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the handle statements run on: the transaction when one is open.
func (s *Session) DB() bun.IDB {
	return s.db
}

// Registry returns the descriptor registry of the session.
func (s *Session) Registry() *metadata.Registry {
	return s.registry
}

// Closed reports whether the unit-of-work has ended.
func (s *Session) Closed() bool {
	return s.closed
}

func (s *Session) check() error {
	if s.closed {
		return daoerrors.ErrAttachment
	}
	return nil
}

// Find loads the row with id, returning the tracked instance when there is
// one. A missing row gives a nil entity and no error.
func (s *Session) Find(ctx context.Context, typ reflect.Type, id any) (any, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	e, err := s.registry.Entity(typ)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, daoerrors.NullArgument("id")
	}
	nid, err := e.NormalizeID(id)
	if err != nil {
		return nil, err
	}
	if ent, ok := s.entries[key{e.Key, nid}]; ok {
		return ent.value, nil
	}

	v := e.New()
	if err := e.SetID(v, nid); err != nil {
		return nil, err
	}
	if err := s.db.NewSelect().Model(v).WherePK().Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s#%v: %w", e.Name, nid, err)
	}
	return s.merge(e, v)
}

// FindMany loads the rows with ids in one query. The result is aligned with
// ids and holds nil where no row exists.
func (s *Session) FindMany(ctx context.Context, typ reflect.Type, ids ...any) ([]any, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	e, err := s.registry.Entity(typ)
	if err != nil {
		return nil, err
	}

	normalized := make([]any, len(ids))
	var missing []any
	for i, id := range ids {
		if id == nil {
			return nil, daoerrors.NullArgument("id")
		}
		if normalized[i], err = e.NormalizeID(id); err != nil {
			return nil, err
		}
		if _, ok := s.entries[key{e.Key, normalized[i]}]; !ok {
			missing = append(missing, normalized[i])
		}
	}

	if len(missing) > 0 {
		loaded, err := s.selectWhere(ctx, e, e.ID.Column, missing)
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", e.Name, err)
		}
		for _, v := range loaded {
			if _, err := s.merge(e, v); err != nil {
				return nil, err
			}
		}
	}

	out := make([]any, len(ids))
	for i, id := range normalized {
		if ent, ok := s.entries[key{e.Key, id}]; ok {
			out[i] = ent.value
		}
	}
	return out, nil
}

// selectWhere loads the rows whose column holds one of values. Loaded rows
// are not merged.
func (s *Session) selectWhere(ctx context.Context, e *metadata.Entity, column string, values []any) ([]any, error) {
	slice := reflect.New(reflect.SliceOf(reflect.PointerTo(e.Type)))
	err := s.db.NewSelect().
		Model(slice.Interface()).
		Where("?TableAlias.? IN (?)", bun.Ident(column), bun.In(values)).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	rows := slice.Elem()
	out := make([]any, rows.Len())
	for i := range out {
		out[i] = rows.Index(i).Interface()
	}
	return out, nil
}

// Merge returns the tracked instance for the row v was loaded from, tracking
// v when the row is not known yet.
func (s *Session) Merge(v any) (any, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	e, err := s.registry.EntityOf(v)
	if err != nil {
		return nil, err
	}
	return s.merge(e, v)
}

func (s *Session) merge(e *metadata.Entity, v any) (any, error) {
	k, err := s.keyOf(e, v)
	if err != nil {
		return nil, err
	}
	if ent, ok := s.entries[k]; ok {
		return ent.value, nil
	}
	snap, err := snapshot(e, v)
	if err != nil {
		return nil, err
	}
	s.track(k, &entry{entity: e, value: v, snapshot: snap})
	return v, nil
}

func (s *Session) track(k key, ent *entry) {
	if _, ok := s.entries[k]; !ok {
		s.order = append(s.order, k)
	}
	s.entries[k] = ent
}

func (s *Session) evict(k key) {
	if _, ok := s.entries[k]; !ok {
		return
	}
	delete(s.entries, k)
	for i, o := range s.order {
		if o == k {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Session) keyOf(e *metadata.Entity, v any) (key, error) {
	id, err := e.IDOf(v)
	if err != nil {
		return key{}, err
	}
	nid, err := e.NormalizeID(id)
	if err != nil {
		return key{}, err
	}
	return key{e.Key, nid}, nil
}

// Save inserts v when it has no identifier or its row does not exist, and
// reports true. Otherwise v becomes the tracked instance of its row, its
// changes are written on the next flush, and Save reports false.
func (s *Session) Save(ctx context.Context, v any) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	e, err := s.registry.EntityOf(v)
	if err != nil {
		return false, err
	}
	if _, err := e.Elem(v); err != nil {
		return false, err
	}
	if err := s.registry.SyncReferences(e, v); err != nil {
		return false, err
	}

	if e.HasZeroID(v) {
		return true, s.insert(ctx, e, v)
	}

	k, err := s.keyOf(e, v)
	if err != nil {
		return false, err
	}
	if ent, ok := s.entries[k]; ok {
		// a detached copy replaces the tracked instance; the snapshot
		// still holds the stored state
		ent.value = v
		return false, nil
	}

	stored := e.New()
	if err := e.SetID(stored, k.id); err != nil {
		return false, err
	}
	err = s.db.NewSelect().Model(stored).WherePK().Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return true, s.insert(ctx, e, v)
	case err != nil:
		return false, fmt.Errorf("save %s#%v: %w", e.Name, k.id, err)
	}

	snap, err := snapshot(e, stored)
	if err != nil {
		return false, err
	}
	s.track(k, &entry{entity: e, value: v, snapshot: snap})
	return false, nil
}

func (s *Session) insert(ctx context.Context, e *metadata.Entity, v any) error {
	if e.HasZeroID(v) && e.ID.BaseType() == uuidType {
		if err := e.SetID(v, uuid.New()); err != nil {
			return err
		}
	}
	if _, err := s.db.NewInsert().Model(v).Exec(ctx); err != nil {
		return fmt.Errorf("insert %s: %w", e.Name, err)
	}
	k, err := s.keyOf(e, v)
	if err != nil {
		return err
	}
	snap, err := snapshot(e, v)
	if err != nil {
		return err
	}
	s.track(k, &entry{entity: e, value: v, snapshot: snap})
	s.logger.Debug("entity inserted", "entity", e.Name, "id", k.id)
	return nil
}

// Remove deletes the row of v and stops tracking it. It reports whether a
// row was deleted.
func (s *Session) Remove(ctx context.Context, v any) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	e, err := s.registry.EntityOf(v)
	if err != nil {
		return false, err
	}
	if _, err := e.Elem(v); err != nil {
		return false, err
	}
	if e.HasZeroID(v) {
		return false, nil
	}
	id, err := e.IDOf(v)
	if err != nil {
		return false, err
	}
	return s.RemoveByID(ctx, e.Type, id)
}

// RemoveByID deletes the row with id and stops tracking it. It reports
// whether a row was deleted.
func (s *Session) RemoveByID(ctx context.Context, typ reflect.Type, id any) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	e, err := s.registry.Entity(typ)
	if err != nil {
		return false, err
	}
	if id == nil {
		return false, daoerrors.NullArgument("id")
	}
	nid, err := e.NormalizeID(id)
	if err != nil {
		return false, err
	}

	target := e.New()
	if err := e.SetID(target, nid); err != nil {
		return false, err
	}
	res, err := s.db.NewDelete().Model(target).WherePK().Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("remove %s#%v: %w", e.Name, nid, err)
	}
	s.evict(key{e.Key, nid})

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove %s#%v: %w", e.Name, nid, err)
	}
	s.logger.Debug("entity removed", "entity", e.Name, "id", nid, "deleted", n > 0)
	return n > 0, nil
}

// Refresh reloads v from its row, discarding unsaved changes, and makes v
// the tracked instance of that row.
func (s *Session) Refresh(ctx context.Context, v any) error {
	if err := s.check(); err != nil {
		return err
	}
	e, err := s.registry.EntityOf(v)
	if err != nil {
		return err
	}
	if _, err := e.Elem(v); err != nil {
		return err
	}
	k, err := s.keyOf(e, v)
	if err != nil {
		return err
	}
	if err := s.db.NewSelect().Model(v).WherePK().Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.evict(k)
			return &daoerrors.NotFoundError{Entity: e.Name, ID: k.id}
		}
		return fmt.Errorf("refresh %s#%v: %w", e.Name, k.id, err)
	}
	snap, err := snapshot(e, v)
	if err != nil {
		return err
	}
	s.track(k, &entry{entity: e, value: v, snapshot: snap})
	return nil
}

// IsAttached reports whether v itself is the tracked instance of its row.
func (s *Session) IsAttached(v any) bool {
	if s.closed {
		return false
	}
	e, err := s.registry.EntityOf(v)
	if err != nil || e.HasZeroID(v) {
		return false
	}
	k, err := s.keyOf(e, v)
	if err != nil {
		return false
	}
	ent, ok := s.entries[k]
	return ok && ent.value == v
}

// Flush writes every tracked entity whose columns changed since it was
// loaded or last flushed.
func (s *Session) Flush(ctx context.Context) error {
	if err := s.check(); err != nil {
		return err
	}
	updated := 0
	for _, k := range s.order {
		ent := s.entries[k]
		if err := s.registry.SyncReferences(ent.entity, ent.value); err != nil {
			return err
		}
		snap, err := snapshot(ent.entity, ent.value)
		if err != nil {
			return err
		}
		if bytes.Equal(snap, ent.snapshot) {
			continue
		}
		if _, err := s.db.NewUpdate().Model(ent.value).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("flush %s#%v: %w", ent.entity.Name, k.id, err)
		}
		ent.snapshot = snap
		updated++
	}
	s.logger.Debug("session flushed", "tracked", len(s.order), "updated", updated)
	return nil
}

// FlushType flushes the tracked entities of typ only.
func (s *Session) FlushType(ctx context.Context, typ reflect.Type) error {
	if err := s.check(); err != nil {
		return err
	}
	e, err := s.registry.Entity(typ)
	if err != nil {
		return err
	}
	for _, k := range s.order {
		ent := s.entries[k]
		if ent.entity != e {
			continue
		}
		if err := s.registry.SyncReferences(e, ent.value); err != nil {
			return err
		}
		snap, err := snapshot(e, ent.value)
		if err != nil {
			return err
		}
		if bytes.Equal(snap, ent.snapshot) {
			continue
		}
		if _, err := s.db.NewUpdate().Model(ent.value).WherePK().Exec(ctx); err != nil {
			return fmt.Errorf("flush %s#%v: %w", e.Name, k.id, err)
		}
		ent.snapshot = snap
	}
	return nil
}

// Dirty reports whether any tracked entity has unflushed changes.
func (s *Session) Dirty() bool {
	for _, k := range s.order {
		ent := s.entries[k]
		snap, err := snapshot(ent.entity, ent.value)
		if err != nil || !bytes.Equal(snap, ent.snapshot) {
			return true
		}
	}
	return false
}

// Attach records v as the clean, tracked instance of its row. It is meant
// for entities written outside the session, such as by a repository.
func (s *Session) Attach(v any) error {
	if err := s.check(); err != nil {
		return err
	}
	e, err := s.registry.EntityOf(v)
	if err != nil {
		return err
	}
	if _, err := e.Elem(v); err != nil {
		return err
	}
	if e.HasZeroID(v) {
		return daoerrors.InvalidArgument("cannot attach %s without an identifier", e.Name)
	}
	k, err := s.keyOf(e, v)
	if err != nil {
		return err
	}
	snap, err := snapshot(e, v)
	if err != nil {
		return err
	}
	s.track(k, &entry{entity: e, value: v, snapshot: snap})
	return nil
}

// Detach stops tracking the row of v. Pending changes to it are dropped.
func (s *Session) Detach(v any) {
	e, err := s.registry.EntityOf(v)
	if err != nil || e.HasZeroID(v) {
		return
	}
	if k, err := s.keyOf(e, v); err == nil {
		s.evict(k)
	}
}

// Clear stops tracking every entity. Unflushed changes are lost.
func (s *Session) Clear() {
	s.entries = make(map[key]*entry)
	s.order = nil
}

// Commit flushes and commits the transaction, ending the unit-of-work.
// Without a transaction it only flushes.
func (s *Session) Commit(ctx context.Context) error {
	if err := s.Flush(ctx); err != nil {
		return err
	}
	if s.tx != nil {
		if err := s.tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		s.tx = nil
		s.Close()
	}
	return nil
}

// Rollback abandons the transaction and ends the unit-of-work.
func (s *Session) Rollback() error {
	var err error
	if s.tx != nil {
		err = s.tx.Rollback()
		s.tx = nil
	}
	s.Close()
	return err
}

// Close ends the unit-of-work. An open transaction is rolled back and
// references created by the session can no longer be resolved.
func (s *Session) Close() {
	if s.tx != nil {
		_ = s.tx.Rollback()
		s.tx = nil
	}
	s.closed = true
	s.Clear()
}

func snapshot(e *metadata.Entity, v any) ([]byte, error) {
	b, err := msgpack.Marshal(e.ColumnValues(v))
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", e.Name, err)
	}
	return b, nil
}
