package dao

import (
	"context"
	"fmt"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-generic-dao/daoerrors"
	"github.com/goliatone/go-generic-dao/internal/translator"
	"github.com/goliatone/go-generic-dao/metadata"
	"github.com/goliatone/go-generic-dao/search"
	"github.com/goliatone/go-generic-dao/session"
)

// RepositoryStore is the part of a go-repository-bun repository the
// override needs. Every repository.Repository[T] satisfies it.
type RepositoryStore[T any] interface {
	ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error)
	CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error)
	CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error)
	UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error)
	DeleteTx(ctx context.Context, tx bun.IDB, record T) error
}

var _ RepositoryStore[any] = repository.Repository[any](nil)

// RepositoryOverride lets a go-repository-bun repository serve the finds,
// writes and entity searches of its record type inside a Dispatcher. T is
// the repository record type, a pointer to the entity struct.
//
// Repository writes are not deferred: they run on the session's database
// handle right away and the written record becomes the tracked instance.
// Save checks for an existing row with CountTx before choosing between
// CreateTx and UpdateTx.
// Searches that project fields are answered by the GeneralDAO.
type RepositoryOverride[T any] struct {
	store   RepositoryStore[T]
	general *General
	entity  *metadata.Entity
	// hasData is false when every column is part of the key
	hasData bool
}

// NewRepositoryOverride adapts store to the capability interfaces. general
// provides search translation and the fallback for projections.
func NewRepositoryOverride[T any](store RepositoryStore[T], general *General) (*RepositoryOverride[T], error) {
	if store == nil {
		return nil, daoerrors.NullArgument("repository")
	}
	if general == nil {
		return nil, daoerrors.NullArgument("general dao")
	}
	e, err := general.Registry().Entity(metadata.TypeOf[T]())
	if err != nil {
		return nil, err
	}
	o := &RepositoryOverride[T]{store: store, general: general, entity: e}
	for _, p := range e.Columns() {
		if !p.PK {
			o.hasData = true
			break
		}
	}
	return o, nil
}

func (o *RepositoryOverride[T]) Find(ctx context.Context, id any) (any, error) {
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, daoerrors.NullArgument("id")
	}
	nid, err := o.entity.NormalizeID(id)
	if err != nil {
		return nil, err
	}

	records, _, err := o.store.ListTx(ctx, sess.DB(), o.byID(nid), func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Limit(1)
	})
	if err != nil {
		return nil, fmt.Errorf("find %s#%v: %w", o.entity.Name, nid, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return sess.Merge(records[0])
}

// Save creates records without an identifier, or whose identifier has no
// row yet, and reports true. Existing rows are updated in full, zero values
// included.
func (o *RepositoryOverride[T]) Save(ctx context.Context, entity any) (bool, error) {
	sess, record, err := o.record(ctx, entity)
	if err != nil {
		return false, err
	}
	if err := sess.Registry().SyncReferences(o.entity, record); err != nil {
		return false, err
	}

	created := o.entity.HasZeroID(record)
	if !created {
		id, err := o.entity.IDOf(record)
		if err != nil {
			return false, err
		}
		n, err := o.store.CountTx(ctx, sess.DB(), o.byID(id))
		if err != nil {
			return false, fmt.Errorf("save %s#%v: %w", o.entity.Name, id, err)
		}
		created = n == 0
	}

	switch {
	case created:
		_, err = o.store.CreateTx(ctx, sess.DB(), record)
	case o.hasData:
		_, err = o.store.UpdateTx(ctx, sess.DB(), record, o.zeroColumns(record))
	}
	if err != nil {
		return false, fmt.Errorf("save %s: %w", o.entity.Name, err)
	}
	if err := sess.Attach(record); err != nil {
		return false, err
	}
	return created, nil
}

// Remove deletes the record and reports whether it existed.
func (o *RepositoryOverride[T]) Remove(ctx context.Context, entity any) (bool, error) {
	sess, record, err := o.record(ctx, entity)
	if err != nil {
		return false, err
	}
	if o.entity.HasZeroID(record) {
		return false, nil
	}
	id, err := o.entity.IDOf(record)
	if err != nil {
		return false, err
	}
	existing, err := o.Find(ctx, id)
	if err != nil || existing == nil {
		return false, err
	}
	if err := o.store.DeleteTx(ctx, sess.DB(), record); err != nil {
		return false, fmt.Errorf("remove %s: %w", o.entity.Name, err)
	}
	sess.Detach(record)
	return true, nil
}

func (o *RepositoryOverride[T]) Search(ctx context.Context, s *search.Search) ([]any, error) {
	res, err := o.list(ctx, s, false)
	if err != nil {
		return nil, err
	}
	return res.Items, nil
}

// SearchAndCount takes the total from the repository's list count.
func (o *RepositoryOverride[T]) SearchAndCount(ctx context.Context, s *search.Search) (*search.Result, error) {
	return o.list(ctx, s, true)
}

func (o *RepositoryOverride[T]) Count(ctx context.Context, s *search.Search) (int, error) {
	q, sess, err := o.general.prepare(ctx, s)
	if err != nil {
		return 0, err
	}
	if q.Mode != search.ResultEntity || s.Distinct {
		return o.general.count(ctx, sess, q)
	}
	n, err := o.store.CountTx(ctx, sess.DB(), criteria(q))
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", o.entity.Name, err)
	}
	return n, nil
}

func (o *RepositoryOverride[T]) list(ctx context.Context, s *search.Search, withTotal bool) (*search.Result, error) {
	q, sess, err := o.general.prepare(ctx, s)
	if err != nil {
		return nil, err
	}
	if q.Mode != search.ResultEntity || s.Distinct {
		if withTotal {
			return o.general.SearchAndCount(ctx, s)
		}
		items, err := o.general.run(ctx, sess, q)
		return &search.Result{Items: items}, err
	}

	records, total, err := o.store.ListTx(ctx, sess.DB(), criteria(q))
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", o.entity.Name, err)
	}
	items := make([]any, len(records))
	for i, r := range records {
		if items[i], err = sess.Merge(r); err != nil {
			return nil, err
		}
	}
	if err := fetch(ctx, sess, q, items); err != nil {
		return nil, err
	}
	return &search.Result{Items: items, TotalCount: total}, nil
}

func (o *RepositoryOverride[T]) record(ctx context.Context, entity any) (*session.Session, T, error) {
	var zero T
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, zero, err
	}
	if _, err := o.entity.Elem(entity); err != nil {
		return nil, zero, err
	}
	record, ok := entity.(T)
	if !ok {
		return nil, zero, daoerrors.InvalidArgument("expected %T, got %T", zero, entity)
	}
	return sess, record, nil
}

func (o *RepositoryOverride[T]) byID(id any) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.? = ?", bun.Ident(o.entity.ID.Column), id)
	}
}

// zeroColumns sets every zero valued column explicitly. Repository updates
// omit zero fields, which would keep stale values and leave nothing to SET
// when all of them are zero.
func (o *RepositoryOverride[T]) zeroColumns(record T) repository.UpdateCriteria {
	return func(q *bun.UpdateQuery) *bun.UpdateQuery {
		elem, err := o.entity.Elem(record)
		if err != nil {
			return q
		}
		for _, p := range o.entity.Columns() {
			if p.PK {
				continue
			}
			field := p.Field(elem)
			switch {
			case metadata.IsNil(field):
				q = q.Value(p.Column, "NULL")
			case field.IsZero():
				q = q.Value(p.Column, "?", field.Interface())
			}
		}
		return q
	}
}

func criteria(q *translator.Query) repository.SelectCriteria {
	return func(sq *bun.SelectQuery) *bun.SelectQuery {
		return q.Criteria(sq)
	}
}
