package dao

import (
	"context"
	"reflect"

	"github.com/goliatone/go-generic-dao/daoerrors"
	"github.com/goliatone/go-generic-dao/metadata"
	"github.com/goliatone/go-generic-dao/search"
	"github.com/goliatone/go-generic-dao/session"
)

// GenericDAO is the typed DAO of one entity type T with identifier type ID.
// Searches without a type search T; a search over another type is rejected.
type GenericDAO[T any, ID comparable] interface {
	Find(ctx context.Context, id ID) (*T, error)
	FindMany(ctx context.Context, ids ...ID) ([]*T, error)
	FindAll(ctx context.Context) ([]*T, error)
	Save(ctx context.Context, entity *T) (bool, error)
	SaveMany(ctx context.Context, entities ...*T) ([]bool, error)
	Remove(ctx context.Context, entity *T) (bool, error)
	RemoveMany(ctx context.Context, entities ...*T) ([]bool, error)
	RemoveByID(ctx context.Context, id ID) (bool, error)
	RemoveByIDs(ctx context.Context, ids ...ID) ([]bool, error)
	Search(ctx context.Context, s *search.Search) ([]any, error)
	Count(ctx context.Context, s *search.Search) (int, error)
	SearchAndCount(ctx context.Context, s *search.Search) (*search.Result, error)
	SearchUnique(ctx context.Context, s *search.Search) (any, error)
	GetReference(ctx context.Context, id ID) (*session.Reference, error)
	GetReferences(ctx context.Context, ids ...ID) ([]*session.Reference, error)
	Refresh(ctx context.Context, entities ...*T) error
	IsAttached(ctx context.Context, entity *T) bool
	Flush(ctx context.Context) error
	FilterFromExample(example *T, opts *search.ExampleOptions) (*search.Filter, error)
}

var _ GenericDAO[struct{}, int] = (*Generic[struct{}, int])(nil)

// Generic implements GenericDAO on top of a GeneralDAO.
type Generic[T any, ID comparable] struct {
	dao GeneralDAO
	typ reflect.Type
}

// NewGeneric returns the typed DAO of T running on dao.
func NewGeneric[T any, ID comparable](dao GeneralDAO) *Generic[T, ID] {
	return &Generic[T, ID]{dao: dao, typ: metadata.TypeOf[T]()}
}

// Type returns the entity type of the DAO.
func (g *Generic[T, ID]) Type() reflect.Type {
	return g.typ
}

func (g *Generic[T, ID]) Find(ctx context.Context, id ID) (*T, error) {
	return Find[T](ctx, g.dao, id)
}

func (g *Generic[T, ID]) FindMany(ctx context.Context, ids ...ID) ([]*T, error) {
	return FindMany[T](ctx, g.dao, anys(ids)...)
}

func (g *Generic[T, ID]) FindAll(ctx context.Context) ([]*T, error) {
	return FindAll[T](ctx, g.dao)
}

func (g *Generic[T, ID]) Save(ctx context.Context, entity *T) (bool, error) {
	return g.dao.Save(ctx, entity)
}

func (g *Generic[T, ID]) SaveMany(ctx context.Context, entities ...*T) ([]bool, error) {
	return g.dao.SaveMany(ctx, anys(entities)...)
}

func (g *Generic[T, ID]) Remove(ctx context.Context, entity *T) (bool, error) {
	return g.dao.Remove(ctx, entity)
}

func (g *Generic[T, ID]) RemoveMany(ctx context.Context, entities ...*T) ([]bool, error) {
	return g.dao.RemoveMany(ctx, anys(entities)...)
}

func (g *Generic[T, ID]) RemoveByID(ctx context.Context, id ID) (bool, error) {
	return g.dao.RemoveByID(ctx, g.typ, id)
}

func (g *Generic[T, ID]) RemoveByIDs(ctx context.Context, ids ...ID) ([]bool, error) {
	return g.dao.RemoveByIDs(ctx, g.typ, anys(ids)...)
}

func (g *Generic[T, ID]) Search(ctx context.Context, s *search.Search) ([]any, error) {
	s, err := g.own(s)
	if err != nil {
		return nil, err
	}
	return g.dao.Search(ctx, s)
}

func (g *Generic[T, ID]) Count(ctx context.Context, s *search.Search) (int, error) {
	s, err := g.own(s)
	if err != nil {
		return 0, err
	}
	return g.dao.Count(ctx, s)
}

func (g *Generic[T, ID]) SearchAndCount(ctx context.Context, s *search.Search) (*search.Result, error) {
	s, err := g.own(s)
	if err != nil {
		return nil, err
	}
	return g.dao.SearchAndCount(ctx, s)
}

func (g *Generic[T, ID]) SearchUnique(ctx context.Context, s *search.Search) (any, error) {
	s, err := g.own(s)
	if err != nil {
		return nil, err
	}
	return g.dao.SearchUnique(ctx, s)
}

func (g *Generic[T, ID]) GetReference(ctx context.Context, id ID) (*session.Reference, error) {
	return g.dao.GetReference(ctx, g.typ, id)
}

func (g *Generic[T, ID]) GetReferences(ctx context.Context, ids ...ID) ([]*session.Reference, error) {
	return g.dao.GetReferences(ctx, g.typ, anys(ids)...)
}

func (g *Generic[T, ID]) Refresh(ctx context.Context, entities ...*T) error {
	return g.dao.Refresh(ctx, anys(entities)...)
}

func (g *Generic[T, ID]) IsAttached(ctx context.Context, entity *T) bool {
	return g.dao.IsAttached(ctx, entity)
}

// Flush flushes the pending changes of T.
func (g *Generic[T, ID]) Flush(ctx context.Context) error {
	return g.dao.FlushType(ctx, g.typ)
}

func (g *Generic[T, ID]) FilterFromExample(example *T, opts *search.ExampleOptions) (*search.Filter, error) {
	if example == nil {
		return nil, daoerrors.NullArgument("example")
	}
	return g.dao.FilterFromExample(example, opts)
}

// own returns s typed to T, copying it when the type has to be filled in.
func (g *Generic[T, ID]) own(s *search.Search) (*search.Search, error) {
	if s == nil {
		return nil, daoerrors.NullArgument("search")
	}
	if s.Type == nil {
		return s.Copy().SetType(g.typ), nil
	}
	if s.Type != g.typ {
		return nil, daoerrors.InvalidArgument("search over %s given to the DAO of %s", s.Type, g.typ)
	}
	return s, nil
}

// Override adapts a typed DAO to the capability interfaces so it can be
// registered with a Dispatcher. d must not run on that same dispatcher, or
// every call would route back to itself.
func Override[T any, ID comparable](d GenericDAO[T, ID]) any {
	return &typedOverride[T, ID]{dao: d}
}

type typedOverride[T any, ID comparable] struct {
	dao GenericDAO[T, ID]
}

func (o *typedOverride[T, ID]) Find(ctx context.Context, id any) (any, error) {
	typed, err := convertID[ID](id)
	if err != nil {
		return nil, err
	}
	v, err := o.dao.Find(ctx, typed)
	if err != nil || v == nil {
		return nil, err
	}
	return v, nil
}

func (o *typedOverride[T, ID]) FindMany(ctx context.Context, ids ...any) ([]any, error) {
	typed, err := convertIDs[ID](ids)
	if err != nil {
		return nil, err
	}
	found, err := o.dao.FindMany(ctx, typed...)
	if err != nil {
		return nil, err
	}
	return untyped(found), nil
}

func (o *typedOverride[T, ID]) FindAll(ctx context.Context) ([]any, error) {
	all, err := o.dao.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return untyped(all), nil
}

func (o *typedOverride[T, ID]) Save(ctx context.Context, entity any) (bool, error) {
	e, err := as[T](entity)
	if err != nil {
		return false, err
	}
	return o.dao.Save(ctx, e)
}

func (o *typedOverride[T, ID]) SaveMany(ctx context.Context, items ...any) ([]bool, error) {
	es, err := asMany[T](items)
	if err != nil {
		return nil, err
	}
	return o.dao.SaveMany(ctx, es...)
}

func (o *typedOverride[T, ID]) Remove(ctx context.Context, entity any) (bool, error) {
	e, err := as[T](entity)
	if err != nil {
		return false, err
	}
	return o.dao.Remove(ctx, e)
}

func (o *typedOverride[T, ID]) RemoveMany(ctx context.Context, items ...any) ([]bool, error) {
	es, err := asMany[T](items)
	if err != nil {
		return nil, err
	}
	return o.dao.RemoveMany(ctx, es...)
}

func (o *typedOverride[T, ID]) RemoveByID(ctx context.Context, id any) (bool, error) {
	typed, err := convertID[ID](id)
	if err != nil {
		return false, err
	}
	return o.dao.RemoveByID(ctx, typed)
}

func (o *typedOverride[T, ID]) RemoveByIDs(ctx context.Context, ids ...any) ([]bool, error) {
	typed, err := convertIDs[ID](ids)
	if err != nil {
		return nil, err
	}
	return o.dao.RemoveByIDs(ctx, typed...)
}

func (o *typedOverride[T, ID]) Search(ctx context.Context, s *search.Search) ([]any, error) {
	return o.dao.Search(ctx, s)
}

func (o *typedOverride[T, ID]) Count(ctx context.Context, s *search.Search) (int, error) {
	return o.dao.Count(ctx, s)
}

func (o *typedOverride[T, ID]) SearchAndCount(ctx context.Context, s *search.Search) (*search.Result, error) {
	return o.dao.SearchAndCount(ctx, s)
}

func (o *typedOverride[T, ID]) SearchUnique(ctx context.Context, s *search.Search) (any, error) {
	return o.dao.SearchUnique(ctx, s)
}

func (o *typedOverride[T, ID]) GetReference(ctx context.Context, id any) (*session.Reference, error) {
	typed, err := convertID[ID](id)
	if err != nil {
		return nil, err
	}
	return o.dao.GetReference(ctx, typed)
}

func (o *typedOverride[T, ID]) GetReferences(ctx context.Context, ids ...any) ([]*session.Reference, error) {
	typed, err := convertIDs[ID](ids)
	if err != nil {
		return nil, err
	}
	return o.dao.GetReferences(ctx, typed...)
}

func (o *typedOverride[T, ID]) Refresh(ctx context.Context, items ...any) error {
	es, err := asMany[T](items)
	if err != nil {
		return err
	}
	return o.dao.Refresh(ctx, es...)
}

func (o *typedOverride[T, ID]) IsAttached(ctx context.Context, entity any) bool {
	e, err := as[T](entity)
	if err != nil {
		return false
	}
	return o.dao.IsAttached(ctx, e)
}

func (o *typedOverride[T, ID]) Flush(ctx context.Context) error {
	return o.dao.Flush(ctx)
}

func (o *typedOverride[T, ID]) FilterFromExample(example any, opts *search.ExampleOptions) (*search.Filter, error) {
	e, err := as[T](example)
	if err != nil {
		return nil, err
	}
	return o.dao.FilterFromExample(e, opts)
}

// Find loads the T with id through dao.
func Find[T any](ctx context.Context, dao GeneralDAO, id any) (*T, error) {
	v, err := dao.Find(ctx, metadata.TypeOf[T](), id)
	if err != nil || v == nil {
		return nil, err
	}
	return as[T](v)
}

// FindMany loads the Ts with ids, nil where no row matches.
func FindMany[T any](ctx context.Context, dao GeneralDAO, ids ...any) ([]*T, error) {
	found, err := dao.FindMany(ctx, metadata.TypeOf[T](), ids...)
	if err != nil {
		return nil, err
	}
	return asMany[T](found)
}

// FindAll loads every T.
func FindAll[T any](ctx context.Context, dao GeneralDAO) ([]*T, error) {
	all, err := dao.FindAll(ctx, metadata.TypeOf[T]())
	if err != nil {
		return nil, err
	}
	return asMany[T](all)
}

// SearchAs runs s and asserts every result to R, which is *Entity for
// entity searches, the field type for single field searches, []any or
// map[string]any otherwise. A NULL value gives the zero R.
func SearchAs[R any](ctx context.Context, dao GeneralDAO, s *search.Search) ([]R, error) {
	items, err := dao.Search(ctx, s)
	if err != nil {
		return nil, err
	}
	out := make([]R, len(items))
	for i, item := range items {
		if item == nil {
			continue
		}
		v, ok := item.(R)
		if !ok {
			return nil, daoerrors.InvalidArgument("result %d is %T, not %s", i, item, reflect.TypeFor[R]())
		}
		out[i] = v
	}
	return out, nil
}

// SearchUniqueAs runs SearchUnique and asserts the result to R. No match
// gives the zero R.
func SearchUniqueAs[R any](ctx context.Context, dao GeneralDAO, s *search.Search) (R, error) {
	var zero R
	v, err := dao.SearchUnique(ctx, s)
	if err != nil || v == nil {
		return zero, err
	}
	r, ok := v.(R)
	if !ok {
		return zero, daoerrors.InvalidArgument("result is %T, not %s", v, reflect.TypeFor[R]())
	}
	return r, nil
}

// Resolve resolves ref and asserts the entity to *T.
func Resolve[T any](ctx context.Context, ref *session.Reference) (*T, error) {
	if ref == nil {
		return nil, daoerrors.NullArgument("reference")
	}
	v, err := ref.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	return as[T](v)
}

func as[T any](v any) (*T, error) {
	if v == nil {
		return nil, daoerrors.NullArgument("entity")
	}
	e, ok := v.(*T)
	if !ok {
		return nil, daoerrors.InvalidArgument("expected *%s, got %T", reflect.TypeFor[T](), v)
	}
	return e, nil
}

// asMany asserts every non-nil item to *T, keeping nils in place.
func asMany[T any](items []any) ([]*T, error) {
	out := make([]*T, len(items))
	for i, item := range items {
		if item == nil {
			continue
		}
		e, err := as[T](item)
		if err != nil {
			return nil, err
		}
		out[i] = e
	}
	return out, nil
}

func untyped[T any](items []*T) []any {
	out := make([]any, len(items))
	for i, e := range items {
		if e != nil {
			out[i] = e
		}
	}
	return out
}

func anys[E any](items []E) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

func convertID[ID comparable](id any) (ID, error) {
	var zero ID
	if id == nil {
		return zero, daoerrors.NullArgument("id")
	}
	if typed, ok := id.(ID); ok {
		return typed, nil
	}
	v, err := metadata.Convert(id, reflect.TypeFor[ID]())
	if err != nil {
		return zero, err
	}
	return v.(ID), nil
}

func convertIDs[ID comparable](ids []any) ([]ID, error) {
	out := make([]ID, len(ids))
	for i, id := range ids {
		typed, err := convertID[ID](id)
		if err != nil {
			return nil, err
		}
		out[i] = typed
	}
	return out, nil
}
