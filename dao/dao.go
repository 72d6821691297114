package dao

import (
	"context"
	"reflect"

	"github.com/goliatone/go-generic-dao/search"
	"github.com/goliatone/go-generic-dao/session"
)

// GeneralDAO is the entity agnostic DAO. Every operation runs against the
// session carried by ctx and fails with ErrNoSession when there is none.
type GeneralDAO interface {
	// Find returns the entity with id, or nil when no row matches.
	Find(ctx context.Context, typ reflect.Type, id any) (any, error)
	// FindMany returns one entry per id, nil where no row matches.
	FindMany(ctx context.Context, typ reflect.Type, ids ...any) ([]any, error)
	// FindAll returns every row of typ.
	FindAll(ctx context.Context, typ reflect.Type) ([]any, error)

	// Save inserts or updates entity and reports true for an insert.
	Save(ctx context.Context, entity any) (bool, error)
	SaveMany(ctx context.Context, entities ...any) ([]bool, error)

	// Remove deletes entity and reports whether a row was deleted.
	Remove(ctx context.Context, entity any) (bool, error)
	RemoveMany(ctx context.Context, entities ...any) ([]bool, error)
	RemoveByID(ctx context.Context, typ reflect.Type, id any) (bool, error)
	RemoveByIDs(ctx context.Context, typ reflect.Type, ids ...any) ([]bool, error)

	Search(ctx context.Context, s *search.Search) ([]any, error)
	// Count returns the number of rows matching the filters of s, ignoring
	// paging, sorting and fields.
	Count(ctx context.Context, s *search.Search) (int, error)
	SearchAndCount(ctx context.Context, s *search.Search) (*search.Result, error)
	// SearchUnique returns the only result of s, nil when there is none and
	// ErrNonUniqueResult when there are more.
	SearchUnique(ctx context.Context, s *search.Search) (any, error)

	// GetReference returns a handle to the row with id without loading it.
	GetReference(ctx context.Context, typ reflect.Type, id any) (*session.Reference, error)
	GetReferences(ctx context.Context, typ reflect.Type, ids ...any) ([]*session.Reference, error)

	Refresh(ctx context.Context, entities ...any) error
	IsAttached(ctx context.Context, entity any) bool
	Flush(ctx context.Context) error
	FlushType(ctx context.Context, typ reflect.Type) error

	// FilterFromExample derives an AND filter from the set properties of
	// example. A nil opts uses search.NewExampleOptions.
	FilterFromExample(example any, opts *search.ExampleOptions) (*search.Filter, error)
}
