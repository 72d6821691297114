package dao

import (
	"context"

	"github.com/goliatone/go-generic-dao/search"
	"github.com/goliatone/go-generic-dao/session"
)

// Capability interfaces are the operations an override can take over for
// the entity type it is registered for. An override implements any subset;
// the dispatcher sends every other call to the GeneralDAO.

type Finder interface {
	Find(ctx context.Context, id any) (any, error)
}

type MultiFinder interface {
	FindMany(ctx context.Context, ids ...any) ([]any, error)
}

type AllFinder interface {
	FindAll(ctx context.Context) ([]any, error)
}

type Saver interface {
	Save(ctx context.Context, entity any) (bool, error)
}

type MultiSaver interface {
	SaveMany(ctx context.Context, entities ...any) ([]bool, error)
}

type Remover interface {
	Remove(ctx context.Context, entity any) (bool, error)
}

type MultiRemover interface {
	RemoveMany(ctx context.Context, entities ...any) ([]bool, error)
}

type IDRemover interface {
	RemoveByID(ctx context.Context, id any) (bool, error)
}

type MultiIDRemover interface {
	RemoveByIDs(ctx context.Context, ids ...any) ([]bool, error)
}

type Searcher interface {
	Search(ctx context.Context, s *search.Search) ([]any, error)
}

type Counter interface {
	Count(ctx context.Context, s *search.Search) (int, error)
}

type SearchCounter interface {
	SearchAndCount(ctx context.Context, s *search.Search) (*search.Result, error)
}

type UniqueSearcher interface {
	SearchUnique(ctx context.Context, s *search.Search) (any, error)
}

type Referencer interface {
	GetReference(ctx context.Context, id any) (*session.Reference, error)
}

type MultiReferencer interface {
	GetReferences(ctx context.Context, ids ...any) ([]*session.Reference, error)
}

type Refresher interface {
	Refresh(ctx context.Context, entities ...any) error
}

type AttachChecker interface {
	IsAttached(ctx context.Context, entity any) bool
}

// Flusher flushes the pending changes of the override's entity type.
type Flusher interface {
	Flush(ctx context.Context) error
}

type ExampleFilterer interface {
	FilterFromExample(example any, opts *search.ExampleOptions) (*search.Filter, error)
}

// route holds the capabilities one override was found to implement. Nil
// fields fall back to the GeneralDAO.
type route struct {
	override any

	finder          Finder
	multiFinder     MultiFinder
	allFinder       AllFinder
	saver           Saver
	multiSaver      MultiSaver
	remover         Remover
	multiRemover    MultiRemover
	idRemover       IDRemover
	multiIDRemover  MultiIDRemover
	searcher        Searcher
	counter         Counter
	searchCounter   SearchCounter
	uniqueSearcher  UniqueSearcher
	referencer      Referencer
	multiReferencer MultiReferencer
	refresher       Refresher
	attachChecker   AttachChecker
	flusher         Flusher
	exampleFilterer ExampleFilterer
}

func newRoute(override any) *route {
	r := &route{override: override}
	r.finder, _ = override.(Finder)
	r.multiFinder, _ = override.(MultiFinder)
	r.allFinder, _ = override.(AllFinder)
	r.saver, _ = override.(Saver)
	r.multiSaver, _ = override.(MultiSaver)
	r.remover, _ = override.(Remover)
	r.multiRemover, _ = override.(MultiRemover)
	r.idRemover, _ = override.(IDRemover)
	r.multiIDRemover, _ = override.(MultiIDRemover)
	r.searcher, _ = override.(Searcher)
	r.counter, _ = override.(Counter)
	r.searchCounter, _ = override.(SearchCounter)
	r.uniqueSearcher, _ = override.(UniqueSearcher)
	r.referencer, _ = override.(Referencer)
	r.multiReferencer, _ = override.(MultiReferencer)
	r.refresher, _ = override.(Refresher)
	r.attachChecker, _ = override.(AttachChecker)
	r.flusher, _ = override.(Flusher)
	r.exampleFilterer, _ = override.(ExampleFilterer)
	return r
}

// capabilities lists the names of the implemented capabilities.
func (r *route) capabilities() []string {
	var names []string
	add := func(ok bool, name string) {
		if ok {
			names = append(names, name)
		}
	}
	add(r.finder != nil, "Finder")
	add(r.multiFinder != nil, "MultiFinder")
	add(r.allFinder != nil, "AllFinder")
	add(r.saver != nil, "Saver")
	add(r.multiSaver != nil, "MultiSaver")
	add(r.remover != nil, "Remover")
	add(r.multiRemover != nil, "MultiRemover")
	add(r.idRemover != nil, "IDRemover")
	add(r.multiIDRemover != nil, "MultiIDRemover")
	add(r.searcher != nil, "Searcher")
	add(r.counter != nil, "Counter")
	add(r.searchCounter != nil, "SearchCounter")
	add(r.uniqueSearcher != nil, "UniqueSearcher")
	add(r.referencer != nil, "Referencer")
	add(r.multiReferencer != nil, "MultiReferencer")
	add(r.refresher != nil, "Refresher")
	add(r.attachChecker != nil, "AttachChecker")
	add(r.flusher != nil, "Flusher")
	add(r.exampleFilterer != nil, "ExampleFilterer")
	return names
}
