package dao

import (
	"context"
	"log/slog"
	"reflect"

	"github.com/goliatone/go-generic-dao/daoerrors"
	"github.com/goliatone/go-generic-dao/metadata"
	"github.com/goliatone/go-generic-dao/search"
	"github.com/goliatone/go-generic-dao/session"
)

var _ GeneralDAO = (*Dispatcher)(nil)

// Dispatcher is a GeneralDAO that sends each call to the override
// registered for the entity type when the override implements the matching
// capability, and to the fallback GeneralDAO otherwise.
//
// Overrides are swapped wholesale with SetOverrides, which must not run
// concurrently with other calls.
type Dispatcher struct {
	general GeneralDAO
	routes  map[string]*route
	logger  *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger used for debug output.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher returns a dispatcher without overrides.
func NewDispatcher(general GeneralDAO, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		general: general,
		routes:  make(map[string]*route),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetOverrides replaces the override registry. The capabilities of every
// override are resolved here, once. An override implementing no capability
// is rejected and the previous registry is kept.
func (d *Dispatcher) SetOverrides(overrides map[reflect.Type]any) error {
	routes := make(map[string]*route, len(overrides))
	for typ, override := range overrides {
		if typ == nil {
			return daoerrors.NullArgument("override type")
		}
		if override == nil {
			return daoerrors.NullArgument("override for " + typ.String())
		}
		r := newRoute(override)
		caps := r.capabilities()
		if len(caps) == 0 {
			return daoerrors.InvalidArgument("%T implements no DAO capability", override)
		}
		key := metadata.TypeKey(typ)
		routes[key] = r
		d.logger.Debug("dao override registered", "entity", key, "override", reflect.TypeOf(override).String(), "capabilities", caps)
	}
	d.routes = routes
	return nil
}

// HasOverrides reports whether any override is registered.
func (d *Dispatcher) HasOverrides() bool {
	return len(d.routes) > 0
}

// Override returns the override registered for typ.
func (d *Dispatcher) Override(typ reflect.Type) (any, bool) {
	if r := d.route(typ); r != nil {
		return r.override, true
	}
	return nil, false
}

func (d *Dispatcher) route(typ reflect.Type) *route {
	if typ == nil || len(d.routes) == 0 {
		return nil
	}
	return d.routes[metadata.TypeKey(typ)]
}

func (d *Dispatcher) Find(ctx context.Context, typ reflect.Type, id any) (any, error) {
	if r := d.route(typ); r != nil && r.finder != nil {
		return r.finder.Find(ctx, id)
	}
	return d.general.Find(ctx, typ, id)
}

func (d *Dispatcher) FindMany(ctx context.Context, typ reflect.Type, ids ...any) ([]any, error) {
	r := d.route(typ)
	switch {
	case r != nil && r.multiFinder != nil:
		return r.multiFinder.FindMany(ctx, ids...)
	case r != nil && r.finder != nil:
		out := make([]any, len(ids))
		for i, id := range ids {
			v, err := r.finder.Find(ctx, id)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	}
	return d.general.FindMany(ctx, typ, ids...)
}

func (d *Dispatcher) FindAll(ctx context.Context, typ reflect.Type) ([]any, error) {
	r := d.route(typ)
	switch {
	case r != nil && r.allFinder != nil:
		return r.allFinder.FindAll(ctx)
	case r != nil && r.searcher != nil:
		return r.searcher.Search(ctx, search.New(typ))
	}
	return d.general.FindAll(ctx, typ)
}

func (d *Dispatcher) Save(ctx context.Context, entity any) (bool, error) {
	typ, err := entityType(entity)
	if err != nil {
		return false, err
	}
	if r := d.route(typ); r != nil && r.saver != nil {
		return r.saver.Save(ctx, entity)
	}
	return d.general.Save(ctx, entity)
}

// SaveMany groups entities by type and saves each group through its route.
// Results keep the order of entities.
func (d *Dispatcher) SaveMany(ctx context.Context, entities ...any) ([]bool, error) {
	return d.batch(entities, func(typ reflect.Type, group []any) ([]bool, error) {
		r := d.route(typ)
		switch {
		case r != nil && r.multiSaver != nil:
			return r.multiSaver.SaveMany(ctx, group...)
		case r != nil && r.saver != nil:
			return each(group, func(e any) (bool, error) { return r.saver.Save(ctx, e) })
		}
		return d.general.SaveMany(ctx, group...)
	})
}

func (d *Dispatcher) Remove(ctx context.Context, entity any) (bool, error) {
	typ, err := entityType(entity)
	if err != nil {
		return false, err
	}
	if r := d.route(typ); r != nil && r.remover != nil {
		return r.remover.Remove(ctx, entity)
	}
	return d.general.Remove(ctx, entity)
}

func (d *Dispatcher) RemoveMany(ctx context.Context, entities ...any) ([]bool, error) {
	return d.batch(entities, func(typ reflect.Type, group []any) ([]bool, error) {
		r := d.route(typ)
		switch {
		case r != nil && r.multiRemover != nil:
			return r.multiRemover.RemoveMany(ctx, group...)
		case r != nil && r.remover != nil:
			return each(group, func(e any) (bool, error) { return r.remover.Remove(ctx, e) })
		}
		return d.general.RemoveMany(ctx, group...)
	})
}

func (d *Dispatcher) RemoveByID(ctx context.Context, typ reflect.Type, id any) (bool, error) {
	if r := d.route(typ); r != nil && r.idRemover != nil {
		return r.idRemover.RemoveByID(ctx, id)
	}
	return d.general.RemoveByID(ctx, typ, id)
}

func (d *Dispatcher) RemoveByIDs(ctx context.Context, typ reflect.Type, ids ...any) ([]bool, error) {
	r := d.route(typ)
	switch {
	case r != nil && r.multiIDRemover != nil:
		return r.multiIDRemover.RemoveByIDs(ctx, ids...)
	case r != nil && r.idRemover != nil:
		return each(ids, func(id any) (bool, error) { return r.idRemover.RemoveByID(ctx, id) })
	}
	return d.general.RemoveByIDs(ctx, typ, ids...)
}

func (d *Dispatcher) Search(ctx context.Context, s *search.Search) ([]any, error) {
	if err := checkSearch(s); err != nil {
		return nil, err
	}
	if r := d.route(s.Type); r != nil && r.searcher != nil {
		return r.searcher.Search(ctx, s)
	}
	return d.general.Search(ctx, s)
}

func (d *Dispatcher) Count(ctx context.Context, s *search.Search) (int, error) {
	if err := checkSearch(s); err != nil {
		return 0, err
	}
	if r := d.route(s.Type); r != nil && r.counter != nil {
		return r.counter.Count(ctx, s)
	}
	return d.general.Count(ctx, s)
}

// SearchAndCount prefers a SearchCounter override. An override that only
// searches or only counts is combined with the fallback for the other half.
func (d *Dispatcher) SearchAndCount(ctx context.Context, s *search.Search) (*search.Result, error) {
	if err := checkSearch(s); err != nil {
		return nil, err
	}
	r := d.route(s.Type)
	if r == nil || (r.searchCounter == nil && r.searcher == nil && r.counter == nil) {
		return d.general.SearchAndCount(ctx, s)
	}
	if r.searchCounter != nil {
		return r.searchCounter.SearchAndCount(ctx, s)
	}

	items, err := d.Search(ctx, s)
	if err != nil {
		return nil, err
	}
	total := len(items)
	if s.IsPaged() {
		if total, err = d.Count(ctx, s); err != nil {
			return nil, err
		}
	}
	return &search.Result{Items: items, TotalCount: total}, nil
}

func (d *Dispatcher) SearchUnique(ctx context.Context, s *search.Search) (any, error) {
	if err := checkSearch(s); err != nil {
		return nil, err
	}
	r := d.route(s.Type)
	switch {
	case r != nil && r.uniqueSearcher != nil:
		return r.uniqueSearcher.SearchUnique(ctx, s)
	case r != nil && r.searcher != nil:
		items, err := r.searcher.Search(ctx, s)
		if err != nil {
			return nil, err
		}
		return unique(items)
	}
	return d.general.SearchUnique(ctx, s)
}

func (d *Dispatcher) GetReference(ctx context.Context, typ reflect.Type, id any) (*session.Reference, error) {
	if r := d.route(typ); r != nil && r.referencer != nil {
		return r.referencer.GetReference(ctx, id)
	}
	return d.general.GetReference(ctx, typ, id)
}

func (d *Dispatcher) GetReferences(ctx context.Context, typ reflect.Type, ids ...any) ([]*session.Reference, error) {
	r := d.route(typ)
	switch {
	case r != nil && r.multiReferencer != nil:
		return r.multiReferencer.GetReferences(ctx, ids...)
	case r != nil && r.referencer != nil:
		refs := make([]*session.Reference, len(ids))
		for i, id := range ids {
			ref, err := r.referencer.GetReference(ctx, id)
			if err != nil {
				return nil, err
			}
			refs[i] = ref
		}
		return refs, nil
	}
	return d.general.GetReferences(ctx, typ, ids...)
}

func (d *Dispatcher) Refresh(ctx context.Context, entities ...any) error {
	_, err := d.batch(entities, func(typ reflect.Type, group []any) ([]bool, error) {
		if r := d.route(typ); r != nil && r.refresher != nil {
			return make([]bool, len(group)), r.refresher.Refresh(ctx, group...)
		}
		return make([]bool, len(group)), d.general.Refresh(ctx, group...)
	})
	return err
}

func (d *Dispatcher) IsAttached(ctx context.Context, entity any) bool {
	typ, err := entityType(entity)
	if err != nil {
		return false
	}
	if r := d.route(typ); r != nil && r.attachChecker != nil {
		return r.attachChecker.IsAttached(ctx, entity)
	}
	return d.general.IsAttached(ctx, entity)
}

// Flush fails with ErrDispatcherMisuse while overrides are registered:
// there is no telling which of them holds pending changes. Use FlushType.
func (d *Dispatcher) Flush(ctx context.Context) error {
	if d.HasOverrides() {
		return daoerrors.ErrDispatcherMisuse
	}
	return d.general.Flush(ctx)
}

// FlushType flushes through the override for typ, or the fallback.
func (d *Dispatcher) FlushType(ctx context.Context, typ reflect.Type) error {
	if typ == nil {
		return daoerrors.NullArgument("type")
	}
	if r := d.route(typ); r != nil && r.flusher != nil {
		return r.flusher.Flush(ctx)
	}
	return d.general.FlushType(ctx, typ)
}

func (d *Dispatcher) FilterFromExample(example any, opts *search.ExampleOptions) (*search.Filter, error) {
	typ, err := entityType(example)
	if err != nil {
		return nil, err
	}
	if r := d.route(typ); r != nil && r.exampleFilterer != nil {
		return r.exampleFilterer.FilterFromExample(example, opts)
	}
	return d.general.FilterFromExample(example, opts)
}

// batch splits entities by type, runs fn once per type in first seen order
// and reassembles the per entity results.
func (d *Dispatcher) batch(entities []any, fn func(typ reflect.Type, group []any) ([]bool, error)) ([]bool, error) {
	var order []reflect.Type
	groups := make(map[reflect.Type][]int)
	for i, e := range entities {
		typ, err := entityType(e)
		if err != nil {
			return nil, err
		}
		if _, ok := groups[typ]; !ok {
			order = append(order, typ)
		}
		groups[typ] = append(groups[typ], i)
	}

	out := make([]bool, len(entities))
	for _, typ := range order {
		idx := groups[typ]
		group := make([]any, len(idx))
		for j, i := range idx {
			group[j] = entities[i]
		}
		res, err := fn(typ, group)
		if err != nil {
			return nil, err
		}
		for j, i := range idx {
			if j < len(res) {
				out[i] = res[j]
			}
		}
	}
	return out, nil
}

func each(items []any, fn func(any) (bool, error)) ([]bool, error) {
	out := make([]bool, len(items))
	for i, item := range items {
		ok, err := fn(item)
		if err != nil {
			return nil, err
		}
		out[i] = ok
	}
	return out, nil
}

func entityType(entity any) (reflect.Type, error) {
	rv := reflect.ValueOf(entity)
	if !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return nil, daoerrors.NullArgument("entity")
	}
	return metadata.Indirect(rv.Type()), nil
}

func checkSearch(s *search.Search) error {
	if s == nil {
		return daoerrors.NullArgument("search")
	}
	if s.Type == nil {
		return daoerrors.NullArgument("search type")
	}
	return nil
}
