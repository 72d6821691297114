package dao

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/goliatone/go-generic-dao/cache"
	"github.com/goliatone/go-generic-dao/daoerrors"
	"github.com/goliatone/go-generic-dao/internal/translator"
	"github.com/goliatone/go-generic-dao/metadata"
	"github.com/goliatone/go-generic-dao/search"
	"github.com/goliatone/go-generic-dao/session"
)

var _ GeneralDAO = (*General)(nil)

// General is the GeneralDAO backed by the session in the context and a
// search translator.
type General struct {
	registry   *metadata.Registry
	translator *translator.Translator
	plans      cache.CacheService
	keys       cache.KeySerializer
	logger     *slog.Logger
}

// Option configures a General DAO.
type Option func(*General)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(g *General) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithPlanCache caches compiled searches in svc.
func WithPlanCache(svc cache.CacheService) Option {
	return func(g *General) {
		g.plans = svc
	}
}

// WithKeySerializer sets how plan cache keys are built. It only matters
// together with WithPlanCache.
func WithKeySerializer(keys cache.KeySerializer) Option {
	return func(g *General) {
		g.keys = keys
	}
}

// NewGeneral returns a DAO resolving entity types against registry.
func NewGeneral(registry *metadata.Registry, opts ...Option) *General {
	g := &General{registry: registry, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}

	topts := []translator.Option{translator.WithLogger(g.logger)}
	if g.plans != nil {
		topts = append(topts, translator.WithCache(g.plans, g.keys))
	}
	g.translator = translator.New(registry, topts...)
	return g
}

// Registry returns the descriptor registry of the DAO.
func (g *General) Registry() *metadata.Registry {
	return g.registry
}

// Find loads the entity of typ with id through the session in ctx. A
// missing row yields nil without an error.
func (g *General) Find(ctx context.Context, typ reflect.Type, id any) (any, error) {
	s, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.Find(ctx, typ, id)
}

// FindMany loads each id in order, with nil for missing rows.
func (g *General) FindMany(ctx context.Context, typ reflect.Type, ids ...any) ([]any, error) {
	s, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.FindMany(ctx, typ, ids...)
}

// FindAll returns every entity of typ.
func (g *General) FindAll(ctx context.Context, typ reflect.Type) ([]any, error) {
	if typ == nil {
		return nil, daoerrors.NullArgument("type")
	}
	return g.Search(ctx, search.New(typ))
}

// Save inserts a new entity or schedules an update for an existing one. It
// reports true when the entity was created.
func (g *General) Save(ctx context.Context, entity any) (bool, error) {
	s, err := session.FromContext(ctx)
	if err != nil {
		return false, err
	}
	return s.Save(ctx, entity)
}

// SaveMany saves entities in order and stops at the first error.
func (g *General) SaveMany(ctx context.Context, entities ...any) ([]bool, error) {
	s, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(entities))
	for i, e := range entities {
		if out[i], err = s.Save(ctx, e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Remove deletes entity. It reports false when there was no row to delete.
func (g *General) Remove(ctx context.Context, entity any) (bool, error) {
	s, err := session.FromContext(ctx)
	if err != nil {
		return false, err
	}
	return s.Remove(ctx, entity)
}

// RemoveMany removes entities in order and stops at the first error.
func (g *General) RemoveMany(ctx context.Context, entities ...any) ([]bool, error) {
	s, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(entities))
	for i, e := range entities {
		if out[i], err = s.Remove(ctx, e); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// RemoveByID deletes the entity of typ with id.
func (g *General) RemoveByID(ctx context.Context, typ reflect.Type, id any) (bool, error) {
	s, err := session.FromContext(ctx)
	if err != nil {
		return false, err
	}
	return s.RemoveByID(ctx, typ, id)
}

// RemoveByIDs removes each id in order and stops at the first error.
func (g *General) RemoveByIDs(ctx context.Context, typ reflect.Type, ids ...any) ([]bool, error) {
	s, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(ids))
	for i, id := range ids {
		if out[i], err = s.RemoveByID(ctx, typ, id); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Search runs s and returns rows shaped by its result mode.
func (g *General) Search(ctx context.Context, s *search.Search) ([]any, error) {
	q, sess, err := g.prepare(ctx, s)
	if err != nil {
		return nil, err
	}
	return g.run(ctx, sess, q)
}

// Count returns the number of rows s matches, ignoring paging.
func (g *General) Count(ctx context.Context, s *search.Search) (int, error) {
	q, sess, err := g.prepare(ctx, s)
	if err != nil {
		return 0, err
	}
	return g.count(ctx, sess, q)
}

// SearchAndCount runs the search and, when it is paged, the count query.
// An unpaged search is counted by its result length.
func (g *General) SearchAndCount(ctx context.Context, s *search.Search) (*search.Result, error) {
	q, sess, err := g.prepare(ctx, s)
	if err != nil {
		return nil, err
	}
	items, err := g.run(ctx, sess, q)
	if err != nil {
		return nil, err
	}
	total := len(items)
	if q.Paged() {
		if total, err = g.count(ctx, sess, q); err != nil {
			return nil, err
		}
	}
	return &search.Result{Items: items, TotalCount: total}, nil
}

// SearchUnique returns the single row s matches, nil when nothing matches
// and ErrNonUniqueResult when more than one row does.
func (g *General) SearchUnique(ctx context.Context, s *search.Search) (any, error) {
	if s != nil && s.MaxResults == 0 && s.Page == 0 {
		// two rows are enough to tell a unique result from a non-unique one
		s = s.Copy().SetMaxResults(2)
	}
	items, err := g.Search(ctx, s)
	if err != nil {
		return nil, err
	}
	return unique(items)
}

// GetReference returns an unresolved reference bound to the session in ctx.
func (g *General) GetReference(ctx context.Context, typ reflect.Type, id any) (*session.Reference, error) {
	s, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.GetReference(typ, id)
}

// GetReferences returns one reference per id.
func (g *General) GetReferences(ctx context.Context, typ reflect.Type, ids ...any) ([]*session.Reference, error) {
	s, err := session.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return s.GetReferences(typ, ids...)
}

// Refresh reloads entities from the database, discarding pending changes.
func (g *General) Refresh(ctx context.Context, entities ...any) error {
	s, err := session.FromContext(ctx)
	if err != nil {
		return err
	}
	for _, e := range entities {
		if err := s.Refresh(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// IsAttached reports false when ctx carries no session.
func (g *General) IsAttached(ctx context.Context, entity any) bool {
	s, err := session.FromContext(ctx)
	if err != nil {
		return false
	}
	return s.IsAttached(entity)
}

// Flush writes pending updates of the session in ctx.
func (g *General) Flush(ctx context.Context) error {
	s, err := session.FromContext(ctx)
	if err != nil {
		return err
	}
	return s.Flush(ctx)
}

// FlushType writes pending updates for entities of typ only.
func (g *General) FlushType(ctx context.Context, typ reflect.Type) error {
	s, err := session.FromContext(ctx)
	if err != nil {
		return err
	}
	return s.FlushType(ctx, typ)
}

// FilterFromExample builds a filter from the set properties of example.
func (g *General) FilterFromExample(example any, opts *search.ExampleOptions) (*search.Filter, error) {
	return g.translator.FilterFromExample(example, opts)
}

// prepare compiles s and flushes pending changes so the query sees them.
// A nil search or type fails before the session is looked at.
func (g *General) prepare(ctx context.Context, s *search.Search) (*translator.Query, *session.Session, error) {
	q, err := g.translator.Translate(ctx, s)
	if err != nil {
		return nil, nil, err
	}
	sess, err := session.FromContext(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := sess.Flush(ctx); err != nil {
		return nil, nil, err
	}
	return q, sess, nil
}

func (g *General) run(ctx context.Context, sess *session.Session, q *translator.Query) ([]any, error) {
	rows, err := q.Select(sess.DB()).Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", q.Entity.Name, err)
	}
	defer rows.Close()

	items := []any{}
	for rows.Next() {
		item, err := q.ScanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("search %s: %w", q.Entity.Name, err)
		}
		if q.Mode == search.ResultEntity {
			if item, err = sess.Merge(item); err != nil {
				return nil, err
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search %s: %w", q.Entity.Name, err)
	}
	// release the connection before fetch queries run
	rows.Close()

	if err := fetch(ctx, sess, q, items); err != nil {
		return nil, err
	}
	g.logger.Debug("search executed", "entity", q.Entity.Name, "rows", len(items))
	return items, nil
}

func (g *General) count(ctx context.Context, sess *session.Session, q *translator.Query) (int, error) {
	var n int
	if err := q.Count(sess.DB()).Scan(ctx, &n); err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Entity.Name, err)
	}
	return n, nil
}

// fetch loads the association paths of q onto entity results.
func fetch(ctx context.Context, sess *session.Session, q *translator.Query, items []any) error {
	if q.Mode != search.ResultEntity || len(items) == 0 {
		return nil
	}
	for _, path := range q.Fetches() {
		if err := sess.Fetch(ctx, q.Entity.Type, items, path); err != nil {
			return fmt.Errorf("fetch %s.%s: %w", q.Entity.Name, path, err)
		}
	}
	return nil
}

func unique(items []any) (any, error) {
	switch len(items) {
	case 0:
		return nil, nil
	case 1:
		return items[0], nil
	}
	return nil, daoerrors.ErrNonUniqueResult
}
