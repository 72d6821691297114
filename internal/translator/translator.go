package translator

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-generic-dao/cache"
	"github.com/goliatone/go-generic-dao/daoerrors"
	"github.com/goliatone/go-generic-dao/metadata"
	"github.com/goliatone/go-generic-dao/search"
)

// planMethod prefixes plan cache keys.
const planMethod = "plan"

// Translator compiles searches into queries against entity descriptors.
type Translator struct {
	registry *metadata.Registry
	plans    cache.CacheService
	keys     cache.KeySerializer
	logger   *slog.Logger
}

// Option configures a Translator.
type Option func(*Translator)

// WithCache caches compiled queries in svc under keys built by keys. A nil
// serializer falls back to the hashed default.
func WithCache(svc cache.CacheService, keys cache.KeySerializer) Option {
	return func(t *Translator) {
		t.plans = svc
		t.keys = keys
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Translator) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// New returns a translator over registry.
func New(registry *metadata.Registry, opts ...Option) *Translator {
	t := &Translator{registry: registry, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	if t.plans != nil && t.keys == nil {
		t.keys = cache.NewHashedKeySerializer(cache.NewDefaultKeySerializer())
	}
	return t
}

// Registry returns the descriptor registry the translator resolves against.
func (t *Translator) Registry() *metadata.Registry {
	return t.registry
}

// Translate compiles s. A nil search or a search without a type fails with
// ErrNullArgument before anything else is looked at.
func (t *Translator) Translate(ctx context.Context, s *search.Search) (*Query, error) {
	if s == nil {
		return nil, daoerrors.NullArgument("search")
	}
	if s.Type == nil {
		return nil, daoerrors.NullArgument("search type")
	}
	if t.plans == nil || !cacheable(s) {
		return t.compile(s)
	}

	key := t.keys.SerializeKey(planMethod,
		metadata.TypeKey(s.Type), filterKey(s.Filters), s.Disjunction, s.Fields, s.Sorts, s.Fetches,
		s.FirstResult, s.MaxResults, s.Page, s.ResultMode, s.Distinct,
	)
	return cache.GetOrFetch[*Query](ctx, t.plans, key, func(ctx context.Context) (*Query, error) {
		return t.compile(s)
	})
}

func (t *Translator) compile(s *search.Search) (*Query, error) {
	if err := s.Validate(); err != nil {
		return nil, daoerrors.InvalidSearch("", "%v", err)
	}
	e, err := t.registry.Entity(s.Type)
	if err != nil {
		return nil, err
	}
	mode, err := resolveMode(s)
	if err != nil {
		return nil, err
	}

	seq := 0
	root := newScope(t.registry, e, e.Alias, &seq)
	q := &Query{
		Entity:   e,
		Mode:     mode,
		distinct: s.Distinct,
		limit:    s.MaxResults,
		offset:   s.FirstRow(),
	}

	sep := " AND "
	if s.Disjunction {
		sep = " OR "
	}
	if q.where, err = root.junction(s.Filters, sep); err != nil {
		return nil, err
	}

	if mode == search.ResultEntity {
		for _, p := range e.Columns() {
			q.columns = append(q.columns, selected{key: p.Name, expr: column(e.Alias, p.Column), scan: p.BaseType()})
		}
	} else if err := t.fields(root, q, s.Fields); err != nil {
		return nil, err
	}

	for _, sort := range s.Sorts {
		target, err := root.path(sort.Property)
		if err != nil {
			return nil, err
		}
		expr := target.clause()
		if sort.IgnoreCase {
			expr = expr.wrap("lower(%s)")
		}
		if sort.Desc {
			q.order = append(q.order, expr.wrap("%s DESC"))
		} else {
			q.order = append(q.order, expr.wrap("%s ASC"))
		}
	}

	for _, path := range s.Fetches {
		if err := t.checkFetch(e, path); err != nil {
			return nil, err
		}
		q.fetches = append(q.fetches, path)
	}

	q.joins = root.joins
	t.logger.Debug("search translated",
		"entity", e.Name,
		"mode", mode.String(),
		"filters", len(s.Filters),
		"joins", len(q.joins),
	)
	return q, nil
}

func (t *Translator) fields(root *scope, q *Query, fields []search.Field) error {
	var plain []clause
	for _, f := range fields {
		key := f.KeyOrProperty()
		if f.Operator == search.FieldCount && f.Property == "" {
			q.aggregate = true
			q.columns = append(q.columns, selected{key: keyOr(key, "count"), expr: clause{query: "count(*)"}, scan: int64Type})
			continue
		}

		target, err := root.path(f.Property)
		if err != nil {
			return err
		}
		if target.prop.Kind != metadata.KindColumn {
			return daoerrors.InvalidSearch(f.Property, "only column properties can be projected")
		}
		expr := target.clause()
		scan := target.prop.BaseType()

		switch f.Operator {
		case search.FieldProperty:
			plain = append(plain, expr)
		case search.FieldCount:
			expr, scan = expr.wrap("count(%s)"), int64Type
		case search.FieldCountDistinct:
			expr, scan = expr.wrap("count(DISTINCT %s)"), int64Type
		case search.FieldMax:
			expr = expr.wrap("max(%s)")
		case search.FieldMin:
			expr = expr.wrap("min(%s)")
		case search.FieldSum:
			expr = expr.wrap("sum(%s)")
		case search.FieldAvg:
			expr, scan = expr.wrap("avg(%s)"), float64Type
		default:
			return daoerrors.InvalidSearch(f.Property, "unknown field operator %d", f.Operator)
		}
		if f.Operator.IsAggregate() {
			q.aggregate = true
		}
		q.columns = append(q.columns, selected{key: key, expr: expr, scan: scan})
	}
	if q.aggregate {
		q.group = plain
	}
	return nil
}

func (t *Translator) checkFetch(e *metadata.Entity, path string) error {
	chain, err := t.registry.Resolve(e, path)
	if err != nil {
		return err
	}
	for _, p := range chain {
		if p.Kind == metadata.KindColumn {
			return daoerrors.InvalidSearch(path, "%s is not an association", p.Name)
		}
	}
	return nil
}

// resolveMode maps the requested result mode and field count to the row
// shape, rejecting inconsistent combinations.
func resolveMode(s *search.Search) (search.ResultMode, error) {
	n := len(s.Fields)
	switch s.ResultMode {
	case search.ResultAuto:
		switch n {
		case 0:
			return search.ResultEntity, nil
		case 1:
			return search.ResultSingle, nil
		}
		return search.ResultArray, nil
	case search.ResultEntity:
		if n != 0 {
			return 0, daoerrors.InvalidSearch("", "entity results take no fields, got %d", n)
		}
		return search.ResultEntity, nil
	case search.ResultSingle:
		switch n {
		case 0:
			return search.ResultEntity, nil
		case 1:
			return search.ResultSingle, nil
		}
		return 0, daoerrors.InvalidSearch("", "single results take at most one field, got %d", n)
	case search.ResultArray, search.ResultMap:
		if n == 0 {
			return 0, daoerrors.InvalidSearch("", "%s results need at least one field", s.ResultMode)
		}
		return s.ResultMode, nil
	}
	return 0, daoerrors.InvalidSearch("", "unknown result mode %d", s.ResultMode)
}

var (
	int64Type   = reflect.TypeFor[int64]()
	float64Type = reflect.TypeFor[float64]()
	timeType    = reflect.TypeFor[time.Time]()
)

// cacheable reports whether every filter value is a plain value. Searches
// that compare against entities are compiled on every call.
func cacheable(s *search.Search) bool {
	var walk func(filters []*search.Filter) bool
	walk = func(filters []*search.Filter) bool {
		for _, f := range filters {
			if f == nil {
				continue
			}
			if children := f.Children(); len(children) > 0 {
				if !walk(children) {
					return false
				}
				continue
			}
			if f.Operator.IsJunction() || f.Operator.IsCollection() {
				continue
			}
			for _, v := range search.Flatten(f.Value) {
				if !plainValue(v) {
					return false
				}
			}
		}
		return true
	}
	return walk(s.Filters)
}

// filterKey writes the filter tree as one flat string. Values carry their
// type so 1 and "1" differ, and nesting has no depth limit.
func filterKey(filters []*search.Filter) string {
	var b strings.Builder
	var walk func(filters []*search.Filter)
	walk = func(filters []*search.Filter) {
		for _, f := range filters {
			if f == nil {
				b.WriteString("~;")
				continue
			}
			b.WriteByte('(')
			b.WriteString(f.Operator.String())
			b.WriteByte('|')
			b.WriteString(strconv.Quote(f.Property))
			if f.Operator.IsJunction() || f.Operator.IsCollection() {
				b.WriteByte('[')
				walk(f.Children())
				b.WriteByte(']')
			} else {
				values := search.Flatten(f.Value)
				fmt.Fprintf(&b, "|%T#%d", f.Value, len(values))
				for _, v := range values {
					b.WriteByte('|')
					writeKeyValue(&b, v)
				}
			}
			b.WriteString(");")
		}
	}
	walk(filters)
	return b.String()
}

func writeKeyValue(b *strings.Builder, v any) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			fmt.Fprintf(b, "%s:nil", rv.Type())
			return
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		b.WriteString("nil")
		return
	}
	fmt.Fprintf(b, "%s:", rv.Type())
	switch x := rv.Interface().(type) {
	case time.Time:
		b.WriteString(x.UTC().Format(time.RFC3339Nano))
	case string:
		b.WriteString(strconv.Quote(x))
	default:
		b.WriteString(strconv.Quote(fmt.Sprintf("%v", x)))
	}
}

func plainValue(v any) bool {
	if v == nil {
		return true
	}
	t := metadata.Indirect(reflect.TypeOf(v))
	if t.Kind() != reflect.Struct {
		return true
	}
	return t == timeType
}

func keyOr(key, fallback string) string {
	if key == "" {
		return fallback
	}
	return key
}
