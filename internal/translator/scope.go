package translator

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-generic-dao/daoerrors"
	"github.com/goliatone/go-generic-dao/metadata"
	"github.com/goliatone/go-generic-dao/search"
)

// clause is an SQL fragment with bun placeholders and its arguments.
type clause struct {
	query string
	args  []any
}

func (c clause) isEmpty() bool { return c.query == "" }

func column(alias, name string) clause {
	return clause{query: "?.?", args: []any{bun.Ident(alias), bun.Ident(name)}}
}

// wrap returns format with %s replaced by the fragment, keeping its args.
func (c clause) wrap(format string, extra ...any) clause {
	return clause{query: fmt.Sprintf(format, c.query), args: append(append([]any(nil), c.args...), extra...)}
}

type builder struct {
	sb   strings.Builder
	args []any
}

func (b *builder) write(s string, args ...any) {
	b.sb.WriteString(s)
	b.args = append(b.args, args...)
}

func (b *builder) append(c clause) {
	b.write(c.query, c.args...)
}

func (b *builder) clause() clause {
	return clause{query: b.sb.String(), args: b.args}
}

// scope renders paths relative to one table alias. The root scope owns the
// query's joins; every EXISTS subquery opens a scope with its own joins.
type scope struct {
	registry *metadata.Registry
	entity   *metadata.Entity
	alias    string
	joins    []clause
	aliases  map[string]string
	seq      *int
}

func newScope(registry *metadata.Registry, entity *metadata.Entity, alias string, seq *int) *scope {
	return &scope{
		registry: registry,
		entity:   entity,
		alias:    alias,
		aliases:  make(map[string]string),
		seq:      seq,
	}
}

func (sc *scope) nextAlias(prefix string) string {
	*sc.seq++
	return fmt.Sprintf("%s%d", prefix, *sc.seq)
}

// target is a resolved path: the property it ends on and the column that
// holds its value.
type target struct {
	alias  string
	column string
	prop   *metadata.Property
}

func (t target) clause() clause {
	return column(t.alias, t.column)
}

// locate joins every reference in chain but the last step. Collections are
// not joined; callers split them off first. A trailing identifier of a
// reference ("father.id") is read from the foreign key without a join.
func (sc *scope) locate(path string, chain []*metadata.Property) (target, error) {
	alias := sc.alias
	last := chain[len(chain)-1]
	for i, p := range chain[:len(chain)-1] {
		if p.Kind != metadata.KindReference {
			return target{}, daoerrors.InvalidSearch(path, "cannot cross collection %q here", p.Name)
		}
		if i == len(chain)-2 && last.Kind == metadata.KindColumn && last.Column == p.TargetColumn {
			return target{alias: alias, column: p.JoinColumn, prop: last}, nil
		}
		joined, err := sc.join(chain[:i+1], alias, p)
		if err != nil {
			return target{}, daoerrors.InvalidSearch(path, "%v", err)
		}
		alias = joined
	}
	if last.Kind != metadata.KindColumn {
		return target{alias: alias, column: last.JoinColumn, prop: last}, nil
	}
	return target{alias: alias, column: last.Column, prop: last}, nil
}

// join returns the alias of the LEFT JOIN for a path prefix, adding it on
// first use.
func (sc *scope) join(prefix []*metadata.Property, parent string, p *metadata.Property) (string, error) {
	key := pathOf(prefix)
	if alias, ok := sc.aliases[key]; ok {
		return alias, nil
	}
	next, err := sc.registry.Entity(p.Target)
	if err != nil {
		return "", err
	}
	alias := sc.nextAlias("j")
	sc.aliases[key] = alias
	sc.joins = append(sc.joins, clause{
		query: "LEFT JOIN ? AS ? ON ?.? = ?.?",
		args: []any{
			bun.Ident(next.Table), bun.Ident(alias),
			bun.Ident(parent), bun.Ident(p.JoinColumn),
			bun.Ident(alias), bun.Ident(p.TargetColumn),
		},
	})
	return alias, nil
}

// path resolves a projected or sorted path; collections are rejected.
func (sc *scope) path(path string) (target, error) {
	chain, err := sc.registry.Resolve(sc.entity, path)
	if err != nil {
		return target{}, err
	}
	if firstCollection(chain) >= 0 {
		return target{}, daoerrors.InvalidSearch(path, "collections cannot be projected or sorted")
	}
	return sc.locate(path, chain)
}

// junction renders filters joined by sep. Empty children are dropped; the
// result is empty when nothing remains.
func (sc *scope) junction(filters []*search.Filter, sep string) (clause, error) {
	parts := make([]clause, 0, len(filters))
	for _, f := range filters {
		c, err := sc.filter(f)
		if err != nil {
			return clause{}, err
		}
		if !c.isEmpty() {
			parts = append(parts, c)
		}
	}
	switch len(parts) {
	case 0:
		return clause{}, nil
	case 1:
		return parts[0], nil
	}
	var b builder
	b.write("(")
	for i, c := range parts {
		if i > 0 {
			b.write(sep)
		}
		b.append(c)
	}
	b.write(")")
	return b.clause(), nil
}

func (sc *scope) filter(f *search.Filter) (clause, error) {
	if f == nil {
		return clause{}, nil
	}
	switch f.Operator {
	case search.OpAnd:
		return sc.junction(f.Children(), " AND ")
	case search.OpOr:
		return sc.junction(f.Children(), " OR ")
	case search.OpNot:
		inner, err := sc.junction(f.Children(), " AND ")
		if err != nil || inner.isEmpty() {
			return clause{}, err
		}
		return inner.wrap("NOT (%s)"), nil
	case search.OpCustom:
		return sc.custom(f)
	}

	if f.Property == "" {
		return clause{}, daoerrors.InvalidSearch("", "%s filter needs a property", f.Operator)
	}
	chain, err := sc.registry.Resolve(sc.entity, f.Property)
	if err != nil {
		return clause{}, err
	}

	// a collection inside the path quantifies the rest of the path with SOME
	if k := firstCollection(chain); k >= 0 && k < len(chain)-1 {
		inner := &search.Filter{Property: pathOf(chain[k+1:]), Operator: f.Operator, Value: f.Value}
		if f.Operator.IsCollection() {
			return clause{}, daoerrors.InvalidSearch(f.Property, "%s needs a collection path", f.Operator)
		}
		return sc.exists(f.Property, chain[:k+1], search.OpSome, inner)
	}

	last := chain[len(chain)-1]
	if last.Kind == metadata.KindCollection {
		return sc.collection(f, chain)
	}
	if f.Operator.IsCollection() {
		return clause{}, daoerrors.InvalidSearch(f.Property, "%s needs a collection, %s is not one", f.Operator, last.Name)
	}

	t, err := sc.locate(f.Property, chain)
	if err != nil {
		return clause{}, err
	}
	col := t.clause()

	switch f.Operator {
	case search.OpNull:
		return col.wrap("%s IS NULL"), nil
	case search.OpNotNull:
		return col.wrap("%s IS NOT NULL"), nil
	case search.OpEmpty:
		if t.prop.IsString() {
			return clause{
				query: fmt.Sprintf("(%s IS NULL OR %s = '')", col.query, col.query),
				args:  append(append([]any(nil), col.args...), col.args...),
			}, nil
		}
		return col.wrap("%s IS NULL"), nil
	case search.OpNotEmpty:
		if t.prop.IsString() {
			return clause{
				query: fmt.Sprintf("(%s IS NOT NULL AND %s <> '')", col.query, col.query),
				args:  append(append([]any(nil), col.args...), col.args...),
			}, nil
		}
		return col.wrap("%s IS NOT NULL"), nil
	case search.OpIn, search.OpNotIn:
		values := f.Values()
		if len(values) == 0 {
			if f.Operator == search.OpIn {
				return clause{query: "1 = 0"}, nil
			}
			return clause{query: "1 = 1"}, nil
		}
		converted := make([]any, len(values))
		for i, v := range values {
			if converted[i], err = sc.value(f.Property, t.prop, v); err != nil {
				return clause{}, err
			}
		}
		if f.Operator == search.OpIn {
			return col.wrap("%s IN (?)", bun.In(converted)), nil
		}
		return col.wrap("%s NOT IN (?)", bun.In(converted)), nil
	}

	value, err := sc.value(f.Property, t.prop, f.Value)
	if err != nil {
		return clause{}, err
	}
	switch f.Operator {
	case search.OpEqual:
		if value == nil {
			return col.wrap("%s IS NULL"), nil
		}
		return col.wrap("%s = ?", value), nil
	case search.OpNotEqual:
		if value == nil {
			return col.wrap("%s IS NOT NULL"), nil
		}
		return col.wrap("%s <> ?", value), nil
	}

	if value == nil {
		return clause{}, daoerrors.InvalidSearch(f.Property, "%s needs a value", f.Operator)
	}
	switch f.Operator {
	case search.OpLessThan:
		return col.wrap("%s < ?", value), nil
	case search.OpGreaterThan:
		return col.wrap("%s > ?", value), nil
	case search.OpLessOrEqual:
		return col.wrap("%s <= ?", value), nil
	case search.OpGreaterOrEqual:
		return col.wrap("%s >= ?", value), nil
	case search.OpLike, search.OpILike:
		pattern, ok := value.(string)
		if !ok {
			return clause{}, daoerrors.InvalidSearch(f.Property, "%s needs a string pattern, got %T", f.Operator, value)
		}
		if f.Operator == search.OpILike {
			return col.wrap("lower(%s) LIKE lower(?)", pattern), nil
		}
		return col.wrap("%s LIKE ?", pattern), nil
	}
	return clause{}, daoerrors.InvalidSearch(f.Property, "unsupported operator %s", f.Operator)
}

// collection renders a filter whose path ends on a collection.
func (sc *scope) collection(f *search.Filter, chain []*metadata.Property) (clause, error) {
	switch f.Operator {
	case search.OpSome, search.OpAll, search.OpNone:
		inner, _ := f.Value.(*search.Filter)
		return sc.exists(f.Property, chain, f.Operator, inner)
	case search.OpEmpty, search.OpNull:
		return sc.exists(f.Property, chain, search.OpNone, nil)
	case search.OpNotEmpty, search.OpNotNull:
		return sc.exists(f.Property, chain, search.OpSome, nil)
	}
	return clause{}, daoerrors.InvalidSearch(f.Property, "%s cannot be applied to a collection", f.Operator)
}

// exists renders a correlated subquery over the collection at the end of
// chain. SOME and NONE test for a matching element; ALL tests that no element
// fails the filter.
func (sc *scope) exists(path string, chain []*metadata.Property, op search.Operator, inner *search.Filter) (clause, error) {
	owner, err := sc.locate(path, chain)
	if err != nil {
		return clause{}, err
	}
	p := owner.prop
	element, err := sc.registry.Entity(p.Target)
	if err != nil {
		return clause{}, daoerrors.InvalidSearch(path, "%v", err)
	}

	sub := newScope(sc.registry, element, sc.nextAlias("s"), sc.seq)
	cond, err := sub.filter(inner)
	if err != nil {
		return clause{}, err
	}
	if op == search.OpAll {
		if cond.isEmpty() {
			return clause{}, nil
		}
		cond = cond.wrap("NOT (%s)")
	}

	var b builder
	if op == search.OpSome {
		b.write("EXISTS (")
	} else {
		b.write("NOT EXISTS (")
	}
	b.write("SELECT 1 FROM ? AS ?", bun.Ident(element.Table), bun.Ident(sub.alias))
	for _, j := range sub.joins {
		b.write(" ")
		b.append(j)
	}
	b.write(" WHERE ?.? = ?.?", bun.Ident(sub.alias), bun.Ident(p.TargetColumn), bun.Ident(owner.alias), bun.Ident(p.JoinColumn))
	if !cond.isEmpty() {
		b.write(" AND ")
		b.append(cond)
	}
	b.write(")")
	return b.clause(), nil
}

// custom expands {path} placeholders into columns and binds ? in order.
// Quoted literals are copied as they are.
func (sc *scope) custom(f *search.Filter) (clause, error) {
	expr := strings.TrimSpace(f.Property)
	if expr == "" {
		return clause{}, daoerrors.InvalidSearch("", "custom filter needs an expression")
	}
	args, _ := f.Value.([]any)

	var b builder
	n := 0
	for i := 0; i < len(expr); {
		switch expr[i] {
		case '{':
			end := strings.IndexByte(expr[i:], '}')
			if end < 0 {
				return clause{}, daoerrors.InvalidSearch(expr, "unterminated property placeholder")
			}
			path := strings.TrimSpace(expr[i+1 : i+end])
			t, err := sc.path(path)
			if err != nil {
				return clause{}, err
			}
			b.append(t.clause())
			i += end + 1
		case '\'', '"':
			end := closingQuote(expr, i)
			if end < 0 {
				return clause{}, daoerrors.InvalidSearch(expr, "unterminated quoted literal")
			}
			// bound raw so bun does not read ? inside the literal
			b.write("?", bun.Safe(expr[i:end+1]))
			i = end + 1
		case '?':
			if n >= len(args) {
				return clause{}, daoerrors.InvalidSearch(expr, "expression has more placeholders than values")
			}
			b.write("?", args[n])
			n++
			i++
		default:
			b.sb.WriteByte(expr[i])
			i++
		}
	}
	if n != len(args) {
		return clause{}, daoerrors.InvalidSearch(expr, "expression binds %d of %d values", n, len(args))
	}
	return b.clause().wrap("(%s)"), nil
}

// closingQuote returns the index of the quote ending the span opened at
// start, skipping doubled quotes, or -1.
func closingQuote(expr string, start int) int {
	q := expr[start]
	for j := start + 1; j < len(expr); j++ {
		if expr[j] != q {
			continue
		}
		if j+1 < len(expr) && expr[j+1] == q {
			j++
			continue
		}
		return j
	}
	return -1
}

// value replaces an entity on a reference path by its identifier. Other
// values pass through unchanged.
func (sc *scope) value(path string, p *metadata.Property, v any) (any, error) {
	if v == nil || p.Kind != metadata.KindReference {
		return v, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, nil
		}
		rv = rv.Elem()
	}
	if rv.Type() != p.Target {
		return v, nil
	}
	target, err := sc.registry.Entity(p.Target)
	if err != nil {
		return nil, daoerrors.InvalidSearch(path, "%v", err)
	}
	id := target.ID.Field(rv)
	if metadata.IsZero(id) {
		return nil, daoerrors.InvalidSearch(path, "%s value has no identifier", target.Name)
	}
	return reflect.Indirect(id).Interface(), nil
}

func firstCollection(chain []*metadata.Property) int {
	for i, p := range chain {
		if p.Kind == metadata.KindCollection {
			return i
		}
	}
	return -1
}

func pathOf(chain []*metadata.Property) string {
	names := make([]string, len(chain))
	for i, p := range chain {
		names[i] = p.Name
	}
	return strings.Join(names, ".")
}
