package translator

import (
	"math"
	"reflect"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-generic-dao/metadata"
	"github.com/goliatone/go-generic-dao/search"
)

// Query is a compiled search. It is immutable and may be shared between
// goroutines, which is what makes it cacheable.
type Query struct {
	// Entity is the searched type.
	Entity *metadata.Entity
	// Mode is the resolved row shape: ResultEntity, ResultSingle, ResultArray
	// or ResultMap. ResultAuto never appears here.
	Mode search.ResultMode

	columns   []selected
	joins     []clause
	where     clause
	group     []clause
	order     []clause
	limit     int
	offset    int
	distinct  bool
	aggregate bool
	fetches   []string
}

// selected is one SELECT item and the Go type its value scans into.
type selected struct {
	key  string
	expr clause
	scan reflect.Type
}

// Keys returns the result keys of the projected fields in order.
func (q *Query) Keys() []string {
	keys := make([]string, len(q.columns))
	for i, c := range q.columns {
		keys[i] = c.key
	}
	return keys
}

// Fetches returns the association paths to load onto entity results.
func (q *Query) Fetches() []string {
	return q.fetches
}

// Paged reports whether the query restricts the returned rows.
func (q *Query) Paged() bool {
	return q.limit > 0 || q.offset > 0
}

// Select builds the result query on db.
func (q *Query) Select(db bun.IDB) *bun.SelectQuery {
	sq := q.base(db)
	if len(q.group) > 0 {
		q.applyGroup(sq)
	}
	q.applyOrder(sq)
	q.applyPaging(db, sq)
	return sq
}

// Count builds the row count query: same joins and filters, no paging, no
// ordering. Aggregate and distinct projections are counted over a subquery.
func (q *Query) Count(db bun.IDB) *bun.SelectQuery {
	if q.aggregate || (q.distinct && q.Mode != search.ResultEntity) {
		inner := q.base(db)
		q.applyGroup(inner)
		return db.NewSelect().
			TableExpr("(?) AS ?", inner, bun.Ident("_count")).
			ColumnExpr("count(*)")
	}

	sq := db.NewSelect().TableExpr("? AS ?", bun.Ident(q.Entity.Table), bun.Ident(q.Entity.Alias))
	if q.distinct {
		sq.ColumnExpr("count(DISTINCT ?.?)", bun.Ident(q.Entity.Alias), bun.Ident(q.Entity.ID.Column))
	} else {
		sq.ColumnExpr("count(*)")
	}
	q.applyFilter(sq)
	return sq
}

// Criteria applies the joins, filters, ordering and paging of q to a query
// built elsewhere, such as a go-repository-bun List call. The external
// query must select from the entity table under the entity alias. Paging is
// always set, so an unpaged search clears any default limit of that query.
func (q *Query) Criteria(sq *bun.SelectQuery) *bun.SelectQuery {
	q.applyFilter(sq)
	q.applyOrder(sq)
	limit := q.limit
	if limit == 0 && q.offset > 0 {
		limit = math.MaxInt32
	}
	return sq.Limit(limit).Offset(q.offset)
}

// ScanRow reads the current row in the shape of Mode.
func (q *Query) ScanRow(rows metadata.RowScanner) (any, error) {
	if q.Mode == search.ResultEntity {
		return q.Entity.Scan(rows)
	}

	targets := make([]reflect.Value, len(q.columns))
	dest := make([]any, len(q.columns))
	for i, c := range q.columns {
		targets[i] = reflect.New(reflect.PointerTo(c.scan))
		dest[i] = targets[i].Interface()
	}
	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}

	values := make([]any, len(targets))
	for i, t := range targets {
		if ptr := t.Elem(); !ptr.IsNil() {
			values[i] = ptr.Elem().Interface()
		}
	}

	switch q.Mode {
	case search.ResultSingle:
		return values[0], nil
	case search.ResultMap:
		row := make(map[string]any, len(values))
		for i, c := range q.columns {
			row[c.key] = values[i]
		}
		return row, nil
	}
	return values, nil
}

func (q *Query) base(db bun.IDB) *bun.SelectQuery {
	sq := db.NewSelect().TableExpr("? AS ?", bun.Ident(q.Entity.Table), bun.Ident(q.Entity.Alias))
	for _, c := range q.columns {
		sq.ColumnExpr(c.expr.query, c.expr.args...)
	}
	if q.distinct {
		sq.Distinct()
	}
	q.applyFilter(sq)
	return sq
}

func (q *Query) applyFilter(sq *bun.SelectQuery) {
	for _, j := range q.joins {
		sq.Join(j.query, j.args...)
	}
	if !q.where.isEmpty() {
		sq.Where(q.where.query, q.where.args...)
	}
}

func (q *Query) applyGroup(sq *bun.SelectQuery) {
	for _, g := range q.group {
		sq.GroupExpr(g.query, g.args...)
	}
}

func (q *Query) applyOrder(sq *bun.SelectQuery) {
	for _, o := range q.order {
		sq.OrderExpr(o.query, o.args...)
	}
}

func (q *Query) applyPaging(db bun.IDB, sq *bun.SelectQuery) {
	limit := q.limit
	if limit == 0 && q.offset > 0 && db.Dialect().Name() == dialect.SQLite {
		// sqlite rejects OFFSET without LIMIT
		limit = math.MaxInt32
	}
	if limit > 0 {
		sq.Limit(limit)
	}
	if q.offset > 0 {
		sq.Offset(q.offset)
	}
}
