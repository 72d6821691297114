package search

import (
	"reflect"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ResultMode controls the shape of each row returned by a search.
type ResultMode int

const (
	// ResultAuto returns entities when there are no fields, raw values for a
	// single field and arrays otherwise.
	ResultAuto ResultMode = iota
	// ResultEntity returns full entities; fields must be empty.
	ResultEntity
	// ResultSingle returns the raw value of the only field, or the entity when
	// no field is set.
	ResultSingle
	// ResultArray returns one []any per row, aligned with Fields.
	ResultArray
	// ResultMap returns one map[string]any per row keyed by field key.
	ResultMap
)

// String returns the mode name.
func (m ResultMode) String() string {
	switch m {
	case ResultAuto:
		return "AUTO"
	case ResultEntity:
		return "ENTITY"
	case ResultSingle:
		return "SINGLE"
	case ResultArray:
		return "ARRAY"
	case ResultMap:
		return "MAP"
	}
	return "UNKNOWN"
}

// FieldOperator selects a plain property or an aggregate over it.
type FieldOperator int

const (
	FieldProperty FieldOperator = iota
	FieldCount
	FieldCountDistinct
	FieldMax
	FieldMin
	FieldSum
	FieldAvg
)

// IsAggregate reports whether the operator aggregates rows.
func (o FieldOperator) IsAggregate() bool {
	return o != FieldProperty
}

// Field is one projected column.
type Field struct {
	Property string
	Key      string
	Operator FieldOperator
}

// KeyOrProperty returns the result key for the field.
func (f Field) KeyOrProperty() string {
	if f.Key != "" {
		return f.Key
	}
	return f.Property
}

// Sort is one ORDER BY term.
type Sort struct {
	Property   string
	Desc       bool
	IgnoreCase bool
}

// Result pairs one page of results with the unpaged row count.
type Result struct {
	Items      []any
	TotalCount int
}

// Search is an entity-agnostic query specification.
//
// Filters are combined with AND, or with OR when Disjunction is set. Fields,
// Sorts and Fetches keep call order; field order drives array shaping and
// sort order drives the ORDER BY clause.
type Search struct {
	Type        reflect.Type
	Filters     []*Filter
	Disjunction bool
	Fields      []Field
	Sorts       []Sort
	Fetches     []string
	FirstResult int
	MaxResults  int
	Page        int
	ResultMode  ResultMode
	Distinct    bool
}

// New returns a search over typ. Pointer types are reduced to their element
// type; a nil type leaves the search unexecutable until SetType is called.
func New(typ reflect.Type) *Search {
	s := &Search{}
	return s.SetType(typ)
}

// For returns a search over T.
func For[T any]() *Search {
	return New(reflect.TypeFor[T]())
}

// SetType sets the searched entity type.
func (s *Search) SetType(typ reflect.Type) *Search {
	for typ != nil && typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	s.Type = typ
	return s
}

// AddFilter appends filter. Nil filters are ignored.
func (s *Search) AddFilter(filter *Filter) *Search {
	if filter != nil {
		s.Filters = append(s.Filters, filter)
	}
	return s
}

// AddFilters appends each non-nil filter in order.
func (s *Search) AddFilters(filters ...*Filter) *Search {
	for _, f := range filters {
		s.AddFilter(f)
	}
	return s
}

// AddFilterEqual is shorthand for AddFilter(Equal(...)).
func (s *Search) AddFilterEqual(property string, value any) *Search {
	return s.AddFilter(Equal(property, value))
}

// AddFilterNotEqual is shorthand for AddFilter(NotEqual(...)).
func (s *Search) AddFilterNotEqual(property string, value any) *Search {
	return s.AddFilter(NotEqual(property, value))
}

// AddFilterLessThan is shorthand for AddFilter(LessThan(...)).
func (s *Search) AddFilterLessThan(property string, value any) *Search {
	return s.AddFilter(LessThan(property, value))
}

// AddFilterGreaterThan is shorthand for AddFilter(GreaterThan(...)).
func (s *Search) AddFilterGreaterThan(property string, value any) *Search {
	return s.AddFilter(GreaterThan(property, value))
}

// AddFilterLessOrEqual is shorthand for AddFilter(LessOrEqual(...)).
func (s *Search) AddFilterLessOrEqual(property string, value any) *Search {
	return s.AddFilter(LessOrEqual(property, value))
}

// AddFilterGreaterOrEqual is shorthand for AddFilter(GreaterOrEqual(...)).
func (s *Search) AddFilterGreaterOrEqual(property string, value any) *Search {
	return s.AddFilter(GreaterOrEqual(property, value))
}

// AddFilterLike is shorthand for AddFilter(Like(...)).
func (s *Search) AddFilterLike(property, pattern string) *Search {
	return s.AddFilter(Like(property, pattern))
}

// AddFilterILike is shorthand for AddFilter(ILike(...)).
func (s *Search) AddFilterILike(property, pattern string) *Search {
	return s.AddFilter(ILike(property, pattern))
}

// AddFilterIn is shorthand for AddFilter(In(...)).
func (s *Search) AddFilterIn(property string, values ...any) *Search {
	return s.AddFilter(In(property, values...))
}

// AddFilterNotIn is shorthand for AddFilter(NotIn(...)).
func (s *Search) AddFilterNotIn(property string, values ...any) *Search {
	return s.AddFilter(NotIn(property, values...))
}

// AddFilterNull is shorthand for AddFilter(IsNull(...)).
func (s *Search) AddFilterNull(property string) *Search {
	return s.AddFilter(IsNull(property))
}

// AddFilterNotNull is shorthand for AddFilter(NotNull(...)).
func (s *Search) AddFilterNotNull(property string) *Search {
	return s.AddFilter(NotNull(property))
}

// AddFilterEmpty is shorthand for AddFilter(Empty(...)).
func (s *Search) AddFilterEmpty(property string) *Search {
	return s.AddFilter(Empty(property))
}

// AddFilterNotEmpty is shorthand for AddFilter(NotEmpty(...)).
func (s *Search) AddFilterNotEmpty(property string) *Search {
	return s.AddFilter(NotEmpty(property))
}

// AddFilterAnd is shorthand for AddFilter(And(...)).
func (s *Search) AddFilterAnd(filters ...*Filter) *Search {
	return s.AddFilter(And(filters...))
}

// AddFilterOr is shorthand for AddFilter(Or(...)).
func (s *Search) AddFilterOr(filters ...*Filter) *Search {
	return s.AddFilter(Or(filters...))
}

// AddFilterNot is shorthand for AddFilter(Not(...)).
func (s *Search) AddFilterNot(filter *Filter) *Search {
	return s.AddFilter(Not(filter))
}

// AddFilterSome is shorthand for AddFilter(Some(...)).
func (s *Search) AddFilterSome(property string, filter *Filter) *Search {
	return s.AddFilter(Some(property, filter))
}

// AddFilterAll is shorthand for AddFilter(All(...)).
func (s *Search) AddFilterAll(property string, filter *Filter) *Search {
	return s.AddFilter(All(property, filter))
}

// AddFilterNone is shorthand for AddFilter(None(...)).
func (s *Search) AddFilterNone(property string, filter *Filter) *Search {
	return s.AddFilter(None(property, filter))
}

// AddFilterCustom is shorthand for AddFilter(Custom(...)).
func (s *Search) AddFilterCustom(expression string, args ...any) *Search {
	return s.AddFilter(Custom(expression, args...))
}

// AddField projects property, keyed by its own path.
func (s *Search) AddField(property string) *Search {
	s.Fields = append(s.Fields, Field{Property: property})
	return s
}

// AddFieldAs projects property under key.
func (s *Search) AddFieldAs(property, key string) *Search {
	s.Fields = append(s.Fields, Field{Property: property, Key: key})
	return s
}

// AddAggregate projects an aggregate over property. An empty property with
// FieldCount counts rows.
func (s *Search) AddAggregate(op FieldOperator, property, key string) *Search {
	s.Fields = append(s.Fields, Field{Property: property, Key: key, Operator: op})
	return s
}

// AddSort orders results by property.
func (s *Search) AddSort(property string, desc bool) *Search {
	s.Sorts = append(s.Sorts, Sort{Property: property, Desc: desc})
	return s
}

// AddSortAsc orders results by property, ascending.
func (s *Search) AddSortAsc(property string) *Search { return s.AddSort(property, false) }

// AddSortDesc orders results by property, descending.
func (s *Search) AddSortDesc(property string) *Search { return s.AddSort(property, true) }

// AddSortIgnoreCase sorts on the lower-cased property.
func (s *Search) AddSortIgnoreCase(property string, desc bool) *Search {
	s.Sorts = append(s.Sorts, Sort{Property: property, Desc: desc, IgnoreCase: true})
	return s
}

// AddFetch eagerly loads the association at path onto entity results.
func (s *Search) AddFetch(path string) *Search {
	s.Fetches = append(s.Fetches, path)
	return s
}

// SetFirstResult sets the zero-based offset of the first row. It wins over Page.
func (s *Search) SetFirstResult(n int) *Search { s.FirstResult = n; return s }

// SetMaxResults caps the number of rows. Zero means no limit.
func (s *Search) SetMaxResults(n int) *Search { s.MaxResults = n; return s }

// SetPage selects a zero-based page of MaxResults rows.
func (s *Search) SetPage(n int) *Search { s.Page = n; return s }

// SetResultMode sets the shape of each result row.
func (s *Search) SetResultMode(m ResultMode) *Search { s.ResultMode = m; return s }

// SetDistinct drops duplicate rows.
func (s *Search) SetDistinct(d bool) *Search { s.Distinct = d; return s }

// SetDisjunction joins the top-level filters with OR instead of AND.
func (s *Search) SetDisjunction(d bool) *Search { s.Disjunction = d; return s }

// Clear removes the filters. Fields, sorts, fetches, paging and result mode
// are kept; use Reset to return to a blank search over the same type.
func (s *Search) Clear() *Search {
	s.Filters = nil
	return s
}

// ClearFields removes the projected fields.
func (s *Search) ClearFields() *Search { s.Fields = nil; return s }

// ClearSorts removes the sort orders.
func (s *Search) ClearSorts() *Search { s.Sorts = nil; return s }

// ClearFetches removes the eager fetches.
func (s *Search) ClearFetches() *Search { s.Fetches = nil; return s }

// ClearPaging removes the offset, limit and page.
func (s *Search) ClearPaging() *Search {
	s.FirstResult, s.MaxResults, s.Page = 0, 0, 0
	return s
}

// Reset clears everything except the type.
func (s *Search) Reset() *Search {
	*s = Search{Type: s.Type}
	return s
}

// Copy returns a search that shares no slices with s. Filters themselves are
// shared.
func (s *Search) Copy() *Search {
	c := *s
	c.Filters = append([]*Filter(nil), s.Filters...)
	c.Fields = append([]Field(nil), s.Fields...)
	c.Sorts = append([]Sort(nil), s.Sorts...)
	c.Fetches = append([]string(nil), s.Fetches...)
	return &c
}

// FirstRow returns the offset of the first row, taking Page into account.
func (s *Search) FirstRow() int {
	if s.FirstResult > 0 {
		return s.FirstResult
	}
	if s.Page > 0 && s.MaxResults > 0 {
		return s.Page * s.MaxResults
	}
	return 0
}

// IsPaged reports whether the search restricts the returned rows.
func (s *Search) IsPaged() bool {
	return s.FirstRow() > 0 || s.MaxResults > 0
}

// Validate checks the structural bounds of the search. Property paths are
// checked later against the entity metadata.
func (s *Search) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.FirstResult, validation.Min(0)),
		validation.Field(&s.MaxResults, validation.Min(0)),
		validation.Field(&s.Page, validation.Min(0)),
		validation.Field(&s.ResultMode, validation.In(ResultAuto, ResultEntity, ResultSingle, ResultArray, ResultMap)),
	)
}
