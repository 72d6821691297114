package search

import (
	"fmt"
	"reflect"
)

// Operator identifies the predicate a Filter applies.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpLessThan
	OpGreaterThan
	OpLessOrEqual
	OpGreaterOrEqual
	OpLike
	OpILike
	OpIn
	OpNotIn
	OpNull
	OpNotNull
	OpEmpty
	OpNotEmpty
	OpAnd
	OpOr
	OpNot
	OpSome
	OpAll
	OpNone
	OpCustom
)

var operatorNames = [...]string{
	OpEqual:          "EQUAL",
	OpNotEqual:       "NOT_EQUAL",
	OpLessThan:       "LESS_THAN",
	OpGreaterThan:    "GREATER_THAN",
	OpLessOrEqual:    "LESS_OR_EQUAL",
	OpGreaterOrEqual: "GREATER_OR_EQUAL",
	OpLike:           "LIKE",
	OpILike:          "ILIKE",
	OpIn:             "IN",
	OpNotIn:          "NOT_IN",
	OpNull:           "NULL",
	OpNotNull:        "NOT_NULL",
	OpEmpty:          "EMPTY",
	OpNotEmpty:       "NOT_EMPTY",
	OpAnd:            "AND",
	OpOr:             "OR",
	OpNot:            "NOT",
	OpSome:           "SOME",
	OpAll:            "ALL",
	OpNone:           "NONE",
	OpCustom:         "CUSTOM",
}

// String returns the operator name, as used in filter descriptions.
func (o Operator) String() string {
	if o < 0 || int(o) >= len(operatorNames) {
		return fmt.Sprintf("Operator(%d)", int(o))
	}
	return operatorNames[o]
}

// IsJunction reports whether o combines child filters (AND, OR, NOT).
func (o Operator) IsJunction() bool {
	return o == OpAnd || o == OpOr || o == OpNot
}

// IsCollection reports whether o quantifies over a collection property.
func (o Operator) IsCollection() bool {
	return o == OpSome || o == OpAll || o == OpNone
}

// TakesNoValue reports whether o ignores Filter.Value.
func (o Operator) TakesNoValue() bool {
	switch o {
	case OpNull, OpNotNull, OpEmpty, OpNotEmpty:
		return true
	}
	return false
}

// Filter is one predicate, or one boolean node, of a Search.
//
// Junctions hold their children in Value: []*Filter for AND/OR and *Filter for
// NOT. SOME, ALL and NONE hold the element filter in Value and the collection
// path in Property.
type Filter struct {
	Property string
	Operator Operator
	Value    any
}

func newFilter(op Operator, property string, value any) *Filter {
	return &Filter{Property: property, Operator: op, Value: value}
}

// Equal matches property = value.
func Equal(property string, value any) *Filter { return newFilter(OpEqual, property, value) }

// NotEqual matches property <> value.
func NotEqual(property string, value any) *Filter { return newFilter(OpNotEqual, property, value) }

// LessThan matches property < value.
func LessThan(property string, value any) *Filter { return newFilter(OpLessThan, property, value) }

// GreaterThan matches property > value.
func GreaterThan(property string, value any) *Filter {
	return newFilter(OpGreaterThan, property, value)
}

// LessOrEqual matches property <= value.
func LessOrEqual(property string, value any) *Filter {
	return newFilter(OpLessOrEqual, property, value)
}

// GreaterOrEqual matches property >= value.
func GreaterOrEqual(property string, value any) *Filter {
	return newFilter(OpGreaterOrEqual, property, value)
}

// Like matches property against an SQL LIKE pattern.
func Like(property string, pattern string) *Filter { return newFilter(OpLike, property, pattern) }

// ILike is a case-insensitive Like.
func ILike(property string, pattern string) *Filter { return newFilter(OpILike, property, pattern) }

// In matches property against any of values. A single slice argument is
// used as the value list.
func In(property string, values ...any) *Filter {
	return newFilter(OpIn, property, collapse(values))
}

// NotIn matches property against none of values.
func NotIn(property string, values ...any) *Filter {
	return newFilter(OpNotIn, property, collapse(values))
}

// IsNull matches a null property.
func IsNull(property string) *Filter { return newFilter(OpNull, property, nil) }

// NotNull matches a non-null property.
func NotNull(property string) *Filter { return newFilter(OpNotNull, property, nil) }

// Empty matches null or empty string values, or collections with no elements.
func Empty(property string) *Filter { return newFilter(OpEmpty, property, nil) }

// NotEmpty negates Empty.
func NotEmpty(property string) *Filter { return newFilter(OpNotEmpty, property, nil) }

// And matches when all filters match. Nil filters are dropped.
func And(filters ...*Filter) *Filter { return newFilter(OpAnd, "", compact(filters)) }

// Or matches when any of filters matches. Nil filters are dropped.
func Or(filters ...*Filter) *Filter { return newFilter(OpOr, "", compact(filters)) }

// Not negates filter.
func Not(filter *Filter) *Filter { return newFilter(OpNot, "", filter) }

// Some matches when at least one element of the collection satisfies filter.
func Some(property string, filter *Filter) *Filter { return newFilter(OpSome, property, filter) }

// All matches when every element of the collection satisfies filter.
func All(property string, filter *Filter) *Filter { return newFilter(OpAll, property, filter) }

// None matches when no element of the collection satisfies filter.
func None(property string, filter *Filter) *Filter { return newFilter(OpNone, property, filter) }

// Custom embeds a raw SQL expression. Property paths are written as {path}
// and values as ?, bound in order from args.
func Custom(expression string, args ...any) *Filter {
	return newFilter(OpCustom, expression, args)
}

// Children returns the nested filters of a junction or collection filter.
func (f *Filter) Children() []*Filter {
	if f == nil {
		return nil
	}
	switch v := f.Value.(type) {
	case []*Filter:
		return v
	case *Filter:
		if v == nil {
			return nil
		}
		return []*Filter{v}
	}
	return nil
}

// Add appends filters to an AND or OR filter.
func (f *Filter) Add(filters ...*Filter) *Filter {
	if f.Operator != OpAnd && f.Operator != OpOr {
		return f
	}
	children, _ := f.Value.([]*Filter)
	f.Value = append(children, compact(filters)...)
	return f
}

// IsEmpty reports whether f places no constraint: a nil filter or a junction
// whose children are all empty.
func (f *Filter) IsEmpty() bool {
	if f == nil {
		return true
	}
	if f.Operator.IsJunction() {
		for _, child := range f.Children() {
			if !child.IsEmpty() {
				return false
			}
		}
		return true
	}
	return false
}

// Values returns the value list of an IN / NOT IN filter.
func (f *Filter) Values() []any {
	return Flatten(f.Value)
}

// Flatten expands a slice or array value into its elements. Byte slices and
// scalars come back as a single element.
func Flatten(value any) []any {
	if value == nil {
		return nil
	}
	if values, ok := value.([]any); ok {
		return values
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return []any{value}
		}
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			// fixed byte arrays are identifiers (uuid.UUID), not lists
			return []any{value}
		}
	default:
		return []any{value}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// String describes the filter for logs and test output.
func (f *Filter) String() string {
	if f == nil {
		return "<nil>"
	}
	switch f.Operator {
	case OpAnd, OpOr:
		return fmt.Sprintf("%s%v", f.Operator, f.Children())
	case OpNot:
		return fmt.Sprintf("NOT(%v)", f.Value)
	}
	return fmt.Sprintf("%s %s %v", f.Property, f.Operator, f.Value)
}

func collapse(values []any) any {
	if len(values) == 1 {
		if rv := reflect.ValueOf(values[0]); rv.IsValid() && rv.Kind() == reflect.Slice {
			return values[0]
		}
	}
	return values
}

func compact(filters []*Filter) []*Filter {
	out := make([]*Filter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	return out
}
