package metadata

import (
	"reflect"
	"strings"

	"github.com/goliatone/go-generic-dao/daoerrors"
)

// Kind classifies a property.
type Kind int

const (
	// KindColumn is a plain mapped column.
	KindColumn Kind = iota
	// KindReference is a many-to-one association (bun rel:belongs-to).
	KindReference
	// KindCollection is a one-to-many association (bun rel:has-many).
	KindCollection
)

func (k Kind) String() string {
	switch k {
	case KindColumn:
		return "column"
	case KindReference:
		return "reference"
	case KindCollection:
		return "collection"
	}
	return "unknown"
}

// Property describes one mapped struct field.
//
// For references Column is the foreign key on the owning table; JoinColumn
// always names the column on the owning side of an association and
// TargetColumn the column on the associated table.
type Property struct {
	Name          string
	GoName        string
	Column        string
	Kind          Kind
	Type          reflect.Type
	Target        reflect.Type
	JoinColumn    string
	TargetColumn  string
	PK            bool
	AutoIncrement bool

	index []int
}

// BaseType returns the field type without pointers.
func (p *Property) BaseType() reflect.Type {
	return Indirect(p.Type)
}

// IsString reports whether the property holds a string.
func (p *Property) IsString() bool {
	return p.Kind == KindColumn && p.BaseType().Kind() == reflect.String
}

// Nullable reports whether the field can hold nil.
func (p *Property) Nullable() bool {
	switch p.Type.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return false
}

// Field returns the struct field for p inside the entity value elem.
func (p *Property) Field(elem reflect.Value) reflect.Value {
	return elem.FieldByIndex(p.index)
}

// Entity is the schema descriptor of one mapped struct type. It is built once
// per type by the Registry and is read-only afterwards.
type Entity struct {
	Type  reflect.Type
	Name  string
	Key   string
	Table string
	Alias string
	ID    *Property

	properties []*Property
	columns    []*Property
	byName     map[string]*Property
	byColumn   map[string]*Property
}

// Properties returns all properties in declaration order.
func (e *Entity) Properties() []*Property {
	return e.properties
}

// Columns returns the column properties in declaration order; this is the
// SELECT and scan order for whole entities.
func (e *Entity) Columns() []*Property {
	return e.columns
}

// Property looks up a property by name, falling back to a case-insensitive
// match.
func (e *Entity) Property(name string) (*Property, bool) {
	if p, ok := e.byName[name]; ok {
		return p, true
	}
	for _, p := range e.properties {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return nil, false
}

// ColumnProperty returns the column property mapped to column.
func (e *Entity) ColumnProperty(column string) (*Property, bool) {
	p, ok := e.byColumn[column]
	return p, ok
}

// New allocates a zero entity and returns it as a pointer.
func (e *Entity) New() any {
	return reflect.New(e.Type).Interface()
}

// Elem checks that v is a non-nil pointer to the entity type and returns the
// pointed-to struct.
func (e *Entity) Elem(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return reflect.Value{}, daoerrors.NullArgument("entity")
	}
	if rv.Kind() != reflect.Pointer || rv.Type().Elem() != e.Type {
		return reflect.Value{}, daoerrors.InvalidArgument("expected *%s, got %T", e.Name, v)
	}
	if rv.IsNil() {
		return reflect.Value{}, daoerrors.NullArgument("entity")
	}
	return rv.Elem(), nil
}

// IDOf returns the identifier of v.
func (e *Entity) IDOf(v any) (any, error) {
	elem, err := e.Elem(v)
	if err != nil {
		return nil, err
	}
	return e.ID.Field(elem).Interface(), nil
}

// HasZeroID reports whether v has no identifier yet.
func (e *Entity) HasZeroID(v any) bool {
	elem, err := e.Elem(v)
	if err != nil {
		return true
	}
	return IsZero(e.ID.Field(elem))
}

// SetID assigns id to v, converting it to the identifier type.
func (e *Entity) SetID(v any, id any) error {
	elem, err := e.Elem(v)
	if err != nil {
		return err
	}
	return assign(e.ID.Field(elem), id)
}

// NormalizeID converts id to the identifier type so equal ids compare equal
// whatever their dynamic type.
func (e *Entity) NormalizeID(id any) (any, error) {
	if id == nil {
		return nil, daoerrors.NullArgument("id")
	}
	return Convert(id, e.ID.BaseType())
}

// ScanTargets returns pointers to the column fields of v in Columns order.
func (e *Entity) ScanTargets(v any) []any {
	elem := reflect.ValueOf(v).Elem()
	targets := make([]any, len(e.columns))
	for i, p := range e.columns {
		targets[i] = p.Field(elem).Addr().Interface()
	}
	return targets
}

// ColumnValues returns the column values of v in Columns order.
func (e *Entity) ColumnValues(v any) []any {
	elem := reflect.ValueOf(v).Elem()
	values := make([]any, len(e.columns))
	for i, p := range e.columns {
		values[i] = p.Field(elem).Interface()
	}
	return values
}

// RowScanner is satisfied by *sql.Rows and *sql.Row.
type RowScanner interface {
	Scan(dest ...any) error
}

// Scan reads the current row into a new entity.
func (e *Entity) Scan(rows RowScanner) (any, error) {
	v := e.New()
	if err := rows.Scan(e.ScanTargets(v)...); err != nil {
		return nil, err
	}
	return v, nil
}

// Value returns the field of p inside entity v.
func (e *Entity) Value(v any, p *Property) (reflect.Value, error) {
	elem, err := e.Elem(v)
	if err != nil {
		return reflect.Value{}, err
	}
	return p.Field(elem), nil
}

func (e *Entity) add(p *Property) error {
	if _, dup := e.byName[p.Name]; dup {
		return daoerrors.InvalidArgument("%s: duplicate property %q", e.Name, p.Name)
	}
	e.byName[p.Name] = p
	e.properties = append(e.properties, p)
	if p.Kind == KindColumn {
		e.columns = append(e.columns, p)
		e.byColumn[p.Column] = p
	}
	return nil
}
