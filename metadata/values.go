package metadata

import (
	"math"
	"reflect"

	"github.com/google/uuid"

	"github.com/goliatone/go-generic-dao/daoerrors"
)

var uuidType = reflect.TypeFor[uuid.UUID]()

// Indirect strips pointer levels from t.
func Indirect(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// IsNil reports whether v holds a nil pointer, slice, map or interface.
func IsNil(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// IsZero reports whether v is nil or the zero value of its type.
func IsZero(v reflect.Value) bool {
	return IsNil(v) || v.IsZero()
}

// Convert converts v to t. It accepts the conversions a caller reasonably
// expects for identifiers and filter values: pointers are dereferenced,
// numbers convert between kinds when no precision is lost, strings and
// 16 byte slices become uuid.UUID, and named string or number types convert
// to their underlying kind.
func Convert(v any, t reflect.Type) (any, error) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, daoerrors.NullArgument("value")
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return nil, daoerrors.NullArgument("value")
	}
	if rv.Type() == t {
		return rv.Interface(), nil
	}

	if t == uuidType {
		switch x := rv.Interface().(type) {
		case string:
			id, err := uuid.Parse(x)
			if err != nil {
				return nil, daoerrors.InvalidArgument("invalid uuid %q: %v", x, err)
			}
			return id, nil
		case []byte:
			id, err := uuid.FromBytes(x)
			if err != nil {
				return nil, daoerrors.InvalidArgument("invalid uuid bytes: %v", err)
			}
			return id, nil
		}
	}

	from := rv.Kind()
	switch {
	case isInt(from) && isInt(t.Kind()), isInt(from) && isUint(t.Kind()),
		isUint(from) && isInt(t.Kind()), isUint(from) && isUint(t.Kind()):
		out := rv.Convert(t)
		if !sameNumber(rv, out) {
			return nil, daoerrors.InvalidArgument("%v overflows %s", v, t)
		}
		return out.Interface(), nil
	case isFloat(from) && (isInt(t.Kind()) || isUint(t.Kind())):
		f := rv.Float()
		if f != math.Trunc(f) {
			return nil, daoerrors.InvalidArgument("%v is not an integer", v)
		}
		out := rv.Convert(t)
		if float64(toInt64(out)) != f {
			return nil, daoerrors.InvalidArgument("%v overflows %s", v, t)
		}
		return out.Interface(), nil
	case (isInt(from) || isUint(from) || isFloat(from)) && isFloat(t.Kind()):
		return rv.Convert(t).Interface(), nil
	case from == reflect.String && t.Kind() == reflect.String:
		return rv.Convert(t).Interface(), nil
	case rv.Type().AssignableTo(t):
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out.Interface(), nil
	case from == t.Kind() && rv.Type().ConvertibleTo(t):
		return rv.Convert(t).Interface(), nil
	}
	return nil, daoerrors.InvalidArgument("cannot convert %T to %s", v, t)
}

// assign stores v into field, converting it and allocating pointers as
// needed. A nil v resets the field.
func assign(field reflect.Value, v any) error {
	if v == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	if field.Kind() == reflect.Pointer {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			field.Set(reflect.Zero(field.Type()))
			return nil
		}
		converted, err := Convert(v, field.Type().Elem())
		if err != nil {
			return err
		}
		ptr := reflect.New(field.Type().Elem())
		ptr.Elem().Set(reflect.ValueOf(converted))
		field.Set(ptr)
		return nil
	}
	converted, err := Convert(v, field.Type())
	if err != nil {
		return err
	}
	field.Set(reflect.ValueOf(converted))
	return nil
}

func isInt(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

func isUint(k reflect.Kind) bool {
	return k >= reflect.Uint && k <= reflect.Uintptr
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func toInt64(v reflect.Value) int64 {
	if isUint(v.Kind()) {
		return int64(v.Uint())
	}
	return v.Int()
}

func sameNumber(a, b reflect.Value) bool {
	switch {
	case isInt(a.Kind()) && isInt(b.Kind()):
		return a.Int() == b.Int()
	case isUint(a.Kind()) && isUint(b.Kind()):
		return a.Uint() == b.Uint()
	case isInt(a.Kind()):
		return a.Int() >= 0 && uint64(a.Int()) == b.Uint()
	default:
		return b.Int() >= 0 && a.Uint() == uint64(b.Int())
	}
}
