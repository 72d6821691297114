package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/tmthrgd/go-hex"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// maxDepth bounds recursion into nested values; entity graphs can be cyclic.
const maxDepth = 16

// defaultKeySerializer implements KeySerializer using reflection-based serialization.
// It handles function pointers using %p formatting, recursive slices, and falls back to JSON
// for complex types while ensuring deterministic key generation across runs.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// SerializeKey builds a cache key from method name and args using reflection.
// It produces stable keys across runs by handling various Go types deterministically.
func (s *defaultKeySerializer) SerializeKey(method string, args ...any) string {
	if len(args) == 0 {
		return method
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, arg := range args {
		parts = append(parts, s.serializeValue(arg, 0))
	}

	return strings.Join(parts, KeySeparator)
}

// serializeValue handles individual argument serialization based on type.
func (s *defaultKeySerializer) serializeValue(v any, depth int) string {
	if v == nil {
		return "nil"
	}
	if depth > maxDepth {
		return "depth:exceeded"
	}

	// reflect.Type is a pointer to unexported runtime data; use its name
	if t, ok := v.(reflect.Type); ok {
		if t.Name() != "" {
			return "type:" + t.PkgPath() + "." + t.Name()
		}
		return "type:" + t.String()
	}
	if t, ok := v.(time.Time); ok {
		return "time:" + t.UTC().Format(time.RFC3339Nano)
	}

	rv := reflect.ValueOf(v)
	rt := rv.Type()

	switch rt.Kind() {
	case reflect.Func:
		return fmt.Sprintf("func:%p", v)
	case reflect.Chan:
		return fmt.Sprintf("chan:%p", v)
	case reflect.Ptr:
		if rv.IsNil() {
			return "nil"
		}
		return s.serializeValue(rv.Elem().Interface(), depth+1)
	case reflect.Interface:
		if rv.IsNil() {
			return "interface:nil"
		}
		return s.serializeValue(rv.Elem().Interface(), depth+1)
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		if rt.Elem().Kind() == reflect.Uint8 {
			return "bytes:" + hex.EncodeToString(rv.Bytes())
		}
		return s.serializeList("slice", rv, depth)
	case reflect.Array:
		if rt.Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return "bytes:" + hex.EncodeToString(b)
		}
		return s.serializeList("array", rv, depth)
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return s.serializeMap(rv, depth)
	case reflect.Struct:
		return s.serializeStruct(rv, rt, depth)
	}

	if s.isBasicType(rt.Kind()) {
		return fmt.Sprintf("%v", v)
	}

	return s.jsonFallback(v)
}

// serializeList handles slices and arrays recursively.
func (s *defaultKeySerializer) serializeList(kind string, rv reflect.Value, depth int) string {
	length := rv.Len()
	parts := make([]string, length)
	for i := 0; i < length; i++ {
		parts[i] = s.serializeValue(rv.Index(i).Interface(), depth+1)
	}
	return fmt.Sprintf("%s[%d]:{%s}", kind, length, strings.Join(parts, ","))
}

// serializeMap handles map serialization with sorted keys for determinism
func (s *defaultKeySerializer) serializeMap(rv reflect.Value, depth int) string {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key := s.serializeValue(iter.Key().Interface(), depth+1)
		value := s.serializeValue(iter.Value().Interface(), depth+1)
		pairs = append(pairs, key+"="+value)
	}
	sort.Strings(pairs)

	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ","))
}

// serializeStruct handles struct serialization with field names
func (s *defaultKeySerializer) serializeStruct(rv reflect.Value, rt reflect.Type, depth int) string {
	parts := make([]string, 0, rv.NumField())

	for i := 0; i < rv.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, field.Name+":"+s.serializeValue(rv.Field(i).Interface(), depth+1))
	}

	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}

// isBasicType checks if a kind represents a basic Go type
func (s *defaultKeySerializer) isBasicType(kind reflect.Kind) bool {
	switch kind {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return true
	default:
		return false
	}
}

// jsonFallback provides JSON serialization as a last resort
func (s *defaultKeySerializer) jsonFallback(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "fallback:" + reflect.TypeOf(v).String()
	}
	return "json:" + string(data)
}

// hashedKeySerializer digests the arguments of another serializer so keys
// stay short however large the serialized search is.
type hashedKeySerializer struct {
	inner KeySerializer
}

// NewHashedKeySerializer wraps inner and replaces everything after the
// method with an xxhash digest of inner's key.
func NewHashedKeySerializer(inner KeySerializer) KeySerializer {
	return &hashedKeySerializer{inner: inner}
}

func (s *hashedKeySerializer) SerializeKey(method string, args ...any) string {
	if len(args) == 0 {
		return method
	}
	digest := xxhash.Sum64String(s.inner.SerializeKey(method, args...))
	return method + KeySeparator + strconv.FormatUint(digest, 16)
}
