package cache

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func joinWithSeparator(parts ...string) string {
	return strings.Join(parts, KeySeparator)
}

type keyPerson struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type keyPersonWithPrivate struct {
	ID       int
	Name     string
	password string
}

type keyNode struct {
	Value int
	Next  *keyNode
}

func TestDefaultKeySerializer_SerializeKey(t *testing.T) {
	serializer := NewDefaultKeySerializer()
	age := 42
	id := uuid.MustParse("123e4567-e89b-12d3-a456-426614174000")

	tests := []struct {
		name   string
		method string
		args   []any
		want   string
	}{
		{name: "no args", method: "plan", args: []any{}, want: "plan"},
		{name: "single int", method: "plan", args: []any{42}, want: joinWithSeparator("plan", "42")},
		{
			name:   "multiple basic types",
			method: "plan",
			args:   []any{1, "hello", true, 3.14},
			want:   joinWithSeparator("plan", "1", "hello", "true", "3.14"),
		},
		{name: "string with separator chars", method: "plan", args: []any{"father.name:x"}, want: joinWithSeparator("plan", "father.name:x")},
		{name: "nil interface", method: "plan", args: []any{nil}, want: joinWithSeparator("plan", "nil")},
		{name: "nil pointer", method: "plan", args: []any{(*int)(nil)}, want: joinWithSeparator("plan", "nil")},
		{name: "pointer dereferenced", method: "plan", args: []any{&age}, want: joinWithSeparator("plan", "42")},
		{name: "nil slice", method: "plan", args: []any{([]int)(nil)}, want: joinWithSeparator("plan", "slice:nil")},
		{name: "empty slice", method: "plan", args: []any{[]int{}}, want: joinWithSeparator("plan", "slice[0]:{}")},
		{name: "int slice", method: "plan", args: []any{[]int{1, 2, 3}}, want: joinWithSeparator("plan", "slice[3]:{1,2,3}")},
		{name: "any slice", method: "plan", args: []any{[]any{"a", 1, nil}}, want: joinWithSeparator("plan", "slice[3]:{a,1,nil}")},
		{name: "int array", method: "plan", args: []any{[3]int{1, 2, 3}}, want: joinWithSeparator("plan", "array[3]:{1,2,3}")},
		{name: "nil map", method: "plan", args: []any{(map[string]int)(nil)}, want: joinWithSeparator("plan", "map:nil")},
		{
			name:   "map sorted by pair",
			method: "plan",
			args:   []any{map[string]int{"count": 10, "age": 25}},
			want:   joinWithSeparator("plan", "map[2]:{age=25,count=10}"),
		},
		{
			name:   "struct exported fields",
			method: "plan",
			args:   []any{keyPerson{ID: 1, Name: "fred"}},
			want:   joinWithSeparator("plan", "struct:{ID:1,Name:fred}"),
		},
		{
			name:   "struct private field ignored",
			method: "plan",
			args:   []any{keyPersonWithPrivate{ID: 2, Name: "bob", password: "secret"}},
			want:   joinWithSeparator("plan", "struct:{ID:2,Name:bob}"),
		},
		{
			name:   "time in utc",
			method: "plan",
			args:   []any{time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("x", 3600))},
			want:   joinWithSeparator("plan", "time:2024-01-02T02:04:05Z"),
		},
		{name: "byte slice hex", method: "plan", args: []any{[]byte{0xde, 0xad}}, want: joinWithSeparator("plan", "bytes:dead")},
		{name: "uuid hex", method: "plan", args: []any{id}, want: joinWithSeparator("plan", "bytes:123e4567e89b12d3a456426614174000")},
		{
			name:   "named type",
			method: "plan",
			args:   []any{reflect.TypeOf(keyPerson{})},
			want:   joinWithSeparator("plan", "type:github.com/goliatone/go-generic-dao/cache.keyPerson"),
		},
		{name: "unnamed type", method: "plan", args: []any{reflect.TypeOf([]int{})}, want: joinWithSeparator("plan", "type:[]int")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := serializer.SerializeKey(tt.method, tt.args...)
			if got != tt.want {
				t.Errorf("SerializeKey() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDefaultKeySerializer_Functions(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	testFunc := func() {}

	key1 := serializer.SerializeKey("plan", testFunc)
	key2 := serializer.SerializeKey("plan", testFunc)
	if key1 != key2 {
		t.Errorf("function serialization should be stable: %v != %v", key1, key2)
	}
	if !strings.HasPrefix(key1, joinWithSeparator("plan", "func")+":") {
		t.Errorf("function serialization should use func: prefix, got: %v", key1)
	}

	ch := make(chan int)
	if key := serializer.SerializeKey("plan", ch); !strings.HasPrefix(key, joinWithSeparator("plan", "chan")+":") {
		t.Errorf("channel should be serialized with chan: prefix, got: %v", key)
	}
}

func TestDefaultKeySerializer_CyclicValue(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	n := &keyNode{Value: 1}
	n.Next = n

	key := serializer.SerializeKey("plan", n)
	if !strings.Contains(key, "depth:exceeded") {
		t.Errorf("expected depth guard marker, got: %v", key)
	}
	if key != serializer.SerializeKey("plan", n) {
		t.Error("cyclic serialization should be stable")
	}
}

func TestDefaultKeySerializer_Stability(t *testing.T) {
	serializer := NewDefaultKeySerializer()

	args := []any{1, "hello", []int{1, 2, 3}, map[string]int{"a": 1, "b": 2, "c": 3}}
	key1 := serializer.SerializeKey("plan", args...)
	for i := 0; i < 20; i++ {
		if key := serializer.SerializeKey("plan", args...); key != key1 {
			t.Fatalf("key serialization should be stable: %v != %v", key, key1)
		}
	}
}

func TestHashedKeySerializer(t *testing.T) {
	serializer := NewHashedKeySerializer(NewDefaultKeySerializer())

	if got := serializer.SerializeKey("plan"); got != "plan" {
		t.Errorf("expected bare method without args, got %q", got)
	}

	a := serializer.SerializeKey("plan", "people", []string{"fred", "bob"})
	b := serializer.SerializeKey("plan", "people", []string{"fred", "bob"})
	c := serializer.SerializeKey("plan", "people", []string{"fred", "cyndi"})

	if a != b {
		t.Errorf("equal args should hash equally: %q != %q", a, b)
	}
	if a == c {
		t.Errorf("different args should hash differently: %q", a)
	}
	if !strings.HasPrefix(a, "plan"+KeySeparator) {
		t.Errorf("expected method prefix, got %q", a)
	}
	if digest := strings.TrimPrefix(a, "plan"+KeySeparator); len(digest) == 0 || len(digest) > 16 {
		t.Errorf("expected a 64 bit hex digest, got %q", digest)
	}
}

func BenchmarkDefaultKeySerializer(b *testing.B) {
	serializer := NewDefaultKeySerializer()
	args := []any{1, "benchmark", []int{1, 2, 3}, map[string]int{"test": 1}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		serializer.SerializeKey("plan", args...)
	}
}

func BenchmarkHashedKeySerializer(b *testing.B) {
	serializer := NewHashedKeySerializer(NewDefaultKeySerializer())
	args := []any{1, "benchmark", []int{1, 2, 3}, map[string]int{"test": 1}}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		serializer.SerializeKey("plan", args...)
	}
}
