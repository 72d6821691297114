package metadata

import (
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-generic-dao/daoerrors"
)

type Audit struct {
	CreatedBy string `bun:"created_by"`
}

type Member struct {
	bun.BaseModel `bun:"table:members,alias:m"`
	Audit

	ID        int64     `bun:"id,pk,autoincrement"`
	FirstName string    `bun:"first_name"`
	Age       int       `bun:"age"`
	Nickname  *string   `bun:"nickname"`
	Ignored   string    `bun:"-"`
	Computed  int       `bun:"computed,scanonly"`
	ParentID  *int64    `bun:"parent_id"`
	Parent    *Member   `bun:"rel:belongs-to,join:parent_id=id"`
	Children  []*Member `bun:"rel:has-many,join:id=parent_id"`
	internal  string
}

type BlogPost struct {
	ID       uuid.UUID
	Title    string
	AuthorID int64
	Author   *Member `bun:"rel:belongs-to"`
}

type NoKey struct {
	Name string
}

type TwoKeys struct {
	A int `bun:",pk"`
	B int `bun:",pk"`
}

func TestRegistry_EntityFromTags(t *testing.T) {
	r := NewRegistry()
	e, err := r.Entity(reflect.TypeFor[*Member]())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if e.Table != "members" || e.Alias != "m" {
		t.Errorf("expected table members alias m, got %s %s", e.Table, e.Alias)
	}
	if e.ID == nil || e.ID.Column != "id" || !e.ID.AutoIncrement {
		t.Fatalf("expected autoincrement id, got %+v", e.ID)
	}

	var columns []string
	for _, p := range e.Columns() {
		columns = append(columns, p.Column)
	}
	expected := []string{"created_by", "id", "first_name", "age", "nickname", "parent_id"}
	if !reflect.DeepEqual(columns, expected) {
		t.Errorf("expected columns %v, got %v", expected, columns)
	}

	parent, ok := e.Property("parent")
	if !ok {
		t.Fatal("expected parent property")
	}
	if parent.Kind != KindReference || parent.JoinColumn != "parent_id" || parent.TargetColumn != "id" {
		t.Errorf("unexpected parent mapping: %+v", parent)
	}

	children, ok := e.Property("children")
	if !ok {
		t.Fatal("expected children property")
	}
	if children.Kind != KindCollection || children.JoinColumn != "id" || children.TargetColumn != "parent_id" {
		t.Errorf("unexpected children mapping: %+v", children)
	}
	if children.Target != reflect.TypeFor[Member]() {
		t.Errorf("expected Member target, got %v", children.Target)
	}

	for _, name := range []string{"ignored", "computed", "internal"} {
		if _, ok := e.Property(name); ok {
			t.Errorf("expected %s to be skipped", name)
		}
	}
}

func TestRegistry_Defaults(t *testing.T) {
	r := NewRegistry()
	e, err := r.EntityOf(&BlogPost{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if e.Table != "blog_posts" || e.Alias != "blog_post" {
		t.Errorf("expected bun default names, got %s %s", e.Table, e.Alias)
	}
	if e.ID.Name != "id" || e.ID.BaseType() != reflect.TypeFor[uuid.UUID]() {
		t.Errorf("expected uuid id, got %+v", e.ID)
	}
	author, _ := e.Property("author")
	if author.JoinColumn != "author_id" {
		t.Errorf("expected default join column author_id, got %s", author.JoinColumn)
	}
	if p, ok := e.Property("AuthorId"); !ok || p.Column != "author_id" {
		t.Errorf("expected case-insensitive lookup of authorID, got %+v", p)
	}
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name  string
		model any
		want  error
	}{
		{"nil", nil, daoerrors.ErrNullArgument},
		{"not a struct", 42, daoerrors.ErrInvalidArgument},
		{"no key", NoKey{}, daoerrors.ErrInvalidArgument},
		{"composite key", TwoKeys{}, daoerrors.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.model)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRegistry_ConcurrentBuildReturnsSameDescriptor(t *testing.T) {
	r := NewRegistry()

	const workers = 16
	results := make([]*Entity, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := r.Entity(reflect.TypeFor[Member]())
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results[i] = e
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if results[i] != results[0] {
			t.Fatal("expected every caller to get the same descriptor")
		}
	}
	if len(r.Entities()) != 1 {
		t.Errorf("expected one descriptor, got %d", len(r.Entities()))
	}
	if _, ok := r.Lookup(TypeKey(reflect.TypeFor[Member]())); !ok {
		t.Error("expected lookup by key to succeed")
	}
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry()
	e, _ := r.Entity(reflect.TypeFor[Member]())

	chain, err := r.Resolve(e, "parent.parent.firstName")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chain) != 3 || chain[2].Column != "first_name" {
		t.Errorf("unexpected chain: %+v", chain)
	}

	for _, path := range []string{"", "missing", "firstName.length", "parent.missing"} {
		_, err := r.Resolve(e, path)
		var searchErr *daoerrors.SearchError
		if !errors.As(err, &searchErr) {
			t.Errorf("%q: expected SearchError, got %v", path, err)
		}
	}
}

func TestRegistry_SyncReferences(t *testing.T) {
	r := NewRegistry()
	e, _ := r.Entity(reflect.TypeFor[Member]())

	parent := &Member{ID: 7}
	child := &Member{Parent: parent}
	if err := r.SyncReferences(e, child); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if child.ParentID == nil || *child.ParentID != 7 {
		t.Errorf("expected parent_id 7, got %v", child.ParentID)
	}

	orphan := &Member{Parent: &Member{}}
	if err := r.SyncReferences(e, orphan); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orphan.ParentID != nil {
		t.Error("expected unsaved parent to leave parent_id unset")
	}
}

func TestEntity_Accessors(t *testing.T) {
	r := NewRegistry()
	e, _ := r.Entity(reflect.TypeFor[Member]())

	m := &Member{}
	if !e.HasZeroID(m) {
		t.Error("expected zero id")
	}
	if err := e.SetID(m, "12"); !errors.Is(err, daoerrors.ErrInvalidArgument) {
		t.Errorf("expected string id to be rejected, got %v", err)
	}
	if err := e.SetID(m, int32(12)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	id, _ := e.IDOf(m)
	if id != int64(12) {
		t.Errorf("expected int64 12, got %#v", id)
	}

	if _, err := e.Elem(&BlogPost{}); !errors.Is(err, daoerrors.ErrInvalidArgument) {
		t.Errorf("expected wrong type to be rejected, got %v", err)
	}
	if _, err := e.Elem((*Member)(nil)); !errors.Is(err, daoerrors.ErrNullArgument) {
		t.Errorf("expected nil pointer to be rejected, got %v", err)
	}

	values := e.ColumnValues(&Member{FirstName: "Fred", Age: 35})
	if values[2] != "Fred" || values[3] != 35 {
		t.Errorf("unexpected column values: %v", values)
	}
}

func TestConvert(t *testing.T) {
	id := uuid.New()
	five := 5

	tests := []struct {
		name    string
		value   any
		target  reflect.Type
		want    any
		wantErr error
	}{
		{"same type", int64(3), reflect.TypeFor[int64](), int64(3), nil},
		{"int widening", 3, reflect.TypeFor[int64](), int64(3), nil},
		{"pointer", &five, reflect.TypeFor[int64](), int64(5), nil},
		{"overflow", 300, reflect.TypeFor[int8](), nil, daoerrors.ErrInvalidArgument},
		{"negative to unsigned", -1, reflect.TypeFor[uint](), nil, daoerrors.ErrInvalidArgument},
		{"integral float", 4.0, reflect.TypeFor[int](), 4, nil},
		{"fractional float", 4.5, reflect.TypeFor[int](), nil, daoerrors.ErrInvalidArgument},
		{"uuid string", id.String(), reflect.TypeFor[uuid.UUID](), id, nil},
		{"uuid bytes", id[:], reflect.TypeFor[uuid.UUID](), id, nil},
		{"bad uuid", "nope", reflect.TypeFor[uuid.UUID](), nil, daoerrors.ErrInvalidArgument},
		{"int to string", 65, reflect.TypeFor[string](), nil, daoerrors.ErrInvalidArgument},
		{"nil", nil, reflect.TypeFor[int](), nil, daoerrors.ErrNullArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Convert(tt.value, tt.target)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %#v, got %#v", tt.want, got)
			}
		})
	}
}

func TestNameConversions(t *testing.T) {
	snake := map[string]string{
		"FirstName": "first_name",
		"ID":        "id",
		"ParentID":  "parent_id",
		"BlogPost":  "blog_post",
		"URLPath":   "url_path",
	}
	for in, want := range snake {
		if got := toSnake(in); got != want {
			t.Errorf("toSnake(%q) = %q, want %q", in, got, want)
		}
	}

	camel := map[string]string{
		"FirstName": "firstName",
		"ID":        "id",
		"ParentID":  "parentID",
		"URLPath":   "urlPath",
		"age":       "age",
	}
	for in, want := range camel {
		if got := lowerCamel(in); got != want {
			t.Errorf("lowerCamel(%q) = %q, want %q", in, got, want)
		}
	}
}
