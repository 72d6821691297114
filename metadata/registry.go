package metadata

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/jinzhu/inflection"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/uptrace/bun"
	"github.com/vmihailenco/tagparser/v2"

	"github.com/goliatone/go-generic-dao/daoerrors"
)

var baseModelType = reflect.TypeFor[bun.BaseModel]()

// Registry builds and caches entity descriptors. Lookups are lock free;
// building a descriptor is serialized so every type is parsed once.
type Registry struct {
	mu       sync.Mutex
	entities *xsync.MapOf[string, *Entity]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entities: xsync.NewMapOf[string, *Entity]()}
}

// Register builds the descriptors of the given models. A model can be a
// value, a pointer, or a typed nil pointer such as (*Person)(nil).
func (r *Registry) Register(models ...any) error {
	for _, m := range models {
		if _, err := r.EntityOf(m); err != nil {
			return err
		}
	}
	return nil
}

// EntityOf returns the descriptor of v's type.
func (r *Registry) EntityOf(v any) (*Entity, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, daoerrors.NullArgument("entity")
	}
	return r.Entity(t)
}

// Entity returns the descriptor of t, building it on first use.
func (r *Registry) Entity(t reflect.Type) (*Entity, error) {
	if t == nil {
		return nil, daoerrors.NullArgument("type")
	}
	t = Indirect(t)
	if t.Kind() != reflect.Struct {
		return nil, daoerrors.InvalidArgument("%s is not an entity type", t)
	}

	key := TypeKey(t)
	if e, ok := r.entities.Load(key); ok {
		return e, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entities.Load(key); ok {
		return e, nil
	}
	e, err := build(t)
	if err != nil {
		return nil, err
	}
	r.entities.Store(key, e)
	return e, nil
}

// Lookup returns an already built descriptor by type key.
func (r *Registry) Lookup(key string) (*Entity, bool) {
	return r.entities.Load(key)
}

// Entities returns every built descriptor ordered by key.
func (r *Registry) Entities() []*Entity {
	out := make([]*Entity, 0, r.entities.Size())
	r.entities.Range(func(_ string, e *Entity) bool {
		out = append(out, e)
		return true
	})
	slices.SortFunc(out, func(a, b *Entity) int { return strings.Compare(a.Key, b.Key) })
	return out
}

// Target returns the descriptor of the entity an association points to.
func (r *Registry) Target(p *Property) (*Entity, error) {
	if p.Kind == KindColumn {
		return nil, daoerrors.InvalidArgument("%s is not an association", p.Name)
	}
	return r.Entity(p.Target)
}

// Resolve walks a dotted property path from e and returns the property at
// each step. Every step but the last must be an association.
func (r *Registry) Resolve(e *Entity, path string) ([]*Property, error) {
	if path == "" {
		return nil, daoerrors.InvalidSearch(path, "empty property path")
	}
	parts := strings.Split(path, ".")
	chain := make([]*Property, 0, len(parts))
	current := e
	for i, part := range parts {
		p, ok := current.Property(part)
		if !ok {
			return nil, daoerrors.InvalidSearch(path, "%s has no property %q", current.Name, part)
		}
		chain = append(chain, p)
		if i == len(parts)-1 {
			break
		}
		if p.Kind == KindColumn {
			return nil, daoerrors.InvalidSearch(path, "%s.%s is not an association", current.Name, p.Name)
		}
		next, err := r.Entity(p.Target)
		if err != nil {
			return nil, daoerrors.InvalidSearch(path, "%v", err)
		}
		current = next
	}
	return chain, nil
}

// SyncReferences copies the identifier of every loaded reference of v into
// its foreign key column, so setting Person.Father is enough to persist
// father_id.
func (r *Registry) SyncReferences(e *Entity, v any) error {
	elem, err := e.Elem(v)
	if err != nil {
		return err
	}
	for _, p := range e.properties {
		if p.Kind != KindReference {
			continue
		}
		ref := p.Field(elem)
		if IsNil(ref) {
			continue
		}
		fk, ok := e.byColumn[p.JoinColumn]
		if !ok {
			continue
		}
		target, err := r.Entity(p.Target)
		if err != nil {
			return err
		}
		if target.ID.Column != p.TargetColumn {
			continue
		}
		id := target.ID.Field(reflect.Indirect(ref))
		if IsZero(id) {
			continue
		}
		if err := assign(fk.Field(elem), id.Interface()); err != nil {
			return fmt.Errorf("%s.%s: %w", e.Name, p.Name, err)
		}
	}
	return nil
}

// TypeKey returns the package qualified name used to key registries.
func TypeKey(t reflect.Type) string {
	t = Indirect(t)
	if t.Name() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// TypeOf returns the entity type of T with pointers removed.
func TypeOf[T any]() reflect.Type {
	return Indirect(reflect.TypeFor[T]())
}

func build(t reflect.Type) (*Entity, error) {
	model := toSnake(t.Name())
	e := &Entity{
		Type:     t,
		Name:     t.Name(),
		Key:      TypeKey(t),
		Table:    inflection.Plural(model),
		Alias:    model,
		byName:   make(map[string]*Property),
		byColumn: make(map[string]*Property),
	}
	if err := collect(e, t, nil); err != nil {
		return nil, err
	}

	var pks []*Property
	for _, p := range e.columns {
		if p.PK {
			pks = append(pks, p)
		}
	}
	switch len(pks) {
	case 0:
		if p, ok := e.byColumn["id"]; ok {
			p.PK = true
			e.ID = p
		}
	case 1:
		e.ID = pks[0]
	default:
		return nil, daoerrors.InvalidArgument("%s: composite primary keys are not supported", e.Name)
	}
	if e.ID == nil {
		return nil, daoerrors.InvalidArgument("%s has no primary key", e.Name)
	}
	return e, nil
}

func collect(e *Entity, t reflect.Type, index []int) error {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tagstr := sf.Tag.Get("bun")
		if tagstr == "-" {
			continue
		}
		tag := tagparser.Parse(tagstr)

		if sf.Anonymous {
			if sf.Type == baseModelType {
				tableOptions(e, tag)
				continue
			}
			if sf.IsExported() && sf.Type.Kind() == reflect.Struct {
				if err := collect(e, sf.Type, join(index, sf.Index)); err != nil {
					return err
				}
			}
			continue
		}
		if !sf.IsExported() || tag.HasOption("scanonly") {
			continue
		}

		p := &Property{
			Name:   lowerCamel(sf.Name),
			GoName: sf.Name,
			Type:   sf.Type,
			index:  join(index, sf.Index),
		}

		switch tag.Options["rel"] {
		case "belongs-to":
			p.Kind = KindReference
			p.Target = Indirect(sf.Type)
			p.JoinColumn, p.TargetColumn = relationJoin(tag, toSnake(sf.Name)+"_id", "id")
			p.Column = p.JoinColumn
		case "has-many":
			if sf.Type.Kind() != reflect.Slice {
				return daoerrors.InvalidArgument("%s.%s: has-many needs a slice", e.Name, sf.Name)
			}
			p.Kind = KindCollection
			p.Target = Indirect(sf.Type.Elem())
			p.JoinColumn, p.TargetColumn = relationJoin(tag, "id", toSnake(e.Name)+"_id")
		case "":
			p.Kind = KindColumn
			p.Column = tag.Name
			if p.Column == "" {
				p.Column = toSnake(sf.Name)
			}
			p.PK = tag.HasOption("pk")
			p.AutoIncrement = tag.HasOption("autoincrement")
		default:
			// has-one and m2m are left to bun
			continue
		}

		if err := e.add(p); err != nil {
			return err
		}
	}
	return nil
}

func tableOptions(e *Entity, tag *tagparser.Tag) {
	if tag.Name != "" {
		e.Table = tag.Name
	}
	if s, ok := tag.Options["table"]; ok && s != "" {
		e.Table = s
	}
	if s, ok := tag.Options["alias"]; ok && s != "" {
		e.Alias = s
	}
}

func relationJoin(tag *tagparser.Tag, base, target string) (string, string) {
	s, ok := tag.Options["join"]
	if !ok {
		return base, target
	}
	left, right, found := strings.Cut(s, "=")
	if !found {
		return base, target
	}
	return strings.TrimSpace(left), strings.TrimSpace(right)
}

func join(prefix, index []int) []int {
	out := make([]int, 0, len(prefix)+len(index))
	out = append(out, prefix...)
	return append(out, index...)
}
