package translator

import (
	"reflect"

	"github.com/goliatone/go-generic-dao/daoerrors"
	"github.com/goliatone/go-generic-dao/metadata"
	"github.com/goliatone/go-generic-dao/search"
)

// FilterFromExample derives an AND filter from the set properties of
// example. The identifier and collections never take part. A reference with
// an identifier matches on that identifier; an unsaved reference contributes
// its own properties under the reference path. The result is never nil; an
// empty AND matches every row.
func (t *Translator) FilterFromExample(example any, opts *search.ExampleOptions) (*search.Filter, error) {
	rv := reflect.ValueOf(example)
	if !rv.IsValid() || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
		return nil, daoerrors.NullArgument("example")
	}
	rv = reflect.Indirect(rv)
	e, err := t.registry.Entity(rv.Type())
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = search.NewExampleOptions()
	}

	filter := search.And()
	d := deriver{registry: t.registry, opts: opts, filter: filter, seen: make(map[uintptr]bool)}
	if rv.CanAddr() {
		d.seen[rv.Addr().Pointer()] = true
	}
	if err := d.walk(e, rv, ""); err != nil {
		return nil, err
	}
	return filter, nil
}

type deriver struct {
	registry *metadata.Registry
	opts     *search.ExampleOptions
	filter   *search.Filter
	seen     map[uintptr]bool
}

func (d *deriver) walk(e *metadata.Entity, elem reflect.Value, prefix string) error {
	for _, p := range e.Properties() {
		if p == e.ID || p.Kind == metadata.KindCollection {
			continue
		}
		path := prefix + p.Name
		if !d.opts.Considers(path) {
			continue
		}
		v := p.Field(elem)

		if metadata.IsNil(v) {
			if !d.opts.ExcludeNulls {
				d.filter.Add(search.IsNull(path))
			}
			continue
		}

		if p.Kind == metadata.KindReference {
			if err := d.reference(p, v, path); err != nil {
				return err
			}
			continue
		}

		value := reflect.Indirect(v)
		if d.opts.ExcludeZeros && value.IsZero() {
			continue
		}
		d.filter.Add(d.match(p, path, value.Interface()))
	}
	return nil
}

func (d *deriver) reference(p *metadata.Property, v reflect.Value, path string) error {
	target, err := d.registry.Entity(p.Target)
	if err != nil {
		return err
	}
	if v.Kind() == reflect.Pointer {
		if d.seen[v.Pointer()] {
			return nil
		}
		d.seen[v.Pointer()] = true
	}
	elem := reflect.Indirect(v)
	id := target.ID.Field(elem)
	if !metadata.IsZero(id) {
		d.filter.Add(search.Equal(path+"."+target.ID.Name, reflect.Indirect(id).Interface()))
		return nil
	}
	return d.walk(target, elem, path+".")
}

func (d *deriver) match(p *metadata.Property, path string, value any) *search.Filter {
	s, ok := value.(string)
	if !ok || !p.IsString() {
		return search.Equal(path, value)
	}
	if d.opts.LikeMode != search.LikeNone {
		if d.opts.IgnoreCase {
			return search.ILike(path, d.opts.LikeMode.Pattern(s))
		}
		return search.Like(path, d.opts.LikeMode.Pattern(s))
	}
	if d.opts.IgnoreCase {
		return search.ILike(path, s)
	}
	return search.Equal(path, value)
}
