package session

import (
	"context"
	"reflect"
	"strings"

	"github.com/goliatone/go-generic-dao/daoerrors"
	"github.com/goliatone/go-generic-dao/metadata"
)

// Fetch loads the association path onto every entity in owners, one query
// per path segment. owners must be entities of typ; nil elements are
// skipped. Loaded entities are merged into the session.
func (s *Session) Fetch(ctx context.Context, typ reflect.Type, owners []any, path string) error {
	if err := s.check(); err != nil {
		return err
	}
	e, err := s.registry.Entity(typ)
	if err != nil {
		return err
	}
	head, rest, _ := strings.Cut(path, ".")
	p, ok := e.Property(head)
	if !ok {
		return daoerrors.InvalidSearch(path, "%s has no property %q", e.Name, head)
	}
	if p.Kind == metadata.KindColumn {
		return daoerrors.InvalidSearch(path, "%s.%s is not an association", e.Name, p.Name)
	}
	target, err := s.registry.Target(p)
	if err != nil {
		return err
	}

	var loaded []any
	if p.Kind == metadata.KindReference {
		loaded, err = s.fetchReference(ctx, e, target, p, owners)
	} else {
		loaded, err = s.fetchCollection(ctx, e, target, p, owners)
	}
	if err != nil || rest == "" || len(loaded) == 0 {
		return err
	}
	return s.Fetch(ctx, target.Type, loaded, rest)
}

func (s *Session) fetchReference(ctx context.Context, e, target *metadata.Entity, p *metadata.Property, owners []any) ([]any, error) {
	fk, ok := e.ColumnProperty(p.JoinColumn)
	if !ok {
		return nil, daoerrors.InvalidArgument("%s.%s: no column %q", e.Name, p.Name, p.JoinColumn)
	}
	tc, ok := target.ColumnProperty(p.TargetColumn)
	if !ok {
		return nil, daoerrors.InvalidArgument("%s: no column %q", target.Name, p.TargetColumn)
	}

	keys := make([]any, len(owners))
	var values []any
	seen := make(map[any]bool)
	for i, owner := range owners {
		if owner == nil {
			continue
		}
		v, err := e.Value(owner, fk)
		if err != nil {
			return nil, err
		}
		k, ok, err := columnKey(v, tc.BaseType())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		keys[i] = k
		if !seen[k] {
			seen[k] = true
			values = append(values, k)
		}
	}
	if len(values) == 0 {
		return nil, nil
	}

	byKey, loaded, err := s.loadBy(ctx, target, tc, values)
	if err != nil {
		return nil, err
	}
	for i, owner := range owners {
		if keys[i] == nil {
			continue
		}
		found, ok := byKey[keys[i]]
		if !ok {
			continue
		}
		field, _ := e.Value(owner, p)
		setAssociation(field, found[0])
	}
	return loaded, nil
}

func (s *Session) fetchCollection(ctx context.Context, e, target *metadata.Entity, p *metadata.Property, owners []any) ([]any, error) {
	oc, ok := e.ColumnProperty(p.JoinColumn)
	if !ok {
		return nil, daoerrors.InvalidArgument("%s.%s: no column %q", e.Name, p.Name, p.JoinColumn)
	}
	tc, ok := target.ColumnProperty(p.TargetColumn)
	if !ok {
		return nil, daoerrors.InvalidArgument("%s: no column %q", target.Name, p.TargetColumn)
	}

	keys := make([]any, len(owners))
	var values []any
	for i, owner := range owners {
		if owner == nil {
			continue
		}
		v, err := e.Value(owner, oc)
		if err != nil {
			return nil, err
		}
		k, ok, err := columnKey(v, tc.BaseType())
		if err != nil {
			return nil, err
		}
		if ok {
			keys[i] = k
			values = append(values, k)
		}
	}
	if len(values) == 0 {
		return nil, nil
	}

	byKey, loaded, err := s.loadBy(ctx, target, tc, values)
	if err != nil {
		return nil, err
	}
	for i, owner := range owners {
		if owner == nil || keys[i] == nil {
			continue
		}
		field, _ := e.Value(owner, p)
		items := reflect.MakeSlice(field.Type(), 0, len(byKey[keys[i]]))
		for _, item := range byKey[keys[i]] {
			items = reflect.Append(items, assignable(reflect.ValueOf(item), field.Type().Elem()))
		}
		field.Set(items)
	}
	return loaded, nil
}

// loadBy selects the rows of target whose column matches one of values,
// merges them and groups the tracked instances by column value.
func (s *Session) loadBy(ctx context.Context, target *metadata.Entity, column *metadata.Property, values []any) (map[any][]any, []any, error) {
	rows, err := s.selectWhere(ctx, target, column.Column, values)
	if err != nil {
		return nil, nil, err
	}
	byKey := make(map[any][]any, len(values))
	loaded := make([]any, 0, len(rows))
	for _, row := range rows {
		v, err := s.merge(target, row)
		if err != nil {
			return nil, nil, err
		}
		cv, _ := target.Value(v, column)
		k, ok, err := columnKey(cv, column.BaseType())
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		byKey[k] = append(byKey[k], v)
		loaded = append(loaded, v)
	}
	return byKey, loaded, nil
}

// columnKey converts a column value to a comparable map key of type t. A
// nil or zero value reports false.
func columnKey(v reflect.Value, t reflect.Type) (any, bool, error) {
	if metadata.IsZero(v) {
		return nil, false, nil
	}
	k, err := metadata.Convert(v.Interface(), t)
	if err != nil {
		return nil, false, err
	}
	return k, true, nil
}

func setAssociation(field reflect.Value, v any) {
	field.Set(assignable(reflect.ValueOf(v), field.Type()))
}

// assignable adapts the entity pointer v to a field of type t, which may
// hold the entity by pointer or by value.
func assignable(v reflect.Value, t reflect.Type) reflect.Value {
	if v.Type().AssignableTo(t) {
		return v
	}
	return v.Elem()
}
