package session

import (
	"context"
	"reflect"

	"github.com/goliatone/go-generic-dao/daoerrors"
	"github.com/goliatone/go-generic-dao/metadata"
)

// Reference is a handle to an entity that may not have been loaded yet. It
// is either resolved, holding the entity, or unresolved, holding the id and
// the session that can load it.
type Reference struct {
	session *Session
	entity  *metadata.Entity
	id      any
	value   any
}

// GetReference returns a handle to the row with id without reading it. An
// entity the session already tracks gives a resolved reference.
func (s *Session) GetReference(typ reflect.Type, id any) (*Reference, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	e, err := s.registry.Entity(typ)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, daoerrors.NullArgument("id")
	}
	nid, err := e.NormalizeID(id)
	if err != nil {
		return nil, err
	}
	ref := &Reference{session: s, entity: e, id: nid}
	if ent, ok := s.entries[key{e.Key, nid}]; ok {
		ref.value = ent.value
	}
	return ref, nil
}

// GetReferences returns one reference per id, in order.
func (s *Session) GetReferences(typ reflect.Type, ids ...any) ([]*Reference, error) {
	refs := make([]*Reference, len(ids))
	for i, id := range ids {
		ref, err := s.GetReference(typ, id)
		if err != nil {
			return nil, err
		}
		refs[i] = ref
	}
	return refs, nil
}

// ID returns the identifier the reference points to.
func (r *Reference) ID() any {
	return r.id
}

// Type returns the entity type of the reference.
func (r *Reference) Type() reflect.Type {
	return r.entity.Type
}

// Resolved reports whether the entity has been loaded.
func (r *Reference) Resolved() bool {
	return r.value != nil
}

// Resolve loads the entity through the originating session. It fails with
// ErrEntityNotFound when the row is absent and ErrAttachment once the
// session has been closed, even if the entity was loaded before.
func (r *Reference) Resolve(ctx context.Context) (any, error) {
	if r.session.Closed() {
		return nil, daoerrors.ErrAttachment
	}
	if r.value != nil {
		return r.value, nil
	}
	v, err := r.session.Find(ctx, r.entity.Type, r.id)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, &daoerrors.NotFoundError{Entity: r.entity.Name, ID: r.id}
	}
	r.value = v
	return v, nil
}
