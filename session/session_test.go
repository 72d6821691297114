package session

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-generic-dao/daoerrors"
	"github.com/goliatone/go-generic-dao/metadata"
	"github.com/goliatone/go-generic-dao/pkg/testsupport"
)

type Person = testsupport.Person

var (
	personType  = reflect.TypeFor[Person]()
	projectType = reflect.TypeFor[testsupport.Project]()
)

func newTestSession(t *testing.T) (*Session, *bun.DB) {
	t.Helper()
	db := testsupport.NewSQLiteDB(t)
	registry := metadata.NewRegistry()
	if err := registry.Register(testsupport.Models()...); err != nil {
		t.Fatal(err)
	}
	return New(db, registry), db
}

func mustSave(t *testing.T, s *Session, v any) bool {
	t.Helper()
	inserted, err := s.Save(context.Background(), v)
	if err != nil {
		t.Fatalf("save %T: %v", v, err)
	}
	return inserted
}

func loadRow(t *testing.T, db bun.IDB, id int64) *Person {
	t.Helper()
	p := &Person{ID: id}
	if err := db.NewSelect().Model(p).WherePK().Scan(context.Background()); err != nil {
		t.Fatalf("load person %d: %v", id, err)
	}
	return p
}

func TestSession_SaveInserts(t *testing.T) {
	s, db := newTestSession(t)

	fred := testsupport.NewPerson("Fred", "Jones", 35)
	if !mustSave(t, s, fred) {
		t.Error("expected insert")
	}
	if fred.ID == 0 {
		t.Fatal("expected generated id")
	}
	if !s.IsAttached(fred) {
		t.Error("inserted entity should be attached")
	}
	if n := testsupport.CountRows(t, db, "people"); n != 1 {
		t.Errorf("expected 1 row, got %d", n)
	}
}

func TestSession_SaveTrackedDefersUpdate(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSession(t)

	fred := testsupport.NewPerson("Fred", "Jones", 35)
	mustSave(t, s, fred)

	fred.Age = 36
	if mustSave(t, s, fred) {
		t.Error("saving a tracked entity should not insert")
	}
	if got := loadRow(t, db, fred.ID).Age; got != 35 {
		t.Errorf("update should wait for flush, got age %d", got)
	}
	if !s.Dirty() {
		t.Error("expected dirty session")
	}

	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if got := loadRow(t, db, fred.ID).Age; got != 36 {
		t.Errorf("expected flushed age 36, got %d", got)
	}
	if s.Dirty() {
		t.Error("session should be clean after flush")
	}
}

func TestSession_SaveDetachedCopy(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSession(t)

	bob := testsupport.NewPerson("Bob", "Jones", 58)
	mustSave(t, s, bob)
	s.Clear()

	bob2 := *bob
	bob2.FirstName = "Bobby"
	if mustSave(t, s, &bob2) {
		t.Error("existing row should not be inserted again")
	}
	if !s.IsAttached(&bob2) {
		t.Error("saved copy should be attached")
	}
	if s.IsAttached(bob) {
		t.Error("original should not be attached")
	}

	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if got := loadRow(t, db, bob.ID).FirstName; got != "Bobby" {
		t.Errorf("expected Bobby, got %q", got)
	}
}

func TestSession_SaveReplacesTrackedInstance(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSession(t)

	bob := testsupport.NewPerson("Bob", "Jones", 58)
	mustSave(t, s, bob)

	bob2 := *bob
	bob2.LastName = "Smith"
	if mustSave(t, s, &bob2) {
		t.Error("expected update")
	}
	if s.IsAttached(bob) || !s.IsAttached(&bob2) {
		t.Error("the copy should replace the tracked instance")
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if got := loadRow(t, db, bob.ID).LastName; got != "Smith" {
		t.Errorf("expected Smith, got %q", got)
	}
}

func TestSession_SaveUnchangedCopyIsClean(t *testing.T) {
	s, _ := newTestSession(t)

	bob := testsupport.NewPerson("Bob", "Jones", 58)
	mustSave(t, s, bob)
	s.Clear()

	bob2 := *bob
	mustSave(t, s, &bob2)
	if s.Dirty() {
		t.Error("an unchanged copy should not need an update")
	}
}

func TestSession_SaveWithAbsentIDInserts(t *testing.T) {
	s, db := newTestSession(t)

	p := &Person{ID: 42, FirstName: "Marty"}
	if !mustSave(t, s, p) {
		t.Error("expected insert for an absent row")
	}
	if got := loadRow(t, db, 42).FirstName; got != "Marty" {
		t.Errorf("expected Marty, got %q", got)
	}
}

func TestSession_SaveGeneratesUUID(t *testing.T) {
	s, _ := newTestSession(t)

	project := &testsupport.Project{Name: "dao", Budget: 10}
	if !mustSave(t, s, project) {
		t.Error("expected insert")
	}
	if project.ID == uuid.Nil {
		t.Fatal("expected generated uuid")
	}

	s.Clear()
	found, err := s.Find(context.Background(), projectType, project.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if found == nil || found.(*testsupport.Project).Name != "dao" {
		t.Errorf("expected project by string id, got %+v", found)
	}
}

func TestSession_SaveSyncsReferences(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSession(t)

	bob := testsupport.NewPerson("Bob", "Jones", 58)
	fred := testsupport.NewPerson("Fred", "Jones", 35)
	mustSave(t, s, bob)
	mustSave(t, s, fred)

	fred.Father = bob
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	row := loadRow(t, db, fred.ID)
	if row.FatherID == nil || *row.FatherID != bob.ID {
		t.Errorf("expected father_id %d, got %v", bob.ID, row.FatherID)
	}
}

func TestSession_Find(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSession(t)

	fred := testsupport.NewPerson("Fred", "Jones", 35)
	testsupport.Insert(t, db, fred)

	found, err := s.Find(ctx, personType, fred.ID)
	if err != nil {
		t.Fatal(err)
	}
	if found.(*Person).FirstName != "Fred" {
		t.Errorf("unexpected entity %+v", found)
	}

	again, err := s.Find(ctx, personType, int32(fred.ID))
	if err != nil {
		t.Fatal(err)
	}
	if again != found {
		t.Error("expected the tracked instance for an id of another integer type")
	}

	missing, err := s.Find(ctx, personType, fred.ID+100)
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Errorf("expected nil for a missing row, got %+v", missing)
	}
}

func TestSession_FindErrors(t *testing.T) {
	s, _ := newTestSession(t)

	tests := []struct {
		name string
		typ  reflect.Type
		id   any
		want error
	}{
		{name: "nil id", typ: personType, id: nil, want: daoerrors.ErrNullArgument},
		{name: "nil type", typ: nil, id: 1, want: daoerrors.ErrNullArgument},
		{name: "wrong id type", typ: personType, id: "one", want: daoerrors.ErrInvalidArgument},
		{name: "non entity type", typ: reflect.TypeFor[int](), id: 1, want: daoerrors.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Find(context.Background(), tt.typ, tt.id); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSession_FindMany(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSession(t)

	fred := testsupport.NewPerson("Fred", "Jones", 35)
	bob := testsupport.NewPerson("Bob", "Jones", 58)
	testsupport.Insert(t, db, fred, bob)

	tracked, err := s.Find(ctx, personType, bob.ID)
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.FindMany(ctx, personType, bob.ID, int64(999), fred.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if got[0] != tracked {
		t.Error("expected the tracked bob")
	}
	if got[1] != nil {
		t.Errorf("expected nil for a missing id, got %+v", got[1])
	}
	if got[2] == nil || got[2].(*Person).FirstName != "Fred" {
		t.Errorf("expected fred, got %+v", got[2])
	}
}

func TestSession_Remove(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSession(t)

	bob := testsupport.NewPerson("Bob", "Jones", 58)
	mustSave(t, s, bob)

	removed, err := s.Remove(ctx, bob)
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Error("expected removal")
	}
	if s.IsAttached(bob) {
		t.Error("removed entity should not be attached")
	}
	if n := testsupport.CountRows(t, db, "people"); n != 0 {
		t.Errorf("expected no rows, got %d", n)
	}

	removed, err = s.Remove(ctx, bob)
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Error("second removal should report false")
	}

	if removed, _ := s.Remove(ctx, testsupport.NewPerson("New", "Person", 1)); removed {
		t.Error("an unsaved entity cannot be removed")
	}
	if _, err := s.Remove(ctx, (*Person)(nil)); !errors.Is(err, daoerrors.ErrNullArgument) {
		t.Errorf("expected ErrNullArgument, got %v", err)
	}
}

func TestSession_RemoveByID(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSession(t)

	fred := testsupport.NewPerson("Fred", "Jones", 35)
	testsupport.Insert(t, db, fred)

	removed, err := s.RemoveByID(ctx, personType, fred.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !removed {
		t.Error("expected removal")
	}
	removed, err = s.RemoveByID(ctx, personType, fred.ID)
	if err != nil {
		t.Fatal(err)
	}
	if removed {
		t.Error("expected false for a missing row")
	}
}

func TestSession_Refresh(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSession(t)

	bob := testsupport.NewPerson("Bob", "Jones", 58)
	mustSave(t, s, bob)

	bob.FirstName = "Changed"
	if err := s.Refresh(ctx, bob); err != nil {
		t.Fatal(err)
	}
	if bob.FirstName != "Bob" {
		t.Errorf("refresh should discard changes, got %q", bob.FirstName)
	}
	if s.Dirty() {
		t.Error("refreshed entity should be clean")
	}

	copyOfBob := *bob
	if err := s.Refresh(ctx, &copyOfBob); err != nil {
		t.Fatal(err)
	}
	if !s.IsAttached(&copyOfBob) || s.IsAttached(bob) {
		t.Error("refresh should attach the refreshed instance")
	}

	if _, err := db.NewDelete().Model(&Person{ID: bob.ID}).WherePK().Exec(ctx); err != nil {
		t.Fatal(err)
	}
	err := s.Refresh(ctx, bob)
	var nf *daoerrors.NotFoundError
	if !errors.As(err, &nf) || !errors.Is(err, daoerrors.ErrEntityNotFound) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestSession_Clear(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSession(t)

	bob := testsupport.NewPerson("Bob", "Jones", 58)
	mustSave(t, s, bob)
	bob.Age = 99
	s.Clear()

	if s.IsAttached(bob) {
		t.Error("clear should detach everything")
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if got := loadRow(t, db, bob.ID).Age; got != 58 {
		t.Errorf("cleared changes should not be written, got %d", got)
	}
}

func TestSession_FlushType(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSession(t)

	bob := testsupport.NewPerson("Bob", "Jones", 58)
	project := &testsupport.Project{Name: "dao"}
	mustSave(t, s, bob)
	mustSave(t, s, project)

	bob.Age = 59
	project.Name = "renamed"
	if err := s.FlushType(ctx, personType); err != nil {
		t.Fatal(err)
	}
	if got := loadRow(t, db, bob.ID).Age; got != 59 {
		t.Errorf("expected person flushed, got %d", got)
	}

	stored := &testsupport.Project{ID: project.ID}
	if err := db.NewSelect().Model(stored).WherePK().Scan(ctx); err != nil {
		t.Fatal(err)
	}
	if stored.Name != "dao" {
		t.Errorf("project should not be flushed yet, got %q", stored.Name)
	}
	if !s.Dirty() {
		t.Error("project changes should still be pending")
	}
}

func TestSession_Closed(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestSession(t)

	bob := testsupport.NewPerson("Bob", "Jones", 58)
	mustSave(t, s, bob)
	s.Close()

	if !s.Closed() {
		t.Fatal("expected closed session")
	}
	if _, err := s.Find(ctx, personType, bob.ID); !errors.Is(err, daoerrors.ErrAttachment) {
		t.Errorf("expected ErrAttachment from Find, got %v", err)
	}
	if _, err := s.Save(ctx, bob); !errors.Is(err, daoerrors.ErrAttachment) {
		t.Errorf("expected ErrAttachment from Save, got %v", err)
	}
	if err := s.Flush(ctx); !errors.Is(err, daoerrors.ErrAttachment) {
		t.Errorf("expected ErrAttachment from Flush, got %v", err)
	}
	if s.IsAttached(bob) {
		t.Error("nothing is attached to a closed session")
	}
}

func TestSession_AttachTracksCleanInstance(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSession(t)

	fred := testsupport.NewPerson("Fred", "Jones", 35)
	testsupport.Insert(t, db, fred)

	if err := s.Attach(fred); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if !s.IsAttached(fred) {
		t.Fatal("expected fred to be attached")
	}
	if s.Dirty() {
		t.Error("attached entity should start clean")
	}

	found, err := s.Find(ctx, personType, fred.ID)
	if err != nil {
		t.Fatal(err)
	}
	if found != fred {
		t.Error("find should return the attached instance")
	}

	fred.Age = 40
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if got := loadRow(t, db, fred.ID); got.Age != 40 {
		t.Errorf("expected flushed age 40, got %d", got.Age)
	}
}

func TestSession_AttachErrors(t *testing.T) {
	s, _ := newTestSession(t)

	tests := []struct {
		name  string
		value any
		want  error
	}{
		{name: "nil", value: nil, want: daoerrors.ErrNullArgument},
		{name: "nil pointer", value: (*Person)(nil), want: daoerrors.ErrNullArgument},
		{name: "unsaved", value: testsupport.NewPerson("Fred", "Jones", 35), want: daoerrors.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.Attach(tt.value); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSession_DetachDropsPendingChanges(t *testing.T) {
	ctx := context.Background()
	s, db := newTestSession(t)

	fred := testsupport.NewPerson("Fred", "Jones", 35)
	mustSave(t, s, fred)

	fred.Age = 99
	s.Detach(fred)
	if s.IsAttached(fred) {
		t.Fatal("expected fred to be detached")
	}
	if err := s.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	if got := loadRow(t, db, fred.ID); got.Age != 35 {
		t.Errorf("detached change should not be flushed, got age %d", got.Age)
	}

	// unsaved and unregistered values are ignored
	s.Detach(testsupport.NewPerson("Bob", "Jones", 58))
	s.Detach(nil)
}
