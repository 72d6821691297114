package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFixture(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.txt")
	testContent := []byte("test fixture content")

	if err := os.WriteFile(testFile, testContent, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	result := LoadFixture(t, testFile)
	if string(result) != string(testContent) {
		t.Errorf("expected %q, got %q", testContent, result)
	}
}

func TestLoadFixtureJSON(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "test.json")
	testData := map[string]any{
		"name":  "test",
		"value": 42,
	}

	jsonData, err := json.Marshal(testData)
	if err != nil {
		t.Fatalf("failed to marshal test data: %v", err)
	}
	if err := os.WriteFile(testFile, jsonData, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	var result map[string]any
	LoadFixtureJSON(t, testFile, &result)

	if result["name"] != "test" {
		t.Errorf("expected name=test, got %v", result["name"])
	}
	if result["value"] != float64(42) {
		t.Errorf("expected value=42, got %v", result["value"])
	}
}

func TestLoadPeople(t *testing.T) {
	people := LoadPeople(t, FixturePath("people.json"))

	if len(people) != 4 {
		t.Fatalf("expected 4 people, got %d", len(people))
	}
	if people[0].FirstName != "Fred" || people[0].Age != 35 {
		t.Errorf("unexpected first person: %+v", people[0])
	}
	if people[0].ID != 0 {
		t.Error("fixture people should be unsaved")
	}
}

func TestFixturePath(t *testing.T) {
	expected := filepath.Join("testdata", "people.json")
	if got := FixturePath("people.json"); got != expected {
		t.Errorf("expected %q, got %q", expected, got)
	}
}

func TestNewSQLiteDB(t *testing.T) {
	db := NewSQLiteDB(t)

	fred := NewPerson("Fred", "Jones", 35)
	Insert(t, db, fred)
	if fred.ID == 0 {
		t.Fatal("expected generated id")
	}

	if n := CountRows(t, db, "people"); n != 1 {
		t.Errorf("expected 1 person, got %d", n)
	}
	if n := CountRows(t, db, "projects"); n != 0 {
		t.Errorf("expected no projects, got %d", n)
	}

	loaded := &Person{ID: fred.ID}
	if err := db.NewSelect().Model(loaded).WherePK().Scan(context.Background()); err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if loaded.FirstName != "Fred" {
		t.Errorf("expected Fred, got %+v", loaded)
	}
}

func TestNewSQLiteDB_Isolated(t *testing.T) {
	a := NewSQLiteDB(t)
	b := NewSQLiteDB(t)

	Insert(t, a, NewPerson("Bob", "Jones", 58))

	if n := CountRows(t, b, "people"); n != 0 {
		t.Errorf("databases should not share rows, got %d", n)
	}
}
