package facts

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "facts.db"))
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetAndGet(t *testing.T) {
	s := testStore(t)

	fact, err := s.Set("ada", "coffee", "cortado, no sugar", CategoryPreference)
	if err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if fact.Value != "cortado, no sugar" {
		t.Errorf("value = %q, want %q", fact.Value, "cortado, no sugar")
	}
	if fact.Category != CategoryPreference {
		t.Errorf("category = %q, want %q", fact.Category, CategoryPreference)
	}

	got, err := s.Get("ada", "coffee")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got.Value != fact.Value {
		t.Errorf("Get() value = %q, want %q", got.Value, fact.Value)
	}
}

func TestSetUpsert(t *testing.T) {
	s := testStore(t)

	first, err := s.Set("ada", "gym_day", "tuesday", CategoryRoutine)
	if err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)

	second, err := s.Set("ada", "gym_day", "thursday", CategoryRoutine)
	if err != nil {
		t.Fatalf("second Set() error: %v", err)
	}

	if second.Value != "thursday" {
		t.Errorf("value after upsert = %q, want %q", second.Value, "thursday")
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Errorf("created_at changed on upsert: %v -> %v", first.CreatedAt, second.CreatedAt)
	}
	if !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("updated_at not refreshed: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}

	n, err := s.Count("ada")
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1 (upsert must not duplicate)", n)
	}
}

func TestSetDefaultCategory(t *testing.T) {
	s := testStore(t)

	fact, err := s.Set("ada", "misc", "something", "")
	if err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	if fact.Category != CategoryOther {
		t.Errorf("category = %q, want %q", fact.Category, CategoryOther)
	}
}

func TestGetAllOrdering(t *testing.T) {
	s := testStore(t)

	s.Set("ada", "sister", "Lucía, lives in Sevilla", CategoryPeople)
	s.Set("ada", "coffee", "cortado", CategoryPreference)
	s.Set("ada", "name", "Álvaro", CategoryPersonal)

	facts, err := s.GetAll("ada")
	if err != nil {
		t.Fatalf("GetAll() error: %v", err)
	}
	if len(facts) != 3 {
		t.Fatalf("len = %d, want 3", len(facts))
	}
	// Ordered by category then key: people < personal < preference.
	wantKeys := []string{"sister", "name", "coffee"}
	for i, f := range facts {
		if f.Key != wantKeys[i] {
			t.Errorf("facts[%d].Key = %q, want %q", i, f.Key, wantKeys[i])
		}
	}
}

func TestGetAllScopedToOwner(t *testing.T) {
	s := testStore(t)

	s.Set("ada", "coffee", "cortado", CategoryPreference)
	s.Set("otra", "coffee", "americano", CategoryPreference)

	facts, err := s.GetAll("ada")
	if err != nil {
		t.Fatalf("GetAll() error: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("len = %d, want 1", len(facts))
	}
	if facts[0].Value != "cortado" {
		t.Errorf("value = %q, want %q", facts[0].Value, "cortado")
	}
}

func TestSearch(t *testing.T) {
	s := testStore(t)

	s.Set("ada", "sister_birthday", "March 3rd", CategoryPeople)
	s.Set("ada", "mother_birthday", "July 12th", CategoryPeople)
	s.Set("ada", "coffee", "cortado", CategoryPreference)

	matches, err := s.Search("ada", "birthday")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len = %d, want 2", len(matches))
	}
	for _, f := range matches {
		if !strings.Contains(f.Key, "birthday") {
			t.Errorf("unexpected match: %q", f.Key)
		}
	}

	matches, err = s.Search("ada", "March")
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(matches) != 1 || matches[0].Key != "sister_birthday" {
		t.Errorf("value search = %v, want sister_birthday only", matches)
	}
}

func TestDelete(t *testing.T) {
	s := testStore(t)

	s.Set("ada", "temp", "delete me", CategoryOther)
	if err := s.Delete("ada", "temp"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := s.Get("ada", "temp"); err == nil {
		t.Error("Get() after delete should fail")
	}
}

func TestDeleteNotFound(t *testing.T) {
	s := testStore(t)

	err := s.Delete("ada", "never_existed")
	if err == nil {
		t.Fatal("Delete() of missing key should fail")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v, want not-found", err)
	}
}
