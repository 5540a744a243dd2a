// Package facts provides long-term memory storage for learned information.
//
// Facts live in durable storage independent of conversation history:
// they are read in full at prompt-build time and written through the
// remember_fact tool, so a saved fact is visible to the very next model
// call.
package facts

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Category groups related facts.
type Category string

const (
	CategoryPersonal   Category = "personal"   // Who the owner is
	CategoryPreference Category = "preference" // How the owner likes things
	CategoryRoutine    Category = "routine"    // Recurring habits and schedules
	CategoryPeople     Category = "people"     // Friends, family, colleagues
	CategoryOther      Category = "other"
)

// Fact represents a piece of long-term memory. Facts are unique per
// (owner, key) and carry upsert semantics.
type Fact struct {
	Owner     string    `json:"owner"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Category  Category  `json:"category"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store manages fact persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a fact store using the given database path.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// NewStoreWithDB creates a fact store using an existing database connection.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS facts (
			owner TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT 'other',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (owner, key)
		);

		CREATE INDEX IF NOT EXISTS idx_facts_owner ON facts(owner);
		CREATE INDEX IF NOT EXISTS idx_facts_category ON facts(category);
	`)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Set creates or updates a fact. Upsert semantics on (owner, key): the
// created_at timestamp survives updates, updated_at is refreshed.
func (s *Store) Set(owner, key, value string, category Category) (*Fact, error) {
	if category == "" {
		category = CategoryOther
	}
	now := time.Now().UTC()

	_, err := s.db.Exec(`
		INSERT INTO facts (owner, key, value, category, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, key) DO UPDATE SET
			value = excluded.value,
			category = excluded.category,
			updated_at = excluded.updated_at
	`, owner, key, value, category, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}

	return s.Get(owner, key)
}

// Get retrieves a fact by owner and key.
func (s *Store) Get(owner, key string) (*Fact, error) {
	return scanFact(s.db.QueryRow(`
		SELECT owner, key, value, category, created_at, updated_at
		FROM facts WHERE owner = ? AND key = ?
	`, owner, key))
}

// GetAll retrieves all facts for an owner, ordered by category then key.
func (s *Store) GetAll(owner string) ([]*Fact, error) {
	rows, err := s.db.Query(`
		SELECT owner, key, value, category, created_at, updated_at
		FROM facts WHERE owner = ? ORDER BY category, key
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	return collectFacts(rows)
}

// Search finds an owner's facts containing the query in key or value.
func (s *Store) Search(owner, query string) ([]*Fact, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT owner, key, value, category, created_at, updated_at
		FROM facts
		WHERE owner = ? AND (key LIKE ? OR value LIKE ?)
		ORDER BY updated_at DESC
		LIMIT 50
	`, owner, pattern, pattern)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	return collectFacts(rows)
}

// Delete removes a fact.
func (s *Store) Delete(owner, key string) error {
	result, err := s.db.Exec(`DELETE FROM facts WHERE owner = ? AND key = ?`, owner, key)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("fact not found: %s", key)
	}
	return nil
}

// Count returns the number of facts stored for an owner.
func (s *Store) Count(owner string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM facts WHERE owner = ?`, owner).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFact(row rowScanner) (*Fact, error) {
	var f Fact
	var catStr, createdStr, updatedStr string

	err := row.Scan(&f.Owner, &f.Key, &f.Value, &catStr, &createdStr, &updatedStr)
	if err != nil {
		return nil, err
	}

	f.Category = Category(catStr)
	f.CreatedAt, _ = time.Parse(time.RFC3339, createdStr)
	f.UpdatedAt, _ = time.Parse(time.RFC3339, updatedStr)

	return &f, nil
}

func collectFacts(rows *sql.Rows) ([]*Fact, error) {
	var facts []*Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	return facts, rows.Err()
}
