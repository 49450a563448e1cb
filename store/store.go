package store

import (
	"database/sql"
	"sync"

	"github.com/openshelf/openshelf/store/db"
)

// Store wraps the sqlite database. Write transactions are serialized by mu so
// the check-then-act sequences in checkout and fine payment stay atomic with
// respect to each other; reads run unlocked.
type Store struct {
	db *db.DB
	mu sync.Mutex
}

func NewStore(db *db.DB) *Store {
	return &Store{
		db: db,
	}
}

func (s *Store) DBStats() sql.DBStats {
	return s.db.Stats()
}

func (s *Store) Ping() error {
	return s.db.Ping()
}

func (s *Store) Close() error {
	return s.db.Close()
}
