package store

import (
	"context"
	"testing"

	"github.com/openshelf/openshelf/config"
	"github.com/openshelf/openshelf/log"
	"github.com/openshelf/openshelf/model"
	"github.com/openshelf/openshelf/store/db"
)

// Initialize the logger and config
func init() {
	config.Opts = config.GetDefaultOptions()
	config.Opts.LogLevel = "error"
	log.Logger = log.NewLogger()
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.NewDB(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := d.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return NewStore(d)
}

func seedBook(t *testing.T, s *Store, isbn, title string, authors ...string) {
	t.Helper()
	_, err := s.CreateBook(&model.BookCreateRequest{ISBN: isbn, Title: title, Authors: authors})
	if err != nil {
		t.Fatalf("Failed to create book %s: %v", isbn, err)
	}
}

func seedBorrower(t *testing.T, s *Store, ssn, name string) *model.Borrower {
	t.Helper()
	borrower, err := s.CreateBorrower(&model.BorrowerCreateRequest{
		SSN:     ssn,
		Name:    name,
		Address: "100 Main St",
	})
	if err != nil {
		t.Fatalf("Failed to create borrower %s: %v", name, err)
	}
	return borrower
}
