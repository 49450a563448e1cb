package db

import (
	"context"
	"database/sql"
	"embed"

	"github.com/pkg/errors"
	"modernc.org/sqlite"

	"github.com/openshelf/openshelf/util"
	"github.com/openshelf/openshelf/version"
)

type DB struct {
	*sql.DB
}

func init() {
	// Register custom aggregates used by the search queries.
	sqlite.MustRegisterFunction("sortconcat", &sqlite.FunctionImpl{
		NArgs:         1,
		Deterministic: true,
		MakeAggregate: func(ctx sqlite.FunctionContext) (sqlite.AggregateFunction, error) {
			return util.NewSortedConcatenate(","), nil
		},
	})
	sqlite.MustRegisterFunction("concat", &sqlite.FunctionImpl{
		NArgs:         1,
		Deterministic: true,
		MakeAggregate: func(ctx sqlite.FunctionContext) (sqlite.AggregateFunction, error) {
			return util.NewConcatenate(","), nil
		},
	})
}

func NewDB(path string) (*DB, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Single write connection keeps the check-then-act transactions serialized.
	d.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := d.Exec(pragma); err != nil {
			d.Close()
			return nil, errors.Wrapf(err, "failed to apply %q", pragma)
		}
	}

	return &DB{d}, nil
}

func (d *DB) Close() error {
	return d.DB.Close()
}

//go:embed migration
var migrationFS embed.FS

const latestSchemaFileName = "LATEST_SCHEMA.sql"

// Migrate applies the baseline schema when the database is fresh and records
// the running version in migration_history. Re-running is a no-op.
func (d *DB) Migrate(ctx context.Context) error {
	exists, err := d.checkTableExists(ctx, "migration_history")
	if err != nil {
		return errors.Wrap(err, "failed to check migration_history")
	}

	if !exists {
		if err := d.applyLatestSchema(ctx); err != nil {
			return errors.Wrap(err, "failed to apply latest schema")
		}
	}

	if err := d.upsertMigrationHistory(ctx, version.GetCurrentVersion()); err != nil {
		return errors.Wrap(err, "failed to upsert migration history")
	}
	return nil
}

func (d *DB) applyLatestSchema(ctx context.Context) error {
	buf, err := migrationFS.ReadFile("migration/" + latestSchemaFileName)
	if err != nil {
		return errors.Wrapf(err, "failed to read schema file %q", latestSchemaFileName)
	}

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(buf)); err != nil {
		return errors.Wrap(err, "failed to execute schema")
	}
	return tx.Commit()
}

func (d *DB) checkTableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := d.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?)",
		table,
	).Scan(&exists)
	return exists, err
}
