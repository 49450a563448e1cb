package db

import (
	"context"
)

type MigrationHistory struct {
	Version   string
	CreatedTs int64
}

func (d *DB) upsertMigrationHistory(ctx context.Context, version string) error {
	stmt := `
		INSERT INTO migration_history (version)
		VALUES (?)
		ON CONFLICT(version) DO UPDATE SET version = EXCLUDED.version
	`
	_, err := d.ExecContext(ctx, stmt, version)
	return err
}

func (d *DB) FindMigrationHistoryList(ctx context.Context) ([]*MigrationHistory, error) {
	rows, err := d.QueryContext(ctx, `
		SELECT version, created_ts
		FROM migration_history
		ORDER BY created_ts DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]*MigrationHistory, 0)
	for rows.Next() {
		var history MigrationHistory
		if err := rows.Scan(&history.Version, &history.CreatedTs); err != nil {
			return nil, err
		}
		list = append(list, &history)
	}
	return list, rows.Err()
}
