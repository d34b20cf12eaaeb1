package repository

import (
	"context"
	"database/sql"
	"fmt"

	pkgch "OptForge/pkg/clickhouse"
)

// CHArtifactIndex implements ArtifactIndex against the sink's manifest table.
type CHArtifactIndex struct {
	db       *sql.DB
	database string
}

// NewCHArtifactIndex reads the manifest of the given output database. mode
// must match the sink's, so a training run never skips work because of
// backup artifacts.
func NewCHArtifactIndex(ch *pkgch.Client, database, mode string) *CHArtifactIndex {
	return &CHArtifactIndex{db: ch.DB(), database: database + "_" + mode}
}

func (i *CHArtifactIndex) Existing(ctx context.Context) (map[string]string, error) {
	const probe = `SELECT count() FROM system.tables WHERE database = ? AND name = ?`
	var n uint64
	if err := i.db.QueryRowContext(ctx, probe, i.database, manifestTable).Scan(&n); err != nil {
		return nil, fmt.Errorf("probe manifest table: %w", err)
	}
	if n == 0 {
		// first run against a fresh output database
		return map[string]string{}, nil
	}

	q := fmt.Sprintf("SELECT table_name, group_name FROM `%s`.`%s` FINAL", i.database, manifestTable)
	rows, err := i.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]string)
	for rows.Next() {
		var table, group string
		if err := rows.Scan(&table, &group); err != nil {
			return nil, fmt.Errorf("scan manifest row: %w", err)
		}
		existing[table] = group
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("manifest rows: %w", err)
	}
	return existing, nil
}

// NoopArtifactIndex is used when the sink backend keeps no manifest (kafka).
// Every run then re-exports the full window.
type NoopArtifactIndex struct{}

func (NoopArtifactIndex) Existing(context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}
