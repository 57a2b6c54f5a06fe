package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// schemaStatements creates the token table and its indexes. Each entry
// is a format string taking the sanitized table name and the index name.
var schemaStatements = []struct {
	index string
	sql   string
}{
	{"", `CREATE TABLE IF NOT EXISTS %s (
		id          TEXT PRIMARY KEY,
		resource_id BIGINT NOT NULL,
		token_hash  TEXT NOT NULL,
		issuer_id   TEXT NULL,
		created_at  BIGINT NOT NULL,
		expires_at  BIGINT NULL,
		revoked     BOOLEAN NOT NULL DEFAULT FALSE
	)%.0s`},
	{"hash_idx", `CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (token_hash)`},
	{"resource_idx", `CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (resource_id, created_at DESC)`},
	{"created_idx", `CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (created_at DESC, id DESC)`},
	{"active_hash_uidx", `CREATE UNIQUE INDEX IF NOT EXISTS %[2]s ON %[1]s (token_hash) WHERE NOT revoked`},
}

// activeHashIndex names the partial unique index for a table.
func activeHashIndex(table string) string {
	return table + "_active_hash_uidx"
}

// Migrate creates the table and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	table := pgx.Identifier{s.cfg.Table}.Sanitize()
	for _, stmt := range schemaStatements {
		index := pgx.Identifier{s.cfg.Table + "_" + stmt.index}.Sanitize()
		if _, err := s.pool.Exec(ctx, fmt.Sprintf(stmt.sql, table, index)); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	s.logger.Debug("postgres schema ready", "table", s.cfg.Table)
	return nil
}
