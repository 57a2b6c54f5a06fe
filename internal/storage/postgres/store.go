package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yndnr/previewshare-go/internal/core/domain"
)

// DefaultTable is the default token table name.
const DefaultTable = "preview_tokens"

// Config configures the postgres driver.
type Config struct {
	// DSN is a libpq connection string or URL.
	DSN string `koanf:"dsn" json:"dsn" yaml:"dsn"`

	// Table is the token table name.
	Table string `koanf:"table" json:"table" yaml:"table"`

	// MaxConns bounds the connection pool. 0 keeps the pgx default.
	MaxConns int32 `koanf:"max_conns" json:"max_conns" yaml:"max_conns"`

	// AutoMigrate creates the schema on open.
	AutoMigrate bool `koanf:"auto_migrate" json:"auto_migrate" yaml:"auto_migrate"`
}

// DefaultConfig returns the default driver configuration.
func DefaultConfig() Config {
	return Config{
		Table:       DefaultTable,
		MaxConns:    10,
		AutoMigrate: true,
	}
}

// Store is a PostgreSQL-backed token store.
type Store struct {
	pool   *pgxpool.Pool
	cfg    Config
	logger *slog.Logger

	q queries
}

// queries holds the SQL rendered for the configured table.
type queries struct {
	insert        string
	revokeValid   string
	findValid     string
	findByHash    string
	revokeByHash  string
	revokeByID    string
	count         string
	list          string
	latest        string
	hashes        string
	deleteAll     string
	activeHashIdx string
}

const columns = "id, resource_id, token_hash, issuer_id, created_at, expires_at, revoked"

func buildQueries(table string) queries {
	t := pgx.Identifier{table}.Sanitize()
	return queries{
		insert: fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7)`, t, columns),
		revokeValid: fmt.Sprintf(`UPDATE %s SET revoked = TRUE
			WHERE resource_id = $1 AND NOT revoked AND (expires_at IS NULL OR expires_at > $2)
			RETURNING token_hash`, t),
		findValid: fmt.Sprintf(`SELECT %s FROM %s WHERE token_hash = $1
			AND NOT revoked AND (expires_at IS NULL OR expires_at > $2)
			ORDER BY created_at DESC, id DESC LIMIT 1`, columns, t),
		findByHash: fmt.Sprintf(`SELECT %s FROM %s WHERE token_hash = $1
			ORDER BY created_at DESC, id DESC LIMIT 1`, columns, t),
		revokeByHash: fmt.Sprintf(`UPDATE %[1]s AS t SET revoked = TRUE
			FROM (SELECT id, revoked FROM %[1]s WHERE token_hash = $1
				ORDER BY created_at DESC, id DESC LIMIT 1 FOR UPDATE) AS prev
			WHERE t.id = prev.id
			RETURNING t.id, t.resource_id, t.token_hash, t.issuer_id, t.created_at, t.expires_at, prev.revoked`, t),
		revokeByID: fmt.Sprintf(`UPDATE %[1]s AS t SET revoked = TRUE
			FROM (SELECT id, revoked FROM %[1]s WHERE id = $1 FOR UPDATE) AS prev
			WHERE t.id = prev.id
			RETURNING t.id, t.resource_id, t.token_hash, t.issuer_id, t.created_at, t.expires_at, prev.revoked`, t),
		count: fmt.Sprintf(`SELECT count(*) FROM %s`, t),
		list: fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC, id DESC
			LIMIT $1 OFFSET $2`, columns, t),
		latest: fmt.Sprintf(`SELECT %s FROM %s WHERE resource_id = $1
			ORDER BY created_at DESC, id DESC LIMIT 1`, columns, t),
		hashes:        fmt.Sprintf(`SELECT token_hash FROM %s WHERE resource_id = $1`, t),
		deleteAll:     fmt.Sprintf(`DELETE FROM %s WHERE resource_id = $1 RETURNING token_hash`, t),
		activeHashIdx: activeHashIndex(table),
	}
}

// Open connects to PostgreSQL and, if configured, migrates the schema.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if logger == nil {
		logger = slog.Default()
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	s := &Store{pool: pool, cfg: cfg, logger: logger, q: buildQueries(cfg.Table)}
	if cfg.AutoMigrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}

	logger.Info("postgres token store opened", "table", cfg.Table, "max_conns", poolCfg.MaxConns)
	return s, nil
}

// Create stores a new record.
func (s *Store) Create(ctx context.Context, rec *domain.TokenRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, s.q.insert, insertArgs(rec)...)
	return s.mapError(err)
}

// ReplaceValid revokes the resource's valid records and inserts rec in one
// transaction, holding an advisory lock on the resource ID.
func (s *Store) ReplaceValid(ctx context.Context, rec *domain.TokenRecord, now time.Time) ([]string, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, s.mapError(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, rec.ResourceID); err != nil {
		return nil, s.mapError(err)
	}

	rows, err := tx.Query(ctx, s.q.revokeValid, rec.ResourceID, now.UnixMilli())
	if err != nil {
		return nil, s.mapError(err)
	}
	revoked, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, s.mapError(err)
	}

	if _, err := tx.Exec(ctx, s.q.insert, insertArgs(rec)...); err != nil {
		return nil, s.mapError(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, s.mapError(err)
	}
	return revoked, nil
}

// FindValidByHash returns the record for hash if it is valid at now.
// The validity filter is part of the query, which the partial unique
// index on live hashes serves.
func (s *Store) FindValidByHash(ctx context.Context, hash string, now time.Time) (*domain.TokenRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, s.q.findValid, hash, now.UnixMilli()))
	if err != nil {
		return nil, s.mapError(err)
	}
	return rec, nil
}

// FindByHash returns the newest record for hash in any state.
func (s *Store) FindByHash(ctx context.Context, hash string) (*domain.TokenRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, s.q.findByHash, hash))
	if err != nil {
		return nil, s.mapError(err)
	}
	return rec, nil
}

// RevokeByHash revokes the record for hash.
func (s *Store) RevokeByHash(ctx context.Context, hash string) (*domain.TokenRecord, bool, error) {
	return s.revoke(ctx, s.q.revokeByHash, hash)
}

// RevokeByID revokes the record with id.
func (s *Store) RevokeByID(ctx context.Context, id string) (*domain.TokenRecord, bool, error) {
	return s.revoke(ctx, s.q.revokeByID, id)
}

func (s *Store) revoke(ctx context.Context, query, key string) (*domain.TokenRecord, bool, error) {
	var (
		rec        domain.TokenRecord
		issuer     *string
		expires    *int64
		wasRevoked bool
	)
	err := s.pool.QueryRow(ctx, query, key).Scan(
		&rec.ID, &rec.ResourceID, &rec.TokenHash, &issuer, &rec.CreatedAt, &expires, &wasRevoked,
	)
	if err != nil {
		return nil, false, s.mapError(err)
	}
	fillNullable(&rec, issuer, expires)
	rec.Revoked = true
	return &rec, !wasRevoked, nil
}

// List returns one page of records, newest first.
func (s *Store) List(ctx context.Context, page, pageSize int) ([]*domain.TokenRecord, int, error) {
	if page < 1 || pageSize < 1 {
		return nil, 0, domain.ErrInvalidArgument.WithDetails("page and page size must be positive")
	}

	var total int
	if err := s.pool.QueryRow(ctx, s.q.count).Scan(&total); err != nil {
		return nil, 0, s.mapError(err)
	}

	rows, err := s.pool.Query(ctx, s.q.list, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, s.mapError(err)
	}
	defer rows.Close()

	out := make([]*domain.TokenRecord, 0, pageSize)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, s.mapError(err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, s.mapError(err)
	}
	return out, total, nil
}

// LatestForResource returns the newest record of a resource.
func (s *Store) LatestForResource(ctx context.Context, resourceID int64) (*domain.TokenRecord, error) {
	rec, err := scanRecord(s.pool.QueryRow(ctx, s.q.latest, resourceID))
	if err != nil {
		return nil, s.mapError(err)
	}
	return rec, nil
}

// HashesForResource returns the hashes of every record of a resource.
func (s *Store) HashesForResource(ctx context.Context, resourceID int64) ([]string, error) {
	return s.collectHashes(ctx, s.q.hashes, resourceID)
}

// DeleteAllForResource removes every record of a resource.
func (s *Store) DeleteAllForResource(ctx context.Context, resourceID int64) ([]string, error) {
	return s.collectHashes(ctx, s.q.deleteAll, resourceID)
}

func (s *Store) collectHashes(ctx context.Context, query string, resourceID int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, query, resourceID)
	if err != nil {
		return nil, s.mapError(err)
	}
	hashes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, s.mapError(err)
	}
	if hashes == nil {
		hashes = []string{}
	}
	return hashes, nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func insertArgs(rec *domain.TokenRecord) []any {
	var issuer *string
	if rec.IssuerID != "" {
		issuer = &rec.IssuerID
	}
	var expires *int64
	if rec.ExpiresAt != 0 {
		expires = &rec.ExpiresAt
	}
	return []any{rec.ID, rec.ResourceID, rec.TokenHash, issuer, rec.CreatedAt, expires, rec.Revoked}
}

func scanRecord(row pgx.Row) (*domain.TokenRecord, error) {
	var (
		rec     domain.TokenRecord
		issuer  *string
		expires *int64
	)
	if err := row.Scan(&rec.ID, &rec.ResourceID, &rec.TokenHash, &issuer, &rec.CreatedAt, &expires, &rec.Revoked); err != nil {
		return nil, err
	}
	fillNullable(&rec, issuer, expires)
	return &rec, nil
}

func fillNullable(rec *domain.TokenRecord, issuer *string, expires *int64) {
	if issuer != nil {
		rec.IssuerID = *issuer
	}
	if expires != nil {
		rec.ExpiresAt = *expires
	}
}

// mapError converts pgx errors into domain errors.
func (s *Store) mapError(err error) error {
	mapped := mapError(err, s.q.activeHashIdx)
	if domain.IsDomainError(mapped, domain.ErrStorageError.Code) {
		s.logger.Error("postgres query failed", "error", err)
	}
	return mapped
}

func mapError(err error, activeHashIdx string) error {
	if err == nil {
		return nil
	}
	if domain.IsDomainError(err, "") {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrTokenNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			if pgErr.ConstraintName == activeHashIdx {
				return domain.ErrTokenHashConflict.WithCause(err)
			}
			return domain.ErrInvalidArgument.WithDetails("token id already exists").WithCause(err)
		case "40001", "40P01":
			return domain.ErrReissueConflict.WithCause(err)
		case "57P01", "57P02", "57P03", "53300":
			return domain.ErrStorageUnavailable.WithCause(err)
		}
		return domain.ErrStorageError.WithCause(err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) ||
		pgconn.Timeout(err) {
		return domain.ErrStorageUnavailable.WithCause(err)
	}
	return domain.ErrStorageError.WithCause(err)
}
