// Package postgres implements the token store on PostgreSQL using pgx.
//
// Records live in a single table (default preview_tokens) with indexes on
// token_hash and resource_id and a partial unique index on token_hash for
// non-revoked rows. ReplaceValid takes a transaction-scoped advisory lock
// keyed by the resource ID, which serializes reissue across processes that
// share the database.
package postgres
