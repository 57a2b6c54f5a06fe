// Package storage provides the token store drivers and their wiring.
//
// Drivers:
//
//   - memory: sharded in-memory maps, volatile (package memory)
//   - badger: embedded Badger v3 key-value store, durable
//   - postgres: PostgreSQL through pgxpool (package postgres)
//
// Open selects a driver from Config and wraps it with WithTimeout so
// that every store call carries a deadline and a timeout surfaces as
// domain.ErrStorageUnavailable.
//
// Badger key layout:
//
//	t/<id>                   -> JSON token record
//	h/<hash>                 -> id of the newest record with that hash
//	r/<resource>/<id>        -> empty (resource index)
//	s/<resource>             -> id of the last replacement (conflict slot)
//
// Resource IDs are encoded as 16 hex digits so prefixes never overlap.
package storage
