// Package memory provides the in-memory token store.
//
// Records live in a sharded primary map keyed by ID with secondary
// indexes by token hash and by resource. A store-wide lock keeps the
// indexes consistent and makes ReplaceValid atomic.
//
// The store is volatile; it backs tests, development setups and
// single-process deployments that accept losing tokens on restart.
package memory
