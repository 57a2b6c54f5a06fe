// Package cmap provides a sharded concurrent map keyed by strings or
// int64 IDs.
//
// Keys are spread over a power-of-two number of shards by murmur3, each
// guarded by its own RWMutex. Operations spanning several keys are not
// atomic; callers needing that hold their own lock.
package cmap
