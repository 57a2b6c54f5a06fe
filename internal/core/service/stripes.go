package service

import (
	"encoding/binary"
	"sync"

	"github.com/spaolacci/murmur3"
)

const lockStripes = 256

// stripedLock serializes work per resource without a map of mutexes.
// Distinct resources may share a stripe, which only costs parallelism.
type stripedLock struct {
	mus [lockStripes]sync.Mutex
}

func (l *stripedLock) lock(resourceID int64) func() {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(resourceID))
	mu := &l.mus[murmur3.Sum32(b[:])%lockStripes]
	mu.Lock()
	return mu.Unlock
}
