package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/previewshare-go/internal/core/domain"
)

// Key prefixes.
const (
	prefixRecord   = "t/"
	prefixHash     = "h/"
	prefixResource = "r/"
	prefixSlot     = "s/"
)

// BadgerStore implements the token store on Badger v3.
type BadgerStore struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger

	lastGCTime atomic.Int64 // Unix milliseconds
	gcRuns     atomic.Uint64

	// Prometheus metrics
	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge
	metricsGCRuns       prometheus.CounterFunc

	// Shutdown
	stopCh chan struct{}
	doneCh chan struct{}
	closed atomic.Bool
}

// NewBadgerStore opens a Badger-backed token store.
func NewBadgerStore(cfg BadgerConfig, logger *slog.Logger) (*BadgerStore, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: logger}
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumMemtables > 0 {
		opts.NumMemtables = cfg.NumMemtables
	}
	opts.SyncWrites = cfg.SyncWrites
	// ReplaceValid relies on optimistic conflict detection.
	opts.DetectConflicts = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	s := &BadgerStore{
		db:     db,
		cfg:    cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	go s.gcLoop()

	logger.Info("badger token store opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"gc_interval", cfg.GCInterval)

	return s, nil
}

// Create inserts a new record.
func (s *BadgerStore) Create(ctx context.Context, rec *domain.TokenRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return s.update(ctx, func(txn *badger.Txn) error {
		if err := checkInsert(txn, rec, time.UnixMilli(rec.CreatedAt)); err != nil {
			return err
		}
		return putRecord(txn, rec, true)
	})
}

// ReplaceValid revokes the resource's valid records and inserts rec in one
// transaction. Concurrent replacements of the same resource conflict on the
// resource slot key.
func (s *BadgerStore) ReplaceValid(ctx context.Context, rec *domain.TokenRecord, now time.Time) ([]string, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}

	var revoked []string
	err := s.update(ctx, func(txn *badger.Txn) error {
		revoked = revoked[:0]

		// Register the slot as read so a concurrent writer conflicts.
		if _, err := txn.Get(slotKey(rec.ResourceID)); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := checkInsert(txn, rec, now); err != nil {
			return err
		}

		ids, err := resourceIDs(txn, rec.ResourceID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			existing, err := getRecord(txn, id)
			if err != nil {
				if errors.Is(err, domain.ErrTokenNotFound) {
					continue
				}
				return err
			}
			if !existing.IsValidAt(now) {
				continue
			}
			existing.Revoked = true
			if err := putRecord(txn, existing, false); err != nil {
				return err
			}
			revoked = append(revoked, existing.TokenHash)
		}

		if err := txn.Set(slotKey(rec.ResourceID), []byte(rec.ID)); err != nil {
			return err
		}
		return putRecord(txn, rec, true)
	})
	if err != nil {
		return nil, err
	}
	return revoked, nil
}

// FindValidByHash returns the record for hash if it is valid at now.
func (s *BadgerStore) FindValidByHash(ctx context.Context, hash string, now time.Time) (*domain.TokenRecord, error) {
	var rec *domain.TokenRecord
	err := s.view(ctx, func(txn *badger.Txn) error {
		r, err := recordByHash(txn, hash)
		if err != nil {
			return err
		}
		if !r.IsValidAt(now) {
			return domain.ErrTokenNotFound
		}
		rec = r
		return nil
	})
	return rec, err
}

// FindByHash returns the record for hash in any state.
func (s *BadgerStore) FindByHash(ctx context.Context, hash string) (*domain.TokenRecord, error) {
	var rec *domain.TokenRecord
	err := s.view(ctx, func(txn *badger.Txn) error {
		r, err := recordByHash(txn, hash)
		rec = r
		return err
	})
	return rec, err
}

// RevokeByHash revokes the record for hash.
func (s *BadgerStore) RevokeByHash(ctx context.Context, hash string) (*domain.TokenRecord, bool, error) {
	return s.revoke(ctx, func(txn *badger.Txn) (*domain.TokenRecord, error) {
		return recordByHash(txn, hash)
	})
}

// RevokeByID revokes the record with id.
func (s *BadgerStore) RevokeByID(ctx context.Context, id string) (*domain.TokenRecord, bool, error) {
	return s.revoke(ctx, func(txn *badger.Txn) (*domain.TokenRecord, error) {
		return getRecord(txn, id)
	})
}

func (s *BadgerStore) revoke(ctx context.Context, load func(*badger.Txn) (*domain.TokenRecord, error)) (*domain.TokenRecord, bool, error) {
	var (
		rec     *domain.TokenRecord
		changed bool
	)
	err := s.update(ctx, func(txn *badger.Txn) error {
		r, err := load(txn)
		if err != nil {
			return err
		}
		rec, changed = r, false
		if r.Revoked {
			return nil
		}
		r.Revoked = true
		changed = true
		return putRecord(txn, r, false)
	})
	if err != nil {
		return nil, false, err
	}
	return rec, changed, nil
}

// List returns one page of records, newest first. Record IDs are ULIDs,
// so reverse key order is creation order.
func (s *BadgerStore) List(ctx context.Context, page, pageSize int) ([]*domain.TokenRecord, int, error) {
	if page < 1 || pageSize < 1 {
		return nil, 0, domain.ErrInvalidArgument.WithDetails("page and page size must be positive")
	}

	out := []*domain.TokenRecord{}
	total := 0
	skip := (page - 1) * pageSize

	err := s.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixRecord)
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append([]byte(prefixRecord), 0xFF)); it.Valid(); it.Next() {
			total++
			if total <= skip || len(out) >= pageSize {
				continue
			}
			var rec domain.TokenRecord
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &rec)
			}); err != nil {
				return err
			}
			out = append(out, &rec)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

// LatestForResource returns the newest record of a resource.
func (s *BadgerStore) LatestForResource(ctx context.Context, resourceID int64) (*domain.TokenRecord, error) {
	var rec *domain.TokenRecord
	err := s.view(ctx, func(txn *badger.Txn) error {
		ids, err := resourceIDs(txn, resourceID)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return domain.ErrTokenNotFound
		}
		// resourceIDs is in ascending key order.
		rec, err = getRecord(txn, ids[len(ids)-1])
		return err
	})
	return rec, err
}

// HashesForResource returns the hashes of every record of a resource.
func (s *BadgerStore) HashesForResource(ctx context.Context, resourceID int64) ([]string, error) {
	var hashes []string
	err := s.view(ctx, func(txn *badger.Txn) error {
		ids, err := resourceIDs(txn, resourceID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			rec, err := getRecord(txn, id)
			if err != nil {
				if errors.Is(err, domain.ErrTokenNotFound) {
					continue
				}
				return err
			}
			hashes = append(hashes, rec.TokenHash)
		}
		return nil
	})
	return hashes, err
}

// DeleteAllForResource removes every record of a resource.
func (s *BadgerStore) DeleteAllForResource(ctx context.Context, resourceID int64) ([]string, error) {
	var hashes []string
	err := s.update(ctx, func(txn *badger.Txn) error {
		hashes = hashes[:0]
		ids, err := resourceIDs(txn, resourceID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			rec, err := getRecord(txn, id)
			if err == nil {
				hashes = append(hashes, rec.TokenHash)
				owner, err := txn.Get(hashKey(rec.TokenHash))
				if err == nil {
					v, err := owner.ValueCopy(nil)
					if err != nil {
						return err
					}
					if string(v) == id {
						if err := txn.Delete(hashKey(rec.TokenHash)); err != nil {
							return err
						}
					}
				} else if !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}
			} else if !errors.Is(err, domain.ErrTokenNotFound) {
				return err
			}
			if err := txn.Delete(recordKey(id)); err != nil {
				return err
			}
			if err := txn.Delete(resourceKey(resourceID, id)); err != nil {
				return err
			}
		}
		return txn.Delete(slotKey(resourceID))
	})
	if err != nil {
		return nil, err
	}
	return hashes, nil
}

// GC runs value log garbage collection until nothing is left to rewrite.
func (s *BadgerStore) GC(ctx context.Context) error {
	start := time.Now()
	rounds := 0
	for ctx.Err() == nil {
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return fmt.Errorf("gc: %w", err)
		}
		rounds++
	}

	s.lastGCTime.Store(time.Now().UnixMilli())
	s.gcRuns.Add(1)
	s.logger.Debug("badger gc completed", "rewrites", rounds, "elapsed", time.Since(start))
	return nil
}

// Close stops background work and closes the database.
func (s *BadgerStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.stopCh)
	<-s.doneCh

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("badger: close db: %w", err)
	}
	s.logger.Info("badger token store closed")
	return nil
}

// RegisterMetrics registers Badger size and GC metrics.
func (s *BadgerStore) RegisterMetrics(registry prometheus.Registerer) *BadgerStore {
	s.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "previewshare",
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	s.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "previewshare",
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	s.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "previewshare",
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last Badger GC run",
	})
	s.metricsGCRuns = prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "previewshare",
		Subsystem: "badger",
		Name:      "gc_runs_total",
		Help:      "Completed Badger value log GC runs",
	}, func() float64 { return float64(s.gcRuns.Load()) })

	registry.MustRegister(
		s.metricsLSMSize,
		s.metricsValueLogSize,
		s.metricsLastGCTime,
		s.metricsGCRuns,
	)

	s.updateMetrics()
	return s
}

func (s *BadgerStore) updateMetrics() {
	if s.metricsLSMSize == nil {
		return
	}
	lsm, vlog := s.db.Size()
	s.metricsLSMSize.Set(float64(lsm))
	s.metricsValueLogSize.Set(float64(vlog))
	if ts := s.lastGCTime.Load(); ts > 0 {
		s.metricsLastGCTime.Set(float64(ts) / 1000.0)
	}
}

// gcLoop runs periodic garbage collection and refreshes size metrics.
func (s *BadgerStore) gcLoop() {
	defer close(s.doneCh)

	interval := s.cfg.GCInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	gcTicker := time.NewTicker(interval)
	defer gcTicker.Stop()
	metricsTicker := time.NewTicker(15 * time.Second)
	defer metricsTicker.Stop()

	for {
		select {
		case <-gcTicker.C:
			if s.cfg.InMemory {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if err := s.GC(ctx); err != nil {
				s.logger.Error("auto gc failed", "error", err)
			}
			cancel()
		case <-metricsTicker.C:
			s.updateMetrics()
		case <-s.stopCh:
			return
		}
	}
}

// ============================================================================
// transactions
// ============================================================================

func (s *BadgerStore) view(ctx context.Context, fn func(*badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return mapBadgerError(err)
	}
	return mapBadgerError(s.db.View(fn))
}

func (s *BadgerStore) update(ctx context.Context, fn func(*badger.Txn) error) error {
	if err := ctx.Err(); err != nil {
		return mapBadgerError(err)
	}
	return mapBadgerError(s.db.Update(fn))
}

func mapBadgerError(err error) error {
	switch {
	case err == nil:
		return nil
	case domain.IsDomainError(err, ""):
		return err
	case errors.Is(err, badger.ErrConflict):
		return domain.ErrReissueConflict.WithCause(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled),
		errors.Is(err, badger.ErrBlockedWrites), errors.Is(err, badger.ErrDBClosed):
		return domain.ErrStorageUnavailable.WithCause(err)
	default:
		return domain.ErrStorageError.WithCause(err)
	}
}

func checkInsert(txn *badger.Txn, rec *domain.TokenRecord, now time.Time) error {
	if _, err := txn.Get(recordKey(rec.ID)); err == nil {
		return domain.ErrInvalidArgument.WithDetails("token id already exists")
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}

	existing, err := recordByHash(txn, rec.TokenHash)
	switch {
	case err == nil:
		if existing.IsValidAt(now) {
			return domain.ErrTokenHashConflict
		}
	case !errors.Is(err, domain.ErrTokenNotFound):
		return err
	}
	return nil
}

func putRecord(txn *badger.Txn, rec *domain.TokenRecord, index bool) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := txn.Set(recordKey(rec.ID), data); err != nil {
		return err
	}
	if !index {
		return nil
	}
	if err := txn.Set(hashKey(rec.TokenHash), []byte(rec.ID)); err != nil {
		return err
	}
	return txn.Set(resourceKey(rec.ResourceID, rec.ID), nil)
}

func getRecord(txn *badger.Txn, id string) (*domain.TokenRecord, error) {
	item, err := txn.Get(recordKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, err
	}
	var rec domain.TokenRecord
	if err := item.Value(func(v []byte) error {
		return json.Unmarshal(v, &rec)
	}); err != nil {
		return nil, err
	}
	return &rec, nil
}

func recordByHash(txn *badger.Txn, hash string) (*domain.TokenRecord, error) {
	item, err := txn.Get(hashKey(hash))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrTokenNotFound
		}
		return nil, err
	}
	id, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return getRecord(txn, string(id))
}

func resourceIDs(txn *badger.Txn, resourceID int64) ([]string, error) {
	prefix := []byte(resourcePrefix(resourceID))
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var ids []string
	for it.Rewind(); it.Valid(); it.Next() {
		ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
	}
	return ids, nil
}

func recordKey(id string) []byte     { return []byte(prefixRecord + id) }
func hashKey(hash string) []byte     { return []byte(prefixHash + hash) }
func slotKey(resourceID int64) []byte { return []byte(prefixSlot + resourceHex(resourceID)) }

func resourceKey(resourceID int64, id string) []byte {
	return []byte(resourcePrefix(resourceID) + id)
}

func resourcePrefix(resourceID int64) string {
	return prefixResource + resourceHex(resourceID) + "/"
}

func resourceHex(resourceID int64) string {
	s := strconv.FormatUint(uint64(resourceID), 16)
	return strings.Repeat("0", 16-len(s)) + s
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
