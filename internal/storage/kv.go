package storage

import (
	"time"

	"github.com/yndnr/previewshare-go/internal/storage/postgres"
)

// Driver names.
const (
	DriverMemory   = "memory"
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
)

// DefaultTimeout bounds each store call.
const DefaultTimeout = 3 * time.Second

// Config selects and configures a token store driver.
type Config struct {
	// Driver is one of memory, badger, postgres.
	// Default: memory
	Driver string `koanf:"driver"`

	// Timeout bounds each store call. 0 disables the deadline.
	Timeout time.Duration `koanf:"timeout"`

	// Badger configures the badger driver.
	Badger BadgerConfig `koanf:"badger"`

	// Postgres configures the postgres driver.
	Postgres postgres.Config `koanf:"postgres"`
}

// DefaultConfig returns the default store configuration.
func DefaultConfig() Config {
	return Config{
		Driver:   DriverMemory,
		Timeout:  DefaultTimeout,
		Badger:   DefaultBadgerConfig(""),
		Postgres: postgres.DefaultConfig(),
	}
}

// BadgerConfig contains Badger tuning parameters.
type BadgerConfig struct {
	// Dir is the storage directory.
	Dir string `koanf:"dir"`

	// GCInterval is the interval between automatic value log GC runs.
	// Default: 10m
	GCInterval time.Duration `koanf:"gc_interval"`

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5 (run GC when 50% of data is stale)
	GCThreshold float64 `koanf:"gc_threshold"`

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64 `koanf:"cache_size"`

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 256MB
	ValueLogFileSize int64 `koanf:"value_log_file_size"`

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int `koanf:"num_memtables"`

	// SyncWrites enables fsync after each write.
	// Default: true (token records are the only copy)
	SyncWrites bool `koanf:"sync_writes"`

	// InMemory runs Badger without touching disk (tests).
	InMemory bool `koanf:"in_memory"`
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig(dir string) BadgerConfig {
	return BadgerConfig{
		Dir:              dir,
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        64 << 20,  // 64MB
		ValueLogFileSize: 256 << 20, // 256MB
		NumMemtables:     2,
		SyncWrites:       true,
	}
}
