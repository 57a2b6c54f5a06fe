package confloader

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spaolacci/murmur3"
)

// DefaultDebounce coalesces the bursts of events editors emit on save.
const DefaultDebounce = 200 * time.Millisecond

// Watcher calls a function when the content of a configuration file
// changes. Touching the file without changing it is not a change.
type Watcher struct {
	path     string
	onChange func()
	logger   *slog.Logger
	debounce time.Duration

	sum    uint64
	exists bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logger }
}

// WithDebounce sets the quiet period before onChange runs. 0 disables it.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) { w.debounce = d }
}

// NewWatcher creates a watcher for path. The current content is the
// baseline for the first comparison.
func NewWatcher(path string, onChange func(), opts ...WatcherOption) (*Watcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("confloader: nil change callback")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:     abs,
		onChange: onChange,
		logger:   slog.Default(),
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.sum, w.exists = checksum(abs)
	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Run watches until ctx is done. The parent directory is watched so that
// editors replacing the file by rename are noticed. Run must not be
// called concurrently.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Info("watching configuration file", "file", w.path)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if name, err := filepath.Abs(event.Name); err != nil || name != w.path {
				continue
			}
			if w.debounce <= 0 {
				w.check()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			w.check()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("configuration watcher error", "error", err)
		}
	}
}

// check runs onChange when the content differs from the last seen one.
// A file that is briefly missing during a rename is skipped.
func (w *Watcher) check() {
	sum, ok := checksum(w.path)
	if !ok {
		w.logger.Debug("configuration file unreadable, skipping", "file", w.path)
		return
	}
	if w.exists && sum == w.sum {
		return
	}
	w.sum, w.exists = sum, true
	w.logger.Debug("configuration file changed", "file", w.path)
	w.onChange()
}

func checksum(path string) (uint64, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	return murmur3.Sum64(data), true
}
