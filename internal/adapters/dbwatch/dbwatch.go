// Package dbwatch wakes the dispatcher when another process writes the
// shared database, so a supervisor's answer is picked up without waiting for
// the next poll.
package dbwatch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces the burst of writes a single commit produces.
const DefaultDebounce = 100 * time.Millisecond

// Watcher calls onChange after the database file or its WAL changes.
type Watcher struct {
	dir      string
	names    map[string]bool
	onChange func()
	debounce time.Duration
	logger   *zap.Logger
	watcher  *fsnotify.Watcher
}

// New watches the directory holding dbPath. The directory is watched rather
// than the file because SQLite replaces the WAL and journal files.
func New(dbPath string, onChange func(), logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(dbPath)
	if err := fsWatcher.Add(dir); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	base := filepath.Base(dbPath)
	return &Watcher{
		dir:      dir,
		names:    map[string]bool{base: true, base + "-wal": true},
		onChange: onChange,
		debounce: DefaultDebounce,
		logger:   logger.Named("dbwatch"),
		watcher:  fsWatcher,
	}, nil
}

// Run delivers change notifications until ctx is cancelled, then closes the
// underlying watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	w.logger.Debug("watching database directory", zap.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !w.names[filepath.Base(event.Name)] {
				continue
			}
			mu.Lock()
			if timer == nil {
				timer = time.AfterFunc(w.debounce, w.onChange)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Warn("database watcher error", zap.Error(err))
		}
	}
}
