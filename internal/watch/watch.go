// Package watch re-runs work when an outline file changes on disk.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the file must stay quiet before a change is
// reported.
const DefaultDebounce = 300 * time.Millisecond

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates the file was (re)created, e.g. by an editor that
	// saves through a rename.
	OpCreate EventOp = iota
	// OpModify indicates the file was written.
	OpModify
	// OpDelete indicates the file was removed or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Change is one debounced change of the watched file. Op is the last
// operation seen during the quiet period.
type Change struct {
	Path string
	Op   EventOp
	At   time.Time
}

// Watcher watches a single file. It watches the parent directory, so saves
// that replace the file keep being seen.
type Watcher struct {
	path     string
	dir      string
	debounce time.Duration
	log      *slog.Logger

	watcher *fsnotify.Watcher
	changes chan Change
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New creates a Watcher for path. A debounce <= 0 uses DefaultDebounce.
// The watcher must be started with Start() before it will emit changes.
func New(path string, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     abs,
		dir:      filepath.Dir(abs),
		debounce: debounce,
		log:      logger.With("file", abs),
		watcher:  fw,
		changes:  make(chan Change, 1),
		errors:   make(chan error, 10),
		done:     make(chan struct{}),
	}, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Start begins watching. The file must exist.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	info, err := os.Stat(w.path)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("failed to watch %s: not a regular file", w.path)
	}

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch directory %s: %w", w.dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	w.log.Debug("watching")
	return nil
}

// Stop stops watching and blocks until the event loop has exited. The
// Changes and Errors channels are closed afterwards.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()

	close(w.changes)
	close(w.errors)
	return nil
}

// Changes returns the channel of debounced changes.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Errors returns the channel of watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// processEvents folds raw fsnotify events into debounced changes.
func (w *Watcher) processEvents() {
	defer w.wg.Done()

	var (
		timer   *time.Timer
		fire    <-chan time.Time
		pending Change
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			op, ok := w.convertEvent(event)
			if !ok {
				continue
			}
			pending = Change{Path: w.path, Op: op}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			pending.At = time.Now()
			w.log.Debug("file changed", "op", pending.Op.String())
			select {
			case w.changes <- pending:
			case <-w.done:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			case <-w.done:
				return
			}
		}
	}
}

// convertEvent maps an fsnotify event on the watched file to an EventOp.
// Events on other files and chmod-only events are ignored.
func (w *Watcher) convertEvent(event fsnotify.Event) (EventOp, bool) {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != w.path {
		return 0, false
	}

	switch {
	case event.Has(fsnotify.Create):
		return OpCreate, true
	case event.Has(fsnotify.Write):
		return OpModify, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return OpDelete, true
	default:
		return 0, false
	}
}

// Serve starts w and calls fn for every change until ctx is cancelled,
// one call at a time. Changes that remove the file are logged and skipped.
// Errors from fn are logged and do not stop the loop. Serve stops w before
// returning.
func Serve(ctx context.Context, w *Watcher, fn func(context.Context, Change) error) error {
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case change, ok := <-w.Changes():
			if !ok {
				return nil
			}
			if change.Op == OpDelete {
				w.log.Warn("watched file is gone, waiting for it to come back")
				continue
			}
			if err := fn(ctx, change); err != nil {
				w.log.Error("change handler failed", "error", err)
			}

		case err, ok := <-w.Errors():
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}
