package watchfs

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"curator/internal/logging"
	"curator/internal/services"
)

// Watcher adapts fsnotify into the neutral Event stream. It watches every
// directory under the configured roots and follows directories created while
// running.
type Watcher struct {
	fsw    *fsnotify.Watcher
	roots  []string
	events chan Event
	logger *slog.Logger
}

// NewWatcher creates a watcher over the given roots. Missing roots are
// created so the daemon can start before the download client does.
func NewWatcher(roots []string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "watchfs", "new", "create watcher", err)
	}

	w := &Watcher{
		fsw:    fsw,
		roots:  roots,
		events: make(chan Event, 64),
		logger: logging.NewComponentLogger(logger, "watchfs"),
	}

	for _, root := range roots {
		if err := os.MkdirAll(root, 0o755); err != nil {
			_ = fsw.Close()
			return nil, services.Wrap(services.ErrConfiguration, "watchfs", "new", "create watch root", err)
		}
		if err := w.addRecursive(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			// Directories can vanish mid-walk; skip rather than fail.
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		if watchErr := w.fsw.Add(path); watchErr != nil {
			return watchErr
		}
		return nil
	})
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "watchfs", "watch", "add directory watch", err)
	}
	return nil
}

// Events delivers translated filesystem events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Close releases the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// ScanExisting emits a create event for every regular file already present
// under the roots, so files that arrived while the daemon was down are not
// missed.
func (w *Watcher) ScanExisting(ctx context.Context) {
	for _, root := range w.roots {
		_ = filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if entry.IsDir() || ShouldIgnore(path) {
				return nil
			}
			select {
			case w.events <- Event{Path: path, Op: OpCreate}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})
	}
}

// Run translates fsnotify events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", logging.Error(err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	switch {
	case event.Op.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addRecursive(event.Name); err != nil {
				w.logger.Warn("follow new directory", logging.String(logging.FieldPath, event.Name), logging.Error(err))
			}
			// Files may have landed before the watch was in place.
			w.emitExistingFiles(ctx, event.Name)
			return
		}
		w.emit(ctx, Event{Path: event.Name, Op: OpCreate})
	case event.Op.Has(fsnotify.Write):
		w.emit(ctx, Event{Path: event.Name, Op: OpWrite})
	case event.Op.Has(fsnotify.Remove), event.Op.Has(fsnotify.Rename):
		w.emit(ctx, Event{Path: event.Name, Op: OpRemove})
	}
}

func (w *Watcher) emitExistingFiles(ctx context.Context, dir string) {
	_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return nil
		}
		w.emit(ctx, Event{Path: path, Op: OpCreate})
		return nil
	})
}

func (w *Watcher) emit(ctx context.Context, event Event) {
	select {
	case w.events <- event:
	case <-ctx.Done():
	}
}
