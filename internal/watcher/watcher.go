// internal/watcher/watcher.go
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fileagent/internal/config"
	"fileagent/internal/domain/events"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher wraps fsnotify and normalizes OS notifications into FileEvent
// values on a channel. Duplicate and out-of-order delivery is fine; the
// debouncer downstream collapses it.
type Watcher struct {
	fsw  *fsnotify.Watcher
	out  chan events.FileEvent
	exts map[string]bool
	root string
	rec  bool
	log  *zap.Logger
}

func New(cfg config.WatcherConfig, log *zap.Logger) (*Watcher, error) {
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch root %s: %w", cfg.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", cfg.Root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// an empty extension list means watch everything
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			exts[e] = true
		}
	}

	w := &Watcher{
		fsw:  fsw,
		out:  make(chan events.FileEvent, 256),
		exts: exts,
		root: cfg.Root,
		rec:  cfg.Recursive,
		log:  log,
	}

	if err := w.addDirs(cfg.Root); err != nil {
		fsw.Close()
		return nil, err
	}

	return w, nil
}

// addDirs registers the root and, when recursive, every subdirectory.
func (w *Watcher) addDirs(root string) error {
	if !w.rec {
		if err := w.fsw.Add(root); err != nil {
			return fmt.Errorf("watch directory %s: %w", root, err)
		}
		w.log.Info("watching directory", zap.String("dir", root))
		return nil
	}
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watch directory %s: %w", path, err)
		}
		w.log.Info("watching directory", zap.String("dir", path))
		return nil
	})
}

// Events is the normalized event stream consumed by the debouncer.
func (w *Watcher) Events() <-chan events.FileEvent {
	return w.out
}

// Run pumps fsnotify notifications until ctx is cancelled. Watcher errors
// after startup are logged, never fatal.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.out)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			fe, ok := w.normalize(ev)
			if !ok {
				continue
			}
			select {
			case w.out <- fe:
			case <-ctx.Done():
				return
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", zap.Error(err))
		}
	}
}

// normalize maps an fsnotify op onto the pipeline's event kinds and applies
// the extension pre-filter. Directories are skipped, except that newly
// created ones get added to a recursive watch.
func (w *Watcher) normalize(ev fsnotify.Event) (events.FileEvent, bool) {
	var kind events.EventKind
	switch {
	case ev.Has(fsnotify.Create):
		kind = events.KindCreated
	case ev.Has(fsnotify.Write):
		kind = events.KindModified
	case ev.Has(fsnotify.Rename):
		// the old name of a moved file; if it truly left the tree the
		// readiness gate finds it missing, the new name arrives as Create
		kind = events.KindMoved
	case ev.Has(fsnotify.Remove):
		kind = events.KindDeleted
	default:
		return events.FileEvent{}, false
	}

	if kind == events.KindCreated {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if w.rec {
				if err := w.fsw.Add(ev.Name); err != nil {
					w.log.Warn("failed to watch new directory",
						zap.String("dir", ev.Name), zap.Error(err))
				}
			}
			return events.FileEvent{}, false
		}
	}

	if len(w.exts) > 0 && !w.exts[strings.ToLower(filepath.Ext(ev.Name))] {
		return events.FileEvent{}, false
	}

	return events.FileEvent{
		Path:       ev.Name,
		Kind:       kind,
		ObservedAt: time.Now(),
	}, true
}

func (w *Watcher) Close() error {
	return w.fsw.Close()
}
