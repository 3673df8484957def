package library

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"jukebox/internal/metadata"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// RescanFunc receives the outcome of a rescan triggered by the watcher
type RescanFunc func(*Index, error)

// Watcher rebuilds the library when audio files under the root change.
// Bursts of events are debounced into a single full rescan; the index is
// never patched in place.
type Watcher struct {
	store    *Store
	root     string
	debounce time.Duration
	logger   *logrus.Logger
	onRescan RescanFunc

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for root; call Start to begin watching
func NewWatcher(store *Store, root string, debounce time.Duration, logger *logrus.Logger, onRescan RescanFunc) *Watcher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Watcher{
		store:    store,
		root:     root,
		debounce: debounce,
		logger:   logger,
		onRescan: onRescan,
		done:     make(chan struct{}),
	}
}

// Start registers every directory under root and starts the event loop.
// The loop ends when ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	if err := w.addDirectoryTree(w.root); err != nil {
		watcher.Close()
		return err
	}

	go w.watchFiles(ctx)

	w.logger.WithField("library_path", w.root).Info("File watcher started")
	return nil
}

// addDirectoryTree adds dir and its subdirectories, skipping symlinks
func (w *Watcher) addDirectoryTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) watchFiles(ctx context.Context) {
	defer w.watcher.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.handleFileEvent(event) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			w.rescan(ctx)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("File watcher error")
		}
	}
}

// handleFileEvent filters events and reports whether a rescan is needed
func (w *Watcher) handleFileEvent(event fsnotify.Event) bool {
	fileName := filepath.Base(event.Name)
	if strings.HasPrefix(fileName, ".") || strings.HasSuffix(fileName, ".tmp") {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			if err := w.addDirectoryTree(event.Name); err != nil {
				w.logger.WithError(err).WithField("directory", event.Name).Warn("Could not watch new directory")
			} else {
				w.logger.WithField("directory", event.Name).Info("Watching new directory")
			}
			return true
		}
	}

	if !metadata.IsAudioFile(event.Name) {
		// A removed or renamed directory may have held audio files
		return event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) ||
		event.Has(fsnotify.Rename) || event.Has(fsnotify.Write)
}

func (w *Watcher) rescan(ctx context.Context) {
	w.logger.WithField("library_path", w.root).Info("Library changed, rescanning")
	ix, err := w.store.Open(ctx, w.root)
	if w.onRescan != nil {
		w.onRescan(ix, err)
	}
}

// Stop ends the event loop (idempotent)
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}
