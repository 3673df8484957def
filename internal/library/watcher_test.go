package library

import (
	"context"
	"testing"
	"time"

	"jukebox/internal/logging"
	"jukebox/internal/testutil"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherRescansOnNewFile(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "a.mp3", []byte("x"))

	store := NewStore(newTestScanner(), logging.Discard())
	_, err := store.Open(context.Background(), root)
	require.NoError(t, err)

	rescanned := make(chan *Index, 4)
	w := NewWatcher(store, root, 20*time.Millisecond, logging.Discard(), func(ix *Index, err error) {
		if err == nil {
			rescanned <- ix
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	added := testutil.WriteFile(t, root, "b.mp3", []byte("x"))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case ix := <-rescanned:
			if _, ok := ix.Lookup(added); ok {
				assert.Same(t, ix, store.Current())
				return
			}
		case <-deadline:
			t.Fatal("watcher did not rescan after a new audio file appeared")
		}
	}
}

func TestWatcherStartInvalidRoot(t *testing.T) {
	store := NewStore(newTestScanner(), logging.Discard())
	w := NewWatcher(store, "/definitely/not/here", time.Millisecond, logging.Discard(), nil)
	assert.Error(t, w.Start(context.Background()))
}

func TestWatcherEventFilter(t *testing.T) {
	w := NewWatcher(nil, t.TempDir(), time.Millisecond, logging.Discard(), nil)

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"audio created", fsnotify.Event{Name: "/m/a.mp3", Op: fsnotify.Create}, true},
		{"audio removed", fsnotify.Event{Name: "/m/a.FLAC", Op: fsnotify.Remove}, true},
		{"audio written", fsnotify.Event{Name: "/m/a.ogg", Op: fsnotify.Write}, true},
		{"audio chmod", fsnotify.Event{Name: "/m/a.mp3", Op: fsnotify.Chmod}, false},
		{"hidden file", fsnotify.Event{Name: "/m/.a.mp3", Op: fsnotify.Create}, false},
		{"temp file", fsnotify.Event{Name: "/m/a.mp3.tmp", Op: fsnotify.Create}, false},
		{"other file written", fsnotify.Event{Name: "/m/cover.jpg", Op: fsnotify.Write}, false},
		{"directory removed", fsnotify.Event{Name: "/m/Album", Op: fsnotify.Remove}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.handleFileEvent(tt.event))
		})
	}
}
