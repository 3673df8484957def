package library

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"jukebox/internal/logging"
	"jukebox/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreOpenReplacesWholesale(t *testing.T) {
	first := t.TempDir()
	testutil.WriteFile(t, first, "a.mp3", []byte("x"))
	testutil.WriteFile(t, first, "b.mp3", []byte("x"))
	second := t.TempDir()
	c := testutil.WriteFile(t, second, "c.mp3", []byte("x"))

	store := NewStore(newTestScanner(), logging.Discard())
	assert.True(t, store.Current().IsEmpty())

	_, err := store.Open(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, 2, store.Current().Len())

	_, err = store.Open(context.Background(), second)
	require.NoError(t, err)
	assert.Equal(t, []string{c}, paths(store.Current().Flat()), "new root replaces, never appends")
	assert.Equal(t, second, store.Current().Root())
}

func TestStoreOpenInvalidRootKeepsCurrent(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "a.mp3", []byte("x"))

	store := NewStore(newTestScanner(), logging.Discard())
	_, err := store.Open(context.Background(), root)
	require.NoError(t, err)
	before := store.Current()

	ix, err := store.Open(context.Background(), filepath.Join(root, "missing"))
	assert.ErrorIs(t, err, ErrInvalidRoot)
	assert.True(t, ix.IsEmpty())
	assert.Same(t, before, store.Current())
}

func TestStoreOpenCancelledKeepsCurrent(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, root, "a.mp3", []byte("x"))

	store := NewStore(newTestScanner(), logging.Discard())
	_, err := store.Open(context.Background(), root)
	require.NoError(t, err)
	before := store.Current()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	partial, err := store.Open(ctx, root)
	assert.True(t, IsCancelled(err))
	assert.Same(t, before, store.Current())

	store.Replace(partial)
	assert.Same(t, partial, store.Current())
}

func TestStoreReadersSeeCompleteIndexes(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.mp3", "b.mp3", "c.mp3", "d.mp3"} {
		testutil.WriteFile(t, root, name, []byte("x"))
	}

	store := NewStore(NewScanner(&jitterExtractor{}, logging.Discard()), logging.Discard())

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			n := store.Current().Len()
			if n != 0 && n != 4 {
				t.Errorf("observed partially built index with %d tracks", n)
				return
			}
			time.Sleep(time.Millisecond)
		}
	}()

	for i := 0; i < 3; i++ {
		_, err := store.Open(context.Background(), root)
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}
