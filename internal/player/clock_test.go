package player

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"jukebox/internal/logging"
	"jukebox/internal/testutil"
	"jukebox/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	statuses chan DecoderStatus

	mu       sync.Mutex
	position time.Duration
	duration time.Duration
}

func newRecordingSink() *recordingSink {
	return &recordingSink{statuses: make(chan DecoderStatus, 64)}
}

func (r *recordingSink) Notify(status DecoderStatus) { r.statuses <- status }

func (r *recordingSink) UpdateProgress(position, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.position, r.duration = position, duration
}

func (r *recordingSink) next(t *testing.T) DecoderStatus {
	t.Helper()
	select {
	case status := <-r.statuses:
		return status
	case <-time.After(2 * time.Second):
		t.Fatal("no decoder status reported")
		return StatusNone
	}
}

func TestClockPlayerLoad(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "a.mp3", []byte("data"))

	sink := newRecordingSink()
	p := NewClockPlayer(sink, ClockOptions{Logger: logging.Discard()})
	defer p.Close()

	require.NoError(t, p.Load(path))
	assert.Equal(t, StatusLoaded, sink.next(t))

	require.NoError(t, p.Load(filepath.Join(dir, "missing.mp3")))
	assert.Equal(t, StatusInvalid, sink.next(t))

	require.NoError(t, p.Load(dir))
	assert.Equal(t, StatusInvalid, sink.next(t), "directories are not media")

	require.NoError(t, p.Play())
	assert.Equal(t, StatusNoMedia, sink.next(t))
}

func TestClockPlayerReachesEnd(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "a.mp3", []byte("data"))

	sink := newRecordingSink()
	p := NewClockPlayer(sink, ClockOptions{
		DurationOf: func(string) time.Duration { return 50 * time.Millisecond },
		Tick:       5 * time.Millisecond,
		Logger:     logging.Discard(),
	})
	defer p.Close()

	require.NoError(t, p.Load(path))
	require.Equal(t, StatusLoaded, sink.next(t))
	require.NoError(t, p.Play())
	assert.Equal(t, StatusEndOfMedia, sink.next(t))
	assert.Equal(t, 50*time.Millisecond, p.Position())

	sink.mu.Lock()
	assert.Equal(t, 50*time.Millisecond, sink.position)
	assert.Equal(t, 50*time.Millisecond, sink.duration)
	sink.mu.Unlock()
}

func TestClockPlayerPauseAndStop(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "a.mp3", []byte("data"))

	sink := newRecordingSink()
	p := NewClockPlayer(sink, ClockOptions{
		DurationOf: func(string) time.Duration { return time.Hour },
		Tick:       2 * time.Millisecond,
		Logger:     logging.Discard(),
	})
	defer p.Close()

	require.NoError(t, p.Load(path))
	require.Equal(t, StatusLoaded, sink.next(t))
	require.NoError(t, p.Play())
	require.Eventually(t, func() bool { return p.Position() > 0 }, 2*time.Second, time.Millisecond)

	require.NoError(t, p.Pause())
	paused := p.Position()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, paused, p.Position(), "clock does not move while paused")

	require.NoError(t, p.Stop())
	assert.Equal(t, time.Duration(0), p.Position())
}

func TestClockPlayerClosed(t *testing.T) {
	p := NewClockPlayer(newRecordingSink(), ClockOptions{Logger: logging.Discard()})
	p.Close()
	p.Close()

	assert.Error(t, p.Load("/m/a.mp3"))
	assert.Error(t, p.Play())
}

// The sequencer wired to a clock player loops through the sequence on its own.
func TestSequencerWithClockPlayer(t *testing.T) {
	dir := t.TempDir()
	tracks := []models.Track{
		{Path: testutil.WriteFile(t, dir, "1.mp3", []byte("one"))},
		{Path: filepath.Join(dir, "gone.mp3")},
		{Path: testutil.WriteFile(t, dir, "3.mp3", []byte("three"))},
	}

	var seq *Sequencer
	var sink sinkFunc
	p := NewClockPlayer(&sink, ClockOptions{
		DurationOf: func(string) time.Duration { return 20 * time.Millisecond },
		Tick:       5 * time.Millisecond,
		Logger:     logging.Discard(),
	})
	defer p.Close()
	seq = NewSequencer(p, Options{AutoPlayOnSelect: true, Logger: logging.Discard()})
	sink.seq = seq

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go seq.Run(ctx)

	require.NoError(t, seq.SetSequence(tracks))
	updates := seq.Subscribe()
	require.NoError(t, seq.Select(tracks[2]))

	// 3.mp3 ends, wraps to 1.mp3, which ends, skips gone.mp3, back to 3.mp3
	var visited []int
	deadline := time.After(5 * time.Second)
	for len(visited) < 4 {
		select {
		case snap, ok := <-updates:
			if !ok {
				updates = seq.Subscribe()
				continue
			}
			if snap.State == Playing && (len(visited) == 0 || visited[len(visited)-1] != snap.Index) {
				visited = append(visited, snap.Index)
			}
		case <-deadline:
			t.Fatalf("playback stalled, visited %v", visited)
		}
	}
	assert.Equal(t, []int{2, 0, 1, 2}, visited[:4])
}

// sinkFunc forwards to a sequencer assigned after construction
type sinkFunc struct {
	seq *Sequencer
}

func (s *sinkFunc) Notify(status DecoderStatus) { s.seq.Notify(status) }
func (s *sinkFunc) UpdateProgress(position, duration time.Duration) {
	s.seq.UpdateProgress(position, duration)
}
