// Package jukebox wires the library, the playback sequencer and the
// now-playing projector together behind the command surface a UI drives.
package jukebox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jukebox/internal/cache"
	"jukebox/internal/config"
	"jukebox/internal/library"
	"jukebox/internal/metadata"
	"jukebox/internal/nowplaying"
	"jukebox/internal/player"
	"jukebox/pkg/models"

	"github.com/sirupsen/logrus"
)

const (
	// trackCacheTTL bounds how long extracted tags are reused across rescans
	trackCacheTTL = time.Hour

	eventBuffer = 64
	// progress never takes more than this many slots, the rest stay free
	// for completion and playback events
	progressSlots = eventBuffer / 2
)

// EventKind identifies what an Event reports
type EventKind int

const (
	// ScanProgress reports extraction progress of a running scan
	ScanProgress EventKind = iota
	// ScanComplete reports a finished scan. Err is set for an invalid root
	// or a cancelled scan, in which case Library is the empty or partial index.
	ScanComplete
	// PlaybackChanged carries a new sequencer snapshot and its display fields
	PlaybackChanged
)

func (k EventKind) String() string {
	switch k {
	case ScanProgress:
		return "scanProgress"
	case ScanComplete:
		return "scanComplete"
	default:
		return "playbackChanged"
	}
}

// Event is delivered on the Events channel
type Event struct {
	Kind       EventKind
	Progress   library.Progress
	Library    *library.Index
	Err        error
	Playback   player.Snapshot
	NowPlaying models.DisplayFields
}

// ScopeKind selects which tracks make up the active sequence
type ScopeKind int

const (
	ScopeFlat ScopeKind = iota
	ScopeArtist
	ScopeAlbum
)

// Scope is the UI selection the active sequence is derived from
type Scope struct {
	Kind   ScopeKind
	Artist string
	Album  string
}

// PlayerFactory builds the output device. The sink receives its status
// reports and progress.
type PlayerFactory func(sink player.StatusSink) player.Player

// Jukebox is the core behind a UI
type Jukebox struct {
	cfg       *config.Config
	logger    *logrus.Logger
	cache     *cache.TrackCache
	store     *library.Store
	player    player.Player
	sequencer *player.Sequencer

	events    chan Event
	closed    chan struct{}
	emitMu    sync.RWMutex
	shutdown  bool
	closeOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	scope   Scope
	watcher *library.Watcher
}

// New creates a jukebox from cfg. Call Start before issuing commands.
func New(cfg *config.Config, logger *logrus.Logger, newPlayer PlayerFactory) *Jukebox {
	if logger == nil {
		logger = logrus.New()
	}

	j := &Jukebox{
		cfg:    cfg,
		logger: logger,
		cache:  cache.NewTrackCache(trackCacheTTL),
		events: make(chan Event, eventBuffer),
		closed: make(chan struct{}),
	}

	extractor := metadata.NewExtractor(logger,
		metadata.WithTimeout(cfg.ExtractTimeout()),
		metadata.WithDurationTimeout(cfg.DurationTimeout()),
		metadata.WithCache(j.cache),
	)
	scanner := library.NewScanner(extractor, logger,
		library.WithWorkers(cfg.Library.Workers),
		library.WithProgress(j.emitProgress),
	)
	j.store = library.NewStore(scanner, logger)

	j.player = newPlayer(j)
	j.sequencer = player.NewSequencer(j.player, player.Options{
		AutoPlayOnSelect: cfg.Playback.AutoPlayOnSelect,
		OnError:          j.playbackError,
		Logger:           logger,
	})

	return j
}

// Start runs the sequencer and event forwarding until ctx is done or
// Shutdown is called.
func (j *Jukebox) Start(ctx context.Context) {
	j.ctx, j.cancel = context.WithCancel(ctx)
	updates := j.sequencer.Subscribe()

	j.wg.Add(2)
	go func() {
		defer j.wg.Done()
		j.sequencer.Run(j.ctx)
	}()
	go j.forwardPlayback(updates)
}

// Shutdown stops the watcher, the sequencer and the player, then closes
// the Events channel.
func (j *Jukebox) Shutdown() {
	j.closeOnce.Do(func() {
		j.logger.Info("Shutting down jukebox")

		j.mu.Lock()
		if j.watcher != nil {
			j.watcher.Stop()
			j.watcher = nil
		}
		j.mu.Unlock()

		if j.cancel != nil {
			j.cancel()
		}
		close(j.closed)
		j.wg.Wait()

		if closer, ok := j.player.(interface{ Close() }); ok {
			closer.Close()
		}
		j.cache.Close()

		j.emitMu.Lock()
		j.shutdown = true
		close(j.events)
		j.emitMu.Unlock()
	})
}

// Events returns the channel carrying scan progress and completion,
// playback snapshots and now-playing fields in the order they happened.
// It must be drained: progress is dropped when the reader falls behind and
// other events wait for room until the jukebox or the operation that
// produced them is done.
func (j *Jukebox) Events() <-chan Event {
	return j.events
}

// Notify implements player.StatusSink
func (j *Jukebox) Notify(status player.DecoderStatus) {
	j.sequencer.Notify(status)
}

// UpdateProgress implements player.StatusSink
func (j *Jukebox) UpdateProgress(position, duration time.Duration) {
	j.sequencer.UpdateProgress(position, duration)
}

// OpenLibrary scans root and replaces the library. The active sequence
// becomes the flat list of the new library. On a cancelled scan the
// previous library stays in effect; the partial index is returned and can
// be adopted with UseLibrary.
func (j *Jukebox) OpenLibrary(ctx context.Context, root string) (*library.Index, error) {
	ix, err := j.store.Open(ctx, root)
	j.emit(ctx, Event{Kind: ScanComplete, Library: ix, Err: err})
	if err != nil {
		return ix, err
	}

	if err := j.useIndex(ix, Scope{Kind: ScopeFlat}); err != nil {
		return ix, err
	}

	if j.cfg.Library.WatchForChanges {
		j.watch(root)
	}
	return ix, nil
}

// UseLibrary makes ix the current library, typically the partial index of
// a cancelled scan.
func (j *Jukebox) UseLibrary(ix *library.Index) error {
	j.store.Replace(ix)
	return j.useIndex(j.store.Current(), Scope{Kind: ScopeFlat})
}

// Library returns the current library index
func (j *Jukebox) Library() *library.Index {
	return j.store.Current()
}

// Scope returns the selection the active sequence was built from
func (j *Jukebox) Scope() Scope {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.scope
}

// SelectFlat makes the whole library the active sequence
func (j *Jukebox) SelectFlat() error {
	return j.useIndex(j.store.Current(), Scope{Kind: ScopeFlat})
}

// SelectArtist makes every album of artist, in order, the active sequence.
// An unknown artist yields an empty sequence.
func (j *Jukebox) SelectArtist(artist string) error {
	return j.useIndex(j.store.Current(), Scope{Kind: ScopeArtist, Artist: artist})
}

// SelectAlbum makes one album the active sequence. An unknown album yields
// an empty sequence.
func (j *Jukebox) SelectAlbum(artist, album string) error {
	return j.useIndex(j.store.Current(), Scope{Kind: ScopeAlbum, Artist: artist, Album: album})
}

// SelectTrack selects the track at path within the active sequence
func (j *Jukebox) SelectTrack(path string) error {
	track, ok := j.store.Current().Lookup(path)
	if !ok {
		return fmt.Errorf("%w: %s", player.ErrTrackNotFound, path)
	}
	return j.sequencer.Select(track)
}

// Play starts or resumes playback
func (j *Jukebox) Play() error { return j.sequencer.Play() }

// Pause pauses playback
func (j *Jukebox) Pause() error { return j.sequencer.Pause() }

// Stop stops playback keeping the current track
func (j *Jukebox) Stop() error { return j.sequencer.Stop() }

// Next moves to the next track of the active sequence
func (j *Jukebox) Next() error { return j.sequencer.Next() }

// Previous moves to the previous track of the active sequence
func (j *Jukebox) Previous() error { return j.sequencer.Previous() }

// Snapshot returns the current playback state
func (j *Jukebox) Snapshot() player.Snapshot {
	return j.sequencer.Snapshot()
}

// NowPlaying returns the display fields for the current track
func (j *Jukebox) NowPlaying() models.DisplayFields {
	return nowplaying.Project(j.sequencer.Snapshot().Track)
}

// useIndex derives the active sequence for scope from ix
func (j *Jukebox) useIndex(ix *library.Index, scope Scope) error {
	var tracks []models.Track
	switch scope.Kind {
	case ScopeArtist:
		tracks = ix.ArtistTracks(scope.Artist)
	case ScopeAlbum:
		tracks = ix.Tracks(scope.Artist, scope.Album)
	default:
		tracks = ix.Flat()
	}

	j.mu.Lock()
	j.scope = scope
	j.mu.Unlock()

	j.logger.WithFields(logrus.Fields{
		"artist": scope.Artist,
		"album":  scope.Album,
		"tracks": len(tracks),
	}).Debug("Active sequence changed")
	return j.sequencer.SetSequence(tracks)
}

// watch (re)starts the filesystem watcher on root
func (j *Jukebox) watch(root string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.watcher != nil {
		j.watcher.Stop()
	}
	w := library.NewWatcher(j.store, root, j.cfg.Debounce(), j.logger, j.onRescan)
	if err := w.Start(j.ctx); err != nil {
		j.logger.WithError(err).Warn("Could not start file watcher")
		j.watcher = nil
		return
	}
	j.watcher = w
}

// onRescan keeps the current scope on the rebuilt library. The sequencer
// keeps the playing track when it is still part of the sequence.
func (j *Jukebox) onRescan(ix *library.Index, err error) {
	j.emit(j.ctx, Event{Kind: ScanComplete, Library: ix, Err: err})
	if err != nil {
		return
	}
	if err := j.useIndex(ix, j.Scope()); err != nil {
		j.logger.WithError(err).Warn("Failed to refresh active sequence after rescan")
	}
}

func (j *Jukebox) playbackError(err error) {
	j.logger.WithError(err).Warn("Playback halted")
}

// forwardPlayback turns sequencer snapshots into events. A listener that
// fell behind is dropped by the sequencer, so it resubscribes and resends
// the latest state.
func (j *Jukebox) forwardPlayback(updates <-chan player.Snapshot) {
	defer j.wg.Done()
	for {
		select {
		case <-j.ctx.Done():
			j.sequencer.Unsubscribe(updates)
			return
		case snap, ok := <-updates:
			if !ok {
				j.logger.Debug("Playback listener fell behind, resubscribing")
				updates = j.sequencer.Subscribe()
				snap = j.sequencer.Snapshot()
			}
			j.emit(j.ctx, Event{
				Kind:       PlaybackChanged,
				Playback:   snap,
				NowPlaying: nowplaying.Project(snap.Track),
			})
		}
	}
}

func (j *Jukebox) emitProgress(p library.Progress) {
	j.emitMu.RLock()
	defer j.emitMu.RUnlock()
	if j.shutdown || len(j.events) >= progressSlots {
		return
	}
	select {
	case j.events <- Event{Kind: ScanProgress, Progress: p}:
	default:
	}
}

// emit waits for room on the Events channel until ctx, the jukebox or
// Shutdown ends the wait. The event is dropped in that case.
func (j *Jukebox) emit(ctx context.Context, ev Event) {
	j.emitMu.RLock()
	defer j.emitMu.RUnlock()
	if j.shutdown {
		return
	}
	select {
	case j.events <- ev:
	case <-ctx.Done():
		j.logger.WithField("event", ev.Kind.String()).Debug("Event dropped, no reader")
	case <-j.done():
	case <-j.closed:
	}
}

// done is nil until Start
func (j *Jukebox) done() <-chan struct{} {
	if j.ctx == nil {
		return nil
	}
	return j.ctx.Done()
}
