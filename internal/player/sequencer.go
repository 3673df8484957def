package player

import (
	"context"
	"fmt"
	"sync"
	"time"

	"jukebox/pkg/models"

	"github.com/sirupsen/logrus"
)

// Options configures a Sequencer
type Options struct {
	// AutoPlayOnSelect starts playback once a selected track reports Loaded
	AutoPlayOnSelect bool
	// OnError is called from the sequencer goroutine for terminal
	// conditions such as ErrLibraryUnplayable
	OnError func(error)
	Logger  *logrus.Logger
	// QueueSize bounds pending commands and decoder events (default 64)
	QueueSize int
}

type request struct {
	apply func() error
	reply chan error // nil for decoder events
}

// Sequencer is the playback state machine over an active sequence of
// tracks. All commands and decoder events are processed one at a time by
// the goroutine running Run, so a user action and an asynchronous
// end-of-media can never interleave.
type Sequencer struct {
	player Player
	opts   Options
	logger *logrus.Logger
	state  *StateManager

	queue    chan request
	done     chan struct{}
	runOnce  sync.Once
	doneOnce sync.Once

	// owned by the Run goroutine
	seq          []models.Track
	current      int
	playback     State
	manualPause  bool
	pendingPlay  bool
	invalidRun   int
	invalidStart int
	lastStatus   DecoderStatus
	lastErr      error
	finished     int
}

// NewSequencer creates a sequencer driving p. Call Run before sending commands.
func NewSequencer(p Player, opts Options) *Sequencer {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	return &Sequencer{
		player:  p,
		opts:    opts,
		logger:  opts.Logger,
		state:   NewStateManager(),
		queue:   make(chan request, opts.QueueSize),
		done:    make(chan struct{}),
		current: -1,
	}
}

// Run processes commands and events until ctx is done. It may only be
// started once.
func (s *Sequencer) Run(ctx context.Context) {
	started := false
	s.runOnce.Do(func() { started = true })
	if !started {
		return
	}
	defer s.doneOnce.Do(func() { close(s.done) })

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-s.queue:
			err := req.apply()
			if req.reply != nil {
				req.reply <- err
			}
		}
	}
}

// do runs fn on the sequencer goroutine and waits for its result
func (s *Sequencer) do(fn func() error) error {
	req := request{apply: fn, reply: make(chan error, 1)}
	select {
	case s.queue <- req:
	case <-s.done:
		return ErrNotRunning
	}
	select {
	case err := <-req.reply:
		return err
	case <-s.done:
		return ErrNotRunning
	}
}

// Notify delivers a decoder status. It does not wait for processing.
// Players must not call it from inside Load/Play/Pause/Stop.
func (s *Sequencer) Notify(status DecoderStatus) {
	req := request{apply: func() error {
		s.handleStatus(status)
		return nil
	}}
	select {
	case s.queue <- req:
	case <-s.done:
	}
}

// UpdateProgress passes the player's position/duration readout through to
// subscribers; it does not affect the state machine.
func (s *Sequencer) UpdateProgress(position, duration time.Duration) {
	s.state.UpdateTime(position, duration)
}

// Subscribe returns a channel of snapshots published after every change
func (s *Sequencer) Subscribe() <-chan Snapshot {
	return s.state.Subscribe()
}

// Unsubscribe stops delivery to ch and closes it
func (s *Sequencer) Unsubscribe(ch <-chan Snapshot) {
	s.state.Unsubscribe(ch)
}

// Snapshot returns the state after every previously queued command and
// event has been processed.
// Once the sequencer stopped it returns the last published state.
func (s *Sequencer) Snapshot() Snapshot {
	_ = s.do(func() error { return nil })
	return s.state.GetState()
}

// SetSequence replaces the active sequence. If the current track is part
// of the new sequence it keeps playing at its new position; otherwise the
// player is stopped and nothing is selected.
func (s *Sequencer) SetSequence(tracks []models.Track) error {
	seq := make([]models.Track, len(tracks))
	copy(seq, tracks)
	return s.do(func() error {
		return s.setSequence(seq)
	})
}

// Select loads track from the active sequence
func (s *Sequencer) Select(track models.Track) error {
	return s.do(func() error {
		i := s.indexOf(track.Path)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrTrackNotFound, track.Path)
		}
		s.pendingPlay = s.opts.AutoPlayOnSelect
		s.manualPause = false
		s.resetInvalidRun()
		err := s.load(i)
		s.publish(true)
		return err
	})
}

// Play starts or resumes playback, selecting the first track if none is
// selected. It is a no-op when already playing or the sequence is empty.
func (s *Sequencer) Play() error {
	return s.do(s.play)
}

// Pause pauses playback; only valid while playing
func (s *Sequencer) Pause() error {
	return s.do(func() error {
		if s.playback != Playing {
			return nil
		}
		if err := s.player.Pause(); err != nil {
			return err
		}
		s.playback = Paused
		s.manualPause = true
		s.publish(false)
		return nil
	})
}

// Stop stops playback keeping the current track selected
func (s *Sequencer) Stop() error {
	return s.do(func() error {
		s.pendingPlay = false
		if s.current < 0 {
			return nil
		}
		err := s.player.Stop()
		s.playback = Stopped
		s.publish(true)
		return err
	})
}

// Next advances with wraparound, continuing playback if it was playing
func (s *Sequencer) Next() error {
	return s.do(func() error {
		return s.step(1, s.playback == Playing)
	})
}

// Previous retreats with wraparound, continuing playback if it was playing
func (s *Sequencer) Previous() error {
	return s.do(func() error {
		return s.step(-1, s.playback == Playing)
	})
}

func (s *Sequencer) play() error {
	if s.playback == Playing || len(s.seq) == 0 {
		return nil
	}
	if s.current < 0 {
		if err := s.load(0); err != nil {
			s.publish(true)
			return err
		}
	}
	if err := s.player.Play(); err != nil {
		s.publish(false)
		return err
	}
	s.playback = Playing
	s.manualPause = false
	s.pendingPlay = false
	s.publish(false)
	return nil
}

// step moves delta positions with wraparound and loads the new track
func (s *Sequencer) step(delta int, keepPlaying bool) error {
	n := len(s.seq)
	if n == 0 {
		return nil
	}
	var next int
	switch {
	case s.current < 0 && delta < 0:
		next = n - 1
	case s.current < 0:
		next = 0
	default:
		next = ((s.current+delta)%n + n) % n
	}

	if err := s.load(next); err != nil {
		s.publish(true)
		return err
	}
	if keepPlaying {
		if err := s.player.Play(); err != nil {
			s.publish(true)
			return err
		}
		s.playback = Playing
		s.manualPause = false
	}
	s.publish(true)
	return nil
}

// load issues a load for index i; the track is stopped until played
func (s *Sequencer) load(i int) error {
	s.current = i
	s.playback = Stopped
	s.lastErr = nil
	path := s.seq[i].Path
	s.logger.WithFields(logrus.Fields{
		"index": i,
		"path":  path,
	}).Debug("Loading track")
	if err := s.player.Load(path); err != nil {
		s.logger.WithError(err).WithField("path", path).Warn("Player rejected load")
		return err
	}
	return nil
}

func (s *Sequencer) setSequence(seq []models.Track) error {
	var currentPath string
	if s.current >= 0 {
		currentPath = s.seq[s.current].Path
	}
	s.seq = seq
	s.resetInvalidRun()

	if currentPath != "" {
		if i := s.indexOf(currentPath); i >= 0 {
			s.current = i
			s.publish(false)
			return nil
		}
	}

	var err error
	if s.current >= 0 && s.playback != Stopped {
		err = s.player.Stop()
	}
	s.current = -1
	s.playback = Stopped
	s.pendingPlay = false
	s.manualPause = false
	s.publish(true)
	return err
}

func (s *Sequencer) handleStatus(status DecoderStatus) {
	s.lastStatus = status
	logger := s.logger.WithFields(logrus.Fields{
		"status": status.String(),
		"index":  s.current,
	})

	if s.current < 0 {
		logger.Debug("Ignoring decoder status with no track selected")
		s.publish(false)
		return
	}

	switch status {
	case StatusLoaded:
		s.resetInvalidRun()
		if s.pendingPlay {
			s.pendingPlay = false
			if err := s.play(); err != nil {
				logger.WithError(err).Warn("Failed to start playback after load")
			}
			return
		}

	case StatusEndOfMedia:
		// Auto-advance regardless of manualPause
		s.finished++
		s.resetInvalidRun()
		if err := s.step(1, true); err != nil {
			logger.WithError(err).Warn("Failed to advance after end of media")
		}
		return

	case StatusInvalid:
		s.skipInvalid(logger)
		return

	default:
		logger.Debug("Decoder status")
	}
	s.publish(false)
}

// skipInvalid moves past an unplayable track. After a full pass without a
// successful load the sequencer stops on the track where the run began.
func (s *Sequencer) skipInvalid(logger *logrus.Entry) {
	path := s.seq[s.current].Path
	logger.WithField("path", path).Warn("Track is unplayable, skipping")

	if s.invalidRun == 0 {
		s.invalidStart = s.current
	}
	s.invalidRun++

	if s.invalidRun >= len(s.seq) {
		s.current = s.invalidStart
		s.resetInvalidRun()
		s.pendingPlay = false
		if err := s.player.Stop(); err != nil {
			logger.WithError(err).Warn("Failed to stop player")
		}
		s.playback = Stopped
		s.lastErr = ErrLibraryUnplayable
		logger.WithField("tracks", len(s.seq)).Error("No playable track in active sequence")
		s.publish(true)
		if s.opts.OnError != nil {
			s.opts.OnError(ErrLibraryUnplayable)
		}
		return
	}

	pending := s.pendingPlay
	if err := s.step(1, s.playback == Playing); err != nil {
		logger.WithError(err).Warn("Failed to skip unplayable track")
	}
	s.pendingPlay = pending
}

func (s *Sequencer) resetInvalidRun() {
	s.invalidRun = 0
	s.invalidStart = -1
}

func (s *Sequencer) indexOf(path string) int {
	for i, t := range s.seq {
		if t.Path == path {
			return i
		}
	}
	return -1
}

func (s *Sequencer) publish(resetProgress bool) {
	snap := Snapshot{
		State:       s.playback,
		Index:       s.current,
		Length:      len(s.seq),
		ManualPause: s.manualPause,
		Status:      s.lastStatus,
		Err:         s.lastErr,
		Finished:    s.finished,
	}
	if s.current >= 0 {
		track := s.seq[s.current]
		snap.Track = &track
	}
	s.state.Publish(snap, resetProgress)
}
