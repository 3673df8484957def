package player

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultClockDuration is used for tracks whose duration could not be measured
const DefaultClockDuration = 30 * time.Second

// ClockPlayer is a Player that decodes nothing. It reports Loaded for files
// that exist and Invalid for files that do not, then advances a clock
// while playing and reports EndOfMedia when the track's duration elapses.
// It backs dry runs and tests.
type ClockPlayer struct {
	sink       StatusSink
	durationOf func(path string) time.Duration
	tick       time.Duration
	speed      float64
	logger     *logrus.Logger

	mu       sync.Mutex
	path     string
	duration time.Duration
	position time.Duration
	playing  bool
	gen      int

	events    chan DecoderStatus
	closed    chan struct{}
	closeOnce sync.Once
}

// ClockOptions configures a ClockPlayer
type ClockOptions struct {
	// DurationOf returns a track's length; zero falls back to DefaultClockDuration
	DurationOf func(path string) time.Duration
	// Tick is the progress reporting interval (default 250ms)
	Tick time.Duration
	// Speed multiplies the clock, e.g. 10 plays ten times faster
	Speed  float64
	Logger *logrus.Logger
}

// NewClockPlayer creates a clock player reporting to sink. Close it when done.
func NewClockPlayer(sink StatusSink, opts ClockOptions) *ClockPlayer {
	if opts.Tick <= 0 {
		opts.Tick = 250 * time.Millisecond
	}
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	if opts.DurationOf == nil {
		opts.DurationOf = func(string) time.Duration { return 0 }
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
	}

	p := &ClockPlayer{
		sink:       sink,
		durationOf: opts.DurationOf,
		tick:       opts.Tick,
		speed:      opts.Speed,
		logger:     opts.Logger,
		events:     make(chan DecoderStatus, 64),
		closed:     make(chan struct{}),
	}
	go p.deliver()
	return p
}

var errClosed = errors.New("clock player closed")

// deliver forwards statuses in order from a single goroutine so the sink
// never receives them on the caller's stack.
func (p *ClockPlayer) deliver() {
	for {
		select {
		case status := <-p.events:
			p.sink.Notify(status)
		case <-p.closed:
			return
		}
	}
}

func (p *ClockPlayer) emit(status DecoderStatus) {
	select {
	case p.events <- status:
	case <-p.closed:
	}
}

// Load selects path and reports Loaded or Invalid
func (p *ClockPlayer) Load(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isClosed() {
		return errClosed
	}
	p.gen++
	p.playing = false
	p.path = path
	p.position = 0

	if info, err := os.Stat(path); err != nil || !info.Mode().IsRegular() {
		p.path = ""
		p.logger.WithField("path", path).Debug("Clock player cannot open media")
		p.emit(StatusInvalid)
		return nil
	}

	p.duration = p.durationOf(path)
	if p.duration <= 0 {
		p.duration = DefaultClockDuration
	}
	p.emit(StatusLoaded)
	return nil
}

// Play starts the clock
func (p *ClockPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isClosed() {
		return errClosed
	}
	if p.path == "" {
		p.emit(StatusNoMedia)
		return nil
	}
	if p.playing {
		return nil
	}
	p.playing = true
	p.gen++
	go p.run(p.gen)
	return nil
}

// Pause stops the clock keeping the position
func (p *ClockPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.playing = false
	p.gen++
	return nil
}

// Stop stops the clock and rewinds
func (p *ClockPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.playing = false
	p.gen++
	p.position = 0
	return nil
}

// Position returns the current clock position
func (p *ClockPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Close stops delivering events (idempotent)
func (p *ClockPlayer) Close() {
	p.closeOnce.Do(func() { close(p.closed) })
}

func (p *ClockPlayer) isClosed() bool {
	select {
	case <-p.closed:
		return true
	default:
		return false
	}
}

func (p *ClockPlayer) run(gen int) {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	step := time.Duration(float64(p.tick) * p.speed)
	for {
		select {
		case <-p.closed:
			return
		case <-ticker.C:
		}

		p.mu.Lock()
		if p.gen != gen || !p.playing {
			p.mu.Unlock()
			return
		}
		p.position += step
		finished := p.position >= p.duration
		if finished {
			p.position = p.duration
			p.playing = false
			p.gen++
		}
		position, duration := p.position, p.duration
		p.mu.Unlock()

		p.sink.UpdateProgress(position, duration)
		if finished {
			p.emit(StatusEndOfMedia)
			return
		}
	}
}
