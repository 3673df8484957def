package player

import (
	"errors"
	"time"
)

var (
	// ErrTrackNotFound rejects a Select for a track outside the active sequence
	ErrTrackNotFound = errors.New("track not in active sequence")
	// ErrLibraryUnplayable is reported when every track of the active
	// sequence failed to load in one auto-advance pass
	ErrLibraryUnplayable = errors.New("no playable track in active sequence")
	// ErrNotRunning is returned by commands sent after the sequencer stopped
	ErrNotRunning = errors.New("sequencer not running")
)

// Player is the external decoder/output device. Commands are fire-and-forget:
// results arrive later as DecoderStatus notifications.
type Player interface {
	Load(path string) error
	Play() error
	Pause() error
	Stop() error
}

// StatusSink receives asynchronous reports from a Player
type StatusSink interface {
	Notify(status DecoderStatus)
	UpdateProgress(position, duration time.Duration)
}

// State represents the sequencer's playback state.
type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// MarshalText encodes the state by name
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DecoderStatus is an event reported by the Player
type DecoderStatus int

const (
	StatusNone DecoderStatus = iota
	StatusLoaded
	StatusEndOfMedia
	StatusInvalid
	StatusBuffering
	StatusStalled
	StatusNoMedia
)

func (d DecoderStatus) String() string {
	switch d {
	case StatusLoaded:
		return "loaded"
	case StatusEndOfMedia:
		return "endOfMedia"
	case StatusInvalid:
		return "invalid"
	case StatusBuffering:
		return "buffering"
	case StatusStalled:
		return "stalled"
	case StatusNoMedia:
		return "noMedia"
	default:
		return "none"
	}
}

// MarshalText encodes the status by name
func (d DecoderStatus) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}
