package player

import (
	"sync"
	"time"

	"jukebox/pkg/models"
)

// Snapshot is the published view of the sequencer
type Snapshot struct {
	Track       *models.Track `json:"track,omitempty"`
	State       State         `json:"state"`
	Index       int           `json:"index"`  // -1 when no track is selected
	Length      int           `json:"length"` // size of the active sequence
	ManualPause bool          `json:"manualPause"`
	Status      DecoderStatus `json:"status"` // last decoder status seen
	Position    time.Duration `json:"position"`
	Duration    time.Duration `json:"duration"`
	Err         error         `json:"-"` // terminal condition such as ErrLibraryUnplayable
	Finished    int           `json:"finished"` // tracks played to the end since Run
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// StateManager stores the latest snapshot and fans it out to listeners
type StateManager struct {
	state     Snapshot
	mutex     sync.RWMutex
	listeners []chan Snapshot
}

// NewStateManager creates a state manager with nothing selected
func NewStateManager() *StateManager {
	return &StateManager{
		state: Snapshot{
			Index:     -1,
			UpdatedAt: time.Now(),
		},
	}
}

// GetState returns a copy of the latest snapshot
func (sm *StateManager) GetState() Snapshot {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()

	return sm.state
}

// Publish replaces the snapshot and notifies listeners. Progress carries
// over from the previous snapshot for the same track unless resetProgress
// is set; a reset starts at zero with the track's measured duration.
func (sm *StateManager) Publish(next Snapshot, resetProgress bool) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if !resetProgress && samePath(sm.state.Track, next.Track) {
		next.Position = sm.state.Position
		next.Duration = sm.state.Duration
	} else if next.Track != nil {
		next.Duration = time.Duration(next.Track.Duration) * time.Second
	}
	next.UpdatedAt = time.Now()
	sm.state = next
	sm.notifyListeners()
}

// UpdateTime updates current playback time and duration
func (sm *StateManager) UpdateTime(position, duration time.Duration) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	sm.state.Position = position
	if duration > 0 {
		sm.state.Duration = duration
	}
	sm.state.UpdatedAt = time.Now()
	sm.notifyListeners()
}

// Subscribe adds a listener for state changes
func (sm *StateManager) Subscribe() <-chan Snapshot {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	ch := make(chan Snapshot, 16) // buffered so a slow reader does not block publishing
	sm.listeners = append(sm.listeners, ch)
	return ch
}

// Unsubscribe removes a listener and closes its channel
func (sm *StateManager) Unsubscribe(ch <-chan Snapshot) {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	for i, listener := range sm.listeners {
		if listener == ch {
			close(listener)
			sm.listeners = append(sm.listeners[:i], sm.listeners[i+1:]...)
			break
		}
	}
}

// notifyListeners sends the snapshot to every subscriber; listeners whose
// buffer is full are dropped. Must be called with the lock held.
func (sm *StateManager) notifyListeners() {
	kept := sm.listeners[:0]
	for _, listener := range sm.listeners {
		select {
		case listener <- sm.state:
			kept = append(kept, listener)
		default:
			close(listener)
		}
	}
	for i := len(kept); i < len(sm.listeners); i++ {
		sm.listeners[i] = nil
	}
	sm.listeners = kept
}

func samePath(a, b *models.Track) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Path == b.Path
}
