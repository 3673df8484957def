package library

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Store holds the current Index. Opening a library scans into a fresh index
// and swaps it in whole, so readers see either the old or the new index and
// never a partially built one.
type Store struct {
	scanner *Scanner
	logger  *logrus.Logger

	current atomic.Pointer[Index]
	openMu  sync.Mutex
}

// NewStore creates a store with an empty index
func NewStore(scanner *Scanner, logger *logrus.Logger) *Store {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Store{
		scanner: scanner,
		logger:  logger,
	}
	s.current.Store(EmptyIndex(""))
	return s
}

// Current returns the index in effect
func (s *Store) Current() *Index {
	return s.current.Load()
}

// Open scans root and replaces the current index. Opens are serialized.
//
// On ErrInvalidRoot nothing is replaced. On cancellation the previous index
// stays in effect and the partial index is returned so the caller can still
// Replace it.
func (s *Store) Open(ctx context.Context, root string) (*Index, error) {
	s.openMu.Lock()
	defer s.openMu.Unlock()

	ix, err := s.scanner.Scan(ctx, root)
	if err != nil {
		if IsCancelled(err) {
			s.logger.WithFields(logrus.Fields{
				"root":    root,
				"partial": ix.Len(),
			}).Info("Keeping previous library after cancelled scan")
		} else {
			s.logger.WithError(err).WithField("root", root).Error("Failed to open library")
		}
		return ix, err
	}

	s.Replace(ix)
	return ix, nil
}

// Replace swaps ix in as the current index
func (s *Store) Replace(ix *Index) {
	if ix == nil {
		ix = EmptyIndex("")
	}
	prev := s.current.Swap(ix)
	s.logger.WithFields(logrus.Fields{
		"scan_id":  ix.ScanID(),
		"tracks":   ix.Len(),
		"previous": prev.ScanID(),
	}).Debug("Library index replaced")
}
