package library

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"jukebox/internal/metadata"
	"jukebox/pkg/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrInvalidRoot is returned when the library root is missing or not a directory
	ErrInvalidRoot = errors.New("invalid library root")
	// ErrScanCancelled marks a scan aborted through its context. It is a
	// non-error completion: the returned index holds what was found so far.
	ErrScanCancelled = errors.New("scan cancelled")
)

// IsCancelled reports whether err is a cancelled scan
func IsCancelled(err error) bool {
	return errors.Is(err, ErrScanCancelled)
}

// DefaultWorkers is the extraction pool size when none is configured
const DefaultWorkers = 4

// TrackExtractor turns a file into a track; it must not fail.
type TrackExtractor interface {
	Extract(ctx context.Context, path string) models.Track
}

// Progress is reported after every extracted file
type Progress struct {
	ScanID string
	Found  int
	Done   int
}

// ProgressFunc receives scan progress. Calls come from a single goroutine.
type ProgressFunc func(Progress)

// Scanner walks a directory tree and builds an Index
type Scanner struct {
	extractor TrackExtractor
	workers   int
	logger    *logrus.Logger
	progress  ProgressFunc
}

// ScannerOption configures a Scanner
type ScannerOption func(*Scanner)

// WithWorkers sets the extraction pool size
func WithWorkers(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithProgress registers a progress callback
func WithProgress(fn ProgressFunc) ScannerOption {
	return func(s *Scanner) { s.progress = fn }
}

// NewScanner creates a scanner using extractor for per-file metadata
func NewScanner(extractor TrackExtractor, logger *logrus.Logger, opts ...ScannerOption) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	s := &Scanner{
		extractor: extractor,
		workers:   DefaultWorkers,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type scanJob struct {
	seq  int
	path string
}

type scanResult struct {
	seq   int
	track models.Track
	// false when ctx ended during extraction; the slot is skipped
	ok bool
}

// Scan indexes every audio file under root. Discovery is a sequential walk;
// extraction runs on a bounded pool and results are merged by one goroutine
// in discovery order, so the index does not depend on completion timing.
//
// On ErrInvalidRoot the returned index is empty. On cancellation it holds
// the files discovered before ctx was done, together with ErrScanCancelled.
func (s *Scanner) Scan(ctx context.Context, root string) (*Index, error) {
	info, err := os.Stat(root)
	if err != nil {
		return EmptyIndex(root), fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, err)
	}
	if !info.IsDir() {
		return EmptyIndex(root), fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, root)
	}

	// WalkDir does not descend into a symlinked root, so walk its target
	walkRoot := root
	if li, err := os.Lstat(root); err == nil && li.Mode()&fs.ModeSymlink != 0 {
		if resolved, err := filepath.EvalSymlinks(root); err == nil {
			walkRoot = resolved
		}
	}

	scanID := uuid.New().String()
	logger := s.logger.WithFields(logrus.Fields{
		"scan_id": scanID,
		"root":    root,
	})
	logger.Info("Scanning music library")
	startTime := time.Now()

	ix := newIndex(root, scanID)
	jobs := make(chan scanJob, s.workers*4)
	results := make(chan scanResult, s.workers*4)
	var found, done int64

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				track := s.extractor.Extract(ctx, job.path)
				results <- scanResult{seq: job.seq, track: track, ok: ctx.Err() == nil}
			}
		}()
	}

	mergeDone := make(chan struct{})
	go func() {
		defer close(mergeDone)
		pending := make(map[int]scanResult)
		next := 0
		// after the first interrupted slot nothing more is added, so a
		// cancelled index stays a prefix of discovery order
		truncated := false
		for res := range results {
			pending[res.seq] = res
			for {
				r, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				if !r.ok {
					truncated = true
				}
				if !truncated {
					ix.add(r.track)
				}
				next++
			}
			d := atomic.AddInt64(&done, 1)
			if s.progress != nil {
				s.progress(Progress{ScanID: scanID, Found: int(atomic.LoadInt64(&found)), Done: int(d)})
			}
		}
	}()

	seq := 0
	walkErr := filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == walkRoot {
				return err
			}
			logger.WithError(err).WithField("path", path).Warn("Skipping unreadable path")
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !metadata.IsAudioFile(path) {
			return nil
		}
		if !isRegularFile(path, d) {
			return nil
		}

		atomic.AddInt64(&found, 1)
		select {
		case jobs <- scanJob{seq: seq, path: path}:
			seq++
			return nil
		case <-ctx.Done():
			atomic.AddInt64(&found, -1)
			return ctx.Err()
		}
	})

	close(jobs)
	wg.Wait()
	close(results)
	<-mergeDone

	ix.finalize()

	fields := logrus.Fields{
		"tracks":   ix.Len(),
		"artists":  len(ix.byArtist),
		"duration": time.Since(startTime),
	}

	if ctx.Err() != nil {
		logger.WithFields(fields).Info("Library scan cancelled")
		return ix, fmt.Errorf("%w: %v", ErrScanCancelled, ctx.Err())
	}
	if walkErr != nil {
		return EmptyIndex(root), fmt.Errorf("%w: %s: %v", ErrInvalidRoot, root, walkErr)
	}

	logger.WithFields(fields).Info("Library scan complete")
	return ix, nil
}

// isRegularFile accepts regular files and symlinks to regular files.
// Symlinked directories are never followed.
func isRegularFile(path string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
