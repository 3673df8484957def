package metadata

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"jukebox/internal/cache"
	"jukebox/pkg/models"

	"github.com/dhowden/tag"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds how long a single file may take to surface its tags
const DefaultTimeout = 50 * time.Millisecond

// SupportedFormats is the fixed set of extensions the library indexes
var SupportedFormats = []string{".mp3", ".wav", ".flac", ".ogg"}

// Extractor reads tags and durations from audio files. It never fails:
// unreadable files yield a track built from the fallback rules.
type Extractor struct {
	timeout         time.Duration
	durationTimeout time.Duration
	logger          *logrus.Logger
	cache           *cache.TrackCache
	read            func(path string) (tag.Metadata, error)
	measure         func(ctx context.Context, path string) (time.Duration, error)
}

// Option configures an Extractor
type Option func(*Extractor)

// WithCache memoizes extraction results across scans
func WithCache(tc *cache.TrackCache) Option {
	return func(e *Extractor) { e.cache = tc }
}

// WithTimeout sets the tag read deadline
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithDurationTimeout sets the deadline for measuring the playing time.
// A file that takes longer gets an unknown duration.
func WithDurationTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.durationTimeout = d
		}
	}
}

// NewExtractor creates a new metadata extractor
func NewExtractor(logger *logrus.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	e := &Extractor{
		timeout:         DefaultTimeout,
		durationTimeout: DefaultDurationTimeout,
		logger:          logger,
		read:            readTagFile,
		measure:         measureDuration,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type tagResult struct {
	meta tag.Metadata
	err  error
}

// Extract returns the best-effort track for filePath
func (e *Extractor) Extract(ctx context.Context, filePath string) models.Track {
	startTime := time.Now()

	stat, err := os.Stat(filePath)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Warn("Failed to stat audio file, using fallback metadata")
		return models.FallbackTrack(filePath)
	}

	var key string
	if e.cache != nil {
		key = cache.TrackKey(filePath, stat.Size(), stat.ModTime())
		if track, ok := e.cache.GetTrack(key); ok {
			return track
		}
	}

	track := models.Track{
		Path:     filePath,
		FileSize: stat.Size(),
	}

	res, timedOut := e.readTags(ctx, filePath)
	switch {
	case timedOut:
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"timeout":  e.timeout,
		}).Debug("Tag read timed out, using fallback metadata")
	case res.err != nil:
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    res.err.Error(),
		}).Warn("Failed to extract metadata, using filename")
	default:
		applyTags(&track, res.meta)
	}

	duration, measureTimedOut, err := e.readDuration(ctx, filePath)
	switch {
	case measureTimedOut:
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"timeout":  e.durationTimeout,
		}).Debug("Duration read timed out, setting to 0")
	case err != nil:
		e.logger.WithFields(logrus.Fields{
			"filePath": filePath,
			"error":    err.Error(),
		}).Debug("Failed to calculate duration, setting to 0")
	default:
		track.Duration = int(duration.Round(time.Second) / time.Second)
	}

	track.Normalize()

	// Timed-out reads are not cached so a later scan can still see the tags
	if e.cache != nil && !timedOut && !measureTimedOut && ctx.Err() == nil {
		e.cache.SetTrack(key, track)
	}

	e.logger.WithFields(logrus.Fields{
		"filePath":       filePath,
		"title":          track.Title,
		"artist":         track.Artist,
		"album":          track.Album,
		"duration":       track.Duration,
		"processingTime": time.Since(startTime),
	}).Debug("Extracted metadata")

	return track
}

// readTags runs the tag read on its own goroutine so a slow file can be
// abandoned once the deadline passes.
func (e *Extractor) readTags(ctx context.Context, filePath string) (tagResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan tagResult, 1)
	go func() {
		meta, err := e.read(filePath)
		done <- tagResult{meta: meta, err: err}
	}()

	select {
	case res := <-done:
		return res, false
	case <-ctx.Done():
		return tagResult{}, true
	}
}

// readDuration measures the file on its own goroutine under the duration
// deadline. Opening a file can block indefinitely, so it is abandoned
// rather than waited for.
func (e *Extractor) readDuration(ctx context.Context, filePath string) (time.Duration, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, e.durationTimeout)
	defer cancel()

	type result struct {
		d   time.Duration
		err error
	}
	done := make(chan result, 1)
	go func() {
		d, err := e.measure(ctx, filePath)
		done <- result{d: d, err: err}
	}()

	select {
	case res := <-done:
		return res.d, false, res.err
	case <-ctx.Done():
		return 0, true, nil
	}
}

func readTagFile(filePath string) (tag.Metadata, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return tag.ReadFrom(file)
}

func applyTags(track *models.Track, meta tag.Metadata) {
	if meta == nil {
		return
	}
	track.Title = strings.TrimSpace(meta.Title())
	track.Artist = strings.TrimSpace(meta.Artist())
	track.Album = strings.TrimSpace(meta.Album())
	if year := meta.Year(); year > 0 {
		track.Year = strconv.Itoa(year)
	}
	track.TrackNumber, _ = meta.Track()
}

// IsAudioFile checks if a file has one of the indexed extensions
func IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range SupportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}
