package metadata

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jukebox/internal/cache"
	"jukebox/internal/logging"
	"jukebox/internal/testutil"
	"jukebox/pkg/models"

	"github.com/dhowden/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExtractor(opts ...Option) *Extractor {
	opts = append([]Option{WithTimeout(5 * time.Second)}, opts...)
	return NewExtractor(logging.Discard(), opts...)
}

func TestIsAudioFile(t *testing.T) {
	testCases := []struct {
		filename string
		expected bool
	}{
		{"song.mp3", true},
		{"song.MP3", true},
		{"song.flac", true},
		{"song.FLAC", true},
		{"song.wav", true},
		{"song.ogg", true},
		{"song.Ogg", true},
		{"song.m4a", false},
		{"song.txt", false},
		{"cover.jpg", false},
		{"song", false},
		{"", false},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, IsAudioFile(tc.filename), "IsAudioFile(%q)", tc.filename)
	}
}

func TestExtractTaggedMP3(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteMP3(t, dir, "a.mp3", testutil.Tags{
		Title:  "Song A",
		Artist: "X",
		Album:  "Y",
		Year:   1999,
		Track:  2,
	})

	track := newTestExtractor().Extract(context.Background(), path)

	assert.Equal(t, path, track.Path)
	assert.Equal(t, "Song A", track.Title)
	assert.Equal(t, "X", track.Artist)
	assert.Equal(t, "Y", track.Album)
	assert.Equal(t, "1999", track.Year)
	assert.Equal(t, 2, track.TrackNumber)
	assert.Positive(t, track.FileSize)
}

func TestExtractPartialTags(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteMP3(t, dir, "partial.mp3", testutil.Tags{Artist: "X"})

	track := newTestExtractor().Extract(context.Background(), path)

	assert.Equal(t, "partial.mp3", track.Title)
	assert.Equal(t, "X", track.Artist)
	assert.Equal(t, models.UnknownAlbum, track.Album)
	assert.Equal(t, models.UnknownYear, track.Year)
	assert.False(t, track.HasTrackNumber())
	assert.Equal(t, models.MissingTrackNumber, track.SortKey())
}

func TestExtractionFallback(t *testing.T) {
	extractor := newTestExtractor()

	t.Run("UntaggedFile", func(t *testing.T) {
		path := testutil.WriteFile(t, t.TempDir(), "c.flac", []byte("this is not an audio file"))

		track := extractor.Extract(context.Background(), path)

		assert.Equal(t, "c.flac", track.Title)
		assert.Equal(t, models.UnknownArtist, track.Artist)
		assert.Equal(t, models.UnknownAlbum, track.Album)
		assert.Equal(t, models.UnknownYear, track.Year)
		assert.Equal(t, 0, track.Duration)
	})

	t.Run("MissingFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "gone.mp3")

		track := extractor.Extract(context.Background(), path)

		assert.Equal(t, models.FallbackTrack(path), track)
	})
}

func TestExtractTimeoutFallsBack(t *testing.T) {
	path := testutil.WriteMP3(t, t.TempDir(), "slow.mp3", testutil.Tags{Title: "Slow", Artist: "X"})

	release := make(chan struct{})
	defer close(release)

	extractor := NewExtractor(logging.Discard(), WithTimeout(10*time.Millisecond))
	extractor.read = func(string) (tag.Metadata, error) {
		<-release
		return nil, tag.ErrNoTagsFound
	}

	start := time.Now()
	track := extractor.Extract(context.Background(), path)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "slow.mp3", track.Title)
	assert.Equal(t, models.UnknownArtist, track.Artist)
}

func TestExtractSlowDurationFallsBack(t *testing.T) {
	tc := cache.NewTrackCache(time.Hour)
	defer tc.Close()
	path := testutil.WriteMP3(t, t.TempDir(), "a.mp3", testutil.Tags{Title: "Song A", Artist: "X"})

	release := make(chan struct{})
	defer close(release)

	extractor := newTestExtractor(WithCache(tc), WithDurationTimeout(20*time.Millisecond))
	extractor.measure = func(context.Context, string) (time.Duration, error) {
		<-release
		return time.Minute, nil
	}

	start := time.Now()
	track := extractor.Extract(context.Background(), path)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, "Song A", track.Title, "tags survive a slow duration read")
	assert.Equal(t, 0, track.Duration)

	st, err := os.Stat(path)
	require.NoError(t, err)
	_, ok := tc.GetTrack(cache.TrackKey(path, st.Size(), st.ModTime()))
	assert.False(t, ok, "unknown duration is not cached")
}

func TestExtractWAVDuration(t *testing.T) {
	path := testutil.WriteWAV(t, t.TempDir(), "tone.wav", 2)

	track := newTestExtractor().Extract(context.Background(), path)

	assert.Equal(t, 2, track.Duration)
	assert.Equal(t, "tone.wav", track.Title)
}

func TestExtractUsesCache(t *testing.T) {
	tc := cache.NewTrackCache(time.Hour)
	defer tc.Close()

	dir := t.TempDir()
	path := testutil.WriteMP3(t, dir, "a.mp3", testutil.Tags{Title: "First", Artist: "X"})

	extractor := newTestExtractor(WithCache(tc))
	first := extractor.Extract(context.Background(), path)
	require.Equal(t, "First", first.Title)

	st, err := os.Stat(path)
	require.NoError(t, err)
	cached, ok := tc.GetTrack(cache.TrackKey(path, st.Size(), st.ModTime()))
	require.True(t, ok)
	assert.Equal(t, first, cached)

	second := extractor.Extract(context.Background(), path)
	assert.Equal(t, first, second)
}
