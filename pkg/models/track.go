package models

import (
	"math"
	"path/filepath"
)

// Fallback labels used when a tag is missing
const (
	UnknownArtist = "Unknown Artist"
	UnknownAlbum  = "Unknown Album"
	UnknownYear   = "Unknown Year"
)

// MissingTrackNumber is the ordering key of a track without a track number,
// so such tracks sort after every numbered track.
const MissingTrackNumber = math.MaxInt32

// Track represents one audio file in the library
type Track struct {
	Path        string `json:"path"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Album       string `json:"album"`
	Year        string `json:"year"`
	TrackNumber int    `json:"trackNumber,omitempty"` // 0 when missing
	Duration    int    `json:"duration"`              // in seconds, 0 if unknown
	FileSize    int64  `json:"fileSize"`
}

// FallbackTrack returns the track used when nothing could be read from path
func FallbackTrack(path string) Track {
	t := Track{Path: path}
	t.Normalize()
	return t
}

// Normalize applies the defaulting rules to empty fields
func (t *Track) Normalize() {
	if t.Title == "" {
		t.Title = filepath.Base(t.Path)
	}
	if t.Artist == "" {
		t.Artist = UnknownArtist
	}
	if t.Album == "" {
		t.Album = UnknownAlbum
	}
	if t.Year == "" {
		t.Year = UnknownYear
	}
	if t.TrackNumber < 0 {
		t.TrackNumber = 0
	}
}

// HasTrackNumber reports whether the tags carried a usable track number
func (t Track) HasTrackNumber() bool {
	return t.TrackNumber > 0
}

// SortKey is the track number used for album ordering.
func (t Track) SortKey() int {
	if !t.HasTrackNumber() {
		return MissingTrackNumber
	}
	return t.TrackNumber
}

// FileName returns the base name of the track's path
func (t Track) FileName() string {
	return filepath.Base(t.Path)
}

// DisplayFields are the now-playing strings handed to the UI
type DisplayFields struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Year   string `json:"year"`
}
