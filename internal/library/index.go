package library

import (
	"sort"

	"jukebox/pkg/models"
)

// Index is the Artist → Album → Tracks hierarchy of one scan plus the flat
// discovery-ordered track list. It is immutable once returned by a Scanner;
// every accessor returns a copy.
type Index struct {
	scanID   string
	root     string
	byArtist map[string]map[string][]models.Track
	flat     []models.Track
	byPath   map[string]int
}

func newIndex(root, scanID string) *Index {
	return &Index{
		scanID:   scanID,
		root:     root,
		byArtist: make(map[string]map[string][]models.Track),
		byPath:   make(map[string]int),
	}
}

// EmptyIndex returns an index with no entries for root
func EmptyIndex(root string) *Index {
	return newIndex(root, "")
}

// add inserts a track; only the scan's merge goroutine calls it.
func (ix *Index) add(track models.Track) {
	if _, dup := ix.byPath[track.Path]; dup {
		return
	}
	albums, ok := ix.byArtist[track.Artist]
	if !ok {
		albums = make(map[string][]models.Track)
		ix.byArtist[track.Artist] = albums
	}
	albums[track.Album] = append(albums[track.Album], track)

	ix.byPath[track.Path] = len(ix.flat)
	ix.flat = append(ix.flat, track)
}

// finalize sorts every album by track number. Tracks sharing a number are
// ordered by file name; tracks without one keep discovery order.
func (ix *Index) finalize() {
	for _, albums := range ix.byArtist {
		for _, tracks := range albums {
			sortAlbum(tracks)
		}
	}
}

func sortAlbum(tracks []models.Track) {
	sort.SliceStable(tracks, func(i, j int) bool {
		a, b := tracks[i], tracks[j]
		if a.SortKey() != b.SortKey() {
			return a.SortKey() < b.SortKey()
		}
		if !a.HasTrackNumber() {
			return false
		}
		return a.FileName() < b.FileName()
	})
}

// ScanID identifies the scan that produced the index ("" for an empty one)
func (ix *Index) ScanID() string { return ix.scanID }

// Root is the directory the index was built from
func (ix *Index) Root() string { return ix.root }

// Len returns the number of tracks
func (ix *Index) Len() int { return len(ix.flat) }

// IsEmpty reports whether the scan matched no files
func (ix *Index) IsEmpty() bool { return len(ix.flat) == 0 }

// Artists returns artist names in lexicographic order
func (ix *Index) Artists() []string {
	return sortedKeys(ix.byArtist)
}

// Albums returns the artist's album names in lexicographic order, or an
// empty slice when the artist is unknown.
func (ix *Index) Albums(artist string) []string {
	albums, ok := ix.byArtist[artist]
	if !ok {
		return []string{}
	}
	return sortedKeys(albums)
}

// Tracks returns one album's tracks in album order
func (ix *Index) Tracks(artist, album string) []models.Track {
	tracks := ix.byArtist[artist][album]
	out := make([]models.Track, len(tracks))
	copy(out, tracks)
	return out
}

// ArtistTracks returns every track of an artist, albums in lexicographic
// order and each album in album order.
func (ix *Index) ArtistTracks(artist string) []models.Track {
	var out []models.Track
	for _, album := range ix.Albums(artist) {
		out = append(out, ix.byArtist[artist][album]...)
	}
	if out == nil {
		return []models.Track{}
	}
	return out
}

// Flat returns all tracks in discovery order
func (ix *Index) Flat() []models.Track {
	out := make([]models.Track, len(ix.flat))
	copy(out, ix.flat)
	return out
}

// Lookup finds a track by path
func (ix *Index) Lookup(path string) (models.Track, bool) {
	i, ok := ix.byPath[path]
	if !ok {
		return models.Track{}, false
	}
	return ix.flat[i], true
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
