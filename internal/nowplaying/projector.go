// Package nowplaying derives the display strings for the track being played.
package nowplaying

import (
	"fmt"
	"strings"

	"jukebox/pkg/models"
)

// Project returns the display fields for track. Fields are read from the
// already extracted track and never from disk; empty values take the
// same fallbacks used when the library was indexed. A nil track yields
// the Unknown labels and an empty title.
func Project(track *models.Track) models.DisplayFields {
	if track == nil {
		return models.DisplayFields{
			Artist: models.UnknownArtist,
			Album:  models.UnknownAlbum,
			Year:   models.UnknownYear,
		}
	}

	t := *track
	t.Title = strings.TrimSpace(t.Title)
	t.Artist = strings.TrimSpace(t.Artist)
	t.Album = strings.TrimSpace(t.Album)
	t.Year = strings.TrimSpace(t.Year)
	t.Normalize()

	return models.DisplayFields{
		Title:  t.Title,
		Artist: t.Artist,
		Album:  t.Album,
		Year:   t.Year,
	}
}

// Line renders fields as "Artist - Title (Album, Year)"
func Line(fields models.DisplayFields) string {
	if fields.Title == "" {
		return "Nothing playing"
	}
	return fmt.Sprintf("%s - %s (%s, %s)", fields.Artist, fields.Title, fields.Album, fields.Year)
}
