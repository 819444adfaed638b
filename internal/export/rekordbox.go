// Package export renders proposed moves as a Rekordbox collection.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hypnoticwarchief/cratex/internal/util"
	"github.com/hypnoticwarchief/cratex/pkg/models"
)

// Commenter writes a short DJ comment. *agent.Agent implements it.
type Commenter interface {
	Comment(ctx context.Context, genre, energy string) (string, error)
}

// Options controls a Rekordbox export
type Options struct {
	LibraryName       string
	IncludeAIComments bool
	// Commenter is only consulted for the placeholder track; may be nil
	Commenter Commenter
	Now       func() time.Time
}

type track struct {
	ID       int
	Name     string
	Artist   string
	Kind     string
	Size     int
	BitRate  int
	Comments string
	Location string
}

const collectionTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<DJ_PLAYLISTS Version="1.0.0">
  <PRODUCT Name="rekordbox" Version="6.0.0" Company="Pioneer DJ"/>
  <COLLECTION Entries="{{len .Tracks}}">
{{- range .Tracks}}
    <TRACK TrackID="{{.ID}}" Name="{{xml .Name}}" Artist="{{xml .Artist}}" Kind="{{.Kind}}" Size="{{.Size}}" TotalTime="360" DateAdded="{{$.Date}}" BitRate="{{.BitRate}}" SampleRate="44100" Comments="{{xml .Comments}}" Location="{{xml .Location}}">
      <TEMPO Intro="0.000" Outro="0.000" Bpm="124.00"/>
    </TRACK>
{{- end}}
  </COLLECTION>
</DJ_PLAYLISTS>`

// GenerateXML renders ops as a DJ_PLAYLISTS document. With no ops a single
// placeholder track is emitted so the file still imports.
func GenerateXML(ctx context.Context, opts Options, ops []models.FileOperation) (string, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	date := now().UTC().Format("2006-01-02T15:04:05.000Z")

	var tracks []track
	if len(ops) > 0 {
		tracks = make([]track, 0, len(ops))
		for i, op := range ops {
			artist, title := splitFilename(op.Filename)
			comments := "CrateX Verified"
			if opts.IncludeAIComments {
				comments = "CrateX AI: " + genreInfo(op.Reason)
			}
			tracks = append(tracks, track{
				ID:       i + 1,
				Name:     title,
				Artist:   artist,
				Kind:     "Audio File",
				Size:     102400,
				BitRate:  320,
				Comments: comments,
				Location: "file://localhost" + strings.ReplaceAll(op.Destination, " ", "%20"),
			})
		}
	} else {
		comment := "Processed by CrateX"
		if opts.IncludeAIComments && opts.Commenter != nil {
			c, err := opts.Commenter.Comment(ctx, "House", "High")
			if err != nil {
				return "", fmt.Errorf("failed to generate comment: %w", err)
			}
			comment = c
		}
		tracks = []track{{
			ID:       1,
			Name:     "Agentic Track",
			Artist:   "CrateX",
			Kind:     "WAV File",
			Size:     100000,
			BitRate:  1411,
			Comments: comment,
			Location: "file://localhost/Music/" + opts.LibraryName + "/track.wav",
		}}
	}

	return util.RenderTemplate("rekordbox", collectionTemplate, map[string]any{
		"Date":   date,
		"Tracks": tracks,
	})
}

// PatchXML returns doc unchanged. Existing collections are not rewritten.
func PatchXML(doc string) string {
	return doc
}

// splitFilename reads "Artist - Title.ext"
func splitFilename(filename string) (artist, title string) {
	parts := strings.Split(filename, " - ")
	artist = parts[0]
	if artist == "" {
		artist = "Unknown Artist"
	}
	if len(parts) > 1 && parts[1] != "" {
		return artist, strings.TrimSuffix(parts[1], filepath.Ext(parts[1]))
	}
	return artist, filename
}

// genreInfo returns the text after the first colon of a reason
func genreInfo(reason string) string {
	parts := strings.Split(reason, ":")
	if len(parts) > 1 {
		return strings.TrimSpace(parts[1])
	}
	return "Unknown"
}
