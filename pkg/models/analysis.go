package models

// LibraryAnalysis summarizes the shape and health of a music library
type LibraryAnalysis struct {
	TotalTracks       int              `json:"total_tracks"`
	TotalSizeGB       float64          `json:"total_size_gb"`
	HealthScore       int              `json:"health_score"`
	Formats           FormatBreakdown  `json:"formats"`
	Quality           QualityBreakdown `json:"quality"`
	GenreDistribution []GenreShare     `json:"genre_distribution"`
	AudioProfiles     []NamedCount     `json:"audio_profiles"`
	SmartFolders      []SmartFolder    `json:"smart_folders"`
	MetadataHealth    MetadataHealth   `json:"metadata_health"`
	Duplicates        int              `json:"duplicates"`
}

// FormatBreakdown counts tracks per container format
type FormatBreakdown struct {
	AIFF int `json:"aiff"`
	WAV  int `json:"wav"`
	MP3  int `json:"mp3"`
	FLAC int `json:"flac"`
	AAC  int `json:"aac"`
}

// QualityBreakdown counts tracks per quality tier
type QualityBreakdown struct {
	Lossless   int `json:"lossless"`
	HighRes    int `json:"high_res"`
	Standard   int `json:"standard"`
	LowQuality int `json:"low_quality"`
}

// GenreShare is one slice of the genre pie
type GenreShare struct {
	Name       string `json:"name"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// NamedCount pairs a label with a count
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// SmartFolder is a suggested dynamic crate
type SmartFolder struct {
	Name        string `json:"name"`
	Count       int    `json:"count"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// MetadataHealth counts tracks with missing or broken tags
type MetadataHealth struct {
	MissingArt   int `json:"missing_art"`
	MissingKey   int `json:"missing_key"`
	MissingBPM   int `json:"missing_bpm"`
	MissingGenre int `json:"missing_genre"`
	Corrupt      int `json:"corrupt"`
}
