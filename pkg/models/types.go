package models

// PipelineStage names one phase of the sorting pipeline.
// The string values are the labels the backend reports on the wire.
type PipelineStage string

const (
	StageIdle              PipelineStage = "Idle"
	StageScanMetadata      PipelineStage = "Scan Metadata"
	StageGroupReleases     PipelineStage = "Group Releases"
	StageAIGenreDiscovery  PipelineStage = "AI Genre Discovery"
	StageNormalization     PipelineStage = "Assignment Normalization"
	StageSortAndLog        PipelineStage = "Sort & Log Files"
	StageAudioAnalysis     PipelineStage = "Essentia Audio Analysis"
	StageMetadataEmbedding PipelineStage = "Metadata Embedding"
	StageSkippedAudio      PipelineStage = "Skipped Audio Classification"
	StageLibraryReport     PipelineStage = "Library Report Generation"
	StageCompleted         PipelineStage = "Completed"
	StageRollingBack       PipelineStage = "Rolling Back"
)

// DryRunStages are walked in order by an analysis pass
var DryRunStages = []PipelineStage{
	StageScanMetadata,
	StageGroupReleases,
	StageAIGenreDiscovery,
	StageNormalization,
}

// ExecuteStages are walked in order when committing proposed moves
var ExecuteStages = []PipelineStage{
	StageSortAndLog,
	StageLibraryReport,
}

// IsActive reports whether the stage can be current while a run is in progress
func (s PipelineStage) IsActive() bool {
	return s != StageIdle && s != StageCompleted && s != ""
}

// OperationStatus is the lifecycle state of a proposed file move
type OperationStatus string

const (
	OperationPending OperationStatus = "pending"
	OperationMoved   OperationStatus = "moved"
	OperationError   OperationStatus = "error"
)

// PipelineStats holds the running counters shown next to the stepper
type PipelineStats struct {
	PlannedMoves  int     `json:"planned_moves"`
	SkippedFiles  int     `json:"skipped_files"`
	AvgConfidence float64 `json:"avg_confidence"` // 0.0-1.0
}

// FileOperation is one proposed or completed relocation
type FileOperation struct {
	ID          string          `json:"id"`
	Filename    string          `json:"filename"`
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	Reason      string          `json:"reason"` // e.g. "AI Classification: House > Deep (91.2%)"
	Status      OperationStatus `json:"status"`
}

// PipelineStatus is the full state reported by /status and by the simulation engine
type PipelineStatus struct {
	IsRunning       bool            `json:"is_running"`
	CurrentStage    PipelineStage   `json:"current_stage"`
	Progress        float64         `json:"progress"` // percent through the current stage
	Logs            []string        `json:"logs"`
	Stats           PipelineStats   `json:"stats"`
	ProposedChanges []FileOperation `json:"proposed_changes"`
}

// NewPipelineStatus returns the initial idle status
func NewPipelineStatus() PipelineStatus {
	return PipelineStatus{
		CurrentStage:    StageIdle,
		Logs:            []string{},
		ProposedChanges: []FileOperation{},
	}
}

// Clone returns a deep copy so callers never share slices with the owner
func (s PipelineStatus) Clone() PipelineStatus {
	out := s
	out.Logs = append([]string{}, s.Logs...)
	out.ProposedChanges = append([]FileOperation{}, s.ProposedChanges...)
	return out
}

// HasMoved reports whether any proposed change has already been applied
func (s PipelineStatus) HasMoved() bool {
	for _, op := range s.ProposedChanges {
		if op.Status == OperationMoved {
			return true
		}
	}
	return false
}

// DryRunConfig tunes the pacing of an analysis pass
type DryRunConfig struct {
	BatchSize   int   `json:"batchSize"`
	Workers     int   `json:"workers"`
	SmartFanOut *bool `json:"smartFanOut,omitempty"` // nil means enabled
}

const (
	// DefaultWorkers is used when a dry run is started without a worker count
	DefaultWorkers = 4
	// DefaultBatchSize is used when a dry run is started without a batch size
	DefaultBatchSize = 20
)

// WithDefaults fills unset fields the way the dashboard does
func (c DryRunConfig) WithDefaults() DryRunConfig {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.SmartFanOut == nil {
		enabled := true
		c.SmartFanOut = &enabled
	}
	return c
}

// FanOutEnabled reports whether worker chatter should be logged
func (c DryRunConfig) FanOutEnabled() bool {
	return c.SmartFanOut == nil || *c.SmartFanOut
}

// AIModel identifies a generative model the assistant may use
type AIModel string

const (
	ModelFlashLite AIModel = "gemini-2.5-flash-lite-latest" // fastest
	ModelFlash     AIModel = "gemini-3-flash-preview"       // balanced
	ModelPro       AIModel = "gemini-3-pro-preview"         // deepest reasoning
)

// DefaultModel is used when no preference is stored
const DefaultModel = ModelFlash

// KnownModels lists every selectable model
var KnownModels = []AIModel{ModelFlashLite, ModelFlash, ModelPro}

// ParseModel returns the model and true when name is a known model id
func ParseModel(name string) (AIModel, bool) {
	for _, m := range KnownModels {
		if string(m) == name {
			return m, true
		}
	}
	return "", false
}

// ConfigResponse is returned by /config
type ConfigResponse struct {
	HasGeminiKey         bool    `json:"has_gemini_key"`
	DefaultMinConfidence float64 `json:"default_min_confidence"`
	CWD                  string  `json:"cwd"`
	PreferredModel       AIModel `json:"preferred_model"`
}

// Acknowledgement is the body returned by command endpoints
type Acknowledgement struct {
	Message string `json:"message"`
}

// HistoryStatus is the lifecycle state of a completed execute run
type HistoryStatus string

const (
	HistoryActive     HistoryStatus = "active"
	HistoryRolledBack HistoryStatus = "rolled_back"
)

// HistoryItem records one completed execute run
type HistoryItem struct {
	ID          string        `json:"id"`
	Timestamp   int64         `json:"timestamp"` // unix milliseconds
	FileCount   int           `json:"fileCount"`
	Description string        `json:"description"`
	Status      HistoryStatus `json:"status"`
}
