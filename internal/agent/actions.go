package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Tool names understood by the assistant
const (
	ToolTriggerPipeline  = "trigger_pipeline"
	ToolUpdatePath       = "update_path"
	ToolCreatePlaylist   = "create_playlist"
	ToolFindPurchaseLink = "find_purchase_link"
	ToolWebSearch        = "web_search"
)

// PipelineMode selects what trigger_pipeline starts
type PipelineMode string

const (
	ModeDryRun  PipelineMode = "dry_run"
	ModeExecute PipelineMode = "execute"
)

// ErrUnknownTool is returned for tool names outside the declared set
var ErrUnknownTool = errors.New("unknown tool")

// Action is a decoded tool call. The set of variants is closed.
type Action interface {
	// ToolName returns the tool that produced the action
	ToolName() string
	sealed()
}

// TriggerPipeline starts a dry run or commits the proposed moves
type TriggerPipeline struct {
	Mode PipelineMode `json:"mode"`
}

// UpdatePath changes the library folder
type UpdatePath struct {
	Path string `json:"path"`
}

// CreatePlaylist exports a playlist. URL is set once the playlist exists.
type CreatePlaylist struct {
	Platform    string `json:"platform"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
}

// FindPurchaseLink looks up a store page for a track
type FindPurchaseLink struct {
	Query string `json:"query"`
	Store string `json:"store,omitempty"`
}

// WebSearch researches a music question
type WebSearch struct {
	Query string `json:"query"`
}

func (TriggerPipeline) ToolName() string  { return ToolTriggerPipeline }
func (UpdatePath) ToolName() string       { return ToolUpdatePath }
func (CreatePlaylist) ToolName() string   { return ToolCreatePlaylist }
func (FindPurchaseLink) ToolName() string { return ToolFindPurchaseLink }
func (WebSearch) ToolName() string        { return ToolWebSearch }

func (TriggerPipeline) sealed()  {}
func (UpdatePath) sealed()       {}
func (CreatePlaylist) sealed()   {}
func (FindPurchaseLink) sealed() {}
func (WebSearch) sealed()        {}

// IsSpotify reports whether the playlist targets Spotify
func (p CreatePlaylist) IsSpotify() bool {
	return strings.EqualFold(p.Platform, "spotify")
}

// ParseToolCall decodes the JSON arguments of a tool call into its Action
func ParseToolCall(name, arguments string) (Action, error) {
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}

	switch name {
	case ToolTriggerPipeline:
		var a TriggerPipeline
		if err := decodeArgs(name, arguments, &a); err != nil {
			return nil, err
		}
		if a.Mode != ModeDryRun && a.Mode != ModeExecute {
			return nil, fmt.Errorf("%s: mode must be %q or %q, got %q", name, ModeDryRun, ModeExecute, a.Mode)
		}
		return a, nil

	case ToolUpdatePath:
		var a UpdatePath
		if err := decodeArgs(name, arguments, &a); err != nil {
			return nil, err
		}
		if a.Path == "" {
			return nil, fmt.Errorf("%s: path is required", name)
		}
		return a, nil

	case ToolCreatePlaylist:
		var a CreatePlaylist
		if err := decodeArgs(name, arguments, &a); err != nil {
			return nil, err
		}
		if a.Platform == "" || a.Name == "" {
			return nil, fmt.Errorf("%s: platform and name are required", name)
		}
		return a, nil

	case ToolFindPurchaseLink:
		var a FindPurchaseLink
		if err := decodeArgs(name, arguments, &a); err != nil {
			return nil, err
		}
		if a.Query == "" {
			return nil, fmt.Errorf("%s: query is required", name)
		}
		return a, nil

	case ToolWebSearch:
		var a WebSearch
		if err := decodeArgs(name, arguments, &a); err != nil {
			return nil, err
		}
		if a.Query == "" {
			return nil, fmt.Errorf("%s: query is required", name)
		}
		return a, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

func decodeArgs(name, arguments string, v any) error {
	if err := json.Unmarshal([]byte(arguments), v); err != nil {
		return fmt.Errorf("%s: invalid arguments: %w", name, err)
	}
	return nil
}
