// Package agent implements the conversational assistant. Tool calls are
// decoded into a closed set of actions and applied through the same status
// client the dashboard uses.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hypnoticwarchief/cratex/internal/kvstore"
	"github.com/hypnoticwarchief/cratex/internal/metrics"
	"github.com/hypnoticwarchief/cratex/internal/ratelimit"
	"github.com/hypnoticwarchief/cratex/internal/spotify"
	"github.com/hypnoticwarchief/cratex/internal/util"
	"github.com/hypnoticwarchief/cratex/pkg/models"
)

// ErrMissingCredential is returned when neither a stored key nor a system credential exists
var ErrMissingCredential = errors.New("Missing API Key")

const (
	fallbackReply    = "Command processed."
	commentNoKey     = "CrateX Processed"
	commentFallback  = "CrateX Verified"
	defaultRPM       = 30
	commentMaxTokens = 32
	defaultMaxTokens = 1024
)

// Mode selects the model used by Quick
type Mode string

const (
	ModeFast   Mode = "fast"
	ModeThink  Mode = "think"
	ModeSearch Mode = "search"
)

// ParseMode returns the mode for name, defaulting to fast
func ParseMode(name string) Mode {
	switch Mode(strings.ToLower(name)) {
	case ModeThink:
		return ModeThink
	case ModeSearch:
		return ModeSearch
	default:
		return ModeFast
	}
}

// Handler applies an action. *Dispatcher.Dispatch satisfies it.
type Handler func(ctx context.Context, a Action) error

// PlaylistCreator creates Spotify playlists. *spotify.Client implements it.
type PlaylistCreator interface {
	CreatePlaylist(ctx context.Context, name, description string) (*spotify.Playlist, error)
}

// AppContext is the application state embedded in the system prompt
type AppContext struct {
	Path   string
	Status models.PipelineStatus
}

// Options wires an Agent
type Options struct {
	LLM              LLM
	Store            kvstore.Store
	Limiter          *ratelimit.Limiter
	Spotify          PlaylistCreator
	SystemCredential string
	// DefaultModel is used when storage holds no preference
	DefaultModel      models.AIModel
	RequestsPerMinute int
	Metrics           *metrics.Collector
}

// Agent answers prompts and turns tool calls into actions
type Agent struct {
	llm              LLM
	kv               kvstore.Store
	limiter          *ratelimit.Limiter
	spotify          PlaylistCreator
	systemCredential string
	defaultModel     models.AIModel
	rpm              int
	pacing           *PacingPool
	metrics          *metrics.Collector
	logger           *slog.Logger
}

// New creates an agent
func New(opts Options, logger *slog.Logger) *Agent {
	logger = logger.With("component", "agent")
	if opts.DefaultModel == "" {
		opts.DefaultModel = models.DefaultModel
	}
	if opts.RequestsPerMinute == 0 {
		opts.RequestsPerMinute = defaultRPM
	}
	return &Agent{
		llm:              opts.LLM,
		kv:               opts.Store,
		limiter:          opts.Limiter,
		spotify:          opts.Spotify,
		systemCredential: opts.SystemCredential,
		defaultModel:     opts.DefaultModel,
		rpm:              opts.RequestsPerMinute,
		pacing:           NewPacingPool(logger),
		metrics:          opts.Metrics,
		logger:           logger,
	}
}

const systemPromptTemplate = `You are CrateX Agent, an expert DJ Librarian.

Capabilities:
1. Manage the library (dry runs, execution, path updates).
2. Create playlists on Spotify/Apple Music.
3. Find legal purchase links on Bandcamp/Beatport.
4. Research genres and music history via 'web_search'.

Current App State:
- Library Path: {{.Path}}
- Status: {{.State}}
- Stats: {{.Stats}}

Rules:
- If the user asks for a genre definition or music history, use 'web_search'.
- If the user wants to buy a track, use 'find_purchase_link'.
- If the user wants a playlist exported, use 'create_playlist'.`

func renderSystemPrompt(app AppContext) (string, error) {
	stats, err := json.Marshal(app.Status.Stats)
	if err != nil {
		return "", fmt.Errorf("failed to encode stats: %w", err)
	}
	state := "Idle"
	if app.Status.IsRunning {
		state = "Running"
	}
	return util.RenderTemplate("system_prompt", systemPromptTemplate, map[string]any{
		"Path":  app.Path,
		"State": state,
		"Stats": string(stats),
	})
}

// Ask runs one assistant turn. Only the first tool call is acted on.
func (a *Agent) Ask(ctx context.Context, prompt string, app AppContext, handle Handler) (string, error) {
	if err := a.checkRate(); err != nil {
		return "", err
	}
	key, err := a.credential()
	if err != nil {
		return "", err
	}

	system, err := renderSystemPrompt(app)
	if err != nil {
		return "", err
	}

	model := a.model()
	completion, err := a.complete(ctx, key, ChatRequest{
		Model:     string(model),
		System:    system,
		Prompt:    prompt,
		Tools:     Tools,
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return "", err
	}

	if len(completion.ToolCalls) == 0 {
		if completion.Text != "" {
			return completion.Text, nil
		}
		return fallbackReply, nil
	}

	call := completion.ToolCalls[0]
	action, err := ParseToolCall(call.Name, call.Arguments)
	if err != nil {
		return "", err
	}
	a.logger.Info("Tool call", "tool", call.Name, "model", model)
	a.logger.Debug("Tool call arguments", "arguments", util.TruncateString(call.Arguments, 200))

	switch act := action.(type) {
	case WebSearch:
		answer, err := a.Quick(ctx, act.Query, ModeSearch)
		if err != nil {
			return "", err
		}
		if answer == "" {
			answer = fmt.Sprintf("Here is what I found for %q", act.Query)
		}
		return answer, nil

	case CreatePlaylist:
		if act.IsSpotify() && a.spotify != nil {
			pl, err := a.spotify.CreatePlaylist(ctx, act.Name, act.Description)
			if err != nil {
				a.logger.Warn("Spotify playlist creation failed", "error", err)
				return "I couldn't create the playlist. " + err.Error(), nil
			}
			act.URL = pl.URL
			if err := dispatch(ctx, handle, act); err != nil {
				return "", err
			}
			return fmt.Sprintf("Success! I created the Spotify playlist %q. You can view it here: %s", act.Name, pl.URL), nil
		}
		if err := dispatch(ctx, handle, act); err != nil {
			return "", err
		}
		return fmt.Sprintf("I'm creating a %s playlist called %q. Verify the popup window.", act.Platform, act.Name), nil

	case FindPurchaseLink:
		if err := dispatch(ctx, handle, act); err != nil {
			return "", err
		}
		return fmt.Sprintf("Searching stores for %q...", act.Query), nil

	default:
		if err := dispatch(ctx, handle, action); err != nil {
			return "", err
		}
		return fmt.Sprintf("Executing %s...", action.ToolName()), nil
	}
}

func dispatch(ctx context.Context, handle Handler, a Action) error {
	if handle == nil {
		return nil
	}
	return handle(ctx, a)
}

// Quick answers a prompt without tools. The mode picks the model.
func (a *Agent) Quick(ctx context.Context, prompt string, mode Mode) (string, error) {
	if err := a.checkRate(); err != nil {
		return "", err
	}
	key, err := a.credential()
	if err != nil {
		return "", err
	}

	model := models.ModelFlash
	if mode == ModeThink {
		model = models.ModelPro
	}

	completion, err := a.complete(ctx, key, ChatRequest{
		Model:     string(model),
		Prompt:    prompt,
		MaxTokens: defaultMaxTokens,
	})
	if err != nil {
		return "", err
	}
	return completion.Text, nil
}

// Comment returns a short DJ comment for a track. Only rate limiting is an error.
func (a *Agent) Comment(ctx context.Context, genre, energy string) (string, error) {
	if err := a.checkRate(); err != nil {
		return "", err
	}
	key, err := a.credential()
	if err != nil {
		return commentNoKey, nil
	}

	completion, err := a.complete(ctx, key, ChatRequest{
		Model:     string(models.ModelFlash),
		Prompt:    fmt.Sprintf("DJ Comment (5 words max) for %s, %s Energy. No quotes.", genre, energy),
		MaxTokens: commentMaxTokens,
	})
	if err != nil {
		a.logger.Warn("Comment generation failed", "error", err)
		return commentFallback, nil
	}
	if text := strings.TrimSpace(completion.Text); text != "" {
		return text, nil
	}
	return commentFallback, nil
}

func (a *Agent) complete(ctx context.Context, key string, req ChatRequest) (*Completion, error) {
	start := time.Now()
	if err := a.pacing.Wait(ctx, req.Model, a.rpm); err != nil {
		return nil, fmt.Errorf("pacing wait: %w", err)
	}
	a.metrics.RecordPacingWait(req.Model, time.Since(start))

	completion, err := a.llm.Complete(ctx, key, req)
	a.metrics.RecordAgentRequest(req.Model, err == nil)
	if err != nil {
		a.logger.Error("Completion failed", "model", req.Model, "error", err)
		return nil, err
	}
	return completion, nil
}

func (a *Agent) checkRate() error {
	if a.limiter == nil {
		return nil
	}
	return a.limiter.Check()
}

func (a *Agent) credential() (string, error) {
	if a.kv != nil {
		if key, ok, err := a.kv.Get(kvstore.KeyAPIKey); err == nil && ok && strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key), nil
		}
	}
	if a.systemCredential != "" {
		return a.systemCredential, nil
	}
	return "", ErrMissingCredential
}

func (a *Agent) model() models.AIModel {
	if a.kv != nil {
		if name, ok, err := a.kv.Get(kvstore.KeyModel); err == nil && ok {
			if m, known := models.ParseModel(name); known {
				return m
			}
		}
	}
	return a.defaultModel
}
