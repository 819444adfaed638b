package agent

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultBaseURL is Gemini's OpenAI-compatible endpoint
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// ChatRequest is a single-turn completion request
type ChatRequest struct {
	Model     string
	System    string
	Prompt    string
	Tools     []Tool
	MaxTokens int
}

// ToolCall is one function call requested by the model
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Completion is the first choice of a chat completion
type Completion struct {
	Text         string
	ToolCalls    []ToolCall
	FinishReason string
}

// LLM performs chat completions. The API key is passed per call because
// it can change in storage between requests.
type LLM interface {
	Complete(ctx context.Context, apiKey string, req ChatRequest) (*Completion, error)
}

// OpenAICompat talks to any OpenAI-compatible chat completions endpoint
type OpenAICompat struct {
	baseURL    string
	httpClient *http.Client
}

// NewOpenAICompat creates a client. An empty baseURL selects DefaultBaseURL.
func NewOpenAICompat(baseURL string, timeout time.Duration) *OpenAICompat {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAICompat{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Complete sends req and returns the first choice. No automatic retries.
func (c *OpenAICompat) Complete(ctx context.Context, apiKey string, req ChatRequest) (*Completion, error) {
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(c.baseURL),
		option.WithHTTPClient(c.httpClient),
		option.WithMaxRetries(0),
	)

	resp, err := client.Chat.Completions.New(ctx, buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("chat completion returned no choices")
	}

	choice := resp.Choices[0]
	out := &Completion{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out, nil
}

func buildParams(req ChatRequest) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: req.Model,
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.Prompt))
	params.Messages = messages

	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, 0, len(req.Tools))
		for _, tool := range req.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tool.Name,
					Description: openai.String(tool.Description),
					Parameters:  openai.FunctionParameters(tool.Parameters),
				},
			})
		}
		params.Tools = tools
	}
	return params
}
