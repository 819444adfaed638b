package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hypnoticwarchief/cratex/internal/metrics"
	"github.com/hypnoticwarchief/cratex/pkg/models"
)

const (
	// DefaultTimeout bounds every backend round trip
	DefaultTimeout = 3 * time.Second
	// DefaultErrorMessage is reported when a rejection carries no usable message
	DefaultErrorMessage = "An error occurred"
)

// ErrUnavailable matches every *UnavailableError
var ErrUnavailable = errors.New("backend unavailable")

// UnavailableError means the backend could not be reached at all
type UnavailableError struct {
	Endpoint string
	Err      error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("backend unavailable (%s): %v", e.Endpoint, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

// RejectedError is a non-2xx answer from a reachable backend
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return e.Message
}

// errorBody is the shape of a rejection payload
type errorBody struct {
	Detail  string `json:"detail"`
	Message string `json:"message"`
}

// AnalyzeRequest is the body of POST /analyze
type AnalyzeRequest struct {
	Path   string               `json:"path"`
	Config *models.DryRunConfig `json:"config,omitempty"`
}

// Client talks to the real sorter backend
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Collector
}

// NewClient creates a backend client. A zero timeout selects DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, collector *metrics.Collector) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "backend"),
		metrics:    collector,
	}
}

// BaseURL returns the backend root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status fetches GET /status
func (c *Client) Status(ctx context.Context) (*models.PipelineStatus, error) {
	var out models.PipelineStatus
	if err := c.do(ctx, http.MethodGet, "/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Config fetches GET /config
func (c *Client) Config(ctx context.Context) (*models.ConfigResponse, error) {
	var out models.ConfigResponse
	if err := c.do(ctx, http.MethodGet, "/config", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Analyze starts a dry run with POST /analyze
func (c *Client) Analyze(ctx context.Context, path string, cfg *models.DryRunConfig) (*models.Acknowledgement, error) {
	return c.command(ctx, "/analyze", AnalyzeRequest{Path: path, Config: cfg})
}

// Execute commits the proposed moves with POST /execute
func (c *Client) Execute(ctx context.Context) (*models.Acknowledgement, error) {
	return c.command(ctx, "/execute", nil)
}

// Rollback reverses the last run with POST /rollback
func (c *Client) Rollback(ctx context.Context) (*models.Acknowledgement, error) {
	return c.command(ctx, "/rollback", nil)
}

// Reset returns the backend pipeline to Idle with POST /reset
func (c *Client) Reset(ctx context.Context) (*models.Acknowledgement, error) {
	return c.command(ctx, "/reset", nil)
}

func (c *Client) command(ctx context.Context, endpoint string, body any) (*models.Acknowledgement, error) {
	var ack models.Acknowledgement
	if err := c.do(ctx, http.MethodPost, endpoint, body, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	start := time.Now()
	outcome := "ok"
	defer func() {
		c.metrics.RecordBackendRequest(endpoint, outcome, time.Since(start))
	}()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			outcome = "invalid"
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		outcome = "invalid"
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			outcome = "cancelled"
			return ctx.Err()
		}
		outcome = "unavailable"
		return &UnavailableError{Endpoint: endpoint, Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		outcome = "unavailable"
		return &UnavailableError{Endpoint: endpoint, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "rejected"
		message := DefaultErrorMessage
		var eb errorBody
		if err := json.Unmarshal(respBody, &eb); err == nil {
			switch {
			case eb.Detail != "":
				message = eb.Detail
			case eb.Message != "":
				message = eb.Message
			}
		}
		c.logger.Debug("Backend rejected request", "endpoint", endpoint, "status", resp.StatusCode, "message", message)
		return &RejectedError{StatusCode: resp.StatusCode, Message: message}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		outcome = "invalid"
		return fmt.Errorf("failed to parse %s response: %w", endpoint, err)
	}
	return nil
}
