// Package spotify creates playlists through the Spotify Web API.
package spotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hypnoticwarchief/cratex/internal/kvstore"
)

const (
	// DefaultBaseURL is the Spotify Web API root
	DefaultBaseURL = "https://api.spotify.com/v1"
	// DefaultTimeout bounds each API call
	DefaultTimeout = 15 * time.Second

	descriptionSuffix = " | Created by CrateX AI"
)

var (
	ErrMissingToken = errors.New("Spotify Access Token not found. Please add it in Settings.")
	ErrTokenExpired = errors.New("Spotify Token Expired or Invalid.")
)

// Playlist is a created playlist
type Playlist struct {
	ID  string
	URL string
}

// Client reads its token from storage on every call so a token saved in
// settings takes effect immediately. FallbackToken is used when storage is empty.
type Client struct {
	baseURL       string
	kv            kvstore.Store
	fallbackToken string
	httpClient    *http.Client
	logger        *slog.Logger
}

// NewClient creates a Spotify client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, kv kvstore.Store, fallbackToken string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		kv:            kv,
		fallbackToken: fallbackToken,
		httpClient:    &http.Client{Timeout: DefaultTimeout},
		logger:        logger.With("component", "spotify"),
	}
}

type profile struct {
	ID string `json:"id"`
}

type createPlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

type playlistResponse struct {
	ID           string `json:"id"`
	ExternalURLs struct {
		Spotify string `json:"spotify"`
	} `json:"external_urls"`
}

// CreatePlaylist creates a private playlist for the token's owner
func (c *Client) CreatePlaylist(ctx context.Context, name, description string) (*Playlist, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}

	var me profile
	if err := c.do(ctx, http.MethodGet, "/me", token, nil, &me); err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return nil, errors.New("Failed to fetch Spotify Profile.")
		}
		return nil, err
	}

	body := createPlaylistRequest{
		Name:        name,
		Description: description + descriptionSuffix,
		Public:      false,
	}
	var created playlistResponse
	path := "/users/" + url.PathEscape(me.ID) + "/playlists"
	if err := c.do(ctx, http.MethodPost, path, token, body, &created); err != nil {
		var se *statusError
		if errors.As(err, &se) {
			return nil, fmt.Errorf("Failed to create playlist: %s", se.statusText)
		}
		return nil, err
	}

	c.logger.Info("Created Spotify playlist", "name", name, "id", created.ID)
	return &Playlist{ID: created.ID, URL: created.ExternalURLs.Spotify}, nil
}

func (c *Client) token() (string, error) {
	if c.kv != nil {
		tok, ok, err := c.kv.Get(kvstore.KeySpotifyToken)
		if err != nil {
			return "", fmt.Errorf("failed to read spotify token: %w", err)
		}
		if ok && strings.TrimSpace(tok) != "" {
			return strings.TrimSpace(tok), nil
		}
	}
	if c.fallbackToken != "" {
		return c.fallbackToken, nil
	}
	return "", ErrMissingToken
}

type statusError struct {
	code       int
	statusText string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("spotify returned %d: %s", e.code, e.statusText)
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("Spotify request", "method", method, "path", path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("spotify request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("Failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrTokenExpired
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Warn("Spotify request rejected", "status", resp.StatusCode, "body", string(bodyBytes))
		return &statusError{code: resp.StatusCode, statusText: http.StatusText(resp.StatusCode)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode spotify response: %w", err)
	}
	return nil
}
