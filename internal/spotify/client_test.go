package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hypnoticwarchief/cratex/internal/kvstore"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreatePlaylist_Success(t *testing.T) {
	var got createPlaylistRequest
	var auth []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/me":
			_, _ = w.Write([]byte(`{"id":"dj_user"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/users/dj_user/playlists":
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Errorf("bad body: %v", err)
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"pl1","external_urls":{"spotify":"https://open.spotify.com/playlist/pl1"}}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	kv := kvstore.NewMemory()
	_ = kv.Set(kvstore.KeySpotifyToken, "tok")
	c := NewClient(server.URL, kv, "", testLogger())

	pl, err := c.CreatePlaylist(context.Background(), "Deep Techno", "Dark warehouse")
	if err != nil {
		t.Fatalf("CreatePlaylist failed: %v", err)
	}
	if pl.ID != "pl1" || pl.URL != "https://open.spotify.com/playlist/pl1" {
		t.Errorf("unexpected playlist %+v", pl)
	}
	if got.Name != "Deep Techno" || got.Description != "Dark warehouse | Created by CrateX AI" || got.Public {
		t.Errorf("unexpected request body %+v", got)
	}
	for _, a := range auth {
		if a != "Bearer tok" {
			t.Errorf("unexpected auth header %q", a)
		}
	}
}

func TestCreatePlaylist_MissingToken(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", kvstore.NewMemory(), "", testLogger())
	if _, err := c.CreatePlaylist(context.Background(), "x", "y"); !errors.Is(err, ErrMissingToken) {
		t.Errorf("expected ErrMissingToken, got %v", err)
	}
}

func TestCreatePlaylist_FallbackToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer env-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path == "/me" {
			_, _ = w.Write([]byte(`{"id":"u"}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"p","external_urls":{"spotify":"https://s/p"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, kvstore.NewMemory(), "env-token", testLogger())
	if _, err := c.CreatePlaylist(context.Background(), "x", "y"); err != nil {
		t.Errorf("expected fallback token to work, got %v", err)
	}
}

func TestCreatePlaylist_Errors(t *testing.T) {
	tests := []struct {
		name     string
		meStatus int
		plStatus int
		wantErr  error
		wantMsg  string
	}{
		{"expired on profile", http.StatusUnauthorized, 0, ErrTokenExpired, ""},
		{"profile failure", http.StatusInternalServerError, 0, nil, "Failed to fetch Spotify Profile."},
		{"expired on create", http.StatusOK, http.StatusUnauthorized, ErrTokenExpired, ""},
		{"create failure", http.StatusOK, http.StatusForbidden, nil, "Failed to create playlist: Forbidden"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/me" {
					w.WriteHeader(tt.meStatus)
					_, _ = w.Write([]byte(`{"id":"u"}`))
					return
				}
				w.WriteHeader(tt.plStatus)
			}))
			defer server.Close()

			kv := kvstore.NewMemory()
			_ = kv.Set(kvstore.KeySpotifyToken, "tok")
			c := NewClient(server.URL+"/", kv, "", testLogger())

			_, err := c.CreatePlaylist(context.Background(), "x", "y")
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("expected %q, got %q", tt.wantMsg, err.Error())
			}
		})
	}
}
