package agent

import (
	"errors"
	"testing"
)

func TestParseToolCall(t *testing.T) {
	tests := []struct {
		name    string
		tool    string
		args    string
		want    Action
		wantErr bool
	}{
		{"dry run", ToolTriggerPipeline, `{"mode":"dry_run"}`, TriggerPipeline{Mode: ModeDryRun}, false},
		{"execute", ToolTriggerPipeline, `{"mode":"execute"}`, TriggerPipeline{Mode: ModeExecute}, false},
		{"bad mode", ToolTriggerPipeline, `{"mode":"delete"}`, nil, true},
		{"path", ToolUpdatePath, `{"path":"/Music"}`, UpdatePath{Path: "/Music"}, false},
		{"missing path", ToolUpdatePath, ``, nil, true},
		{"playlist", ToolCreatePlaylist, `{"platform":"spotify","name":"Peak","description":"fast"}`, CreatePlaylist{Platform: "spotify", Name: "Peak", Description: "fast"}, false},
		{"playlist without name", ToolCreatePlaylist, `{"platform":"spotify"}`, nil, true},
		{"purchase", ToolFindPurchaseLink, `{"query":"Artist - Track","store":"beatport"}`, FindPurchaseLink{Query: "Artist - Track", Store: "beatport"}, false},
		{"search", ToolWebSearch, `{"query":"dub techno"}`, WebSearch{Query: "dub techno"}, false},
		{"malformed", ToolWebSearch, `{"query":`, nil, true},
		{"wrong type", ToolWebSearch, `{"query":7}`, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseToolCall(tt.tool, tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseToolCall error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseToolCall = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseToolCall_Unknown(t *testing.T) {
	if _, err := ParseToolCall("format_disk", "{}"); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func TestCreatePlaylist_IsSpotify(t *testing.T) {
	if !(CreatePlaylist{Platform: "Spotify"}).IsSpotify() || (CreatePlaylist{Platform: "apple_music"}).IsSpotify() {
		t.Error("unexpected platform matching")
	}
}

func TestTools_DeclareRequiredFields(t *testing.T) {
	seen := map[string]bool{}
	for _, tool := range Tools {
		seen[tool.Name] = true
		required, ok := tool.Parameters["required"].([]string)
		if !ok || len(required) == 0 {
			t.Errorf("%s declares no required fields", tool.Name)
		}
		props := tool.Parameters["properties"].(map[string]any)
		for _, r := range required {
			if _, ok := props[r]; !ok {
				t.Errorf("%s requires undeclared %s", tool.Name, r)
			}
		}
	}
	if len(seen) != 5 {
		t.Errorf("expected 5 tools, got %d", len(seen))
	}
}
