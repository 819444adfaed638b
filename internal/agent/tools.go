package agent

// Tool is a function declaration offered to the model
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
}

func objectSchema(required []string, props map[string]string) map[string]any {
	properties := make(map[string]any, len(props))
	for name, desc := range props {
		properties[name] = map[string]any{"type": "string", "description": desc}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// Tools is the assistant's full tool surface
var Tools = []Tool{
	{
		Name:        ToolTriggerPipeline,
		Description: "Start the music organization pipeline.",
		Parameters: objectSchema([]string{"mode"}, map[string]string{
			"mode": "Either 'dry_run' or 'execute'",
		}),
	},
	{
		Name:        ToolUpdatePath,
		Description: "Update the library folder path.",
		Parameters: objectSchema([]string{"path"}, map[string]string{
			"path": "The file system path to the music folder",
		}),
	},
	{
		Name:        ToolCreatePlaylist,
		Description: "Create a playlist on Spotify or Apple Music based on a genre or mood.",
		Parameters: objectSchema([]string{"platform", "name"}, map[string]string{
			"platform":    "spotify or apple_music",
			"name":        "Name of the playlist",
			"description": "Description or genre/mood focus",
		}),
	},
	{
		Name:        ToolFindPurchaseLink,
		Description: "Find a link to buy a specific track or album on Bandcamp or Beatport.",
		Parameters: objectSchema([]string{"query"}, map[string]string{
			"query": "Artist and Track Name",
			"store": "bandcamp or beatport",
		}),
	},
	{
		Name:        ToolWebSearch,
		Description: "Search the internet for music definitions, genre history, or specific questions.",
		Parameters: objectSchema([]string{"query"}, map[string]string{
			"query": "The search query",
		}),
	},
}
