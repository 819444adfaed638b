package config

const (
	// DefaultBackendURL is where the sorter listens in development
	DefaultBackendURL = "http://localhost:8000"
	// DefaultLibraryPath is the library location used until one is chosen
	DefaultLibraryPath    = "/Volumes/Music/Unsorted"
	DefaultAgentBaseURL   = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultSpotifyBaseURL = "https://api.spotify.com/v1"
)

// SampleConfig returns a commented configuration file with every default spelled out
func SampleConfig() string {
	return `# CrateX configuration

[backend]
url = "http://localhost:8000"
timeout_seconds = 3
# offline = true    # never contact the backend, always simulate

[storage]
driver = "sqlite"   # memory, file or sqlite
# data_dir = "~/.cratex"
# path = "~/.cratex/cratex.db"

[simulation]
seed = 0            # 0 picks a random seed
execute_seconds = 25.5
time_scale = 1.0
default_workers = 4
default_batch = 20
disable_fan_out = false

[dashboard]
poll_interval_ms = 1000
default_path = "/Volumes/Music/Unsorted"

[agent]
base_url = "https://generativelanguage.googleapis.com/v1beta/openai/"
model = "gemini-3-flash-preview"
requests_per_minute = 30
timeout_seconds = 60
rate_limit_window_seconds = 60
rate_limit_max_requests = 10

[spotify]
base_url = "https://api.spotify.com/v1"

[server]
listen = ":8000"

[logging]
level = "info"
# file = "~/.cratex/cratex.log"   # "-" disables the JSON log file
`
}
