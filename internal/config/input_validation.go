package config

import (
	"fmt"
	"net"
	"net/url"
	"unicode"
)

// MaxPathLength is the maximum allowed length for configured paths
const MaxPathLength = 4096

// ValidateInputs performs additional validation on user-controllable fields
func (c *Config) ValidateInputs() error {
	urls := []struct {
		name  string
		value string
	}{
		{"agent.base_url", c.Agent.BaseURL},
		{"spotify.base_url", c.Spotify.BaseURL},
	}
	if !c.Backend.Offline {
		urls = append(urls, struct {
			name  string
			value string
		}{"backend.url", c.Backend.URL})
	}
	for _, u := range urls {
		if err := validateBaseURL(u.value, u.name); err != nil {
			return err
		}
	}

	paths := map[string]string{
		"storage.path":           c.Storage.Path,
		"storage.data_dir":       c.Storage.DataDir,
		"dashboard.default_path": c.Dashboard.DefaultPath,
		"logging.file":           c.Logging.File,
	}
	for name, p := range paths {
		if err := validatePath(p, name); err != nil {
			return err
		}
	}

	if _, _, err := net.SplitHostPort(c.Server.Listen); err != nil {
		return fmt.Errorf("server.listen %q is not host:port: %w", c.Server.Listen, err)
	}

	return nil
}

// validateBaseURL checks that the base URL is properly formatted and safe
func validateBaseURL(baseURL, configKey string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", configKey, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must use http or https scheme (got %s)", configKey, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("%s must have a host", configKey)
	}

	return nil
}

func validatePath(p, configKey string) error {
	if len(p) > MaxPathLength {
		return fmt.Errorf("%s exceeds maximum length of %d characters (got %d)", configKey, MaxPathLength, len(p))
	}
	if containsControlChars(p) {
		return fmt.Errorf("%s contains invalid control characters", configKey)
	}
	return nil
}

// containsControlChars reports control characters other than newline, tab and carriage return
func containsControlChars(s string) bool {
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}
