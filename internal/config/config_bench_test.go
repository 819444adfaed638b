package config

import (
	"os"
	"path/filepath"
	"testing"
)

// BenchmarkLoad benchmarks config loading
func BenchmarkLoad(b *testing.B) {
	configPath := filepath.Join(b.TempDir(), "cratex.toml")
	if err := os.WriteFile(configPath, []byte(SampleConfig()), 0644); err != nil {
		b.Fatal(err)
	}
	b.Setenv("API_KEY", "test-key-123")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Load(configPath); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkValidate benchmarks config validation
func BenchmarkValidate(b *testing.B) {
	cfg := Default()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := cfg.Validate(); err != nil {
			b.Fatal(err)
		}
	}
}
