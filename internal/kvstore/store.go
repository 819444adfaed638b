package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Well-known keys. Every key is optional; readers fall back to defaults.
const (
	KeyAPIKey       = "cratex_api_key"
	KeySpotifyToken = "cratex_spotify_token"
	KeyModel        = "cratex_model"
	KeyRateLimit    = "cratex_rl_timestamps"
	KeyHistory      = "cratex_history"
	KeyTheme        = "cratex_theme"
)

// Drivers accepted by Open
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// ErrUnknownDriver is returned by Open for unsupported drivers
var ErrUnknownDriver = errors.New("unknown storage driver")

// Store is a small durable string key-value store
type Store interface {
	// Get returns the value and whether the key exists
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	// Update replaces the value under key with the result of fn in one atomic
	// step, across processes for the durable drivers. fn must not call back
	// into the store. An error from fn leaves the value untouched.
	Update(key string, fn UpdateFunc) error
}

// UpdateFunc receives the current value (ok is false when absent) and returns the new one
type UpdateFunc func(current string, ok bool) (string, error)

// Open returns a store for the configured driver
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverFile:
		return NewFileStore(path)
	case DriverSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}
}

// Close releases resources held by stores that need it
func Close(s Store) error {
	if c, ok := s.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// GetJSON decodes the value stored under key into v.
// It reports false when the key is absent.
func GetJSON(s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it under key
func SetJSON(s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(key, string(data))
}

// UpdateJSON decodes the value under key, applies fn and stores the result
// atomically. A missing or undecodable value reaches fn as the zero T with
// found false.
func UpdateJSON[T any](s Store, key string, fn func(current T, found bool) (T, error)) error {
	return s.Update(key, func(raw string, ok bool) (string, error) {
		var current T
		found := false
		if ok {
			found = json.Unmarshal([]byte(raw), &current) == nil
			if !found {
				var zero T
				current = zero
			}
		}
		next, err := fn(current, found)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(next)
		if err != nil {
			return "", fmt.Errorf("failed to encode %s: %w", key, err)
		}
		return string(data), nil
	})
}

// Memory is an in-process Store
type Memory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *Memory) Update(key string, fn UpdateFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.values[key]
	next, err := fn(current, ok)
	if err != nil {
		return err
	}
	m.values[key] = next
	return nil
}
