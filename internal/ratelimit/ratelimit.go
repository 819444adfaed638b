package ratelimit

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/hypnoticwarchief/cratex/internal/kvstore"
	"github.com/hypnoticwarchief/cratex/internal/metrics"
)

const (
	DefaultWindow      = 60 * time.Second
	DefaultMaxRequests = 10
)

// ErrRateLimited matches every *ExceededError
var ErrRateLimited = errors.New("rate limit exceeded")

// ExceededError reports how long until another request is admitted
type ExceededError struct {
	RetryAfter time.Duration
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("Rate limit exceeded. Please wait %d seconds.", int(e.RetryAfter/time.Second))
}

func (e *ExceededError) Is(target error) bool {
	return target == ErrRateLimited
}

// Options configures a Limiter
type Options struct {
	Window      time.Duration
	MaxRequests int
	// SystemCredential bypasses the limiter when Deployed is set
	SystemCredential string
	Deployed         bool
}

// Limiter is a persisted sliding-window limiter for assistant requests
type Limiter struct {
	kv      kvstore.Store
	opts    Options
	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Collector
	mu      sync.Mutex
}

// New creates a limiter storing its window under kvstore.KeyRateLimit
func New(kv kvstore.Store, opts Options, logger *slog.Logger, collector *metrics.Collector) *Limiter {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = DefaultMaxRequests
	}
	return &Limiter{
		kv:      kv,
		opts:    opts,
		now:     time.Now,
		logger:  logger.With("component", "ratelimit"),
		metrics: collector,
	}
}

// SetClock replaces the time source
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Check admits one request or returns an *ExceededError.
// Rejected requests are not recorded in the window.
func (l *Limiter) Check() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.bypassed() {
		return nil
	}

	now := l.now().UnixMilli()
	windowMs := l.opts.Window.Milliseconds()

	var exceeded *ExceededError
	err := kvstore.UpdateJSON(l.kv, kvstore.KeyRateLimit, func(stamps []int64, _ bool) ([]int64, error) {
		exceeded = nil
		kept := make([]int64, 0, len(stamps)+1)
		for _, ts := range stamps {
			if now-ts < windowMs {
				kept = append(kept, ts)
			}
		}
		if len(kept) >= l.opts.MaxRequests {
			remaining := windowMs - (now - kept[0])
			seconds := int64(math.Ceil(float64(remaining) / 1000))
			exceeded = &ExceededError{RetryAfter: time.Duration(seconds) * time.Second}
			return nil, exceeded
		}
		return append(kept, now), nil
	})

	if exceeded != nil {
		l.metrics.RecordRateLimitRejection()
		return exceeded
	}
	if err != nil {
		// Persistence failures never block the request
		l.logger.Warn("Failed to persist rate limit window", "error", err)
	}
	return nil
}

func (l *Limiter) bypassed() bool {
	if key, ok, err := l.kv.Get(kvstore.KeyAPIKey); err == nil && ok && strings.TrimSpace(key) != "" {
		return true
	}
	return l.opts.SystemCredential != "" && l.opts.Deployed
}
