package agent

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// PacingPool spaces out requests per model. It sits behind the persisted
// sliding window and smooths bursts the window would still admit.
type PacingPool struct {
	limiters map[string]*rate.Limiter
	rates    map[string]int
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewPacingPool creates an empty pool
func NewPacingPool(logger *slog.Logger) *PacingPool {
	return &PacingPool{
		limiters: make(map[string]*rate.Limiter),
		rates:    make(map[string]int),
		logger:   logger,
	}
}

// GetOrCreate returns the limiter for model, creating it at rpm requests per minute.
// An existing limiter keeps its original rate.
func (p *PacingPool) GetOrCreate(model string, rpm int) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if limiter, ok := p.limiters[model]; ok {
		if existing := p.rates[model]; existing != rpm {
			p.logger.Warn("Pacing limiter already exists with different rate",
				"model", model, "existing_rpm", existing, "requested_rpm", rpm)
		}
		return limiter
	}

	var limiter *rate.Limiter
	if rpm <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 1)
	} else {
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), max(5, rpm/5))
	}
	p.limiters[model] = limiter
	p.rates[model] = rpm

	p.logger.Debug("Created pacing limiter", "model", model, "rpm", rpm, "burst", limiter.Burst())
	return limiter
}

// Wait blocks until model may send another request
func (p *PacingPool) Wait(ctx context.Context, model string, rpm int) error {
	return p.GetOrCreate(model, rpm).Wait(ctx)
}
