package engine

import (
	"context"
	"time"
)

// Sleeper suspends a run between progress ticks
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// RealSleeper waits on the wall clock and returns early when ctx is done
type RealSleeper struct{}

func (RealSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ScaledSleeper shortens every delay by Factor; a factor of 0.1 runs ten times faster
type ScaledSleeper struct {
	Factor float64
}

func (s ScaledSleeper) Sleep(ctx context.Context, d time.Duration) error {
	return RealSleeper{}.Sleep(ctx, time.Duration(float64(d)*s.Factor))
}
