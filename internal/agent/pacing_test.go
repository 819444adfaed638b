package agent

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func TestPacingPool_GetOrCreate(t *testing.T) {
	p := NewPacingPool(testLogger())

	l1 := p.GetOrCreate("m", 60)
	if l1.Limit() != rate.Limit(1) || l1.Burst() != 12 {
		t.Errorf("unexpected limiter: limit=%v burst=%d", l1.Limit(), l1.Burst())
	}
	if l2 := p.GetOrCreate("m", 600); l2 != l1 {
		t.Error("existing limiter should be reused")
	}
	if p.GetOrCreate("small", 10).Burst() != 5 {
		t.Error("burst should have a floor of 5")
	}
	if p.GetOrCreate("unpaced", 0).Limit() != rate.Inf {
		t.Error("zero rpm should disable pacing")
	}
}

func TestPacingPool_Wait(t *testing.T) {
	p := NewPacingPool(testLogger())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 5; i++ {
		if err := p.Wait(ctx, "m", 6); err != nil {
			t.Fatalf("burst request %d should not wait: %v", i, err)
		}
	}

	short, cancelShort := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelShort()
	if err := p.Wait(short, "m", 6); err == nil {
		t.Error("expected wait to exceed the deadline once the burst is spent")
	}
}
