package routing

import (
	"testing"
	"time"

	"chatdispatch/internal/model"
)

func TestRouteMessage(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msg := model.Message{ID: "msg-1"}
	destinations := []model.MessageDestination{
		{ID: "dest-1"},
		{ID: "dest-2"},
	}

	events := RouteMessage(msg, destinations, now)
	if len(events) != 3 {
		t.Fatalf("len(events) = %d, want 3", len(events))
	}
	if events[0].Kind != EventMessageCreated {
		t.Errorf("events[0].Kind = %q, want message_created", events[0].Kind)
	}
	for i, d := range destinations {
		e := events[i+1]
		if e.Kind != EventMessageQueued {
			t.Errorf("events[%d].Kind = %q, want message_queued", i+1, e.Kind)
		}
		if e.DestinationID != d.ID {
			t.Errorf("events[%d].DestinationID = %q, want %q", i+1, e.DestinationID, d.ID)
		}
	}
}

func TestComputeRetryDelay(t *testing.T) {
	tests := []struct {
		attemptCount int
		wantSeconds  float64
	}{
		{0, 60},
		{1, 120},
		{2, 240},
		{3, 480},
		{4, 960},
		{5, 960}, // capped at exponent 4
		{100, 960},
	}

	for _, tt := range tests {
		// jitter=0.5 yields the unjittered midpoint delay exactly.
		got := ComputeRetryDelay(tt.attemptCount, 0.5)
		want := time.Duration(tt.wantSeconds * float64(time.Second))
		if got != want {
			t.Errorf("ComputeRetryDelay(%d, 0.5) = %v, want %v", tt.attemptCount, got, want)
		}
	}
}

func TestComputeRetryDelay_JitterBounds(t *testing.T) {
	base := ComputeRetryDelay(1, 0.5)
	low := ComputeRetryDelay(1, 0)
	high := ComputeRetryDelay(1, 1)

	if low >= base {
		t.Errorf("jitter=0 delay %v should be less than midpoint %v", low, base)
	}
	if high <= base {
		t.Errorf("jitter=1 delay %v should be greater than midpoint %v", high, base)
	}

	wantLow := time.Duration(float64(base) * 0.9)
	wantHigh := time.Duration(float64(base) * 1.1)
	if low != wantLow {
		t.Errorf("low = %v, want %v", low, wantLow)
	}
	if high != wantHigh {
		t.Errorf("high = %v, want %v", high, wantHigh)
	}
}

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		attemptCount int
		want         bool
	}{
		{0, true},
		{2, true},
		{3, false},
		{4, false},
	}

	for _, tt := range tests {
		if got := ShouldRetry(tt.attemptCount); got != tt.want {
			t.Errorf("ShouldRetry(%d) = %v, want %v", tt.attemptCount, got, tt.want)
		}
	}
}
