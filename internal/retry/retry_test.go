package retry

import (
	"testing"
	"time"
)

func TestScheduler_NextDelay_PositiveAndCapped(t *testing.T) {
	s := NewScheduler()
	for attempt := 0; attempt <= 6; attempt++ {
		delay := s.NextDelay(attempt)
		if delay <= 0 {
			t.Fatalf("NextDelay(%d) = %v, want positive", attempt, delay)
		}
		if delay > 20*time.Minute {
			t.Fatalf("NextDelay(%d) = %v, want capped well under 20m", attempt, delay)
		}
	}
}

func TestScheduler_DelayGrowsWithAttempts(t *testing.T) {
	sched := NewScheduler()
	first := sched.NextDelay(0)
	fourth := sched.NextDelay(3)
	if fourth <= first {
		t.Errorf("delay at attempt 3 (%v) should exceed attempt 0 (%v)", fourth, first)
	}
}
