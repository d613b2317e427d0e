package observability

import "testing"

func TestNewLogger_ValidLevel(t *testing.T) {
	logger, err := NewLogger("debug")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger == nil {
		t.Fatal("NewLogger() returned nil logger")
	}
}

func TestNewLogger_InvalidLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger("not-a-level")
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger == nil {
		t.Fatal("NewLogger() returned nil logger")
	}
}

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	m := NewMetrics()
	if m.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal not initialized")
	}
	if m.DestinationsSentTotal == nil {
		t.Error("DestinationsSentTotal not initialized")
	}
	if m.QueueDepth == nil {
		t.Error("QueueDepth not initialized")
	}

	m.HTTPRequestsTotal.WithLabelValues("/v1/messages", "POST", "200").Inc()
	m.DestinationsSentTotal.WithLabelValues("telegram").Inc()
	m.QueueDepth.WithLabelValues("telegram").Set(3)
}
