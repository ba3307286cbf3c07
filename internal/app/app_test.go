package app

import (
	"testing"

	"playground-transcript-feed/internal/config"
)

func testConfig() *config.Configuration {
	return &config.Configuration{
		Service: config.ServiceConfig{Principal: "test-svc"},
		Merger:  config.MergerConfig{Scope: "all"},
		Limits:  config.LimitsConfig{MaxSegments: 10, MaxPartials: 10, OutboxSize: 4},
		Observability: config.ObservabilityConfig{
			LogLevel:  "error",
			LogFormat: "json",
		},
	}
}

func TestNew_Lifecycle(t *testing.T) {
	a, err := New(testConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Ready() {
		t.Error("expected application not ready before Start")
	}

	if err := a.Start(); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if !a.Ready() {
		t.Error("expected application ready after Start")
	}
	if a.consumer != nil {
		t.Error("expected no consumer with Kafka disabled")
	}

	if _, err := a.Rooms.GetOrCreate("room-1"); err != nil {
		t.Fatalf("unexpected room error: %v", err)
	}

	a.Shutdown()
	if a.Ready() {
		t.Error("expected application not ready after Shutdown")
	}
	if ids := a.Rooms.IDs(); len(ids) != 0 {
		t.Errorf("expected no rooms after shutdown, got %v", ids)
	}
}

func TestNew_InvalidScope(t *testing.T) {
	cfg := testConfig()
	cfg.Merger.Scope = "loudest"

	if _, err := New(cfg); err == nil {
		t.Error("expected error for unknown merger scope")
	}
}
