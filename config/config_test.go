package config

import (
	"testing"
	"time"
)

func TestAllowedOrigins(t *testing.T) {
	c := ServerConfig{CORSAllowedOrigins: " http://a.local, ,http://b.local "}
	got := c.AllowedOrigins()
	if len(got) != 2 || got[0] != "http://a.local" || got[1] != "http://b.local" {
		t.Fatalf("unexpected origins %q", got)
	}
	if got := (ServerConfig{}).AllowedOrigins(); len(got) != 0 {
		t.Errorf("expected no origins, got %q", got)
	}
}

func TestGetEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION_GO", "250ms")
	t.Setenv("TEST_DURATION_SECONDS", "20")
	t.Setenv("TEST_DURATION_BAD", "soon")

	if got := getEnvDuration("TEST_DURATION_GO", time.Second); got != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", got)
	}
	if got := getEnvDuration("TEST_DURATION_SECONDS", time.Second); got != 20*time.Second {
		t.Errorf("expected 20s, got %v", got)
	}
	if got := getEnvDuration("TEST_DURATION_BAD", time.Second); got != time.Second {
		t.Errorf("expected fallback, got %v", got)
	}
}
