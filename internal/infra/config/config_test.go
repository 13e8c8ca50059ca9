package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != 8000 {
		t.Fatalf("expected port 8000, got %d", cfg.Port)
	}
	if cfg.Storage.Namespace != "drinktea:" {
		t.Fatalf("unexpected namespace %q", cfg.Storage.Namespace)
	}
	if cfg.Feedback.WindowDays != 30 {
		t.Fatalf("expected 30 day window, got %d", cfg.Feedback.WindowDays)
	}
	if cfg.Client.Timeout != 0 {
		t.Fatalf("expected no client timeout by default, got %s", cfg.Client.Timeout)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "memory")
	t.Setenv("APP_CORS_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("API_TIMEOUT", "3s")
	t.Setenv("TZ", "Asia/Shanghai")
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.Client.Timeout != 3*time.Second {
		t.Fatalf("unexpected timeout %s", cfg.Client.Timeout)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "Asia/Shanghai" {
		t.Fatalf("unexpected location %v, %v", loc, err)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown backend":   {"STORAGE_BACKEND": "sqlite"},
		"redis without url": {"STORAGE_BACKEND": "redis", "REDIS_ADDR": ""},
		"page size":         {"FEED_PAGE_SIZE": "51"},
		"window":            {"FEEDBACK_WINDOW_DAYS": "0"},
		"timezone":          {"TZ": "Mars/Olympus"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Parse(); err == nil {
				t.Fatalf("expected error for %v", env)
			}
		})
	}
}
