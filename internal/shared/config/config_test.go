package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("SCORE_DEDUCTION_CRITICAL", "")
	t.Setenv("ADVISORY_TIMEOUT", "")

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected dev env, got %q", cfg.Env)
	}
	if cfg.Scoring.CriticalDeduction != 20 || cfg.Scoring.MajorDeduction != 10 || cfg.Scoring.MinorDeduction != 5 {
		t.Fatalf("unexpected default deductions: %+v", cfg.Scoring)
	}
	if cfg.Scoring.ReadyThreshold != 80 || cfg.Scoring.WarningThreshold != 50 {
		t.Fatalf("unexpected default thresholds: %+v", cfg.Scoring)
	}
	if cfg.AdvisoryTimeout != 30*time.Second {
		t.Fatalf("expected 30s advisory timeout, got %s", cfg.AdvisoryTimeout)
	}
	if cfg.MaxCompareCountries != 5 {
		t.Fatalf("expected 5 compare countries, got %d", cfg.MaxCompareCountries)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("LLM_PROVIDER", "Kolosal")
	t.Setenv("ADVISORY_TIMEOUT", "5s")
	t.Setenv("SCORE_DEDUCTION_MINOR", "3")
	t.Setenv("ADVISORY_BURST", "not-a-number")

	cfg := Load()
	if cfg.Env != "production" {
		t.Fatalf("expected production, got %q", cfg.Env)
	}
	if cfg.LLMProvider != "openai" {
		t.Fatalf("expected kolosal to normalize to openai, got %q", cfg.LLMProvider)
	}
	if cfg.AdvisoryTimeout != 5*time.Second {
		t.Fatalf("expected 5s, got %s", cfg.AdvisoryTimeout)
	}
	if cfg.Scoring.MinorDeduction != 3 {
		t.Fatalf("expected minor deduction 3, got %d", cfg.Scoring.MinorDeduction)
	}
	if cfg.AdvisoryBurst != 4 {
		t.Fatalf("expected invalid burst to fall back to 4, got %d", cfg.AdvisoryBurst)
	}
}
