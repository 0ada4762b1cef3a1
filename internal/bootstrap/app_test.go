package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"exportready-backend/internal/llm"
	"exportready-backend/internal/shared/config"
)

func memoryConfig() config.Config {
	return config.Config{
		Env:         "dev",
		LLMProvider: "none",
		Scoring: config.Scoring{
			CriticalDeduction: 25,
			MajorDeduction:    10,
			MinorDeduction:    5,
			ReadyThreshold:    85,
			WarningThreshold:  50,
		},
		MaxCompareCountries: 3,
	}
}

func TestBuildInMemory(t *testing.T) {
	app, err := Build(memoryConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer app.Close()

	if app.DB != nil || app.RecCache != nil {
		t.Fatalf("expected memory-only app")
	}
	if app.AnalysisService.Scorer.Weights.Critical != 25 || app.AnalysisService.Scorer.Thresholds.Ready != 85 {
		t.Fatalf("scoring config not applied: %+v", app.AnalysisService.Scorer)
	}
	if app.AnalysisService.MaxCompareCountries != 3 {
		t.Fatalf("expected compare limit 3, got %d", app.AnalysisService.MaxCompareCountries)
	}

	if _, err := app.CountryService.Get(context.Background(), "US"); err != nil {
		t.Fatalf("expected seeded US country: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected healthy app, got %d", resp.Code)
	}
}

func TestBuildWithoutProviderUsesUnconfiguredAnalyzer(t *testing.T) {
	app, err := Build(memoryConfig())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_, err = app.Analyzer.Analyze(context.Background(), "prompt", "system")
	if !errors.Is(err, llm.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestBuildRequiresDatabaseOutsideDev(t *testing.T) {
	cfg := memoryConfig()
	cfg.Env = "production"
	if _, err := Build(cfg); err == nil {
		t.Fatalf("expected error without DATABASE_URL in production")
	}
}

func TestLoadSeedFileMissing(t *testing.T) {
	if _, err := LoadSeedFile("/does/not/exist.yaml"); err == nil {
		t.Fatalf("expected error for missing seed file")
	}
}

func TestWrappedAnalyzerBoundsLimiterWait(t *testing.T) {
	cfg := memoryConfig()
	cfg.AdvisoryTimeout = 100 * time.Millisecond
	cfg.AdvisoryRPS = 0.5
	cfg.AdvisoryBurst = 1
	analyzer := wrapAnalyzer(llm.Func(func(ctx context.Context, prompt, systemPrompt string) (string, error) {
		return "[]", nil
	}), cfg)

	if _, err := analyzer.Analyze(context.Background(), "p", "s"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	start := time.Now()
	_, err := analyzer.Analyze(context.Background(), "p", "s")
	if !errors.Is(err, llm.ErrTimeout) {
		t.Fatalf("expected ErrTimeout while waiting for a token, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("limiter wait escaped the advisory timeout: %s", elapsed)
	}
}

func TestWrappedAnalyzerBoundsRetry(t *testing.T) {
	cfg := memoryConfig()
	cfg.AdvisoryTimeout = 100 * time.Millisecond
	analyzer := wrapAnalyzer(llm.Func(func(ctx context.Context, prompt, systemPrompt string) (string, error) {
		return "", errors.New("error, status code: 503")
	}), cfg)

	start := time.Now()
	_, err := analyzer.Analyze(context.Background(), "p", "s")
	if !errors.Is(err, llm.ErrTimeout) {
		t.Fatalf("expected ErrTimeout during retry backoff, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Fatalf("retry backoff escaped the advisory timeout: %s", elapsed)
	}
}
