package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"exportready-backend/internal/compliance"
	"exportready-backend/internal/countries"
	"exportready-backend/internal/exportanalysis"
	"exportready-backend/internal/llm"
	"exportready-backend/internal/llm/openai"
	"exportready-backend/internal/products"
	"exportready-backend/internal/services/health"
	"exportready-backend/internal/shared/config"
	"exportready-backend/internal/shared/server"
	"exportready-backend/internal/shared/storage/db"
)

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	RecCache        *exportanalysis.RedisRecommendationCache
	CountriesRepo   countries.Repo
	AnalysesRepo    exportanalysis.Repo
	Catalog         products.Catalog
	Analyzer        llm.Analyzer
	CountryService  *countries.Service
	AnalysisService *exportanalysis.Service
	CountryHandler  *countries.Handler
	AnalysisHandler *exportanalysis.Handler
	Health          *health.Service
}

// Build prepares dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	analyzer, err := buildAnalyzer(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:   cfg,
		DB:       sqlDB,
		Analyzer: analyzer,
	}

	if err := buildRepos(ctx, app); err != nil {
		return nil, err
	}
	if err := buildRecommendationCache(ctx, app); err != nil {
		return nil, err
	}
	buildServices(app)

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		Health:          app.Health,
		CountryHandler:  app.CountryHandler,
		AnalysisHandler: app.AnalysisHandler,
	})
	return app, nil
}

// Close releases pooled connections.
func (a *App) Close() {
	if a.RecCache != nil {
		_ = a.RecCache.Close()
	}
	if a.DB != nil {
		_ = a.DB.Close()
	}
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return sqlDB, nil
}

func buildAnalyzer(cfg config.Config) (llm.Analyzer, error) {
	if cfg.LLMProvider != "openai" {
		log.Printf("bootstrap: LLM_PROVIDER=%s; advisory checks will degrade to zero issues", cfg.LLMProvider)
		return llm.Unconfigured{}, nil
	}
	if strings.TrimSpace(cfg.LLMAPIKey) == "" && isDevLike(cfg.Env) {
		log.Printf("bootstrap: LLM_API_KEY empty; advisory analyzer disabled")
		return llm.Unconfigured{}, nil
	}
	client, err := openai.NewClient(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMBaseURL)
	if err != nil {
		return nil, err
	}
	return wrapAnalyzer(client, cfg), nil
}

// wrapAnalyzer layers retries, metrics and rate limiting under one
// AdvisoryTimeout, so the limiter wait and a retry share the same deadline.
func wrapAnalyzer(base llm.Analyzer, cfg config.Config) llm.Analyzer {
	analyzer := llm.Retrying(base)
	analyzer = llm.Instrumented(analyzer)
	if cfg.AdvisoryRPS > 0 {
		burst := cfg.AdvisoryBurst
		if burst <= 0 {
			burst = 1
		}
		analyzer = llm.RateLimited(analyzer, rate.NewLimiter(rate.Limit(cfg.AdvisoryRPS), burst))
	}
	return llm.WithTimeout(analyzer, cfg.AdvisoryTimeout)
}

func buildRepos(ctx context.Context, app *App) error {
	if app.DB != nil {
		app.CountriesRepo = &countries.PGRepo{DB: app.DB}
		app.AnalysesRepo = &exportanalysis.PGRepo{DB: app.DB}
		app.Catalog = &products.PGCatalog{DB: app.DB}
		return nil
	}

	memCountries := countries.NewMemoryRepo()
	seed, err := loadSeed(app.Config.SeedFile)
	if err != nil {
		return err
	}
	seeder := &countries.Seeder{Repo: memCountries}
	if _, err := seeder.Apply(ctx, seed); err != nil {
		return fmt.Errorf("seed in-memory countries: %w", err)
	}
	app.CountriesRepo = memCountries
	app.AnalysesRepo = exportanalysis.NewMemoryRepo()
	app.Catalog = products.NewMemoryCatalog()
	return nil
}

// LoadSeedFile reads a YAML seed from path, or the bundled seed when path is empty.
func LoadSeedFile(path string) (countries.Seed, error) {
	return loadSeed(path)
}

func loadSeed(path string) (countries.Seed, error) {
	if strings.TrimSpace(path) == "" {
		return countries.DefaultSeed()
	}
	f, err := os.Open(path)
	if err != nil {
		return countries.Seed{}, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return countries.LoadSeed(f)
}

func buildRecommendationCache(ctx context.Context, app *App) error {
	if strings.TrimSpace(app.Config.RedisURL) == "" {
		return nil
	}
	cache, err := exportanalysis.NewRedisRecommendationCache(app.Config.RedisURL, app.Config.RecommendationTTL)
	if err != nil {
		return err
	}
	if err := cache.Ping(ctx); err != nil {
		if isDevLike(app.Config.Env) {
			log.Printf("bootstrap: redis unreachable; recommendation front-cache disabled: %v", err)
			_ = cache.Close()
			return nil
		}
		_ = cache.Close()
		return fmt.Errorf("ping redis: %w", err)
	}
	app.RecCache = cache
	return nil
}

func buildServices(app *App) {
	app.CountryService = &countries.Service{Repo: app.CountriesRepo}

	scorer := compliance.Scorer{
		Weights: compliance.Weights{
			Critical: app.Config.Scoring.CriticalDeduction,
			Major:    app.Config.Scoring.MajorDeduction,
			Minor:    app.Config.Scoring.MinorDeduction,
		},
		Thresholds: compliance.Thresholds{
			Ready:   app.Config.Scoring.ReadyThreshold,
			Warning: app.Config.Scoring.WarningThreshold,
		},
	}
	if scorer.Weights == (compliance.Weights{}) {
		scorer = compliance.DefaultScorer()
	}

	svc := exportanalysis.NewService(app.AnalysesRepo, app.Catalog, app.CountryService, app.Analyzer, scorer)
	if app.Config.MaxCompareCountries > 0 {
		svc.MaxCompareCountries = app.Config.MaxCompareCountries
	}
	if app.RecCache != nil {
		svc.Cache = app.RecCache
	}
	app.AnalysisService = svc

	app.CountryHandler = countries.NewHandler(app.CountryService)
	app.AnalysisHandler = exportanalysis.NewHandler(svc)

	probes := map[string]health.Probe{}
	if app.DB != nil {
		probes["database"] = app.DB.PingContext
	}
	if app.RecCache != nil {
		probes["redis"] = app.RecCache.Ping
	}
	app.Health = health.NewService(probes)
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local", "test":
		return true
	default:
		return false
	}
}
