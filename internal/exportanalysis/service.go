package exportanalysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"exportready-backend/internal/compliance"
	"exportready-backend/internal/countries"
	"exportready-backend/internal/llm"
	"exportready-backend/internal/products"
	"exportready-backend/internal/shared/metrics"
	"exportready-backend/internal/shared/telemetry"
	"exportready-backend/internal/shared/util"
)

var defaultClock = NewClock(nil)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service orchestrates validation, rule checking, scoring and persistence of
// export analyses.
type Service struct {
	Repo      Repo
	Catalog   products.Catalog
	Countries *countries.Service
	Checkers  compliance.Checkers
	Scorer    compliance.Scorer
	Generator compliance.Generator
	// Analyzer writes regulation recommendation documents.
	Analyzer            llm.Analyzer
	Cache               FrontCache
	Clock               *Clock
	MaxCompareCountries int
}

// NewService wires the checkers and generator over one analyzer.
func NewService(repo Repo, catalog products.Catalog, countrySvc *countries.Service, analyzer llm.Analyzer, scorer compliance.Scorer) *Service {
	return &Service{
		Repo:                repo,
		Catalog:             catalog,
		Countries:           countrySvc,
		Checkers:            compliance.NewCheckers(countrySvc, analyzer),
		Scorer:              scorer,
		Generator:           compliance.Generator{Analyzer: analyzer},
		Analyzer:            analyzer,
		Cache:               NopFrontCache{},
		Clock:               NewClock(nil),
		MaxCompareCountries: 5,
	}
}

func (s *Service) clock() *Clock {
	if s.Clock == nil {
		return defaultClock
	}
	return s.Clock
}

func (s *Service) cache() FrontCache {
	if s.Cache == nil {
		return NopFrontCache{}
	}
	return s.Cache
}

func (s *Service) maxCompare() int {
	if s.MaxCompareCountries <= 0 {
		return 5
	}
	return s.MaxCompareCountries
}

// Create analyzes productID for countryCode and stores the result.
func (s *Service) Create(ctx context.Context, caller Caller, productID int64, countryCode string) (ExportAnalysis, error) {
	if productID <= 0 {
		return ExportAnalysis{}, invalid("product_id", "required")
	}
	code, err := normalizeCountryCode("target_country_code", countryCode)
	if err != nil {
		return ExportAnalysis{}, err
	}
	// The snapshot instant precedes the read, so an edit made while the
	// checkers run always sorts after the snapshot.
	snapshotAt := s.clock().Next()
	product, err := s.ownedProduct(ctx, caller, productID)
	if err != nil {
		return ExportAnalysis{}, err
	}
	country, err := s.country(ctx, code)
	if err != nil {
		return ExportAnalysis{}, err
	}
	if _, err := s.Repo.GetByProductCountry(ctx, productID, code); err == nil {
		return ExportAnalysis{}, fmt.Errorf("%w for product %d and %s", ErrConflict, productID, code)
	} else if !errors.Is(err, ErrNotFound) {
		return ExportAnalysis{}, persistence("lookup analysis", err)
	}

	r := s.begin(uuid.NewString(), productID, code)
	result, err := s.evaluate(ctx, r, compliance.Input{
		MaterialComposition: product.MaterialComposition,
		QualitySpecs:        product.QualitySpecs,
		PackagingType:       product.PackagingType,
	})
	if err != nil {
		return ExportAnalysis{}, s.fail(ctx, r, err)
	}

	s.transition(ctx, r, StatusPersisting)
	a := newAnalysis(r.analysisID, product, country, NewSnapshot(product, snapshotAt), result, s.clock().Next())
	if err := s.Repo.Create(ctx, a); err != nil {
		if errors.Is(err, ErrConflict) {
			return ExportAnalysis{}, s.fail(ctx, r, fmt.Errorf("%w for product %d and %s", ErrConflict, productID, code))
		}
		return ExportAnalysis{}, s.fail(ctx, r, persistence("create analysis", err))
	}
	s.done(ctx, r)
	return a, nil
}

// Get returns an analysis with a flag telling whether the product changed since it was taken.
func (s *Service) Get(ctx context.Context, caller Caller, id string) (View, error) {
	a, err := s.ownedAnalysis(ctx, caller, id)
	if err != nil {
		return View{}, err
	}
	view := View{ExportAnalysis: a}
	product, err := s.Catalog.GetProduct(ctx, a.ProductID)
	switch {
	case err == nil:
		view.ProductChanged = IsProductChanged(a.ProductSnapshot, product)
	case errors.Is(err, products.ErrNotFound):
	default:
		return View{}, persistence("load product", err)
	}
	return view, nil
}

// List returns a page of analyses visible to caller, newest first.
func (s *Service) List(ctx context.Context, caller Caller, filter ListFilter) (ListResult, error) {
	if filter.CountryCode != "" {
		code, err := normalizeCountryCode("country_code", filter.CountryCode)
		if err != nil {
			return ListResult{}, err
		}
		filter.CountryCode = code
	}
	if filter.ScoreMin != nil && filter.ScoreMax != nil && *filter.ScoreMin > *filter.ScoreMax {
		return ListResult{}, invalid("score_min", "must not exceed score_max")
	}
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}

	q := ListQuery{
		ListFilter:  filter,
		All:         caller.IsAdmin(),
		OwnerUserID: caller.UserID,
		BusinessID:  caller.BusinessID,
		Offset:      (filter.Page - 1) * filter.Limit,
	}
	items, total, err := s.Repo.List(ctx, q)
	if err != nil {
		return ListResult{}, persistence("list analyses", err)
	}
	return ListResult{Items: items, Total: total, Page: filter.Page, Limit: filter.Limit}, nil
}

// Delete removes an analysis and its cached recommendations.
func (s *Service) Delete(ctx context.Context, caller Caller, id string) error {
	a, err := s.ownedAnalysis(ctx, caller, id)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return notFound("analysis")
		}
		return persistence("delete analysis", err)
	}
	s.invalidate(ctx, a)
	telemetry.Info("analysis.deleted", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"analysis_id": id,
		"user_id":     caller.UserID,
	})
	return nil
}

// Reanalyze reruns the checks against the live product, keeping ID and
// CreatedAt. The snapshot is retaken and the recommendation cache emptied.
// Concurrent re-analyses of one analysis resolve with ErrConflict for the loser.
func (s *Service) Reanalyze(ctx context.Context, caller Caller, id string) (ExportAnalysis, error) {
	prev, err := s.ownedAnalysis(ctx, caller, id)
	if err != nil {
		return ExportAnalysis{}, err
	}
	floor := prev.AnalyzedAt
	if prev.ProductSnapshot.SnapshotCreatedAt.After(floor) {
		floor = prev.ProductSnapshot.SnapshotCreatedAt
	}
	snapshotAt := s.clock().NextAfter(floor)
	product, err := s.Catalog.GetProduct(ctx, prev.ProductID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			return ExportAnalysis{}, notFound("product")
		}
		return ExportAnalysis{}, persistence("load product", err)
	}
	if !product.HasEnrichment() {
		return ExportAnalysis{}, invalid("product_id", "product has not been enriched")
	}
	country, err := s.country(ctx, prev.CountryCode)
	if err != nil {
		return ExportAnalysis{}, err
	}

	r := s.begin(prev.ID, prev.ProductID, prev.CountryCode)
	r.from = StatusDone
	result, err := s.evaluate(ctx, r, compliance.Input{
		MaterialComposition: product.MaterialComposition,
		QualitySpecs:        product.QualitySpecs,
		PackagingType:       product.PackagingType,
	})
	if err != nil {
		return ExportAnalysis{}, s.fail(ctx, r, err)
	}

	s.transition(ctx, r, StatusPersisting)
	next := newAnalysis(prev.ID, product, country, NewSnapshot(product, snapshotAt), result, s.clock().Next())
	next.CreatedAt = prev.CreatedAt
	next.OwnerUserID = prev.OwnerUserID
	next.BusinessID = prev.BusinessID
	if err := s.Repo.Replace(ctx, next, prev.AnalyzedAt); err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			return ExportAnalysis{}, s.fail(ctx, r, fmt.Errorf("%w: analysis %s was re-analyzed concurrently", ErrConflict, prev.ID))
		case errors.Is(err, ErrNotFound):
			return ExportAnalysis{}, s.fail(ctx, r, notFound("analysis"))
		default:
			return ExportAnalysis{}, s.fail(ctx, r, persistence("replace analysis", err))
		}
	}
	s.invalidate(ctx, prev)
	s.done(ctx, r)
	return next, nil
}

// Compare analyzes one product for several countries against a single
// snapshot. Existing analyses are reused. A failing country is reported in its
// own result and does not affect the others.
func (s *Service) Compare(ctx context.Context, caller Caller, productID int64, codes []string) (Comparison, error) {
	if productID <= 0 {
		return Comparison{}, invalid("product_id", "required")
	}
	unique, err := s.compareCodes(codes)
	if err != nil {
		return Comparison{}, err
	}
	snapshotAt := s.clock().Next()
	product, err := s.ownedProduct(ctx, caller, productID)
	if err != nil {
		return Comparison{}, err
	}

	snapshot := NewSnapshot(product, snapshotAt)
	results := make([]CompareResult, len(unique))
	var g errgroup.Group
	for i, code := range unique {
		i, code := i, code
		g.Go(func() error {
			results[i] = s.compareLeg(ctx, product, snapshot, code)
			return nil
		})
	}
	_ = g.Wait()

	return Comparison{
		ProductID:         productID,
		SnapshotCreatedAt: snapshot.SnapshotCreatedAt,
		Results:           results,
	}, nil
}

func (s *Service) compareCodes(codes []string) ([]string, error) {
	seen := make(map[string]struct{}, len(codes))
	unique := make([]string, 0, len(codes))
	for _, raw := range codes {
		code, err := normalizeCountryCode("country_codes", raw)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		unique = append(unique, code)
	}
	if len(unique) == 0 {
		return nil, invalid("country_codes", "at least one country is required")
	}
	if len(unique) > s.maxCompare() {
		return nil, invalid("country_codes", fmt.Sprintf("at most %d countries can be compared", s.maxCompare()))
	}
	return unique, nil
}

func (s *Service) compareLeg(ctx context.Context, product products.Product, snapshot ProductSnapshot, code string) CompareResult {
	out := CompareResult{CountryCode: code}
	reuse := func() (bool, error) {
		existing, err := s.Repo.GetByProductCountry(ctx, product.ID, code)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return false, nil
			}
			return false, persistence("lookup analysis", err)
		}
		out.Analysis = &existing
		out.Reused = true
		return true, nil
	}
	if ok, err := reuse(); err != nil {
		out.Error = err.Error()
		return out
	} else if ok {
		return out
	}
	country, err := s.country(ctx, code)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	r := s.begin(uuid.NewString(), product.ID, code)
	result, err := s.evaluate(ctx, r, snapshot.CheckerInput())
	if err != nil {
		out.Error = s.fail(ctx, r, err).Error()
		return out
	}
	s.transition(ctx, r, StatusPersisting)
	a := newAnalysis(r.analysisID, product, country, snapshot, result, s.clock().Next())
	if err := s.Repo.Create(ctx, a); err != nil {
		// Lost a create race: the winner's row is the answer.
		if errors.Is(err, ErrConflict) {
			ok, lookupErr := reuse()
			if ok {
				s.transition(ctx, r, StatusDone)
				return out
			}
			if lookupErr != nil {
				out.Error = s.fail(ctx, r, lookupErr).Error()
				return out
			}
		}
		out.Error = s.fail(ctx, r, persistence("create analysis", err)).Error()
		return out
	}
	s.done(ctx, r)
	out.Analysis = &a
	return out
}

// RegulationRecommendations returns the regulation document for an analysis in
// the requested language, generating and caching it on first use.
func (s *Service) RegulationRecommendations(ctx context.Context, caller Caller, req RecommendationRequest) (RecommendationResult, error) {
	lang, err := normalizeLanguage(req.Language)
	if err != nil {
		return RecommendationResult{}, err
	}
	a, err := s.recommendationTarget(ctx, caller, req)
	if err != nil {
		return RecommendationResult{}, err
	}
	result := RecommendationResult{AnalysisID: a.ID, CountryCode: a.CountryCode, Language: lang}

	if payload, ok, err := s.cache().Get(ctx, a.ID, cacheVersion(a), lang); err != nil {
		telemetry.Warn("recommendations.cache_error", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": a.ID,
			"error":       err.Error(),
		})
	} else if ok {
		metrics.IncRecommendationCache(true)
		result.Recommendations = payload
		result.FromCache = true
		return result, nil
	}
	if payload, ok := a.RecommendationsCache[lang]; ok && len(payload) > 0 {
		metrics.IncRecommendationCache(true)
		s.warm(ctx, a, lang, payload)
		result.Recommendations = payload
		result.FromCache = true
		return result, nil
	}
	metrics.IncRecommendationCache(false)

	country, err := s.Countries.Get(ctx, a.CountryCode)
	if err != nil {
		if !errors.Is(err, countries.ErrNotFound) {
			return RecommendationResult{}, persistence("load country", err)
		}
		country = countries.Country{Code: a.CountryCode, Name: a.CountryName}
	}
	doc := s.regulationDocument(ctx, a, country, lang)
	result.Recommendations = doc
	if err := s.Repo.SetRecommendationCache(ctx, a.ID, a.AnalyzedAt, lang, doc); err != nil {
		switch {
		case errors.Is(err, ErrConflict):
			// Re-analyzed meanwhile; the document describes the old snapshot
			// and must not land in the new version's cache.
			telemetry.Info("recommendations.stale", map[string]any{
				"request_id":  requestIDFromContext(ctx),
				"analysis_id": a.ID,
				"language":    lang,
			})
			return result, nil
		case errors.Is(err, ErrNotFound):
			return RecommendationResult{}, notFound("analysis")
		default:
			return RecommendationResult{}, persistence("store recommendations", err)
		}
	}
	s.warm(ctx, a, lang, doc)
	return result, nil
}

func (s *Service) recommendationTarget(ctx context.Context, caller Caller, req RecommendationRequest) (ExportAnalysis, error) {
	if id := strings.TrimSpace(req.AnalysisID); id != "" {
		return s.ownedAnalysis(ctx, caller, id)
	}
	if req.ProductID <= 0 {
		return ExportAnalysis{}, invalid("product_id", "required")
	}
	code, err := normalizeCountryCode("country_code", req.CountryCode)
	if err != nil {
		return ExportAnalysis{}, err
	}
	a, err := s.Repo.GetByProductCountry(ctx, req.ProductID, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ExportAnalysis{}, notFound("analysis")
		}
		return ExportAnalysis{}, persistence("load analysis", err)
	}
	if !caller.owns(a.BusinessID, a.OwnerUserID) {
		return ExportAnalysis{}, ErrForbidden
	}
	return a, nil
}

// regulationDocument asks the analyzer for a JSON document built from the
// snapshot and falls back to a fixed template on any failure.
func (s *Service) regulationDocument(ctx context.Context, a ExportAnalysis, country countries.Country, lang string) json.RawMessage {
	fallback := func(err error) json.RawMessage {
		metrics.IncAdvisoryDegraded("regulation_recommendations")
		telemetry.Warn("advisory.degraded", map[string]any{
			"request_id":   requestIDFromContext(ctx),
			"component":    "regulation_recommendations",
			"analysis_id":  a.ID,
			"country_code": a.CountryCode,
			"error":        util.SanitizeError(err),
		})
		return fallbackRegulationDocument(a.ProductSnapshot, country, lang)
	}
	if s.Analyzer == nil {
		return fallback(llm.ErrNotConfigured)
	}
	reply, err := s.Analyzer.Analyze(ctx, regulationPrompt(a.ProductSnapshot, country, a.ComplianceIssues, lang), regulationSystemPrompt(lang))
	if err != nil {
		return fallback(llm.Classify(err))
	}
	doc, err := llm.ExtractJSONObject(reply)
	if err != nil {
		return fallback(err)
	}
	return doc
}

func (s *Service) warm(ctx context.Context, a ExportAnalysis, lang string, payload json.RawMessage) {
	if err := s.cache().Set(ctx, a.ID, cacheVersion(a), lang, payload); err != nil {
		telemetry.Warn("recommendations.cache_error", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": a.ID,
			"error":       err.Error(),
		})
	}
}

func (s *Service) invalidate(ctx context.Context, a ExportAnalysis) {
	if err := s.cache().Invalidate(ctx, a.ID, cacheVersion(a)); err != nil {
		telemetry.Warn("recommendations.cache_error", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"analysis_id": a.ID,
			"error":       err.Error(),
		})
	}
}

func (s *Service) ownedProduct(ctx context.Context, caller Caller, productID int64) (products.Product, error) {
	product, err := s.Catalog.GetProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, products.ErrNotFound) {
			return products.Product{}, notFound("product")
		}
		return products.Product{}, persistence("load product", err)
	}
	if !caller.owns(product.BusinessID, product.OwnerUserID) {
		return products.Product{}, ErrForbidden
	}
	if !product.HasEnrichment() {
		return products.Product{}, invalid("product_id", "product has not been enriched")
	}
	return product, nil
}

func (s *Service) ownedAnalysis(ctx context.Context, caller Caller, id string) (ExportAnalysis, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return ExportAnalysis{}, invalid("id", "required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return ExportAnalysis{}, notFound("analysis")
	}
	a, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ExportAnalysis{}, notFound("analysis")
		}
		return ExportAnalysis{}, persistence("load analysis", err)
	}
	if !caller.owns(a.BusinessID, a.OwnerUserID) {
		return ExportAnalysis{}, ErrForbidden
	}
	return a, nil
}

func (s *Service) country(ctx context.Context, code string) (countries.Country, error) {
	c, err := s.Countries.Get(ctx, code)
	if err != nil {
		if errors.Is(err, countries.ErrNotFound) {
			return countries.Country{}, notFound("country " + code)
		}
		return countries.Country{}, persistence("load country", err)
	}
	return c, nil
}

// run tracks one analysis through its states for logging and metrics.
type run struct {
	analysisID  string
	productID   int64
	countryCode string
	from        Status
	started     time.Time
}

func (s *Service) begin(analysisID string, productID int64, code string) *run {
	return &run{
		analysisID:  analysisID,
		productID:   productID,
		countryCode: code,
		from:        StatusValidating,
		started:     time.Now(),
	}
}

type evaluation struct {
	issues          []compliance.Issue
	score           int
	grade           compliance.Grade
	recommendations string
	regulations     *RegulationSnapshot
}

func (s *Service) evaluate(ctx context.Context, r *run, in compliance.Input) (evaluation, error) {
	metrics.IncAnalysisStarted()
	s.transition(ctx, r, StatusChecking)
	issues, err := s.Checkers.Run(ctx, in, r.countryCode)
	if err != nil {
		return evaluation{}, persistence("load regulations", err)
	}

	s.transition(ctx, r, StatusScoring)
	score, grade := s.Scorer.Score(issues)
	return evaluation{
		issues:          issues,
		score:           score,
		grade:           grade,
		recommendations: s.Generator.Generate(ctx, issues),
		regulations:     s.regulationSnapshot(ctx, r.countryCode),
	}, nil
}

// regulationSnapshot records the rule sets an analysis was checked against.
// It is informational, so lookup failures leave it empty.
func (s *Service) regulationSnapshot(ctx context.Context, code string) *RegulationSnapshot {
	snap := &RegulationSnapshot{
		CountryCode: code,
		CapturedAt:  time.Now().UTC(),
		Categories:  make(map[countries.RuleCategory]countries.RuleSet, len(countries.Categories)),
	}
	for _, cat := range countries.Categories {
		set, err := s.Countries.RuleSet(ctx, code, cat)
		if err != nil {
			telemetry.Warn("analysis.regulation_snapshot_failed", map[string]any{
				"request_id":   requestIDFromContext(ctx),
				"country_code": code,
				"error":        err.Error(),
			})
			return nil
		}
		snap.Categories[cat] = set
	}
	return snap
}

func (s *Service) transition(ctx context.Context, r *run, next Status) {
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       r.analysisID,
		"product_id":        r.productID,
		"country_code":      r.countryCode,
		"status":            string(next),
		"status_transition": string(r.from) + "->" + string(next),
	})
	r.from = next
}

func (s *Service) done(ctx context.Context, r *run) {
	s.transition(ctx, r, StatusDone)
	metrics.IncAnalysisCompleted()
	metrics.ObserveAnalysisDurationMs(float64(time.Since(r.started).Milliseconds()))
}

func (s *Service) fail(ctx context.Context, r *run, err error) error {
	telemetry.Error("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       r.analysisID,
		"product_id":        r.productID,
		"country_code":      r.countryCode,
		"status":            string(StatusFailed),
		"status_transition": string(r.from) + "->" + string(StatusFailed),
		"error":             err.Error(),
	})
	r.from = StatusFailed
	metrics.IncAnalysisFailed()
	return err
}

func newAnalysis(id string, p products.Product, c countries.Country, snapshot ProductSnapshot, e evaluation, at time.Time) ExportAnalysis {
	issues := e.issues
	if issues == nil {
		issues = []compliance.Issue{}
	}
	return ExportAnalysis{
		ID:                   id,
		ProductID:            p.ID,
		OwnerUserID:          p.OwnerUserID,
		BusinessID:           p.BusinessID,
		ProductName:          p.NameLocal,
		CountryCode:          c.Code,
		CountryName:          c.Name,
		ReadinessScore:       e.score,
		StatusGrade:          e.grade,
		ComplianceIssues:     issues,
		Recommendations:      e.recommendations,
		ProductSnapshot:      snapshot,
		RegulationSnapshot:   e.regulations,
		RecommendationsCache: map[string]json.RawMessage{},
		AnalyzedAt:           at,
		CreatedAt:            at,
	}
}

func normalizeCountryCode(field, raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", invalid(field, "required")
	}
	if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
		return "", invalid(field, "must be a 2-letter country code")
	}
	return code, nil
}

func normalizeLanguage(raw string) (string, error) {
	lang := strings.ToLower(strings.TrimSpace(raw))
	if lang == "" {
		return Languages[0], nil
	}
	for _, l := range Languages {
		if l == lang {
			return lang, nil
		}
	}
	return "", invalid("language", "must be one of id, en")
}
