package exportanalysis

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"exportready-backend/internal/compliance"
)

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func sampleAnalysis() ExportAnalysis {
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	return ExportAnalysis{
		ID:               "7d0f4f6e-0c5e-4c1a-9d59-0f2f9f3f7c10",
		ProductID:        1,
		OwnerUserID:      "user-1",
		BusinessID:       10,
		ProductName:      "Keripik Tempe",
		CountryCode:      "US",
		ReadinessScore:   80,
		StatusGrade:      compliance.GradeReady,
		ComplianceIssues: []compliance.Issue{{RuleKey: "Allergen Info", Severity: compliance.SeverityMajor}},
		Recommendations:  "1. [major] Allergen Info",
		ProductSnapshot:  ProductSnapshot{ProductID: 1, SnapshotCreatedAt: at},
		AnalyzedAt:       at,
		CreatedAt:        at,
	}
}

func TestPGRepoCreateMapsUniqueViolationToConflict(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAnalysis()

	mock.ExpectExec("INSERT INTO export_analyses").
		WithArgs(
			a.ID,
			a.ProductID,
			a.OwnerUserID,
			a.BusinessID,
			a.ProductName,
			a.CountryCode,
			a.ReadinessScore,
			"Ready",
			sqlmock.AnyArg(), // compliance_issues
			a.Recommendations,
			sqlmock.AnyArg(), // product_snapshot
			nil,              // regulation_snapshot
			a.AnalyzedAt,
			a.CreatedAt,
		).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "export_analyses_product_country_key"})

	if err := repo.Create(context.Background(), a); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDDecodesJSONColumns(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "product_id", "owner_user_id", "business_id", "product_name", "country_code",
		"country_name", "readiness_score", "status_grade", "compliance_issues",
		"recommendations", "product_snapshot", "regulation_snapshot",
		"regulation_recommendations_cache", "analyzed_at", "created_at",
	}).AddRow(
		"a-1", int64(1), "user-1", int64(10), "Keripik Tempe", "US",
		"United States", 90, "Ready", []byte(`[{"rule_key":"x","severity":"minor"}]`),
		"ok", []byte(`{"product_id":1,"material_composition":"Tempe","snapshot_created_at":"2026-04-01T09:00:00Z"}`), nil,
		[]byte(`{"en":{"regulation_recommendations":{}}}`), at, at,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM export_analyses a")).WithArgs("a-1").WillReturnRows(rows)

	a, err := repo.GetByID(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if a.CountryName != "United States" || a.StatusGrade != compliance.GradeReady {
		t.Fatalf("unexpected row %+v", a)
	}
	if len(a.ComplianceIssues) != 1 || a.ComplianceIssues[0].Severity != compliance.SeverityMinor {
		t.Fatalf("unexpected issues %+v", a.ComplianceIssues)
	}
	if a.ProductSnapshot.MaterialComposition != "Tempe" || !a.ProductSnapshot.SnapshotCreatedAt.Equal(at) {
		t.Fatalf("unexpected snapshot %+v", a.ProductSnapshot)
	}
	if a.RegulationSnapshot != nil {
		t.Fatalf("expected nil regulation snapshot")
	}
	if _, ok := a.RecommendationsCache["en"]; !ok {
		t.Fatalf("expected cached en entry, got %v", a.RecommendationsCache)
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM export_analyses").WithArgs("missing").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoReplaceDetectsStaleVersion(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAnalysis()
	prev := a.AnalyzedAt.Add(-time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE export_analyses").
		WithArgs(a.ID, a.ProductName, a.ReadinessScore, "Ready", sqlmock.AnyArg(), a.Recommendations, sqlmock.AnyArg(), nil, a.AnalyzedAt, prev).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WithArgs(a.ID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	if err := repo.Replace(context.Background(), a, prev); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoReplaceCommits(t *testing.T) {
	repo, mock := newMockRepo(t)
	a := sampleAnalysis()
	prev := a.AnalyzedAt.Add(-time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("regulation_recommendations_cache = '{}'::jsonb")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Replace(context.Background(), a, prev); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoListBuildsScopedQuery(t *testing.T) {
	repo, mock := newMockRepo(t)
	minScore := 50
	q := ListQuery{
		ListFilter:  ListFilter{CountryCode: "JP", ScoreMin: &minScore, Search: "tempe", Limit: 20},
		OwnerUserID: "user-1",
		BusinessID:  10,
		Offset:      20,
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(int64(10), "user-1", "JP", 50, "%tempe%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY a.analyzed_at DESC, a.id LIMIT $6 OFFSET $7")).
		WithArgs(int64(10), "user-1", "JP", 50, "%tempe%", 20, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	items, total, err := repo.List(context.Background(), q)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 21 || len(items) != 0 {
		t.Fatalf("expected total 21 and empty page, got %d/%d", total, len(items))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestListWhereForAdminHasNoOwnerClause(t *testing.T) {
	where, args := listWhere(ListQuery{All: true})
	if where != "" || len(args) != 0 {
		t.Fatalf("expected no clause, got %q %v", where, args)
	}
	where, _ = listWhere(ListQuery{})
	if where != " WHERE (FALSE)" {
		t.Fatalf("expected anonymous scope to match nothing, got %q", where)
	}
}

func TestPGRepoSetRecommendationCacheMerges(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	payload := json.RawMessage(`{"regulation_recommendations":{}}`)
	mock.ExpectExec(regexp.QuoteMeta("regulation_recommendations_cache || $2::jsonb")).
		WithArgs("a-1", []byte(`{"id":{"regulation_recommendations":{}}}`), at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetRecommendationCache(context.Background(), "a-1", at, "id", payload); err != nil {
		t.Fatalf("SetRecommendationCache: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoSetRecommendationCacheRejectsReplacedVersion(t *testing.T) {
	repo, mock := newMockRepo(t)
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND analyzed_at = $3")).
		WithArgs("a-1", sqlmock.AnyArg(), at).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	err := repo.SetRecommendationCache(context.Background(), "a-1", at, "en", json.RawMessage(`{}`))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoDeleteMissing(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("DELETE FROM export_analyses").WithArgs("a-1").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := repo.Delete(context.Background(), "a-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
