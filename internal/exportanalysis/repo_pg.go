package exportanalysis

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"exportready-backend/internal/compliance"
	"exportready-backend/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectAnalysis = `
SELECT a.id, a.product_id, a.owner_user_id, a.business_id, a.product_name, a.country_code,
       COALESCE(c.country_name, ''), a.readiness_score, a.status_grade, a.compliance_issues,
       a.recommendations, a.product_snapshot, a.regulation_snapshot,
       a.regulation_recommendations_cache, a.analyzed_at, a.created_at
FROM export_analyses a
LEFT JOIN countries c ON c.country_code = a.country_code`

// Create inserts a new analysis. The unique (product_id, country_code)
// constraint decides concurrent creates; the loser gets ErrConflict.
func (r *PGRepo) Create(ctx context.Context, a ExportAnalysis) error {
	const query = `
INSERT INTO export_analyses (
	id, product_id, owner_user_id, business_id, product_name, country_code,
	readiness_score, status_grade, compliance_issues, recommendations,
	product_snapshot, regulation_snapshot, regulation_recommendations_cache, analyzed_at, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, '{}'::jsonb, $13, $14)`
	issues, snapshot, regulations, err := marshalResults(a)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		a.ID,
		a.ProductID,
		a.OwnerUserID,
		a.BusinessID,
		a.ProductName,
		a.CountryCode,
		a.ReadinessScore,
		string(a.StatusGrade),
		issues,
		a.Recommendations,
		snapshot,
		regulations,
		a.AnalyzedAt,
		a.CreatedAt,
	)
	if db.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (ExportAnalysis, error) {
	return r.getOne(ctx, selectAnalysis+` WHERE a.id = $1`, id)
}

func (r *PGRepo) GetByProductCountry(ctx context.Context, productID int64, countryCode string) (ExportAnalysis, error) {
	return r.getOne(ctx, selectAnalysis+` WHERE a.product_id = $1 AND a.country_code = $2`, productID, countryCode)
}

func (r *PGRepo) getOne(ctx context.Context, query string, args ...any) (ExportAnalysis, error) {
	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExportAnalysis{}, ErrNotFound
		}
		return ExportAnalysis{}, err
	}
	return a, nil
}

// List returns one page ordered by analyzed_at DESC plus the unpaged total.
func (r *PGRepo) List(ctx context.Context, q ListQuery) ([]ExportAnalysis, int, error) {
	where, args := listWhere(q)

	var total int
	countQuery := `SELECT COUNT(*) FROM export_analyses a LEFT JOIN countries c ON c.country_code = a.country_code` + where
	if err := r.DB.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := selectAnalysis + where + ` ORDER BY a.analyzed_at DESC, a.id`
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if q.Offset > 0 {
		args = append(args, q.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []ExportAnalysis{}
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func listWhere(q ListQuery) (string, []any) {
	var clauses []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if !q.All {
		var owner []string
		if q.BusinessID > 0 {
			owner = append(owner, "a.business_id = "+next(q.BusinessID))
		}
		if q.OwnerUserID != "" {
			owner = append(owner, "a.owner_user_id = "+next(q.OwnerUserID))
		}
		if len(owner) == 0 {
			owner = append(owner, "FALSE")
		}
		clauses = append(clauses, "("+strings.Join(owner, " OR ")+")")
	}
	if q.CountryCode != "" {
		clauses = append(clauses, "a.country_code = "+next(q.CountryCode))
	}
	if q.ScoreMin != nil {
		clauses = append(clauses, "a.readiness_score >= "+next(*q.ScoreMin))
	}
	if q.ScoreMax != nil {
		clauses = append(clauses, "a.readiness_score <= "+next(*q.ScoreMax))
	}
	if q.Search != "" {
		p := next("%" + q.Search + "%")
		clauses = append(clauses, "(a.product_name ILIKE "+p+" OR c.country_name ILIKE "+p+")")
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Replace writes re-analysis results only if analyzed_at still equals
// prevAnalyzedAt, and empties the recommendation cache.
func (r *PGRepo) Replace(ctx context.Context, a ExportAnalysis, prevAnalyzedAt time.Time) error {
	const query = `
UPDATE export_analyses
SET product_name = $2,
    readiness_score = $3,
    status_grade = $4,
    compliance_issues = $5,
    recommendations = $6,
    product_snapshot = $7,
    regulation_snapshot = $8,
    regulation_recommendations_cache = '{}'::jsonb,
    analyzed_at = $9
WHERE id = $1 AND analyzed_at = $10`
	issues, snapshot, regulations, err := marshalResults(a)
	if err != nil {
		return err
	}
	return db.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query,
			a.ID,
			a.ProductName,
			a.ReadinessScore,
			string(a.StatusGrade),
			issues,
			a.Recommendations,
			snapshot,
			regulations,
			a.AnalyzedAt,
			prevAnalyzedAt,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 1 {
			return nil
		}
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM export_analyses WHERE id = $1)`, a.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	})
}

func (r *PGRepo) Delete(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM export_analyses WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetRecommendationCache merges {language: payload} into the cache column of
// the analysis version identified by analyzedAt.
func (r *PGRepo) SetRecommendationCache(ctx context.Context, id string, analyzedAt time.Time, language string, payload json.RawMessage) error {
	entry, err := json.Marshal(map[string]json.RawMessage{language: payload})
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, `
UPDATE export_analyses
SET regulation_recommendations_cache = regulation_recommendations_cache || $2::jsonb
WHERE id = $1 AND analyzed_at = $3`, id, entry, analyzedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}
	var exists bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM export_analyses WHERE id = $1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (ExportAnalysis, error) {
	var a ExportAnalysis
	var grade string
	var issues []byte
	var snapshot []byte
	var regulations sql.NullString
	var cache []byte
	err := row.Scan(
		&a.ID,
		&a.ProductID,
		&a.OwnerUserID,
		&a.BusinessID,
		&a.ProductName,
		&a.CountryCode,
		&a.CountryName,
		&a.ReadinessScore,
		&grade,
		&issues,
		&a.Recommendations,
		&snapshot,
		&regulations,
		&cache,
		&a.AnalyzedAt,
		&a.CreatedAt,
	)
	if err != nil {
		return ExportAnalysis{}, err
	}
	a.CountryCode = strings.TrimSpace(a.CountryCode)
	a.StatusGrade = compliance.Grade(grade)
	a.ComplianceIssues = []compliance.Issue{}
	if len(issues) > 0 {
		if err := json.Unmarshal(issues, &a.ComplianceIssues); err != nil {
			return ExportAnalysis{}, err
		}
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &a.ProductSnapshot); err != nil {
			return ExportAnalysis{}, err
		}
	}
	if regulations.Valid && regulations.String != "" && regulations.String != "null" {
		var rs RegulationSnapshot
		if err := json.Unmarshal([]byte(regulations.String), &rs); err != nil {
			return ExportAnalysis{}, err
		}
		a.RegulationSnapshot = &rs
	}
	a.RecommendationsCache = map[string]json.RawMessage{}
	if len(cache) > 0 {
		if err := json.Unmarshal(cache, &a.RecommendationsCache); err != nil {
			return ExportAnalysis{}, err
		}
	}
	return a, nil
}

func marshalResults(a ExportAnalysis) (issues, snapshot []byte, regulations any, err error) {
	list := a.ComplianceIssues
	if list == nil {
		list = []compliance.Issue{}
	}
	if issues, err = json.Marshal(list); err != nil {
		return nil, nil, nil, err
	}
	if snapshot, err = json.Marshal(a.ProductSnapshot); err != nil {
		return nil, nil, nil, err
	}
	if a.RegulationSnapshot != nil {
		raw, err := json.Marshal(a.RegulationSnapshot)
		if err != nil {
			return nil, nil, nil, err
		}
		regulations = raw
	}
	return issues, snapshot, regulations, nil
}
