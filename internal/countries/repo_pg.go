package countries

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/lib/pq"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const countryColumns = `country_code, country_name, region, created_at, updated_at`

const regulationColumns = `id, country_code, rule_category, forbidden_keywords, required_specs, description_rule, created_at`

// GetCountry returns one country by code.
func (r *PGRepo) GetCountry(ctx context.Context, code string) (Country, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+countryColumns+` FROM countries WHERE country_code = $1`, normalizeCode(code))
	c, err := scanCountry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Country{}, ErrNotFound
		}
		return Country{}, err
	}
	return c, nil
}

// GetCountries returns the known countries among codes, keyed by code.
func (r *PGRepo) GetCountries(ctx context.Context, codes []string) (map[string]Country, error) {
	normalized := make([]string, 0, len(codes))
	for _, code := range codes {
		normalized = append(normalized, normalizeCode(code))
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+countryColumns+` FROM countries WHERE country_code = ANY($1)`, pq.Array(normalized))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Country, len(codes))
	for rows.Next() {
		c, err := scanCountry(rows)
		if err != nil {
			return nil, err
		}
		out[c.Code] = c
	}
	return out, rows.Err()
}

// ListCountries returns countries ordered by name.
func (r *PGRepo) ListCountries(ctx context.Context, filter ListFilter) ([]Country, error) {
	query := `SELECT ` + countryColumns + ` FROM countries WHERE 1=1`
	var args []any
	if region := strings.TrimSpace(filter.Region); region != "" {
		args = append(args, region)
		query += ` AND lower(region) = lower($1)`
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := len(args)
		query += ` AND (country_name ILIKE $` + strconv.Itoa(n) + ` OR country_code ILIKE $` + strconv.Itoa(n) + `)`
	}
	query += ` ORDER BY country_name`

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Country
	for rows.Next() {
		c, err := scanCountry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CountRegulations counts regulation rows per country.
func (r *PGRepo) CountRegulations(ctx context.Context, codes []string) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT country_code, COUNT(*)
FROM country_regulations
WHERE country_code = ANY($1)
GROUP BY country_code`, pq.Array(codes))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int, len(codes))
	for rows.Next() {
		var code string
		var n int
		if err := rows.Scan(&code, &n); err != nil {
			return nil, err
		}
		out[strings.TrimSpace(code)] = n
	}
	return out, rows.Err()
}

// RegulationsFor returns every regulation for a country and category.
func (r *PGRepo) RegulationsFor(ctx context.Context, code string, category RuleCategory) ([]Regulation, error) {
	return r.queryRegulations(ctx, `SELECT `+regulationColumns+`
FROM country_regulations
WHERE country_code = $1 AND rule_category = $2
ORDER BY id`, normalizeCode(code), string(category))
}

// RegulationsByCountry returns every regulation for a country.
func (r *PGRepo) RegulationsByCountry(ctx context.Context, code string) ([]Regulation, error) {
	return r.queryRegulations(ctx, `SELECT `+regulationColumns+`
FROM country_regulations
WHERE country_code = $1
ORDER BY rule_category, id`, normalizeCode(code))
}

// UpsertCountry inserts a country or refreshes its name and region.
func (r *PGRepo) UpsertCountry(ctx context.Context, c Country) error {
	_, err := r.DB.ExecContext(ctx, `
INSERT INTO countries (country_code, country_name, region)
VALUES ($1, $2, $3)
ON CONFLICT (country_code) DO UPDATE
SET country_name = EXCLUDED.country_name, region = EXCLUDED.region, updated_at = now()`,
		normalizeCode(c.Code), c.Name, c.Region)
	return err
}

// EnsureRegulation inserts the row unless one with the same country, category and description exists.
func (r *PGRepo) EnsureRegulation(ctx context.Context, reg Regulation) (bool, error) {
	if !reg.Category.Valid() {
		return false, ErrInvalidCategory
	}
	res, err := r.DB.ExecContext(ctx, `
INSERT INTO country_regulations (country_code, rule_category, forbidden_keywords, required_specs, description_rule)
SELECT $1, $2, $3, $4, $5
WHERE NOT EXISTS (
	SELECT 1 FROM country_regulations
	WHERE country_code = $1 AND rule_category = $2 AND description_rule = $5
)`,
		normalizeCode(reg.CountryCode), string(reg.Category), reg.ForbiddenKeywords, reg.RequiredSpecs, reg.Description)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PGRepo) queryRegulations(ctx context.Context, query string, args ...any) ([]Regulation, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Regulation{}
	for rows.Next() {
		var reg Regulation
		var category string
		if err := rows.Scan(&reg.ID, &reg.CountryCode, &category, &reg.ForbiddenKeywords, &reg.RequiredSpecs, &reg.Description, &reg.CreatedAt); err != nil {
			return nil, err
		}
		reg.CountryCode = strings.TrimSpace(reg.CountryCode)
		reg.Category = RuleCategory(category)
		out = append(out, reg)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCountry(row rowScanner) (Country, error) {
	var c Country
	if err := row.Scan(&c.Code, &c.Name, &c.Region, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return Country{}, err
	}
	c.Code = strings.TrimSpace(c.Code)
	return c, nil
}
