package exportanalysis

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"exportready-backend/internal/shared/auth"
	"exportready-backend/internal/shared/server/middleware"
)

func setupRouter(t *testing.T) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("ENV", "test")
	t.Setenv("JWT_SECRET", "handler-test-secret")

	f := newFixture(t)
	router := gin.New()
	router.Use(middleware.RequestID())
	api := router.Group("/api/v1")
	api.Use(middleware.Auth())
	NewHandler(f.svc).RegisterRoutes(api)
	return router, f
}

func bearer(t *testing.T, subject, role string, businessID int64) string {
	t.Helper()
	token, err := auth.SignJWT(auth.Claims{
		Role:             role,
		BusinessID:       businessID,
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
	})
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	return "Bearer " + token
}

func doJSON(t *testing.T, router *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

type errorEnvelope struct {
	Error struct {
		Code    string              `json:"code"`
		Message string              `json:"message"`
		Details []map[string]string `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	return env
}

func TestCreateAnalysisEndpoint(t *testing.T) {
	router, _ := setupRouter(t)
	owner := bearer(t, "user-1", "umkm", 10)

	resp := doJSON(t, router, http.MethodPost, "/api/v1/export-analysis", owner, map[string]any{
		"product_id":          1,
		"target_country_code": "kr",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created struct {
		ID             string `json:"id"`
		ReadinessScore int    `json:"readiness_score"`
		StatusGrade    string `json:"status_grade"`
		CountryCode    string `json:"target_country_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.ID == "" || created.ReadinessScore != 100 || created.StatusGrade != "Ready" || created.CountryCode != "KR" {
		t.Fatalf("unexpected body %+v", created)
	}

	again := doJSON(t, router, http.MethodPost, "/api/v1/export-analysis", owner, map[string]any{
		"product_id":          1,
		"target_country_code": "KR",
	})
	if again.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", again.Code)
	}
	if env := decodeError(t, again); env.Error.Code != "conflict" {
		t.Fatalf("expected conflict code, got %q", env.Error.Code)
	}
}

func TestCreateAnalysisErrorMapping(t *testing.T) {
	router, _ := setupRouter(t)
	owner := bearer(t, "user-1", "umkm", 10)

	cases := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{name: "not enriched", body: map[string]any{"product_id": 2, "target_country_code": "US"}, status: http.StatusBadRequest, code: "validation_error"},
		{name: "other business", body: map[string]any{"product_id": 3, "target_country_code": "US"}, status: http.StatusForbidden, code: "forbidden"},
		{name: "missing product", body: map[string]any{"product_id": 404, "target_country_code": "US"}, status: http.StatusNotFound, code: "not_found"},
		{name: "bad country", body: map[string]any{"product_id": 1, "target_country_code": "U"}, status: http.StatusBadRequest, code: "validation_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := doJSON(t, router, http.MethodPost, "/api/v1/export-analysis", owner, tc.body)
			if resp.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, resp.Code, resp.Body.String())
			}
			if env := decodeError(t, resp); env.Error.Code != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, env.Error.Code)
			}
		})
	}
}

func TestValidationErrorCarriesField(t *testing.T) {
	router, _ := setupRouter(t)
	resp := doJSON(t, router, http.MethodPost, "/api/v1/export-analysis", bearer(t, "user-1", "umkm", 10), map[string]any{
		"product_id":          1,
		"target_country_code": "123",
	})
	env := decodeError(t, resp)
	if len(env.Error.Details) != 1 || env.Error.Details[0]["field"] != "target_country_code" {
		t.Fatalf("expected field detail, got %+v", env.Error.Details)
	}
}

func TestEndpointsRequireToken(t *testing.T) {
	router, _ := setupRouter(t)
	resp := doJSON(t, router, http.MethodGet, "/api/v1/export-analysis", "", nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestGetListDeleteEndpoints(t *testing.T) {
	router, f := setupRouter(t)
	owner := bearer(t, "user-1", "umkm", 10)
	a, err := f.svc.Create(context.Background(), f.owner, 1, "KR")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	get := doJSON(t, router, http.MethodGet, "/api/v1/export-analysis/"+a.ID, owner, nil)
	if get.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", get.Code)
	}
	var view struct {
		ID             string `json:"id"`
		ProductChanged *bool  `json:"product_changed"`
	}
	if err := json.NewDecoder(get.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.ID != a.ID || view.ProductChanged == nil || *view.ProductChanged {
		t.Fatalf("unexpected view %+v", view)
	}

	list := doJSON(t, router, http.MethodGet, "/api/v1/export-analysis?country_code=kr&score_min=90", owner, nil)
	if list.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", list.Code)
	}
	var page struct {
		Results []json.RawMessage `json:"results"`
		Count   int               `json:"count"`
	}
	if err := json.NewDecoder(list.Body).Decode(&page); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if page.Count != 1 || len(page.Results) != 1 {
		t.Fatalf("expected one result, got %+v", page)
	}

	bad := doJSON(t, router, http.MethodGet, "/api/v1/export-analysis?score_min=high", owner, nil)
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric score, got %d", bad.Code)
	}

	stranger := bearer(t, "user-2", "umkm", 20)
	if resp := doJSON(t, router, http.MethodDelete, "/api/v1/export-analysis/"+a.ID, stranger, nil); resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger delete, got %d", resp.Code)
	}
	if resp := doJSON(t, router, http.MethodDelete, "/api/v1/export-analysis/"+a.ID, owner, nil); resp.Code != http.StatusOK {
		t.Fatalf("expected 200 delete, got %d", resp.Code)
	}
	if resp := doJSON(t, router, http.MethodGet, "/api/v1/export-analysis/"+a.ID, owner, nil); resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.Code)
	}
}

func TestReanalyzeAndCompareEndpoints(t *testing.T) {
	router, f := setupRouter(t)
	owner := bearer(t, "user-1", "umkm", 10)
	a, err := f.svc.Create(context.Background(), f.owner, 1, "KR")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	re := doJSON(t, router, http.MethodPost, "/api/v1/export-analysis/"+a.ID+"/reanalyze", owner, nil)
	if re.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", re.Code, re.Body.String())
	}

	cmp := doJSON(t, router, http.MethodPost, "/api/v1/export-analysis/compare", owner, map[string]any{
		"product_id":    1,
		"country_codes": []string{"KR", "GB", "ZZ"},
	})
	if cmp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", cmp.Code, cmp.Body.String())
	}
	var body Comparison
	if err := json.NewDecoder(cmp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Results) != 3 || !body.Results[0].Reused || body.Results[2].Error == "" {
		t.Fatalf("unexpected comparison %+v", body.Results)
	}

	tooMany := doJSON(t, router, http.MethodPost, "/api/v1/export-analysis/compare", owner, map[string]any{
		"product_id":    1,
		"country_codes": []string{"US", "JP", "DE", "AU", "SG", "CN"},
	})
	if tooMany.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", tooMany.Code)
	}
}

func TestRegulationRecommendationEndpoints(t *testing.T) {
	router, f := setupRouter(t)
	owner := bearer(t, "user-1", "umkm", 10)
	a, err := f.svc.Create(context.Background(), f.owner, 1, "KR")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	first := doJSON(t, router, http.MethodGet, "/api/v1/export-analysis/"+a.ID+"/regulation-recommendations?language=en", owner, nil)
	if first.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", first.Code, first.Body.String())
	}
	var got RecommendationResult
	if err := json.NewDecoder(first.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.FromCache || got.Language != "en" {
		t.Fatalf("unexpected first result %+v", got)
	}

	second := doJSON(t, router, http.MethodPost, "/api/v1/export-analysis/regulation-recommendations", owner, map[string]any{
		"product_id":   1,
		"country_code": "KR",
		"language":     "en",
	})
	if second.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", second.Code)
	}
	if err := json.NewDecoder(second.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.FromCache {
		t.Fatalf("expected cached result")
	}
	if calls := f.analyzer.regulationCalls.Load(); calls != 1 {
		t.Fatalf("expected one analyzer call, got %d", calls)
	}

	bad := doJSON(t, router, http.MethodGet, "/api/v1/export-analysis/"+a.ID+"/regulation-recommendations?language=fr", owner, nil)
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unsupported language, got %d", bad.Code)
	}
}
