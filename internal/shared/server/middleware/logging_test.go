package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"exportready-backend/internal/shared/telemetry"
)

func TestLoggingIncludesRequiredFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	telemetry.SetOutput(&buf)
	defer telemetry.SetOutput(nil)

	router := gin.New()
	router.Use(RequestID(), func(c *gin.Context) {
		c.Set(userIDKey, "user-1")
		c.Set(businessIDKey, int64(3))
		c.Next()
	}, Logging())
	router.POST("/test", func(c *gin.Context) {
		c.Set("analysisId", "analysis-1")
		c.Set("countryCode", "JP")
		c.Set("statusTransition", "created->scored")
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	req := httptest.NewRequest(http.MethodPost, "/test", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	last := lines[len(lines)-1]
	var payload map[string]any
	if err := json.Unmarshal([]byte(last), &payload); err != nil {
		t.Fatalf("decode log json: %v", err)
	}

	required := []string{"request_id", "user_id", "business_id", "analysis_id", "country_code", "duration_ms", "status", "status_transition"}
	for _, key := range required {
		if _, ok := payload[key]; !ok {
			t.Fatalf("missing log field: %s", key)
		}
	}
	if payload["user_id"] != "user-1" {
		t.Fatalf("unexpected user_id: %v", payload["user_id"])
	}
	if payload["business_id"] != float64(3) {
		t.Fatalf("unexpected business_id: %v", payload["business_id"])
	}
	if payload["country_code"] != "JP" {
		t.Fatalf("unexpected country_code: %v", payload["country_code"])
	}
	if payload["status_transition"] != "created->scored" {
		t.Fatalf("unexpected status_transition: %v", payload["status_transition"])
	}
	if payload["request_id"] != resp.Header().Get("X-Request-Id") {
		t.Fatalf("request_id should match response header")
	}
}
