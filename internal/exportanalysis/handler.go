package exportanalysis

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"exportready-backend/internal/shared/server/middleware"
	"exportready-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the export analysis service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches export analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/export-analysis", h.listAnalyses)
	rg.POST("/export-analysis", h.createAnalysis)
	rg.POST("/export-analysis/compare", h.compare)
	rg.POST("/export-analysis/regulation-recommendations", h.regulationRecommendationsByProduct)
	rg.GET("/export-analysis/:id", h.getAnalysis)
	rg.DELETE("/export-analysis/:id", h.deleteAnalysis)
	rg.POST("/export-analysis/:id/reanalyze", h.reanalyze)
	rg.GET("/export-analysis/:id/regulation-recommendations", h.regulationRecommendations)
}

type createRequest struct {
	ProductID         int64  `json:"product_id"`
	TargetCountryCode string `json:"target_country_code"`
}

type compareRequest struct {
	ProductID    int64    `json:"product_id"`
	CountryCodes []string `json:"country_codes"`
}

type recommendationBody struct {
	ProductID   int64  `json:"product_id"`
	CountryCode string `json:"country_code"`
	Language    string `json:"language"`
}

func callerFrom(c *gin.Context) Caller {
	return Caller{
		UserID:     middleware.UserIDFromContext(c),
		BusinessID: middleware.BusinessIDFromContext(c),
		Role:       middleware.RoleFromContext(c),
	}
}

func (h *Handler) createAnalysis(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	c.Set("countryCode", strings.ToUpper(strings.TrimSpace(req.TargetCountryCode)))

	a, err := h.Svc.Create(requestContext(c), callerFrom(c), req.ProductID, req.TargetCountryCode)
	if err != nil {
		writeError(c, err, "failed to create analysis")
		return
	}
	c.Set("analysisId", a.ID)
	respond.JSON(c, http.StatusCreated, a)
}

func (h *Handler) getAnalysis(c *gin.Context) {
	id := c.Param("id")
	c.Set("analysisId", id)
	view, err := h.Svc.Get(requestContext(c), callerFrom(c), id)
	if err != nil {
		writeError(c, err, "failed to fetch analysis")
		return
	}
	respond.OK(c, view)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	filter := ListFilter{
		CountryCode: c.Query("country_code"),
		Search:      c.Query("search"),
	}
	var err error
	if filter.ScoreMin, err = optionalInt(c, "score_min"); err != nil {
		return
	}
	if filter.ScoreMax, err = optionalInt(c, "score_max"); err != nil {
		return
	}
	if v := c.Query("page"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Page = parsed
		}
	}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			filter.Limit = parsed
		}
	}

	result, err := h.Svc.List(requestContext(c), callerFrom(c), filter)
	if err != nil {
		writeError(c, err, "failed to list analyses")
		return
	}
	respond.OK(c, result)
}

func optionalInt(c *gin.Context, key string) (*int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", key+" must be an integer", []map[string]string{
			{"field": key, "issue": "invalid"},
		})
		return nil, err
	}
	return &v, nil
}

func (h *Handler) deleteAnalysis(c *gin.Context) {
	id := c.Param("id")
	c.Set("analysisId", id)
	if err := h.Svc.Delete(requestContext(c), callerFrom(c), id); err != nil {
		writeError(c, err, "failed to delete analysis")
		return
	}
	respond.OK(c, gin.H{"deleted": true, "id": id})
}

func (h *Handler) reanalyze(c *gin.Context) {
	id := c.Param("id")
	c.Set("analysisId", id)
	a, err := h.Svc.Reanalyze(requestContext(c), callerFrom(c), id)
	if err != nil {
		writeError(c, err, "failed to re-analyze")
		return
	}
	respond.OK(c, a)
}

func (h *Handler) compare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	result, err := h.Svc.Compare(requestContext(c), callerFrom(c), req.ProductID, req.CountryCodes)
	if err != nil {
		writeError(c, err, "failed to compare countries")
		return
	}
	respond.OK(c, result)
}

func (h *Handler) regulationRecommendations(c *gin.Context) {
	id := c.Param("id")
	c.Set("analysisId", id)
	h.recommend(c, RecommendationRequest{AnalysisID: id, Language: c.Query("language")})
}

func (h *Handler) regulationRecommendationsByProduct(c *gin.Context) {
	var body recommendationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	h.recommend(c, RecommendationRequest{
		ProductID:   body.ProductID,
		CountryCode: body.CountryCode,
		Language:    body.Language,
	})
}

func (h *Handler) recommend(c *gin.Context, req RecommendationRequest) {
	result, err := h.Svc.RegulationRecommendations(requestContext(c), callerFrom(c), req)
	if err != nil {
		writeError(c, err, "failed to generate recommendations")
		return
	}
	c.Set("analysisId", result.AnalysisID)
	c.Set("countryCode", result.CountryCode)
	respond.OK(c, result)
}

func writeError(c *gin.Context, err error, fallback string) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		respond.Error(c, http.StatusBadRequest, "validation_error", ve.Error(), []map[string]string{
			{"field": ve.Field, "issue": ve.Issue},
		})
	case errors.Is(err, ErrForbidden):
		respond.Error(c, http.StatusForbidden, "forbidden", "you do not have access to this resource", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, ErrConflict):
		respond.Error(c, http.StatusConflict, "conflict", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", fallback, nil)
	}
}
