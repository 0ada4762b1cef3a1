package countries

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"exportready-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the countries service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches country routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/countries", h.listCountries)
	rg.GET("/countries/:code", h.getCountry)
}

func (h *Handler) listCountries(c *gin.Context) {
	list, err := h.Svc.List(c.Request.Context(), ListFilter{
		Region: strings.TrimSpace(c.Query("region")),
		Search: strings.TrimSpace(c.Query("search")),
	})
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list countries", nil)
		return
	}
	respond.OK(c, gin.H{"countries": list, "count": len(list)})
}

func (h *Handler) getCountry(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if len(code) != 2 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "country code must be 2 letters", []map[string]string{
			{"field": "code", "issue": "invalid"},
		})
		return
	}

	detail, err := h.Svc.Detail(c.Request.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "country not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch country", nil)
		}
		return
	}
	respond.OK(c, detail)
}
