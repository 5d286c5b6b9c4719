// file: internal/handlers/api/v1/badges/badges_controller.go
package badges

import (
	"encoding/json"
	"net/http"
	"strconv"

	"planandgo/internal/middleware"
	"planandgo/internal/response"
	"planandgo/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BadgeController handles badge API endpoints.
type BadgeController struct {
	serviceCollection *services.ServiceCollection
	logger            *zap.Logger
	responseBuilder   *response.Builder
}

// NewBadgeController creates a new badge controller
func NewBadgeController(
	serviceCollection *services.ServiceCollection,
	logger *zap.Logger,
	responseBuilder *response.Builder,
) *BadgeController {
	return &BadgeController{
		serviceCollection: serviceCollection,
		logger:            logger,
		responseBuilder:   responseBuilder,
	}
}

// ListBadges handles GET /api/v1/badges
func (c *BadgeController) ListBadges(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	badges, err := c.serviceCollection.BadgeService.ListBadges(r.Context(), activeOnly)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, badges)
}

// GetBadge handles GET /api/v1/badges/{id}
func (c *BadgeController) GetBadge(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		c.responseBuilder.WriteBadRequest(w, r, "invalid badge id")
		return
	}

	badge, err := c.serviceCollection.BadgeService.GetBadge(r.Context(), id)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, badge)
}

// CreateBadge handles POST /api/v1/badges (admin only, enforced by router)
func (c *BadgeController) CreateBadge(w http.ResponseWriter, r *http.Request) {
	var req services.CreateBadgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.logger.Warn("Failed to decode create badge request", zap.Error(err))
		c.responseBuilder.WriteBadRequest(w, r, "invalid request body")
		return
	}

	badge, err := c.serviceCollection.BadgeService.CreateBadge(r.Context(), &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteCreated(w, r, badge)
}

// GetMyBadges handles GET /api/v1/badges/mine
func (c *BadgeController) GetMyBadges(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())
	if authCtx == nil {
		c.responseBuilder.WriteUnauthorized(w, r, "Authentication required")
		return
	}

	userBadges, err := c.serviceCollection.BadgeService.GetUserBadges(r.Context(), authCtx.UserID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, userBadges)
}
