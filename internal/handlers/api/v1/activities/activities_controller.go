// file: internal/handlers/api/v1/activities/activities_controller.go
package activities

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"planandgo/internal/middleware"
	"planandgo/internal/models"
	"planandgo/internal/response"
	"planandgo/internal/services"

	"go.uber.org/zap"
)

// ActivityController handles activity API endpoints. This is the boundary the
// rest of the product calls to push domain events into the badge engine.
type ActivityController struct {
	serviceCollection *services.ServiceCollection
	logger            *zap.Logger
	responseBuilder   *response.Builder
}

// NewActivityController creates a new activity controller
func NewActivityController(
	serviceCollection *services.ServiceCollection,
	logger *zap.Logger,
	responseBuilder *response.Builder,
) *ActivityController {
	return &ActivityController{
		serviceCollection: serviceCollection,
		logger:            logger,
		responseBuilder:   responseBuilder,
	}
}

// RecordActivity handles POST /api/v1/activities
func (c *ActivityController) RecordActivity(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())
	if authCtx == nil {
		c.responseBuilder.WriteUnauthorized(w, r, "Authentication required")
		return
	}

	var req services.RecordActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.logger.Warn("Failed to decode record activity request", zap.Error(err))
		c.responseBuilder.WriteBadRequest(w, r, "invalid request body")
		return
	}
	req.UserID = authCtx.UserID
	// Synthetic can only be set internally, never through the API
	req.Synthetic = false
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		req.IPAddress = &host
	}

	activity, err := c.serviceCollection.ActivityService.RecordActivity(r.Context(), &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteCreated(w, r, activity)
}

// ListActivities handles GET /api/v1/activities
func (c *ActivityController) ListActivities(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())
	if authCtx == nil {
		c.responseBuilder.WriteUnauthorized(w, r, "Authentication required")
		return
	}

	params := models.PaginationParams{Limit: 20}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit <= 100 {
		params.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && offset >= 0 {
		params.Offset = offset
	}

	activities, err := c.serviceCollection.ActivityService.ListActivities(r.Context(), authCtx.UserID, params)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, activities)
}
