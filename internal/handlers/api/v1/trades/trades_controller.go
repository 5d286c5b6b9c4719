// file: internal/handlers/api/v1/trades/trades_controller.go
package trades

import (
	"encoding/json"
	"net/http"
	"strconv"

	"planandgo/internal/middleware"
	"planandgo/internal/models"
	"planandgo/internal/response"
	"planandgo/internal/services"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// TradeController handles trade API endpoints.
type TradeController struct {
	serviceCollection *services.ServiceCollection
	logger            *zap.Logger
	responseBuilder   *response.Builder
}

// NewTradeController creates a new trade controller
func NewTradeController(
	serviceCollection *services.ServiceCollection,
	logger *zap.Logger,
	responseBuilder *response.Builder,
) *TradeController {
	return &TradeController{
		serviceCollection: serviceCollection,
		logger:            logger,
		responseBuilder:   responseBuilder,
	}
}

// CreateTrade handles POST /api/v1/trades
func (c *TradeController) CreateTrade(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())
	if authCtx == nil {
		c.responseBuilder.WriteUnauthorized(w, r, "Authentication required")
		return
	}

	var req services.ProposeTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.logger.Warn("Failed to decode create trade request", zap.Error(err))
		c.responseBuilder.WriteBadRequest(w, r, "invalid request body")
		return
	}
	req.SenderID = authCtx.UserID

	trade, err := c.serviceCollection.TradeService.ProposeTrade(r.Context(), &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteCreated(w, r, trade)
}

// ListTrades handles GET /api/v1/trades
func (c *TradeController) ListTrades(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())
	if authCtx == nil {
		c.responseBuilder.WriteUnauthorized(w, r, "Authentication required")
		return
	}

	trades, err := c.serviceCollection.TradeService.ListTrades(r.Context(), authCtx.UserID, parsePagination(r))
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, trades)
}

// GetTrade handles GET /api/v1/trades/{id}
func (c *TradeController) GetTrade(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())
	if authCtx == nil {
		c.responseBuilder.WriteUnauthorized(w, r, "Authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		c.responseBuilder.WriteBadRequest(w, r, "invalid trade id")
		return
	}

	trade, err := c.serviceCollection.TradeService.GetTrade(r.Context(), id, authCtx.UserID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, trade)
}

// DecideTrade handles POST /api/v1/trades/{id}/decision
func (c *TradeController) DecideTrade(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r.Context())
	if authCtx == nil {
		c.responseBuilder.WriteUnauthorized(w, r, "Authentication required")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		c.responseBuilder.WriteBadRequest(w, r, "invalid trade id")
		return
	}

	var req services.DecideTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		c.logger.Warn("Failed to decode trade decision request", zap.Error(err))
		c.responseBuilder.WriteBadRequest(w, r, "invalid request body")
		return
	}
	req.TradeID = id
	req.ActorID = authCtx.UserID

	trade, err := c.serviceCollection.TradeService.DecideTrade(r.Context(), &req)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}
	c.responseBuilder.WriteSuccess(w, r, trade)
}

func parsePagination(r *http.Request) models.PaginationParams {
	params := models.PaginationParams{Limit: 20, Offset: 0}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 && limit <= 100 {
		params.Limit = limit
	}
	if offset, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && offset >= 0 {
		params.Offset = offset
	}
	return params
}
