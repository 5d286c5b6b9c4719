// file: internal/services/interface.go
package services

import (
	"context"

	"planandgo/internal/models"
)

// ===============================
// CORE SERVICE INTERFACES
// ===============================

// BadgeService defines the badge catalog and the award coordinator.
type BadgeService interface {
	// Catalog
	CreateBadge(ctx context.Context, req *CreateBadgeRequest) (*models.Badge, error)
	GetBadge(ctx context.Context, id int64) (*models.Badge, error)
	ListBadges(ctx context.Context, activeOnly bool) ([]*models.Badge, error)

	// Ledger reads
	GetUserBadges(ctx context.Context, userID int64) ([]*models.UserBadge, error)

	// Award pipeline. EvaluateBadges is read-only: it returns every badge the
	// user currently qualifies for whose criteria type is relevant to the
	// trigger. AwardBadges evaluates and idempotently persists new awards,
	// returning only the badges that were newly written.
	EvaluateBadges(ctx context.Context, userID int64, trigger TriggerContext) ([]*models.Badge, error)
	AwardBadges(ctx context.Context, userID int64, trigger TriggerContext) ([]*models.Badge, error)
}

// TradeService defines the trade offer state machine.
type TradeService interface {
	ProposeTrade(ctx context.Context, req *ProposeTradeRequest) (*models.BadgeTrade, error)
	GetTrade(ctx context.Context, tradeID, actorID int64) (*models.BadgeTrade, error)
	ListTrades(ctx context.Context, userID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.BadgeTrade], error)
	DecideTrade(ctx context.Context, req *DecideTradeRequest) (*models.BadgeTrade, error)
}

// ActivityService records domain activities and feeds the award pipeline.
type ActivityService interface {
	RecordActivity(ctx context.Context, req *RecordActivityRequest) (*models.Activity, error)
	ListActivities(ctx context.Context, userID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Activity], error)
}

// ===============================
// REQUEST TYPES
// ===============================

// CreateBadgeRequest creates a badge definition (admin only).
type CreateBadgeRequest struct {
	Name        string               `json:"name" validate:"required,min=2,max=100"`
	Description string               `json:"description" validate:"max=2000"`
	Icon        string               `json:"icon" validate:"max=255"`
	Criteria    models.BadgeCriteria `json:"criteria"`
}

// ProposeTradeRequest proposes a badge trade.
type ProposeTradeRequest struct {
	SenderID   int64   `json:"-" validate:"required,gt=0"`
	ReceiverID int64   `json:"receiver_id" validate:"required,gt=0"`
	BadgeIDs   []int64 `json:"badge_ids" validate:"required,min=1,dive,gt=0"`
	Message    string  `json:"message" validate:"max=1000"`
}

// TradeDecision is the receiver's verdict on a pending trade.
type TradeDecision string

const (
	DecisionAccept TradeDecision = "accept"
	DecisionReject TradeDecision = "reject"
)

// DecideTradeRequest accepts or rejects a pending trade.
type DecideTradeRequest struct {
	TradeID  int64         `json:"-" validate:"required,gt=0"`
	ActorID  int64         `json:"-" validate:"required,gt=0"`
	Decision TradeDecision `json:"decision" validate:"required,oneof=accept reject"`
}

// RecordActivityRequest appends a user activity. Synthetic marks activities
// recorded by the award pipeline itself; they never re-trigger evaluation.
type RecordActivityRequest struct {
	UserID    int64               `json:"-" validate:"required,gt=0"`
	Type      models.ActivityType `json:"activity_type" validate:"required"`
	Metadata  map[string]any      `json:"metadata,omitempty"`
	IPAddress *string             `json:"-"`
	Synthetic bool                `json:"-"`
}
