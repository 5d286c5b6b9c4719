package repositories

import (
	"context"
	"errors"
	"fmt"

	"planandgo/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint.
var ErrDuplicate = errors.New("duplicate row")

// ErrTradeNotPending is returned when a status transition targets a trade
// that is no longer pending.
var ErrTradeNotPending = errors.New("trade is not pending")

// OwnershipConflictError reports which badges failed an ownership check.
type OwnershipConflictError struct {
	UserID   int64
	BadgeIDs []int64
}

func (e *OwnershipConflictError) Error() string {
	return fmt.Sprintf("user %d does not own badges %v", e.UserID, e.BadgeIDs)
}

// BadgeRepository manages the badge catalog and the ownership ledger.
type BadgeRepository interface {
	// Catalog
	Create(ctx context.Context, badge *models.Badge) error
	GetByID(ctx context.Context, id int64) (*models.Badge, error)
	List(ctx context.Context, activeOnly bool) ([]*models.Badge, error)
	ListActiveByCriteriaTypes(ctx context.Context, criteriaTypes []string) ([]*models.Badge, error)

	// Ledger. Award is the idempotent insert-if-absent primitive: the ledger's
	// (user_id, badge_id) uniqueness constraint arbitrates concurrent awards
	// and the losing writer sees awarded=false with a nil error.
	Award(ctx context.Context, userID, badgeID int64) (awarded bool, err error)
	ListUserBadges(ctx context.Context, userID int64) ([]*models.UserBadge, error)
	GetUserBadge(ctx context.Context, userID, badgeID int64) (*models.UserBadge, error)
	OwnedBadgeIDs(ctx context.Context, userID int64, badgeIDs []int64) ([]int64, error)
}

// ActivityRepository manages the append-only activity log.
type ActivityRepository interface {
	Create(ctx context.Context, activity *models.Activity) error
	CountByUserAndType(ctx context.Context, userID int64, activityType models.ActivityType) (int64, error)
	ListByUser(ctx context.Context, userID int64, params models.PaginationParams) ([]*models.Activity, int64, error)
}

// TradeRepository manages trade offers and their atomic settlement.
type TradeRepository interface {
	Create(ctx context.Context, trade *models.BadgeTrade) error
	GetByID(ctx context.Context, id int64) (*models.BadgeTrade, error)
	ListByUser(ctx context.Context, userID int64, params models.PaginationParams) ([]*models.BadgeTrade, int64, error)

	// Reject marks a pending trade rejected. Returns ErrTradeNotPending if
	// the trade already reached a terminal state.
	Reject(ctx context.Context, tradeID int64) error

	// Accept re-validates sender ownership and moves the ledger rows in a
	// single transaction. On an ownership conflict it rolls back and returns
	// *OwnershipConflictError, leaving the trade pending. Badges the receiver
	// already owns are left with the sender and reported in skipped.
	Accept(ctx context.Context, trade *models.BadgeTrade) (skipped []int64, err error)
}

// UserRepository reads account rows owned by the user subsystem.
type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

// Collection bundles all repositories for dependency injection.
type Collection struct {
	Badges     BadgeRepository
	Activities ActivityRepository
	Trades     TradeRepository
	Users      UserRepository
}
