// file: internal/services/trade_service.go
package services

import (
	"context"
	"errors"
	"fmt"

	"planandgo/internal/cache"
	"planandgo/internal/events"
	"planandgo/internal/models"
	"planandgo/internal/repositories"
	"planandgo/internal/validation"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"
)

// tradeService implements TradeService: the propose/accept/reject state
// machine over the badge ledger.
type tradeService struct {
	trades   repositories.TradeRepository
	badges   repositories.BadgeRepository
	users    repositories.UserRepository
	eventBus events.EventBus
	cache    cache.Cache
	logger   *zap.Logger
}

// NewTradeService creates a new trade service.
func NewTradeService(
	trades repositories.TradeRepository,
	badges repositories.BadgeRepository,
	users repositories.UserRepository,
	eventBus events.EventBus,
	c cache.Cache,
	logger *zap.Logger,
) TradeService {
	return &tradeService{
		trades:   trades,
		badges:   badges,
		users:    users,
		eventBus: eventBus,
		cache:    c,
		logger:   logger,
	}
}

// ProposeTrade validates ownership and creates a pending offer. No ledger
// mutation happens here; ownership is validated again at acceptance.
func (s *tradeService) ProposeTrade(ctx context.Context, req *ProposeTradeRequest) (*models.BadgeTrade, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, NewValidationError(err.Error(), nil)
	}
	if req.SenderID == req.ReceiverID {
		return nil, NewValidationError("cannot trade with yourself", map[string]any{
			"sender_id":   req.SenderID,
			"receiver_id": req.ReceiverID,
		})
	}
	badgeIDs := dedupeIDs(req.BadgeIDs)

	if _, err := s.users.GetByID(ctx, req.ReceiverID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, NewValidationError(fmt.Sprintf("receiver %d not found", req.ReceiverID), nil)
		}
		return nil, NewInternalError("failed to look up receiver", err)
	}

	owned, err := s.badges.OwnedBadgeIDs(ctx, req.SenderID, badgeIDs)
	if err != nil {
		return nil, NewInternalError("failed to validate badge ownership", err)
	}
	if missing := missingBadgeIDs(badgeIDs, owned); len(missing) > 0 {
		return nil, NewValidationError("you do not own all selected badges", map[string]any{
			"unowned_badge_ids": missing,
		})
	}

	reference, err := uuid.NewV4()
	if err != nil {
		return nil, NewInternalError("failed to generate trade reference", err)
	}

	trade := &models.BadgeTrade{
		Reference:  reference.String(),
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Status:     models.TradeStatusPending,
		Message:    req.Message,
		BadgeIDs:   badgeIDs,
	}
	if err := s.trades.Create(ctx, trade); err != nil {
		return nil, NewInternalError("failed to create trade", err)
	}

	s.publishTradeEvent(ctx, events.EventTradeProposed, trade)
	return trade, nil
}

// GetTrade retrieves a trade. Only its sender or receiver may view it.
func (s *tradeService) GetTrade(ctx context.Context, tradeID, actorID int64) (*models.BadgeTrade, error) {
	trade, err := s.trades.GetByID(ctx, tradeID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, NewNotFoundError(fmt.Sprintf("trade %d not found", tradeID))
		}
		return nil, NewInternalError("failed to get trade", err)
	}
	if trade.SenderID != actorID && trade.ReceiverID != actorID {
		return nil, NewAuthorizationError("you are not a party to this trade")
	}
	return trade, nil
}

// ListTrades returns a page of trades the user participates in.
func (s *tradeService) ListTrades(ctx context.Context, userID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.BadgeTrade], error) {
	trades, total, err := s.trades.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, NewInternalError("failed to list trades", err)
	}
	return &models.PaginatedResponse[*models.BadgeTrade]{
		Data:       trades,
		Pagination: models.NewPaginationMeta(params, total),
	}, nil
}

// DecideTrade applies the receiver's accept or reject decision. Acceptance
// re-validates sender ownership inside the settlement transaction; a conflict
// there leaves the offer pending and is reported, never retried here.
func (s *tradeService) DecideTrade(ctx context.Context, req *DecideTradeRequest) (*models.BadgeTrade, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, NewValidationError(err.Error(), nil)
	}

	trade, err := s.trades.GetByID(ctx, req.TradeID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, NewNotFoundError(fmt.Sprintf("trade %d not found", req.TradeID))
		}
		return nil, NewInternalError("failed to get trade", err)
	}

	if trade.ReceiverID != req.ActorID {
		return nil, NewAuthorizationError("only the trade receiver can decide on it")
	}
	if trade.Status.IsTerminal() {
		return nil, NewConflictError(
			fmt.Sprintf("trade is already %s", trade.Status),
			CodeTradeNotPending,
			map[string]any{"status": trade.Status},
		)
	}

	switch req.Decision {
	case DecisionReject:
		return s.reject(ctx, trade)
	case DecisionAccept:
		return s.accept(ctx, trade)
	default:
		return nil, NewValidationError(fmt.Sprintf("unknown decision %q", req.Decision), nil)
	}
}

func (s *tradeService) reject(ctx context.Context, trade *models.BadgeTrade) (*models.BadgeTrade, error) {
	if err := s.trades.Reject(ctx, trade.ID); err != nil {
		if errors.Is(err, repositories.ErrTradeNotPending) {
			return nil, NewConflictError("trade is no longer pending", CodeTradeNotPending, nil)
		}
		return nil, NewInternalError("failed to reject trade", err)
	}
	trade.Status = models.TradeStatusRejected

	s.publishTradeEvent(ctx, events.EventTradeRejected, trade)
	s.logger.Info("Trade rejected",
		zap.Int64("trade_id", trade.ID),
		zap.Int64("receiver_id", trade.ReceiverID),
	)
	return trade, nil
}

func (s *tradeService) accept(ctx context.Context, trade *models.BadgeTrade) (*models.BadgeTrade, error) {
	skipped, err := s.trades.Accept(ctx, trade)
	if err != nil {
		var conflict *repositories.OwnershipConflictError
		if errors.As(err, &conflict) {
			// Double-spend guard: the sender no longer owns these badges, so
			// the whole acceptance fails and the offer stays pending.
			return nil, NewConflictError(
				"sender no longer owns all offered badges",
				CodeOwnershipConflict,
				map[string]any{"unowned_badge_ids": conflict.BadgeIDs},
			)
		}
		if errors.Is(err, repositories.ErrTradeNotPending) {
			return nil, NewConflictError("trade is no longer pending", CodeTradeNotPending, nil)
		}
		return nil, NewInternalError("failed to accept trade", err)
	}
	trade.Status = models.TradeStatusAccepted

	if len(skipped) > 0 {
		s.logger.Warn("Trade badges skipped, receiver already owned them",
			zap.Int64("trade_id", trade.ID),
			zap.Int64s("badge_ids", skipped),
		)
	}

	s.invalidateUserBadges(ctx, trade.SenderID, trade.ReceiverID)
	s.publishTradeEvent(ctx, events.EventTradeAccepted, trade)
	return trade, nil
}

// ===============================
// HELPERS
// ===============================

func (s *tradeService) publishTradeEvent(ctx context.Context, eventType string, trade *models.BadgeTrade) {
	event := events.NewTradeEvent(eventType, trade.ID, trade.SenderID, trade.ReceiverID, trade.BadgeIDs)
	if err := s.eventBus.PublishAsync(ctx, event); err != nil {
		s.logger.Warn("Failed to publish trade event",
			zap.String("event_type", eventType),
			zap.Int64("trade_id", trade.ID),
			zap.Error(err),
		)
	}
}

func (s *tradeService) invalidateUserBadges(ctx context.Context, userIDs ...int64) {
	for _, userID := range userIDs {
		key := fmt.Sprintf("%s%d", userBadgesCachePrefix, userID)
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("Failed to invalidate user badge cache",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
		}
	}
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	deduped := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		deduped = append(deduped, id)
	}
	return deduped
}

func missingBadgeIDs(want, have []int64) []int64 {
	haveSet := make(map[int64]struct{}, len(have))
	for _, id := range have {
		haveSet[id] = struct{}{}
	}
	var missing []int64
	for _, id := range want {
		if _, ok := haveSet[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}
