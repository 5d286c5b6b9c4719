// file: internal/services/badge_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"planandgo/internal/cache"
	"planandgo/internal/events"
	"planandgo/internal/models"
	"planandgo/internal/repositories"
	"planandgo/internal/validation"

	"go.uber.org/zap"
)

const (
	badgeCatalogCacheKey  = "badges:catalog"
	userBadgesCachePrefix = "badges:user:"
	badgeCacheTTL         = 5 * time.Minute
)

// badgeService implements BadgeService. It is the award coordinator: it
// selects candidate badges for a trigger, runs them through the strategy
// resolver, and idempotently persists new awards.
type badgeService struct {
	badges   repositories.BadgeRepository
	resolver *StrategyResolver
	eventBus events.EventBus
	cache    cache.Cache
	logger   *zap.Logger
}

// NewBadgeService creates a new badge service. The resolver is injected so
// tests can substitute strategies.
func NewBadgeService(
	badges repositories.BadgeRepository,
	resolver *StrategyResolver,
	eventBus events.EventBus,
	c cache.Cache,
	logger *zap.Logger,
) BadgeService {
	return &badgeService{
		badges:   badges,
		resolver: resolver,
		eventBus: eventBus,
		cache:    c,
		logger:   logger,
	}
}

// ===============================
// CATALOG
// ===============================

// CreateBadge creates a new badge definition.
func (s *badgeService) CreateBadge(ctx context.Context, req *CreateBadgeRequest) (*models.Badge, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, NewValidationError(err.Error(), nil)
	}
	if req.Criteria.Type == "" {
		return nil, NewValidationError("criteria type is required", nil)
	}
	if _, ok := s.resolver.Resolve(req.Criteria.Type); !ok {
		// Unknown types are allowed so badges can be defined ahead of their
		// evaluator, but worth surfacing in the logs.
		s.logger.Warn("Badge created with unregistered criteria type",
			zap.String("name", req.Name),
			zap.String("criteria_type", req.Criteria.Type),
		)
	}

	badge := &models.Badge{
		Name:        req.Name,
		Description: req.Description,
		Icon:        req.Icon,
		Criteria:    req.Criteria,
		IsActive:    true,
	}
	if err := s.badges.Create(ctx, badge); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, NewConflictError(
				fmt.Sprintf("badge %q already exists", req.Name),
				CodeDuplicateBadge, nil,
			)
		}
		return nil, NewInternalError("failed to create badge", err)
	}

	s.invalidateCatalog(ctx)
	return badge, nil
}

// GetBadge retrieves a badge by ID.
func (s *badgeService) GetBadge(ctx context.Context, id int64) (*models.Badge, error) {
	badge, err := s.badges.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, NewNotFoundError(fmt.Sprintf("badge %d not found", id))
		}
		return nil, NewInternalError("failed to get badge", err)
	}
	return badge, nil
}

// ListBadges returns the badge catalog, cached.
func (s *badgeService) ListBadges(ctx context.Context, activeOnly bool) ([]*models.Badge, error) {
	key := badgeCatalogCacheKey
	if activeOnly {
		key += ":active"
	}
	var cached []*models.Badge
	if cache.GetJSON(ctx, s.cache, key, &cached) {
		return cached, nil
	}

	badges, err := s.badges.List(ctx, activeOnly)
	if err != nil {
		return nil, NewInternalError("failed to list badges", err)
	}
	if err := s.cache.Set(ctx, key, badges, badgeCacheTTL); err != nil {
		s.logger.Warn("Failed to cache badge catalog", zap.Error(err))
	}
	return badges, nil
}

// GetUserBadges returns a user's earned badges with metadata, cached.
func (s *badgeService) GetUserBadges(ctx context.Context, userID int64) ([]*models.UserBadge, error) {
	key := fmt.Sprintf("%s%d", userBadgesCachePrefix, userID)
	var cached []*models.UserBadge
	if cache.GetJSON(ctx, s.cache, key, &cached) {
		return cached, nil
	}

	userBadges, err := s.badges.ListUserBadges(ctx, userID)
	if err != nil {
		return nil, NewInternalError("failed to list user badges", err)
	}
	if err := s.cache.Set(ctx, key, userBadges, badgeCacheTTL); err != nil {
		s.logger.Warn("Failed to cache user badges", zap.Error(err))
	}
	return userBadges, nil
}

// ===============================
// AWARD PIPELINE
// ===============================

// EvaluateBadges returns all badges the user currently qualifies for whose
// criteria type is relevant to the trigger. Read-only: the ledger is never
// touched.
func (s *badgeService) EvaluateBadges(ctx context.Context, userID int64, trigger TriggerContext) ([]*models.Badge, error) {
	criteriaTypes := s.resolver.TypesFor(trigger.Class)
	if len(criteriaTypes) == 0 {
		return nil, nil
	}

	candidates, err := s.badges.ListActiveByCriteriaTypes(ctx, criteriaTypes)
	if err != nil {
		return nil, NewInternalError("failed to load candidate badges", err)
	}

	var eligible []*models.Badge
	for _, badge := range candidates {
		strategy, ok := s.resolver.Resolve(badge.Criteria.Type)
		if !ok {
			// Forward compatibility: a badge whose criteria type has no
			// registered strategy is skipped, not an error.
			s.logger.Debug("Skipping badge with unknown criteria type",
				zap.Int64("badge_id", badge.ID),
				zap.String("criteria_type", badge.Criteria.Type),
			)
			continue
		}

		ok, err := strategy.IsEligible(ctx, userID, badge.Criteria, trigger)
		if err != nil {
			// A misconfigured badge must not block the rest of the pass.
			s.logger.Error("Badge eligibility check failed",
				zap.Int64("badge_id", badge.ID),
				zap.Int64("user_id", userID),
				zap.String("criteria_type", badge.Criteria.Type),
				zap.Error(err),
			)
			continue
		}
		if ok {
			eligible = append(eligible, badge)
		}
	}
	return eligible, nil
}

// AwardBadges evaluates and persists newly earned badges. Awarding is
// idempotent: the ledger's uniqueness constraint arbitrates races, and an
// already-owned badge is a silent no-op. Returns the badges newly written.
func (s *badgeService) AwardBadges(ctx context.Context, userID int64, trigger TriggerContext) ([]*models.Badge, error) {
	eligible, err := s.EvaluateBadges(ctx, userID, trigger)
	if err != nil {
		return nil, err
	}

	var awarded []*models.Badge
	for _, badge := range eligible {
		inserted, err := s.badges.Award(ctx, userID, badge.ID)
		if err != nil {
			return awarded, NewInternalError("failed to award badge", err)
		}
		if !inserted {
			continue
		}

		awarded = append(awarded, badge)
		s.logger.Info("Badge awarded",
			zap.Int64("user_id", userID),
			zap.Int64("badge_id", badge.ID),
			zap.String("badge_name", badge.Name),
			zap.String("trigger", string(trigger.Class)),
		)

		// The awarded event is synthetic: it may fan out to notifications but
		// must never re-enter evaluation.
		if err := s.eventBus.PublishAsync(ctx, events.NewBadgeAwardedEvent(userID, badge.ID, badge.Name)); err != nil {
			s.logger.Warn("Failed to publish badge awarded event",
				zap.Int64("badge_id", badge.ID),
				zap.Error(err),
			)
		}
	}

	if len(awarded) > 0 {
		s.invalidateUserBadges(ctx, userID)
	}
	return awarded, nil
}

// ===============================
// EVENT SUBSCRIPTIONS
// ===============================

// RegisterAwardHandlers subscribes the award pipeline to the domain event
// feed. Synthetic events are ignored here; that check is what breaks the
// award -> event -> award feedback loop.
func RegisterAwardHandlers(bus events.EventBus, badges BadgeService, logger *zap.Logger) error {
	handle := func(ctx context.Context, event events.Event) error {
		if event.IsSynthetic() {
			return nil
		}
		userID := event.GetUserID()
		if userID == nil {
			return nil
		}

		trigger := TriggerContext{Class: TriggerLifecycle, EventType: event.GetEventType()}
		if activityEvent, ok := event.(*events.ActivityRecordedEvent); ok {
			trigger = TriggerContext{
				Class:        TriggerActivity,
				EventType:    event.GetEventType(),
				ActivityType: models.ActivityType(activityEvent.ActivityType),
			}
		}

		if _, err := badges.AwardBadges(ctx, *userID, trigger); err != nil {
			return fmt.Errorf("award pass for user %d: %w", *userID, err)
		}
		return nil
	}

	for _, eventType := range []string{
		events.EventActivityRecorded,
		events.EventUserCreated,
		events.EventProfileUpdated,
	} {
		handler := events.EventHandlerFunc{
			ID:   "badge-award:" + eventType,
			Func: handle,
		}
		if err := bus.Subscribe(eventType, handler); err != nil {
			return fmt.Errorf("failed to subscribe award handler to %s: %w", eventType, err)
		}
	}
	logger.Info("Badge award handlers registered")
	return nil
}

// ===============================
// CACHE INVALIDATION
// ===============================

func (s *badgeService) invalidateCatalog(ctx context.Context) {
	if err := s.cache.DeletePattern(ctx, badgeCatalogCacheKey+"*"); err != nil {
		s.logger.Warn("Failed to invalidate badge catalog cache", zap.Error(err))
	}
}

func (s *badgeService) invalidateUserBadges(ctx context.Context, userID int64) {
	key := fmt.Sprintf("%s%d", userBadgesCachePrefix, userID)
	if err := s.cache.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to invalidate user badge cache",
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}
}
