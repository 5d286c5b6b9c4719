// file: internal/services/badge_service_test.go
package services

import (
	"context"
	"sync"
	"testing"

	"planandgo/internal/cache"
	"planandgo/internal/events"
	"planandgo/internal/models"
	"planandgo/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeBadgeRepository is an in-memory badge catalog and ownership ledger.
type fakeBadgeRepository struct {
	mu     sync.Mutex
	badges []*models.Badge
	owned  map[int64]map[int64]bool // userID -> badgeID -> owned

	// returnAllCandidates disables criteria-type filtering so tests can feed
	// the evaluator badges it would normally never see.
	returnAllCandidates bool
}

func newFakeBadgeRepository() *fakeBadgeRepository {
	return &fakeBadgeRepository{owned: make(map[int64]map[int64]bool)}
}

func (f *fakeBadgeRepository) Create(ctx context.Context, badge *models.Badge) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.badges {
		if existing.Name == badge.Name {
			return repositories.ErrDuplicate
		}
	}
	badge.ID = int64(len(f.badges) + 1)
	f.badges = append(f.badges, badge)
	return nil
}

func (f *fakeBadgeRepository) GetByID(ctx context.Context, id int64) (*models.Badge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, badge := range f.badges {
		if badge.ID == id {
			return badge, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeBadgeRepository) List(ctx context.Context, activeOnly bool) ([]*models.Badge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Badge
	for _, badge := range f.badges {
		if activeOnly && !badge.IsActive {
			continue
		}
		out = append(out, badge)
	}
	return out, nil
}

func (f *fakeBadgeRepository) ListActiveByCriteriaTypes(ctx context.Context, criteriaTypes []string) ([]*models.Badge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	typeSet := make(map[string]bool, len(criteriaTypes))
	for _, t := range criteriaTypes {
		typeSet[t] = true
	}
	var out []*models.Badge
	for _, badge := range f.badges {
		if !badge.IsActive {
			continue
		}
		if f.returnAllCandidates || typeSet[badge.Criteria.Type] {
			out = append(out, badge)
		}
	}
	return out, nil
}

func (f *fakeBadgeRepository) Award(ctx context.Context, userID, badgeID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.owned[userID] == nil {
		f.owned[userID] = make(map[int64]bool)
	}
	if f.owned[userID][badgeID] {
		return false, nil
	}
	f.owned[userID][badgeID] = true
	return true, nil
}

func (f *fakeBadgeRepository) ListUserBadges(ctx context.Context, userID int64) ([]*models.UserBadge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.UserBadge
	for badgeID := range f.owned[userID] {
		out = append(out, &models.UserBadge{UserID: userID, BadgeID: badgeID})
	}
	return out, nil
}

func (f *fakeBadgeRepository) GetUserBadge(ctx context.Context, userID, badgeID int64) (*models.UserBadge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.owned[userID][badgeID] {
		return &models.UserBadge{UserID: userID, BadgeID: badgeID}, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeBadgeRepository) OwnedBadgeIDs(ctx context.Context, userID int64, badgeIDs []int64) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []int64
	for _, id := range badgeIDs {
		if f.owned[userID][id] {
			out = append(out, id)
		}
	}
	return out, nil
}

var _ repositories.BadgeRepository = (*fakeBadgeRepository)(nil)

func newTestBadgeService(t *testing.T, badges *fakeBadgeRepository, activities *fakeActivityRepository) BadgeService {
	t.Helper()
	logger := zap.NewNop()
	resolver := NewDefaultStrategyResolver(activities, logger)
	bus := events.NewInMemoryEventBus(events.DefaultEventBusConfig(), logger)
	return NewBadgeService(badges, resolver, bus, cache.NewMemoryCache(logger), logger)
}

func countBadge(id int64, name string, threshold int) *models.Badge {
	return &models.Badge{
		ID:   id,
		Name: name,
		Criteria: models.BadgeCriteria{
			Type:   CriteriaActivityCount,
			Params: map[string]any{"activity_type": "travel", "threshold": float64(threshold)},
		},
		IsActive: true,
	}
}

func TestAwardBadges_AwardsEligibleOnce(t *testing.T) {
	badges := newFakeBadgeRepository()
	badges.badges = []*models.Badge{countBadge(1, "First Trip", 1), countBadge(2, "Globetrotter", 5)}
	activities := &fakeActivityRepository{counts: map[string]int64{
		countKey(42, models.ActivityTravel): 1,
	}}
	service := newTestBadgeService(t, badges, activities)

	awarded, err := service.AwardBadges(context.Background(), 42, activityTrigger(models.ActivityTravel))
	require.NoError(t, err)
	require.Len(t, awarded, 1)
	assert.Equal(t, "First Trip", awarded[0].Name)

	// Re-running the same pass must be a silent no-op
	awarded, err = service.AwardBadges(context.Background(), 42, activityTrigger(models.ActivityTravel))
	require.NoError(t, err)
	assert.Empty(t, awarded, "an already-owned badge must never be awarded twice")
}

func TestAwardBadges_ThresholdCrossing(t *testing.T) {
	badges := newFakeBadgeRepository()
	badges.badges = []*models.Badge{countBadge(1, "Globetrotter", 5)}
	activities := &fakeActivityRepository{counts: map[string]int64{
		countKey(42, models.ActivityTravel): 4,
	}}
	service := newTestBadgeService(t, badges, activities)

	awarded, err := service.AwardBadges(context.Background(), 42, activityTrigger(models.ActivityTravel))
	require.NoError(t, err)
	assert.Empty(t, awarded, "below threshold")

	activities.counts[countKey(42, models.ActivityTravel)] = 5
	awarded, err = service.AwardBadges(context.Background(), 42, activityTrigger(models.ActivityTravel))
	require.NoError(t, err)
	require.Len(t, awarded, 1)
	assert.Equal(t, int64(1), awarded[0].ID)
}

func TestEvaluateBadges_SkipsUnknownCriteriaType(t *testing.T) {
	badges := newFakeBadgeRepository()
	badges.returnAllCandidates = true
	badges.badges = []*models.Badge{
		{ID: 1, Name: "Mystery", Criteria: models.BadgeCriteria{Type: "moon_phase"}, IsActive: true},
		countBadge(2, "First Trip", 1),
	}
	activities := &fakeActivityRepository{counts: map[string]int64{
		countKey(7, models.ActivityTravel): 1,
	}}
	service := newTestBadgeService(t, badges, activities)

	eligible, err := service.EvaluateBadges(context.Background(), 7, activityTrigger(models.ActivityTravel))
	require.NoError(t, err)
	require.Len(t, eligible, 1, "unknown criteria types are skipped, not errors")
	assert.Equal(t, int64(2), eligible[0].ID)
}

func TestEvaluateBadges_MisconfiguredBadgeDoesNotBlockPass(t *testing.T) {
	badges := newFakeBadgeRepository()
	badges.badges = []*models.Badge{
		{
			ID:   1,
			Name: "Broken",
			// missing threshold param, the strategy will error
			Criteria: models.BadgeCriteria{
				Type:   CriteriaActivityCount,
				Params: map[string]any{"activity_type": "travel"},
			},
			IsActive: true,
		},
		countBadge(2, "First Trip", 1),
	}
	activities := &fakeActivityRepository{counts: map[string]int64{
		countKey(7, models.ActivityTravel): 1,
	}}
	service := newTestBadgeService(t, badges, activities)

	eligible, err := service.EvaluateBadges(context.Background(), 7, activityTrigger(models.ActivityTravel))
	require.NoError(t, err)
	require.Len(t, eligible, 1)
	assert.Equal(t, int64(2), eligible[0].ID)
}

func TestCreateBadge_DuplicateName(t *testing.T) {
	badges := newFakeBadgeRepository()
	service := newTestBadgeService(t, badges, &fakeActivityRepository{})

	req := &CreateBadgeRequest{
		Name: "First Trip",
		Criteria: models.BadgeCriteria{
			Type:   CriteriaActivityCount,
			Params: map[string]any{"activity_type": "travel", "threshold": float64(1)},
		},
	}
	_, err := service.CreateBadge(context.Background(), req)
	require.NoError(t, err)

	_, err = service.CreateBadge(context.Background(), req)
	require.Error(t, err)
	serviceErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.True(t, IsConflict(err))
	assert.Equal(t, CodeDuplicateBadge, serviceErr.Code)
}

// fakeAwardCoordinator records award passes triggered through the event feed.
type fakeAwardCoordinator struct {
	BadgeService
	mu       sync.Mutex
	triggers []TriggerContext
	userIDs  []int64
}

func (f *fakeAwardCoordinator) AwardBadges(ctx context.Context, userID int64, trigger TriggerContext) ([]*models.Badge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userIDs = append(f.userIDs, userID)
	f.triggers = append(f.triggers, trigger)
	return nil, nil
}

func TestRegisterAwardHandlers_IgnoresSyntheticEvents(t *testing.T) {
	logger := zap.NewNop()
	bus := events.NewInMemoryEventBus(events.DefaultEventBusConfig(), logger)
	coordinator := &fakeAwardCoordinator{}
	require.NoError(t, RegisterAwardHandlers(bus, coordinator, logger))

	// Synthetic activity, e.g. one recorded by event processing itself, must
	// not re-enter evaluation.
	err := bus.Publish(context.Background(), events.NewActivityRecordedEvent(1, 42, "travel", true))
	require.NoError(t, err)
	assert.Empty(t, coordinator.triggers, "synthetic events must be ignored")

	err = bus.Publish(context.Background(), events.NewActivityRecordedEvent(2, 42, "travel", false))
	require.NoError(t, err)
	require.Len(t, coordinator.triggers, 1)
	assert.Equal(t, int64(42), coordinator.userIDs[0])
	assert.Equal(t, TriggerActivity, coordinator.triggers[0].Class)
	assert.Equal(t, models.ActivityTravel, coordinator.triggers[0].ActivityType)
}

func TestRegisterAwardHandlers_LifecycleTrigger(t *testing.T) {
	logger := zap.NewNop()
	bus := events.NewInMemoryEventBus(events.DefaultEventBusConfig(), logger)
	coordinator := &fakeAwardCoordinator{}
	require.NoError(t, RegisterAwardHandlers(bus, coordinator, logger))

	err := bus.Publish(context.Background(), events.NewUserCreatedEvent(7, "amina"))
	require.NoError(t, err)
	require.Len(t, coordinator.triggers, 1)
	assert.Equal(t, TriggerLifecycle, coordinator.triggers[0].Class)
	assert.Equal(t, events.EventUserCreated, coordinator.triggers[0].EventType)
}
