// file: internal/services/eligibility_test.go
package services

import (
	"context"
	"fmt"
	"testing"

	"planandgo/internal/models"
	"planandgo/internal/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeActivityRepository serves canned activity counts keyed by user and type.
type fakeActivityRepository struct {
	counts     map[string]int64
	countErr   error
	activities []*models.Activity
}

func countKey(userID int64, activityType models.ActivityType) string {
	return fmt.Sprintf("%d:%s", userID, activityType)
}

func (f *fakeActivityRepository) Create(ctx context.Context, activity *models.Activity) error {
	activity.ID = int64(len(f.activities) + 1)
	f.activities = append(f.activities, activity)
	if f.counts == nil {
		f.counts = make(map[string]int64)
	}
	f.counts[countKey(activity.UserID, activity.Type)]++
	return nil
}

func (f *fakeActivityRepository) CountByUserAndType(ctx context.Context, userID int64, activityType models.ActivityType) (int64, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.counts[countKey(userID, activityType)], nil
}

func (f *fakeActivityRepository) ListByUser(ctx context.Context, userID int64, params models.PaginationParams) ([]*models.Activity, int64, error) {
	return f.activities, int64(len(f.activities)), nil
}

var _ repositories.ActivityRepository = (*fakeActivityRepository)(nil)

func activityTrigger(activityType models.ActivityType) TriggerContext {
	return TriggerContext{
		Class:        TriggerActivity,
		EventType:    "activity.recorded",
		ActivityType: activityType,
	}
}

func TestActivityCountStrategy_Threshold(t *testing.T) {
	activities := &fakeActivityRepository{counts: map[string]int64{}}
	strategy := &ActivityCountStrategy{Activities: activities}
	criteria := models.BadgeCriteria{
		Type: CriteriaActivityCount,
		// threshold arrives as float64 after a JSONB round trip
		Params: map[string]any{"activity_type": "travel", "threshold": float64(3)},
	}

	tests := []struct {
		name     string
		count    int64
		eligible bool
	}{
		{"below threshold", 2, false},
		{"at threshold", 3, true},
		{"above threshold", 4, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			activities.counts[countKey(7, models.ActivityTravel)] = tt.count
			eligible, err := strategy.IsEligible(context.Background(), 7, criteria, activityTrigger(models.ActivityTravel))
			require.NoError(t, err)
			assert.Equal(t, tt.eligible, eligible)
		})
	}
}

func TestActivityCountStrategy_MissingParams(t *testing.T) {
	strategy := &ActivityCountStrategy{Activities: &fakeActivityRepository{}}

	_, err := strategy.IsEligible(context.Background(), 7, models.BadgeCriteria{
		Type:   CriteriaActivityCount,
		Params: map[string]any{"threshold": float64(3)},
	}, activityTrigger(models.ActivityTravel))
	assert.Error(t, err, "missing activity_type should be an error")

	_, err = strategy.IsEligible(context.Background(), 7, models.BadgeCriteria{
		Type:   CriteriaActivityCount,
		Params: map[string]any{"activity_type": "travel", "threshold": "three"},
	}, activityTrigger(models.ActivityTravel))
	assert.Error(t, err, "non-numeric threshold should be an error")
}

func TestExactCountStrategy(t *testing.T) {
	activities := &fakeActivityRepository{counts: map[string]int64{}}
	strategy := &ExactCountStrategy{Activities: activities}
	criteria := models.BadgeCriteria{
		Type:   CriteriaExactCount,
		Params: map[string]any{"activity_type": "comment", "count": float64(2)},
	}

	tests := []struct {
		name     string
		count    int64
		eligible bool
	}{
		{"below target", 1, false},
		{"exactly at target", 2, true},
		// Once the count passes the target the badge is permanently out of
		// reach: strict equality, not a threshold.
		{"past target", 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			activities.counts[countKey(9, models.ActivityComment)] = tt.count
			eligible, err := strategy.IsEligible(context.Background(), 9, criteria, activityTrigger(models.ActivityComment))
			require.NoError(t, err)
			assert.Equal(t, tt.eligible, eligible)
		})
	}
}

func TestEventStrategy(t *testing.T) {
	strategy := &EventStrategy{}
	criteria := models.BadgeCriteria{
		Type:   CriteriaEvent,
		Params: map[string]any{"event": "user.created"},
	}

	eligible, err := strategy.IsEligible(context.Background(), 1, criteria, TriggerContext{
		Class:     TriggerLifecycle,
		EventType: "user.created",
	})
	require.NoError(t, err)
	assert.True(t, eligible, "matching event tag should be eligible")

	eligible, err = strategy.IsEligible(context.Background(), 1, criteria, TriggerContext{
		Class:     TriggerLifecycle,
		EventType: "profile.updated",
	})
	require.NoError(t, err)
	assert.False(t, eligible, "non-matching event tag should not be eligible")
}

func TestAllOfStrategy(t *testing.T) {
	logger := zap.NewNop()
	activities := &fakeActivityRepository{counts: map[string]int64{
		countKey(5, models.ActivityTravel):  3,
		countKey(5, models.ActivityComment): 1,
	}}
	resolver := NewDefaultStrategyResolver(activities, logger)
	strategy := &AllOfStrategy{Resolver: resolver, Logger: logger}

	child := func(activityType string, threshold int) map[string]any {
		return map[string]any{
			"type":   CriteriaActivityCount,
			"params": map[string]any{"activity_type": activityType, "threshold": float64(threshold)},
		}
	}

	t.Run("all children satisfied", func(t *testing.T) {
		eligible, err := strategy.IsEligible(context.Background(), 5, models.BadgeCriteria{
			Type:   CriteriaAllOf,
			Params: map[string]any{"criteria": []any{child("travel", 3), child("comment", 1)}},
		}, activityTrigger(models.ActivityTravel))
		require.NoError(t, err)
		assert.True(t, eligible)
	})

	t.Run("one child unsatisfied", func(t *testing.T) {
		eligible, err := strategy.IsEligible(context.Background(), 5, models.BadgeCriteria{
			Type:   CriteriaAllOf,
			Params: map[string]any{"criteria": []any{child("travel", 3), child("comment", 5)}},
		}, activityTrigger(models.ActivityTravel))
		require.NoError(t, err)
		assert.False(t, eligible)
	})

	t.Run("unknown child type is not an error", func(t *testing.T) {
		eligible, err := strategy.IsEligible(context.Background(), 5, models.BadgeCriteria{
			Type: CriteriaAllOf,
			Params: map[string]any{"criteria": []any{
				map[string]any{"type": "moon_phase", "params": map[string]any{}},
			}},
		}, activityTrigger(models.ActivityTravel))
		require.NoError(t, err)
		assert.False(t, eligible, "composite with an unknown child cannot be satisfied")
	})

	t.Run("empty child list is an error", func(t *testing.T) {
		_, err := strategy.IsEligible(context.Background(), 5, models.BadgeCriteria{
			Type:   CriteriaAllOf,
			Params: map[string]any{"criteria": []any{}},
		}, activityTrigger(models.ActivityTravel))
		assert.Error(t, err)
	})
}

func TestStrategyResolver_TypesFor(t *testing.T) {
	resolver := NewDefaultStrategyResolver(&fakeActivityRepository{}, zap.NewNop())

	activityTypes := resolver.TypesFor(TriggerActivity)
	assert.ElementsMatch(t, []string{CriteriaActivityCount, CriteriaExactCount, CriteriaAllOf}, activityTypes)

	lifecycleTypes := resolver.TypesFor(TriggerLifecycle)
	assert.ElementsMatch(t, []string{CriteriaEvent, CriteriaAllOf}, lifecycleTypes)

	_, ok := resolver.Resolve("moon_phase")
	assert.False(t, ok, "unregistered criteria types must not resolve")
}
