// file: internal/services/eligibility.go
package services

import (
	"context"
	"fmt"

	"planandgo/internal/models"
	"planandgo/internal/repositories"

	"go.uber.org/zap"
)

// Criteria types understood by the built-in strategies.
const (
	CriteriaActivityCount = "activity_count"
	CriteriaExactCount    = "exact_count"
	CriteriaEvent         = "event"
	CriteriaAllOf         = "all_of"
)

// TriggerClass classifies the incoming event so candidate badges can be
// pre-filtered: a badge is never evaluated against an irrelevant event class.
type TriggerClass string

const (
	// TriggerActivity covers recorded user activities (travel, comment, ...).
	TriggerActivity TriggerClass = "activity"
	// TriggerLifecycle covers account lifecycle events (user created, ...).
	TriggerLifecycle TriggerClass = "lifecycle"
)

// TriggerContext describes the event that prompted an evaluation pass.
type TriggerContext struct {
	Class        TriggerClass
	EventType    string
	ActivityType models.ActivityType
}

// EligibilityStrategy decides whether a user qualifies for one badge. A
// strategy is a pure predicate: it reads state but never mutates it.
type EligibilityStrategy interface {
	IsEligible(ctx context.Context, userID int64, criteria models.BadgeCriteria, trigger TriggerContext) (bool, error)
}

// ===============================
// STRATEGY RESOLVER
// ===============================

// StrategyResolver maps criteria type tags to strategies. It is constructed
// once and injected into the badge service; badges with an unregistered
// criteria type are skipped during evaluation, never failed.
type StrategyResolver struct {
	strategies map[string]EligibilityStrategy
	byClass    map[TriggerClass][]string
	logger     *zap.Logger
}

// NewStrategyResolver creates an empty resolver.
func NewStrategyResolver(logger *zap.Logger) *StrategyResolver {
	return &StrategyResolver{
		strategies: make(map[string]EligibilityStrategy),
		byClass:    make(map[TriggerClass][]string),
		logger:     logger,
	}
}

// Register binds a criteria type to a strategy and the trigger classes it is
// relevant to.
func (r *StrategyResolver) Register(criteriaType string, strategy EligibilityStrategy, classes ...TriggerClass) {
	r.strategies[criteriaType] = strategy
	for _, class := range classes {
		r.byClass[class] = append(r.byClass[class], criteriaType)
	}
}

// Resolve returns the strategy for a criteria type, if one is registered.
func (r *StrategyResolver) Resolve(criteriaType string) (EligibilityStrategy, bool) {
	strategy, ok := r.strategies[criteriaType]
	return strategy, ok
}

// TypesFor returns the criteria types relevant to a trigger class.
func (r *StrategyResolver) TypesFor(class TriggerClass) []string {
	return r.byClass[class]
}

// NewDefaultStrategyResolver registers the built-in strategies.
func NewDefaultStrategyResolver(activities repositories.ActivityRepository, logger *zap.Logger) *StrategyResolver {
	resolver := NewStrategyResolver(logger)
	resolver.Register(CriteriaActivityCount, &ActivityCountStrategy{Activities: activities}, TriggerActivity)
	resolver.Register(CriteriaExactCount, &ExactCountStrategy{Activities: activities}, TriggerActivity)
	resolver.Register(CriteriaEvent, &EventStrategy{}, TriggerLifecycle)
	// Composites may mix count and event children, so they are candidates for
	// both trigger classes.
	resolver.Register(CriteriaAllOf, &AllOfStrategy{Resolver: resolver, Logger: logger}, TriggerActivity, TriggerLifecycle)
	return resolver
}

// ===============================
// BUILT-IN STRATEGIES
// ===============================

// ActivityCountStrategy is eligible once the full historical count of a named
// activity type reaches a threshold. It recounts on every evaluation, so
// repeated calls and replayed activity streams are safe.
type ActivityCountStrategy struct {
	Activities repositories.ActivityRepository
}

// IsEligible implements EligibilityStrategy.
func (s *ActivityCountStrategy) IsEligible(ctx context.Context, userID int64, criteria models.BadgeCriteria, trigger TriggerContext) (bool, error) {
	activityType, err := paramString(criteria.Params, "activity_type")
	if err != nil {
		return false, err
	}
	threshold, err := paramInt(criteria.Params, "threshold")
	if err != nil {
		return false, err
	}

	count, err := s.Activities.CountByUserAndType(ctx, userID, models.ActivityType(activityType))
	if err != nil {
		return false, fmt.Errorf("failed to count %s activities: %w", activityType, err)
	}
	return count >= threshold, nil
}

// ExactCountStrategy is eligible only while the count of a named activity
// type equals the target exactly. A "first N actions" badge: once the count
// passes the target the badge is permanently out of reach, which is the
// intended semantics, not a bug.
type ExactCountStrategy struct {
	Activities repositories.ActivityRepository
}

// IsEligible implements EligibilityStrategy.
func (s *ExactCountStrategy) IsEligible(ctx context.Context, userID int64, criteria models.BadgeCriteria, trigger TriggerContext) (bool, error) {
	activityType, err := paramString(criteria.Params, "activity_type")
	if err != nil {
		return false, err
	}
	target, err := paramInt(criteria.Params, "count")
	if err != nil {
		return false, err
	}

	count, err := s.Activities.CountByUserAndType(ctx, userID, models.ActivityType(activityType))
	if err != nil {
		return false, fmt.Errorf("failed to count %s activities: %w", activityType, err)
	}
	return count == target, nil
}

// EventStrategy is eligible iff the trigger names a specific event tag. It is
// stateless beyond the current trigger context.
type EventStrategy struct{}

// IsEligible implements EligibilityStrategy.
func (s *EventStrategy) IsEligible(_ context.Context, _ int64, criteria models.BadgeCriteria, trigger TriggerContext) (bool, error) {
	event, err := paramString(criteria.Params, "event")
	if err != nil {
		return false, err
	}
	return trigger.EventType == event, nil
}

// AllOfStrategy is eligible iff every child criterion is eligible. It
// short-circuits on the first failure; children have no side effects, so
// evaluation order does not affect the outcome.
type AllOfStrategy struct {
	Resolver *StrategyResolver
	Logger   *zap.Logger
}

// IsEligible implements EligibilityStrategy.
func (s *AllOfStrategy) IsEligible(ctx context.Context, userID int64, criteria models.BadgeCriteria, trigger TriggerContext) (bool, error) {
	children, err := paramCriteriaList(criteria.Params, "criteria")
	if err != nil {
		return false, err
	}
	if len(children) == 0 {
		return false, fmt.Errorf("all_of criteria requires at least one child")
	}

	for _, child := range children {
		strategy, ok := s.Resolver.Resolve(child.Type)
		if !ok {
			// An unknown child type cannot be satisfied; the composite as a
			// whole is not eligible rather than an error.
			if s.Logger != nil {
				s.Logger.Debug("Unknown child criteria type in composite",
					zap.String("criteria_type", child.Type),
				)
			}
			return false, nil
		}
		eligible, err := strategy.IsEligible(ctx, userID, child, trigger)
		if err != nil {
			return false, err
		}
		if !eligible {
			return false, nil
		}
	}
	return true, nil
}

// ===============================
// PARAM HELPERS
// ===============================

func paramString(params map[string]any, key string) (string, error) {
	value, ok := params[key]
	if !ok {
		return "", fmt.Errorf("criteria params missing %q", key)
	}
	s, ok := value.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("criteria param %q must be a non-empty string", key)
	}
	return s, nil
}

func paramInt(params map[string]any, key string) (int64, error) {
	value, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("criteria params missing %q", key)
	}
	switch v := value.(type) {
	case float64:
		// JSON numbers decode as float64
		return int64(v), nil
	case int:
		return int64(v), nil
	case int64:
		return v, nil
	default:
		return 0, fmt.Errorf("criteria param %q must be a number, got %T", key, value)
	}
}

func paramCriteriaList(params map[string]any, key string) ([]models.BadgeCriteria, error) {
	value, ok := params[key]
	if !ok {
		return nil, fmt.Errorf("criteria params missing %q", key)
	}

	var children []models.BadgeCriteria
	appendChild := func(raw any) error {
		child, ok := raw.(map[string]any)
		if !ok {
			return fmt.Errorf("criteria param %q entries must be objects, got %T", key, raw)
		}
		childType, _ := child["type"].(string)
		if childType == "" {
			return fmt.Errorf("criteria param %q entry missing type", key)
		}
		childParams, _ := child["params"].(map[string]any)
		children = append(children, models.BadgeCriteria{Type: childType, Params: childParams})
		return nil
	}

	switch list := value.(type) {
	case []any:
		for _, raw := range list {
			if err := appendChild(raw); err != nil {
				return nil, err
			}
		}
	case []models.BadgeCriteria:
		children = list
	default:
		return nil, fmt.Errorf("criteria param %q must be a list, got %T", key, value)
	}
	return children, nil
}
