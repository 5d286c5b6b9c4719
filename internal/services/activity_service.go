// file: internal/services/activity_service.go
package services

import (
	"context"
	"fmt"

	"planandgo/internal/events"
	"planandgo/internal/models"
	"planandgo/internal/repositories"
	"planandgo/internal/validation"

	"go.uber.org/zap"
)

// activityService implements ActivityService. It is the domain event producer
// surface: every recorded activity is published on the bus, where the award
// pipeline picks it up.
type activityService struct {
	activities repositories.ActivityRepository
	eventBus   events.EventBus
	logger     *zap.Logger
}

// NewActivityService creates a new activity service.
func NewActivityService(
	activities repositories.ActivityRepository,
	eventBus events.EventBus,
	logger *zap.Logger,
) ActivityService {
	return &activityService{
		activities: activities,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// RecordActivity appends an activity and publishes it. The published event
// carries the request's Synthetic flag, so activities written while an award
// pass runs cannot re-trigger another pass.
func (s *activityService) RecordActivity(ctx context.Context, req *RecordActivityRequest) (*models.Activity, error) {
	if err := validation.ValidateStruct(req); err != nil {
		return nil, NewValidationError(err.Error(), nil)
	}
	if !req.Type.Valid() {
		return nil, NewValidationError(fmt.Sprintf("unknown activity type %q", req.Type), map[string]any{
			"activity_type": req.Type,
		})
	}

	activity := &models.Activity{
		UserID:    req.UserID,
		Type:      req.Type,
		Metadata:  req.Metadata,
		IPAddress: req.IPAddress,
	}
	if err := s.activities.Create(ctx, activity); err != nil {
		return nil, NewInternalError("failed to record activity", err)
	}

	event := events.NewActivityRecordedEvent(activity.ID, activity.UserID, string(activity.Type), req.Synthetic)
	// Publish synchronously so the award pass completes before the recording
	// call returns; handler failures are logged by the bus, not surfaced to
	// the producer.
	if err := s.eventBus.Publish(ctx, event); err != nil {
		s.logger.Warn("Activity event processing reported errors",
			zap.Int64("activity_id", activity.ID),
			zap.Error(err),
		)
	}
	return activity, nil
}

// ListActivities returns a page of a user's activities, newest first.
func (s *activityService) ListActivities(ctx context.Context, userID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Activity], error) {
	activities, total, err := s.activities.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, NewInternalError("failed to list activities", err)
	}
	return &models.PaginatedResponse[*models.Activity]{
		Data:       activities,
		Pagination: models.NewPaginationMeta(params, total),
	}, nil
}

// RegisterProfileActivityHandler records a profile_update activity whenever
// the profile subsystem publishes an update, mirroring how the rest of the
// product turns lifecycle changes into activity rows.
func RegisterProfileActivityHandler(bus events.EventBus, activities ActivityService, logger *zap.Logger) error {
	handler := events.EventHandlerFunc{
		ID: "activity-recorder:profile.updated",
		Func: func(ctx context.Context, event events.Event) error {
			if event.IsSynthetic() || event.GetUserID() == nil {
				return nil
			}
			profileEvent, ok := event.(*events.ProfileUpdatedEvent)
			if !ok {
				return nil
			}
			_, err := activities.RecordActivity(ctx, &RecordActivityRequest{
				UserID: *event.GetUserID(),
				Type:   models.ActivityProfileUpdate,
				Metadata: map[string]any{
					"changed_fields": profileEvent.ChangedFields,
				},
			})
			return err
		},
	}
	if err := bus.Subscribe(events.EventProfileUpdated, handler); err != nil {
		return fmt.Errorf("failed to subscribe profile activity handler: %w", err)
	}
	logger.Info("Profile activity handler registered")
	return nil
}
