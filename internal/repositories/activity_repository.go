// file: internal/repositories/activity_repository.go
package repositories

import (
	"context"
	"encoding/json"
	"fmt"

	"planandgo/internal/database"
	"planandgo/internal/models"

	"go.uber.org/zap"
)

// activityRepository implements ActivityRepository against postgres.
type activityRepository struct {
	*BaseRepository
}

// NewActivityRepository creates a new activity repository
func NewActivityRepository(db *database.Manager, logger *zap.Logger) ActivityRepository {
	return &activityRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

// Create appends a new activity row. Activities are never updated or deleted.
func (r *activityRepository) Create(ctx context.Context, activity *models.Activity) error {
	metadata, err := json.Marshal(activity.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal activity metadata: %w", err)
	}

	query := `
		INSERT INTO activities (user_id, activity_type, metadata, ip_address)
		VALUES ($1, $2, $3, $4)
		RETURNING id, occurred_at`

	err = r.db.QueryRowContext(
		ctx, query,
		activity.UserID, activity.Type, metadata, activity.IPAddress,
	).Scan(&activity.ID, &activity.OccurredAt)
	if err != nil {
		return fmt.Errorf("failed to create activity: %w", err)
	}
	return nil
}

// CountByUserAndType returns the full historical count of a named activity
// type for a user. Evaluation always recounts; it never keeps running totals,
// so replayed or reordered activity streams cannot skew eligibility.
func (r *activityRepository) CountByUserAndType(ctx context.Context, userID int64, activityType models.ActivityType) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM activities
		WHERE user_id = $1 AND activity_type = $2`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, userID, activityType).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count activities: %w", err)
	}
	return count, nil
}

// ListByUser returns a page of a user's activities, newest first.
func (r *activityRepository) ListByUser(ctx context.Context, userID int64, params models.PaginationParams) ([]*models.Activity, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM activities WHERE user_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count user activities: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, user_id, activity_type, metadata, ip_address, occurred_at
		FROM activities
		WHERE user_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []*models.Activity
	for rows.Next() {
		var activity models.Activity
		var metadata []byte
		if err := rows.Scan(
			&activity.ID, &activity.UserID, &activity.Type,
			&metadata, &activity.IPAddress, &activity.OccurredAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan activity: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &activity.Metadata); err != nil {
				return nil, 0, fmt.Errorf("failed to unmarshal activity metadata: %w", err)
			}
		}
		activities = append(activities, &activity)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate activities: %w", err)
	}
	return activities, total, nil
}
