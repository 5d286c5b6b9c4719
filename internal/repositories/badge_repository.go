// file: internal/repositories/badge_repository.go
package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"planandgo/internal/database"
	"planandgo/internal/models"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// badgeRepository implements BadgeRepository against postgres.
type badgeRepository struct {
	*BaseRepository
}

// NewBadgeRepository creates a new badge repository
func NewBadgeRepository(db *database.Manager, logger *zap.Logger) BadgeRepository {
	return &badgeRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

// ===============================
// CATALOG
// ===============================

// Create inserts a new badge definition.
func (r *badgeRepository) Create(ctx context.Context, badge *models.Badge) error {
	query := `
		INSERT INTO badges (name, description, icon, criteria, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(
		ctx, query,
		badge.Name, badge.Description, badge.Icon, badge.Criteria, badge.IsActive,
	).Scan(&badge.ID, &badge.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("badge %q: %w", badge.Name, ErrDuplicate)
		}
		return fmt.Errorf("failed to create badge: %w", err)
	}

	r.GetLogger().Info("Badge created",
		zap.Int64("badge_id", badge.ID),
		zap.String("name", badge.Name),
		zap.String("criteria_type", badge.Criteria.Type),
	)
	return nil
}

// GetByID retrieves a badge by ID.
func (r *badgeRepository) GetByID(ctx context.Context, id int64) (*models.Badge, error) {
	query := `
		SELECT id, name, description, icon, criteria, is_active, created_at, updated_at
		FROM badges
		WHERE id = $1`

	var badge models.Badge
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&badge.ID, &badge.Name, &badge.Description, &badge.Icon,
		&badge.Criteria, &badge.IsActive, &badge.CreatedAt, &badge.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get badge %d: %w", id, err)
	}
	return &badge, nil
}

// List returns the badge catalog.
func (r *badgeRepository) List(ctx context.Context, activeOnly bool) ([]*models.Badge, error) {
	query := `
		SELECT id, name, description, icon, criteria, is_active, created_at, updated_at
		FROM badges`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list badges: %w", err)
	}
	defer rows.Close()

	return scanBadges(rows)
}

// ListActiveByCriteriaTypes returns active badges whose criteria type is one
// of the given types. This is the candidate pre-filter for evaluation.
func (r *badgeRepository) ListActiveByCriteriaTypes(ctx context.Context, criteriaTypes []string) ([]*models.Badge, error) {
	if len(criteriaTypes) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, name, description, icon, criteria, is_active, created_at, updated_at
		FROM badges
		WHERE is_active = true AND criteria->>'type' = ANY($1)
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(criteriaTypes))
	if err != nil {
		return nil, fmt.Errorf("failed to list badges by criteria types: %w", err)
	}
	defer rows.Close()

	return scanBadges(rows)
}

func scanBadges(rows *sql.Rows) ([]*models.Badge, error) {
	var badges []*models.Badge
	for rows.Next() {
		var badge models.Badge
		if err := rows.Scan(
			&badge.ID, &badge.Name, &badge.Description, &badge.Icon,
			&badge.Criteria, &badge.IsActive, &badge.CreatedAt, &badge.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan badge: %w", err)
		}
		badges = append(badges, &badge)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate badges: %w", err)
	}
	return badges, nil
}

// ===============================
// LEDGER
// ===============================

// Award inserts an ownership row if absent. The UNIQUE(user_id, badge_id)
// constraint arbitrates concurrent awards: ON CONFLICT DO NOTHING makes the
// losing writer a successful no-op instead of an error.
func (r *badgeRepository) Award(ctx context.Context, userID, badgeID int64) (bool, error) {
	query := `
		INSERT INTO user_badges (user_id, badge_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, badge_id) DO NOTHING`

	result, err := r.db.ExecContext(ctx, query, userID, badgeID)
	if err != nil {
		return false, fmt.Errorf("failed to award badge %d to user %d: %w", badgeID, userID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read award result: %w", err)
	}
	return affected > 0, nil
}

// ListUserBadges returns all badges a user owns, joined with badge metadata.
func (r *badgeRepository) ListUserBadges(ctx context.Context, userID int64) ([]*models.UserBadge, error) {
	query := `
		SELECT
			ub.id, ub.user_id, ub.badge_id, ub.awarded_at,
			b.id, b.name, b.description, b.icon, b.criteria, b.is_active, b.created_at, b.updated_at
		FROM user_badges ub
		JOIN badges b ON b.id = ub.badge_id
		WHERE ub.user_id = $1
		ORDER BY ub.awarded_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user badges: %w", err)
	}
	defer rows.Close()

	var userBadges []*models.UserBadge
	for rows.Next() {
		var ub models.UserBadge
		var badge models.Badge
		if err := rows.Scan(
			&ub.ID, &ub.UserID, &ub.BadgeID, &ub.AwardedAt,
			&badge.ID, &badge.Name, &badge.Description, &badge.Icon,
			&badge.Criteria, &badge.IsActive, &badge.CreatedAt, &badge.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan user badge: %w", err)
		}
		ub.Badge = &badge
		userBadges = append(userBadges, &ub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user badges: %w", err)
	}
	return userBadges, nil
}

// GetUserBadge returns a single ownership row with badge metadata.
func (r *badgeRepository) GetUserBadge(ctx context.Context, userID, badgeID int64) (*models.UserBadge, error) {
	query := `
		SELECT
			ub.id, ub.user_id, ub.badge_id, ub.awarded_at,
			b.id, b.name, b.description, b.icon, b.criteria, b.is_active, b.created_at, b.updated_at
		FROM user_badges ub
		JOIN badges b ON b.id = ub.badge_id
		WHERE ub.user_id = $1 AND ub.badge_id = $2`

	var ub models.UserBadge
	var badge models.Badge
	err := r.db.QueryRowContext(ctx, query, userID, badgeID).Scan(
		&ub.ID, &ub.UserID, &ub.BadgeID, &ub.AwardedAt,
		&badge.ID, &badge.Name, &badge.Description, &badge.Icon,
		&badge.Criteria, &badge.IsActive, &badge.CreatedAt, &badge.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user badge: %w", err)
	}
	ub.Badge = &badge
	return &ub, nil
}

// OwnedBadgeIDs returns which of the given badge IDs the user currently owns.
func (r *badgeRepository) OwnedBadgeIDs(ctx context.Context, userID int64, badgeIDs []int64) ([]int64, error) {
	if len(badgeIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT badge_id
		FROM user_badges
		WHERE user_id = $1 AND badge_id = ANY($2)`

	rows, err := r.db.QueryContext(ctx, query, userID, pq.Array(badgeIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query owned badges: %w", err)
	}
	defer rows.Close()

	var owned []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan owned badge id: %w", err)
		}
		owned = append(owned, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate owned badges: %w", err)
	}
	return owned, nil
}
