// file: internal/repositories/trade_repository.go
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

// tradeRepository implements TradeRepository against postgres.
type tradeRepository struct {
	*BaseRepository
}

// NewTradeRepository creates a new trade repository
func NewTradeRepository(db *database.Manager, logger *zap.Logger) TradeRepository {
	return &tradeRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

// Create inserts a trade offer and its badge references in one transaction.
func (r *tradeRepository) Create(ctx context.Context, trade *models.BadgeTrade) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin trade transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO badge_trades (reference, sender_id, receiver_id, status, message)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err = tx.QueryRowContext(
		ctx, query,
		trade.Reference, trade.SenderID, trade.ReceiverID, trade.Status, trade.Message,
	).Scan(&trade.ID, &trade.CreatedAt, &trade.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	badgeQuery := `
		INSERT INTO trade_badges (trade_id, badge_id)
		SELECT $1, unnest($2::bigint[])`
	if _, err := tx.ExecContext(ctx, badgeQuery, trade.ID, pq.Array(trade.BadgeIDs)); err != nil {
		return fmt.Errorf("failed to attach badges to trade: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit trade: %w", err)
	}

	r.GetLogger().Info("Trade created",
		zap.Int64("trade_id", trade.ID),
		zap.Int64("sender_id", trade.SenderID),
		zap.Int64("receiver_id", trade.ReceiverID),
		zap.Int("badge_count", len(trade.BadgeIDs)),
	)
	return nil
}

// GetByID retrieves a trade with its badge references and badge metadata.
func (r *tradeRepository) GetByID(ctx context.Context, id int64) (*models.BadgeTrade, error) {
	query := `
		SELECT id, reference, sender_id, receiver_id, status, message, created_at, updated_at
		FROM badge_trades
		WHERE id = $1`

	var trade models.BadgeTrade
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&trade.ID, &trade.Reference, &trade.SenderID, &trade.ReceiverID,
		&trade.Status, &trade.Message, &trade.CreatedAt, &trade.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trade %d: %w", id, err)
	}

	if err := r.loadBadges(ctx, &trade); err != nil {
		return nil, err
	}
	return &trade, nil
}

// ListByUser returns a page of trades where the user is sender or receiver,
// newest first. Terminal trades are included as the audit trail.
func (r *tradeRepository) ListByUser(ctx context.Context, userID int64, params models.PaginationParams) ([]*models.BadgeTrade, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM badge_trades WHERE sender_id = $1 OR receiver_id = $1`
	if err := r.db.QueryRowContext(ctx, countQuery, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count trades: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, reference, sender_id, receiver_id, status, message, created_at, updated_at
		FROM badge_trades
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.QueryContext(ctx, query, userID, limit, params.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	var trades []*models.BadgeTrade
	for rows.Next() {
		var trade models.BadgeTrade
		if err := rows.Scan(
			&trade.ID, &trade.Reference, &trade.SenderID, &trade.ReceiverID,
			&trade.Status, &trade.Message, &trade.CreatedAt, &trade.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, &trade)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate trades: %w", err)
	}

	for _, trade := range trades {
		if err := r.loadBadges(ctx, trade); err != nil {
			return nil, 0, err
		}
	}
	return trades, total, nil
}

func (r *tradeRepository) loadBadges(ctx context.Context, trade *models.BadgeTrade) error {
	query := `
		SELECT b.id, b.name, b.description, b.icon, b.criteria, b.is_active, b.created_at, b.updated_at
		FROM trade_badges tb
		JOIN badges b ON b.id = tb.badge_id
		WHERE tb.trade_id = $1
		ORDER BY b.id`

	rows, err := r.db.QueryContext(ctx, query, trade.ID)
	if err != nil {
		return fmt.Errorf("failed to load trade badges: %w", err)
	}
	defer rows.Close()

	badges, err := scanBadges(rows)
	if err != nil {
		return err
	}

	trade.Badges = badges
	trade.BadgeIDs = make([]int64, 0, len(badges))
	for _, badge := range badges {
		trade.BadgeIDs = append(trade.BadgeIDs, badge.ID)
	}
	return nil
}

// Reject marks a pending trade rejected. The conditional update guards the
// terminal-state invariant against racing decisions.
func (r *tradeRepository) Reject(ctx context.Context, tradeID int64) error {
	query := `
		UPDATE badge_trades
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`

	result, err := r.db.ExecContext(ctx, query, models.TradeStatusRejected, tradeID, models.TradeStatusPending)
	if err != nil {
		return fmt.Errorf("failed to reject trade %d: %w", tradeID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read reject result: %w", err)
	}
	if affected == 0 {
		return ErrTradeNotPending
	}
	return nil
}

// Accept settles a trade: it re-validates that the sender still owns every
// referenced badge, moves the ledger rows to the receiver, and flips the
// status to accepted, all inside one transaction. The sender's ownership rows
// are locked FOR UPDATE so a badge referenced by two pending offers can be
// consumed by at most one acceptance; the loser observes the rows gone and
// gets an *OwnershipConflictError with the trade left pending.
func (r *tradeRepository) Accept(ctx context.Context, trade *models.BadgeTrade) ([]int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin accept transaction: %w", err)
	}
	defer tx.Rollback()

	// Lock and re-read the sender's ownership rows for the offered badges.
	lockQuery := `
		SELECT badge_id
		FROM user_badges
		WHERE user_id = $1 AND badge_id = ANY($2)
		FOR UPDATE`

	owned, err := queryBadgeIDs(ctx, tx, lockQuery, trade.SenderID, pq.Array(trade.BadgeIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to lock sender badges: %w", err)
	}

	if missing := missingIDs(trade.BadgeIDs, owned); len(missing) > 0 {
		return nil, &OwnershipConflictError{UserID: trade.SenderID, BadgeIDs: missing}
	}

	// Badges the receiver already owns are skipped: they stay with the sender
	// and are reported, never duplicated.
	receiverQuery := `
		SELECT badge_id
		FROM user_badges
		WHERE user_id = $1 AND badge_id = ANY($2)
		FOR UPDATE`

	skipped, err := queryBadgeIDs(ctx, tx, receiverQuery, trade.ReceiverID, pq.Array(trade.BadgeIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to check receiver badges: %w", err)
	}

	transfer := missingIDs(trade.BadgeIDs, skipped)
	if len(transfer) > 0 {
		deleteQuery := `
			DELETE FROM user_badges
			WHERE user_id = $1 AND badge_id = ANY($2)`
		if _, err := tx.ExecContext(ctx, deleteQuery, trade.SenderID, pq.Array(transfer)); err != nil {
			return nil, fmt.Errorf("failed to remove sender badges: %w", err)
		}

		insertQuery := `
			INSERT INTO user_badges (user_id, badge_id)
			SELECT $1, unnest($2::bigint[])
			ON CONFLICT (user_id, badge_id) DO NOTHING`
		if _, err := tx.ExecContext(ctx, insertQuery, trade.ReceiverID, pq.Array(transfer)); err != nil {
			return nil, fmt.Errorf("failed to insert receiver badges: %w", err)
		}
	}

	statusQuery := `
		UPDATE badge_trades
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`
	result, err := tx.ExecContext(ctx, statusQuery, models.TradeStatusAccepted, trade.ID, models.TradeStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to update trade status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read status update result: %w", err)
	}
	if affected == 0 {
		// A racing decision already made the trade terminal.
		return nil, ErrTradeNotPending
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit trade acceptance: %w", err)
	}

	r.GetLogger().Info("Trade accepted",
		zap.Int64("trade_id", trade.ID),
		zap.Int64("sender_id", trade.SenderID),
		zap.Int64("receiver_id", trade.ReceiverID),
		zap.Int("transferred", len(transfer)),
		zap.Int("skipped", len(skipped)),
	)
	return skipped, nil
}

func queryBadgeIDs(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// missingIDs returns the elements of want not present in have.
func missingIDs(want, have []int64) []int64 {
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
