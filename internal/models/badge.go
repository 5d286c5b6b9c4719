// file: internal/models/badge.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BadgeCriteria is the typed criteria document attached to every badge.
// Type selects the eligibility strategy; Params configures it.
type BadgeCriteria struct {
	Type   string         `json:"type"`
	Params map[string]any `json:"params,omitempty"`
}

// Value implements driver.Valuer so criteria documents persist as JSONB.
func (c BadgeCriteria) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner for criteria documents.
func (c *BadgeCriteria) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	case nil:
		*c = BadgeCriteria{}
		return nil
	default:
		return fmt.Errorf("unsupported criteria source type %T", src)
	}
}

// Badge represents an achievement badge that users can earn by meeting its
// awarding criteria. Badges are created by administrators and are never
// deleted while owned; criteria edits only affect future evaluations.
type Badge struct {
	ID          int64         `json:"id" db:"id"`
	Name        string        `json:"name" db:"name"`
	Description string        `json:"description" db:"description"`
	Icon        string        `json:"icon" db:"icon"`
	Criteria    BadgeCriteria `json:"criteria" db:"criteria"`
	IsActive    bool          `json:"is_active" db:"is_active"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty" db:"updated_at"`
}

// UserBadge is a single ownership fact in the badge ledger. The ledger
// enforces at most one row per (user, badge) pair; that uniqueness constraint
// is also the idempotency mechanism for awarding.
type UserBadge struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	BadgeID   int64     `json:"badge_id" db:"badge_id"`
	AwardedAt time.Time `json:"awarded_at" db:"awarded_at"`

	// Badge is populated by joined reads.
	Badge *Badge `json:"badge,omitempty" db:"-"`
}

// ===============================
// TRADES
// ===============================

// TradeStatus is the state of a badge trade offer.
type TradeStatus string

const (
	TradeStatusPending  TradeStatus = "pending"
	TradeStatusAccepted TradeStatus = "accepted"
	TradeStatusRejected TradeStatus = "rejected"
)

// IsTerminal reports whether no further transition is permitted.
func (s TradeStatus) IsTerminal() bool {
	return s == TradeStatusAccepted || s == TradeStatusRejected
}

// Valid reports whether the status is one of the known states.
func (s TradeStatus) Valid() bool {
	switch s {
	case TradeStatusPending, TradeStatusAccepted, TradeStatusRejected:
		return true
	}
	return false
}

// BadgeTrade is an offer from sender to receiver to transfer ownership of a
// set of badges. Offers are never deleted; terminal offers remain as an audit
// trail.
type BadgeTrade struct {
	ID         int64       `json:"id" db:"id"`
	Reference  string      `json:"reference" db:"reference"`
	SenderID   int64       `json:"sender_id" db:"sender_id"`
	ReceiverID int64       `json:"receiver_id" db:"receiver_id"`
	Status     TradeStatus `json:"status" db:"status"`
	Message    string      `json:"message" db:"message"`
	BadgeIDs   []int64     `json:"badge_ids" db:"-"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`

	// Populated by joined reads.
	Badges []*Badge `json:"badges,omitempty" db:"-"`
}

// ===============================
// ACTIVITIES
// ===============================

// ActivityType classifies a recorded user activity.
type ActivityType string

const (
	ActivityTravel         ActivityType = "travel"
	ActivityComment        ActivityType = "comment"
	ActivityLike           ActivityType = "like"
	ActivityProfileUpdate  ActivityType = "profile_update"
	ActivityPasswordChange ActivityType = "password_change"
)

// Valid reports whether the activity type is one of the known kinds.
func (t ActivityType) Valid() bool {
	switch t {
	case ActivityTravel, ActivityComment, ActivityLike, ActivityProfileUpdate, ActivityPasswordChange:
		return true
	}
	return false
}

// Activity is an append-only fact describing something a user did. Activities
// are produced by the activity surface and consumed read-only by badge
// evaluation; they are never mutated.
type Activity struct {
	ID         int64          `json:"id" db:"id"`
	UserID     int64          `json:"user_id" db:"user_id"`
	Type       ActivityType   `json:"activity_type" db:"activity_type"`
	Metadata   map[string]any `json:"metadata,omitempty" db:"metadata"`
	IPAddress  *string        `json:"ip_address,omitempty" db:"ip_address"`
	OccurredAt time.Time      `json:"occurred_at" db:"occurred_at"`
}
