package events

import "time"

// Event type tags consumed and produced by the badge engine.
const (
	EventActivityRecorded = "activity.recorded"
	EventUserCreated      = "user.created"
	EventProfileUpdated   = "profile.updated"
	EventBadgeAwarded     = "badge.awarded"
	EventTradeProposed    = "trade.proposed"
	EventTradeAccepted    = "trade.accepted"
	EventTradeRejected    = "trade.rejected"
)

// ActivityRecordedEvent is emitted whenever a user activity is recorded.
type ActivityRecordedEvent struct {
	BaseEvent
	ActivityID   int64  `json:"activity_id"`
	ActivityType string `json:"activity_type"`
}

// NewActivityRecordedEvent creates a new activity recorded event. Synthetic
// marks activities recorded by the badge pipeline itself, which are excluded
// from re-triggering evaluation.
func NewActivityRecordedEvent(activityID int64, userID int64, activityType string, synthetic bool) *ActivityRecordedEvent {
	return &ActivityRecordedEvent{
		BaseEvent: BaseEvent{
			EventID:   GenerateEventID(),
			EventType: EventActivityRecorded,
			Timestamp: time.Now(),
			UserID:    &userID,
			Synthetic: synthetic,
		},
		ActivityID:   activityID,
		ActivityType: activityType,
	}
}

// UserCreatedEvent is emitted by the account subsystem when a user registers.
type UserCreatedEvent struct {
	BaseEvent
	Username string `json:"username"`
}

// NewUserCreatedEvent creates a new user created event
func NewUserCreatedEvent(userID int64, username string) *UserCreatedEvent {
	return &UserCreatedEvent{
		BaseEvent: BaseEvent{
			EventID:   GenerateEventID(),
			EventType: EventUserCreated,
			Timestamp: time.Now(),
			UserID:    &userID,
		},
		Username: username,
	}
}

// ProfileUpdatedEvent is emitted by the profile subsystem after an update.
type ProfileUpdatedEvent struct {
	BaseEvent
	ChangedFields []string `json:"changed_fields"`
}

// NewProfileUpdatedEvent creates a new profile updated event
func NewProfileUpdatedEvent(userID int64, changedFields []string) *ProfileUpdatedEvent {
	return &ProfileUpdatedEvent{
		BaseEvent: BaseEvent{
			EventID:   GenerateEventID(),
			EventType: EventProfileUpdated,
			Timestamp: time.Now(),
			UserID:    &userID,
		},
		ChangedFields: changedFields,
	}
}

// BadgeAwardedEvent is emitted after a badge is written to the ledger. It is
// always synthetic: awarding a badge must never feed back into evaluation.
type BadgeAwardedEvent struct {
	BaseEvent
	BadgeID   int64  `json:"badge_id"`
	BadgeName string `json:"badge_name"`
}

// NewBadgeAwardedEvent creates a new badge awarded event
func NewBadgeAwardedEvent(userID, badgeID int64, badgeName string) *BadgeAwardedEvent {
	return &BadgeAwardedEvent{
		BaseEvent: BaseEvent{
			EventID:   GenerateEventID(),
			EventType: EventBadgeAwarded,
			Timestamp: time.Now(),
			UserID:    &userID,
			Synthetic: true,
		},
		BadgeID:   badgeID,
		BadgeName: badgeName,
	}
}

// TradeEvent is emitted on trade lifecycle transitions.
type TradeEvent struct {
	BaseEvent
	TradeID    int64   `json:"trade_id"`
	SenderID   int64   `json:"sender_id"`
	ReceiverID int64   `json:"receiver_id"`
	BadgeIDs   []int64 `json:"badge_ids"`
}

// NewTradeEvent creates a trade lifecycle event of the given type. Trade
// events are synthetic for the same reason awards are: downstream consumers
// (notifications) may observe them, evaluation must not.
func NewTradeEvent(eventType string, tradeID, senderID, receiverID int64, badgeIDs []int64) *TradeEvent {
	return &TradeEvent{
		BaseEvent: BaseEvent{
			EventID:   GenerateEventID(),
			EventType: eventType,
			Timestamp: time.Now(),
			UserID:    &senderID,
			Synthetic: true,
		},
		TradeID:    tradeID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		BadgeIDs:   badgeIDs,
	}
}
