// file: internal/services/trade_service_test.go
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

// fakeUserRepository serves a fixed set of users.
type fakeUserRepository struct {
	users map[int64]*models.User
}

func (f *fakeUserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if user, ok := f.users[id]; ok {
		return user, nil
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	for _, user := range f.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, repositories.ErrNotFound
}

var _ repositories.UserRepository = (*fakeUserRepository)(nil)

// fakeTradeRepository mirrors the settlement semantics of the SQL
// implementation against the fake ledger: acceptance re-validates sender
// ownership, moves rows atomically, and leaves the trade pending on conflict.
type fakeTradeRepository struct {
	mu     sync.Mutex
	trades map[int64]*models.BadgeTrade
	ledger *fakeBadgeRepository
	nextID int64
}

func newFakeTradeRepository(ledger *fakeBadgeRepository) *fakeTradeRepository {
	return &fakeTradeRepository{trades: make(map[int64]*models.BadgeTrade), ledger: ledger}
}

func (f *fakeTradeRepository) Create(ctx context.Context, trade *models.BadgeTrade) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	trade.ID = f.nextID
	copied := *trade
	f.trades[trade.ID] = &copied
	return nil
}

func (f *fakeTradeRepository) GetByID(ctx context.Context, id int64) (*models.BadgeTrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	trade, ok := f.trades[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	copied := *trade
	return &copied, nil
}

func (f *fakeTradeRepository) ListByUser(ctx context.Context, userID int64, params models.PaginationParams) ([]*models.BadgeTrade, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.BadgeTrade
	for _, trade := range f.trades {
		if trade.SenderID == userID || trade.ReceiverID == userID {
			copied := *trade
			out = append(out, &copied)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeTradeRepository) Reject(ctx context.Context, tradeID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	trade, ok := f.trades[tradeID]
	if !ok || trade.Status != models.TradeStatusPending {
		return repositories.ErrTradeNotPending
	}
	trade.Status = models.TradeStatusRejected
	return nil
}

func (f *fakeTradeRepository) Accept(ctx context.Context, trade *models.BadgeTrade) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.trades[trade.ID]
	if !ok || stored.Status != models.TradeStatusPending {
		return nil, repositories.ErrTradeNotPending
	}

	f.ledger.mu.Lock()
	defer f.ledger.mu.Unlock()

	var missing []int64
	for _, badgeID := range trade.BadgeIDs {
		if !f.ledger.owned[trade.SenderID][badgeID] {
			missing = append(missing, badgeID)
		}
	}
	if len(missing) > 0 {
		// conflict: nothing moves, trade stays pending
		return nil, &repositories.OwnershipConflictError{UserID: trade.SenderID, BadgeIDs: missing}
	}

	var skipped []int64
	for _, badgeID := range trade.BadgeIDs {
		if f.ledger.owned[trade.ReceiverID][badgeID] {
			skipped = append(skipped, badgeID)
			continue
		}
		delete(f.ledger.owned[trade.SenderID], badgeID)
		if f.ledger.owned[trade.ReceiverID] == nil {
			f.ledger.owned[trade.ReceiverID] = make(map[int64]bool)
		}
		f.ledger.owned[trade.ReceiverID][badgeID] = true
	}
	stored.Status = models.TradeStatusAccepted
	return skipped, nil
}

var _ repositories.TradeRepository = (*fakeTradeRepository)(nil)

type tradeFixture struct {
	service TradeService
	trades  *fakeTradeRepository
	ledger  *fakeBadgeRepository
}

func newTradeFixture(t *testing.T) *tradeFixture {
	t.Helper()
	logger := zap.NewNop()
	ledger := newFakeBadgeRepository()
	trades := newFakeTradeRepository(ledger)
	users := &fakeUserRepository{users: map[int64]*models.User{
		1: {ID: 1, Username: "amina"},
		2: {ID: 2, Username: "brian"},
		3: {ID: 3, Username: "carla"},
	}}
	bus := events.NewInMemoryEventBus(events.DefaultEventBusConfig(), logger)
	service := NewTradeService(trades, ledger, users, bus, cache.NewMemoryCache(logger), logger)
	return &tradeFixture{service: service, trades: trades, ledger: ledger}
}

func (fx *tradeFixture) grantBadges(t *testing.T, userID int64, badgeIDs ...int64) {
	t.Helper()
	for _, badgeID := range badgeIDs {
		awarded, err := fx.ledger.Award(context.Background(), userID, badgeID)
		require.NoError(t, err)
		require.True(t, awarded)
	}
}

func (fx *tradeFixture) propose(t *testing.T, senderID, receiverID int64, badgeIDs ...int64) *models.BadgeTrade {
	t.Helper()
	trade, err := fx.service.ProposeTrade(context.Background(), &ProposeTradeRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		BadgeIDs:   badgeIDs,
	})
	require.NoError(t, err)
	return trade
}

func TestProposeTrade(t *testing.T) {
	fx := newTradeFixture(t)
	fx.grantBadges(t, 1, 10, 11)

	trade := fx.propose(t, 1, 2, 10, 11)
	assert.Equal(t, models.TradeStatusPending, trade.Status)
	assert.NotEmpty(t, trade.Reference)
	assert.Equal(t, []int64{10, 11}, trade.BadgeIDs)
}

func TestProposeTrade_UnownedBadges(t *testing.T) {
	fx := newTradeFixture(t)
	fx.grantBadges(t, 1, 10)

	_, err := fx.service.ProposeTrade(context.Background(), &ProposeTradeRequest{
		SenderID:   1,
		ReceiverID: 2,
		BadgeIDs:   []int64{10, 99},
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	serviceErr, _ := AsServiceError(err)
	assert.Equal(t, []int64{99}, serviceErr.Details["unowned_badge_ids"])
}

func TestProposeTrade_SelfTrade(t *testing.T) {
	fx := newTradeFixture(t)
	fx.grantBadges(t, 1, 10)

	_, err := fx.service.ProposeTrade(context.Background(), &ProposeTradeRequest{
		SenderID:   1,
		ReceiverID: 1,
		BadgeIDs:   []int64{10},
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestProposeTrade_UnknownReceiver(t *testing.T) {
	fx := newTradeFixture(t)
	fx.grantBadges(t, 1, 10)

	_, err := fx.service.ProposeTrade(context.Background(), &ProposeTradeRequest{
		SenderID:   1,
		ReceiverID: 404,
		BadgeIDs:   []int64{10},
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestDecideTrade_Accept(t *testing.T) {
	fx := newTradeFixture(t)
	fx.grantBadges(t, 1, 10, 11)
	trade := fx.propose(t, 1, 2, 10, 11)

	decided, err := fx.service.DecideTrade(context.Background(), &DecideTradeRequest{
		TradeID:  trade.ID,
		ActorID:  2,
		Decision: DecisionAccept,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusAccepted, decided.Status)

	// ownership moved from sender to receiver
	senderOwned, err := fx.ledger.OwnedBadgeIDs(context.Background(), 1, []int64{10, 11})
	require.NoError(t, err)
	assert.Empty(t, senderOwned)
	receiverOwned, err := fx.ledger.OwnedBadgeIDs(context.Background(), 2, []int64{10, 11})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{10, 11}, receiverOwned)
}

func TestDecideTrade_DoubleSpend(t *testing.T) {
	fx := newTradeFixture(t)
	fx.grantBadges(t, 1, 10)

	// Two pending offers for the same badge to different receivers. The first
	// acceptance wins; the second must fail its ownership re-check and stay
	// pending.
	first := fx.propose(t, 1, 2, 10)
	second := fx.propose(t, 1, 3, 10)

	_, err := fx.service.DecideTrade(context.Background(), &DecideTradeRequest{
		TradeID:  first.ID,
		ActorID:  2,
		Decision: DecisionAccept,
	})
	require.NoError(t, err)

	_, err = fx.service.DecideTrade(context.Background(), &DecideTradeRequest{
		TradeID:  second.ID,
		ActorID:  3,
		Decision: DecisionAccept,
	})
	require.Error(t, err)
	serviceErr, ok := AsServiceError(err)
	require.True(t, ok)
	assert.True(t, IsConflict(err))
	assert.Equal(t, CodeOwnershipConflict, serviceErr.Code)
	assert.Equal(t, []int64{10}, serviceErr.Details["unowned_badge_ids"])

	// the losing offer is still pending, not silently terminal, and the badge
	// is owned only by the first receiver
	stored, err := fx.trades.GetByID(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusPending, stored.Status)

	for userID, want := range map[int64][]int64{1: nil, 2: {10}, 3: nil} {
		owned, err := fx.ledger.OwnedBadgeIDs(context.Background(), userID, []int64{10})
		require.NoError(t, err)
		assert.Equal(t, want, owned)
	}
}

func TestDecideTrade_ReceiverAlreadyOwnsBadge(t *testing.T) {
	fx := newTradeFixture(t)
	fx.grantBadges(t, 1, 10, 11)
	fx.grantBadges(t, 2, 11)
	trade := fx.propose(t, 1, 2, 10, 11)

	decided, err := fx.service.DecideTrade(context.Background(), &DecideTradeRequest{
		TradeID:  trade.ID,
		ActorID:  2,
		Decision: DecisionAccept,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusAccepted, decided.Status)

	// badge 11 was skipped: the receiver keeps a single row and the sender
	// keeps the original
	senderOwned, err := fx.ledger.OwnedBadgeIDs(context.Background(), 1, []int64{10, 11})
	require.NoError(t, err)
	assert.Equal(t, []int64{11}, senderOwned)
	receiverOwned, err := fx.ledger.OwnedBadgeIDs(context.Background(), 2, []int64{10, 11})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{10, 11}, receiverOwned)
}

func TestDecideTrade_Reject(t *testing.T) {
	fx := newTradeFixture(t)
	fx.grantBadges(t, 1, 10)
	trade := fx.propose(t, 1, 2, 10)

	decided, err := fx.service.DecideTrade(context.Background(), &DecideTradeRequest{
		TradeID:  trade.ID,
		ActorID:  2,
		Decision: DecisionReject,
	})
	require.NoError(t, err)
	assert.Equal(t, models.TradeStatusRejected, decided.Status)

	// sender keeps the badge
	owned, err := fx.ledger.OwnedBadgeIDs(context.Background(), 1, []int64{10})
	require.NoError(t, err)
	assert.Equal(t, []int64{10}, owned)
}

func TestDecideTrade_TerminalTrade(t *testing.T) {
	fx := newTradeFixture(t)
	fx.grantBadges(t, 1, 10)
	trade := fx.propose(t, 1, 2, 10)

	_, err := fx.service.DecideTrade(context.Background(), &DecideTradeRequest{
		TradeID:  trade.ID,
		ActorID:  2,
		Decision: DecisionReject,
	})
	require.NoError(t, err)

	// any further decision on a terminal trade is a conflict
	for _, decision := range []TradeDecision{DecisionAccept, DecisionReject} {
		_, err = fx.service.DecideTrade(context.Background(), &DecideTradeRequest{
			TradeID:  trade.ID,
			ActorID:  2,
			Decision: decision,
		})
		require.Error(t, err)
		serviceErr, ok := AsServiceError(err)
		require.True(t, ok)
		assert.True(t, IsConflict(err))
		assert.Equal(t, CodeTradeNotPending, serviceErr.Code)
	}
}

func TestDecideTrade_OnlyReceiverDecides(t *testing.T) {
	fx := newTradeFixture(t)
	fx.grantBadges(t, 1, 10)
	trade := fx.propose(t, 1, 2, 10)

	for _, actorID := range []int64{1, 3} {
		_, err := fx.service.DecideTrade(context.Background(), &DecideTradeRequest{
			TradeID:  trade.ID,
			ActorID:  actorID,
			Decision: DecisionAccept,
		})
		require.Error(t, err)
		assert.True(t, IsAuthorization(err))
	}
}

func TestGetTrade_PartyOnly(t *testing.T) {
	fx := newTradeFixture(t)
	fx.grantBadges(t, 1, 10)
	trade := fx.propose(t, 1, 2, 10)

	for _, actorID := range []int64{1, 2} {
		got, err := fx.service.GetTrade(context.Background(), trade.ID, actorID)
		require.NoError(t, err)
		assert.Equal(t, trade.ID, got.ID)
	}

	_, err := fx.service.GetTrade(context.Background(), trade.ID, 3)
	require.Error(t, err)
	assert.True(t, IsAuthorization(err))

	_, err = fx.service.GetTrade(context.Background(), 404, 1)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}
