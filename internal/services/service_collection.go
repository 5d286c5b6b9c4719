// file: internal/services/service_collection.go
package services

import (
	"context"
	"fmt"

	"planandgo/internal/cache"
	"planandgo/internal/config"
	"planandgo/internal/database"
	"planandgo/internal/events"
	"planandgo/internal/repositories"

	"go.uber.org/zap"
)

// ServiceCollection holds all services with their shared infrastructure.
type ServiceCollection struct {
	BadgeService    BadgeService
	TradeService    TradeService
	ActivityService ActivityService

	Repositories *repositories.Collection
	Cache        cache.Cache
	EventBus     events.EventBus
	Logger       *zap.Logger
	Config       *config.Config
	DBManager    *database.Manager
}

// NewServiceCollection wires repositories, services, and event handlers.
func NewServiceCollection(
	cfg *config.Config,
	db *database.Manager,
	c cache.Cache,
	bus events.EventBus,
	logger *zap.Logger,
) (*ServiceCollection, error) {
	repos := repositories.NewCollection(db, logger)

	resolver := NewDefaultStrategyResolver(repos.Activities, logger)
	badgeService := NewBadgeService(repos.Badges, resolver, bus, c, logger)
	tradeService := NewTradeService(repos.Trades, repos.Badges, repos.Users, bus, c, logger)
	activityService := NewActivityService(repos.Activities, bus, logger)

	if err := RegisterAwardHandlers(bus, badgeService, logger); err != nil {
		return nil, fmt.Errorf("failed to register award handlers: %w", err)
	}
	if err := RegisterProfileActivityHandler(bus, activityService, logger); err != nil {
		return nil, fmt.Errorf("failed to register profile activity handler: %w", err)
	}

	return &ServiceCollection{
		BadgeService:    badgeService,
		TradeService:    tradeService,
		ActivityService: activityService,
		Repositories:    repos,
		Cache:           c,
		EventBus:        bus,
		Logger:          logger,
		Config:          cfg,
		DBManager:       db,
	}, nil
}

// Health checks the shared infrastructure.
func (sc *ServiceCollection) Health(ctx context.Context) error {
	if err := sc.DBManager.Health(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := sc.Cache.Health(ctx); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := sc.EventBus.Health(); err != nil {
		return fmt.Errorf("event bus: %w", err)
	}
	return nil
}

// Shutdown stops background processing.
func (sc *ServiceCollection) Shutdown(ctx context.Context) error {
	if err := sc.EventBus.Stop(ctx); err != nil {
		return err
	}
	return sc.Cache.Close()
}
