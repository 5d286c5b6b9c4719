package repositories

import (
	"errors"

	"planandgo/internal/database"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// BaseRepository provides shared database access for all repositories.
type BaseRepository struct {
	db     *database.Manager
	logger *zap.Logger
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *database.Manager, logger *zap.Logger) *BaseRepository {
	return &BaseRepository{
		db:     db,
		logger: logger,
	}
}

// GetLogger returns the repository logger.
func (r *BaseRepository) GetLogger() *zap.Logger {
	return r.logger
}

// isUniqueViolation reports whether err is a postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// NewCollection wires all repositories against one database manager.
func NewCollection(db *database.Manager, logger *zap.Logger) *Collection {
	return &Collection{
		Badges:     NewBadgeRepository(db, logger),
		Activities: NewActivityRepository(db, logger),
		Trades:     NewTradeRepository(db, logger),
		Users:      NewUserRepository(db, logger),
	}
}
