package repository

import (
	"database/sql"
	"time"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
	"exchangeflow/pkg/metrics"
)

// New builds the SQL backed store for every entity type on one handle.
func New(db *sql.DB, logger logger.Logger) domain.Repositories {
	return domain.Repositories{
		Users:        NewUserRepository(db, logger),
		Programs:     NewProgramRepository(db, logger),
		Offers:       NewOfferRepository(db, logger),
		Applications: NewApplicationRepository(db, logger),
		Interactions: NewInteractionRepository(db, logger),
	}
}

func observe(operation, entity string, start time.Time, err error) {
	metrics.RecordDatabaseOperation(operation, entity, err, time.Since(start))
}
