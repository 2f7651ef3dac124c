// Package service implements the exchange workflow on top of the cached
// object graph. Every mutating method holds the graph write lock for its
// whole store and cache sequence and writes the store first.
package service

import (
	"context"
	"time"

	"go.uber.org/multierr"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/cache"
	"exchangeflow/pkg/logger"
	"exchangeflow/pkg/metrics"
)

// systemNow is the default clock, at the precision the store keeps.
func systemNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// writeStatus persists a status change and applies it to the cached
// application. The caller holds the write lock.
func writeStatus(ctx context.Context, g *cache.Graph, repo domain.ApplicationRepository, app *domain.Application, status domain.ApplicationStatus) error {
	from := app.Status
	err := g.WriteThrough(ctx, "application", app.ID,
		func(ctx context.Context) error {
			if err := repo.UpdateStatus(ctx, app.ID, status); err != nil {
				return domain.StoreError("update application status", err)
			}
			return nil
		},
		func() { app.Status = status },
	)
	if err != nil {
		return err
	}

	metrics.RecordStatusChange(string(from), string(status))
	return nil
}

// recordInteraction persists the interaction and appends it to the cached
// application. The caller holds the write lock.
func recordInteraction(ctx context.Context, g *cache.Graph, repo domain.InteractionRepository, app *domain.Application, interaction *domain.Interaction) error {
	return g.WriteThrough(ctx, "interaction", app.ID,
		func(ctx context.Context) error {
			if err := repo.Create(ctx, interaction); err != nil {
				return domain.StoreError("record interaction", err)
			}
			return nil
		},
		func() { app.Interactions = append(app.Interactions, interaction) },
	)
}

// cascade collects sibling failures so a cascade can keep going and report
// every application it could not update once it is done.
type cascade struct {
	op     string
	logger logger.Logger
	failed []int64
	err    error
}

func newCascade(op string, logger logger.Logger) *cascade {
	return &cascade{op: op, logger: logger}
}

func (c *cascade) fail(ctx context.Context, applicationID int64, err error) {
	c.logger.ErrorContext(ctx, "Cascade step failed, continuing", map[string]interface{}{
		"cascade":        c.op,
		"application_id": applicationID,
		"error":          err.Error(),
	})
	metrics.RecordCascadeFailure(c.op)
	c.failed = append(c.failed, applicationID)
	c.err = multierr.Append(c.err, err)
}

// result is nil when every step succeeded.
func (c *cascade) result() error {
	if len(c.failed) == 0 {
		return nil
	}
	return &domain.CascadeError{Op: c.op, Failed: c.failed, Err: c.err}
}

var (
	_ domain.ApplicationService = (*ApplicationService)(nil)
	_ domain.ProgramService     = (*ProgramService)(nil)
	_ domain.OfferService       = (*OfferService)(nil)
	_ domain.UserService        = (*UserService)(nil)
	_ domain.AuthService        = (*AuthService)(nil)
)
