package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

type OfferRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewOfferRepository(db *sql.DB, logger logger.Logger) domain.OfferRepository {
	return &OfferRepository{
		db:     db,
		logger: logger,
	}
}

const offerColumns = `id, university, country, area, academic_requirements, economic_requirements, program_id, deleted_at`

func scanOffer(row rowScanner) (*domain.Offer, error) {
	var offer domain.Offer
	var deletedAt sql.NullTime

	err := row.Scan(
		&offer.ID,
		&offer.University,
		&offer.Country,
		&offer.Area,
		&offer.AcademicRequirements,
		&offer.EconomicRequirements,
		&offer.ProgramID,
		&deletedAt,
	)
	if err != nil {
		return nil, err
	}

	if deletedAt.Valid {
		t := deletedAt.Time
		offer.DeletedAt = &t
	}
	return &offer, nil
}

func (r *OfferRepository) FindAll(ctx context.Context) (offers []*domain.Offer, err error) {
	defer func(start time.Time) { observe("find_all", "offer", start, err) }(time.Now())

	rows, err := r.db.QueryContext(ctx, `SELECT `+offerColumns+` FROM offers ORDER BY id`)
	if err != nil {
		r.logger.Error("Could not list offers", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("could not list offers: %w", err)
	}
	defer rows.Close()

	offers = make([]*domain.Offer, 0)
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("could not read offer row: %w", err)
		}
		offers = append(offers, offer)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("could not read offer rows: %w", err)
	}

	return offers, nil
}

func (r *OfferRepository) FindByID(ctx context.Context, id int64) (offer *domain.Offer, err error) {
	defer func(start time.Time) { observe("find", "offer", start, err) }(time.Now())

	offer, err = scanOffer(r.db.QueryRowContext(ctx,
		`SELECT `+offerColumns+` FROM offers WHERE id = $1 AND deleted_at IS NULL`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Could not find offer", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, fmt.Errorf("could not find offer: %w", err)
	}

	return offer, nil
}

func (r *OfferRepository) Create(ctx context.Context, offer *domain.Offer) (err error) {
	defer func(start time.Time) { observe("create", "offer", start, err) }(time.Now())

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO offers (university, country, area, academic_requirements, economic_requirements, program_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		offer.University,
		offer.Country,
		offer.Area,
		offer.AcademicRequirements,
		offer.EconomicRequirements,
		offer.ProgramID,
	).Scan(&offer.ID)
	if err != nil {
		r.logger.Error("Could not create offer", map[string]interface{}{"university": offer.University, "error": err.Error()})
		return fmt.Errorf("could not create offer: %w", err)
	}

	return nil
}

// Delete withdraws the offer. The row stays so historical applications keep
// their foreign key, but FindByID no longer returns it.
func (r *OfferRepository) Delete(ctx context.Context, id int64, at time.Time) (err error) {
	defer func(start time.Time) { observe("delete", "offer", start, err) }(time.Now())

	res, err := r.db.ExecContext(ctx,
		`UPDATE offers SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`, at, id)
	if err != nil {
		r.logger.Error("Could not delete offer", map[string]interface{}{"id": id, "error": err.Error()})
		return fmt.Errorf("could not delete offer: %w", err)
	}

	return expectOneRow(res, "offer", id)
}
