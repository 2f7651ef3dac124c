package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

type ApplicationRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewApplicationRepository(db *sql.DB, logger logger.Logger) domain.ApplicationRepository {
	return &ApplicationRepository{
		db:     db,
		logger: logger,
	}
}

// FindAll loads application rows only; interactions are attached by the
// caller through the interaction repository.
func (r *ApplicationRepository) FindAll(ctx context.Context) (applications []*domain.Application, err error) {
	defer func(start time.Time) { observe("find_all", "application", start, err) }(time.Now())

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, student_id, offer_id, application_date, status
		FROM applications
		ORDER BY id`)
	if err != nil {
		r.logger.Error("Could not list applications", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("could not list applications: %w", err)
	}
	defer rows.Close()

	applications = make([]*domain.Application, 0)
	for rows.Next() {
		var application domain.Application
		var status string

		err := rows.Scan(
			&application.ID,
			&application.StudentID,
			&application.OfferID,
			&application.CreatedAt,
			&status,
		)
		if err != nil {
			r.logger.Error("Could not read application row", map[string]interface{}{"error": err.Error()})
			return nil, fmt.Errorf("could not read application row: %w", err)
		}

		application.Status = domain.ApplicationStatus(status)
		application.Interactions = make([]*domain.Interaction, 0)
		applications = append(applications, &application)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("could not read application rows: %w", err)
	}

	return applications, nil
}

func (r *ApplicationRepository) Create(ctx context.Context, application *domain.Application) (err error) {
	defer func(start time.Time) { observe("create", "application", start, err) }(time.Now())

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO applications (student_id, offer_id, application_date, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		application.StudentID,
		application.OfferID,
		application.CreatedAt,
		string(application.Status),
	).Scan(&application.ID)
	if err != nil {
		r.logger.Error("Could not create application", map[string]interface{}{
			"student_id": application.StudentID,
			"offer_id":   application.OfferID,
			"error":      err.Error(),
		})
		return fmt.Errorf("could not create application: %w", err)
	}

	return nil
}

func (r *ApplicationRepository) UpdateStatus(ctx context.Context, id int64, status domain.ApplicationStatus) (err error) {
	defer func(start time.Time) { observe("update_status", "application", start, err) }(time.Now())

	res, err := r.db.ExecContext(ctx, `UPDATE applications SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		r.logger.Error("Could not update application status", map[string]interface{}{"id": id, "status": status, "error": err.Error()})
		return fmt.Errorf("could not update application status: %w", err)
	}

	return expectOneRow(res, "application", id)
}
