package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

type InteractionRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewInteractionRepository(db *sql.DB, logger logger.Logger) domain.InteractionRepository {
	return &InteractionRepository{
		db:     db,
		logger: logger,
	}
}

// FindByApplicationID returns interactions in insertion order.
func (r *InteractionRepository) FindByApplicationID(ctx context.Context, applicationID int64) (interactions []*domain.Interaction, err error) {
	defer func(start time.Time) { observe("find_by_application", "interaction", start, err) }(time.Now())

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, application_id, author_id, kind, title, content, timestamp
		FROM interactions
		WHERE application_id = $1
		ORDER BY id`, applicationID)
	if err != nil {
		r.logger.Error("Could not list interactions", map[string]interface{}{"application_id": applicationID, "error": err.Error()})
		return nil, fmt.Errorf("could not list interactions: %w", err)
	}
	defer rows.Close()

	interactions = make([]*domain.Interaction, 0)
	for rows.Next() {
		var interaction domain.Interaction
		var kind string
		var content sql.NullString

		err := rows.Scan(
			&interaction.ID,
			&interaction.ApplicationID,
			&interaction.AuthorID,
			&kind,
			&interaction.Title,
			&content,
			&interaction.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("could not read interaction row: %w", err)
		}

		interaction.Kind = domain.InteractionKind(kind)
		interaction.Content = content.String
		interactions = append(interactions, &interaction)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("could not read interaction rows: %w", err)
	}

	return interactions, nil
}

func (r *InteractionRepository) Create(ctx context.Context, interaction *domain.Interaction) (err error) {
	defer func(start time.Time) { observe("create", "interaction", start, err) }(time.Now())

	var content interface{}
	if interaction.Content != "" {
		content = interaction.Content
	}

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO interactions (application_id, author_id, kind, title, content, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		interaction.ApplicationID,
		interaction.AuthorID,
		string(interaction.Kind),
		interaction.Title,
		content,
		interaction.CreatedAt,
	).Scan(&interaction.ID)
	if err != nil {
		r.logger.Error("Could not create interaction", map[string]interface{}{
			"application_id": interaction.ApplicationID,
			"error":          err.Error(),
		})
		return fmt.Errorf("could not create interaction: %w", err)
	}

	return nil
}
