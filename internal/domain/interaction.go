package domain

import (
	"context"
	"time"
)

type InteractionKind string

const (
	InteractionComment  InteractionKind = "comment"
	InteractionDocument InteractionKind = "document"
)

func (k InteractionKind) Valid() bool {
	return k == InteractionComment || k == InteractionDocument
}

// Interaction is an immutable record attached to one application.
type Interaction struct {
	ID            int64           `json:"id"`
	ApplicationID int64           `json:"application_id"`
	AuthorID      string          `json:"author_id"`
	Kind          InteractionKind `json:"kind"`
	Title         string          `json:"title"`
	Content       string          `json:"content,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type InteractionInput struct {
	AuthorID string          `json:"author_id"`
	Kind     InteractionKind `json:"kind"`
	Title    string          `json:"title"`
	Content  string          `json:"content,omitempty"`
}

type InteractionRepository interface {
	FindByApplicationID(ctx context.Context, applicationID int64) ([]*Interaction, error)
	Create(ctx context.Context, interaction *Interaction) error
}
