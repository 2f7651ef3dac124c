package domain

import (
	"context"
	"time"
)

type ApplicationStatus string

const (
	StatusPending     ApplicationStatus = "pending"
	StatusUnderReview ApplicationStatus = "under_review"
	StatusPreselected ApplicationStatus = "preselected"
	StatusAccepted    ApplicationStatus = "accepted"
	StatusRejected    ApplicationStatus = "rejected"
)

func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusPreselected, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// IsTerminal reports whether no further status change is allowed.
func (s ApplicationStatus) IsTerminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// Application (postulación) is a student's request against one offer.
// Status and Interactions are the only fields that change after creation.
type Application struct {
	ID           int64             `json:"id"`
	StudentID    string            `json:"student_id"`
	OfferID      int64             `json:"offer_id"`
	CreatedAt    time.Time         `json:"created_at"`
	Status       ApplicationStatus `json:"status"`
	Interactions []*Interaction    `json:"interactions"`
}

// Clone copies the application and its interaction list. Interactions are
// immutable and shared.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	c := *a
	c.Interactions = make([]*Interaction, len(a.Interactions))
	copy(c.Interactions, a.Interactions)
	return &c
}

type ApplicationFilterKind string

const (
	FilterAll       ApplicationFilterKind = "all"
	FilterByStudent ApplicationFilterKind = "student"
	FilterByStatus  ApplicationFilterKind = "status"
	FilterByOffer   ApplicationFilterKind = "offer"
)

type ApplicationFilter struct {
	Kind  ApplicationFilterKind
	Value string
}

type ApplicationRepository interface {
	FindAll(ctx context.Context) ([]*Application, error)
	Create(ctx context.Context, application *Application) error
	UpdateStatus(ctx context.Context, id int64, status ApplicationStatus) error
}

type ApplicationService interface {
	CreateApplication(ctx context.Context, programID int64, studentID string, offerID int64) (*Application, error)
	AddInteraction(ctx context.Context, applicationID int64, input InteractionInput) (*Application, error)
	SetApplicationStatus(ctx context.Context, applicationID int64, status ApplicationStatus) (*Application, error)
	AcceptAndRejectRest(ctx context.Context, applicationID int64) error
	GetApplication(ctx context.Context, applicationID int64) (*Application, error)
	ListApplications(ctx context.Context, filter ApplicationFilter) ([]*Application, error)
}

// Repositories bundles the store handles the cache and services operate on.
type Repositories struct {
	Users        UserRepository
	Programs     ProgramRepository
	Offers       OfferRepository
	Applications ApplicationRepository
	Interactions InteractionRepository
}
