package domain

import (
	"context"
	"time"
)

// Offer (convenio) is an exchange agreement published under a program.
// Offers are never updated; DeletedAt is set once the offer is withdrawn.
type Offer struct {
	ID                   int64      `json:"id"`
	University           string     `json:"university"`
	Country              string     `json:"country"`
	Area                 string     `json:"area"`
	AcademicRequirements string     `json:"academic_requirements"`
	EconomicRequirements string     `json:"economic_requirements"`
	ProgramID            int64      `json:"program_id"`
	DeletedAt            *time.Time `json:"deleted_at,omitempty"`
}

func (o *Offer) IsDeleted() bool {
	return o.DeletedAt != nil
}

func (o *Offer) Clone() *Offer {
	if o == nil {
		return nil
	}
	c := *o
	if o.DeletedAt != nil {
		t := *o.DeletedAt
		c.DeletedAt = &t
	}
	return &c
}

type OfferInput struct {
	University           string `json:"university"`
	Country              string `json:"country"`
	Area                 string `json:"area"`
	AcademicRequirements string `json:"academic_requirements"`
	EconomicRequirements string `json:"economic_requirements"`
	ProgramID            int64  `json:"program_id"`
}

type OfferRepository interface {
	// FindAll returns live and deleted offers.
	FindAll(ctx context.Context) ([]*Offer, error)
	// FindByID returns nil for unknown and deleted offers.
	FindByID(ctx context.Context, id int64) (*Offer, error)
	Create(ctx context.Context, offer *Offer) error
	Delete(ctx context.Context, id int64, at time.Time) error
}

type OfferService interface {
	CreateOffer(ctx context.Context, input OfferInput) (*Offer, error)
	DeleteOffer(ctx context.Context, offerID int64, actingUserID string) error
	GetOffer(ctx context.Context, offerID int64) (*Offer, error)
	ListOffers(ctx context.Context, programID int64) ([]*Offer, error)
}
