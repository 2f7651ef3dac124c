package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/cache"
	"exchangeflow/pkg/logger"
)

type OfferService struct {
	graph  *cache.Graph
	repos  domain.Repositories
	logger logger.Logger
	now    func() time.Time
}

func NewOfferService(graph *cache.Graph, repos domain.Repositories, logger logger.Logger) *OfferService {
	return &OfferService{
		graph:  graph,
		repos:  repos,
		logger: logger,
		now:    systemNow,
	}
}

func (s *OfferService) CreateOffer(ctx context.Context, input domain.OfferInput) (*domain.Offer, error) {
	if strings.TrimSpace(input.University) == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "offer university is required")
	}

	s.graph.Lock()
	defer s.graph.Unlock()

	program := s.graph.Program(input.ProgramID)
	if program == nil {
		return nil, domain.NewError(domain.ErrNotFound, "program %d not found", input.ProgramID)
	}
	if !program.IsActive() {
		return nil, domain.NewError(domain.ErrProgramNotActive, "program %q is finished", program.Name)
	}

	offer := &domain.Offer{
		University:           strings.TrimSpace(input.University),
		Country:              input.Country,
		Area:                 input.Area,
		AcademicRequirements: input.AcademicRequirements,
		EconomicRequirements: input.EconomicRequirements,
		ProgramID:            program.ID,
	}

	err := s.graph.WriteThrough(ctx, "offer", offer.University,
		func(ctx context.Context) error {
			if err := s.repos.Offers.Create(ctx, offer); err != nil {
				return domain.StoreError("create offer", err)
			}
			return nil
		},
		func() { s.graph.PutOffer(offer) },
	)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Offer created", map[string]interface{}{"offer_id": offer.ID, "program_id": program.ID})
	return offer.Clone(), nil
}

// DeleteOffer rejects every open application on the offer, leaving a
// comment by the acting staff member on each one before its status changes,
// and then withdraws the offer. Applications keep resolving the withdrawn
// offer for display.
func (s *OfferService) DeleteOffer(ctx context.Context, offerID int64, actingUserID string) error {
	s.graph.Lock()
	defer s.graph.Unlock()

	offer := s.graph.Offer(offerID)
	if offer == nil {
		return domain.NewError(domain.ErrNotFound, "offer %d not found", offerID)
	}
	actor := s.graph.User(actingUserID)
	if actor == nil {
		return domain.NewError(domain.ErrNotFound, "RUT %s not registered", actingUserID)
	}
	if actor.Role != domain.RoleStaff {
		return domain.NewError(domain.ErrForbidden, "only staff can delete offers")
	}

	at := s.now()
	c := newCascade("offer_deletion", s.logger)
	for _, app := range s.graph.OfferApplications(offerID) {
		if app.Status.IsTerminal() {
			continue
		}

		notice := &domain.Interaction{
			ApplicationID: app.ID,
			AuthorID:      actor.ID,
			Kind:          domain.InteractionComment,
			Title:         "Application rejected automatically",
			Content:       fmt.Sprintf("The offer at %s (%s) was withdrawn, so this application was rejected.", offer.University, offer.Country),
			CreatedAt:     at,
		}
		if err := recordInteraction(ctx, s.graph, s.repos.Interactions, app, notice); err != nil {
			c.fail(ctx, app.ID, err)
			continue
		}
		if err := writeStatus(ctx, s.graph, s.repos.Applications, app, domain.StatusRejected); err != nil {
			c.fail(ctx, app.ID, err)
		}
	}

	err := s.graph.WriteThrough(ctx, "offer", offerID,
		func(ctx context.Context) error {
			if err := s.repos.Offers.Delete(ctx, offerID, at); err != nil {
				return domain.StoreError("delete offer", err)
			}
			return nil
		},
		func() { s.graph.RetireOffer(offerID, at) },
	)
	if err != nil {
		return multierr.Append(err, c.result())
	}

	s.logger.InfoContext(ctx, "Offer deleted", map[string]interface{}{
		"offer_id":  offerID,
		"acting_id": actor.ID,
		"failed":    len(c.failed),
	})
	return c.result()
}

func (s *OfferService) GetOffer(ctx context.Context, offerID int64) (*domain.Offer, error) {
	s.graph.RLock()
	defer s.graph.RUnlock()

	offer := s.graph.Offer(offerID)
	if offer == nil {
		return nil, domain.NewError(domain.ErrNotFound, "offer %d not found", offerID)
	}
	return offer.Clone(), nil
}

// ListOffers returns the live offers of a program, or of every program
// when programID is zero.
func (s *OfferService) ListOffers(ctx context.Context, programID int64) ([]*domain.Offer, error) {
	s.graph.RLock()
	defer s.graph.RUnlock()

	var offers []*domain.Offer
	if programID == 0 {
		offers = s.graph.Offers()
	} else {
		if s.graph.Program(programID) == nil {
			return nil, domain.NewError(domain.ErrNotFound, "program %d not found", programID)
		}
		offers = s.graph.ProgramOffers(programID)
	}

	out := make([]*domain.Offer, len(offers))
	for i, o := range offers {
		out[i] = o.Clone()
	}
	return out, nil
}
