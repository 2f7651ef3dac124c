package cache

import (
	"context"
	"fmt"
	"time"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

// Load materializes the whole graph from the store.
func Load(ctx context.Context, repos domain.Repositories, logger logger.Logger) (*Graph, error) {
	g := newGraph(repos, logger)
	if err := g.Reload(ctx); err != nil {
		return nil, err
	}
	return g, nil
}

// Reload rebuilds the graph from the store and swaps it in. The write lock is
// held from the first store read to the swap so no write lands in between.
// On failure the previous graph stays in place.
func (g *Graph) Reload(ctx context.Context) error {
	start := time.Now()
	g.logger.InfoContext(ctx, "Cache warm-up started", map[string]interface{}{})

	g.mu.Lock()
	defer g.mu.Unlock()

	next := newGraph(g.repos, g.logger)
	if err := next.warmUp(ctx); err != nil {
		g.logger.ErrorContext(ctx, "Cache warm-up failed", map[string]interface{}{
			"duration": time.Since(start).String(),
			"error":    err.Error(),
		})
		return err
	}

	g.users = next.users
	g.programs = next.programs
	g.offers = next.offers
	g.retiredOffers = next.retiredOffers
	g.applications = next.applications
	g.programApps = next.programApps
	g.programOffers = next.programOffers
	g.publishSizes()

	g.logger.InfoContext(ctx, "Cache warm-up finished", map[string]interface{}{
		"duration":     time.Since(start).String(),
		"users":        len(next.users),
		"programs":     len(next.programs),
		"offers":       len(next.offers) + len(next.retiredOffers),
		"applications": len(next.applications),
	})
	return nil
}

// warmUp fills an unshared graph. Users, offers and programs load first,
// then applications against them, then each application's interactions,
// and finally the program indexes are linked.
func (g *Graph) warmUp(ctx context.Context) error {
	users, err := g.repos.Users.FindAll(ctx)
	if err != nil {
		return domain.StoreError("load users", err)
	}
	for _, u := range users {
		g.users[u.ID] = u
	}

	offers, err := g.repos.Offers.FindAll(ctx)
	if err != nil {
		return domain.StoreError("load offers", err)
	}
	for _, o := range offers {
		if o.IsDeleted() {
			g.retiredOffers[o.ID] = o
		} else {
			g.offers[o.ID] = o
		}
	}

	programs, err := g.repos.Programs.FindAll(ctx)
	if err != nil {
		return domain.StoreError("load programs", err)
	}
	for _, p := range programs {
		g.programs[p.ID] = p
	}

	apps, err := g.repos.Applications.FindAll(ctx)
	if err != nil {
		return domain.StoreError("load applications", err)
	}
	for _, a := range apps {
		if g.OfferOf(a) == nil {
			g.logger.Warn("Skipping application with unknown offer", map[string]interface{}{
				"application_id": a.ID,
				"offer_id":       a.OfferID,
			})
			continue
		}
		if g.users[a.StudentID] == nil {
			g.logger.Warn("Skipping application with unknown student", map[string]interface{}{
				"application_id": a.ID,
				"student_id":     a.StudentID,
			})
			continue
		}
		g.applications[a.ID] = a
	}

	for _, a := range g.Applications() {
		interactions, err := g.repos.Interactions.FindByApplicationID(ctx, a.ID)
		if err != nil {
			return domain.StoreError(fmt.Sprintf("load interactions of application %d", a.ID), err)
		}
		a.Interactions = make([]*domain.Interaction, 0, len(interactions))
		for _, i := range interactions {
			if g.users[i.AuthorID] == nil {
				g.logger.Warn("Skipping interaction with unknown author", map[string]interface{}{
					"interaction_id": i.ID,
					"author_id":      i.AuthorID,
				})
				continue
			}
			a.Interactions = append(a.Interactions, i)
		}
	}

	g.link()
	return nil
}

func (g *Graph) link() {
	for _, o := range allOffers(g.offers, g.retiredOffers) {
		if g.programs[o.ProgramID] == nil {
			g.logger.Warn("Offer references unknown program", map[string]interface{}{
				"offer_id":   o.ID,
				"program_id": o.ProgramID,
			})
			continue
		}
		g.programOffers[o.ProgramID] = append(g.programOffers[o.ProgramID], o.ID)
	}

	for _, a := range g.Applications() {
		program := g.ProgramOf(a)
		if program == nil {
			continue
		}
		g.programApps[program.ID] = append(g.programApps[program.ID], a.ID)
	}
}

func allOffers(sets ...map[int64]*domain.Offer) []*domain.Offer {
	out := make([]*domain.Offer, 0)
	for _, set := range sets {
		for _, o := range set {
			out = append(out, o)
		}
	}
	sortOffers(out)
	return out
}
