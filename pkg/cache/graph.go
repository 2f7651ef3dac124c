// Package cache keeps the in-memory object graph that serves every read
// path. Each entity has one canonical instance; cross references are ids
// resolved through the accessors below.
//
// Accessors and mutators do not lock. Callers hold Lock or RLock for the
// whole compound operation they perform.
package cache

import (
	"sort"
	"sync"
	"time"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
	"exchangeflow/pkg/metrics"
)

type Graph struct {
	mu     sync.RWMutex
	repos  domain.Repositories
	logger logger.Logger

	users         map[string]*domain.User
	programs      map[int64]*domain.Program
	offers        map[int64]*domain.Offer
	retiredOffers map[int64]*domain.Offer
	applications  map[int64]*domain.Application

	programApps   map[int64][]int64
	programOffers map[int64][]int64
}

func newGraph(repos domain.Repositories, logger logger.Logger) *Graph {
	return &Graph{
		repos:         repos,
		logger:        logger,
		users:         make(map[string]*domain.User),
		programs:      make(map[int64]*domain.Program),
		offers:        make(map[int64]*domain.Offer),
		retiredOffers: make(map[int64]*domain.Offer),
		applications:  make(map[int64]*domain.Application),
		programApps:   make(map[int64][]int64),
		programOffers: make(map[int64][]int64),
	}
}

func (g *Graph) Lock()    { g.mu.Lock() }
func (g *Graph) Unlock()  { g.mu.Unlock() }
func (g *Graph) RLock()   { g.mu.RLock() }
func (g *Graph) RUnlock() { g.mu.RUnlock() }

func (g *Graph) User(id string) *domain.User {
	return g.users[id]
}

func (g *Graph) Program(id int64) *domain.Program {
	return g.programs[id]
}

// Offer returns live offers only, like a fresh store lookup would.
func (g *Graph) Offer(id int64) *domain.Offer {
	return g.offers[id]
}

func (g *Graph) Application(id int64) *domain.Application {
	return g.applications[id]
}

// OfferOf resolves the application's offer, including an offer deleted
// after the application was loaded.
func (g *Graph) OfferOf(app *domain.Application) *domain.Offer {
	if o, ok := g.offers[app.OfferID]; ok {
		return o
	}
	return g.retiredOffers[app.OfferID]
}

func (g *Graph) ProgramOf(app *domain.Application) *domain.Program {
	offer := g.OfferOf(app)
	if offer == nil {
		return nil
	}
	return g.programs[offer.ProgramID]
}

func (g *Graph) StudentOf(app *domain.Application) *domain.User {
	return g.users[app.StudentID]
}

func (g *Graph) AuthorOf(interaction *domain.Interaction) *domain.User {
	return g.users[interaction.AuthorID]
}

func (g *Graph) ActiveProgram() *domain.Program {
	for _, p := range g.Programs() {
		if p.IsActive() {
			return p
		}
	}
	return nil
}

// Offers returns live offers ordered by id.
func (g *Graph) Offers() []*domain.Offer {
	out := make([]*domain.Offer, 0, len(g.offers))
	for _, o := range g.offers {
		out = append(out, o)
	}
	sortOffers(out)
	return out
}

// Programs returns programs ordered by id.
func (g *Graph) Programs() []*domain.Program {
	out := make([]*domain.Program, 0, len(g.programs))
	for _, p := range g.programs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ProgramOffers returns the live offers of a program ordered by id.
func (g *Graph) ProgramOffers(programID int64) []*domain.Offer {
	ids := g.programOffers[programID]
	out := make([]*domain.Offer, 0, len(ids))
	for _, id := range ids {
		if o, ok := g.offers[id]; ok {
			out = append(out, o)
		}
	}
	sortOffers(out)
	return out
}

// ProgramApplications returns the applications owned by a program in
// insertion order, which is stable across calls.
func (g *Graph) ProgramApplications(programID int64) []*domain.Application {
	ids := g.programApps[programID]
	out := make([]*domain.Application, 0, len(ids))
	for _, id := range ids {
		if a, ok := g.applications[id]; ok {
			out = append(out, a)
		}
	}
	return out
}

// StudentApplications scans all applications for the student's id.
func (g *Graph) StudentApplications(studentID string) []*domain.Application {
	out := make([]*domain.Application, 0)
	for _, a := range g.Applications() {
		if a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out
}

func (g *Graph) OfferApplications(offerID int64) []*domain.Application {
	out := make([]*domain.Application, 0)
	for _, a := range g.Applications() {
		if a.OfferID == offerID {
			out = append(out, a)
		}
	}
	return out
}

// Applications returns every cached application ordered by id.
func (g *Graph) Applications() []*domain.Application {
	out := make([]*domain.Application, 0, len(g.applications))
	for _, a := range g.applications {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Users returns users ordered by id.
func (g *Graph) Users() []*domain.User {
	out := make([]*domain.User, 0, len(g.users))
	for _, u := range g.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (g *Graph) PutUser(u *domain.User) {
	g.users[u.ID] = u
	g.publishSizes()
}

func (g *Graph) PutProgram(p *domain.Program) {
	g.programs[p.ID] = p
	g.publishSizes()
}

func (g *Graph) PutOffer(o *domain.Offer) {
	if _, ok := g.offers[o.ID]; !ok {
		g.programOffers[o.ProgramID] = append(g.programOffers[o.ProgramID], o.ID)
	}
	g.offers[o.ID] = o
	g.publishSizes()
}

// RetireOffer hides the offer from lookups while keeping it resolvable
// through OfferOf for the applications that reference it.
func (g *Graph) RetireOffer(id int64, at time.Time) {
	offer, ok := g.offers[id]
	if !ok {
		return
	}
	offer.DeletedAt = &at
	delete(g.offers, id)
	g.retiredOffers[id] = offer
	g.publishSizes()
}

func (g *Graph) PutApplication(a *domain.Application) {
	if _, ok := g.applications[a.ID]; !ok {
		if offer := g.OfferOf(a); offer != nil {
			g.programApps[offer.ProgramID] = append(g.programApps[offer.ProgramID], a.ID)
		}
	}
	g.applications[a.ID] = a
	g.publishSizes()
}

// RemoveProgram drops the program and everything it owns.
func (g *Graph) RemoveProgram(id int64) {
	for _, appID := range g.programApps[id] {
		delete(g.applications, appID)
	}
	for _, offerID := range g.programOffers[id] {
		delete(g.offers, offerID)
		delete(g.retiredOffers, offerID)
	}
	delete(g.programApps, id)
	delete(g.programOffers, id)
	delete(g.programs, id)
	g.publishSizes()
}

func (g *Graph) publishSizes() {
	metrics.SetCachedEntities("user", len(g.users))
	metrics.SetCachedEntities("program", len(g.programs))
	metrics.SetCachedEntities("offer", len(g.offers))
	metrics.SetCachedEntities("application", len(g.applications))
}
