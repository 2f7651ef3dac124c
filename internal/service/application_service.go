package service

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/cache"
	"exchangeflow/pkg/logger"
)

type ApplicationService struct {
	graph  *cache.Graph
	repos  domain.Repositories
	logger logger.Logger
	now    func() time.Time
}

func NewApplicationService(graph *cache.Graph, repos domain.Repositories, logger logger.Logger) *ApplicationService {
	return &ApplicationService{
		graph:  graph,
		repos:  repos,
		logger: logger,
		now:    systemNow,
	}
}

func (s *ApplicationService) CreateApplication(ctx context.Context, programID int64, studentID string, offerID int64) (*domain.Application, error) {
	s.graph.Lock()
	defer s.graph.Unlock()

	program := s.graph.Program(programID)
	if program == nil {
		return nil, domain.NewError(domain.ErrNotFound, "program %d not found", programID)
	}
	if !program.IsActive() {
		return nil, domain.NewError(domain.ErrProgramNotActive, "program %q is not accepting applications", program.Name)
	}

	student := s.graph.User(studentID)
	if student == nil {
		return nil, domain.NewError(domain.ErrNotFound, "RUT %s not registered", studentID)
	}
	if !student.IsStudent() {
		return nil, domain.NewError(domain.ErrInvalidInput, "user %s is not a student", studentID)
	}

	offer := s.graph.Offer(offerID)
	if offer == nil || offer.ProgramID != program.ID {
		return nil, domain.NewError(domain.ErrNotFound, "offer %d not found in program %q", offerID, program.Name)
	}

	for _, existing := range s.graph.StudentApplications(studentID) {
		if existing.OfferID == offerID {
			return nil, domain.NewError(domain.ErrDuplicateApplication,
				"student %s already applied to %s (application %d)", studentID, offer.University, existing.ID)
		}
	}

	app := &domain.Application{
		StudentID:    studentID,
		OfferID:      offerID,
		CreatedAt:    s.now(),
		Status:       domain.StatusPending,
		Interactions: make([]*domain.Interaction, 0),
	}

	err := s.graph.WriteThrough(ctx, "application", offerID,
		func(ctx context.Context) error {
			if err := s.repos.Applications.Create(ctx, app); err != nil {
				return domain.StoreError("create application", err)
			}
			return nil
		},
		func() { s.graph.PutApplication(app) },
	)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Application created", map[string]interface{}{
		"application_id": app.ID,
		"student_id":     studentID,
		"offer_id":       offerID,
	})
	return app.Clone(), nil
}

// AddInteraction records the interaction and then forces the status the
// author's role implies: students reopen the application as pending, staff
// move it under review and auditors leave it as is.
func (s *ApplicationService) AddInteraction(ctx context.Context, applicationID int64, input domain.InteractionInput) (*domain.Application, error) {
	if !input.Kind.Valid() {
		return nil, domain.NewError(domain.ErrInvalidInput, "unknown interaction kind %q", input.Kind)
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "interaction title is required")
	}

	s.graph.Lock()
	defer s.graph.Unlock()

	app := s.graph.Application(applicationID)
	if app == nil {
		return nil, domain.NewError(domain.ErrNotFound, "application %d not found", applicationID)
	}
	author := s.graph.User(input.AuthorID)
	if author == nil {
		return nil, domain.NewError(domain.ErrNotFound, "RUT %s not registered", input.AuthorID)
	}
	if app.Status.IsTerminal() {
		return nil, terminalError(app)
	}

	interaction := &domain.Interaction{
		ApplicationID: app.ID,
		AuthorID:      author.ID,
		Kind:          input.Kind,
		Title:         strings.TrimSpace(input.Title),
		Content:       input.Content,
		CreatedAt:     s.now(),
	}
	if err := recordInteraction(ctx, s.graph, s.repos.Interactions, app, interaction); err != nil {
		return nil, err
	}

	next := app.Status
	switch author.Role {
	case domain.RoleStudent:
		next = domain.StatusPending
	case domain.RoleStaff:
		next = domain.StatusUnderReview
	}
	if next != app.Status {
		if err := writeStatus(ctx, s.graph, s.repos.Applications, app, next); err != nil {
			return nil, err
		}
	}

	s.logger.InfoContext(ctx, "Interaction added", map[string]interface{}{
		"application_id": app.ID,
		"author_id":      author.ID,
		"kind":           interaction.Kind,
		"status":         app.Status,
	})
	return app.Clone(), nil
}

// SetApplicationStatus is the staff path. Accepting runs the acceptance
// cascade before returning.
func (s *ApplicationService) SetApplicationStatus(ctx context.Context, applicationID int64, status domain.ApplicationStatus) (*domain.Application, error) {
	if !status.Valid() {
		return nil, domain.NewError(domain.ErrInvalidInput, "unknown application status %q", status)
	}

	s.graph.Lock()
	defer s.graph.Unlock()

	app := s.graph.Application(applicationID)
	if app == nil {
		return nil, domain.NewError(domain.ErrNotFound, "application %d not found", applicationID)
	}
	if app.Status.IsTerminal() {
		return nil, terminalError(app)
	}

	if status == domain.StatusAccepted {
		if err := s.accept(ctx, app); err != nil {
			return nil, err
		}
		return app.Clone(), nil
	}

	if err := writeStatus(ctx, s.graph, s.repos.Applications, app, status); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Application status set", map[string]interface{}{
		"application_id": app.ID,
		"status":         status,
	})
	return app.Clone(), nil
}

func (s *ApplicationService) AcceptAndRejectRest(ctx context.Context, applicationID int64) error {
	s.graph.Lock()
	defer s.graph.Unlock()

	app := s.graph.Application(applicationID)
	if app == nil {
		return domain.NewError(domain.ErrNotFound, "application %d not found", applicationID)
	}
	if app.Status.IsTerminal() {
		return terminalError(app)
	}

	return s.accept(ctx, app)
}

// accept marks app accepted and rejects the student's other applications in
// the same program. A failed sibling does not stop the loop.
func (s *ApplicationService) accept(ctx context.Context, app *domain.Application) error {
	program := s.graph.ProgramOf(app)
	if program == nil {
		return domain.NewError(domain.ErrNotFound, "program of application %d not found", app.ID)
	}

	if err := writeStatus(ctx, s.graph, s.repos.Applications, app, domain.StatusAccepted); err != nil {
		return err
	}

	c := newCascade("acceptance", s.logger)
	rejected := 0
	for _, sibling := range s.graph.ProgramApplications(program.ID) {
		if sibling.ID == app.ID || sibling.StudentID != app.StudentID {
			continue
		}
		if sibling.Status == domain.StatusRejected {
			continue
		}
		if err := writeStatus(ctx, s.graph, s.repos.Applications, sibling, domain.StatusRejected); err != nil {
			c.fail(ctx, sibling.ID, err)
			continue
		}
		rejected++
	}

	s.logger.InfoContext(ctx, "Application accepted", map[string]interface{}{
		"application_id": app.ID,
		"student_id":     app.StudentID,
		"program_id":     program.ID,
		"rejected":       rejected,
	})
	return c.result()
}

func (s *ApplicationService) GetApplication(ctx context.Context, applicationID int64) (*domain.Application, error) {
	s.graph.RLock()
	defer s.graph.RUnlock()

	app := s.graph.Application(applicationID)
	if app == nil {
		return nil, domain.NewError(domain.ErrNotFound, "application %d not found", applicationID)
	}
	return app.Clone(), nil
}

// ListApplications orders a student's applications newest first, pending
// applications oldest first and everything else by id.
func (s *ApplicationService) ListApplications(ctx context.Context, filter domain.ApplicationFilter) ([]*domain.Application, error) {
	s.graph.RLock()
	defer s.graph.RUnlock()

	var apps []*domain.Application
	switch filter.Kind {
	case domain.FilterAll, "":
		apps = s.graph.Applications()

	case domain.FilterByStudent:
		apps = s.graph.StudentApplications(filter.Value)
		sort.SliceStable(apps, func(i, j int) bool {
			if !apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
				return apps[i].CreatedAt.After(apps[j].CreatedAt)
			}
			return apps[i].ID < apps[j].ID
		})

	case domain.FilterByStatus:
		status := domain.ApplicationStatus(filter.Value)
		if !status.Valid() {
			return nil, domain.NewError(domain.ErrInvalidInput, "unknown application status %q", filter.Value)
		}
		for _, a := range s.graph.Applications() {
			if a.Status == status {
				apps = append(apps, a)
			}
		}
		if status == domain.StatusPending {
			sort.SliceStable(apps, func(i, j int) bool {
				if !apps[i].CreatedAt.Equal(apps[j].CreatedAt) {
					return apps[i].CreatedAt.Before(apps[j].CreatedAt)
				}
				return apps[i].ID < apps[j].ID
			})
		}

	case domain.FilterByOffer:
		offerID, err := strconv.ParseInt(filter.Value, 10, 64)
		if err != nil {
			return nil, domain.NewError(domain.ErrInvalidInput, "invalid offer id %q", filter.Value)
		}
		apps = s.graph.OfferApplications(offerID)

	default:
		return nil, domain.NewError(domain.ErrInvalidInput, "unknown application filter %q", filter.Kind)
	}

	out := make([]*domain.Application, len(apps))
	for i, a := range apps {
		out[i] = a.Clone()
	}
	return out, nil
}

func terminalError(app *domain.Application) error {
	return domain.NewError(domain.ErrInvalidTransition, "application %d is %s and accepts no further changes", app.ID, app.Status)
}
