package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/multierr"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/cache"
	"exchangeflow/pkg/logger"
)

type ProgramService struct {
	graph  *cache.Graph
	repos  domain.Repositories
	logger logger.Logger
}

func NewProgramService(graph *cache.Graph, repos domain.Repositories, logger logger.Logger) *ProgramService {
	return &ProgramService{
		graph:  graph,
		repos:  repos,
		logger: logger,
	}
}

// CreateProgram opens a new active cycle. Only one program may be active,
// so the previous one has to be finalized first.
func (s *ProgramService) CreateProgram(ctx context.Context, name string, start, end time.Time) (*domain.Program, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewError(domain.ErrInvalidInput, "program name is required")
	}
	if end.Before(start) {
		return nil, domain.NewError(domain.ErrInvalidInput, "program end date precedes its start date")
	}

	s.graph.Lock()
	defer s.graph.Unlock()

	if active := s.graph.ActiveProgram(); active != nil {
		return nil, domain.NewError(domain.ErrAlreadyActive, "program %q is still active", active.Name)
	}

	program := &domain.Program{
		Name:      name,
		StartDate: start.UTC().Truncate(time.Microsecond),
		EndDate:   end.UTC().Truncate(time.Microsecond),
		Status:    domain.ProgramStatusActive,
	}

	err := s.graph.WriteThrough(ctx, "program", name,
		func(ctx context.Context) error {
			if err := s.repos.Programs.Create(ctx, program); err != nil {
				return domain.StoreError("create program", err)
			}
			return nil
		},
		func() { s.graph.PutProgram(program) },
	)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Program created", map[string]interface{}{"program_id": program.ID, "name": name})
	return program.Clone(), nil
}

// FinalizeProgram rejects every application that was not accepted and then
// marks the program finished, even when some rejections failed.
func (s *ProgramService) FinalizeProgram(ctx context.Context, programID int64) error {
	s.graph.Lock()
	defer s.graph.Unlock()

	program := s.graph.Program(programID)
	if program == nil {
		return domain.NewError(domain.ErrNotFound, "program %d not found", programID)
	}
	if !program.IsActive() {
		return domain.NewError(domain.ErrInvalidTransition, "program %q is already finished", program.Name)
	}

	c := newCascade("program_finalization", s.logger)
	for _, app := range s.graph.ProgramApplications(programID) {
		if app.Status == domain.StatusAccepted || app.Status == domain.StatusRejected {
			continue
		}
		if err := writeStatus(ctx, s.graph, s.repos.Applications, app, domain.StatusRejected); err != nil {
			c.fail(ctx, app.ID, err)
		}
	}

	err := s.graph.WriteThrough(ctx, "program", programID,
		func(ctx context.Context) error {
			if err := s.repos.Programs.UpdateStatus(ctx, programID, domain.ProgramStatusFinished); err != nil {
				return domain.StoreError("finish program", err)
			}
			return nil
		},
		func() { program.Status = domain.ProgramStatusFinished },
	)
	if err != nil {
		return multierr.Append(err, c.result())
	}

	s.logger.InfoContext(ctx, "Program finalized", map[string]interface{}{
		"program_id": programID,
		"failed":     len(c.failed),
	})
	return c.result()
}

// DeleteProgram removes the program with its offers, applications and
// interactions. The caller must confirm explicitly.
func (s *ProgramService) DeleteProgram(ctx context.Context, programID int64, confirmed bool) error {
	if !confirmed {
		return domain.NewError(domain.ErrConfirmationRequired, "deleting program %d removes all its offers and applications, confirm to proceed", programID)
	}

	s.graph.Lock()
	defer s.graph.Unlock()

	program := s.graph.Program(programID)
	if program == nil {
		return domain.NewError(domain.ErrNotFound, "program %d not found", programID)
	}

	err := s.graph.WriteThrough(ctx, "program", programID,
		func(ctx context.Context) error {
			if err := s.repos.Programs.Delete(ctx, programID); err != nil {
				return domain.StoreError("delete program", err)
			}
			return nil
		},
		func() { s.graph.RemoveProgram(programID) },
	)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "Program deleted", map[string]interface{}{"program_id": programID, "name": program.Name})
	return nil
}

func (s *ProgramService) GetProgram(ctx context.Context, programID int64) (*domain.Program, error) {
	s.graph.RLock()
	defer s.graph.RUnlock()

	program := s.graph.Program(programID)
	if program == nil {
		return nil, domain.NewError(domain.ErrNotFound, "program %d not found", programID)
	}
	return program.Clone(), nil
}

func (s *ProgramService) ListPrograms(ctx context.Context) ([]*domain.Program, error) {
	s.graph.RLock()
	defer s.graph.RUnlock()

	programs := s.graph.Programs()
	out := make([]*domain.Program, len(programs))
	for i, p := range programs {
		out[i] = p.Clone()
	}
	return out, nil
}

func (s *ProgramService) ActiveProgram(ctx context.Context) (*domain.Program, error) {
	s.graph.RLock()
	defer s.graph.RUnlock()

	program := s.graph.ActiveProgram()
	if program == nil {
		return nil, domain.NewError(domain.ErrNotFound, "no active program")
	}
	return program.Clone(), nil
}
