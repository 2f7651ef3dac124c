package domain

import (
	"context"
	"time"
)

type ProgramStatus string

const (
	ProgramStatusActive   ProgramStatus = "active"
	ProgramStatusFinished ProgramStatus = "finished"
)

// Program is a time-boxed exchange cycle. At most one program is active.
type Program struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	StartDate time.Time     `json:"start_date"`
	EndDate   time.Time     `json:"end_date"`
	Status    ProgramStatus `json:"status"`
}

func (p *Program) IsActive() bool {
	return p.Status == ProgramStatusActive
}

func (p *Program) Clone() *Program {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

type ProgramRepository interface {
	FindAll(ctx context.Context) ([]*Program, error)
	FindByID(ctx context.Context, id int64) (*Program, error)
	Create(ctx context.Context, program *Program) error
	UpdateStatus(ctx context.Context, id int64, status ProgramStatus) error
	// Delete removes the program with its offers, applications and interactions.
	Delete(ctx context.Context, id int64) error
}

type ProgramService interface {
	CreateProgram(ctx context.Context, name string, start, end time.Time) (*Program, error)
	FinalizeProgram(ctx context.Context, programID int64) error
	DeleteProgram(ctx context.Context, programID int64, confirmed bool) error
	GetProgram(ctx context.Context, programID int64) (*Program, error)
	ListPrograms(ctx context.Context) ([]*Program, error)
	ActiveProgram(ctx context.Context) (*Program, error)
}
