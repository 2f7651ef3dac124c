package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

type ProgramRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewProgramRepository(db *sql.DB, logger logger.Logger) domain.ProgramRepository {
	return &ProgramRepository{
		db:     db,
		logger: logger,
	}
}

func scanProgram(row rowScanner) (*domain.Program, error) {
	var program domain.Program
	var status string

	if err := row.Scan(&program.ID, &program.Name, &program.StartDate, &program.EndDate, &status); err != nil {
		return nil, err
	}

	program.Status = domain.ProgramStatus(status)
	return &program, nil
}

func (r *ProgramRepository) FindAll(ctx context.Context) (programs []*domain.Program, err error) {
	defer func(start time.Time) { observe("find_all", "program", start, err) }(time.Now())

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, start_date, end_date, status
		FROM programs
		ORDER BY id`)
	if err != nil {
		r.logger.Error("Could not list programs", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("could not list programs: %w", err)
	}
	defer rows.Close()

	programs = make([]*domain.Program, 0)
	for rows.Next() {
		program, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("could not read program row: %w", err)
		}
		programs = append(programs, program)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("could not read program rows: %w", err)
	}

	return programs, nil
}

func (r *ProgramRepository) FindByID(ctx context.Context, id int64) (program *domain.Program, err error) {
	defer func(start time.Time) { observe("find", "program", start, err) }(time.Now())

	program, err = scanProgram(r.db.QueryRowContext(ctx, `
		SELECT id, name, start_date, end_date, status
		FROM programs
		WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Could not find program", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, fmt.Errorf("could not find program: %w", err)
	}

	return program, nil
}

func (r *ProgramRepository) Create(ctx context.Context, program *domain.Program) (err error) {
	defer func(start time.Time) { observe("create", "program", start, err) }(time.Now())

	err = r.db.QueryRowContext(ctx, `
		INSERT INTO programs (name, start_date, end_date, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		program.Name,
		program.StartDate,
		program.EndDate,
		string(program.Status),
	).Scan(&program.ID)
	if err != nil {
		r.logger.Error("Could not create program", map[string]interface{}{"name": program.Name, "error": err.Error()})
		return fmt.Errorf("could not create program: %w", err)
	}

	return nil
}

func (r *ProgramRepository) UpdateStatus(ctx context.Context, id int64, status domain.ProgramStatus) (err error) {
	defer func(start time.Time) { observe("update_status", "program", start, err) }(time.Now())

	res, err := r.db.ExecContext(ctx, `UPDATE programs SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		r.logger.Error("Could not update program status", map[string]interface{}{"id": id, "error": err.Error()})
		return fmt.Errorf("could not update program status: %w", err)
	}

	return expectOneRow(res, "program", id)
}

// Delete removes interactions, applications, offers and the program row in
// one transaction, children first so foreign keys hold at every step.
func (r *ProgramRepository) Delete(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) { observe("delete", "program", start, err) }(time.Now())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
			r.logger.Error("Program delete rolled back", map[string]interface{}{"id": id, "error": err.Error()})
		}
	}()

	statements := []string{
		`DELETE FROM interactions WHERE application_id IN (
			SELECT a.id FROM applications a JOIN offers o ON o.id = a.offer_id WHERE o.program_id = $1)`,
		`DELETE FROM applications WHERE offer_id IN (SELECT id FROM offers WHERE program_id = $1)`,
		`DELETE FROM offers WHERE program_id = $1`,
	}
	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("could not delete program children: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM programs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("could not delete program: %w", err)
	}
	if err = expectOneRow(res, "program", id); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit program delete: %w", err)
	}

	return nil
}
