package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

type UserRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewUserRepository(db *sql.DB, logger logger.Logger) domain.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

const userColumns = `
	u.id, u.name, u.email, u.password, u.role, u.blocked, u.failed_attempts, u.created_at,
	s.major, s.gpa, s.semesters`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var user domain.User
	var role string
	var major sql.NullString
	var gpa sql.NullFloat64
	var semesters sql.NullInt64

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.Blocked,
		&user.FailedAttempts,
		&user.CreatedAt,
		&major,
		&gpa,
		&semesters,
	)
	if err != nil {
		return nil, err
	}

	user.Role = domain.Role(role)
	if major.Valid {
		user.Student = &domain.StudentProfile{
			Major:     major.String,
			GPA:       gpa.Float64,
			Semesters: int(semesters.Int64),
		}
	}

	return &user, nil
}

func (r *UserRepository) FindAll(ctx context.Context) (users []*domain.User, err error) {
	defer func(start time.Time) { observe("find_all", "user", start, err) }(time.Now())

	query := `SELECT` + userColumns + `
		FROM users u
		LEFT JOIN students s ON s.user_id = u.id
		ORDER BY u.id`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Could not list users", map[string]interface{}{"error": err.Error()})
		return nil, fmt.Errorf("could not list users: %w", err)
	}
	defer rows.Close()

	users = make([]*domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			r.logger.Error("Could not read user row", map[string]interface{}{"error": err.Error()})
			return nil, fmt.Errorf("could not read user row: %w", err)
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("could not read user rows: %w", err)
	}

	return users, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (user *domain.User, err error) {
	defer func(start time.Time) { observe("find", "user", start, err) }(time.Now())

	query := `SELECT` + userColumns + `
		FROM users u
		LEFT JOIN students s ON s.user_id = u.id
		WHERE u.id = $1`

	user, err = scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Could not find user", map[string]interface{}{"id": id, "error": err.Error()})
		return nil, fmt.Errorf("could not find user: %w", err)
	}

	return user, nil
}

// Create inserts the user row and, for students, the students row.
func (r *UserRepository) Create(ctx context.Context, user *domain.User) (err error) {
	defer func(start time.Time) { observe("create", "user", start, err) }(time.Now())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, name, email, password, role, blocked, failed_attempts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		user.Blocked,
		user.FailedAttempts,
		user.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Could not create user", map[string]interface{}{"id": user.ID, "error": err.Error()})
		return fmt.Errorf("could not create user: %w", err)
	}

	if user.Student != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO students (user_id, major, gpa, semesters)
			VALUES ($1, $2, $3, $4)`,
			user.ID,
			user.Student.Major,
			user.Student.GPA,
			user.Student.Semesters,
		)
		if err != nil {
			r.logger.Error("Could not create student profile", map[string]interface{}{"id": user.ID, "error": err.Error()})
			return fmt.Errorf("could not create student profile: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit user: %w", err)
	}

	return nil
}

// Update persists profile fields and login counters. The role column is
// never written after creation.
func (r *UserRepository) Update(ctx context.Context, user *domain.User) (err error) {
	defer func(start time.Time) { observe("update", "user", start, err) }(time.Now())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		UPDATE users
		SET name = $1, email = $2, password = $3, blocked = $4, failed_attempts = $5
		WHERE id = $6`,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Blocked,
		user.FailedAttempts,
		user.ID,
	)
	if err != nil {
		r.logger.Error("Could not update user", map[string]interface{}{"id": user.ID, "error": err.Error()})
		return fmt.Errorf("could not update user: %w", err)
	}
	if err = expectOneRow(res, "user", user.ID); err != nil {
		return err
	}

	if user.Student != nil {
		_, err = tx.ExecContext(ctx, `
			UPDATE students
			SET major = $1, gpa = $2, semesters = $3
			WHERE user_id = $4`,
			user.Student.Major,
			user.Student.GPA,
			user.Student.Semesters,
			user.ID,
		)
		if err != nil {
			r.logger.Error("Could not update student profile", map[string]interface{}{"id": user.ID, "error": err.Error()})
			return fmt.Errorf("could not update student profile: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("could not commit user: %w", err)
	}

	return nil
}

func expectOneRow(res sql.Result, entity string, id interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", entity, id, domain.ErrNotFound)
	}
	return nil
}
