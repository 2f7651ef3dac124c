package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"exchangeflow/internal/database/databasetest"
	"exchangeflow/internal/domain"
	"exchangeflow/internal/repository"
	"exchangeflow/pkg/cache"
	"exchangeflow/pkg/logger"
	"exchangeflow/pkg/session"
)

const password = "s3cret"

// stepClock advances one minute per reading so creation order is visible
// in timestamps.
type stepClock struct {
	t time.Time
}

func (c *stepClock) Now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

type env struct {
	db    *sql.DB
	path  string
	repos domain.Repositories
	graph *cache.Graph

	apps     *ApplicationService
	programs *ProgramService
	offers   *OfferService
	users    *UserService
	auth     *AuthService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, path := databasetest.Open(t)
	return build(t, db, path)
}

func build(t *testing.T, db *sql.DB, path string) *env {
	t.Helper()

	repos := repository.New(db, logger.Nop())
	graph, err := cache.Load(context.Background(), repos, logger.Nop())
	require.NoError(t, err)

	e := &env{
		db:       db,
		path:     path,
		repos:    repos,
		graph:    graph,
		apps:     NewApplicationService(graph, repos, logger.Nop()),
		programs: NewProgramService(graph, repos, logger.Nop()),
		offers:   NewOfferService(graph, repos, logger.Nop()),
		users:    NewUserService(graph, repos.Users, logger.Nop()),
		auth: NewAuthService(graph, repos.Users, session.NewIssuer("test-secret", time.Hour),
			session.NewMemoryStore(), 3, logger.Nop()),
	}

	clock := &stepClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	e.apps.now = clock.Now
	e.offers.now = clock.Now
	e.users.now = clock.Now
	e.users.bcryptCost = bcrypt.MinCost
	return e
}

// reopen loads a fresh graph from the same store file.
func (e *env) reopen(t *testing.T) *env {
	t.Helper()
	return build(t, databasetest.Reopen(t, e.path), e.path)
}

func (e *env) student(t *testing.T, id string) *domain.User {
	t.Helper()
	u, err := e.users.RegisterUser(context.Background(), domain.UserInput{
		ID:       id,
		Name:     "Student " + id,
		Email:    id + "@uni.cl",
		Password: password,
		Role:     domain.RoleStudent,
		Student:  &domain.StudentProfile{Major: "Engineering", GPA: 5.8, Semesters: 6},
	})
	require.NoError(t, err)
	return u
}

func (e *env) member(t *testing.T, id string, role domain.Role) *domain.User {
	t.Helper()
	u, err := e.users.RegisterUser(context.Background(), domain.UserInput{
		ID:       id,
		Name:     string(role) + " " + id,
		Email:    id + "@uni.cl",
		Password: password,
		Role:     role,
	})
	require.NoError(t, err)
	return u
}

func (e *env) program(t *testing.T, name string) *domain.Program {
	t.Helper()
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	p, err := e.programs.CreateProgram(context.Background(), name, start, start.AddDate(0, 10, 0))
	require.NoError(t, err)
	return p
}

func (e *env) offer(t *testing.T, programID int64, university string) *domain.Offer {
	t.Helper()
	o, err := e.offers.CreateOffer(context.Background(), domain.OfferInput{
		University: university,
		Country:    "Japan",
		Area:       "Engineering",
		ProgramID:  programID,
	})
	require.NoError(t, err)
	return o
}

func (e *env) apply(t *testing.T, programID int64, studentID string, offerID int64) *domain.Application {
	t.Helper()
	a, err := e.apps.CreateApplication(context.Background(), programID, studentID, offerID)
	require.NoError(t, err)
	return a
}

func (e *env) status(t *testing.T, applicationID int64) domain.ApplicationStatus {
	t.Helper()
	a, err := e.apps.GetApplication(context.Background(), applicationID)
	require.NoError(t, err)
	return a.Status
}

// flakyApplications fails status writes for the listed application ids.
type flakyApplications struct {
	domain.ApplicationRepository
	failOn map[int64]bool
}

func (f *flakyApplications) UpdateStatus(ctx context.Context, id int64, status domain.ApplicationStatus) error {
	if f.failOn[id] {
		return errors.New("disk I/O error")
	}
	return f.ApplicationRepository.UpdateStatus(ctx, id, status)
}

func (e *env) withFlakyStatusWrites(failOn ...int64) domain.Repositories {
	repos := e.repos
	flaky := &flakyApplications{ApplicationRepository: e.repos.Applications, failOn: make(map[int64]bool)}
	for _, id := range failOn {
		flaky.failOn[id] = true
	}
	repos.Applications = flaky
	return repos
}
