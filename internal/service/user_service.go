package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/cache"
	"exchangeflow/pkg/logger"
)

type UserService struct {
	graph      *cache.Graph
	repo       domain.UserRepository
	logger     logger.Logger
	now        func() time.Time
	bcryptCost int
}

func NewUserService(graph *cache.Graph, repo domain.UserRepository, logger logger.Logger) *UserService {
	return &UserService{
		graph:      graph,
		repo:       repo,
		logger:     logger,
		now:        systemNow,
		bcryptCost: bcrypt.DefaultCost,
	}
}

func (s *UserService) RegisterUser(ctx context.Context, input domain.UserInput) (*domain.User, error) {
	if err := validateUserInput(input); err != nil {
		return nil, err
	}

	s.graph.Lock()
	defer s.graph.Unlock()

	return s.create(ctx, input)
}

// SignUp registers on behalf of actor, which may be nil. Students register
// themselves. Staff and auditor accounts need a staff actor once any staff
// account exists.
func (s *UserService) SignUp(ctx context.Context, input domain.UserInput, actor *domain.User) (*domain.User, error) {
	if err := validateUserInput(input); err != nil {
		return nil, err
	}

	s.graph.Lock()
	defer s.graph.Unlock()

	if input.Role != domain.RoleStudent && s.hasStaff() {
		switch {
		case actor == nil:
			return nil, domain.NewError(domain.ErrUnauthorized, "a staff session is required to register %s accounts", input.Role)
		case actor.Role != domain.RoleStaff:
			return nil, domain.NewError(domain.ErrForbidden, "%s users cannot register %s accounts", actor.Role, input.Role)
		}
	}

	return s.create(ctx, input)
}

func (s *UserService) hasStaff() bool {
	for _, u := range s.graph.Users() {
		if u.Role == domain.RoleStaff {
			return true
		}
	}
	return false
}

// create assumes the graph write lock is held.
func (s *UserService) create(ctx context.Context, input domain.UserInput) (*domain.User, error) {
	id := strings.TrimSpace(input.ID)
	if s.graph.User(id) != nil {
		return nil, domain.NewError(domain.ErrUserExists, "RUT %s is already registered", id)
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           id,
		Name:         strings.TrimSpace(input.Name),
		Email:        strings.TrimSpace(input.Email),
		PasswordHash: hash,
		Role:         input.Role,
		CreatedAt:    s.now(),
	}
	if input.Student != nil {
		profile := *input.Student
		user.Student = &profile
	}

	err = s.graph.WriteThrough(ctx, "user", user.ID,
		func(ctx context.Context) error {
			if err := s.repo.Create(ctx, user); err != nil {
				return domain.StoreError("create user", err)
			}
			return nil
		},
		func() { s.graph.PutUser(user) },
	)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "User registered", map[string]interface{}{"user_id": user.ID, "role": user.Role})
	return user.Clone(), nil
}

// UpdateProfile changes contact data, password and the student payload.
// The role is fixed at registration.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, input domain.ProfileInput) (*domain.User, error) {
	s.graph.Lock()
	defer s.graph.Unlock()

	user := s.graph.User(userID)
	if user == nil {
		return nil, domain.NewError(domain.ErrNotFound, "RUT %s not registered", userID)
	}

	next := user.Clone()
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, domain.NewError(domain.ErrInvalidInput, "name is required")
		}
		next.Name = strings.TrimSpace(*input.Name)
	}
	if input.Email != nil {
		next.Email = strings.TrimSpace(*input.Email)
	}
	if input.Password != nil {
		if *input.Password == "" {
			return nil, domain.NewError(domain.ErrInvalidInput, "password is required")
		}
		hash, err := s.hashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		next.PasswordHash = hash
	}
	if input.Student != nil {
		if !user.IsStudent() {
			return nil, domain.NewError(domain.ErrInvalidInput, "user %s is not a student", userID)
		}
		profile := *input.Student
		next.Student = &profile
	}

	err := s.graph.WriteThrough(ctx, "user", userID,
		func(ctx context.Context) error {
			if err := s.repo.Update(ctx, next); err != nil {
				return domain.StoreError("update user", err)
			}
			return nil
		},
		func() { *user = *next },
	)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Profile updated", map[string]interface{}{"user_id": userID})
	return user.Clone(), nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.graph.RLock()
	defer s.graph.RUnlock()

	user := s.graph.User(id)
	if user == nil {
		return nil, domain.NewError(domain.ErrNotFound, "RUT %s not registered", id)
	}
	return user.Clone(), nil
}

// ListUsers returns every user, or only those with the given role.
func (s *UserService) ListUsers(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	if role != "" && !role.Valid() {
		return nil, domain.NewError(domain.ErrInvalidInput, "unknown role %q", role)
	}

	s.graph.RLock()
	defer s.graph.RUnlock()

	out := make([]*domain.User, 0)
	for _, u := range s.graph.Users() {
		if role == "" || u.Role == role {
			out = append(out, u.Clone())
		}
	}
	return out, nil
}

func (s *UserService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		s.logger.Error("Could not hash password", map[string]interface{}{"error": err.Error()})
		return "", domain.NewError(domain.ErrInvalidInput, "password cannot be used: %v", err)
	}
	return string(hash), nil
}

func validateUserInput(input domain.UserInput) error {
	switch {
	case strings.TrimSpace(input.ID) == "":
		return domain.NewError(domain.ErrInvalidInput, "RUT is required")
	case strings.TrimSpace(input.Name) == "":
		return domain.NewError(domain.ErrInvalidInput, "name is required")
	case input.Password == "":
		return domain.NewError(domain.ErrInvalidInput, "password is required")
	case !input.Role.Valid():
		return domain.NewError(domain.ErrInvalidInput, "unknown role %q", input.Role)
	case input.Role == domain.RoleStudent && input.Student == nil:
		return domain.NewError(domain.ErrInvalidInput, "student profile is required for students")
	case input.Role != domain.RoleStudent && input.Student != nil:
		return domain.NewError(domain.ErrInvalidInput, "only students carry a student profile")
	}
	return nil
}
