package service

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/cache"
	"exchangeflow/pkg/logger"
	"exchangeflow/pkg/metrics"
	"exchangeflow/pkg/session"
)

type AuthService struct {
	graph       *cache.Graph
	repo        domain.UserRepository
	issuer      *session.Issuer
	sessions    session.Store
	maxAttempts int
	logger      logger.Logger
}

func NewAuthService(graph *cache.Graph, repo domain.UserRepository, issuer *session.Issuer, sessions session.Store, maxAttempts int, logger logger.Logger) *AuthService {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	return &AuthService{
		graph:       graph,
		repo:        repo,
		issuer:      issuer,
		sessions:    sessions,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Login checks the password and keeps the failed attempt counter. The
// account is blocked once the counter reaches maxAttempts and a correct
// password resets it. The graph lock covers the counter update only; hashing
// and session storage run outside it.
func (s *AuthService) Login(ctx context.Context, id, password string) (*domain.Session, error) {
	s.graph.RLock()
	user := s.graph.User(id)
	var hash string
	if user != nil {
		hash = user.PasswordHash
	}
	s.graph.RUnlock()
	if user == nil {
		metrics.RecordLogin("unknown_user")
		return nil, domain.NewError(domain.ErrInvalidCredentials, "RUT %s not registered", id)
	}

	matched := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil

	actor, err := s.settle(ctx, id, password, hash, matched)
	if err != nil {
		return nil, err
	}

	sess, err := s.issuer.Issue(actor)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("could not store session: %w", err)
	}

	metrics.RecordLogin("success")
	s.logger.InfoContext(ctx, "User logged in", map[string]interface{}{"user_id": actor.ID, "role": actor.Role})
	return sess, nil
}

// settle applies the outcome of a password check to the counters under the
// write lock and returns a copy of the user on success. A password changed
// since the check is compared again.
func (s *AuthService) settle(ctx context.Context, id, password, checked string, matched bool) (*domain.User, error) {
	s.graph.Lock()
	defer s.graph.Unlock()

	user := s.graph.User(id)
	if user == nil {
		metrics.RecordLogin("unknown_user")
		return nil, domain.NewError(domain.ErrInvalidCredentials, "RUT %s not registered", id)
	}
	if user.Blocked {
		metrics.RecordLogin("locked")
		return nil, domain.NewError(domain.ErrAccountLocked, "account locked after %d failed attempts", s.maxAttempts)
	}
	if user.PasswordHash != checked {
		matched = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
	}
	if !matched {
		return nil, s.recordFailure(ctx, user)
	}

	if user.FailedAttempts != 0 {
		if err := s.writeCounters(ctx, user, 0, false); err != nil {
			return nil, err
		}
	}
	return user.Clone(), nil
}

func (s *AuthService) recordFailure(ctx context.Context, user *domain.User) error {
	attempts := user.FailedAttempts + 1
	blocked := attempts >= s.maxAttempts
	if err := s.writeCounters(ctx, user, attempts, blocked); err != nil {
		return err
	}

	if blocked {
		metrics.RecordLogin("blocked")
		s.logger.WarnContext(ctx, "Account locked", map[string]interface{}{"user_id": user.ID, "attempts": attempts})
		return domain.NewError(domain.ErrInvalidCredentials, "wrong password, account locked after %d failed attempts", attempts)
	}

	metrics.RecordLogin("wrong_password")
	left := s.maxAttempts - attempts
	if left == 1 {
		return domain.NewError(domain.ErrInvalidCredentials, "wrong password, 1 attempt left")
	}
	return domain.NewError(domain.ErrInvalidCredentials, "wrong password, %d attempts left", left)
}

// writeCounters persists the login counters and applies them to the cached
// user. The caller holds the write lock.
func (s *AuthService) writeCounters(ctx context.Context, user *domain.User, attempts int, blocked bool) error {
	next := user.Clone()
	next.FailedAttempts = attempts
	next.Blocked = blocked

	return s.graph.WriteThrough(ctx, "user", user.ID,
		func(ctx context.Context) error {
			if err := s.repo.Update(ctx, next); err != nil {
				return domain.StoreError("update login counters", err)
			}
			return nil
		},
		func() {
			user.FailedAttempts = attempts
			user.Blocked = blocked
		},
	)
}

// Authenticate resolves the user behind a session token.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	sessionID, userID, err := s.issuer.Parse(token)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, domain.NewError(domain.ErrUnauthorized, "session ended, please log in again")
		}
		return nil, fmt.Errorf("could not read session: %w", err)
	}
	if sess.UserID != userID {
		return nil, domain.NewError(domain.ErrUnauthorized, "invalid session token")
	}

	s.graph.RLock()
	defer s.graph.RUnlock()

	user := s.graph.User(userID)
	if user == nil {
		return nil, domain.NewError(domain.ErrUnauthorized, "RUT %s not registered", userID)
	}
	if user.Blocked {
		return nil, domain.NewError(domain.ErrAccountLocked, "account locked after %d failed attempts", s.maxAttempts)
	}
	return user.Clone(), nil
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	sessionID, userID, err := s.issuer.Parse(token)
	if err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("could not delete session: %w", err)
	}

	s.logger.InfoContext(ctx, "User logged out", map[string]interface{}{"user_id": userID})
	return nil
}

// Unlock clears the lockout of a blocked account.
func (s *AuthService) Unlock(ctx context.Context, userID string) (*domain.User, error) {
	s.graph.Lock()
	defer s.graph.Unlock()

	user := s.graph.User(userID)
	if user == nil {
		return nil, domain.NewError(domain.ErrNotFound, "RUT %s not registered", userID)
	}
	if err := s.writeCounters(ctx, user, 0, false); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Account unlocked", map[string]interface{}{"user_id": userID})
	return user.Clone(), nil
}
