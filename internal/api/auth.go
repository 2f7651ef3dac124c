package api

import (
	"context"
	"net/http"
	"strings"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

type contextKey string

const userKey contextKey = "user"

// Guard resolves the bearer token of a request into the acting user.
type Guard struct {
	auth   domain.AuthService
	logger logger.Logger
}

func NewGuard(auth domain.AuthService, logger logger.Logger) *Guard {
	return &Guard{auth: auth, logger: logger}
}

// Require rejects requests without a valid session and, when roles are
// given, requests whose user holds none of them.
func (g *Guard) Require(roles ...domain.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			user, err := g.Actor(r)
			if err != nil {
				writeError(w, r, g.logger, err)
				return
			}
			if user == nil {
				writeError(w, r, g.logger, domain.NewError(domain.ErrUnauthorized, "login required"))
				return
			}

			if len(roles) > 0 && !hasRole(user, roles) {
				writeError(w, r, g.logger, domain.NewError(domain.ErrForbidden, "%s users cannot do this", user.Role))
				return
			}

			next(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
		}
	}
}

// Actor resolves the session of r. Requests without a bearer token yield a
// nil user and no error.
func (g *Guard) Actor(r *http.Request) (*domain.User, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, nil
	}
	return g.auth.Authenticate(r.Context(), token)
}

// UserFromContext returns the user set by Guard.Require.
func UserFromContext(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userKey).(*domain.User)
	return user
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

func hasRole(user *domain.User, roles []domain.Role) bool {
	for _, role := range roles {
		if user.Role == role {
			return true
		}
	}
	return false
}
