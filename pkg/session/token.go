package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"exchangeflow/internal/domain"
)

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (i *Issuer) Issue(user *domain.User) (*domain.Session, error) {
	now := i.now().UTC().Truncate(time.Second)
	s := &domain.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Role:      user.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(s.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(s.ExpiresAt),
		},
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("could not sign session token: %w", err)
	}
	s.Token = signed
	return s, nil
}

// Parse verifies the token signature and expiry and returns the session id
// and subject it carries.
func (i *Issuer) Parse(token string) (sessionID, userID string, err error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", "", domain.NewError(domain.ErrUnauthorized, "session expired, please log in again")
		}
		return "", "", domain.NewError(domain.ErrUnauthorized, "invalid session token")
	}
	return c.ID, c.Subject, nil
}
