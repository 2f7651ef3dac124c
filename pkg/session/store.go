package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"exchangeflow/internal/domain"
	"exchangeflow/pkg/logger"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session already expired")
)

// Store keeps issued sessions so logout can revoke a token before expiry.
type Store interface {
	Save(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
}

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*domain.Session), now: time.Now}
}

func (m *MemoryStore) Save(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.now().Before(s.ExpiresAt) {
		return ErrSessionExpired
	}

	c := *s
	m.sessions[s.ID] = &c
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if !m.now().Before(s.ExpiresAt) {
		delete(m.sessions, id)
		return nil, ErrSessionNotFound
	}
	c := *s
	return &c, nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// RedisStore keeps sessions as JSON values expiring with the session.
type RedisStore struct {
	client *redis.Client
	logger logger.Logger
	prefix string
}

func NewRedisStore(client *redis.Client, logger logger.Logger, prefix string) *RedisStore {
	return &RedisStore{client: client, logger: logger, prefix: prefix}
}

func (r *RedisStore) makeKey(id string) string {
	if r.prefix == "" {
		return "session:" + id
	}
	return fmt.Sprintf("%s:session:%s", r.prefix, id)
}

func (r *RedisStore) Save(ctx context.Context, s *domain.Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return ErrSessionExpired
	}

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.makeKey(s.ID), data, ttl).Err(); err != nil {
		r.logger.Error("Could not store session", map[string]interface{}{"user_id": s.UserID, "error": err.Error()})
		return err
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, r.makeKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		r.logger.Error("Could not read session", map[string]interface{}{"error": err.Error()})
		return nil, err
	}

	var s domain.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.makeKey(id)).Err(); err != nil {
		r.logger.Error("Could not delete session", map[string]interface{}{"error": err.Error()})
		return err
	}
	return nil
}
