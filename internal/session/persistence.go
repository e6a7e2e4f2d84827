package session

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"land-marketplace/internal/common/database"
	"land-marketplace/internal/models"
)

// Persistence keeps a session alive across restarts of the client.
type Persistence interface {
	// Load returns the stored session, or nil when there is none.
	Load(ctx context.Context) (*models.Session, error)
	Save(ctx context.Context, s *models.Session) error
	Clear(ctx context.Context) error
}

// MemoryPersistence keeps the session for the lifetime of the process.
type MemoryPersistence struct {
	mu      sync.Mutex
	session *models.Session
}

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{}
}

func (m *MemoryPersistence) Load(_ context.Context) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySession(m.session), nil
}

func (m *MemoryPersistence) Save(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = copySession(s)
	return nil
}

func (m *MemoryPersistence) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

// RedisPersistence stores the session as JSON under a single key with a TTL.
type RedisPersistence struct {
	redis *database.RedisClient
	key   string
	ttl   time.Duration
}

func NewRedisPersistence(redis *database.RedisClient, key string, ttl time.Duration) *RedisPersistence {
	return &RedisPersistence{redis: redis, key: key, ttl: ttl}
}

// Key returns "<prefix>:<id>".
func Key(prefix, id string) string {
	return prefix + ":" + id
}

func (r *RedisPersistence) Load(ctx context.Context) (*models.Session, error) {
	var s models.Session
	err := r.redis.GetJSON(ctx, r.key, &s)
	if stderrors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !s.IsAuthenticated() {
		return nil, nil
	}
	return &s, nil
}

func (r *RedisPersistence) Save(ctx context.Context, s *models.Session) error {
	return r.redis.SetJSON(ctx, r.key, s, r.ttl)
}

func (r *RedisPersistence) Clear(ctx context.Context) error {
	return r.redis.Del(ctx, r.key)
}

func copySession(s *models.Session) *models.Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.User != nil {
		u := *s.User
		cp.User = &u
	}
	return &cp
}
