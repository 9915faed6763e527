package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SessionStore holds the authoritative per-session cart.
type SessionStore interface {
	Load(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, sessionID string, cart *Cart) error
	Delete(ctx context.Context, sessionID string) error
}

type sessionClient interface {
	SaveCartSession(ctx context.Context, sessionID string, payload []byte, ttl time.Duration) error
	LoadCartSession(ctx context.Context, sessionID string) ([]byte, bool, error)
	DeleteCartSession(ctx context.Context, sessionID string) error
}

type redisSessionStore struct {
	client sessionClient
	ttl    time.Duration
}

// NewRedisSessionStore stores carts as JSON under the session key. Each save
// refreshes the ttl.
func NewRedisSessionStore(client sessionClient, ttl time.Duration) (SessionStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("cart session ttl must be positive")
	}
	return &redisSessionStore{client: client, ttl: ttl}, nil
}

// Load returns an empty cart when the session has none yet.
func (s *redisSessionStore) Load(ctx context.Context, sessionID string) (*Cart, error) {
	payload, found, err := s.client.LoadCartSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	cart := &Cart{}
	if found {
		if err := json.Unmarshal(payload, cart); err != nil {
			return nil, fmt.Errorf("decode cart session: %w", err)
		}
	}
	cart.Recalculate()
	return cart, nil
}

func (s *redisSessionStore) Save(ctx context.Context, sessionID string, cart *Cart) error {
	payload, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("encode cart session: %w", err)
	}
	return s.client.SaveCartSession(ctx, sessionID, payload, s.ttl)
}

func (s *redisSessionStore) Delete(ctx context.Context, sessionID string) error {
	return s.client.DeleteCartSession(ctx, sessionID)
}
