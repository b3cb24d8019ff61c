package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/namnamchicken/shop-backend/pkg/errors"
	"github.com/namnamchicken/shop-backend/pkg/redis"
)

// sessionStore is the slice of the redis client the cart needs.
type sessionStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(sessionID string) string
}

// Store persists cart state blobs in redis, one key per session.
type Store struct {
	redis sessionStore
	ttl   time.Duration
}

// NewStore builds a cart store over the provided redis client.
func NewStore(redisClient sessionStore, ttl time.Duration) (*Store, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("redis client required")
	}
	return &Store{redis: redisClient, ttl: ttl}, nil
}

// Load returns the session's cart, or an empty cart when none is stored.
func (s *Store) Load(ctx context.Context, sessionID string) (*State, error) {
	raw, err := s.redis.Get(ctx, s.redis.CartKey(sessionID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return NewState(), nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	state, err := DecodeState([]byte(raw))
	if err != nil {
		// A corrupt blob is unrecoverable; start the session over.
		return NewState(), nil
	}
	return state, nil
}

// Save writes the cart back and refreshes the session TTL.
func (s *Store) Save(ctx context.Context, sessionID string, state *State) error {
	encoded, err := state.Encode()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode cart")
	}
	if err := s.redis.Set(ctx, s.redis.CartKey(sessionID), string(encoded), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
	}
	return nil
}

// Clear removes the session's cart entirely.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, s.redis.CartKey(sessionID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}
