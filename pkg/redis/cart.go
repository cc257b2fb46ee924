package redis

import (
	"context"
	"errors"
	"time"
)

// CartSnapshotStore persists serialized carts keyed by storefront session.
type CartSnapshotStore interface {
	SaveCartSnapshot(ctx context.Context, sessionID string, payload []byte, ttl time.Duration) error
	LoadCartSnapshot(ctx context.Context, sessionID string) ([]byte, error)
	DeleteCartSnapshot(ctx context.Context, sessionID string) error
}

var errNoSession = errors.New("session id is required")

// SaveCartSnapshot overwrites the stored cart and restarts its TTL.
func (c *Client) SaveCartSnapshot(ctx context.Context, sessionID string, payload []byte, ttl time.Duration) error {
	if sessionID == "" {
		return errNoSession
	}
	return c.Set(ctx, c.CartSnapshotKey(sessionID), payload, ttl)
}

// LoadCartSnapshot returns ErrNotFound when the session has no stored cart.
func (c *Client) LoadCartSnapshot(ctx context.Context, sessionID string) ([]byte, error) {
	if sessionID == "" {
		return nil, errNoSession
	}
	raw, err := c.Get(ctx, c.CartSnapshotKey(sessionID))
	if err != nil {
		return nil, err
	}
	return []byte(raw), nil
}

func (c *Client) DeleteCartSnapshot(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errNoSession
	}
	return c.Del(ctx, c.CartSnapshotKey(sessionID))
}
