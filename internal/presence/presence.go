// Package presence mirrors the set of connected charge points into redis so
// other processes can see fleet connectivity without touching the registry.
package presence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	keyPrefix = "chargepoints:connected:"

	defaultDialTimeout  = 5 * time.Second
	defaultReadTimeout  = 3 * time.Second
	defaultWriteTimeout = 3 * time.Second
)

// NewClient returns a configured go-redis client and validates the connection
// with PING.
func NewClient(addr, password string) (*redis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("presence: redis addr is empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  defaultDialTimeout,
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), defaultDialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

// Store writes per-charge-point presence keys with a TTL; a key that is not
// refreshed expires on its own, so a crashed process cannot leave stale
// entries behind.
type Store struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewStore returns a redis-backed presence store.
func NewStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *Store {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &Store{client: client, ttl: ttl, logger: logger}
}

func key(chargePointID string) string {
	return keyPrefix + chargePointID
}

// MarkConnected records a charge point as connected.
func (s *Store) MarkConnected(ctx context.Context, chargePointID string) {
	if err := s.client.Set(ctx, key(chargePointID), time.Now().UTC().Format(time.RFC3339), s.ttl).Err(); err != nil {
		s.logger.Warn("failed to mark charge point connected",
			zap.String("charge_point_id", chargePointID), zap.Error(err))
	}
}

// MarkDisconnected removes a charge point's presence key.
func (s *Store) MarkDisconnected(ctx context.Context, chargePointID string) {
	if err := s.client.Del(ctx, key(chargePointID)).Err(); err != nil {
		s.logger.Warn("failed to mark charge point disconnected",
			zap.String("charge_point_id", chargePointID), zap.Error(err))
	}
}

// Refresh extends the TTL of every given charge point's key.
func (s *Store) Refresh(ctx context.Context, chargePointIDs []string) {
	for _, id := range chargePointIDs {
		if err := s.client.Expire(ctx, key(id), s.ttl).Err(); err != nil {
			s.logger.Warn("failed to refresh presence key",
				zap.String("charge_point_id", id), zap.Error(err))
		}
	}
}

// RunRefresher periodically refreshes presence keys for the ids reported by
// list until ctx is cancelled.
func (s *Store) RunRefresher(ctx context.Context, list func() []string) {
	interval := s.ttl / 3
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx, list())
		}
	}
}
