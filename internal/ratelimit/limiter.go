// Package ratelimit throttles two things a TCP game server must protect
// against: connection floods from a single IP, and command floods from a
// single session. Both share one ulule/limiter store, backed by Redis when
// configured so limits hold across multiple server instances, or an
// in-process memory store otherwise.
package ratelimit

import (
	"context"
	"fmt"

	"blokusserver/internal/logging"
	"blokusserver/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"
	"go.uber.org/zap"
)

// Limiter holds the two independent rate limits the server enforces.
type Limiter struct {
	connPerIP      *limiter.Limiter
	cmdsPerSession *limiter.Limiter
}

// New builds a Limiter from formatted rate strings (e.g. "20-M" for 20 per
// minute, per ulule/limiter's format). redisClient may be nil, in which
// case limits are enforced in-process only.
func New(connPerIPRate, cmdsPerSessionRate string, redisClient *redis.Client) (*Limiter, error) {
	connRate, err := limiter.NewRateFromFormatted(connPerIPRate)
	if err != nil {
		return nil, fmt.Errorf("invalid connection rate %q: %w", connPerIPRate, err)
	}
	cmdRate, err := limiter.NewRateFromFormatted(cmdsPerSessionRate)
	if err != nil {
		return nil, fmt.Errorf("invalid command rate %q: %w", cmdsPerSessionRate, err)
	}

	var store limiter.Store
	if redisClient != nil {
		s, err := sredis.NewStoreWithOptions(redisClient, limiter.StoreOptions{Prefix: "blokus:ratelimit:"})
		if err != nil {
			return nil, fmt.Errorf("create redis rate limit store: %w", err)
		}
		store = s
		logging.Info(context.Background(), "rate limiter using redis store")
	} else {
		store = memory.NewStore()
		logging.Info(context.Background(), "rate limiter using in-process memory store")
	}

	return &Limiter{
		connPerIP:      limiter.New(store, connRate),
		cmdsPerSession: limiter.New(store, cmdRate),
	}, nil
}

// AllowConnection reports whether a new TCP connection from ip may proceed.
// A store error fails open: availability matters more than one missed
// throttle window.
func (l *Limiter) AllowConnection(ctx context.Context, ip string) bool {
	return l.allow(ctx, l.connPerIP, ip, "connection")
}

// AllowCommand reports whether sessionID may submit another protocol
// command right now.
func (l *Limiter) AllowCommand(ctx context.Context, sessionID string) bool {
	return l.allow(ctx, l.cmdsPerSession, sessionID, "command")
}

func (l *Limiter) allow(ctx context.Context, lim *limiter.Limiter, key, scope string) bool {
	result, err := lim.Get(ctx, key)
	if err != nil {
		logging.Error(ctx, "rate limit store failed, allowing request", zap.String("scope", scope), zap.Error(err))
		return true
	}

	metrics.RateLimitRequests.WithLabelValues(scope).Inc()
	if result.Reached {
		metrics.RateLimitExceeded.WithLabelValues(scope, "limit_exceeded").Inc()
		return false
	}
	return true
}
