// Package bus is the optional cross-instance layer: when Redis is
// configured, room broadcasts and direct-to-user messages relay through it
// so multiple server processes can serve players in the same room, and
// session tokens become lookupable from any instance. When Redis is not
// configured every method is a no-op, and the server runs in single-instance
// mode with purely in-memory state.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"blokusserver/internal/logging"
	"blokusserver/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// RoomEventPayload is the envelope every cross-instance room message is
// wrapped in.
type RoomEventPayload struct {
	RoomID   string          `json:"roomId"`
	Event    string          `json:"event"`
	Payload  json.RawMessage `json:"payload"`
	SenderID string          `json:"senderId"`
}

// Service wraps a Redis client behind a circuit breaker. A nil *Service (or
// one built with no client) behaves as single-instance mode: every method
// is a safe no-op.
type Service struct {
	client *redis.Client
	cb     *gobreaker.CircuitBreaker
}

// NewService connects to addr and verifies it with a ping. Pass an empty
// addr to run single-instance (nil Service, no error).
func NewService(addr, password string) (*Service, error) {
	if addr == "" {
		return nil, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			var stateVal float64
			switch to {
			case gobreaker.StateClosed:
				stateVal = 0
			case gobreaker.StateOpen:
				stateVal = 1
			case gobreaker.StateHalfOpen:
				stateVal = 2
			}
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateVal)
		},
	})

	logging.Info(context.Background(), "connected to redis", zap.String("addr", addr))
	return &Service{client: rdb, cb: cb}, nil
}

// Client exposes the underlying client for health checks. Returns nil in
// single-instance mode.
func (s *Service) Client() *redis.Client {
	if s == nil {
		return nil
	}
	return s.client
}

func roomChannel(roomID string) string { return "blokus:room:" + roomID }
func userChannel(userID string) string { return "blokus:user:" + userID }

// Publish broadcasts event+payload to every other instance hosting roomID.
func (s *Service) Publish(ctx context.Context, roomID, event string, payload any, senderID string) error {
	if s == nil || s.client == nil {
		return nil
	}

	start := time.Now()
	_, err := s.cb.Execute(func() (interface{}, error) {
		inner, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		data, err := json.Marshal(RoomEventPayload{RoomID: roomID, Event: event, Payload: inner, SenderID: senderID})
		if err != nil {
			return nil, fmt.Errorf("marshal envelope: %w", err)
		}
		return nil, s.client.Publish(ctx, roomChannel(roomID), data).Err()
	})
	metrics.RedisOperationDuration.WithLabelValues("publish").Observe(time.Since(start).Seconds())

	if err != nil {
		status := "error"
		if err == gobreaker.ErrOpenState {
			status = "breaker_open"
			logging.Warn(ctx, "redis circuit open, dropping publish", zap.String("room_id", roomID))
			metrics.RedisOperationsTotal.WithLabelValues("publish", status).Inc()
			return nil
		}
		metrics.RedisOperationsTotal.WithLabelValues("publish", status).Inc()
		return err
	}
	metrics.RedisOperationsTotal.WithLabelValues("publish", "success").Inc()
	return nil
}

// PublishDirect sends event+payload to a single user's channel, regardless
// of which instance they are connected to.
func (s *Service) PublishDirect(ctx context.Context, targetUserID, event string, payload any, senderID string) error {
	if s == nil || s.client == nil {
		return nil
	}

	start := time.Now()
	_, err := s.cb.Execute(func() (interface{}, error) {
		inner, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		data, err := json.Marshal(RoomEventPayload{Event: event, Payload: inner, SenderID: senderID})
		if err != nil {
			return nil, fmt.Errorf("marshal envelope: %w", err)
		}
		return nil, s.client.Publish(ctx, userChannel(targetUserID), data).Err()
	})
	metrics.RedisOperationDuration.WithLabelValues("publish_direct").Observe(time.Since(start).Seconds())

	if err != nil {
		if err == gobreaker.ErrOpenState {
			logging.Warn(ctx, "redis circuit open, dropping direct message", zap.String("target_user_id", targetUserID))
			metrics.RedisOperationsTotal.WithLabelValues("publish_direct", "breaker_open").Inc()
			return nil
		}
		metrics.RedisOperationsTotal.WithLabelValues("publish_direct", "error").Inc()
		return err
	}
	metrics.RedisOperationsTotal.WithLabelValues("publish_direct", "success").Inc()
	return nil
}

// Subscribe starts a background goroutine delivering every message posted to
// roomID from another instance to handler, until ctx is cancelled.
func (s *Service) Subscribe(ctx context.Context, roomID string, handler func(RoomEventPayload)) {
	if s == nil || s.client == nil {
		return
	}

	pubsub := s.client.Subscribe(ctx, roomChannel(roomID))
	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var payload RoomEventPayload
				if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
					logging.Warn(ctx, "failed to unmarshal redis room message", zap.Error(err))
					continue
				}
				handler(payload)
			}
		}
	}()
}

// Ping checks Redis connectivity through the circuit breaker. The admin HTTP
// health check does not call it.
func (s *Service) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	return err
}

// Close releases the underlying connection.
func (s *Service) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

const sessionKeyPrefix = "blokus:session:"

// PutSession caches a session token's owning user id for ttl, so any
// instance can validate a token issued by another one.
func (s *Service) PutSession(ctx context.Context, token string, userID int64, ttl time.Duration) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, sessionKeyPrefix+token, userID, ttl).Err()
	})
	if err == gobreaker.ErrOpenState {
		return nil
	}
	return err
}

// GetSession returns the user id cached for token, and whether it was
// found. In single-instance mode this always returns (0, false, nil) — the
// in-memory authservice map is authoritative there.
func (s *Service) GetSession(ctx context.Context, token string) (int64, bool, error) {
	if s == nil || s.client == nil {
		return 0, false, nil
	}

	// A missing key is an expected outcome, not a dependency failure — it is
	// handled inside the breaker-wrapped call so a string of cache misses
	// never trips the breaker.
	type lookup struct {
		userID int64
		found  bool
	}
	res, err := s.cb.Execute(func() (interface{}, error) {
		id, err := s.client.Get(ctx, sessionKeyPrefix+token).Int64()
		if err == redis.Nil {
			return lookup{}, nil
		}
		if err != nil {
			return lookup{}, err
		}
		return lookup{userID: id, found: true}, nil
	})
	if err == gobreaker.ErrOpenState {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	l := res.(lookup)
	return l.userID, l.found, nil
}

// DeleteSession removes a cached session token, used on logout/invalidate.
func (s *Service) DeleteSession(ctx context.Context, token string) error {
	if s == nil || s.client == nil {
		return nil
	}
	_, err := s.cb.Execute(func() (interface{}, error) {
		return nil, s.client.Del(ctx, sessionKeyPrefix+token).Err()
	})
	if err == gobreaker.ErrOpenState {
		return nil
	}
	return err
}
