// Package metrics declares the process's Prometheus collectors.
//
// Naming convention: namespace_subsystem_name
//   - namespace: blokus (application-level grouping)
//   - subsystem: session, room, protocol, game, auth, circuit_breaker, rate_limit, redis
//   - name: specific metric (connections_active, events_total, ...)
//
// Metric Types:
//   - Gauge: current state (connections, rooms, players)
//   - Counter: cumulative events (placements, auth outcomes)
//   - Histogram: latency distributions (command processing time)
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks the current number of connected TCP sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "blokus",
		Subsystem: "session",
		Name:      "connections_active",
		Help:      "Current number of active player sessions",
	})

	// ActiveRooms tracks the current number of live game rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "blokus",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomPlayers tracks the number of seated players in each room.
	RoomPlayers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "blokus",
		Subsystem: "room",
		Name:      "players_count",
		Help:      "Number of players seated in each room",
	}, []string{"room_id"})

	// ProtocolEvents tracks total inbound protocol commands processed.
	ProtocolEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blokus",
		Subsystem: "protocol",
		Name:      "events_total",
		Help:      "Total protocol commands processed",
	}, []string{"opcode", "status"})

	// MessageProcessingDuration tracks time spent handling one protocol command.
	MessageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blokus",
		Subsystem: "protocol",
		Name:      "message_processing_seconds",
		Help:      "Time spent processing one protocol command",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"opcode"})

	// BlockPlacementAttempts tracks total block placement attempts by outcome.
	BlockPlacementAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blokus",
		Subsystem: "game",
		Name:      "placement_attempts_total",
		Help:      "Total block placement attempts",
	}, []string{"status"})

	// GamesCompleted tracks total finished games.
	GamesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "blokus",
		Subsystem: "game",
		Name:      "completed_total",
		Help:      "Total number of games that reached a final result",
	})

	// AuthOutcomes tracks login/register/guest/jwt attempts by result.
	AuthOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blokus",
		Subsystem: "auth",
		Name:      "outcomes_total",
		Help:      "Total authentication attempts by method and outcome",
	}, []string{"method", "outcome"})

	// JWKSRefreshFailures tracks failed JWKS refresh attempts.
	JWKSRefreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "blokus",
		Subsystem: "auth",
		Name:      "jwks_refresh_failures_total",
		Help:      "Total failed JWKS refresh attempts",
	})

	// CircuitBreakerState tracks the current state of a named circuit breaker.
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "blokus",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures counts how many times a circuit breaker tripped
	// to the Open state.
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blokus",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total number of times the circuit breaker tripped open",
	}, []string{"service"})

	// RateLimitExceeded tracks requests rejected by the rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blokus",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"scope", "reason"})

	// RateLimitRequests tracks requests checked against the rate limiter.
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blokus",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"scope"})

	// RedisOperationsTotal tracks total Redis bus/cache operations.
	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blokus",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total number of Redis operations",
	}, []string{"operation", "status"})

	// RedisOperationDuration tracks the duration of Redis operations.
	RedisOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blokus",
		Subsystem: "redis",
		Name:      "operation_duration_seconds",
		Help:      "Duration of Redis operations",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

// IncSession records a new session connecting.
func IncSession() {
	ActiveSessions.Inc()
}

// DecSession records a session disconnecting.
func DecSession() {
	ActiveSessions.Dec()
}
