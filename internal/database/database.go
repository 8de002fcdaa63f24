// Package database is the persistence gateway: account storage, per-user
// settings, game history, and the experience/level curve. A single
// connection pool backs either SQLite or PostgreSQL depending on
// Config.DBType, wrapped in a circuit breaker so a stalled dependency
// degrades rather than wedging every session goroutine that calls into it.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"blokusserver/internal/config"
	"blokusserver/internal/logging"
	"blokusserver/internal/metrics"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Gateway owns the connection pool and every persisted operation. All
// methods are safe for concurrent use.
type Gateway struct {
	db      *sql.DB
	dialect string
	breaker *gobreaker.CircuitBreaker
}

// Open connects to the database named by cfg, verifies it with a ping,
// applies pool settings, and bootstraps the schema if it does not yet exist.
func Open(cfg *config.Config) (*Gateway, error) {
	db, err := sql.Open(driverName(cfg.DBType), cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBType, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", cfg.DBType, err)
	}

	db.SetMaxOpenConns(cfg.DBPoolSize)
	db.SetMaxIdleConns(cfg.DBPoolSize)

	if cfg.DBType == "sqlite" {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			logging.Warn(context.Background(), "failed to set WAL mode", zap.Error(err))
		}
	}

	g := &Gateway{
		db:      db,
		dialect: cfg.DBType,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "database",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logging.Warn(context.Background(), "circuit breaker state change",
					zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))

				var stateVal float64
				switch to {
				case gobreaker.StateClosed:
					stateVal = 0
				case gobreaker.StateOpen:
					stateVal = 1
					metrics.CircuitBreakerFailures.WithLabelValues(name).Inc()
				case gobreaker.StateHalfOpen:
					stateVal = 2
				}
				metrics.CircuitBreakerState.WithLabelValues(name).Set(stateVal)
			},
		}),
	}

	if err := g.bootstrapSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	return g, nil
}

// Close releases the underlying connection pool.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// Ping verifies the connection is still alive, used by the admin HTTP
// sidecar's health check.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.db.PingContext(ctx)
}

func driverName(dbType string) string {
	if dbType == "postgres" {
		return "postgres"
	}
	return "sqlite3"
}

// placeholder returns the n-th positional parameter marker for the active
// dialect: sqlite3 accepts "?", lib/pq requires "$n".
func (g *Gateway) placeholder(n int) string {
	if g.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (g *Gateway) bootstrapSchema() error {
	exists, err := g.tableExists("users")
	if err != nil {
		return fmt.Errorf("check schema: %w", err)
	}
	if exists {
		return nil
	}

	logging.Info(context.Background(), "database appears to be new, creating schema")
	schema := sqliteSchema
	if g.dialect == "postgres" {
		schema = postgresSchema
	}
	if _, err := g.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	logging.Info(context.Background(), "database schema created")
	return nil
}

func (g *Gateway) tableExists(name string) (bool, error) {
	var query string
	if g.dialect == "postgres" {
		query = "SELECT table_name FROM information_schema.tables WHERE table_name = $1"
	} else {
		query = "SELECT name FROM sqlite_master WHERE type='table' AND name=?"
	}

	var found string
	err := g.db.QueryRow(query, name).Scan(&found)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// runBreaker executes fn through the gateway's circuit breaker, preserving
// fn's typed result.
func runBreaker[T any](g *Gateway, fn func() (T, error)) (T, error) {
	v, err := g.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
