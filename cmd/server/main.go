// Command server boots the Blokus game server: a line-delimited TCP
// protocol listener plus a small admin HTTP sidecar for health, metrics,
// and version checks.
package main

import (
	"context"
	"log"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"blokusserver/internal/adminhttp"
	"blokusserver/internal/authservice"
	"blokusserver/internal/bus"
	"blokusserver/internal/config"
	"blokusserver/internal/database"
	"blokusserver/internal/game"
	"blokusserver/internal/jwtauth"
	"blokusserver/internal/logging"
	"blokusserver/internal/protocol"
	"blokusserver/internal/ratelimit"
	"blokusserver/internal/session"
	"blokusserver/internal/tracing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	if err := logging.Initialize(!cfg.IsProduction); err != nil {
		log.Fatalf("initialize logging: %v", err)
	}
	logger := logging.GetLogger()
	defer logger.Sync()

	logger.Info("blokus server starting",
		zap.String("version", cfg.ServerVersion), zap.String("git_commit", cfg.GitCommit))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var tracerProvider *sdktrace.TracerProvider
	if cfg.OTelCollectorAddr != "" {
		tp, err := tracing.InitTracer(ctx, "blokus-server", cfg.OTelCollectorAddr)
		if err != nil {
			logger.Warn("tracing disabled, collector unreachable", zap.Error(err))
		} else {
			tracerProvider = tp
		}
	}

	db, err := database.Open(cfg)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, continuing without it", zap.Error(err))
			redisClient = nil
		}
	}

	limiter, err := ratelimit.New(cfg.RateLimitConnPerIP, cfg.RateLimitCmdsPerSession, redisClient)
	if err != nil {
		logger.Fatal("configure rate limiter", zap.Error(err))
	}

	busSvc, err := bus.NewService(addrIfEnabled(cfg), cfg.RedisPassword)
	if err != nil {
		logger.Warn("cross-instance bus disabled", zap.Error(err))
		busSvc = nil
	}

	var verifier *jwtauth.Verifier
	if cfg.JWKSURL != "" {
		v, err := jwtauth.NewVerifier(ctx, jwtauth.Config{
			JWKSURL:         cfg.JWKSURL,
			Issuer:          cfg.JWTIssuer,
			Audiences:       cfg.JWTAudiences,
			CacheTTL:        cfg.JWTCacheTTL,
			RefreshInterval: cfg.JWTRefreshInterval,
			GracePeriod:     cfg.JWTGracePeriod,
		})
		if err != nil {
			logger.Fatal("initialize jwt verifier", zap.Error(err))
		}
		v.StartBackgroundRefresh(ctx)
		verifier = v
	} else {
		logger.Info("JWKS_URL not set, external JWT login disabled")
	}

	authSvc := authservice.New(db, tokenVerifierOrNil(verifier), cfg.SessionTimeout, cfg.PasswordSaltRounds)

	rooms := game.NewManager(db, busSvc)
	lobby := game.NewLobby()

	var activeSessions atomic.Int64
	deps := &game.Deps{Auth: authSvc, DB: db, Rooms: rooms, Lobby: lobby, Cfg: cfg}
	router := protocol.NewRouter()
	game.Register(router, deps)

	admin := adminhttp.New(cfg, db, func() int { return int(activeSessions.Load()) })
	go func() {
		if err := admin.Run(); err != nil {
			logger.Error("admin http server stopped", zap.Error(err))
		}
	}()

	listener, err := net.Listen("tcp", cfg.ListenAddress())
	if err != nil {
		logger.Fatal("listen on game port", zap.Error(err))
	}
	logger.Info("game server listening", zap.String("addr", cfg.ListenAddress()))

	go rooms.RunSweep(ctx)
	go runSessionSweep(ctx, authSvc)
	go acceptLoop(ctx, listener, limiter, router, deps, &activeSessions, cfg.MaxClients, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdown(cancel, listener, admin, db, tracerProvider, logger)
}

// acceptLoop accepts TCP connections until ctx is cancelled, gating each one
// past the per-IP connection rate limit before spawning its read loop.
func acceptLoop(ctx context.Context, listener net.Listener, limiter *ratelimit.Limiter, router *protocol.Router, deps *game.Deps, activeSessions *atomic.Int64, maxClients int, logger *zap.Logger) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				logger.Warn("accept error", zap.Error(err))
				continue
			}
		}

		if int(activeSessions.Load()) >= maxClients {
			conn.Close()
			continue
		}

		host, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		if limiter != nil && !limiter.AllowConnection(ctx, host) {
			conn.Close()
			continue
		}

		activeSessions.Add(1)
		s := session.New(conn, func(closed *session.Session) {
			activeSessions.Add(-1)
			deps.OnDisconnect(closed)
		})
		go s.ReadLoop(ctx, func(ctx context.Context, s *session.Session, line string) {
			if limiter != nil && !limiter.AllowCommand(ctx, s.ID()) {
				s.Send(protocol.Error("rate_limited"))
				return
			}
			router.Dispatch(ctx, s, line)
		})
	}
}

// runSessionSweep periodically reaps expired auth sessions so stale tokens
// stop being honored even if their owning connection never reconnects.
func runSessionSweep(ctx context.Context, authSvc *authservice.Service) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			authSvc.CleanupExpiredSessions()
		}
	}
}

func shutdown(cancel context.CancelFunc, listener net.Listener, admin *adminhttp.Server, db *database.Gateway, tp *sdktrace.TracerProvider, logger *zap.Logger) {
	ctx, timeoutCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer timeoutCancel()

	logger.Info("[1/4] closing game listener")
	listener.Close()
	cancel()

	logger.Info("[2/4] shutting down admin http server")
	if err := admin.Shutdown(ctx); err != nil {
		logger.Warn("admin server shutdown error", zap.Error(err))
	}

	logger.Info("[3/4] closing database")
	if err := db.Close(); err != nil {
		logger.Warn("database close error", zap.Error(err))
	}

	logger.Info("[4/4] shutting down tracer")
	if err := tracing.Shutdown(ctx, tp); err != nil {
		logger.Warn("tracer shutdown error", zap.Error(err))
	}

	logger.Info("blokus server offline")
}

func addrIfEnabled(cfg *config.Config) string {
	if !cfg.RedisEnabled {
		return ""
	}
	return cfg.RedisAddr
}

func tokenVerifierOrNil(v *jwtauth.Verifier) authservice.TokenVerifier {
	if v == nil {
		return nil
	}
	return v
}
