package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"kochchi/internal/api"
	"kochchi/internal/config"
	"kochchi/internal/database"
	"kochchi/internal/logging"
	"kochchi/internal/server"
	"kochchi/internal/session"

	"github.com/redis/go-redis/v9"
)

var (
	// Version will be set during build
	Version = "dev"

	port     = flag.Int("port", 0, "Port to run the server on (default: 8080 or KOCHCHI_PORT)")
	apiBase  = flag.String("api", "", "Base URL of the marketplace API (default: KOCHCHI_API_BASE)")
	dbPath   = flag.String("db", "", "Path to the session database (default: data/kochchi.db or KOCHCHI_DB_PATH)")
	backend  = flag.String("sessions", "", "Session store: sqlite, redis or memory (default: KOCHCHI_SESSION_BACKEND)")
	envFile  = flag.String("env", ".env", "Optional .env file to load before reading the environment")
	version  = flag.Bool("version", false, "Print version information")
	prodMode = flag.Bool("prod", false, "Enable production mode (secure cookies)")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("Kochchi Bazaar version %s\n", Version)
		return
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "kochchi: %v\n", err)
		os.Exit(1)
	}
	cfg := config.GetConfig()

	if *port > 0 {
		cfg.Port = *port
	}
	if *apiBase != "" {
		cfg.APIBase = *apiBase
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *backend != "" {
		cfg.SessionBackend = *backend
	}
	if *prodMode {
		cfg.SecureCookies = true
	}

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kochchi: opening log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}

	logger.Info("starting Kochchi Bazaar",
		"version", Version,
		"port", cfg.Port,
		"api", cfg.APIBase,
		"sessions", cfg.SessionBackend,
		"secure_cookies", cfg.SecureCookies,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, healthCheck, closeStore, err := openSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.SessionSecret == "" {
		logger.Warn("KOCHCHI_SESSION_SECRET is not set; sessions will not survive a restart")
	}
	sealer, err := session.NewSealer(cfg.SessionSecret)
	if err != nil {
		return fmt.Errorf("creating session sealer: %w", err)
	}
	sessions := session.NewManager(store, sealer, session.WithSecureCookie(cfg.SecureCookies))

	client, err := api.NewClient(cfg.APIBase)
	if err != nil {
		return fmt.Errorf("creating API client: %w", err)
	}

	srv, err := server.NewServer(client, sessions, logger, server.Config{
		UseHTTPS:     cfg.SecureCookies,
		FetchTimeout: cfg.FetchTimeout,
		Location:     loc,
		HealthCheck:  healthCheck,
	})
	if err != nil {
		return fmt.Errorf("initializing server: %w", err)
	}
	go srv.RunMaintenance(ctx)

	httpServer := srv.HTTPServer(cfg.GetAddress())
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openSessionStore builds the configured store, a health probe for it, and
// starts the expiry sweep where the store needs one.
func openSessionStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (session.Store, func(context.Context) error, func(), error) {
	switch cfg.SessionBackend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		store := session.NewRedisStore(rdb)
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := store.Ping(pingCtx); err != nil {
			_ = rdb.Close()
			return nil, nil, nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		closeFn := func() {
			if err := rdb.Close(); err != nil {
				logger.Warn("closing redis client", "error", err)
			}
		}
		return store, store.Ping, closeFn, nil

	case config.BackendMemory:
		store := session.NewMemoryStore()
		go session.RunCleanup(ctx, store, 10*time.Minute, logger)
		return store, nil, func() {}, nil

	default:
		db, err := database.NewDB(cfg.DBPath, database.DefaultConfig())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("opening session database: %w", err)
		}
		if v, err := database.Version(db.DB); err == nil {
			logger.Debug("session database ready", "path", cfg.DBPath, "schema_version", v)
		}
		store := session.NewSQLStore(db.DB)
		go session.RunCleanup(ctx, store, 10*time.Minute, logger)
		closeFn := func() {
			if err := db.Close(); err != nil {
				logger.Warn("closing session database", "error", err)
			}
		}
		return store, db.PingContext, closeFn, nil
	}
}
