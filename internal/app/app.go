package app

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"chargelink/internal/api"
	"chargelink/internal/config"
	"chargelink/internal/db"
	"chargelink/internal/normalizer"
	"chargelink/internal/notify"
	"chargelink/internal/presence"
	"chargelink/internal/registry"
	"chargelink/internal/session"
	"chargelink/internal/storage"
	"chargelink/internal/ws"
)

// sessionOptions derives per-session tuning from config. Operator-configured
// id tags extend the generic normalizer's built-in allow-list.
func sessionOptions(cfg *config.Config) session.Options {
	return session.Options{
		HeartbeatInterval: cfg.HeartbeatInterval(),
		CallTimeout:       cfg.CallTimeout(),
		Fallback:          normalizer.NewGeneric(cfg.OCPP.AllowedIdTags),
	}
}

// App wires all dependencies for the central system.
type App struct {
	httpServer *http.Server
	db         *sql.DB
	registry   *registry.Registry
	presence   *presence.Store
	notifier   *notify.Publisher
	logger     *zap.Logger
}

// New builds the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgresDB(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	store := storage.NewPostgresStore(sqlDB)
	reg := registry.New()

	var notifier *notify.Publisher
	if cfg.NATS.URL != "" {
		notifier, err = notify.Connect(cfg.NATS.URL, logger)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
	}

	var pres *presence.Store
	if cfg.Redis.Addr != "" {
		redisClient, err := presence.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			notifier.Close()
			sqlDB.Close()
			return nil, err
		}
		pres = presence.NewStore(redisClient, cfg.RedisTTL(), logger)
	}

	wsServer := ws.NewServer(reg, store, notifier, pres, sessionOptions(cfg),
		cfg.WriteTimeout(), cfg.PingInterval(), logger)
	apiServer := api.NewServer(reg, store, logger)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Get("/ocpp/{chargePointID}", wsServer.HandleWS)
	router.Mount("/", apiServer.Routes())

	httpServer := &http.Server{
		Addr:        cfg.HTTPAddress(),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	return &App{
		httpServer: httpServer,
		db:         sqlDB,
		registry:   reg,
		presence:   pres,
		notifier:   notifier,
		logger:     logger,
	}, nil
}

// Run starts the HTTP server and the presence refresher, then blocks until
// ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	if a.presence != nil {
		go a.presence.RunRefresher(ctx, a.registry.ListConnected)
	}

	go func() {
		a.logger.Info("starting http server", zap.String("addr", a.httpServer.Addr))
		errCh <- a.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// Close releases resources.
func (a *App) Close() {
	a.notifier.Close()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
