// frontend runs a front-end worker: it subscribes to the price fan-out,
// serves WebSocket clients through the hub, and answers mapping queries
// from its own copy of the mapping cache.
//
// Usage: go run ./cmd/frontend --config configs/frontend.local.yaml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/gamelinehq/marketfeed/internal/config"
	"github.com/gamelinehq/marketfeed/internal/database"
	"github.com/gamelinehq/marketfeed/internal/fanout"
	"github.com/gamelinehq/marketfeed/internal/hub"
	"github.com/gamelinehq/marketfeed/internal/mapping"
	"github.com/gamelinehq/marketfeed/internal/registry"
	"github.com/gamelinehq/marketfeed/internal/store"
	"github.com/gamelinehq/marketfeed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/frontend.local.yaml", "path to config file")
	flag.Parse()

	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting frontend",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected",
		"host", cfg.Database.Host,
		"database", cfg.Database.Name,
	)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "addr", cfg.Redis.Addr, "error", err)
		os.Exit(1)
	}
	logger.Info("redis connected", "addr", cfg.Redis.Addr)

	st := store.New(pool, logger)

	snap := mapping.NewSnapshot(rdb, cfg.Mappings.SnapshotTTL)
	mappings := mapping.NewService(mapping.Config{
		MaxEntries:      cfg.Mappings.MaxEntries,
		RefreshInterval: cfg.Mappings.RefreshInterval,
	}, st, snap, logger)

	sub := fanout.NewSubscriber(rdb, logger)
	signals := registry.NewSignal(rdb, logger)
	h := hub.NewHub(logger)

	if err := mappings.Start(ctx); err != nil {
		logger.Error("failed to start mapping service", "error", err)
		os.Exit(1)
	}
	if err := signals.Start(ctx); err != nil {
		logger.Error("failed to start registry signal", "error", err)
		os.Exit(1)
	}
	if err := sub.Start(ctx); err != nil {
		logger.Error("failed to start price subscriber", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: newRouter(cfg, pool, h, mappings),
		// No blanket write timeout: /ws connections are long-lived and
		// manage their own deadlines.
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h.Run(gctx)
		return nil
	})

	// Bridge: fan-out subscription -> hub. An unexpectedly closed
	// subscription takes the whole worker down for a supervisor restart.
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case update, ok := <-sub.Updates():
				if !ok {
					return errors.New("price subscription closed")
				}
				h.Broadcast(update)
			}
		}
	})

	// Registry refresh signals reload the local mapping cache.
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case _, ok := <-signals.Events():
				if !ok {
					return nil
				}
				logger.Info("registry refresh signal received")
				mappings.TriggerRefresh()
			}
		}
	})

	g.Go(func() error {
		logger.Info("http server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("frontend running",
		"instance_id", cfg.Instance.ID,
		"ws_url", fmt.Sprintf("ws://localhost:%d/ws", cfg.Server.Port),
	)

	err = g.Wait()

	logger.Info("shutting down...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	if stopErr := sub.Stop(stopCtx); stopErr != nil {
		logger.Warn("price subscriber stop", "error", stopErr)
	}
	if stopErr := signals.Stop(stopCtx); stopErr != nil {
		logger.Warn("registry signal stop", "error", stopErr)
	}
	if stopErr := mappings.Stop(stopCtx); stopErr != nil {
		logger.Warn("mapping service stop", "error", stopErr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("frontend failed", "error", err)
		os.Exit(1)
	}
	logger.Info("frontend stopped")
}

func newRouter(cfg *config.Config, pool *pgxpool.Pool, h *hub.Hub, mappings *mapping.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/ws", h.ServeWS)
	r.Get("/health", healthHandler(pool, h, mappings))
	r.Get("/stats", statsHandler(h, mappings))
	r.Get("/games/{gameID}/tickers", tickersHandler(mappings))

	return r
}

func healthHandler(pool *pgxpool.Pool, h *hub.Hub, mappings *mapping.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if err := pool.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["database"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["database"] = "connected"
		}

		health.Components["hub"] = h.Stats()
		health.Components["mappings"] = mappings.Stats()

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	}
}

func statsHandler(h *hub.Hub, mappings *mapping.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"hub":      h.Stats(),
			"mappings": mappings.Stats(),
		})
	}
}

// tickersHandler answers which exchange tickers currently map to a game, so
// clients can label the prices they receive.
func tickersHandler(mappings *mapping.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gameID, err := uuid.Parse(chi.URLParam(r, "gameID"))
		if err != nil {
			http.Error(w, `{"error":"invalid game id"}`, http.StatusBadRequest)
			return
		}

		tickers := mappings.TickersForGame(gameID)
		if tickers == nil {
			tickers = []string{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"game_id": gameID,
			"tickers": tickers,
		})
	}
}
