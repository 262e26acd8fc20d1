// ingestor runs the ingestion worker: it keeps the exchange market table
// current, matches markets to registry games, owns the one streaming
// connection, and publishes oriented price updates to Redis.
//
// Usage: go run ./cmd/ingestor --config configs/ingestor.local.yaml
//
// Optional environment variables (expanded into the config file):
//
//	KALSHI_API_KEY          - API key ID from the exchange dashboard
//	KALSHI_PRIVATE_KEY_PATH - Path to the RSA private key PEM file
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/gamelinehq/marketfeed/internal/api"
	"github.com/gamelinehq/marketfeed/internal/auth"
	"github.com/gamelinehq/marketfeed/internal/config"
	"github.com/gamelinehq/marketfeed/internal/database"
	"github.com/gamelinehq/marketfeed/internal/fanout"
	"github.com/gamelinehq/marketfeed/internal/mapping"
	"github.com/gamelinehq/marketfeed/internal/poller"
	"github.com/gamelinehq/marketfeed/internal/registry"
	"github.com/gamelinehq/marketfeed/internal/resolver"
	"github.com/gamelinehq/marketfeed/internal/store"
	"github.com/gamelinehq/marketfeed/internal/stream"
	"github.com/gamelinehq/marketfeed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/ingestor.local.yaml", "path to config file")
	flag.Parse()

	// .env is optional; deployments inject environment directly.
	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting ingestor",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if len(cfg.Poller.Series) == 0 {
		logger.Error("poller.series is empty, nothing to ingest")
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

	var creds *auth.Credentials
	if cfg.Exchange.PrivateKeyPath != "" {
		creds, err = auth.Load(cfg.Exchange.APIKey, cfg.Exchange.PrivateKeyPath)
		if err != nil {
			logger.Error("failed to load exchange credentials", "error", err)
			os.Exit(1)
		}
		logger.Info("exchange credentials loaded", "key_id", cfg.Exchange.APIKey)
	} else {
		logger.Warn("no exchange credentials configured, connecting unauthenticated")
	}

	apiOpts := []api.ClientOption{
		api.WithLogger(logger),
		api.WithTimeout(cfg.Exchange.Timeout),
		api.WithRetries(cfg.Exchange.MaxRetries, time.Second),
		api.WithRequestSpacing(cfg.Exchange.RequestSpacing),
	}
	if creds != nil {
		apiOpts = append(apiOpts, api.WithCredentials(creds))
	}
	apiClient := api.NewClient(cfg.Exchange.RestURL, apiOpts...)

	st := store.New(pool, logger)

	snap := mapping.NewSnapshot(rdb, cfg.Mappings.SnapshotTTL)
	mappings := mapping.NewService(mapping.Config{
		MaxEntries:      cfg.Mappings.MaxEntries,
		RefreshInterval: cfg.Mappings.RefreshInterval,
	}, st, snap, logger)

	res := resolver.New(st, logger)

	pol := poller.New(poller.Config{
		Interval: cfg.Poller.Interval,
		Series:   cfg.Poller.Series,
	}, apiClient, st, logger)

	feed := stream.NewClient(stream.Config{
		URL:                  cfg.Exchange.WSURL,
		Credentials:          creds,
		MaxSubscriptions:     cfg.Stream.MaxSubscriptions,
		SubscribeBatchSize:   cfg.Stream.SubscribeBatchSize,
		SubscribeBatchDelay:  cfg.Stream.SubscribeBatchDelay,
		PingInterval:         cfg.Stream.PingInterval,
		PongTimeout:          cfg.Stream.PongTimeout,
		MaxReconnectAttempts: cfg.Stream.MaxReconnectAttempts,
	}, logger)

	pub := fanout.NewPublisher(rdb, logger)
	signals := registry.NewSignal(rdb, logger)

	// Health server first so the slow initial refresh is observable.
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: healthHandler(pool, st, mappings, feed),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Server.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	if err := mappings.Start(ctx); err != nil {
		logger.Error("failed to start mapping service", "error", err)
		os.Exit(1)
	}
	if err := signals.Start(ctx); err != nil {
		logger.Error("failed to start registry signal", "error", err)
		os.Exit(1)
	}
	if err := pol.Start(ctx); err != nil {
		logger.Error("failed to start market poller", "error", err)
		os.Exit(1)
	}
	if err := feed.Start(ctx); err != nil {
		logger.Error("failed to start stream client", "error", err)
		os.Exit(1)
	}

	// One goroutine owns the hot path: tick -> mapping lookup -> orient ->
	// publish. Unmapped or unorientable ticks drop at debug level.
	go func() {
		for tick := range feed.Ticks() {
			m, ok := mappings.Get(tick.Ticker)
			if !ok {
				logger.Debug("tick for unmapped ticker", "ticker", tick.Ticker)
				continue
			}
			update, ok := fanout.Orient(tick, m)
			if !ok {
				logger.Debug("tick side matches neither team", "ticker", tick.Ticker)
				continue
			}
			pub.Publish(ctx, update)
		}
	}()

	go orchestrate(ctx, res, mappings, feed, pol, signals, logger)

	logger.Info("ingestor running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port),
	)

	// A terminal stream failure ends the process; the supervisor restarts it.
	select {
	case <-ctx.Done():
	case err := <-feed.Fatal():
		logger.Error("stream terminally failed", "error", err)
		cancel()
	}

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	healthServer.Shutdown(shutdownCtx)
	if err := feed.Stop(shutdownCtx); err != nil {
		logger.Warn("stream client stop", "error", err)
	}
	if err := pol.Stop(shutdownCtx); err != nil {
		logger.Warn("market poller stop", "error", err)
	}
	if err := signals.Stop(shutdownCtx); err != nil {
		logger.Warn("registry signal stop", "error", err)
	}
	if err := mappings.Stop(shutdownCtx); err != nil {
		logger.Warn("mapping service stop", "error", err)
	}

	logger.Info("ingestor stopped")
}

// orchestrate schedules match passes and keeps the stream subscription set
// aligned with the mapping cache. Passes run behind fresh data (poll cycles)
// and registry refresh signals; the reconcile ticker catches refreshes the
// passes did not cause, such as the fallback reload.
func orchestrate(
	ctx context.Context,
	res *resolver.Resolver,
	mappings *mapping.Service,
	feed *stream.Client,
	pol *poller.Poller,
	signals *registry.Signal,
	logger *slog.Logger,
) {
	// The warm cache may already hold live mappings.
	subscribed := reconcileSubscriptions(feed, nil, mappings.Tickers())

	reconcile := time.NewTicker(30 * time.Second)
	defer reconcile.Stop()

	runPass := func() {
		stats, err := res.Run(ctx)
		if err != nil {
			logger.Error("match pass failed", "error", err)
			return
		}
		if stats.Matched == 0 && stats.Cleared == 0 {
			return
		}
		if err := mappings.Refresh(ctx); err != nil {
			logger.Error("mapping refresh failed", "error", err)
			return
		}
		subscribed = reconcileSubscriptions(feed, subscribed, mappings.Tickers())
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-pol.Cycles():
			runPass()
		case <-signals.Events():
			logger.Info("registry refresh signal received")
			runPass()
		case <-reconcile.C:
			subscribed = reconcileSubscriptions(feed, subscribed, mappings.Tickers())
		}
	}
}

// reconcileSubscriptions diffs the wanted ticker set against the previous
// one and issues the stream calls for the difference. Returns the new set.
func reconcileSubscriptions(feed *stream.Client, prev map[string]struct{}, want []string) map[string]struct{} {
	next := make(map[string]struct{}, len(want))
	var added []string
	for _, t := range want {
		next[t] = struct{}{}
		if _, ok := prev[t]; !ok {
			added = append(added, t)
		}
	}
	var removed []string
	for t := range prev {
		if _, ok := next[t]; !ok {
			removed = append(removed, t)
		}
	}

	if len(added) > 0 {
		feed.Subscribe(added)
	}
	if len(removed) > 0 {
		feed.Unsubscribe(removed)
	}
	return next
}

// healthHandler reports component health: database connectivity, market
// counts, mapping cache fill, and stream connection state.
func healthHandler(pool *pgxpool.Pool, st *store.Store, mappings *mapping.Service, feed *stream.Client) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancelReq := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancelReq()

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

		live, matched, err := st.MarketCounts(ctx)
		if err == nil {
			health.Components["markets"] = map[string]int64{
				"live":    live,
				"matched": matched,
			}
		}

		health.Components["mappings"] = mappings.Stats()

		streamStats := feed.Stats()
		health.Components["stream"] = streamStats
		if streamStats.State != stream.StateConnected.String() && health.Status == "healthy" {
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
