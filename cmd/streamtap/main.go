// streamtap connects to the exchange price feed and prints parsed ticks to
// the console. It is an operator debug tool: point it at a feed, name some
// tickers, watch the prices move.
//
// Usage: go run ./cmd/streamtap --config configs/ingestor.local.yaml TICKER [TICKER...]
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
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gamelinehq/marketfeed/internal/auth"
	"github.com/gamelinehq/marketfeed/internal/config"
	"github.com/gamelinehq/marketfeed/internal/stream"
)

func main() {
	configPath := flag.String("config", "configs/ingestor.local.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "print full tick JSON")
	flag.Parse()

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: streamtap [flags] TICKER [TICKER...]")
		os.Exit(2)
	}
	tickers := flag.Args()

	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Defaults only: the tap needs no database or redis sections.
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	var creds *auth.Credentials
	if cfg.Exchange.PrivateKeyPath != "" {
		creds, err = auth.Load(cfg.Exchange.APIKey, cfg.Exchange.PrivateKeyPath)
		if err != nil {
			logger.Error("failed to load credentials", "error", err)
			os.Exit(1)
		}
		logger.Info("using exchange credentials", "key_id", cfg.Exchange.APIKey)
	} else {
		logger.Warn("no credentials configured, connecting unauthenticated")
	}

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

	// Queued while disconnected; sent as soon as the dial lands.
	feed.Subscribe(tickers)

	if err := feed.Start(ctx); err != nil {
		logger.Error("failed to start stream client", "error", err)
		os.Exit(1)
	}

	go printTicks(ctx, feed.Ticks(), *verbose)
	go printStats(ctx, feed, logger)

	logger.Info("streaming started, press Ctrl+C to stop",
		"url", cfg.Exchange.WSURL,
		"tickers", len(tickers),
	)

	select {
	case <-ctx.Done():
	case err := <-feed.Fatal():
		logger.Error("stream terminally failed", "error", err)
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := feed.Stop(shutdownCtx); err != nil {
		logger.Warn("stream client stop", "error", err)
	}
	logger.Info("shutdown complete")
}

func printTicks(ctx context.Context, ticks <-chan stream.Tick, verbose bool) {
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			if verbose {
				data, _ := json.MarshalIndent(tick, "", "  ")
				fmt.Printf("[TICK] %s\n", data)
			} else {
				fmt.Printf("[TICK] ticker=%s yes=%d/%d no=%d/%d ts=%d\n",
					tick.Ticker, tick.YesBid, tick.YesAsk, tick.NoBid, tick.NoAsk, tick.Timestamp)
			}
		}
	}
}

func printStats(ctx context.Context, feed *stream.Client, logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := feed.Stats()
			logger.Info("stats",
				"state", stats.State,
				"subscribed", stats.Subscribed,
				"pending", stats.Pending,
				"reconnect_attempts", stats.ReconnectAttempts,
				"ticks_dropped", stats.TicksDropped,
			)
		}
	}
}
