package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gamelinehq/marketfeed/internal/api"
	"github.com/gamelinehq/marketfeed/internal/model"
)

// MarketStore persists fetched markets.
type MarketStore interface {
	UpsertMarkets(ctx context.Context, markets []model.Market) error
}

// Config holds fetch loop settings.
type Config struct {
	Interval     time.Duration // poll cadence (default: 10m)
	Series       []string      // exchange series tickers to list
	FetchTimeout time.Duration // deadline for one whole cycle (default: 5m)
}

// DefaultConfig returns sensible defaults. Series has no default; the
// caller decides what to ingest.
func DefaultConfig() Config {
	return Config{
		Interval:     10 * time.Minute,
		FetchTimeout: 5 * time.Minute,
	}
}

// Poller periodically lists exchange markets for the configured series and
// upserts the rows that parse as sports games. Upserts never touch match
// state; game assignment belongs to the resolver.
type Poller struct {
	cfg    Config
	client *api.Client
	store  MarketStore
	logger *slog.Logger

	cycles chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, client *api.Client, store MarketStore, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	return &Poller{
		cfg:    cfg,
		client: client,
		store:  store,
		logger: logger,
		cycles: make(chan struct{}, 1),
	}
}

// Start begins the fetch loop. The first cycle runs immediately.
func (p *Poller) Start(ctx context.Context) error {
	if len(p.cfg.Series) == 0 {
		return errors.New("poller: no series configured")
	}

	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("market poller started",
		"interval", p.cfg.Interval,
		"series", p.cfg.Series,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("market poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cycles signals fetch cycles that stored rows. Signals coalesce; consumers
// use them to schedule match passes behind fresh data.
func (p *Poller) Cycles() <-chan struct{} {
	return p.cycles
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.poll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll runs one fetch cycle across all configured series. Per-series
// failures are logged and skipped so one bad series cannot starve the rest.
func (p *Poller) poll() {
	start := time.Now()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.FetchTimeout)
	defer cancel()

	if !p.exchangeActive(ctx) {
		return
	}

	var fetched, stored, skipped int
	for _, series := range p.cfg.Series {
		rows, err := p.client.GetAllMarkets(ctx, api.GetMarketsOptions{SeriesTicker: series})
		if err != nil {
			p.logger.Error("listing series markets", "series", series, "error", err)
			continue
		}
		fetched += len(rows)

		markets := make([]model.Market, 0, len(rows))
		for i := range rows {
			m, ok := rows[i].ToModel()
			if !ok {
				skipped++
				continue
			}
			markets = append(markets, m)
		}
		if len(markets) == 0 {
			continue
		}

		if err := p.store.UpsertMarkets(ctx, markets); err != nil {
			p.logger.Error("upserting markets",
				"series", series,
				"count", len(markets),
				"error", err,
			)
			continue
		}
		stored += len(markets)
	}

	if stored > 0 {
		select {
		case p.cycles <- struct{}{}:
		default:
		}
	}

	p.logger.Info("fetch cycle complete",
		"series", len(p.cfg.Series),
		"fetched", fetched,
		"stored", stored,
		"skipped", skipped,
		"duration", time.Since(start),
	)
}

// exchangeActive checks exchange status once per cycle. A halted exchange
// skips the cycle; a failed status check does not, since the listing call
// surfaces real outages on its own.
func (p *Poller) exchangeActive(ctx context.Context) bool {
	status, err := p.client.GetExchangeStatus(ctx)
	if err != nil {
		p.logger.Warn("exchange status check failed", "error", err)
		return true
	}
	if !status.ExchangeActive {
		p.logger.Info("exchange inactive, skipping fetch cycle")
		return false
	}
	return true
}
