package mapping

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/gamelinehq/marketfeed/internal/model"
)

// Source loads the authoritative mapping rows. Implemented by store.Store.
type Source interface {
	LiveMappings(ctx context.Context) ([]model.TickerMapping, error)
}

// Config holds mapping service settings.
type Config struct {
	MaxEntries      int
	RefreshInterval time.Duration // fallback timer; registry events are the primary trigger
	RefreshTimeout  time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxEntries:      2000,
		RefreshInterval: 5 * time.Minute,
		RefreshTimeout:  30 * time.Second,
	}
}

// Service owns the in-process mapping cache and keeps it fresh. Refreshes
// are driven by registry events (TriggerRefresh) with a fallback timer in
// case an event is missed; concurrent triggers collapse into one in-flight
// reload. The local cache is authoritative; the shared snapshot only warms
// a cold start.
type Service struct {
	cfg    Config
	source Source
	snap   *Snapshot // optional
	cache  *Cache
	logger *slog.Logger

	refreshCh  chan struct{}
	refreshing atomic.Bool

	lastRefresh atomic.Int64 // unix nanos of last successful refresh

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewService creates the mapping service. snap may be nil to run without
// the shared snapshot.
func NewService(cfg Config, source Source, snap *Snapshot, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultConfig().MaxEntries
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultConfig().RefreshInterval
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = DefaultConfig().RefreshTimeout
	}

	return &Service{
		cfg:       cfg,
		source:    source,
		snap:      snap,
		cache:     NewCache(cfg.MaxEntries),
		logger:    logger,
		refreshCh: make(chan struct{}, 1),
	}
}

// Start warms the cache and begins the refresh loop. A failed initial load
// is logged, not fatal: the service starts (possibly snapshot-warmed) and
// the next refresh retries.
func (s *Service) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if s.snap != nil {
		if warmed, err := s.snap.Load(s.ctx); err != nil {
			s.logger.Warn("snapshot warm-up failed", "error", err)
		} else if len(warmed) > 0 {
			s.cache.ReplaceAll(warmed)
			s.logger.Info("cache warmed from snapshot", "mappings", len(warmed))
		}
	}

	if err := s.Refresh(s.ctx); err != nil {
		s.logger.Warn("initial mapping refresh failed", "error", err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refreshLoop()
	}()

	s.logger.Info("mapping service started",
		"max_entries", s.cfg.MaxEntries,
		"refresh_interval", s.cfg.RefreshInterval,
	)
	return nil
}

// Stop halts the refresh loop, waiting up to the context deadline.
func (s *Service) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("mapping service stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("mapping service stop timed out")
		return ctx.Err()
	}
}

// Get returns the mapping for ticker, if cached.
func (s *Service) Get(ticker string) (model.TickerMapping, bool) {
	return s.cache.Get(ticker)
}

// Add inserts one mapping without a full reload (incremental match path).
func (s *Service) Add(m model.TickerMapping) {
	s.cache.Add(m)
}

// Remove drops one ticker's mapping.
func (s *Service) Remove(ticker string) {
	s.cache.Remove(ticker)
}

// TickersForGame returns the tickers currently mapped to a game.
func (s *Service) TickersForGame(gameID uuid.UUID) []string {
	return s.cache.TickersForGame(gameID)
}

// Tickers returns every cached ticker, sorted. The stream subscription set
// is reconciled against it.
func (s *Service) Tickers() []string {
	return s.cache.Tickers()
}

// TriggerRefresh requests an asynchronous refresh. Multiple calls while
// one is pending coalesce into a single reload.
func (s *Service) TriggerRefresh() {
	select {
	case s.refreshCh <- struct{}{}:
	default:
	}
}

// Refresh reloads the cache from the source synchronously. If another
// refresh is already in flight the call returns immediately.
func (s *Service) Refresh(ctx context.Context) error {
	if !s.refreshing.CompareAndSwap(false, true) {
		return nil
	}
	defer s.refreshing.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.RefreshTimeout)
	defer cancel()

	start := time.Now()
	mappings, err := s.source.LiveMappings(ctx)
	if err != nil {
		return fmt.Errorf("load mappings: %w", err)
	}

	dropped := s.cache.ReplaceAll(mappings)
	if dropped > 0 {
		s.logger.Warn("mapping load exceeded cache capacity",
			"loaded", len(mappings), "dropped", dropped)
	}
	s.lastRefresh.Store(time.Now().UnixNano())

	// Best effort: other processes may warm from this, never depend on it.
	if s.snap != nil {
		if err := s.snap.Save(ctx, s.cache.All()); err != nil {
			s.logger.Warn("snapshot save failed", "error", err)
		}
	}

	s.logger.Debug("mappings refreshed",
		"count", s.cache.Len(),
		"duration", time.Since(start),
	)
	return nil
}

// Stats reports cache counters plus refresh freshness.
func (s *Service) Stats() ServiceStats {
	var last time.Time
	if n := s.lastRefresh.Load(); n > 0 {
		last = time.Unix(0, n)
	}
	return ServiceStats{
		Cache:       s.cache.Stats(),
		LastRefresh: last,
	}
}

// ServiceStats is exposed on the stats endpoint.
type ServiceStats struct {
	Cache       CacheStats `json:"cache"`
	LastRefresh time.Time  `json:"last_refresh"`
}

func (s *Service) refreshLoop() {
	ticker := time.NewTicker(s.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.refreshCh:
		case <-ticker.C:
		}

		if err := s.Refresh(s.ctx); err != nil {
			s.logger.Error("mapping refresh failed", "error", err)
		}
	}
}
