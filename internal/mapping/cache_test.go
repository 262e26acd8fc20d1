package mapping

import (
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/gamelinehq/marketfeed/internal/model"
)

func mk(ticker string, gameID uuid.UUID) model.TickerMapping {
	return model.TickerMapping{
		Ticker:   ticker,
		GameID:   gameID,
		AwayCode: "DET",
		HomeCode: "SEA",
		Sport:    "nfl",
	}
}

func TestCacheGetMissThenHit(t *testing.T) {
	c := NewCache(10)

	if _, ok := c.Get("KXNFLGAME-25SEP04DETSEA-DET"); ok {
		t.Fatal("Get on empty cache returned ok")
	}

	gameID := uuid.New()
	c.Add(mk("KXNFLGAME-25SEP04DETSEA-DET", gameID))

	m, ok := c.Get("KXNFLGAME-25SEP04DETSEA-DET")
	if !ok {
		t.Fatal("Get after Add returned !ok")
	}
	if m.GameID != gameID {
		t.Errorf("GameID = %s, want %s", m.GameID, gameID)
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("hits/misses = %d/%d, want 1/1", stats.Hits, stats.Misses)
	}
}

func TestCacheEvictsTenthAtCapacity(t *testing.T) {
	c := NewCache(20)
	for i := 0; i < 20; i++ {
		c.Add(mk(fmt.Sprintf("T-%02d", i), uuid.New()))
	}
	if c.Len() != 20 {
		t.Fatalf("Len = %d, want 20", c.Len())
	}

	// Inserting the 21st entry must first evict 20/10 = 2 entries.
	c.Add(mk("T-20", uuid.New()))

	if got, want := c.Len(), 19; got != want {
		t.Errorf("Len after eviction = %d, want %d", got, want)
	}
	if got, want := c.Stats().Evictions, uint64(2); got != want {
		t.Errorf("Evictions = %d, want %d", got, want)
	}

	// The two least recently used entries were the first two added.
	for _, ticker := range []string{"T-00", "T-01"} {
		if _, ok := c.Get(ticker); ok {
			t.Errorf("%s survived eviction", ticker)
		}
	}
	if _, ok := c.Get("T-02"); !ok {
		t.Error("T-02 was evicted, want kept")
	}
}

func TestCacheEvictsAtLeastOne(t *testing.T) {
	c := NewCache(5) // 5/10 rounds to 0, must still evict 1
	for i := 0; i < 5; i++ {
		c.Add(mk(fmt.Sprintf("T-%d", i), uuid.New()))
	}
	c.Add(mk("T-5", uuid.New()))

	if got, want := c.Len(), 5; got != want {
		t.Errorf("Len = %d, want %d", got, want)
	}
	if got, want := c.Stats().Evictions, uint64(1); got != want {
		t.Errorf("Evictions = %d, want %d", got, want)
	}
}

func TestCacheGetProtectsFromEviction(t *testing.T) {
	c := NewCache(10)
	for i := 0; i < 10; i++ {
		c.Add(mk(fmt.Sprintf("T-%d", i), uuid.New()))
	}

	// T-0 is the oldest insert but a recent access moves it to the front.
	if _, ok := c.Get("T-0"); !ok {
		t.Fatal("T-0 missing before eviction")
	}

	c.Add(mk("T-10", uuid.New()))

	if _, ok := c.Get("T-0"); !ok {
		t.Error("recently read T-0 was evicted")
	}
	if _, ok := c.Get("T-1"); ok {
		t.Error("T-1 survived, want evicted as least recently used")
	}
}

func TestCacheAddReplacesExisting(t *testing.T) {
	c := NewCache(10)
	oldGame := uuid.New()
	newGame := uuid.New()

	c.Add(mk("T-0", oldGame))
	c.Add(mk("T-0", newGame))

	if c.Len() != 1 {
		t.Fatalf("Len = %d, want 1", c.Len())
	}
	m, _ := c.Get("T-0")
	if m.GameID != newGame {
		t.Errorf("GameID = %s, want %s", m.GameID, newGame)
	}
	if got := c.TickersForGame(oldGame); len(got) != 0 {
		t.Errorf("old game still indexes %v", got)
	}
	if got := c.TickersForGame(newGame); len(got) != 1 || got[0] != "T-0" {
		t.Errorf("TickersForGame(new) = %v, want [T-0]", got)
	}
}

func TestCacheTickersForGame(t *testing.T) {
	c := NewCache(10)
	game := uuid.New()
	other := uuid.New()

	c.Add(mk("T-B", game))
	c.Add(mk("T-A", game))
	c.Add(mk("T-C", other))

	got := c.TickersForGame(game)
	if len(got) != 2 || got[0] != "T-A" || got[1] != "T-B" {
		t.Errorf("TickersForGame = %v, want [T-A T-B]", got)
	}
	if got := c.TickersForGame(uuid.New()); got != nil {
		t.Errorf("unknown game = %v, want nil", got)
	}
}

func TestCacheRemoveUpdatesIndex(t *testing.T) {
	c := NewCache(10)
	game := uuid.New()

	c.Add(mk("T-A", game))
	c.Add(mk("T-B", game))
	c.Remove("T-A")

	if _, ok := c.Get("T-A"); ok {
		t.Error("removed ticker still cached")
	}
	if got := c.TickersForGame(game); len(got) != 1 || got[0] != "T-B" {
		t.Errorf("TickersForGame = %v, want [T-B]", got)
	}

	c.Remove("T-B")
	if got := c.TickersForGame(game); len(got) != 0 {
		t.Errorf("empty game still indexes %v", got)
	}
	// Removing an absent ticker is a no-op.
	c.Remove("T-A")
}

func TestCacheEvictionUpdatesIndex(t *testing.T) {
	c := NewCache(5)
	game := uuid.New()
	c.Add(mk("T-0", game))
	for i := 1; i < 5; i++ {
		c.Add(mk(fmt.Sprintf("T-%d", i), uuid.New()))
	}

	c.Add(mk("T-5", uuid.New())) // evicts T-0

	if got := c.TickersForGame(game); len(got) != 0 {
		t.Errorf("evicted ticker still indexed: %v", got)
	}
}

func TestCacheReplaceAll(t *testing.T) {
	c := NewCache(10)
	stale := uuid.New()
	c.Add(mk("OLD", stale))

	game := uuid.New()
	c.ReplaceAll([]model.TickerMapping{mk("T-A", game), mk("T-B", game)})

	if _, ok := c.Get("OLD"); ok {
		t.Error("ReplaceAll kept a pre-existing entry")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
	if got := c.TickersForGame(stale); len(got) != 0 {
		t.Errorf("stale game still indexed: %v", got)
	}
	if got := c.TickersForGame(game); len(got) != 2 {
		t.Errorf("TickersForGame = %v, want two tickers", got)
	}
}

func TestCacheReplaceAllTruncatesToCapacity(t *testing.T) {
	c := NewCache(10)
	mappings := make([]model.TickerMapping, 14)
	for i := range mappings {
		mappings[i] = mk(fmt.Sprintf("T-%02d", i), uuid.New())
	}

	dropped := c.ReplaceAll(mappings)

	if dropped != 4 {
		t.Errorf("dropped = %d, want 4", dropped)
	}
	if c.Len() != 10 {
		t.Errorf("Len = %d, want 10", c.Len())
	}
}

func TestCacheAll(t *testing.T) {
	c := NewCache(10)
	c.Add(mk("T-B", uuid.New()))
	c.Add(mk("T-A", uuid.New()))

	all := c.All()
	if len(all) != 2 {
		t.Fatalf("All returned %d entries, want 2", len(all))
	}
	if all[0].Ticker != "T-A" || all[1].Ticker != "T-B" {
		t.Errorf("All order = [%s %s], want sorted by ticker", all[0].Ticker, all[1].Ticker)
	}
}

func TestCacheTickers(t *testing.T) {
	c := NewCache(10)
	c.Add(mk("T-C", uuid.New()))
	c.Add(mk("T-A", uuid.New()))
	c.Add(mk("T-B", uuid.New()))

	got := c.Tickers()
	want := []string{"T-A", "T-B", "T-C"}
	if len(got) != len(want) {
		t.Fatalf("Tickers returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tickers[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
