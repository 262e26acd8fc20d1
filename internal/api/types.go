package api

// ExchangeStatusResponse from GET /exchange/status
type ExchangeStatusResponse struct {
	ExchangeActive      bool   `json:"exchange_active"`
	TradingActive       bool   `json:"trading_active"`
	EstimatedResumeTime string `json:"exchange_estimated_resume_time,omitempty"`
}

// MarketsResponse from GET /markets
type MarketsResponse struct {
	Markets []APIMarket `json:"markets"`
	Cursor  string      `json:"cursor"`
}

// APIMarket is the wire form of a market. Prices are integer cents.
type APIMarket struct {
	Ticker      string `json:"ticker"`
	EventTicker string `json:"event_ticker"`
	Title       string `json:"title"`
	Status      string `json:"status"`

	YesBid int `json:"yes_bid"`
	YesAsk int `json:"yes_ask"`
	NoBid  int `json:"no_bid"`
	NoAsk  int `json:"no_ask"`

	// Timestamps (ISO 8601)
	OpenTime  string `json:"open_time"`
	CloseTime string `json:"close_time"`
}

// SingleMarketResponse from GET /markets/{ticker}
type SingleMarketResponse struct {
	Market APIMarket `json:"market"`
}

// GetMarketsOptions configures a GetMarkets request.
type GetMarketsOptions struct {
	Limit        int
	Cursor       string
	EventTicker  string
	SeriesTicker string
	Tickers      []string
	Status       string
}
