package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultPaginationTimeout bounds full-listing pagination loops when the
// caller's context carries no deadline.
const DefaultPaginationTimeout = 10 * time.Minute

// GetMarkets fetches a page of markets.
func (c *Client) GetMarkets(ctx context.Context, opts GetMarketsOptions) (*MarketsResponse, error) {
	query := url.Values{}

	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Cursor != "" {
		query.Set("cursor", opts.Cursor)
	}
	if opts.EventTicker != "" {
		query.Set("event_ticker", opts.EventTicker)
	}
	if opts.SeriesTicker != "" {
		query.Set("series_ticker", opts.SeriesTicker)
	}
	if len(opts.Tickers) > 0 {
		query.Set("tickers", strings.Join(opts.Tickers, ","))
	}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}

	var resp MarketsResponse
	if err := c.get(ctx, "/markets", query, &resp); err != nil {
		return nil, fmt.Errorf("get markets: %w", err)
	}

	return &resp, nil
}

// GetAllMarkets fetches every market matching opts by following cursors.
// Uses DefaultPaginationTimeout if the context has no deadline.
func (c *Client) GetAllMarkets(ctx context.Context, opts GetMarketsOptions) ([]APIMarket, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultPaginationTimeout)
		defer cancel()
	}

	var all []APIMarket
	opts.Limit = 1000 // max page size

	for {
		resp, err := c.GetMarkets(ctx, opts)
		if err != nil {
			return nil, err
		}

		all = append(all, resp.Markets...)

		if resp.Cursor == "" {
			break
		}
		opts.Cursor = resp.Cursor
	}

	return all, nil
}

// GetMarket fetches a single market by ticker.
func (c *Client) GetMarket(ctx context.Context, ticker string) (*APIMarket, error) {
	var resp SingleMarketResponse
	if err := c.get(ctx, "/markets/"+ticker, nil, &resp); err != nil {
		return nil, fmt.Errorf("get market %s: %w", ticker, err)
	}
	return &resp.Market, nil
}
