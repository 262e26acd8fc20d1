package api

import (
	"context"
	"fmt"
)

// GetExchangeStatus fetches the exchange trading status. The poller checks
// it once per cycle so a halted exchange shows up in health output.
func (c *Client) GetExchangeStatus(ctx context.Context) (*ExchangeStatusResponse, error) {
	var resp ExchangeStatusResponse
	if err := c.get(ctx, "/exchange/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("get exchange status: %w", err)
	}
	return &resp, nil
}
