package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gamelinehq/marketfeed/internal/auth"
)

// Client provides access to the exchange REST API.
type Client struct {
	baseURL    string
	signPath   string // path prefix of baseURL, used for request signing
	creds      *auth.Credentials
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. Credentials are optional; the
// market endpoints used here are public, signing just raises rate limits.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	if u, err := url.Parse(c.baseURL); err == nil {
		c.signPath = u.Path
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithCredentials attaches signing credentials to every request.
func WithCredentials(creds *auth.Credentials) ClientOption {
	return func(c *Client) {
		c.creds = creds
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithRequestSpacing enforces a minimum interval between requests, shared
// across goroutines. Pagination loops otherwise hammer the API.
func WithRequestSpacing(d time.Duration) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}
