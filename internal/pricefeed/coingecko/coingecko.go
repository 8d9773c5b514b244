// Package coingecko fetches USD spot prices from the CoinGecko simple price
// API.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/coinwatch/internal/alerts"
)

const (
	// DefaultBaseURL is the public CoinGecko API root.
	DefaultBaseURL = "https://api.coingecko.com/api/v3"

	httpTimeout  = 10 * time.Second
	apiKeyHeader = "x-cg-demo-api-key"
)

// ErrRateLimited is returned when CoinGecko answers 429.
var ErrRateLimited = errors.New("coingecko: rate limited")

// StatusError is returned for non-2xx responses other than 429.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("coingecko: status %d: %s", e.Code, e.Body)
}

// Client calls the simple/price endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a client. An empty baseURL uses DefaultBaseURL; an empty apiKey
// sends unauthenticated requests.
func New(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   httpTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// SimplePrices returns the USD price of each requested coin id. Coins the API
// does not know are absent from the result.
func (c *Client) SimplePrices(ctx context.Context, ids []string) (alerts.Prices, error) {
	if len(ids) == 0 {
		return alerts.Prices{}, nil
	}

	values := url.Values{}
	values.Set("ids", strings.Join(ids, ","))
	values.Set("vs_currencies", "usd")
	endpoint := c.baseURL + "/simple/price?" + values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("coingecko: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // baseURL is from trusted config
	if err != nil {
		return nil, fmt.Errorf("coingecko: fetch prices: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload map[string]struct {
		USD *float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("coingecko: decode prices: %w", err)
	}

	out := make(alerts.Prices, len(payload))
	for id, v := range payload {
		if v.USD == nil {
			continue
		}
		out[id] = *v.USD
	}
	return out, nil
}
