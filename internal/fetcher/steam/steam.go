// Package steam fetches price data from the Steam Community Market.
package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"skinarb/internal/fetcher"
	"skinarb/internal/ratelimit"
)

const (
	baseURL        = "https://steamcommunity.com/market/priceoverview/"
	requestTimeout = 10 * time.Second

	// DefaultAppID is the CS2 app ID.
	DefaultAppID = 730
)

// priceOverviewResponse is Steam's raw payload. Prices arrive as
// currency-formatted strings.
type priceOverviewResponse struct {
	Success     bool   `json:"success"`
	LowestPrice string `json:"lowest_price"`
	Volume      string `json:"volume"`
	MedianPrice string `json:"median_price"`
}

// Config holds Steam fetcher settings.
type Config struct {
	AppID             int
	CurrencyID        int
	RequestsPerMinute int
	BackoffBase       float64
	MaxRetries        int

	// BaseURL overrides the production endpoint; tests point it at a
	// local server.
	BaseURL string
}

// Fetcher issues rate-limited, retried price-overview queries.
// Single-consumer: it owns its rate limiter.
type Fetcher struct {
	cfg        Config
	limiter    *ratelimit.Limiter
	retryer    *fetcher.Retryer
	httpClient *http.Client
	headers    map[string]string
	logger     *logrus.Logger
}

// New creates a Steam fetcher.
func New(cfg Config, logger *logrus.Logger) *Fetcher {
	if cfg.AppID == 0 {
		cfg.AppID = DefaultAppID
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 10
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}

	return &Fetcher{
		cfg:     cfg,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		retryer: fetcher.NewRetryer(fetcher.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BackoffBase: cfg.BackoffBase,
			Name:        fetcher.SourceSteam,
		}, logger),
		httpClient: &http.Client{Timeout: requestTimeout},
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.5",
		},
		logger: logger,
	}
}

// FetchQuote fetches the price overview for a market hash name. The
// result is always failure-shaped on error; transport problems never
// escape as errors.
func (f *Fetcher) FetchQuote(ctx context.Context, marketHashName string) fetcher.FetchResult {
	reqURL := fmt.Sprintf("%s?appid=%d&currency=%d&market_hash_name=%s",
		f.cfg.BaseURL, f.cfg.AppID, f.cfg.CurrencyID, url.QueryEscape(marketHashName))

	if err := f.limiter.Acquire(ctx); err != nil {
		return fetcher.FetchResult{Outcome: fetcher.Failure(err.Error(), nil, nil)}
	}

	var result fetcher.FetchResult
	err := f.retryer.Do(ctx, func() error {
		status, latencyMS, body, err := f.get(ctx, reqURL)
		if err != nil {
			result = fetcher.FetchResult{Outcome: fetcher.Failure(err.Error(), nil, nil)}
			return err
		}

		if status != http.StatusOK {
			f.logger.Warnf("Steam API returned status %d for %s", status, marketHashName)
			result = fetcher.FetchResult{
				Outcome: fetcher.Failure(fmt.Sprintf("HTTP %d", status), &status, &latencyMS),
			}
			return fmt.Errorf("status %d", status)
		}

		var payload priceOverviewResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			result = fetcher.FetchResult{
				Outcome: fetcher.Failure(fmt.Sprintf("malformed payload: %v", err), &status, &latencyMS),
			}
			return fmt.Errorf("unmarshal price overview: %w", err)
		}

		if !payload.Success {
			// API answered but reported failure; not worth retrying.
			result = fetcher.FetchResult{
				Outcome: fetcher.Failure("steam reported success=false", &status, &latencyMS),
			}
			return nil
		}

		lowest := fetcher.ParsePrice(payload.LowestPrice, f.logger)
		result = fetcher.FetchResult{
			Outcome: fetcher.Outcome{Success: true, StatusCode: &status, LatencyMS: &latencyMS},
			Observation: &fetcher.Observation{
				Source: fetcher.SourceSteam,
				// Steam's price overview only exposes the sell side:
				// lowest listing is the best ask, no bid data.
				BestAsk:     lowest,
				LowestPrice: lowest,
				MedianPrice: fetcher.ParsePrice(payload.MedianPrice, f.logger),
				Volume:      fetcher.ParseVolume(payload.Volume, f.logger),
				Raw:         json.RawMessage(body),
			},
		}
		return nil
	})

	if err != nil && result.Err == "" {
		result = fetcher.FetchResult{Outcome: fetcher.Failure(err.Error(), nil, nil)}
	}
	return result
}

// get issues one GET and measures round-trip latency. A transport error
// yields no status or latency.
func (f *Fetcher) get(ctx context.Context, rawURL string) (int, int64, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, 0, nil, err
	}
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, 0, nil, err
	}
	latencyMS := time.Since(start).Milliseconds()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, 0, nil, err
	}
	return resp.StatusCode, latencyMS, body, nil
}
