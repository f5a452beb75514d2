// Package buff fetches price data from the Buff marketplace.
//
// Buff exposes three endpoints: goods search, sell-order listing
// (asks), and buy-order listing (bids). A session cookie from the
// environment improves result completeness but is not required for
// these read paths.
package buff

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
	baseURL        = "https://buff.163.com"
	requestTimeout = 10 * time.Second

	// DefaultGame is the CS2 game tag.
	DefaultGame = "csgo"
)

// searchResponse is the raw goods-search payload.
type searchResponse struct {
	Data struct {
		Items []fetcher.Candidate `json:"items"`
	} `json:"data"`
}

// orderResponse is the raw order-listing payload. Orders arrive
// price-sorted: best first.
type orderResponse struct {
	Data struct {
		Items []struct {
			Price string `json:"price"`
		} `json:"items"`
	} `json:"data"`
}

// Config holds Buff fetcher settings.
type Config struct {
	Game              string
	Cookie            string
	RequestsPerMinute int
	BackoffBase       float64
	MaxRetries        int

	// BaseURL overrides the production endpoint; tests point it at a
	// local server.
	BaseURL string
}

// Fetcher issues rate-limited, retried Buff queries. Single-consumer:
// it owns its rate limiter, which is shared across all three endpoints
// because Buff's budget is per client, not per endpoint.
type Fetcher struct {
	cfg        Config
	limiter    *ratelimit.Limiter
	retryer    *fetcher.Retryer
	httpClient *http.Client
	headers    map[string]string
	logger     *logrus.Logger
}

// New creates a Buff fetcher.
func New(cfg Config, logger *logrus.Logger) *Fetcher {
	if cfg.Game == "" {
		cfg.Game = DefaultGame
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 20
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	if cfg.Cookie == "" {
		logger.Warn("BUFF_COOKIE not set. Some endpoints may require authentication.")
	}

	headers := map[string]string{
		"User-Agent":       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		"Accept":           "application/json, text/plain, */*",
		"Accept-Language":  "en-US,en;q=0.9,zh-CN;q=0.8,zh;q=0.7",
		"Referer":          "https://buff.163.com/market/?game=csgo",
		"X-Requested-With": "XMLHttpRequest",
	}
	if cfg.Cookie != "" {
		headers["Cookie"] = cfg.Cookie
	}

	return &Fetcher{
		cfg:     cfg,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		retryer: fetcher.NewRetryer(fetcher.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BackoffBase: cfg.BackoffBase,
			Name:        fetcher.SourceBuff,
		}, logger),
		httpClient: &http.Client{Timeout: requestTimeout},
		headers:    headers,
		logger:     logger,
	}
}

// Search looks up goods by free-text term and returns candidate goods
// IDs, best match first.
func (f *Fetcher) Search(ctx context.Context, term string) fetcher.SearchResult {
	params := url.Values{}
	params.Set("game", f.cfg.Game)
	params.Set("search", term)
	params.Set("page_num", "1")
	params.Set("sort_by", "sell_num.desc")
	reqURL := fmt.Sprintf("%s/api/market/goods?%s", f.cfg.BaseURL, params.Encode())

	if err := f.limiter.Acquire(ctx); err != nil {
		return fetcher.SearchResult{Outcome: fetcher.Failure(err.Error(), nil, nil)}
	}

	var result fetcher.SearchResult
	err := f.retryer.Do(ctx, func() error {
		status, latencyMS, body, err := f.get(ctx, reqURL)
		if err != nil {
			result = fetcher.SearchResult{Outcome: fetcher.Failure(err.Error(), nil, nil)}
			return err
		}
		if status != http.StatusOK {
			f.logger.Warnf("Buff search API returned status %d for %q", status, term)
			result = fetcher.SearchResult{
				Outcome: fetcher.Failure(fmt.Sprintf("HTTP %d", status), &status, &latencyMS),
			}
			return fmt.Errorf("status %d", status)
		}

		var payload searchResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			result = fetcher.SearchResult{
				Outcome: fetcher.Failure(fmt.Sprintf("malformed payload: %v", err), &status, &latencyMS),
			}
			return fmt.Errorf("unmarshal search response: %w", err)
		}

		result = fetcher.SearchResult{
			Outcome:    fetcher.Outcome{Success: true, StatusCode: &status, LatencyMS: &latencyMS},
			Candidates: payload.Data.Items,
			Raw:        json.RawMessage(body),
		}
		return nil
	})

	if err != nil && result.Err == "" {
		result = fetcher.SearchResult{Outcome: fetcher.Failure(err.Error(), nil, nil)}
	}
	return result
}

// FetchSellOrders fetches the ask side for a goods ID. The first order
// is the lowest ask; an empty book yields a nil best price and a zero
// order count.
func (f *Fetcher) FetchSellOrders(ctx context.Context, goodsID int64) fetcher.FetchResult {
	return f.fetchOrders(ctx, goodsID, fetcher.EndpointSellOrders)
}

// FetchBuyOrders fetches the bid side for a goods ID. The first order
// is the highest bid.
func (f *Fetcher) FetchBuyOrders(ctx context.Context, goodsID int64) fetcher.FetchResult {
	return f.fetchOrders(ctx, goodsID, fetcher.EndpointBuyOrders)
}

func (f *Fetcher) fetchOrders(ctx context.Context, goodsID int64, endpoint string) fetcher.FetchResult {
	params := url.Values{}
	params.Set("game", f.cfg.Game)
	params.Set("goods_id", fmt.Sprintf("%d", goodsID))
	params.Set("page_num", "1")
	reqURL := fmt.Sprintf("%s/api/market/goods/%s?%s", f.cfg.BaseURL, endpoint, params.Encode())

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
			f.logger.Warnf("Buff %s API returned status %d for goods_id %d", endpoint, status, goodsID)
			result = fetcher.FetchResult{
				Outcome: fetcher.Failure(fmt.Sprintf("HTTP %d", status), &status, &latencyMS),
			}
			return fmt.Errorf("status %d", status)
		}

		var payload orderResponse
		if err := json.Unmarshal(body, &payload); err != nil {
			result = fetcher.FetchResult{
				Outcome: fetcher.Failure(fmt.Sprintf("malformed payload: %v", err), &status, &latencyMS),
			}
			return fmt.Errorf("unmarshal %s response: %w", endpoint, err)
		}

		orderCount := len(payload.Data.Items)
		var bestPrice *float64
		if orderCount > 0 {
			bestPrice = fetcher.ParsePrice(payload.Data.Items[0].Price, f.logger)
		}

		obs := &fetcher.Observation{
			Source:     fetcher.SourceBuff,
			OrderCount: &orderCount,
			Raw:        json.RawMessage(body),
		}
		if endpoint == fetcher.EndpointSellOrders {
			obs.BestAsk = bestPrice
		} else {
			obs.BestBid = bestPrice
		}

		result = fetcher.FetchResult{
			Outcome:     fetcher.Outcome{Success: true, StatusCode: &status, LatencyMS: &latencyMS},
			Observation: obs,
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
