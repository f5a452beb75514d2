// Package fetcher provides the shared plumbing for marketplace API
// drivers: tagged fetch results, price-string normalization, and the
// bounded exponential-backoff retryer.
//
// Drivers convert every transport error and non-success response into a
// failure-shaped result; nothing past the fetcher boundary sees an
// exception-style error for a failed fetch.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Source names used in fetch logs and snapshots.
const (
	SourceSteam = "steam"
	SourceBuff  = "buff"
)

// Endpoint tags used in fetch logs.
const (
	EndpointPriceOverview = "priceoverview"
	EndpointSearch        = "goods"
	EndpointSellOrders    = "sell_order"
	EndpointBuyOrders     = "buy_order"
)

// Outcome carries the audit fields shared by every fetch result.
// StatusCode and LatencyMS are nil when the transport failed before a
// response arrived.
type Outcome struct {
	Success    bool
	StatusCode *int
	LatencyMS  *int64
	Err        string
}

// Observation is one normalized price read from one source.
type Observation struct {
	Source      string
	BestBid     *float64
	BestAsk     *float64
	LowestPrice *float64
	MedianPrice *float64
	Volume      *int64
	OrderCount  *int

	// Raw is the unmodified response payload, preserved for audit.
	Raw json.RawMessage
}

// FetchResult is the tagged outcome of one logical quote fetch:
// success with an observation, or failure with error detail.
type FetchResult struct {
	Outcome
	Observation *Observation
}

// Candidate is one search hit on the secondary marketplace.
type Candidate struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SearchResult is the tagged outcome of a goods search.
type SearchResult struct {
	Outcome
	Candidates []Candidate
	Raw        json.RawMessage
}

// QuoteFetcher is the capability shared by both marketplace drivers.
type QuoteFetcher interface {
	FetchQuote(ctx context.Context, itemKey string) FetchResult
}

// Failure builds a failure-shaped outcome.
func Failure(err string, statusCode *int, latencyMS *int64) Outcome {
	return Outcome{Success: false, StatusCode: statusCode, LatencyMS: latencyMS, Err: err}
}

// ParsePrice normalizes a marketplace price string to a float. Known
// currency symbols and thousands separators are stripped before
// parsing. A missing or unparseable price yields nil with a warning;
// it never fails the observation.
func ParsePrice(priceStr string, logger *logrus.Logger) *float64 {
	if priceStr == "" {
		return nil
	}

	cleaned := strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(priceStr)
	cleaned = strings.TrimSpace(cleaned)

	dec, err := decimal.NewFromString(cleaned)
	if err != nil {
		if logger != nil {
			logger.Warnf("Could not parse price: %q", priceStr)
		}
		return nil
	}
	value, _ := dec.Float64()
	return &value
}

// ParseVolume normalizes a volume counter string ("1,234" -> 1234).
// Returns nil on a missing or unparseable value.
func ParseVolume(volumeStr string, logger *logrus.Logger) *int64 {
	if volumeStr == "" {
		return nil
	}

	cleaned := strings.TrimSpace(strings.ReplaceAll(volumeStr, ",", ""))
	dec, err := decimal.NewFromString(cleaned)
	if err != nil {
		if logger != nil {
			logger.Warnf("Could not parse volume: %q", volumeStr)
		}
		return nil
	}
	value := dec.IntPart()
	return &value
}

// RetryConfig holds retry settings for one source.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts per logical call.
	MaxAttempts int

	// BackoffBase is the exponential base in seconds: the sleep before
	// attempt N+1 is BackoffBase^N seconds.
	BackoffBase float64

	// Name tags log lines with the owning source.
	Name string
}

// Retryer runs a fetch attempt up to MaxAttempts times with exponential
// backoff. The final failure is returned as a value; it is never
// escalated past the caller.
type Retryer struct {
	cfg    RetryConfig
	logger *logrus.Logger
}

// NewRetryer creates a retryer, applying defaults for zero values.
func NewRetryer(cfg RetryConfig, logger *logrus.Logger) *Retryer {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BackoffBase <= 1 {
		cfg.BackoffBase = 2.0
	}
	if cfg.Name == "" {
		cfg.Name = "fetcher"
	}
	return &Retryer{cfg: cfg, logger: logger}
}

// Do invokes fn until it succeeds or attempts are exhausted. Between
// failed attempts it sleeps BackoffBase^attemptIndex seconds, honoring
// context cancellation. The last error is returned after the final
// attempt.
func (r *Retryer) Do(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			if attempt > 0 {
				r.logger.Infof("[%s] Attempt %d succeeded", r.cfg.Name, attempt+1)
			}
			return nil
		}
		lastErr = err

		if attempt == r.cfg.MaxAttempts-1 {
			break
		}

		backoff := time.Duration(math.Pow(r.cfg.BackoffBase, float64(attempt)) * float64(time.Second))
		r.logger.Warnf("[%s] Attempt %d failed: %v. Retrying in %v...", r.cfg.Name, attempt+1, err, backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", r.cfg.MaxAttempts, lastErr)
}
