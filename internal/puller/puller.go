// Package puller drives the polling cycle: for every tracked item it
// fetches the Steam quote, persists it, resolves and fetches the Buff
// sell side, persists it, and sleeps until the next cycle. A single
// item's failure never aborts the cycle for the others.
package puller

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"skinarb/internal/fetcher"
	"skinarb/internal/models"
	"skinarb/internal/storage"
)

// BuffSource is the Buff capability set the puller needs. The Steam
// side needs only the shared fetcher.QuoteFetcher capability.
type BuffSource interface {
	Search(ctx context.Context, term string) fetcher.SearchResult
	FetchSellOrders(ctx context.Context, goodsID int64) fetcher.FetchResult
}

// Config holds puller settings.
type Config struct {
	// Interval is the sleep between fetch cycles.
	Interval time.Duration

	// ItemPause is the small pause between per-item steps, so the two
	// sources are not hit back-to-back.
	ItemPause time.Duration

	// ItemIDs restricts polling to these items (empty = all).
	ItemIDs []uint

	// CurrencyID is recorded on Steam snapshots.
	CurrencyID int
}

// Puller is the polling orchestrator. Strictly sequential: one fetch
// (and its rate-limit sleep) completes before the next begins, because
// each source's budget is shared across all items.
type Puller struct {
	cfg    Config
	store  storage.Store
	steam  fetcher.QuoteFetcher
	buff   BuffSource
	logger *logrus.Logger
}

// NewLogger creates the standard application logger.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger
}

// New creates a puller.
func New(cfg Config, store storage.Store, steam fetcher.QuoteFetcher, buff BuffSource, logger *logrus.Logger) *Puller {
	if logger == nil {
		logger = NewLogger()
	}
	return &Puller{cfg: cfg, store: store, steam: steam, buff: buff, logger: logger}
}

// Run executes fetch cycles until the context is cancelled. Cycle
// errors that are not cancellation terminate the loop; per-item
// failures never do.
func (p *Puller) Run(ctx context.Context) error {
	p.logger.Infof("Starting puller daemon (interval: %s)", p.cfg.Interval)

	for {
		if err := p.RunOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				p.logger.Info("Puller daemon stopped")
				return nil
			}
			return err
		}

		p.logger.Infof("Sleeping for %s...", p.cfg.Interval)
		if !sleepCtx(ctx, p.cfg.Interval) {
			p.logger.Info("Puller daemon stopped")
			return nil
		}
	}
}

// RunOnce executes one fetch cycle over all tracked items.
func (p *Puller) RunOnce(ctx context.Context) error {
	items, err := p.store.ListItems(p.cfg.ItemIDs)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		p.logger.Warn("No items to fetch. Add items to the database first.")
		return nil
	}

	cycleID := uuid.NewString()[:8]
	p.logger.Infof("[cycle %s] Fetching data for %d items...", cycleID, len(items))

	steamSuccess := 0
	buffSuccess := 0

	for i := range items {
		if err := ctx.Err(); err != nil {
			return err
		}

		if p.fetchSteamData(ctx, &items[i]) {
			steamSuccess++
		}

		if !sleepCtx(ctx, p.cfg.ItemPause) {
			return ctx.Err()
		}

		if p.fetchBuffData(ctx, &items[i]) {
			buffSuccess++
		}

		if !sleepCtx(ctx, p.cfg.ItemPause) {
			return ctx.Err()
		}
	}

	p.logger.Infof("[cycle %s] Fetch cycle complete: Steam %d/%d, Buff %d/%d",
		cycleID, steamSuccess, len(items), buffSuccess, len(items))
	return nil
}

// fetchSteamData fetches and persists one Steam observation. Both the
// snapshot insert and the audit log entry happen here; a failure is
// logged and isolated.
func (p *Puller) fetchSteamData(ctx context.Context, item *models.Item) bool {
	result := p.steam.FetchQuote(ctx, item.MarketHashName)

	if !result.Success || result.Observation == nil {
		errMsg := result.Err
		if errMsg == "" {
			errMsg = "unknown error"
		}
		p.logger.Warnf("Failed to fetch Steam data for %s: %s", item.MarketHashName, errMsg)
		p.logFetch(fetcher.SourceSteam, fetcher.EndpointPriceOverview, result.Outcome, &item.ID)
		return false
	}

	obs := result.Observation
	snap := &models.SteamSnapshot{
		ItemID:      item.ID,
		Timestamp:   time.Now(),
		BestBid:     obs.BestBid,
		BestAsk:     obs.BestAsk,
		Volume24h:   obs.Volume,
		MedianPrice: obs.MedianPrice,
		LowestPrice: obs.LowestPrice,
		CurrencyID:  p.cfg.CurrencyID,
		RawResponse: obs.Raw,
	}
	if _, err := p.store.InsertSteamSnapshot(snap); err != nil {
		p.logger.Errorf("Failed to persist Steam snapshot for %s: %v", item.MarketHashName, err)
		return false
	}

	p.logFetch(fetcher.SourceSteam, fetcher.EndpointPriceOverview, result.Outcome, &item.ID)
	return true
}

// fetchBuffData resolves the item's Buff goods ID if needed, then
// fetches and persists the sell-side observation. An unresolved goods
// ID skips Buff for this item this cycle only.
func (p *Puller) fetchBuffData(ctx context.Context, item *models.Item) bool {
	if item.BuffGoodsID == nil {
		search := p.buff.Search(ctx, item.MarketHashName)
		if !search.Success {
			p.logger.Warnf("Failed to search Buff for %s: %s", item.MarketHashName, search.Err)
			p.logFetch(fetcher.SourceBuff, fetcher.EndpointSearch, search.Outcome, &item.ID)
			return false
		}
		if len(search.Candidates) == 0 {
			p.logger.Warnf("No Buff goods found for %s", item.MarketHashName)
			outcome := search.Outcome
			outcome.Success = false
			outcome.Err = "no goods matched search"
			p.logFetch(fetcher.SourceBuff, fetcher.EndpointSearch, outcome, &item.ID)
			return false
		}

		goodsID := search.Candidates[0].ID
		if err := p.store.SetBuffGoodsID(item.ID, goodsID); err != nil {
			p.logger.Errorf("Failed to cache Buff goods ID for %s: %v", item.MarketHashName, err)
			return false
		}
		item.BuffGoodsID = &goodsID
		p.logFetch(fetcher.SourceBuff, fetcher.EndpointSearch, search.Outcome, &item.ID)
	}

	result := p.buff.FetchSellOrders(ctx, *item.BuffGoodsID)

	if !result.Success || result.Observation == nil {
		errMsg := result.Err
		if errMsg == "" {
			errMsg = "failed to fetch sell orders"
		}
		p.logger.Warnf("Failed to fetch Buff data for %s: %s", item.MarketHashName, errMsg)
		p.logFetch(fetcher.SourceBuff, fetcher.EndpointSellOrders, result.Outcome, &item.ID)
		return false
	}

	obs := result.Observation
	snap := &models.BuffSnapshot{
		ItemID:         item.ID,
		Timestamp:      time.Now(),
		BestAsk:        obs.BestAsk,
		BestBid:        obs.BestBid,
		SellOrderCount: obs.OrderCount,
		Currency:       "CNY",
		RawResponse:    obs.Raw,
	}
	if _, err := p.store.InsertBuffSnapshot(snap); err != nil {
		p.logger.Errorf("Failed to persist Buff snapshot for %s: %v", item.MarketHashName, err)
		return false
	}

	p.logFetch(fetcher.SourceBuff, fetcher.EndpointSellOrders, result.Outcome, &item.ID)
	return true
}

// logFetch writes the audit record for one network attempt. Log
// failures are reported but never fail the fetch.
func (p *Puller) logFetch(source, endpoint string, outcome fetcher.Outcome, itemID *uint) {
	entry := &models.FetchLog{
		Source:     source,
		Endpoint:   endpoint,
		StatusCode: outcome.StatusCode,
		LatencyMS:  outcome.LatencyMS,
		Success:    outcome.Success,
		ItemID:     itemID,
	}
	if outcome.Err != "" {
		msg := outcome.Err
		entry.ErrorMessage = &msg
	}
	if err := p.store.LogFetch(entry); err != nil {
		p.logger.Errorf("Failed to write fetch log: %v", err)
	}
}

// sleepCtx sleeps for d unless the context is cancelled first. Returns
// false on cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
