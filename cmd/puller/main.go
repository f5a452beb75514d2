package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"skinarb/configs"
	"skinarb/internal/fetcher/buff"
	"skinarb/internal/fetcher/steam"
	"skinarb/internal/puller"
	"skinarb/internal/storage"
)

func main() {
	var (
		configPath string
		once       bool
		interval   int
	)

	flag.StringVar(&configPath, "config", "config.yaml", "path to config file")
	flag.BoolVar(&once, "once", false, "run a single fetch cycle and exit")
	flag.IntVar(&interval, "interval", 0, "override cycle interval in seconds")
	flag.Parse()

	logger := puller.NewLogger()

	cfg, err := configs.Load(configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if interval > 0 {
		cfg.Puller.IntervalSeconds = interval
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	steamFetcher := steam.New(steam.Config{
		CurrencyID:        cfg.Currency.SteamCurrencyID,
		RequestsPerMinute: cfg.RateLimits.Steam.RequestsPerMinute,
		BackoffBase:       cfg.RateLimits.Steam.BackoffBase,
		MaxRetries:        cfg.RateLimits.Steam.MaxRetries,
	}, logger)

	buffFetcher := buff.New(buff.Config{
		Cookie:            cfg.BuffCookie,
		RequestsPerMinute: cfg.RateLimits.Buff.RequestsPerMinute,
		BackoffBase:       cfg.RateLimits.Buff.BackoffBase,
		MaxRetries:        cfg.RateLimits.Buff.MaxRetries,
	}, logger)

	p := puller.New(puller.Config{
		Interval:   time.Duration(cfg.Puller.IntervalSeconds) * time.Second,
		ItemPause:  time.Duration(cfg.Puller.ItemPauseSeconds) * time.Second,
		ItemIDs:    cfg.Puller.ItemsToTrack,
		CurrencyID: cfg.Currency.SteamCurrencyID,
	}, store, steamFetcher, buffFetcher, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if once {
		if err := p.RunOnce(ctx); err != nil {
			logger.Fatalf("Fetch cycle failed: %v", err)
		}
		return
	}

	if err := p.Run(ctx); err != nil {
		logger.Fatalf("Puller failed: %v", err)
	}
}
