package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"skinarb/configs"
	"skinarb/internal/fetcher/buff"
	"skinarb/internal/fetcher/steam"
	"skinarb/internal/puller"
)

// validSources lists all supported source names.
var validSources = []string{"steam", "buff"}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	nameFlag := flag.String("name", "", "Steam market hash name to probe")
	sourceFlag := flag.String("source", "", "source to probe: steam or buff. omit for both")
	flag.Parse()

	if *nameFlag == "" {
		fmt.Println("Usage: go run cmd/probe/main.go -name=<MARKET HASH NAME> [-source=<steam|buff>]")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  -name    Required. Steam market hash name to probe")
		fmt.Println("  -source  Optional. steam or buff. Probes both when omitted")
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  go run cmd/probe/main.go -name=\"AK-47 | Redline (Field-Tested)\"")
		fmt.Println("  go run cmd/probe/main.go -name=\"AK-47 | Redline (Field-Tested)\" -source=buff")
		os.Exit(1)
	}

	if *sourceFlag != "" && !slices.Contains(validSources, *sourceFlag) {
		fmt.Printf("Error: invalid source %q. Must be one of: %s\n", *sourceFlag, strings.Join(validSources, ", "))
		os.Exit(1)
	}

	logger := puller.NewLogger()

	cfg, err := configs.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *sourceFlag == "" || *sourceFlag == "steam" {
		probeSteam(ctx, cfg, *nameFlag)
	}
	if *sourceFlag == "" || *sourceFlag == "buff" {
		probeBuff(ctx, cfg, *nameFlag)
	}
}

func probeSteam(ctx context.Context, cfg *configs.AppConfig, name string) {
	f := steam.New(steam.Config{
		CurrencyID:        cfg.Currency.SteamCurrencyID,
		RequestsPerMinute: cfg.RateLimits.Steam.RequestsPerMinute,
		BackoffBase:       cfg.RateLimits.Steam.BackoffBase,
		MaxRetries:        cfg.RateLimits.Steam.MaxRetries,
	}, puller.NewLogger())

	result := f.FetchQuote(ctx, name)
	if !result.Success {
		fmt.Printf("[STEAM] FAILED: %s\n", result.Err)
		return
	}

	obs := result.Observation
	fmt.Printf("[STEAM] %-40s ask=%s median=%s volume=%s latency=%dms\n",
		name,
		formatPrice(obs.BestAsk),
		formatPrice(obs.MedianPrice),
		formatVolume(obs.Volume),
		*result.LatencyMS,
	)
}

func probeBuff(ctx context.Context, cfg *configs.AppConfig, name string) {
	f := buff.New(buff.Config{
		Cookie:            cfg.BuffCookie,
		RequestsPerMinute: cfg.RateLimits.Buff.RequestsPerMinute,
		BackoffBase:       cfg.RateLimits.Buff.BackoffBase,
		MaxRetries:        cfg.RateLimits.Buff.MaxRetries,
	}, puller.NewLogger())

	search := f.Search(ctx, name)
	if !search.Success {
		fmt.Printf("[BUFF] search FAILED: %s\n", search.Err)
		return
	}
	if len(search.Candidates) == 0 {
		fmt.Printf("[BUFF] no goods matched %q\n", name)
		return
	}

	fmt.Printf("[BUFF] %d candidates for %q:\n", len(search.Candidates), name)
	for i, c := range search.Candidates {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Printf("  %s goods_id=%-8d %s\n", marker, c.ID, c.Name)
	}

	goodsID := search.Candidates[0].ID

	sell := f.FetchSellOrders(ctx, goodsID)
	if !sell.Success {
		fmt.Printf("[BUFF] sell_order FAILED: %s\n", sell.Err)
		return
	}
	fmt.Printf("[BUFF] goods_id=%d best_ask=%s sell_orders=%d\n",
		goodsID, formatPrice(sell.Observation.BestAsk), *sell.Observation.OrderCount)

	buy := f.FetchBuyOrders(ctx, goodsID)
	if !buy.Success {
		fmt.Printf("[BUFF] buy_order FAILED: %s\n", buy.Err)
		return
	}
	fmt.Printf("[BUFF] goods_id=%d best_bid=%s buy_orders=%d\n",
		goodsID, formatPrice(buy.Observation.BestBid), *buy.Observation.OrderCount)
}

func formatPrice(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *p)
}

func formatVolume(v *int64) string {
	if v == nil {
		return "N/A"
	}
	return fmt.Sprintf("%d", *v)
}
