package main

import (
	"flag"
	"log"

	"skinarb/configs"
	"skinarb/internal/storage"
	"skinarb/server/internal/handler"
	"skinarb/server/internal/router"
	"skinarb/server/internal/service"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := configs.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	quoteService := service.NewQuoteService(store, service.RiskParams{
		SteamSaleFee:         cfg.Fees.SteamSaleFee,
		HoldDays:             cfg.Risk.HoldDays,
		Simulations:          cfg.Risk.Simulations,
		Drift:                cfg.Risk.Drift,
		ExecutionProbability: cfg.Risk.ExecutionProbability,
		RiskAversion:         cfg.Risk.RiskAversion,
		MinPnL:               cfg.Risk.MinPnL,
		MinProbPositive:      cfg.Risk.MinProbPositive,
		HistoryWindowDays:    cfg.Risk.HistoryWindowDays,
	})
	quoteHandler := handler.NewQuoteHandler(quoteService)

	routerConfig := &router.Config{
		QuoteHandler: quoteHandler,
	}

	r := router.NewRouter(routerConfig)

	if err := r.Run(cfg.Server.ListenAddr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
