package main

import (
	"flag"
	"fmt"
	"os"

	"skinarb/configs"
	"skinarb/internal/puller"
	"skinarb/internal/storage"
)

func main() {
	var (
		configPath string
		name       string
		goodsID    int64
	)

	flag.StringVar(&configPath, "config", "config.yaml", "path to config file")
	flag.StringVar(&name, "name", "", "Steam market hash name (required)")
	flag.Int64Var(&goodsID, "buff-goods-id", 0, "Buff goods ID, resolved via search when omitted")
	flag.Parse()

	if name == "" {
		fmt.Fprintf(os.Stderr, "Error: -name flag is required\n")
		fmt.Fprintf(os.Stderr, "Usage: %s -name <market hash name> [-buff-goods-id <id>]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  %s -name \"AK-47 | Redline (Field-Tested)\"\n", os.Args[0])
		os.Exit(1)
	}

	logger := puller.NewLogger()

	cfg, err := configs.Load(configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	store, err := storage.Open(cfg.Database.Path)
	if err != nil {
		logger.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	var goodsIDPtr *int64
	if goodsID > 0 {
		goodsIDPtr = &goodsID
	}

	item, err := store.GetOrCreateItem(name, goodsIDPtr)
	if err != nil {
		logger.Fatalf("Failed to add item: %v", err)
	}

	logger.Infof("Tracking item %d: %s", item.ID, item.MarketHashName)
	if item.BuffGoodsID != nil {
		logger.Infof("Buff goods ID: %d", *item.BuffGoodsID)
	} else {
		logger.Info("Buff goods ID will be resolved on the first fetch cycle")
	}
}
