package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vitos/crypto_threshold_bot/internal/config"
	"github.com/vitos/crypto_threshold_bot/internal/infrastructure/exchange"
	"github.com/vitos/crypto_threshold_bot/internal/infrastructure/logger"
)

func main() {
	cfgPath := flag.String("config", "config/config.yaml", "config file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	settings, err := config.LoadSettingsDir(cfg.Trading.SettingsDir)
	if err != nil {
		fmt.Printf("Failed to load settings: %v\n", err)
		os.Exit(1)
	}
	assets := make([]string, len(settings))
	for i, s := range settings {
		assets[i] = s.ID
	}

	log, err := logger.NewLogger("warn")
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	fmt.Printf("Testing %s interaction...\n", cfg.Exchange.Name)
	ex, feed, err := exchange.Build(cfg, assets, log)
	if err != nil {
		fmt.Printf("❌ Failed to build exchange: %v\n", err)
		os.Exit(1)
	}
	if feed != nil {
		defer feed.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 2. Check USD balance
	usd, err := ex.GetUSDBalance(ctx)
	if err != nil {
		fmt.Printf("❌ Failed to get USD balance: %v\n", err)
	} else {
		fmt.Printf("✅ USD balance: %.2f\n", usd)
	}

	// 3. Check each asset: discovery, price, holdings
	for _, id := range assets {
		info, err := ex.DescribeAsset(ctx, id)
		if err != nil {
			fmt.Printf("❌ %s: failed to describe: %v\n", id, err)
			continue
		}
		price, err := ex.GetCurrentPrice(ctx, info.ProductID)
		if err != nil {
			fmt.Printf("❌ %s: failed to get price: %v\n", id, err)
			continue
		}
		holdings, err := ex.GetHoldings(ctx, info.AccountID)
		if err != nil {
			fmt.Printf("❌ %s: failed to get holdings: %v\n", id, err)
			continue
		}
		fmt.Printf("✅ %s (%s): product=%s min_size=%v price=%v holdings=%v (%.2f USD)\n",
			id, info.DisplayName, info.ProductID, info.MinOrderSize, price, holdings, holdings*price)
	}
}
