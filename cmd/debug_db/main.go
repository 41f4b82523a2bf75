package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/vitos/crypto_threshold_bot/internal/infrastructure/storage"
)

func main() {
	dbPath := flag.String("db", "bot.db", "sqlite database")
	limit := flag.Int("limit", 20, "rows per asset")
	flag.Parse()

	store, err := storage.NewSQLiteStore(*dbPath)
	if err != nil {
		fmt.Printf("Failed to init sqlite: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	trades, err := store.ListTrades(ctx, *limit)
	if err != nil {
		fmt.Printf("Failed to list trades: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Found %d trades:\n", len(trades))
	assets := make(map[string]bool)
	for _, t := range trades {
		fmt.Printf("- #%d %s %s %s: %.2f USD / %v @ %v (last tx %v, ref %v, %.2f%%)\n",
			t.ID, t.CreatedAt.Format("2006-01-02 15:04:05"), t.AssetID, t.Side,
			t.AmountUSD, t.AmountCoin, t.Price, t.PriceSinceLastTx, t.ReferencePrice, t.PercentageAtSignal)
		assets[t.AssetID] = true
	}

	for _, id := range flag.Args() {
		assets[strings.ToUpper(id)] = true
	}
	for id := range assets {
		snaps, err := store.ListSnapshots(ctx, id, *limit)
		if err != nil {
			fmt.Printf("  Error getting snapshots of %s: %v\n", id, err)
			continue
		}
		fmt.Printf("\n%s: %d snapshots\n", id, len(snaps))
		for _, s := range snaps {
			fmt.Printf("  %s ref=%v price=%v pct=%.2f state=%s holdings=%v (%.2f USD, %.2f%%) lots=%d usd=%.2f\n",
				s.CreatedAt.Format("2006-01-02 15:04:05"), s.ReferencePrice, s.CurrentPrice, s.Percentage, s.State,
				s.Holdings, s.HoldingsUSD, s.PortfolioPercentage, s.OpenLots, s.USDBalance)
		}
	}
}
