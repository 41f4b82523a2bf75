package domain

import (
	"context"
	"errors"
)

// ErrBackupNotFound is returned by a BackupStore when an asset has no record.
var ErrBackupNotFound = errors.New("backup record not found")

// ErrOrderRejected marks an order the exchange refused outright. Retrying it
// cannot succeed.
var ErrOrderRejected = errors.New("order rejected")

// Exchange defines the operations the bot needs from a spot exchange.
// Implementations may fail transiently; retrying is the caller's wrapper's job.
// Orders carry a caller-chosen client order id, so resubmitting the same id
// never opens a second order.
type Exchange interface {
	DescribeAsset(ctx context.Context, assetID string) (*AssetInfo, error)
	GetCurrentPrice(ctx context.Context, productID string) (float64, error)
	GetHoldings(ctx context.Context, accountID string) (float64, error)
	GetUSDBalance(ctx context.Context) (float64, error)
	MarketBuy(ctx context.Context, clientOrderID, productID string, size float64) (*Order, error)
	MarketSell(ctx context.Context, clientOrderID, productID string, size float64) (*Order, error)
}

// PriceFeed streams last-trade prices and caches the latest one per product.
type PriceFeed interface {
	Subscribe(productIDs []string) error
	OnTicker(callback func(t Ticker))
	LatestPrice(productID string) (float64, bool)
	Close() error
}

// BackupRecord is the durable part of a tracker.
type BackupRecord struct {
	ReferencePrice   float64
	PriceSinceLastTx float64
	Lots             []PurchaseLot
}

// BackupStore persists one BackupRecord per asset.
type BackupStore interface {
	Load(ctx context.Context, assetID string) (*BackupRecord, error)
	Save(ctx context.Context, assetID string, record *BackupRecord) error
}

// TradeRepository defines storage operations for the trade journal and the
// periodic recording snapshots.
type TradeRepository interface {
	SaveTrade(ctx context.Context, trade *Trade) error
	ListTrades(ctx context.Context, limit int) ([]*Trade, error)

	SaveSnapshot(ctx context.Context, snap *RecordingSnapshot) error
	ListSnapshots(ctx context.Context, assetID string, limit int) ([]*RecordingSnapshot, error)
}
