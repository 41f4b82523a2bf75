package domain

import "fmt"

// QuoteCurrency is the currency every tracked asset is priced and traded in.
const QuoteCurrency = "USD"

// AssetInfo is the exchange metadata discovered for one tracked asset.
type AssetInfo struct {
	AssetID      string  `json:"asset_id"`
	AccountID    string  `json:"account_id"`
	ProductID    string  `json:"product_id"`
	DisplayName  string  `json:"display_name"`
	MinOrderSize float64 `json:"min_order_size"`
}

// ProductID returns the trading pair id for an asset, e.g. "BTC-USD".
func ProductID(assetID string) string {
	return fmt.Sprintf("%s-%s", assetID, QuoteCurrency)
}

// Ticker is a last-trade price update for one product.
type Ticker struct {
	ProductID string  `json:"product_id"`
	Price     float64 `json:"price"`
	Time      int64   `json:"time"`
}
