package domain

import "time"

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Order is a market order as reported back by the exchange.
type Order struct {
	ID            string
	ClientOrderID string
	ProductID     string
	Side          Side
	Size          float64
	CreatedAt     time.Time
}

// Trade is one journal entry written after a buy or sell is placed.
type Trade struct {
	ID                 int64     `json:"id"`
	OrderID            string    `json:"order_id"`
	AssetID            string    `json:"asset_id"`
	ProductID          string    `json:"product_id"`
	Side               Side      `json:"side"`
	AmountUSD          float64   `json:"amount_usd"`
	AmountCoin         float64   `json:"amount_coin"`
	Price              float64   `json:"price"`
	PriceSinceLastTx   float64   `json:"price_since_last_tx"`
	ReferencePrice     float64   `json:"reference_price"`
	PercentageAtSignal float64   `json:"percentage"`
	CreatedAt          time.Time `json:"created_at"`
}

// RecordingSnapshot is the periodic per-asset status line.
type RecordingSnapshot struct {
	ID                  int64     `json:"id"`
	AssetID             string    `json:"asset_id"`
	ReferencePrice      float64   `json:"reference_price"`
	CurrentPrice        float64   `json:"current_price"`
	Percentage          float64   `json:"percentage"`
	State               string    `json:"state"`
	Holdings            float64   `json:"holdings"`
	HoldingsUSD         float64   `json:"holdings_usd"`
	PortfolioPercentage float64   `json:"portfolio_percentage"`
	OpenLots            int       `json:"open_lots"`
	USDBalance          float64   `json:"usd_balance"`
	USDPercentage       float64   `json:"usd_percentage"`
	CreatedAt           time.Time `json:"created_at"`
}
