package domain

// TrackerView is a read-only copy of one tracker's state.
type TrackerView struct {
	AssetID             string        `json:"asset_id"`
	ProductID           string        `json:"product_id"`
	DisplayName         string        `json:"display_name"`
	ReferencePrice      float64       `json:"reference_price"`
	CurrentPrice        float64       `json:"current_price"`
	PriceSinceLastTx    float64       `json:"price_since_last_tx"`
	Percentage          float64       `json:"percentage"`
	State               string        `json:"state"`
	Holdings            float64       `json:"holdings"`
	HoldingsUSD         float64       `json:"holdings_usd"`
	PortfolioPercentage float64       `json:"portfolio_percentage"`
	RenewPrice          bool          `json:"renew_price"`
	Lots                []PurchaseLot `json:"lots"`
}

// StatusReport is the portfolio-wide status served over HTTP.
type StatusReport struct {
	USDBalance    float64       `json:"usd_balance"`
	USDPercentage float64       `json:"usd_percentage"`
	Total         float64       `json:"total"`
	Ticks         int64         `json:"ticks"`
	Assets        []TrackerView `json:"assets"`
}
