package domain

// PortfolioSnapshot is an immutable view of the USD cash and each asset's
// dollar value, taken once before any sizing decision of a tick.
type PortfolioSnapshot struct {
	usd    float64
	assets map[string]float64
	total  float64
}

// NewPortfolioSnapshot copies the given per-asset dollar values. Each value is
// rounded to cents before it is summed.
func NewPortfolioSnapshot(usd float64, assetUSD map[string]float64) PortfolioSnapshot {
	s := PortfolioSnapshot{
		usd:    usd,
		assets: make(map[string]float64, len(assetUSD)),
		total:  usd,
	}
	for id, v := range assetUSD {
		v = RoundUSD(v)
		s.assets[id] = v
		s.total += v
	}
	return s
}

// SnapshotOf builds a snapshot from the trackers' current holdings and prices.
func SnapshotOf(usd float64, trackers []*AssetTracker) PortfolioSnapshot {
	values := make(map[string]float64, len(trackers))
	for _, t := range trackers {
		values[t.ID()] = t.HoldingsUSD()
	}
	return NewPortfolioSnapshot(usd, values)
}

func (s PortfolioSnapshot) USD() float64 {
	return s.usd
}

func (s PortfolioSnapshot) Total() float64 {
	return s.total
}

// AssetUSD returns the dollar value recorded for an asset.
func (s PortfolioSnapshot) AssetUSD(assetID string) float64 {
	return s.assets[assetID]
}

// Percentage returns round(assetUSD/total*100, 2), or 0 for an empty portfolio.
func (s PortfolioSnapshot) Percentage(assetID string) float64 {
	return s.share(s.assets[assetID])
}

// USDPercentage is the cash share of the portfolio.
func (s PortfolioSnapshot) USDPercentage() float64 {
	return s.share(s.usd)
}

func (s PortfolioSnapshot) share(v float64) float64 {
	if s.total == 0 {
		return 0
	}
	return RoundTo(v/s.total*100, 2)
}
