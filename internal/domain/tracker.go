package domain

import (
	"errors"
	"fmt"
)

// AssetTracker is the mutable trading state of one asset. It owns its ledger
// and an immutable copy of its settings.
type AssetTracker struct {
	Info     AssetInfo
	Settings AssetSettings
	Ledger   *Ledger

	// Places is the number of decimals the exchange accepts for order sizes.
	Places int32

	ReferencePrice      float64
	CurrentPrice        float64
	PriceSinceLastTx    float64
	Percentage          float64
	State               PercentageState
	Holdings            float64
	PortfolioPercentage float64

	// RenewPrice defers a reference reset to the next tick after a trade.
	RenewPrice bool
}

// NewAssetTracker builds a tracker from discovered metadata and a settings
// record. It refuses to build one from invalid settings.
func NewAssetTracker(info AssetInfo, settings AssetSettings) (*AssetTracker, error) {
	if err := settings.Check(); err != nil {
		return nil, err
	}
	if info.AssetID == "" {
		info.AssetID = settings.ID
	}
	if info.AssetID != settings.ID {
		return nil, fmt.Errorf("%w: settings for %s given to asset %s", ErrInvalidSettings, settings.ID, info.AssetID)
	}
	if info.ProductID == "" {
		info.ProductID = ProductID(info.AssetID)
	}
	places, err := DecimalPlaces(info.MinOrderSize)
	if err != nil {
		return nil, fmt.Errorf("asset %s: %w", info.AssetID, err)
	}
	return &AssetTracker{
		Info:       info,
		Settings:   settings,
		Ledger:     NewLedger(),
		Places:     places,
		State:      StateNeutral,
		RenewPrice: true,
	}, nil
}

func (t *AssetTracker) ID() string {
	return t.Info.AssetID
}

// HoldingsUSD is the current value of the holdings in dollars, rounded to cents.
func (t *AssetTracker) HoldingsUSD() float64 {
	return RoundUSD(t.Holdings * t.CurrentPrice)
}

// Renew resets the reference and last-transaction prices to the current price.
func (t *AssetTracker) Renew() {
	t.ReferencePrice = t.CurrentPrice
	t.PriceSinceLastTx = t.CurrentPrice
	t.State = StateNeutral
	t.RenewPrice = false
}

// RefreshPercentage recomputes the asset's percentage against its reference.
// A zero reference forces a renewal on the next pass.
func (t *AssetTracker) RefreshPercentage() error {
	pct, err := PercentChange(t.CurrentPrice, t.ReferencePrice)
	if err != nil {
		if errors.Is(err, ErrZeroReferencePrice) {
			t.RenewPrice = true
		}
		return fmt.Errorf("asset %s: %w", t.ID(), err)
	}
	t.Percentage = pct
	return nil
}

// Restore rebuilds the durable state from a backup. A nonzero reference
// cancels the pending renewal.
func (t *AssetTracker) Restore(referencePrice, priceSinceLastTx float64, lots []PurchaseLot) {
	t.ReferencePrice = referencePrice
	t.PriceSinceLastTx = priceSinceLastTx
	t.Ledger.Replace(lots)
	t.RenewPrice = referencePrice == 0
}

// Export returns the durable state for a backup.
func (t *AssetTracker) Export() *BackupRecord {
	return &BackupRecord{
		ReferencePrice:   t.ReferencePrice,
		PriceSinceLastTx: t.PriceSinceLastTx,
		Lots:             t.Ledger.Lots(),
	}
}

// View returns a copy of the tracker safe to hand to readers.
func (t *AssetTracker) View() TrackerView {
	return TrackerView{
		AssetID:             t.Info.AssetID,
		ProductID:           t.Info.ProductID,
		DisplayName:         t.Info.DisplayName,
		ReferencePrice:      t.ReferencePrice,
		CurrentPrice:        t.CurrentPrice,
		PriceSinceLastTx:    t.PriceSinceLastTx,
		Percentage:          t.Percentage,
		State:               t.State.String(),
		Holdings:            t.Holdings,
		HoldingsUSD:         t.HoldingsUSD(),
		PortfolioPercentage: t.PortfolioPercentage,
		RenewPrice:          t.RenewPrice,
		Lots:                t.Ledger.Lots(),
	}
}
