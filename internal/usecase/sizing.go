package usecase

import (
	"fmt"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
)

// FeeReserve is the share of the USD balance kept back for exchange fees.
const FeeReserve = 0.006

// BaseBuyAmount sizes a buy in USD from the percent move since the last
// transaction: the smallest amount at or above the buy-in threshold, the
// largest amount at or below the maximum drop, and a straight line between.
func BaseBuyAmount(s domain.AssetSettings, pctSinceLastTx float64) float64 {
	low := s.LowToUpBuyInPercentageThreshold
	maxDown := s.MaxPercentageDown
	switch {
	case pctSinceLastTx >= low:
		return s.SmallestAmountToBuyInUSD
	case pctSinceLastTx >= maxDown:
		slope := (s.LargestAmountToBuyInUSD - s.SmallestAmountToBuyInUSD) / (maxDown - low)
		return domain.RoundUSD(s.SmallestAmountToBuyInUSD + slope*(pctSinceLastTx-low))
	default:
		return s.LargestAmountToBuyInUSD
	}
}

// CapToPortfolio shrinks amount so the asset's share after the buy does not
// exceed maxPct. A zero total leaves nothing to buy.
func CapToPortfolio(amount, maxPct float64, assetID string, snap domain.PortfolioSnapshot) float64 {
	total := snap.Total()
	if total == 0 {
		return 0
	}
	after := domain.RoundTo((amount+snap.AssetUSD(assetID))/total*100, 2)
	if after <= maxPct {
		return amount
	}
	return domain.RoundUSD(total * (maxPct - snap.Percentage(assetID)) / 100)
}

// CapToBalance limits amount to the USD balance minus the fee reserve.
func CapToBalance(amount, usd float64) float64 {
	available := domain.RoundUSD(usd - usd*FeeReserve)
	if amount >= available {
		return available
	}
	return amount
}

// BuyAmountUSD runs the full sizing pipeline for one asset. It returns 0 when
// the capped size falls below the smallest allowed buy.
func (e *DecisionEngine) BuyAmountUSD(t *domain.AssetTracker, snap domain.PortfolioSnapshot) (float64, error) {
	pct, err := domain.PercentChange(t.CurrentPrice, t.PriceSinceLastTx)
	if err != nil {
		return 0, fmt.Errorf("asset %s last transaction price: %w", t.ID(), err)
	}
	s := t.Settings
	amount := BaseBuyAmount(s, pct)
	amount = CapToPortfolio(amount, s.MaxPortfolioPercentage, t.ID(), snap)
	amount = CapToBalance(amount, snap.USD())
	if amount < s.SmallestAmountToBuyInUSD {
		return 0, nil
	}
	return amount, nil
}

// ToNativeUnits converts a USD amount into an order size the exchange will
// accept, never rounding up past the allowed precision.
func ToNativeUnits(amountUSD, price float64, places int32) float64 {
	if price <= 0 || amountUSD <= 0 {
		return 0
	}
	return domain.TruncateToPlaces(amountUSD/price, places)
}
