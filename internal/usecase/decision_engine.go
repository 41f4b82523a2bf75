package usecase

import (
	"fmt"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
)

// DecisionEngine holds the per-tick threshold rules. It keeps no state of its
// own; every operation reads and mutates the tracker it is given.
type DecisionEngine struct{}

func NewDecisionEngine() *DecisionEngine {
	return &DecisionEngine{}
}

// RenewIfFlagged resets the reference price when a renewal is pending.
func (e *DecisionEngine) RenewIfFlagged(t *domain.AssetTracker) bool {
	if !t.RenewPrice {
		return false
	}
	t.Renew()
	return true
}

// CalculatePercentage refreshes the tracker's percentage. On a zero reference
// the tracker is flagged for renewal and the error is returned so the caller
// skips the rest of the tick.
func (e *DecisionEngine) CalculatePercentage(t *domain.AssetTracker) error {
	return t.RefreshPercentage()
}

// Transition moves a Neutral tracker to Down or Up once its percentage
// crosses a threshold. Up and Down are left alone.
func (e *DecisionEngine) Transition(t *domain.AssetTracker) bool {
	if t.State != domain.StateNeutral {
		return false
	}
	next := domain.Classify(t.Percentage, t.Settings.LowPercentageThreshold, t.Settings.HighPercentageThreshold)
	if next == t.State {
		return false
	}
	t.State = next
	return true
}

// AdjustFalling pulls the reference up so the asset reads exactly at its low
// threshold. The state is kept so a pending buy signal survives.
func (e *DecisionEngine) AdjustFalling(t *domain.AssetTracker) bool {
	if t.Percentage > t.Settings.AdjustReferencePriceDownThreshold {
		return false
	}
	t.ReferencePrice = domain.PriceAtPercent(t.CurrentPrice, t.Settings.LowPercentageThreshold)
	return true
}

// AdjustRising moves the reference up behind a rally and resets the tracker
// to Neutral with the new reference as the last transaction price.
func (e *DecisionEngine) AdjustRising(t *domain.AssetTracker) bool {
	if t.Percentage < t.Settings.AdjustReferencePriceUpThreshold {
		return false
	}
	t.ReferencePrice = domain.PriceAtPercent(t.CurrentPrice, t.Settings.HighPercentageThreshold)
	t.State = domain.StateNeutral
	t.PriceSinceLastTx = t.ReferencePrice
	return true
}

// GoBackDown returns an Up tracker to Neutral once it falls below the high
// threshold.
func (e *DecisionEngine) GoBackDown(t *domain.AssetTracker) bool {
	if t.State != domain.StateUp || t.Percentage >= t.Settings.HighPercentageThreshold {
		return false
	}
	t.State = domain.StateNeutral
	return true
}

// EvaluateLots reclassifies every lot against its own reference and ratchets
// the reference of lots that keep climbing.
func (e *DecisionEngine) EvaluateLots(t *domain.AssetTracker) error {
	s := t.Settings
	for i := 0; i < t.Ledger.Len(); i++ {
		lot, err := t.Ledger.At(i)
		if err != nil {
			return err
		}
		pct, err := lot.Percentage(t.CurrentPrice)
		if err != nil {
			return fmt.Errorf("asset %s lot %d: %w", t.ID(), i, err)
		}
		state := lot.State
		if state == domain.StateNeutral || state == domain.StateDown {
			state = domain.Classify(pct, s.LowPercentageThreshold, s.HighPercentageThreshold)
			if err := t.Ledger.SetState(i, state); err != nil {
				return err
			}
		}
		if state == domain.StateUp && pct >= s.AdjustReferencePriceUpThreshold {
			ref := domain.PriceAtPercent(t.CurrentPrice, s.HighPercentageThreshold)
			if err := t.Ledger.SetReferencePrice(i, ref); err != nil {
				return err
			}
		}
	}
	return nil
}

// ShouldBuy reports whether a Down asset has recovered enough to buy in.
func (e *DecisionEngine) ShouldBuy(t *domain.AssetTracker) bool {
	return t.State == domain.StateDown && t.Percentage >= t.Settings.LowToUpBuyInPercentageThreshold
}

// SellableLots returns the Up lots that have fallen back to the sell-out
// threshold, in ledger order.
func (e *DecisionEngine) SellableLots(t *domain.AssetTracker) ([]domain.PurchaseLot, error) {
	var out []domain.PurchaseLot
	for i, lot := range t.Ledger.Lots() {
		if lot.State != domain.StateUp {
			continue
		}
		pct, err := lot.Percentage(t.CurrentPrice)
		if err != nil {
			return nil, fmt.Errorf("asset %s lot %d: %w", t.ID(), i, err)
		}
		if pct <= t.Settings.HighToDownSellOutPercentageThreshold {
			out = append(out, lot)
		}
	}
	return out, nil
}
