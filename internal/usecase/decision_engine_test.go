package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
	"github.com/vitos/crypto_threshold_bot/internal/usecase"
)

func newTracker(t *testing.T, ref, cur float64) *domain.AssetTracker {
	t.Helper()
	tr, err := domain.NewAssetTracker(domain.AssetInfo{MinOrderSize: 0.00000001}, testSettings("BTC"))
	require.NoError(t, err)
	tr.RenewPrice = false
	tr.ReferencePrice = ref
	tr.PriceSinceLastTx = ref
	tr.CurrentPrice = cur
	return tr
}

// tickAt runs the state-only part of a tick at price cur.
func tickAt(t *testing.T, e *usecase.DecisionEngine, tr *domain.AssetTracker, cur float64) {
	t.Helper()
	tr.CurrentPrice = cur
	e.RenewIfFlagged(tr)
	require.NoError(t, e.CalculatePercentage(tr))
	e.Transition(tr)
	require.NoError(t, e.EvaluateLots(tr))
}

func TestDecisionEngine_RenewIfFlagged(t *testing.T) {
	e := usecase.NewDecisionEngine()
	tr := newTracker(t, 100, 80)
	tr.State = domain.StateDown

	assert.False(t, e.RenewIfFlagged(tr))
	assert.Equal(t, 100.0, tr.ReferencePrice)

	tr.RenewPrice = true
	assert.True(t, e.RenewIfFlagged(tr))
	assert.Equal(t, 80.0, tr.ReferencePrice)
	assert.Equal(t, 80.0, tr.PriceSinceLastTx)
	assert.Equal(t, domain.StateNeutral, tr.State)
	assert.False(t, tr.RenewPrice)
}

func TestDecisionEngine_Transition(t *testing.T) {
	e := usecase.NewDecisionEngine()

	tests := []struct {
		name    string
		from    domain.PercentageState
		pct     float64
		want    domain.PercentageState
		changed bool
	}{
		{"Neutral to Down at low", domain.StateNeutral, -10, domain.StateDown, true},
		{"Neutral to Up at high", domain.StateNeutral, 10, domain.StateUp, true},
		{"Neutral stays", domain.StateNeutral, 3, domain.StateNeutral, false},
		{"Up never flips to Down", domain.StateUp, -15, domain.StateUp, false},
		{"Down never flips to Up", domain.StateDown, 15, domain.StateDown, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTracker(t, 100, 100)
			tr.State = tt.from
			tr.Percentage = tt.pct
			assert.Equal(t, tt.changed, e.Transition(tr))
			assert.Equal(t, tt.want, tr.State)
		})
	}
}

func TestDecisionEngine_CalculatePercentage_ZeroReference(t *testing.T) {
	e := usecase.NewDecisionEngine()
	tr := newTracker(t, 0, 50)

	err := e.CalculatePercentage(tr)
	assert.ErrorIs(t, err, domain.ErrZeroReferencePrice)
	assert.True(t, tr.RenewPrice)
}

func TestDecisionEngine_AdjustFalling(t *testing.T) {
	e := usecase.NewDecisionEngine()
	tr := newTracker(t, 100, 75)
	tr.State = domain.StateDown
	tr.Percentage = -25

	require.True(t, e.AdjustFalling(tr))
	assert.InDelta(t, 82.5, tr.ReferencePrice, 1e-9)
	assert.Equal(t, domain.StateDown, tr.State)
	assert.Equal(t, 100.0, tr.PriceSinceLastTx)

	// Reads at the low threshold against the new reference.
	require.NoError(t, e.CalculatePercentage(tr))
	assert.Equal(t, -9.09, tr.Percentage)

	tr.Percentage = -19.99
	assert.False(t, e.AdjustFalling(tr))
}

func TestDecisionEngine_AdjustRising(t *testing.T) {
	e := usecase.NewDecisionEngine()
	tr := newTracker(t, 100, 125)
	tr.State = domain.StateUp
	tr.Percentage = 25

	require.True(t, e.AdjustRising(tr))
	assert.InDelta(t, 112.5, tr.ReferencePrice, 1e-9)
	assert.Equal(t, tr.ReferencePrice, tr.PriceSinceLastTx)
	assert.Equal(t, domain.StateNeutral, tr.State)

	tr.State = domain.StateUp
	tr.Percentage = 19.99
	assert.False(t, e.AdjustRising(tr))
	assert.Equal(t, domain.StateUp, tr.State)
}

func TestDecisionEngine_GoBackDown(t *testing.T) {
	e := usecase.NewDecisionEngine()
	tr := newTracker(t, 100, 105)

	tr.State = domain.StateUp
	tr.Percentage = 10
	assert.False(t, e.GoBackDown(tr))
	assert.Equal(t, domain.StateUp, tr.State)

	tr.Percentage = 9.99
	assert.True(t, e.GoBackDown(tr))
	assert.Equal(t, domain.StateNeutral, tr.State)

	tr.State = domain.StateDown
	tr.Percentage = 0
	assert.False(t, e.GoBackDown(tr))
}

func TestDecisionEngine_EvaluateLots(t *testing.T) {
	e := usecase.NewDecisionEngine()
	tr := newTracker(t, 100, 125)
	tr.Ledger.Replace([]domain.PurchaseLot{
		domain.NewPurchaseLot(1, 100),
		domain.NewPurchaseLot(1, 124),
		{Amount: 1, ReferencePrice: 200, PricePaid: 200, State: domain.StateDown},
		{Amount: 1, ReferencePrice: 150, PricePaid: 100, State: domain.StateUp},
	})

	require.NoError(t, e.EvaluateLots(tr))
	lots := tr.Ledger.Lots()

	// +25%: Up and ratcheted.
	assert.Equal(t, domain.StateUp, lots[0].State)
	assert.InDelta(t, 112.5, lots[0].ReferencePrice, 1e-9)
	assert.Equal(t, 100.0, lots[0].PricePaid)

	// +0.81%: still Neutral.
	assert.Equal(t, domain.StateNeutral, lots[1].State)
	assert.Equal(t, 124.0, lots[1].ReferencePrice)

	// Down lots are reclassified; -37.5% stays Down.
	assert.Equal(t, domain.StateDown, lots[2].State)

	// Up lots are never reclassified, even far below reference.
	assert.Equal(t, domain.StateUp, lots[3].State)
	assert.Equal(t, 150.0, lots[3].ReferencePrice)
}

func TestDecisionEngine_SellableLots(t *testing.T) {
	e := usecase.NewDecisionEngine()
	tr := newTracker(t, 100, 94)
	up := domain.PurchaseLot{Amount: 1, ReferencePrice: 100, PricePaid: 90, State: domain.StateUp}
	upHolding := domain.PurchaseLot{Amount: 2, ReferencePrice: 97, PricePaid: 90, State: domain.StateUp}
	down := domain.PurchaseLot{Amount: 3, ReferencePrice: 120, PricePaid: 120, State: domain.StateDown}
	tr.Ledger.Replace([]domain.PurchaseLot{up, upHolding, down})

	sell, err := e.SellableLots(tr)
	require.NoError(t, err)
	assert.Equal(t, []domain.PurchaseLot{up}, sell)
}

func TestDecisionEngine_ShouldBuy(t *testing.T) {
	e := usecase.NewDecisionEngine()
	tr := newTracker(t, 100, 95)

	tr.State = domain.StateDown
	tr.Percentage = -5
	assert.True(t, e.ShouldBuy(tr))

	tr.Percentage = -5.01
	assert.False(t, e.ShouldBuy(tr))

	tr.State = domain.StateNeutral
	tr.Percentage = -5
	assert.False(t, e.ShouldBuy(tr))
}

func TestDecisionEngine_DropThenRecoveryTriggersBuy(t *testing.T) {
	e := usecase.NewDecisionEngine()
	tr := newTracker(t, 100, 100)

	tickAt(t, e, tr, 85)
	assert.Equal(t, -15.0, tr.Percentage)
	assert.Equal(t, domain.StateDown, tr.State)
	assert.False(t, e.ShouldBuy(tr))
	assert.False(t, e.AdjustFalling(tr))

	tickAt(t, e, tr, 94)
	assert.Equal(t, domain.StateDown, tr.State)
	assert.False(t, e.ShouldBuy(tr))

	tickAt(t, e, tr, 95)
	assert.Equal(t, domain.StateDown, tr.State)
	assert.True(t, e.ShouldBuy(tr))
}

func TestDecisionEngine_LotRisesThenFallsToSellOut(t *testing.T) {
	e := usecase.NewDecisionEngine()
	tr := newTracker(t, 100, 100)
	tr.Ledger.Add(domain.NewPurchaseLot(0.5, 100))

	tickAt(t, e, tr, 111)
	lot, err := tr.Ledger.At(0)
	require.NoError(t, err)
	assert.Equal(t, domain.StateUp, lot.State)
	assert.Equal(t, 100.0, lot.ReferencePrice)
	sell, err := e.SellableLots(tr)
	require.NoError(t, err)
	assert.Empty(t, sell)

	tickAt(t, e, tr, 94)
	sell, err = e.SellableLots(tr)
	require.NoError(t, err)
	require.Len(t, sell, 1)
	assert.Equal(t, 0.5, sell[0].Amount)
}
