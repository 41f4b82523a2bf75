package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
)

func TestNewPurchaseLot(t *testing.T) {
	lot := domain.NewPurchaseLot(0.5, 100)
	assert.Equal(t, 0.5, lot.Amount)
	assert.Equal(t, 100.0, lot.ReferencePrice)
	assert.Equal(t, 100.0, lot.PricePaid)
	assert.Equal(t, domain.StateNeutral, lot.State)
}

func TestLedger_IndexUpdates(t *testing.T) {
	l := domain.NewLedger()
	l.Add(domain.NewPurchaseLot(1, 100))
	l.Add(domain.NewPurchaseLot(2, 90))
	require.Equal(t, 2, l.Len())

	require.NoError(t, l.SetState(1, domain.StateUp))
	require.NoError(t, l.SetReferencePrice(1, 95))

	lot, err := l.At(1)
	require.NoError(t, err)
	assert.Equal(t, domain.StateUp, lot.State)
	assert.Equal(t, 95.0, lot.ReferencePrice)
	assert.Equal(t, 90.0, lot.PricePaid)

	first, err := l.At(0)
	require.NoError(t, err)
	assert.Equal(t, domain.NewPurchaseLot(1, 100), first)

	_, err = l.At(2)
	assert.Error(t, err)
	assert.Error(t, l.SetState(-1, domain.StateDown))
	assert.Error(t, l.SetReferencePrice(5, 1))
}

func TestLedger_RemoveByValue(t *testing.T) {
	a := domain.NewPurchaseLot(1, 100)
	b := domain.NewPurchaseLot(2, 90)
	l := domain.NewLedger(a, b, a)

	assert.True(t, l.Remove(a))
	assert.Equal(t, []domain.PurchaseLot{b, a}, l.Lots())

	assert.False(t, l.Remove(domain.NewPurchaseLot(3, 80)))
	assert.Equal(t, 2, l.Len())

	assert.True(t, l.Remove(a))
	assert.True(t, l.Remove(b))
	assert.Equal(t, 0, l.Len())
}

func TestLedger_LotsIsACopy(t *testing.T) {
	l := domain.NewLedger(domain.NewPurchaseLot(1, 100))
	lots := l.Lots()
	lots[0].Amount = 99

	lot, err := l.At(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, lot.Amount)
}

func TestLedger_Replace(t *testing.T) {
	l := domain.NewLedger(domain.NewPurchaseLot(1, 100))
	in := []domain.PurchaseLot{
		{Amount: 0.1, ReferencePrice: 110, PricePaid: 100, State: domain.StateUp},
		{Amount: 0.2, ReferencePrice: 80, PricePaid: 80, State: domain.StateDown},
	}
	l.Replace(in)
	in[0].Amount = 5

	assert.Equal(t, 2, l.Len())
	assert.InDelta(t, 0.3, l.TotalAmount(), 1e-12)
	lot, err := l.At(0)
	require.NoError(t, err)
	assert.Equal(t, 0.1, lot.Amount)
}

func TestPurchaseLot_Percentage(t *testing.T) {
	lot := domain.PurchaseLot{Amount: 1, ReferencePrice: 100, PricePaid: 100, State: domain.StateUp}
	pct, err := lot.Percentage(94)
	require.NoError(t, err)
	assert.Equal(t, -6.0, pct)

	lot.ReferencePrice = 0
	_, err = lot.Percentage(94)
	assert.ErrorIs(t, err, domain.ErrZeroReferencePrice)
}
