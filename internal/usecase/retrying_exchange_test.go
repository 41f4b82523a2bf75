package usecase_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
	"github.com/vitos/crypto_threshold_bot/internal/usecase"
)

func fastBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(time.Millisecond)
}

func TestRetryingExchange_RetriesUntilSuccess(t *testing.T) {
	mockEx := &MockExchange{Price: 42, FailPrice: 3}
	ex := usecase.NewRetryingExchange(mockEx, zaptest.NewLogger(t)).WithBackOff(fastBackOff)

	price, err := ex.GetCurrentPrice(context.Background(), "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, 42.0, price)
	assert.Equal(t, 4, mockEx.PriceCalls())
}

func TestRetryingExchange_RejectedOrderIsNotRetried(t *testing.T) {
	mockEx := &MockExchange{OrderErr: fmt.Errorf("%w: insufficient funds", domain.ErrOrderRejected)}
	ex := usecase.NewRetryingExchange(mockEx, zaptest.NewLogger(t)).WithBackOff(fastBackOff)

	_, err := ex.MarketBuy(context.Background(), "cid-1", "BTC-USD", 1)
	assert.ErrorIs(t, err, domain.ErrOrderRejected)
	assert.Len(t, mockEx.BuyCalls, 1)
}

func TestRetryingExchange_StopsOnCanceledContext(t *testing.T) {
	mockEx := &MockExchange{FailPrice: 1 << 30}
	ex := usecase.NewRetryingExchange(mockEx, zaptest.NewLogger(t)).WithBackOff(fastBackOff)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ex.GetCurrentPrice(ctx, "BTC-USD")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, mockEx.PriceCalls())
}

func TestRetryingExchange_StopsOnDeadline(t *testing.T) {
	mockEx := &MockExchange{FailPrice: 1 << 30}
	ex := usecase.NewRetryingExchange(mockEx, zaptest.NewLogger(t)).WithBackOff(fastBackOff)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := ex.GetCurrentPrice(ctx, "BTC-USD")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, mockEx.PriceCalls(), 1)
}

func TestRetryingExchange_PassesThrough(t *testing.T) {
	mockEx := &MockExchange{}
	ex := usecase.NewRetryingExchange(mockEx, zaptest.NewLogger(t))

	info, err := ex.DescribeAsset(context.Background(), "ETH")
	require.NoError(t, err)
	assert.Equal(t, "acc-ETH", info.AccountID)

	usd, err := ex.GetUSDBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000.0, usd)

	order, err := ex.MarketSell(context.Background(), "cid-2", "ETH-USD", 0.5)
	require.NoError(t, err)
	assert.Equal(t, domain.SideSell, order.Side)
	assert.Equal(t, "cid-2", order.ClientOrderID)
}

func TestRetryingExchange_ResubmitsSameClientOrderID(t *testing.T) {
	mockEx := &MockExchange{FailOrders: 2}
	ex := usecase.NewRetryingExchange(mockEx, zaptest.NewLogger(t)).WithBackOff(fastBackOff)

	order, err := ex.MarketBuy(context.Background(), "cid-1", "BTC-USD", 0.25)
	require.NoError(t, err)
	assert.Equal(t, "cid-1", order.ClientOrderID)
	assert.Equal(t, []string{"cid-1", "cid-1", "cid-1"}, mockEx.ClientOrderIDs)
}
