package exchange_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
	"github.com/vitos/crypto_threshold_bot/internal/infrastructure/exchange"
)

func TestPaperExchange_DescribeAsset(t *testing.T) {
	prices := exchange.NewStaticPrices(nil)
	paper := exchange.NewPaperExchange(prices, 0, nil, map[string]float64{"ETH": 0.0001}, 0)
	ctx := context.Background()

	info, err := paper.DescribeAsset(ctx, "ETH")
	require.NoError(t, err)
	assert.Equal(t, "ETH-USD", info.ProductID)
	assert.Equal(t, 0.0001, info.MinOrderSize)

	info, err = paper.DescribeAsset(ctx, "BTC")
	require.NoError(t, err)
	assert.Equal(t, 0.00000001, info.MinOrderSize)

	_, err = paper.GetHoldings(ctx, "some-other-account")
	assert.Error(t, err)
}

func TestPaperExchange_Fills(t *testing.T) {
	prices := exchange.NewStaticPrices(map[string]float64{"BTC-USD": 100})
	paper := exchange.NewPaperExchange(prices, 1000, map[string]float64{"BTC": 1}, nil, 0.01)
	ctx := context.Background()

	info, err := paper.DescribeAsset(ctx, "BTC")
	require.NoError(t, err)

	order, err := paper.MarketBuy(ctx, "buy-1", "BTC-USD", 2)
	require.NoError(t, err)
	assert.Equal(t, domain.SideBuy, order.Side)
	assert.NotEmpty(t, order.ID)

	usd, err := paper.GetUSDBalance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 798, usd, 1e-9)
	held, err := paper.GetHoldings(ctx, info.AccountID)
	require.NoError(t, err)
	assert.InDelta(t, 3, held, 1e-12)

	prices.Set("BTC-USD", 200)
	price, err := paper.GetCurrentPrice(ctx, "BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, 200.0, price)

	_, err = paper.MarketSell(ctx, "sell-1", "BTC-USD", 1)
	require.NoError(t, err)
	usd, err = paper.GetUSDBalance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 996, usd, 1e-9)

	assert.Len(t, paper.Orders(), 2)
}

func TestPaperExchange_Rejects(t *testing.T) {
	prices := exchange.NewStaticPrices(map[string]float64{"BTC-USD": 100})
	paper := exchange.NewPaperExchange(prices, 50, nil, nil, 0)
	ctx := context.Background()

	_, err := paper.MarketBuy(ctx, "a", "BTC-USD", 1)
	assert.ErrorIs(t, err, domain.ErrOrderRejected)

	_, err = paper.MarketSell(ctx, "b", "BTC-USD", 0.1)
	assert.ErrorIs(t, err, domain.ErrOrderRejected)

	_, err = paper.MarketBuy(ctx, "c", "DOGE-USD", 1)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrOrderRejected)

	assert.Empty(t, paper.Orders())
}

func TestPaperExchange_RepeatedClientOrderID(t *testing.T) {
	prices := exchange.NewStaticPrices(map[string]float64{"BTC-USD": 100})
	paper := exchange.NewPaperExchange(prices, 1000, nil, nil, 0)
	ctx := context.Background()

	first, err := paper.MarketBuy(ctx, "same", "BTC-USD", 1)
	require.NoError(t, err)
	again, err := paper.MarketBuy(ctx, "same", "BTC-USD", 1)
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	usd, err := paper.GetUSDBalance(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 900, usd, 1e-9)
	assert.Len(t, paper.Orders(), 1)
}
