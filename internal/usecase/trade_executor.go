package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
)

type TradeExecutor struct {
	exchange domain.Exchange
}

func NewTradeExecutor(exchange domain.Exchange) *TradeExecutor {
	return &TradeExecutor{
		exchange: exchange,
	}
}

// Execute places a market order of size native units. Non-positive sizes are
// refused without touching the exchange. One client order id is minted per
// call, so a retrying exchange resubmits the same order rather than a new one.
func (e *TradeExecutor) Execute(ctx context.Context, productID string, side domain.Side, size float64) (*domain.Order, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid order size %v for %s", size, productID)
	}
	switch side {
	case domain.SideBuy:
		return e.exchange.MarketBuy(ctx, uuid.NewString(), productID, size)
	case domain.SideSell:
		return e.exchange.MarketSell(ctx, uuid.NewString(), productID, size)
	}
	return nil, fmt.Errorf("invalid side: %s", side)
}
