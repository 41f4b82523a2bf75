package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
	"github.com/vitos/crypto_threshold_bot/internal/infrastructure/metrics"
)

// RetryingExchange retries every call of the wrapped exchange with exponential
// backoff until it succeeds, the error is permanent, or ctx is done.
type RetryingExchange struct {
	next       domain.Exchange
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

func NewRetryingExchange(next domain.Exchange, logger *zap.Logger) *RetryingExchange {
	return &RetryingExchange{
		next:   next,
		logger: logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = time.Minute
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// WithBackOff replaces the backoff policy, mostly for tests.
func (r *RetryingExchange) WithBackOff(f func() backoff.BackOff) *RetryingExchange {
	r.newBackOff = f
	return r
}

func retry[T any](ctx context.Context, r *RetryingExchange, op string, fn func() (T, error)) (T, error) {
	wrapped := func() (T, error) {
		v, err := fn()
		if err != nil && errors.Is(err, domain.ErrOrderRejected) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	notify := func(err error, next time.Duration) {
		metrics.ObserveRetry(op)
		r.logger.Warn("exchange call failed, retrying",
			zap.String("op", op),
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	}
	return backoff.RetryNotifyWithData(wrapped, backoff.WithContext(r.newBackOff(), ctx), notify)
}

func (r *RetryingExchange) DescribeAsset(ctx context.Context, assetID string) (*domain.AssetInfo, error) {
	return retry(ctx, r, "describe_asset", func() (*domain.AssetInfo, error) {
		return r.next.DescribeAsset(ctx, assetID)
	})
}

func (r *RetryingExchange) GetCurrentPrice(ctx context.Context, productID string) (float64, error) {
	return retry(ctx, r, "get_current_price", func() (float64, error) {
		return r.next.GetCurrentPrice(ctx, productID)
	})
}

func (r *RetryingExchange) GetHoldings(ctx context.Context, accountID string) (float64, error) {
	return retry(ctx, r, "get_holdings", func() (float64, error) {
		return r.next.GetHoldings(ctx, accountID)
	})
}

func (r *RetryingExchange) GetUSDBalance(ctx context.Context) (float64, error) {
	return retry(ctx, r, "get_usd_balance", func() (float64, error) {
		return r.next.GetUSDBalance(ctx)
	})
}

func (r *RetryingExchange) MarketBuy(ctx context.Context, clientOrderID, productID string, size float64) (*domain.Order, error) {
	return retry(ctx, r, "market_buy", func() (*domain.Order, error) {
		return r.next.MarketBuy(ctx, clientOrderID, productID, size)
	})
}

func (r *RetryingExchange) MarketSell(ctx context.Context, clientOrderID, productID string, size float64) (*domain.Order, error) {
	return retry(ctx, r, "market_sell", func() (*domain.Order, error) {
		return r.next.MarketSell(ctx, clientOrderID, productID, size)
	})
}
