package exchange

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/vitos/crypto_threshold_bot/internal/config"
	"github.com/vitos/crypto_threshold_bot/internal/domain"
)

// paperFeeRate matches the fee the sizing reserve sets aside.
const paperFeeRate = 0.006

// Build returns the exchange named in cfg. When the websocket is enabled the
// ticker feed prices the given assets and is returned so the caller can watch
// and close it; otherwise the feed is nil.
func Build(cfg *config.Config, assetIDs []string, logger *zap.Logger) (domain.Exchange, domain.PriceFeed, error) {
	if !cfg.Exchange.UseWebsocket {
		ex, err := build(cfg, nil, logger)
		return ex, nil, err
	}

	feed := NewCoinbaseTickerFeed(cfg.Exchange.WSEndpoint, 10*cfg.PollInterval(), logger)
	products := make([]string, len(assetIDs))
	for i, id := range assetIDs {
		products[i] = domain.ProductID(id)
	}
	if err := feed.Subscribe(products); err != nil {
		feed.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to ticker feed: %w", err)
	}
	ex, err := build(cfg, feed, logger)
	if err != nil {
		feed.Close()
		return nil, nil, err
	}
	return ex, feed, nil
}

func build(cfg *config.Config, feed *CoinbaseTickerFeed, logger *zap.Logger) (domain.Exchange, error) {
	switch cfg.Exchange.Name {
	case "coinbase":
		pemText, err := cfg.PrivateKeyPEM()
		if err != nil {
			return nil, err
		}
		adapter, err := NewCoinbaseAdapter(
			cfg.Exchange.KeyName,
			pemText,
			cfg.Exchange.RESTHost,
			cfg.Exchange.USDAccountID,
			cfg.Exchange.RequestsPerSecond,
			logger,
		)
		if err != nil {
			return nil, err
		}
		if feed != nil {
			return NewFeedPricedExchange(adapter, feed), nil
		}
		return adapter, nil
	case "paper":
		var prices PriceSource
		if feed != nil {
			prices = feed
		} else {
			static := make(map[string]float64, len(cfg.Paper.Prices))
			for asset, p := range cfg.Paper.Prices {
				static[domain.ProductID(asset)] = p
			}
			prices = NewStaticPrices(static)
		}
		return NewPaperExchange(prices, cfg.Paper.USD, cfg.Paper.Holdings, cfg.Paper.MinOrderSize, paperFeeRate), nil
	}
	return nil, fmt.Errorf("unknown exchange %q", cfg.Exchange.Name)
}
