package exchange

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
)

const (
	paperAccountPrefix  = "paper-"
	defaultPaperMinSize = 0.00000001
)

// PriceSource is anything that can quote a product.
type PriceSource interface {
	GetCurrentPrice(ctx context.Context, productID string) (float64, error)
}

// StaticPrices is a settable in-memory PriceSource.
type StaticPrices struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func NewStaticPrices(prices map[string]float64) *StaticPrices {
	s := &StaticPrices{prices: make(map[string]float64, len(prices))}
	for k, v := range prices {
		s.prices[k] = v
	}
	return s
}

func (s *StaticPrices) Set(productID string, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[productID] = price
}

func (s *StaticPrices) GetCurrentPrice(ctx context.Context, productID string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[productID]
	if !ok {
		return 0, fmt.Errorf("no price for %s", productID)
	}
	return p, nil
}

// PaperExchange simulates market fills at the price source's last price with
// in-memory balances. Orders never leave the process.
type PaperExchange struct {
	prices  PriceSource
	feeRate float64

	mu       sync.Mutex
	usd      float64
	holdings map[string]float64 // asset -> native amount
	minSizes map[string]float64
	orders   []domain.Order

	byClientID map[string]domain.Order
}

func NewPaperExchange(prices PriceSource, usd float64, holdings, minSizes map[string]float64, feeRate float64) *PaperExchange {
	p := &PaperExchange{
		prices:   prices,
		feeRate:  feeRate,
		usd:      usd,
		holdings: make(map[string]float64),
		minSizes: make(map[string]float64),

		byClientID: make(map[string]domain.Order),
	}
	for k, v := range holdings {
		p.holdings[k] = v
	}
	for k, v := range minSizes {
		p.minSizes[k] = v
	}
	return p
}

func assetOf(productID string) string {
	base, _, _ := strings.Cut(productID, "-")
	return base
}

func (p *PaperExchange) DescribeAsset(ctx context.Context, assetID string) (*domain.AssetInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	minSize, ok := p.minSizes[assetID]
	if !ok {
		minSize = defaultPaperMinSize
	}
	return &domain.AssetInfo{
		AssetID:      assetID,
		AccountID:    paperAccountPrefix + assetID,
		ProductID:    domain.ProductID(assetID),
		DisplayName:  assetID,
		MinOrderSize: minSize,
	}, nil
}

func (p *PaperExchange) GetCurrentPrice(ctx context.Context, productID string) (float64, error) {
	return p.prices.GetCurrentPrice(ctx, productID)
}

func (p *PaperExchange) GetHoldings(ctx context.Context, accountID string) (float64, error) {
	asset, ok := strings.CutPrefix(accountID, paperAccountPrefix)
	if !ok {
		return 0, fmt.Errorf("unknown paper account %q", accountID)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.holdings[asset], nil
}

func (p *PaperExchange) GetUSDBalance(ctx context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.usd, nil
}

func (p *PaperExchange) MarketBuy(ctx context.Context, clientOrderID, productID string, size float64) (*domain.Order, error) {
	price, err := p.prices.GetCurrentPrice(ctx, productID)
	if err != nil {
		return nil, err
	}
	cost := size * price * (1 + p.feeRate)

	p.mu.Lock()
	defer p.mu.Unlock()
	if o, ok := p.byClientID[clientOrderID]; ok {
		return &o, nil
	}
	if cost > p.usd {
		return nil, fmt.Errorf("%w: insufficient funds: need %.2f, have %.2f", domain.ErrOrderRejected, cost, p.usd)
	}
	p.usd -= cost
	p.holdings[assetOf(productID)] += size
	return p.record(clientOrderID, productID, domain.SideBuy, size), nil
}

func (p *PaperExchange) MarketSell(ctx context.Context, clientOrderID, productID string, size float64) (*domain.Order, error) {
	price, err := p.prices.GetCurrentPrice(ctx, productID)
	if err != nil {
		return nil, err
	}
	asset := assetOf(productID)

	p.mu.Lock()
	defer p.mu.Unlock()
	if o, ok := p.byClientID[clientOrderID]; ok {
		return &o, nil
	}
	if size > p.holdings[asset] {
		return nil, fmt.Errorf("%w: insufficient %s: need %v, have %v", domain.ErrOrderRejected, asset, size, p.holdings[asset])
	}
	p.holdings[asset] -= size
	p.usd += size * price * (1 - p.feeRate)
	return p.record(clientOrderID, productID, domain.SideSell, size), nil
}

// record stores a fill. An empty client order id gets a generated one.
func (p *PaperExchange) record(clientOrderID, productID string, side domain.Side, size float64) *domain.Order {
	if clientOrderID == "" {
		clientOrderID = uuid.NewString()
	}
	o := domain.Order{
		ID:            uuid.NewString(),
		ClientOrderID: clientOrderID,
		ProductID:     productID,
		Side:          side,
		Size:          size,
		CreatedAt:     time.Now(),
	}
	p.orders = append(p.orders, o)
	p.byClientID[clientOrderID] = o
	return &o
}

// Orders returns a copy of every simulated fill.
func (p *PaperExchange) Orders() []domain.Order {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Order, len(p.orders))
	copy(out, p.orders)
	return out
}
