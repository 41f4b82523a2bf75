package usecase_test

import (
	"context"
	"errors"
	"sync"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
)

func testSettings(id string) domain.AssetSettings {
	return domain.AssetSettings{
		ID:                                   id,
		LowPercentageThreshold:               -10,
		HighPercentageThreshold:              10,
		LowToUpBuyInPercentageThreshold:      -5,
		MaxPercentageDown:                    -25,
		HighToDownSellOutPercentageThreshold: -5,
		AdjustReferencePriceDownThreshold:    -20,
		AdjustReferencePriceUpThreshold:      20,
		SmallestAmountToBuyInUSD:             10,
		LargestAmountToBuyInUSD:              50,
		MaxPortfolioPercentage:               50,
	}
}

// MockExchange records calls and fails the first FailPrice price lookups and
// the first FailOrders order submissions.
type MockExchange struct {
	mu sync.Mutex

	Price     float64
	FailPrice int
	PriceErr  error

	BuyCalls       []float64
	SellCalls      []float64
	ClientOrderIDs []string
	OrderErr       error
	FailOrders     int

	priceCalls int
	orderCalls int
}

func (m *MockExchange) DescribeAsset(ctx context.Context, assetID string) (*domain.AssetInfo, error) {
	return &domain.AssetInfo{AssetID: assetID, AccountID: "acc-" + assetID, MinOrderSize: 0.01}, nil
}

func (m *MockExchange) GetCurrentPrice(ctx context.Context, productID string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.priceCalls++
	if m.priceCalls <= m.FailPrice {
		if m.PriceErr != nil {
			return 0, m.PriceErr
		}
		return 0, errors.New("connection reset")
	}
	return m.Price, nil
}

func (m *MockExchange) PriceCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.priceCalls
}

func (m *MockExchange) GetHoldings(ctx context.Context, accountID string) (float64, error) {
	return 0, nil
}

func (m *MockExchange) GetUSDBalance(ctx context.Context) (float64, error) {
	return 1000, nil
}

func (m *MockExchange) MarketBuy(ctx context.Context, clientOrderID, productID string, size float64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.BuyCalls = append(m.BuyCalls, size)
	m.ClientOrderIDs = append(m.ClientOrderIDs, clientOrderID)
	if err := m.orderErr(); err != nil {
		return nil, err
	}
	return &domain.Order{ID: "buy", ClientOrderID: clientOrderID, ProductID: productID, Side: domain.SideBuy, Size: size}, nil
}

func (m *MockExchange) MarketSell(ctx context.Context, clientOrderID, productID string, size float64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SellCalls = append(m.SellCalls, size)
	m.ClientOrderIDs = append(m.ClientOrderIDs, clientOrderID)
	if err := m.orderErr(); err != nil {
		return nil, err
	}
	return &domain.Order{ID: "sell", ClientOrderID: clientOrderID, ProductID: productID, Side: domain.SideSell, Size: size}, nil
}

// orderErr fails the first FailOrders submissions with a timeout, then
// returns OrderErr. Callers hold m.mu.
func (m *MockExchange) orderErr() error {
	m.orderCalls++
	if m.orderCalls <= m.FailOrders {
		return errors.New("i/o timeout")
	}
	return m.OrderErr
}

// MockBackupStore keeps records in memory.
type MockBackupStore struct {
	mu      sync.Mutex
	Records map[string]*domain.BackupRecord
	LoadErr error
	Saves   int
}

func NewMockBackupStore() *MockBackupStore {
	return &MockBackupStore{Records: make(map[string]*domain.BackupRecord)}
}

func (m *MockBackupStore) Load(ctx context.Context, assetID string) (*domain.BackupRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	rec, ok := m.Records[assetID]
	if !ok {
		return nil, domain.ErrBackupNotFound
	}
	return rec, nil
}

func (m *MockBackupStore) Save(ctx context.Context, assetID string, rec *domain.BackupRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records[assetID] = rec
	m.Saves++
	return nil
}

func (m *MockBackupStore) Get(assetID string) *domain.BackupRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Records[assetID]
}

// MockTradeRepo keeps the journal in memory, oldest first.
type MockTradeRepo struct {
	mu        sync.Mutex
	Trades    []*domain.Trade
	Snapshots []*domain.RecordingSnapshot
}

func (m *MockTradeRepo) SaveTrade(ctx context.Context, trade *domain.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	trade.ID = int64(len(m.Trades) + 1)
	m.Trades = append(m.Trades, trade)
	return nil
}

func (m *MockTradeRepo) ListTrades(ctx context.Context, limit int) ([]*domain.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Trade
	for i := len(m.Trades) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.Trades[i])
	}
	return out, nil
}

func (m *MockTradeRepo) SaveSnapshot(ctx context.Context, snap *domain.RecordingSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Snapshots = append(m.Snapshots, snap)
	return nil
}

func (m *MockTradeRepo) ListSnapshots(ctx context.Context, assetID string, limit int) ([]*domain.RecordingSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.RecordingSnapshot
	for i := len(m.Snapshots) - 1; i >= 0 && len(out) < limit; i-- {
		if m.Snapshots[i].AssetID == assetID {
			out = append(out, m.Snapshots[i])
		}
	}
	return out, nil
}

func (m *MockTradeRepo) Count() (trades, snapshots int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Trades), len(m.Snapshots)
}
