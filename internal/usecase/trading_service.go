package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
	"github.com/vitos/crypto_threshold_bot/internal/infrastructure/metrics"
)

// TradingService runs the polling loop: it refreshes every tracked asset from
// the exchange, applies the decision engine in a fixed order, places orders,
// and persists backups and the trade journal.
type TradingService struct {
	exchange    domain.Exchange
	backups     domain.BackupStore
	trades      domain.TradeRepository
	engine      *DecisionEngine
	executor    *TradeExecutor
	logger      *zap.Logger
	recordEvery int64
	now         func() time.Time

	// mu guards the trackers and the portfolio fields. Only the loop
	// goroutine writes; HTTP handlers read through Status.
	mu       sync.RWMutex
	trackers []*domain.AssetTracker
	usd      float64
	snapshot domain.PortfolioSnapshot
	ticks    int64
}

func NewTradingService(
	exchange domain.Exchange,
	backups domain.BackupStore,
	trades domain.TradeRepository,
	logger *zap.Logger,
	recordEvery int,
) *TradingService {
	if recordEvery <= 0 {
		recordEvery = 1
	}
	return &TradingService{
		exchange:    exchange,
		backups:     backups,
		trades:      trades,
		engine:      NewDecisionEngine(),
		executor:    NewTradeExecutor(exchange),
		logger:      logger,
		recordEvery: int64(recordEvery),
		now:         time.Now,
	}
}

// Init discovers every asset on the exchange, builds its tracker and restores
// its backup. A malformed backup or invalid settings abort startup.
func (s *TradingService) Init(ctx context.Context, settings []domain.AssetSettings) error {
	trackers := make([]*domain.AssetTracker, 0, len(settings))
	for _, set := range settings {
		info, err := s.exchange.DescribeAsset(ctx, set.ID)
		if err != nil {
			return fmt.Errorf("failed to describe asset %s: %w", set.ID, err)
		}
		t, err := domain.NewAssetTracker(*info, set)
		if err != nil {
			return err
		}
		rec, err := s.backups.Load(ctx, t.ID())
		switch {
		case errors.Is(err, domain.ErrBackupNotFound):
			s.logger.Info("no backup, reference price will be renewed", zap.String("asset", t.ID()))
		case err != nil:
			return fmt.Errorf("failed to restore %s: %w", t.ID(), err)
		default:
			t.Restore(rec.ReferencePrice, rec.PriceSinceLastTx, rec.Lots)
			s.logger.Info("restored backup",
				zap.String("asset", t.ID()),
				zap.Float64("reference_price", rec.ReferencePrice),
				zap.Float64("price_since_last_tx", rec.PriceSinceLastTx),
				zap.Int("lots", len(rec.Lots)),
			)
		}
		trackers = append(trackers, t)
	}

	s.mu.Lock()
	s.trackers = trackers
	s.mu.Unlock()
	return nil
}

// RefreshAll pulls the USD balance and every asset's price and holdings so the
// first portfolio snapshot reflects all holdings.
func (s *TradingService) RefreshAll(ctx context.Context) error {
	usd, err := s.exchange.GetUSDBalance(ctx)
	if err != nil {
		return fmt.Errorf("failed to get usd balance: %w", err)
	}
	type quote struct{ price, holdings float64 }
	quotes := make([]quote, len(s.trackers))
	for i, t := range s.trackers {
		price, err := s.exchange.GetCurrentPrice(ctx, t.Info.ProductID)
		if err != nil {
			return fmt.Errorf("failed to get price of %s: %w", t.ID(), err)
		}
		holdings, err := s.exchange.GetHoldings(ctx, t.Info.AccountID)
		if err != nil {
			return fmt.Errorf("failed to get holdings of %s: %w", t.ID(), err)
		}
		quotes[i] = quote{price, holdings}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.usd = usd
	for i, t := range s.trackers {
		t.CurrentPrice = quotes[i].price
		t.Holdings = quotes[i].holdings
	}
	s.snapshot = domain.SnapshotOf(usd, s.trackers)
	for _, t := range s.trackers {
		t.PortfolioPercentage = s.snapshot.Percentage(t.ID())
	}
	return nil
}

// Run refreshes all assets and then ticks every interval until ctx is done.
func (s *TradingService) Run(ctx context.Context, interval time.Duration) error {
	if err := s.RefreshAll(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := s.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("tick failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick processes every asset once, in order. An asset whose step fails is
// logged and skipped; the others still run.
func (s *TradingService) Tick(ctx context.Context) error {
	traded := false
	for _, t := range s.trackers {
		if err := ctx.Err(); err != nil {
			return err
		}
		did, err := s.step(ctx, t)
		if err != nil {
			s.logger.Error("asset step failed", zap.String("asset", t.ID()), zap.Error(err))
		}
		traded = traded || did
	}

	s.mu.Lock()
	s.ticks++
	ticks := s.ticks
	s.mu.Unlock()
	metrics.IncTicks()

	if traded || ticks%s.recordEvery == 0 {
		s.record(ctx)
	}
	return nil
}

// step runs one asset through the tick. It reports whether an order was placed.
func (s *TradingService) step(ctx context.Context, t *domain.AssetTracker) (bool, error) {
	usd, err := s.exchange.GetUSDBalance(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get usd balance: %w", err)
	}
	price, err := s.exchange.GetCurrentPrice(ctx, t.Info.ProductID)
	if err != nil {
		return false, fmt.Errorf("failed to get price: %w", err)
	}
	holdings, err := s.exchange.GetHoldings(ctx, t.Info.AccountID)
	if err != nil {
		return false, fmt.Errorf("failed to get holdings: %w", err)
	}

	plan, err := s.decide(t, usd, price, holdings)
	if err != nil {
		if errors.Is(err, domain.ErrZeroReferencePrice) {
			s.logger.Warn("zero reference price, renewing next tick", zap.String("asset", t.ID()))
			return false, s.saveBackup(ctx, t)
		}
		return false, err
	}

	traded := false
	if plan.buyCoin > 0 {
		if err := s.buy(ctx, t, plan); err != nil {
			s.logger.Error("buy failed", zap.String("asset", t.ID()), zap.Error(err))
		} else {
			traded = true
		}
	}
	for _, lot := range plan.sell {
		if err := s.sell(ctx, t, lot, price); err != nil {
			s.logger.Error("sell failed", zap.String("asset", t.ID()), zap.Error(err))
			continue
		}
		traded = true
	}

	return traded, s.saveBackup(ctx, t)
}

type tickPlan struct {
	buyUSD  float64
	buyCoin float64
	sell    []domain.PurchaseLot
}

// decide applies the refreshed quote and runs every rule that does not talk to
// the exchange, under the write lock.
func (s *TradingService) decide(t *domain.AssetTracker, usd, price, holdings float64) (tickPlan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var plan tickPlan
	id := t.ID()

	s.usd = usd
	t.CurrentPrice = price
	t.Holdings = holdings
	s.snapshot = domain.SnapshotOf(usd, s.trackers)
	t.PortfolioPercentage = s.snapshot.Percentage(id)
	metrics.SetPortfolioTotal(s.snapshot.Total())

	if s.engine.RenewIfFlagged(t) {
		metrics.ObserveAdjustment(id, "renew")
		s.logger.Info("reference price renewed", zap.String("asset", id), zap.Float64("price", price))
	}

	if err := s.engine.CalculatePercentage(t); err != nil {
		return plan, err
	}

	if s.engine.Transition(t) {
		metrics.ObserveTransition(id, t.State.String())
		s.logger.Info("state changed",
			zap.String("asset", id),
			zap.String("state", t.State.String()),
			zap.Float64("percentage", t.Percentage),
		)
	}

	if err := s.engine.EvaluateLots(t); err != nil {
		return plan, err
	}

	switch t.State {
	case domain.StateDown:
		if s.engine.ShouldBuy(t) {
			amount, err := s.engine.BuyAmountUSD(t, s.snapshot)
			if err != nil {
				return plan, err
			}
			plan.buyUSD = amount
			plan.buyCoin = ToNativeUnits(amount, price, t.Places)
			t.RenewPrice = true
			s.logger.Info("buy signal",
				zap.String("asset", id),
				zap.Float64("percentage", t.Percentage),
				zap.Float64("amount_usd", plan.buyUSD),
				zap.Float64("amount_coin", plan.buyCoin),
			)
		} else if s.engine.AdjustFalling(t) {
			metrics.ObserveAdjustment(id, "falling")
			s.logger.Info("reference price adjusted down",
				zap.String("asset", id),
				zap.Float64("reference_price", t.ReferencePrice),
			)
		}
	case domain.StateUp:
		if s.engine.AdjustRising(t) {
			metrics.ObserveAdjustment(id, "rising")
			s.logger.Info("reference price adjusted up",
				zap.String("asset", id),
				zap.Float64("reference_price", t.ReferencePrice),
			)
		} else if s.engine.GoBackDown(t) {
			metrics.ObserveTransition(id, t.State.String())
		}
	}

	sell, err := s.engine.SellableLots(t)
	if err != nil {
		return plan, err
	}
	plan.sell = sell

	metrics.SetAsset(id, t.Percentage, t.PortfolioPercentage, t.Ledger.Len())
	return plan, nil
}

func (s *TradingService) buy(ctx context.Context, t *domain.AssetTracker, plan tickPlan) error {
	order, err := s.executor.Execute(ctx, t.Info.ProductID, domain.SideBuy, plan.buyCoin)
	if err != nil {
		return err
	}
	metrics.ObserveOrder(t.ID(), string(domain.SideBuy))

	s.mu.Lock()
	price := t.CurrentPrice
	t.Ledger.Add(domain.NewPurchaseLot(plan.buyCoin, price))
	trade := s.tradeFrom(t, order, domain.SideBuy, plan.buyUSD, plan.buyCoin)
	s.mu.Unlock()

	s.journal(ctx, trade)
	return nil
}

func (s *TradingService) sell(ctx context.Context, t *domain.AssetTracker, lot domain.PurchaseLot, price float64) error {
	order, err := s.executor.Execute(ctx, t.Info.ProductID, domain.SideSell, lot.Amount)
	if err != nil {
		return err
	}
	metrics.ObserveOrder(t.ID(), string(domain.SideSell))

	s.mu.Lock()
	if !t.Ledger.Remove(lot) {
		s.logger.Warn("sold lot missing from ledger", zap.String("asset", t.ID()), zap.Float64("amount_coin", lot.Amount))
	}
	t.RenewPrice = true
	trade := s.tradeFrom(t, order, domain.SideSell, domain.RoundUSD(lot.Amount*price), lot.Amount)
	s.mu.Unlock()

	s.journal(ctx, trade)
	return nil
}

func (s *TradingService) tradeFrom(t *domain.AssetTracker, order *domain.Order, side domain.Side, usd, coin float64) *domain.Trade {
	trade := &domain.Trade{
		AssetID:            t.ID(),
		ProductID:          t.Info.ProductID,
		Side:               side,
		AmountUSD:          usd,
		AmountCoin:         coin,
		Price:              t.CurrentPrice,
		PriceSinceLastTx:   t.PriceSinceLastTx,
		ReferencePrice:     t.ReferencePrice,
		PercentageAtSignal: t.Percentage,
		CreatedAt:          s.now(),
	}
	if order != nil {
		trade.OrderID = order.ID
	}
	return trade
}

func (s *TradingService) journal(ctx context.Context, trade *domain.Trade) {
	s.logger.Info("trade placed",
		zap.String("asset", trade.AssetID),
		zap.String("side", string(trade.Side)),
		zap.Float64("amount_usd", trade.AmountUSD),
		zap.Float64("amount_coin", trade.AmountCoin),
		zap.Float64("price", trade.Price),
	)
	if err := s.trades.SaveTrade(ctx, trade); err != nil {
		s.logger.Error("failed to save trade", zap.String("asset", trade.AssetID), zap.Error(err))
	}
}

func (s *TradingService) saveBackup(ctx context.Context, t *domain.AssetTracker) error {
	s.mu.RLock()
	rec := t.Export()
	s.mu.RUnlock()
	if err := s.backups.Save(ctx, t.ID(), rec); err != nil {
		return fmt.Errorf("failed to save backup: %w", err)
	}
	return nil
}

// record logs and stores one snapshot per asset plus the USD cash line.
func (s *TradingService) record(ctx context.Context) {
	s.mu.RLock()
	now := s.now()
	snaps := make([]*domain.RecordingSnapshot, 0, len(s.trackers))
	for _, t := range s.trackers {
		snaps = append(snaps, &domain.RecordingSnapshot{
			AssetID:             t.ID(),
			ReferencePrice:      t.ReferencePrice,
			CurrentPrice:        t.CurrentPrice,
			Percentage:          t.Percentage,
			State:               t.State.String(),
			Holdings:            t.Holdings,
			HoldingsUSD:         t.HoldingsUSD(),
			PortfolioPercentage: t.PortfolioPercentage,
			OpenLots:            t.Ledger.Len(),
			USDBalance:          s.usd,
			USDPercentage:       s.snapshot.USDPercentage(),
			CreatedAt:           now,
		})
	}
	s.mu.RUnlock()

	for _, snap := range snaps {
		s.logger.Info("recording",
			zap.String("asset", snap.AssetID),
			zap.Float64("reference_price", snap.ReferencePrice),
			zap.Float64("price", snap.CurrentPrice),
			zap.Float64("percentage", snap.Percentage),
			zap.String("state", snap.State),
			zap.Float64("holdings", snap.Holdings),
			zap.Float64("holdings_usd", snap.HoldingsUSD),
			zap.Float64("portfolio_percentage", snap.PortfolioPercentage),
			zap.Float64("usd", snap.USDBalance),
			zap.Float64("usd_percentage", snap.USDPercentage),
		)
		if err := s.trades.SaveSnapshot(ctx, snap); err != nil {
			s.logger.Error("failed to save snapshot", zap.String("asset", snap.AssetID), zap.Error(err))
		}
	}
}

// Status returns a consistent copy of every tracker and the portfolio totals.
func (s *TradingService) Status() domain.StatusReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report := domain.StatusReport{
		USDBalance:    s.usd,
		USDPercentage: s.snapshot.USDPercentage(),
		Total:         s.snapshot.Total(),
		Ticks:         s.ticks,
		Assets:        make([]domain.TrackerView, 0, len(s.trackers)),
	}
	for _, t := range s.trackers {
		report.Assets = append(report.Assets, t.View())
	}
	return report
}

// ListTrades returns the most recent journal entries.
func (s *TradingService) ListTrades(ctx context.Context, limit int) ([]*domain.Trade, error) {
	return s.trades.ListTrades(ctx, limit)
}
