package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vitos/crypto_threshold_bot/internal/domain"
)

// SQLiteStore keeps the trade journal and the recording snapshots.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id TEXT NOT NULL,
			asset_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			side TEXT NOT NULL,
			amount_usd REAL NOT NULL,
			amount_coin REAL NOT NULL,
			price REAL NOT NULL,
			price_since_last_tx REAL NOT NULL,
			reference_price REAL NOT NULL,
			percentage REAL NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_asset ON trades(asset_id);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			asset_id TEXT NOT NULL,
			reference_price REAL NOT NULL,
			current_price REAL NOT NULL,
			percentage REAL NOT NULL,
			state TEXT NOT NULL,
			holdings REAL NOT NULL,
			holdings_usd REAL NOT NULL,
			portfolio_percentage REAL NOT NULL,
			open_lots INTEGER NOT NULL,
			usd_balance REAL NOT NULL,
			usd_percentage REAL NOT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_asset ON snapshots(asset_id, created_at);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

// TradeRepository Implementation

func (s *SQLiteStore) SaveTrade(ctx context.Context, t *domain.Trade) error {
	query := `INSERT INTO trades (order_id, asset_id, product_id, side, amount_usd, amount_coin, price, price_since_last_tx, reference_price, percentage, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		t.OrderID, t.AssetID, t.ProductID, string(t.Side), t.AmountUSD, t.AmountCoin,
		t.Price, t.PriceSinceLastTx, t.ReferencePrice, t.PercentageAtSignal, t.CreatedAt)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		t.ID = id
	}
	return nil
}

// ListTrades returns the newest trades first.
func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]*domain.Trade, error) {
	query := `SELECT id, order_id, asset_id, product_id, side, amount_usd, amount_coin, price, price_since_last_tx, reference_price, percentage, created_at
			  FROM trades ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side string
		if err := rows.Scan(&t.ID, &t.OrderID, &t.AssetID, &t.ProductID, &side, &t.AmountUSD, &t.AmountCoin,
			&t.Price, &t.PriceSinceLastTx, &t.ReferencePrice, &t.PercentageAtSignal, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Side = domain.Side(side)
		trades = append(trades, &t)
	}
	return trades, rows.Err()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *domain.RecordingSnapshot) error {
	query := `INSERT INTO snapshots (asset_id, reference_price, current_price, percentage, state, holdings, holdings_usd, portfolio_percentage, open_lots, usd_balance, usd_percentage, created_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		snap.AssetID, snap.ReferencePrice, snap.CurrentPrice, snap.Percentage, snap.State,
		snap.Holdings, snap.HoldingsUSD, snap.PortfolioPercentage, snap.OpenLots,
		snap.USDBalance, snap.USDPercentage, snap.CreatedAt)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		snap.ID = id
	}
	return nil
}

// ListSnapshots returns the newest snapshots of one asset first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, assetID string, limit int) ([]*domain.RecordingSnapshot, error) {
	query := `SELECT id, asset_id, reference_price, current_price, percentage, state, holdings, holdings_usd, portfolio_percentage, open_lots, usd_balance, usd_percentage, created_at
			  FROM snapshots WHERE asset_id = ? ORDER BY id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, assetID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []*domain.RecordingSnapshot
	for rows.Next() {
		var r domain.RecordingSnapshot
		if err := rows.Scan(&r.ID, &r.AssetID, &r.ReferencePrice, &r.CurrentPrice, &r.Percentage, &r.State,
			&r.Holdings, &r.HoldingsUSD, &r.PortfolioPercentage, &r.OpenLots,
			&r.USDBalance, &r.USDPercentage, &r.CreatedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, &r)
	}
	return snaps, rows.Err()
}
