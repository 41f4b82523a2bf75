package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
)

// CoinbaseTickerFeed keeps the last traded price of subscribed products from
// the public ticker channel. A dropped connection is redialed with backoff and
// every known product is subscribed again.
type CoinbaseTickerFeed struct {
	wsURL      string
	maxAge     time.Duration
	logger     *zap.Logger
	newBackOff func() backoff.BackOff

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	conn      *websocket.Conn
	running   bool
	callbacks []func(domain.Ticker)
	products  map[string]bool
	prices    map[string]domain.Ticker
}

func NewCoinbaseTickerFeed(wsURL string, maxAge time.Duration, logger *zap.Logger) *CoinbaseTickerFeed {
	if wsURL == "" {
		wsURL = CoinbaseWSURL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &CoinbaseTickerFeed{
		wsURL:  wsURL,
		maxAge: maxAge,
		logger: logger,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 0
			return b
		},
		ctx:      ctx,
		cancel:   cancel,
		products: make(map[string]bool),
		prices:   make(map[string]domain.Ticker),
	}
}

// WithBackOff replaces the reconnect policy, mostly for tests.
func (f *CoinbaseTickerFeed) WithBackOff(fn func() backoff.BackOff) *CoinbaseTickerFeed {
	f.newBackOff = fn
	return f
}

func (f *CoinbaseTickerFeed) OnTicker(callback func(t domain.Ticker)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = append(f.callbacks, callback)
}

// Subscribe dials on first use and adds the products to the ticker channel.
// While the feed is reconnecting the products are only remembered and go out
// with the next subscription.
func (f *CoinbaseTickerFeed) Subscribe(productIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ctx.Err() != nil {
		return errFeedClosed
	}
	for _, id := range productIDs {
		f.products[id] = true
	}
	if !f.running {
		c, _, err := websocket.DefaultDialer.DialContext(f.ctx, f.wsURL, nil)
		if err != nil {
			return err
		}
		f.conn = c
		f.running = true
		go f.readLoop(c)
	}
	if f.conn == nil {
		return nil
	}
	return f.subscribe(productIDs)
}

// subscribe writes a subscription on the live connection. Callers hold f.mu.
func (f *CoinbaseTickerFeed) subscribe(productIDs []string) error {
	if len(productIDs) == 0 {
		return nil
	}
	msg := map[string]interface{}{
		"type":        "subscribe",
		"product_ids": productIDs,
		"channel":     "ticker",
	}
	return f.conn.WriteJSON(msg)
}

func (f *CoinbaseTickerFeed) productList() []string {
	ids := make([]string, 0, len(f.products))
	for id := range f.products {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close stops the feed for good; no reconnect follows.
func (f *CoinbaseTickerFeed) Close() error {
	f.cancel()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	f.conn = nil
	return err
}

var errFeedClosed = errors.New("ticker feed closed")

var _ domain.PriceFeed = (*CoinbaseTickerFeed)(nil)

type cbTickerMessage struct {
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
	Events    []struct {
		Type    string `json:"type"`
		Tickers []struct {
			ProductID string `json:"product_id"`
			Price     string `json:"price"`
		} `json:"tickers"`
	} `json:"events"`
}

func (f *CoinbaseTickerFeed) readLoop(conn *websocket.Conn) {
	defer func() {
		f.mu.Lock()
		f.running = false
		f.mu.Unlock()
	}()

	for {
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				f.logger.Warn("ticker feed read failed", zap.Error(err))
				break
			}
			f.handleMessage(message)
		}
		conn.Close()
		f.mu.Lock()
		if f.conn == conn {
			f.conn = nil
		}
		f.mu.Unlock()

		next, err := f.reconnect()
		if err != nil {
			if f.ctx.Err() == nil {
				f.logger.Error("ticker feed gave up reconnecting", zap.Error(err))
			}
			return
		}
		conn = next
	}
}

// reconnect redials until a connection is up and resubscribed, or the feed is
// closed.
func (f *CoinbaseTickerFeed) reconnect() (*websocket.Conn, error) {
	dial := func() (*websocket.Conn, error) {
		c, _, err := websocket.DefaultDialer.DialContext(f.ctx, f.wsURL, nil)
		if err != nil {
			return nil, err
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.ctx.Err() != nil {
			c.Close()
			return nil, backoff.Permanent(errFeedClosed)
		}
		f.conn = c
		if err := f.subscribe(f.productList()); err != nil {
			c.Close()
			f.conn = nil
			return nil, err
		}
		return c, nil
	}
	notify := func(err error, next time.Duration) {
		f.logger.Warn("ticker feed reconnect failed",
			zap.Duration("backoff", next),
			zap.Error(err),
		)
	}
	c, err := backoff.RetryNotifyWithData(dial, backoff.WithContext(f.newBackOff(), f.ctx), notify)
	if err == nil {
		f.logger.Info("ticker feed reconnected", zap.String("url", f.wsURL))
	}
	return c, err
}

func (f *CoinbaseTickerFeed) handleMessage(message []byte) {
	var msg cbTickerMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		f.logger.Debug("ticker feed unmarshal failed", zap.Error(err))
		return
	}
	if msg.Channel != "ticker" {
		return
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	for _, ev := range msg.Events {
		for _, tk := range ev.Tickers {
			price, err := strconv.ParseFloat(tk.Price, 64)
			if err != nil || price <= 0 {
				continue
			}
			t := domain.Ticker{ProductID: tk.ProductID, Price: price, Time: ts.UnixMilli()}

			f.mu.Lock()
			f.prices[t.ProductID] = t
			callbacks := make([]func(domain.Ticker), len(f.callbacks))
			copy(callbacks, f.callbacks)
			f.mu.Unlock()

			for _, cb := range callbacks {
				cb(t)
			}
		}
	}
}

// LatestPrice returns the last ticker price if it is younger than maxAge.
func (f *CoinbaseTickerFeed) LatestPrice(productID string) (float64, bool) {
	f.mu.Lock()
	t, ok := f.prices[productID]
	f.mu.Unlock()
	if !ok {
		return 0, false
	}
	if f.maxAge > 0 && time.Since(time.UnixMilli(t.Time)) > f.maxAge {
		return 0, false
	}
	return t.Price, true
}

// GetCurrentPrice serves the cached ticker so the feed can price a paper
// exchange.
func (f *CoinbaseTickerFeed) GetCurrentPrice(ctx context.Context, productID string) (float64, error) {
	if p, ok := f.LatestPrice(productID); ok {
		return p, nil
	}
	return 0, fmt.Errorf("no recent ticker for %s", productID)
}

// FeedPricedExchange answers price queries from a live feed when it has a
// fresh quote and forwards everything else to the wrapped exchange.
type FeedPricedExchange struct {
	domain.Exchange
	feed domain.PriceFeed
}

func NewFeedPricedExchange(next domain.Exchange, feed domain.PriceFeed) *FeedPricedExchange {
	return &FeedPricedExchange{Exchange: next, feed: feed}
}

func (e *FeedPricedExchange) GetCurrentPrice(ctx context.Context, productID string) (float64, error) {
	if p, ok := e.feed.LatestPrice(productID); ok {
		return p, nil
	}
	return e.Exchange.GetCurrentPrice(ctx, productID)
}
