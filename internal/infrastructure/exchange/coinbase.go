package exchange

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vitos/crypto_threshold_bot/internal/domain"
)

const (
	CoinbaseRESTHost = "api.coinbase.com"
	CoinbaseWSURL    = "wss://advanced-trade-ws.coinbase.com"

	brokeragePath = "/api/v3/brokerage"
	jwtTTL        = 2 * time.Minute
)

// CoinbaseAdapter talks to the Coinbase Advanced Trade REST API with a CDP
// API key (ES256 signed JWT per request).
type CoinbaseAdapter struct {
	keyName      string
	privKey      *ecdsa.PrivateKey
	scheme       string
	host         string
	usdAccountID string
	client       *http.Client
	limiter      *rate.Limiter
	logger       *zap.Logger
	now          func() time.Time

	mu       sync.Mutex
	accounts map[string]cbAccount // currency -> account
}

type CoinbaseOption func(*CoinbaseAdapter)

// WithBaseURL points the adapter at another server, e.g. an httptest server.
func WithBaseURL(raw string) CoinbaseOption {
	return func(c *CoinbaseAdapter) {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			c.scheme = u.Scheme
			c.host = u.Host
		}
	}
}

func WithHTTPClient(client *http.Client) CoinbaseOption {
	return func(c *CoinbaseAdapter) {
		c.client = client
	}
}

func NewCoinbaseAdapter(keyName, privateKeyPEM, host, usdAccountID string, requestsPerSecond float64, logger *zap.Logger, opts ...CoinbaseOption) (*CoinbaseAdapter, error) {
	key, err := parseECPrivateKey(privateKeyPEM)
	if err != nil {
		return nil, err
	}
	if host == "" {
		host = CoinbaseRESTHost
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 10
	}
	c := &CoinbaseAdapter{
		keyName:      keyName,
		privKey:      key,
		scheme:       "https",
		host:         host,
		usdAccountID: usdAccountID,
		client:       &http.Client{Timeout: 10 * time.Second},
		limiter:      rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		logger:       logger,
		now:          time.Now,
		accounts:     make(map[string]cbAccount),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// parseECPrivateKey accepts SEC1 ("EC PRIVATE KEY") and PKCS#8 keys. Escaped
// newlines from env files are unfolded first.
func parseECPrivateKey(pemText string) (*ecdsa.PrivateKey, error) {
	pemText = strings.ReplaceAll(strings.TrimSpace(pemText), `\n`, "\n")
	block, _ := pem.Decode([]byte(pemText))
	if block == nil {
		return nil, errors.New("invalid private key (no PEM block)")
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("could not parse the EC private key: %w", err)
	}
	key, ok := k.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not an EC key")
	}
	return key, nil
}

// --- REST API ---

func (c *CoinbaseAdapter) signJWT(method, host, urlPath string) (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"sub": c.keyName,
		"iss": "cdp",
		"nbf": now.Unix(),
		"exp": now.Add(jwtTTL).Unix(),
		"uri": fmt.Sprintf("%s %s%s", method, host, urlPath),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = c.keyName
	token.Header["nonce"] = strings.ReplaceAll(uuid.NewString(), "-", "")
	return token.SignedString(c.privKey)
}

func (c *CoinbaseAdapter) sendRequest(ctx context.Context, method, urlPath string, query url.Values, payload, result interface{}) error {
	u := &url.URL{
		Scheme:   c.scheme,
		Host:     c.host,
		Path:     urlPath,
		RawQuery: query.Encode(),
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("could not marshal request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	token, err := c.signJWT(method, u.Host, u.Path)
	if err != nil {
		return fmt.Errorf("could not sign jwt: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("coinbase %s %s returned %d: %s", method, urlPath, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("could not decode coinbase response: %w", err)
	}
	return nil
}

type cbBalance struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type cbAccount struct {
	UUID             string    `json:"uuid"`
	Name             string    `json:"name"`
	Currency         string    `json:"currency"`
	AvailableBalance cbBalance `json:"available_balance"`
}

type cbListAccountsResponse struct {
	Accounts []cbAccount `json:"accounts"`
	HasNext  bool        `json:"has_next"`
	Cursor   string      `json:"cursor"`
}

type cbGetAccountResponse struct {
	Account cbAccount `json:"account"`
}

type cbProduct struct {
	ProductID     string `json:"product_id"`
	Price         string `json:"price"`
	BaseName      string `json:"base_name"`
	BaseMinSize   string `json:"base_min_size"`
	BaseIncrement string `json:"base_increment"`
	IsDisabled    bool   `json:"is_disabled"`
}

type cbMarketIOC struct {
	BaseSize string `json:"base_size"`
}

type cbOrderConfig struct {
	MarketIOC *cbMarketIOC `json:"market_market_ioc"`
}

type cbCreateOrderRequest struct {
	ClientOrderID string        `json:"client_order_id"`
	ProductID     string        `json:"product_id"`
	Side          string        `json:"side"`
	Order         cbOrderConfig `json:"order_configuration"`
}

type cbCreateOrderResponse struct {
	Success         bool `json:"success"`
	SuccessResponse *struct {
		OrderID       string `json:"order_id"`
		ProductID     string `json:"product_id"`
		Side          string `json:"side"`
		ClientOrderID string `json:"client_order_id"`
	} `json:"success_response"`
	FailureReason string `json:"failure_reason"`
	ErrorResponse *struct {
		Error        string `json:"error"`
		Message      string `json:"message"`
		ErrorDetails string `json:"error_details"`
	} `json:"error_response"`
}

func parseAmount(s string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// refreshAccounts lists every account page and caches them by currency.
func (c *CoinbaseAdapter) refreshAccounts(ctx context.Context) error {
	accounts := make(map[string]cbAccount)
	query := url.Values{"limit": {"250"}}
	for {
		var resp cbListAccountsResponse
		if err := c.sendRequest(ctx, http.MethodGet, brokeragePath+"/accounts", query, nil, &resp); err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		for _, a := range resp.Accounts {
			accounts[a.Currency] = a
		}
		if !resp.HasNext || resp.Cursor == "" {
			break
		}
		query.Set("cursor", resp.Cursor)
	}
	c.mu.Lock()
	c.accounts = accounts
	c.mu.Unlock()
	return nil
}

func (c *CoinbaseAdapter) account(ctx context.Context, currency string) (cbAccount, error) {
	c.mu.Lock()
	a, ok := c.accounts[currency]
	c.mu.Unlock()
	if ok {
		return a, nil
	}
	if err := c.refreshAccounts(ctx); err != nil {
		return cbAccount{}, err
	}
	c.mu.Lock()
	a, ok = c.accounts[currency]
	c.mu.Unlock()
	if !ok {
		return cbAccount{}, fmt.Errorf("no %s account found", currency)
	}
	return a, nil
}

func (c *CoinbaseAdapter) getProduct(ctx context.Context, productID string) (*cbProduct, error) {
	var p cbProduct
	if err := c.sendRequest(ctx, http.MethodGet, path.Join(brokeragePath, "products", productID), nil, nil, &p); err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", productID, err)
	}
	return &p, nil
}

// DescribeAsset finds the asset's account, its USD product and the minimum
// order size of that product.
func (c *CoinbaseAdapter) DescribeAsset(ctx context.Context, assetID string) (*domain.AssetInfo, error) {
	acct, err := c.account(ctx, assetID)
	if err != nil {
		return nil, err
	}
	productID := domain.ProductID(assetID)
	p, err := c.getProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	minSize, err := parseAmount(p.BaseMinSize)
	if err != nil {
		return nil, fmt.Errorf("product %s base_min_size: %w", productID, err)
	}
	name := p.BaseName
	if name == "" {
		name = acct.Name
	}
	return &domain.AssetInfo{
		AssetID:      assetID,
		AccountID:    acct.UUID,
		ProductID:    productID,
		DisplayName:  name,
		MinOrderSize: minSize,
	}, nil
}

func (c *CoinbaseAdapter) GetCurrentPrice(ctx context.Context, productID string) (float64, error) {
	p, err := c.getProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	return parseAmount(p.Price)
}

func (c *CoinbaseAdapter) GetHoldings(ctx context.Context, accountID string) (float64, error) {
	var resp cbGetAccountResponse
	if err := c.sendRequest(ctx, http.MethodGet, path.Join(brokeragePath, "accounts", accountID), nil, nil, &resp); err != nil {
		return 0, fmt.Errorf("failed to get account %s: %w", accountID, err)
	}
	return parseAmount(resp.Account.AvailableBalance.Value)
}

func (c *CoinbaseAdapter) GetUSDBalance(ctx context.Context) (float64, error) {
	id := c.usdAccountID
	if id == "" {
		acct, err := c.account(ctx, domain.QuoteCurrency)
		if err != nil {
			return 0, err
		}
		id = acct.UUID
	}
	return c.GetHoldings(ctx, id)
}

func (c *CoinbaseAdapter) placeOrder(ctx context.Context, clientOrderID, productID string, side domain.Side, size float64) (*domain.Order, error) {
	if clientOrderID == "" {
		return nil, fmt.Errorf("%w: %s %s: missing client order id", domain.ErrOrderRejected, side, productID)
	}
	req := &cbCreateOrderRequest{
		ClientOrderID: clientOrderID,
		ProductID:     productID,
		Side:          string(side),
		Order: cbOrderConfig{
			MarketIOC: &cbMarketIOC{BaseSize: strconv.FormatFloat(size, 'f', -1, 64)},
		},
	}
	var resp cbCreateOrderResponse
	if err := c.sendRequest(ctx, http.MethodPost, brokeragePath+"/orders", nil, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.SuccessResponse == nil {
		reason := resp.FailureReason
		if resp.ErrorResponse != nil {
			reason = fmt.Sprintf("%s: %s %s", resp.ErrorResponse.Error, resp.ErrorResponse.Message, resp.ErrorResponse.ErrorDetails)
		}
		return nil, fmt.Errorf("%w: %s %s %v: %s", domain.ErrOrderRejected, side, productID, size, strings.TrimSpace(reason))
	}
	c.logger.Info("order placed",
		zap.String("product", productID),
		zap.String("side", string(side)),
		zap.Float64("amount_coin", size),
		zap.String("order_id", resp.SuccessResponse.OrderID),
	)
	return &domain.Order{
		ID:            resp.SuccessResponse.OrderID,
		ClientOrderID: req.ClientOrderID,
		ProductID:     productID,
		Side:          side,
		Size:          size,
		CreatedAt:     c.now(),
	}, nil
}

// MarketBuy submits a market IOC buy. Coinbase answers a repeated
// client_order_id with the order it already holds.
func (c *CoinbaseAdapter) MarketBuy(ctx context.Context, clientOrderID, productID string, size float64) (*domain.Order, error) {
	return c.placeOrder(ctx, clientOrderID, productID, domain.SideBuy, size)
}

func (c *CoinbaseAdapter) MarketSell(ctx context.Context, clientOrderID, productID string, size float64) (*domain.Order, error) {
	return c.placeOrder(ctx, clientOrderID, productID, domain.SideSell, size)
}
