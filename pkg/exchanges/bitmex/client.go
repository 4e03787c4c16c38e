package bitmex

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/veiloq/exchange-adapters/pkg/common"
)

const (
	defaultBaseURL = "https://www.bitmex.com"
	apiPrefix      = "/api/v1"

	// signatureLifetime is how far in the future the api-expires header
	// points; BitMEX rejects requests once it passes.
	signatureLifetime = 60 * time.Second
)

// instrument is the subset of the instrument listing the adapter reads.
// It doubles as the ticker payload, which BitMEX serves from the same
// endpoint.
type instrument struct {
	Symbol        string      `json:"symbol"`
	RootSymbol    string      `json:"rootSymbol"`
	QuoteCurrency string      `json:"quoteCurrency"`
	State         string      `json:"state"`
	LotSize       json.Number `json:"lotSize"`
	TickSize      json.Number `json:"tickSize"`
	LastPrice     json.Number `json:"lastPrice"`
	BidPrice      json.Number `json:"bidPrice"`
	AskPrice      json.Number `json:"askPrice"`
	HighPrice     json.Number `json:"highPrice"`
	LowPrice      json.Number `json:"lowPrice"`
	Volume24h     json.Number `json:"volume24h"`
	Timestamp     time.Time   `json:"timestamp"`
}

// bucketedTrade is one OHLCV bucket. The timestamp marks the bucket's
// close, not its open.
type bucketedTrade struct {
	Timestamp time.Time   `json:"timestamp"`
	Symbol    string      `json:"symbol"`
	Open      json.Number `json:"open"`
	High      json.Number `json:"high"`
	Low       json.Number `json:"low"`
	Close     json.Number `json:"close"`
	Volume    json.Number `json:"volume"`
	Trades    int64       `json:"trades"`
	Turnover  json.Number `json:"turnover"`
}

type bookLevel struct {
	Symbol string      `json:"symbol"`
	Side   string      `json:"side"`
	Size   json.Number `json:"size"`
	Price  json.Number `json:"price"`
}

type publicTrade struct {
	Timestamp  time.Time   `json:"timestamp"`
	Symbol     string      `json:"symbol"`
	Side       string      `json:"side"`
	Size       json.Number `json:"size"`
	Price      json.Number `json:"price"`
	TrdMatchID string      `json:"trdMatchID"`
}

type marginBalance struct {
	Currency        string      `json:"currency"`
	WalletBalance   json.Number `json:"walletBalance"`
	AvailableMargin json.Number `json:"availableMargin"`
}

type nativeOrder struct {
	OrderID     string      `json:"orderID"`
	Symbol      string      `json:"symbol"`
	Side        string      `json:"side"`
	OrderQty    json.Number `json:"orderQty"`
	CumQty      json.Number `json:"cumQty"`
	Price       json.Number `json:"price"`
	OrdType     string      `json:"ordType"`
	OrdStatus   string      `json:"ordStatus"`
	Timestamp   time.Time   `json:"timestamp"`
	TransactTim time.Time   `json:"transactTime"`
}

type execution struct {
	ExecID    string      `json:"execID"`
	OrderID   string      `json:"orderID"`
	Symbol    string      `json:"symbol"`
	Side      string      `json:"side"`
	LastQty   json.Number `json:"lastQty"`
	LastPx    json.Number `json:"lastPx"`
	Timestamp time.Time   `json:"timestamp"`
}

// orderPayload is the body of an order placement.
type orderPayload struct {
	Symbol      string      `json:"symbol"`
	Side        string      `json:"side"`
	OrderQty    json.Number `json:"orderQty"`
	Price       json.Number `json:"price,omitempty"`
	OrdType     string      `json:"ordType"`
	TimeInForce string      `json:"timeInForce,omitempty"`
}

// nativeClient is the REST surface the adapter consumes.
type nativeClient interface {
	ActiveInstruments(ctx context.Context) ([]instrument, error)
	Instrument(ctx context.Context, symbol string) ([]instrument, error)
	BucketedTrades(ctx context.Context, symbol, binSize string, count int, since *time.Time) ([]bucketedTrade, error)
	OrderBookL2(ctx context.Context, symbol string, depth int) ([]bookLevel, error)
	Trades(ctx context.Context, symbol string, count int) ([]publicTrade, error)
	Margin(ctx context.Context) ([]marginBalance, error)

	PlaceOrder(ctx context.Context, payload orderPayload) (*nativeOrder, error)
	CancelOrder(ctx context.Context, orderID string) error
	CancelAllOrders(ctx context.Context, symbol string) (int, error)
	Orders(ctx context.Context, symbol string, openOnly bool) ([]nativeOrder, error)
	TradeHistory(ctx context.Context, symbol string, count int) ([]execution, error)
}

// restClient signs and executes requests against the BitMEX REST API.
// The signature is HMAC-SHA256 over verb + path (including the query
// string) + expires + body.
type restClient struct {
	http    common.HTTPClient
	baseURL string
	key     string
	secret  string

	// now is swapped in tests to pin the api-expires header.
	now func() time.Time
}

func newRestClient(key, secret, baseURL string, http common.HTTPClient) *restClient {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &restClient{
		http:    http,
		baseURL: baseURL,
		key:     key,
		secret:  secret,
		now:     time.Now,
	}
}

func (c *restClient) do(ctx context.Context, verb, path string, query url.Values, body, out any, once bool) error {
	requestPath := apiPrefix + path
	if len(query) > 0 {
		requestPath += "?" + query.Encode()
	}

	var raw []byte
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
	}

	req, err := http.NewRequest(verb, c.baseURL+requestPath, bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.key != "" {
		expires := strconv.FormatInt(c.now().Add(signatureLifetime).Unix(), 10)
		mac := hmac.New(sha256.New, []byte(c.secret))
		mac.Write([]byte(verb + requestPath + expires))
		mac.Write(raw)

		req.Header.Set("api-expires", expires)
		req.Header.Set("api-key", c.key)
		req.Header.Set("api-signature", hex.EncodeToString(mac.Sum(nil)))
	}

	var resp *http.Response
	if once {
		resp, err = c.http.DoOnce(ctx, req)
	} else {
		resp, err = c.http.Do(ctx, req)
	}
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response body")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decoding response body")
	}
	return nil
}

func (c *restClient) ActiveInstruments(ctx context.Context) ([]instrument, error) {
	var out []instrument
	err := c.do(ctx, http.MethodGet, "/instrument/active", nil, nil, &out, false)
	return out, err
}

func (c *restClient) Instrument(ctx context.Context, symbol string) ([]instrument, error) {
	query := url.Values{}
	query.Set("symbol", symbol)

	var out []instrument
	err := c.do(ctx, http.MethodGet, "/instrument", query, nil, &out, false)
	return out, err
}

func (c *restClient) BucketedTrades(ctx context.Context, symbol, binSize string, count int, since *time.Time) ([]bucketedTrade, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("binSize", binSize)
	query.Set("count", strconv.Itoa(count))
	query.Set("partial", "false")
	query.Set("reverse", "false")
	if since != nil {
		query.Set("startTime", since.UTC().Format(time.RFC3339))
	}

	var out []bucketedTrade
	err := c.do(ctx, http.MethodGet, "/trade/bucketed", query, nil, &out, false)
	return out, err
}

func (c *restClient) OrderBookL2(ctx context.Context, symbol string, depth int) ([]bookLevel, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("depth", strconv.Itoa(depth))

	var out []bookLevel
	err := c.do(ctx, http.MethodGet, "/orderBook/L2", query, nil, &out, false)
	return out, err
}

func (c *restClient) Trades(ctx context.Context, symbol string, count int) ([]publicTrade, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("count", strconv.Itoa(count))
	query.Set("reverse", "true")

	var out []publicTrade
	err := c.do(ctx, http.MethodGet, "/trade", query, nil, &out, false)
	return out, err
}

func (c *restClient) Margin(ctx context.Context) ([]marginBalance, error) {
	query := url.Values{}
	query.Set("currency", "all")

	var out []marginBalance
	err := c.do(ctx, http.MethodGet, "/user/margin", query, nil, &out, false)
	return out, err
}

func (c *restClient) PlaceOrder(ctx context.Context, payload orderPayload) (*nativeOrder, error) {
	var out nativeOrder
	if err := c.do(ctx, http.MethodPost, "/order", nil, payload, &out, true); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *restClient) CancelOrder(ctx context.Context, orderID string) error {
	body := map[string]string{"orderID": orderID}
	return c.do(ctx, http.MethodDelete, "/order", nil, body, nil, true)
}

// CancelAllOrders uses the native bulk endpoint and reports how many
// orders the exchange acknowledged.
func (c *restClient) CancelAllOrders(ctx context.Context, symbol string) (int, error) {
	query := url.Values{}
	if symbol != "" {
		query.Set("symbol", symbol)
	}

	var cancelled []nativeOrder
	if err := c.do(ctx, http.MethodDelete, "/order/all", query, nil, &cancelled, true); err != nil {
		return 0, err
	}
	return len(cancelled), nil
}

func (c *restClient) Orders(ctx context.Context, symbol string, openOnly bool) ([]nativeOrder, error) {
	query := url.Values{}
	if symbol != "" {
		query.Set("symbol", symbol)
	}
	query.Set("reverse", "true")
	if openOnly {
		query.Set("filter", `{"open":true}`)
	}

	var out []nativeOrder
	err := c.do(ctx, http.MethodGet, "/order", query, nil, &out, false)
	return out, err
}

func (c *restClient) TradeHistory(ctx context.Context, symbol string, count int) ([]execution, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("count", strconv.Itoa(count))
	query.Set("reverse", "true")

	var out []execution
	err := c.do(ctx, http.MethodGet, "/execution/tradeHistory", query, nil, &out, false)
	return out, err
}
