package bitfinex

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/veiloq/exchange-adapters/pkg/common"
	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
)

const defaultBaseURL = "https://api.bitfinex.com"

// symbolDetail is one entry of the v1 symbols_details listing, the only
// object-shaped payload the client consumes. Everything on the v2 API is
// positional arrays.
type symbolDetail struct {
	Pair             string `json:"pair"`
	PricePrecision   int    `json:"price_precision"`
	MinimumOrderSize string `json:"minimum_order_size"`
	MaximumOrderSize string `json:"maximum_order_size"`
	Margin           bool   `json:"margin"`
}

// orderSubmission is the body of a v2 order submit request. Amount is
// signed: positive buys, negative sells.
type orderSubmission struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
	Amount string `json:"amount"`
	Price  string `json:"price,omitempty"`
}

// nativeClient is the REST surface the adapter consumes, split out so
// tests can stub the exchange.
type nativeClient interface {
	SymbolDetails(ctx context.Context) ([]symbolDetail, error)
	Ticker(ctx context.Context, symbol string) ([]json.RawMessage, error)
	Candles(ctx context.Context, symbol, timeframe string, limit int, since *time.Time) ([][]json.RawMessage, error)
	Book(ctx context.Context, symbol string, depth int) ([][]json.RawMessage, error)
	Trades(ctx context.Context, symbol string, limit int) ([][]json.RawMessage, error)

	Wallets(ctx context.Context) ([][]json.RawMessage, error)
	SubmitOrder(ctx context.Context, sub orderSubmission) (int64, error)
	CancelOrder(ctx context.Context, orderID int64) error
	OpenOrders(ctx context.Context) ([][]json.RawMessage, error)
	OrderHistory(ctx context.Context, symbol string) ([][]json.RawMessage, error)
	MyTrades(ctx context.Context, symbol string) ([][]json.RawMessage, error)
}

// restClient signs and executes requests against the Bitfinex v1/v2 REST
// API. Authenticated v2 requests carry an HMAC-SHA384 signature over
// "/api/" + path + nonce + body.
type restClient struct {
	http    common.HTTPClient
	baseURL string
	key     string
	secret  string
	nonce   atomic.Int64
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
	}
}

// nextNonce returns a strictly increasing nonce even under concurrent
// callers; Bitfinex rejects reused or decreasing nonces per key.
func (c *restClient) nextNonce() string {
	for {
		candidate := time.Now().UnixMicro()
		last := c.nonce.Load()
		if candidate <= last {
			candidate = last + 1
		}
		if c.nonce.CompareAndSwap(last, candidate) {
			return strconv.FormatInt(candidate, 10)
		}
	}
}

func (c *restClient) get(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "building request")
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, out)
}

func (c *restClient) postAuth(ctx context.Context, path string, body any, out any, once bool) error {
	raw := []byte("{}")
	if body != nil {
		var err error
		raw, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "encoding request body")
		}
	}

	nonce := c.nextNonce()
	mac := hmac.New(sha512.New384, []byte(c.secret))
	mac.Write([]byte("/api" + path + nonce))
	mac.Write(raw)
	signature := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("bfx-nonce", nonce)
	req.Header.Set("bfx-apikey", c.key)
	req.Header.Set("bfx-signature", signature)

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

func (c *restClient) SymbolDetails(ctx context.Context) ([]symbolDetail, error) {
	var details []symbolDetail
	err := c.get(ctx, "/v1/symbols_details", nil, &details)
	return details, err
}

func (c *restClient) Ticker(ctx context.Context, symbol string) ([]json.RawMessage, error) {
	var row []json.RawMessage
	err := c.get(ctx, "/v2/ticker/"+symbol, nil, &row)
	return row, err
}

func (c *restClient) Candles(ctx context.Context, symbol, timeframe string, limit int, since *time.Time) ([][]json.RawMessage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	// sort=1 asks for ascending order; the adapter still re-sorts.
	query.Set("sort", "1")
	if since != nil {
		query.Set("start", strconv.FormatInt(since.UnixMilli(), 10))
	}

	var rows [][]json.RawMessage
	path := fmt.Sprintf("/v2/candles/trade:%s:%s/hist", timeframe, symbol)
	err := c.get(ctx, path, query, &rows)
	return rows, err
}

func (c *restClient) Book(ctx context.Context, symbol string, depth int) ([][]json.RawMessage, error) {
	query := url.Values{}
	query.Set("len", strconv.Itoa(depth))

	var rows [][]json.RawMessage
	err := c.get(ctx, fmt.Sprintf("/v2/book/%s/P0", symbol), query, &rows)
	return rows, err
}

func (c *restClient) Trades(ctx context.Context, symbol string, limit int) ([][]json.RawMessage, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	var rows [][]json.RawMessage
	err := c.get(ctx, fmt.Sprintf("/v2/trades/%s/hist", symbol), query, &rows)
	return rows, err
}

func (c *restClient) Wallets(ctx context.Context) ([][]json.RawMessage, error) {
	var rows [][]json.RawMessage
	err := c.postAuth(ctx, "/v2/auth/r/wallets", nil, &rows, false)
	return rows, err
}

// SubmitOrder places an order and extracts the assigned id from the
// submit notification: [MTS, TYPE, MESSAGE_ID, null, [ORDER...], CODE,
// STATUS, TEXT].
func (c *restClient) SubmitOrder(ctx context.Context, sub orderSubmission) (int64, error) {
	var notification []json.RawMessage
	if err := c.postAuth(ctx, "/v2/auth/w/order/submit", sub, &notification, true); err != nil {
		return 0, err
	}

	if err := checkNotification(notification); err != nil {
		return 0, err
	}
	if len(notification) < 5 {
		return 0, errors.New("malformed order submit notification")
	}

	var orders [][]json.RawMessage
	if err := json.Unmarshal(notification[4], &orders); err != nil || len(orders) == 0 || len(orders[0]) == 0 {
		return 0, errors.New("order submit notification carries no order")
	}

	var id int64
	if err := json.Unmarshal(orders[0][0], &id); err != nil {
		return 0, errors.Wrap(err, "decoding order id")
	}
	return id, nil
}

func (c *restClient) CancelOrder(ctx context.Context, orderID int64) error {
	var notification []json.RawMessage
	body := map[string]int64{"id": orderID}
	if err := c.postAuth(ctx, "/v2/auth/w/order/cancel", body, &notification, true); err != nil {
		return err
	}
	return checkNotification(notification)
}

func (c *restClient) OpenOrders(ctx context.Context) ([][]json.RawMessage, error) {
	var rows [][]json.RawMessage
	err := c.postAuth(ctx, "/v2/auth/r/orders", nil, &rows, false)
	return rows, err
}

func (c *restClient) OrderHistory(ctx context.Context, symbol string) ([][]json.RawMessage, error) {
	var rows [][]json.RawMessage
	err := c.postAuth(ctx, fmt.Sprintf("/v2/auth/r/orders/%s/hist", symbol), nil, &rows, false)
	return rows, err
}

func (c *restClient) MyTrades(ctx context.Context, symbol string) ([][]json.RawMessage, error) {
	var rows [][]json.RawMessage
	err := c.postAuth(ctx, fmt.Sprintf("/v2/auth/r/trades/%s/hist", symbol), nil, &rows, false)
	return rows, err
}

// checkNotification inspects the STATUS / TEXT tail of a write
// notification and surfaces exchange-side rejections.
func checkNotification(notification []json.RawMessage) error {
	if len(notification) < 8 {
		return nil
	}

	var status, text string
	_ = json.Unmarshal(notification[6], &status)
	_ = json.Unmarshal(notification[7], &text)

	if status == "ERROR" || status == "FAILURE" {
		if strings.Contains(strings.ToLower(text), "not found") {
			return &interfaces.Error{Kind: interfaces.KindInvalidParameter, Message: text}
		}
		return interfaces.NewOrderRejectedError(rejectReason(text), text, nil)
	}
	return nil
}
