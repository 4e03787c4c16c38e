package bitmex

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
)

type mockNative struct {
	mu    sync.Mutex
	calls map[string]int

	instruments []instrument
	buckets     []bucketedTrade
	levels      []bookLevel
	trades      []publicTrade
	margins     []marginBalance
	placed      *nativeOrder
	orders      []nativeOrder
	executions  []execution

	lastPayload     orderPayload
	lastBinSize     string
	lastSymbol      string
	cancelledIDs    []string
	bulkCancelCount int

	err error
}

func newMockNative() *mockNative {
	return &mockNative{calls: make(map[string]int)}
}

func (m *mockNative) gate(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[name]++
	return m.err
}

func (m *mockNative) callCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockNative) ActiveInstruments(ctx context.Context) ([]instrument, error) {
	return m.instruments, m.gate("ActiveInstruments")
}

func (m *mockNative) Instrument(ctx context.Context, symbol string) ([]instrument, error) {
	m.mu.Lock()
	m.lastSymbol = symbol
	m.mu.Unlock()
	return m.instruments, m.gate("Instrument")
}

func (m *mockNative) BucketedTrades(ctx context.Context, symbol, binSize string, count int, since *time.Time) ([]bucketedTrade, error) {
	m.mu.Lock()
	m.lastSymbol = symbol
	m.lastBinSize = binSize
	m.mu.Unlock()
	return m.buckets, m.gate("BucketedTrades")
}

func (m *mockNative) OrderBookL2(ctx context.Context, symbol string, depth int) ([]bookLevel, error) {
	return m.levels, m.gate("OrderBookL2")
}

func (m *mockNative) Trades(ctx context.Context, symbol string, count int) ([]publicTrade, error) {
	return m.trades, m.gate("Trades")
}

func (m *mockNative) Margin(ctx context.Context) ([]marginBalance, error) {
	return m.margins, m.gate("Margin")
}

func (m *mockNative) PlaceOrder(ctx context.Context, payload orderPayload) (*nativeOrder, error) {
	m.mu.Lock()
	m.lastPayload = payload
	m.mu.Unlock()
	return m.placed, m.gate("PlaceOrder")
}

func (m *mockNative) CancelOrder(ctx context.Context, orderID string) error {
	m.mu.Lock()
	m.cancelledIDs = append(m.cancelledIDs, orderID)
	m.mu.Unlock()
	return m.gate("CancelOrder")
}

func (m *mockNative) CancelAllOrders(ctx context.Context, symbol string) (int, error) {
	m.mu.Lock()
	m.lastSymbol = symbol
	m.mu.Unlock()
	return m.bulkCancelCount, m.gate("CancelAllOrders")
}

func (m *mockNative) Orders(ctx context.Context, symbol string, openOnly bool) ([]nativeOrder, error) {
	m.mu.Lock()
	m.lastSymbol = symbol
	m.mu.Unlock()
	return m.orders, m.gate("Orders")
}

func (m *mockNative) TradeHistory(ctx context.Context, symbol string, count int) ([]execution, error) {
	return m.executions, m.gate("TradeHistory")
}

func newTestAdapter(t *testing.T, client nativeClient, withCredentials bool) *Adapter {
	t.Helper()

	options := interfaces.NewOptions()
	if withCredentials {
		options.WithCredentials("test-key", "test-secret")
	}

	adapter, err := New(options)
	require.NoError(t, err)
	adapter.client = client
	return adapter
}

func TestName(t *testing.T) {
	adapter := newTestAdapter(t, newMockNative(), false)
	assert.Equal(t, "bitmex", adapter.Name())
}

func TestNativeSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BTCUSD", "XBTUSD"},
		{"btcusd", "XBTUSD"},
		{"XBTUSD", "XBTUSD"},
		{"ETHUSD", "ETHUSD"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nativeSymbol(tt.in), tt.in)
	}
}

func TestFetchOHLCVIntervalCoverage(t *testing.T) {
	supported := []interfaces.Interval{
		interfaces.Interval1m, interfaces.Interval5m,
		interfaces.Interval1h, interfaces.Interval1d,
	}
	unsupported := []interfaces.Interval{
		interfaces.Interval15m, interfaces.Interval30m, interfaces.Interval4h,
		interfaces.Interval1w, interfaces.Interval1M,
	}

	for _, interval := range supported {
		mock := newMockNative()
		adapter := newTestAdapter(t, mock, false)
		_, err := adapter.FetchOHLCV(context.Background(), "XBTUSD", interval, 10, nil)
		require.NoError(t, err, string(interval))
		assert.Equal(t, string(interval), mock.lastBinSize)
	}

	for _, interval := range unsupported {
		mock := newMockNative()
		adapter := newTestAdapter(t, mock, false)
		_, err := adapter.FetchOHLCV(context.Background(), "XBTUSD", interval, 10, nil)
		require.Error(t, err, string(interval))
		assert.Equal(t, interfaces.KindInvalidParameter, interfaces.KindOf(err))
		assert.Zero(t, mock.callCount("BucketedTrades"))
	}
}

func TestFetchOHLCVDerivesOpenTime(t *testing.T) {
	mock := newMockNative()
	mock.buckets = []bucketedTrade{
		{Timestamp: time.UnixMilli(180000).UTC(), Open: "101", High: "103", Low: "100", Close: "102", Volume: "7", Trades: 3},
		{Timestamp: time.UnixMilli(120000).UTC(), Open: "100", High: "102", Low: "99", Close: "101", Volume: "5", Trades: 2},
	}
	adapter := newTestAdapter(t, mock, false)

	candles, err := adapter.FetchOHLCV(context.Background(), "BTCUSD", interfaces.Interval1m, 2, nil)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	first := candles[0]
	assert.Equal(t, "XBTUSD", mock.lastSymbol)
	assert.Equal(t, int64(60000), first.OpenTime, "the bucket timestamp marks the close boundary")
	assert.Equal(t, int64(120000), first.CloseTime)
	assert.True(t, first.Close.Equal(decimal.NewFromInt(101)))
	assert.Equal(t, int64(2), first.TradeCount)
	assert.Equal(t, int64(120000), candles[1].OpenTime)
}

func TestFetchTicker(t *testing.T) {
	ts := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	mock := newMockNative()
	mock.instruments = []instrument{{
		Symbol:    "XBTUSD",
		LastPrice: "50000.5",
		BidPrice:  "50000",
		AskPrice:  "50001",
		HighPrice: "51000",
		LowPrice:  "49000",
		Volume24h: "123456789",
		Timestamp: ts,
	}}
	adapter := newTestAdapter(t, mock, false)

	ticker, err := adapter.FetchTicker(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, "XBTUSD", mock.lastSymbol)
	assert.Equal(t, "XBTUSD", ticker.Symbol)
	assert.True(t, ticker.Last.Equal(decimal.RequireFromString("50000.5")))
	assert.Equal(t, ts.UnixMilli(), ticker.Timestamp)
}

func TestFetchTickerUnknownSymbol(t *testing.T) {
	mock := newMockNative()
	adapter := newTestAdapter(t, mock, false)

	_, err := adapter.FetchTicker(context.Background(), "NOPEUSD")
	require.Error(t, err)
	assert.Equal(t, interfaces.KindInvalidParameter, interfaces.KindOf(err))
}

func TestFetchOrderBookSortsSides(t *testing.T) {
	mock := newMockNative()
	mock.levels = []bookLevel{
		{Symbol: "XBTUSD", Side: "Sell", Size: "100", Price: "50010"},
		{Symbol: "XBTUSD", Side: "Sell", Size: "50", Price: "50005"},
		{Symbol: "XBTUSD", Side: "Buy", Size: "200", Price: "49990"},
		{Symbol: "XBTUSD", Side: "Buy", Size: "75", Price: "49995"},
	}
	adapter := newTestAdapter(t, mock, false)

	book, err := adapter.FetchOrderBook(context.Background(), "XBTUSD", 25)
	require.NoError(t, err)
	require.Len(t, book.Bids, 2)
	require.Len(t, book.Asks, 2)
	assert.True(t, book.Bids[0].Price.Equal(decimal.NewFromInt(49995)), "bids descend")
	assert.True(t, book.Asks[0].Price.Equal(decimal.NewFromInt(50005)), "asks ascend")
}

func TestFetchBalanceScalesMarginUnits(t *testing.T) {
	mock := newMockNative()
	mock.margins = []marginBalance{
		{Currency: "XBt", WalletBalance: "150000000", AvailableMargin: "100000000"},
		{Currency: "USDt", WalletBalance: "2500000", AvailableMargin: "2500000"},
	}
	adapter := newTestAdapter(t, mock, true)

	balances, err := adapter.FetchBalance(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, balances, 2)

	xbt := balances["XBT"]
	assert.True(t, xbt.Free.Equal(decimal.NewFromInt(1)), "satoshis scale to whole bitcoin")
	assert.True(t, xbt.Locked.Equal(decimal.RequireFromString("0.5")))

	usdt := balances["USDT"]
	assert.True(t, usdt.Free.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, usdt.Locked.IsZero())
}

func TestFetchBalanceSingleAsset(t *testing.T) {
	mock := newMockNative()
	mock.margins = []marginBalance{
		{Currency: "XBt", WalletBalance: "100000000", AvailableMargin: "100000000"},
		{Currency: "USDt", WalletBalance: "1000000", AvailableMargin: "1000000"},
	}
	adapter := newTestAdapter(t, mock, true)

	balances, err := adapter.FetchBalance(context.Background(), "xbt")
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.True(t, balances["XBT"].Free.Equal(decimal.NewFromInt(1)))
}

func TestFetchBalanceRequiresCredentials(t *testing.T) {
	mock := newMockNative()
	adapter := newTestAdapter(t, mock, false)

	_, err := adapter.FetchBalance(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, interfaces.KindAuthentication, interfaces.KindOf(err))
	assert.Zero(t, mock.callCount("Margin"))
}

func TestCreateOrderPayload(t *testing.T) {
	mock := newMockNative()
	mock.placed = &nativeOrder{OrderID: "a1b2c3d4-0000-0000-0000-000000000000"}
	adapter := newTestAdapter(t, mock, true)

	id, err := adapter.CreateOrder(context.Background(), interfaces.OrderRequest{
		Symbol:   "BTCUSD",
		Side:     "buy",
		Type:     "limit",
		Quantity: decimal.NewFromInt(100),
		Price:    decimal.NewFromInt(50000),
	})
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3d4-0000-0000-0000-000000000000", id)
	assert.Equal(t, "XBTUSD", mock.lastPayload.Symbol)
	assert.Equal(t, "Buy", mock.lastPayload.Side)
	assert.Equal(t, "Limit", mock.lastPayload.OrdType)
	assert.Equal(t, "100", mock.lastPayload.OrderQty.String())
	assert.Equal(t, "50000", mock.lastPayload.Price.String())
	assert.Equal(t, "GoodTillCancel", mock.lastPayload.TimeInForce)
}

func TestCreateMarketOrderOmitsPrice(t *testing.T) {
	mock := newMockNative()
	mock.placed = &nativeOrder{OrderID: "uuid-market"}
	adapter := newTestAdapter(t, mock, true)

	_, err := adapter.CreateOrder(context.Background(), interfaces.OrderRequest{
		Symbol:   "ETHUSD",
		Side:     "sell",
		Type:     "market",
		Quantity: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, "Market", mock.lastPayload.OrdType)
	assert.Empty(t, mock.lastPayload.Price.String())
	assert.Empty(t, mock.lastPayload.TimeInForce)
}

func TestCancelOrderRequiresID(t *testing.T) {
	mock := newMockNative()
	adapter := newTestAdapter(t, mock, true)

	err := adapter.CancelOrder(context.Background(), "  ", "XBTUSD")
	require.Error(t, err)
	assert.Equal(t, interfaces.KindInvalidParameter, interfaces.KindOf(err))
	assert.Zero(t, mock.callCount("CancelOrder"))
}

func TestCancelOrderAcceptsUUIDs(t *testing.T) {
	mock := newMockNative()
	adapter := newTestAdapter(t, mock, true)

	require.NoError(t, adapter.CancelOrder(context.Background(), "some-uuid", "XBTUSD"))
	assert.Equal(t, []string{"some-uuid"}, mock.cancelledIDs)
}

func TestCancelAllOrdersUsesBulkEndpoint(t *testing.T) {
	mock := newMockNative()
	mock.bulkCancelCount = 3
	adapter := newTestAdapter(t, mock, true)

	cancelled, err := adapter.CancelAllOrders(context.Background(), "BTCUSD")
	require.NoError(t, err)
	assert.Equal(t, 3, cancelled)
	assert.Equal(t, "XBTUSD", mock.lastSymbol)
	assert.Equal(t, 1, mock.callCount("CancelAllOrders"))
	assert.Zero(t, mock.callCount("CancelOrder"), "bulk cancel must not fan out into single cancels")
}

func TestFetchOpenOrders(t *testing.T) {
	created := time.Date(2023, 6, 1, 10, 0, 0, 0, time.UTC)
	mock := newMockNative()
	mock.orders = []nativeOrder{
		{OrderID: "u-1", Symbol: "XBTUSD", Side: "Buy", OrderQty: "100", CumQty: "25", Price: "49000", OrdType: "Limit", OrdStatus: "PartiallyFilled", Timestamp: created},
		{OrderID: "u-2", Symbol: "XBTUSD", Side: "Sell", OrderQty: "50", CumQty: "0", Price: "51000", OrdType: "Limit", OrdStatus: "New", Timestamp: created},
	}
	adapter := newTestAdapter(t, mock, true)

	orders, err := adapter.FetchOpenOrders(context.Background(), "XBTUSD")
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, interfaces.OrderStatusPartiallyFilled, orders[0].Status)
	assert.True(t, orders[0].ExecutedQuantity.Equal(decimal.NewFromInt(25)))
	assert.Equal(t, created, orders[0].CreatedAt)

	buys, err := interfaces.FetchOpenBuyOrders(context.Background(), adapter, "XBTUSD")
	require.NoError(t, err)
	require.Len(t, buys, 1)
	assert.Equal(t, "u-1", buys[0].ID)
}

func TestFetchMyTrades(t *testing.T) {
	ts := time.Date(2023, 6, 1, 11, 0, 0, 0, time.UTC)
	mock := newMockNative()
	mock.executions = []execution{
		{ExecID: "e-1", OrderID: "u-1", Symbol: "XBTUSD", Side: "Buy", LastQty: "25", LastPx: "49000.5", Timestamp: ts},
	}
	adapter := newTestAdapter(t, mock, true)

	trades, err := adapter.FetchMyTrades(context.Background(), "XBTUSD")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "e-1", trades[0].ID)
	assert.Equal(t, "u-1", trades[0].OrderID)
	assert.True(t, trades[0].Price.Equal(decimal.RequireFromString("49000.5")))
	assert.Equal(t, ts.UnixMilli(), trades[0].Timestamp)
}

func TestFetchMarkets(t *testing.T) {
	mock := newMockNative()
	mock.instruments = []instrument{
		{Symbol: "XBTUSD", RootSymbol: "XBT", QuoteCurrency: "USD", State: "Open", LotSize: "100", TickSize: "0.5"},
		{Symbol: "DEADZ23", RootSymbol: "DEAD", QuoteCurrency: "USD", State: "Settled", LotSize: "1", TickSize: "0.05"},
	}
	adapter := newTestAdapter(t, mock, false)

	markets, err := adapter.FetchMarkets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 2)
	assert.True(t, markets[0].Active)
	assert.False(t, markets[1].Active)
	assert.True(t, markets[0].MinQuantity.Equal(decimal.NewFromInt(100)))
	assert.True(t, markets[0].TickSize.Equal(decimal.RequireFromString("0.5")))
}
