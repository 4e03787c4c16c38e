package binance

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
)

// nativeClient is the slice of the Binance SDK surface the adapter calls.
// Keeping it an explicit interface pins down the duck-typed SDK shape and
// lets tests substitute a mock without a network.
type nativeClient interface {
	ExchangeInfo(ctx context.Context) (*binance.ExchangeInfo, error)
	PriceChangeStats(ctx context.Context, symbol string) ([]*binance.PriceChangeStats, error)
	Klines(ctx context.Context, symbol, interval string, limit int, since *time.Time) ([]*binance.Kline, error)
	Depth(ctx context.Context, symbol string, limit int) (*binance.DepthResponse, error)
	RecentTrades(ctx context.Context, symbol string, limit int) ([]*binance.Trade, error)
	Account(ctx context.Context) (*binance.Account, error)
	CreateOrder(ctx context.Context, req orderParams) (*binance.CreateOrderResponse, error)
	CreateMarginOrder(ctx context.Context, req orderParams) (*binance.CreateOrderResponse, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) error
	OpenOrders(ctx context.Context, symbol string) ([]*binance.Order, error)
	AllOrders(ctx context.Context, symbol string) ([]*binance.Order, error)
	MyTrades(ctx context.Context, symbol string, limit int) ([]*binance.TradeV3, error)
}

// Payload aliases keep the SDK import confined to this file and the
// converters.
type (
	binanceKline               = binance.Kline
	binancePriceChangeStats    = binance.PriceChangeStats
	binanceDepth               = binance.DepthResponse
	binanceTrade               = binance.Trade
	binanceMyTrade             = binance.TradeV3
	binanceOrder               = binance.Order
	binanceCreateOrderResponse = binance.CreateOrderResponse
)

// orderParams carries an already-normalized order through to the SDK.
// Quantity and price travel as strings so decimal values reach the wire
// without floating point rounding.
type orderParams struct {
	symbol      string
	side        binance.SideType
	orderType   binance.OrderType
	quantity    string
	price       string
	timeInForce binance.TimeInForceType
}

// restClient implements nativeClient over the official SDK client.
type restClient struct {
	client *binance.Client
}

func newRestClient(key, secret, baseURL string) *restClient {
	client := binance.NewClient(key, secret)
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	return &restClient{client: client}
}

func (r *restClient) ExchangeInfo(ctx context.Context) (*binance.ExchangeInfo, error) {
	return r.client.NewExchangeInfoService().Do(ctx)
}

func (r *restClient) PriceChangeStats(ctx context.Context, symbol string) ([]*binance.PriceChangeStats, error) {
	return r.client.NewListPriceChangeStatsService().Symbol(symbol).Do(ctx)
}

func (r *restClient) Klines(ctx context.Context, symbol, interval string, limit int, since *time.Time) ([]*binance.Kline, error) {
	req := r.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit)
	if since != nil {
		req.StartTime(since.UnixMilli())
	}
	return req.Do(ctx)
}

func (r *restClient) Depth(ctx context.Context, symbol string, limit int) (*binance.DepthResponse, error) {
	return r.client.NewDepthService().Symbol(symbol).Limit(limit).Do(ctx)
}

func (r *restClient) RecentTrades(ctx context.Context, symbol string, limit int) ([]*binance.Trade, error) {
	return r.client.NewRecentTradesService().Symbol(symbol).Limit(limit).Do(ctx)
}

func (r *restClient) Account(ctx context.Context) (*binance.Account, error) {
	return r.client.NewGetAccountService().Do(ctx)
}

func (r *restClient) CreateOrder(ctx context.Context, req orderParams) (*binance.CreateOrderResponse, error) {
	svc := r.client.NewCreateOrderService().
		Symbol(req.symbol).
		Side(req.side).
		Type(req.orderType).
		Quantity(req.quantity)
	if req.price != "" {
		svc.Price(req.price)
	}
	if req.timeInForce != "" {
		svc.TimeInForce(req.timeInForce)
	}
	return svc.Do(ctx)
}

func (r *restClient) CreateMarginOrder(ctx context.Context, req orderParams) (*binance.CreateOrderResponse, error) {
	svc := r.client.NewCreateMarginOrderService().
		Symbol(req.symbol).
		Side(req.side).
		Type(req.orderType).
		Quantity(req.quantity)
	if req.price != "" {
		svc.Price(req.price)
	}
	if req.timeInForce != "" {
		svc.TimeInForce(req.timeInForce)
	}
	return svc.Do(ctx)
}

func (r *restClient) CancelOrder(ctx context.Context, symbol string, orderID int64) error {
	_, err := r.client.NewCancelOrderService().Symbol(symbol).OrderID(orderID).Do(ctx)
	return err
}

func (r *restClient) OpenOrders(ctx context.Context, symbol string) ([]*binance.Order, error) {
	svc := r.client.NewListOpenOrdersService()
	if symbol != "" {
		svc.Symbol(symbol)
	}
	return svc.Do(ctx)
}

func (r *restClient) AllOrders(ctx context.Context, symbol string) ([]*binance.Order, error) {
	return r.client.NewListOrdersService().Symbol(symbol).Do(ctx)
}

func (r *restClient) MyTrades(ctx context.Context, symbol string, limit int) ([]*binance.TradeV3, error) {
	return r.client.NewListTradesService().Symbol(symbol).Limit(limit).Do(ctx)
}
