package bitmex

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
)

// satoshisPerXBT converts the XBt margin unit to whole bitcoin.
var satoshisPerXBT = decimal.NewFromInt(100_000_000)

// microUnitsPerUSDT converts the USDt margin unit to whole dollars.
var microUnitsPerUSDT = decimal.NewFromInt(1_000_000)

func dec(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parsing %q", n)
	}
	return d, nil
}

func sideFromNative(side string) interfaces.Side {
	if side == string(interfaces.SideSell) {
		return interfaces.SideSell
	}
	return interfaces.SideBuy
}

func toGlobalMarket(inst instrument) (interfaces.MarketInfo, error) {
	lotSize, err := dec(inst.LotSize)
	if err != nil {
		return interfaces.MarketInfo{}, err
	}
	tickSize, err := dec(inst.TickSize)
	if err != nil {
		return interfaces.MarketInfo{}, err
	}

	return interfaces.MarketInfo{
		Symbol:      inst.Symbol,
		Base:        inst.RootSymbol,
		Quote:       inst.QuoteCurrency,
		MinQuantity: lotSize,
		StepSize:    lotSize,
		TickSize:    tickSize,
		MinPrice:    tickSize,
		Active:      inst.State == "Open",
		Raw:         inst,
	}, nil
}

func toGlobalTicker(inst instrument) (*interfaces.Ticker, error) {
	ticker := &interfaces.Ticker{
		Symbol:    inst.Symbol,
		Timestamp: inst.Timestamp.UnixMilli(),
	}

	for _, f := range []struct {
		src json.Number
		dst *decimal.Decimal
	}{
		{inst.LastPrice, &ticker.Last},
		{inst.BidPrice, &ticker.Bid},
		{inst.AskPrice, &ticker.Ask},
		{inst.HighPrice, &ticker.High},
		{inst.LowPrice, &ticker.Low},
		{inst.Volume24h, &ticker.Volume},
	} {
		d, err := dec(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = d
	}
	return ticker, nil
}

// toGlobalCandle converts one bucket. The bucket timestamp marks the
// close boundary, so the open time is derived by subtracting the
// interval length.
func toGlobalCandle(symbol string, interval interfaces.Interval, bucket bucketedTrade) (interfaces.Candle, error) {
	closeTime := bucket.Timestamp.UnixMilli()

	candle := interfaces.Candle{
		Symbol:     symbol,
		OpenTime:   closeTime - interval.Milliseconds(),
		CloseTime:  closeTime,
		TradeCount: bucket.Trades,
	}

	for _, f := range []struct {
		src json.Number
		dst *decimal.Decimal
	}{
		{bucket.Open, &candle.Open},
		{bucket.High, &candle.High},
		{bucket.Low, &candle.Low},
		{bucket.Close, &candle.Close},
		{bucket.Volume, &candle.Volume},
	} {
		d, err := dec(f.src)
		if err != nil {
			return interfaces.Candle{}, err
		}
		*f.dst = d
	}
	return candle, nil
}

func toGlobalOrderBook(symbol string, levels []bookLevel) (*interfaces.OrderBook, error) {
	book := &interfaces.OrderBook{Symbol: symbol}

	for _, l := range levels {
		price, err := dec(l.Price)
		if err != nil {
			return nil, err
		}
		size, err := dec(l.Size)
		if err != nil {
			return nil, err
		}

		level := interfaces.PriceLevel{Price: price, Quantity: size}
		if sideFromNative(l.Side) == interfaces.SideBuy {
			book.Bids = append(book.Bids, level)
		} else {
			book.Asks = append(book.Asks, level)
		}
	}

	sort.Slice(book.Bids, func(i, j int) bool {
		return book.Bids[i].Price.GreaterThan(book.Bids[j].Price)
	})
	sort.Slice(book.Asks, func(i, j int) bool {
		return book.Asks[i].Price.LessThan(book.Asks[j].Price)
	})
	return book, nil
}

func toGlobalPublicTrade(t publicTrade) (interfaces.Trade, error) {
	price, err := dec(t.Price)
	if err != nil {
		return interfaces.Trade{}, err
	}
	size, err := dec(t.Size)
	if err != nil {
		return interfaces.Trade{}, err
	}

	return interfaces.Trade{
		ID:        t.TrdMatchID,
		Symbol:    t.Symbol,
		Side:      sideFromNative(t.Side),
		Price:     price,
		Quantity:  size,
		Timestamp: t.Timestamp.UnixMilli(),
	}, nil
}

// toGlobalBalances converts margin rows. BitMEX reports XBt in satoshis
// and USDt in millionths; both scale down to their whole-asset units.
func toGlobalBalances(rows []marginBalance) (interfaces.BalanceMap, error) {
	balances := make(interfaces.BalanceMap, len(rows))

	for _, r := range rows {
		wallet, err := dec(r.WalletBalance)
		if err != nil {
			return nil, err
		}
		available, err := dec(r.AvailableMargin)
		if err != nil {
			return nil, err
		}

		asset := strings.ToUpper(r.Currency)
		switch r.Currency {
		case "XBt":
			asset = "XBT"
			wallet = wallet.Div(satoshisPerXBT)
			available = available.Div(satoshisPerXBT)
		case "USDt":
			asset = "USDT"
			wallet = wallet.Div(microUnitsPerUSDT)
			available = available.Div(microUnitsPerUSDT)
		}

		locked := wallet.Sub(available)
		if locked.IsNegative() {
			locked = decimal.Zero
		}
		balances[asset] = interfaces.Balance{
			Asset:  asset,
			Free:   available,
			Locked: locked,
		}
	}
	return balances, nil
}

func toGlobalOrder(o nativeOrder) (interfaces.Order, error) {
	quantity, err := dec(o.OrderQty)
	if err != nil {
		return interfaces.Order{}, err
	}
	executed, err := dec(o.CumQty)
	if err != nil {
		return interfaces.Order{}, err
	}
	price, err := dec(o.Price)
	if err != nil {
		return interfaces.Order{}, err
	}

	return interfaces.Order{
		ID:               o.OrderID,
		Symbol:           o.Symbol,
		Side:             sideFromNative(o.Side),
		Type:             toGlobalOrderType(o.OrdType),
		Quantity:         quantity,
		ExecutedQuantity: executed,
		Price:            price,
		Status:           toGlobalOrderStatus(o.OrdStatus),
		TimeInForce:      interfaces.TimeInForceGTC,
		CreatedAt:        o.Timestamp,
		Raw:              o,
	}, nil
}

func toGlobalOrderType(native string) interfaces.OrderType {
	if native == "Market" {
		return interfaces.OrderTypeMarket
	}
	return interfaces.OrderTypeLimit
}

func toGlobalOrderStatus(native string) interfaces.OrderStatus {
	switch native {
	case "New", "PendingNew":
		return interfaces.OrderStatusNew
	case "PartiallyFilled":
		return interfaces.OrderStatusPartiallyFilled
	case "Filled":
		return interfaces.OrderStatusFilled
	case "Canceled", "PendingCancel", "Expired":
		return interfaces.OrderStatusCanceled
	case "Rejected":
		return interfaces.OrderStatusRejected
	default:
		return interfaces.OrderStatusNew
	}
}

func toGlobalExecution(e execution) (interfaces.Trade, error) {
	price, err := dec(e.LastPx)
	if err != nil {
		return interfaces.Trade{}, err
	}
	quantity, err := dec(e.LastQty)
	if err != nil {
		return interfaces.Trade{}, err
	}

	return interfaces.Trade{
		ID:        e.ExecID,
		OrderID:   e.OrderID,
		Symbol:    e.Symbol,
		Side:      sideFromNative(e.Side),
		Price:     price,
		Quantity:  quantity,
		Timestamp: e.Timestamp.UnixMilli(),
	}, nil
}
