package binance

import (
	"sort"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
)

// decParser converts string-encoded decimals, remembering the first parse
// failure so call sites stay flat.
type decParser struct {
	err error
}

func (p *decParser) parse(s string) decimal.Decimal {
	if p.err != nil || s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		p.err = err
		return decimal.Zero
	}
	return d
}

func toGlobalCandles(symbol string, interval interfaces.Interval, klines []*binance.Kline) ([]interfaces.Candle, error) {
	candles := make([]interfaces.Candle, 0, len(klines))
	for _, k := range klines {
		var p decParser
		candle := interfaces.Candle{
			Symbol:      symbol,
			OpenTime:    k.OpenTime,
			CloseTime:   k.CloseTime,
			Open:        p.parse(k.Open),
			High:        p.parse(k.High),
			Low:         p.parse(k.Low),
			Close:       p.parse(k.Close),
			Volume:      p.parse(k.Volume),
			QuoteVolume: p.parse(k.QuoteAssetVolume),
			TradeCount:  k.TradeNum,
		}
		if p.err != nil {
			return nil, interfaces.NewUnknownError(p.err)
		}
		candles = append(candles, candle)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime < candles[j].OpenTime
	})
	return candles, nil
}

func toGlobalTicker(stats *binance.PriceChangeStats) (*interfaces.Ticker, error) {
	var p decParser
	ticker := &interfaces.Ticker{
		Symbol:    stats.Symbol,
		Last:      p.parse(stats.LastPrice),
		Bid:       p.parse(stats.BidPrice),
		Ask:       p.parse(stats.AskPrice),
		High:      p.parse(stats.HighPrice),
		Low:       p.parse(stats.LowPrice),
		Volume:    p.parse(stats.Volume),
		Timestamp: stats.CloseTime,
	}
	if p.err != nil {
		return nil, interfaces.NewUnknownError(p.err)
	}
	return ticker, nil
}

func toGlobalMarket(symbol binance.Symbol) (interfaces.MarketInfo, error) {
	var p decParser
	market := interfaces.MarketInfo{
		Symbol: symbol.Symbol,
		Base:   symbol.BaseAsset,
		Quote:  symbol.QuoteAsset,
		Active: symbol.Status == "TRADING",
		Raw:    symbol,
	}

	if f := symbol.LotSizeFilter(); f != nil {
		market.MinQuantity = p.parse(f.MinQuantity)
		market.StepSize = p.parse(f.StepSize)
	}
	if f := symbol.PriceFilter(); f != nil {
		market.MinPrice = p.parse(f.MinPrice)
		market.TickSize = p.parse(f.TickSize)
	}
	if f := symbol.NotionalFilter(); f != nil {
		market.MinNotional = p.parse(f.MinNotional)
	}

	if p.err != nil {
		return interfaces.MarketInfo{}, interfaces.NewUnknownError(p.err)
	}
	return market, nil
}

func toGlobalOrderBook(symbol string, depth *binance.DepthResponse) (*interfaces.OrderBook, error) {
	book := &interfaces.OrderBook{Symbol: symbol}

	var p decParser
	for _, b := range depth.Bids {
		book.Bids = append(book.Bids, interfaces.PriceLevel{
			Price:    p.parse(b.Price),
			Quantity: p.parse(b.Quantity),
		})
	}
	for _, a := range depth.Asks {
		book.Asks = append(book.Asks, interfaces.PriceLevel{
			Price:    p.parse(a.Price),
			Quantity: p.parse(a.Quantity),
		})
	}
	if p.err != nil {
		return nil, interfaces.NewUnknownError(p.err)
	}
	return book, nil
}

func toGlobalPublicTrades(symbol string, trades []*binance.Trade) ([]interfaces.Trade, error) {
	out := make([]interfaces.Trade, 0, len(trades))
	for _, t := range trades {
		var p decParser
		// A buyer-maker trade means the aggressor sold into the book.
		side := interfaces.SideBuy
		if t.IsBuyerMaker {
			side = interfaces.SideSell
		}
		trade := interfaces.Trade{
			ID:        strconv.FormatInt(t.ID, 10),
			Symbol:    symbol,
			Side:      side,
			Price:     p.parse(t.Price),
			Quantity:  p.parse(t.Quantity),
			Timestamp: t.Time,
		}
		if p.err != nil {
			return nil, interfaces.NewUnknownError(p.err)
		}
		out = append(out, trade)
	}
	return out, nil
}

func toGlobalMyTrades(trades []*binance.TradeV3) ([]interfaces.Trade, error) {
	out := make([]interfaces.Trade, 0, len(trades))
	for _, t := range trades {
		var p decParser
		side := interfaces.SideSell
		if t.IsBuyer {
			side = interfaces.SideBuy
		}
		trade := interfaces.Trade{
			ID:        strconv.FormatInt(t.ID, 10),
			OrderID:   strconv.FormatInt(t.OrderID, 10),
			Symbol:    t.Symbol,
			Side:      side,
			Price:     p.parse(t.Price),
			Quantity:  p.parse(t.Quantity),
			Timestamp: t.Time,
		}
		if p.err != nil {
			return nil, interfaces.NewUnknownError(p.err)
		}
		out = append(out, trade)
	}
	return out, nil
}

func toGlobalBalances(account *binance.Account) (interfaces.BalanceMap, error) {
	balances := make(interfaces.BalanceMap, len(account.Balances))
	for _, b := range account.Balances {
		var p decParser
		balance := interfaces.Balance{
			Asset:  b.Asset,
			Free:   p.parse(b.Free),
			Locked: p.parse(b.Locked),
		}
		if p.err != nil {
			return nil, interfaces.NewUnknownError(p.err)
		}
		balances[b.Asset] = balance
	}
	return balances, nil
}

func toGlobalOrders(orders []*binance.Order) ([]interfaces.Order, error) {
	out := make([]interfaces.Order, 0, len(orders))
	for _, o := range orders {
		order, err := toGlobalOrder(o)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, nil
}

func toGlobalOrder(o *binance.Order) (interfaces.Order, error) {
	var p decParser
	order := interfaces.Order{
		ID:               strconv.FormatInt(o.OrderID, 10),
		Symbol:           o.Symbol,
		Side:             toGlobalSide(o.Side),
		Type:             toGlobalOrderType(o.Type),
		Quantity:         p.parse(o.OrigQuantity),
		ExecutedQuantity: p.parse(o.ExecutedQuantity),
		Price:            p.parse(o.Price),
		Status:           toGlobalOrderStatus(o.Status),
		TimeInForce:      interfaces.TimeInForceGTC,
		CreatedAt:        time.UnixMilli(o.Time),
		Raw:              o,
	}
	if p.err != nil {
		return interfaces.Order{}, interfaces.NewUnknownError(p.err)
	}
	return order, nil
}

func toGlobalSide(side binance.SideType) interfaces.Side {
	if side == binance.SideTypeSell {
		return interfaces.SideSell
	}
	return interfaces.SideBuy
}

func toGlobalOrderType(t binance.OrderType) interfaces.OrderType {
	if t == binance.OrderTypeMarket {
		return interfaces.OrderTypeMarket
	}
	return interfaces.OrderTypeLimit
}

func toGlobalOrderStatus(status binance.OrderStatusType) interfaces.OrderStatus {
	switch status {
	case binance.OrderStatusTypeNew:
		return interfaces.OrderStatusNew
	case binance.OrderStatusTypePartiallyFilled:
		return interfaces.OrderStatusPartiallyFilled
	case binance.OrderStatusTypeFilled:
		return interfaces.OrderStatusFilled
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypePendingCancel, binance.OrderStatusTypeExpired:
		return interfaces.OrderStatusCanceled
	case binance.OrderStatusTypeRejected:
		return interfaces.OrderStatusRejected
	default:
		return interfaces.OrderStatusNew
	}
}

func toLocalSide(side interfaces.Side) binance.SideType {
	if side == interfaces.SideSell {
		return binance.SideTypeSell
	}
	return binance.SideTypeBuy
}

func toLocalOrderType(t interfaces.OrderType) binance.OrderType {
	if t == interfaces.OrderTypeMarket {
		return binance.OrderTypeMarket
	}
	return binance.OrderTypeLimit
}
