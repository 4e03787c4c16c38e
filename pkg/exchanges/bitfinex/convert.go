package bitfinex

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
)

// row wraps one positional v2 array with typed accessors. Bitfinex rows
// mix numbers, strings and null placeholders, so every access is
// index-checked.
type row []json.RawMessage

var nullLiteral = []byte("null")

func (r row) isNull(i int) bool {
	return i >= len(r) || bytes.Equal(bytes.TrimSpace(r[i]), nullLiteral)
}

func (r row) int64(i int) (int64, error) {
	if i >= len(r) {
		return 0, errors.Errorf("row index %d out of range (%d fields)", i, len(r))
	}
	var v int64
	if err := json.Unmarshal(r[i], &v); err != nil {
		return 0, errors.Wrapf(err, "row field %d", i)
	}
	return v, nil
}

func (r row) string(i int) (string, error) {
	if i >= len(r) {
		return "", errors.Errorf("row index %d out of range (%d fields)", i, len(r))
	}
	var v string
	if err := json.Unmarshal(r[i], &v); err != nil {
		return "", errors.Wrapf(err, "row field %d", i)
	}
	return v, nil
}

// decimal decodes through json.Number so exponent notation survives
// without a float64 round trip.
func (r row) decimal(i int) (decimal.Decimal, error) {
	if i >= len(r) {
		return decimal.Zero, errors.Errorf("row index %d out of range (%d fields)", i, len(r))
	}
	var n json.Number
	if err := json.Unmarshal(r[i], &n); err != nil {
		return decimal.Zero, errors.Wrapf(err, "row field %d", i)
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "row field %d", i)
	}
	return d, nil
}

// nativeSymbol renders a canonical pair in Bitfinex's trading notation:
// uppercase with a "t" prefix ("BTCUSD" -> "tBTCUSD").
func nativeSymbol(symbol string) string {
	upper := strings.ToUpper(symbol)
	if strings.HasPrefix(symbol, "t") && len(symbol) > 1 {
		return "t" + upper[1:]
	}
	return "t" + upper
}

// canonicalSymbol strips the notation prefix again for outbound models.
func canonicalSymbol(native string) string {
	return strings.TrimPrefix(native, "t")
}

// toGlobalCandle decodes [MTS, OPEN, CLOSE, HIGH, LOW, VOLUME]. Bitfinex
// reports only the open timestamp; the close time is derived from the
// interval length.
func toGlobalCandle(symbol string, interval interfaces.Interval, r row) (interfaces.Candle, error) {
	if len(r) < 6 {
		return interfaces.Candle{}, errors.Errorf("candle row has %d fields, want 6", len(r))
	}

	mts, err := r.int64(0)
	if err != nil {
		return interfaces.Candle{}, err
	}

	fields := make([]decimal.Decimal, 5)
	for i := range fields {
		if fields[i], err = r.decimal(i + 1); err != nil {
			return interfaces.Candle{}, err
		}
	}

	return interfaces.Candle{
		Symbol:    symbol,
		OpenTime:  mts,
		CloseTime: mts + interval.Milliseconds() - 1,
		Open:      fields[0],
		Close:     fields[1],
		High:      fields[2],
		Low:       fields[3],
		Volume:    fields[4],
	}, nil
}

// toGlobalTicker decodes [BID, BID_SIZE, ASK, ASK_SIZE, DAILY_CHANGE,
// DAILY_CHANGE_RELATIVE, LAST_PRICE, VOLUME, HIGH, LOW].
func toGlobalTicker(symbol string, r row) (*interfaces.Ticker, error) {
	if len(r) < 10 {
		return nil, errors.Errorf("ticker row has %d fields, want 10", len(r))
	}

	read := func(i int, dst *decimal.Decimal) error {
		d, err := r.decimal(i)
		if err != nil {
			return err
		}
		*dst = d
		return nil
	}

	ticker := &interfaces.Ticker{
		Symbol:    symbol,
		Timestamp: time.Now().UnixMilli(),
	}
	for _, f := range []struct {
		index int
		dst   *decimal.Decimal
	}{
		{0, &ticker.Bid},
		{2, &ticker.Ask},
		{6, &ticker.Last},
		{7, &ticker.Volume},
		{8, &ticker.High},
		{9, &ticker.Low},
	} {
		if err := read(f.index, f.dst); err != nil {
			return nil, err
		}
	}
	return ticker, nil
}

// toGlobalOrderBook decodes P0 book rows [PRICE, COUNT, AMOUNT]. A
// positive amount is a bid, a negative one an ask; the exchange already
// orders both sides best-first.
func toGlobalOrderBook(symbol string, rows [][]json.RawMessage) (*interfaces.OrderBook, error) {
	book := &interfaces.OrderBook{Symbol: symbol}

	for _, raw := range rows {
		r := row(raw)
		if len(r) < 3 {
			return nil, errors.Errorf("book row has %d fields, want 3", len(r))
		}
		price, err := r.decimal(0)
		if err != nil {
			return nil, err
		}
		amount, err := r.decimal(2)
		if err != nil {
			return nil, err
		}

		level := interfaces.PriceLevel{Price: price, Quantity: amount.Abs()}
		if amount.IsPositive() {
			book.Bids = append(book.Bids, level)
		} else {
			book.Asks = append(book.Asks, level)
		}
	}
	return book, nil
}

// toGlobalPublicTrade decodes [ID, MTS, AMOUNT, PRICE]. The amount sign
// carries the taker side.
func toGlobalPublicTrade(symbol string, r row) (interfaces.Trade, error) {
	if len(r) < 4 {
		return interfaces.Trade{}, errors.Errorf("trade row has %d fields, want 4", len(r))
	}

	id, err := r.int64(0)
	if err != nil {
		return interfaces.Trade{}, err
	}
	mts, err := r.int64(1)
	if err != nil {
		return interfaces.Trade{}, err
	}
	amount, err := r.decimal(2)
	if err != nil {
		return interfaces.Trade{}, err
	}
	price, err := r.decimal(3)
	if err != nil {
		return interfaces.Trade{}, err
	}

	side := interfaces.SideBuy
	if amount.IsNegative() {
		side = interfaces.SideSell
	}
	return interfaces.Trade{
		ID:        strconv.FormatInt(id, 10),
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		Quantity:  amount.Abs(),
		Timestamp: mts,
	}, nil
}

// toGlobalBalances decodes wallet rows [WALLET_TYPE, CURRENCY, BALANCE,
// UNSETTLED_INTEREST, AVAILABLE_BALANCE]. Only exchange wallets map to
// spot balances; the available field is null until the exchange has
// computed it, in which case the full balance counts as free.
func toGlobalBalances(rows [][]json.RawMessage) (interfaces.BalanceMap, error) {
	balances := make(interfaces.BalanceMap)

	for _, raw := range rows {
		r := row(raw)
		if len(r) < 5 {
			return nil, errors.Errorf("wallet row has %d fields, want 5", len(r))
		}
		walletType, err := r.string(0)
		if err != nil {
			return nil, err
		}
		if walletType != "exchange" {
			continue
		}

		currency, err := r.string(1)
		if err != nil {
			return nil, err
		}
		balance, err := r.decimal(2)
		if err != nil {
			return nil, err
		}

		available := balance
		if !r.isNull(4) {
			if available, err = r.decimal(4); err != nil {
				return nil, err
			}
		}

		asset := strings.ToUpper(currency)
		balances[asset] = interfaces.Balance{
			Asset:  asset,
			Free:   available,
			Locked: balance.Sub(available),
		}
	}
	return balances, nil
}

// Order row indices (v2 order arrays).
const (
	orderFieldID         = 0
	orderFieldSymbol     = 3
	orderFieldMTSCreate  = 4
	orderFieldAmount     = 6
	orderFieldAmountOrig = 7
	orderFieldType       = 8
	orderFieldStatus     = 13
	orderFieldPrice      = 16
)

func toGlobalOrder(r row) (interfaces.Order, error) {
	if len(r) < 17 {
		return interfaces.Order{}, errors.Errorf("order row has %d fields, want 17", len(r))
	}

	id, err := r.int64(orderFieldID)
	if err != nil {
		return interfaces.Order{}, err
	}
	symbol, err := r.string(orderFieldSymbol)
	if err != nil {
		return interfaces.Order{}, err
	}
	created, err := r.int64(orderFieldMTSCreate)
	if err != nil {
		return interfaces.Order{}, err
	}
	remaining, err := r.decimal(orderFieldAmount)
	if err != nil {
		return interfaces.Order{}, err
	}
	original, err := r.decimal(orderFieldAmountOrig)
	if err != nil {
		return interfaces.Order{}, err
	}
	orderType, err := r.string(orderFieldType)
	if err != nil {
		return interfaces.Order{}, err
	}
	status, err := r.string(orderFieldStatus)
	if err != nil {
		return interfaces.Order{}, err
	}
	price, err := r.decimal(orderFieldPrice)
	if err != nil {
		return interfaces.Order{}, err
	}

	side := interfaces.SideBuy
	if original.IsNegative() {
		side = interfaces.SideSell
	}

	return interfaces.Order{
		ID:               strconv.FormatInt(id, 10),
		Symbol:           canonicalSymbol(symbol),
		Side:             side,
		Type:             toGlobalOrderType(orderType),
		Quantity:         original.Abs(),
		ExecutedQuantity: original.Abs().Sub(remaining.Abs()),
		Price:            price,
		Status:           toGlobalOrderStatus(status),
		TimeInForce:      interfaces.TimeInForceGTC,
		CreatedAt:        time.UnixMilli(created),
	}, nil
}

func toGlobalOrderType(native string) interfaces.OrderType {
	if strings.Contains(strings.ToUpper(native), "MARKET") {
		return interfaces.OrderTypeMarket
	}
	return interfaces.OrderTypeLimit
}

// toGlobalOrderStatus maps the free-text status field. Executed and
// cancelled statuses carry trailing detail ("EXECUTED @ 50000.0(0.01)"),
// so matching is by prefix.
func toGlobalOrderStatus(native string) interfaces.OrderStatus {
	upper := strings.ToUpper(native)
	switch {
	case strings.HasPrefix(upper, "EXECUTED"):
		return interfaces.OrderStatusFilled
	case strings.Contains(upper, "PARTIALLY FILLED"):
		return interfaces.OrderStatusPartiallyFilled
	case strings.Contains(upper, "CANCELED"):
		return interfaces.OrderStatusCanceled
	case strings.HasPrefix(upper, "RSN_"):
		return interfaces.OrderStatusRejected
	default:
		return interfaces.OrderStatusNew
	}
}

// toGlobalMyTrade decodes [ID, PAIR, MTS_CREATE, ORDER_ID, EXEC_AMOUNT,
// EXEC_PRICE, ...].
func toGlobalMyTrade(r row) (interfaces.Trade, error) {
	if len(r) < 6 {
		return interfaces.Trade{}, errors.Errorf("trade row has %d fields, want 6", len(r))
	}

	id, err := r.int64(0)
	if err != nil {
		return interfaces.Trade{}, err
	}
	pair, err := r.string(1)
	if err != nil {
		return interfaces.Trade{}, err
	}
	mts, err := r.int64(2)
	if err != nil {
		return interfaces.Trade{}, err
	}
	orderID, err := r.int64(3)
	if err != nil {
		return interfaces.Trade{}, err
	}
	amount, err := r.decimal(4)
	if err != nil {
		return interfaces.Trade{}, err
	}
	price, err := r.decimal(5)
	if err != nil {
		return interfaces.Trade{}, err
	}

	side := interfaces.SideBuy
	if amount.IsNegative() {
		side = interfaces.SideSell
	}
	return interfaces.Trade{
		ID:        strconv.FormatInt(id, 10),
		OrderID:   strconv.FormatInt(orderID, 10),
		Symbol:    canonicalSymbol(pair),
		Side:      side,
		Price:     price,
		Quantity:  amount.Abs(),
		Timestamp: mts,
	}, nil
}

func toGlobalMarket(detail symbolDetail) (interfaces.MarketInfo, error) {
	market := interfaces.MarketInfo{
		Symbol: strings.ToUpper(detail.Pair),
		Active: true,
		Raw:    detail,
	}

	// v1 pairs are six-letter base/quote concatenations, longer names use
	// a colon separator ("dusk:usd").
	pair := strings.ToUpper(detail.Pair)
	if base, quote, found := strings.Cut(pair, ":"); found {
		market.Base, market.Quote = base, quote
	} else if len(pair) == 6 {
		market.Base, market.Quote = pair[:3], pair[3:]
	}

	if detail.MinimumOrderSize != "" {
		min, err := decimal.NewFromString(detail.MinimumOrderSize)
		if err != nil {
			return interfaces.MarketInfo{}, errors.Wrap(err, "minimum order size")
		}
		market.MinQuantity = min
	}
	if detail.PricePrecision > 0 {
		market.TickSize = decimal.New(1, int32(-detail.PricePrecision))
	}
	return market, nil
}
