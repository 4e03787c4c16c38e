package interfaces

import (
	"context"
	"time"

	"github.com/avast/retry-go"
)

// FetchOpenBuyOrders returns the adapter's open orders filtered to the buy
// side. The filter lives here, in the canonical layer, so every exchange
// shares identical semantics; adapters never reimplement it. The result
// preserves the order of FetchOpenOrders.
func FetchOpenBuyOrders(ctx context.Context, adapter ExchangeAdapter, symbol string) ([]Order, error) {
	return fetchOpenOrdersBySide(ctx, adapter, symbol, SideBuy)
}

// FetchOpenSellOrders returns the adapter's open orders filtered to the
// sell side, order-preserving relative to FetchOpenOrders.
func FetchOpenSellOrders(ctx context.Context, adapter ExchangeAdapter, symbol string) ([]Order, error) {
	return fetchOpenOrdersBySide(ctx, adapter, symbol, SideSell)
}

func fetchOpenOrdersBySide(ctx context.Context, adapter ExchangeAdapter, symbol string, side Side) ([]Order, error) {
	orders, err := adapter.FetchOpenOrders(ctx, symbol)
	if err != nil {
		return nil, err
	}

	filtered := make([]Order, 0, len(orders))
	for _, o := range orders {
		if o.Side == side {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

// ClampLimit bounds a requested result count to an exchange's documented
// maximum. Zero and negative requests fall back to the exchange default.
func ClampLimit(requested, def, max int) int {
	if requested <= 0 {
		return def
	}
	if requested > max {
		return max
	}
	return requested
}

// CallWithDeadline runs fn off the caller's path and waits for it or for
// the context, whichever finishes first. It unifies blocking native clients
// with asynchronous ones behind a single awaited contract: when the
// deadline expires the native call keeps running in its goroutine but the
// caller gets a timeout error immediately, and any exchange-side effect of
// the abandoned call is not rolled back.
func CallWithDeadline[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{value: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		if tErr := ClassifyTransportError(ctx.Err()); tErr != nil {
			return zero, tErr
		}
		return zero, NewNetworkError("operation aborted", ctx.Err())
	}
}

// RetryRead runs a read-only operation with a bounded number of attempts.
// Only throttling and transport failures are retried; terminal kinds
// (authentication, invalid parameter, rejection) return immediately. Order
// placement must never go through this wrapper, since a retried CreateOrder
// can submit twice.
func RetryRead[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var value T

	err := retry.Do(
		func() error {
			v, err := fn()
			if err != nil {
				return err
			}
			value = v
			return nil
		},
		retry.Attempts(3),
		retry.Delay(200*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(IsRetriable),
	)

	return value, err
}
