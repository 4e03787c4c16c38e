package registry

import (
	"github.com/veiloq/exchange-adapters/pkg/exchanges/binance"
	"github.com/veiloq/exchange-adapters/pkg/exchanges/bitfinex"
	"github.com/veiloq/exchange-adapters/pkg/exchanges/bitmex"
	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
)

// NewDefault returns a registry with every built-in adapter registered.
func NewDefault() *Registry {
	r := New()
	r.Register("binance", func(options *interfaces.Options) (interfaces.ExchangeAdapter, error) {
		return binance.New(options)
	})
	r.Register("bitfinex", func(options *interfaces.Options) (interfaces.ExchangeAdapter, error) {
		return bitfinex.New(options)
	})
	r.Register("bitmex", func(options *interfaces.Options) (interfaces.ExchangeAdapter, error) {
		return bitmex.New(options)
	})
	return r
}
