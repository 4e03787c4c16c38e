// Package registry resolves configured exchange identifiers to constructed
// adapter instances and owns their lifecycle: construction with credentials,
// per-instance rate limiter wiring and shutdown.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/veiloq/exchange-adapters/pkg/exchanges/interfaces"
)

// Constructor builds an adapter from options. Construction must be cheap:
// it establishes the native client handle but performs no network
// round-trip merely to validate credentials.
type Constructor func(*interfaces.Options) (interfaces.ExchangeAdapter, error)

// Registry maps exchange identifiers to adapter constructors and caches the
// instances it builds. The instance cache is the only process-wide shared
// structure of this layer and is read-mostly after startup.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
	instances    map[string]interfaces.ExchangeAdapter
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		constructors: make(map[string]Constructor),
		instances:    make(map[string]interfaces.ExchangeAdapter),
	}
}

// Register installs a constructor under the given exchange identifier,
// replacing any previous registration.
func (r *Registry) Register(exchangeID string, constructor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[exchangeID] = constructor
}

// Get returns the adapter for the identifier, constructing it on first use
// and returning the cached instance afterwards. Unknown identifiers fail
// with an InvalidParameterError; malformed credentials fail with an
// AuthenticationError from the constructor.
func (r *Registry) Get(exchangeID string, options *interfaces.Options) (interfaces.ExchangeAdapter, error) {
	r.mu.RLock()
	if adapter, ok := r.instances[exchangeID]; ok {
		r.mu.RUnlock()
		return adapter, nil
	}
	constructor, ok := r.constructors[exchangeID]
	r.mu.RUnlock()

	if !ok {
		return nil, interfaces.NewInvalidParameterError(fmt.Sprintf(
			"unsupported exchange %q, supported: %v", exchangeID, r.Supported()))
	}

	if options == nil {
		options = interfaces.NewOptions()
	}
	if err := options.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have constructed the adapter while the lock was
	// released.
	if adapter, ok := r.instances[exchangeID]; ok {
		return adapter, nil
	}

	adapter, err := constructor(options)
	if err != nil {
		return nil, err
	}

	r.instances[exchangeID] = adapter
	return adapter, nil
}

// Supported lists the registered exchange identifiers, sorted.
func (r *Registry) Supported() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.constructors))
	for id := range r.constructors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CloseAll shuts down every constructed adapter and drops the instance
// cache. The first close failure is reported; shutdown continues past it.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for id, adapter := range r.instances {
		if err := adapter.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing %s adapter: %w", id, err)
		}
		delete(r.instances, id)
	}
	return firstErr
}
