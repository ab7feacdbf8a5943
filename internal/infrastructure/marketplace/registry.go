package marketplace

import (
	"sync"

	"github.com/oms/backend/internal/domain/marketplace"
)

// RegistryImpl is the in-process marketplace adapter registry
type RegistryImpl struct {
	mu       sync.RWMutex
	adapters map[marketplace.Code]marketplace.Adapter
}

// NewRegistry creates an empty marketplace registry
func NewRegistry() *RegistryImpl {
	return &RegistryImpl{adapters: make(map[marketplace.Code]marketplace.Adapter)}
}

// Register adds an adapter under its marketplace code
func (r *RegistryImpl) Register(adapter marketplace.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Code()] = adapter
}

// Resolve returns the adapter for the given marketplace code
func (r *RegistryImpl) Resolve(code marketplace.Code) (marketplace.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[code]
	if !ok {
		return nil, marketplace.ErrMarketplaceNotSupported
	}
	return adapter, nil
}

// List returns all registered adapters
func (r *RegistryImpl) List() []marketplace.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapters := make([]marketplace.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		adapters = append(adapters, a)
	}
	return adapters
}

// Ensure RegistryImpl implements the marketplace Registry port
var _ marketplace.Registry = (*RegistryImpl)(nil)
