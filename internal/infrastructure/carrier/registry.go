package carrier

import (
	"sync"

	"github.com/oms/backend/internal/domain/carrier"
)

// RegistryImpl is the in-process carrier adapter registry
type RegistryImpl struct {
	mu       sync.RWMutex
	adapters map[carrier.Code]carrier.Adapter
}

// NewRegistry creates an empty carrier registry
func NewRegistry() *RegistryImpl {
	return &RegistryImpl{adapters: make(map[carrier.Code]carrier.Adapter)}
}

// Register adds an adapter under its carrier code
func (r *RegistryImpl) Register(adapter carrier.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Code()] = adapter
}

// Resolve returns the adapter for the given carrier code
func (r *RegistryImpl) Resolve(code carrier.Code) (carrier.Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[code]
	if !ok {
		return nil, carrier.ErrCarrierNotSupported
	}
	return adapter, nil
}

// List returns all registered adapters
func (r *RegistryImpl) List() []carrier.Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapters := make([]carrier.Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		adapters = append(adapters, a)
	}
	return adapters
}

// Ensure RegistryImpl implements the carrier Registry port
var _ carrier.Registry = (*RegistryImpl)(nil)
