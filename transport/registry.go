package transport

import (
	"strings"
	"sync"

	"github.com/eventmux-dispatch/dispatchkit/core"
)

// Registry is the §4.8 transport registry: a name -> Registration map plus
// an optional default transport name. Names compare case-insensitively but
// are stored as provided, mirroring broker/registry.go's single
// sync.RWMutex-guarded map generalized to carry richer records and a
// default pointer.
type Registry struct {
	mu            sync.RWMutex
	byLowerName   map[string]*Registration
	defaultLower  string
	hasDefault    bool
}

// NewRegistry constructs an empty transport registry.
func NewRegistry() *Registry {
	return &Registry{byLowerName: make(map[string]*Registration)}
}

// RegisterTransport inserts a new registration. Duplicate names (compared
// case-insensitively) fail with Duplicate (§4.8).
func (r *Registry) RegisterTransport(name string, adapter Adapter, transportType Type, options map[string]any) error {
	if name == "" || adapter == nil {
		return core.NewError(core.InvalidArgument, "eventmux: transport name and adapter are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	lower := strings.ToLower(name)
	if _, exists := r.byLowerName[lower]; exists {
		return core.NewError(core.Duplicate, "eventmux: transport "+name+" already registered")
	}
	r.byLowerName[lower] = &Registration{
		Name:          name,
		Adapter:       adapter,
		TransportType: transportType,
		Options:       options,
	}
	return nil
}

// RemoveTransport deletes a registration by name. If it was the default,
// the default is cleared. A missing name is a silent no-op, matching the
// registry's round-trip testable property (§8): register then remove
// restores the original state.
func (r *Registry) RemoveTransport(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lower := strings.ToLower(name)
	delete(r.byLowerName, lower)
	if r.hasDefault && r.defaultLower == lower {
		r.hasDefault = false
		r.defaultLower = ""
	}
}

// SetDefaultTransport designates an already-registered transport as the
// default. Fails with NotFound if name isn't registered (§4.8).
func (r *Registry) SetDefaultTransport(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lower := strings.ToLower(name)
	if _, ok := r.byLowerName[lower]; !ok {
		return core.NewError(core.NotFound, "eventmux: transport "+name+" is not registered")
	}
	r.defaultLower = lower
	r.hasDefault = true
	return nil
}

// HasDefaultTransport reports whether a default has been set.
func (r *Registry) HasDefaultTransport() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.hasDefault
}

// DefaultTransportName returns the default transport's registered name (as
// originally cased) and whether one is set.
func (r *Registry) DefaultTransportName() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.hasDefault {
		return "", false
	}
	return r.byLowerName[r.defaultLower].Name, true
}

// GetDefaultTransportAdapter returns the default adapter, or nil if none.
func (r *Registry) GetDefaultTransportAdapter() Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.hasDefault {
		return nil
	}
	if reg, ok := r.byLowerName[r.defaultLower]; ok {
		return reg.Adapter
	}
	return nil
}

// GetDefaultTransportRegistration returns the default registration, or nil.
func (r *Registry) GetDefaultTransportRegistration() *Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.hasDefault {
		return nil
	}
	return r.byLowerName[r.defaultLower]
}

// GetTransportAdapter returns the named adapter, or nil if unregistered.
func (r *Registry) GetTransportAdapter(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if reg, ok := r.byLowerName[strings.ToLower(name)]; ok {
		return reg.Adapter
	}
	return nil
}

// GetTransportRegistration returns the named registration, or nil.
func (r *Registry) GetTransportRegistration(name string) *Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byLowerName[strings.ToLower(name)]
}

// GetTransportNames enumerates registered names, as originally cased.
func (r *Registry) GetTransportNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byLowerName))
	for _, reg := range r.byLowerName {
		out = append(out, reg.Name)
	}
	return out
}

// GetAllTransports enumerates every registration.
func (r *Registry) GetAllTransports() []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Registration, 0, len(r.byLowerName))
	for _, reg := range r.byLowerName {
		out = append(out, reg)
	}
	return out
}

// Count returns the number of registered transports.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byLowerName)
}

// Dispose disposes every adapter that implements Disposer and clears the
// registry. The registry exclusively owns its adapters (§3 "Ownership").
func (r *Registry) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.byLowerName {
		if d, ok := reg.Adapter.(Disposer); ok {
			_ = d.Dispose()
		}
	}
	r.byLowerName = make(map[string]*Registration)
	r.hasDefault = false
	r.defaultLower = ""
}
