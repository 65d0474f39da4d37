package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/device-core/internal/device"
	"github.com/nerrad567/device-core/internal/subsystem"
)

var (
	// ErrNotFound is returned when no handler is registered for a domain.
	ErrNotFound = errors.New("integration: not found")

	// ErrDuplicateDomain is returned when registering a second handler
	// for the same domain.
	ErrDuplicateDomain = errors.New("integration: domain already registered")
)

// Handler is the base interface every integration provides.
type Handler interface {
	// Domain returns the integration domain this handler serves, e.g. "hue".
	Domain() string
}

// DeviceRemover is the optional capability an integration implements to
// participate in coordinated device removal. The handler is asked to
// confirm before the registry severs the device's association with one
// of the integration's config entries.
//
// Returning (false, nil) vetoes the removal. Returning a non-nil error
// means the handler could not decide; the coordinator surfaces that as
// a failure, not a veto.
type DeviceRemover interface {
	RemoveConfigEntryDevice(ctx context.Context, entry *subsystem.ConfigEntry, dev *device.DeviceEntry) (bool, error)
}

// Registry maps integration domains to their handlers.
// Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler under its own domain.
func (r *Registry) Register(h Handler) error {
	if h == nil || h.Domain() == "" {
		return fmt.Errorf("integration: handler must name a domain")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[h.Domain()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDomain, h.Domain())
	}
	r.handlers[h.Domain()] = h
	return nil
}

// Resolve returns the handler for a domain.
func (r *Registry) Resolve(domain string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[domain]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, domain)
	}
	return h, nil
}

// Domains returns the registered domains. Order is unspecified.
func (r *Registry) Domains() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	domains := make([]string, 0, len(r.handlers))
	for d := range r.handlers {
		domains = append(domains, d)
	}
	return domains
}
