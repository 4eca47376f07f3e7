package adapters

import (
	"fmt"
	"sort"
	"strings"

	"github.com/smallbiznis/grievance-portal/internal/payment/domain"
)

// Registry maps PAYMENT_PROVIDER values to gateway factories.
type Registry struct {
	factories map[string]domain.AdapterFactory
}

func NewRegistry(factories ...domain.AdapterFactory) *Registry {
	r := &Registry{factories: make(map[string]domain.AdapterFactory, len(factories))}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		if name := normalize(factory.Provider()); name != "" {
			r.factories[name] = factory
		}
	}
	return r
}

func normalize(provider string) string {
	return strings.ToLower(strings.TrimSpace(provider))
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[normalize(provider)]
	return ok
}

// Providers lists the registered gateway names in sorted order.
func (r *Registry) Providers() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewAdapter builds the gateway for provider. The normalized name is passed
// on to the factory in cfg.Provider.
func (r *Registry) NewAdapter(provider string, cfg domain.AdapterConfig) (domain.Gateway, error) {
	name := normalize(provider)
	if !r.ProviderExists(name) {
		return nil, fmt.Errorf("%w: %q (available: %s)", domain.ErrProviderNotFound, name, strings.Join(r.Providers(), ", "))
	}
	cfg.Provider = name
	return r.factories[name].NewAdapter(cfg)
}
