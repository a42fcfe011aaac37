package services

import (
	"fmt"
	"sort"
	"sync"

	"chathistory/pkg/historytypes"
)

// Registry manages service registration and lifecycle for chathistory services.
type Registry struct {
	mu       sync.RWMutex
	services map[string]historytypes.Service
}

// NewRegistry creates a new service registry with an empty service map.
func NewRegistry() *Registry {
	return &Registry{
		services: make(map[string]historytypes.Service),
	}
}

// RegisterService adds a service to the registry, returning an error if already registered.
func (r *Registry) RegisterService(service historytypes.Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := service.Name()
	if _, exists := r.services[name]; exists {
		return fmt.Errorf("service %s already registered", name)
	}

	r.services[name] = service
	return nil
}

// ReplaceService registers service, replacing any service already registered under its name.
func (r *Registry) ReplaceService(service historytypes.Service) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[service.Name()] = service
}

// GetService retrieves a service by name, returning an error if not found.
func (r *Registry) GetService(name string) (historytypes.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	service, exists := r.services[name]
	if !exists {
		return nil, fmt.Errorf("service %s not found", name)
	}

	return service, nil
}

// InitializeAll initializes all registered services in name order.
func (r *Registry) InitializeAll() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.services))
	for name := range r.services {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := r.services[name].Initialize(); err != nil {
			return fmt.Errorf("failed to initialize service %s: %w", name, err)
		}
	}

	return nil
}

// GlobalRegistry is the global service registry instance used throughout chathistory.
var GlobalRegistry = NewRegistry()

// GetGlobalRegistry returns the global service registry instance.
func GetGlobalRegistry() *Registry {
	return GlobalRegistry
}
