package builder

import (
	"sort"
	"sync"

	"github.com/simon020286/go-autopilot/models"
)

// StepFactory creates a Step from its configuration.
// Factories validate parameters and must not perform remote calls.
type StepFactory func(cfg models.StepConfig) (models.Step, error)

// Registry maps step type identifiers to factories
type Registry struct {
	mu        sync.RWMutex
	factories map[string]StepFactory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]StepFactory)}
}

// Register adds a factory for stepType, replacing any previous one
func (r *Registry) Register(stepType string, factory StepFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[stepType] = factory
}

// Lookup returns the factory for stepType or a LoadError
func (r *Registry) Lookup(stepType string) (StepFactory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, exists := r.factories[stepType]
	if !exists {
		return nil, models.ErrUnknownStepType(stepType)
	}
	return factory, nil
}

// Has reports whether stepType is registered
func (r *Registry) Has(stepType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[stepType]
	return ok
}

// Types returns all registered step types, sorted
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// defaultRegistry is filled by init() in the steps package
var defaultRegistry = NewRegistry()

// Default returns the process-wide registry
func Default() *Registry {
	return defaultRegistry
}

// RegisterStepType registers a factory in the default registry.
// This function is called by init() in step packages
func RegisterStepType(stepType string, factory StepFactory) {
	defaultRegistry.Register(stepType, factory)
}

// GetStepFactory returns the factory for a step type from the default registry
func GetStepFactory(stepType string) (StepFactory, error) {
	return defaultRegistry.Lookup(stepType)
}

// ListStepTypes returns all step types of the default registry
func ListStepTypes() []string {
	return defaultRegistry.Types()
}
