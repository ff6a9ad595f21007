package gobake

import (
	"fmt"

	"github.com/sasha-s/go-deadlock"
)

var (
	registryMu   deadlock.RWMutex
	stepRegistry = make(map[string]StepFactory)
)

// RegisterStep registers a step factory with a unique ID.
// This function should be called at application startup for every step type
// that pipeline definitions may reference.
// It will panic if a step with the same ID is already registered.
func RegisterStep(id string, factory StepFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := stepRegistry[id]; exists {
		panic(fmt.Sprintf("step with id '%s' is already registered", id))
	}
	stepRegistry[id] = factory
}

// NewStepFromRegistry creates a new Step instance from the registry using
// the definition's ID. It returns an error if the ID is not registered or
// the factory rejects the definition.
func NewStepFromRegistry(def StepDef) (Step, error) {
	registryMu.RLock()
	factory, ok := stepRegistry[def.ID]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("step with id '%s' not found in registry", def.ID)
	}
	return factory(def)
}
