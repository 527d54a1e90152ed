package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnknownOperation is returned by Call when no operation is registered
// under the requested name.
var ErrUnknownOperation = errors.New("unknown operation")

// Operation is a query exposed to external callers. Arguments arrive as
// string multi-values (HTTP query or form values) and the result must be
// JSON encodable.
type Operation func(ctx context.Context, args map[string][]string) (any, error)

// Registry holds the named operations exposed to callers.
type Registry struct {
	operations map[string]Operation
	mu         sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		operations: make(map[string]Operation),
	}
}

// Register adds an operation. Names must be unique within a registry.
func (r *Registry) Register(name string, op Operation) error {
	if name == "" {
		return fmt.Errorf("registering operation: empty name")
	}
	if op == nil {
		return fmt.Errorf("registering operation %s: nil operation", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.operations[name]; exists {
		return fmt.Errorf("operation %s already registered", name)
	}

	r.operations[name] = op
	return nil
}

// Call runs the named operation.
func (r *Registry) Call(ctx context.Context, name string, args map[string][]string) (any, error) {
	r.mu.RLock()
	op, exists := r.operations[name]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}

	return op(ctx, args)
}

// Names returns the registered operation names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.operations))
	for name := range r.operations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
