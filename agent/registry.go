package agent

import (
	"context"
	"sync"
)

// RuntimeHandler runs an agent whose engine names a runtime instead of an
// entrypoint file (§4.9 "A runtime handler registry allows runtime: X
// dispatch").
type RuntimeHandler func(ctx context.Context, execCtx ExecutionContext) (any, error)

// RuntimeHandlerRegistry maps a runtime name to the in-process handler
// that serves it, grounded on the teacher's interface-seam-per-backend
// style (server/cursor.Client is injected rather than constructed inline)
// generalized to a name-keyed map since §4.9 allows an open set of
// runtimes rather than one fixed backend.
type RuntimeHandlerRegistry struct {
	mu       sync.RWMutex
	handlers map[string]RuntimeHandler
}

// NewRuntimeHandlerRegistry returns an empty registry.
func NewRuntimeHandlerRegistry() *RuntimeHandlerRegistry {
	return &RuntimeHandlerRegistry{handlers: map[string]RuntimeHandler{}}
}

// Register installs handler under runtime, replacing any existing
// registration for the same name.
func (r *RuntimeHandlerRegistry) Register(runtime string, handler RuntimeHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[runtime] = handler
}

// Lookup returns the handler registered for runtime, if any.
func (r *RuntimeHandlerRegistry) Lookup(runtime string) (RuntimeHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[runtime]
	return h, ok
}
