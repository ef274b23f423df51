package vm

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/karuha/arenachain/core"
)

// Handler applies one transaction payload against the context's state.
type Handler func(ctx *Context, payload json.RawMessage) error

// Registry routes transaction types to their handlers. Registration
// normally happens from module init() functions via the package-level
// Register, so the lock mostly guards against misuse.
type Registry struct {
	mu       sync.RWMutex
	handlers map[core.TxType]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[core.TxType]Handler)}
}

// Register binds typ to h. A second registration for the same type is a
// programming error and panics.
func (r *Registry) Register(typ core.TxType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.handlers[typ]; taken {
		panic(fmt.Sprintf("vm: handler already registered for TxType %q", typ))
	}
	r.handlers[typ] = h
}

// Execute routes payload to the handler bound to typ.
func (r *Registry) Execute(typ core.TxType, ctx *Context, payload json.RawMessage) error {
	r.mu.RLock()
	h := r.handlers[typ]
	r.mu.RUnlock()
	if h == nil {
		return fmt.Errorf("vm: no handler registered for TxType %q", typ)
	}
	return h(ctx, payload)
}

var globalRegistry = NewRegistry()

// Register adds a handler to the global registry. Transaction modules call
// this from init(); importing a module for side effects activates it.
func Register(typ core.TxType, h Handler) {
	globalRegistry.Register(typ, h)
}
