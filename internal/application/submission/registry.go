package submission

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jhoicas/einvoice-gateway/internal/domain"
)

// Registry handlers y checkers por proveedor. Los llamadores solo conocen las interfaces.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	checkers map[string]Checker
}

// NewRegistry construye un registro vacío.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
		checkers: make(map[string]Checker),
	}
}

// Register asocia el proveedor con su handler y, si sondea, con su checker (puede ser nil).
func (r *Registry) Register(provider string, h Handler, c Checker) {
	key := providerKey(provider)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[key] = h
	if c != nil {
		r.checkers[key] = c
	} else {
		delete(r.checkers, key)
	}
}

// Handler devuelve domain.ErrProviderNotRegistered si el proveedor no existe.
func (r *Registry) Handler(provider string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[providerKey(provider)]
	if !ok {
		return nil, fmt.Errorf("%q: %w", provider, domain.ErrProviderNotRegistered)
	}
	return h, nil
}

// Checker ok=false es válido: el proveedor no sondea.
func (r *Registry) Checker(provider string) (Checker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.checkers[providerKey(provider)]
	return c, ok
}

// Providers proveedores registrados, ordenados.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func providerKey(p string) string {
	return strings.ToUpper(strings.TrimSpace(p))
}
