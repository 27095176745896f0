// Package surface models the UI windows that consume engine notifications.
// Surfaces are registered under a label; the registry tracks which one is
// active and whether any remain open.
package surface

import (
	"errors"
	"fmt"
	"sync"
)

// Well-known surface labels.
const (
	Hub    = "hub"
	Editor = "editor"
)

// ErrExists is returned when opening a label that is already open.
var ErrExists = errors.New("surface: already open")

// Surface receives named notifications.
type Surface interface {
	Emit(name string, payload any) error
}

// Func adapts a function to Surface.
type Func func(name string, payload any) error

// Emit calls f.
func (f Func) Emit(name string, payload any) error { return f(name, payload) }

// Registry tracks open surfaces. It is safe for concurrent use.
type Registry struct {
	active string

	mu      sync.RWMutex
	open    map[string]Surface
	onClose []func(label string)
}

// NewRegistry creates a Registry whose active surface is the one registered
// under activeLabel.
func NewRegistry(activeLabel string) *Registry {
	return &Registry{
		active: activeLabel,
		open:   make(map[string]Surface),
	}
}

// Open registers s under label.
func (r *Registry) Open(label string, s Surface) error {
	if s == nil {
		return fmt.Errorf("surface: open %q: nil surface", label)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.open[label]; ok {
		return fmt.Errorf("%w: %q", ErrExists, label)
	}

	r.open[label] = s

	return nil
}

// Close removes label and runs the close hooks. It reports whether the label
// was open; closing an unknown label runs no hooks.
func (r *Registry) Close(label string) bool {
	r.mu.Lock()
	_, ok := r.open[label]
	delete(r.open, label)
	hooks := append([]func(string){}, r.onClose...)
	r.mu.Unlock()

	if !ok {
		return false
	}

	for _, fn := range hooks {
		fn(label)
	}

	return true
}

// OnClose registers fn to run after a surface is closed.
func (r *Registry) OnClose(fn func(label string)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.onClose = append(r.onClose, fn)
}

// Get returns the surface open under label.
func (r *Registry) Get(label string) (Surface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.open[label]

	return s, ok
}

// Active returns the active surface if it is open.
func (r *Registry) Active() (Surface, bool) {
	return r.Get(r.active)
}

// Alive reports whether any surface is open.
func (r *Registry) Alive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.open) > 0
}

// Len returns the number of open surfaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.open)
}
