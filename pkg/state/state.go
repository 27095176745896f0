// Package state holds the process-wide application state derived from engine
// events: connectivity, the cached entity list, and play mode. A single
// writer (the aggregator) mutates it; every other component reads copies.
package state

import (
	"context"
	"encoding/json"
	"sync"
)

// Snapshot is a point-in-time copy of the application state.
type Snapshot struct {
	Connected bool
	Playing   bool
	Entities  []json.RawMessage
}

// Reader is the read-only view handed to UI-facing code.
type Reader interface {
	Connected() bool
	Playing() bool
	Entities() []json.RawMessage
	Snapshot() Snapshot
}

// App is the shared state container. The zero value is ready to use. The lock
// is held only for a single read or whole-value replace.
type App struct {
	mu        sync.RWMutex
	once      sync.Once
	signal    chan struct{}
	connected bool
	playing   bool
	entities  []json.RawMessage
}

var _ Reader = (*App)(nil)

func (a *App) init() {
	a.once.Do(func() {
		a.signal = make(chan struct{})
	})
}

// Connected reports whether an engine connection is live.
func (a *App) Connected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.connected
}

// Playing reports the last requested play mode.
func (a *App) Playing() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.playing
}

// Entities returns a deep copy of the cached entity list.
func (a *App) Entities() []json.RawMessage {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return copyEntities(a.entities)
}

// Snapshot returns a deep copy of the whole state.
func (a *App) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.snapshotLocked()
}

// SetConnected records engine connectivity.
func (a *App) SetConnected(v bool) {
	a.update(func() { a.connected = v })
}

// SetPlaying records the play mode.
func (a *App) SetPlaying(v bool) {
	a.update(func() { a.playing = v })
}

// ReplaceEntities swaps the cached entity list wholesale. The slice and its
// elements are copied, so callers may reuse them.
func (a *App) ReplaceEntities(entities []json.RawMessage) {
	cp := copyEntities(entities)
	if cp == nil {
		cp = []json.RawMessage{}
	}

	a.update(func() { a.entities = cp })
}

// Wait blocks until cond holds for the current state or ctx is done. It
// returns the snapshot that satisfied cond.
func (a *App) Wait(ctx context.Context, cond func(Snapshot) bool) (Snapshot, error) {
	a.init()

	for {
		a.mu.RLock()
		snap := a.snapshotLocked()
		sig := a.signal
		a.mu.RUnlock()

		if cond(snap) {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-sig:
		}
	}
}

// update applies fn under the write lock and wakes goroutines blocked in Wait.
func (a *App) update(fn func()) {
	a.init()
	a.mu.Lock()
	defer a.mu.Unlock()

	fn()
	close(a.signal)
	a.signal = make(chan struct{})
}

func (a *App) snapshotLocked() Snapshot {
	return Snapshot{
		Connected: a.connected,
		Playing:   a.playing,
		Entities:  copyEntities(a.entities),
	}
}

func copyEntities(src []json.RawMessage) []json.RawMessage {
	if src == nil {
		return nil
	}

	cp := make([]json.RawMessage, len(src))
	for i, raw := range src {
		cp[i] = append(json.RawMessage(nil), raw...)
	}

	return cp
}
