// Package aggregator drains engine events from the relay, folds them into the
// shared application state, and forwards them to the active UI surface.
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/khudiiash/three-ediitor/pkg/state"
	"github.com/khudiiash/three-ediitor/pkg/surface"
	"github.com/khudiiash/three-ediitor/pkg/wire"
)

// DefaultInterval is the polling cadence, roughly once per rendered frame.
const DefaultInterval = 16 * time.Millisecond

// Notification names emitted to the active surface.
const (
	FrameStatsNotification    = "frame-stats"
	EngineMessageNotification = "engine-message"
)

// Source yields queued engine events without blocking.
type Source interface {
	TryRecv() (wire.Event, bool)
}

// Surfaces reports the UI surface that receives notifications and whether
// any surface remains open.
type Surfaces interface {
	Active() (surface.Surface, bool)
	Alive() bool
}

// FrameStats is the payload of a frame-stats notification.
type FrameStats struct {
	FPS         uint32 `json:"fps"`
	EntityCount uint32 `json:"entity_count"`
}

// Options configures an Aggregator.
type Options struct {
	Interval time.Duration
	Logger   *slog.Logger
}

// Aggregator is the single consumer of the relay's inbound queue and the only
// writer of the shared state.
type Aggregator struct {
	src      Source
	state    *state.App
	surfaces Surfaces
	interval time.Duration
	log      *slog.Logger
}

// New creates an Aggregator reading from src and writing into st.
func New(src Source, st *state.App, surfaces Surfaces, opts Options) *Aggregator {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Aggregator{
		src:      src,
		state:    st,
		surfaces: surfaces,
		interval: opts.Interval,
		log:      log.With("component", "aggregator"),
	}
}

// Run polls the source until no UI surface remains, then returns nil. It also
// returns early with ctx.Err() if ctx is done.
func (a *Aggregator) Run(ctx context.Context) error {
	t := time.NewTicker(a.interval)
	defer t.Stop()

	for {
		if !a.surfaces.Alive() {
			a.log.Info("no ui surface remains, stopping")
			return nil
		}

		a.Drain()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Drain applies every event currently queued and returns how many it handled.
func (a *Aggregator) Drain() int {
	n := 0
	for {
		ev, ok := a.src.TryRecv()
		if !ok {
			return n
		}

		a.Apply(ev)
		n++
	}
}

// Apply folds one event into the state and notifies the active surface.
func (a *Aggregator) Apply(ev wire.Event) {
	switch e := ev.(type) {
	case wire.Connected:
		a.state.SetConnected(true)

	case wire.Disconnected:
		a.state.SetConnected(false)

	case wire.SceneState:
		if entities, ok := sceneEntities(e.SceneJSON); ok {
			a.state.ReplaceEntities(entities)
		} else {
			a.log.Debug("scene state without entities array, cache unchanged")
		}

	case wire.FrameStats:
		a.emit(FrameStatsNotification, FrameStats{FPS: e.FPS, EntityCount: e.EntityCount})
	}

	frame, err := wire.EncodeEvent(ev)
	if err != nil {
		a.log.Warn("cannot forward event", "type", ev.EventType(), "error", err)
		return
	}

	a.emit(EngineMessageNotification, string(frame))
}

// Observe records editor commands that carry state the engine never echoes
// back.
func (a *Aggregator) Observe(cmd wire.Command) {
	if pm, ok := cmd.(wire.SetPlayMode); ok {
		a.state.SetPlaying(pm.Playing)
	}
}

// emit delivers to the active surface, or drops the notification if none.
func (a *Aggregator) emit(name string, payload any) {
	s, ok := a.surfaces.Active()
	if !ok {
		return
	}

	if err := s.Emit(name, payload); err != nil {
		a.log.Debug("surface rejected notification", "name", name, "error", err)
	}
}

// sceneEntities extracts the top-level "entities" array of a scene document.
func sceneEntities(sceneJSON string) ([]json.RawMessage, bool) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(sceneJSON), &doc); err != nil {
		return nil, false
	}

	raw, ok := doc["entities"]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(raw), []byte("[")) {
		return nil, false
	}

	var entities []json.RawMessage
	if err := json.Unmarshal(raw, &entities); err != nil {
		return nil, false
	}

	return entities, true
}
