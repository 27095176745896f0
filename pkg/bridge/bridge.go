// Package bridge is the composition root that joins the project store, the
// relay, the aggregator and the engine supervisor, and exposes them to the UI
// layer through one API.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/khudiiash/three-ediitor/pkg/aggregator"
	"github.com/khudiiash/three-ediitor/pkg/projectstore"
	"github.com/khudiiash/three-ediitor/pkg/relay"
	"github.com/khudiiash/three-ediitor/pkg/state"
	"github.com/khudiiash/three-ediitor/pkg/supervisor"
	"github.com/khudiiash/three-ediitor/pkg/surface"
	"github.com/khudiiash/three-ediitor/pkg/wire"
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// WithSupervisor replaces the os/exec engine supervisor.
func WithSupervisor(s supervisor.Supervisor) Option {
	return func(b *Bridge) { b.engine = s }
}

// Bridge owns the editor-side runtime.
type Bridge struct {
	cfg      Config
	log      *slog.Logger
	state    *state.App
	store    *projectstore.Store
	relay    *relay.Server
	agg      *aggregator.Aggregator
	engine   supervisor.Supervisor
	surfaces *surface.Registry
	bus      *surface.Bus

	mu       sync.Mutex
	started  bool
	relayErr error
	cancel   context.CancelFunc
	done     chan struct{}
}

// New validates cfg and assembles the components. Nothing is bound or
// spawned until Start.
func New(cfg Config, opts ...Option) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Bridge{
		cfg:      cfg,
		log:      slog.Default(),
		state:    &state.App{},
		surfaces: surface.NewRegistry(surface.Editor),
		bus:      surface.NewBus(),
	}
	for _, o := range opts {
		o(b)
	}

	store, err := projectstore.New(cfg.ProjectsDir, projectstore.WithLogger(b.log))
	if err != nil {
		return nil, fmt.Errorf("bridge: projects: %w", err)
	}
	b.store = store

	b.relay = relay.New(relay.Options{
		Addr:            cfg.Relay.Addr,
		Backlog:         cfg.Relay.Backlog,
		InboundCapacity: cfg.Relay.InboundCapacity,
		PingInterval:    cfg.Relay.PingInterval,
		Logger:          b.log,
	})

	b.agg = aggregator.New(b.relay, b.state, b.surfaces, aggregator.Options{
		Interval: cfg.Aggregator.Interval,
		Logger:   b.log,
	})

	if b.engine == nil {
		b.engine = supervisor.New(supervisor.Options{
			Command: cfg.Engine.Command,
			Args:    cfg.Engine.Args,
			Dir:     cfg.Engine.Dir,
			Logger:  b.log,
		})
	}

	b.surfaces.OnClose(func(label string) {
		if label != surface.Editor {
			return
		}
		if err := b.engine.Stop(); err != nil {
			b.log.Warn("stop engine on editor close", "error", err)
		}
	})

	return b, nil
}

// Start binds the relay, optionally spawns the engine, and runs the
// aggregator until no surface remains or ctx is done. Open at least one
// surface first. A relay bind failure is logged and leaves the bridge running
// without an engine link; see RelayError.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return errors.New("bridge: already started")
	}
	b.started = true

	if err := b.relay.Start(); err != nil {
		b.relayErr = err
		b.log.Error("relay disabled, engine link unavailable", "error", err)
	}

	if b.cfg.Engine.Autostart {
		if err := b.engine.Start(); err != nil {
			b.log.Error("engine not started", "error", err)
		}
	}

	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})

	go func() {
		defer close(b.done)
		if err := b.agg.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			b.log.Warn("aggregator stopped", "error", err)
		}
	}()

	return nil
}

// Done returns a channel closed when the aggregator loop has exited, or nil
// before Start.
func (b *Bridge) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.done
}

// RelayError returns the bind failure recorded by Start, if any.
func (b *Bridge) RelayError() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.relayErr
}

// RelayAddr returns the relay's bound address, or "" when it is not bound.
func (b *Bridge) RelayAddr() string {
	if a := b.relay.Addr(); a != nil {
		return a.String()
	}
	return ""
}

// SendToEngine decodes a raw JSON command from the UI and broadcasts it. A
// malformed command wraps wire.ErrDecode.
func (b *Bridge) SendToEngine(raw string) error {
	cmd, err := wire.DecodeCommand([]byte(raw))
	if err != nil {
		return fmt.Errorf("bridge: send to engine: %w", err)
	}

	return b.Send(cmd)
}

// Send broadcasts cmd to every connected engine.
func (b *Bridge) Send(cmd wire.Command) error {
	b.agg.Observe(cmd)
	return b.relay.Send(cmd)
}

// Connected reports whether an engine is connected.
func (b *Bridge) Connected() bool { return b.state.Connected() }

// Entities returns the cached entity list.
func (b *Bridge) Entities() []json.RawMessage { return b.state.Entities() }

// Playing reports the last play mode sent to the engine.
func (b *Bridge) Playing() bool { return b.state.Playing() }

// State exposes the shared state read-only.
func (b *Bridge) State() state.Reader { return b.state }

// WaitState blocks until cond holds for the shared state or ctx is done.
func (b *Bridge) WaitState(ctx context.Context, cond func(state.Snapshot) bool) (state.Snapshot, error) {
	return b.state.Wait(ctx, cond)
}

// Projects returns the project store.
func (b *Bridge) Projects() *projectstore.Store { return b.store }

// OpenProject loads the project's scene into the engine: the document is
// copied into the engine's public directory for the next boot and sent as
// LoadScene to engines already connected. A failed copy is logged only.
func (b *Bridge) OpenProject(path string) error {
	scene, err := b.store.ReadScene(path)
	if err != nil {
		return fmt.Errorf("bridge: open project: %w", err)
	}

	if dir := b.cfg.Engine.PublicDir; dir != "" {
		if err := b.store.ExportScene(path, dir); err != nil {
			b.log.Warn("cannot copy scene to engine", "dir", dir, "error", err)
		}
	}

	b.log.Info("project opened", "path", path)

	return b.Send(wire.LoadScene{SceneJSON: scene})
}

// StartEngine spawns the engine process if it is not running.
func (b *Bridge) StartEngine() error { return b.engine.Start() }

// StopEngine terminates the engine process without waiting for it to exit.
func (b *Bridge) StopEngine() error { return b.engine.Stop() }

// EngineRunning reports whether the engine process is alive.
func (b *Bridge) EngineRunning() bool { return b.engine.Running() }

// Surfaces returns the UI surface registry.
func (b *Bridge) Surfaces() *surface.Registry { return b.surfaces }

// Notifications returns the bus that bus-backed surfaces publish on.
func (b *Bridge) Notifications() *surface.Bus { return b.bus }

// OpenSurface registers a surface that publishes on the notification bus.
func (b *Bridge) OpenSurface(label string) error {
	return b.surfaces.Open(label, b.bus.Surface(label))
}

// Close stops the aggregator and the relay, then stops the engine once more.
// It is safe to call more than once.
func (b *Bridge) Close() error {
	b.mu.Lock()
	cancel := b.cancel
	done := b.done
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	var errs []error
	if err := b.relay.Close(); err != nil {
		errs = append(errs, fmt.Errorf("bridge: close relay: %w", err))
	}
	if err := b.engine.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("bridge: stop engine: %w", err))
	}

	return errors.Join(errs...)
}
