// Package relay implements the loopback WebSocket endpoint that joins the
// editor to one or more engine connections. Editor commands are broadcast to
// every connection; engine events from all connections are funnelled into one
// ordered inbound queue.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/segmentio/ksuid"

	"github.com/khudiiash/three-ediitor/pkg/wire"
)

// ErrBind is returned by Start when the endpoint cannot be acquired.
var ErrBind = errors.New("relay: bind failure")

var errNoPong = errors.New("pong not received")

const (
	// DefaultAddr is the well-known loopback endpoint engines dial.
	DefaultAddr = "127.0.0.1:9001"

	// DefaultInboundCapacity bounds the inbound event queue.
	DefaultInboundCapacity = 4096

	// DefaultReadLimit caps a single inbound frame. Scene documents can be
	// large, so this is far above the websocket library's default.
	DefaultReadLimit int64 = 64 << 20
)

// Options configures a Server. Zero fields take their defaults.
type Options struct {
	Addr            string
	Backlog         int
	InboundCapacity int
	ReadLimit       int64
	// PingInterval is how often each connection is pinged. A ping left
	// unanswered for an interval with no command write progress ends the
	// connection. Zero disables heartbeats.
	PingInterval time.Duration
	Logger       *slog.Logger
}

// Server is the relay endpoint. Create it with New and bind it with Start.
type Server struct {
	opts    Options
	log     *slog.Logger
	hub     *Hub
	inbound *Queue[wire.Event]

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	srv      *http.Server
	live     int
	closed   bool
	conns    sync.WaitGroup
	serving  sync.WaitGroup
}

// New creates an unbound Server.
func New(opts Options) *Server {
	if opts.Addr == "" {
		opts.Addr = DefaultAddr
	}
	if opts.Backlog < 1 {
		opts.Backlog = DefaultBacklog
	}
	if opts.InboundCapacity < 1 {
		opts.InboundCapacity = DefaultInboundCapacity
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = DefaultReadLimit
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		opts:    opts,
		log:     log.With("component", "relay"),
		hub:     NewHub(opts.Backlog),
		inbound: NewQueue[wire.Event](opts.InboundCapacity),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start binds the endpoint and begins accepting connections in the
// background. A bind error wraps ErrBind; the Server stays usable for Send
// and TryRecv, which then behave as if no engine were connected.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrBind, s.opts.Addr, err)
	}

	s.listener = ln
	s.srv = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}

	s.serving.Go(func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("accept loop stopped", "error", err)
		}
	})

	s.log.Info("listening", "addr", "ws://"+ln.Addr().String())

	return nil
}

// Addr returns the bound address, or nil before a successful Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Send broadcasts cmd to every connection currently attached. Sending with no
// connections succeeds and has no effect.
func (s *Server) Send(cmd wire.Command) error {
	frame, err := wire.EncodeCommand(cmd)
	if err != nil {
		return fmt.Errorf("relay: send: %w", err)
	}

	n := s.hub.Publish(frame)
	s.log.Debug("broadcast command", "type", cmd.CommandType(), "receivers", n)

	return nil
}

// TryRecv returns the oldest inbound event without blocking.
func (s *Server) TryRecv() (wire.Event, bool) {
	return s.inbound.TryPop()
}

// Recv blocks until an inbound event arrives, ctx is done, or the Server is
// closed and drained.
func (s *Server) Recv(ctx context.Context) (wire.Event, error) {
	return s.inbound.Pop(ctx)
}

// Connections returns the number of connections past their handshake.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.live
}

// Close stops accepting, ends every connection, and waits for their handlers
// to return. Events already queued remain readable through TryRecv.
func (s *Server) Close() error {
	s.cancel()

	s.mu.Lock()
	s.closed = true
	srv := s.srv
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Close()
		s.serving.Wait()
	}

	s.conns.Wait()
	s.inbound.Close()

	return err
}

// ServeHTTP upgrades one engine connection and relays until it ends.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "relay closed", http.StatusServiceUnavailable)
		return
	}
	s.conns.Add(1)
	s.mu.Unlock()
	defer s.conns.Done()

	id := ksuid.New().String()
	log := s.log.With("conn", id, "remote", r.RemoteAddr)

	// Subscribe before the handshake so nothing broadcast after accept is missed.
	sub := s.hub.Subscribe()
	defer s.hub.Unsubscribe(sub)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Engines run in a browser served from another local origin.
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Warn("handshake failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	conn.SetReadLimit(s.opts.ReadLimit)

	s.attach()
	defer s.detach()

	log.Info("engine connected")

	err = s.serveConn(conn, sub, log)

	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, ErrClosed):
		log.Debug("relay closing connection")
	case websocket.CloseStatus(err) != -1:
		log.Info("engine closed connection", "status", websocket.CloseStatus(err))
	default:
		log.Warn("connection ended", "error", err)
	}

	log.Info("engine disconnected")
}

// attach records a live connection and synthesizes the local Connected signal.
func (s *Server) attach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.live++
	s.push(wire.Connected{})
}

// detach drops a live connection; the last one out synthesizes Disconnected.
func (s *Server) detach() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.live--
	if s.live == 0 {
		s.push(wire.Disconnected{})
	}
}

func (s *Server) push(ev wire.Event) {
	if s.inbound.Push(ev) {
		s.log.Warn("inbound queue full, dropped oldest event", "dropped_total", s.inbound.Dropped())
	}
}

// serveConn runs the outbound, inbound, and heartbeat loops for one connection
// and returns the first error that ends any of them.
func (s *Server) serveConn(conn *websocket.Conn, sub *Subscription, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	errc := make(chan error, 3)
	var wg sync.WaitGroup
	var writes writeTracker

	wg.Go(func() { errc <- s.writeLoop(ctx, conn, sub, &writes, log) })
	wg.Go(func() { errc <- s.readLoop(ctx, conn, log) })
	if s.opts.PingInterval > 0 {
		wg.Go(func() { errc <- s.pingLoop(ctx, conn, &writes) })
	}

	err := <-errc
	cancel()
	wg.Wait()

	return err
}

// writeTracker counts data write boundaries on one connection. The count is
// odd while a write is in flight.
type writeTracker struct {
	gen atomic.Uint64
}

func (w *writeTracker) begin() { w.gen.Add(1) }
func (w *writeTracker) end()   { w.gen.Add(1) }

// snapshot returns the current generation and whether a write is in flight.
func (w *writeTracker) snapshot() (uint64, bool) {
	g := w.gen.Load()
	return g, g%2 == 1
}

func (s *Server) writeLoop(ctx context.Context, conn *websocket.Conn, sub *Subscription, writes *writeTracker, log *slog.Logger) error {
	for {
		frame, err := sub.Next(ctx)
		if err != nil {
			return err
		}

		if n := sub.Lagged(); n > 0 {
			log.Warn("connection lagging, dropped oldest commands", "dropped", n)
		}

		writes.begin()
		err = conn.Write(ctx, websocket.MessageText, frame)
		writes.end()

		if err != nil {
			return fmt.Errorf("relay: write: %w", err)
		}
	}
}

func (s *Server) readLoop(ctx context.Context, conn *websocket.Conn, log *slog.Logger) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if typ != websocket.MessageText {
			log.Warn("dropping non-text frame", "type", typ.String(), "bytes", len(data))
			continue
		}

		ev, err := wire.DecodeEvent(data)
		if err != nil {
			log.Warn("dropping malformed frame", "error", err, "bytes", len(data))
			continue
		}

		s.push(ev)
	}
}

// pingLoop ends the connection when a ping stays unanswered for a full
// interval in which no command write made progress. A reader that is slow to
// drain commands holds up both the write lock and its own pongs, so activity
// on the write side restarts the wait. The ping itself carries no deadline:
// the websocket library closes a connection whose write context expires.
func (s *Server) pingLoop(ctx context.Context, conn *websocket.Conn, writes *writeTracker) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	t := time.NewTicker(s.opts.PingInterval)
	defer t.Stop()

	var (
		pending chan error
		seen    uint64
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-pending:
			pending = nil
			if err != nil {
				return fmt.Errorf("relay: heartbeat: %w", err)
			}
			continue
		case <-t.C:
		}

		gen, busy := writes.snapshot()

		if pending == nil {
			ch := make(chan error, 1)
			pending, seen = ch, gen
			wg.Go(func() { ch <- conn.Ping(ctx) })
			continue
		}

		if busy || gen != seen {
			seen = gen
			continue
		}

		return fmt.Errorf("relay: heartbeat: %w", errNoPong)
	}
}
