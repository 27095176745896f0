package relay

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khudiiash/three-ediitor/pkg/wire"
)

func startServer(t *testing.T, opts Options) *Server {
	t.Helper()

	opts.Addr = "127.0.0.1:0"
	s := New(opts)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+s.Addr().String(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })

	return conn
}

func recvEvent(t *testing.T, s *Server) wire.Event {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ev, err := s.Recv(ctx)
	require.NoError(t, err)

	return ev
}

func readCommand(t *testing.T, conn *websocket.Conn) wire.Command {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ)

	cmd, err := wire.DecodeCommand(data)
	require.NoError(t, err)

	return cmd
}

func writeText(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(frame)))
}

func TestServer_BroadcastSameOrderToAllConnections(t *testing.T) {
	s := startServer(t, Options{})
	a := dial(t, s)
	b := dial(t, s)

	require.Equal(t, wire.Connected{}, recvEvent(t, s))
	require.Equal(t, wire.Connected{}, recvEvent(t, s))

	cmds := []wire.Command{
		wire.SelectEntity{EntityID: 1},
		wire.SetPlayMode{Playing: true},
		wire.GetSceneState{},
	}
	for _, c := range cmds {
		require.NoError(t, s.Send(c))
	}

	for _, conn := range []*websocket.Conn{a, b} {
		for _, want := range cmds {
			assert.Equal(t, want, readCommand(t, conn))
		}
	}
}

func TestServer_SendWithoutConnections(t *testing.T) {
	s := startServer(t, Options{})

	require.NoError(t, s.Send(wire.GetSceneState{}))

	_, ok := s.TryRecv()
	assert.False(t, ok)
	assert.Equal(t, 0, s.Connections())
}

func TestServer_ConnectedIsLocalSignal(t *testing.T) {
	s := startServer(t, Options{})
	_ = dial(t, s)
	_ = dial(t, s)

	assert.Equal(t, wire.Connected{}, recvEvent(t, s))
	assert.Equal(t, wire.Connected{}, recvEvent(t, s))
	assert.Equal(t, 2, s.Connections())
}

func TestServer_MalformedFrameKeepsConnection(t *testing.T) {
	s := startServer(t, Options{})
	conn := dial(t, s)
	require.Equal(t, wire.Connected{}, recvEvent(t, s))

	writeText(t, conn, `{not json`)
	writeText(t, conn, `{"type":"Teleport"}`)
	require.NoError(t, conn.Write(context.Background(), websocket.MessageBinary, []byte{0x01}))
	writeText(t, conn, `{"type":"FrameStats","fps":60,"entity_count":3}`)

	assert.Equal(t, wire.FrameStats{FPS: 60, EntityCount: 3}, recvEvent(t, s))

	require.NoError(t, s.Send(wire.DeleteEntity{EntityID: 5}))
	assert.Equal(t, wire.DeleteEntity{EntityID: 5}, readCommand(t, conn))
}

func TestServer_InboundPreservesPerConnectionOrder(t *testing.T) {
	s := startServer(t, Options{})
	conn := dial(t, s)
	require.Equal(t, wire.Connected{}, recvEvent(t, s))

	writeText(t, conn, `{"type":"EntityCreated","entity_id":1,"name":"a"}`)
	writeText(t, conn, `{"type":"EntityCreated","entity_id":2,"name":"b"}`)
	writeText(t, conn, `{"type":"EntityDeleted","entity_id":1}`)

	assert.Equal(t, wire.EntityCreated{EntityID: 1, Name: "a"}, recvEvent(t, s))
	assert.Equal(t, wire.EntityCreated{EntityID: 2, Name: "b"}, recvEvent(t, s))
	assert.Equal(t, wire.EntityDeleted{EntityID: 1}, recvEvent(t, s))
}

func TestServer_DisconnectedWhenLastConnectionEnds(t *testing.T) {
	s := startServer(t, Options{})
	a := dial(t, s)
	b := dial(t, s)
	require.Equal(t, wire.Connected{}, recvEvent(t, s))
	require.Equal(t, wire.Connected{}, recvEvent(t, s))

	_ = a.Close(websocket.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return s.Connections() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, ok := s.TryRecv()
	assert.False(t, ok, "no Disconnected while a connection remains")

	_ = b.Close(websocket.StatusNormalClosure, "")
	assert.Equal(t, wire.Disconnected{}, recvEvent(t, s))
}

func TestServer_FailedConnectionDoesNotAffectOthers(t *testing.T) {
	s := startServer(t, Options{})
	bad := dial(t, s)
	good := dial(t, s)
	require.Equal(t, wire.Connected{}, recvEvent(t, s))
	require.Equal(t, wire.Connected{}, recvEvent(t, s))

	_ = bad.CloseNow()
	require.Eventually(t, func() bool { return s.Connections() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Send(wire.SetPlayMode{Playing: false}))
	assert.Equal(t, wire.SetPlayMode{Playing: false}, readCommand(t, good))

	// The accept loop keeps serving new engines.
	late := dial(t, s)
	require.Equal(t, wire.Connected{}, recvEvent(t, s))
	require.NoError(t, s.Send(wire.GetSceneState{}))
	assert.Equal(t, wire.GetSceneState{}, readCommand(t, late))
}

func TestServer_HandshakeFailureIsIsolated(t *testing.T) {
	s := startServer(t, Options{})

	raw, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	_, err = raw.Write([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"))
	require.NoError(t, err)
	_ = raw.Close()

	_ = dial(t, s)
	assert.Equal(t, wire.Connected{}, recvEvent(t, s))
}

func TestServer_BindFailure(t *testing.T) {
	held, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer held.Close()

	s := New(Options{Addr: held.Addr().String()})
	defer s.Close()

	err = s.Start()
	require.ErrorIs(t, err, ErrBind)
	assert.Nil(t, s.Addr())

	// Degraded mode: sends succeed with nobody listening.
	require.NoError(t, s.Send(wire.GetSceneState{}))
}

func TestServer_CloseEndsConnections(t *testing.T) {
	s := New(Options{Addr: "127.0.0.1:0"})
	require.NoError(t, s.Start())

	conn := dial(t, s)
	require.Equal(t, wire.Connected{}, recvEvent(t, s))

	require.NoError(t, s.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)

	assert.Equal(t, wire.Disconnected{}, recvEvent(t, s))
	_, err = s.Recv(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestServer_Heartbeat(t *testing.T) {
	s := startServer(t, Options{PingInterval: 20 * time.Millisecond})
	conn := dial(t, s)
	require.Equal(t, wire.Connected{}, recvEvent(t, s))

	// The client must read for pongs to be answered.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, s.Connections())
}

func TestServer_HeartbeatEndsUnresponsivePeer(t *testing.T) {
	s := startServer(t, Options{PingInterval: 20 * time.Millisecond})
	_ = dial(t, s) // never reads, so pongs are never answered
	require.Equal(t, wire.Connected{}, recvEvent(t, s))

	assert.Equal(t, wire.Disconnected{}, recvEvent(t, s))
	assert.Equal(t, 0, s.Connections())
}

func TestServer_LaggingConnectionDropsOldestAndStaysOpen(t *testing.T) {
	const backlog = 10

	s := startServer(t, Options{Backlog: backlog, PingInterval: 50 * time.Millisecond})
	conn := dial(t, s)
	conn.SetReadLimit(1 << 20)
	require.Equal(t, wire.Connected{}, recvEvent(t, s))

	// Enough data to fill the socket buffers while the client is not reading.
	scene := strings.Repeat("x", 256<<10)
	const sent = 200
	for range sent {
		require.NoError(t, s.Send(wire.LoadScene{SceneJSON: scene}))
	}
	require.NoError(t, s.Send(wire.DeleteEntity{EntityID: 42}))

	time.Sleep(time.Second)
	require.Equal(t, 1, s.Connections(), "a stalled reader is lagging, not dead")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	received := 0
	var last wire.Command
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)

		cmd, err := wire.DecodeCommand(data)
		require.NoError(t, err)

		received++
		last = cmd
		if _, ok := cmd.(wire.DeleteEntity); ok {
			break
		}
	}

	assert.Equal(t, wire.DeleteEntity{EntityID: 42}, last)
	assert.Less(t, received, sent+1, "oldest commands are dropped for a lagging connection")
	assert.Equal(t, 1, s.Connections())

	require.NoError(t, s.Send(wire.GetSceneState{}))
	assert.Equal(t, wire.GetSceneState{}, readCommand(t, conn))
}
