package surface

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	names []string
}

func (r *recorder) Emit(name string, _ any) error {
	r.names = append(r.names, name)
	return nil
}

func TestRegistry_ActiveOnlyWhenOpen(t *testing.T) {
	r := NewRegistry(Editor)

	_, ok := r.Active()
	assert.False(t, ok)

	require.NoError(t, r.Open(Hub, &recorder{}))
	_, ok = r.Active()
	assert.False(t, ok, "hub is not the active surface")
	assert.True(t, r.Alive())

	ed := &recorder{}
	require.NoError(t, r.Open(Editor, ed))
	got, ok := r.Active()
	require.True(t, ok)
	assert.Same(t, ed, got)
}

func TestRegistry_OpenTwice(t *testing.T) {
	r := NewRegistry(Editor)
	require.NoError(t, r.Open(Editor, &recorder{}))

	err := r.Open(Editor, &recorder{})
	require.ErrorIs(t, err, ErrExists)

	require.Error(t, r.Open(Hub, nil))
}

func TestRegistry_CloseRunsHooks(t *testing.T) {
	r := NewRegistry(Editor)
	var closed []string
	r.OnClose(func(label string) { closed = append(closed, label) })

	require.NoError(t, r.Open(Hub, &recorder{}))
	require.NoError(t, r.Open(Editor, &recorder{}))

	assert.True(t, r.Close(Editor))
	assert.False(t, r.Close(Editor))
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.Alive())

	assert.True(t, r.Close(Hub))
	assert.False(t, r.Alive())
	assert.Equal(t, []string{Editor, Hub}, closed)
}

func TestFunc_Emit(t *testing.T) {
	var got string
	s := Func(func(name string, _ any) error {
		got = name
		return nil
	})

	require.NoError(t, s.Emit("frame-stats", nil))
	assert.Equal(t, "frame-stats", got)
}

func TestBus_SurfaceDelivers(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(Editor, 4)
	defer bus.Unsubscribe(sub)

	s := bus.Surface(Editor)
	require.NoError(t, s.Emit("engine-message", `{"type":"Connected"}`))

	select {
	case n := <-sub.C:
		assert.Equal(t, Editor, n.Surface)
		assert.Equal(t, "engine-message", n.Name)
		assert.Equal(t, `{"type":"Connected"}`, n.Payload)
		assert.False(t, n.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestBus_FiltersByLabel(t *testing.T) {
	bus := NewBus()
	editor := bus.Subscribe(Editor, 4)
	all := bus.Subscribe("", 4)
	defer bus.Unsubscribe(editor)
	defer bus.Unsubscribe(all)

	require.NoError(t, bus.Surface("hub").Emit("frame-stats", nil))
	require.NoError(t, bus.Surface(Editor).Emit("engine-message", nil))

	assert.Equal(t, "engine-message", (<-editor.C).Name)
	assert.Empty(t, editor.C)

	assert.Equal(t, "hub", (<-all.C).Surface)
	assert.Equal(t, Editor, (<-all.C).Surface)
}

func TestBus_FullSubscriptionMisses(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe(Editor, 1)
	defer bus.Unsubscribe(sub)

	s := bus.Surface(Editor)
	require.NoError(t, s.Emit("first", nil))
	require.NoError(t, s.Emit("second", nil))
	require.NoError(t, s.Emit("third", nil))

	got := <-sub.C
	assert.Equal(t, "first", got.Name)
	assert.Equal(t, uint64(2), sub.Missed())
	assert.Empty(t, sub.C)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe("", 1)

	bus.Unsubscribe(sub)
	_, ok := <-sub.C
	assert.False(t, ok)

	bus.Unsubscribe(sub)
	require.NoError(t, bus.Surface(Editor).Emit("after", nil))
	assert.Zero(t, sub.Missed())
}
