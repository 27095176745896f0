package state

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp_ZeroValue(t *testing.T) {
	var a App

	assert.False(t, a.Connected())
	assert.False(t, a.Playing())
	assert.Nil(t, a.Entities())
}

func TestApp_SetConnectedAndPlaying(t *testing.T) {
	var a App

	a.SetConnected(true)
	a.SetPlaying(true)

	snap := a.Snapshot()
	assert.True(t, snap.Connected)
	assert.True(t, snap.Playing)
}

func TestApp_ReplaceEntitiesIsWholesale(t *testing.T) {
	var a App

	a.ReplaceEntities([]json.RawMessage{json.RawMessage(`"a"`)})
	a.ReplaceEntities([]json.RawMessage{json.RawMessage(`"b"`), json.RawMessage(`"c"`)})

	got := a.Entities()
	require.Len(t, got, 2)
	assert.JSONEq(t, `"b"`, string(got[0]))
	assert.JSONEq(t, `"c"`, string(got[1]))
}

func TestApp_ReplaceWithEmpty(t *testing.T) {
	var a App

	a.ReplaceEntities([]json.RawMessage{json.RawMessage(`1`)})
	a.ReplaceEntities(nil)

	got := a.Entities()
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestApp_EntitiesAreCopies(t *testing.T) {
	var a App

	in := []json.RawMessage{json.RawMessage(`{"id":1}`)}
	a.ReplaceEntities(in)
	in[0][2] = 'X'

	out := a.Entities()
	assert.JSONEq(t, `{"id":1}`, string(out[0]))

	out[0][2] = 'Y'
	assert.JSONEq(t, `{"id":1}`, string(a.Entities()[0]))
}

func TestApp_WaitUnblocksOnUpdate(t *testing.T) {
	var a App

	go func() {
		time.Sleep(20 * time.Millisecond)
		a.SetConnected(true)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	snap, err := a.Wait(ctx, func(s Snapshot) bool { return s.Connected })
	require.NoError(t, err)
	assert.True(t, snap.Connected)
}

func TestApp_WaitContextCancelled(t *testing.T) {
	var a App

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := a.Wait(ctx, func(s Snapshot) bool { return s.Playing })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestApp_ConcurrentReadersAndWriter(t *testing.T) {
	var a App
	var wg sync.WaitGroup

	wg.Go(func() {
		for i := range 200 {
			a.SetConnected(i%2 == 0)
			a.ReplaceEntities([]json.RawMessage{json.RawMessage(`1`)})
		}
	})

	for range 4 {
		wg.Go(func() {
			for range 200 {
				_ = a.Snapshot()
				_ = a.Entities()
			}
		})
	}

	wg.Wait()
}
