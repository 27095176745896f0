package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func next(t *testing.T, sub *Subscription) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	frame, err := sub.Next(ctx)
	require.NoError(t, err)

	return string(frame)
}

func TestHub_FanOutSameOrder(t *testing.T) {
	hub := NewHub(8)
	a := hub.Subscribe()
	b := hub.Subscribe()
	defer hub.Unsubscribe(a)
	defer hub.Unsubscribe(b)

	for _, f := range []string{"c1", "c2", "c3"} {
		assert.Equal(t, 2, hub.Publish([]byte(f)))
	}

	for _, sub := range []*Subscription{a, b} {
		assert.Equal(t, "c1", next(t, sub))
		assert.Equal(t, "c2", next(t, sub))
		assert.Equal(t, "c3", next(t, sub))
	}
}

func TestHub_NoReplayBeforeSubscribe(t *testing.T) {
	hub := NewHub(8)
	hub.Publish([]byte("early"))

	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	hub.Publish([]byte("late"))
	assert.Equal(t, "late", next(t, sub))
}

func TestHub_PublishNoSubscribers(t *testing.T) {
	hub := NewHub(8)
	assert.Equal(t, 0, hub.Publish([]byte("nobody")))
}

func TestHub_LaggingSubscriberDropsOldest(t *testing.T) {
	hub := NewHub(3)
	sub := hub.Subscribe()
	defer hub.Unsubscribe(sub)

	for _, f := range []string{"1", "2", "3", "4", "5"} {
		hub.Publish([]byte(f))
	}

	assert.Equal(t, uint64(2), sub.Lagged())
	assert.Equal(t, uint64(0), sub.Lagged())
	assert.Equal(t, "3", next(t, sub))
	assert.Equal(t, "4", next(t, sub))
	assert.Equal(t, "5", next(t, sub))
}

func TestHub_Unsubscribe(t *testing.T) {
	hub := NewHub(4)
	sub := hub.Subscribe()
	assert.Equal(t, 1, hub.Len())

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	assert.Equal(t, 0, hub.Len())

	_, err := sub.Next(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestNewHub_DefaultBacklog(t *testing.T) {
	hub := NewHub(0)
	assert.Equal(t, DefaultBacklog, hub.backlog)
}
