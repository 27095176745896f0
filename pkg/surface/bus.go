package surface

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Notification is one emitted UI notification.
type Notification struct {
	Surface   string
	Name      string
	Payload   any
	Timestamp time.Time
}

// Subscription receives the notifications of one surface, or of every
// surface when it was created with an empty label.
type Subscription struct {
	C <-chan Notification

	ch     chan Notification
	label  string
	missed atomic.Uint64
}

// Missed returns how many notifications were discarded because C was full.
func (s *Subscription) Missed() uint64 { return s.missed.Load() }

func (s *Subscription) wants(label string) bool {
	return s.label == "" || s.label == label
}

// Bus carries notifications from bus-backed surfaces to UI readers. A reader
// that falls behind misses notifications; emitting never blocks.
type Bus struct {
	mu   sync.RWMutex
	subs []*Subscription
}

// NewBus creates an empty Bus.
func NewBus() *Bus { return &Bus{} }

// Subscribe starts receiving notifications emitted on the surface labeled
// label ("" for all) into a channel buffered to size. Call Unsubscribe when
// done.
func (b *Bus) Subscribe(label string, size int) *Subscription {
	ch := make(chan Notification, size)
	sub := &Subscription{C: ch, ch: ch, label: label}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub
}

// Unsubscribe stops delivery and closes sub.C. Repeated calls are no-ops.
func (b *Bus) Unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	i := slices.Index(b.subs, sub)
	if i < 0 {
		return
	}
	b.subs = slices.Delete(b.subs, i, i+1)
	close(sub.ch)
}

// Surface returns a Surface labeled label whose notifications are delivered
// to the matching subscriptions.
func (b *Bus) Surface(label string) Surface {
	return Func(func(name string, payload any) error {
		n := Notification{Surface: label, Name: name, Payload: payload, Timestamp: time.Now()}

		b.mu.RLock()
		defer b.mu.RUnlock()

		for _, sub := range b.subs {
			if !sub.wants(label) {
				continue
			}
			select {
			case sub.ch <- n:
			default:
				sub.missed.Add(1)
			}
		}

		return nil
	})
}
