package registration

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// EventType identifies a registration lifecycle transition.
type EventType string

// Registration events.
const (
	EventRegistered   EventType = "registered"
	EventUpdated      EventType = "updated"
	EventDeregistered EventType = "deregistered"
)

// Deregistration reasons.
const (
	ReasonDeregister = "deregister"
	ReasonExpired    = "expired"
)

// defaultEventBuffer is used when NewNotifier is given a non-positive size.
const defaultEventBuffer = 256

// Event describes one registry transition. Client is the record after the
// transition, or the removed record for EventDeregistered.
type Event struct {
	Type   EventType `json:"event"`
	Reason string    `json:"reason,omitempty"`
	Client Client    `json:"client"`
	Time   time.Time `json:"time"`
}

// Observer receives registration events.
// Events are shared between observers; implementations must not modify them.
type Observer interface {
	RegistrationChanged(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, ev Event)

// RegistrationChanged calls f(ctx, ev).
func (f ObserverFunc) RegistrationChanged(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// EventSink accepts events for delivery. *Notifier implements it.
type EventSink interface {
	Emit(ev Event)
}

// Notifier delivers events to observers on a single goroutine, in emission
// order. Emit never blocks: when the buffer is full the event is dropped and
// counted.
//
// Thread Safety: All methods are safe for concurrent use.
type Notifier struct {
	events    chan Event
	observers []Observer
	obsMu     sync.RWMutex
	dropped   atomic.Uint64
	stopped   atomic.Bool
	started   atomic.Bool

	// Shutdown coordination
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// NewNotifier creates a notifier with room for buffer pending events.
func NewNotifier(buffer int) *Notifier {
	if buffer <= 0 {
		buffer = defaultEventBuffer
	}
	return &Notifier{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the notifier.
func (n *Notifier) SetLogger(logger Logger) {
	n.logger = logger
}

// Subscribe adds an observer. Observers added after Start receive only
// events delivered after the call.
func (n *Notifier) Subscribe(o Observer) {
	n.obsMu.Lock()
	n.observers = append(n.observers, o)
	n.obsMu.Unlock()
}

// Emit queues ev for delivery.
func (n *Notifier) Emit(ev Event) {
	if n.stopped.Load() {
		n.dropped.Add(1)
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	select {
	case n.events <- ev:
	default:
		n.dropped.Add(1)
		n.logger.Warn("registration event dropped, buffer full",
			"event", string(ev.Type),
			"endpoint", ev.Client.Endpoint,
		)
	}
}

// Dropped returns the number of events discarded so far.
func (n *Notifier) Dropped() uint64 {
	return n.dropped.Load()
}

// Start begins delivery. Call Stop to shut down.
func (n *Notifier) Start(ctx context.Context) {
	if !n.started.CompareAndSwap(false, true) {
		return
	}
	n.wg.Add(1)
	go n.deliverLoop(context.WithoutCancel(ctx), ctx.Done())
}

// Stop stops accepting events, delivers what is already queued and waits
// for the delivery goroutine. Safe to call multiple times.
func (n *Notifier) Stop() {
	n.stopOnce.Do(func() {
		n.stopped.Store(true)
		close(n.done)
		n.wg.Wait()
	})
}

// deliverLoop runs until Stop or ctx cancellation, then drains the buffer.
func (n *Notifier) deliverLoop(ctx context.Context, cancelled <-chan struct{}) {
	defer n.wg.Done()

	for {
		select {
		case ev := <-n.events:
			n.deliver(ctx, ev)
		case <-n.done:
			n.drain(ctx)
			return
		case <-cancelled:
			n.drain(ctx)
			return
		}
	}
}

func (n *Notifier) drain(ctx context.Context) {
	for {
		select {
		case ev := <-n.events:
			n.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, ev Event) {
	n.obsMu.RLock()
	observers := make([]Observer, len(n.observers))
	copy(observers, n.observers)
	n.obsMu.RUnlock()

	for _, o := range observers {
		n.notify(ctx, o, ev)
	}
}

// notify calls one observer, recovering from panics so a faulty observer
// cannot stop delivery to the others.
func (n *Notifier) notify(ctx context.Context, o Observer, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("registration observer panicked",
				"event", string(ev.Type),
				"endpoint", ev.Client.Endpoint,
				"panic", r,
			)
		}
	}()
	o.RegistrationChanged(ctx, ev)
}
