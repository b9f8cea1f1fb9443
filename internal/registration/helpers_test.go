package registration

import (
	"context"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newTestRegistry returns a registry driven by a fake clock.
func newTestRegistry(t *testing.T) (*Registry, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	r := NewRegistry()
	r.SetClock(clock.Now)
	return r, clock
}

// recordingSink captures emitted events synchronously.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Emit(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *recordingSink) RegistrationChanged(_ context.Context, ev Event) {
	s.Emit(ev)
}

func (s *recordingSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func registerParams(endpoint string, lifetime uint32) RegisterParams {
	iid := uint16(0)
	return RegisterParams{
		Endpoint: endpoint,
		Lifetime: lifetime,
		Binding:  BindingUDP,
		Version:  "1.1",
		RootPath: "/",
		Objects:  []ObjectLink{{ObjectID: 3, InstanceID: &iid}},
	}
}

func ptr[T any](v T) *T { return &v }
