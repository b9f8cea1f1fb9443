package registration

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger defines the logging interface used by the registration components.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry is the in-memory set of live client registrations.
//
// Records are indexed by location handle, with a secondary endpoint index
// guaranteeing at most one live registration per endpoint. The lock is held
// only for single map mutations; records handed out are deep copies.
//
// All public methods are thread-safe.
type Registry struct {
	mu        sync.RWMutex
	clients   map[string]*Client // by location handle
	endpoints map[string]string  // endpoint -> location handle
	closed    bool

	now         func() time.Time
	newLocation func() string
	logger      Logger
}

// Stats summarises the registry contents.
type Stats struct {
	Total     int             `json:"total"`
	Queued    int             `json:"queued"`
	ByBinding map[Binding]int `json:"by_binding"`
	ByVersion map[string]int  `json:"by_version"`
}

// NewRegistry creates an empty registry using the wall clock and random
// UUID location handles.
func NewRegistry() *Registry {
	return &Registry{
		clients:     make(map[string]*Client),
		endpoints:   make(map[string]string),
		now:         time.Now,
		newLocation: uuid.NewString,
		logger:      noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetClock replaces the time source. Intended for tests and must be called
// before the registry is shared.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Now returns the registry's current time.
func (r *Registry) Now() time.Time {
	return r.now()
}

// Insert creates a registration for p.Endpoint.
// Returns ErrConflict if the endpoint already has a record.
func (r *Registry) Insert(p RegisterParams) (*Client, error) {
	now := r.now()
	client := &Client{
		Endpoint:     p.Endpoint,
		Lifetime:     p.Lifetime,
		Binding:      p.Binding,
		SMSNumber:    p.SMSNumber,
		Version:      p.Version,
		RootPath:     p.RootPath,
		Objects:      copyLinks(p.Objects),
		RegisteredAt: now,
		UpdatedAt:    now,
	}
	client.ExpiresAt = now.Add(client.LifetimeDuration())

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}
	if loc, exists := r.endpoints[p.Endpoint]; exists {
		return nil, fmt.Errorf("%w: %s (location %s)", ErrConflict, p.Endpoint, loc)
	}

	client.Location = r.newLocation()
	for _, taken := r.clients[client.Location]; taken; _, taken = r.clients[client.Location] {
		client.Location = r.newLocation()
	}

	r.clients[client.Location] = client
	r.endpoints[client.Endpoint] = client.Location

	return client.DeepCopy(), nil
}

// Refresh applies an update to the record at location and restarts its
// lease from now. Returns ErrNotFound if the location is not registered.
func (r *Registry) Refresh(location string, p UpdateParams) (*Client, error) {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.clients[location]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
	}

	next := p.apply(current)
	next.UpdatedAt = now
	next.ExpiresAt = now.Add(next.LifetimeDuration())
	r.clients[location] = next

	return next.DeepCopy(), nil
}

// Remove deletes the record at location and returns it.
// Returns ErrNotFound if the location is not registered.
func (r *Registry) Remove(location string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[location]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
	}
	r.delete(client)

	return client, nil
}

// SweepExpired removes every record whose lease ended at or before now and
// returns the removed records.
//
// Candidates are collected under the read lock; each is then removed under
// its own write lock after re-checking expiry, so a concurrent Update that
// extends a lease wins over the sweep.
func (r *Registry) SweepExpired(now time.Time) []*Client {
	r.mu.RLock()
	var candidates []string
	for loc, c := range r.clients {
		if c.Expired(now) {
			candidates = append(candidates, loc)
		}
	}
	r.mu.RUnlock()

	var removed []*Client
	for _, loc := range candidates {
		r.mu.Lock()
		if c, ok := r.clients[loc]; ok && c.Expired(now) {
			r.delete(c)
			removed = append(removed, c)
		}
		r.mu.Unlock()
	}

	if len(removed) > 0 {
		r.logger.Debug("expired registrations swept", "count", len(removed))
	}
	return removed
}

// Lookup returns the record at location.
// The returned client is a deep copy; callers can safely modify it.
func (r *Registry) Lookup(location string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[location]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
	}
	return c.DeepCopy(), nil
}

// LookupEndpoint returns the record registered under an endpoint name.
func (r *Registry) LookupEndpoint(endpoint string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	loc, ok := r.endpoints[endpoint]
	if !ok {
		return nil, fmt.Errorf("%w: endpoint %s", ErrNotFound, endpoint)
	}
	return r.clients[loc].DeepCopy(), nil
}

// List returns all records ordered by endpoint name.
// The returned clients are deep copies.
func (r *Registry) List() []Client {
	r.mu.RLock()
	clients := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, *c.DeepCopy())
	}
	r.mu.RUnlock()

	sort.Slice(clients, func(i, j int) bool {
		return clients[i].Endpoint < clients[j].Endpoint
	})
	return clients
}

// Count returns the number of live records.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Stats returns counts by binding and version.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{
		Total:     len(r.clients),
		ByBinding: make(map[Binding]int),
		ByVersion: make(map[string]int),
	}
	for _, c := range r.clients {
		s.ByBinding[c.Binding]++
		s.ByVersion[c.Version]++
		if c.Binding.Queued() {
			s.Queued++
		}
	}
	return s
}

// Close drops every record and rejects further registrations.
// It returns the number of records dropped.
func (r *Registry) Close() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.clients)
	r.clients = make(map[string]*Client)
	r.endpoints = make(map[string]string)
	r.closed = true

	r.logger.Info("registry closed", "dropped", n)
	return n
}

// delete removes c from both indexes. Caller must hold the write lock.
func (r *Registry) delete(c *Client) {
	delete(r.clients, c.Location)
	if r.endpoints[c.Endpoint] == c.Location {
		delete(r.endpoints, c.Endpoint)
	}
}
