package registration

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// DefaultLifetime is the lease length applied when a client omits lt.
const DefaultLifetime = 86400 * time.Second

// Controller implements the Registration Interface state machine. It combines
// the validator and the Registry and reports transitions to an EventSink.
type Controller struct {
	registry        *Registry
	events          EventSink
	defaultLifetime uint32
	logger          Logger
}

// ControllerConfig holds configuration for the controller.
type ControllerConfig struct {
	// Registry holds the live registrations. Required.
	Registry *Registry

	// Events receives registered/updated/deregistered events. Optional.
	Events EventSink

	// DefaultLifetime applies when Register omits lt.
	// Default: 86400 seconds.
	DefaultLifetime time.Duration

	// Logger (optional)
	Logger Logger
}

// NewController creates a controller.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registration: controller requires a registry")
	}

	lifetime := cfg.DefaultLifetime
	if lifetime == 0 {
		lifetime = DefaultLifetime
	}
	seconds := lifetime / time.Second
	if seconds < 1 || seconds > math.MaxUint32 {
		return nil, fmt.Errorf("%w: default lifetime %s", ErrInvalidLifetime, lifetime)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &Controller{
		registry:        cfg.Registry,
		events:          cfg.Events,
		defaultLifetime: uint32(seconds),
		logger:          logger,
	}, nil
}

// Handle dispatches op and returns its outcome. It is safe for concurrent use.
func (c *Controller) Handle(_ context.Context, op Operation) Result {
	var res Result
	switch op.Kind {
	case KindRegister:
		res = c.register(op)
	case KindUpdate:
		res = c.update(op)
	case KindDeregister:
		res = c.deregister(op)
	default:
		status := op.Reject
		if status != StatusMethodNotAllowed {
			status = StatusNotFound
		}
		res = Result{Status: status, Err: fmt.Errorf("unsupported operation: %s", status)}
	}

	c.logResult(op, res)
	return res
}

func (c *Controller) register(op Operation) Result {
	params, err := ValidateRegister(op.Query, op.Payload, c.defaultLifetime)
	if err != nil {
		return failure(err)
	}

	client, err := c.registry.Insert(params)
	if err != nil {
		return failure(err)
	}

	c.emit(EventRegistered, "", client, client.RegisteredAt)
	return Result{Status: StatusCreated, Location: client.Location, Client: client}
}

func (c *Controller) update(op Operation) Result {
	if err := ValidateLocation(op.Location); err != nil {
		return failure(err)
	}
	// Unknown locations are reported before parameter errors.
	if _, err := c.registry.Lookup(op.Location); err != nil {
		return failure(err)
	}

	params, err := ValidateUpdate(op.Query, op.Payload)
	if err != nil {
		return failure(err)
	}

	client, err := c.registry.Refresh(op.Location, params)
	if err != nil {
		return failure(err)
	}

	c.emit(EventUpdated, "", client, client.UpdatedAt)
	return Result{Status: StatusChanged, Client: client}
}

func (c *Controller) deregister(op Operation) Result {
	if err := ValidateLocation(op.Location); err != nil {
		return failure(err)
	}

	client, err := c.registry.Remove(op.Location)
	if err != nil {
		return failure(err)
	}

	c.emit(EventDeregistered, ReasonDeregister, client, c.registry.Now())
	return Result{Status: StatusDeleted, Client: client}
}

// emit publishes an event stamped with the time the change took effect.
func (c *Controller) emit(t EventType, reason string, client *Client, at time.Time) {
	if c.events == nil {
		return
	}
	c.events.Emit(Event{
		Type:   t,
		Reason: reason,
		Client: *client.DeepCopy(),
		Time:   at,
	})
}

// logResult logs successes at info and expected client errors at debug.
// Duplicates from retransmission surface as Conflict or NotFound and are
// not server faults.
func (c *Controller) logResult(op Operation, res Result) {
	args := []any{"operation", op.Kind.String(), "status", res.Status.String()}
	if res.Client != nil {
		args = append(args, "endpoint", res.Client.Endpoint, "location", res.Client.Location)
	} else if op.Location != "" {
		args = append(args, "location", op.Location)
	}

	switch {
	case res.Status.Success():
		c.logger.Info("registration "+op.Kind.String(), args...)
	case res.Status == StatusInternalError || res.Status == StatusServiceUnavailable:
		c.logger.Error("registration operation failed", append(args, "error", res.Err)...)
	default:
		c.logger.Debug("registration request rejected", append(args, "error", res.Err)...)
	}
}

// StatusFor maps an error to its outcome class.
func StatusFor(err error) Status {
	switch {
	case err == nil:
		return StatusInternalError
	case errors.Is(err, ErrBadRequest):
		return StatusBadRequest
	case errors.Is(err, ErrConflict):
		return StatusConflict
	case errors.Is(err, ErrNotFound):
		return StatusNotFound
	case errors.Is(err, ErrClosed):
		return StatusServiceUnavailable
	default:
		return StatusInternalError
	}
}

func failure(err error) Result {
	return Result{Status: StatusFor(err), Err: err}
}
