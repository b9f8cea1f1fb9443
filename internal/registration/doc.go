// Package registration implements the LWM2M Registration Interface: the
// Register, Update and De-register operations, the live client registry and
// lifetime expiry.
//
// # Components
//
//   - Validator (ValidateRegister, ValidateUpdate, ParseObjectLinks): pure
//     parameter and CoRE Link Format checks
//   - Registry: location handle to Client map with an endpoint index
//   - Controller: dispatches an Operation to the Registry and builds a Result
//   - Monitor: periodic sweep of expired registrations
//   - Notifier: ordered asynchronous delivery of Events to Observers
//
// # State Machine
//
//	(none) --Register--> Registered --Update--> Registered
//	Registered --Deregister | expiry--> (none)
//
// A record is live from a successful Register until Deregister or until the
// Monitor sweeps it after ExpiresAt. An expired record that has not yet been
// swept still answers Update and still blocks a new Register for the same
// endpoint.
//
// # Concurrency
//
// The Registry holds its lock only for single map operations and never
// during I/O. Lookups return deep copies. Retransmitted requests surface as
// Conflict or NotFound, which are client outcomes rather than server faults.
//
// # Usage
//
//	registry := registration.NewRegistry()
//	notifier := registration.NewNotifier(256)
//	ctrl, err := registration.NewController(registration.ControllerConfig{
//	    Registry: registry,
//	    Events:   notifier,
//	})
//	res := ctrl.Handle(ctx, registration.Operation{
//	    Kind:    registration.KindRegister,
//	    Query:   []string{"ep=node-1", "lt=300"},
//	    Payload: []byte("</1/0>,</3/0>"),
//	})
//	// res.Status == registration.StatusCreated, res.LocationPath() == ["rd", "..."]
package registration
