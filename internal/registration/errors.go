package registration

import "errors"

// Client-facing error classes. Every error returned by the Validator,
// Registry or Controller matches exactly one of these through errors.Is:
//
//	if errors.Is(err, registration.ErrNotFound) {
//	    // client must re-register
//	}
var (
	// ErrBadRequest is returned for malformed or missing parameters and
	// unparseable payloads.
	ErrBadRequest = errors.New("registration: bad request")

	// ErrConflict is returned when the endpoint already has a live registration.
	ErrConflict = errors.New("registration: endpoint already registered")

	// ErrNotFound is returned when a location is unknown, expired or removed.
	ErrNotFound = errors.New("registration: location not found")
)

// Detailed validation errors. Each wraps ErrBadRequest.
var (
	ErrInvalidEndpoint    = badRequest("invalid endpoint name")
	ErrInvalidLifetime    = badRequest("invalid lifetime")
	ErrInvalidBinding     = badRequest("invalid binding mode")
	ErrInvalidSMSNumber   = badRequest("invalid sms number")
	ErrInvalidVersion     = badRequest("unsupported lwm2m version")
	ErrInvalidPayload     = badRequest("invalid object links")
	ErrInvalidQuery       = badRequest("invalid query parameter")
	ErrDuplicateParameter = badRequest("duplicate query parameter")
)

// ErrClosed is returned once the registry has been torn down at shutdown.
// It is not part of the client-facing taxonomy.
var ErrClosed = errors.New("registration: registry closed")

// detailError is a validation error that also matches ErrBadRequest.
type detailError struct {
	msg string
}

func badRequest(msg string) error {
	return &detailError{msg: "registration: " + msg}
}

func (e *detailError) Error() string { return e.msg }

func (e *detailError) Is(target error) bool { return target == ErrBadRequest }
