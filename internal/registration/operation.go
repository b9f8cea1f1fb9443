package registration

// Kind tags the Registration Interface operation a request maps to.
type Kind int

// Operation kinds.
const (
	KindUnknown Kind = iota
	KindRegister
	KindUpdate
	KindDeregister
)

// String returns the operation name.
func (k Kind) String() string {
	switch k {
	case KindRegister:
		return "register"
	case KindUpdate:
		return "update"
	case KindDeregister:
		return "deregister"
	default:
		return "unknown"
	}
}

// Operation is a transport-independent Registration Interface request.
type Operation struct {
	Kind Kind

	// Location is the handle addressed by Update and Deregister.
	Location string

	// Query holds the raw "name=value" query parameters in arrival order.
	Query []string

	Payload []byte

	// Reject is the status returned for KindUnknown: StatusNotFound for a
	// path outside the registration tree, StatusMethodNotAllowed for a known
	// path with the wrong method.
	Reject Status
}

// Status is the outcome class of an operation. Transports map it to their
// own response codes.
type Status int

// Operation outcomes.
const (
	StatusCreated Status = iota + 1
	StatusChanged
	StatusDeleted
	StatusBadRequest
	StatusNotFound
	StatusConflict
	StatusMethodNotAllowed
	StatusServiceUnavailable
	StatusInternalError
)

// String returns a human readable status name.
func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusChanged:
		return "changed"
	case StatusDeleted:
		return "deleted"
	case StatusBadRequest:
		return "bad_request"
	case StatusNotFound:
		return "not_found"
	case StatusConflict:
		return "conflict"
	case StatusMethodNotAllowed:
		return "method_not_allowed"
	case StatusServiceUnavailable:
		return "service_unavailable"
	case StatusInternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Success reports whether the status is a 2.xx outcome.
func (s Status) Success() bool {
	return s == StatusCreated || s == StatusChanged || s == StatusDeleted
}

// Result is the outcome of handling an Operation.
type Result struct {
	Status Status

	// Location is set for StatusCreated.
	Location string

	// Client is the record after the operation; nil on failure.
	Client *Client

	Err error
}

// LocationPath returns the Location-Path segments for a Created result,
// e.g. ["rd", "5f0c..."].
func (r Result) LocationPath() []string {
	if r.Location == "" {
		return nil
	}
	return []string{LocationPrefix, r.Location}
}
