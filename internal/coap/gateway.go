package coap

import (
	"strings"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"

	"github.com/nerrad567/gray-logic-lwm2m/internal/registration"
)

// codeConflict is 4.09 Conflict (RFC 7252 §12.1.2), which go-coap does not
// name.
const codeConflict codes.Code = 4<<5 | 9

// Classify maps a request's method and Uri-Path to a registration
// operation. It never fails: requests that match no operation become
// KindUnknown with the status to reject them with.
func Classify(method codes.Code, path string, queries []string, payload []byte) registration.Operation {
	op := registration.Operation{Query: queries, Payload: payload}

	segments := splitPath(path)
	if len(segments) == 0 || segments[0] != registration.LocationPrefix || len(segments) > 2 {
		op.Reject = registration.StatusNotFound
		return op
	}

	if len(segments) == 1 {
		if method == codes.POST {
			op.Kind = registration.KindRegister
			return op
		}
		op.Reject = registration.StatusMethodNotAllowed
		return op
	}

	op.Location = segments[1]
	switch method {
	case codes.PUT, codes.POST:
		op.Kind = registration.KindUpdate
	case codes.DELETE:
		op.Kind = registration.KindDeregister
	default:
		op.Reject = registration.StatusMethodNotAllowed
	}
	return op
}

// ResponseCode returns the CoAP response code for an operation status.
func ResponseCode(s registration.Status) codes.Code {
	switch s {
	case registration.StatusCreated:
		return codes.Created
	case registration.StatusChanged:
		return codes.Changed
	case registration.StatusDeleted:
		return codes.Deleted
	case registration.StatusBadRequest:
		return codes.BadRequest
	case registration.StatusNotFound:
		return codes.NotFound
	case registration.StatusConflict:
		return codeConflict
	case registration.StatusMethodNotAllowed:
		return codes.MethodNotAllowed
	case registration.StatusServiceUnavailable:
		return codes.ServiceUnavailable
	default:
		return codes.InternalServerError
	}
}

// LocationOptions returns one Location-Path option per segment of a
// Created result, e.g. "rd" and the handle.
func LocationOptions(res registration.Result) []message.Option {
	segments := res.LocationPath()
	opts := make([]message.Option, 0, len(segments))
	for _, seg := range segments {
		opts = append(opts, message.Option{ID: message.LocationPath, Value: []byte(seg)})
	}
	return opts
}

// diagnostic returns the diagnostic payload sent with an error response.
func diagnostic(res registration.Result) []byte {
	if res.Status.Success() || res.Err == nil {
		return nil
	}
	// Internal errors are logged, not echoed to the client.
	if res.Status == registration.StatusInternalError {
		return []byte(registration.StatusInternalError.String())
	}
	return []byte(res.Err.Error())
}

// splitPath splits a Uri-Path into its non-empty segments.
func splitPath(path string) []string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
