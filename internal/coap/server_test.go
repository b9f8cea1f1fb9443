package coap

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"
	"github.com/plgd-dev/go-coap/v3/udp"
	udpclient "github.com/plgd-dev/go-coap/v3/udp/client"

	"github.com/nerrad567/gray-logic-lwm2m/internal/registration"
)

// =============================================================================
// Test Helpers
// =============================================================================

// startServer runs a server on a loopback port, skipping the test when UDP
// sockets are unavailable.
func startServer(t *testing.T, h Handler) *Server {
	t.Helper()
	srv := NewServer(Config{Address: "127.0.0.1:0", Handler: h})
	if err := srv.Start(context.Background()); err != nil {
		if errors.Is(err, ErrListenFailed) {
			t.Skipf("UDP loopback not available: %v", err)
		}
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv
}

func dial(t *testing.T, srv *Server) *udpclient.Conn {
	t.Helper()
	conn, err := udp.Dial(srv.Addr().String())
	if err != nil {
		t.Fatalf("udp.Dial() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() }) //nolint:errcheck // test cleanup
	return conn
}

func requestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func queryOptions(queries ...string) []message.Option {
	opts := make([]message.Option, 0, len(queries))
	for _, q := range queries {
		opts = append(opts, message.Option{ID: message.URIQuery, Value: []byte(q)})
	}
	return opts
}

func locationPath(resp *pool.Message) []string {
	var segments []string
	for _, o := range resp.Options() {
		if o.ID == message.LocationPath {
			segments = append(segments, string(o.Value))
		}
	}
	return segments
}

func newController(t *testing.T) (*registration.Controller, *registration.Registry) {
	t.Helper()
	r := registration.NewRegistry()
	c, err := registration.NewController(registration.ControllerConfig{Registry: r})
	if err != nil {
		t.Fatalf("NewController() error = %v", err)
	}
	return c, r
}

// =============================================================================
// Lifecycle
// =============================================================================

func TestServer_StartErrors(t *testing.T) {
	if err := NewServer(Config{Address: "127.0.0.1:0"}).Start(context.Background()); !errors.Is(err, ErrNoHandler) {
		t.Errorf("Start() without handler error = %v, want ErrNoHandler", err)
	}

	c, _ := newController(t)
	srv := startServer(t, c)
	if err := srv.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}

	if err := NewServer(Config{Address: "not-an-address", Handler: c}).Start(context.Background()); !errors.Is(err, ErrListenFailed) {
		t.Errorf("Start() on bad address error = %v, want ErrListenFailed", err)
	}
}

func TestServer_StopBeforeStart(t *testing.T) {
	srv := NewServer(Config{})
	srv.Stop()
	srv.Stop()
	if srv.Addr() != nil {
		t.Error("Addr() before Start should be nil")
	}
}

func TestServer_DoneAfterStop(t *testing.T) {
	c, _ := newController(t)
	srv := startServer(t, c)

	select {
	case <-srv.Done():
		t.Fatal("Done() closed while serving")
	default:
	}

	srv.Stop()
	select {
	case <-srv.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done() not closed after Stop")
	}
	if err := srv.Err(); err != nil {
		t.Errorf("Err() after Stop = %v, want nil", err)
	}
}

// =============================================================================
// Registration over UDP
// =============================================================================

func TestServer_RegistrationRoundTrip(t *testing.T) {
	c, r := newController(t)
	srv := startServer(t, c)
	conn := dial(t, srv)
	ctx := requestContext(t)

	resp, err := conn.Post(ctx, "/rd", message.AppLinkFormat, bytes.NewReader([]byte("</1/0>,</3/0>")),
		queryOptions("ep=node-1", "lt=120", "b=U")...)
	if err != nil {
		t.Fatalf("Register request error = %v", err)
	}
	if resp.Code() != codes.Created {
		t.Fatalf("Register code = %v, want Created", resp.Code())
	}
	loc := locationPath(resp)
	if len(loc) != 2 || loc[0] != "rd" {
		t.Fatalf("Location-Path = %v, want [rd {handle}]", loc)
	}
	client, err := r.Lookup(loc[1])
	if err != nil || client.Endpoint != "node-1" || client.Lifetime != 120 {
		t.Fatalf("registry record = %+v, %v", client, err)
	}

	resp, err = conn.Post(ctx, "/rd", message.AppLinkFormat, bytes.NewReader([]byte("</1/0>")), queryOptions("ep=node-1")...)
	if err != nil {
		t.Fatalf("duplicate Register error = %v", err)
	}
	if resp.Code() != codeConflict {
		t.Errorf("duplicate Register code = %v, want Conflict", resp.Code())
	}

	resp, err = conn.Put(ctx, "/rd/"+loc[1], message.TextPlain, nil, queryOptions("lt=300")...)
	if err != nil {
		t.Fatalf("Update request error = %v", err)
	}
	if resp.Code() != codes.Changed {
		t.Errorf("Update code = %v, want Changed", resp.Code())
	}
	if client, _ := r.Lookup(loc[1]); client == nil || client.Lifetime != 300 {
		t.Errorf("lifetime not updated: %+v", client)
	}

	resp, err = conn.Delete(ctx, "/rd/"+loc[1])
	if err != nil {
		t.Fatalf("Deregister request error = %v", err)
	}
	if resp.Code() != codes.Deleted {
		t.Errorf("Deregister code = %v, want Deleted", resp.Code())
	}

	resp, err = conn.Delete(ctx, "/rd/"+loc[1])
	if err != nil {
		t.Fatalf("second Deregister request error = %v", err)
	}
	if resp.Code() != codes.NotFound {
		t.Errorf("second Deregister code = %v, want NotFound", resp.Code())
	}
}

func TestServer_RejectedRequests(t *testing.T) {
	c, _ := newController(t)
	srv := startServer(t, c)
	conn := dial(t, srv)
	ctx := requestContext(t)

	resp, err := conn.Post(ctx, "/rd", message.AppLinkFormat, bytes.NewReader([]byte("</1/0>")), queryOptions("lt=60")...)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	if resp.Code() != codes.BadRequest {
		t.Errorf("missing ep code = %v, want BadRequest", resp.Code())
	}
	body, _ := resp.ReadBody()
	if len(body) == 0 {
		t.Error("BadRequest carried no diagnostic payload")
	}

	resp, err = conn.Get(ctx, "/rd")
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	if resp.Code() != codes.MethodNotAllowed {
		t.Errorf("GET /rd code = %v, want MethodNotAllowed", resp.Code())
	}

	resp, err = conn.Post(ctx, "/bs", message.TextPlain, nil)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	if resp.Code() != codes.NotFound {
		t.Errorf("POST /bs code = %v, want NotFound", resp.Code())
	}
}

type panicHandler struct{}

func (panicHandler) Handle(context.Context, registration.Operation) registration.Result {
	panic("handler failure")
}

func TestServer_HandlerPanic(t *testing.T) {
	srv := startServer(t, panicHandler{})
	conn := dial(t, srv)
	ctx := requestContext(t)

	resp, err := conn.Post(ctx, "/rd", message.TextPlain, nil, queryOptions("ep=x")...)
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	if resp.Code() != codes.InternalServerError {
		t.Errorf("code = %v, want InternalServerError", resp.Code())
	}

	// The server keeps serving after a panic.
	resp, err = conn.Delete(ctx, "/rd/x")
	if err != nil {
		t.Fatalf("second request error = %v", err)
	}
	if resp.Code() != codes.InternalServerError {
		t.Errorf("code = %v, want InternalServerError", resp.Code())
	}
}
