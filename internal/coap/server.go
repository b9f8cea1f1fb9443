package coap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/mux"
	coapnet "github.com/plgd-dev/go-coap/v3/net"
	"github.com/plgd-dev/go-coap/v3/options"
	"github.com/plgd-dev/go-coap/v3/udp"
	udpserver "github.com/plgd-dev/go-coap/v3/udp/server"

	"github.com/nerrad567/gray-logic-lwm2m/internal/registration"
)

// Handler executes registration operations.
// This is satisfied by *registration.Controller.
type Handler interface {
	Handle(ctx context.Context, op registration.Operation) registration.Result
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds configuration for the CoAP server.
type Config struct {
	// Address is the UDP host:port to listen on. Port 0 picks a free port.
	Address string

	// Handler executes decoded operations. Required.
	Handler Handler

	// Logger (optional)
	Logger Logger
}

// Server is the UDP CoAP endpoint of the registration interface.
//
// Thread Safety: All methods are safe for concurrent use.
type Server struct {
	address string
	handler Handler
	logger  Logger

	mu       sync.Mutex
	server   *udpserver.Server
	listener *coapnet.UDPConn
	started  bool
	serveErr error

	// exited is closed when the serve loop returns.
	exited chan struct{}

	// Shutdown coordination
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewServer creates a server. Call Start to begin listening.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Server{
		address: cfg.Address,
		handler: cfg.Handler,
		logger:  logger,
		exited:  make(chan struct{}),
	}
}

// Start binds the UDP socket and serves requests in the background.
// Bind errors are returned synchronously.
func (s *Server) Start(ctx context.Context) error {
	if s.handler == nil {
		return ErrNoHandler
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}

	l, err := coapnet.NewListenUDP("udp", s.address)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrListenFailed, s.address, err)
	}

	router := mux.NewRouter()
	router.DefaultHandle(mux.HandlerFunc(s.ServeCOAP))

	s.server = udp.NewServer(
		options.WithMux(router),
		options.WithContext(ctx),
		options.WithErrors(func(err error) {
			s.logger.Warn("coap transport error", "error", err)
		}),
	)
	s.listener = l
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(s.exited)
		if err := s.server.Serve(l); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("coap server stopped", "error", err)
			s.mu.Lock()
			s.serveErr = err
			s.mu.Unlock()
		}
	}()

	s.logger.Info("coap server listening", "address", l.LocalAddr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.LocalAddr()
}

// Done is closed when the serve loop exits, after Stop or on a transport
// failure. It never closes for a server that was not started.
func (s *Server) Done() <-chan struct{} {
	return s.exited
}

// Err returns the error that ended the serve loop, or nil after a clean Stop.
func (s *Server) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serveErr
}

// Stop shuts the server down and waits for the serve loop to exit.
// Safe to call multiple times.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		srv, l := s.server, s.listener
		s.mu.Unlock()
		if srv == nil {
			return
		}

		srv.Stop()
		s.wg.Wait()
		if err := l.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("closing coap listener", "error", err)
		}
		s.logger.Info("coap server stopped")
	})
}

// ServeCOAP decodes one request, runs it through the handler and writes the
// response. Handler panics are answered with 5.00.
func (s *Server) ServeCOAP(w mux.ResponseWriter, r *mux.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic handling coap request", "panic", rec)
			s.respond(w, codes.InternalServerError, nil)
		}
	}()

	op, err := decode(r)
	if err != nil {
		s.logger.Debug("malformed coap request", "error", err)
		s.respond(w, codes.BadRequest, []byte(err.Error()))
		return
	}

	res := s.handler.Handle(r.Context(), op)
	if res.Status == registration.StatusInternalError {
		s.logger.Error("registration request failed", "operation", op.Kind.String(), "error", res.Err)
	}
	s.respond(w, ResponseCode(res.Status), diagnostic(res), LocationOptions(res)...)
}

func (s *Server) respond(w mux.ResponseWriter, code codes.Code, body []byte, opts ...message.Option) {
	var payload io.ReadSeeker
	if len(body) > 0 {
		payload = bytes.NewReader(body)
	}
	if err := w.SetResponse(code, message.TextPlain, payload, opts...); err != nil {
		s.logger.Warn("failed to set coap response", "code", code.String(), "error", err)
	}
}

// decode extracts path, queries and payload from a request.
func decode(r *mux.Message) (registration.Operation, error) {
	path, err := r.Path()
	if err != nil && !errors.Is(err, message.ErrOptionNotFound) {
		return registration.Operation{}, fmt.Errorf("reading uri-path: %w", err)
	}
	queries, err := r.Queries()
	if err != nil && !errors.Is(err, message.ErrOptionNotFound) {
		return registration.Operation{}, fmt.Errorf("reading uri-query: %w", err)
	}
	var payload []byte
	if r.Body() != nil {
		if payload, err = r.ReadBody(); err != nil {
			return registration.Operation{}, fmt.Errorf("reading payload: %w", err)
		}
	}
	return Classify(r.Code(), path, queries, payload), nil
}
