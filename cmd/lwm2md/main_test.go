package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-lwm2m/internal/auth"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lwm2m/internal/registration"
)

const testSecret = "test-secret-for-development-only-32chars"

// writeConfig writes content to a temp file and points LWM2M_CONFIG at it.
func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv("LWM2M_CONFIG", path)
}

// freeUDPPort returns a UDP port that was free a moment ago.
func freeUDPPort(t *testing.T) int {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("udp not available: %v", err)
	}
	port := pc.LocalAddr().(*net.UDPAddr).Port
	_ = pc.Close()
	return port
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("LWM2M_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config error", err)
	}
}

// TestRun_CleanShutdown starts the server with only the CoAP listener and
// the audit database, then cancels.
func TestRun_CleanShutdown(t *testing.T) {
	port := freeUDPPort(t)
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	writeConfig(t, fmt.Sprintf(`
coap:
  host: "127.0.0.1"
  port: %d
registration:
  sweep_interval: 1
database:
  enabled: true
  path: %q
api:
  enabled: false
logging:
  level: error
  format: text
  output: stderr
`, port, dbPath))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v, want nil on clean shutdown", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("audit database not created: %v", err)
	}
}

// fakeServed is a servedServer whose serve loop exit is controlled by the test.
type fakeServed struct {
	done chan struct{}
	err  error
}

func (f *fakeServed) Done() <-chan struct{} { return f.done }
func (f *fakeServed) Err() error            { return f.err }

func TestSuperviseCoAP(t *testing.T) {
	transportErr := errors.New("socket closed by peer")

	tests := []struct {
		name       string
		cancel     bool
		exit       bool
		serveErr   error
		wantErr    error
		wantExited bool
	}{
		{name: "shutdown", cancel: true, wantErr: context.Canceled},
		{name: "shutdown also stops serving", cancel: true, exit: true, wantErr: context.Canceled},
		{name: "serve loop failed", exit: true, serveErr: transportErr, wantErr: transportErr, wantExited: true},
		{name: "serve loop ended cleanly", exit: true, wantExited: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			srv := &fakeServed{done: make(chan struct{}), err: tt.serveErr}
			if tt.cancel {
				cancel()
			}
			if tt.exit {
				close(srv.done)
			}

			err := superviseCoAP(ctx, srv)
			if err == nil {
				t.Fatal("superviseCoAP() = nil, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("superviseCoAP() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantExited && !strings.Contains(err.Error(), "coap server exited") {
				t.Errorf("superviseCoAP() error = %v, want coap server exited", err)
			}
		})
	}
}

func TestReportStats_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := reportStats(ctx, logging.Default(), registration.NewRegistry(), registration.NewNotifier(1), nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("reportStats() error = %v, want context.Canceled", err)
	}
}

func TestIssueToken(t *testing.T) {
	writeConfig(t, fmt.Sprintf(`
security:
  jwt:
    secret: %q
`, testSecret))

	var buf bytes.Buffer
	if err := issueToken(&buf, "dm-service", auth.RoleAdmin, time.Hour); err != nil {
		t.Fatalf("issueToken() error = %v", err)
	}

	claims, err := auth.ParseToken(strings.TrimSpace(buf.String()), testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if claims.Subject != "dm-service" || claims.Role != auth.RoleAdmin {
		t.Errorf("claims = %+v, want subject dm-service role admin", claims)
	}
}

func TestIssueToken_Errors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		role    auth.Role
		wantErr error
	}{
		{
			name:   "no secret configured",
			config: "server:\n  id: test\n",
			role:   auth.RoleReader,
		},
		{
			name:    "invalid role",
			config:  fmt.Sprintf("security:\n  jwt:\n    secret: %q\n", testSecret),
			role:    auth.Role("root"),
			wantErr: auth.ErrInvalidRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfig(t, tt.config)

			var buf bytes.Buffer
			err := issueToken(&buf, "svc", tt.role, time.Hour)
			if err == nil {
				t.Fatal("issueToken() expected error, got nil")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("issueToken() error = %v, want %v", err, tt.wantErr)
			}
			if buf.Len() != 0 {
				t.Errorf("issueToken() wrote %q on failure", buf.String())
			}
		})
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("LWM2M_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("LWM2M_CONFIG", "/etc/lwm2m.yaml")
	if got := getConfigPath(); got != "/etc/lwm2m.yaml" {
		t.Errorf("getConfigPath() = %q, want /etc/lwm2m.yaml", got)
	}
}
