// Gray Logic LWM2M - Registration Interface server
//
// This is the main entry point for the LWM2M registration server. Clients
// register, update and de-register over CoAP/UDP; the registry is kept in
// memory and exposed to collaborators through an optional HTTP API.
//
// Optional integrations, each switched on in the config file:
//   - SQLite audit trail of registration events
//   - MQTT event publishing
//   - InfluxDB registration metrics
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/gray-logic-lwm2m/migrations"

	"github.com/nerrad567/gray-logic-lwm2m/internal/api"
	"github.com/nerrad567/gray-logic-lwm2m/internal/audit"
	"github.com/nerrad567/gray-logic-lwm2m/internal/auth"
	"github.com/nerrad567/gray-logic-lwm2m/internal/coap"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-lwm2m/internal/registration"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

// statsInterval is how often registry size is logged and written to InfluxDB.
const statsInterval = time.Minute

func main() {
	issueFor := flag.String("issue-token", "", "print an API access token for this subject and exit")
	role := flag.String("role", string(auth.RoleReader), "role for -issue-token (reader or admin)")
	ttl := flag.Duration("token-ttl", auth.DefaultTokenTTL, "lifetime for -issue-token")
	flag.Parse()

	if *issueFor != "" {
		if err := issueToken(os.Stdout, *issueFor, auth.Role(*role), *ttl); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Gray Logic LWM2M",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	healthChecks := make(map[string]api.HealthChecker)

	// Client registry and event fan-out
	registry := registration.NewRegistry()
	registry.SetLogger(log.With("component", "registry"))

	notifier := registration.NewNotifier(cfg.Registration.EventBuffer)
	notifier.SetLogger(log.With("component", "events"))

	// Audit trail (optional)
	var auditRepo audit.Repository
	if cfg.Database.Enabled {
		db, dbErr := openAudit(ctx, cfg.Database)
		if dbErr != nil {
			return dbErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("audit trail enabled", "path", db.Path())

		repo := audit.NewSQLiteRepository(db.DB)
		auditRepo = repo
		notifier.Subscribe(audit.NewRecorder(repo, log))
		healthChecks["database"] = db
	}

	// MQTT event publishing (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		notifier.Subscribe(registration.NewMQTTNotifier(mqttClient, log))
		healthChecks["mqtt"] = mqttClient
	}

	// InfluxDB metrics (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Warn("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		notifier.Subscribe(registration.NewMetricsRecorder(influxClient, registry))
		healthChecks["influxdb"] = influxClient
	}

	// Registration interface
	controller, err := registration.NewController(registration.ControllerConfig{
		Registry:        registry,
		Events:          notifier,
		DefaultLifetime: cfg.GetDefaultLifetime(),
		Logger:          log.With("component", "controller"),
	})
	if err != nil {
		return fmt.Errorf("creating controller: %w", err)
	}

	monitor := registration.NewMonitor(registration.MonitorConfig{
		Registry: registry,
		Events:   notifier,
		Interval: cfg.GetSweepInterval(),
		Logger:   log.With("component", "monitor"),
	})

	// Collaborator API (optional). Built before the notifier starts so the
	// WebSocket hub sees every event.
	var apiServer *api.Server
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:       cfg.API,
			WS:           cfg.WebSocket,
			Security:     cfg.Security,
			Logger:       log,
			Registry:     registry,
			Notifier:     notifier,
			AuditRepo:    auditRepo,
			HealthChecks: healthChecks,
			Version:      version,
		}
		if mqttClient != nil {
			deps.MQTT = mqttClient
		}
		apiServer, err = api.New(deps)
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		notifier.Subscribe(apiServer.Hub())
		if cfg.Security.JWT.Secret == "" {
			log.Warn("API authentication disabled: security.jwt.secret is not set")
		}
	}

	notifier.Start(ctx)
	monitor.Start(ctx)

	coapServer := coap.NewServer(coap.Config{
		Address: cfg.CoAPAddress(),
		Handler: controller,
		Logger:  log.With("component", "coap"),
	})
	if err := coapServer.Start(ctx); err != nil {
		stopRegistration(log, monitor, notifier, registry)
		return fmt.Errorf("starting CoAP server: %w", err)
	}

	if apiServer != nil {
		if err := apiServer.Start(ctx); err != nil {
			coapServer.Stop()
			stopRegistration(log, monitor, notifier, registry)
			return fmt.Errorf("starting API server: %w", err)
		}
	}

	log.Info("Gray Logic LWM2M started",
		"coap", cfg.CoAPAddress(),
		"api_enabled", cfg.API.Enabled,
		"audit_enabled", cfg.Database.Enabled,
		"mqtt_enabled", cfg.MQTT.Enabled,
		"influxdb_enabled", cfg.InfluxDB.Enabled,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return superviseCoAP(gctx, coapServer)
	})
	g.Go(func() error {
		return reportStats(gctx, log, registry, notifier, influxClient)
	})
	waitErr := g.Wait()
	if errors.Is(waitErr, context.Canceled) {
		log.Info("shutdown signal received")
		waitErr = nil
	}

	// Reverse order of startup: stop accepting work, then drain events.
	if apiServer != nil {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}
	coapServer.Stop()
	stopRegistration(log, monitor, notifier, registry)

	// Deferred Close() calls will run in reverse order:
	// 1. InfluxDB (if enabled)
	// 2. MQTT (if enabled)
	// 3. Database (if enabled)

	log.Info("Gray Logic LWM2M stopped")
	return waitErr
}

// openAudit opens the audit database and applies migrations.
func openAudit(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// stopRegistration halts sweeping, delivers queued events and drops every
// remaining record.
func stopRegistration(log *logging.Logger, monitor *registration.Monitor, notifier *registration.Notifier, registry *registration.Registry) {
	monitor.Stop()
	notifier.Stop()
	dropped := registry.Close()
	log.Info("registration interface stopped",
		"clients_dropped", dropped,
		"events_dropped", notifier.Dropped(),
	)
}

// servedServer is a background server whose serve loop can end on its own.
// This is satisfied by *coap.Server.
type servedServer interface {
	Done() <-chan struct{}
	Err() error
}

// superviseCoAP returns ctx.Err() on shutdown, or an error if the CoAP serve
// loop exits first so the rest of the process is torn down with it.
func superviseCoAP(ctx context.Context, srv servedServer) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-srv.Done():
		// The serve loop also ends when ctx is cancelled.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := srv.Err(); err != nil {
			return fmt.Errorf("coap server exited: %w", err)
		}
		return errors.New("coap server exited unexpectedly")
	}
}

// reportStats logs registry size and writes it to InfluxDB until ctx is
// done, then returns ctx.Err().
func reportStats(ctx context.Context, log *logging.Logger, registry *registration.Registry, notifier *registration.Notifier, influxClient *influxdb.Client) error {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			stats := registry.Stats()
			log.Debug("registry stats",
				"clients", stats.Total,
				"queued", stats.Queued,
				"events_dropped", notifier.Dropped(),
			)
			if influxClient != nil {
				influxClient.WriteRegistryStats(stats.Total, stats.Queued)
			}
		}
	}
}

// issueToken prints a signed API access token using the configured secret.
func issueToken(w io.Writer, subject string, role auth.Role, ttl time.Duration) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Security.JWT.Secret == "" {
		return errors.New("security.jwt.secret is not set; API authentication is disabled")
	}

	token, err := auth.GenerateAccessToken(subject, role, cfg.Security.JWT.Secret, ttl)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}
	_, err = fmt.Fprintln(w, token)
	return err
}

// getConfigPath returns the configuration file path.
// Uses LWM2M_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("LWM2M_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
