// Homegate - home automation gateway
//
// This is the main entry point for the gateway. It bridges the house's MQTT
// devices (sensors, people counter, door servo, lights, humidifier) to a
// browser control panel, an InfluxDB time-series store, and a one-time-code
// door entry.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nerrad567/gray-logic-homegate/internal/access"
	"github.com/nerrad567/gray-logic-homegate/internal/api"
	"github.com/nerrad567/gray-logic-homegate/internal/audit"
	"github.com/nerrad567/gray-logic-homegate/internal/dispatch"
	"github.com/nerrad567/gray-logic-homegate/internal/events"
	"github.com/nerrad567/gray-logic-homegate/internal/infrastructure/broker"
	"github.com/nerrad567/gray-logic-homegate/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-homegate/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-homegate/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-homegate/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-homegate/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-homegate/internal/ingest"
	"github.com/nerrad567/gray-logic-homegate/internal/panel"
	"github.com/nerrad567/gray-logic-homegate/internal/state"
	"github.com/nerrad567/gray-logic-homegate/migrations"
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

// eventBusCapacity is the per-subscriber buffer inside the pubsub loop.
const eventBusCapacity = 32

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
// Only a failed MQTT connection aborts startup; the time-series sink and the
// access log degrade to disabled with a warning.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting homegate",
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
		"gateway_id", cfg.Gateway.ID,
	)

	// Embedded broker (optional). The client is pointed at it.
	if cfg.MQTT.Embedded.Enabled {
		b, startErr := broker.Start(cfg.MQTT.Embedded, log.With("component", "broker").Logger)
		if startErr != nil {
			return fmt.Errorf("starting embedded broker: %w", startErr)
		}
		defer func() {
			log.Info("stopping embedded broker")
			if closeErr := b.Close(); closeErr != nil {
				log.Error("error stopping embedded broker", "error", closeErr)
			}
		}()

		host, port, hpErr := b.HostPort()
		if hpErr != nil {
			return fmt.Errorf("resolving embedded broker address: %w", hpErr)
		}
		cfg.MQTT.Broker.Host = host
		cfg.MQTT.Broker.Port = port
		log.Info("embedded broker started", "address", b.Addr())
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT, cfg.Topics.GatewayStatus)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.With("component", "mqtt"))
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

	influxClient := connectInfluxDB(ctx, cfg.InfluxDB, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	db, accessLog := openAccessLog(ctx, cfg.Database, log)
	if db != nil {
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
	}

	store := state.NewStore(cfg.Panel.Rooms)

	bus := events.NewBus(eventBusCapacity)
	defer bus.Close()

	dispatcher := dispatch.New(mqttClient, cfg.Topics, mqttClient.QoS())
	dispatcher.SetLogger(log.With("component", "dispatch"))

	gateOpts := access.Options{
		Codes:     store,
		Door:      dispatcher,
		RequestID: api.RequestIDFromContext,
		Logger:    log.With("component", "access"),
	}
	if accessLog != nil {
		gateOpts.Audit = accessLog
	}
	gate, err := access.New(gateOpts)
	if err != nil {
		return fmt.Errorf("creating access gate: %w", err)
	}

	ingestOpts := ingest.Options{
		Store:        store,
		Subscriber:   mqttClient,
		Topics:       cfg.Topics,
		Measurements: cfg.InfluxDB.Measurements,
		QoS:          mqttClient.QoS(),
		QueueSize:    cfg.Ingest.QueueSize,
		Alerter:      dispatcher,
		Events:       bus,
		Logger:       log.With("component", "ingest"),
	}
	if influxClient != nil {
		ingestOpts.Sink = influxSink{client: influxClient}
	}
	ingestor, err := ingest.New(ingestOpts)
	if err != nil {
		return fmt.Errorf("creating ingestor: %w", err)
	}
	if err := ingestor.Start(ctx); err != nil {
		return fmt.Errorf("starting ingestor: %w", err)
	}
	defer func() {
		log.Info("stopping ingestor")
		ingestor.Stop()
	}()
	log.Info("ingestor started", "queue_size", cfg.Ingest.QueueSize)

	renderer, err := panel.NewRenderer()
	if err != nil {
		return fmt.Errorf("loading panel templates: %w", err)
	}

	deps := api.Deps{
		HTTP:     cfg.HTTP,
		WS:       cfg.WebSocket,
		Panel:    cfg.Panel,
		Logger:   log.With("component", "api"),
		Store:    store,
		Commands: dispatcher,
		Gate:     gate,
		Renderer: renderer,
		Events:   bus,
		Bus:      mqttClient,
		Version:  version,
	}
	if accessLog != nil {
		deps.AccessLog = accessLog
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, mqttClient, server, influxClient, db, log); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API server, ingestor,
	// event bus, database, InfluxDB, MQTT, embedded broker.

	log.Info("homegate stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HOMEGATE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HOMEGATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// connectInfluxDB returns nil when the sink is disabled or unreachable.
func connectInfluxDB(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) *influxdb.Client {
	client, err := influxdb.Connect(ctx, cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil
	}
	if err != nil {
		log.Warn("InfluxDB unavailable, telemetry will not be stored", "error", err)
		return nil
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client
}

// openAccessLog opens the audit database. Both results are nil when the
// access log is disabled or the database could not be prepared.
func openAccessLog(ctx context.Context, cfg config.DatabaseConfig, log *logging.Logger) (*database.DB, *audit.SQLiteRepository) {
	if !cfg.Enabled {
		log.Info("access log disabled")
		return nil, nil
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.Warn("access log unavailable", "error", err)
		return nil, nil
	}
	if err := db.Migrate(ctx, migrations.FS); err != nil {
		log.Warn("access log migrations failed", "error", err)
		//nolint:errcheck // Already degrading; close is best-effort
		db.Close()
		return nil, nil
	}

	log.Info("access log ready", "path", cfg.Path)
	return db, audit.NewSQLiteRepository(db.DB)
}

// healthCheck verifies the bus and HTTP listener. The optional stores only
// produce warnings.
func healthCheck(ctx context.Context, mqttClient *mqtt.Client, server *api.Server, influxClient *influxdb.Client, db *database.DB, log *logging.Logger) error {
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if err := server.HealthCheck(ctx); err != nil {
		return fmt.Errorf("http: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			log.Warn("InfluxDB health check failed", "error", err)
		}
	}
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			log.Warn("database health check failed", "error", err)
		}
	}

	log.Info("all health checks passed")
	return nil
}

// fieldWriter is the part of the InfluxDB client the sink uses.
type fieldWriter interface {
	WriteFields(measurement string, fields map[string]any)
}

// influxSink adapts the InfluxDB client to the ingest Sink interface.
type influxSink struct {
	client fieldWriter
}

// Write implements ingest.Sink.
func (s influxSink) Write(rec ingest.Record) {
	fields := make(map[string]any, len(rec.Fields))
	for _, f := range rec.Fields {
		fields[f.Key] = f.Value
	}
	s.client.WriteFields(rec.Measurement, fields)
}
