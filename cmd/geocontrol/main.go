// GeoControl Core serves the network/gateway/sensor topology and the
// measurement statistics of a geographic sensor deployment over HTTP.
//
// Measurements arrive through the REST API and, when enabled, from gateways
// publishing over MQTT. They can optionally be mirrored to InfluxDB.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/geocontrol/geocontrol-core/migrations"

	"github.com/geocontrol/geocontrol-core/internal/api"
	"github.com/geocontrol/geocontrol-core/internal/audit"
	"github.com/geocontrol/geocontrol-core/internal/auth"
	"github.com/geocontrol/geocontrol-core/internal/infrastructure/config"
	"github.com/geocontrol/geocontrol-core/internal/infrastructure/database"
	"github.com/geocontrol/geocontrol-core/internal/infrastructure/influxdb"
	"github.com/geocontrol/geocontrol-core/internal/infrastructure/logging"
	"github.com/geocontrol/geocontrol-core/internal/infrastructure/mqtt"
	"github.com/geocontrol/geocontrol-core/internal/ingest"
	"github.com/geocontrol/geocontrol-core/internal/measurement"
	"github.com/geocontrol/geocontrol-core/internal/topology"
)

// Set at build time: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled. Deferred
// closes run in reverse start order.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting GeoControl Core", "version", version, "commit", commit, "build_date", date)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "level", cfg.Logging.Level)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	topo := topology.NewSQLiteRepository(db.DB)
	measurements := measurement.NewService(topo, measurement.NewSQLiteRepository(db.DB))
	measurements.SetLogger(log)

	users := auth.NewUserRepository(db.DB)
	if _, seedErr := auth.SeedAdmin(ctx, users, cfg.Security.Bootstrap.AdminUsername, cfg.Security.Bootstrap.AdminPassword, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding admin user: %w", seedErr)
	}
	authSvc := auth.NewService(users, cfg.Security.JWT.Secret, cfg.GetAccessTokenTTL())

	if cfg.InfluxDB.Enabled {
		mirror, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB mirror")
			if closeErr := mirror.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		mirror.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		measurements.SetMirror(measurement.NewPointMirror(mirror))
		log.Info("InfluxDB mirror enabled", "url", cfg.InfluxDB.URL, "org", cfg.InfluxDB.Org, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB mirror disabled")
	}

	if cfg.MQTT.Enabled {
		mqttClient, mqttErr := startIngest(cfg, measurements, log)
		if mqttErr != nil {
			return mqttErr
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
	} else {
		log.Info("MQTT ingest disabled")
	}

	auditLogs := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditLogs, log.Logger, audit.DefaultBuffer)
	defer recorder.Close()

	server, err := api.New(api.Deps{
		Config:       cfg.API,
		Logger:       log,
		Topology:     topo,
		Measurements: measurements,
		Auth:         authSvc,
		Database:     db,
		Audit:        recorder,
		AuditLogs:    auditLogs,
		Metrics:      cfg.Metrics.Enabled,
		Version:      version,
	})
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

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// startIngest connects to the broker and subscribes the measurement ingester.
func startIngest(cfg *config.Config, store ingest.Store, log *logging.Logger) (*mqtt.Client, error) {
	client, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return nil, fmt.Errorf("connecting to MQTT: %w", err)
	}
	client.SetLogger(log)
	client.SetOnConnect(func() {
		log.Info("MQTT connected")
	})
	client.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	ingester := ingest.New(store, cfg.Ingest.TopicPrefix, log)
	// #nosec G115 -- QoS is validated to 0..2 by config.Validate
	if err := ingester.Start(client, byte(cfg.MQTT.QoS)); err != nil {
		client.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("starting MQTT ingest: %w", err)
	}
	return client, nil
}

// getConfigPath honours GEOCONTROL_CONFIG, falling back to configs/config.yaml.
func getConfigPath() string {
	if path := os.Getenv("GEOCONTROL_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
