// VendLink Core - Vending Machine Fleet Platform
//
// This is the main entry point for the VendLink Core application.
// VendLink Core is the fleet-side service for unattended vending machines:
//   - Device registration and approval workflow
//   - Per-device command queue provisioning over MQTT
//   - Operator accounts, sessions, and audit trail
//   - Registration lifecycle metrics in InfluxDB
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/vendlink/vendlink-core/migrations"

	"github.com/vendlink/vendlink-core/internal/api"
	"github.com/vendlink/vendlink-core/internal/audit"
	"github.com/vendlink/vendlink-core/internal/auth"
	"github.com/vendlink/vendlink-core/internal/infrastructure/config"
	"github.com/vendlink/vendlink-core/internal/infrastructure/database"
	"github.com/vendlink/vendlink-core/internal/infrastructure/influxdb"
	"github.com/vendlink/vendlink-core/internal/infrastructure/logging"
	"github.com/vendlink/vendlink-core/internal/infrastructure/mqtt"
	"github.com/vendlink/vendlink-core/internal/queue"
	"github.com/vendlink/vendlink-core/internal/registration"
	"github.com/vendlink/vendlink-core/internal/telemetry"
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

// pendingGaugeInterval is how often the pending-registration backlog is
// sampled into InfluxDB.
const pendingGaugeInterval = 60 * time.Second

// tokenPurgeInterval is how often expired refresh tokens are deleted.
// Revoked-but-unexpired rows are kept as replay evidence.
const tokenPurgeInterval = time.Hour

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	// This is the Go pattern for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Run the application
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
	log.Info("starting VendLink Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
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
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to MQTT broker
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Set up MQTT logging callbacks
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)

		// Set up InfluxDB error callback
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
	} else {
		log.Info("InfluxDB disabled")
	}

	// Registration service backed by SQLite, provisioning MQTT inbox queues
	regStore := registration.NewSQLiteStore(db.DB)
	provisioner := queue.NewMQTTProvisioner(mqttClient, cfg.MQTT)
	registrations := registration.NewService(regStore, provisioner)
	registrations.SetExpiry(cfg.GetRegistrationExpiry())
	registrations.SetLogger(log)
	log.Info("registration service initialised",
		"pending_expiry", cfg.GetRegistrationExpiry(),
	)

	// Auth repositories and first-boot owner seed
	userRepo := auth.NewUserRepository(db.DB)
	tokenRepo := auth.NewTokenRepository(db.DB)
	if _, seedErr := auth.SeedOwner(ctx, userRepo, log.Logger); seedErr != nil {
		return fmt.Errorf("seeding owner account: %w", seedErr)
	}

	auditRepo := audit.NewSQLiteRepository(db.DB)

	// Start the API server
	var metrics api.LifecycleRecorder
	if influxClient != nil {
		metrics = influxClient
	}
	apiServer, err := api.New(api.Deps{
		Config:        cfg.API,
		Security:      cfg.Security,
		Logger:        log,
		Registrations: registrations,
		UserRepo:      userRepo,
		TokenRepo:     tokenRepo,
		AuditRepo:     auditRepo,
		Metrics:       metrics,
		MQTT:          mqttClient,
		DB:            db.DB,
		Version:       version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()
	log.Info("API server started",
		"address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		"tls", cfg.API.TLS.Enabled,
	)

	// Sample the approval backlog into InfluxDB and ingest machine
	// telemetry from the broker
	if influxClient != nil {
		go samplePendingGauge(ctx, registrations, influxClient, cfg.Fleet.ID, log)

		collector := telemetry.NewCollector(mqttClient, influxClient, log)
		if startErr := collector.Start(); startErr != nil {
			return fmt.Errorf("starting telemetry collector: %w", startErr)
		}
		defer func() {
			if closeErr := collector.Close(); closeErr != nil {
				log.Warn("error stopping telemetry collector", "error", closeErr)
			}
		}()
	}

	// Purge expired refresh tokens in the background
	go purgeExpiredTokens(ctx, tokenRepo, log)

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls will run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT
	// 4. Database

	log.Info("VendLink Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VENDLINK_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VENDLINK_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// samplePendingGauge periodically records the pending-registration count so
// operators can alert on approval backlogs. Runs until ctx is cancelled.
func samplePendingGauge(ctx context.Context, registrations *registration.Service, influxClient *influxdb.Client, fleetID string, log *logging.Logger) {
	ticker := time.NewTicker(pendingGaugeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending, err := registrations.ListPending(ctx)
			if err != nil {
				log.Warn("sampling pending registrations failed", "error", err)
				continue
			}
			influxClient.WritePendingGauge(fleetID, len(pending))
		}
	}
}

// purgeExpiredTokens periodically removes expired refresh tokens so the
// sessions table does not grow without bound. Runs until ctx is cancelled.
func purgeExpiredTokens(ctx context.Context, tokenRepo auth.TokenRepository, log *logging.Logger) {
	ticker := time.NewTicker(tokenPurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := tokenRepo.DeleteExpired(ctx)
			if err != nil {
				log.Warn("purging expired refresh tokens failed", "error", err)
				continue
			}
			if count > 0 {
				log.Info("purged expired refresh tokens", "count", count)
			}
		}
	}
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	// Check database
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	// Check MQTT
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	// Check InfluxDB (if enabled)
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	return nil
}
