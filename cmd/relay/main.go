// Relay Core - client operations automation service
//
// Relay Core watches a practice's clients, meetings, and invoices and
// fires user-defined automations when entities enter their trigger
// windows: meeting reminders before appointments, overdue notices after
// invoice due dates. Rules are authored in the owner-facing application;
// this service scans, dedups, and dispatches.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/relayhq/relay-core/migrations"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relayhq/relay-core/internal/api"
	"github.com/relayhq/relay-core/internal/automation"
	"github.com/relayhq/relay-core/internal/domain"
	"github.com/relayhq/relay-core/internal/infrastructure/config"
	"github.com/relayhq/relay-core/internal/infrastructure/database"
	"github.com/relayhq/relay-core/internal/infrastructure/influxdb"
	"github.com/relayhq/relay-core/internal/infrastructure/logging"
	"github.com/relayhq/relay-core/internal/infrastructure/mqtt"
	"github.com/relayhq/relay-core/internal/mailer"
	"github.com/relayhq/relay-core/internal/metrics"
	"github.com/relayhq/relay-core/internal/scheduler"
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

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Relay Core",
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

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database and bring the schema up to date
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

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	healthCheckers := map[string]api.HealthChecker{
		"database": db,
	}

	// Connect to MQTT broker (optional event broadcast)
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
		healthCheckers["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional telemetry)
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
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		healthCheckers["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Persistence and domain layers
	repo := automation.NewSQLiteRepository(db.DB)
	ledger := automation.NewSQLiteLedger(db.DB)
	store := domain.NewSQLiteStore(db.DB)

	// Action executors
	mailClient := mailer.NewClient(cfg.Mailer)
	registry := automation.NewRegistry()
	registry.SetLogger(log)
	if err := registry.Register(automation.NewEmailExecutor(mailClient)); err != nil {
		return fmt.Errorf("registering email executor: %w", err)
	}
	for _, stub := range []automation.ActionType{
		automation.ActionCreateInvoice,
		automation.ActionUpdateStatus,
		automation.ActionSendNotification,
	} {
		if err := registry.Register(automation.NewStubExecutor(stub)); err != nil {
			return fmt.Errorf("registering %s executor: %w", stub, err)
		}
	}

	// Engine: scanner + dispatcher over the configured trigger windows
	engine := automation.NewEngine(
		automation.NewScanner(store, repo, ledger, buildTriggers(cfg.Engine.Triggers)),
		automation.NewDispatcher(repo, ledger, registry, store, cfg.Engine.GetDispatchTimeout()),
	)
	engine.SetLogger(log.With("component", "engine"))
	engine.SetMetrics(metrics.NewPrometheusSink(prometheus.DefaultRegisterer))
	if mqttClient != nil {
		engine.SetEventPublisher(mqttClient)
	}
	if influxClient != nil {
		engine.SetTelemetry(influxClient)
	}

	// Scheduler drives periodic scans
	sched := scheduler.New(engine, cfg.Engine.ScanSchedule)
	sched.SetLogger(log.With("component", "scheduler"))
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	// Admin API
	server, err := api.New(api.Deps{
		Config:  cfg.API,
		Logger:  log.With("component", "api"),
		Engine:  engine,
		Repo:    repo,
		Ledger:  ledger,
		Metrics: promhttp.Handler(),
		Health:  healthCheckers,
		Version: version,
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

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. Scheduler
	// 3. InfluxDB (if enabled)
	// 4. MQTT (if enabled)
	// 5. Database

	log.Info("Relay Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses the RELAY_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("RELAY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// buildTriggers converts the configured windows into trigger definitions,
// dropping disabled triggers.
func buildTriggers(cfg config.TriggersConfig) []automation.TriggerDef {
	var triggers []automation.TriggerDef

	if cfg.MeetingReminder.Enabled {
		start, end := cfg.MeetingReminder.Window()
		triggers = append(triggers, automation.TriggerDef{
			Type:        automation.TriggerMeetingReminder,
			WindowStart: start,
			WindowEnd:   end,
		})
	}
	if cfg.InvoiceOverdue.Enabled {
		start, end := cfg.InvoiceOverdue.Window()
		triggers = append(triggers, automation.TriggerDef{
			Type:        automation.TriggerInvoiceOverdue,
			WindowStart: start,
			WindowEnd:   end,
		})
	}

	return triggers
}
