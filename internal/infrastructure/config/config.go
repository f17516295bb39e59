package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Relay Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service  ServiceConfig  `yaml:"service"`
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Mailer   MailerConfig   `yaml:"mailer"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServiceConfig contains service identity information.
type ServiceConfig struct {
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// EngineConfig contains automation engine settings.
//
// ScanSchedule is a standard five-field cron expression evaluated by the
// scheduler; the engine itself never self-schedules.
type EngineConfig struct {
	ScanSchedule    string         `yaml:"scan_schedule"`
	DispatchTimeout int            `yaml:"dispatch_timeout"` // seconds, per-candidate budget
	Triggers        TriggersConfig `yaml:"triggers"`
}

// TriggersConfig contains the firing-window settings for each trigger type.
type TriggersConfig struct {
	MeetingReminder TriggerWindowConfig `yaml:"meeting_reminder"`
	InvoiceOverdue  TriggerWindowConfig `yaml:"invoice_overdue"`
}

// TriggerWindowConfig defines one trigger's firing window as offsets from
// the scan time, in hours. Negative offsets look into the past.
type TriggerWindowConfig struct {
	Enabled          bool `yaml:"enabled"`
	WindowStartHours int  `yaml:"window_start_hours"`
	WindowEndHours   int  `yaml:"window_end_hours"`
}

// MailerConfig contains email delivery settings.
type MailerConfig struct {
	Endpoint    string `yaml:"endpoint"`
	APIKey      string `yaml:"api_key"`
	FromAddress string `yaml:"from_address"`
	FromName    string `yaml:"from_name"`
	Timeout     int    `yaml:"timeout"` // seconds
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads the configuration from a YAML file.
//
// Values are resolved in three stages: built-in defaults, the YAML file,
// and finally RELAY_* environment variable overrides.
// For example: RELAY_DATABASE_PATH, RELAY_MAILER_API_KEY
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:     "relay-core",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/relay.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Engine: EngineConfig{
			ScanSchedule:    "*/10 * * * *",
			DispatchTimeout: 30,
			Triggers: TriggersConfig{
				MeetingReminder: TriggerWindowConfig{
					Enabled:          true,
					WindowStartHours: 1,
					WindowEndHours:   3,
				},
				InvoiceOverdue: TriggerWindowConfig{
					Enabled:          true,
					WindowStartHours: -72,
					WindowEndHours:   0,
				},
			},
		},
		Mailer: MailerConfig{
			FromName: "Relay",
			Timeout:  15,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "relay-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: RELAY_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("RELAY_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Engine
	if v := os.Getenv("RELAY_ENGINE_SCAN_SCHEDULE"); v != "" {
		cfg.Engine.ScanSchedule = v
	}

	// Mailer (secrets should come from the environment in production)
	if v := os.Getenv("RELAY_MAILER_ENDPOINT"); v != "" {
		cfg.Mailer.Endpoint = v
	}
	if v := os.Getenv("RELAY_MAILER_API_KEY"); v != "" {
		cfg.Mailer.APIKey = v
	}

	// MQTT
	if v := os.Getenv("RELAY_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("RELAY_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("RELAY_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("RELAY_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("RELAY_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// InfluxDB
	if v := os.Getenv("RELAY_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Service.Name == "" {
		errs = append(errs, "service.name is required")
	}
	if c.Service.Timezone != "" {
		if _, err := time.LoadLocation(c.Service.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("service.timezone %q is invalid", c.Service.Timezone))
		}
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Database.BusyTimeout < 0 {
		errs = append(errs, "database.busy_timeout cannot be negative")
	}

	if c.Engine.ScanSchedule == "" {
		errs = append(errs, "engine.scan_schedule is required")
	}
	if c.Engine.DispatchTimeout <= 0 {
		errs = append(errs, "engine.dispatch_timeout must be positive")
	}
	if err := validateWindow("engine.triggers.meeting_reminder", c.Engine.Triggers.MeetingReminder); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateWindow("engine.triggers.invoice_overdue", c.Engine.Triggers.InvoiceOverdue); err != nil {
		errs = append(errs, err.Error())
	}

	if c.Mailer.Endpoint != "" && !strings.HasPrefix(c.Mailer.Endpoint, "http") {
		errs = append(errs, "mailer.endpoint must be an HTTP(S) URL")
	}
	if c.Mailer.Timeout <= 0 {
		errs = append(errs, "mailer.timeout must be positive")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when MQTT is enabled")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when InfluxDB is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when InfluxDB is enabled")
		}
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q is invalid", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// validateWindow checks that a trigger window is well formed.
// A disabled trigger is not validated.
func validateWindow(name string, w TriggerWindowConfig) error {
	if !w.Enabled {
		return nil
	}
	if w.WindowStartHours > w.WindowEndHours {
		return fmt.Errorf("%s: window_start_hours must not exceed window_end_hours", name)
	}
	return nil
}

// GetReadTimeout returns the API read timeout as a time.Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a time.Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a time.Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetDispatchTimeout returns the per-candidate dispatch budget as a time.Duration.
func (c *EngineConfig) GetDispatchTimeout() time.Duration {
	return time.Duration(c.DispatchTimeout) * time.Second
}

// GetTimeout returns the mailer request timeout as a time.Duration.
func (c *MailerConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Window returns the configured trigger window as duration offsets.
func (w TriggerWindowConfig) Window() (start, end time.Duration) {
	return time.Duration(w.WindowStartHours) * time.Hour,
		time.Duration(w.WindowEndHours) * time.Hour
}
