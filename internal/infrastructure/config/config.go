package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for VendLink Core. Values come from
// three layers, each overriding the last: built-in defaults, the YAML
// file, then VENDLINK_* environment variables.
type Config struct {
	Fleet        FleetConfig        `yaml:"fleet"`
	Database     DatabaseConfig     `yaml:"database"`
	MQTT         MQTTConfig         `yaml:"mqtt"`
	API          APIConfig          `yaml:"api"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	Logging      LoggingConfig      `yaml:"logging"`
	Security     SecurityConfig     `yaml:"security"`
	Registration RegistrationConfig `yaml:"registration"`
}

// FleetConfig identifies this operator's fleet.
type FleetConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig holds SQLite settings. BusyTimeout is in seconds.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig holds broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig tunes reconnect backoff. Delays are in seconds;
// MaxAttempts of zero retries forever.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig values are in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// InfluxDBConfig holds telemetry store settings. When Enabled is false
// the daemon runs without metrics.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig holds token settings. TTLs are in minutes.
type JWTConfig struct {
	Secret          string `yaml:"secret"`
	AccessTokenTTL  int    `yaml:"access_token_ttl"`
	RefreshTokenTTL int    `yaml:"refresh_token_ttl"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// RegistrationConfig tunes the device registration lifecycle.
type RegistrationConfig struct {
	// ExpiryHours is how long a pending registration remains valid before
	// it is discarded and the device must register again.
	ExpiryHours int `yaml:"expiry_hours"`
}

// Load reads the YAML file at path, layers VENDLINK_* environment
// overrides on top, and validates the result.
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

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Fleet = FleetConfig{ID: "fleet-001", Name: "VendLink", Timezone: "UTC"}
	cfg.Database = DatabaseConfig{Path: "./data/vendlink.db", WALMode: true, BusyTimeout: 5}
	cfg.MQTT.Broker = MQTTBrokerConfig{Host: "localhost", Port: 1883, ClientID: "vendlink-core"}
	cfg.MQTT.QoS = 1
	cfg.MQTT.Reconnect = MQTTReconnectConfig{InitialDelay: 1, MaxDelay: 60}
	cfg.API = APIConfig{
		Host:     "0.0.0.0",
		Port:     8080,
		Timeouts: APITimeoutConfig{Read: 30, Write: 30, Idle: 60},
	}
	cfg.Logging = LoggingConfig{Level: "info", Format: "json", Output: "stdout"}
	cfg.Security.JWT = JWTConfig{AccessTokenTTL: 15, RefreshTokenTTL: 1440}
	cfg.Security.RateLimit = RateLimitConfig{Enabled: true, RequestsPerMinute: 100}
	cfg.Registration = RegistrationConfig{ExpiryHours: 24}
	return cfg
}

// applyEnvOverrides layers VENDLINK_* environment variables over the
// loaded configuration. Only secrets and deployment-specific addresses
// are overridable; everything else belongs in the file.
func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		env    string
		target *string
	}{
		{"VENDLINK_DATABASE_PATH", &cfg.Database.Path},
		{"VENDLINK_MQTT_HOST", &cfg.MQTT.Broker.Host},
		{"VENDLINK_MQTT_USERNAME", &cfg.MQTT.Auth.Username},
		{"VENDLINK_MQTT_PASSWORD", &cfg.MQTT.Auth.Password},
		{"VENDLINK_API_HOST", &cfg.API.Host},
		{"VENDLINK_INFLUXDB_TOKEN", &cfg.InfluxDB.Token},
		{"VENDLINK_JWT_SECRET", &cfg.Security.JWT.Secret},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// Validate reports every configuration error at once so an operator can
// fix a bad file in one pass.
func (c *Config) Validate() error {
	var errs []string
	fail := func(msg string) { errs = append(errs, msg) }

	if c.Fleet.ID == "" {
		fail("fleet.id is required")
	}
	if c.Database.Path == "" {
		fail("database.path is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		fail("mqtt.qos must be 0, 1, or 2")
	}
	if c.API.Port < 1 || c.API.Port > 65535 {
		fail("api.port must be between 1 and 65535")
	}

	// Registration approval gates which devices join the fleet. A forged
	// admin token lets an attacker approve arbitrary machines, so an
	// empty or weak secret is a hard error.
	const minJWTSecretLength = 32
	switch {
	case c.Security.JWT.Secret == "":
		fail("security.jwt.secret is required (set VENDLINK_JWT_SECRET environment variable)")
	case len(c.Security.JWT.Secret) < minJWTSecretLength:
		fail("security.jwt.secret must be at least 32 characters for adequate security")
	}

	if c.Registration.ExpiryHours < 1 {
		fail("registration.expiry_hours must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetRegistrationExpiry returns the pending-registration expiry window as a Duration.
func (c *Config) GetRegistrationExpiry() time.Duration {
	return time.Duration(c.Registration.ExpiryHours) * time.Hour
}
