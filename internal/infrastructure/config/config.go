package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the home gateway.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Topics    TopicsConfig    `yaml:"topics"`
	HTTP      HTTPConfig      `yaml:"http"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Panel     PanelConfig     `yaml:"panel"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

// GatewayConfig identifies this gateway instance.
type GatewayConfig struct {
	ID   string `yaml:"id" env:"HOMEGATE_GATEWAY_ID"`
	Name string `yaml:"name" env:"HOMEGATE_GATEWAY_NAME"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig     `yaml:"broker"`
	Auth      MQTTAuthConfig       `yaml:"auth"`
	QoS       int                  `yaml:"qos" env:"HOMEGATE_MQTT_QOS,strict"`
	Reconnect MQTTReconnectConfig  `yaml:"reconnect"`
	Embedded  EmbeddedBrokerConfig `yaml:"embedded"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host" env:"HOMEGATE_MQTT_HOST"`
	Port     int    `yaml:"port" env:"HOMEGATE_MQTT_PORT,strict"`
	TLS      bool   `yaml:"tls" env:"HOMEGATE_MQTT_TLS,strict"`
	ClientID string `yaml:"client_id" env:"HOMEGATE_MQTT_CLIENT_ID"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username" env:"HOMEGATE_MQTT_USERNAME"`
	Password string `yaml:"password" env:"HOMEGATE_MQTT_PASSWORD"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// EmbeddedBrokerConfig runs an MQTT broker inside the gateway process.
// When enabled the client connects to it instead of an external broker.
type EmbeddedBrokerConfig struct {
	Enabled bool   `yaml:"enabled" env:"HOMEGATE_MQTT_EMBEDDED,strict"`
	Listen  string `yaml:"listen" env:"HOMEGATE_MQTT_EMBEDDED_LISTEN"`
}

// TopicsConfig names every bus topic the gateway publishes or subscribes to.
// Defaults match the deployed device firmware.
type TopicsConfig struct {
	// Outbound commands.
	LightingCommand   string `yaml:"lighting_command"`
	HumidifierCommand string `yaml:"humidifier_command"`
	ServoCommand      string `yaml:"servo_command"`
	SecurityCount     string `yaml:"security_count"`

	// Inbound telemetry and events.
	SecurityWarning  string `yaml:"security_warning"`
	SecurityStatus   string `yaml:"security_status"`
	SensorData       string `yaml:"sensor_data"`
	ServoStatus      string `yaml:"servo_status"`
	OTP              string `yaml:"otp"`
	LightingStatus   string `yaml:"lighting_status"`
	HumidifierStatus string `yaml:"humidifier_status"`

	// GatewayStatus carries the retained online/offline marker (LWT).
	GatewayStatus string `yaml:"gateway_status"`
}

// HTTPConfig contains web listener settings.
type HTTPConfig struct {
	Host     string            `yaml:"host" env:"HOMEGATE_HTTP_HOST"`
	Port     int               `yaml:"port" env:"HOMEGATE_HTTP_PORT,strict"`
	Timeouts HTTPTimeoutConfig `yaml:"timeouts"`
}

// HTTPTimeoutConfig contains HTTP timeout settings, in seconds.
type HTTPTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains live state stream settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool               `yaml:"enabled" env:"HOMEGATE_INFLUXDB_ENABLED,strict"`
	URL           string             `yaml:"url" env:"HOMEGATE_INFLUXDB_URL"`
	Token         string             `yaml:"token" env:"HOMEGATE_INFLUXDB_TOKEN"`
	Org           string             `yaml:"org" env:"HOMEGATE_INFLUXDB_ORG"`
	Bucket        string             `yaml:"bucket" env:"HOMEGATE_INFLUXDB_BUCKET"`
	BatchSize     int                `yaml:"batch_size"`
	FlushInterval int                `yaml:"flush_interval"`
	Measurements  MeasurementsConfig `yaml:"measurements"`
}

// MeasurementsConfig names the time-series measurements telemetry is written to.
type MeasurementsConfig struct {
	Sensor   string `yaml:"sensor"`
	Security string `yaml:"security"`
}

// DatabaseConfig contains SQLite settings for the access audit log.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled" env:"HOMEGATE_DATABASE_ENABLED,strict"`
	Path        string `yaml:"path" env:"HOMEGATE_DATABASE_PATH"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"HOMEGATE_LOG_LEVEL"`
	Format string `yaml:"format" env:"HOMEGATE_LOG_FORMAT"`
	Output string `yaml:"output"`
}

// PanelConfig controls the web control panel.
type PanelConfig struct {
	Title        string   `yaml:"title"`
	Rooms        int      `yaml:"rooms"`
	PollInterval int      `yaml:"poll_interval"`
	Dashboards   []string `yaml:"dashboards"`

	// AssetsDir serves static assets from disk instead of the binary.
	AssetsDir string `yaml:"assets_dir" env:"HOMEGATE_PANEL_ASSETS_DIR"`
}

// IngestConfig controls telemetry ingestion.
type IngestConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern HOMEGATE_SECTION_KEY and are
// declared with env struct tags, for example HOMEGATE_MQTT_HOST.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultTopics returns the topic names the deployed firmware uses.
func DefaultTopics() TopicsConfig {
	return TopicsConfig{
		LightingCommand:   "home/lighting/command",
		HumidifierCommand: "home/humidifier/command",
		ServoCommand:      "home/servo/command",
		SecurityCount:     "home/security/count",
		SecurityWarning:   "home/security/command",
		SecurityStatus:    "home/security/status",
		SensorData:        "home/sensor/data",
		ServoStatus:       "home/servo/status",
		OTP:               "home/otp",
		LightingStatus:    "home/lighting/status",
		HumidifierStatus:  "home/humidifier/status",
		GatewayStatus:     "home/gateway/status",
	}
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			ID:   "homegate-01",
			Name: "Home Automation",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "homegate",
			},
			QoS: 0,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			Embedded: EmbeddedBrokerConfig{
				Listen: ":1883",
			},
		},
		Topics: DefaultTopics(),
		HTTP: HTTPConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Timeouts: HTTPTimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     1,
			FlushInterval: 1,
			Measurements: MeasurementsConfig{
				Sensor:   "ambient",
				Security: "security",
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/homegate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Panel: PanelConfig{
			Title:        "Home Automation",
			Rooms:        5,
			PollInterval: 5,
		},
		Ingest: IngestConfig{
			QueueSize: 64,
		},
	}
}

// applyEnvOverrides applies HOMEGATE_* environment variables declared on the
// config structs. Having none set is not an error. Numeric and boolean fields
// carry the strict tag option so an unparseable value fails the load instead
// of silently keeping the file value.
func applyEnvOverrides(cfg *Config) error {
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return err
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Gateway.ID == "" {
		errs = append(errs, "gateway.id is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if !c.MQTT.Embedded.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required unless mqtt.embedded.enabled is set")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.Embedded.Enabled && c.MQTT.Embedded.Listen == "" {
		errs = append(errs, "mqtt.embedded.listen is required when the embedded broker is enabled")
	}

	for _, topic := range c.Topics.all() {
		if topic.value == "" {
			errs = append(errs, fmt.Sprintf("topics.%s is required", topic.key))
		}
	}

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, "http.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
		if c.InfluxDB.BatchSize < 1 {
			errs = append(errs, "influxdb.batch_size must be at least 1")
		}
	}
	if c.InfluxDB.Measurements.Sensor == "" || c.InfluxDB.Measurements.Security == "" {
		errs = append(errs, "influxdb.measurements.sensor and influxdb.measurements.security are required")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}

	if c.Panel.Rooms < 1 {
		errs = append(errs, "panel.rooms must be at least 1")
	}
	if c.Panel.PollInterval < 1 {
		errs = append(errs, "panel.poll_interval must be at least 1")
	}

	if c.Ingest.QueueSize < 1 {
		errs = append(errs, "ingest.queue_size must be at least 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

type topicEntry struct {
	key   string
	value string
}

// all returns every topic paired with its YAML key, in declaration order.
func (t TopicsConfig) all() []topicEntry {
	return []topicEntry{
		{"lighting_command", t.LightingCommand},
		{"humidifier_command", t.HumidifierCommand},
		{"servo_command", t.ServoCommand},
		{"security_count", t.SecurityCount},
		{"security_warning", t.SecurityWarning},
		{"security_status", t.SecurityStatus},
		{"sensor_data", t.SensorData},
		{"servo_status", t.ServoStatus},
		{"otp", t.OTP},
		{"lighting_status", t.LightingStatus},
		{"humidifier_status", t.HumidifierStatus},
		{"gateway_status", t.GatewayStatus},
	}
}

// GetReadTimeout returns the HTTP read timeout as a Duration.
func (h HTTPConfig) GetReadTimeout() time.Duration {
	return time.Duration(h.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the HTTP write timeout as a Duration.
func (h HTTPConfig) GetWriteTimeout() time.Duration {
	return time.Duration(h.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the HTTP idle timeout as a Duration.
func (h HTTPConfig) GetIdleTimeout() time.Duration {
	return time.Duration(h.Timeouts.Idle) * time.Second
}
