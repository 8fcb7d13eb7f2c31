package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when GRAYSYNC_CONFIG is not set.
const DefaultPath = "configs/config.yaml"

// Config is the root configuration structure for Gray Logic Sync.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig       `yaml:"site"`
	Service   ServiceConfig    `yaml:"service"`
	Cache     CacheConfig      `yaml:"cache"`
	Remotes   []RemoteConfig   `yaml:"remotes"`
	Discovery DiscoveryConfig  `yaml:"discovery"`
	Database  DatabaseConfig   `yaml:"database"`
	MQTT      MQTTConfig       `yaml:"mqtt"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
	InfluxDB  InfluxDBConfig   `yaml:"influxdb"`
	Logging   LoggingConfig    `yaml:"logging"`
	System    SystemConfig     `yaml:"system"`
	Files     []FileConfig     `yaml:"files"`
	Variables []VariableConfig `yaml:"variables"`
	Metrics   MetricsConfig    `yaml:"metrics"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ServiceConfig describes the locally published service.
type ServiceConfig struct {
	// Name is the advertised service name. Subscribers route advertisements
	// by this name.
	Name  string `yaml:"name"`
	Label string `yaml:"label"`

	// Host is the listen address for the HTTP interface.
	Host string `yaml:"host"`

	// Ports are tried in order until one binds.
	Ports []int `yaml:"ports"`

	// RetryInterval is the pause in seconds between bind rounds.
	RetryInterval int `yaml:"retry_interval"`

	Timeouts HTTPTimeoutConfig `yaml:"timeouts"`
	Advert   AdvertConfig      `yaml:"advert"`
}

// HTTPTimeoutConfig contains HTTP timeout settings in seconds.
type HTTPTimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// AdvertConfig contains advertisement settings.
type AdvertConfig struct {
	Enabled bool `yaml:"enabled"`

	// Interval is the heartbeat period in seconds.
	Interval int `yaml:"interval"`

	Group     string `yaml:"group"`
	Port      int    `yaml:"port"`
	TTL       int    `yaml:"ttl"`
	Interface string `yaml:"interface"`
	Loopback  bool   `yaml:"loopback"`

	// MQTT mirrors every advertisement to the broker when enabled.
	MQTT bool `yaml:"mqtt"`
}

// CacheConfig contains state cache settings.
type CacheConfig struct {
	// Interval is the poll loop tick, e.g. "1s" or "500ms".
	Interval time.Duration `yaml:"interval"`
}

// RemoteConfig describes one remote service to subscribe to.
type RemoteConfig struct {
	Name         string                 `yaml:"name"`
	Addr         string                 `yaml:"addr"`
	Cache        bool                   `yaml:"cache"`
	WriteThrough bool                   `yaml:"write_through"`
	Timeout      int                    `yaml:"timeout"`
	Resources    []RemoteResourceConfig `yaml:"resources"`
}

// RemoteResourceConfig maps a local proxy resource onto a remote resource.
type RemoteResourceConfig struct {
	Name  string   `yaml:"name"`
	Addr  string   `yaml:"addr"` // remote resource name; defaults to Name
	Type  string   `yaml:"type"`
	Label string   `yaml:"label"`
	Group []string `yaml:"group"`
}

// DiscoveryConfig controls the advertisement listener used to follow
// remote services.
type DiscoveryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetention is the number of days of state history to keep.
	// 0 keeps everything.
	HistoryRetention int `yaml:"history_retention"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// WebSocketConfig contains settings for the advertisement stream.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SystemConfig controls the host metrics resources.
type SystemConfig struct {
	Enabled  bool   `yaml:"enabled"`
	DiskPath string `yaml:"disk_path"`

	// Poll is the number of cache ticks between reads.
	Poll int `yaml:"poll"`
}

// FileConfig declares a resource whose state is the content of a file.
type FileConfig struct {
	Name  string   `yaml:"name"`
	Path  string   `yaml:"path"`
	Type  string   `yaml:"type"`
	Label string   `yaml:"label"`
	Group []string `yaml:"group"`
}

// VariableConfig declares an in-memory writable resource.
type VariableConfig struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Label   string   `yaml:"label"`
	Group   []string `yaml:"group"`
	Initial any      `yaml:"initial"`

	// Persist saves every change to the database and restores it on start.
	Persist bool `yaml:"persist"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Path returns the configuration file path from GRAYSYNC_CONFIG, or
// DefaultPath.
func Path() string {
	if v := os.Getenv("GRAYSYNC_CONFIG"); v != "" {
		return v
	}
	return DefaultPath
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYSYNC_SECTION_KEY
// For example: GRAYSYNC_DATABASE_PATH, GRAYSYNC_SERVICE_NAME
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
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Service: ServiceConfig{
			Name:          "graysync",
			Host:          "0.0.0.0",
			Ports:         []int{7378},
			RetryInterval: 10,
			Timeouts: HTTPTimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			Advert: AdvertConfig{
				Enabled:  true,
				Interval: 60,
				Group:    "224.0.0.1",
				Port:     4242,
				TTL:      1,
				Loopback: true,
			},
		},
		Cache: CacheConfig{
			Interval: time.Second,
		},
		Discovery: DiscoveryConfig{
			Enabled: true,
		},
		Database: DatabaseConfig{
			Path:             "./data/graysync.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryRetention: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graysync",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		System: SystemConfig{
			Enabled:  true,
			DiskPath: "/",
			Poll:     10,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYSYNC_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Service
	if v := os.Getenv("GRAYSYNC_SERVICE_NAME"); v != "" {
		cfg.Service.Name = v
	}
	if v := os.Getenv("GRAYSYNC_SERVICE_HOST"); v != "" {
		cfg.Service.Host = v
	}
	if v := os.Getenv("GRAYSYNC_SERVICE_PORTS"); v != "" {
		if ports, err := parsePorts(v); err == nil {
			cfg.Service.Ports = ports
		}
	}
	if v := os.Getenv("GRAYSYNC_ADVERT_INTERFACE"); v != "" {
		cfg.Service.Advert.Interface = v
	}

	// Database
	if v := os.Getenv("GRAYSYNC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYSYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYSYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYSYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYSYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYSYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// parsePorts parses a comma-separated port list such as "7378,7379".
func parsePorts(s string) ([]int, error) {
	var ports []int
	for field := range strings.SplitSeq(s, ",") {
		port, err := strconv.Atoi(strings.TrimSpace(field))
		if err != nil {
			return nil, fmt.Errorf("invalid port %q: %w", field, err)
		}
		ports = append(ports, port)
	}
	return ports, nil
}

// Validate checks the configuration for errors.
//
// All problems are collected and reported together.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Service
	if c.Service.Name == "" {
		errs = append(errs, "service.name is required")
	}
	if len(c.Service.Ports) == 0 {
		errs = append(errs, "service.ports must list at least one port")
	}
	for _, port := range c.Service.Ports {
		if port < 0 || port > 65535 {
			errs = append(errs, fmt.Sprintf("service.ports: %d must be between 0 and 65535", port))
		}
	}
	if c.Service.RetryInterval < 1 {
		errs = append(errs, "service.retry_interval must be at least 1 second")
	}
	if c.Service.Advert.Enabled {
		if c.Service.Advert.Interval < 1 {
			errs = append(errs, "service.advert.interval must be at least 1 second")
		}
		if ip := net.ParseIP(c.Service.Advert.Group); ip == nil || ip.To4() == nil {
			errs = append(errs, "service.advert.group must be an IPv4 address")
		}
		if c.Service.Advert.Port < 1 || c.Service.Advert.Port > 65535 {
			errs = append(errs, "service.advert.port must be between 1 and 65535")
		}
	}

	if c.Cache.Interval <= 0 {
		errs = append(errs, "cache.interval must be positive")
	}

	// Remotes
	remotes := make(map[string]struct{}, len(c.Remotes))
	for i, r := range c.Remotes {
		if r.Name == "" {
			errs = append(errs, fmt.Sprintf("remotes[%d].name is required", i))
			continue
		}
		if _, dup := remotes[r.Name]; dup {
			errs = append(errs, fmt.Sprintf("remotes[%d].name %q is duplicated", i, r.Name))
		}
		remotes[r.Name] = struct{}{}
		if r.Addr == "" && !c.Discovery.Enabled {
			errs = append(errs, fmt.Sprintf("remotes[%d].addr is required when discovery is disabled", i))
		}
		for j, res := range r.Resources {
			if res.Name == "" {
				errs = append(errs, fmt.Sprintf("remotes[%d].resources[%d].name is required", i, j))
			}
		}
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.Service.Advert.MQTT && !c.MQTT.Enabled {
		errs = append(errs, "service.advert.mqtt requires mqtt.enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Local resources share one namespace.
	names := make(map[string]struct{})
	addName := func(kind string, i int, name string) {
		if name == "" {
			errs = append(errs, fmt.Sprintf("%s[%d].name is required", kind, i))
			return
		}
		if _, dup := names[name]; dup {
			errs = append(errs, fmt.Sprintf("%s[%d].name %q is duplicated", kind, i, name))
		}
		names[name] = struct{}{}
	}
	for i, f := range c.Files {
		addName("files", i, f.Name)
		if f.Path == "" {
			errs = append(errs, fmt.Sprintf("files[%d].path is required", i))
		}
	}
	for i, v := range c.Variables {
		addName("variables", i, v.Name)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the HTTP read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.Service.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the HTTP write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.Service.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the HTTP idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.Service.Timeouts.Idle) * time.Second
}

// GetRetryInterval returns the bind retry interval as a Duration.
func (c *Config) GetRetryInterval() time.Duration {
	return time.Duration(c.Service.RetryInterval) * time.Second
}

// GetAdvertInterval returns the advertisement heartbeat as a Duration.
func (c *Config) GetAdvertInterval() time.Duration {
	return time.Duration(c.Service.Advert.Interval) * time.Second
}

// GetTimeout returns the remote request timeout, defaulting to 5 seconds.
func (r RemoteConfig) GetTimeout() time.Duration {
	if r.Timeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(r.Timeout) * time.Second
}
