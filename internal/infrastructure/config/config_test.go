package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: "test-site"
service:
  name: "kitchen"
  label: "Kitchen"
  ports: [7378, 7379]
  advert:
    enabled: true
    interval: 30
cache:
  interval: 500ms
remotes:
  - name: "garage"
    addr: "10.0.0.5:7378"
    cache: true
    write_through: true
    resources:
      - name: "garageDoor"
        addr: "doorOpen"
database:
  path: "/tmp/test.db"
variables:
  - name: "setpoint"
    type: "temp"
    initial: 68
    persist: true
files:
  - name: "mode"
    path: "/tmp/mode"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Site.ID != "test-site" {
		t.Errorf("Site.ID = %q, want %q", cfg.Site.ID, "test-site")
	}
	if cfg.Service.Name != "kitchen" {
		t.Errorf("Service.Name = %q, want %q", cfg.Service.Name, "kitchen")
	}
	if len(cfg.Service.Ports) != 2 || cfg.Service.Ports[1] != 7379 {
		t.Errorf("Service.Ports = %v, want [7378 7379]", cfg.Service.Ports)
	}
	if cfg.Cache.Interval != 500*time.Millisecond {
		t.Errorf("Cache.Interval = %v, want 500ms", cfg.Cache.Interval)
	}
	if got := cfg.GetAdvertInterval(); got != 30*time.Second {
		t.Errorf("GetAdvertInterval() = %v, want 30s", got)
	}
	// Defaults survive for keys the file does not mention.
	if cfg.Service.Advert.Group != "224.0.0.1" || cfg.Service.Advert.Port != 4242 {
		t.Errorf("advert group = %s:%d, want default", cfg.Service.Advert.Group, cfg.Service.Advert.Port)
	}

	if len(cfg.Remotes) != 1 {
		t.Fatalf("len(Remotes) = %d, want 1", len(cfg.Remotes))
	}
	r := cfg.Remotes[0]
	if !r.Cache || !r.WriteThrough || r.Resources[0].Addr != "doorOpen" {
		t.Errorf("remote = %+v", r)
	}
	if r.GetTimeout() != 5*time.Second {
		t.Errorf("GetTimeout() = %v, want default 5s", r.GetTimeout())
	}

	if len(cfg.Variables) != 1 || cfg.Variables[0].Initial != 68 || !cfg.Variables[0].Persist {
		t.Errorf("Variables = %+v", cfg.Variables)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	configPath := writeConfig(t, `
site:
  id: ""
database:
  path: "/tmp/test.db"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty site.id, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing site ID",
			mutate:  func(c *Config) { c.Site.ID = "" },
			wantErr: true,
		},
		{
			name:    "missing service name",
			mutate:  func(c *Config) { c.Service.Name = "" },
			wantErr: true,
		},
		{
			name:    "no ports",
			mutate:  func(c *Config) { c.Service.Ports = nil },
			wantErr: true,
		},
		{
			name:    "port too high",
			mutate:  func(c *Config) { c.Service.Ports = []int{70000} },
			wantErr: true,
		},
		{
			name:    "ephemeral port allowed",
			mutate:  func(c *Config) { c.Service.Ports = []int{0} },
			wantErr: false,
		},
		{
			name:    "bad advert group",
			mutate:  func(c *Config) { c.Service.Advert.Group = "not-an-ip" },
			wantErr: true,
		},
		{
			name: "bad advert group ignored when disabled",
			mutate: func(c *Config) {
				c.Service.Advert.Enabled = false
				c.Service.Advert.Group = "not-an-ip"
			},
			wantErr: false,
		},
		{
			name:    "zero cache interval",
			mutate:  func(c *Config) { c.Cache.Interval = 0 },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "mqtt advert without mqtt",
			mutate:  func(c *Config) { c.Service.Advert.MQTT = true },
			wantErr: true,
		},
		{
			name:    "influx without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
		{
			name: "duplicate remote",
			mutate: func(c *Config) {
				c.Remotes = []RemoteConfig{{Name: "garage"}, {Name: "garage"}}
			},
			wantErr: true,
		},
		{
			name: "remote without addr needs discovery",
			mutate: func(c *Config) {
				c.Discovery.Enabled = false
				c.Remotes = []RemoteConfig{{Name: "garage"}}
			},
			wantErr: true,
		},
		{
			name: "duplicate local resource",
			mutate: func(c *Config) {
				c.Files = []FileConfig{{Name: "mode", Path: "/tmp/mode"}}
				c.Variables = []VariableConfig{{Name: "mode"}}
			},
			wantErr: true,
		},
		{
			name: "file without path",
			mutate: func(c *Config) {
				c.Files = []FileConfig{{Name: "mode"}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		Service: ServiceConfig{
			RetryInterval: 10,
			Timeouts: HTTPTimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}
	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}
	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
	if got := cfg.GetRetryInterval().Seconds(); got != 10 {
		t.Errorf("GetRetryInterval() = %v, want 10", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("GRAYSYNC_SERVICE_NAME", "garage")
	t.Setenv("GRAYSYNC_SERVICE_HOST", "192.168.1.1")
	t.Setenv("GRAYSYNC_SERVICE_PORTS", "7378, 7380")
	t.Setenv("GRAYSYNC_DATABASE_PATH", "/custom/path.db")
	t.Setenv("GRAYSYNC_MQTT_HOST", "mqtt.example.com")
	t.Setenv("GRAYSYNC_MQTT_USERNAME", "testuser")
	t.Setenv("GRAYSYNC_MQTT_PASSWORD", "testpass")
	t.Setenv("GRAYSYNC_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("GRAYSYNC_LOG_LEVEL", "debug")

	applyEnvOverrides(cfg)

	if cfg.Service.Name != "garage" {
		t.Errorf("Service.Name = %q, want %q", cfg.Service.Name, "garage")
	}
	if cfg.Service.Host != "192.168.1.1" {
		t.Errorf("Service.Host = %q, want %q", cfg.Service.Host, "192.168.1.1")
	}
	if len(cfg.Service.Ports) != 2 || cfg.Service.Ports[1] != 7380 {
		t.Errorf("Service.Ports = %v, want [7378 7380]", cfg.Service.Ports)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}
	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
}

func TestApplyEnvOverrides_BadPortsIgnored(t *testing.T) {
	cfg := defaultConfig()
	t.Setenv("GRAYSYNC_SERVICE_PORTS", "7378,abc")

	applyEnvOverrides(cfg)

	if len(cfg.Service.Ports) != 1 || cfg.Service.Ports[0] != 7378 {
		t.Errorf("Service.Ports = %v, want default [7378]", cfg.Service.Ports)
	}
}

func TestPath(t *testing.T) {
	t.Setenv("GRAYSYNC_CONFIG", "")
	if got := Path(); got != DefaultPath {
		t.Errorf("Path() = %q, want %q", got, DefaultPath)
	}
	t.Setenv("GRAYSYNC_CONFIG", "/etc/graysync.yaml")
	if got := Path(); got != "/etc/graysync.yaml" {
		t.Errorf("Path() = %q, want %q", got, "/etc/graysync.yaml")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Site.ID == "" {
		t.Error("defaultConfig should have non-empty Site.ID")
	}
	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if len(cfg.Service.Ports) != 1 || cfg.Service.Ports[0] != 7378 {
		t.Errorf("defaultConfig Service.Ports = %v, want [7378]", cfg.Service.Ports)
	}
	if cfg.Cache.Interval != time.Second {
		t.Errorf("defaultConfig Cache.Interval = %v, want 1s", cfg.Cache.Interval)
	}
}
