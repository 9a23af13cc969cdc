package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	DriverAuto     = "auto"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverHTTP     = "http"
)

// Config is read from FOCUSSYNC_* environment variables.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Device-local store.
	LocalPath string `envconfig:"LOCAL_PATH" default:"focussync-local.db"`
	DeviceID  string `envconfig:"DEVICE_ID" default:""`
	UserID    string `envconfig:"USER_ID" default:""`

	// Remote store: sqlite/postgres talk to the database directly, http goes
	// through a cloudsync server.
	RemoteDriver   string        `envconfig:"REMOTE_DRIVER" default:"auto"`
	RemoteDSN      string        `envconfig:"REMOTE_DSN" default:"file:focussync-cloud.db"`
	RemoteURL      string        `envconfig:"REMOTE_URL" default:""`
	AuthToken      string        `envconfig:"AUTH_TOKEN" default:""`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`

	MergeCooldown      time.Duration `envconfig:"MERGE_COOLDOWN" default:"5m"`
	ForegroundInterval time.Duration `envconfig:"FOREGROUND_INTERVAL" default:"30s"`
	AnalyticsLocalCap  int           `envconfig:"ANALYTICS_LOCAL_CAP" default:"500"`
	AnalyticsRemoteCap int           `envconfig:"ANALYTICS_REMOTE_CAP" default:"200"`

	// Cloud server. Falls back to a bare PORT variable.
	Port string `envconfig:"PORT" default:"8090"`
}

// Load parses the environment and resolves derived defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("FOCUSSYNC", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ResolveDefaults derives the remote driver when set to auto and validates
// the remaining fields.
func (c *Config) ResolveDefaults() error {
	c.RemoteDriver = strings.ToLower(strings.TrimSpace(c.RemoteDriver))
	c.RemoteURL = strings.TrimRight(strings.TrimSpace(c.RemoteURL), "/")
	c.RemoteDSN = strings.TrimSpace(c.RemoteDSN)

	if c.RemoteDriver == "" || c.RemoteDriver == DriverAuto {
		switch {
		case c.RemoteURL != "":
			c.RemoteDriver = DriverHTTP
		case strings.HasPrefix(c.RemoteDSN, "postgres://"), strings.HasPrefix(c.RemoteDSN, "postgresql://"):
			c.RemoteDriver = DriverPostgres
		default:
			c.RemoteDriver = DriverSQLite
		}
	}

	switch c.RemoteDriver {
	case DriverSQLite, DriverPostgres:
		if c.RemoteDSN == "" {
			return fmt.Errorf("REMOTE_DSN is required for driver %s", c.RemoteDriver)
		}
	case DriverHTTP:
		if c.RemoteURL == "" {
			return fmt.Errorf("REMOTE_URL is required for driver http")
		}
	default:
		return fmt.Errorf("unsupported REMOTE_DRIVER: %s", c.RemoteDriver)
	}

	if c.AnalyticsLocalCap <= 0 {
		c.AnalyticsLocalCap = 500
	}
	if c.AnalyticsRemoteCap <= 0 {
		c.AnalyticsRemoteCap = 200
	}
	if c.MergeCooldown < 0 {
		c.MergeCooldown = 0
	}
	if c.ForegroundInterval <= 0 {
		c.ForegroundInterval = 30 * time.Second
	}
	if strings.TrimSpace(c.Port) == "" {
		c.Port = "8090"
	}
	if strings.TrimSpace(c.DeviceID) == "" {
		if host, err := os.Hostname(); err == nil && strings.TrimSpace(host) != "" {
			c.DeviceID = "focussync-" + host
		} else {
			c.DeviceID = "focussync-device"
		}
	}
	return nil
}
