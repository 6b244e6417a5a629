package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// HTTPConfig holds the listen address settings.
type HTTPConfig struct {
	Port string `yaml:"port" env:"HTTP_PORT"`
}

// OCPPConfig holds protocol-level tuning for charge point sessions.
type OCPPConfig struct {
	HeartbeatIntervalSeconds int      `yaml:"heartbeatIntervalSeconds" env:"OCPP_HEARTBEAT_INTERVAL"`
	CallTimeoutSeconds       int      `yaml:"callTimeoutSeconds" env:"OCPP_CALL_TIMEOUT"`
	PingIntervalSeconds      int      `yaml:"pingIntervalSeconds" env:"OCPP_PING_INTERVAL"`
	WriteTimeoutSeconds      int      `yaml:"writeTimeoutSeconds" env:"OCPP_WRITE_TIMEOUT"`
	AllowedIdTags            []string `yaml:"allowedIdTags" env:"OCPP_ALLOWED_ID_TAGS"`
}

// DatabaseConfig holds the PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
}

// RedisConfig holds the optional connection presence mirror settings.
// An empty Addr disables the mirror.
type RedisConfig struct {
	Addr       string `yaml:"addr" env:"REDIS_ADDR"`
	Password   string `yaml:"password" env:"REDIS_PASSWORD"`
	TTLSeconds int    `yaml:"ttlSeconds" env:"REDIS_TTL"`
}

// NATSConfig holds the optional event publisher settings. An empty URL
// disables event publishing.
type NATSConfig struct {
	URL string `yaml:"url" env:"NATS_URL"`
}

// Config defines the central system configuration.
type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	OCPP     OCPPConfig     `yaml:"ocpp"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	NATS     NATSConfig     `yaml:"nats"`
}

// Load reads the optional CONFIG_FILE YAML, applies environment overrides
// and validates required fields.
func Load() (*Config, error) {
	cfg := &Config{
		HTTP: HTTPConfig{Port: "8080"},
		OCPP: OCPPConfig{
			HeartbeatIntervalSeconds: 30,
			CallTimeoutSeconds:       30,
			PingIntervalSeconds:      30,
			WriteTimeoutSeconds:      15,
		},
		Redis: RedisConfig{TTLSeconds: 90},
	}

	if err := loadInto(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Database.DSN) == "" {
		return nil, errors.New("config: database DSN is required")
	}

	return cfg, nil
}

// HTTPAddress returns :port style address.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// HeartbeatInterval returns the interval advertised in BootNotification responses.
func (c *Config) HeartbeatInterval() time.Duration {
	if c.OCPP.HeartbeatIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.OCPP.HeartbeatIntervalSeconds) * time.Second
}

// CallTimeout returns how long an outbound call waits for its result.
func (c *Config) CallTimeout() time.Duration {
	if c.OCPP.CallTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.OCPP.CallTimeoutSeconds) * time.Second
}

// PingInterval returns the websocket ping interval.
func (c *Config) PingInterval() time.Duration {
	if c.OCPP.PingIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.OCPP.PingIntervalSeconds) * time.Second
}

// WriteTimeout returns the websocket write timeout.
func (c *Config) WriteTimeout() time.Duration {
	if c.OCPP.WriteTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.OCPP.WriteTimeoutSeconds) * time.Second
}

// RedisTTL returns the presence key expiry.
func (c *Config) RedisTTL() time.Duration {
	if c.Redis.TTLSeconds <= 0 {
		return 90 * time.Second
	}
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}
