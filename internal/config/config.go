// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Security SecurityConfig `mapstructure:"security"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Session  SessionConfig  `mapstructure:"session"`
	Link     LinkConfig     `mapstructure:"link"`
	App      AppConfig      `mapstructure:"app"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

// DatabaseConfig represents command/telemetry history database configuration.
// The history store is optional; with Enabled=false the service keeps no
// persistent record of commands or telemetry.
type DatabaseConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	User         string        `mapstructure:"user"`
	Password     string        `mapstructure:"password"`
	DBName       string        `mapstructure:"dbname"`
	SSLMode      string        `mapstructure:"sslmode"`
	MaxOpenConns int           `mapstructure:"max_open_conns"`
	MaxIdleConns int           `mapstructure:"max_idle_conns"`
	MaxLifetime  time.Duration `mapstructure:"max_lifetime"`

	// Retention bounds how long history rows are kept. Zero disables the
	// sweep entirely.
	Retention     time.Duration `mapstructure:"retention"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// SecurityConfig represents security configuration
type SecurityConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// SessionConfig holds the per-session defaults exposed to callers.
// Each option can be overridden per device when the session is created.
type SessionConfig struct {
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	AutoReconnect  ReconnectConfig `mapstructure:"auto_reconnect"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
	Heartbeat      HeartbeatConfig `mapstructure:"heartbeat"`
	ADCStream      ADCStreamConfig `mapstructure:"adc_stream"`
	OTA            OTAConfig       `mapstructure:"ota"`
}

// ReconnectConfig controls automatic reconnection after an unexpected
// transport loss
type ReconnectConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	Delay         time.Duration `mapstructure:"delay"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
}

// RateLimitConfig bounds the outbound command rate per session
type RateLimitConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	MaxPerSecond int  `mapstructure:"max_per_second"`
	MaxWaiters   int  `mapstructure:"max_waiters"`
}

// HeartbeatConfig controls the periodic liveness ping
type HeartbeatConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Interval         time.Duration `mapstructure:"interval"`
	FailureThreshold int           `mapstructure:"failure_threshold"`
}

// ADCStreamConfig controls the periodic analog sampling stream
type ADCStreamConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Pin      int           `mapstructure:"pin"`
	Interval time.Duration `mapstructure:"interval"`
}

// OTAConfig controls firmware transfer framing
type OTAConfig struct {
	ChunkSize  int           `mapstructure:"chunk_size"`
	AckTimeout time.Duration `mapstructure:"ack_timeout"`
}

// LinkConfig represents transport-level defaults
type LinkConfig struct {
	Serial SerialLinkConfig `mapstructure:"serial"`
	Socket SocketLinkConfig `mapstructure:"socket"`
	Cloud  CloudLinkConfig  `mapstructure:"cloud"`
}

// SerialLinkConfig represents serial link defaults
type SerialLinkConfig struct {
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	StopBits int           `mapstructure:"stop_bits"`
	Parity   string        `mapstructure:"parity"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// SocketLinkConfig represents WebSocket/TCP link defaults
type SocketLinkConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
}

// CloudLinkConfig represents MQTT relay defaults
type CloudLinkConfig struct {
	BrokerURL      string        `mapstructure:"broker_url"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	TopicPrefix    string        `mapstructure:"topic_prefix"`
	QoS            int           `mapstructure:"qos"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// AppConfig represents application metadata
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variable support
	viper.SetEnvPrefix("DEVICE_LINK")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read config file; missing file is fine, defaults apply
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", "8090")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	// Database defaults
	viper.SetDefault("database.enabled", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "device_link")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.max_lifetime", "5m")
	viper.SetDefault("database.retention", "720h")
	viper.SetDefault("database.sweep_interval", "1h")

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
	viper.SetDefault("logging.max_size", 100)
	viper.SetDefault("logging.max_backups", 3)
	viper.SetDefault("logging.max_age", 28)
	viper.SetDefault("logging.compress", true)

	// Session defaults
	viper.SetDefault("session.request_timeout", "5s")
	viper.SetDefault("session.auto_reconnect.enabled", true)
	viper.SetDefault("session.auto_reconnect.max_attempts", 3)
	viper.SetDefault("session.auto_reconnect.delay", "2s")
	viper.SetDefault("session.auto_reconnect.backoff_factor", 1.0)
	viper.SetDefault("session.rate_limit.enabled", true)
	viper.SetDefault("session.rate_limit.max_per_second", 8)
	viper.SetDefault("session.rate_limit.max_waiters", 32)
	viper.SetDefault("session.heartbeat.enabled", true)
	viper.SetDefault("session.heartbeat.interval", "10s")
	viper.SetDefault("session.heartbeat.failure_threshold", 3)
	viper.SetDefault("session.adc_stream.enabled", false)
	viper.SetDefault("session.adc_stream.pin", 0)
	viper.SetDefault("session.adc_stream.interval", "1s")
	viper.SetDefault("session.ota.chunk_size", 512)
	viper.SetDefault("session.ota.ack_timeout", "10s")

	// Link defaults
	viper.SetDefault("link.serial.baud_rate", 115200)
	viper.SetDefault("link.serial.data_bits", 8)
	viper.SetDefault("link.serial.stop_bits", 1)
	viper.SetDefault("link.serial.parity", "none")
	viper.SetDefault("link.serial.timeout", "5s")
	viper.SetDefault("link.socket.connect_timeout", "10s")
	viper.SetDefault("link.socket.write_timeout", "10s")
	viper.SetDefault("link.cloud.broker_url", "tcp://localhost:1883")
	viper.SetDefault("link.cloud.topic_prefix", "devices")
	viper.SetDefault("link.cloud.qos", 1)
	viper.SetDefault("link.cloud.connect_timeout", "10s")

	// App defaults
	viper.SetDefault("app.name", "device-link")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Host == "" {
		return fmt.Errorf("server.host is required")
	}
	if config.Server.Port == "" {
		return fmt.Errorf("server.port is required")
	}
	if config.Database.Enabled && config.Database.Host == "" {
		return fmt.Errorf("database.host is required when database is enabled")
	}
	if config.Session.RateLimit.Enabled && config.Session.RateLimit.MaxPerSecond <= 0 {
		return fmt.Errorf("session.rate_limit.max_per_second must be positive")
	}
	if config.Session.AutoReconnect.Enabled && config.Session.AutoReconnect.MaxAttempts <= 0 {
		return fmt.Errorf("session.auto_reconnect.max_attempts must be positive")
	}
	if config.Session.OTA.ChunkSize <= 0 {
		return fmt.Errorf("session.ota.chunk_size must be positive")
	}

	// Validate environment
	validEnvs := []string{"development", "staging", "production", "test"}
	isValidEnv := false
	for _, env := range validEnvs {
		if config.App.Environment == env {
			isValidEnv = true
			break
		}
	}
	if !isValidEnv {
		return fmt.Errorf("app.environment must be one of: %v", validEnvs)
	}

	// Validate logging level
	validLevels := []string{"debug", "info", "warn", "error", "fatal"}
	isValidLevel := false
	for _, level := range validLevels {
		if config.Logging.Level == level {
			isValidLevel = true
			break
		}
	}
	if !isValidLevel {
		return fmt.Errorf("logging.level must be one of: %v", validLevels)
	}

	return nil
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User,
		c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetServerAddr returns the server address
func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// IsProduction checks if the environment is production
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// IsDevelopment checks if the environment is development
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}
