// Package config defines the site-portfolio service configuration.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jonesrussell/site-portfolio/infrastructure/circuitbreaker"
	infraconfig "github.com/jonesrussell/site-portfolio/infrastructure/config"
	infrahttp "github.com/jonesrussell/site-portfolio/infrastructure/http"
	infralogger "github.com/jonesrussell/site-portfolio/infrastructure/logger"
	"github.com/jonesrussell/site-portfolio/infrastructure/profiling"
	infraredis "github.com/jonesrussell/site-portfolio/infrastructure/redis"
	infraretry "github.com/jonesrussell/site-portfolio/infrastructure/retry"
)

const (
	defaultServerPort      = 8060
	defaultServerTimeout   = 30
	defaultDatabasePort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5
	defaultRedisAddress    = "localhost:6379"
	defaultMigrationsPath  = "migrations"

	defaultAnalyticsRPS   = 5
	defaultAnalyticsBurst = 5
	defaultHTTPTimeout    = 60 * time.Second

	DefaultSyncDays        = 30
	MaxSyncDays            = 365
	defaultSyncSchedule    = "0 3 * * *"
	defaultSyncTimeout     = 10 * time.Minute
	defaultRecomputeQueue  = 256
	defaultMetadataTimeout = 10 * time.Second
)

// ErrNoCredentials is returned by Analytics.Credentials when neither
// GA_CREDENTIALS nor GA_CREDENTIALS_FILE is set.
var ErrNoCredentials = errors.New("google credentials not configured")

type Config struct {
	Debug     bool                  `env:"APP_DEBUG" yaml:"debug"`
	Server    ServerConfig          `yaml:"server"`
	Database  DatabaseConfig        `yaml:"database"`
	Redis     RedisConfig           `yaml:"redis"`
	Logging   infralogger.Config    `yaml:"logging"`
	Proxy     infrahttp.ProxyConfig `yaml:"proxy"`
	Analytics AnalyticsConfig       `yaml:"analytics"`
	Sync      SyncConfig            `yaml:"sync"`
	Recompute RecomputeConfig       `yaml:"recompute"`
	Metadata  MetadataConfig        `yaml:"metadata"`
	Profiling profiling.Config      `yaml:"profiling"`
}

type ServerConfig struct {
	Host         string        `env:"SERVER_HOST"  yaml:"host"`
	Port         int           `env:"SERVER_PORT"  yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" yaml:"cors_origins"`
}

// DatabaseConfig accepts either a full DATABASE_URL or discrete fields; the
// URL wins when both are set.
type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"    yaml:"url"`
	Host            string        `env:"DB_HOST"         yaml:"host"`
	Port            int           `env:"DB_PORT"         yaml:"port"`
	User            string        `env:"DB_USER"         yaml:"user"`
	Password        string        `env:"DB_PASSWORD"     yaml:"password"`
	DBName          string        `env:"DB_NAME"         yaml:"dbname"`
	SSLMode         string        `env:"DB_SSLMODE"      yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MigrationsPath  string        `env:"MIGRATIONS_PATH" yaml:"migrations_path"`
}

// RedisConfig adds the stream name to the shared connection settings.
type RedisConfig struct {
	infraredis.Config `yaml:",inline"`
	Stream            string `env:"REDIS_EVENTS_STREAM" yaml:"stream"`
}

// AnalyticsConfig configures the Google Analytics / Search Console clients.
type AnalyticsConfig struct {
	// CredentialsJSON is a service-account key; CredentialsFile is read when
	// it is empty.
	CredentialsJSON   string                `env:"GA_CREDENTIALS"      yaml:"credentials"`
	CredentialsFile   string                `env:"GA_CREDENTIALS_FILE" yaml:"credentials_file"`
	RequestsPerSecond float64               `yaml:"requests_per_second"`
	Burst             int                   `yaml:"burst"`
	HTTPTimeout       time.Duration         `yaml:"http_timeout"`
	Retry             infraretry.Config     `yaml:"retry"`
	Breaker           circuitbreaker.Config `yaml:"breaker"`
}

type SyncConfig struct {
	// ScheduleEnabled turns on the cron-driven sync of all sites.
	ScheduleEnabled bool          `env:"SYNC_SCHEDULE_ENABLED" yaml:"schedule_enabled"`
	Schedule        string        `env:"SYNC_SCHEDULE"         yaml:"schedule"`
	DefaultDays     int           `yaml:"default_days"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

type RecomputeConfig struct {
	QueueSize int `env:"RECOMPUTE_QUEUE_SIZE" yaml:"queue_size"`
}

type MetadataConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// DSN returns the lib/pq connection string.
func (d *DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// MigrateURL returns a postgres:// URL for golang-migrate.
func (d *DatabaseConfig) MigrateURL() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:     "/" + d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

// Credentials returns the service-account JSON.
func (a *AnalyticsConfig) Credentials() ([]byte, error) {
	if a.CredentialsJSON != "" {
		return []byte(a.CredentialsJSON), nil
	}
	if a.CredentialsFile == "" {
		return nil, ErrNoCredentials
	}
	data, err := os.ReadFile(a.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	return data, nil
}

func (c *Config) Validate() error {
	if err := infraconfig.ValidatePort("server.port", c.Server.Port); err != nil {
		return err
	}
	if c.Database.URL == "" {
		if err := infraconfig.ValidateRequired("database.host", c.Database.Host); err != nil {
			return err
		}
		if err := infraconfig.ValidatePort("database.port", c.Database.Port); err != nil {
			return err
		}
		if err := infraconfig.ValidateRequired("database.user", c.Database.User); err != nil {
			return err
		}
		if err := infraconfig.ValidateRequired("database.dbname", c.Database.DBName); err != nil {
			return err
		}
	}
	if err := infraconfig.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.Redis.Enabled {
		if err := infraconfig.ValidateRequired("redis.address", c.Redis.Address); err != nil {
			return err
		}
	}
	if c.Sync.DefaultDays < 1 || c.Sync.DefaultDays > MaxSyncDays {
		return &infraconfig.ValidationError{Field: "sync.default_days", Message: fmt.Sprintf("must be between 1 and %d", MaxSyncDays)}
	}
	if c.Sync.ScheduleEnabled {
		if _, err := cron.ParseStandard(c.Sync.Schedule); err != nil {
			return &infraconfig.ValidationError{Field: "sync.schedule", Message: err.Error()}
		}
	}
	if c.Analytics.RequestsPerSecond <= 0 {
		return &infraconfig.ValidationError{Field: "analytics.requests_per_second", Message: "must be positive"}
	}
	if c.Recompute.QueueSize < 1 {
		return &infraconfig.ValidationError{Field: "recompute.queue_size", Message: "must be positive"}
	}
	return nil
}

// Load reads path, applies defaults and validates.
func Load(path string) (*Config, error) {
	cfg, err := infraconfig.LoadWithDefaults(path, setDefaults)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultServerPort
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultServerTimeout * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		// Sync requests run long; the write timeout must cover them.
		cfg.Server.WriteTimeout = defaultSyncTimeout + defaultServerTimeout*time.Second
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	}

	setDatabaseDefaults(&cfg.Database)

	if cfg.Redis.Address == "" {
		cfg.Redis.Address = defaultRedisAddress
	}
	cfg.Logging.SetDefaults()

	if cfg.Analytics.RequestsPerSecond == 0 {
		cfg.Analytics.RequestsPerSecond = defaultAnalyticsRPS
	}
	if cfg.Analytics.Burst == 0 {
		cfg.Analytics.Burst = defaultAnalyticsBurst
	}
	if cfg.Analytics.HTTPTimeout == 0 {
		cfg.Analytics.HTTPTimeout = defaultHTTPTimeout
	}

	if cfg.Sync.Schedule == "" {
		cfg.Sync.Schedule = defaultSyncSchedule
	}
	if cfg.Sync.DefaultDays == 0 {
		cfg.Sync.DefaultDays = DefaultSyncDays
	}
	if cfg.Sync.RequestTimeout == 0 {
		cfg.Sync.RequestTimeout = defaultSyncTimeout
	}

	if cfg.Recompute.QueueSize == 0 {
		cfg.Recompute.QueueSize = defaultRecomputeQueue
	}
	if cfg.Metadata.Timeout == 0 {
		cfg.Metadata.Timeout = defaultMetadataTimeout
	}
	if cfg.Metadata.UserAgent == "" {
		cfg.Metadata.UserAgent = "site-portfolio/1.0 (+metadata)"
	}
}

func setDatabaseDefaults(d *DatabaseConfig) {
	if d.Port == 0 {
		d.Port = defaultDatabasePort
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}
	if d.MaxOpenConns == 0 {
		d.MaxOpenConns = defaultMaxOpenConns
	}
	if d.MaxIdleConns == 0 {
		d.MaxIdleConns = defaultMaxIdleConns
	}
	if d.ConnMaxLifetime == 0 {
		d.ConnMaxLifetime = defaultConnMaxLifetime * time.Minute
	}
	if d.MigrationsPath == "" {
		d.MigrationsPath = defaultMigrationsPath
	}
}
