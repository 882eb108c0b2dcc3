// Package config loads service configuration from config.toml, an optional
// .env file and CPREF_ environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override, e.g. CPREF_DATABASE_PASSWORD
const EnvPrefix = "CPREF"

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Commerce  CommerceConfig
	Sync      SyncConfig
	Telemetry TelemetryConfig
	Profiling ProfilingConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. When disabled, action locks are process-local.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level     string // debug, info, warn, error
	Format    string // json, console
	Output    string // stdout, stderr, or file path
	GormLevel string // silent, error, warn, info
}

// HTTPConfig holds HTTP server timeouts and API limits
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	MaxBodyBytes    int64
	// Per client IP
	RateLimitPerSecond float64
	RateLimitBurst     int
	CORSAllowOrigins   []string
}

// CommerceConfig configures the commerce platform client
type CommerceConfig struct {
	BaseURL           string
	TimeoutSeconds    int
	MaxPages          int
	RequestsPerSecond float64
	Burst             int
}

// SyncConfig configures the periodic order sync
type SyncConfig struct {
	Enabled       bool
	Interval      time.Duration
	Stagger       time.Duration
	RunTimeout    time.Duration
	Workers       int
	LockTTL       time.Duration // per-store sync lock
	ActionLockTTL time.Duration // per-order lifecycle lock
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string  // e.g. "localhost:4317"
	SamplingRatio     float64 // 0.0-1.0
	ServiceName       string
	Insecure          bool // non-TLS collector connection, development only
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	DBSlowQueryThresh time.Duration
}

// ProfilingConfig holds Pyroscope configuration
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string
	BasicAuthUser     string
	BasicAuthPassword string
	SpanProfiles      bool
}

// Load reads configuration. Priority, highest first:
// 1. CPREF_* environment variables (a .env file in the working directory is loaded into the environment first)
// 2. config.toml from ., ./config or /etc/cp-reference
// 3. built-in defaults
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cp-reference")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:     v.GetString("log.level"),
			Format:    v.GetString("log.format"),
			Output:    v.GetString("log.output"),
			GormLevel: v.GetString("log.gorm_level"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			MaxBodyBytes:    v.GetInt64("http.max_body_bytes"),

			RateLimitPerSecond: v.GetFloat64("http.rate_limit_per_second"),
			RateLimitBurst:     v.GetInt("http.rate_limit_burst"),
			CORSAllowOrigins:   v.GetStringSlice("http.cors_allow_origins"),
		},
		Commerce: CommerceConfig{
			BaseURL:           v.GetString("commerce.base_url"),
			TimeoutSeconds:    v.GetInt("commerce.timeout_seconds"),
			MaxPages:          v.GetInt("commerce.max_pages"),
			RequestsPerSecond: v.GetFloat64("commerce.requests_per_second"),
			Burst:             v.GetInt("commerce.burst"),
		},
		Sync: SyncConfig{
			Enabled:       v.GetBool("sync.enabled"),
			Interval:      v.GetDuration("sync.interval"),
			Stagger:       v.GetDuration("sync.stagger"),
			RunTimeout:    v.GetDuration("sync.run_timeout"),
			Workers:       v.GetInt("sync.workers"),
			LockTTL:       v.GetDuration("sync.lock_ttl"),
			ActionLockTTL: v.GetDuration("sync.action_lock_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_thresh"),
		},
		Profiling: ProfilingConfig{
			Enabled:           v.GetBool("profiling.enabled"),
			ServerAddress:     v.GetString("profiling.server_address"),
			BasicAuthUser:     v.GetString("profiling.basic_auth_user"),
			BasicAuthPassword: v.GetString("profiling.basic_auth_password"),
			SpanProfiles:      v.GetBool("profiling.span_profiles"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// applyDefaults fills zero values. Booleans default to false and are not touched.
func applyDefaults(cfg *Config) {
	setDefault(&cfg.App.Name, "cp-reference")
	setDefault(&cfg.App.Env, "development")
	setDefault(&cfg.App.Port, "8080")

	setDefault(&cfg.Database.Host, "localhost")
	setDefault(&cfg.Database.Port, 5432)
	setDefault(&cfg.Database.User, "postgres")
	setDefault(&cfg.Database.DBName, "cp_reference")
	setDefault(&cfg.Database.SSLMode, "disable")
	setDefault(&cfg.Database.MaxOpenConns, 25)
	setDefault(&cfg.Database.MaxIdleConns, 5)
	setDefault(&cfg.Database.ConnMaxLifetime, 5)
	setDefault(&cfg.Database.ConnMaxIdleTime, 5)

	setDefault(&cfg.Redis.Host, "localhost")
	setDefault(&cfg.Redis.Port, 6379)

	setDefault(&cfg.Log.Level, "info")
	setDefault(&cfg.Log.Format, "json")
	setDefault(&cfg.Log.Output, "stdout")
	setDefault(&cfg.Log.GormLevel, "warn")

	setDefault(&cfg.HTTP.ReadTimeout, 30*time.Second)
	setDefault(&cfg.HTTP.WriteTimeout, 30*time.Second)
	setDefault(&cfg.HTTP.IdleTimeout, 120*time.Second)
	setDefault(&cfg.HTTP.ShutdownTimeout, 30*time.Second)
	setDefault(&cfg.HTTP.MaxHeaderBytes, 1<<20)
	setDefault(&cfg.HTTP.MaxBodyBytes, int64(1<<20))
	setDefault(&cfg.HTTP.RateLimitPerSecond, 20.0)
	setDefault(&cfg.HTTP.RateLimitBurst, 40)

	setDefault(&cfg.Commerce.BaseURL, "https://graph.facebook.com/v15.0/")
	setDefault(&cfg.Commerce.TimeoutSeconds, 30)
	setDefault(&cfg.Commerce.MaxPages, 100)
	setDefault(&cfg.Commerce.Burst, 5)

	setDefault(&cfg.Sync.Interval, 15*time.Minute)
	setDefault(&cfg.Sync.Stagger, 5*time.Second)
	setDefault(&cfg.Sync.RunTimeout, 5*time.Minute)
	setDefault(&cfg.Sync.Workers, 4)
	setDefault(&cfg.Sync.LockTTL, 10*time.Minute)
	setDefault(&cfg.Sync.ActionLockTTL, 2*time.Minute)

	setDefault(&cfg.Telemetry.CollectorEndpoint, "localhost:4317")
	setDefault(&cfg.Telemetry.SamplingRatio, 1.0)
	setDefault(&cfg.Telemetry.ServiceName, "cp-reference")
	setDefault(&cfg.Telemetry.MetricsInterval, 60*time.Second)
	setDefault(&cfg.Telemetry.DBSlowQueryThresh, 200*time.Millisecond)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return errors.New("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return errors.New("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Commerce.RequestsPerSecond < 0 {
		return errors.New("commerce.requests_per_second cannot be negative")
	}
	if u, err := url.Parse(c.Commerce.BaseURL); err != nil || !u.IsAbs() {
		return fmt.Errorf("commerce.base_url must be an absolute URL, got %q", c.Commerce.BaseURL)
	}

	if c.Sync.Workers <= 0 {
		return errors.New("sync.workers must be positive")
	}
	if c.Sync.RunTimeout <= 0 || c.Sync.Interval <= 0 {
		return errors.New("sync.interval and sync.run_timeout must be positive")
	}

	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	if c.Profiling.Enabled && c.Profiling.ServerAddress == "" {
		return errors.New("profiling.server_address is required when profiling is enabled")
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return errors.New("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return errors.New("database.sslmode cannot be 'disable' in production")
		}
		if !c.Redis.Enabled {
			return errors.New("redis.enabled must be true in production so action locks span instances")
		}
		if c.Telemetry.Enabled && c.Telemetry.Insecure {
			return errors.New("telemetry.insecure cannot be true in production")
		}
	}

	return nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
