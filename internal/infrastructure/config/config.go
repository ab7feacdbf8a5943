package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Carrier   CarrierConfig
	Pipeline  PipelineConfig
	Poller    PollerConfig
	Sync      SyncConfig
	Telemetry TelemetryConfig
}

// TelemetryConfig holds distributed tracing configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	Insecure          bool
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
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

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// CarrierConfig holds outbound carrier API settings
type CarrierConfig struct {
	RequestTimeout time.Duration
}

// PipelineConfig holds webhook status pipeline settings
type PipelineConfig struct {
	// DeferWindow is how long an event for an unknown AWB is retried
	// before being rejected
	DeferWindow time.Duration

	// DeferRetryInterval is the delay between re-drives of a deferred event
	DeferRetryInterval time.Duration

	// DedupeTTL is the fast-path dedupe key lifetime
	DedupeTTL time.Duration

	// DedupeEnabled toggles the Redis fast path; the event log still
	// dedupes when disabled
	DedupeEnabled bool
}

// PollerConfig holds background tracking loop settings
type PollerConfig struct {
	TrackingEnabled       bool
	TrackingInterval      time.Duration
	TrackingBatchSize     int
	DeferredRetryEnabled  bool
	DeferredRetryInterval time.Duration
	DeferredRetryBatch    int
}

// SyncConfig holds marketplace sync settings
type SyncConfig struct {
	Enabled             bool
	PageSize            int
	PageBudget          int
	FetchMaxElapsed     time.Duration
	CheckInterval       time.Duration
	OrderInterval       time.Duration
	InventoryInterval   time.Duration
	SettlementInterval  time.Duration
	AmazonMarketplaceID string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with OMS_ prefix (e.g., OMS_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	// Set config file settings
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	// Enable environment variable override
	v.SetEnvPrefix("OMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Build config struct
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
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
		},
		Carrier: CarrierConfig{
			RequestTimeout: v.GetDuration("carrier.request_timeout"),
		},
		Pipeline: PipelineConfig{
			DeferWindow:        v.GetDuration("pipeline.defer_window"),
			DeferRetryInterval: v.GetDuration("pipeline.defer_retry_interval"),
			DedupeTTL:          v.GetDuration("pipeline.dedupe_ttl"),
			DedupeEnabled:      v.GetBool("pipeline.dedupe_enabled"),
		},
		Poller: PollerConfig{
			TrackingEnabled:       v.GetBool("poller.tracking_enabled"),
			TrackingInterval:      v.GetDuration("poller.tracking_interval"),
			TrackingBatchSize:     v.GetInt("poller.tracking_batch_size"),
			DeferredRetryEnabled:  v.GetBool("poller.deferred_retry_enabled"),
			DeferredRetryInterval: v.GetDuration("poller.deferred_retry_interval"),
			DeferredRetryBatch:    v.GetInt("poller.deferred_retry_batch"),
		},
		Sync: SyncConfig{
			Enabled:             v.GetBool("sync.enabled"),
			PageSize:            v.GetInt("sync.page_size"),
			PageBudget:          v.GetInt("sync.page_budget"),
			FetchMaxElapsed:     v.GetDuration("sync.fetch_max_elapsed"),
			CheckInterval:       v.GetDuration("sync.check_interval"),
			OrderInterval:       v.GetDuration("sync.order_interval"),
			InventoryInterval:   v.GetDuration("sync.inventory_interval"),
			SettlementInterval:  v.GetDuration("sync.settlement_interval"),
			AmazonMarketplaceID: v.GetString("sync.amazon_marketplace_id"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
	}

	// Apply defaults for empty values
	applyDefaults(cfg)

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "oms-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "oms"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 15 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 10 << 20 // 10MB
	}
	// NOTE: CORS origins are intentionally not given a default fallback to "*".
	// An empty list means no cross-origin requests are allowed until explicitly configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-Company-ID"}
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 300
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.Carrier.RequestTimeout == 0 {
		cfg.Carrier.RequestTimeout = 30 * time.Second
	}
	if cfg.Pipeline.DeferWindow == 0 {
		cfg.Pipeline.DeferWindow = 30 * time.Minute
	}
	if cfg.Pipeline.DeferRetryInterval == 0 {
		cfg.Pipeline.DeferRetryInterval = 2 * time.Minute
	}
	if cfg.Pipeline.DedupeTTL == 0 {
		cfg.Pipeline.DedupeTTL = 72 * time.Hour
	}
	if cfg.Poller.TrackingInterval == 0 {
		cfg.Poller.TrackingInterval = 15 * time.Minute
	}
	if cfg.Poller.TrackingBatchSize == 0 {
		cfg.Poller.TrackingBatchSize = 100
	}
	if cfg.Poller.DeferredRetryInterval == 0 {
		cfg.Poller.DeferredRetryInterval = time.Minute
	}
	if cfg.Poller.DeferredRetryBatch == 0 {
		cfg.Poller.DeferredRetryBatch = 200
	}
	if cfg.Sync.PageSize == 0 {
		cfg.Sync.PageSize = 100
	}
	if cfg.Sync.PageBudget == 0 {
		cfg.Sync.PageBudget = 50
	}
	if cfg.Sync.FetchMaxElapsed == 0 {
		cfg.Sync.FetchMaxElapsed = 2 * time.Minute
	}
	if cfg.Sync.CheckInterval == 0 {
		cfg.Sync.CheckInterval = time.Minute
	}
	if cfg.Sync.OrderInterval == 0 {
		cfg.Sync.OrderInterval = 15 * time.Minute
	}
	if cfg.Sync.InventoryInterval == 0 {
		cfg.Sync.InventoryInterval = time.Hour
	}
	if cfg.Sync.SettlementInterval == 0 {
		cfg.Sync.SettlementInterval = 24 * time.Hour
	}
	if cfg.Sync.AmazonMarketplaceID == "" {
		cfg.Sync.AmazonMarketplaceID = "ATVPDKIKX0DER"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	// Validate connection pool settings
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Pipeline.DeferRetryInterval > c.Pipeline.DeferWindow {
		return fmt.Errorf("pipeline.defer_retry_interval (%s) cannot exceed pipeline.defer_window (%s)",
			c.Pipeline.DeferRetryInterval, c.Pipeline.DeferWindow)
	}
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("sync.page_size must be positive")
	}
	if c.Sync.PageBudget <= 0 {
		return fmt.Errorf("sync.page_budget must be positive")
	}

	// Production-specific validations
	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		// CORS must not use wildcard in production
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
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
