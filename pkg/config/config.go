package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Cloud struct {
		BaseURL        string        `yaml:"base_url"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
		ConfirmTimeout time.Duration `yaml:"confirm_timeout"` // pairing confirm round-trip deadline

		// Retry applies to idempotent cloud requests only; pairing
		// POSTs are single-shot.
		Retry struct {
			Enabled      bool          `yaml:"enabled"`
			MaxAttempts  int           `yaml:"max_attempts"`
			InitialDelay time.Duration `yaml:"initial_delay"`
			MaxDelay     time.Duration `yaml:"max_delay"`
			Multiplier   float64       `yaml:"multiplier"`
		} `yaml:"retry"`

		CircuitBreaker struct {
			FailureThreshold    int           `yaml:"failure_threshold"`
			SuccessThreshold    int           `yaml:"success_threshold"`
			Timeout             time.Duration `yaml:"timeout"`
			MaxRequestsHalfOpen int           `yaml:"max_requests_half_open"`
		} `yaml:"circuit_breaker"`
	} `yaml:"cloud"`

	Channel struct {
		URL             string        `yaml:"url"`
		DialTimeout     time.Duration `yaml:"dial_timeout"`
		PingInterval    time.Duration `yaml:"ping_interval"`
		PongTimeout     time.Duration `yaml:"pong_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		MaxMessageBytes int64         `yaml:"max_message_bytes"`
	} `yaml:"channel"`

	Reconnect struct {
		InitialDelay time.Duration `yaml:"initial_delay"`
		MaxDelay     time.Duration `yaml:"max_delay"`
		Multiplier   float64       `yaml:"multiplier"`
	} `yaml:"reconnect"`

	Media struct {
		ICEServers []struct {
			URLs       []string `yaml:"urls"`
			Username   string   `yaml:"username,omitempty"`
			Credential string   `yaml:"credential,omitempty"`
		} `yaml:"ice_servers"`
		PortRange struct {
			Min uint16 `yaml:"min"`
			Max uint16 `yaml:"max"`
		} `yaml:"port_range"`
		AnswerTimeout    time.Duration `yaml:"answer_timeout"`
		KeyframeInterval time.Duration `yaml:"keyframe_interval"`
	} `yaml:"media"`

	Viewer struct {
		ID          string        `yaml:"id"`
		Name        string        `yaml:"name"`
		ListTimeout time.Duration `yaml:"list_timeout"` // camera list refresh deadline
	} `yaml:"viewer"`

	Auth struct {
		JWTSecret       string        `yaml:"jwt_secret"`
		AccessTokenTTL  time.Duration `yaml:"access_token_ttl"`
		RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
	} `yaml:"auth"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		PoolSize int    `yaml:"pool_size"`

		// CacheTTL fronts favorites reads with an in-process cache;
		// 0 disables it.
		CacheTTL time.Duration `yaml:"cache_ttl"`

		// Batch groups attempt writes into pipelined flushes.
		Batch struct {
			Enabled       bool          `yaml:"enabled"`
			Size          int           `yaml:"size"`
			FlushInterval time.Duration `yaml:"flush_interval"`
		} `yaml:"batch"`
	} `yaml:"redis"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // 0 disables the cap
		} `yaml:"http"`

		Pairing struct {
			AttemptsPerMinute int `yaml:"attempts_per_minute"` // PIN guessing guard
			Burst             int `yaml:"burst"`
		} `yaml:"pairing"`
	} `yaml:"rate_limiting"`

	Backup struct {
		Enabled        bool          `yaml:"enabled"`
		Directory      string        `yaml:"directory"`
		Interval       time.Duration `yaml:"interval"`
		RetentionDays  int           `yaml:"retention_days"`
		RestoreOnStart bool          `yaml:"restore_on_start"`
	} `yaml:"backup"`

	Monitoring struct {
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
	} `yaml:"monitoring"`

	Tracing struct {
		Enabled     bool    `yaml:"enabled"`
		ServiceName string  `yaml:"service_name"`
		JaegerURL   string  `yaml:"jaeger_url"`
		Environment string  `yaml:"environment"`
		SampleRate  float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Cloud
	if c.Cloud.BaseURL == "" {
		return fmt.Errorf("cloud.base_url must not be empty")
	}
	if c.Cloud.RequestTimeout <= 0 {
		return fmt.Errorf("cloud.request_timeout must be > 0")
	}
	if c.Cloud.ConfirmTimeout <= 0 {
		return fmt.Errorf("cloud.confirm_timeout must be > 0")
	}
	if c.Cloud.Retry.Enabled {
		if c.Cloud.Retry.MaxAttempts <= 0 {
			return fmt.Errorf("cloud.retry.max_attempts must be > 0 when retry is enabled")
		}
		if c.Cloud.Retry.Multiplier < 1 {
			return fmt.Errorf("cloud.retry.multiplier must be >= 1")
		}
	}
	if c.Cloud.CircuitBreaker.FailureThreshold <= 0 {
		return fmt.Errorf("cloud.circuit_breaker.failure_threshold must be > 0")
	}
	if c.Cloud.CircuitBreaker.SuccessThreshold <= 0 {
		return fmt.Errorf("cloud.circuit_breaker.success_threshold must be > 0")
	}

	// Channel
	if c.Channel.URL == "" {
		return fmt.Errorf("channel.url must not be empty")
	}
	if c.Channel.DialTimeout <= 0 {
		return fmt.Errorf("channel.dial_timeout must be > 0")
	}
	if c.Channel.PingInterval <= 0 {
		return fmt.Errorf("channel.ping_interval must be > 0")
	}
	if c.Channel.PongTimeout <= 0 {
		return fmt.Errorf("channel.pong_timeout must be > 0")
	}
	if c.Channel.WriteTimeout <= 0 {
		return fmt.Errorf("channel.write_timeout must be > 0")
	}
	if c.Channel.MaxMessageBytes < 0 {
		return fmt.Errorf("channel.max_message_bytes must be >= 0")
	}

	// Reconnect
	if c.Reconnect.InitialDelay <= 0 {
		return fmt.Errorf("reconnect.initial_delay must be > 0")
	}
	if c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		return fmt.Errorf("reconnect.max_delay must be >= initial_delay")
	}
	if c.Reconnect.Multiplier < 1 {
		return fmt.Errorf("reconnect.multiplier must be >= 1")
	}

	// Media
	if c.Media.PortRange.Min > 0 || c.Media.PortRange.Max > 0 {
		if c.Media.PortRange.Min == 0 || c.Media.PortRange.Max == 0 {
			return fmt.Errorf("media.port_range.min and max must both be set when one is set")
		}
		if c.Media.PortRange.Min >= c.Media.PortRange.Max {
			return fmt.Errorf("media.port_range.min must be < max")
		}
	}
	if c.Media.AnswerTimeout <= 0 {
		return fmt.Errorf("media.answer_timeout must be > 0")
	}
	if c.Media.KeyframeInterval <= 0 {
		return fmt.Errorf("media.keyframe_interval must be > 0")
	}

	// Viewer
	if c.Viewer.ListTimeout <= 0 {
		return fmt.Errorf("viewer.list_timeout must be > 0")
	}

	// Auth
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret must not be empty")
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("auth.access_token_ttl must be > 0")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("auth.refresh_token_ttl must be > 0")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
		if c.Redis.CacheTTL < 0 {
			return fmt.Errorf("redis.cache_ttl must be >= 0")
		}
		if c.Redis.Batch.Enabled {
			if c.Redis.Batch.Size <= 0 {
				return fmt.Errorf("redis.batch.size must be > 0 when batching is enabled")
			}
			if c.Redis.Batch.FlushInterval <= 0 {
				return fmt.Errorf("redis.batch.flush_interval must be > 0 when batching is enabled")
			}
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Pairing.AttemptsPerMinute <= 0 {
			return fmt.Errorf("rate_limiting.pairing.attempts_per_minute must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Pairing.Burst <= 0 {
			return fmt.Errorf("rate_limiting.pairing.burst must be > 0 when rate limiting is enabled")
		}
	}

	// Backup
	if c.Backup.Enabled {
		if c.Backup.Directory == "" {
			return fmt.Errorf("backup.directory must not be empty when backup.enabled=true")
		}
		// Archive names carry second resolution, shorter intervals would overwrite
		if c.Backup.Interval < time.Minute {
			return fmt.Errorf("backup.interval must be >= 1m")
		}
		if c.Backup.RetentionDays <= 0 {
			return fmt.Errorf("backup.retention_days must be > 0")
		}
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be between 0 and 1")
		}
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// A .env file feeds the PERCH_* overrides; missing is fine.
	_ = godotenv.Load()

	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Default values
	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Cloud.BaseURL = "http://localhost:8090"
	cfg.Cloud.RequestTimeout = 15 * time.Second
	cfg.Cloud.ConfirmTimeout = 10 * time.Second

	cfg.Cloud.Retry.Enabled = true
	cfg.Cloud.Retry.MaxAttempts = 2
	cfg.Cloud.Retry.InitialDelay = 200 * time.Millisecond
	cfg.Cloud.Retry.MaxDelay = 2 * time.Second
	cfg.Cloud.Retry.Multiplier = 2.0

	cfg.Cloud.CircuitBreaker.FailureThreshold = 5
	cfg.Cloud.CircuitBreaker.SuccessThreshold = 2
	cfg.Cloud.CircuitBreaker.Timeout = 30 * time.Second
	cfg.Cloud.CircuitBreaker.MaxRequestsHalfOpen = 3

	cfg.Channel.URL = "ws://localhost:8091/channel"
	cfg.Channel.DialTimeout = 10 * time.Second
	cfg.Channel.PingInterval = 30 * time.Second
	cfg.Channel.PongTimeout = 60 * time.Second
	cfg.Channel.WriteTimeout = 10 * time.Second
	cfg.Channel.MaxMessageBytes = 64 * 1024

	cfg.Reconnect.InitialDelay = 1 * time.Second
	cfg.Reconnect.MaxDelay = 30 * time.Second
	cfg.Reconnect.Multiplier = 2.0

	cfg.Media.AnswerTimeout = 15 * time.Second
	cfg.Media.KeyframeInterval = 3 * time.Second

	cfg.Viewer.Name = "viewer"
	cfg.Viewer.ListTimeout = 5 * time.Second

	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.AccessTokenTTL = 15 * time.Minute
	cfg.Auth.RefreshTokenTTL = 7 * 24 * time.Hour // 7 days
	cfg.Auth.AllowedOrigins = []string{"*"}

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.CacheTTL = 5 * time.Second

	cfg.Redis.Batch.Enabled = false
	cfg.Redis.Batch.Size = 50
	cfg.Redis.Batch.FlushInterval = 2 * time.Second

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.Pairing.AttemptsPerMinute = 10
	cfg.RateLimiting.Pairing.Burst = 3

	cfg.Backup.Enabled = false
	cfg.Backup.Directory = "backups"
	cfg.Backup.Interval = 6 * time.Hour
	cfg.Backup.RetentionDays = 14
	cfg.Backup.RestoreOnStart = true

	cfg.Monitoring.PrometheusEnabled = true

	cfg.Tracing.Enabled = false
	cfg.Tracing.ServiceName = "perch"
	cfg.Tracing.JaegerURL = "http://localhost:14268/api/traces"
	cfg.Tracing.Environment = "development"
	cfg.Tracing.SampleRate = 1.0

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}

func (c *Config) applyEnvOverrides() {
	// Apply environment variable overrides
	if addr := os.Getenv("PERCH_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if url := os.Getenv("PERCH_CLOUD_BASE_URL"); url != "" {
		c.Cloud.BaseURL = url
	}
	if url := os.Getenv("PERCH_CHANNEL_URL"); url != "" {
		c.Channel.URL = url
	}
	if level := os.Getenv("PERCH_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if secret := os.Getenv("PERCH_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if addr := os.Getenv("PERCH_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
	if id := os.Getenv("PERCH_VIEWER_ID"); id != "" {
		c.Viewer.ID = id
	}
	if name := os.Getenv("PERCH_VIEWER_NAME"); name != "" {
		c.Viewer.Name = name
	}
}
