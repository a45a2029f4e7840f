package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every environment variable name (PORTICO_LISTEN_ADDR, ...).
const Prefix = "PORTICO"

type Config struct {
	ListenAddr      string        `envconfig:"LISTEN_ADDR" default:":8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"` // "debug" | "info" | "warn" | "error"
	PrettyLog bool   `envconfig:"PRETTY_LOG" default:"false"` // true => zap dev (color), false => zap prod (JSON)

	ServicesFile string `envconfig:"SERVICES_FILE" required:"true"` // YAML list of downstream endpoints
	EngineURL    string `envconfig:"ENGINE_URL" required:"true"`    // query engine the data plane forwards to

	// Remote (opaque reference) validation
	AuthURL                string        `envconfig:"AUTH_URL" required:"true"`
	AuthTimeout            time.Duration `envconfig:"AUTH_TIMEOUT" default:"5s"`
	AuthGateTimeout        time.Duration `envconfig:"AUTH_GATE_TIMEOUT" default:"6s"`
	AuthCacheTTL           time.Duration `envconfig:"AUTH_CACHE_TTL" default:"300s"`
	AuthCacheSweepInterval time.Duration `envconfig:"AUTH_CACHE_SWEEP_INTERVAL" default:"5m"`

	// Local (self-contained) validation
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTLeeway time.Duration `envconfig:"JWT_LEEWAY" default:"0s"`

	// Readiness
	HealthInterval      time.Duration `envconfig:"HEALTH_INTERVAL" default:"10s"`
	HealthConcurrency   int           `envconfig:"HEALTH_CONCURRENCY" default:"0"` // 0 = one probe per endpoint at once
	HealthFailureLogCap int           `envconfig:"HEALTH_FAILURE_LOG_CAP" default:"3"`
	ComposeInterval     time.Duration `envconfig:"COMPOSE_INTERVAL" default:"15s"`

	// Redis carries the revocation bus. Empty address disables it.
	RedisAddr           string        `envconfig:"REDIS_ADDR"`
	RedisUser           string        `envconfig:"REDIS_USERNAME"`
	RedisPassword       string        `envconfig:"REDIS_PASSWORD"`
	RedisDB             int           `envconfig:"REDIS_DB" default:"0"`
	RedisDT             time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	RedisRT             time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	RedisWT             time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
	RedisPoolSize       int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	RedisConnectTimeout time.Duration `envconfig:"REDIS_CONNECT_TIMEOUT" default:"30s"`
	RedisRetryInterval  time.Duration `envconfig:"REDIS_RETRY_INTERVAL" default:"2s"`
	RedisMaxWait        time.Duration `envconfig:"REDIS_MAX_WAIT" default:"10s"`
	RedisPingTimeout    time.Duration `envconfig:"REDIS_PING_TIMEOUT" default:"5s"`
	RedisWarnThreshold  int           `envconfig:"REDIS_WARN_THRESHOLD" default:"3"`

	AllowedCIDRS    []string `envconfig:"ALLOWED_CIDRS"` // restricts operational endpoints, empty = open
	AllowedHosts    []string `envconfig:"ALLOWED_HOSTS"` // Host headers accepted on operational endpoints, empty = any
	TrustProxy      bool     `envconfig:"TRUST_PROXY" default:"false"`
	RateLimitPerMin int      `envconfig:"RATE_LIMIT_PER_MIN" default:"600"` // data plane, per client IP
	SSLRedirect     bool     `envconfig:"SSL_REDIRECT" default:"false"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.AllowedCIDRS = trimAll(cfg.AllowedCIDRS)
	cfg.AllowedHosts = trimAll(cfg.AllowedHosts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express as tags.
func (c *Config) Validate() error {
	for key, raw := range map[string]string{
		"AUTH_URL":   c.AuthURL,
		"ENGINE_URL": c.EngineURL,
	} {
		if err := validateURL(raw); err != nil {
			return fmt.Errorf("invalid %s_%s: %w", Prefix, key, err)
		}
	}

	positive := map[string]time.Duration{
		"AUTH_TIMEOUT":              c.AuthTimeout,
		"AUTH_GATE_TIMEOUT":         c.AuthGateTimeout,
		"AUTH_CACHE_TTL":            c.AuthCacheTTL,
		"AUTH_CACHE_SWEEP_INTERVAL": c.AuthCacheSweepInterval,
		"HEALTH_INTERVAL":           c.HealthInterval,
		"COMPOSE_INTERVAL":          c.ComposeInterval,
		"SHUTDOWN_TIMEOUT":          c.ShutdownTimeout,
	}
	for key, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s_%s must be > 0, got %v", Prefix, key, d)
		}
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("%s_JWT_SECRET must not be empty", Prefix)
	}
	if c.JWTLeeway < 0 {
		return fmt.Errorf("%s_JWT_LEEWAY must be >= 0, got %v", Prefix, c.JWTLeeway)
	}
	if c.HealthConcurrency < 0 {
		return fmt.Errorf("%s_HEALTH_CONCURRENCY must be >= 0, got %d", Prefix, c.HealthConcurrency)
	}
	if c.HealthFailureLogCap < 0 {
		return fmt.Errorf("%s_HEALTH_FAILURE_LOG_CAP must be >= 0, got %d", Prefix, c.HealthFailureLogCap)
	}
	if c.RateLimitPerMin < 1 {
		return fmt.Errorf("%s_RATE_LIMIT_PER_MIN must be >= 1, got %d", Prefix, c.RateLimitPerMin)
	}
	return nil
}

// RedisEnabled reports whether the revocation bus should be started.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	cp := *c
	cp.JWTSecret = "***REDACTED***"
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	return cp
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

func trimAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		// Remove surrounding quotes if present
		v = strings.Trim(strings.TrimSpace(v), `"'`)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
