package config

import (
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

const (
	AuthLocal    = "local"
	AuthSupabase = "supabase"

	BackendPostgres = "postgres"
	BackendSupabase = "supabase"

	CacheMemory = "memory"
	CacheRedis  = "redis"
)

const defaultSigningKey = "wT0phFUusHZIrDhL9bUKPUhwaxKhpi/SaI6PtgB+MgU="

type Config struct {
	ServerAddr          string        `env:"DIAYOUTH_ADDR"`
	DatabaseDSN         string        `env:"DIAYOUTH_DATABASE_DSN"`
	SigningSecret       string        `env:"DIAYOUTH_SIGNING_KEY"`
	Origins             string        `env:"DIAYOUTH_ALLOWED_ORIGINS"`
	AuthProvider        string        `env:"DIAYOUTH_AUTH_PROVIDER"`
	AssociationBackend  string        `env:"DIAYOUTH_ASSOCIATION_BACKEND"`
	CacheBackend        string        `env:"DIAYOUTH_CACHE_BACKEND"`
	CacheTTL            time.Duration `env:"DIAYOUTH_CACHE_TTL"`
	RedisAddr           string        `env:"DIAYOUTH_REDIS_ADDR"`
	MembershipCacheSize int           `env:"DIAYOUTH_MEMBERSHIP_CACHE_SIZE"`
	SupabaseURL         string        `env:"SUPABASE_URL"`
	SupabaseKey         string        `env:"SUPABASE_KEY"`
	SupabaseJWTSecret   string        `env:"SUPABASE_JWT_SECRET"`
	RealtimeBridge      bool          `env:"DIAYOUTH_REALTIME_BRIDGE"`
	EventPhotoBucket    string        `env:"DIAYOUTH_EVENT_PHOTO_BUCKET"`
	AvatarBucket        string        `env:"DIAYOUTH_AVATAR_BUCKET"`
	AuthRateLimit       float64       `env:"DIAYOUTH_AUTH_RATE_LIMIT"`
	AuthRateBurst       int           `env:"DIAYOUTH_AUTH_RATE_BURST"`
	MigrateOnStart      bool          `env:"DIAYOUTH_MIGRATE"`
	LogLevel            string        `env:"DIAYOUTH_LOG_LEVEL"`
	LogFormat           string        `env:"DIAYOUTH_LOG_FORMAT"`

	// Populated by Validate.
	AllowedOrigins []string
	SigningKey     []byte
}

// Default returns a configuration suitable for local development.
func Default() *Config {
	return &Config{
		ServerAddr:          "localhost:8000",
		DatabaseDSN:         "host=localhost user=postgres password=postgres dbname=postgres sslmode=disable",
		SigningSecret:       defaultSigningKey,
		AuthProvider:        AuthLocal,
		AssociationBackend:  BackendPostgres,
		CacheBackend:        CacheMemory,
		CacheTTL:            5 * time.Minute,
		RedisAddr:           "localhost:6379",
		MembershipCacheSize: 4096,
		EventPhotoBucket:    "event_photos",
		AvatarBucket:        "profile_photo",
		AuthRateLimit:       5,
		AuthRateBurst:       10,
		MigrateOnStart:      true,
		LogLevel:            "info",
		LogFormat:           "text",
	}
}

// Load reads envFile (if it exists) into the process environment and decodes
// the environment on top of the defaults.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}

	return cfg, nil
}

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	if s == nil {
		return ""
	}
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, splitList(value)...)
	return nil
}

// RegisterFlags binds command-line flags to cfg. Current values are the
// flag defaults, so flags override the environment.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.ServerAddr, "addr", c.ServerAddr, "server address")
	fs.StringVar(&c.DatabaseDSN, "dsn", c.DatabaseDSN, "database connection string")
	fs.StringVar(&c.SigningSecret, "signing-key", c.SigningSecret, "base64 encoded signing key")
	fs.Var((*stringSliceFlag)(&c.AllowedOrigins), "allowed-origins", "comma-separated list of allowed origins for CORS")
	fs.StringVar(&c.AuthProvider, "auth", c.AuthProvider, "identity provider: local or supabase")
	fs.StringVar(&c.AssociationBackend, "associations", c.AssociationBackend, "association store: postgres or supabase")
	fs.StringVar(&c.CacheBackend, "cache", c.CacheBackend, "list cache backend: memory or redis")
	fs.DurationVar(&c.CacheTTL, "cache-ttl", c.CacheTTL, "list cache entry lifetime")
	fs.StringVar(&c.RedisAddr, "redis-addr", c.RedisAddr, "redis address for the redis cache backend")
	fs.StringVar(&c.SupabaseURL, "supabase-url", c.SupabaseURL, "remote data service URL")
	fs.StringVar(&c.SupabaseKey, "supabase-key", c.SupabaseKey, "remote data service API key")
	fs.BoolVar(&c.RealtimeBridge, "realtime-bridge", c.RealtimeBridge, "republish remote change feeds into the local hub")
	fs.BoolVar(&c.MigrateOnStart, "migrate", c.MigrateOnStart, "apply database migrations on start")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json")
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("empty secret")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// UsesSupabase reports whether any component talks to the remote data service.
func (c *Config) UsesSupabase() bool {
	return c.AuthProvider == AuthSupabase || c.AssociationBackend == BackendSupabase || c.RealtimeBridge
}

// Validate checks the configuration and fills the derived fields.
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database DSN cannot be empty")
	}
	if c.SigningSecret == "" {
		return fmt.Errorf("signing secret cannot be empty")
	}

	signingKey, err := decodeSigningSecret(c.SigningSecret)
	if err != nil {
		return fmt.Errorf("decode signing secret: %w", err)
	}
	c.SigningKey = signingKey

	switch c.AuthProvider {
	case AuthLocal:
	case AuthSupabase:
		if c.SupabaseJWTSecret == "" {
			return fmt.Errorf("supabase JWT secret cannot be empty with supabase auth")
		}
	default:
		return fmt.Errorf("unknown auth provider %q", c.AuthProvider)
	}

	switch c.AssociationBackend {
	case BackendPostgres, BackendSupabase:
	default:
		return fmt.Errorf("unknown association backend %q", c.AssociationBackend)
	}

	switch c.CacheBackend {
	case CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("redis address cannot be empty with redis cache")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.CacheBackend)
	}

	if c.UsesSupabase() && (c.SupabaseURL == "" || c.SupabaseKey == "") {
		return fmt.Errorf("supabase URL and key cannot be empty")
	}

	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = splitList(c.Origins)
	}

	return nil
}
