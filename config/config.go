/*
Package config loads server configuration.

SOURCES (later wins):
  1. Built-in defaults
  2. .env file in the working directory (optional)
  3. Environment variables (SHOP_*)
  4. Command-line flags

EXAMPLES:
  ./server -db="./data/shop.db" -port=3000
  SHOP_REDIS_ADDR=localhost:6379 ./server
*/
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/warp/shop-ledger/generic"
)

type Config struct {
	Port     int
	DBPath   string
	LogLevel string
	LogJSON  bool

	// Redis is optional; an empty address disables caching and distributed locks.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
	LockTTL       time.Duration

	// SMTP is optional; an empty host disables email.
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	AlertEmail   string

	AlertThreshold  generic.Money
	PhoneRegion     string
	OverdueInterval time.Duration
	AllowedOrigins  []string
}

// Load reads .env (if present), the environment and args.
func Load(args []string) (*Config, error) {
	_ = godotenv.Load()
	return parse(args, os.Getenv)
}

func parse(args []string, getenv func(string) string) (*Config, error) {
	env := envReader{get: getenv}
	cfg := &Config{}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", env.int("SHOP_PORT", 8080), "HTTP server port")
	fs.StringVar(&cfg.DBPath, "db", env.str("SHOP_DB_PATH", "shop.db"), "SQLite database path")
	fs.StringVar(&cfg.LogLevel, "log-level", env.str("SHOP_LOG_LEVEL", "info"), "log level")
	fs.BoolVar(&cfg.LogJSON, "log-json", env.bool("SHOP_LOG_JSON", true), "JSON log output")

	fs.StringVar(&cfg.RedisAddr, "redis", env.str("SHOP_REDIS_ADDR", ""), "Redis address (empty disables)")
	fs.StringVar(&cfg.RedisPassword, "redis-password", env.str("SHOP_REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&cfg.RedisDB, "redis-db", env.int("SHOP_REDIS_DB", 0), "Redis database")
	fs.DurationVar(&cfg.CacheTTL, "cache-ttl", env.duration("SHOP_CACHE_TTL", time.Hour), "cache lifespan")
	fs.DurationVar(&cfg.LockTTL, "lock-ttl", env.duration("SHOP_LOCK_TTL", 10*time.Second), "party lock lifespan")

	fs.StringVar(&cfg.SMTPHost, "smtp-host", env.str("SHOP_SMTP_HOST", ""), "SMTP host (empty disables)")
	fs.StringVar(&cfg.SMTPPort, "smtp-port", env.str("SHOP_SMTP_PORT", "465"), "SMTP port")
	fs.StringVar(&cfg.SMTPUser, "smtp-user", env.str("SHOP_SMTP_USER", ""), "SMTP user")
	fs.StringVar(&cfg.SMTPPassword, "smtp-password", env.str("SHOP_SMTP_PASSWORD", ""), "SMTP password")
	fs.StringVar(&cfg.AlertEmail, "alert-email", env.str("SHOP_ALERT_EMAIL", ""), "alert recipient")

	threshold := fs.String("alert-threshold", env.str("SHOP_ALERT_THRESHOLD", "50000"), "alert on entries at or above this amount")
	fs.StringVar(&cfg.PhoneRegion, "phone-region", env.str("SHOP_PHONE_REGION", "IN"), "default phone region")
	fs.DurationVar(&cfg.OverdueInterval, "overdue-interval", env.duration("SHOP_OVERDUE_INTERVAL", 24*time.Hour), "overdue scan interval (0 disables)")
	origins := fs.String("origins", env.str("SHOP_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:8080"), "CORS origins, comma separated")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if env.err != nil {
		return nil, env.err
	}

	m, err := generic.ParseMoney(*threshold)
	if err != nil {
		return nil, fmt.Errorf("alert-threshold: %w", err)
	}
	cfg.AlertThreshold = m

	for _, o := range strings.Split(*origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}
	return cfg, nil
}

// envReader records the first malformed variable.
type envReader struct {
	get func(string) string
	err error
}

func (e *envReader) str(key, def string) string {
	if v := e.get(key); v != "" {
		return v
	}
	return def
}

func (e *envReader) int(key string, def int) int {
	v := e.get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return n
}

func (e *envReader) bool(key string, def bool) bool {
	v := e.get(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return b
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	v := e.get(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, err)
		return def
	}
	return d
}

func (e *envReader) fail(key string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s: %w", key, err)
	}
}
