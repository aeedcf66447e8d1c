package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

type Config struct {
	ServiceName string
	Addr        string
	LogLevel    string

	ContentAPIURL     string
	ContentAPITimeout time.Duration

	// SessionSecret signs the session cookie.
	SessionSecret  []byte
	SessionMaxIdle time.Duration
	CookieSecure   bool

	StorageDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	CartFlushDelay time.Duration
	AllowOrigins   []string
}

// Load reads flags from args, then the optional env file, then the
// environment. Flags win over the environment.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("storefront", pflag.ContinueOnError)
	envFile := fs.String("env-file", ".env", "optional dotenv file")
	addr := fs.String("addr", "", "listen address, overrides HTTP_ADDR")
	level := fs.String("log-level", "", "debug, info, warn or error, overrides LOG_LEVEL")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", *envFile, err)
	} else if err != nil {
		log.Printf("notice: %s not found, using process environment", *envFile)
	}

	cfg := &Config{
		ServiceName: EnvDefault("SERVICE_NAME", "storefront"),
		Addr:        EnvDefault("HTTP_ADDR", ":8080"),
		LogLevel:    EnvDefault("LOG_LEVEL", "info"),

		ContentAPIURL:     os.Getenv("CONTENT_API_URL"),
		ContentAPITimeout: EnvDurationDefault("CONTENT_API_TIMEOUT", 5*time.Second),

		SessionSecret:  []byte(os.Getenv("SESSION_SECRET")),
		SessionMaxIdle: EnvDurationDefault("SESSION_MAX_IDLE", 30*time.Minute),
		CookieSecure:   EnvBoolDefault("COOKIE_SECURE", false),

		StorageDSN: EnvDefault("STORAGE_DSN", "storefront.db"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       EnvIntDefault("REDIS_DB", 0),
		CacheTTL:      EnvDurationDefault("CACHE_TTL", 5*time.Minute),

		KafkaBrokers: CSV(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   EnvDefault("KAFKA_TOPIC", "cart_events"),

		CartFlushDelay: EnvDurationDefault("CART_FLUSH_DELAY", time.Second),
		AllowOrigins:   CSV(EnvDefault("ALLOW_ORIGINS", "*")),
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *level != "" {
		cfg.LogLevel = *level
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.ContentAPIURL == "" {
		errs = append(errs, errors.New("missing required env CONTENT_API_URL"))
	}
	if len(c.SessionSecret) == 0 {
		errs = append(errs, errors.New("missing required env SESSION_SECRET"))
	}
	return errors.Join(errs...)
}

func CSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func EnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func EnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func EnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
