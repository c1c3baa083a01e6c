package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "AUCTION"

// Config is the full runtime configuration of the auction server
type Config struct {
	ServerAddr     string
	LogLevel       string
	DB             DBConfig
	Lock           LockConfig
	Redis          RedisConfig
	NATSURL        string
	JWTSecret      string
	ExpiryInterval time.Duration
	Seed           bool
}

type DBConfig struct {
	// Driver is one of memory, sqlite or postgres
	Driver string
	DSN    string
}

type LockConfig struct {
	// Backend is local or redis
	Backend string
	Timeout time.Duration
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Load reads flags from args, then AUCTION_* environment variables, then an
// optional .env file in the working directory. Flags win over the environment.
func Load(args []string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	fs := pflag.NewFlagSet("auction-core", pflag.ContinueOnError)

	// server config
	fs.String("server-addr", ":8080", "listen address")
	fs.String("log-level", "info", "logrus level")
	fs.String("jwt-secret", "", "HS256 secret for bearer tokens; empty trusts the X-User-ID header")
	fs.Bool("seed", false, "create sample listings on start")

	// db config
	fs.String("db-driver", "memory", "memory, sqlite or postgres")
	fs.String("db-dsn", "data/auction.db", "sqlite path or postgres connection string")

	// lock config
	fs.String("lock-backend", "local", "local or redis")
	fs.Duration("lock-timeout", 5*time.Second, "how long to wait for a busy listing")

	// redis config
	fs.String("redis-addr", "localhost:6379", "")
	fs.String("redis-password", "", "")
	fs.Int("redis-db", 0, "")
	fs.String("redis-key-prefix", "", "")

	// events
	fs.String("nats-url", "", "publish auction events to this NATS server when set")

	// expiry
	fs.Duration("expiry-interval", 30*time.Second, "how often expired auctions are closed; 0 disables")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("config: bind flags: %w", err)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := Config{
		ServerAddr: v.GetString("server-addr"),
		LogLevel:   v.GetString("log-level"),
		DB: DBConfig{
			Driver: v.GetString("db-driver"),
			DSN:    v.GetString("db-dsn"),
		},
		Lock: LockConfig{
			Backend: v.GetString("lock-backend"),
			Timeout: v.GetDuration("lock-timeout"),
		},
		Redis: RedisConfig{
			Addr:      v.GetString("redis-addr"),
			Password:  v.GetString("redis-password"),
			DB:        v.GetInt("redis-db"),
			KeyPrefix: v.GetString("redis-key-prefix"),
		},
		NATSURL:        v.GetString("nats-url"),
		JWTSecret:      v.GetString("jwt-secret"),
		ExpiryInterval: v.GetDuration("expiry-interval"),
		Seed:           v.GetBool("seed"),
	}

	// PORT is what most platforms set
	if port := os.Getenv("PORT"); port != "" && !fs.Changed("server-addr") && os.Getenv(envPrefix+"_SERVER_ADDR") == "" {
		cfg.ServerAddr = ":" + port
	}

	return cfg, cfg.Validate()
}

// Validate reports the first setting that cannot work
func (c Config) Validate() error {
	switch c.DB.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.DB.DSN == "" {
			return fmt.Errorf("config: db-dsn is required for %s", c.DB.Driver)
		}
	default:
		return fmt.Errorf("config: unknown db-driver %q", c.DB.Driver)
	}

	switch c.Lock.Backend {
	case "local":
	case "redis":
		if c.Redis.Addr == "" {
			return errors.New("config: redis-addr is required for the redis lock backend")
		}
	default:
		return fmt.Errorf("config: unknown lock-backend %q", c.Lock.Backend)
	}

	if c.Lock.Timeout <= 0 {
		return errors.New("config: lock-timeout must be positive")
	}
	if c.ExpiryInterval < 0 {
		return errors.New("config: expiry-interval cannot be negative")
	}
	if c.ServerAddr == "" {
		return errors.New("config: server-addr is required")
	}
	return nil
}
