package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds runtime settings for the server and CLI
type Config struct {
	Port           int
	RequestTimeout time.Duration
	AutoMigrate    bool
	LogLevel       string

	// DatabaseURL selects the Postgres scenario store. Empty means in-memory.
	DatabaseURL string

	Redis RedisConfig
	Cache CacheConfig
	Sim   SimulationConfig
}

// RedisConfig selects the shared result cache. Empty Addr means in-memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig bounds the result cache
type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

// SimulationConfig limits grid evaluation
type SimulationConfig struct {
	Workers  int
	MaxCells int
}

// Load loads configuration from environment variables and an optional
// config.yaml
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/dewater")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	cfg.Port = v.GetInt("port")
	cfg.RequestTimeout = v.GetDuration("request_timeout")
	cfg.AutoMigrate = v.GetBool("auto_migrate")
	cfg.LogLevel = v.GetString("log_level")
	cfg.DatabaseURL = v.GetString("database_url")

	// Redis
	cfg.Redis.Addr = v.GetString("redis_addr")
	cfg.Redis.Password = v.GetString("redis_password")
	cfg.Redis.DB = v.GetInt("redis_db")

	// Cache
	cfg.Cache.TTL = v.GetDuration("cache_ttl")
	cfg.Cache.MaxEntries = v.GetInt("cache_max_entries")

	// Simulation
	cfg.Sim.Workers = v.GetInt("workers")
	cfg.Sim.MaxCells = v.GetInt("max_cells")

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("request_timeout", "60s")
	v.SetDefault("auto_migrate", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("database_url", "")

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("cache_ttl", "10m")
	v.SetDefault("cache_max_entries", 128)

	// 0 workers means GOMAXPROCS
	v.SetDefault("workers", 0)
	v.SetDefault("max_cells", 250000)
}

func validate(cfg *Config) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Sim.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", cfg.Sim.Workers)
	}
	if cfg.Sim.MaxCells < 0 {
		return fmt.Errorf("max_cells must not be negative, got %d", cfg.Sim.MaxCells)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %s", cfg.RequestTimeout)
	}
	return nil
}
