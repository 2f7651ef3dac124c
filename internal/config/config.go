package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	AppEnv   string `mapstructure:"APP_ENV"`
	Server   ServerConfig
	Database DatabaseConfig
	Session  SessionConfig
	Redis    RedisConfig
	Auth     AuthConfig
	LogLevel string `mapstructure:"LOG_LEVEL"`
}

type ServerConfig struct {
	Port    string        `mapstructure:"SERVER_PORT"`
	Timeout time.Duration `mapstructure:"SERVER_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"DB_DRIVER"`
	DSN      string `mapstructure:"DB_DSN"`
	Host     string `mapstructure:"DB_HOST"`
	Port     string `mapstructure:"DB_PORT"`
	User     string `mapstructure:"DB_USER"`
	Password string `mapstructure:"DB_PASSWORD"`
	Name     string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"DB_SSL_MODE"`
}

type SessionConfig struct {
	Secret string        `mapstructure:"SESSION_SECRET"`
	TTL    time.Duration `mapstructure:"SESSION_TTL"`
}

// RedisConfig is optional; sessions stay in memory when Addr is empty.
type RedisConfig struct {
	Addr     string `mapstructure:"REDIS_ADDR"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
}

type AuthConfig struct {
	MaxAttempts int `mapstructure:"AUTH_MAX_ATTEMPTS"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_TIMEOUT", 15*time.Second)
	v.SetDefault("DB_DRIVER", "sqlite3")
	v.SetDefault("DB_DSN", "exchange.db")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("SESSION_TTL", 8*time.Hour)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("AUTH_MAX_ATTEMPTS", 3)
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("could not load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config

	cfg.AppEnv = v.GetString("APP_ENV")
	cfg.LogLevel = v.GetString("LOG_LEVEL")

	cfg.Server.Port = v.GetString("SERVER_PORT")
	cfg.Server.Timeout = v.GetDuration("SERVER_TIMEOUT")

	cfg.Database.Driver = v.GetString("DB_DRIVER")
	cfg.Database.DSN = v.GetString("DB_DSN")
	cfg.Database.Host = v.GetString("DB_HOST")
	cfg.Database.Port = v.GetString("DB_PORT")
	cfg.Database.User = v.GetString("DB_USER")
	cfg.Database.Password = v.GetString("DB_PASSWORD")
	cfg.Database.Name = v.GetString("DB_NAME")
	cfg.Database.SSLMode = v.GetString("DB_SSL_MODE")

	cfg.Session.Secret = v.GetString("SESSION_SECRET")
	cfg.Session.TTL = v.GetDuration("SESSION_TTL")

	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.Auth.MaxAttempts = v.GetInt("AUTH_MAX_ATTEMPTS")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	if c.Session.Secret == "" {
		return fmt.Errorf("SESSION_SECRET must be set")
	}
	if c.Auth.MaxAttempts < 1 {
		return fmt.Errorf("AUTH_MAX_ATTEMPTS must be positive, got %d", c.Auth.MaxAttempts)
	}
	return nil
}

// PostgresDSN builds a lib/pq connection string when DB_DSN is not given.
func (d DatabaseConfig) PostgresDSN() string {
	if d.DSN != "" && d.DSN != "exchange.db" {
		return d.DSN
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}
