package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Gateway      GatewayConfig
	Registration RegistrationConfig
}

type ServerConfig struct {
	Address string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type GatewayConfig struct {
	ServerURL       string
	DeviceName      string
	PullInterval    time.Duration
	InboxInterval   time.Duration
	RefreshInterval time.Duration
}

// RegistrationConfig selects how a fresh registration authenticates.
// Mode is one of "anonymous", "credentials", "code".
type RegistrationConfig struct {
	Mode     string
	Login    string
	Password string
	Code     string
}

func LoadAll() (*Config, error) {
	hostname, _ := os.Hostname()

	cfg := &Config{
		Server: ServerConfig{
			Address: getEnv("SERVER_ADDRESS", ":8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: mustEnv("POSTGRES_URL"),
		},
		Gateway: GatewayConfig{
			ServerURL:       mustEnv("GATEWAY_URL"),
			DeviceName:      getEnv("DEVICE_NAME", hostname),
			PullInterval:    time.Duration(getEnvInt("PULL_INTERVAL_SECONDS", 60)) * time.Second,
			InboxInterval:   time.Duration(getEnvInt("INBOX_SYNC_INTERVAL_SECONDS", 600)) * time.Second,
			RefreshInterval: time.Duration(getEnvInt("REFRESH_INTERVAL_SECONDS", 900)) * time.Second,
		},
		Registration: RegistrationConfig{
			Mode:     getEnv("REGISTRATION_MODE", "anonymous"),
			Login:    os.Getenv("REGISTRATION_LOGIN"),
			Password: os.Getenv("REGISTRATION_PASSWORD"),
			Code:     os.Getenv("REGISTRATION_CODE"),
		},
		Redis: loadRedisConfig(),
	}

	validate(cfg)
	return cfg, nil
}

func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
		TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 86400)) * time.Second,
	}
}

func validate(cfg *Config) {
	if cfg.Gateway.PullInterval <= 0 {
		panic("PULL_INTERVAL_SECONDS must be > 0")
	}
	if cfg.Gateway.InboxInterval <= 0 {
		panic("INBOX_SYNC_INTERVAL_SECONDS must be > 0")
	}
	if cfg.Gateway.RefreshInterval <= 0 {
		panic("REFRESH_INTERVAL_SECONDS must be > 0")
	}
	if cfg.Gateway.DeviceName == "" {
		panic("DEVICE_NAME must not be empty")
	}

	switch cfg.Registration.Mode {
	case "anonymous":
	case "credentials":
		if cfg.Registration.Login == "" || cfg.Registration.Password == "" {
			panic("REGISTRATION_LOGIN and REGISTRATION_PASSWORD are required in credentials mode")
		}
	case "code":
		if cfg.Registration.Code == "" {
			panic("REGISTRATION_CODE is required in code mode")
		}
	default:
		panic(fmt.Sprintf("unknown REGISTRATION_MODE: %s", cfg.Registration.Mode))
	}
}

func mustEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("missing required env var: %s", key))
	}
	return val
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid int for env %s: %s", key, v))
	}
	return i
}
