package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/Ahmed123sa/whatsapp-auto/phone"
)

// EnvPrefix prefixes every environment variable read by LoadConfig.
const EnvPrefix = "PROVISIONER_"

const (
	StorageFile   = "file"
	StorageRedis  = "redis"
	StorageSQLite = "sqlite"
)

type Config struct {
	Port         int64        `json:"port" yaml:"port" env:"PORT"`
	LogLevel     string       `json:"log_level" yaml:"log_level" env:"LOG_LEVEL"`
	Backend      Backend      `json:"backend" yaml:"backend" envPrefix:"BACKEND_"`
	Provisioning Provisioning `json:"provisioning" yaml:"provisioning" envPrefix:"PROVISIONING_"`
	Storage      Storage      `json:"storage" yaml:"storage" envPrefix:"STORAGE_"`
}

type Backend struct {
	BaseURL        string   `json:"base_url" yaml:"base_url" env:"BASE_URL"`
	EventsURL      string   `json:"events_url" yaml:"events_url" env:"EVENTS_URL"`
	Timeout        Duration `json:"timeout" yaml:"timeout" env:"TIMEOUT"`
	ReconnectDelay Duration `json:"reconnect_delay" yaml:"reconnect_delay" env:"RECONNECT_DELAY"`
}

type Provisioning struct {
	Owner             string   `json:"owner" yaml:"owner" env:"OWNER"`
	Designers         []string `json:"designers" yaml:"designers" env:"DESIGNERS" envSeparator:","`
	CountryCode       string   `json:"country_code" yaml:"country_code" env:"COUNTRY_CODE"`
	SettleDelay       Duration `json:"settle_delay" yaml:"settle_delay" env:"SETTLE_DELAY"`
	PromotionAttempts int      `json:"promotion_attempts" yaml:"promotion_attempts" env:"PROMOTION_ATTEMPTS"`
	PromotionBackoff  Duration `json:"promotion_backoff" yaml:"promotion_backoff" env:"PROMOTION_BACKOFF"`
	CreateFallback    bool     `json:"create_fallback" yaml:"create_fallback" env:"CREATE_FALLBACK"`
	WelcomeTemplate   string   `json:"welcome_template" yaml:"welcome_template" env:"WELCOME_TEMPLATE"`
	GroupInfoTTL      Duration `json:"group_info_ttl" yaml:"group_info_ttl" env:"GROUP_INFO_TTL"`
}

type Storage struct {
	Driver      string      `json:"driver" yaml:"driver" env:"DRIVER"`
	File        string      `json:"file" yaml:"file" env:"FILE"`
	SQLiteDSN   string      `json:"sqlite_dsn" yaml:"sqlite_dsn" env:"SQLITE_DSN"`
	RedisServer RedisServer `json:"redis_server" yaml:"redis_server" envPrefix:"REDIS_"`
	RedisKey    string      `json:"redis_key" yaml:"redis_key" env:"REDIS_KEY"`
}

type RedisServer struct {
	Addr     string `json:"addr" yaml:"addr" env:"ADDR"`
	User     string `json:"user" yaml:"user" env:"USER"`
	Password string `json:"password" yaml:"password" env:"PASSWORD"`
	DB       int    `json:"db" yaml:"db" env:"DB"`
}

// Default returns the configuration used before the file and environment are applied.
func Default() Config {
	return Config{
		Port:     8080,
		LogLevel: "info",
		Backend: Backend{
			BaseURL:        "http://127.0.0.1:3000",
			Timeout:        Duration(30 * time.Second),
			ReconnectDelay: Duration(5 * time.Second),
		},
		Provisioning: Provisioning{
			CountryCode:       "20",
			SettleDelay:       Duration(3 * time.Second),
			PromotionAttempts: 3,
			PromotionBackoff:  Duration(3 * time.Second),
			CreateFallback:    true,
			GroupInfoTTL:      Duration(30 * time.Second),
		},
		Storage: Storage{
			Driver:   StorageFile,
			File:     "groups.json",
			RedisKey: "provisioner:groups",
		},
	}
}

// LoadConfig loads the configuration from a file, then applies environment overrides.
// An empty file name skips the file.
func LoadConfig(file string) (*Config, error) {
	cfg := Default()
	if file != "" {
		if err := decodeFile(file, &cfg); err != nil {
			return nil, err
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("fail to parse environment, err: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("fail to open config file %s, err: %w", file, err)
	}
	defer func(f *os.File) {
		err := f.Close()
		if err != nil {
			fmt.Println("fail to close file", err)
		}
	}(f)
	switch strings.ToLower(filepath.Ext(file)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return fmt.Errorf("fail to decode config file %s, err: %w", file, err)
		}
	default:
		if err := json.NewDecoder(f).Decode(cfg); err != nil {
			return fmt.Errorf("fail to decode config file %s, err: %w", file, err)
		}
	}
	return nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Provisioning.Owner) == "" {
		return fmt.Errorf("provisioning.owner is required")
	}
	if phone.NewFormatter(c.Provisioning.CountryCode).Normalize(c.Provisioning.Owner) == "" {
		return fmt.Errorf("provisioning.owner %q is not a phone number", c.Provisioning.Owner)
	}
	if c.Provisioning.PromotionAttempts < 1 {
		return fmt.Errorf("provisioning.promotion_attempts must be at least 1, got %d", c.Provisioning.PromotionAttempts)
	}
	if c.Port <= 0 {
		return fmt.Errorf("port must be positive, got %d", c.Port)
	}
	switch c.Storage.Driver {
	case StorageFile:
		if c.Storage.File == "" {
			return fmt.Errorf("storage.file is required for the file driver")
		}
	case StorageRedis:
		if c.Storage.RedisServer.Addr == "" {
			return fmt.Errorf("storage.redis_server.addr is required for the redis driver")
		}
	case StorageSQLite:
		if c.Storage.SQLiteDSN == "" {
			return fmt.Errorf("storage.sqlite_dsn is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}
