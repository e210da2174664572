package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Типы хранилищ
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
	StorageRedis    = "redis"
)

// Способы хранения паролей
const (
	PasswordBcrypt = "bcrypt"
	PasswordPlain  = "plain"
)

type Config struct {
	Storage struct {
		Type   string `yaml:"type" env:"COMMUNITY_STORAGE"`
		SQLite struct {
			Path string `yaml:"path" env:"COMMUNITY_SQLITE_PATH"`
		} `yaml:"sqlite"`
		Postgres struct {
			DSN string `yaml:"dsn" env:"COMMUNITY_POSTGRES_DSN"`
		} `yaml:"postgres"`
		Redis struct {
			Addr      string `yaml:"addr" env:"COMMUNITY_REDIS_ADDR"`
			Password  string `yaml:"password" env:"COMMUNITY_REDIS_PASSWORD"`
			DB        int    `yaml:"db" env:"COMMUNITY_REDIS_DB"`
			Namespace string `yaml:"namespace" env:"COMMUNITY_REDIS_NAMESPACE"`
		} `yaml:"redis"`
	} `yaml:"storage"`
	Identity struct {
		PasswordHashing string `yaml:"password_hashing" env:"COMMUNITY_PASSWORD_HASHING"`
		BcryptCost      int    `yaml:"bcrypt_cost" env:"COMMUNITY_BCRYPT_COST"`
	} `yaml:"identity"`
	Log struct {
		Level       string `yaml:"level" env:"COMMUNITY_LOG_LEVEL"`
		Development bool   `yaml:"development" env:"COMMUNITY_LOG_DEVELOPMENT"`
	} `yaml:"log"`
	// SeedFile заменяет встроенный начальный набор данных
	SeedFile string `yaml:"seed_file" env:"COMMUNITY_SEED_FILE"`
}

// Default возвращает конфигурацию по умолчанию
func Default() *Config {
	cfg := &Config{}
	cfg.Storage.Type = StorageSQLite
	cfg.Storage.SQLite.Path = "data/community.db"
	cfg.Storage.Redis.Addr = "localhost:6379"
	cfg.Storage.Redis.Namespace = "community:"
	cfg.Identity.PasswordHashing = PasswordBcrypt
	cfg.Identity.BcryptCost = 10
	cfg.Log.Level = "info"
	return cfg
}

// Load читает YAML-файл поверх значений по умолчанию и применяет переменные
// окружения. Отсутствующий файл не ошибка.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv подгружает .env файлы. Уже заданные переменные не перезаписываются,
// поэтому .env.local читается первым. Отсутствующий файл не ошибка, испорченный - ошибка.
func LoadDotEnv() error {
	for _, name := range []string{".env.local", ".env"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			return fmt.Errorf("failed to load %s: %w", name, err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Storage.Type {
	case StorageMemory, StorageSQLite, StoragePostgres, StorageRedis:
	default:
		return fmt.Errorf("unknown storage type %q", c.Storage.Type)
	}

	switch c.Identity.PasswordHashing {
	case PasswordBcrypt, PasswordPlain:
	default:
		return fmt.Errorf("unknown password hashing %q", c.Identity.PasswordHashing)
	}

	if c.Storage.Type == StoragePostgres && c.Storage.Postgres.DSN == "" {
		return errors.New("postgres dsn is required")
	}
	if c.Storage.Type == StorageSQLite && c.Storage.SQLite.Path == "" {
		return errors.New("sqlite path is required")
	}
	return nil
}
