package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageRedis  = "redis"
	StorageMemory = "memory"
)

type Config struct {
	LogLevel     string   `yaml:"log-level" env:"LOG_LEVEL" env-default:"info"`
	HTTPPort     string   `yaml:"http-port" env:"HTTP_PORT" env-default:"9090"`
	SocketPort   string   `yaml:"socket-port" env:"SOCKET_PORT" env-default:"9091"`
	Storage      string   `yaml:"storage" env:"STORAGE" env-default:"redis"`
	Redis        Redis    `yaml:"redis"`
	Postgres     Postgres `yaml:"postgres"`
	JWTSecretKey string   `yaml:"jwt-secret-key" env:"JWT_SECRET_KEY"`
	Registry     Registry `yaml:"registry"`
	Notify       Notify   `yaml:"notify"`
}

type Redis struct {
	Host string `yaml:"host" env:"REDIS_HOST" env-default:"localhost"`
	Port string `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
}

// Postgres holds the game history database. An empty DSN keeps history in memory.
type Postgres struct {
	DSN string `yaml:"dsn" env:"POSTGRES_DSN"`
}

type Registry struct {
	IdleTimeout time.Duration `yaml:"idle-timeout" env:"REGISTRY_IDLE_TIMEOUT" env-default:"10m"`
	MailboxSize int           `yaml:"mailbox-size" env:"REGISTRY_MAILBOX_SIZE" env-default:"16"`
}

type Notify struct {
	MaxAttempts     int           `yaml:"max-attempts" env:"NOTIFY_MAX_ATTEMPTS" env-default:"3"`
	InitialInterval time.Duration `yaml:"initial-interval" env:"NOTIFY_INITIAL_INTERVAL" env-default:"50ms"`
}

// MustLoad - load all configurations in config.yml file.
func MustLoad(path string) *Config {
	config := &Config{}

	if err := cleanenv.ReadConfig(path, config); err != nil {
		panic(fmt.Errorf("unable to load config file: %w", err))
	}

	if err := config.Validate(); err != nil {
		panic(fmt.Errorf("invalid config: %w", err))
	}

	return config
}

func (that *Config) Validate() error {
	switch that.Storage {
	case StorageRedis, StorageMemory:
	default:
		return fmt.Errorf("unknown storage %q", that.Storage)
	}

	if that.JWTSecretKey == "" {
		return fmt.Errorf("jwt-secret-key is required")
	}

	return nil
}

func (that *Redis) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", that.Host, that.Port)
}
