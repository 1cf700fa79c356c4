package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/KarpovAlexandrGo/tasks-api/pkg/logger"
	"github.com/spf13/viper"
)

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

var ErrMissingDatabase = errors.New("DATABASE connection string is not set")

type Config struct {
	Port            string
	Database        string
	StorageDriver   string
	MongoDatabase   string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTL        time.Duration
	DBTimeout       time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	LogFormat       string
}

// LoadConfig reads configs/config.yaml if present, then the environment.
// Environment variables win over the file.
func LoadConfig(paths ...string) (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(paths) == 0 {
		paths = []string{"./configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("STORAGE_DRIVER", DriverMongo)
	v.SetDefault("MONGO_DATABASE", "tasks")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_TTL", 5*time.Minute)
	v.SetDefault("DB_TIMEOUT", 5*time.Second)
	v.SetDefault("REQUEST_TIMEOUT", 60*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 30*time.Second)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		logger.Log.Info("No config file found, using environment and defaults")
	}

	cfg := Config{
		Port:            v.GetString("PORT"),
		Database:        v.GetString("DATABASE"),
		StorageDriver:   strings.ToLower(v.GetString("STORAGE_DRIVER")),
		MongoDatabase:   v.GetString("MONGO_DATABASE"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		RedisDB:         v.GetInt("REDIS_DB"),
		CacheTTL:        v.GetDuration("CACHE_TTL"),
		DBTimeout:       v.GetDuration("DB_TIMEOUT"),
		RequestTimeout:  v.GetDuration("REQUEST_TIMEOUT"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.StorageDriver {
	case DriverMongo, DriverPostgres:
		if c.Database == "" {
			return ErrMissingDatabase
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.Port == "" {
		return errors.New("PORT must not be empty")
	}
	return nil
}
