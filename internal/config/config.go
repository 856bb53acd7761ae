// Package config loads application configuration from config.yaml and the
// TRAILNET_* environment, and owns the global logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trailworks/trailnet/internal/store"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Elevation ElevationConfig `yaml:"elevation" mapstructure:"elevation"`
	Layers    LayersConfig    `yaml:"layers" mapstructure:"layers"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string            `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string            `yaml:"database_url" mapstructure:"database_url"`
	Path        string            `yaml:"path" mapstructure:"path"` // sqlite file path
	Pool        *store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// ElevationConfig selects the terrain model behind the profiler.
type ElevationConfig struct {
	Provider  string  `yaml:"provider" mapstructure:"provider"` // "flat", "grid" or "remote"
	GridPath  string  `yaml:"grid_path" mapstructure:"grid_path"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Dataset   string  `yaml:"dataset" mapstructure:"dataset"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	StepM     float64 `yaml:"step_m" mapstructure:"step_m"`         // sampling step along segments
}

// LayersConfig configures the administrative polygon importer.
type LayersConfig struct {
	Manifest string `yaml:"manifest" mapstructure:"manifest"`
	CacheDir string `yaml:"cache_dir" mapstructure:"cache_dir"`
}

// ServerConfig configures the read-only HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRAILNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.path", "trailnet.db")
	v.SetDefault("elevation.provider", "flat")
	v.SetDefault("elevation.base_url", "https://api.opentopodata.org/v1")
	v.SetDefault("elevation.dataset", "srtm30m")
	v.SetDefault("elevation.rate_limit", 1)
	v.SetDefault("elevation.step_m", 25)
	v.SetDefault("layers.manifest", "layers.yaml")
	v.SetDefault("layers.cache_dir", "/tmp/trailnet-layers")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	switch cfg.Store.Driver {
	case "postgres", "sqlite":
	default:
		return nil, eris.Errorf("config: unknown store driver %q", cfg.Store.Driver)
	}
	switch cfg.Elevation.Provider {
	case "flat", "grid", "remote":
	default:
		return nil, eris.Errorf("config: unknown elevation provider %q", cfg.Elevation.Provider)
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
