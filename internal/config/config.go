package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Catalog CatalogConfig `yaml:"catalog" mapstructure:"catalog"`
	Convert ConvertConfig `yaml:"convert" mapstructure:"convert"`
	Buffer  BufferConfig  `yaml:"buffer" mapstructure:"buffer"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// CatalogConfig configures the dataset catalog backend.
type CatalogConfig struct {
	// Driver is "sqlite", "postgres", or "off".
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ConvertConfig holds load/convert defaults.
type ConvertConfig struct {
	// DefaultEPSG is assumed for inputs with no detectable coordinate system.
	DefaultEPSG int `yaml:"default_epsg" mapstructure:"default_epsg"`
}

// BufferConfig configures geometry buffering.
type BufferConfig struct {
	// QuadSegs is the number of segments per quarter circle in round joins.
	QuadSegs int `yaml:"quad_segs" mapstructure:"quad_segs"`
}

// BatchConfig configures directory batch conversion.
type BatchConfig struct {
	MaxConcurrentFiles int `yaml:"max_concurrent_files" mapstructure:"max_concurrent_files"`
}

// ServerConfig configures the preview server.
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
	v.SetEnvPrefix("GEOTABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("catalog.driver", "sqlite")
	v.SetDefault("catalog.path", "geotable.db")
	v.SetDefault("convert.default_epsg", 4326)
	v.SetDefault("buffer.quad_segs", 8)
	v.SetDefault("batch.max_concurrent_files", 4)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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

	return &cfg, nil
}

// Validate checks configuration values shared by every command.
func (c *Config) Validate() error {
	var problems []string

	switch c.Catalog.Driver {
	case "sqlite":
		if c.Catalog.Path == "" {
			problems = append(problems, "catalog.path is required with the sqlite driver")
		}
	case "postgres":
		if c.Catalog.DatabaseURL == "" {
			problems = append(problems, "catalog.database_url is required with the postgres driver")
		}
	case "off":
	default:
		problems = append(problems, "catalog.driver must be sqlite, postgres, or off")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if c.Buffer.QuadSegs < 1 || c.Buffer.QuadSegs > 64 {
		problems = append(problems, "buffer.quad_segs must be between 1 and 64")
	}
	if c.Batch.MaxConcurrentFiles < 1 || c.Batch.MaxConcurrentFiles > 64 {
		problems = append(problems, "batch.max_concurrent_files must be between 1 and 64")
	}
	if c.Convert.DefaultEPSG <= 0 {
		problems = append(problems, "convert.default_epsg must be a positive EPSG code")
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
