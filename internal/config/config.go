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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Geocode  GeocodeConfig  `yaml:"geocode" mapstructure:"geocode"`
	Match    MatchConfig    `yaml:"match" mapstructure:"match"`
	Tabular  TabularConfig  `yaml:"tabular" mapstructure:"tabular"`
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the persistent cache backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GeocodeConfig configures the provider chain and worker pool.
type GeocodeConfig struct {
	Provider     string  `yaml:"provider" mapstructure:"provider"`
	GoogleAPIKey string  `yaml:"google_api_key" mapstructure:"google_api_key"`
	Country      string  `yaml:"country" mapstructure:"country"`
	Language     string  `yaml:"language" mapstructure:"language"`
	RPS          float64 `yaml:"rps" mapstructure:"rps"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries   int     `yaml:"max_retries" mapstructure:"max_retries"`
	Workers      int     `yaml:"workers" mapstructure:"workers"`
}

// MatchConfig configures the spatial matcher.
type MatchConfig struct {
	ThresholdMeters float64 `yaml:"threshold_meters" mapstructure:"threshold_meters"`
	Mode            string  `yaml:"mode" mapstructure:"mode"`
}

// TabularConfig configures table reading.
type TabularConfig struct {
	AliasesFile string `yaml:"aliases_file" mapstructure:"aliases_file"`
}

// RegistryConfig configures business discovery against OpenStreetMap.
type RegistryConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	MaxPages    int    `yaml:"max_pages" mapstructure:"max_pages"`
	PageSize    int    `yaml:"page_size" mapstructure:"page_size"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ServerConfig configures the HTTP API server.
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
	v.SetEnvPrefix("COVERAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "coverage.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("geocode.provider", "auto")
	v.SetDefault("geocode.country", "Greece")
	v.SetDefault("geocode.language", "el,en")
	v.SetDefault("geocode.rps", 1.0)
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.max_retries", 3)
	v.SetDefault("geocode.workers", 4)
	v.SetDefault("match.threshold_meters", 50.0)
	v.SetDefault("match.mode", "first")
	v.SetDefault("registry.base_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("registry.max_pages", 5)
	v.SetDefault("registry.page_size", 50)
	v.SetDefault("registry.timeout_secs", 30)

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

// Validate checks the settings a given mode depends on. Modes map to the CLI
// commands: "match" and "geocode" share the pipeline requirements, "discover"
// needs the registry client, "serve" needs a listen port.
func (c *Config) Validate(mode string) error {
	var problems []string

	check := func(ok bool, msg string) {
		if !ok {
			problems = append(problems, msg)
		}
	}

	switch mode {
	case "match", "geocode":
		check(c.Geocode.Workers >= 1 && c.Geocode.Workers <= 64, "geocode.workers must be between 1 and 64")
		check(c.Geocode.RPS > 0, "geocode.rps must be > 0")
		check(c.Geocode.MaxRetries >= 1, "geocode.max_retries must be >= 1")
		check(c.Match.ThresholdMeters >= 0, "match.threshold_meters must be >= 0")
		check(c.Match.Mode == "first" || c.Match.Mode == "best", "match.mode must be first or best")
		check(c.Store.Driver != "postgres" || c.Store.DatabaseURL != "", "store.database_url is required for the postgres driver")
	case "discover":
		check(c.Registry.BaseURL != "", "registry.base_url is required")
		check(c.Registry.MaxPages >= 1, "registry.max_pages must be >= 1")
		check(c.Registry.PageSize >= 1 && c.Registry.PageSize <= 50, "registry.page_size must be between 1 and 50")
	case "serve":
		check(c.Server.Port > 0, "server.port must be > 0")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
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
