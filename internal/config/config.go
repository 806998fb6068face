package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Facilities FacilitiesConfig `yaml:"facilities" mapstructure:"facilities"`
	Tracts     TractsConfig     `yaml:"tracts" mapstructure:"tracts"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	S3         S3Config         `yaml:"s3" mapstructure:"s3"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// FacilitiesConfig configures the trauma hospital source and predicates.
type FacilitiesConfig struct {
	// Source is a file path, http(s) URL or s3://bucket/key.
	Source                 string `yaml:"source" mapstructure:"source"`
	Level1Match            string `yaml:"level1_match" mapstructure:"level1_match"`
	HelipadCaseInsensitive bool   `yaml:"helipad_case_insensitive" mapstructure:"helipad_case_insensitive"`
}

// TractsConfig configures census tract downloads.
type TractsConfig struct {
	Year              int     `yaml:"year" mapstructure:"year"`
	Cartographic      bool    `yaml:"cartographic" mapstructure:"cartographic"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	TempDir           string  `yaml:"temp_dir" mapstructure:"temp_dir"`
	CacheTTLHours     int     `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Concurrency       int     `yaml:"concurrency" mapstructure:"concurrency"`
	RetryAttempts     int     `yaml:"retry_attempts" mapstructure:"retry_attempts"`
	RetryBackoffMs    int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
	PruneIntervalMins int     `yaml:"prune_interval_mins" mapstructure:"prune_interval_mins"`
}

// CacheTTL returns the tract cache TTL as a duration.
func (t TractsConfig) CacheTTL() time.Duration {
	return time.Duration(t.CacheTTLHours) * time.Hour
}

// CacheConfig configures the tract cache backend.
type CacheConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	DSN    string `yaml:"dsn" mapstructure:"dsn"`
}

// AnalysisConfig configures the accessibility computation.
type AnalysisConfig struct {
	CatchmentRadiusMeters float64 `yaml:"catchment_radius_meters" mapstructure:"catchment_radius_meters"`
	// TargetEPSG forces one projection for every state; 0 picks per state.
	TargetEPSG int `yaml:"target_epsg" mapstructure:"target_epsg"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// S3Config configures the optional S3 facility source.
type S3Config struct {
	Region    string `yaml:"region" mapstructure:"region"`
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	PathStyle bool   `yaml:"path_style" mapstructure:"path_style"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TRAUMA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("facilities.source", "data/trauma_centers.geojson")
	v.SetDefault("facilities.level1_match", "token")
	v.SetDefault("facilities.helipad_case_insensitive", false)
	v.SetDefault("tracts.year", 2021)
	v.SetDefault("tracts.cartographic", true)
	v.SetDefault("tracts.base_url", "https://www2.census.gov/geo/tiger")
	v.SetDefault("tracts.temp_dir", "/tmp/trauma-access/tiger")
	v.SetDefault("tracts.cache_ttl_hours", 720)
	v.SetDefault("tracts.requests_per_second", 2.0)
	v.SetDefault("tracts.concurrency", 3)
	v.SetDefault("tracts.retry_attempts", 3)
	v.SetDefault("tracts.retry_backoff_ms", 500)
	v.SetDefault("tracts.prune_interval_mins", 60)
	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.dsn", "trauma-access.db")
	v.SetDefault("analysis.catchment_radius_meters", 100000.0)
	v.SetDefault("analysis.target_epsg", 0)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("s3.region", "us-east-1")

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

// Validate checks the settings a command mode depends on.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "analyze", "serve", "tracts":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if mode != "tracts" {
		if c.Facilities.Source == "" {
			errs = append(errs, "facilities.source is required")
		}
		switch c.Facilities.Level1Match {
		case "token", "substring":
		default:
			errs = append(errs, "facilities.level1_match must be token or substring")
		}
		if c.Analysis.CatchmentRadiusMeters <= 0 {
			errs = append(errs, "analysis.catchment_radius_meters must be > 0")
		}
	}

	switch c.Cache.Driver {
	case "sqlite", "postgres", "none":
	default:
		errs = append(errs, "cache.driver must be sqlite, postgres or none")
	}
	if c.Cache.Driver != "none" && c.Cache.DSN == "" {
		errs = append(errs, "cache.dsn is required")
	}
	if c.Tracts.Concurrency < 1 || c.Tracts.Concurrency > 16 {
		errs = append(errs, "tracts.concurrency must be between 1 and 16")
	}
	if c.Tracts.RequestsPerSecond <= 0 {
		errs = append(errs, "tracts.requests_per_second must be > 0")
	}

	if mode == "serve" && c.Server.Port <= 0 {
		errs = append(errs, "server.port must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
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
