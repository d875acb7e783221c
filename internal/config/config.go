package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sells-group/cafescrape/internal/model"
)

// Supply mode errors returned by Validate.
var (
	ErrNoSupplyMode    = eris.New("config: either google.api_key or pipeline.fixture_path is required")
	ErrBothSupplyModes = eris.New("config: google.api_key and pipeline.fixture_path are mutually exclusive")
)

// Config holds the full application configuration.
type Config struct {
	Google   GoogleConfig       `yaml:"google" mapstructure:"google"`
	Pipeline PipelineConfig     `yaml:"pipeline" mapstructure:"pipeline"`
	Cities   []model.CityTarget `yaml:"cities" mapstructure:"cities"`
	Web      WebConfig          `yaml:"web" mapstructure:"web"`
	Extract  ExtractConfig      `yaml:"extract" mapstructure:"extract"`
	Log      LogConfig          `yaml:"log" mapstructure:"log"`
}

// GoogleConfig configures the Places and Geocoding client.
type GoogleConfig struct {
	APIKey           string  `yaml:"api_key" mapstructure:"api_key"`
	RequestDelaySecs float64 `yaml:"request_delay_secs" mapstructure:"request_delay_secs"`
	GeocodeCities    bool    `yaml:"geocode_cities" mapstructure:"geocode_cities"`
	SearchRadiusM    int     `yaml:"search_radius_m" mapstructure:"search_radius_m"`
}

// PipelineConfig configures the run.
type PipelineConfig struct {
	MaxResultsPerCity int    `yaml:"max_results_per_city" mapstructure:"max_results_per_city"`
	FixturePath       string `yaml:"fixture_path" mapstructure:"fixture_path"`
	OutputPath        string `yaml:"output_path" mapstructure:"output_path"`
	MetricsPath       string `yaml:"metrics_path" mapstructure:"metrics_path"`
}

// WebConfig configures website fetching.
type WebConfig struct {
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	BackoffSecs       float64 `yaml:"backoff_secs" mapstructure:"backoff_secs"`
	RetryStatuses     []int   `yaml:"retry_statuses" mapstructure:"retry_statuses"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// ExtractConfig tunes owner-name inference.
type ExtractConfig struct {
	MinNameWords  int    `yaml:"min_name_words" mapstructure:"min_name_words"`
	MaxNameWords  int    `yaml:"max_name_words" mapstructure:"max_name_words"`
	NameTrimChars string `yaml:"name_trim_chars" mapstructure:"name_trim_chars"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
	File   string `yaml:"file" mapstructure:"file"`
}

// FixtureMode reports whether the run replays a fixture file.
func (c *Config) FixtureMode() bool {
	return c.Pipeline.FixturePath != ""
}

// Load reads configuration from path (or ./config.yaml when path is empty)
// and the environment. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("CAFESCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("google.api_key", "")
	v.SetDefault("google.request_delay_secs", 1.5)
	v.SetDefault("google.geocode_cities", false)
	v.SetDefault("google.search_radius_m", 5000)
	v.SetDefault("pipeline.max_results_per_city", 120)
	v.SetDefault("pipeline.fixture_path", "")
	v.SetDefault("pipeline.output_path", "output/cafes.csv")
	v.SetDefault("pipeline.metrics_path", "")
	v.SetDefault("web.timeout_secs", 20)
	v.SetDefault("web.max_retries", 3)
	v.SetDefault("web.backoff_secs", 3.0)
	v.SetDefault("web.retry_statuses", []int{429, 503})
	v.SetDefault("web.user_agent", "")
	v.SetDefault("web.requests_per_second", 0.0)
	v.SetDefault("extract.min_name_words", 1)
	v.SetDefault("extract.max_name_words", 4)
	v.SetDefault("extract.name_trim_chars", " -:\n\t")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")

	// Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration before any client is built.
func (c *Config) Validate() error {
	hasKey := strings.TrimSpace(c.Google.APIKey) != ""
	switch {
	case !hasKey && !c.FixtureMode():
		return ErrNoSupplyMode
	case hasKey && c.FixtureMode():
		return ErrBothSupplyModes
	}

	var errs []string
	if c.Google.RequestDelaySecs < 0 {
		errs = append(errs, "google.request_delay_secs must be >= 0")
	}
	if c.Pipeline.MaxResultsPerCity <= 0 {
		errs = append(errs, "pipeline.max_results_per_city must be > 0")
	}
	if c.Pipeline.OutputPath == "" {
		errs = append(errs, "pipeline.output_path is required")
	}
	if !c.FixtureMode() && len(c.Cities) == 0 {
		errs = append(errs, "cities is required in live mode")
	}
	for i, city := range c.Cities {
		if city.Name == "" || city.Country == "" {
			errs = append(errs, fmt.Sprintf("cities[%d] needs a name and a country", i))
		}
	}
	if c.Web.MaxRetries < 1 {
		errs = append(errs, "web.max_retries must be >= 1")
	}
	if c.Web.BackoffSecs <= 0 {
		errs = append(errs, "web.backoff_secs must be > 0")
	}
	if c.Extract.MinNameWords > c.Extract.MaxNameWords {
		errs = append(errs, "extract.min_name_words must be <= extract.max_name_words")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger. When cfg.File is set, JSON
// lines are also written to a rotating file.
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

	var opts []zap.Option
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50,
			MaxBackups: 3,
			MaxAge:     28,
		}
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(rotator),
			zapCfg.Level,
		)
		opts = append(opts, zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
	}

	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
