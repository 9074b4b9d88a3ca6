package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Ido77/tarot-capital/internal/extract"
)

// Config holds the full application configuration.
type Config struct {
	Ninjas  NinjasConfig  `yaml:"ninjas" mapstructure:"ninjas"`
	EDGAR   EDGARConfig   `yaml:"edgar" mapstructure:"edgar"`
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Batch   BatchConfig   `yaml:"batch" mapstructure:"batch"`
	Output  OutputConfig  `yaml:"output" mapstructure:"output"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// NinjasConfig holds API Ninjas credentials and endpoint settings.
type NinjasConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// EDGARConfig configures direct downloads from sec.gov. SEC's fair-access
// policy requires a User-Agent with a contact address.
type EDGARConfig struct {
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent"`
}

// ExtractConfig holds the extraction and validation thresholds.
type ExtractConfig struct {
	MinUpsidePct         float64 `yaml:"min_upside_pct" mapstructure:"min_upside_pct"`
	MaxPlausibleMultiple float64 `yaml:"max_plausible_multiple" mapstructure:"max_plausible_multiple"`
	MinUniqueTargets     int     `yaml:"min_unique_targets" mapstructure:"min_unique_targets"`
	RegexGapCap          int     `yaml:"regex_gap_cap" mapstructure:"regex_gap_cap"`
	MonthsBack           int     `yaml:"months_back" mapstructure:"months_back"`
	MaxFilings           int     `yaml:"max_filings" mapstructure:"max_filings"`
	HighUpsidePct        float64 `yaml:"high_upside_pct" mapstructure:"high_upside_pct"`
}

// Core converts the configured thresholds into the value type the pure
// extraction functions consume.
func (c ExtractConfig) Core() extract.Config {
	return extract.Config{
		MinUpsidePct:         decimal.NewFromFloat(c.MinUpsidePct),
		MaxPlausibleMultiple: decimal.NewFromFloat(c.MaxPlausibleMultiple),
		MinUniqueTargets:     c.MinUniqueTargets,
		GapCap:               c.RegexGapCap,
	}
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Path        string `yaml:"path" mapstructure:"path"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentTickers int `yaml:"max_concurrent_tickers" mapstructure:"max_concurrent_tickers"`
}

// OutputConfig configures result export.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the results server.
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
	v.SetEnvPrefix("TAROT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("ninjas.base_url", "https://api.api-ninjas.com/v1")
	v.SetDefault("edgar.user_agent", "tarot-capital research tool admin@tarot-capital.dev")
	v.SetDefault("extract.min_upside_pct", 50.0)
	v.SetDefault("extract.max_plausible_multiple", 50.0)
	v.SetDefault("extract.min_unique_targets", 1)
	v.SetDefault("extract.regex_gap_cap", extract.DefaultGapCap)
	v.SetDefault("extract.months_back", 6)
	v.SetDefault("extract.max_filings", 50)
	v.SetDefault("extract.high_upside_pct", 40.0)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "tarot.db")
	v.SetDefault("batch.max_concurrent_tickers", 4)
	v.SetDefault("output.dir", "output")
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
