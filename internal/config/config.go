package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/pit-store/internal/model"
	"github.com/sells-group/pit-store/internal/pit"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	PIT    PITConfig    `yaml:"pit" mapstructure:"pit"`
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the snapshot database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PITConfig configures effective-date resolution and coverage thresholds.
type PITConfig struct {
	LagByKind               map[string]int `yaml:"lag_by_kind" mapstructure:"lag_by_kind"`
	SafetyBufferTradingDays int            `yaml:"safety_buffer_trading_days" mapstructure:"safety_buffer_trading_days"`
	SourcePriority          []string       `yaml:"source_priority" mapstructure:"source_priority"`
	MinPeriodsRequired      int            `yaml:"min_periods_required" mapstructure:"min_periods_required"`
}

// ResolverConfig converts the raw config into the resolver's typed form.
// Validation happens in pit.NewResolver, so a bad lag table or an unknown
// source name fails loudly there.
func (c PITConfig) ResolverConfig() pit.ResolverConfig {
	lags := make(map[model.StatementKind]int, len(c.LagByKind))
	for kind, days := range c.LagByKind {
		lags[model.StatementKind(kind)] = days
	}
	priority := make([]model.EffectiveSource, 0, len(c.SourcePriority))
	for _, src := range c.SourcePriority {
		priority = append(priority, model.EffectiveSource(src))
	}
	return pit.ResolverConfig{
		LagByKind:               lags,
		SafetyBufferTradingDays: c.SafetyBufferTradingDays,
		SourcePriority:          priority,
	}
}

// IngestConfig configures payload ingestion.
type IngestConfig struct {
	PayloadDir           string `yaml:"payload_dir" mapstructure:"payload_dir"`
	MaxConcurrentSymbols int    `yaml:"max_concurrent_symbols" mapstructure:"max_concurrent_symbols"`
}

// ServerConfig configures the read-only API server.
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
	v.SetEnvPrefix("PIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "pit.db")
	v.SetDefault("pit.lag_by_kind", map[string]int{
		"quarterly": 60,
		"annual":    90,
		"ttm":       60,
	})
	v.SetDefault("pit.safety_buffer_trading_days", 2)
	v.SetDefault("pit.source_priority", []string{
		"reported_date",
		"payload_updated_at",
		"period_end_plus_lag",
	})
	v.SetDefault("pit.min_periods_required", 4)
	v.SetDefault("ingest.payload_dir", "data/payloads")
	v.SetDefault("ingest.max_concurrent_symbols", 4)
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
