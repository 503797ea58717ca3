package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-bridge/engine"
	"github.com/wippyai/wasm-bridge/errors"
)

// EnvPrefix prefixes every environment override, e.g. FOCUS_MODULE_PATH.
const EnvPrefix = "FOCUS"

var validate = validator.New()

// Config holds playground configuration. Environment variable names are
// derived from field names: Engine.MemoryLimitPages is
// FOCUS_ENGINE_MEMORY_LIMIT_PAGES.
type Config struct {
	Module ModuleConfig `yaml:"module"`
	Engine EngineConfig `yaml:"engine"`
	Log    LogConfig    `yaml:"log"`
}

// ModuleConfig says where the guest module comes from.
type ModuleConfig struct {
	Path    string        `yaml:"path"`
	URL     string        `yaml:"url" validate:"omitempty,url"`
	MaxSize int64         `yaml:"max_size" split_words:"true" validate:"gt=0"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
	Retries int           `yaml:"retries" validate:"gte=0,lte=10"`
}

// EngineConfig holds wazero settings.
type EngineConfig struct {
	CompilationCacheDir string `yaml:"compilation_cache_dir" split_words:"true"`
	MemoryLimitPages    uint32 `yaml:"memory_limit_pages" split_words:"true" validate:"lte=65536"`
	EnableWASI          bool   `yaml:"enable_wasi" split_words:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Format      string `yaml:"format" validate:"oneof=console json"`
	Development bool   `yaml:"development"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Module: ModuleConfig{
			MaxSize: 64 << 20,
			Timeout: 30 * time.Second,
			Retries: 3,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load applies, in order, the defaults, the YAML file at path (skipped when
// path is empty) and FOCUS_* environment variables, then validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseValidate, errors.KindInvalidInput, err, "read config file")
		}
		if err := yaml.UnmarshalWithOptions(data, cfg, yaml.Strict()); err != nil {
			return nil, errors.Wrap(errors.PhaseValidate, errors.KindInvalidInput, err, fmt.Sprintf("parse %s", path))
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseValidate, errors.KindInvalidInput, err, "environment overrides")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.PhaseValidate, errors.KindInvalidInput, err, "config validation failed")
	}
	return nil
}

// Source returns the configured module source. A URL wins over a path.
func (c *Config) Source() (engine.Source, error) {
	switch {
	case c.Module.URL != "":
		return engine.URL(c.Module.URL), nil
	case c.Module.Path != "":
		return engine.File(c.Module.Path), nil
	default:
		return engine.Source{}, errors.InvalidInput(errors.PhaseValidate, "no module configured: set module.path, module.url or FOCUS_MODULE_PATH")
	}
}

// EngineConfig converts the configuration for engine.NewWazeroEngine.
func (c *Config) EngineConfig(logger *zap.Logger) *engine.Config {
	return &engine.Config{
		Logger:              logger,
		CompilationCacheDir: c.Engine.CompilationCacheDir,
		MemoryLimitPages:    c.Engine.MemoryLimitPages,
		EnableWASI:          c.Engine.EnableWASI,
		Loader: engine.LoaderConfig{
			MaxModuleSize: c.Module.MaxSize,
			RetryMax:      c.Module.Retries,
			Timeout:       c.Module.Timeout,
		},
	}
}

// Logger builds a zap logger writing to stderr.
func (l LogConfig) Logger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(l.Level))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseValidate, errors.KindInvalidInput, err, "log level")
	}

	var zc zap.Config
	if l.Development {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = l.Format
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	if l.Format == "console" {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zc.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.TimeOnly)
	}
	return zc.Build()
}
