package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/deaddrop/deaddrop"
	dhttp "github.com/deaddrop/deaddrop/http"
	"github.com/deaddrop/deaddrop/metadata"
)

// configKey is the context key for storing the loaded configuration.
type configKey struct{}

// WithContext returns a new context with the config stored.
func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from context.
// Returns an error if config is not found.
func FromContext(ctx context.Context) (*Config, error) {
	cfg, ok := ctx.Value(configKey{}).(*Config)
	if !ok || cfg == nil {
		return nil, errors.New("config not found in context")
	}
	return cfg, nil
}

// Config is the root configuration struct for deaddrop.
type Config struct {
	Server   ServerConfig     `mapstructure:"server"`
	Service  ServiceConfig    `mapstructure:"service"`
	Metadata metadata.Config  `mapstructure:"metadata"`
	Storage  StorageConfig    `mapstructure:"storage"`
	Retry    RetryConfig      `mapstructure:"retry"`
	Reaper   ReaperConfig     `mapstructure:"reaper"`
	CORS     dhttp.CORSConfig `mapstructure:"cors"`
	Log      LogConfig        `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port          int   `mapstructure:"port" validate:"required,min=1,max=65535"`
	MaxUploadSize int64 `mapstructure:"max_upload_size" validate:"min=1"`
}

// ServiceConfig holds service-level configuration.
type ServiceConfig struct {
	CleanupTimeout int `mapstructure:"cleanup_timeout" validate:"min=1"`
}

// StorageConfig holds blob storage configuration.
type StorageConfig struct {
	Path string `mapstructure:"path" validate:"required"`
	// OpTimeout bounds a single blob operation, in seconds.
	OpTimeout int `mapstructure:"op_timeout" validate:"min=1"`
}

// RetryConfig controls retries of transient metadata failures.
type RetryConfig struct {
	MaxAttempts int `mapstructure:"max_attempts" validate:"min=1"`
	BaseDelayMS int `mapstructure:"base_delay_ms" validate:"min=1"`
}

// ReaperConfig controls the background deletion queue.
type ReaperConfig struct {
	QueueSize int `mapstructure:"queue_size" validate:"min=1"`
	Attempts  int `mapstructure:"attempts" validate:"min=1"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"metadata-type": "metadata.type",
	"metadata-url":  "metadata.url",
	"storage-path":  "storage.path",
	"port":          "server.port",
}

// bindFlags binds CLI flags to viper keys with custom name mapping.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		// Use custom mapping if it exists, otherwise use flag name as-is
		viperKey := f.Name
		if mapped, ok := flagToViperKey[viperKey]; ok {
			viperKey = mapped
		}

		// Only bind if the flag was explicitly set
		if f.Changed {
			_ = v.BindPFlag(viperKey, f)
		}
	})
}

// setDefaults configures default values on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_size", deaddrop.DefaultMaxFileSize)

	v.SetDefault("service.cleanup_timeout", 30) // seconds

	v.SetDefault("metadata.type", "redis")
	v.SetDefault("metadata.url", "redis://localhost:6379/0")
	v.SetDefault("metadata.namespace", "")

	v.SetDefault("storage.path", "./storage")
	v.SetDefault("storage.op_timeout", 10) // seconds

	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay_ms", 100)

	v.SetDefault("reaper.queue_size", 128)
	v.SetDefault("reaper.attempts", 3)

	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"*"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration and returns a validated Config struct.
// Order of precedence (highest to lowest): flags > env > config files > defaults
//
// Parameters:
//   - configFiles: list of config file paths (later files override earlier ones)
//   - flags: cobra flag set for flag binding (can be nil)
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Read config files
	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("error reading config file", "file", configFiles[0], "err", err)
		}

		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				slog.Warn("error merging config file", "file", cf, "err", err)
			}
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		if err := v.ReadInConfig(); err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	// 3. Bind environment variables
	v.SetEnvPrefix("DEADDROP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Bind flags (if provided)
	if flags != nil {
		bindFlags(v, flags)
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// 6. Validate using go-playground/validator
	validate := validator.New()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}
