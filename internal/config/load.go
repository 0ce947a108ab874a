package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	// Defaults for everything that has a sensible one. Credentials and the
	// model id deliberately have no default: missing values fail validation
	// at startup instead of surfacing mid-render.
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("provider.endpoint", "https://api.replicate.com/v1/predictions")
	v.SetDefault("provider.poll_interval_seconds", 3)
	v.SetDefault(
		"provider.default_prompt",
		"the person smiles naturally, gentle facial motion, subtle head movement, realistic lighting",
	)
	v.SetDefault("entitlement.free_quota", 1)
	// Zero-value defaults so AutomaticEnv can populate keys that have no
	// real default during Unmarshal.
	v.SetDefault("server.admin_key", "")
	v.SetDefault("database.url", "")
	v.SetDefault("provider.api_token", "")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.fallback_model", "")
	v.SetDefault("provider.resolution", "")
	v.SetDefault("provider.duration", 0)
	v.SetDefault("provider.seed", 0)
	v.SetDefault("render.poll_timeout_seconds", 300)
	v.SetDefault("render.fetch_timeout_seconds", 120)
	v.SetDefault("render.max_concurrent", 4)
	v.SetDefault("render.worker_count", 4)
	v.SetDefault("render.queue_size", 100)
	v.SetDefault("render.temp_dir", "/tmp")

	// Optional config file in the working directory.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables with the REVIVE_ prefix override everything,
	// e.g. REVIVE_PROVIDER_API_TOKEN maps to provider.api_token.
	v.SetEnvPrefix("REVIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
