package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	mu     sync.Mutex
	active *viper.Viper
)

// envKeys are bound explicitly so overrides work without a config file.
var envKeys = []string{
	"server.port",
	"pipeline.default_tone",
	"pipeline.default_mode",
	"pipeline.max_input_length",
	"pipeline.match_timeout",
	"dataset.source",
	"dataset.path",
	"dataset.watch",
	"logging.level",
	"logging.format",
	"cache.enabled",
	"cache.redis_url",
	"store.enabled",
	"store.database_url",
	"websocket.username",
	"websocket.password",
	"rate_limit.enabled",
	"rate_limit.requests_per_min",
	"rate_limit.trust_proxy_headers",
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/textfix/")
	v.AddConfigPath("$HOME/.textfix/")

	v.SetEnvPrefix("TEXTFIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	mu.Lock()
	active = v
	mu.Unlock()

	return config, nil
}

var (
	validTones = []string{"none", "formal", "friendly"}
	validModes = []string{"none", "clarity", "shorten"}
)

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if !contains(validTones, config.Pipeline.DefaultTone) {
		return fmt.Errorf("invalid default tone: %s (must be none, formal, or friendly)", config.Pipeline.DefaultTone)
	}

	if !contains(validModes, config.Pipeline.DefaultMode) {
		return fmt.Errorf("invalid default mode: %s (must be none, clarity, or shorten)", config.Pipeline.DefaultMode)
	}

	if config.Pipeline.MaxInputLength <= 0 {
		return fmt.Errorf("invalid max input length: %d", config.Pipeline.MaxInputLength)
	}

	if config.Pipeline.MatchTimeout < 0 {
		return fmt.Errorf("invalid match timeout: %s", config.Pipeline.MatchTimeout)
	}

	if config.Dataset.Source != "file" && config.Dataset.Source != "store" {
		return fmt.Errorf("invalid dataset source: %s (must be file or store)", config.Dataset.Source)
	}

	if config.Dataset.Source == "store" && !config.Store.Enabled {
		return fmt.Errorf("dataset source store requires store.enabled")
	}

	if config.Dataset.Watch && config.Dataset.Path == "" {
		return fmt.Errorf("dataset.watch requires dataset.path")
	}

	if !contains([]string{"debug", "info", "warn", "error"}, config.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	if config.RateLimit.Enabled && config.RateLimit.RequestsPerMin <= 0 {
		return fmt.Errorf("invalid rate limit: %d requests per minute", config.RateLimit.RequestsPerMin)
	}

	return nil
}

// Watch starts watching the configuration file for changes. Invalid
// configurations are reported to onError and otherwise ignored.
func Watch(callback func(*Config), onError func(error)) error {
	mu.Lock()
	v := active
	mu.Unlock()

	if v == nil {
		return fmt.Errorf("configuration not loaded")
	}
	if v.ConfigFileUsed() == "" {
		return fmt.Errorf("no configuration file to watch")
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := v.Unmarshal(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("failed to unmarshal %s: %w", e.Name, err))
			}
			return
		}

		if err := validateConfig(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("invalid configuration in %s: %w", e.Name, err))
			}
			return
		}

		callback(newConfig)
	})
	v.WatchConfig()

	return nil
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
