package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the quibble broker
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Registry  RegistryConfig  `mapstructure:"registry"`
	Acquire   AcquireConfig   `mapstructure:"acquire"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Debug          bool          `mapstructure:"debug"`
	LogLevel       string        `mapstructure:"log_level"`
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
}

// ServerConfig contains HTTP server and session-token settings
type ServerConfig struct {
	Address          string        `mapstructure:"address"`
	SessionSecret    string        `mapstructure:"session_secret"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	DebugDiagnostics bool          `mapstructure:"debug_diagnostics"`
	MockFallback     bool          `mapstructure:"mock_fallback"`
}

// ProvidersConfig contains external LLM provider configurations
type ProvidersConfig struct {
	OpenAI OpenAIConfig `mapstructure:"openai"`
}

// OpenAIConfig configures the intent-classification provider
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RegistryConfig locates the seller endpoint registry file
type RegistryConfig struct {
	Path string `mapstructure:"path"`
}

// AcquireConfig tunes the offer acquisition run
type AcquireConfig struct {
	TargetOffers   int           `mapstructure:"target_offers"`
	PoolMultiplier int           `mapstructure:"pool_multiplier"`
	ListTimeout    time.Duration `mapstructure:"list_timeout"`
	CallTimeout    time.Duration `mapstructure:"call_timeout"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	RateBurst      int           `mapstructure:"rate_burst"`
}

// CacheConfig configures the tool-listing cache. An empty redis_addr selects
// the in-process cache.
type CacheConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// TelemetryConfig controls metrics exposure
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig reads configuration from file and environment (QUIBBLE_* overrides).
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("general.log_level", "info")
	viper.SetDefault("general.default_timeout", "30s")
	viper.SetDefault("server.address", ":10030")
	viper.SetDefault("server.session_ttl", "2h")
	viper.SetDefault("server.mock_fallback", true)
	viper.SetDefault("providers.openai.model", "gpt-4o-mini")
	viper.SetDefault("providers.openai.temperature", 0.0)
	viper.SetDefault("providers.openai.max_tokens", 600)
	viper.SetDefault("providers.openai.timeout", "20s")
	viper.SetDefault("registry.path", "sellers.json")
	viper.SetDefault("acquire.target_offers", 3)
	viper.SetDefault("acquire.pool_multiplier", 3)
	viper.SetDefault("acquire.list_timeout", "5s")
	viper.SetDefault("acquire.call_timeout", "12s")
	viper.SetDefault("acquire.rate_per_second", 8)
	viper.SetDefault("acquire.rate_burst", 4)
	viper.SetDefault("cache.ttl", "10m")
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
		exe, _ := os.Executable()
		exeDir := filepath.Dir(exe)
		viper.AddConfigPath(exeDir)
		viper.AddConfigPath(filepath.Join(exeDir, ".."))
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("QUIBBLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// the file is optional: defaults plus QUIBBLE_* env are enough to boot
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("fatal error unmarshalling config: %w", err))
	}
	return &cfg
}
