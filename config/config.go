package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the lesson-guide service.
type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	LLM    LLMConfig    `mapstructure:"llm"`
	Images ImagesConfig `mapstructure:"images"`
	Tools  ToolsConfig  `mapstructure:"tools"`
	Cache  CacheConfig  `mapstructure:"cache"`
}

// AppConfig contains general application settings.
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Origin   string `mapstructure:"origin"`
	Timezone string `mapstructure:"timezone"`
	// Place is the default location geocoded for weather/marine tools when
	// the request supplies no coordinates.
	Place string `mapstructure:"place"`
	Debug bool   `mapstructure:"debug"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LLMConfig configures the generative planner backend.
type LLMConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	ChatModel       string        `mapstructure:"chat_model"`
	MaxOutputTokens int           `mapstructure:"max_output_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
	UseJSONSchema   bool          `mapstructure:"use_json_schema"`
}

func (l LLMConfig) Validate() error {
	if l.ChatModel == "" {
		return fmt.Errorf("llm.chat_model must be set")
	}
	return nil
}

// ImagesConfig configures the image provider chain.
type ImagesConfig struct {
	UnsplashKey string `mapstructure:"unsplash_key"`
	PexelsKey   string `mapstructure:"pexels_key"`
	// ProviderOrder is the fallback priority, e.g. "unsplash,pexels,generate".
	ProviderOrder string `mapstructure:"provider_order"`
	PerQuery      int    `mapstructure:"per_query"`
}

// Order returns the provider priority as a slice.
func (i ImagesConfig) Order() []string {
	var out []string
	for _, p := range strings.Split(i.ProviderOrder, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ToolsConfig configures the tool dispatcher.
type ToolsConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxAttempts   int           `mapstructure:"max_attempts"`
	BaseDelay     time.Duration `mapstructure:"base_delay"`
	BackoffFactor float64       `mapstructure:"backoff_factor"`
	ForecastDays  int           `mapstructure:"forecast_days"`
}

// CacheConfig selects and sizes the shared TTL cache.
type CacheConfig struct {
	Backend  string        `mapstructure:"backend"` // memory or redis
	TTL      time.Duration `mapstructure:"ttl"`
	Capacity int           `mapstructure:"capacity"`
	Redis    RedisConfig   `mapstructure:"redis"`
}

func (c CacheConfig) Validate() error {
	switch c.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Backend)
	}
	if c.Backend == "redis" && c.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr must be set when cache.backend is redis")
	}
	return nil
}

// RedisConfig holds Redis connection settings for the redis cache backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LoadConfig reads configuration from the given file, or searches the usual
// locations when path is empty. Environment variables prefixed KINGFISHER_
// override file values (e.g. KINGFISHER_LLM_API_KEY).
func LoadConfig(path string) *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("json")

	viper.SetDefault("app.name", "Kingfisher")
	viper.SetDefault("app.origin", "http://localhost:3000")
	viper.SetDefault("app.timezone", "Australia/Sydney")
	viper.SetDefault("app.place", "Clarence River, NSW")
	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("llm.chat_model", "gpt-5-mini")
	viper.SetDefault("llm.max_output_tokens", 1200)
	viper.SetDefault("llm.timeout", 40*time.Second)
	viper.SetDefault("llm.use_json_schema", true)
	viper.SetDefault("images.provider_order", "unsplash,pexels,generate")
	viper.SetDefault("images.per_query", 3)
	viper.SetDefault("tools.timeout", 10*time.Second)
	viper.SetDefault("tools.max_attempts", 3)
	viper.SetDefault("tools.base_delay", 500*time.Millisecond)
	viper.SetDefault("tools.backoff_factor", 2.0)
	viper.SetDefault("tools.forecast_days", 3)
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.ttl", 30*time.Minute)
	viper.SetDefault("cache.capacity", 1000)

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

	viper.SetEnvPrefix("KINGFISHER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Missing file is fine when everything comes from env/defaults.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}

	if err := config.LLM.Validate(); err != nil {
		panic(err)
	}
	if err := config.Cache.Validate(); err != nil {
		panic(err)
	}
	return &config
}
