package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Model     ModelConfig
	Explain   ExplainConfig
	Features  FeaturesConfig
	LLM       LLMConfig
	Store     StoreConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Cache     CacheConfig
	QRCode    QRCodeConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
	Fly       FlyConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	Development  bool
}

// ModelConfig selects the classifier backend. Kind is "logistic" (JSON
// artefact, embedded default when Path is empty) or "remote" (model-serving
// sidecar at URL).
type ModelConfig struct {
	Kind       string
	Path       string
	URL        string
	TimeoutSec int
}

type ExplainConfig struct {
	NumFeatures  int
	NumSamples   int
	KernelWidth  float64
	PerturbScale float64
	MinScale     float64
	Alpha        float64
	Seed         int64
}

type FeaturesConfig struct {
	StrictMaterials bool
}

type LLMConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float32
	MaxTokens   int
	TimeoutSec  int
	MaxAttempts int
}

// StoreConfig selects the transaction store: "memory" or "sqlite".
type StoreConfig struct {
	Backend string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CacheConfig struct {
	Enabled bool
	TTLSec  int
}

type QRCodeConfig struct {
	URL   string
	Title string
	Color string
	Logo  string
}

type RateLimitConfig struct {
	Enabled              bool
	MaxRequestsPerMinute int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

type FlyConfig struct {
	Binary     string
	ConfigPath string
}

func Load() (*Config, error) {
	// Secrets such as the LLM API key usually come from a local .env file
	// during development. A missing file is not an error.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/ecotracker")

	v.SetEnvPrefix("ECOTRACKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// PaaS platforms hand the listen port over in PORT.
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		config.Server.Port = p
	}

	return &config, nil
}

// Default returns the configuration Load would produce with no config file
// and no environment overrides.
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(err)
	}
	return &config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 120)
	v.SetDefault("server.bodyLimit", 1048576)
	v.SetDefault("server.development", false)

	v.SetDefault("model.kind", "logistic")
	v.SetDefault("model.path", "")
	v.SetDefault("model.url", "http://localhost:9000")
	v.SetDefault("model.timeoutSec", 10)

	v.SetDefault("explain.numFeatures", 10)
	v.SetDefault("explain.numSamples", 5000)
	v.SetDefault("explain.kernelWidth", 0)
	v.SetDefault("explain.perturbScale", 0.25)
	v.SetDefault("explain.minScale", 1.0)
	v.SetDefault("explain.alpha", 1.0)
	v.SetDefault("explain.seed", 0)

	v.SetDefault("features.strictMaterials", false)

	v.SetDefault("llm.baseURL", "https://api.together.xyz/v1")
	v.SetDefault("llm.model", "meta-llama/Meta-Llama-3-70B-Instruct-Turbo")
	v.SetDefault("llm.apiKey", "")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.maxTokens", 4096)
	v.SetDefault("llm.timeoutSec", 60)
	v.SetDefault("llm.maxAttempts", 2)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("sqlite.path", "./data/ecotracker.db")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.ttlSec", 3600)

	v.SetDefault("qrcode.url", "https://ecotracker-vercel.vercel.app/")
	v.SetDefault("qrcode.title", "EcoTracker App")
	v.SetDefault("qrcode.color", "#28a745")
	v.SetDefault("qrcode.logo", "")

	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.maxRequestsPerMinute", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("fly.binary", "flyctl")
	v.SetDefault("fly.configPath", "fly.toml")
}
