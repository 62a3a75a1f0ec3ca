package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default location of the YAML config file.
const ConfigPath = "config.yaml"

// Config represents configuration loaded from YAML and the environment.
type Config struct {
	Port           string          `yaml:"port"`
	DatabaseURL    string          `yaml:"databaseURL"`
	RedisAddr      string          `yaml:"redisAddr"`
	RedisPassword  string          `yaml:"redisPassword"`
	JWTSecret      string          `yaml:"jwtSecret"`
	TokenTTL       string          `yaml:"tokenTTL"`
	LogLevel       string          `yaml:"logLevel"`
	Minio          MinioConfig     `yaml:"minio"`
	Assistant      AssistantConfig `yaml:"assistant"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	// TrustedProxies lists proxy IPs/CIDRs whose X-Forwarded-For is honored.
	TrustedProxies []string        `yaml:"trustedProxies"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"useSSL"`
}

type AssistantConfig struct {
	BaseURL string `yaml:"baseURL"`
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
}

type RateLimitConfig struct {
	AssistantPerMinute int `yaml:"assistantPerMinute"`
	AuthPerMinute      int `yaml:"authPerMinute"`
}

// Load reads config from path (defaults to config.yaml). A missing file is not
// an error as long as the environment supplies the required keys.
func Load(path string) (Config, error) {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	cfg := Config{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TokenLifetime returns the parsed access token TTL.
func (c Config) TokenLifetime() time.Duration {
	d, err := time.ParseDuration(c.TokenTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

func applyEnv(cfg *Config) {
	setString(&cfg.Port, "PORT")
	setString(&cfg.DatabaseURL, "DB_DSN")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.TokenTTL, "TOKEN_TTL")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Minio.Endpoint, "MINIO_ENDPOINT")
	setString(&cfg.Minio.AccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.Minio.SecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.Minio.Bucket, "MINIO_BUCKET")
	if v := strings.TrimSpace(os.Getenv("MINIO_USE_SSL")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Minio.UseSSL = b
		}
	}
	setString(&cfg.Assistant.BaseURL, "ASSISTANT_BASE_URL")
	setString(&cfg.Assistant.APIKey, "ASSISTANT_API_KEY")
	setString(&cfg.Assistant.Model, "ASSISTANT_MODEL")
	if v := strings.TrimSpace(os.Getenv("TRUSTED_PROXIES")); v != "" {
		cfg.TrustedProxies = splitCSV(v)
	}
}

func splitCSV(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.TokenTTL == "" {
		cfg.TokenTTL = "24h"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Minio.Bucket == "" {
		cfg.Minio.Bucket = "listing-images"
	}
	if cfg.Assistant.BaseURL == "" {
		cfg.Assistant.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Assistant.Model == "" {
		cfg.Assistant.Model = "gpt-4o-mini"
	}
	if cfg.RateLimit.AssistantPerMinute <= 0 {
		cfg.RateLimit.AssistantPerMinute = 20
	}
	if cfg.RateLimit.AuthPerMinute <= 0 {
		cfg.RateLimit.AuthPerMinute = 10
	}
}

func validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	if cfg.DatabaseURL == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required (set in config.yaml or REDIS_ADDR)")
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: jwtSecret is required (set in config.yaml or JWT_SECRET)")
	}
	if _, err := time.ParseDuration(cfg.TokenTTL); err != nil {
		return fmt.Errorf("config: invalid tokenTTL %q: %w", cfg.TokenTTL, err)
	}
	return nil
}
