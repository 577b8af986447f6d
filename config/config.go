package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is loaded once at startup and passed down explicitly.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Providers ProvidersConfig `yaml:"providers"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	UploadDir   string `yaml:"upload_dir"`
	MaxFileSize int64  `yaml:"max_file_size"`
	// PDFDPI is the resolution PDF pages are rendered at for vision models.
	PDFDPI int `yaml:"pdf_dpi"`
}

type LogConfig struct {
	Level    string   `yaml:"level"`
	Encoding string   `yaml:"encoding"`
	Outputs  []string `yaml:"outputs"`
}

type RedisConfig struct {
	Addr        string `yaml:"addr"`
	DB          int    `yaml:"db"`
	Concurrency int    `yaml:"concurrency"`
	// CleanupSchedule is when workers sweep expired attachments. Empty
	// disables the sweep.
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// Default returns the configuration used when neither a file nor the
// environment says otherwise.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        5001,
			UploadDir:   "tmp_uploads",
			MaxFileSize: 20 * 1024 * 1024,
			PDFDPI:      150,
		},
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
			Outputs:  []string{"stdout", "logs/gateway.log"},
		},
		Providers: DefaultProviders(),
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			Concurrency:     10,
			CleanupSchedule: "@every 1h",
		},
		Storage: StorageConfig{
			Type:      StorageTypeMinio,
			Retention: 24 * time.Hour,
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, the .env file and finally the process environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Printf("Warning: config file %s not found, using defaults", path)
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, falling back to environment variables")
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Providers.Gemini.APIKey, "GEMINI_API_KEY")
	setString(&c.Providers.Gemini.BaseURL, "GEMINI_BASE_URL")
	setString(&c.Providers.Gemini.DefaultModel, "GEMINI_DEFAULT_MODEL")
	setString(&c.Providers.Groq.APIKey, "GROQ_API_KEY")
	setString(&c.Providers.Groq.BaseURL, "GROQ_BASE_URL")
	setString(&c.Providers.Groq.DefaultModel, "GROQ_DEFAULT_MODEL")
	setString(&c.Server.UploadDir, "UPLOAD_DIR")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Redis.Addr, "REDIS_ADDR")

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("PROVIDER_HEADER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PROVIDER_HEADER_TIMEOUT %q: %w", v, err)
		}
		c.Providers.HeaderTimeout = d
	}

	c.Storage.applyEnv()
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
