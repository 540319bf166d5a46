package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server  Server  `yaml:"server"`
	Backend Backend `yaml:"backend"`
	Upload  Upload  `yaml:"upload"`
	Preview Preview `yaml:"preview"`
	Cache   Cache   `yaml:"cache"`
	Redis   Redis   `yaml:"redis"`
	Log     Log     `yaml:"log"`
	Tracing Tracing `yaml:"tracing"`
}

// Server has no whole-request read timeout: uploads stream for as long as
// the link needs. TransferTimeout bounds the upload and download routes
// instead, and WriteTimeout the rest.
type Server struct {
	Port              string        `yaml:"port" validate:"required,numeric"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout" validate:"gt=0"`
	WriteTimeout      time.Duration `yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout       time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	TransferTimeout   time.Duration `yaml:"transfer_timeout" validate:"gtefield=WriteTimeout"`
	SecureCookies     bool          `yaml:"secure_cookies"`
	// AllowedOrigins for the JSON passthrough under /api.
	AllowedOrigins []string   `yaml:"allowed_origins"`
	RateLimits     RateLimits `yaml:"rate_limits"`
}

// RateLimits are per client IP token buckets for the mutating routes.
type RateLimits struct {
	Upload Bucket        `yaml:"upload"`
	Delete Bucket        `yaml:"delete"`
	Idle   time.Duration `yaml:"idle" validate:"gt=0"`
}

type Bucket struct {
	PerSecond float64 `yaml:"per_second" validate:"gt=0"`
	Burst     int     `yaml:"burst" validate:"gte=1"`
}

type Backend struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type Upload struct {
	MaxBytes int64 `yaml:"max_bytes" validate:"gt=0"`
}

type Preview struct {
	MaxBytes      int64         `yaml:"max_bytes" validate:"gt=0"`
	MaxTextBytes  int64         `yaml:"max_text_bytes" validate:"gt=0,ltefield=MaxBytes"`
	TTL           time.Duration `yaml:"ttl" validate:"gt=0"`
	BudgetBytes   int64         `yaml:"budget_bytes" validate:"gtefield=MaxBytes"`
	ThumbnailSide int           `yaml:"thumbnail_side" validate:"gt=0,lte=1024"`
}

type Cache struct {
	ListTTL      time.Duration `yaml:"list_ttl" validate:"gte=0"`
	ThumbnailTTL time.Duration `yaml:"thumbnail_ttl" validate:"gte=0"`
}

type Redis struct {
	Addr     string `yaml:"addr" validate:"omitempty,hostname_port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
}

type Log struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
}

type Tracing struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name" validate:"required"`
}

// Default returns the configuration used for keys missing from the file.
func Default() Config {
	return Config{
		Server: Server{
			Port:              "8081",
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      5 * time.Minute,
			IdleTimeout:       time.Minute,
			TransferTimeout:   time.Hour,
			RateLimits: RateLimits{
				Upload: Bucket{PerSecond: 1, Burst: 10},
				Delete: Bucket{PerSecond: 2, Burst: 20},
				Idle:   time.Hour,
			},
		},
		Backend: Backend{
			BaseURL: "http://localhost:8001",
			Timeout: 5 * time.Minute,
		},
		Upload: Upload{MaxBytes: 100 << 20},
		Preview: Preview{
			MaxBytes:      50 << 20,
			MaxTextBytes:  1 << 20,
			TTL:           10 * time.Minute,
			BudgetBytes:   256 << 20,
			ThumbnailSide: 160,
		},
		Cache: Cache{
			ListTTL:      10 * time.Second,
			ThumbnailTTL: 24 * time.Hour,
		},
		Log:     Log{Level: "info"},
		Tracing: Tracing{ServiceName: "filevault-frontend"},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("can't read config file %s: %w", path, err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return nil, fmt.Errorf("can't unmarshal config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg)

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cfg.Backend.BaseURL = strings.TrimRight(cfg.Backend.BaseURL, "/")
	return &cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("BACKEND_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		cfg.Tracing.Endpoint = v
	}
}
