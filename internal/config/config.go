package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"anihub/pkg/models"
)

type UpstreamConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 disables
	RateBurst int           `yaml:"rate_burst"`
}

type ServerConfig struct {
	HTTPAddr       string   `yaml:"http_addr"`
	GRPCAddr       string   `yaml:"grpc_addr"`
	TrustedProxies []string `yaml:"trusted_proxies"`
	// per-IP limit on catalog routes
	ClientRate  float64 `yaml:"client_rate"`
	ClientBurst int     `yaml:"client_burst"`
}

type SearchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

type AuthConfig struct {
	JWTSecret         string        `yaml:"jwt_secret"`
	JWTIssuer         string        `yaml:"jwt_issuer"`
	JWTDuration       time.Duration `yaml:"jwt_duration"`
	AdminPasswordHash string        `yaml:"admin_password_hash"` // bcrypt
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"` // empty: stderr only
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

type Config struct {
	Upstream UpstreamConfig  `yaml:"upstream"`
	Server   ServerConfig    `yaml:"server"`
	Search   SearchConfig    `yaml:"search"`
	Auth     AuthConfig      `yaml:"auth"`
	Log      LogConfig       `yaml:"log"`
	DBPath   string          `yaml:"db_path"`
	Language models.Language `yaml:"language"`
}

// Default returns the dev defaults used when neither a file nor env sets a value.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return Config{
		Upstream: UpstreamConfig{
			BaseURL:   "http://localhost:4444/api",
			Timeout:   12 * time.Second,
			RateLimit: 10,
			RateBurst: 20,
		},
		Server: ServerConfig{
			HTTPAddr:       ":8080",
			GRPCAddr:       ":9090",
			TrustedProxies: []string{"127.0.0.1"},
			ClientRate:     20,
			ClientBurst:    40,
		},
		Search: SearchConfig{Debounce: 500 * time.Millisecond},
		Auth: AuthConfig{
			// dev default (change for production)
			JWTSecret:   "dev-secret-change-me",
			JWTIssuer:   "anihub",
			JWTDuration: 24 * time.Hour,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
		},
		DBPath:   filepath.Join(home, ".anihub", "data.db"),
		Language: models.LanguageEnglish,
	}
}

// Load reads path (optional, may be empty or missing) over the defaults, then
// applies ANIHUB_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			// no file: defaults + env
		case err != nil:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(b, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg, os.Getenv)

	if lang, err := models.ParseLanguage(string(cfg.Language)); err == nil {
		cfg.Language = lang
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Upstream.BaseURL) == "" {
		return errors.New("config: upstream.base_url is required")
	}
	if c.Search.Debounce <= 0 {
		return errors.New("config: search.debounce must be positive")
	}
	if _, err := models.ParseLanguage(string(c.Language)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for _, p := range c.Server.TrustedProxies {
		if !validProxy(p) {
			return fmt.Errorf("config: server.trusted_proxies: %q is not an IP or CIDR", p)
		}
	}
	return nil
}

func validProxy(p string) bool {
	if strings.Contains(p, "/") {
		_, _, err := net.ParseCIDR(p)
		return err == nil
	}
	return net.ParseIP(p) != nil
}

func applyEnv(c *Config, getenv func(string) string) {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			// bad values keep the previous setting
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}
	num := func(key string, dst *float64) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	str("ANIHUB_UPSTREAM_URL", &c.Upstream.BaseURL)
	dur("ANIHUB_UPSTREAM_TIMEOUT", &c.Upstream.Timeout)
	num("ANIHUB_UPSTREAM_RATE", &c.Upstream.RateLimit)
	str("ANIHUB_HTTP_ADDR", &c.Server.HTTPAddr)
	str("ANIHUB_GRPC_ADDR", &c.Server.GRPCAddr)
	dur("ANIHUB_SEARCH_DEBOUNCE", &c.Search.Debounce)
	str("ANIHUB_JWT_SECRET", &c.Auth.JWTSecret)
	str("ANIHUB_JWT_ISSUER", &c.Auth.JWTIssuer)
	dur("ANIHUB_JWT_TTL", &c.Auth.JWTDuration)
	str("ANIHUB_ADMIN_PASSWORD_HASH", &c.Auth.AdminPasswordHash)
	str("ANIHUB_LOG_LEVEL", &c.Log.Level)
	str("ANIHUB_LOG_FILE", &c.Log.File)
	str("ANIHUB_DB_PATH", &c.DBPath)

	if v := strings.TrimSpace(getenv("ANIHUB_LANGUAGE")); v != "" {
		if lang, err := models.ParseLanguage(v); err == nil {
			c.Language = lang
		}
	}
}
