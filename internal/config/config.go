package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Port           string        `yaml:"port"`
	DataDir        string        `yaml:"data_dir"`
	JWTSecret      string        `yaml:"jwt_secret"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	StoreRetries   int           `yaml:"store_retries"`
	StoreRetryWait time.Duration `yaml:"store_retry_delay"`
	CORSOrigins    []string      `yaml:"cors_origins"`
	AuditOnExit    bool          `yaml:"audit_on_exit"`
}

// Load builds the configuration from defaults, then the YAML file named by
// LEDGER_CONFIG (if set), then environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           "8081",
		DataDir:        "data",
		JWTSecret:      "dev-secret-change-in-production",
		PollInterval:   10 * time.Second,
		StoreRetries:   0,
		StoreRetryWait: 100 * time.Millisecond,
		CORSOrigins:    []string{"http://localhost:3000"},
	}

	if path := os.Getenv("LEDGER_CONFIG"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DataDir = getEnv("LEDGER_DATA_DIR", cfg.DataDir)
	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	if origins := splitCSV(os.Getenv("CORS_ORIGINS")); len(origins) > 0 {
		cfg.CORSOrigins = origins
	}

	var err error
	if cfg.PollInterval, err = getDuration("LEDGER_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return nil, err
	}
	if cfg.StoreRetryWait, err = getDuration("LEDGER_STORE_RETRY_DELAY", cfg.StoreRetryWait); err != nil {
		return nil, err
	}
	if v := os.Getenv("LEDGER_STORE_RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("LEDGER_STORE_RETRIES: %q is not a non-negative integer", v)
		}
		cfg.StoreRetries = n
	}

	if v := os.Getenv("LEDGER_AUDIT_ON_EXIT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("LEDGER_AUDIT_ON_EXIT: %q is not a boolean", v)
		}
		cfg.AuditOnExit = b
	}

	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be positive, got %s", cfg.PollInterval)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
