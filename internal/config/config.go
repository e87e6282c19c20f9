// Package config loads process configuration from the environment and an
// optional YAML file of audit thresholds.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"invoice-auditor/internal/core"

	"gopkg.in/yaml.v3"
)

// Config is the configuration of the server and CLI binaries.
type Config struct {
	DatabaseURL    string
	ServerPort     string
	AllowedOrigins string
	OpenAIAPIKey   string
	OpenAIModel    string
	JWTSecret      string
	Audit          core.AuditConfig
}

// auditFile is the on-disk shape of AUDIT_CONFIG_FILE.
type auditFile struct {
	Audit core.AuditConfig `yaml:"audit"`
}

// Load reads the environment. Call godotenv.Load first to honour a .env file.
func Load() (*Config, error) {
	audit, err := LoadAuditConfig(os.Getenv("AUDIT_CONFIG_FILE"))
	if err != nil {
		return nil, err
	}
	return &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ServerPort:     getenv("SERVER_PORT", "8080"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		Audit:          audit,
	}, nil
}

// LoadAuditConfig starts from the default thresholds, applies the YAML file at path
// (if path is non-empty) and then the AUDIT_* environment overrides.
func LoadAuditConfig(path string) (core.AuditConfig, error) {
	file := auditFile{Audit: core.DefaultAuditConfig()}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return core.AuditConfig{}, fmt.Errorf("failed to read audit config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return core.AuditConfig{}, fmt.Errorf("failed to parse audit config file: %w", err)
		}
	}

	cfg := file.Audit
	if err := applyEnvOverrides(&cfg); err != nil {
		return core.AuditConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return core.AuditConfig{}, fmt.Errorf("invalid audit config: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *core.AuditConfig) error {
	var err error
	if cfg.DiscrepancyPercentThreshold, err = getFloat("AUDIT_DISCREPANCY_PERCENT", cfg.DiscrepancyPercentThreshold); err != nil {
		return err
	}
	if cfg.LowConfidenceThreshold, err = getInt("AUDIT_LOW_CONFIDENCE", cfg.LowConfidenceThreshold); err != nil {
		return err
	}
	if cfg.DuplicateLookupLimit, err = getInt("AUDIT_DUPLICATE_LIMIT", cfg.DuplicateLookupLimit); err != nil {
		return err
	}
	if cfg.FraudRoundAmountFloor, err = getFloat("AUDIT_ROUND_AMOUNT_FLOOR", cfg.FraudRoundAmountFloor); err != nil {
		return err
	}
	if cfg.VendorSimilarityFloor, err = getFloat("AUDIT_VENDOR_SIMILARITY_FLOOR", cfg.VendorSimilarityFloor); err != nil {
		return err
	}
	if cfg.DuplicateLookupTimeout, err = getDuration("AUDIT_DUPLICATE_TIMEOUT", cfg.DuplicateLookupTimeout); err != nil {
		return err
	}
	return nil
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return i, nil
}

func getFloat(key string, def float64) (float64, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return f, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
