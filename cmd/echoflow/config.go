package main

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all echoflow configuration.
type Config struct {
	LogLevel string `yaml:"log_level"`
	HTTPAddr string `yaml:"http_addr"`
	DBPath   string `yaml:"db_path"`

	Engine  EngineConfig  `yaml:"engine"`
	Convert ConvertConfig `yaml:"convert"`
}

// EngineConfig configures the remote inference client. An empty
// base_url disables the AI converter; every document then starts at its
// format fallback.
type EngineConfig struct {
	BaseURL          string        `yaml:"base_url"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	MaxRetries       int           `yaml:"max_retries"`
	Backoff          time.Duration `yaml:"backoff"`
	BreakerThreshold int           `yaml:"breaker_threshold"`
	BreakerReset     time.Duration `yaml:"breaker_reset"`
	HealthTTL        time.Duration `yaml:"health_ttl"`
}

// ConvertConfig controls conversion behaviour.
type ConvertConfig struct {
	Workers          int           `yaml:"workers"`
	MaxFileSize      int64         `yaml:"max_file_size"`
	QualityThreshold float64       `yaml:"quality_threshold"`
	VariantTimeout   time.Duration `yaml:"variant_timeout"`
	RetentionDays    int           `yaml:"retention_days"`
}

func (c *Config) defaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8086"
	}
	if c.DBPath == "" {
		c.DBPath = "db/echoflow.db"
	}
	if c.Convert.VariantTimeout <= 0 {
		c.Convert.VariantTimeout = 60 * time.Second
	}
	if c.Convert.RetentionDays <= 0 {
		c.Convert.RetentionDays = 30
	}
}

// LoadConfigFile reads a YAML config file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
