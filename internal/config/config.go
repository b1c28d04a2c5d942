// Package config loads runtime settings from a YAML file, a .env file and the
// environment, in increasing order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// #region types
// Config holds every setting of the reprolab binaries.
type Config struct {
	DB          string        `yaml:"db" validate:"required"`
	CacheSize   int           `yaml:"cache_size" validate:"gte=0"`
	GRPCAddr    string        `yaml:"grpc_addr" validate:"required,hostname_port"`
	MetricsAddr string        `yaml:"metrics_addr" validate:"omitempty,hostname_port"`
	LogLevel    string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	PackageName string        `yaml:"package_name"`
	Archive     ArchiveConfig `yaml:"archive"`
}

// ArchiveConfig selects where exported dataset documents are kept.
type ArchiveConfig struct {
	Driver       string `yaml:"driver" validate:"oneof=memory fs s3"`
	Dir          string `yaml:"dir" validate:"required_if=Driver fs"`
	Bucket       string `yaml:"bucket" validate:"required_if=Driver s3"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint" validate:"omitempty,url"`
	UsePathStyle bool   `yaml:"use_path_style"`
}
// #endregion types

// #region defaults
// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		DB:          "reprolab.db",
		GRPCAddr:    "localhost:50061",
		MetricsAddr: "localhost:9464",
		LogLevel:    "info",
		Archive: ArchiveConfig{
			Driver: "fs",
			Dir:    "archive",
			Region: "us-east-1",
		},
	}
}
// #endregion defaults

// #region load
var validate = validator.New(validator.WithRequiredStructEnabled())

// Load builds the configuration. path may be empty. Without explicit envFiles
// a .env in the working directory is read if present.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(b))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, fmt.Errorf("load env: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.DB = envOr("REPROLAB_DB", cfg.DB)
	cfg.GRPCAddr = envOr("REPROLAB_GRPC_ADDR", cfg.GRPCAddr)
	cfg.MetricsAddr = envOr("REPROLAB_METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = envOr("REPROLAB_LOG_LEVEL", cfg.LogLevel)
	cfg.PackageName = envOr("REPROLAB_PACKAGE_NAME", cfg.PackageName)
	cfg.Archive.Driver = envOr("REPROLAB_ARCHIVE_DRIVER", cfg.Archive.Driver)
	cfg.Archive.Dir = envOr("REPROLAB_ARCHIVE_DIR", cfg.Archive.Dir)
	cfg.Archive.Bucket = envOr("REPROLAB_ARCHIVE_BUCKET", cfg.Archive.Bucket)
	cfg.Archive.Prefix = envOr("REPROLAB_ARCHIVE_PREFIX", cfg.Archive.Prefix)
	cfg.Archive.Region = envOr("REPROLAB_ARCHIVE_REGION", cfg.Archive.Region)
	cfg.Archive.Endpoint = envOr("REPROLAB_ARCHIVE_ENDPOINT", cfg.Archive.Endpoint)

	if v := os.Getenv("REPROLAB_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REPROLAB_CACHE_SIZE: %w", err)
		}
		cfg.CacheSize = n
	}
	if v := os.Getenv("REPROLAB_ARCHIVE_PATH_STYLE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REPROLAB_ARCHIVE_PATH_STYLE: %w", err)
		}
		cfg.Archive.UsePathStyle = b
	}
	return nil
}
// #endregion load

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
// #endregion helpers
