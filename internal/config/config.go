// Package config loads ssbsql settings from a YAML file, a .env file and
// SSBSQL_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	dirName  = ".ssbsql"
	fileName = "config.yaml"
)

type Config struct {
	LogPath      string        `yaml:"log_path"`
	DBPath       string        `yaml:"db_path"`
	SecretPath   string        `yaml:"secret_path"`
	Format       string        `yaml:"format"`
	ChunkSize    int           `yaml:"chunk_size"`
	IdleInterval time.Duration `yaml:"idle_interval"`
	Listen       string        `yaml:"listen"`
	LogLevel     string        `yaml:"log_level"`
	// RateLimit is the number of API requests allowed per client per minute.
	RateLimit int `yaml:"rate_limit"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, dirName)
	return &Config{
		LogPath:      filepath.Join(base, "log"),
		DBPath:       filepath.Join(base, "index.db"),
		SecretPath:   filepath.Join(home, ".ssb", "secret"),
		Format:       "auto",
		ChunkSize:    500,
		IdleInterval: 2 * time.Second,
		Listen:       ":8008",
		LogLevel:     "info",
		RateLimit:    600,
	}
}

// Path returns the nearest .ssbsql/config.yaml above the working directory,
// or the one in the home directory when there is none.
func Path() (string, error) {
	if wd, err := os.Getwd(); err == nil {
		for dir := wd; ; {
			candidate := filepath.Join(dir, dirName, fileName)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, dirName, fileName), nil
}

// Load builds the effective configuration. An empty path means Path(). A
// missing file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	c := Default()
	if path == "" {
		p, err := Path()
		if err != nil {
			return nil, err
		}
		path = p
	}
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("SSBSQL_LOG_PATH"); v != "" {
		c.LogPath = v
	}
	if v := os.Getenv("SSBSQL_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("SSBSQL_SECRET"); v != "" {
		c.SecretPath = v
	}
	if v := os.Getenv("SSBSQL_FORMAT"); v != "" {
		c.Format = v
	}
	if v := os.Getenv("SSBSQL_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("SSBSQL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("SSBSQL_CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SSBSQL_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = n
	}
	if v := os.Getenv("SSBSQL_IDLE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SSBSQL_IDLE_INTERVAL: %w", err)
		}
		c.IdleInterval = d
	}
	if v := os.Getenv("SSBSQL_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SSBSQL_RATE_LIMIT: %w", err)
		}
		c.RateLimit = n
	}
	return nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.LogPath) == "" {
		return errors.New("log_path is required")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return errors.New("db_path is required")
	}
	switch c.Format {
	case "auto", "legacy", "json", "compact", "msgpack":
	default:
		return fmt.Errorf("unknown format %q", c.Format)
	}
	if c.IdleInterval <= 0 {
		return fmt.Errorf("idle_interval must be positive, got %s", c.IdleInterval)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %d", c.RateLimit)
	}
	return nil
}

// Save writes c as YAML, creating parent directories.
func Save(path string, c *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
