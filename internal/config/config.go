package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads a TOML configuration file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	expandEnvVars(&cfg)

	return &cfg, nil
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() []error {
	var errors []error

	if c.Storage.DBPath == "" {
		errors = append(errors, fmt.Errorf("storage.db_path is required"))
	}
	if c.Storage.CheckIntervalSeconds <= 0 {
		errors = append(errors, fmt.Errorf("storage.check_interval_seconds must be greater than 0"))
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errors = append(errors, fmt.Errorf("api.port must be between 1 and 65535"))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
	}

	if c.Discovery.Enabled && c.Discovery.SyncSchedule == "" {
		errors = append(errors, fmt.Errorf("discovery.sync_schedule is required when discovery is enabled"))
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		errors = append(errors, fmt.Errorf("metrics.namespace is required when metrics are enabled"))
	}

	return errors
}

func expandEnvVars(c *Config) {
	c.Storage.DBPath = expandEnv(c.Storage.DBPath)
	c.API.Host = expandEnv(c.API.Host)
	c.Logging.Output = expandEnv(c.Logging.Output)
	c.Discovery.SyncSchedule = expandEnv(c.Discovery.SyncSchedule)
}

// expandEnv resolves ${VAR} and ${VAR:default} references.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		if val := os.Getenv(parts[0]); val != "" {
			return val
		}
		return parts[1]
	}

	return os.Getenv(content)
}
