// Package config provides configuration loading and validation for the
// storage janitor. It supports TOML configuration files with environment
// variable expansion, default values, and validation.
//
// Configuration structure:
//   - [storage]: registration database and cleanup check interval
//   - [api]: HTTP control plane listen address
//   - [logging]: logging level, format, and output
//   - [discovery]: container label discovery and its re-sync schedule
//   - [metrics]: prometheus exposition
//
// Environment variables can be referenced using ${VAR} or ${VAR:default}
// syntax, for example: db_path = "${SM_DB_PATH:/data/storage_manager.db}".
package config

// Config is the main application configuration.
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	API       APIConfig       `toml:"api"`
	Logging   LoggingConfig   `toml:"logging"`
	Discovery DiscoveryConfig `toml:"discovery"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// StorageConfig configures the registration store and the cleanup cadence.
type StorageConfig struct {
	DBPath               string `toml:"db_path"`
	CheckIntervalSeconds int    `toml:"check_interval_seconds"`
}

// APIConfig configures the HTTP control plane.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// DiscoveryConfig configures container label discovery.
type DiscoveryConfig struct {
	Enabled      bool   `toml:"enabled"`
	SyncSchedule string `toml:"sync_schedule"`
}

// MetricsConfig configures prometheus exposition.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled"`
	Namespace string `toml:"namespace"`
}

// Default returns the configuration used when a field is not set in the
// config file.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			DBPath:               "/data/storage_manager.db",
			CheckIntervalSeconds: 300,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 9100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Discovery: DiscoveryConfig{
			Enabled:      true,
			SyncSchedule: "@every 15m",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "storman",
		},
	}
}
