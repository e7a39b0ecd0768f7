package config

import (
	"os"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
)

// Config is the treestate runtime configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Logging   LoggingConfig   `yaml:"logging"`
	App       AppConfig       `yaml:"app"`
	Inspector InspectorConfig `yaml:"inspector"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Journal   JournalConfig   `yaml:"journal"`
	Feed      FeedConfig      `yaml:"feed"`
	Stats     StatsConfig     `yaml:"stats"`
}

// StoreConfig controls the state store.
type StoreConfig struct {
	Batching BatchingMode `yaml:"batching"` // deferred|immediate
	ID       string       `yaml:"id,omitempty"`
}

// LoggingConfig controls the default slog handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// AppConfig locates the application definition.
type AppConfig struct {
	Definition string `yaml:"definition"`
	Watch      bool   `yaml:"watch"`
	Debounce   string `yaml:"debounce"`
}

// InspectorConfig controls the inspection HTTP API.
type InspectorConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// MetricsConfig controls Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// JournalConfig controls the sqlite change journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Buffer  int    `yaml:"buffer"`
}

// FeedConfig controls the NATS change feed.
type FeedConfig struct {
	Enabled   bool        `yaml:"enabled"`
	URL       string      `yaml:"url"`
	Subject   string      `yaml:"subject"`
	JetStream bool        `yaml:"jetstream"`
	Buffer    int         `yaml:"buffer"`
	Retry     RetryConfig `yaml:"retry"`
}

// RetryConfig shapes retries of transient failures.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff"` // fixed|linear|exponential
	Initial    string           `yaml:"initial"`
	Max        string           `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// StatsConfig controls the periodic store statistics job.
type StatsConfig struct {
	Interval string `yaml:"interval"`
}

// Load reads, normalises, defaults and validates the configuration at path.
// ${VAR} references are expanded after .env files are loaded.
func Load(path string) (*Config, []string, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ferrors.ConfigError("configuration file not found").
				WithContext("file", path).
				Build()
		}
		return nil, nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read configuration file").
			WithContext("file", path).
			Build()
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse decodes YAML configuration. It returns normalisation warnings alongside the config.
func Parse(data []byte) (*Config, []string, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse configuration").
			UserAction().
			Build()
	}
	warnings := Normalize(&cfg)
	ApplyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, warnings, err
	}
	return &cfg, warnings, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	ApplyDefaults(&cfg)
	return &cfg
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("file", path).
			Build()
	}

	example := Config{
		Store:   StoreConfig{Batching: BatchingDeferred},
		Logging: LoggingConfig{Level: LogLevelInfo, Format: LogFormatText},
		App: AppConfig{
			Definition: "app.yaml",
			Watch:      true,
			Debounce:   "250ms",
		},
		Inspector: InspectorConfig{Enabled: true, Addr: "127.0.0.1:7070"},
		Metrics:   MetricsConfig{Enabled: true},
		Journal:   JournalConfig{Enabled: false, Path: "treestate-journal.db", Buffer: 256},
		Feed: FeedConfig{
			Enabled: false,
			URL:     "${NATS_URL}",
			Subject: "treestate.changes",
			Buffer:  256,
			Retry:   RetryConfig{Backoff: RetryBackoffExponential, Initial: "200ms", Max: "5s", MaxRetries: 3},
		},
		Stats: StatsConfig{Interval: "1m"},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to marshal example configuration").Build()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to write configuration file").
			WithContext("file", path).
			Build()
	}
	return nil
}
