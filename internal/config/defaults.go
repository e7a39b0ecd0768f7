package config

import "time"

// Default values applied to omitted settings.
const (
	DefaultInspectorAddr = "127.0.0.1:7070"
	DefaultJournalPath   = "treestate-journal.db"
	DefaultBuffer        = 256
	DefaultFeedURL       = "nats://127.0.0.1:4222"
	DefaultFeedSubject   = "treestate.changes"
	DefaultDebounce      = "250ms"
	DefaultStatsInterval = "1m"
	DefaultRetryInitial  = "200ms"
	DefaultRetryMax      = "5s"
	DefaultMaxRetries    = 3
)

// ApplyDefaults fills omitted settings. A zero max_retries means "use the default".
func ApplyDefaults(c *Config) {
	if c.Store.Batching == "" {
		c.Store.Batching = BatchingDeferred
	}
	if c.Logging.Level == "" {
		c.Logging.Level = LogLevelInfo
	}
	if c.Logging.Format == "" {
		c.Logging.Format = LogFormatText
	}
	if c.App.Debounce == "" {
		c.App.Debounce = DefaultDebounce
	}
	if c.Inspector.Addr == "" {
		c.Inspector.Addr = DefaultInspectorAddr
	}
	if c.Journal.Path == "" {
		c.Journal.Path = DefaultJournalPath
	}
	if c.Journal.Buffer == 0 {
		c.Journal.Buffer = DefaultBuffer
	}
	if c.Feed.URL == "" {
		c.Feed.URL = DefaultFeedURL
	}
	if c.Feed.Subject == "" {
		c.Feed.Subject = DefaultFeedSubject
	}
	if c.Feed.Buffer == 0 {
		c.Feed.Buffer = DefaultBuffer
	}
	if c.Feed.Retry.Backoff == "" {
		c.Feed.Retry.Backoff = RetryBackoffExponential
	}
	if c.Feed.Retry.Initial == "" {
		c.Feed.Retry.Initial = DefaultRetryInitial
	}
	if c.Feed.Retry.Max == "" {
		c.Feed.Retry.Max = DefaultRetryMax
	}
	if c.Feed.Retry.MaxRetries == 0 {
		c.Feed.Retry.MaxRetries = DefaultMaxRetries
	}
	if c.Stats.Interval == "" {
		c.Stats.Interval = DefaultStatsInterval
	}
}

// DebounceDuration returns the parsed debounce delay.
func (a AppConfig) DebounceDuration() time.Duration { return mustDuration(a.Debounce) }

// IntervalDuration returns the parsed statistics interval; zero disables the job.
func (s StatsConfig) IntervalDuration() time.Duration { return mustDuration(s.Interval) }

// InitialDuration returns the parsed first retry delay.
func (r RetryConfig) InitialDuration() time.Duration { return mustDuration(r.Initial) }

// MaxDuration returns the parsed delay cap.
func (r RetryConfig) MaxDuration() time.Duration { return mustDuration(r.Max) }

// mustDuration parses a duration Validate already accepted.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
