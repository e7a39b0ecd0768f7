package config

import (
	"time"

	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
)

// Validate checks cross-field requirements after defaults are applied.
func Validate(c *Config) error {
	durations := []struct {
		field string
		value string
	}{
		{"app.debounce", c.App.Debounce},
		{"stats.interval", c.Stats.Interval},
		{"feed.retry.initial", c.Feed.Retry.Initial},
		{"feed.retry.max", c.Feed.Retry.Max},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(d.value)
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "invalid duration").
				UserAction().
				WithContext("field", d.field).
				WithContext("value", d.value).
				Build()
		}
		if parsed < 0 {
			return invalid(d.field, "duration cannot be negative")
		}
	}

	if c.App.Watch && c.App.Definition == "" {
		return invalid("app.watch", "watching requires app.definition")
	}
	if c.Feed.Enabled && c.Feed.URL == "" {
		return invalid("feed.url", "feed requires a NATS URL")
	}
	if c.Feed.Retry.InitialDuration() > c.Feed.Retry.MaxDuration() {
		return invalid("feed.retry.initial", "initial delay exceeds feed.retry.max")
	}
	return nil
}

func invalid(field, message string) error {
	return ferrors.ConfigError(message).WithContext("field", field).Build()
}
