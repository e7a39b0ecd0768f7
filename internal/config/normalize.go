package config

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/treestate/internal/foundation/normalization"
)

// Normalize canonicalises enumerations and clamps bounds in place. It returns
// a warning for every value it had to change.
func Normalize(c *Config) []string {
	var warnings []string
	normalizeEnum(&c.Store.Batching, "store.batching", batchingNormalizer, &warnings)
	normalizeEnum(&c.Logging.Level, "logging.level", logLevelNormalizer, &warnings)
	normalizeEnum(&c.Logging.Format, "logging.format", logFormatNormalizer, &warnings)
	normalizeEnum(&c.Feed.Retry.Backoff, "feed.retry.backoff", retryBackoffNormalizer, &warnings)

	clamp(&c.Journal.Buffer, "journal.buffer", &warnings)
	clamp(&c.Feed.Buffer, "feed.buffer", &warnings)
	clamp(&c.Feed.Retry.MaxRetries, "feed.retry.max_retries", &warnings)

	c.App.Definition = strings.TrimSpace(c.App.Definition)
	c.Feed.Subject = strings.TrimSpace(c.Feed.Subject)
	return warnings
}

func normalizeEnum[T ~string](field *T, name string, n *normalization.Normalizer[T], warnings *[]string) {
	raw := string(*field)
	if strings.TrimSpace(raw) == "" {
		*field = ""
		return
	}
	v, ok := n.Lookup(raw)
	if !ok {
		*warnings = append(*warnings, fmt.Sprintf("unknown %s '%s', defaulting to %s", name, raw, n.Default()))
		*field = n.Default()
		return
	}
	if v != *field {
		*warnings = append(*warnings, fmt.Sprintf("normalized %s from '%s' to '%s'", name, raw, v))
		*field = v
	}
}

func clamp(field *int, name string, warnings *[]string) {
	if *field < 0 {
		*warnings = append(*warnings, fmt.Sprintf("%s cannot be negative, using 0", name))
		*field = 0
	}
}
