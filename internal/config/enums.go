package config

import (
	"git.home.luguber.info/inful/treestate/internal/foundation/normalization"
)

// BatchingMode selects when store notifications are delivered.
type BatchingMode string

const (
	// BatchingDeferred coalesces writes until the end of the current loop task.
	BatchingDeferred BatchingMode = "deferred"
	// BatchingImmediate notifies on every write.
	BatchingImmediate BatchingMode = "immediate"
)

var batchingNormalizer = normalization.NewNormalizer(map[string]BatchingMode{
	"deferred":  BatchingDeferred,
	"immediate": BatchingImmediate,
}, BatchingDeferred)

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelNormalizer = normalization.NewNormalizer(map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}, LogLevelInfo)

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

var logFormatNormalizer = normalization.NewNormalizer(map[string]LogFormat{
	"json": LogFormatJSON,
	"text": LogFormatText,
}, LogFormatText)

// RetryBackoffMode enumerates supported backoff strategies for retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = normalization.NewNormalizer(map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, RetryBackoffLinear)

// NormalizeLogLevel maps user input to a LogLevel, defaulting to info.
func NormalizeLogLevel(raw string) LogLevel { return logLevelNormalizer.Normalize(raw) }

// NormalizeLogFormat maps user input to a LogFormat, defaulting to text.
func NormalizeLogFormat(raw string) LogFormat { return logFormatNormalizer.Normalize(raw) }
