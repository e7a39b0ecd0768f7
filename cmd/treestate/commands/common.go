package commands

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/treestate/internal/config"
	"git.home.luguber.info/inful/treestate/internal/logfields"
)

// Global context passed to subcommands.
type Global struct {
	Logger *slog.Logger
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"treestate.yaml"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run     RunCmd     `cmd:"" help:"Run the state store with the configured application, journal, feed and inspector"`
	Inspect InspectCmd `cmd:"" help:"Mount an application definition in-process and print its state"`
	History HistoryCmd `cmd:"" help:"List recently journaled change batches"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration and application definition"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	g.Logger = NewLogger(config.LogLevelInfo, config.LogFormatText, c.Verbose)
	slog.SetDefault(g.Logger)
	return nil
}

// NewLogger builds the process logger. verbose forces debug level.
func NewLogger(level config.LogLevel, format config.LogFormat, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slogLevel(level)}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LoadConfig loads path, falling back to defaults when the file does not
// exist. Normalisation warnings are logged.
func LoadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		logger.Debug("No configuration file, using defaults", logfields.File(path))
		return config.Default(), nil
	}

	cfg, warnings, err := config.Load(path)
	for _, w := range warnings {
		logger.Warn("Configuration normalized", logfields.File(path), slog.String("warning", w))
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
