package commands

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/ohler55/ojg/jp"

	"git.home.luguber.info/inful/treestate/internal/appdef"
	"git.home.luguber.info/inful/treestate/internal/config"
	"git.home.luguber.info/inful/treestate/internal/daemon"
	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
	"git.home.luguber.info/inful/treestate/internal/inspector"
	"git.home.luguber.info/inful/treestate/internal/loop"
	"git.home.luguber.info/inful/treestate/internal/metrics"
	"git.home.luguber.info/inful/treestate/internal/runtime"
	"git.home.luguber.info/inful/treestate/internal/state"
)

// InspectCmd implements the 'inspect' command.
type InspectCmd struct {
	Definition string   `arg:"" optional:"" help:"Application definition file (defaults to app.definition)"`
	Root       string   `help:"Only include paths within this root"`
	Query      string   `short:"q" help:"JSONPath query over the snapshot, e.g. $['app1.page1.visits'].values.count"`
	Set        []string `help:"Dispatch values before printing, as path={json object}" sep:"none"`
}

func (i *InspectCmd) Run(g *Global, root *CLI) error {
	cfg, err := LoadConfig(root.Config, g.logger())
	if err != nil {
		return err
	}
	defPath := i.Definition
	if defPath == "" {
		defPath = cfg.App.Definition
	}
	return RunInspect(os.Stdout, cfg, InspectOptions{
		Definition: defPath,
		Root:       i.Root,
		Query:      i.Query,
		Set:        i.Set,
	}, g.logger())
}

// InspectOptions selects what RunInspect mounts and prints.
type InspectOptions struct {
	Definition string
	Root       string
	Query      string
	Set        []string
}

// RunInspect mounts the definition on a private store, applies the
// requested dispatches, and writes the snapshot (or the query result) as JSON.
func RunInspect(w io.Writer, cfg *config.Config, opts InspectOptions, logger *slog.Logger) error {
	if opts.Definition == "" {
		return ferrors.ValidationError("no application definition given").
			WithContext("hint", "pass a file or set app.definition").
			Build()
	}
	def, err := appdef.Load(opts.Definition)
	if err != nil {
		return err
	}

	var x jp.Expr
	if opts.Query != "" {
		if x, err = jp.ParseString(opts.Query); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryValidation, "invalid JSONPath query").
				WithContext("query", opts.Query).
				Build()
		}
	}

	manual := loop.NewManual()
	app := daemon.Assemble(cfg, manual, metrics.NoopRecorder{}, logger)
	if err := app.Mount(def); err != nil {
		return err
	}
	manual.RunPending()

	for _, assignment := range opts.Set {
		path, values, err := parseAssignment(assignment)
		if err != nil {
			return err
		}
		if err := app.Dispatch(path, values); err != nil {
			return err
		}
		manual.RunPending()
	}

	snap := snapshot(app, opts.Root)
	if x == nil {
		return writeJSON(w, snap)
	}

	// JSONPath runs over the generic decoding of the snapshot.
	data, err := json.Marshal(snap)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to encode snapshot").Build()
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryInternal, "failed to decode snapshot").Build()
	}
	return writeJSON(w, x.Get(doc))
}

func snapshot(app *runtime.App, root string) map[string]inspector.EntityView {
	snap := app.Container().Store().Snapshot(root)
	views := make(map[string]inspector.EntityView, len(snap))
	for p, v := range snap {
		views[p] = inspector.View(p, v)
	}
	return views
}

func parseAssignment(s string) (string, state.Values, error) {
	path, raw, ok := strings.Cut(s, "=")
	if !ok || path == "" {
		return "", nil, ferrors.ValidationError("expected path={json object}").
			WithContext("set", s).
			Build()
	}
	var values state.Values
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return "", nil, ferrors.WrapError(err, ferrors.CategoryValidation, "invalid values").
			WithContext("set", s).
			Build()
	}
	return path, values, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
