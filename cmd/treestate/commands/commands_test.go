package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/treestate/internal/appdef"
	"git.home.luguber.info/inful/treestate/internal/changes"
	"git.home.luguber.info/inful/treestate/internal/config"
	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
	"git.home.luguber.info/inful/treestate/internal/inspector"
	"git.home.luguber.info/inful/treestate/internal/journal"
)

func exampleDefinition(t *testing.T) string {
	t.Helper()
	data, err := appdef.Example().Marshal()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestCLI_Parse(t *testing.T) {
	cli := &CLI{}
	parser, err := kong.New(cli, kong.Vars{"version": "test"}, kong.Bind(&Global{}))
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"-c", "custom.yaml", "inspect", "app.yaml", "-q", "$.*", "--set", `a.b={"x":1}`})
	require.NoError(t, err)
	assert.Equal(t, "inspect <definition>", ctx.Command())
	assert.Equal(t, "custom.yaml", cli.Config)
	assert.Equal(t, "app.yaml", cli.Inspect.Definition)
	assert.Equal(t, "$.*", cli.Inspect.Query)
	assert.Equal(t, []string{`a.b={"x":1}`}, cli.Inspect.Set)

	_, err = parser.Parse([]string{"history", "-n", "5", "--json"})
	require.NoError(t, err)
	assert.Equal(t, 5, cli.History.Limit)
	assert.True(t, cli.History.JSON)
}

func TestRunInit(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "treestate.yaml")

	var out bytes.Buffer
	require.NoError(t, RunInit(&out, cfgPath, false))
	assert.Contains(t, out.String(), "initialized successfully")

	cfg, _, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "app.yaml", cfg.App.Definition)

	def, err := appdef.Load(filepath.Join(dir, "app.yaml"))
	require.NoError(t, err)
	assert.Equal(t, appdef.Example().Name, def.Name)

	err = RunInit(&out, cfgPath, false)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))

	require.NoError(t, RunInit(&out, cfgPath, true))
}

func TestRunInspect_Snapshot(t *testing.T) {
	var out bytes.Buffer
	err := RunInspect(&out, config.Default(), InspectOptions{
		Definition: exampleDefinition(t),
		Root:       "app1.page1.form1",
	}, nil)
	require.NoError(t, err)

	var views map[string]inspector.EntityView
	require.NoError(t, json.Unmarshal(out.Bytes(), &views))
	require.Contains(t, views, "app1.page1.form1.name")
	assert.Equal(t, "field", views["app1.page1.form1.name"].Kind)
	assert.NotContains(t, views, "app1.page1.visits")
}

func TestRunInspect_SetAndQuery(t *testing.T) {
	var out bytes.Buffer
	err := RunInspect(&out, config.Default(), InspectOptions{
		Definition: exampleDefinition(t),
		Query:      "$['app1.page1.visits'].values.count",
		Set:        []string{`app1.page1.visits={"count":7}`},
	}, nil)
	require.NoError(t, err)

	var got []any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, []any{float64(7)}, got)
}

func TestRunInspect_FormValidity(t *testing.T) {
	var out bytes.Buffer
	err := RunInspect(&out, config.Default(), InspectOptions{
		Definition: exampleDefinition(t),
		Query:      "$['app1.page1.form1'].values.valid",
	}, nil)
	require.NoError(t, err)

	var got []any
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, []any{false}, got, "required name field starts empty")
}

func TestRunInspect_Errors(t *testing.T) {
	def := exampleDefinition(t)

	tests := []struct {
		name     string
		opts     InspectOptions
		category ferrors.ErrorCategory
	}{
		{"no definition", InspectOptions{}, ferrors.CategoryValidation},
		{"missing definition", InspectOptions{Definition: filepath.Join(t.TempDir(), "nope.yaml")}, ferrors.CategoryNotFound},
		{"bad query", InspectOptions{Definition: def, Query: "$[[["}, ferrors.CategoryValidation},
		{"bad assignment", InspectOptions{Definition: def, Set: []string{"app1.page1.visits"}}, ferrors.CategoryValidation},
		{"bad values", InspectOptions{Definition: def, Set: []string{"app1.page1.visits={"}}, ferrors.CategoryValidation},
		{"unmounted path", InspectOptions{Definition: def, Set: []string{`app1.ghost={"a":1}`}}, ferrors.CategoryNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RunInspect(&bytes.Buffer{}, config.Default(), tt.opts, nil)
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, tt.category), "got %v", err)
		})
	}
}

func TestRunHistory(t *testing.T) {
	cfg := config.Default()
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")

	err := RunHistory(t.Context(), &bytes.Buffer{}, cfg, HistoryOptions{Limit: 5})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))

	js, err := journal.NewSQLiteStore(cfg.Journal.Path)
	require.NoError(t, err)
	at := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	for i, batch := range []string{"b1", "b2", "b3"} {
		store := "s1"
		if i == 2 {
			store = "s2"
		}
		require.NoError(t, js.Append(context.Background(), changes.Flushed{
			StoreID: store,
			BatchID: batch,
			Paths:   []string{"app.a", "app.b"},
			At:      at.Add(time.Duration(i) * time.Second),
		}))
	}
	require.NoError(t, js.Close())

	var text bytes.Buffer
	require.NoError(t, RunHistory(t.Context(), &text, cfg, HistoryOptions{Limit: 2}))
	assert.Contains(t, text.String(), "BATCH")
	assert.Contains(t, text.String(), "b3")
	assert.Contains(t, text.String(), "app.a,app.b")
	assert.NotContains(t, text.String(), "b1")

	var raw bytes.Buffer
	require.NoError(t, RunHistory(t.Context(), &raw, cfg, HistoryOptions{Limit: 10, Store: "s1", JSON: true}))
	var entries []journal.Entry
	require.NoError(t, json.Unmarshal(raw.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "b2", entries[0].BatchID)

	err = RunHistory(t.Context(), &bytes.Buffer{}, cfg, HistoryOptions{Limit: 0})
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestRunCmd_FlagsOverrideConfig(t *testing.T) {
	cfg := config.Default()
	r := &RunCmd{Definition: "other.yaml", Watch: true, Inspector: "127.0.0.1:9999"}
	r.apply(cfg)

	assert.Equal(t, "other.yaml", cfg.App.Definition)
	assert.True(t, cfg.App.Watch)
	assert.True(t, cfg.Inspector.Enabled)
	assert.Equal(t, "127.0.0.1:9999", cfg.Inspector.Addr)
	require.NoError(t, config.Validate(cfg))
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), (&Global{}).logger())
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestNewLogger(t *testing.T) {
	ctx := context.Background()
	assert.True(t, NewLogger(config.LogLevelWarn, config.LogFormatText, false).Enabled(ctx, 4))
	assert.False(t, NewLogger(config.LogLevelWarn, config.LogFormatJSON, false).Enabled(ctx, 0))
	assert.True(t, NewLogger(config.LogLevelError, config.LogFormatJSON, true).Enabled(ctx, -4))
}
