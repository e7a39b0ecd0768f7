package daemon

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/treestate/internal/appdef"
	"git.home.luguber.info/inful/treestate/internal/changes"
	"git.home.luguber.info/inful/treestate/internal/config"
	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
	"git.home.luguber.info/inful/treestate/internal/journal"
	"git.home.luguber.info/inful/treestate/internal/loop"
	"git.home.luguber.info/inful/treestate/internal/metrics"
	"git.home.luguber.info/inful/treestate/internal/runtime"
	"git.home.luguber.info/inful/treestate/internal/state"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	events   []changes.Flushed
	closed   bool
}

func (p *recordingPublisher) Publish(_ context.Context, subject string, data []byte) error {
	var evt changes.Flushed
	if err := json.Unmarshal(data, &evt); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *recordingPublisher) touched(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, evt := range p.events {
		if slices.Contains(evt.Paths, path) {
			return true
		}
	}
	return false
}

func writeDefinition(t *testing.T, dir string, def *appdef.Definition) string {
	t.Helper()
	data, err := def.Marshal()
	require.NoError(t, err)
	path := filepath.Join(dir, "app.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.App.Definition = writeDefinition(t, dir, appdef.Example())
	cfg.Journal.Enabled = true
	cfg.Journal.Path = filepath.Join(dir, "journal.db")
	cfg.Feed.Enabled = true
	cfg.Stats.Interval = "1h"
	return cfg
}

func TestDaemon_LifecycleJournalsAndPublishes(t *testing.T) {
	cfg := testConfig(t)
	pub := &recordingPublisher{}

	d, err := New(cfg, WithPublisher(pub))
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, d.GetStatus())

	require.NoError(t, d.Start(t.Context()))
	assert.Equal(t, StatusRunning, d.GetStatus())

	var dispatchErr error
	require.NoError(t, d.Loop().Do(t.Context(), func() {
		dispatchErr = d.App().Dispatch("app1.page1.visits", state.Values{"count": 3})
	}))
	require.NoError(t, dispatchErr)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
	assert.Equal(t, StatusClosed, d.GetStatus())

	assert.True(t, pub.closed)
	assert.True(t, pub.touched("app1.page1.visits"))
	for _, s := range pub.subjects {
		assert.Equal(t, config.DefaultFeedSubject, s)
	}

	js, err := journal.NewSQLiteStore(cfg.Journal.Path)
	require.NoError(t, err)
	defer func() { _ = js.Close() }()

	entries, err := js.Recent(t.Context(), 100)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	found := false
	for _, e := range entries {
		if slices.Contains(e.Paths, "app1.page1.visits") {
			found = true
		}
	}
	assert.True(t, found, "dispatched path should be journaled")
}

func TestDaemon_StartTwice(t *testing.T) {
	cfg := config.Default()
	cfg.Stats.Interval = "1h"

	d, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Start(t.Context()))
	defer func() { _ = d.Stop(context.Background()) }()

	err = d.Start(t.Context())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRuntime))
}

func TestDaemon_StartFailsOnMissingDefinition(t *testing.T) {
	cfg := config.Default()
	cfg.App.Definition = filepath.Join(t.TempDir(), "missing.yaml")

	d, err := New(cfg)
	require.NoError(t, err)

	err = d.Start(t.Context())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotFound))
	assert.Equal(t, StatusError, d.GetStatus())
	require.NoError(t, d.Stop(context.Background()))
	require.ErrorIs(t, d.Start(t.Context()), ErrClosed)
}

func TestDaemon_RestartAfterStopIsRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Stats.Interval = "1h"

	d, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Start(t.Context()))
	require.NoError(t, d.Stop(context.Background()))
	assert.Equal(t, StatusClosed, d.GetStatus())

	err = d.Start(t.Context())
	require.ErrorIs(t, err, ErrClosed)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryRuntime))
	assert.Equal(t, StatusClosed, d.GetStatus())
	require.NoError(t, d.Stop(context.Background()), "stopping a closed daemon is a no-op")
}

func TestDaemon_ApplyDefinitionHotReloads(t *testing.T) {
	cfg := config.Default()
	cfg.App.Definition = writeDefinition(t, t.TempDir(), appdef.Example())
	cfg.Stats.Interval = "1h"

	d, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Start(t.Context()))
	defer func() { _ = d.Stop(context.Background()) }()

	next := appdef.Example()
	page := &next.Elements[0]
	page.Elements = append(page.Elements, appdef.Element{
		Name:  "footer",
		Kind:  runtime.KindText,
		Props: map[string]any{"text": "bye"},
	})
	d.applyDefinition(next)

	var paths []string
	require.NoError(t, d.Loop().Do(t.Context(), func() { paths = d.App().Paths() }))
	assert.Contains(t, paths, "app1.page1.footer")
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestAssemble_ImmediateBatching(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Batching = config.BatchingImmediate
	manual := loop.NewManual()

	app := Assemble(cfg, manual, metrics.NoopRecorder{}, nil)
	store := app.Container().Store()

	var got []string
	store.Subscribe("app.x", func(path string, _ any) { got = append(got, path) })
	store.Set("app.x", 1)

	assert.Equal(t, []string{"app.x"}, got)
	assert.Equal(t, 0, manual.Pending())
}
