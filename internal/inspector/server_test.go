package inspector

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/treestate/internal/appdef"
	"git.home.luguber.info/inful/treestate/internal/journal"
	"git.home.luguber.info/inful/treestate/internal/loop"
	"git.home.luguber.info/inful/treestate/internal/pubsub"
	"git.home.luguber.info/inful/treestate/internal/runtime"
	"git.home.luguber.info/inful/treestate/internal/state"
)

type fakeHistory struct{ entries []journal.Entry }

func (f fakeHistory) Recent(_ context.Context, limit int) ([]journal.Entry, error) {
	if limit < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

func newServer(t *testing.T, opts Options) *Server {
	t.Helper()
	l := loop.New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		l.Close()
		cancel()
	})
	go l.Run(ctx)

	var (
		app      *runtime.App
		mountErr error
	)
	require.NoError(t, l.Do(ctx, func() {
		store := pubsub.New(pubsub.WithScheduler(l))
		app = runtime.New(state.NewContainer(store), l)
		mountErr = app.Mount(appdef.Example())
	}))
	require.NoError(t, mountErr)
	return NewServer(":0", l, app, opts)
}

func do(t *testing.T, s *Server, method, target string, body []byte) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var decoded map[string]any
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded), w.Body.String())
	}
	return w, decoded
}

func TestServer_Health(t *testing.T) {
	s := newServer(t, Options{})
	w, body := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", body["status"])
}

func TestServer_Snapshot(t *testing.T) {
	s := newServer(t, Options{})

	w, body := do(t, s, http.MethodGet, "/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.Len(t, data, len(appdef.Example().Nodes()))

	w, body = do(t, s, http.MethodGet, "/state?root=app1.page1.form1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body["data"].(map[string]any), 4)
}

func TestServer_GetState(t *testing.T) {
	s := newServer(t, Options{})

	w, body := do(t, s, http.MethodGet, "/state/app1.page1.form1.name", nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := body["data"].(map[string]any)
	assert.Equal(t, "field", view["kind"])
	assert.Equal(t, "Name", view["props"].(map[string]any)["label"])

	w, body = do(t, s, http.MethodGet, "/state/app1.missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["code"])
}

func TestServer_Dispatch(t *testing.T) {
	s := newServer(t, Options{})

	w, body := do(t, s, http.MethodPost, "/state/app1.page1.form1.name", []byte(`{"value":"Ada"}`))
	require.Equal(t, http.StatusOK, w.Code)
	view := body["data"].(map[string]any)
	assert.Equal(t, "Ada", view["values"].(map[string]any)["value"])

	require.Eventually(t, func() bool {
		_, body := do(t, s, http.MethodGet, "/state/app1.page1.form1", nil)
		values := body["data"].(map[string]any)["values"].(map[string]any)
		return values["valid"] == true
	}, 2*time.Second, 10*time.Millisecond, "form revalidates after the field changes")

	w, _ = do(t, s, http.MethodPost, "/state/app1.nowhere", []byte(`{"value":1}`))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, body = do(t, s, http.MethodPost, "/state/app1.page1.form1.name", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "validation", body["code"])
}

func TestServer_History(t *testing.T) {
	s := newServer(t, Options{})
	w, _ := do(t, s, http.MethodGet, "/history", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	s = newServer(t, Options{History: fakeHistory{entries: []journal.Entry{{BatchID: "b2"}, {BatchID: "b1"}}}})
	w, body := do(t, s, http.MethodGet, "/history?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := body["data"].([]any)
	require.Len(t, entries, 1)
	assert.Equal(t, "b2", entries[0].(map[string]any)["batch_id"])

	w, _ = do(t, s, http.MethodGet, "/history?limit=zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServer_Metrics(t *testing.T) {
	s := newServer(t, Options{})
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	s = newServer(t, Options{Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("treestate_store_paths 9\n"))
	})})
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "treestate_store_paths")
}
