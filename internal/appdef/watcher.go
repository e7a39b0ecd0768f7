package appdef

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/treestate/internal/foundation/errors"
	"git.home.luguber.info/inful/treestate/internal/logfields"
)

// DefaultDebounce collapses the burst of events editors emit on save.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a definition file when it changes and hands valid
// definitions to onChange. onChange runs on the watcher's goroutine.
type Watcher struct {
	path         string
	onChange     func(*Definition)
	watcher      *fsnotify.Watcher
	logger       *slog.Logger
	debounceTime time.Duration

	mu         sync.Mutex
	stopOnce   sync.Once
	stopChan   chan struct{}
	reloadChan chan struct{}
}

// NewWatcher creates a watcher for the definition at path.
func NewWatcher(path string, debounce time.Duration, onChange func(*Definition), logger *slog.Logger) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryDefinition, "failed to resolve definition path").
			WithContext("file", path).
			Build()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create file watcher").Build()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		path:         absPath,
		onChange:     onChange,
		watcher:      fw,
		logger:       logger.With(logfields.Component("appdef_watcher"), logfields.File(absPath)),
		debounceTime: debounce,
		stopChan:     make(chan struct{}),
		reloadChan:   make(chan struct{}, 1),
	}, nil
}

// Start watches the definition's directory. Watching the directory survives
// editors that replace the file on save.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	dir := filepath.Dir(w.path)
	if err := w.watcher.Add(dir); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to watch definition directory").
			WithContext("dir", dir).
			Build()
	}
	w.logger.Info("Watching application definition")

	go w.watchLoop(ctx)
	go w.reloadLoop(ctx)
	return nil
}

// Stop ends watching. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if cerr := w.watcher.Close(); cerr != nil {
			err = ferrors.WrapError(cerr, ferrors.CategoryRuntime, "failed to close file watcher").Build()
		}
		w.logger.Info("Stopped watching application definition")
	})
	return err
}

func (w *Watcher) watchLoop(ctx context.Context) {
	file := filepath.Base(w.path)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != file {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				w.logger.Debug("Definition change detected", slog.String("op", event.Op.String()))
				w.triggerReload()
			case event.Has(fsnotify.Remove):
				w.logger.Warn("Definition file removed")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Definition watcher error", logfields.Error(err))
		}
	}
}

func (w *Watcher) reloadLoop(ctx context.Context) {
	var timer *time.Timer
	stop := func() {
		if timer != nil {
			timer.Stop()
		}
	}
	for {
		select {
		case <-ctx.Done():
			stop()
			return
		case <-w.stopChan:
			stop()
			return
		case <-w.reloadChan:
			stop()
			timer = time.AfterFunc(w.debounceTime, w.reload)
		}
	}
}

func (w *Watcher) triggerReload() {
	select {
	case w.reloadChan <- struct{}{}:
	default:
	}
}

func (w *Watcher) reload() {
	def, err := Load(w.path)
	if err != nil {
		w.logger.Error("Failed to reload application definition", logfields.Error(err))
		return
	}
	w.logger.Info("Application definition reloaded", slog.Int("nodes", len(def.Nodes())))
	if w.onChange != nil {
		w.onChange(def)
	}
}
