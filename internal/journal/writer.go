package journal

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/treestate/internal/changes"
	"git.home.luguber.info/inful/treestate/internal/logfields"
)

// Appender stores one flushed batch.
type Appender interface {
	Append(ctx context.Context, evt changes.Flushed) error
}

// Writer drains change events into an Appender off the event loop.
type Writer struct {
	store  Appender
	logger *slog.Logger
}

// NewWriter returns a writer over store.
func NewWriter(store Appender, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{store: store, logger: logger.With(logfields.Component("journal"))}
}

// Run appends every event until events is closed or ctx ends. Append
// failures are logged and the event is skipped.
func (w *Writer) Run(ctx context.Context, events <-chan changes.Flushed) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := w.store.Append(ctx, evt); err != nil {
				w.logger.Error("Failed to journal change batch",
					logfields.BatchID(evt.BatchID),
					logfields.Error(err))
				continue
			}
			w.logger.Debug("Journaled change batch",
				logfields.BatchID(evt.BatchID),
				logfields.BatchSize(evt.Size()))
		}
	}
}
