package changes

import (
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/treestate/internal/logfields"
	"git.home.luguber.info/inful/treestate/internal/pubsub"
)

// Tap subscribes to every batch flushed by store and offers it to bus as a
// Flushed event with a fresh batch id. It runs on the event loop and never
// blocks. The returned function detaches the tap.
func Tap(store *pubsub.Store, bus *Bus, logger *slog.Logger) (detach func()) {
	if logger == nil {
		logger = slog.Default()
	}
	return store.SubscribeAll(func(batch pubsub.ChangeBatch) {
		evt := Flushed{
			StoreID: store.ID(),
			BatchID: uuid.NewString(),
			Paths:   slices.Clone(batch),
			At:      time.Now().UTC(),
		}
		if dropped := bus.Offer(evt); dropped > 0 {
			logger.Warn("Change observers are falling behind, event dropped",
				logfields.BatchID(evt.BatchID),
				logfields.BatchSize(evt.Size()),
				logfields.Subscribers(dropped))
		}
	})
}
