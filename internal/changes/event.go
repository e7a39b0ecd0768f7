// Package changes turns flushed store batches into identified change events
// and fans them out to observers running off the event loop.
package changes

import (
	"time"
)

// Flushed records one delivered change batch. It is also the JSON payload of
// the change feed.
type Flushed struct {
	StoreID string    `json:"store_id"`
	BatchID string    `json:"batch_id"`
	Paths   []string  `json:"paths"`
	At      time.Time `json:"at"`
}

// Size returns the number of changed paths.
func (f Flushed) Size() int { return len(f.Paths) }
