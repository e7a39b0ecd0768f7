package metrics

// NotificationLabel distinguishes per-path deliveries from wildcard batch deliveries.
type NotificationLabel string

const (
	NotificationPath     NotificationLabel = "path"
	NotificationWildcard NotificationLabel = "wildcard"
)

// EntityEvent enumerates what the container did for a GetOrCreate or Update call.
type EntityEvent string

const (
	EntityConstructed EntityEvent = "constructed"
	EntityReconciled  EntityEvent = "reconciled"
	EntityReset       EntityEvent = "reset"
	EntityUpdated     EntityEvent = "updated"
	EntityUnchanged   EntityEvent = "unchanged"
)

// Recorder defines observability hooks for store, container and runtime activity.
type Recorder interface {
	IncSets()
	ObserveFlush(batchSize int)
	IncNotifications(label NotificationLabel, n int)
	SetWildcardSubscribers(n int)
	IncEntity(event EntityEvent)
	IncRenders(n int)
	SetPaths(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncSets()                                {}
func (NoopRecorder) ObserveFlush(int)                        {}
func (NoopRecorder) IncNotifications(NotificationLabel, int) {}
func (NoopRecorder) SetWildcardSubscribers(int)              {}
func (NoopRecorder) IncEntity(EntityEvent)                   {}
func (NoopRecorder) IncRenders(int)                          {}
func (NoopRecorder) SetPaths(int)                            {}
