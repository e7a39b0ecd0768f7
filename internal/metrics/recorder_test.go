package metrics

// testRecorder counts calls; it doubles as a compile-time check that the
// Recorder interface stays implementable outside the Prometheus adapter.
type testRecorder struct {
	sets          int
	flushes       []int
	notifications map[NotificationLabel]int
	entities      map[EntityEvent]int
}

var _ Recorder = (*testRecorder)(nil)

func newTestRecorder() *testRecorder {
	return &testRecorder{notifications: map[NotificationLabel]int{}, entities: map[EntityEvent]int{}}
}

func (t *testRecorder) IncSets()                     { t.sets++ }
func (t *testRecorder) ObserveFlush(batchSize int)   { t.flushes = append(t.flushes, batchSize) }
func (t *testRecorder) SetWildcardSubscribers(int)   {}
func (t *testRecorder) IncEntity(event EntityEvent)  { t.entities[event]++ }
func (t *testRecorder) IncRenders(int)               {}
func (t *testRecorder) SetPaths(int)                 {}
func (t *testRecorder) IncNotifications(l NotificationLabel, n int) {
	t.notifications[l] += n
}
