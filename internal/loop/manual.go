package loop

// Manual is a Scheduler that only runs tasks when asked to. Tests use it to
// decide exactly where an execution window ends.
type Manual struct {
	queue []func()
}

// NewManual returns an empty manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

// Post enqueues task.
func (m *Manual) Post(task func()) {
	if task != nil {
		m.queue = append(m.queue, task)
	}
}

// Pending reports how many tasks are queued.
func (m *Manual) Pending() int {
	return len(m.queue)
}

// RunPending runs queued tasks, including ones posted while draining, and
// returns how many ran.
func (m *Manual) RunPending() int {
	ran := 0
	for len(m.queue) > 0 {
		task := m.queue[0]
		m.queue = m.queue[1:]
		task()
		ran++
	}
	return ran
}
