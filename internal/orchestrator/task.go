package orchestrator

// task tracks one dispatched action and the async steps it spawned. The
// loop holds it once per in-flight step; done fires when the count drops
// to zero. Only the loop goroutine touches pending and err.
type task struct {
	pending int
	err     error
	done    chan error
}

func newTask() *task {
	return &task{pending: 1, done: make(chan error, 1)}
}

func (t *task) hold() {
	if t != nil {
		t.pending++
	}
}

// fail records the first error of the task.
func (t *task) fail(err error) {
	if t != nil && t.err == nil {
		t.err = err
	}
}

func (t *task) release() {
	if t == nil {
		return
	}
	t.pending--
	if t.pending == 0 {
		t.done <- t.err
	}
}
