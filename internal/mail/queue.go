package mail

// queueCapacity is the buffered depth of the task queue, in batches. IDLE
// pushes at most one batch per poll tick, so producers only block under a
// pathological backlog.
const queueCapacity = 256

// task is the tagged union carried by the queue: either a batch of 1-based
// positions or a stop signal. Modeling stop as a flag instead of a reserved
// index keeps invalid batches unrepresentable.
type task struct {
	batch []uint32
	stop  bool
}

// TaskQueue decouples notification from fetching: the Listener enqueues
// position batches, the Processor consumes them. Multiple producers may put
// concurrently; there is a single consumer. Either side may enqueue stop,
// and the consumer must not re-enqueue it.
type TaskQueue struct {
	ch chan task
}

// NewTaskQueue creates an empty task queue.
func NewTaskQueue() *TaskQueue {
	return &TaskQueue{ch: make(chan task, queueCapacity)}
}

// PutBatch enqueues a non-empty batch of 1-based positions. Empty batches
// are dropped.
func (q *TaskQueue) PutBatch(positions []uint32) {
	if len(positions) == 0 {
		return
	}
	q.ch <- task{batch: positions}
}

// PutStop enqueues the stop signal telling the consumer to shut down.
func (q *TaskQueue) PutStop() {
	q.ch <- task{stop: true}
}

// Get blocks until the next queue entry. stop=true means shut down; the
// batch is nil in that case.
func (q *TaskQueue) Get() (batch []uint32, stop bool) {
	t := <-q.ch
	return t.batch, t.stop
}

// Len returns the number of queued entries. Only meaningful for tests and
// diagnostics.
func (q *TaskQueue) Len() int { return len(q.ch) }
