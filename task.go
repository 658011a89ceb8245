package pps

import (
	"sync"
	"sync/atomic"
	"time"
)

// scheduledTask is a function queued on a Driver.
type scheduledTask struct {
	// executeAt is the driver clock reading the task becomes due at.
	executeAt time.Duration

	// seq keeps tasks due at the same time in submission order.
	seq uint64

	fn func()

	cancelled atomic.Bool

	// index is the heap index for efficient removal
	index int
}

func (t *scheduledTask) before(o *scheduledTask) bool {
	if t.executeAt != o.executeAt {
		return t.executeAt < o.executeAt
	}
	return t.seq < o.seq
}

// taskQueue is a priority queue for scheduled tasks.
// It uses a binary heap for O(log n) insertion and removal.
// It is the only part of the runtime that other goroutines touch.
type taskQueue struct {
	mu    sync.Mutex
	heap  []*scheduledTask
	seq   uint64
	notif chan struct{}
}

// newTaskQueue creates a new task queue.
func newTaskQueue() *taskQueue {
	return &taskQueue{
		heap:  make([]*scheduledTask, 0, 64),
		notif: make(chan struct{}, 1),
	}
}

// compactHeap removes cancelled tasks from the heap and rebuilds the heap property.
func (q *taskQueue) compactHeap() {
	write := 0
	for read := 0; read < len(q.heap); read++ {
		if !q.heap[read].cancelled.Load() {
			q.heap[write] = q.heap[read]
			q.heap[write].index = write
			write++
		}
	}

	for i := write; i < len(q.heap); i++ {
		q.heap[i] = nil
	}
	q.heap = q.heap[:write]

	for i := len(q.heap)/2 - 1; i >= 0; i-- {
		q.down(i, len(q.heap))
	}
}

// Push adds a task to the queue with periodic cleanup to prevent memory leaks.
func (q *taskQueue) Push(task *scheduledTask) {
	q.mu.Lock()

	if len(q.heap) > 100 && len(q.heap)%100 == 0 {
		q.compactHeap()
	}

	q.seq++
	task.seq = q.seq
	q.push(task)
	q.mu.Unlock()

	select {
	case q.notif <- struct{}{}:
	default:
	}
}

// push adds a task without locking. Caller must hold lock.
func (q *taskQueue) push(task *scheduledTask) {
	task.index = len(q.heap)
	q.heap = append(q.heap, task)
	q.up(task.index)
}

// PopDue removes and returns all tasks that are due (executeAt <= now),
// in due order.
func (q *taskQueue) PopDue(now time.Duration) []*scheduledTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	var due []*scheduledTask
	cancelledCount := 0

	for len(q.heap) > 0 && q.heap[0].executeAt <= now {
		task := q.pop()
		if !task.cancelled.Load() {
			due = append(due, task)
		} else {
			cancelledCount++
		}
	}

	if cancelledCount > 50 && len(q.heap) > 0 {
		q.compactHeap()
	}

	return due
}

// Peek returns the next due time without removing.
func (q *taskQueue) Peek() (time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.heap) == 0 {
		return 0, false
	}
	return q.heap[0].executeAt, true
}

// Len returns the number of tasks in the queue.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Clear removes all tasks from the queue.
func (q *taskQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.heap)
	q.heap = q.heap[:0]
}

// Notify returns the notification channel.
func (q *taskQueue) Notify() <-chan struct{} {
	return q.notif
}

// pop removes and returns the minimum task. Caller must hold lock.
func (q *taskQueue) pop() *scheduledTask {
	n := len(q.heap) - 1
	q.swap(0, n)
	q.down(0, n)
	task := q.heap[n]
	q.heap[n] = nil // Allow GC
	q.heap = q.heap[:n]
	task.index = -1
	return task
}

// up moves task at index up the heap.
func (q *taskQueue) up(i int) {
	for {
		parent := (i - 1) / 2
		if parent == i || !q.heap[i].before(q.heap[parent]) {
			break
		}
		q.swap(i, parent)
		i = parent
	}
}

// down moves task at index down the heap.
func (q *taskQueue) down(i, n int) {
	for {
		left := 2*i + 1
		if left >= n || left < 0 {
			break
		}
		j := left
		if right := left + 1; right < n && q.heap[right].before(q.heap[left]) {
			j = right
		}
		if !q.heap[j].before(q.heap[i]) {
			break
		}
		q.swap(i, j)
		i = j
	}
}

// swap swaps two tasks in the heap.
func (q *taskQueue) swap(i, j int) {
	q.heap[i], q.heap[j] = q.heap[j], q.heap[i]
	q.heap[i].index = i
	q.heap[j].index = j
}

// TaskHandle allows cancelling a scheduled task.
type TaskHandle struct {
	task *scheduledTask
}

// Cancel cancels the scheduled task. Cancelling a task that already ran
// does nothing.
func (h *TaskHandle) Cancel() {
	if h != nil && h.task != nil {
		h.task.cancelled.Store(true)
	}
}

// Exec runs fn on the ticking goroutine before the next frame's phases,
// or sooner when Run is idle between frames. It is safe to call from any
// goroutine.
func (d *Driver) Exec(fn func()) *TaskHandle {
	return d.schedule(fn, 0)
}

// Schedule runs fn on the ticking goroutine once the driver clock has
// advanced by delay. The clock only advances with frames, so a stepped
// driver runs the task in the first Step that reaches it.
func (d *Driver) Schedule(fn func(), delay time.Duration) *TaskHandle {
	if delay < 0 {
		delay = 0
	}
	return d.schedule(fn, time.Duration(d.clock.Load())+delay)
}

func (d *Driver) schedule(fn func(), at time.Duration) *TaskHandle {
	if fn == nil {
		return nil
	}
	task := &scheduledTask{executeAt: at, fn: fn}
	d.tasks.Push(task)
	return &TaskHandle{task: task}
}

// RepeatingTaskHandle allows cancelling a repeating scheduled task.
type RepeatingTaskHandle struct {
	cancelled atomic.Bool
	runs      atomic.Int64
}

// Cancel cancels the repeating task, preventing future executions.
func (h *RepeatingTaskHandle) Cancel() {
	if h != nil {
		h.cancelled.Store(true)
	}
}

// Runs returns how many times the task has run.
func (h *RepeatingTaskHandle) Runs() int {
	return int(h.runs.Load())
}

// ScheduleRepeating runs fn every interval of driver time.
// If times is -1, the task repeats indefinitely until cancelled.
// If times is > 0, the task runs exactly that many times.
func (d *Driver) ScheduleRepeating(fn func(), interval time.Duration, times int) *RepeatingTaskHandle {
	if fn == nil || times == 0 || interval <= 0 {
		return nil
	}
	h := &RepeatingTaskHandle{}
	remaining := times

	var run func()
	run = func() {
		if h.cancelled.Load() {
			return
		}
		fn()
		h.runs.Add(1)
		if h.cancelled.Load() {
			return
		}
		if remaining > 0 {
			remaining--
		}
		if remaining == 0 {
			return
		}
		d.Schedule(run, interval)
	}
	d.Schedule(run, interval)
	return h
}
