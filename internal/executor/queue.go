package executor

import (
	"container/heap"
	"context"
	"sync"
)

// taskHeap is a container/heap ordered by transaction index — grounded on
// the pack's Erigon TxTaskQueue, trimmed to this package's TxTask.
type taskHeap []*TxTask

func (h taskHeap) Len() int            { return len(h) }
func (h taskHeap) Less(i, j int) bool  { return h[i].Index < h[j].Index }
func (h taskHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *taskHeap) Push(x interface{}) { *h = append(*h, x.(*TxTask)) }
func (h *taskHeap) Pop() interface{} {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return t
}

// QueueWithRetry is a thread-safe priority queue of TxTasks. Retried tasks
// (returned via ReTry, after a failed merge) always outrank freshly
// submitted tasks, since re-running a known-stale execution against newer
// Block State is more likely to merge than starting a brand new one —
// same rationale as the pack's Erigon QueueWithRetry.
type QueueWithRetry struct {
	newTasks chan *TxTask

	mu      sync.Mutex
	retries taskHeap

	closed bool
}

// NewQueueWithRetry constructs a queue whose "new task" channel holds at
// most capacity unsubmitted tasks before Add blocks, bounding how far the
// fiber pool can run ahead of in-order merge.
func NewQueueWithRetry(capacity int) *QueueWithRetry {
	return &QueueWithRetry{newTasks: make(chan *TxTask, capacity)}
}

// Add submits a never-yet-executed task. Blocks if the channel is full.
func (q *QueueWithRetry) Add(ctx context.Context, t *TxTask) {
	select {
	case <-ctx.Done():
	case q.newTasks <- t:
	}
}

// ReTry re-submits a task whose speculative execution failed to merge.
// Non-blocking: retried tasks go straight onto the priority heap, and a
// zero-value wakes a blocked Next.
func (q *QueueWithRetry) ReTry(t *TxTask) {
	q.mu.Lock()
	heap.Push(&q.retries, t)
	q.mu.Unlock()
	if q.closed {
		return
	}
	select {
	case q.newTasks <- nil:
	default:
	}
}

// Next blocks until a task is available or ctx is done. Retried tasks are
// always returned ahead of new ones.
func (q *QueueWithRetry) Next(ctx context.Context) (*TxTask, bool) {
	if t, ok := q.popNoWait(); ok {
		return t, true
	}
	for {
		select {
		case <-ctx.Done():
			return nil, false
		case in, ok := <-q.newTasks:
			if !ok {
				return q.popNoWait()
			}
			q.mu.Lock()
			if in != nil {
				heap.Push(&q.retries, in)
			}
			var t *TxTask
			if q.retries.Len() > 0 {
				t = heap.Pop(&q.retries).(*TxTask)
			}
			q.mu.Unlock()
			if t != nil {
				return t, true
			}
		}
	}
}

func (q *QueueWithRetry) popNoWait() (*TxTask, bool) {
	q.mu.Lock()
	if q.retries.Len() > 0 {
		t := heap.Pop(&q.retries).(*TxTask)
		q.mu.Unlock()
		return t, true
	}
	q.mu.Unlock()

	select {
	case t, ok := <-q.newTasks:
		if !ok || t == nil {
			return nil, false
		}
		return t, true
	default:
		return nil, false
	}
}

// Close is safe to call multiple times.
func (q *QueueWithRetry) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.newTasks)
}
