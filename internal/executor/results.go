package executor

import (
	"container/heap"
	"context"
	"sync"
)

// resultHeap orders Results by transaction index, so the merger always
// drains the lowest-index completed execution first regardless of which
// order fibers happened to finish in.
type resultHeap []*Result

func (h resultHeap) Len() int            { return len(h) }
func (h resultHeap) Less(i, j int) bool  { return h[i].Task.Index < h[j].Task.Index }
func (h resultHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *resultHeap) Push(x interface{}) { *h = append(*h, x.(*Result)) }
func (h *resultHeap) Pop() interface{} {
	old := *h
	n := len(old)
	r := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return r
}

// ResultsQueue is a thread-safe priority queue of execution results,
// grounded on the pack's Erigon ResultsQueue: a buffered completion
// channel feeding a locked heap, so the merger can block waiting for "the
// next index" without workers blocking on the merger.
type ResultsQueue struct {
	resultCh chan *Result

	mu      sync.Mutex
	results resultHeap
	closed  bool
}

func NewResultsQueue(channelCapacity int) *ResultsQueue {
	r := &ResultsQueue{resultCh: make(chan *Result, channelCapacity)}
	heap.Init(&r.results)
	return r
}

// Add enqueues a completed execution. Blocks if the channel is full.
func (q *ResultsQueue) Add(ctx context.Context, r *Result) {
	select {
	case <-ctx.Done():
	case q.resultCh <- r:
	}
}

// Close is safe to call multiple times.
func (q *ResultsQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.resultCh)
}

// drainNonBlocking moves everything currently sitting in the channel onto
// the heap without blocking.
func (q *ResultsQueue) drainNonBlocking() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		select {
		case r, ok := <-q.resultCh:
			if !ok {
				return
			}
			heap.Push(&q.results, r)
		default:
			return
		}
	}
}

// WaitForIndex blocks until the lowest-index queued result equals index,
// then pops and returns it.
func (q *ResultsQueue) WaitForIndex(ctx context.Context, index int) (*Result, bool) {
	for {
		q.mu.Lock()
		if len(q.results) > 0 && q.results[0].Task.Index == index {
			r := heap.Pop(&q.results).(*Result)
			q.mu.Unlock()
			return r, true
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case r, ok := <-q.resultCh:
			if !ok {
				q.drainNonBlocking()
				q.mu.Lock()
				if len(q.results) > 0 && q.results[0].Task.Index == index {
					out := heap.Pop(&q.results).(*Result)
					q.mu.Unlock()
					return out, true
				}
				q.mu.Unlock()
				return nil, false
			}
			q.mu.Lock()
			heap.Push(&q.results, r)
			q.mu.Unlock()
		}
	}
}
