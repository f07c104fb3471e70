// Package queue implements the in-process work queue shared by the poller
// and the pipeline worker: an unbounded FIFO with outstanding-work
// accounting so shutdown can observe "fully drained".
package queue

import (
	"sync"
	"time"

	"TranscriptPipeline/internal/domain"
)

// Queue is safe for one producer and one consumer plus requeues from the
// consumer itself. Outstanding counts queued plus in-flight items: Push
// increments it and Done decrements it.
type Queue struct {
	mu          sync.Mutex
	idle        *sync.Cond
	items       []domain.WorkItem
	outstanding int
	notify      chan struct{}
}

// New returns an empty queue.
func New() *Queue {
	q := &Queue{notify: make(chan struct{}, 1)}
	q.idle = sync.NewCond(&q.mu)
	return q
}

// Push appends an item and marks it outstanding.
func (q *Queue) Push(item domain.WorkItem) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.outstanding++
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// Pop removes the oldest item, blocking up to timeout when the queue is
// empty. The second return value is false on timeout. A popped item stays
// outstanding until Done is called for it.
func (q *Queue) Pop(timeout time.Duration) (domain.WorkItem, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-deadline.C:
			return domain.WorkItem{}, false
		}
	}
}

// Done marks one popped item as finished. A requeue must Push the retry
// before calling Done for the finished attempt so the outstanding count
// never dips to zero mid-transition.
func (q *Queue) Done() {
	q.mu.Lock()
	if q.outstanding > 0 {
		q.outstanding--
	}
	if q.outstanding == 0 {
		q.idle.Broadcast()
	}
	q.mu.Unlock()
}

// Len reports the number of queued (not in-flight) items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Outstanding reports queued plus in-flight items.
func (q *Queue) Outstanding() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.outstanding
}

// Join blocks until every queued and in-flight item has completed.
func (q *Queue) Join() {
	q.mu.Lock()
	for q.outstanding > 0 {
		q.idle.Wait()
	}
	q.mu.Unlock()
}
