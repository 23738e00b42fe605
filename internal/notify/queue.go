package notify

import (
	"sort"
	"sync"
	"time"
)

type queueItem struct {
	n   *Notification
	seq uint64
}

// queue is a priority-ordered notification queue. Items dequeue by
// priority (highest first), then timestamp (oldest first), then by a
// monotonic sequence number that breaks timestamp ties and keeps
// re-enqueued items ahead of anything admitted after them.
type queue struct {
	mu      sync.Mutex
	items   []queueItem
	nextSeq uint64
	signal  chan struct{}
	closed  bool
}

func newQueue() *queue {
	return &queue{signal: make(chan struct{}, 1)}
}

// push admits a notification and returns the sequence number assigned
// to it.
func (q *queue) push(n *Notification) uint64 {
	q.mu.Lock()
	seq := q.nextSeq
	q.nextSeq++
	q.insert(queueItem{n: n, seq: seq})
	q.mu.Unlock()
	q.wake()
	return seq
}

// pushSeq re-admits a previously popped notification under its original
// sequence number so its queue position is not regressed.
func (q *queue) pushSeq(n *Notification, seq uint64) {
	q.mu.Lock()
	q.insert(queueItem{n: n, seq: seq})
	q.mu.Unlock()
	q.wake()
}

// insert keeps items sorted. Caller holds mu.
func (q *queue) insert(it queueItem) {
	i := sort.Search(len(q.items), func(i int) bool {
		return before(it, q.items[i])
	})
	q.items = append(q.items, queueItem{})
	copy(q.items[i+1:], q.items[i:])
	q.items[i] = it
}

func before(a, b queueItem) bool {
	if a.n.Priority != b.n.Priority {
		return a.n.Priority > b.n.Priority
	}
	if !a.n.Timestamp.Equal(b.n.Timestamp) {
		return a.n.Timestamp.Before(b.n.Timestamp)
	}
	return a.seq < b.seq
}

func (q *queue) wake() {
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// popWait removes and returns the highest-priority item, blocking up to
// timeout when the queue is empty. ok is false on timeout or close.
func (q *queue) popWait(timeout time.Duration) (n *Notification, seq uint64, ok bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, 0, false
		}
		if len(q.items) > 0 {
			it := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return it.n, it.seq, true
		}
		q.mu.Unlock()

		select {
		case <-q.signal:
		case <-deadline.C:
			return nil, 0, false
		}
	}
}

// remove deletes the queued notification with the given id. It reports
// whether anything was removed.
func (q *queue) remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, it := range q.items {
		if it.n.ID == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// removeGroup deletes all queued notifications in the group and returns
// them.
func (q *queue) removeGroup(groupID string) []*Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	var removed []*Notification
	kept := q.items[:0]
	for _, it := range q.items {
		if it.n.GroupID == groupID {
			removed = append(removed, it.n)
		} else {
			kept = append(kept, it)
		}
	}
	q.items = kept
	return removed
}

// drain empties the queue and returns everything that was waiting.
func (q *queue) drain() []*Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Notification, len(q.items))
	for i, it := range q.items {
		out[i] = it.n
	}
	q.items = nil
	return out
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *queue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.wake()
}
