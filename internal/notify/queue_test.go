package notify

import (
	"testing"
	"time"
)

func TestQueueOrdersByPriorityThenTimestamp(t *testing.T) {
	q := newQueue()
	base := time.Now()

	old := New("old-normal", "old", "")
	old.Timestamp = base
	newer := New("new-normal", "new", "")
	newer.Timestamp = base.Add(time.Second)
	urgent := New("urgent", "urgent", "")
	urgent.Priority = PriorityUrgent
	urgent.Timestamp = base.Add(2 * time.Second)

	q.push(newer)
	q.push(old)
	q.push(urgent)

	want := []string{"urgent", "old-normal", "new-normal"}
	for _, id := range want {
		n, _, ok := q.popWait(10 * time.Millisecond)
		if !ok {
			t.Fatalf("popWait returned no item, want %s", id)
		}
		if n.ID != id {
			t.Errorf("popped %s, want %s", n.ID, id)
		}
	}
}

func TestQueueSequenceBreaksTimestampTies(t *testing.T) {
	q := newQueue()
	ts := time.Now()
	for _, id := range []string{"a", "b", "c"} {
		n := New(id, id, "")
		n.Timestamp = ts
		q.push(n)
	}
	for _, want := range []string{"a", "b", "c"} {
		n, _, _ := q.popWait(10 * time.Millisecond)
		if n == nil || n.ID != want {
			t.Fatalf("got %v, want %s", n, want)
		}
	}
}

func TestQueueRequeueKeepsPosition(t *testing.T) {
	q := newQueue()
	ts := time.Now()
	first := New("first", "first", "")
	first.Timestamp = ts
	q.push(first)

	n, seq, ok := q.popWait(10 * time.Millisecond)
	if !ok || n.ID != "first" {
		t.Fatalf("expected to pop first, got %v", n)
	}

	later := New("later", "later", "")
	later.Timestamp = ts
	q.push(later)

	q.pushSeq(n, seq)

	got, _, _ := q.popWait(10 * time.Millisecond)
	if got == nil || got.ID != "first" {
		t.Fatalf("requeued item lost its position, popped %v", got)
	}
}

func TestQueuePopWaitTimesOut(t *testing.T) {
	q := newQueue()
	start := time.Now()
	_, _, ok := q.popWait(20 * time.Millisecond)
	if ok {
		t.Fatal("popWait returned an item from an empty queue")
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("popWait returned before the timeout")
	}
}

func TestQueuePopWaitWakesOnPush(t *testing.T) {
	q := newQueue()
	go func() {
		time.Sleep(10 * time.Millisecond)
		q.push(New("late", "late", ""))
	}()
	n, _, ok := q.popWait(2 * time.Second)
	if !ok || n.ID != "late" {
		t.Fatalf("expected pushed item, got %v ok=%v", n, ok)
	}
}

func TestQueueRemoveGroup(t *testing.T) {
	q := newQueue()
	for i, id := range []string{"a", "b", "c"} {
		n := New(id, id, "")
		if i != 1 {
			n.GroupID = "g"
		}
		q.push(n)
	}
	removed := q.removeGroup("g")
	if len(removed) != 2 {
		t.Fatalf("removed %d, want 2", len(removed))
	}
	if q.len() != 1 {
		t.Fatalf("queue has %d items, want 1", q.len())
	}
}
