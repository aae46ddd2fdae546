package queue

import (
	"errors"
	"testing"

	"github.com/keshon/tunebooth/internal/music/sources"
)

func track(id string) sources.Track { return sources.Track{ID: id} }

func TestQueueOrder(t *testing.T) {
	q := New()
	if _, ok := q.Head(); ok {
		t.Fatal("empty queue should have no head")
	}

	q.Append(track("a"), track("b"))
	q.Append(track("c"))

	if head, _ := q.Head(); head.ID != "a" {
		t.Errorf("Head() = %q, want a", head.ID)
	}
	for _, want := range []string{"a", "b", "c"} {
		if got := q.Pop(); got.ID != want {
			t.Errorf("Pop() = %q, want %q", got.ID, want)
		}
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d, want 0", q.Len())
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	q := New()
	q.Append(track("a"))
	snap := q.Snapshot()
	snap[0].ID = "changed"
	if head, _ := q.Head(); head.ID != "a" {
		t.Error("mutating a snapshot changed the queue")
	}
}

func TestClear(t *testing.T) {
	q := New()
	q.Append(track("a"), track("b"))
	q.Clear()
	if q.Len() != 0 || len(q.Snapshot()) != 0 {
		t.Error("Clear() left tracks behind")
	}
}

func TestPopEmptyPanics(t *testing.T) {
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrEmpty) {
			t.Errorf("recover() = %v, want ErrEmpty", r)
		}
	}()
	New().Pop()
}
