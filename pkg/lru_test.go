package kvstorage

import (
	"testing"
	"time"
)

// lruHarness wires an LRU queue to a storage so Step's evictions have a real
// cache to steal from.
func lruHarness(t *testing.T) (*Storage, *LRU) {
	t.Helper()
	q := NewLRU()
	st, err := New(1, NewHashCache(), WithExpire(q))
	if err != nil {
		t.Fatalf("storage init: %v", err)
	}
	return st, q
}

func TestLRUOrder(t *testing.T) {
	st, q := lruHarness(t)
	st.Insert([]byte("a"), []byte("1"), 0, 3600)
	st.Insert([]byte("b"), []byte("2"), 0, 3600)
	st.Insert([]byte("c"), []byte("3"), 0, 3600)

	if q.Len() != 3 {
		t.Fatalf("queue len = %d", q.Len())
	}
	// Eviction order equals insertion order: no lookup reordering happens.
	now := time.Now().Unix()
	st.mu.Lock()
	for _, want := range []string{"a", "b", "c"} {
		if string(q.head.Key()) != want {
			t.Fatalf("head = %q, want %q", q.head.Key(), want)
		}
		if !q.Step(now, false) {
			t.Fatalf("step made no progress at %q", want)
		}
	}
	st.mu.Unlock()
	if q.Len() != 0 {
		t.Fatalf("queue len = %d after draining", q.Len())
	}
}

func TestLRUStepSkipsPersistentUnlessForced(t *testing.T) {
	st, q := lruHarness(t)
	st.Insert([]byte("pinned"), []byte("v"), 0, 0) // ttl 0 → persistent

	now := time.Now().Unix()
	st.mu.Lock()
	defer st.mu.Unlock()

	if q.Step(now, false) {
		t.Fatal("non-forced step evicted a persistent head")
	}
	if st.elts != 1 {
		t.Fatalf("elts = %d", st.elts)
	}
	if !q.Step(now, true) {
		t.Fatal("forced step made no progress")
	}
	if st.elts != 0 {
		t.Fatalf("elts = %d after forced step", st.elts)
	}
}

func TestLRUStepSweepsExpiredRun(t *testing.T) {
	st, q := lruHarness(t)
	st.Insert([]byte("e1"), []byte("v"), 0, 1)
	st.Insert([]byte("e2"), []byte("v"), 0, 1)
	st.Insert([]byte("live"), []byte("v"), 0, 3600)

	now := time.Now().Unix() + 10 // both short TTLs have lapsed

	st.mu.Lock()
	defer st.mu.Unlock()
	if !q.Step(now, false) {
		t.Fatal("step made no progress")
	}
	// One step drops the whole contiguous expired run, nothing else.
	if st.elts != 1 {
		t.Fatalf("elts = %d, want 1", st.elts)
	}
	if string(q.head.Key()) != "live" {
		t.Fatalf("head = %q", q.head.Key())
	}
}

func TestLRUStepEmptyQueue(t *testing.T) {
	_, q := lruHarness(t)
	if q.Step(time.Now().Unix(), false) {
		t.Fatal("step on empty queue reported progress")
	}
	if q.Step(time.Now().Unix(), true) {
		t.Fatal("forced step on empty queue reported progress")
	}
}

func TestLRUDeleteUnlinks(t *testing.T) {
	st, q := lruHarness(t)
	st.Insert([]byte("a"), []byte("1"), 0, 3600)
	st.Insert([]byte("b"), []byte("2"), 0, 3600)
	st.Insert([]byte("c"), []byte("3"), 0, 3600)

	st.Delete([]byte("b"))
	if q.Len() != 2 {
		t.Fatalf("queue len = %d", q.Len())
	}
	if string(q.head.Key()) != "a" || string(q.tail.Key()) != "c" {
		t.Fatalf("queue ends = %q/%q", q.head.Key(), q.tail.Key())
	}

	// Double delete of an already-unlinked element is harmless.
	st.mu.Lock()
	elt := q.head
	q.Delete(elt)
	q.Delete(elt)
	st.mu.Unlock()
	if q.Len() != 1 {
		t.Fatalf("queue len = %d", q.Len())
	}
}
