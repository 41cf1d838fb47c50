package kvstorage

import (
	"bytes"
	"testing"
	"time"
)

func newArrayStorage(t *testing.T) *Storage {
	t.Helper()
	st, err := New(1, NewHashCache(), WithExpire(NewLRU()))
	if err != nil {
		t.Fatalf("storage init: %v", err)
	}
	return st
}

func TestArrayRoundTrip(t *testing.T) {
	st := newArrayStorage(t)
	now := time.Now().Unix()

	buf := []byte{4, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}
	if !st.InsertArray([]byte("arr"), 4, buf, 0, 0) {
		t.Fatal("insert failed")
	}

	for i := uint(0); i < 4; i++ {
		slot, ok := st.GetArray([]byte("arr"), i, now)
		if !ok {
			t.Fatalf("get slot %d failed", i)
		}
		if !bytes.Equal(slot, buf[i*4:i*4+4]) {
			t.Fatalf("slot %d = %v, want %v", i, slot, buf[i*4:i*4+4])
		}
	}
}

func TestArraySetInPlace(t *testing.T) {
	st := newArrayStorage(t)
	now := time.Now().Unix()

	buf := make([]byte, 16)
	if !st.InsertArray([]byte("arr"), 4, buf, 0, 0) {
		t.Fatal("insert failed")
	}
	memBefore := st.Memory()

	if !st.SetArray([]byte("arr"), 1, []byte{9, 0, 0, 0}, now) {
		t.Fatal("set failed")
	}
	slot, ok := st.GetArray([]byte("arr"), 1, now)
	if !ok || !bytes.Equal(slot, []byte{9, 0, 0, 0}) {
		t.Fatalf("slot 1 = %v after set", slot)
	}
	// In-place mutation: no reallocation, no accounting drift.
	if st.Memory() != memBefore {
		t.Fatalf("memory changed by in-place set: %d -> %d", memBefore, st.Memory())
	}
}

func TestArrayShapeErrors(t *testing.T) {
	st := newArrayStorage(t)
	now := time.Now().Unix()

	if st.InsertArray([]byte("bad"), 0, []byte{1}, 0, 0) {
		t.Fatal("accepted zero slot size")
	}
	if st.InsertArray([]byte("bad"), 4, []byte{1, 2, 3}, 0, 0) {
		t.Fatal("accepted ragged buffer")
	}

	if !st.InsertArray([]byte("arr"), 4, make([]byte, 16), 0, 0) {
		t.Fatal("insert failed")
	}
	if st.SetArray([]byte("arr"), 5, []byte{0, 0, 0, 0}, now) {
		t.Fatal("accepted out-of-range index")
	}
	if st.SetArray([]byte("arr"), 4, []byte{0, 0, 0, 0}, now) {
		t.Fatal("accepted one-past-the-end index")
	}
	if st.SetArray([]byte("arr"), 0, []byte{0, 0}, now) {
		t.Fatal("accepted wrong slot length")
	}
	if st.SetArray([]byte("missing"), 0, []byte{0, 0, 0, 0}, now) {
		t.Fatal("accepted missing key")
	}

	// Non-array element.
	if !st.Insert([]byte("plain"), []byte("v"), 0, 0) {
		t.Fatal("insert failed")
	}
	if _, ok := st.GetArray([]byte("plain"), 0, now); ok {
		t.Fatal("read a non-array element as array")
	}
}

func TestArrayTTL(t *testing.T) {
	st := newArrayStorage(t)
	now := time.Now().Unix()

	if !st.InsertArray([]byte("arr"), 4, make([]byte, 8), 0, 1) {
		t.Fatal("insert failed")
	}
	if _, ok := st.GetArray([]byte("arr"), 0, now); !ok {
		t.Fatal("fresh array not readable")
	}
	if _, ok := st.GetArray([]byte("arr"), 0, now+5); ok {
		t.Fatal("expired array still readable")
	}
	if st.SetArray([]byte("arr"), 0, []byte{1, 2, 3, 4}, now+5) {
		t.Fatal("expired array still writable")
	}
}
