package radix

import (
	"math/rand"
	"testing"
)

func TestInsertLookup(t *testing.T) {
	tr := New[string]()
	if _, ok := tr.Lookup(1); ok {
		t.Fatal("hit on empty tree")
	}

	keys := []uint32{0x0a000001, 0x0a000002, 0xffffffff, 1, 0x80000000}
	for _, k := range keys {
		if !tr.Insert(k, "v") {
			t.Fatalf("insert %#x not fresh", k)
		}
	}
	if tr.Len() != len(keys) {
		t.Fatalf("len = %d", tr.Len())
	}
	for _, k := range keys {
		if _, ok := tr.Lookup(k); !ok {
			t.Fatalf("lookup %#x missed", k)
		}
	}
	if _, ok := tr.Lookup(0x0a000003); ok {
		t.Fatal("phantom hit")
	}

	// Overwrite is not a fresh insert.
	if tr.Insert(1, "w") {
		t.Fatal("overwrite reported fresh")
	}
	if v, _ := tr.Lookup(1); v != "w" {
		t.Fatalf("overwrite lost: %q", v)
	}
}

func TestDelete(t *testing.T) {
	tr := New[int]()
	for i := uint32(1); i <= 64; i++ {
		tr.Insert(i*2654435761, int(i))
	}
	for i := uint32(1); i <= 64; i++ {
		v, ok := tr.Delete(i * 2654435761)
		if !ok || v != int(i) {
			t.Fatalf("delete %d = (%d, %v)", i, v, ok)
		}
		if _, ok := tr.Lookup(i * 2654435761); ok {
			t.Fatalf("deleted key %d still present", i)
		}
	}
	if tr.Len() != 0 {
		t.Fatalf("len = %d", tr.Len())
	}
	if _, ok := tr.Delete(42); ok {
		t.Fatal("delete on empty tree succeeded")
	}
}

func TestWalkOrdered(t *testing.T) {
	tr := New[struct{}]()
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 512; i++ {
		k := rnd.Uint32()
		if k == 0 {
			continue
		}
		tr.Insert(k, struct{}{})
	}

	var prev uint32
	first := true
	tr.Walk(func(k uint32, _ struct{}) bool {
		if !first && k <= prev {
			t.Fatalf("walk out of order: %#x after %#x", k, prev)
		}
		prev, first = k, false
		return true
	})
}

func TestRandomised(t *testing.T) {
	tr := New[uint32]()
	ref := make(map[uint32]uint32)
	rnd := rand.New(rand.NewSource(42))

	for i := 0; i < 4096; i++ {
		k := rnd.Uint32()%1024 + 1
		switch rnd.Intn(3) {
		case 0:
			tr.Insert(k, k)
			ref[k] = k
		case 1:
			_, got := tr.Delete(k)
			_, want := ref[k]
			if got != want {
				t.Fatalf("delete %#x = %v, want %v", k, got, want)
			}
			delete(ref, k)
		default:
			_, got := tr.Lookup(k)
			_, want := ref[k]
			if got != want {
				t.Fatalf("lookup %#x = %v, want %v", k, got, want)
			}
		}
	}
	if tr.Len() != len(ref) {
		t.Fatalf("len = %d, want %d", tr.Len(), len(ref))
	}
}
