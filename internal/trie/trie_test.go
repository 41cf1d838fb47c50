package trie

import (
	"testing"
)

func TestInsertLookupFold(t *testing.T) {
	tr := New[string]()
	if !tr.Insert([]byte("Hello"), "w") {
		t.Fatal("insert not fresh")
	}
	for _, probe := range []string{"hello", "HELLO", "Hello"} {
		v, ok := tr.Lookup([]byte(probe))
		if !ok || v != "w" {
			t.Fatalf("lookup %q = (%q, %v)", probe, v, ok)
		}
	}
	if _, ok := tr.Lookup([]byte("hell")); ok {
		t.Fatal("prefix hit")
	}
	if _, ok := tr.Lookup([]byte("hellos")); ok {
		t.Fatal("extension hit")
	}

	// Overwrite keeps the size stable.
	if tr.Insert([]byte("HELLO"), "x") {
		t.Fatal("overwrite reported fresh")
	}
	if tr.Len() != 1 {
		t.Fatalf("len = %d", tr.Len())
	}
}

func TestDeletePrunes(t *testing.T) {
	tr := New[int]()
	tr.Insert([]byte("car"), 1)
	tr.Insert([]byte("cart"), 2)

	if v, ok := tr.Delete([]byte("cart")); !ok || v != 2 {
		t.Fatalf("delete cart = (%d, %v)", v, ok)
	}
	if _, ok := tr.Lookup([]byte("cart")); ok {
		t.Fatal("deleted key still present")
	}
	if v, ok := tr.Lookup([]byte("car")); !ok || v != 1 {
		t.Fatalf("prefix key damaged: (%d, %v)", v, ok)
	}
	if _, ok := tr.Delete([]byte("cart")); ok {
		t.Fatal("double delete succeeded")
	}
	if tr.Len() != 1 {
		t.Fatalf("len = %d", tr.Len())
	}
}

func TestWalkLexicographic(t *testing.T) {
	tr := New[struct{}]()
	for _, k := range []string{"zebra", "ant", "bee", "aardvark"} {
		tr.Insert([]byte(k), struct{}{})
	}

	var got []string
	tr.Walk(func(key []byte, _ struct{}) bool {
		got = append(got, string(key))
		return true
	})
	want := []string{"aardvark", "ant", "bee", "zebra"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("walk order = %v", got)
		}
	}

	// Early stop.
	n := 0
	tr.Walk(func([]byte, struct{}) bool {
		n++
		return false
	})
	if n != 1 {
		t.Fatalf("early stop visited %d", n)
	}
}
