package kvstorage

import (
	"bytes"
	"testing"
)

func TestTrieCacheContract(t *testing.T) {
	c := NewTrieCache()
	if c.Insert([]byte("Alpha"), []byte("a"), 0, 0, 0) == nil {
		t.Fatal("insert failed")
	}
	c.Insert([]byte("beta"), []byte("b"), 0, 0, 0)

	// Same case-insensitive semantics as the hash cache.
	elt := c.Lookup([]byte("ALPHA"))
	if elt == nil || !bytes.Equal(elt.Value(), []byte("a")) {
		t.Fatal("case-insensitive lookup failed")
	}

	stolen := c.Lookup([]byte("beta"))
	c.Steal(stolen)
	if c.Lookup([]byte("beta")) != nil {
		t.Fatal("stolen element still reachable")
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d", c.Len())
	}

	if got := c.Delete([]byte("alpha")); got == nil {
		t.Fatal("delete missed")
	}
	if c.Len() != 0 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestTrieCacheOrderedIteration(t *testing.T) {
	c := NewTrieCache()
	for _, k := range []string{"pear", "apple", "banana", "apricot"} {
		c.Insert([]byte(k), []byte("v"), 0, 0, 0)
	}

	var keys []string
	c.ForEach(func(e *Element) bool {
		keys = append(keys, string(e.Key()))
		return true
	})

	want := []string{"apple", "apricot", "banana", "pear"}
	if len(keys) != len(want) {
		t.Fatalf("iterated %d keys", len(keys))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("order = %v, want %v", keys, want)
		}
	}
}
