package kvstorage

import (
	"bytes"
	"testing"
	"time"
)

func TestParseIPv4(t *testing.T) {
	cases := []struct {
		in   string
		want uint32
	}{
		{"10.0.0.1", 0x0a000001},
		{"255.255.255.255", 0xffffffff},
		{"1.2.3.4", 0x01020304},
		{"bogus", 0},
		{"10.0.0", 0},
		{"10.0.0.0.1", 0},
		{"10.0.0.256", 0},
		{"10..0.1", 0},
		{"10.0.0.1x", 0},
		{"", 0},
	}
	for _, tc := range cases {
		if got := parseIPv4([]byte(tc.in)); got != tc.want {
			t.Errorf("parseIPv4(%q) = %#x, want %#x", tc.in, got, tc.want)
		}
	}
}

func TestRadixCacheBasic(t *testing.T) {
	c := NewRadixCache()
	if c.Insert([]byte("10.0.0.1"), []byte("a"), 0, 0, 0) == nil {
		t.Fatal("insert 10.0.0.1 failed")
	}
	if c.Insert([]byte("10.0.0.2"), []byte("b"), 0, 0, 0) == nil {
		t.Fatal("insert 10.0.0.2 failed")
	}
	if c.Insert([]byte("bogus"), []byte("c"), 0, 0, 0) != nil {
		t.Fatal("unparseable key accepted")
	}

	elt := c.Lookup([]byte("10.0.0.1"))
	if elt == nil || !bytes.Equal(elt.Value(), []byte("a")) {
		t.Fatal("lookup 10.0.0.1 failed")
	}
	if c.Lookup([]byte("10.0.0.3")) != nil {
		t.Fatal("phantom hit")
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestRadixCacheStealDelete(t *testing.T) {
	c := NewRadixCache()
	elt := c.Insert([]byte("192.168.1.1"), []byte("v"), 0, 0, 0)
	c.Steal(elt)
	if c.Lookup([]byte("192.168.1.1")) != nil {
		t.Fatal("stolen element still reachable")
	}

	c.Insert([]byte("192.168.1.2"), []byte("w"), 0, 0, 0)
	if got := c.Delete([]byte("192.168.1.2")); got == nil {
		t.Fatal("delete missed")
	}
	if c.Len() != 0 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestRadixStorageScenario(t *testing.T) {
	st, err := New(1, NewRadixCache(), WithExpire(NewLRU()))
	if err != nil {
		t.Fatalf("storage init: %v", err)
	}
	now := time.Now().Unix()

	if !st.Insert([]byte("10.0.0.1"), []byte("a"), 0, 0) {
		t.Fatal("insert 10.0.0.1 failed")
	}
	if !st.Insert([]byte("10.0.0.2"), []byte("b"), 0, 0) {
		t.Fatal("insert 10.0.0.2 failed")
	}
	if st.Insert([]byte("bogus"), []byte("c"), 0, 0) {
		t.Fatal("bogus key accepted")
	}

	elt := st.Lookup([]byte("10.0.0.1"), now)
	if elt == nil || !bytes.Equal(elt.Value(), []byte("a")) {
		t.Fatal("lookup 10.0.0.1 failed")
	}
	if st.Elts() != 2 {
		t.Fatalf("elts = %d", st.Elts())
	}
}
