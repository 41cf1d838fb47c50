package kvstorage

// triecache.go implements the digital-trie index variant.  Its contract is
// identical to the hash cache at the Cache interface; the difference is that
// iteration walks keys in lexicographic order, which makes deterministic
// dumps of the stored set cheap.  Chosen when a caller wants an ordered key
// space rather than raw lookup throughput.
//
// © 2025 kvstorage authors. MIT License.

import (
	"github.com/filtermesh/kvstorage/internal/trie"
)

// TrieCache indexes elements under case-insensitive byte-string keys with
// ordered iteration.
type TrieCache struct {
	tree *trie.Tree[*Element]
}

// NewTrieCache constructs an empty trie index.
func NewTrieCache() *TrieCache {
	return &TrieCache{tree: trie.New[*Element]()}
}

// Insert allocates a fresh element for key/value and installs it.
func (c *TrieCache) Insert(key, value []byte, flags Flags, expire uint32, now int64) *Element {
	elt := newElement(key, value, flags, expire, now)
	c.tree.Insert(key, elt)
	return elt
}

// Lookup returns the element stored under key, or nil.
func (c *TrieCache) Lookup(key []byte) *Element {
	elt, ok := c.tree.Lookup(key)
	if !ok {
		return nil
	}
	return elt
}

// Replace installs elt in place of the element stored under key and returns
// the displaced one.
func (c *TrieCache) Replace(key []byte, elt *Element) (*Element, bool) {
	old, ok := c.tree.Lookup(key)
	if !ok {
		return nil, false
	}
	c.tree.Insert(key, elt)
	return old, true
}

// Delete unlinks and returns the element stored under key.
func (c *TrieCache) Delete(key []byte) *Element {
	elt, ok := c.tree.Delete(key)
	if !ok {
		return nil
	}
	return elt
}

// Steal unlinks elt without releasing it.
func (c *TrieCache) Steal(elt *Element) {
	c.tree.Delete(elt.Key())
}

// Len reports the number of reachable elements.
func (c *TrieCache) Len() int { return c.tree.Len() }

// ForEach iterates reachable elements in lexicographic key order.
func (c *TrieCache) ForEach(fn func(*Element) bool) {
	c.tree.Walk(func(_ []byte, elt *Element) bool {
		return fn(elt)
	})
}

// Destroy drops the index.
func (c *TrieCache) Destroy() {
	c.tree = trie.New[*Element]()
}
