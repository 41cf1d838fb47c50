package kvstorage

// radixcache.go implements the IPv4 index variant.  Keys are dotted-quad
// strings; the effective key is the parsed 32-bit address stored in a
// crit-bit tree with a fixed /32 mask.  Keys that fail to parse (yielding
// address 0) are rejected on insert, so the filtering server never indexes
// garbage under the zero address.
//
// The element's hash field carries the parsed address - the radix key and
// the hash are the same 32-bit value for this variant.
//
// © 2025 kvstorage authors. MIT License.

import (
	"github.com/filtermesh/kvstorage/internal/radix"
)

// RadixCache indexes elements under IPv4 dotted-quad keys.
type RadixCache struct {
	tree *radix.Tree[*Element]
}

// NewRadixCache constructs an empty IPv4 index.
func NewRadixCache() *RadixCache {
	return &RadixCache{tree: radix.New[*Element]()}
}

// parseIPv4 converts a dotted-quad key to a host-order 32-bit address.
// Returns 0 for anything that is not a plain a.b.c.d quad.
func parseIPv4(key []byte) uint32 {
	var addr uint32
	var octet uint32
	digits := 0
	dots := 0
	for _, c := range key {
		switch {
		case c >= '0' && c <= '9':
			octet = octet*10 + uint32(c-'0')
			if octet > 255 {
				return 0
			}
			digits++
		case c == '.':
			if digits == 0 {
				return 0
			}
			addr = addr<<8 | octet
			octet, digits = 0, 0
			dots++
			if dots > 3 {
				return 0
			}
		default:
			return 0
		}
	}
	if dots != 3 || digits == 0 {
		return 0
	}
	return addr<<8 | octet
}

// Insert parses key as an IPv4 address and installs a fresh element under
// it.  Returns nil when the key does not parse.
func (c *RadixCache) Insert(key, value []byte, flags Flags, expire uint32, now int64) *Element {
	addr := parseIPv4(key)
	if addr == 0 {
		return nil
	}
	elt := newElement(key, value, flags, expire, now)
	elt.hash = addr
	c.tree.Insert(addr, elt)
	return elt
}

// Lookup returns the element stored under the parsed address of key.
func (c *RadixCache) Lookup(key []byte) *Element {
	addr := parseIPv4(key)
	if addr == 0 {
		return nil
	}
	elt, ok := c.tree.Lookup(addr)
	if !ok {
		return nil
	}
	return elt
}

// Replace installs elt under the parsed address of key and returns the
// displaced element.
func (c *RadixCache) Replace(key []byte, elt *Element) (*Element, bool) {
	addr := parseIPv4(key)
	if addr == 0 {
		return nil, false
	}
	old, ok := c.tree.Lookup(addr)
	if !ok {
		return nil, false
	}
	elt.hash = addr
	c.tree.Insert(addr, elt)
	return old, true
}

// Delete unlinks and returns the element stored under key.
func (c *RadixCache) Delete(key []byte) *Element {
	addr := parseIPv4(key)
	if addr == 0 {
		return nil
	}
	elt, ok := c.tree.Delete(addr)
	if !ok {
		return nil
	}
	return elt
}

// Steal unlinks elt without releasing it.  The parsed address travels in
// the element's hash field, so no re-parse is needed.
func (c *RadixCache) Steal(elt *Element) {
	c.tree.Delete(elt.hash)
}

// Len reports the number of reachable elements.
func (c *RadixCache) Len() int { return c.tree.Len() }

// ForEach iterates reachable elements in ascending address order.
func (c *RadixCache) ForEach(fn func(*Element) bool) {
	c.tree.Walk(func(_ uint32, elt *Element) bool {
		return fn(elt)
	})
}

// Destroy drops the index.
func (c *RadixCache) Destroy() {
	c.tree = radix.New[*Element]()
}
