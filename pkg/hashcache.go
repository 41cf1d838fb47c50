package kvstorage

// hashcache.go implements the general-purpose index variant: a bucket map
// keyed by the case-insensitive key hash, with collisions resolved through a
// chain threaded through the elements themselves.  The map never owns a key
// copy - an element's key lives in its own buffer and the chain walk
// compares it case-insensitively after the hash matched.
//
// © 2025 kvstorage authors. MIT License.

// HashCache indexes elements under case-insensitive byte-string keys.
type HashCache struct {
	buckets map[uint32]*Element
	count   int
}

// NewHashCache constructs an empty hash index.
func NewHashCache() *HashCache {
	return &HashCache{buckets: make(map[uint32]*Element, 1024)}
}

// Insert allocates a fresh element for key/value and installs it.  The
// storage guarantees any prior entry for key was stolen beforehand; hash
// collisions between distinct keys simply share the chain.
func (c *HashCache) Insert(key, value []byte, flags Flags, expire uint32, now int64) *Element {
	elt := newElement(key, value, flags, expire, now)
	elt.hnext = c.buckets[elt.hash]
	c.buckets[elt.hash] = elt
	c.count++
	return elt
}

// Lookup returns the element stored under key, or nil.
func (c *HashCache) Lookup(key []byte) *Element {
	h := CaseFoldHash(key)
	for e := c.buckets[h]; e != nil; e = e.hnext {
		if keysEqualFold(e.Key(), key) {
			return e
		}
	}
	return nil
}

// Replace installs elt in place of the element stored under key and returns
// the displaced one.
func (c *HashCache) Replace(key []byte, elt *Element) (*Element, bool) {
	h := CaseFoldHash(key)
	var prev *Element
	for e := c.buckets[h]; e != nil; e = e.hnext {
		if keysEqualFold(e.Key(), key) {
			elt.hnext = e.hnext
			if prev == nil {
				c.buckets[h] = elt
			} else {
				prev.hnext = elt
			}
			e.hnext = nil
			return e, true
		}
		prev = e
	}
	return nil, false
}

// Delete unlinks and returns the element stored under key.
func (c *HashCache) Delete(key []byte) *Element {
	h := CaseFoldHash(key)
	var prev *Element
	for e := c.buckets[h]; e != nil; e = e.hnext {
		if keysEqualFold(e.Key(), key) {
			c.unlink(h, prev, e)
			return e
		}
		prev = e
	}
	return nil
}

// Steal unlinks elt without releasing it.
func (c *HashCache) Steal(elt *Element) {
	var prev *Element
	for e := c.buckets[elt.hash]; e != nil; e = e.hnext {
		if e == elt {
			c.unlink(elt.hash, prev, e)
			return
		}
		prev = e
	}
}

func (c *HashCache) unlink(h uint32, prev, e *Element) {
	if prev == nil {
		if e.hnext == nil {
			delete(c.buckets, h)
		} else {
			c.buckets[h] = e.hnext
		}
	} else {
		prev.hnext = e.hnext
	}
	e.hnext = nil
	c.count--
}

// Len reports the number of reachable elements.
func (c *HashCache) Len() int { return c.count }

// ForEach iterates reachable elements in no particular order.
func (c *HashCache) ForEach(fn func(*Element) bool) {
	for _, head := range c.buckets {
		for e := head; e != nil; e = e.hnext {
			if !fn(e) {
				return
			}
		}
	}
}

// Destroy drops the index.
func (c *HashCache) Destroy() {
	c.buckets = nil
	c.count = 0
}
