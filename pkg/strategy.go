package kvstorage

// strategy.go declares the three capability interfaces a Storage is wired
// from.  The C ancestry of this design used vtables embedded as the first
// struct fields; here each strategy is an interface and variants are the
// concrete implementations.  The Steal primitive - remove without releasing -
// is kept explicit: it is what lets dirty elements survive eviction until
// their backend write drains.
//
// None of the strategy implementations synchronise internally.  The owning
// Storage serialises every call under its reader/writer lock; Init is called
// once before the Storage is published.
//
// © 2025 kvstorage authors. MIT License.

// Cache indexes elements by key.  Variants: hash (general keys), radix
// (IPv4 dotted-quad keys), trie (ordered byte keys).
//
// A Cache owns no element lifetimes: it holds raw back-pointers and all
// release decisions are taken by the Storage in concert with Expire.
type Cache interface {
	// Insert allocates a fresh element for key/value, stamps age and hash,
	// and installs it.  A pre-existing entry must have been stolen by the
	// caller beforehand.  Returns nil when the key is unacceptable to the
	// variant (e.g. an unparseable address for the radix cache).
	Insert(key, value []byte, flags Flags, expire uint32, now int64) *Element

	// Lookup returns the element stored under key, or nil.
	Lookup(key []byte) *Element

	// Replace installs elt under key and returns the displaced element.
	// Fails (nil, false) when key is absent; the index is unchanged then.
	Replace(key []byte, elt *Element) (*Element, bool)

	// Delete unlinks and returns the element stored under key, or nil.
	Delete(key []byte) *Element

	// Steal unlinks elt without releasing it.  This is the primitive both
	// eviction and replacement are built from.
	Steal(elt *Element)

	// Len reports the number of reachable elements.
	Len() int

	// ForEach iterates reachable elements; returning false stops early.
	ForEach(fn func(*Element) bool)

	// Destroy drops the index.  Elements are released by the Storage.
	Destroy()
}

// Expire decides which element leaves when the Storage is over its caps.
type Expire interface {
	// Init binds the strategy to its Storage before first use.
	Init(s *Storage)

	// Insert registers a freshly installed element.
	Insert(elt *Element)

	// Delete forgets an element that is leaving the index.
	Delete(elt *Element)

	// Step performs one eviction attempt and reports whether it made
	// progress.  Non-forced steps skip persistent and dirty elements;
	// forced steps may evict them, flagging dirty victims NeedFree.
	Step(now int64, forced bool) bool

	// Destroy drops the strategy state.
	Destroy()
}

// Backend is an optional durable store fed write-behind.  All operations are
// advisory: a false return surfaces to the caller while the in-memory state
// keeps the already-applied mutation.
//
// The Backend is the only component allowed to clear FlagDirty; it reports a
// drained write back through Storage.CompleteWrite, which also honours
// FlagNeedFree.
type Backend interface {
	// Init binds the backend to its Storage and starts its drain machinery.
	Init(s *Storage) error

	// Insert queues a durable write for a newly installed element.  The
	// backend may mark the element dirty until the write drains.
	Insert(key []byte, elt *Element) bool

	// Replace queues a durable overwrite.
	Replace(key []byte, elt *Element) bool

	// Lookup fetches a fresh element for a key the cache no longer holds.
	// The returned element is allocated independently of any index.
	Lookup(key []byte) *Element

	// Delete queues durable removal.
	Delete(key []byte) bool

	// Destroy flushes pending writes and releases the store.
	Destroy()
}
