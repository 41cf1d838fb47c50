package kvstorage

// element.go defines Element - the unit stored by every index variant - and
// its host-native wire codec used by durable backends.
//
// An Element is a single allocation: one backing byte slice holding the key,
// a terminating NUL (kept for hashing compatibility with the embedded
// scripting layer) and the value.  Key and value accessors are sub-slices of
// that buffer, so their base pointers stay stable for the whole element
// lifetime - index variants and the expire queue keep raw back-pointers and
// rely on that.
//
// The hash-chain and expire-queue links are threaded through the Element
// itself.  This mirrors the intrusive metadata layout of the index: no
// per-element side allocations, and an element can be unlinked from both
// structures without consulting any auxiliary table.
//
// © 2025 kvstorage authors. MIT License.

import (
	"encoding/binary"
	"errors"

	"github.com/filtermesh/kvstorage/internal/unsafex"
)

// Flags is the per-element state bitset.
type Flags uint32

const (
	// FlagPersistent marks an element with TTL 0: time-based eviction skips
	// it unless the eviction is forced.
	FlagPersistent Flags = 1 << iota
	// FlagDirty is set while the element sits in a backend's pending write
	// queue.  A dirty element must not be released.
	FlagDirty
	// FlagNeedFree marks a dirty element that has been logically removed;
	// the backend releases it when the pending write drains.
	FlagNeedFree
	// FlagArray marks a value whose first machine word encodes the per-slot
	// size, enabling indexed get/set without reallocating the element.
	FlagArray
)

// MaxKeyLen bounds key length; keylen is carried as u16 on the wire.
const MaxKeyLen = 65535

// elementHeaderSize is the fixed wire header:
// age u64 + expire u32 + flags u32 + size u32 + keylen u16 + hash u32.
// Memory accounting charges this header per element.
const elementHeaderSize = 8 + 4 + 4 + 4 + 2 + 4

// Element is one stored (key, value, metadata) triple.  All fields are owned
// by the Storage; callers observe elements through accessors only.
type Element struct {
	buf    []byte // key bytes, NUL, value bytes - one allocation
	age    int64  // wall-clock seconds at insertion
	expire uint32 // TTL seconds; 0 means persistent
	flags  Flags
	size   uint32 // value length
	keylen uint16
	hash   uint32 // case-insensitive hash of the key

	hnext   *Element // hash index collision chain
	lruPrev *Element // expire queue links
	lruNext *Element
}

// newElement builds the single-allocation layout and stamps the metadata.
func newElement(key, value []byte, flags Flags, expire uint32, now int64) *Element {
	buf := make([]byte, len(key)+1+len(value))
	copy(buf, key)
	copy(buf[len(key)+1:], value)
	return &Element{
		buf:    buf,
		age:    now,
		expire: expire,
		flags:  flags,
		size:   uint32(len(value)),
		keylen: uint16(len(key)),
		hash:   CaseFoldHash(key),
	}
}

// Key returns the element's key bytes.  The slice aliases element storage
// and must not be modified.
func (e *Element) Key() []byte { return e.buf[:e.keylen] }

// Value returns the element's value bytes.  The slice aliases element
// storage; array elements are mutated through it in place.
func (e *Element) Value() []byte {
	off := int(e.keylen) + 1
	return e.buf[off : off+int(e.size)]
}

// Size returns the value length in bytes.
func (e *Element) Size() uint32 { return e.size }

// Age returns the insertion timestamp in wall-clock seconds.
func (e *Element) Age() int64 { return e.age }

// Expire returns the TTL in seconds; 0 means persistent.
func (e *Element) Expire() uint32 { return e.expire }

// Flags returns the current flag bitset.
func (e *Element) Flags() Flags { return e.flags }

// Hash returns the precomputed case-insensitive key hash.
func (e *Element) Hash() uint32 { return e.hash }

// Expired reports whether the element's TTL has lapsed at `now`.
// Persistent elements never expire.
func (e *Element) Expired(now int64) bool {
	if e.flags&FlagPersistent != 0 || e.expire == 0 {
		return false
	}
	return now-e.age > int64(e.expire)
}

// Cost is the accounting charge for this element:
// header + key + NUL + value.
func (e *Element) Cost() uint64 {
	return uint64(elementHeaderSize) + uint64(e.keylen) + 1 + uint64(e.size)
}

/*
   -------- Case-insensitive key hash --------
*/

// CaseFoldHash is a BKDR-style hash over the ASCII-lowercased key.  Index
// variants use it for bucketing; the radix index replaces it with the parsed
// IPv4 address.
func CaseFoldHash(key []byte) uint32 {
	var h uint32
	for _, c := range key {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		h = h*131 + uint32(c)
	}
	return h
}

// keysEqualFold compares two keys ignoring ASCII case.  Collision chains use
// it after the hash matched.
func keysEqualFold(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

/*
   -------- Host-native wire codec --------
*/

var errShortWire = errors.New("kvstorage: truncated element wire data")

// EncodeWire serialises the element for a durable backend.  The layout is
// the fixed header followed by key+NUL followed by the value, host-native
// byte order - the format is not portable across hosts.
func (e *Element) EncodeWire() []byte {
	out := make([]byte, elementHeaderSize+len(e.buf))
	binary.NativeEndian.PutUint64(out[0:], uint64(e.age))
	binary.NativeEndian.PutUint32(out[8:], e.expire)
	binary.NativeEndian.PutUint32(out[12:], uint32(e.flags))
	binary.NativeEndian.PutUint32(out[16:], e.size)
	binary.NativeEndian.PutUint16(out[20:], e.keylen)
	binary.NativeEndian.PutUint32(out[22:], e.hash)
	copy(out[elementHeaderSize:], e.buf)
	return out
}

// DecodeWire rebuilds a fresh element from backend bytes.  The returned
// element is independent of any index: the façade copies it into the cache
// and drops it.
func DecodeWire(data []byte) (*Element, error) {
	if len(data) < elementHeaderSize {
		return nil, errShortWire
	}
	keylen := binary.NativeEndian.Uint16(data[20:])
	size := binary.NativeEndian.Uint32(data[16:])
	want := elementHeaderSize + int(keylen) + 1 + int(size)
	if len(data) < want {
		return nil, errShortWire
	}
	e := &Element{
		age:    int64(binary.NativeEndian.Uint64(data[0:])),
		expire: binary.NativeEndian.Uint32(data[8:]),
		flags:  Flags(binary.NativeEndian.Uint32(data[12:])),
		size:   size,
		keylen: keylen,
		hash:   binary.NativeEndian.Uint32(data[22:]),
		buf:    make([]byte, int(keylen)+1+int(size)),
	}
	copy(e.buf, data[elementHeaderSize:want])
	return e, nil
}

/*
   -------- Array value layout --------
*/

// WordSize re-exports the machine word size used as the array slot-size
// prefix, so callers can size buffers without importing internal packages.
const WordSize = unsafex.WordSize

// arraySlotSize reads the per-slot size from the value prefix.  Only valid
// for FlagArray elements.
func (e *Element) arraySlotSize() uint {
	return uint(unsafex.LoadWord(e.Value()))
}

// arraySlotCount derives the number of slots from value size and slot size.
func (e *Element) arraySlotCount() uint {
	slot := e.arraySlotSize()
	if slot == 0 {
		return 0
	}
	return (uint(e.size) - uint(WordSize)) / slot
}

// arraySlot returns the in-place view of slot i.  Bounds are the caller's
// responsibility.
func (e *Element) arraySlot(i uint) []byte {
	slot := e.arraySlotSize()
	off := uint(WordSize) + i*slot
	return e.Value()[off : off+slot]
}
