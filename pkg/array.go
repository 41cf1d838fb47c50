package kvstorage

// array.go implements the ARRAY value family: elements whose value is a
// machine-word slot-size prefix followed by fixed-size slots.  Slots are
// read and written in place through the element's own buffer, so indexed
// mutation is O(1) and never reallocates the element.
//
// © 2025 kvstorage authors. MIT License.

import (
	"time"

	"github.com/filtermesh/kvstorage/internal/unsafex"
)

// InsertArray installs an element whose value holds slotSize (one machine
// word, host-native) followed by the raw bytes of data.  data must be a
// whole number of slots.  The element carries FlagArray in addition to the
// caller's flags.
func (s *Storage) InsertArray(key []byte, slotSize uint, data []byte, flags Flags, ttl uint32) bool {
	if slotSize == 0 || uint(len(data))%slotSize != 0 {
		return false
	}

	val := make([]byte, WordSize+len(data))
	unsafex.StoreWord(val, uintptr(slotSize))
	copy(val[WordSize:], data)

	now := time.Now().Unix()
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.insertLocked(key, val, flags|FlagArray, ttl, now, true)
	return ok
}

// SetArray overwrites slot index of the array stored under key, in place.
// Fails when the key is absent or TTL-expired, the element is not an array,
// the index is out of range, or data is not exactly one slot.
func (s *Storage) SetArray(key []byte, index uint, data []byte, now int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return false
	}

	elt, ok := s.arraySlotLocked(key, index, now)
	if !ok {
		return false
	}
	if uint(len(data)) != elt.arraySlotSize() {
		return false
	}
	copy(elt.arraySlot(index), data)
	return true
}

// GetArray returns the bytes of slot index of the array stored under key.
// The returned slice aliases element storage and must be treated read-only;
// it stays valid until the element is replaced or deleted.
func (s *Storage) GetArray(key []byte, index uint, now int64) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.destroyed {
		return nil, false
	}

	elt, ok := s.arraySlotLocked(key, index, now)
	if !ok {
		return nil, false
	}
	return elt.arraySlot(index), true
}

// arraySlotLocked validates the common preconditions of the slot
// operations.  Caller holds the lock in the required mode.
func (s *Storage) arraySlotLocked(key []byte, index uint, now int64) (*Element, bool) {
	elt := s.cache.Lookup(key)
	if elt == nil || elt.Expired(now) {
		return nil, false
	}
	if elt.flags&FlagArray == 0 {
		return nil, false
	}
	if uint(elt.size) < uint(WordSize) {
		return nil, false
	}
	if index >= elt.arraySlotCount() {
		return nil, false
	}
	return elt, true
}
