// Package unsafex centralises **all** unavoidable usage of the `unsafe`
// standard-library package so that the rest of kvstorage stays clean and
// easier to audit.  Every helper is documented with clear pre-/post-
// conditions.
//
// ⚠️  **DISCLAIMER**   These helpers deliberately break the Go memory-safety
// model for the sake of zero-allocation conversions.  Use ONLY inside this
// repository; they are not part of the public API and may change without
// notice.  Misuse will lead to subtle data-races or garbage-collector
// corruption.
//
// All functions are `go:linkname`-free, cgo-free and pure Go (1.21+).
//
// © 2025 kvstorage authors. MIT License.

package unsafex

import "unsafe"

// WordSize is the machine word in bytes.  Array-valued elements store their
// per-slot size in the first word of the value, host-native.
const WordSize = int(unsafe.Sizeof(uintptr(0)))

/* -------------------------------------------------------------------------
   1. Zero-copy string/[]byte conversions
   ------------------------------------------------------------------------- */

// BytesToString converts a mutable byte slice to an immutable string without
// allocating.  The caller must guarantee that `b` will never be modified for
// the lifetime of the resulting string; otherwise the program exhibits
// undefined behaviour.
//
// Typical use-case inside kvstorage: handing a backend's private key copy to
// a client API that wants a string, without duplicating it again.
//
// DO NOT expose the returned string outside controlled scopes.
func BytesToString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(&b[0], len(b))
}

// StringToBytes re-interprets string data as a byte slice using unsafe.Pointer.
// The slice MUST remain read-only; writing to it will mutate immutable string
// storage and crash in future versions of Go.
func StringToBytes(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

/* -------------------------------------------------------------------------
   2. Machine-word load/store
   ------------------------------------------------------------------------- */

// LoadWord reads a host-native machine word from the first WordSize bytes of
// b.  Caller must ensure len(b) >= WordSize.
func LoadWord(b []byte) uintptr {
	return *(*uintptr)(unsafe.Pointer(&b[0]))
}

// StoreWord writes a host-native machine word into the first WordSize bytes
// of b.  Caller must ensure len(b) >= WordSize.
func StoreWord(b []byte, w uintptr) {
	*(*uintptr)(unsafe.Pointer(&b[0])) = w
}

/* -------------------------------------------------------------------------
   3. Alignment helpers
   ------------------------------------------------------------------------- */

// AlignUp rounds x up to the nearest multiple of align (which must be a power
// of two).  Fast bit-twiddling alternative to math.Ceil for sizes.
func AlignUp(x, align uintptr) uintptr {
	return (x + align - 1) &^ (align - 1)
}

// IsPowerOfTwo returns true if x is a power of two (exactly one bit set).
func IsPowerOfTwo(x uintptr) bool {
	return x != 0 && (x&(x-1)) == 0
}
