package kvstorage

// loader.go implements the *singleflight*-based de-duplication layer used by
// Storage.LookupOrLoad(...).  The goal is to prevent a thundering-herd when
// many goroutines request the same missing key simultaneously: only one
// loader function executes, the rest wait for its result.
//
// We wrap x/sync/singleflight so that:
//   • the flight key is the element hash already computed for the index,
//     rendered as hex - cheap and collision-tolerant (a caller whose key
//     only shares the hash with the flight's key waits for that flight and
//     then loads its own key);
//   • the loaded value is installed through the internal insert path, which
//     runs the eviction gate and expire insertion but skips the backend
//     write - a freshly loaded value has nothing to persist yet.
//
// © 2025 kvstorage authors. MIT License.

import (
	"context"
	"errors"
	"strconv"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoaderFunc produces a value (and its TTL in seconds, 0 for persistent)
// when LookupOrLoad misses.  It must not re-enter the Storage it serves.
// The same LoaderFunc may be invoked concurrently for different keys and
// must be thread-safe.
type LoaderFunc func(ctx context.Context, key []byte) (value []byte, ttl uint32, err error)

var errLoadInstall = errors.New("kvstorage: loaded value rejected by storage")

type loaderGroup struct {
	g singleflight.Group
}

func newLoaderGroup() *loaderGroup { return &loaderGroup{} }

// LookupOrLoad returns the element stored under key, loading and installing
// it on a miss.  Concurrent misses for the same key share one loader call.
func (s *Storage) LookupOrLoad(ctx context.Context, key []byte, loader LoaderFunc) (*Element, error) {
	if elt := s.Lookup(key, time.Now().Unix()); elt != nil {
		return elt, nil
	}

	load := func() (*Element, error) {
		// Re-probe inside the flight: a racing loader may have installed
		// the key while this goroutine queued up.
		if elt := s.Lookup(key, time.Now().Unix()); elt != nil {
			return elt, nil
		}
		value, ttl, err := loader(ctx, key)
		if err != nil {
			return nil, err
		}
		elt, ok := s.InsertInternal(key, value, 0, ttl)
		if !ok {
			return nil, errLoadInstall
		}
		return elt, nil
	}

	type flight struct {
		key []byte
		elt *Element
		err error
	}
	k := strconv.FormatUint(uint64(CaseFoldHash(key)), 16)
	res, _, _ := s.loader.g.Do(k, func() (any, error) {
		elt, err := load()
		return flight{key: key, elt: elt, err: err}, nil
	})
	f := res.(flight)
	if !keysEqualFold(f.key, key) {
		// A different key with the same hash led the flight.
		f.elt, f.err = load()
	}
	if f.err != nil {
		return nil, f.err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return f.elt, nil
}
