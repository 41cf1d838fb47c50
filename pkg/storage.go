package kvstorage

// storage.go implements the Storage façade: a bounded cache sequencing one
// index strategy, an optional eviction strategy and an optional durable
// backend, while keeping element and byte accounting inside configured caps.
//
// Within one exclusive critical section the fan-out order is fixed:
//
//	expire delete of old → cache steal/insert → backend notify →
//	expire insert of new → accounting
//
// so the expire queue never holds a pointer to a retired element and a
// failure between steps leaves the caps respected.
//
// Locking discipline
// ------------------
// One reader/writer lock per Storage.  Lookups and array reads probe the
// index under the read lock; every mutation - including the backend hoist
// fired by a lookup miss - takes the write lock.  Strategy variants carry no
// locks of their own.  The backend drain goroutine re-enters only through
// CompleteWrite, which takes the lock itself.
//
// © 2025 kvstorage authors. MIT License.

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// MaxExpireSteps bounds the eviction loop run before an insertion: exceeding
// it means the caller observes a failed insert rather than an unbounded
// eviction storm.
const MaxExpireSteps = 10

// Storage is a bounded key-value store with pluggable index, eviction and
// persistence strategies.  Zero caps mean unlimited.
type Storage struct {
	mu sync.RWMutex

	id   int
	name string

	cache   Cache
	expire  Expire
	backend Backend

	maxElts   uint64
	maxMemory uint64

	elts   uint64 // elements reachable through the cache
	memory uint64 // accounted bytes, incl. dirty elements retained for the backend

	// retained holds dirty elements that were stolen from the cache and wait
	// for the backend to drain their write.  It pins them and keeps the
	// NeedFree window observable.
	retained map[*Element]struct{}

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64

	logger  *zap.Logger
	metrics metricsSink
	loader  *loaderGroup
	jan     *janitor

	destroyed bool
}

// New constructs a Storage over the given index strategy.  The index is
// required; eviction and persistence are wired through options.
func New(id int, cache Cache, opts ...Option) (*Storage, error) {
	if cache == nil {
		return nil, errNilCache
	}
	cfg := defaultConfig(id)
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}

	s := &Storage{
		id:        id,
		name:      cfg.name,
		cache:     cache,
		expire:    cfg.expire,
		backend:   cfg.backend,
		maxElts:   cfg.maxElts,
		maxMemory: cfg.maxMemory,
		retained:  make(map[*Element]struct{}),
		logger:    cfg.logger,
		metrics:   newMetricsSink(cfg.name, cfg.registry),
		loader:    newLoaderGroup(),
	}

	if s.expire != nil {
		s.expire.Init(s)
	}
	if s.backend != nil {
		if err := s.backend.Init(s); err != nil {
			return nil, err
		}
	}
	if cfg.janitorInterval > 0 {
		s.jan = startJanitor(s, cfg.janitorInterval)
	}
	return s, nil
}

// ID returns the numeric storage id.
func (s *Storage) ID() int { return s.id }

// Name returns the printable storage name.
func (s *Storage) Name() string { return s.name }

/*
   ---------------- Insert family ----------------
*/

// Insert installs or replaces the value stored under key.  On success the
// new value is the unique entry for key across cache, expire and backend; on
// a capacity failure nothing has changed.  A ttl of 0 makes the element
// persistent.  A false return with the backend wired may also mean the
// durable write was refused after the in-memory state was updated.
func (s *Storage) Insert(key, value []byte, flags Flags, ttl uint32) bool {
	now := time.Now().Unix()

	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.insertLocked(key, value, flags, ttl, now, true)
	return ok
}

// InsertInternal installs key/value without notifying the backend.  It is
// the path used when a value is hoisted from the backend into the cache:
// expire insertion and accounting still run.  Returns the installed element.
func (s *Storage) InsertInternal(key, value []byte, flags Flags, ttl uint32) (*Element, bool) {
	now := time.Now().Unix()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(key, value, flags, ttl, now, false)
}

// insertLocked is the shared insert path.  Caller holds the write lock.
func (s *Storage) insertLocked(key, value []byte, flags Flags, ttl uint32, now int64, notifyBackend bool) (*Element, bool) {
	if s.destroyed || len(key) == 0 || len(key) > MaxKeyLen {
		return nil, false
	}

	cost := uint64(elementHeaderSize) + uint64(len(key)) + 1 + uint64(len(value))
	if s.maxMemory > 0 && cost > s.maxMemory {
		return nil, false
	}
	if !s.makeRoomLocked(cost, now) {
		return nil, false
	}

	// Pre-existing key: forget it in the expire queue, steal it from the
	// index and retire it under the dirty rule before the fresh install.
	// The new element may differ in size, flags or backend state, so the
	// two-step dance is mandatory.
	if old := s.cache.Lookup(key); old != nil {
		if s.expire != nil {
			s.expire.Delete(old)
		}
		s.cache.Steal(old)
		s.elts--
		s.retireLocked(old)
	}

	if ttl == 0 {
		flags |= FlagPersistent
	}
	elt := s.cache.Insert(key, value, flags, ttl, now)
	if elt == nil {
		// Index variant rejected the key (e.g. unparseable address).
		s.publishLocked()
		return nil, false
	}

	ok := true
	if notifyBackend && s.backend != nil {
		ok = s.backend.Insert(key, elt)
		if !ok {
			s.logger.Warn("backend refused insert",
				zap.String("storage", s.name),
				zap.ByteString("key", key))
		}
	}
	if s.expire != nil {
		s.expire.Insert(elt)
	}

	s.elts++
	s.memory += elt.Cost()
	s.metrics.incInsert()
	s.publishLocked()
	return elt, ok
}

// Replace swaps the element stored under key for elt.  Fails when key is
// absent; the storage is unchanged then.
func (s *Storage) Replace(key []byte, elt *Element) bool {
	if elt == nil {
		return false
	}
	now := time.Now().Unix()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return false
	}

	old := s.cache.Lookup(key)
	if old == nil {
		return false
	}
	if !s.makeRoomLocked(elt.Cost(), now) {
		return false
	}

	if s.expire != nil {
		s.expire.Delete(old)
	}
	if _, ok := s.cache.Replace(key, elt); !ok {
		return false
	}
	s.retireLocked(old)

	ok := true
	if s.backend != nil {
		ok = s.backend.Replace(key, elt)
	}
	if s.expire != nil {
		s.expire.Insert(elt)
	}

	s.memory += elt.Cost()
	s.publishLocked()
	return ok
}

/*
   ---------------- Lookup ----------------
*/

// Lookup returns the element stored under key at time now.  An element whose
// TTL has lapsed is reported absent without being deleted.  On an index miss
// the backend is consulted and a hit is hoisted into the cache.
func (s *Storage) Lookup(key []byte, now int64) *Element {
	s.mu.RLock()
	elt := s.cache.Lookup(key)
	if elt != nil {
		expired := elt.Expired(now)
		s.mu.RUnlock()
		if expired {
			s.misses.Add(1)
			s.metrics.incMiss()
			return nil
		}
		s.hits.Add(1)
		s.metrics.incHit()
		return elt
	}
	s.mu.RUnlock()

	if s.backend == nil {
		s.misses.Add(1)
		s.metrics.incMiss()
		return nil
	}
	return s.hoist(key, now)
}

// hoist promotes a backend hit into the cache under the write lock.
func (s *Storage) hoist(key []byte, now int64) *Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}

	// Re-probe: another goroutine may have hoisted between the locks.
	if elt := s.cache.Lookup(key); elt != nil {
		if elt.Expired(now) {
			s.misses.Add(1)
			s.metrics.incMiss()
			return nil
		}
		s.hits.Add(1)
		s.metrics.incHit()
		return elt
	}

	fetched := s.backend.Lookup(key)
	if fetched == nil || fetched.Expired(now) {
		s.misses.Add(1)
		s.metrics.incMiss()
		return nil
	}

	elt, ok := s.insertLocked(key, fetched.Value(), fetched.Flags()&^(FlagDirty|FlagNeedFree),
		fetched.Expire(), now, false)
	if !ok {
		s.misses.Add(1)
		s.metrics.incMiss()
		return nil
	}
	// Keep the original insertion time so the TTL window is unchanged by the
	// hoist.  The fetched copy is dropped; it was never dirty in this
	// storage's queues.
	elt.age = fetched.age
	s.hits.Add(1)
	s.metrics.incHit()
	return elt
}

/*
   ---------------- Delete ----------------
*/

// Delete removes key from the cache and the backend, forgets it in the
// expire queue and returns the detached element so the caller can inspect
// its value.  Returns nil when key is absent.
func (s *Storage) Delete(key []byte) *Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}

	elt := s.cache.Delete(key)
	if elt == nil {
		return nil
	}
	if s.expire != nil {
		s.expire.Delete(elt)
	}
	if s.backend != nil {
		s.backend.Delete(key)
	}

	s.elts--
	s.retireLocked(elt)
	s.metrics.incDelete()
	s.publishLocked()
	return elt
}

/*
   ---------------- Destroy ----------------
*/

// Destroy tears down the strategies in order cache → backend → expire and
// marks the storage unusable.  The janitor, if any, is stopped first since
// it takes the storage lock.  The backend is flushed outside the lock: its
// drain goroutine reports completions through CompleteWrite, which needs the
// lock itself.
func (s *Storage) Destroy() {
	if s.jan != nil {
		s.jan.stop()
	}

	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	backend := s.backend
	s.backend = nil
	s.cache.Destroy()
	s.mu.Unlock()

	if backend != nil {
		backend.Destroy()
	}

	s.mu.Lock()
	if s.expire != nil {
		s.expire.Destroy()
	}
	s.retained = nil
	s.elts = 0
	s.memory = 0
	s.mu.Unlock()
	s.logger.Info("storage destroyed", zap.String("storage", s.name))
}

/*
   ---------------- Eviction gate ----------------
*/

// makeRoomLocked runs the eviction loop until the caps admit cost more
// bytes and one more element.  Non-forced steps are tried first; a step
// that reports no progress is immediately retried forced, so a storage full
// of persistent elements still admits inserts by evicting the LRU head.
// The loop gives up after MaxExpireSteps iterations.
func (s *Storage) makeRoomLocked(cost uint64, now int64) bool {
	if s.maxMemory == 0 && s.maxElts == 0 {
		return true
	}
	steps := 0
	for s.overCapLocked(cost) {
		if s.expire == nil || steps >= MaxExpireSteps {
			return false
		}
		steps++
		if !s.expire.Step(now, false) {
			if !s.expire.Step(now, true) {
				return false
			}
			s.logger.Debug("forced eviction step",
				zap.String("storage", s.name))
		}
	}
	return true
}

func (s *Storage) overCapLocked(cost uint64) bool {
	if s.maxMemory > 0 && s.memory+cost > s.maxMemory {
		return true
	}
	if s.maxElts > 0 && s.elts >= s.maxElts {
		return true
	}
	return false
}

// evictLocked is called by the expire strategy for each victim it unlinks
// from its own queue.  The element leaves the index here; retirement follows
// the dirty rule.
func (s *Storage) evictLocked(elt *Element) {
	s.cache.Steal(elt)
	s.elts--
	s.retireLocked(elt)
	s.evictions.Add(1)
	s.metrics.incEvict()
	s.publishLocked()
}

// retireLocked releases an element that left the index.  A dirty element is
// pinned with NeedFree until the backend drains its write; a clean one gives
// its bytes back immediately.
func (s *Storage) retireLocked(elt *Element) {
	if elt.flags&FlagDirty != 0 {
		elt.flags |= FlagNeedFree
		s.retained[elt] = struct{}{}
		return
	}
	s.memory -= elt.Cost()
}

/*
   ---------------- Backend completion ----------------
*/

// CompleteWrite is invoked by a backend once the durable write for elt has
// drained.  It clears the dirty flag and, when the element was logically
// removed in the meantime (NeedFree), releases its bytes.
func (s *Storage) CompleteWrite(elt *Element) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return
	}

	elt.flags &^= FlagDirty
	if elt.flags&FlagNeedFree != 0 {
		elt.flags &^= FlagNeedFree
		delete(s.retained, elt)
		s.memory -= elt.Cost()
		s.publishLocked()
	}
}

/*
   ---------------- Accounting & stats ----------------
*/

// Elts returns the number of elements reachable through the cache.
func (s *Storage) Elts() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.elts
}

// Memory returns the accounted bytes, including dirty elements retained for
// the backend.
func (s *Storage) Memory() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memory
}

// Stats is a point-in-time snapshot of the storage counters.
type Stats struct {
	Name      string `json:"name"`
	Elts      uint64 `json:"elements"`
	Memory    uint64 `json:"memory_bytes"`
	Hits      uint64 `json:"hits_total"`
	Misses    uint64 `json:"misses_total"`
	Evictions uint64 `json:"evictions_total"`
}

// Snapshot returns the current stats.
func (s *Storage) Snapshot() Stats {
	s.mu.RLock()
	elts, memory := s.elts, s.memory
	s.mu.RUnlock()
	return Stats{
		Name:      s.name,
		Elts:      elts,
		Memory:    memory,
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Evictions: s.evictions.Load(),
	}
}

// publishLocked pushes the accounting gauges to the metrics sink.
func (s *Storage) publishLocked() {
	s.metrics.setElements(s.elts)
	s.metrics.setMemory(s.memory)
}
