package kvstorage

// config.go defines the internal configuration object and the set of
// functional options that can be passed to New.  Options never allocate
// unless strictly necessary - they just capture pointers to external objects
// (registry, logger, strategies ...).
//
// Design notes
// ------------
// • All fields are initialised with sensible defaults in defaultConfig().
// • The struct is hidden from the public API: users can only influence
//   behaviour via Option.  This guarantees forward compatibility.
// • Caps of 0 mean "unlimited"; they are valid and skip the eviction gate.
//
// © 2025 kvstorage authors. MIT License.

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option is the functional option passed to New.
type Option func(*config)

// config bundles every knob that influences storage behaviour.  All fields
// are immutable once the Storage is constructed.
type config struct {
	name      string
	maxElts   uint64
	maxMemory uint64

	expire  Expire
	backend Backend

	registry        *prometheus.Registry
	logger          *zap.Logger
	janitorInterval time.Duration
}

func defaultConfig(id int) *config {
	return &config{
		name:   strconv.Itoa(id),
		logger: zap.NewNop(),
		// registry stays nil - user must opt in to metrics.
	}
}

/*
   ---------------- Functional options exposed to users ----------------
*/

// WithName sets the printable storage name used in logs and metric labels.
// The default is the decimal storage id.
func WithName(name string) Option {
	return func(c *config) {
		if name != "" {
			c.name = name
		}
	}
}

// WithMaxElements caps the element count.  0 means unlimited.
func WithMaxElements(n uint64) Option {
	return func(c *config) { c.maxElts = n }
}

// WithMaxMemory caps the accounted bytes (element headers + keys + values).
// 0 means unlimited.
func WithMaxMemory(n uint64) Option {
	return func(c *config) { c.maxMemory = n }
}

// WithExpire plugs an eviction strategy.  Without one the storage never
// evicts and over-cap inserts fail at once.
func WithExpire(e Expire) Option {
	return func(c *config) { c.expire = e }
}

// WithBackend plugs a durable store fed write-behind.
func WithBackend(b Backend) Option {
	return func(c *config) { c.backend = b }
}

// WithLogger plugs an external zap.Logger.  The storage never logs on the
// hot path; only slow events (forced evictions, backend errors, destroy)
// are emitted.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection for this storage.
// Passing nil disables metrics (default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithJanitor enables active expiration: every interval a background
// goroutine drops the run of expired elements at the head of the expire
// queue, so idle storages shed expired elements without waiting for insert
// pressure.  Live elements are never evicted by it.
func WithJanitor(interval time.Duration) Option {
	return func(c *config) { c.janitorInterval = interval }
}

/*
   ---------------- Helper: apply options & validate ----------------
*/

func applyOptions(cfg *config, opts []Option) error {
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.janitorInterval < 0 {
		return errInvalidJanitor
	}
	if cfg.janitorInterval > 0 && cfg.expire == nil {
		return errJanitorNoExpire
	}
	return nil
}

/*
   ---------------- Error values ----------------
*/

var (
	errNilCache        = errors.New("kvstorage: cache strategy is required")
	errInvalidJanitor  = errors.New("kvstorage: janitor interval must be >= 0")
	errJanitorNoExpire = errors.New("kvstorage: janitor requires an expire strategy")
)
