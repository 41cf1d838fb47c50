package kvstorage

// redis.go implements the network durable backend over Redis.  The queue
// discipline is identical to the Badger backend; every drained operation
// runs with its own timeout so a stalled server cannot wedge the drain
// goroutine.
//
// Values are the same host-native wire blobs the embedded backend stores:
// the spill tier is host-local by contract, Redis just moves it out of
// process.
//
// © 2025 kvstorage authors. MIT License.

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/filtermesh/kvstorage/internal/unsafex"
)

// defaultRedisTimeout bounds every drained Redis operation.
const defaultRedisTimeout = time.Second

// RedisBackend persists elements to a Redis server.
type RedisBackend struct {
	client  *redis.Client
	s       *Storage
	logger  *zap.Logger
	timeout time.Duration

	queue  chan writeOp
	done   chan struct{}
	closed bool
}

// NewRedisBackend wraps an existing client.  The client stays owned by the
// caller except for Close, which Destroy performs.
func NewRedisBackend(client *redis.Client, logger *zap.Logger) *RedisBackend {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisBackend{
		client:  client,
		logger:  logger,
		timeout: defaultRedisTimeout,
		queue:   make(chan writeOp, backendQueueLen),
		done:    make(chan struct{}),
	}
}

// Init binds the backend to its storage and starts the drain goroutine.
func (b *RedisBackend) Init(s *Storage) error {
	b.s = s
	go b.drain()
	return nil
}

func (b *RedisBackend) drain() {
	defer close(b.done)
	for op := range b.queue {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		var err error
		// op.key is the backend's private folded copy, safe to view as a
		// string without another allocation.
		if op.del {
			err = b.client.Del(ctx, unsafex.BytesToString(op.key)).Err()
		} else {
			// TTL is enforced in memory; the durable copy carries it in the
			// wire header, so no Redis-side expiry is set.
			err = b.client.Set(ctx, unsafex.BytesToString(op.key), op.data, 0).Err()
		}
		cancel()
		if err != nil {
			b.logger.Warn("redis write failed",
				zap.Error(err), zap.ByteString("key", op.key))
		}
		if op.elt != nil {
			b.s.CompleteWrite(op.elt)
		}
	}
}

func (b *RedisBackend) enqueue(op writeOp) bool {
	if b.closed {
		return false
	}
	if op.elt != nil {
		op.elt.flags |= FlagDirty
	}
	select {
	case b.queue <- op:
		return true
	default:
		if op.elt != nil {
			op.elt.flags &^= FlagDirty
		}
		return false
	}
}

// Insert queues a durable write for elt.
func (b *RedisBackend) Insert(key []byte, elt *Element) bool {
	return b.enqueue(writeOp{key: foldKey(key), data: elt.EncodeWire(), elt: elt})
}

// Replace queues a durable overwrite.
func (b *RedisBackend) Replace(key []byte, elt *Element) bool {
	return b.Insert(key, elt)
}

// Lookup fetches and decodes a fresh element for key, or nil.
func (b *RedisBackend) Lookup(key []byte) *Element {
	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	data, err := b.client.Get(ctx, unsafex.BytesToString(foldKey(key))).Bytes()
	if err != nil {
		if err != redis.Nil {
			b.logger.Warn("redis read failed",
				zap.Error(err), zap.ByteString("key", key))
		}
		return nil
	}
	elt, err := DecodeWire(data)
	if err != nil {
		b.logger.Warn("redis value corrupt",
			zap.Error(err), zap.ByteString("key", key))
		return nil
	}
	return elt
}

// Delete queues durable removal of key.
func (b *RedisBackend) Delete(key []byte) bool {
	return b.enqueue(writeOp{del: true, key: foldKey(key)})
}

// Destroy flushes the queue and closes the client.
func (b *RedisBackend) Destroy() {
	if b.closed {
		return
	}
	b.closed = true
	close(b.queue)
	<-b.done
	if err := b.client.Close(); err != nil {
		b.logger.Warn("redis close failed", zap.Error(err))
	}
}
