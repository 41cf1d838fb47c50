package kvstorage

// badger.go implements the embedded durable backend over BadgerDB.  Writes
// are queued and committed by a drain goroutine; reads run synchronously in
// a view transaction and rebuild a fresh element from the wire blob.
//
// A failed commit is logged and the element is completed anyway: the store
// is best-effort by contract, and leaving the dirty flag set forever would
// pin a NeedFree element for good.
//
// © 2025 kvstorage authors. MIT License.

import (
	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
)

// BadgerBackend persists elements to an embedded Badger database.
type BadgerBackend struct {
	db     *badger.DB
	s      *Storage
	logger *zap.Logger

	queue  chan writeOp
	done   chan struct{}
	closed bool
}

// NewBadgerBackend opens (or creates) a Badger database under dir.
func NewBadgerBackend(dir string, logger *zap.Logger) (*BadgerBackend, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BadgerBackend{
		db:     db,
		logger: logger,
		queue:  make(chan writeOp, backendQueueLen),
		done:   make(chan struct{}),
	}, nil
}

// Init binds the backend to its storage and starts the drain goroutine.
func (b *BadgerBackend) Init(s *Storage) error {
	b.s = s
	go b.drain()
	return nil
}

func (b *BadgerBackend) drain() {
	defer close(b.done)
	for op := range b.queue {
		var err error
		if op.del {
			err = b.db.Update(func(txn *badger.Txn) error {
				return txn.Delete(op.key)
			})
		} else {
			err = b.db.Update(func(txn *badger.Txn) error {
				return txn.Set(op.key, op.data)
			})
		}
		if err != nil {
			b.logger.Warn("badger write failed",
				zap.Error(err), zap.ByteString("key", op.key))
		}
		if op.elt != nil {
			b.s.CompleteWrite(op.elt)
		}
	}
}

// enqueue marks elt dirty (when present) and hands the operation to the
// drain goroutine.  Runs under the storage lock.
func (b *BadgerBackend) enqueue(op writeOp) bool {
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
		// Queue full: refuse, leave the element clean.
		if op.elt != nil {
			op.elt.flags &^= FlagDirty
		}
		return false
	}
}

// Insert queues a durable write for elt.
func (b *BadgerBackend) Insert(key []byte, elt *Element) bool {
	return b.enqueue(writeOp{key: foldKey(key), data: elt.EncodeWire(), elt: elt})
}

// Replace queues a durable overwrite.
func (b *BadgerBackend) Replace(key []byte, elt *Element) bool {
	return b.Insert(key, elt)
}

// Lookup fetches and decodes a fresh element for key, or nil.
func (b *BadgerBackend) Lookup(key []byte) *Element {
	var elt *Element
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(foldKey(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := DecodeWire(val)
			if err != nil {
				return err
			}
			elt = decoded
			return nil
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			b.logger.Warn("badger read failed",
				zap.Error(err), zap.ByteString("key", key))
		}
		return nil
	}
	return elt
}

// Delete queues durable removal of key.
func (b *BadgerBackend) Delete(key []byte) bool {
	return b.enqueue(writeOp{del: true, key: foldKey(key)})
}

// Destroy flushes the queue and closes the database.
func (b *BadgerBackend) Destroy() {
	if b.closed {
		return
	}
	b.closed = true
	close(b.queue)
	<-b.done
	if err := b.db.Close(); err != nil {
		b.logger.Warn("badger close failed", zap.Error(err))
	}
}
