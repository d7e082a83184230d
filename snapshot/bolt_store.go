/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/acronis/go-botkit/config"
	"github.com/acronis/go-botkit/log"
)

const boltBucket = "snapshots"

// Default values for BoltStoreOpts.
const (
	DefaultBoltFlushPeriod = 50 * time.Millisecond
	DefaultBoltQueueSize   = 1024
)

// BoltStoreOpts represents options for creating a BoltStore.
type BoltStoreOpts struct {
	// MaxEntrySize limits the payload size of a single snapshot. 0 means no limit.
	MaxEntrySize config.ByteSize

	// FlushPeriod is how often queued writes are committed in one batch.
	FlushPeriod time.Duration

	// QueueSize bounds the write queue. When the queue is full, the oldest
	// queued write is dropped rather than blocking the caller.
	QueueSize int

	// Logger is used for reporting background write failures. No logging by default.
	Logger log.FieldLogger
}

// BoltStore keeps all snapshots in a single bbolt database.
//
// Writes are queued and committed in batches by a background writer, so Save
// and Delete never wait for the disk. A queued write becomes visible to Load
// after the next batch flush; Sync forces one. Close drains the queue and
// flushes before closing the database.
type BoltStore struct {
	db           *bolt.DB
	path         string
	maxEntrySize config.ByteSize
	flushPeriod  time.Duration
	logger       log.FieldLogger

	ops    chan boltOp
	syncCh chan chan error
	done   chan struct{}
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var _ Store = (*BoltStore)(nil)
var _ Syncer = (*BoltStore)(nil)

// boltOp is a single queued write: either an envelope to put or a deletion.
type boltOp struct {
	key string
	del bool
	env []byte
}

// NewBoltStore opens or creates a bbolt-backed store at path and starts the
// background writer.
func NewBoltStore(path string) (*BoltStore, error) {
	return NewBoltStoreWithOpts(path, BoltStoreOpts{})
}

// NewBoltStoreWithOpts opens or creates a bbolt-backed store with the provided options.
func NewBoltStoreWithOpts(path string, opts BoltStoreOpts) (*BoltStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("bolt database path is required")
	}
	if opts.FlushPeriod <= 0 {
		opts.FlushPeriod = DefaultBoltFlushPeriod
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultBoltQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = log.NewDisabledLogger()
	}

	path = filepath.Clean(path)
	// Timeout keeps Open from blocking forever when another process holds the file lock.
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}
	if err = db.Update(func(tx *bolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists([]byte(boltBucket))
		return e
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshots bucket: %w", err)
	}

	s := &BoltStore{
		db:           db,
		path:         path,
		maxEntrySize: opts.MaxEntrySize,
		flushPeriod:  opts.FlushPeriod,
		logger:       opts.Logger,
		ops:          make(chan boltOp, opts.QueueSize),
		syncCh:       make(chan chan error),
		done:         make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writer()
	return s, nil
}

// Save queues the payload for writing. It returns an error only for invalid
// input or a closed store, background write failures are logged.
func (s *BoltStore) Save(key string, data []byte, fetchedAt time.Time) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if s.maxEntrySize > 0 && config.ByteSize(len(data)) > s.maxEntrySize {
		return fmt.Errorf("%w: %d bytes, limit is %s", ErrTooLarge, len(data), s.maxEntrySize)
	}
	env, err := marshalEnvelope(data, fetchedAt)
	if err != nil {
		return err
	}
	return s.enqueue(boltOp{key: key, env: env})
}

// Load returns the stored payload and its fetch time. Queued writes that have
// not been flushed yet are not visible.
func (s *BoltStore) Load(key string) ([]byte, time.Time, error) {
	if err := validateKey(key); err != nil {
		return nil, time.Time{}, err
	}
	var data []byte
	var fetchedAt time.Time
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return fmt.Errorf("bucket %q is missing", boltBucket)
		}
		v := b.Get([]byte(key))
		if v == nil {
			return ErrNotFound
		}
		var envErr error
		data, fetchedAt, envErr = unmarshalEnvelope(v)
		return envErr
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	return data, fetchedAt, nil
}

// Delete queues the removal of the snapshot for the key.
func (s *BoltStore) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return s.enqueue(boltOp{key: key, del: true})
}

// Keys returns the keys of all flushed snapshots.
func (s *BoltStore) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return fmt.Errorf("bucket %q is missing", boltBucket)
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Status reports the number of flushed snapshots and the database file size.
func (s *BoltStore) Status() (Status, error) {
	var st Status
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return fmt.Errorf("bucket %q is missing", boltBucket)
		}
		st.Entries = b.Stats().KeyN
		return nil
	})
	if err != nil {
		return Status{}, err
	}
	if info, statErr := os.Stat(s.path); statErr == nil {
		st.SizeBytes = info.Size()
	}
	return st, nil
}

// Sync drains the write queue and commits it, blocking until done.
func (s *BoltStore) Sync() error {
	req := make(chan error, 1)
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	s.syncCh <- req
	s.mu.RUnlock()
	return <-req
}

// Close drains and flushes the write queue and closes the database.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}

func (s *BoltStore) enqueue(op boltOp) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	select {
	case s.ops <- op:
		return nil
	default:
	}
	// The queue is full: make room by dropping the oldest queued op,
	// the latest state per key is what matters.
	select {
	case dropped := <-s.ops:
		s.logger.Warn("snapshot write queue overflow, dropped oldest op", log.String("key", dropped.key))
	default:
	}
	select {
	case s.ops <- op:
	default:
		s.logger.Warn("snapshot write queue is full, dropped op", log.String("key", op.key))
	}
	return nil
}

// writer drains the queue, dedupes by key so the latest op wins, and commits
// batches in a single bolt transaction.
func (s *BoltStore) writer() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushPeriod)
	defer ticker.Stop()
	pending := make(map[string]boltOp)

	for {
		select {
		case <-s.done:
			s.drain(pending)
			if err := s.flush(pending); err != nil {
				s.logger.Error("flush snapshots on close", log.Error(err))
			}
			return
		case op := <-s.ops:
			pending[op.key] = op
		case req := <-s.syncCh:
			s.drain(pending)
			req <- s.flush(pending)
		case <-ticker.C:
			if err := s.flush(pending); err != nil {
				// Keep pending ops, the next tick retries the batch.
				s.logger.Error("flush snapshots", log.Error(err))
			}
		}
	}
}

func (s *BoltStore) drain(pending map[string]boltOp) {
	for {
		select {
		case op := <-s.ops:
			pending[op.key] = op
		default:
			return
		}
	}
}

func (s *BoltStore) flush(pending map[string]boltOp) error {
	if len(pending) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(boltBucket))
		if b == nil {
			return fmt.Errorf("bucket %q is missing", boltBucket)
		}
		for key, op := range pending {
			if op.del {
				if err := b.Delete([]byte(key)); err != nil {
					return err
				}
				continue
			}
			if err := b.Put([]byte(key), op.env); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("batch write snapshots: %w", err)
	}
	for key := range pending {
		delete(pending, key)
	}
	return nil
}
