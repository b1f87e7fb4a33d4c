package storage

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/stumble/gorocksdb"
	"go.uber.org/zap"
)

// RocksDBOptions maps directly onto the `rocksdb.*` config surface in spec
// §6; the zero value is never used directly, callers always go through
// NewRocksDBEngine which applies Redis-sane defaults first.
type RocksDBOptions struct {
	Path                  string
	MaxWriteBufferNumber  int
	MaxBackgroundJobs     int
	ManualWALFlush        bool
	CompressionEnabled    bool
	WriteBufferSize       int
	MaxOpenFiles          int
	WALTTLSeconds         int
	DisableWAL            bool
	// ReplicationHistoryCap bounds the in-memory commit-batch ring used to
	// answer UpdatesSince (spec §4.5); RocksDB itself has no notion of our
	// replication cursor.
	ReplicationHistoryCap int
}

// rocksdbEngine backs the L0 contract with an embedded RocksDB instance via
// the gorocksdb cgo binding. Commit ordering and the write-sequence counter
// are maintained in front of RocksDB (guarded by writeMu) since replication
// needs an ordered log of *logical* batches, not RocksDB's internal WAL
// sequence, which numbers individual key mutations rather than batches.
type rocksdbEngine struct {
	db *gorocksdb.DB
	ro *gorocksdb.ReadOptions
	wo *gorocksdb.WriteOptions
	log *zap.Logger

	writeMu sync.Mutex
	seq     uint64

	histMu  sync.Mutex
	histCap int
	history []committedBatch
}

// NewRocksDBEngine opens (creating if absent) a RocksDB instance at
// opts.Path, applying the config-surface knobs from spec §6.
func NewRocksDBEngine(opts RocksDBOptions, log *zap.Logger) (Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("storage.rocksdb")

	bbto := gorocksdb.NewDefaultBlockBasedTableOptions()
	rdbOpts := gorocksdb.NewDefaultOptions()
	rdbOpts.SetCreateIfMissing(true)
	rdbOpts.SetBlockBasedTableFactory(bbto)

	if opts.MaxWriteBufferNumber > 0 {
		rdbOpts.SetMaxWriteBufferNumber(opts.MaxWriteBufferNumber)
	}
	if opts.MaxBackgroundJobs > 0 {
		rdbOpts.IncreaseParallelism(opts.MaxBackgroundJobs)
	}
	if opts.WriteBufferSize > 0 {
		rdbOpts.SetWriteBufferSize(uint64(opts.WriteBufferSize))
	}
	if opts.MaxOpenFiles > 0 {
		rdbOpts.SetMaxOpenFiles(opts.MaxOpenFiles)
	}
	if opts.WALTTLSeconds > 0 {
		rdbOpts.SetWALTtlSeconds(uint64(opts.WALTTLSeconds))
	}
	if opts.CompressionEnabled {
		rdbOpts.SetCompression(gorocksdb.SnappyCompression)
	} else {
		rdbOpts.SetCompression(gorocksdb.NoCompression)
	}

	db, err := gorocksdb.OpenDb(rdbOpts, opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open rocksdb at %s: %w", opts.Path, err)
	}

	ro := gorocksdb.NewDefaultReadOptions()
	wo := gorocksdb.NewDefaultWriteOptions()
	wo.SetSync(!opts.DisableWAL && !opts.ManualWALFlush)
	wo.DisableWAL(opts.DisableWAL)

	histCap := opts.ReplicationHistoryCap
	if histCap <= 0 {
		histCap = 4096
	}

	log.Info("rocksdb engine opened",
		zap.String("path", opts.Path),
		zap.Bool("compression", opts.CompressionEnabled),
		zap.Bool("disable_wal", opts.DisableWAL),
	)

	return &rocksdbEngine{db: db, ro: ro, wo: wo, log: log, histCap: histCap}, nil
}

func (e *rocksdbEngine) Get(key []byte) ([]byte, error) {
	slice, err := e.db.Get(e.ro, key)
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	defer slice.Free()
	if !slice.Exists() {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, slice.Size())
	copy(out, slice.Data())
	return out, nil
}

func (e *rocksdbEngine) Write(batch *WriteBatch) (uint64, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	wb := gorocksdb.NewWriteBatch()
	defer wb.Destroy()
	for _, rec := range batch.Records {
		switch rec.Kind {
		case KindPut:
			wb.Put(rec.Key, rec.Value)
		case KindDelete:
			wb.Delete(rec.Key)
		}
	}

	if err := e.db.Write(e.wo, wb); err != nil {
		return 0, fmt.Errorf("write batch: %w", err)
	}

	seq := atomic.AddUint64(&e.seq, 1)
	if len(batch.Records) > 0 {
		recsCopy := make([]Record, len(batch.Records))
		copy(recsCopy, batch.Records)
		e.histMu.Lock()
		e.history = append(e.history, committedBatch{seq: seq, records: recsCopy})
		if len(e.history) > e.histCap {
			e.history = e.history[len(e.history)-e.histCap:]
		}
		e.histMu.Unlock()
	}
	return seq, nil
}

func (e *rocksdbEngine) Sequence() uint64 { return atomic.LoadUint64(&e.seq) }

func (e *rocksdbEngine) UpdatesSince(seq uint64, limits UpdateLimits) (Updates, error) {
	e.histMu.Lock()
	defer e.histMu.Unlock()

	if limits.ChangesCountLimit <= 0 {
		limits.ChangesCountLimit = DefaultUpdateLimits.ChangesCountLimit
	}
	if limits.MemoryLimit <= 0 {
		limits.MemoryLimit = DefaultUpdateLimits.MemoryLimit
	}

	if len(e.history) > 0 {
		oldestStart := e.history[0].seq - 1
		if seq < oldestStart {
			return Updates{}, ErrCursorTooOld
		}
	}

	out := Updates{StartSeq: seq, EndSeq: seq}
	mem := 0
	for _, cb := range e.history {
		if cb.seq <= seq {
			continue
		}
		batchMem := 0
		for _, r := range cb.records {
			batchMem += len(r.Key) + len(r.Value)
		}
		if len(out.Records) > 0 && (len(out.Records)+len(cb.records) > limits.ChangesCountLimit || mem+batchMem > limits.MemoryLimit) {
			break
		}
		out.Records = append(out.Records, cb.records...)
		out.EndSeq = cb.seq
		mem += batchMem
	}
	return out, nil
}

// Clear performs the destructive full-keyspace wipe resolved in
// SPEC_FULL.md §4.1: iterate and delete every key via a fresh write batch,
// then reset the replication history ring. Deliberately not a no-op.
func (e *rocksdbEngine) Clear() error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	it := e.db.NewIterator(e.ro)
	defer it.Close()

	wb := gorocksdb.NewWriteBatch()
	defer wb.Destroy()
	for it.SeekToFirst(); it.Valid(); it.Next() {
		k := it.Key()
		wb.Delete(append([]byte(nil), k.Data()...))
		k.Free()
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("clear: iterate: %w", err)
	}
	if err := e.db.Write(e.wo, wb); err != nil {
		return fmt.Errorf("clear: write: %w", err)
	}

	atomic.AddUint64(&e.seq, 1)
	e.histMu.Lock()
	e.history = nil
	e.histMu.Unlock()
	return nil
}

func (e *rocksdbEngine) Close() error {
	e.ro.Destroy()
	e.wo.Destroy()
	e.db.Close()
	return nil
}

func (e *rocksdbEngine) NewIterator() Iterator {
	return &rocksdbIterator{it: e.db.NewIterator(e.ro)}
}

type rocksdbIterator struct {
	it *gorocksdb.Iterator
}

func (i *rocksdbIterator) Seek(key []byte) { i.it.Seek(key) }
func (i *rocksdbIterator) Valid() bool     { return i.it.Valid() }
func (i *rocksdbIterator) Next()           { i.it.Next() }
func (i *rocksdbIterator) Key() []byte {
	s := i.it.Key()
	defer s.Free()
	out := make([]byte, s.Size())
	copy(out, s.Data())
	return out
}
func (i *rocksdbIterator) Value() []byte {
	s := i.it.Value()
	defer s.Free()
	out := make([]byte, s.Size())
	copy(out, s.Data())
	return out
}
func (i *rocksdbIterator) Close() error {
	i.it.Close()
	return nil
}
