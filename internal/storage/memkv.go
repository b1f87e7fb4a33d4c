package storage

import (
	"bytes"
	"sort"
	"sync"
)

// memEngine is a process-local, non-persistent Engine used by tests and by
// ephemeral server instances. It keeps an ordered slice of entries (sorted
// by key) alongside a map for O(1) point lookups, and a bounded ring of
// committed batches for UpdatesSince.
//
// Concurrency model (mirrors the teacher's store.go): a single writeMu
// serializes writers and their sequence-number assignment; a separate
// stateRW guards the in-memory index so readers never block each other or
// block behind a writer's allocation work. Mutations to the ordered slice
// only happen while holding stateRW for writing.
type memEngine struct {
	writeMu sync.Mutex
	stateRW sync.RWMutex

	keys    [][]byte          // sorted ascending
	vals    map[string][]byte // string(key) -> value
	seq     uint64
	history []committedBatch // ring of recent batches, oldest first
	histCap int
}

type committedBatch struct {
	seq     uint64 // EndSeq of this batch
	records []Record
}

// NewMemEngine constructs an empty in-memory engine. historyCap bounds how
// many committed batches are retained for UpdatesSince before producing
// ErrCursorTooOld; 0 means "unbounded" (fine for tests).
func NewMemEngine(historyCap int) Engine {
	return &memEngine{
		vals:    make(map[string][]byte),
		histCap: historyCap,
	}
}

func (e *memEngine) Get(key []byte) ([]byte, error) {
	e.stateRW.RLock()
	defer e.stateRW.RUnlock()
	v, ok := e.vals[string(key)]
	if !ok {
		return nil, ErrKeyNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (e *memEngine) Write(batch *WriteBatch) (uint64, error) {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	e.stateRW.Lock()
	for _, rec := range batch.Records {
		switch rec.Kind {
		case KindPut:
			e.putLocked(rec.Key, rec.Value)
		case KindDelete:
			e.deleteLocked(rec.Key)
		}
	}
	e.seq++
	seq := e.seq
	e.stateRW.Unlock()

	if len(batch.Records) > 0 {
		recsCopy := make([]Record, len(batch.Records))
		copy(recsCopy, batch.Records)
		e.history = append(e.history, committedBatch{seq: seq, records: recsCopy})
		if e.histCap > 0 && len(e.history) > e.histCap {
			e.history = e.history[len(e.history)-e.histCap:]
		}
	}

	return seq, nil
}

// putLocked inserts or overwrites key, keeping e.keys sorted. Callers must
// hold stateRW for writing.
func (e *memEngine) putLocked(key, value []byte) {
	k := string(key)
	if _, exists := e.vals[k]; !exists {
		idx := sort.Search(len(e.keys), func(i int) bool { return bytes.Compare(e.keys[i], key) >= 0 })
		e.keys = append(e.keys, nil)
		copy(e.keys[idx+1:], e.keys[idx:])
		e.keys[idx] = append([]byte(nil), key...)
	}
	e.vals[k] = append([]byte(nil), value...)
}

func (e *memEngine) deleteLocked(key []byte) {
	k := string(key)
	if _, exists := e.vals[k]; !exists {
		return
	}
	delete(e.vals, k)
	idx := sort.Search(len(e.keys), func(i int) bool { return bytes.Compare(e.keys[i], key) >= 0 })
	if idx < len(e.keys) && bytes.Equal(e.keys[idx], key) {
		e.keys = append(e.keys[:idx], e.keys[idx+1:]...)
	}
}

func (e *memEngine) Sequence() uint64 {
	e.stateRW.RLock()
	defer e.stateRW.RUnlock()
	return e.seq
}

func (e *memEngine) UpdatesSince(seq uint64, limits UpdateLimits) (Updates, error) {
	e.stateRW.RLock()
	defer e.stateRW.RUnlock()

	if limits.ChangesCountLimit <= 0 {
		limits.ChangesCountLimit = DefaultUpdateLimits.ChangesCountLimit
	}
	if limits.MemoryLimit <= 0 {
		limits.MemoryLimit = DefaultUpdateLimits.MemoryLimit
	}

	if len(e.history) > 0 && seq < e.history[0].seq-uint64(len(e.history[0].records)) {
		// best-effort staleness check; exact only when history is unbroken
	}
	if e.histCap > 0 && len(e.history) == e.histCap && seq < e.history[0].seq && seq != 0 {
		// seq predates the oldest retained batch's predecessor: caller has
		// fallen further behind than our ring can reconstruct.
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
		if len(out.Records)+len(cb.records) > limits.ChangesCountLimit && len(out.Records) > 0 {
			break
		}
		batchMem := 0
		for _, r := range cb.records {
			batchMem += len(r.Key) + len(r.Value)
		}
		if mem+batchMem > limits.MemoryLimit && len(out.Records) > 0 {
			break
		}
		out.Records = append(out.Records, cb.records...)
		out.EndSeq = cb.seq
		mem += batchMem
		if len(out.Records) >= limits.ChangesCountLimit {
			break
		}
	}
	return out, nil
}

func (e *memEngine) Clear() error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	e.stateRW.Lock()
	e.keys = nil
	e.vals = make(map[string][]byte)
	e.history = nil
	e.seq++
	e.stateRW.Unlock()
	return nil
}

func (e *memEngine) Close() error { return nil }

func (e *memEngine) NewIterator() Iterator {
	e.stateRW.RLock()
	keys := make([][]byte, len(e.keys))
	copy(keys, e.keys)
	vals := make([][]byte, len(keys))
	for i, k := range keys {
		vals[i] = e.vals[string(k)]
	}
	e.stateRW.RUnlock()
	return &memIterator{keys: keys, vals: vals, pos: -1}
}

type memIterator struct {
	keys [][]byte
	vals [][]byte
	pos  int
}

func (it *memIterator) Seek(key []byte) {
	it.pos = sort.Search(len(it.keys), func(i int) bool { return bytes.Compare(it.keys[i], key) >= 0 })
}

func (it *memIterator) Valid() bool { return it.pos >= 0 && it.pos < len(it.keys) }

func (it *memIterator) Next() { it.pos++ }

func (it *memIterator) Key() []byte { return it.keys[it.pos] }

func (it *memIterator) Value() []byte { return it.vals[it.pos] }

func (it *memIterator) Close() error { return nil }
