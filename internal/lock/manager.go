// Package lock implements the L2 key-lock manager: per-(database, user
// key) shared/exclusive lock tokens, acquired in a globally deterministic
// order to guarantee deadlock freedom (spec §5) and released on every exit
// path via the token returned from Acquire.
//
// The FIFO-ticket design below generalizes the teacher's slotPool
// (internal/infrastructure/processmgr/slot_pool.go), which serializes a
// fixed-capacity semaphore with a sync.Cond; here each key has its own
// unbounded reader count / single-writer state, and waiters are granted in
// strict submission order via a ticket queue rather than a Cond broadcast,
// which is what spec §8's "lock fairness" property requires.
package lock

import (
	"bytes"
	"sort"
	"sync"
)

type ticket struct {
	isWrite bool
	ready   chan struct{}
}

type keyState struct {
	readers int
	writer  bool
	queue   []*ticket
	waiting int // tickets enqueued but not yet granted, plus active holders
}

// Manager owns one keyState per contended raw key. Idle keys (no holders,
// no waiters) are removed to keep the map bounded by current contention,
// not total keyspace size.
type Manager struct {
	mu     sync.Mutex
	states map[string]*keyState
}

func NewManager() *Manager {
	return &Manager{states: make(map[string]*keyState)}
}

// Token represents a held set of key locks; Release must be called exactly
// once, on every exit path of the critical section that acquired it.
type Token struct {
	m        *Manager
	acquired []acquiredKey
}

type acquiredKey struct {
	key       string
	exclusive bool
}

// Acquire locks rawKeys (already deduplicated by the caller not required —
// duplicates are collapsed here) for shared (exclusive=false) or exclusive
// access, in lexicographic order, matching spec §4.2 step 5 / §5.
func (m *Manager) Acquire(rawKeys [][]byte, exclusive bool) *Token {
	uniq := dedupSorted(rawKeys)

	tok := &Token{m: m, acquired: make([]acquiredKey, 0, len(uniq))}
	for _, k := range uniq {
		m.acquireOne(string(k), exclusive)
		tok.acquired = append(tok.acquired, acquiredKey{key: string(k), exclusive: exclusive})
	}
	return tok
}

// AcquireMixed locks readKeys for shared access and writeKeys for
// exclusive access, as one globally-ordered sequence, for handlers (like
// LMOVE) that genuinely read one key and write another under a single
// critical section. Keys present in both sets are locked exclusively once.
func (m *Manager) AcquireMixed(readKeys, writeKeys [][]byte) *Token {
	type req struct {
		key       []byte
		exclusive bool
	}
	writeSet := make(map[string]bool, len(writeKeys))
	for _, k := range writeKeys {
		writeSet[string(k)] = true
	}

	all := make(map[string]req)
	for _, k := range readKeys {
		if !writeSet[string(k)] {
			all[string(k)] = req{key: k, exclusive: false}
		}
	}
	for _, k := range writeKeys {
		all[string(k)] = req{key: k, exclusive: true}
	}

	ordered := make([]req, 0, len(all))
	for _, r := range all {
		ordered = append(ordered, r)
	}
	sort.Slice(ordered, func(i, j int) bool { return bytes.Compare(ordered[i].key, ordered[j].key) < 0 })

	tok := &Token{m: m, acquired: make([]acquiredKey, 0, len(ordered))}
	for _, r := range ordered {
		m.acquireOne(string(r.key), r.exclusive)
		tok.acquired = append(tok.acquired, acquiredKey{key: r.key, exclusive: r.exclusive})
	}
	return tok
}

func (m *Manager) acquireOne(key string, exclusive bool) {
	m.mu.Lock()
	st, ok := m.states[key]
	if !ok {
		st = &keyState{}
		m.states[key] = st
	}
	st.waiting++

	t := &ticket{isWrite: exclusive, ready: make(chan struct{})}
	st.queue = append(st.queue, t)
	dispatchLocked(st)
	m.mu.Unlock()

	<-t.ready
}

// Release unlocks every key held by tok, in the reverse order they were
// acquired (irrelevant for correctness, but mirrors typical scoped-defer
// unwind order).
func (t *Token) Release() {
	for i := len(t.acquired) - 1; i >= 0; i-- {
		t.m.releaseOne(t.acquired[i].key, t.acquired[i].exclusive)
	}
	t.acquired = nil
}

func (m *Manager) releaseOne(key string, exclusive bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.states[key]
	if !ok {
		return // invariant violation in caller, but releasing is idempotent-safe
	}
	if exclusive {
		st.writer = false
	} else {
		st.readers--
	}
	st.waiting--
	dispatchLocked(st)

	if st.readers == 0 && !st.writer && st.waiting == 0 && len(st.queue) == 0 {
		delete(m.states, key)
	}
}

// dispatchLocked grants queued tickets from the front while compatible
// with current holders, preserving submission order: a writer ticket
// blocks all tickets behind it from being granted early, so two exclusive
// writers are always granted in the order they called Acquire.
func dispatchLocked(st *keyState) {
	for len(st.queue) > 0 {
		t := st.queue[0]
		if t.isWrite {
			if st.readers != 0 || st.writer {
				return
			}
			st.writer = true
			st.queue = st.queue[1:]
			close(t.ready)
			return
		}
		if st.writer {
			return
		}
		st.readers++
		st.queue = st.queue[1:]
		close(t.ready)
	}
}

func dedupSorted(keys [][]byte) [][]byte {
	sorted := make([][]byte, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })

	out := sorted[:0:0]
	for i, k := range sorted {
		if i > 0 && bytes.Equal(k, sorted[i-1]) {
			continue
		}
		out = append(out, k)
	}
	return out
}
