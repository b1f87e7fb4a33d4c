package server

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// clientInfo is one connection's entry in the server-wide client table,
// backing CLIENT ID / CLIENT LIST / CLIENT GETNAME / CLIENT SETNAME /
// CLIENT KILL.
type clientInfo struct {
	id        int64
	traceID   string // uuid, logged but not wire-visible; per-connection correlation id
	addr      string
	createdAt time.Time
	conn      net.Conn

	mu   sync.Mutex
	db   uint32
	name string
}

func (c *clientInfo) setDB(db uint32) {
	c.mu.Lock()
	c.db = db
	c.mu.Unlock()
}

func (c *clientInfo) setName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

func (c *clientInfo) snapshot() (db uint32, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.db, c.name
}

func (c *clientInfo) line(now time.Time) string {
	db, name := c.snapshot()
	return fmt.Sprintf("id=%d addr=%s name=%s db=%d age=%d", c.id, c.addr, name, db, int64(now.Sub(c.createdAt).Seconds()))
}

// clientTable is the server's directory of connected clients (spec §4.6's
// "worker inboxes" generalized to a single-process table, since this
// server runs one connection-accept loop rather than the spec's
// multi-worker cooperative-scheduler model).
type clientTable struct {
	nextID atomic.Int64

	mu      sync.Mutex
	clients map[int64]*clientInfo
}

func newClientTable() *clientTable {
	return &clientTable{clients: make(map[int64]*clientInfo)}
}

func (t *clientTable) register(addr string, conn net.Conn) *clientInfo {
	c := &clientInfo{
		id:        t.nextID.Add(1),
		traceID:   uuid.NewString(),
		addr:      addr,
		createdAt: time.Now(),
		conn:      conn,
	}
	t.mu.Lock()
	t.clients[c.id] = c
	t.mu.Unlock()
	return c
}

func (t *clientTable) unregister(id int64) {
	t.mu.Lock()
	delete(t.clients, id)
	t.mu.Unlock()
}

func (t *clientTable) count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

func (t *clientTable) list() []*clientInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*clientInfo, 0, len(t.clients))
	for _, c := range t.clients {
		out = append(out, c)
	}
	return out
}

// kill closes id's connection if it's local to this table (spec §4.6:
// "a worker first attempts local termination"). Returns false when id is
// not present here, so the caller can broadcast to other workers.
func (t *clientTable) kill(id int64) bool {
	t.mu.Lock()
	c, ok := t.clients[id]
	t.mu.Unlock()
	if !ok {
		return false
	}
	c.conn.Close()
	return true
}
