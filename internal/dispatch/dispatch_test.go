package dispatch

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edirooss/sabled/internal/blocking"
	"github.com/edirooss/sabled/internal/handlers"
	"github.com/edirooss/sabled/internal/lock"
	"github.com/edirooss/sabled/internal/resp"
	"github.com/edirooss/sabled/internal/storage"
)

func newTestDispatcher() (*Dispatcher, *bytes.Buffer, *resp.Writer) {
	store := handlers.NewStore(storage.NewMemEngine(100))
	d := New(store, lock.NewManager(), blocking.NewRegistry(), zap.NewNop(), func() Role { return RolePrimary })
	buf := &bytes.Buffer{}
	w := resp.NewWriter(buf)
	return d, buf, w
}

func argv(parts ...string) [][]byte {
	out := make([][]byte, len(parts))
	for i, p := range parts {
		out[i] = []byte(p)
	}
	return out
}

func TestDispatchSetGet(t *testing.T) {
	d, buf, w := newTestDispatcher()
	require.NoError(t, d.Execute(0, argv("SET", "k", "v"), w))
	require.NoError(t, w.Flush())
	require.Equal(t, "+OK\r\n", buf.String())

	buf.Reset()
	require.NoError(t, d.Execute(0, argv("GET", "k"), w))
	require.NoError(t, w.Flush())
	require.Equal(t, "$1\r\nv\r\n", buf.String())
}

func TestDispatchUnknownCommand(t *testing.T) {
	d, buf, w := newTestDispatcher()
	require.NoError(t, d.Execute(0, argv("BOGUS", "x"), w))
	require.NoError(t, w.Flush())
	require.Contains(t, buf.String(), "ERR unknown command")
}

func TestDispatchWrongArity(t *testing.T) {
	d, buf, w := newTestDispatcher()
	require.NoError(t, d.Execute(0, argv("GET"), w))
	require.NoError(t, w.Flush())
	require.Contains(t, buf.String(), "wrong number of arguments")
}

func TestDispatchReadOnlyReplica(t *testing.T) {
	store := handlers.NewStore(storage.NewMemEngine(100))
	d := New(store, lock.NewManager(), blocking.NewRegistry(), zap.NewNop(), func() Role { return RoleReplica })
	buf := &bytes.Buffer{}
	w := resp.NewWriter(buf)

	require.NoError(t, d.Execute(0, argv("SET", "k", "v"), w))
	require.NoError(t, w.Flush())
	require.Contains(t, buf.String(), "READONLY")
}

func TestDispatchFlushAllWipesEveryDatabase(t *testing.T) {
	d, buf, w := newTestDispatcher()
	require.NoError(t, d.Execute(0, argv("SET", "k", "v"), w))
	w.Flush()
	buf.Reset()
	require.NoError(t, d.Execute(1, argv("SET", "k2", "v2"), w))
	w.Flush()
	buf.Reset()

	require.NoError(t, d.Execute(0, argv("FLUSHALL"), w))
	require.NoError(t, w.Flush())
	require.Equal(t, "+OK\r\n", buf.String())
	buf.Reset()

	require.NoError(t, d.Execute(0, argv("EXISTS", "k"), w))
	w.Flush()
	require.Equal(t, ":0\r\n", buf.String())
	buf.Reset()

	require.NoError(t, d.Execute(1, argv("EXISTS", "k2"), w))
	w.Flush()
	require.Equal(t, ":0\r\n", buf.String())
}

func TestDispatchFlushAllRejectedOnReplica(t *testing.T) {
	store := handlers.NewStore(storage.NewMemEngine(100))
	d := New(store, lock.NewManager(), blocking.NewRegistry(), zap.NewNop(), func() Role { return RoleReplica })
	buf := &bytes.Buffer{}
	w := resp.NewWriter(buf)

	require.NoError(t, d.Execute(0, argv("FLUSHALL"), w))
	require.NoError(t, w.Flush())
	require.Contains(t, buf.String(), "READONLY")
}

func TestDispatchWrongTypeError(t *testing.T) {
	d, buf, w := newTestDispatcher()
	require.NoError(t, d.Execute(0, argv("SET", "k", "v"), w))
	w.Flush()
	buf.Reset()

	require.NoError(t, d.Execute(0, argv("LPUSH", "k", "x"), w))
	require.NoError(t, w.Flush())
	require.Contains(t, buf.String(), "WRONGTYPE")
}

func TestDispatchDelAndExists(t *testing.T) {
	d, buf, w := newTestDispatcher()
	d.Execute(0, argv("SET", "a", "1"), w)
	w.Flush()
	buf.Reset()

	require.NoError(t, d.Execute(0, argv("EXISTS", "a", "a", "missing"), w))
	require.NoError(t, w.Flush())
	require.Equal(t, ":2\r\n", buf.String())

	buf.Reset()
	require.NoError(t, d.Execute(0, argv("DEL", "a", "missing"), w))
	require.NoError(t, w.Flush())
	require.Equal(t, ":1\r\n", buf.String())
}

func TestDispatchBLPopWakesOnPush(t *testing.T) {
	d, buf, w := newTestDispatcher()
	done := make(chan struct{})
	go func() {
		buf2 := &bytes.Buffer{}
		w2 := resp.NewWriter(buf2)
		_ = d.Execute(0, argv("BLPOP", "k", "5"), w2)
		w2.Flush()
		if buf2.String() != "*2\r\n$1\r\nk\r\n$1\r\nv\r\n" {
			t.Errorf("unexpected blpop reply: %q", buf2.String())
		}
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, d.Execute(0, argv("LPUSH", "k", "v"), w))
	require.NoError(t, w.Flush())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BLPOP never woke up")
	}
}

func TestDispatchRPushWakesBothWaitersForTwoElements(t *testing.T) {
	d, buf, w := newTestDispatcher()
	results := make(chan string, 2)
	for i := 0; i < 2; i++ {
		go func() {
			buf2 := &bytes.Buffer{}
			w2 := resp.NewWriter(buf2)
			_ = d.Execute(0, argv("BLPOP", "q", "5"), w2)
			w2.Flush()
			results <- buf2.String()
		}()
	}

	time.Sleep(30 * time.Millisecond) // let both BLPOP goroutines block
	require.NoError(t, d.Execute(0, argv("RPUSH", "q", "x", "y"), w))
	require.NoError(t, w.Flush())

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case r := <-results:
			seen[r] = true
		case <-time.After(time.Second):
			t.Fatal("both BLPOP waiters should wake after a two-element RPUSH")
		}
	}
	require.Contains(t, seen, "*2\r\n$1\r\nq\r\n$1\r\nx\r\n")
	require.Contains(t, seen, "*2\r\n$1\r\nq\r\n$1\r\ny\r\n")
}

func TestDispatchBLMPopParsesTimeoutFirst(t *testing.T) {
	d, buf, w := newTestDispatcher()
	require.NoError(t, d.Execute(0, argv("RPUSH", "k", "v"), w))
	w.Flush()
	buf.Reset()

	require.NoError(t, d.Execute(0, argv("BLMPOP", "0", "2", "k1", "k", "LEFT"), w))
	require.NoError(t, w.Flush())
	require.Equal(t, "*2\r\n$1\r\nk\r\n*1\r\n$1\r\nv\r\n", buf.String())
}

func TestDispatchBLPopTimesOut(t *testing.T) {
	d, buf, w := newTestDispatcher()
	require.NoError(t, d.Execute(0, argv("BLPOP", "nope", "0.05"), w))
	require.NoError(t, w.Flush())
	require.Equal(t, "*-1\r\n", buf.String())
}
