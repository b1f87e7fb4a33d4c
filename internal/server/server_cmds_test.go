package server

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edirooss/sabled/internal/conformance"
)

func TestServerConfigGetSet(t *testing.T) {
	_, addr := newTestServer(t)
	c := conformance.NewClient(addr, 0, zap.NewNop())
	defer c.Close()

	ctx := context.Background()
	vals, err := c.ConfigGet(ctx, "db_count").Result()
	require.NoError(t, err)
	require.Equal(t, "16", vals["db_count"])

	require.Error(t, c.ConfigSet(ctx, "db_count", "32").Err()) // db_count is read-only
}

func TestServerClientList(t *testing.T) {
	_, addr := newTestServer(t)
	c := conformance.NewClient(addr, 0, zap.NewNop())
	defer c.Close()

	out, err := c.ClientList(context.Background()).Result()
	require.NoError(t, err)
	require.Contains(t, out, "id=")
}

func TestServerBLPopWakesAcrossConnections(t *testing.T) {
	_, addr := newTestServer(t)
	waiter := conformance.NewClient(addr, 0, zap.NewNop())
	defer waiter.Close()
	pusher := conformance.NewClient(addr, 0, zap.NewNop())
	defer pusher.Close()

	ctx := context.Background()
	resultCh := make(chan []string, 1)
	go func() {
		res, err := waiter.BLPop(ctx, 2*time.Second, "q").Result()
		require.NoError(t, err)
		resultCh <- res
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, pusher.RPush(ctx, "q", "hello").Err())

	select {
	case res := <-resultCh:
		require.Equal(t, []string{"q", "hello"}, res)
	case <-time.After(3 * time.Second):
		t.Fatal("BLPOP did not wake within timeout")
	}
}
