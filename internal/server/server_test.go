package server

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edirooss/sabled/internal/config"
	"github.com/edirooss/sabled/internal/conformance"
	"github.com/edirooss/sabled/internal/storage"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	cfg := config.Default()
	cfg.StateDir = t.TempDir()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	s := New(cfg, storage.NewMemEngine(100), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.ListenAndServe(ctx, addr)

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	return s, addr
}

func TestServerSetGetViaGoRedisClient(t *testing.T) {
	_, addr := newTestServer(t)
	c := conformance.NewClient(addr, 0, zap.NewNop())
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", 0).Err())
	v, err := c.Get(ctx, "k").Result()
	require.NoError(t, err)
	require.Equal(t, "v", v)
}

func TestServerSelectIsolatesDatabases(t *testing.T) {
	_, addr := newTestServer(t)
	c0 := conformance.NewClient(addr, 0, zap.NewNop())
	defer c0.Close()
	c1 := conformance.NewClient(addr, 1, zap.NewNop())
	defer c1.Close()

	ctx := context.Background()
	require.NoError(t, c0.Set(ctx, "k", "db0", 0).Err())
	_, err := c1.Get(ctx, "k").Result()
	require.Error(t, err) // redis.Nil: not visible from db1
}

func TestServerClientID(t *testing.T) {
	_, addr := newTestServer(t)
	c := conformance.NewClient(addr, 0, zap.NewNop())
	defer c.Close()

	id, err := c.ClientID(context.Background()).Result()
	require.NoError(t, err)
	require.Greater(t, id, int64(0))
}

func TestServerReplicaOfRejectsWrites(t *testing.T) {
	_, addr := newTestServer(t)
	c := conformance.NewClient(addr, 0, zap.NewNop())
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Do(ctx, "REPLICAOF", "127.0.0.1", "1").Err())
	defer c.Do(ctx, "REPLICAOF", "NO", "ONE")

	err := c.Set(ctx, "k", "v", 0).Err()
	require.Error(t, err)
	require.Contains(t, err.Error(), "READONLY")
}

func TestServerInfoReportsRole(t *testing.T) {
	_, addr := newTestServer(t)
	c := conformance.NewClient(addr, 0, zap.NewNop())
	defer c.Close()

	out, err := c.Info(context.Background(), "replication").Result()
	require.NoError(t, err)
	require.Contains(t, out, "role:master")
}
