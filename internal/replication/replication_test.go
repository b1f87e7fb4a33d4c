package replication

import (
	"bufio"
	"context"
	"encoding/gob"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/edirooss/sabled/internal/storage"
)

func TestProducerStreamsBatchOverPipe(t *testing.T) {
	primary := storage.NewMemEngine(100)
	batch := &storage.WriteBatch{}
	batch.Put([]byte("k1"), []byte("v1"))
	batch.Put([]byte("k2"), []byte("v2"))
	_, err := primary.Write(batch)
	require.NoError(t, err)

	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	p := NewProducer(primary, storage.UpdateLimits{MemoryLimit: 1 << 20, ChangesCountLimit: 10}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		_ = p.Stream(ctx, server, 0, 5*time.Millisecond)
	}()

	dec := gob.NewDecoder(bufio.NewReader(client))
	var w wireUpdates
	require.NoError(t, dec.Decode(&w))
	require.Len(t, w.Records, 2)
	require.EqualValues(t, 2, w.EndSeq)
}

func TestReplicaApplyIsIdempotent(t *testing.T) {
	replica := &Replica{engine: storage.NewMemEngine(10), log: zap.NewNop()}
	u := storage.Updates{StartSeq: 0, EndSeq: 1, Records: []storage.Record{
		{Kind: storage.KindPut, Key: []byte("k"), Value: []byte("v")},
	}}
	require.NoError(t, replica.apply(u))
	require.NoError(t, replica.apply(u))

	v, err := replica.engine.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), v)
}
