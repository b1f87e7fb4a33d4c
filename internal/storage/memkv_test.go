package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemEngineGetPutDelete(t *testing.T) {
	e := NewMemEngine(0)

	_, err := e.Get([]byte("k"))
	require.ErrorIs(t, err, ErrKeyNotFound)

	var b WriteBatch
	b.Put([]byte("k"), []byte("v1"))
	seq1, err := e.Write(&b)
	require.NoError(t, err)
	require.EqualValues(t, 1, seq1)

	v, err := e.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), v)

	var b2 WriteBatch
	b2.Delete([]byte("k"))
	_, err = e.Write(&b2)
	require.NoError(t, err)

	_, err = e.Get([]byte("k"))
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestMemEngineIteratorOrdering(t *testing.T) {
	e := NewMemEngine(0)
	var b WriteBatch
	b.Put([]byte("b"), []byte("2"))
	b.Put([]byte("a"), []byte("1"))
	b.Put([]byte("c"), []byte("3"))
	_, err := e.Write(&b)
	require.NoError(t, err)

	it := e.NewIterator()
	defer it.Close()
	it.Seek(nil)
	var keys []string
	for ; it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.Equal(t, []string{"a", "b", "c"}, keys)
}

func TestMemEngineUpdatesSinceRoundTrip(t *testing.T) {
	primary := NewMemEngine(0)
	for i := 0; i < 20; i++ {
		var b WriteBatch
		b.Put([]byte{byte(i)}, []byte{byte(i)})
		_, err := primary.Write(&b)
		require.NoError(t, err)
	}

	first, err := primary.UpdatesSince(0, UpdateLimits{ChangesCountLimit: 10})
	require.NoError(t, err)
	require.Len(t, first.Records, 10)

	second, err := primary.UpdatesSince(first.EndSeq, UpdateLimits{ChangesCountLimit: 10})
	require.NoError(t, err)
	require.Len(t, second.Records, 10)

	replica := NewMemEngine(0)
	applyUpdates(t, replica, first)
	applyUpdates(t, replica, second)

	for i := 0; i < 20; i++ {
		v, err := replica.Get([]byte{byte(i)})
		require.NoError(t, err)
		require.Equal(t, []byte{byte(i)}, v)
	}
}

func TestMemEngineUpdatesSinceIdempotent(t *testing.T) {
	primary := NewMemEngine(0)
	var b WriteBatch
	b.Put([]byte("x"), []byte("1"))
	_, err := primary.Write(&b)
	require.NoError(t, err)

	upd, err := primary.UpdatesSince(0, DefaultUpdateLimits)
	require.NoError(t, err)

	replica := NewMemEngine(0)
	applyUpdates(t, replica, upd)
	v1, _ := replica.Get([]byte("x"))
	applyUpdates(t, replica, upd)
	v2, _ := replica.Get([]byte("x"))
	require.Equal(t, v1, v2)
}

func applyUpdates(t *testing.T, e Engine, u Updates) {
	t.Helper()
	var b WriteBatch
	b.Records = append(b.Records, u.Records...)
	if len(b.Records) == 0 {
		return
	}
	_, err := e.Write(&b)
	require.NoError(t, err)
}
