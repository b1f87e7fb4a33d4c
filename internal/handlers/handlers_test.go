package handlers

import (
	"testing"
	"time"

	"github.com/edirooss/sabled/internal/corerr"
	"github.com/edirooss/sabled/internal/storage"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(storage.NewMemEngine(100))
}

func TestSetGetRoundTrip(t *testing.T) {
	s := newTestStore()
	_, _, applied, err := s.Set(0, []byte("k"), []byte("v"), SetOptions{})
	require.NoError(t, err)
	require.True(t, applied)

	v, ok, err := s.Get(0, []byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)
}

func TestSetNXDoesNotOverwrite(t *testing.T) {
	s := newTestStore()
	_, _, _, _ = s.Set(0, []byte("k"), []byte("v1"), SetOptions{})
	_, _, applied, err := s.Set(0, []byte("k"), []byte("v2"), SetOptions{NX: true})
	require.NoError(t, err)
	require.False(t, applied)

	v, _, _ := s.Get(0, []byte("k"))
	require.Equal(t, []byte("v1"), v)
}

func TestWrongTypeOnListAgainstString(t *testing.T) {
	s := newTestStore()
	_, _, _, _ = s.Set(0, []byte("k"), []byte("v"), SetOptions{})
	_, err := s.Push(0, []byte("k"), [][]byte{[]byte("x")}, true, false)
	require.Error(t, err)
	var cerr *corerr.Error
	require.True(t, corerr.As(err, &cerr))
	require.Equal(t, "WRONGTYPE", cerr.Prefix)
}

func TestIncrByOverflow(t *testing.T) {
	s := newTestStore()
	_, _, _, _ = s.Set(0, []byte("k"), []byte("9223372036854775807"), SetOptions{})
	_, err := s.IncrBy(0, []byte("k"), 1)
	require.Error(t, err)
}

func TestExpireAndTTL(t *testing.T) {
	s := newTestStore()
	now := time.Unix(1_700_000_000, 0)
	s.Now = func() time.Time { return now }
	_, _, _, _ = s.Set(0, []byte("k"), []byte("v"), SetOptions{})

	ok, err := s.Expire(0, []byte("k"), 10, false, false, false, false)
	require.NoError(t, err)
	require.True(t, ok)

	ttl, err := s.TTL(0, []byte("k"))
	require.NoError(t, err)
	require.EqualValues(t, 10, ttl)

	s.Now = func() time.Time { return now.Add(11 * time.Second) }
	_, exists, err := s.Exists(0, []byte("k"))
	require.NoError(t, err)
	require.False(t, exists)
}

func TestDelAndExistsCountDuplicates(t *testing.T) {
	s := newTestStore()
	_, _, _, _ = s.Set(0, []byte("a"), []byte("1"), SetOptions{})
	n, err := s.ExistsCount(0, [][]byte{[]byte("a"), []byte("a"), []byte("missing")})
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	d, err := s.Del(0, [][]byte{[]byte("a"), []byte("missing")})
	require.NoError(t, err)
	require.EqualValues(t, 1, d)
}

func TestListPushPopOrdering(t *testing.T) {
	s := newTestStore()
	_, err := s.Push(0, []byte("l"), [][]byte{[]byte("a"), []byte("b"), []byte("c")}, true, false)
	require.NoError(t, err)

	got, ok, err := s.Pop(0, []byte("l"), 3, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, [][]byte{[]byte("c"), []byte("b"), []byte("a")}, got)
}

func TestListRangeAndIndex(t *testing.T) {
	s := newTestStore()
	_, _ = s.Push(0, []byte("l"), [][]byte{[]byte("a"), []byte("b"), []byte("c")}, false, false)

	r, err := s.Range(0, []byte("l"), 0, -1)
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, r)

	v, ok, err := s.Index(0, []byte("l"), -1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("c"), v)
}

func TestListTrimAndRem(t *testing.T) {
	s := newTestStore()
	_, _ = s.Push(0, []byte("l"), [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("b")}, false, false)

	removed, err := s.Rem(0, []byte("l"), 1, []byte("b"))
	require.NoError(t, err)
	require.EqualValues(t, 1, removed)

	r, _ := s.Range(0, []byte("l"), 0, -1)
	require.Equal(t, [][]byte{[]byte("a"), []byte("c"), []byte("b")}, r)

	require.NoError(t, s.Trim(0, []byte("l"), 0, 0))
	r, _ = s.Range(0, []byte("l"), 0, -1)
	require.Equal(t, [][]byte{[]byte("a")}, r)
}

func TestListMoveBetweenKeys(t *testing.T) {
	s := newTestStore()
	_, _ = s.Push(0, []byte("src"), [][]byte{[]byte("a"), []byte("b")}, false, false)

	elem, ok, err := s.Move(0, []byte("src"), []byte("dst"), false, true)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("b"), elem)

	r, _ := s.Range(0, []byte("dst"), 0, -1)
	require.Equal(t, [][]byte{[]byte("b")}, r)
}

func TestHashSetGetDel(t *testing.T) {
	s := newTestStore()
	created, err := s.HSet(0, []byte("h"), [][2][]byte{{[]byte("f1"), []byte("v1")}, {[]byte("f2"), []byte("v2")}})
	require.NoError(t, err)
	require.EqualValues(t, 2, created)

	v, ok, err := s.HGet(0, []byte("h"), []byte("f1"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v1"), v)

	n, err := s.HDel(0, []byte("h"), [][]byte{[]byte("f1")})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	l, err := s.HLen(0, []byte("h"))
	require.NoError(t, err)
	require.EqualValues(t, 1, l)
}

func TestHashIncrBy(t *testing.T) {
	s := newTestStore()
	v, err := s.HIncrBy(0, []byte("h"), []byte("f"), 5)
	require.NoError(t, err)
	require.EqualValues(t, 5, v)

	v, err = s.HIncrBy(0, []byte("h"), []byte("f"), -2)
	require.NoError(t, err)
	require.EqualValues(t, 3, v)
}

func TestAppendOnMissingKey(t *testing.T) {
	s := newTestStore()
	n, err := s.Append(0, []byte("k"), []byte("hello"))
	require.NoError(t, err)
	require.EqualValues(t, 5, n)

	n, err = s.Append(0, []byte("k"), []byte(" world"))
	require.NoError(t, err)
	require.EqualValues(t, 11, n)
}
