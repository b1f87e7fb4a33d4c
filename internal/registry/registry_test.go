package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLookupCaseInsensitive(t *testing.T) {
	m, ok := Lookup("SeT")
	require.True(t, ok)
	require.Equal(t, TagSet, m.Tag)
}

func TestLookupOrUnknownFallback(t *testing.T) {
	m := LookupOrUnknown("bogus")
	require.Equal(t, TagNotSupported, m.Tag)
}

func TestValidArityExact(t *testing.T) {
	m, _ := Lookup("get")
	require.True(t, m.ValidArity(2))
	require.False(t, m.ValidArity(3))
}

func TestValidArityAtLeast(t *testing.T) {
	m, _ := Lookup("mset")
	require.False(t, m.ValidArity(2))
	require.True(t, m.ValidArity(3))
	require.True(t, m.ValidArity(5))
}

func TestResolveKeysSingle(t *testing.T) {
	m, _ := Lookup("get")
	argv := [][]byte{[]byte("get"), []byte("k1")}
	require.Equal(t, [][]byte{[]byte("k1")}, m.ResolveKeys(argv))
}

func TestResolveKeysMultiStepMSet(t *testing.T) {
	m, _ := Lookup("mset")
	argv := [][]byte{[]byte("mset"), []byte("k1"), []byte("v1"), []byte("k2"), []byte("v2")}
	require.Equal(t, [][]byte{[]byte("k1"), []byte("k2")}, m.ResolveKeys(argv))
}

func TestResolveKeysNegativeLastKeyDel(t *testing.T) {
	m, _ := Lookup("del")
	argv := [][]byte{[]byte("del"), []byte("a"), []byte("b"), []byte("c")}
	require.Equal(t, [][]byte{[]byte("a"), []byte("b"), []byte("c")}, m.ResolveKeys(argv))
}

func TestResolveKeysBlockingTrailingTimeout(t *testing.T) {
	m, _ := Lookup("blpop")
	argv := [][]byte{[]byte("blpop"), []byte("k1"), []byte("k2"), []byte("0")}
	require.Equal(t, [][]byte{[]byte("k1"), []byte("k2")}, m.ResolveKeys(argv))
}

func TestResolveKeysNoKeyCommand(t *testing.T) {
	m, _ := Lookup("ping")
	require.Nil(t, m.ResolveKeys([][]byte{[]byte("ping")}))
}

func TestAllAndCount(t *testing.T) {
	require.Equal(t, Count(), len(All()))
	require.Greater(t, Count(), 40)
}
