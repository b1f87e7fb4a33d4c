package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMetadataRoundTrip(t *testing.T) {
	m := NewMetadata(TypeString)
	now := time.Unix(1_700_000_000, 0)
	m = m.WithTTLSeconds(90, now)

	raw := EncodeMetaAndPayload(m, []byte("hello"))
	got, payload, err := DecodeMetaAndPayload(raw)
	require.NoError(t, err)
	require.Equal(t, TypeString, got.Type)
	require.Equal(t, []byte("hello"), payload)
	require.True(t, got.HasTTL())
	require.EqualValues(t, 90, got.TTLSeconds(now))
}

func TestMetadataNoTTL(t *testing.T) {
	m := NewMetadata(TypeHash)
	raw := EncodeMetaAndPayload(m, nil)
	got, _, err := DecodeMetaAndPayload(raw)
	require.NoError(t, err)
	require.False(t, got.HasTTL())
	require.EqualValues(t, -1, got.TTLSeconds(time.Now()))
}

func TestMetadataExpiredBoundary(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	m := NewMetadata(TypeString).WithTTLSeconds(1, now)
	require.False(t, m.Expired(now))
	require.True(t, m.Expired(now.Add(2*time.Second)))
}

func TestRawKeyEncodingDistinctTags(t *testing.T) {
	p := EncodePrimaryKey(0, []byte("k"))
	l := EncodeListNodeKey(0, []byte("k"), 1)
	h := EncodeHashFieldKey(0, []byte("k"), []byte("f"))
	require.NotEqual(t, p[0], l[0])
	require.NotEqual(t, l[0], h[0])
}

func TestHashFieldKeyPrefixRoundTrip(t *testing.T) {
	prefix := HashFieldKeyPrefix(3, []byte("myhash"))
	full := EncodeHashFieldKey(3, []byte("myhash"), []byte("field1"))
	require.Equal(t, []byte("field1"), HashFieldFromKey(prefix, full))
}

func TestListHeaderRoundTrip(t *testing.T) {
	h := ListHeader{Head: 1, Tail: 3, Length: 3, NextNodeID: 4}
	got, err := DecodeListHeader(EncodeListHeader(h))
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestListNodeRoundTrip(t *testing.T) {
	n := ListNode{Prev: 0, Next: 2, Elem: []byte("a")}
	got, err := DecodeListNodeValue(EncodeListNodeValue(n))
	require.NoError(t, err)
	require.Equal(t, n.Prev, got.Prev)
	require.Equal(t, n.Next, got.Next)
	require.Equal(t, n.Elem, got.Elem)
}

func TestAddWithOverflowCheck(t *testing.T) {
	_, err := AddWithOverflowCheck(9223372036854775807, 1)
	require.Error(t, err)

	v, err := AddWithOverflowCheck(5, 3)
	require.NoError(t, err)
	require.EqualValues(t, 8, v)
}
