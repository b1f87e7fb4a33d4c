package types

import (
	"encoding/binary"
	"errors"
)

// ErrCorruptListNode mirrors ErrCorruptMetadata for malformed node values.
var ErrCorruptListNode = errors.New("types: corrupt list node")

// ListHeader is the list primary value's payload (after the common
// Metadata header): head/tail node ids and the element count. Node id 0 is
// the sentinel "no node" (ids are allocated starting at 1), satisfying
// invariant 3 of spec §3 (empty list ⇒ no primary entry, so a persisted
// ListHeader always has length >= 1).
type ListHeader struct {
	Head   uint64
	Tail   uint64
	Length uint64
	// NextNodeID is the next id EncodeListNodeKey-style allocation will
	// hand out; monotonic for the lifetime of the primary key (a DEL that
	// later recreates the key resets it to 1).
	NextNodeID uint64
}

const listHeaderSize = 8 * 4

func EncodeListHeader(h ListHeader) []byte {
	out := make([]byte, listHeaderSize)
	binary.BigEndian.PutUint64(out[0:8], h.Head)
	binary.BigEndian.PutUint64(out[8:16], h.Tail)
	binary.BigEndian.PutUint64(out[16:24], h.Length)
	binary.BigEndian.PutUint64(out[24:32], h.NextNodeID)
	return out
}

func DecodeListHeader(raw []byte) (ListHeader, error) {
	if len(raw) < listHeaderSize {
		return ListHeader{}, ErrCorruptMetadata
	}
	return ListHeader{
		Head:       binary.BigEndian.Uint64(raw[0:8]),
		Tail:       binary.BigEndian.Uint64(raw[8:16]),
		Length:     binary.BigEndian.Uint64(raw[16:24]),
		NextNodeID: binary.BigEndian.Uint64(raw[24:32]),
	}, nil
}

// ListNode is one doubly-linked node's raw value: prev/next node ids (0 =
// none) followed by the element bytes.
type ListNode struct {
	Prev uint64
	Next uint64
	Elem []byte
}

const listNodeHeaderSize = 16

func EncodeListNodeValue(n ListNode) []byte {
	out := make([]byte, listNodeHeaderSize+len(n.Elem))
	binary.BigEndian.PutUint64(out[0:8], n.Prev)
	binary.BigEndian.PutUint64(out[8:16], n.Next)
	copy(out[listNodeHeaderSize:], n.Elem)
	return out
}

func DecodeListNodeValue(raw []byte) (ListNode, error) {
	if len(raw) < listNodeHeaderSize {
		return ListNode{}, ErrCorruptListNode
	}
	return ListNode{
		Prev: binary.BigEndian.Uint64(raw[0:8]),
		Next: binary.BigEndian.Uint64(raw[8:16]),
		Elem: raw[listNodeHeaderSize:],
	}, nil
}
