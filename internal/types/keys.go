// Package types implements the L1 typed-storage layer: mapping user keys
// and datatype substructure onto raw ordered-KV keys, and stamping common
// value metadata (type tag, encoding version, expiration) onto every
// primary value (spec §3).
package types

import (
	"encoding/binary"
)

// rawTag partitions the raw keyspace into primary entries, list nodes, and
// hash fields (spec §3's "prefix-tag").
type rawTag byte

const (
	tagPrimary   rawTag = 'P'
	tagListNode  rawTag = 'L'
	tagHashField rawTag = 'H'
)

// EncodePrimaryKey builds the raw key for a user key's primary entry:
// tag ‖ db (4 bytes BE) ‖ user key.
func EncodePrimaryKey(db uint32, userKey []byte) []byte {
	out := make([]byte, 0, 1+4+len(userKey))
	out = append(out, byte(tagPrimary))
	out = appendDB(out, db)
	out = append(out, userKey...)
	return out
}

// EncodeListNodeKey builds the raw key for one list node:
// tag ‖ db ‖ len(userKey) (2 bytes BE) ‖ userKey ‖ nodeID (8 bytes BE).
//
// The explicit length prefix on userKey (rather than relying on a
// fixed-width field) lets node keys for different user keys stay
// correctly ordered and non-ambiguous even when one user key is a prefix
// of another.
func EncodeListNodeKey(db uint32, userKey []byte, nodeID uint64) []byte {
	out := make([]byte, 0, 1+4+2+len(userKey)+8)
	out = append(out, byte(tagListNode))
	out = appendDB(out, db)
	out = appendLenPrefixed(out, userKey)
	out = appendNodeID(out, nodeID)
	return out
}

// ListNodeKeyPrefix returns the raw-key prefix shared by every node of
// userKey, for range scans (e.g. substructure cleanup on DEL).
func ListNodeKeyPrefix(db uint32, userKey []byte) []byte {
	out := make([]byte, 0, 1+4+2+len(userKey))
	out = append(out, byte(tagListNode))
	out = appendDB(out, db)
	out = appendLenPrefixed(out, userKey)
	return out
}

// EncodeHashFieldKey builds the raw key for one hash field:
// tag ‖ db ‖ len(userKey) (2 bytes BE) ‖ userKey ‖ field.
func EncodeHashFieldKey(db uint32, userKey, field []byte) []byte {
	out := make([]byte, 0, 1+4+2+len(userKey)+len(field))
	out = append(out, byte(tagHashField))
	out = appendDB(out, db)
	out = appendLenPrefixed(out, userKey)
	out = append(out, field...)
	return out
}

// HashFieldKeyPrefix returns the shared prefix for all fields of userKey.
func HashFieldKeyPrefix(db uint32, userKey []byte) []byte {
	out := make([]byte, 0, 1+4+2+len(userKey))
	out = append(out, byte(tagHashField))
	out = appendDB(out, db)
	out = appendLenPrefixed(out, userKey)
	return out
}

// HashFieldFromKey strips the prefix from a raw hash-field key, returning
// the bare field bytes. Panics if raw is shorter than prefix, which would
// indicate an engine-level corruption bug, not a user error.
func HashFieldFromKey(prefix, raw []byte) []byte {
	return raw[len(prefix):]
}

// PrimaryKeyPrefix returns the raw-key prefix shared by every primary entry
// in db, for keyspace-wide scans (INFO's per-database key count).
func PrimaryKeyPrefix(db uint32) []byte {
	out := make([]byte, 0, 1+4)
	out = append(out, byte(tagPrimary))
	out = appendDB(out, db)
	return out
}

func appendDB(out []byte, db uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], db)
	return append(out, buf[:]...)
}

func appendLenPrefixed(out []byte, b []byte) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(len(b)))
	out = append(out, buf[:]...)
	return append(out, b...)
}

func appendNodeID(out []byte, id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return append(out, buf[:]...)
}

// EncodeNodeID renders a node id as the fixed 8-byte big-endian form used
// as a map/struct field value (head-id/tail-id/prev/next).
func EncodeNodeID(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return buf[:]
}

func DecodeNodeID(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}
