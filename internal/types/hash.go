package types

import "encoding/binary"

// HashHeader is the hash primary value's payload: the number of distinct
// field raw keys currently live under this hash (spec §3 invariant 4).
type HashHeader struct {
	FieldCount uint64
}

const hashHeaderSize = 8

func EncodeHashHeader(h HashHeader) []byte {
	out := make([]byte, hashHeaderSize)
	binary.BigEndian.PutUint64(out, h.FieldCount)
	return out
}

func DecodeHashHeader(raw []byte) (HashHeader, error) {
	if len(raw) < hashHeaderSize {
		return HashHeader{}, ErrCorruptMetadata
	}
	return HashHeader{FieldCount: binary.BigEndian.Uint64(raw)}, nil
}
