package types

import (
	"encoding/binary"
	"errors"
	"time"
)

// ValueType tags the datatype stored under a primary key (spec §3).
type ValueType byte

const (
	TypeNone ValueType = 0
	TypeString ValueType = 1
	TypeList   ValueType = 2
	TypeHash   ValueType = 3
)

func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeList:
		return "list"
	case TypeHash:
		return "hash"
	default:
		return "none"
	}
}

// CurrentEncodingVersion is bumped whenever the on-disk layout for a type
// changes; readers gate behavior on it (spec §6, "Persisted state layout").
const CurrentEncodingVersion = 1

// noExpiry is the sentinel expiration value meaning "no TTL".
const noExpiry int64 = 0

// ErrCorruptMetadata is returned when a primary value's metadata header is
// too short to parse; this indicates engine-level corruption.
var ErrCorruptMetadata = errors.New("types: corrupt value metadata")

// Metadata is the fixed-size header prefixed to every primary value:
// [type:1][encoding:1][expireAtMicros:8 BE]. expireAtMicros == 0 means "no
// TTL"; any positive value is an absolute Unix-micros expiry.
type Metadata struct {
	Type           ValueType
	EncodingVer    uint8
	ExpireAtMicros int64
}

const metadataSize = 1 + 1 + 8

func NewMetadata(t ValueType) Metadata {
	return Metadata{Type: t, EncodingVer: CurrentEncodingVersion, ExpireAtMicros: noExpiry}
}

func (m Metadata) HasTTL() bool { return m.ExpireAtMicros != noExpiry }

// Expired reports whether m's expiration is at or before now.
func (m Metadata) Expired(now time.Time) bool {
	if !m.HasTTL() {
		return false
	}
	return m.ExpireAtMicros <= now.UnixMicro()
}

// TTLSeconds returns the ceiling of the remaining TTL in seconds, or -1 if
// no TTL is set. Callers must check key existence separately (spec §4.3
// TTL: -2 absent, -1 no TTL, else seconds remaining).
func (m Metadata) TTLSeconds(now time.Time) int64 {
	if !m.HasTTL() {
		return -1
	}
	remaining := m.ExpireAtMicros - now.UnixMicro()
	if remaining <= 0 {
		return 0
	}
	// ceiling division
	return (remaining + 999999) / 1000000
}

func (m Metadata) WithTTLSeconds(seconds int64, now time.Time) Metadata {
	m.ExpireAtMicros = now.UnixMicro() + seconds*1_000_000
	return m
}

func (m Metadata) WithoutTTL() Metadata {
	m.ExpireAtMicros = noExpiry
	return m
}

func (m Metadata) WithExpireAtMicros(micros int64) Metadata {
	m.ExpireAtMicros = micros
	return m
}

// EncodeMetaAndPayload prepends m's header to payload, producing the full
// primary raw value.
func EncodeMetaAndPayload(m Metadata, payload []byte) []byte {
	out := make([]byte, metadataSize+len(payload))
	out[0] = byte(m.Type)
	out[1] = m.EncodingVer
	binary.BigEndian.PutUint64(out[2:10], uint64(m.ExpireAtMicros))
	copy(out[metadataSize:], payload)
	return out
}

// DecodeMetaAndPayload splits a primary raw value into its metadata header
// and trailing payload bytes (the payload is empty/irrelevant for list and
// hash primaries, which store head/tail/length or field-count instead, see
// list.go/hash.go).
func DecodeMetaAndPayload(raw []byte) (Metadata, []byte, error) {
	if len(raw) < metadataSize {
		return Metadata{}, nil, ErrCorruptMetadata
	}
	m := Metadata{
		Type:           ValueType(raw[0]),
		EncodingVer:    raw[1],
		ExpireAtMicros: int64(binary.BigEndian.Uint64(raw[2:10])),
	}
	return m, raw[metadataSize:], nil
}
