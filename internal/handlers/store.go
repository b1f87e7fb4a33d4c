// Package handlers implements the L5 datatype handlers: the business logic
// for each command family (strings, lists, hashes, generic), expressed
// against the L1 typed-storage encoding and the L0 engine. Handlers never
// format RESP; they return plain Go values or *corerr.Error, and the L4
// dispatcher (internal/dispatch) renders the reply.
package handlers

import (
	"time"

	"github.com/edirooss/sabled/internal/corerr"
	"github.com/edirooss/sabled/internal/storage"
	"github.com/edirooss/sabled/internal/types"
)

// Store is the per-server handle datatype handlers operate through. A
// single Store instance is shared by every connection; callers are
// responsible for holding the appropriate internal/lock.Token around any
// sequence of Store calls that must appear atomic.
type Store struct {
	Engine storage.Engine
	Now    func() time.Time // overridable for deterministic tests
}

func NewStore(engine storage.Engine) *Store {
	return &Store{Engine: engine, Now: time.Now}
}

// loadPrimary fetches and decodes the metadata+payload for db/userKey,
// treating a lazily-expired key as absent: the stale entry is deleted
// in-line and ErrKeyNotFound-equivalent nil is returned (spec §3 "lazy
// expiration").
func (s *Store) loadPrimary(db uint32, userKey []byte) (types.Metadata, []byte, bool, error) {
	raw, err := s.Engine.Get(types.EncodePrimaryKey(db, userKey))
	if err == storage.ErrKeyNotFound {
		return types.Metadata{}, nil, false, nil
	}
	if err != nil {
		return types.Metadata{}, nil, false, corerr.Storage("get", err)
	}
	meta, payload, derr := types.DecodeMetaAndPayload(raw)
	if derr != nil {
		return types.Metadata{}, nil, false, corerr.Storage("decode", derr)
	}
	if meta.Expired(s.Now()) {
		if err := s.purgeKey(db, userKey, meta.Type); err != nil {
			return types.Metadata{}, nil, false, err
		}
		return types.Metadata{}, nil, false, nil
	}
	return meta, payload, true, nil
}

// purgeKey removes a key's primary entry and, for composite types, every
// substructure raw entry beneath it.
func (s *Store) purgeKey(db uint32, userKey []byte, t types.ValueType) error {
	batch := &storage.WriteBatch{}
	batch.Delete(types.EncodePrimaryKey(db, userKey))
	switch t {
	case types.TypeList:
		s.deleteListNodesInto(batch, db, userKey)
	case types.TypeHash:
		s.deleteHashFieldsInto(batch, db, userKey)
	}
	if _, err := s.Engine.Write(batch); err != nil {
		return corerr.Storage("write", err)
	}
	return nil
}

func (s *Store) deleteListNodesInto(batch *storage.WriteBatch, db uint32, userKey []byte) {
	prefix := types.ListNodeKeyPrefix(db, userKey)
	it := s.Engine.NewIterator()
	defer it.Close()
	for it.Seek(prefix); it.Valid() && hasPrefix(it.Key(), prefix); it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
}

func (s *Store) deleteHashFieldsInto(batch *storage.WriteBatch, db uint32, userKey []byte) {
	prefix := types.HashFieldKeyPrefix(db, userKey)
	it := s.Engine.NewIterator()
	defer it.Close()
	for it.Seek(prefix); it.Valid() && hasPrefix(it.Key(), prefix); it.Next() {
		batch.Delete(append([]byte(nil), it.Key()...))
	}
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Exists reports whether userKey currently holds a live (non-expired)
// value, and if so its type.
func (s *Store) Exists(db uint32, userKey []byte) (types.ValueType, bool, error) {
	meta, _, ok, err := s.loadPrimary(db, userKey)
	if err != nil || !ok {
		return types.TypeNone, false, err
	}
	return meta.Type, true, nil
}

// Del deletes each key that exists, returning the count removed (spec
// §4.3 generic DEL).
func (s *Store) Del(db uint32, userKeys [][]byte) (int64, error) {
	var n int64
	for _, k := range userKeys {
		meta, _, ok, err := s.loadPrimary(db, k)
		if err != nil {
			return n, err
		}
		if !ok {
			continue
		}
		if err := s.purgeKey(db, k, meta.Type); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// ExistsCount implements EXISTS's duplicate-counting semantics: each
// repetition of an existing key in userKeys counts once more (spec §8).
func (s *Store) ExistsCount(db uint32, userKeys [][]byte) (int64, error) {
	var n int64
	for _, k := range userKeys {
		_, ok, err := s.Exists(db, k)
		if err != nil {
			return n, err
		}
		if ok {
			n++
		}
	}
	return n, nil
}

// Expire sets userKey's TTL to seconds from now, honoring NX/XX/GT/LT
// modifiers (spec §4.3 EXPIRE). Returns false if the condition blocked
// the update or the key doesn't exist.
func (s *Store) Expire(db uint32, userKey []byte, seconds int64, nx, xx, gt, lt bool) (bool, error) {
	meta, payload, ok, err := s.loadPrimary(db, userKey)
	if err != nil || !ok {
		return false, err
	}
	hadTTL := meta.HasTTL()
	if nx && hadTTL {
		return false, nil
	}
	if xx && !hadTTL {
		return false, nil
	}
	now := s.Now()
	newExpireAt := now.UnixMicro() + seconds*1_000_000
	if gt && (!hadTTL || newExpireAt <= meta.ExpireAtMicros) {
		return false, nil
	}
	if lt && hadTTL && newExpireAt >= meta.ExpireAtMicros {
		return false, nil
	}
	meta = meta.WithExpireAtMicros(newExpireAt)
	if err := s.rewritePrimary(db, userKey, meta, payload); err != nil {
		return false, err
	}
	return true, nil
}

// TTL returns remaining seconds (-1 no TTL, -2 absent) for spec's TTL cmd.
func (s *Store) TTL(db uint32, userKey []byte) (int64, error) {
	meta, _, ok, err := s.loadPrimary(db, userKey)
	if err != nil {
		return 0, err
	}
	if !ok {
		return -2, nil
	}
	return meta.TTLSeconds(s.Now()), nil
}

// KeyCount scans db's primary keyspace and counts live (non-expired)
// entries, for the admin/INFO "keyspace" section. It does not purge
// expired entries it encounters; lazy expiration on the read path already
// keeps the stored count accurate for actual command traffic.
func (s *Store) KeyCount(db uint32) (int64, error) {
	prefix := types.PrimaryKeyPrefix(db)
	it := s.Engine.NewIterator()
	defer it.Close()

	var n int64
	now := s.Now()
	for it.Seek(prefix); it.Valid() && hasPrefix(it.Key(), prefix); it.Next() {
		meta, _, err := types.DecodeMetaAndPayload(it.Value())
		if err != nil {
			continue
		}
		if !meta.Expired(now) {
			n++
		}
	}
	return n, nil
}

// FlushAll wipes every database's keyspace (spec §9 open question:
// destructive full-keyspace reset used by FLUSHALL and by test setup).
// Callers must hold no per-key locks when calling this and must not call
// it while this server is streaming to replicas, since it bypasses the
// per-key lock manager entirely.
func (s *Store) FlushAll() error {
	if err := s.Engine.Clear(); err != nil {
		return corerr.Storage("clear", err)
	}
	return nil
}

func (s *Store) rewritePrimary(db uint32, userKey []byte, meta types.Metadata, payload []byte) error {
	batch := &storage.WriteBatch{}
	batch.Put(types.EncodePrimaryKey(db, userKey), types.EncodeMetaAndPayload(meta, payload))
	if _, err := s.Engine.Write(batch); err != nil {
		return corerr.Storage("write", err)
	}
	return nil
}

// requireType returns corerr.WrongType() if the key holds a live value of
// a different type than want.
func requireType(meta types.Metadata, ok bool, want types.ValueType) error {
	if ok && meta.Type != want {
		return corerr.WrongType()
	}
	return nil
}
