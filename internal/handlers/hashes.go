package handlers

import (
	"math/rand"

	"github.com/edirooss/sabled/internal/corerr"
	"github.com/edirooss/sabled/internal/storage"
	"github.com/edirooss/sabled/internal/types"
)

func (s *Store) loadHash(db uint32, key []byte) (types.Metadata, types.HashHeader, bool, error) {
	meta, payload, ok, err := s.loadPrimary(db, key)
	if err != nil || !ok {
		return meta, types.HashHeader{}, false, err
	}
	if meta.Type != types.TypeHash {
		return meta, types.HashHeader{}, false, corerr.WrongType()
	}
	hdr, derr := types.DecodeHashHeader(payload)
	if derr != nil {
		return meta, types.HashHeader{}, false, corerr.Storage("decode-hash-header", derr)
	}
	return meta, hdr, true, nil
}

// HSet implements HSET/HMSET, returning the count of NEW fields created.
func (s *Store) HSet(db uint32, key []byte, fields [][2][]byte) (int64, error) {
	meta, hdr, ok, err := s.loadHash(db, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		meta = types.NewMetadata(types.TypeHash)
	}

	batch := &storage.WriteBatch{}
	var created int64
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		fieldKey := types.EncodeHashFieldKey(db, key, f[0])
		if !seen[string(f[0])] {
			seen[string(f[0])] = true
			if _, err := s.Engine.Get(fieldKey); err == storage.ErrKeyNotFound {
				created++
			} else if err != nil {
				return 0, corerr.Storage("get", err)
			}
		}
		batch.Put(fieldKey, f[1])
	}
	hdr.FieldCount += uint64(created)
	batch.Put(types.EncodePrimaryKey(db, key), types.EncodeMetaAndPayload(meta, types.EncodeHashHeader(hdr)))
	if _, err := s.Engine.Write(batch); err != nil {
		return 0, corerr.Storage("write", err)
	}
	return created, nil
}

// HGet implements HGET.
func (s *Store) HGet(db uint32, key, field []byte) ([]byte, bool, error) {
	_, _, ok, err := s.loadHash(db, key)
	if err != nil || !ok {
		return nil, false, err
	}
	v, err := s.Engine.Get(types.EncodeHashFieldKey(db, key, field))
	if err == storage.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, corerr.Storage("get", err)
	}
	return v, true, nil
}

// HDel implements HDEL, returning the count of fields actually removed.
func (s *Store) HDel(db uint32, key []byte, fields [][]byte) (int64, error) {
	meta, hdr, ok, err := s.loadHash(db, key)
	if err != nil || !ok {
		return 0, err
	}

	batch := &storage.WriteBatch{}
	var removed int64
	for _, f := range fields {
		fk := types.EncodeHashFieldKey(db, key, f)
		if _, err := s.Engine.Get(fk); err == storage.ErrKeyNotFound {
			continue
		} else if err != nil {
			return 0, corerr.Storage("get", err)
		}
		batch.Delete(fk)
		removed++
	}
	if removed == 0 {
		return 0, nil
	}
	hdr.FieldCount -= uint64(removed)
	if hdr.FieldCount == 0 {
		batch.Delete(types.EncodePrimaryKey(db, key))
	} else {
		batch.Put(types.EncodePrimaryKey(db, key), types.EncodeMetaAndPayload(meta, types.EncodeHashHeader(hdr)))
	}
	if _, err := s.Engine.Write(batch); err != nil {
		return 0, corerr.Storage("write", err)
	}
	return removed, nil
}

// HLen implements HLEN.
func (s *Store) HLen(db uint32, key []byte) (int64, error) {
	_, hdr, ok, err := s.loadHash(db, key)
	if err != nil || !ok {
		return 0, err
	}
	return int64(hdr.FieldCount), nil
}

// HExists implements HEXISTS.
func (s *Store) HExists(db uint32, key, field []byte) (bool, error) {
	_, ok, err := s.HGet(db, key, field)
	return ok, err
}

// allFields scans every field/value under key's hash-field prefix.
func (s *Store) allFields(db uint32, key []byte) ([][]byte, [][]byte, error) {
	prefix := types.HashFieldKeyPrefix(db, key)
	it := s.Engine.NewIterator()
	defer it.Close()
	var fields, values [][]byte
	for it.Seek(prefix); it.Valid() && hasPrefix(it.Key(), prefix); it.Next() {
		fields = append(fields, append([]byte(nil), types.HashFieldFromKey(prefix, it.Key())...))
		values = append(values, append([]byte(nil), it.Value()...))
	}
	return fields, values, nil
}

// HGetAll implements HGETALL, returning interleaved field/value pairs.
func (s *Store) HGetAll(db uint32, key []byte) ([][]byte, [][]byte, error) {
	_, _, ok, err := s.loadHash(db, key)
	if err != nil || !ok {
		return nil, nil, err
	}
	return s.allFields(db, key)
}

// HKeys implements HKEYS.
func (s *Store) HKeys(db uint32, key []byte) ([][]byte, error) {
	_, _, ok, err := s.loadHash(db, key)
	if err != nil || !ok {
		return nil, err
	}
	f, _, err := s.allFields(db, key)
	return f, err
}

// HVals implements HVALS.
func (s *Store) HVals(db uint32, key []byte) ([][]byte, error) {
	_, _, ok, err := s.loadHash(db, key)
	if err != nil || !ok {
		return nil, err
	}
	_, v, err := s.allFields(db, key)
	return v, err
}

// HMGet implements HMGET: one nil slot per missing field.
func (s *Store) HMGet(db uint32, key []byte, fields [][]byte) ([][]byte, error) {
	_, _, ok, err := s.loadHash(db, key)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(fields))
	if !ok {
		return out, nil
	}
	for i, f := range fields {
		v, err := s.Engine.Get(types.EncodeHashFieldKey(db, key, f))
		if err == storage.ErrKeyNotFound {
			continue
		}
		if err != nil {
			return nil, corerr.Storage("get", err)
		}
		out[i] = v
	}
	return out, nil
}

// HIncrBy implements HINCRBY.
func (s *Store) HIncrBy(db uint32, key, field []byte, delta int64) (int64, error) {
	meta, hdr, ok, err := s.loadHash(db, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		meta = types.NewMetadata(types.TypeHash)
	}
	fk := types.EncodeHashFieldKey(db, key, field)
	var base int64
	isNew := false
	cur, gerr := s.Engine.Get(fk)
	switch gerr {
	case nil:
		base, err = types.ParseStoredInt(cur)
		if err != nil {
			return 0, err
		}
	case storage.ErrKeyNotFound:
		isNew = true
	default:
		return 0, corerr.Storage("get", gerr)
	}
	sum, err := types.AddWithOverflowCheck(base, delta)
	if err != nil {
		return 0, err
	}
	batch := &storage.WriteBatch{}
	batch.Put(fk, types.FormatInt(sum))
	if isNew {
		hdr.FieldCount++
	}
	batch.Put(types.EncodePrimaryKey(db, key), types.EncodeMetaAndPayload(meta, types.EncodeHashHeader(hdr)))
	if _, err := s.Engine.Write(batch); err != nil {
		return 0, corerr.Storage("write", err)
	}
	return sum, nil
}

// HIncrByFloat implements HINCRBYFLOAT.
func (s *Store) HIncrByFloat(db uint32, key, field []byte, delta float64) ([]byte, error) {
	meta, hdr, ok, err := s.loadHash(db, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		meta = types.NewMetadata(types.TypeHash)
	}
	fk := types.EncodeHashFieldKey(db, key, field)
	var base float64
	isNew := false
	cur, gerr := s.Engine.Get(fk)
	switch gerr {
	case nil:
		base, err = types.ParseStoredFloat(cur)
		if err != nil {
			return nil, err
		}
	case storage.ErrKeyNotFound:
		isNew = true
	default:
		return nil, corerr.Storage("get", gerr)
	}
	out := types.FormatFloat(base + delta)
	batch := &storage.WriteBatch{}
	batch.Put(fk, out)
	if isNew {
		hdr.FieldCount++
	}
	batch.Put(types.EncodePrimaryKey(db, key), types.EncodeMetaAndPayload(meta, types.EncodeHashHeader(hdr)))
	if _, err := s.Engine.Write(batch); err != nil {
		return nil, corerr.Storage("write", err)
	}
	return out, nil
}

// HRandField implements HRANDFIELD without WITHVALUES; count<0 is treated
// as abs(count) with replacement, so fields may repeat.
func (s *Store) HRandField(db uint32, key []byte, count int64) ([][]byte, error) {
	_, _, ok, err := s.loadHash(db, key)
	if err != nil || !ok {
		return nil, err
	}
	fields, _, err := s.allFields(db, key)
	if err != nil || len(fields) == 0 {
		return nil, err
	}
	if count >= 0 {
		if count > int64(len(fields)) {
			count = int64(len(fields))
		}
		perm := rand.Perm(len(fields))
		out := make([][]byte, count)
		for i := int64(0); i < count; i++ {
			out[i] = fields[perm[i]]
		}
		return out, nil
	}
	n := -count
	out := make([][]byte, n)
	for i := int64(0); i < n; i++ {
		out[i] = fields[rand.Intn(len(fields))]
	}
	return out, nil
}
