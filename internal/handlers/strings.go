package handlers

import (
	"github.com/edirooss/sabled/internal/corerr"
	"github.com/edirooss/sabled/internal/storage"
	"github.com/edirooss/sabled/internal/types"
)

// SetOptions captures SET's modifier surface (spec §4.3).
type SetOptions struct {
	NX, XX, Get, KeepTTL bool
	HasExpireSeconds     bool
	ExpireSeconds        int64
	HasExpireMillis      bool
	ExpireMillis         int64
	HasExpireAtSeconds   bool
	ExpireAtSeconds      int64
	HasExpireAtMillis    bool
	ExpireAtMillis       int64
}

// Set implements SET, returning (oldValue, hadOld, applied, err). oldValue
// is populated whenever the existing value is a string, whether or not
// opts.Get is set; a non-string existing value is a WRONGTYPE error only
// when opts.Get is set.
func (s *Store) Set(db uint32, key, value []byte, opts SetOptions) (oldValue []byte, hadOld bool, applied bool, err error) {
	meta, payload, ok, err := s.loadPrimary(db, key)
	if err != nil {
		return nil, false, false, err
	}
	if ok {
		if err := requireType(meta, ok, types.TypeString); err != nil && opts.Get {
			return nil, false, false, err
		}
		if meta.Type == types.TypeString {
			oldValue, hadOld = payload, true
		}
	}
	if opts.NX && ok {
		return oldValue, hadOld, false, nil
	}
	if opts.XX && !ok {
		return oldValue, hadOld, false, nil
	}

	newMeta := types.NewMetadata(types.TypeString)
	now := s.Now()
	switch {
	case opts.KeepTTL && ok:
		newMeta = newMeta.WithExpireAtMicros(meta.ExpireAtMicros)
	case opts.HasExpireSeconds:
		newMeta = newMeta.WithTTLSeconds(opts.ExpireSeconds, now)
	case opts.HasExpireMillis:
		newMeta = newMeta.WithExpireAtMicros(now.UnixMicro() + opts.ExpireMillis*1000)
	case opts.HasExpireAtSeconds:
		newMeta = newMeta.WithExpireAtMicros(opts.ExpireAtSeconds * 1_000_000)
	case opts.HasExpireAtMillis:
		newMeta = newMeta.WithExpireAtMicros(opts.ExpireAtMillis * 1000)
	}

	if ok && meta.Type != types.TypeString {
		if err := s.purgeSubstructure(db, key, meta.Type); err != nil {
			return nil, false, false, err
		}
	}
	if err := s.rewritePrimary(db, key, newMeta, value); err != nil {
		return nil, false, false, err
	}
	return oldValue, hadOld, true, nil
}

func (s *Store) purgeSubstructure(db uint32, key []byte, t types.ValueType) error {
	batch := &storage.WriteBatch{}
	switch t {
	case types.TypeList:
		s.deleteListNodesInto(batch, db, key)
	case types.TypeHash:
		s.deleteHashFieldsInto(batch, db, key)
	}
	if batch.Len() == 0 {
		return nil
	}
	if _, err := s.Engine.Write(batch); err != nil {
		return corerr.Storage("write", err)
	}
	return nil
}

// Get implements GET: (value, found, err); found=false with no error on miss.
func (s *Store) Get(db uint32, key []byte) ([]byte, bool, error) {
	meta, payload, ok, err := s.loadPrimary(db, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if meta.Type != types.TypeString {
		return nil, false, corerr.WrongType()
	}
	return payload, true, nil
}

// MSet implements MSET unconditionally.
func (s *Store) MSet(db uint32, pairs [][2][]byte) error {
	batch := &storage.WriteBatch{}
	for _, p := range pairs {
		batch.Put(types.EncodePrimaryKey(db, p[0]), types.EncodeMetaAndPayload(types.NewMetadata(types.TypeString), p[1]))
	}
	if _, err := s.Engine.Write(batch); err != nil {
		return corerr.Storage("write", err)
	}
	return nil
}

// MSetNX implements MSETNX: all-or-nothing, true iff every key was absent.
func (s *Store) MSetNX(db uint32, pairs [][2][]byte) (bool, error) {
	for _, p := range pairs {
		if _, ok, err := s.Exists(db, p[0]); err != nil {
			return false, err
		} else if ok {
			return false, nil
		}
	}
	if err := s.MSet(db, pairs); err != nil {
		return false, err
	}
	return true, nil
}

// Append implements APPEND, returning the new length.
func (s *Store) Append(db uint32, key, suffix []byte) (int64, error) {
	meta, payload, ok, err := s.loadPrimary(db, key)
	if err != nil {
		return 0, err
	}
	if ok && meta.Type != types.TypeString {
		return 0, corerr.WrongType()
	}
	if !ok {
		meta = types.NewMetadata(types.TypeString)
		payload = nil
	}
	newVal := append(append([]byte(nil), payload...), suffix...)
	if err := s.rewritePrimary(db, key, meta, newVal); err != nil {
		return 0, err
	}
	return int64(len(newVal)), nil
}

// IncrBy implements INCR/DECR/INCRBY/DECRBY.
func (s *Store) IncrBy(db uint32, key []byte, delta int64) (int64, error) {
	meta, payload, ok, err := s.loadPrimary(db, key)
	if err != nil {
		return 0, err
	}
	if ok && meta.Type != types.TypeString {
		return 0, corerr.WrongType()
	}
	var base int64
	if ok {
		base, err = types.ParseStoredInt(payload)
		if err != nil {
			return 0, err
		}
	} else {
		meta = types.NewMetadata(types.TypeString)
	}
	sum, err := types.AddWithOverflowCheck(base, delta)
	if err != nil {
		return 0, err
	}
	if err := s.rewritePrimary(db, key, meta, types.FormatInt(sum)); err != nil {
		return 0, err
	}
	return sum, nil
}

// IncrByFloat implements INCRBYFLOAT.
func (s *Store) IncrByFloat(db uint32, key []byte, delta float64) ([]byte, error) {
	meta, payload, ok, err := s.loadPrimary(db, key)
	if err != nil {
		return nil, err
	}
	if ok && meta.Type != types.TypeString {
		return nil, corerr.WrongType()
	}
	var base float64
	if ok {
		base, err = types.ParseStoredFloat(payload)
		if err != nil {
			return nil, err
		}
	} else {
		meta = types.NewMetadata(types.TypeString)
	}
	out := types.FormatFloat(base + delta)
	if err := s.rewritePrimary(db, key, meta, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDel implements GETDEL.
func (s *Store) GetDel(db uint32, key []byte) ([]byte, bool, error) {
	v, ok, err := s.Get(db, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if err := s.purgeKey(db, key, types.TypeString); err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// GetSet implements GETSET: returns the old value (nil if absent).
func (s *Store) GetSet(db uint32, key, value []byte) ([]byte, error) {
	old, _, _, err := s.Set(db, key, value, SetOptions{Get: true})
	return old, err
}

// GetExOptions mirrors SetOptions' expiry surface for GETEX (no NX/XX/GET).
type GetExOptions struct {
	Persist            bool
	HasExpireSeconds   bool
	ExpireSeconds      int64
	HasExpireMillis    bool
	ExpireMillis       int64
	HasExpireAtSeconds bool
	ExpireAtSeconds    int64
	HasExpireAtMillis  bool
	ExpireAtMillis     int64
}

// GetEx implements GETEX: read the value and optionally mutate its TTL.
func (s *Store) GetEx(db uint32, key []byte, opts GetExOptions) ([]byte, bool, error) {
	meta, payload, ok, err := s.loadPrimary(db, key)
	if err != nil || !ok {
		return nil, false, err
	}
	if meta.Type != types.TypeString {
		return nil, false, corerr.WrongType()
	}
	now := s.Now()
	switch {
	case opts.Persist:
		meta = meta.WithoutTTL()
	case opts.HasExpireSeconds:
		meta = meta.WithTTLSeconds(opts.ExpireSeconds, now)
	case opts.HasExpireMillis:
		meta = meta.WithExpireAtMicros(now.UnixMicro() + opts.ExpireMillis*1000)
	case opts.HasExpireAtSeconds:
		meta = meta.WithExpireAtMicros(opts.ExpireAtSeconds * 1_000_000)
	case opts.HasExpireAtMillis:
		meta = meta.WithExpireAtMicros(opts.ExpireAtMillis * 1000)
	default:
		return payload, true, nil
	}
	if err := s.rewritePrimary(db, key, meta, payload); err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// GetRange implements GETRANGE/SUBSTR with Redis's negative-index clamping.
func (s *Store) GetRange(db uint32, key []byte, start, end int64) ([]byte, error) {
	v, ok, err := s.Get(db, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []byte{}, nil
	}
	n := int64(len(v))
	start, end = clampRange(start, end, n)
	if start > end || n == 0 {
		return []byte{}, nil
	}
	return v[start : end+1], nil
}

func clampRange(start, end, n int64) (int64, int64) {
	if start < 0 {
		start = n + start
		if start < 0 {
			start = 0
		}
	}
	if end < 0 {
		end = n + end
		if end < 0 {
			end = -1
		}
	}
	if end >= n {
		end = n - 1
	}
	return start, end
}

// SetRange implements SETRANGE, zero-padding as needed, returning the new length.
func (s *Store) SetRange(db uint32, key []byte, offset int64, value []byte) (int64, error) {
	meta, payload, ok, err := s.loadPrimary(db, key)
	if err != nil {
		return 0, err
	}
	if ok && meta.Type != types.TypeString {
		return 0, corerr.WrongType()
	}
	if !ok {
		meta = types.NewMetadata(types.TypeString)
	}
	needed := offset + int64(len(value))
	buf := payload
	if int64(len(buf)) < needed {
		grown := make([]byte, needed)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[offset:], value)
	if err := s.rewritePrimary(db, key, meta, buf); err != nil {
		return 0, err
	}
	return int64(len(buf)), nil
}

// Strlen implements STRLEN.
func (s *Store) Strlen(db uint32, key []byte) (int64, error) {
	v, ok, err := s.Get(db, key)
	if err != nil || !ok {
		return 0, err
	}
	return int64(len(v)), nil
}

// SetNX implements SETNX.
func (s *Store) SetNX(db uint32, key, value []byte) (bool, error) {
	_, _, applied, err := s.Set(db, key, value, SetOptions{NX: true})
	return applied, err
}

// SetEX/PSetEX implement fixed-TTL unconditional sets.
func (s *Store) SetEX(db uint32, key, value []byte, seconds int64) error {
	_, _, _, err := s.Set(db, key, value, SetOptions{HasExpireSeconds: true, ExpireSeconds: seconds})
	return err
}

func (s *Store) PSetEX(db uint32, key, value []byte, millis int64) error {
	_, _, _, err := s.Set(db, key, value, SetOptions{HasExpireMillis: true, ExpireMillis: millis})
	return err
}

// LCS implements the longest common subsequence between two string keys,
// returning the subsequence bytes (no LEN/IDX reporting modes).
func (s *Store) LCS(db uint32, keyA, keyB []byte) ([]byte, error) {
	a, _, err := s.Get(db, keyA)
	if err != nil {
		return nil, err
	}
	b, _, err := s.Get(db, keyB)
	if err != nil {
		return nil, err
	}
	return longestCommonSubsequence(a, b), nil
}

func longestCommonSubsequence(a, b []byte) []byte {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}
	out := make([]byte, dp[n][m])
	i, j, k := n, m, len(out)
	for i > 0 && j > 0 {
		switch {
		case a[i-1] == b[j-1]:
			k--
			out[k] = a[i-1]
			i--
			j--
		case dp[i-1][j] >= dp[i][j-1]:
			i--
		default:
			j--
		}
	}
	return out
}
