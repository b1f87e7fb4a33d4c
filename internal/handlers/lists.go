package handlers

import (
	"github.com/edirooss/sabled/internal/corerr"
	"github.com/edirooss/sabled/internal/storage"
	"github.com/edirooss/sabled/internal/types"
)

// loadList returns the decoded ListHeader for db/key, or ok=false if the
// key is absent. A live key of a different type is a WRONGTYPE error.
func (s *Store) loadList(db uint32, key []byte) (types.Metadata, types.ListHeader, bool, error) {
	meta, payload, ok, err := s.loadPrimary(db, key)
	if err != nil || !ok {
		return meta, types.ListHeader{}, false, err
	}
	if meta.Type != types.TypeList {
		return meta, types.ListHeader{}, false, corerr.WrongType()
	}
	hdr, derr := types.DecodeListHeader(payload)
	if derr != nil {
		return meta, types.ListHeader{}, false, corerr.Storage("decode-list-header", derr)
	}
	return meta, hdr, true, nil
}

func (s *Store) loadNode(db uint32, key []byte, id uint64) (types.ListNode, error) {
	raw, err := s.Engine.Get(types.EncodeListNodeKey(db, key, id))
	if err != nil {
		return types.ListNode{}, corerr.Storage("get-node", err)
	}
	n, derr := types.DecodeListNodeValue(raw)
	if derr != nil {
		return types.ListNode{}, corerr.Storage("decode-node", derr)
	}
	return n, nil
}

// Push implements LPUSH/RPUSH (and the X variants via requireExisting).
// elems are appended in argument order: for LPUSH each successive element
// becomes the new head, matching Redis's "prepend one at a time" semantics.
func (s *Store) Push(db uint32, key []byte, elems [][]byte, left, requireExisting bool) (int64, error) {
	meta, hdr, ok, err := s.loadList(db, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		if requireExisting {
			return 0, nil
		}
		meta = types.NewMetadata(types.TypeList)
		hdr = types.ListHeader{NextNodeID: 1}
	}

	batch := &storage.WriteBatch{}
	for _, e := range elems {
		id := hdr.NextNodeID
		hdr.NextNodeID++
		if left {
			s.linkHead(batch, db, key, &hdr, id, e)
		} else {
			s.linkTail(batch, db, key, &hdr, id, e)
		}
		hdr.Length++
	}
	batch.Put(types.EncodePrimaryKey(db, key), types.EncodeMetaAndPayload(meta, types.EncodeListHeader(hdr)))
	if _, err := s.Engine.Write(batch); err != nil {
		return 0, corerr.Storage("write", err)
	}
	return int64(hdr.Length), nil
}

func (s *Store) linkHead(batch *storage.WriteBatch, db uint32, key []byte, hdr *types.ListHeader, id uint64, elem []byte) {
	node := types.ListNode{Prev: 0, Next: hdr.Head, Elem: elem}
	if hdr.Head != 0 {
		old, err := s.stagedOrLoadNode(batch, db, key, hdr.Head)
		if err == nil {
			old.Prev = id
			batch.Put(types.EncodeListNodeKey(db, key, hdr.Head), types.EncodeListNodeValue(old))
		}
	} else {
		hdr.Tail = id
	}
	hdr.Head = id
	batch.Put(types.EncodeListNodeKey(db, key, id), types.EncodeListNodeValue(node))
}

func (s *Store) linkTail(batch *storage.WriteBatch, db uint32, key []byte, hdr *types.ListHeader, id uint64, elem []byte) {
	node := types.ListNode{Prev: hdr.Tail, Next: 0, Elem: elem}
	if hdr.Tail != 0 {
		old, err := s.stagedOrLoadNode(batch, db, key, hdr.Tail)
		if err == nil {
			old.Next = id
			batch.Put(types.EncodeListNodeKey(db, key, hdr.Tail), types.EncodeListNodeValue(old))
		}
	} else {
		hdr.Head = id
	}
	hdr.Tail = id
	batch.Put(types.EncodeListNodeKey(db, key, id), types.EncodeListNodeValue(node))
}

// stagedOrLoadNode returns node id as last staged in batch (a node pushed
// earlier in the same Push call), falling back to the engine.
func (s *Store) stagedOrLoadNode(batch *storage.WriteBatch, db uint32, key []byte, id uint64) (types.ListNode, error) {
	nk := string(types.EncodeListNodeKey(db, key, id))
	for i := len(batch.Records) - 1; i >= 0; i-- {
		if r := batch.Records[i]; r.Kind == storage.KindPut && string(r.Key) == nk {
			return types.DecodeListNodeValue(r.Value)
		}
	}
	return s.loadNode(db, key, id)
}

// Pop implements LPOP/RPOP with an optional count; elements are returned
// in pop order. ok=false means the key didn't exist.
func (s *Store) Pop(db uint32, key []byte, count int64, left bool) ([][]byte, bool, error) {
	meta, hdr, ok, err := s.loadList(db, key)
	if err != nil || !ok {
		return nil, false, err
	}

	batch := &storage.WriteBatch{}
	var out [][]byte
	for i := int64(0); i < count && hdr.Length > 0; i++ {
		var id uint64
		if left {
			id = hdr.Head
		} else {
			id = hdr.Tail
		}
		node, err := s.loadNode(db, key, id)
		if err != nil {
			return out, true, err
		}
		out = append(out, node.Elem)
		s.unlink(batch, db, key, &hdr, id, node)
		hdr.Length--
	}

	if hdr.Length == 0 {
		batch.Delete(types.EncodePrimaryKey(db, key))
	} else {
		batch.Put(types.EncodePrimaryKey(db, key), types.EncodeMetaAndPayload(meta, types.EncodeListHeader(hdr)))
	}
	if _, err := s.Engine.Write(batch); err != nil {
		return out, true, corerr.Storage("write", err)
	}
	return out, true, nil
}

func (s *Store) unlink(batch *storage.WriteBatch, db uint32, key []byte, hdr *types.ListHeader, id uint64, node types.ListNode) {
	batch.Delete(types.EncodeListNodeKey(db, key, id))
	if node.Prev != 0 {
		prev, err := s.loadNode(db, key, node.Prev)
		if err == nil {
			prev.Next = node.Next
			batch.Put(types.EncodeListNodeKey(db, key, node.Prev), types.EncodeListNodeValue(prev))
		}
	} else {
		hdr.Head = node.Next
	}
	if node.Next != 0 {
		next, err := s.loadNode(db, key, node.Next)
		if err == nil {
			next.Prev = node.Prev
			batch.Put(types.EncodeListNodeKey(db, key, node.Next), types.EncodeListNodeValue(next))
		}
	} else {
		hdr.Tail = node.Prev
	}
}

// Len implements LLEN.
func (s *Store) Len(db uint32, key []byte) (int64, error) {
	_, hdr, ok, err := s.loadList(db, key)
	if err != nil || !ok {
		return 0, err
	}
	return int64(hdr.Length), nil
}

// walk returns every element from head to tail (snapshot), used by the
// range/index/insert/remove/trim operations below, none of which are on
// a hot path that needs node-by-node streaming at the scale this server
// targets.
func (s *Store) walk(db uint32, key []byte, hdr types.ListHeader) ([]uint64, []types.ListNode, error) {
	ids := make([]uint64, 0, hdr.Length)
	nodes := make([]types.ListNode, 0, hdr.Length)
	for id := hdr.Head; id != 0; {
		n, err := s.loadNode(db, key, id)
		if err != nil {
			return nil, nil, err
		}
		ids = append(ids, id)
		nodes = append(nodes, n)
		id = n.Next
	}
	return ids, nodes, nil
}

// Range implements LRANGE.
func (s *Store) Range(db uint32, key []byte, start, stop int64) ([][]byte, error) {
	_, hdr, ok, err := s.loadList(db, key)
	if err != nil || !ok {
		return nil, err
	}
	_, nodes, err := s.walk(db, key, hdr)
	if err != nil {
		return nil, err
	}
	n := int64(len(nodes))
	start, stop = clampRange(start, stop, n)
	if start > stop || n == 0 {
		return [][]byte{}, nil
	}
	out := make([][]byte, 0, stop-start+1)
	for i := start; i <= stop; i++ {
		out = append(out, nodes[i].Elem)
	}
	return out, nil
}

// Index implements LINDEX.
func (s *Store) Index(db uint32, key []byte, index int64) ([]byte, bool, error) {
	_, hdr, ok, err := s.loadList(db, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_, nodes, err := s.walk(db, key, hdr)
	if err != nil {
		return nil, false, err
	}
	n := int64(len(nodes))
	if index < 0 {
		index = n + index
	}
	if index < 0 || index >= n {
		return nil, false, nil
	}
	return nodes[index].Elem, true, nil
}

// Set implements LSET.
func (s *Store) SetIndex(db uint32, key []byte, index int64, value []byte) error {
	_, hdr, ok, err := s.loadList(db, key)
	if err != nil {
		return err
	}
	if !ok {
		return corerr.Argument("no such key")
	}
	ids, nodes, err := s.walk(db, key, hdr)
	if err != nil {
		return err
	}
	n := int64(len(nodes))
	if index < 0 {
		index = n + index
	}
	if index < 0 || index >= n {
		return corerr.Argument("index out of range")
	}
	node := nodes[index]
	node.Elem = value
	batch := &storage.WriteBatch{}
	batch.Put(types.EncodeListNodeKey(db, key, ids[index]), types.EncodeListNodeValue(node))
	if _, err := s.Engine.Write(batch); err != nil {
		return corerr.Storage("write", err)
	}
	return nil
}

// Insert implements LINSERT, returning the new length, -1 if the pivot
// wasn't found, or 0 if the key doesn't exist.
func (s *Store) Insert(db uint32, key []byte, before bool, pivot, value []byte) (int64, error) {
	meta, hdr, ok, err := s.loadList(db, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	ids, nodes, err := s.walk(db, key, hdr)
	if err != nil {
		return 0, err
	}
	idx := -1
	for i, n := range nodes {
		if string(n.Elem) == string(pivot) {
			idx = i
			break
		}
	}
	if idx == -1 {
		return -1, nil
	}

	batch := &storage.WriteBatch{}
	newID := hdr.NextNodeID
	hdr.NextNodeID++

	var prevID, nextID uint64
	if before {
		if idx == 0 {
			prevID, nextID = 0, ids[0]
		} else {
			prevID, nextID = ids[idx-1], ids[idx]
		}
	} else {
		if idx == len(ids)-1 {
			prevID, nextID = ids[idx], 0
		} else {
			prevID, nextID = ids[idx], ids[idx+1]
		}
	}

	newNode := types.ListNode{Prev: prevID, Next: nextID, Elem: value}
	batch.Put(types.EncodeListNodeKey(db, key, newID), types.EncodeListNodeValue(newNode))

	if prevID != 0 {
		p, _ := s.loadNode(db, key, prevID)
		p.Next = newID
		batch.Put(types.EncodeListNodeKey(db, key, prevID), types.EncodeListNodeValue(p))
	} else {
		hdr.Head = newID
	}
	if nextID != 0 {
		nx, _ := s.loadNode(db, key, nextID)
		nx.Prev = newID
		batch.Put(types.EncodeListNodeKey(db, key, nextID), types.EncodeListNodeValue(nx))
	} else {
		hdr.Tail = newID
	}
	hdr.Length++
	batch.Put(types.EncodePrimaryKey(db, key), types.EncodeMetaAndPayload(meta, types.EncodeListHeader(hdr)))
	if _, err := s.Engine.Write(batch); err != nil {
		return 0, corerr.Storage("write", err)
	}
	return int64(hdr.Length), nil
}

// Pos implements LPOS, returning the matched index; ok=false means no match
// (or no such key).
func (s *Store) Pos(db uint32, key []byte, elem []byte, rank int64) (int64, bool, error) {
	_, hdr, ok, err := s.loadList(db, key)
	if err != nil || !ok {
		return 0, false, err
	}
	_, nodes, err := s.walk(db, key, hdr)
	if err != nil {
		return 0, false, err
	}
	if rank >= 0 {
		skip := rank
		if skip == 0 {
			skip = 1
		}
		for i, n := range nodes {
			if string(n.Elem) == string(elem) {
				skip--
				if skip == 0 {
					return int64(i), true, nil
				}
			}
		}
		return 0, false, nil
	}
	skip := -rank
	for i := len(nodes) - 1; i >= 0; i-- {
		if string(nodes[i].Elem) == string(elem) {
			skip--
			if skip == 0 {
				return int64(i), true, nil
			}
		}
	}
	return 0, false, nil
}

// Trim implements LTRIM.
func (s *Store) Trim(db uint32, key []byte, start, stop int64) error {
	meta, hdr, ok, err := s.loadList(db, key)
	if err != nil || !ok {
		return err
	}
	ids, nodes, err := s.walk(db, key, hdr)
	if err != nil {
		return err
	}
	n := int64(len(nodes))
	start, stop = clampRange(start, stop, n)

	batch := &storage.WriteBatch{}
	if start > stop || n == 0 {
		batch.Delete(types.EncodePrimaryKey(db, key))
		for _, id := range ids {
			batch.Delete(types.EncodeListNodeKey(db, key, id))
		}
		_, err := s.Engine.Write(batch)
		return err
	}

	for i, id := range ids {
		if int64(i) < start || int64(i) > stop {
			batch.Delete(types.EncodeListNodeKey(db, key, id))
		}
	}
	newHdr := types.ListHeader{NextNodeID: hdr.NextNodeID, Length: uint64(stop - start + 1), Head: ids[start], Tail: ids[stop]}
	if start > 0 {
		first, _ := s.loadNode(db, key, ids[start])
		first.Prev = 0
		batch.Put(types.EncodeListNodeKey(db, key, ids[start]), types.EncodeListNodeValue(first))
	}
	if stop < n-1 {
		last, _ := s.loadNode(db, key, ids[stop])
		last.Next = 0
		batch.Put(types.EncodeListNodeKey(db, key, ids[stop]), types.EncodeListNodeValue(last))
	}
	batch.Put(types.EncodePrimaryKey(db, key), types.EncodeMetaAndPayload(meta, types.EncodeListHeader(newHdr)))
	if _, err := s.Engine.Write(batch); err != nil {
		return corerr.Storage("write", err)
	}
	return nil
}

// Rem implements LREM: count>0 head-to-tail, count<0 tail-to-head, 0 = all.
func (s *Store) Rem(db uint32, key []byte, count int64, elem []byte) (int64, error) {
	meta, hdr, ok, err := s.loadList(db, key)
	if err != nil || !ok {
		return 0, err
	}
	ids, nodes, err := s.walk(db, key, hdr)
	if err != nil {
		return 0, err
	}

	toRemove := make(map[int]bool)
	var removed int64
	limit := count
	if limit < 0 {
		limit = -limit
	}
	if count >= 0 {
		for i, n := range nodes {
			if limit != 0 && removed >= limit {
				break
			}
			if string(n.Elem) == string(elem) {
				toRemove[i] = true
				removed++
			}
		}
	} else {
		for i := len(nodes) - 1; i >= 0; i-- {
			if removed >= limit {
				break
			}
			if string(nodes[i].Elem) == string(elem) {
				toRemove[i] = true
				removed++
			}
		}
	}
	if removed == 0 {
		return 0, nil
	}

	batch := &storage.WriteBatch{}
	for i := range toRemove {
		s.unlink(batch, db, key, &hdr, ids[i], nodes[i])
	}
	hdr.Length -= uint64(removed)
	if hdr.Length == 0 {
		batch.Delete(types.EncodePrimaryKey(db, key))
	} else {
		batch.Put(types.EncodePrimaryKey(db, key), types.EncodeMetaAndPayload(meta, types.EncodeListHeader(hdr)))
	}
	if _, err := s.Engine.Write(batch); err != nil {
		return 0, corerr.Storage("write", err)
	}
	return removed, nil
}

// Move implements LMOVE/RPOPLPUSH's shared core: pop one element from src
// and push it onto dst. Caller holds an exclusive lock on both keys
// (internal/lock.Manager.Acquire with exclusive=true, taken by the
// dispatcher), so this needs no extra locking.
func (s *Store) Move(db uint32, src, dst []byte, fromLeft, toLeft bool) ([]byte, bool, error) {
	popped, ok, err := s.Pop(db, src, 1, fromLeft)
	if err != nil || !ok || len(popped) == 0 {
		return nil, false, err
	}
	elem := popped[0]
	if _, err := s.Push(db, dst, [][]byte{elem}, toLeft, false); err != nil {
		return nil, false, err
	}
	return elem, true, nil
}
