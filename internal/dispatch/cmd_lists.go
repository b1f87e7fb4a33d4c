package dispatch

import (
	"bytes"
	"strconv"

	"github.com/edirooss/sabled/internal/corerr"
	"github.com/edirooss/sabled/internal/resp"
)

func (d *Dispatcher) cmdPush(db uint32, argv [][]byte, w *resp.Writer, left, requireExisting bool) error {
	n, err := d.Store.Push(db, argv[1], argv[2:], left, requireExisting)
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(n)
}

func (d *Dispatcher) cmdPop(db uint32, argv [][]byte, w *resp.Writer, left bool) error {
	count := int64(1)
	hasCount := len(argv) > 2
	if hasCount {
		n, err := strconv.ParseInt(string(argv[2]), 10, 64)
		if err != nil || n < 0 {
			return writeErr(w, corerr.NotInteger())
		}
		count = n
	}
	out, ok, err := d.Store.Pop(db, argv[1], count, left)
	if err != nil {
		return writeErr(w, err)
	}
	if !ok {
		if hasCount {
			return w.NilArray()
		}
		return w.NilBulk()
	}
	if !hasCount {
		if len(out) == 0 {
			return w.NilBulk()
		}
		return w.BulkString(out[0])
	}
	if err := w.ArrayHeader(len(out)); err != nil {
		return err
	}
	for _, e := range out {
		if err := w.BulkString(e); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) cmdLLen(db uint32, argv [][]byte, w *resp.Writer) error {
	n, err := d.Store.Len(db, argv[1])
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(n)
}

func (d *Dispatcher) cmdLRange(db uint32, argv [][]byte, w *resp.Writer) error {
	start, err := strconv.ParseInt(string(argv[2]), 10, 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	stop, err := strconv.ParseInt(string(argv[3]), 10, 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	out, err := d.Store.Range(db, argv[1], start, stop)
	if err != nil {
		return writeErr(w, err)
	}
	return writeBulkArray(w, out)
}

func (d *Dispatcher) cmdLIndex(db uint32, argv [][]byte, w *resp.Writer) error {
	idx, err := strconv.ParseInt(string(argv[2]), 10, 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	v, ok, err := d.Store.Index(db, argv[1], idx)
	if err != nil {
		return writeErr(w, err)
	}
	if !ok {
		return w.NilBulk()
	}
	return w.BulkString(v)
}

func (d *Dispatcher) cmdLInsert(db uint32, argv [][]byte, w *resp.Writer) error {
	var before bool
	switch {
	case bytes.EqualFold(argv[2], []byte("BEFORE")):
		before = true
	case bytes.EqualFold(argv[2], []byte("AFTER")):
		before = false
	default:
		return writeErr(w, corerr.Syntax())
	}
	n, err := d.Store.Insert(db, argv[1], before, argv[3], argv[4])
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(n)
}

func (d *Dispatcher) cmdLSet(db uint32, argv [][]byte, w *resp.Writer) error {
	idx, err := strconv.ParseInt(string(argv[2]), 10, 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	if err := d.Store.SetIndex(db, argv[1], idx, argv[3]); err != nil {
		return writeErr(w, err)
	}
	return w.SimpleString("OK")
}

func (d *Dispatcher) cmdLPos(db uint32, argv [][]byte, w *resp.Writer) error {
	rank := int64(1)
	for i := 3; i < len(argv); i += 2 {
		if bytes.EqualFold(argv[i], []byte("RANK")) && i+1 < len(argv) {
			n, err := strconv.ParseInt(string(argv[i+1]), 10, 64)
			if err != nil {
				return writeErr(w, corerr.NotInteger())
			}
			rank = n
		}
	}
	idx, found, err := d.Store.Pos(db, argv[1], argv[2], rank)
	if err != nil {
		return writeErr(w, err)
	}
	if !found {
		return w.NilBulk()
	}
	return w.Integer(idx)
}

func (d *Dispatcher) cmdLTrim(db uint32, argv [][]byte, w *resp.Writer) error {
	start, err := strconv.ParseInt(string(argv[2]), 10, 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	stop, err := strconv.ParseInt(string(argv[3]), 10, 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	if err := d.Store.Trim(db, argv[1], start, stop); err != nil {
		return writeErr(w, err)
	}
	return w.SimpleString("OK")
}

func (d *Dispatcher) cmdLRem(db uint32, argv [][]byte, w *resp.Writer) error {
	count, err := strconv.ParseInt(string(argv[2]), 10, 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	n, err := d.Store.Rem(db, argv[1], count, argv[3])
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(n)
}

func (d *Dispatcher) cmdLMove(db uint32, argv [][]byte, w *resp.Writer) error {
	fromLeft := bytes.EqualFold(argv[3], []byte("LEFT"))
	toLeft := bytes.EqualFold(argv[4], []byte("LEFT"))
	elem, ok, err := d.Store.Move(db, argv[1], argv[2], fromLeft, toLeft)
	if err != nil {
		return writeErr(w, err)
	}
	if !ok {
		return w.NilBulk()
	}
	return w.BulkString(elem)
}

func (d *Dispatcher) cmdRPopLPush(db uint32, argv [][]byte, w *resp.Writer) error {
	elem, ok, err := d.Store.Move(db, argv[1], argv[2], false, true)
	if err != nil {
		return writeErr(w, err)
	}
	if !ok {
		return w.NilBulk()
	}
	return w.BulkString(elem)
}

// cmdLMPop and tryLMPop implement LMPOP/BLMPOP's shared "first non-empty
// of several candidate lists" semantics: LMPOP numkeys key... LEFT|RIGHT
// [COUNT n].
func (d *Dispatcher) cmdLMPop(db uint32, argv [][]byte, w *resp.Writer) error {
	ok, err := d.tryLMPopWrite(db, argv[1:], w)
	if err != nil {
		return err
	}
	if !ok {
		return w.NilArray()
	}
	return nil
}

func (d *Dispatcher) tryLMPopWrite(db uint32, args [][]byte, w *resp.Writer) (bool, error) {
	keys, left, count, err := parseLMPopArgs(args)
	if err != nil {
		return false, writeErr(w, err)
	}
	for _, k := range keys {
		rawKey := k
		tok := d.Locks.Acquire(rawKeysFor(db, [][]byte{rawKey}), true)
		out, ok, err := d.Store.Pop(db, k, count, left)
		tok.Release()
		if err != nil {
			return false, writeErr(w, err)
		}
		if ok && len(out) > 0 {
			if err := w.ArrayHeader(2); err != nil {
				return false, err
			}
			if err := w.BulkString(k); err != nil {
				return false, err
			}
			if err := writeBulkArray(w, out); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

// tryLMPop is the variant used by BLMPOP's poll loop: LMPOP's key list
// isn't known to the registry (numkeys is an argument, not a fixed
// position), so it acquires its own per-key lock rather than relying on
// dispatchBlocking's (empty) outer Acquire.
func (d *Dispatcher) tryLMPop(db uint32, args [][]byte, w *resp.Writer) (bool, error) {
	keys, left, count, err := parseLMPopArgs(args)
	if err != nil {
		return false, writeErr(w, err)
	}
	for _, k := range keys {
		tok := d.Locks.Acquire(rawKeysFor(db, [][]byte{k}), true)
		out, ok, err := d.Store.Pop(db, k, count, left)
		tok.Release()
		if err != nil {
			return false, writeErr(w, err)
		}
		if ok && len(out) > 0 {
			if err := w.ArrayHeader(2); err != nil {
				return false, err
			}
			if err := w.BulkString(k); err != nil {
				return false, err
			}
			if err := writeBulkArray(w, out); err != nil {
				return false, err
			}
			return true, nil
		}
	}
	return false, nil
}

func parseLMPopArgs(args [][]byte) (keys [][]byte, left bool, count int64, err error) {
	if len(args) < 2 {
		return nil, false, 0, corerr.Syntax()
	}
	numKeys, perr := strconv.ParseInt(string(args[0]), 10, 64)
	if perr != nil || numKeys <= 0 || int(numKeys) > len(args)-2 {
		return nil, false, 0, corerr.Argument("numkeys should be greater than 0")
	}
	keys = args[1 : 1+numKeys]
	rest := args[1+numKeys:]
	if len(rest) == 0 {
		return nil, false, 0, corerr.Syntax()
	}
	switch {
	case bytes.EqualFold(rest[0], []byte("LEFT")):
		left = true
	case bytes.EqualFold(rest[0], []byte("RIGHT")):
		left = false
	default:
		return nil, false, 0, corerr.Syntax()
	}
	count = 1
	if len(rest) >= 3 && bytes.EqualFold(rest[1], []byte("COUNT")) {
		n, err := strconv.ParseInt(string(rest[2]), 10, 64)
		if err != nil || n <= 0 {
			return nil, false, 0, corerr.NotInteger()
		}
		count = n
	}
	return keys, left, count, nil
}

func writeBulkArray(w *resp.Writer, items [][]byte) error {
	if err := w.ArrayHeader(len(items)); err != nil {
		return err
	}
	for _, it := range items {
		if err := w.BulkString(it); err != nil {
			return err
		}
	}
	return nil
}
