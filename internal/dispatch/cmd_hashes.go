package dispatch

import (
	"strconv"

	"github.com/edirooss/sabled/internal/corerr"
	"github.com/edirooss/sabled/internal/resp"
)

func (d *Dispatcher) cmdHSet(db uint32, argv [][]byte, w *resp.Writer, isHMSet bool) error {
	pairs, err := pairsFrom(argv[2:])
	if err != nil {
		return writeErr(w, err)
	}
	created, err := d.Store.HSet(db, argv[1], pairs)
	if err != nil {
		return writeErr(w, err)
	}
	if isHMSet {
		return w.SimpleString("OK")
	}
	return w.Integer(created)
}

func (d *Dispatcher) cmdHGet(db uint32, argv [][]byte, w *resp.Writer) error {
	v, ok, err := d.Store.HGet(db, argv[1], argv[2])
	if err != nil {
		return writeErr(w, err)
	}
	if !ok {
		return w.NilBulk()
	}
	return w.BulkString(v)
}

func (d *Dispatcher) cmdHDel(db uint32, argv [][]byte, w *resp.Writer) error {
	n, err := d.Store.HDel(db, argv[1], argv[2:])
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(n)
}

func (d *Dispatcher) cmdHLen(db uint32, argv [][]byte, w *resp.Writer) error {
	n, err := d.Store.HLen(db, argv[1])
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(n)
}

func (d *Dispatcher) cmdHExists(db uint32, argv [][]byte, w *resp.Writer) error {
	ok, err := d.Store.HExists(db, argv[1], argv[2])
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(boolInt(ok))
}

func (d *Dispatcher) cmdHGetAll(db uint32, argv [][]byte, w *resp.Writer) error {
	fields, values, err := d.Store.HGetAll(db, argv[1])
	if err != nil {
		return writeErr(w, err)
	}
	if err := w.ArrayHeader(2 * len(fields)); err != nil {
		return err
	}
	for i := range fields {
		if err := w.BulkString(fields[i]); err != nil {
			return err
		}
		if err := w.BulkString(values[i]); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) cmdHIncrBy(db uint32, argv [][]byte, w *resp.Writer) error {
	delta, err := strconv.ParseInt(string(argv[3]), 10, 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	n, err := d.Store.HIncrBy(db, argv[1], argv[2], delta)
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(n)
}

func (d *Dispatcher) cmdHIncrByFloat(db uint32, argv [][]byte, w *resp.Writer) error {
	delta, err := strconv.ParseFloat(string(argv[3]), 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	v, err := d.Store.HIncrByFloat(db, argv[1], argv[2], delta)
	if err != nil {
		return writeErr(w, err)
	}
	return w.BulkString(v)
}

func (d *Dispatcher) cmdHKeys(db uint32, argv [][]byte, w *resp.Writer) error {
	out, err := d.Store.HKeys(db, argv[1])
	if err != nil {
		return writeErr(w, err)
	}
	return writeBulkArray(w, out)
}

func (d *Dispatcher) cmdHVals(db uint32, argv [][]byte, w *resp.Writer) error {
	out, err := d.Store.HVals(db, argv[1])
	if err != nil {
		return writeErr(w, err)
	}
	return writeBulkArray(w, out)
}

func (d *Dispatcher) cmdHMGet(db uint32, argv [][]byte, w *resp.Writer) error {
	out, err := d.Store.HMGet(db, argv[1], argv[2:])
	if err != nil {
		return writeErr(w, err)
	}
	if err := w.ArrayHeader(len(out)); err != nil {
		return err
	}
	for _, v := range out {
		if err := w.BulkString(v); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) cmdHRandField(db uint32, argv [][]byte, w *resp.Writer) error {
	count := int64(1)
	hasCount := len(argv) > 2
	if hasCount {
		n, err := strconv.ParseInt(string(argv[2]), 10, 64)
		if err != nil {
			return writeErr(w, corerr.NotInteger())
		}
		count = n
	}
	out, err := d.Store.HRandField(db, argv[1], count)
	if err != nil {
		return writeErr(w, err)
	}
	if !hasCount {
		if len(out) == 0 {
			return w.NilBulk()
		}
		return w.BulkString(out[0])
	}
	return writeBulkArray(w, out)
}
