package dispatch

import (
	"bytes"
	"strconv"

	"github.com/edirooss/sabled/internal/corerr"
	"github.com/edirooss/sabled/internal/handlers"
	"github.com/edirooss/sabled/internal/resp"
)

func parseSetOptions(tokens [][]byte) (handlers.SetOptions, error) {
	var opts handlers.SetOptions
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case bytes.EqualFold(tok, []byte("NX")):
			opts.NX = true
		case bytes.EqualFold(tok, []byte("XX")):
			opts.XX = true
		case bytes.EqualFold(tok, []byte("GET")):
			opts.Get = true
		case bytes.EqualFold(tok, []byte("KEEPTTL")):
			opts.KeepTTL = true
		case bytes.EqualFold(tok, []byte("EX")):
			i++
			if i >= len(tokens) {
				return opts, corerr.Syntax()
			}
			n, err := strconv.ParseInt(string(tokens[i]), 10, 64)
			if err != nil {
				return opts, corerr.NotInteger()
			}
			opts.HasExpireSeconds, opts.ExpireSeconds = true, n
		case bytes.EqualFold(tok, []byte("PX")):
			i++
			if i >= len(tokens) {
				return opts, corerr.Syntax()
			}
			n, err := strconv.ParseInt(string(tokens[i]), 10, 64)
			if err != nil {
				return opts, corerr.NotInteger()
			}
			opts.HasExpireMillis, opts.ExpireMillis = true, n
		case bytes.EqualFold(tok, []byte("EXAT")):
			i++
			if i >= len(tokens) {
				return opts, corerr.Syntax()
			}
			n, err := strconv.ParseInt(string(tokens[i]), 10, 64)
			if err != nil {
				return opts, corerr.NotInteger()
			}
			opts.HasExpireAtSeconds, opts.ExpireAtSeconds = true, n
		case bytes.EqualFold(tok, []byte("PXAT")):
			i++
			if i >= len(tokens) {
				return opts, corerr.Syntax()
			}
			n, err := strconv.ParseInt(string(tokens[i]), 10, 64)
			if err != nil {
				return opts, corerr.NotInteger()
			}
			opts.HasExpireAtMillis, opts.ExpireAtMillis = true, n
		default:
			return opts, corerr.Syntax()
		}
	}
	return opts, nil
}

func (d *Dispatcher) cmdSet(db uint32, argv [][]byte, w *resp.Writer) error {
	opts, err := parseSetOptions(argv[3:])
	if err != nil {
		return writeErr(w, err)
	}
	old, hadOld, applied, err := d.Store.Set(db, argv[1], argv[2], opts)
	if err != nil {
		return writeErr(w, err)
	}
	if opts.Get {
		if !hadOld {
			return w.NilBulk()
		}
		return w.BulkString(old)
	}
	if !applied {
		return w.NilBulk()
	}
	return w.SimpleString("OK")
}

func (d *Dispatcher) cmdGet(db uint32, argv [][]byte, w *resp.Writer) error {
	v, ok, err := d.Store.Get(db, argv[1])
	if err != nil {
		return writeErr(w, err)
	}
	if !ok {
		return w.NilBulk()
	}
	return w.BulkString(v)
}

func (d *Dispatcher) cmdMSet(db uint32, argv [][]byte, w *resp.Writer) error {
	pairs, err := pairsFrom(argv[1:])
	if err != nil {
		return writeErr(w, err)
	}
	if err := d.Store.MSet(db, pairs); err != nil {
		return writeErr(w, err)
	}
	return w.SimpleString("OK")
}

func pairsFrom(tokens [][]byte) ([][2][]byte, error) {
	if len(tokens)%2 != 0 {
		return nil, corerr.Argument("wrong number of arguments for MSET")
	}
	out := make([][2][]byte, 0, len(tokens)/2)
	for i := 0; i < len(tokens); i += 2 {
		out = append(out, [2][]byte{tokens[i], tokens[i+1]})
	}
	return out, nil
}

func (d *Dispatcher) cmdMGet(db uint32, argv [][]byte, w *resp.Writer) error {
	keys := argv[1:]
	if err := w.ArrayHeader(len(keys)); err != nil {
		return err
	}
	for _, k := range keys {
		v, ok, err := d.Store.Get(db, k)
		if err != nil || !ok {
			if err := w.NilBulk(); err != nil {
				return err
			}
			continue
		}
		if err := w.BulkString(v); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) cmdMSetNX(db uint32, argv [][]byte, w *resp.Writer) error {
	pairs, err := pairsFrom(argv[1:])
	if err != nil {
		return writeErr(w, err)
	}
	applied, err := d.Store.MSetNX(db, pairs)
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(boolInt(applied))
}

func (d *Dispatcher) cmdAppend(db uint32, argv [][]byte, w *resp.Writer) error {
	n, err := d.Store.Append(db, argv[1], argv[2])
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(n)
}

func (d *Dispatcher) cmdIncrBy(db uint32, argv [][]byte, w *resp.Writer, delta int64) error {
	n, err := d.Store.IncrBy(db, argv[1], delta)
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(n)
}

func (d *Dispatcher) cmdIncrByArg(db uint32, argv [][]byte, w *resp.Writer, sign int64) error {
	delta, err := strconv.ParseInt(string(argv[2]), 10, 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	n, err := d.Store.IncrBy(db, argv[1], sign*delta)
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(n)
}

func (d *Dispatcher) cmdIncrByFloat(db uint32, argv [][]byte, w *resp.Writer) error {
	delta, err := strconv.ParseFloat(string(argv[2]), 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	v, err := d.Store.IncrByFloat(db, argv[1], delta)
	if err != nil {
		return writeErr(w, err)
	}
	return w.BulkString(v)
}

func (d *Dispatcher) cmdGetDel(db uint32, argv [][]byte, w *resp.Writer) error {
	v, ok, err := d.Store.GetDel(db, argv[1])
	if err != nil {
		return writeErr(w, err)
	}
	if !ok {
		return w.NilBulk()
	}
	return w.BulkString(v)
}

func (d *Dispatcher) cmdGetSet(db uint32, argv [][]byte, w *resp.Writer) error {
	v, err := d.Store.GetSet(db, argv[1], argv[2])
	if err != nil {
		return writeErr(w, err)
	}
	if v == nil {
		return w.NilBulk()
	}
	return w.BulkString(v)
}

func (d *Dispatcher) cmdGetEx(db uint32, argv [][]byte, w *resp.Writer) error {
	var opts handlers.GetExOptions
	tokens := argv[2:]
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case bytes.EqualFold(tok, []byte("PERSIST")):
			opts.Persist = true
		case bytes.EqualFold(tok, []byte("EX")):
			i++
			n, err := strconv.ParseInt(string(tokens[i]), 10, 64)
			if err != nil {
				return writeErr(w, corerr.NotInteger())
			}
			opts.HasExpireSeconds, opts.ExpireSeconds = true, n
		case bytes.EqualFold(tok, []byte("PX")):
			i++
			n, err := strconv.ParseInt(string(tokens[i]), 10, 64)
			if err != nil {
				return writeErr(w, corerr.NotInteger())
			}
			opts.HasExpireMillis, opts.ExpireMillis = true, n
		case bytes.EqualFold(tok, []byte("EXAT")):
			i++
			n, err := strconv.ParseInt(string(tokens[i]), 10, 64)
			if err != nil {
				return writeErr(w, corerr.NotInteger())
			}
			opts.HasExpireAtSeconds, opts.ExpireAtSeconds = true, n
		case bytes.EqualFold(tok, []byte("PXAT")):
			i++
			n, err := strconv.ParseInt(string(tokens[i]), 10, 64)
			if err != nil {
				return writeErr(w, corerr.NotInteger())
			}
			opts.HasExpireAtMillis, opts.ExpireAtMillis = true, n
		default:
			return writeErr(w, corerr.Syntax())
		}
	}
	v, ok, err := d.Store.GetEx(db, argv[1], opts)
	if err != nil {
		return writeErr(w, err)
	}
	if !ok {
		return w.NilBulk()
	}
	return w.BulkString(v)
}

func (d *Dispatcher) cmdGetRange(db uint32, argv [][]byte, w *resp.Writer) error {
	start, err := strconv.ParseInt(string(argv[2]), 10, 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	end, err := strconv.ParseInt(string(argv[3]), 10, 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	v, err := d.Store.GetRange(db, argv[1], start, end)
	if err != nil {
		return writeErr(w, err)
	}
	return w.BulkString(v)
}

func (d *Dispatcher) cmdSetRange(db uint32, argv [][]byte, w *resp.Writer) error {
	offset, err := strconv.ParseInt(string(argv[2]), 10, 64)
	if err != nil || offset < 0 {
		return writeErr(w, corerr.NotInteger())
	}
	n, err := d.Store.SetRange(db, argv[1], offset, argv[3])
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(n)
}

func (d *Dispatcher) cmdStrlen(db uint32, argv [][]byte, w *resp.Writer) error {
	n, err := d.Store.Strlen(db, argv[1])
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(n)
}

func (d *Dispatcher) cmdSetNX(db uint32, argv [][]byte, w *resp.Writer) error {
	applied, err := d.Store.SetNX(db, argv[1], argv[2])
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(boolInt(applied))
}

func (d *Dispatcher) cmdSetEX(db uint32, argv [][]byte, w *resp.Writer) error {
	seconds, err := strconv.ParseInt(string(argv[2]), 10, 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	if err := d.Store.SetEX(db, argv[1], argv[3], seconds); err != nil {
		return writeErr(w, err)
	}
	return w.SimpleString("OK")
}

func (d *Dispatcher) cmdPSetEX(db uint32, argv [][]byte, w *resp.Writer) error {
	millis, err := strconv.ParseInt(string(argv[2]), 10, 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	if err := d.Store.PSetEX(db, argv[1], argv[3], millis); err != nil {
		return writeErr(w, err)
	}
	return w.SimpleString("OK")
}

func (d *Dispatcher) cmdLCS(db uint32, argv [][]byte, w *resp.Writer) error {
	out, err := d.Store.LCS(db, argv[1], argv[2])
	if err != nil {
		return writeErr(w, err)
	}
	return w.BulkString(out)
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
