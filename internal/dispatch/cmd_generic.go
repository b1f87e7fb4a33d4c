package dispatch

import (
	"bytes"
	"strconv"

	"github.com/edirooss/sabled/internal/corerr"
	"github.com/edirooss/sabled/internal/resp"
)

func (d *Dispatcher) cmdDel(db uint32, argv [][]byte, w *resp.Writer) error {
	n, err := d.Store.Del(db, argv[1:])
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(n)
}

func (d *Dispatcher) cmdExists(db uint32, argv [][]byte, w *resp.Writer) error {
	n, err := d.Store.ExistsCount(db, argv[1:])
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(n)
}

func (d *Dispatcher) cmdExpire(db uint32, argv [][]byte, w *resp.Writer) error {
	seconds, err := strconv.ParseInt(string(argv[2]), 10, 64)
	if err != nil {
		return writeErr(w, corerr.NotInteger())
	}
	var nx, xx, gt, lt bool
	for _, tok := range argv[3:] {
		switch {
		case bytes.EqualFold(tok, []byte("NX")):
			nx = true
		case bytes.EqualFold(tok, []byte("XX")):
			xx = true
		case bytes.EqualFold(tok, []byte("GT")):
			gt = true
		case bytes.EqualFold(tok, []byte("LT")):
			lt = true
		default:
			return writeErr(w, corerr.UnsupportedOption(string(tok)))
		}
	}
	ok, err := d.Store.Expire(db, argv[1], seconds, nx, xx, gt, lt)
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(boolInt(ok))
}

func (d *Dispatcher) cmdTTL(db uint32, argv [][]byte, w *resp.Writer) error {
	ttl, err := d.Store.TTL(db, argv[1])
	if err != nil {
		return writeErr(w, err)
	}
	return w.Integer(ttl)
}
