package dispatch

import (
	"github.com/edirooss/sabled/internal/corerr"
	"github.com/edirooss/sabled/internal/registry"
	"github.com/edirooss/sabled/internal/resp"
)

func (d *Dispatcher) cmdPing(argv [][]byte, w *resp.Writer) error {
	if len(argv) > 1 {
		return w.BulkString(argv[1])
	}
	return w.SimpleString("PONG")
}

// cmdCommand implements COMMAND / COMMAND COUNT / COMMAND DOCS (spec
// §4.1's RESPv2 reply shapes). COMMAND INFO / plain COMMAND share the
// same per-command 10-element array shape; unsupported sub-arguments
// fall through to the full listing rather than erroring, matching a
// permissive client-compat stance.
func (d *Dispatcher) cmdCommand(argv [][]byte, w *resp.Writer) error {
	if len(argv) >= 2 {
		switch {
		case equalFold(argv[1], "COUNT"):
			return w.Integer(int64(registry.Count()))
		case equalFold(argv[1], "DOCS"):
			return writeCommandDocs(w, argv[2:])
		case equalFold(argv[1], "INFO"):
			return writeCommandInfo(w, argv[2:])
		}
	}
	return writeCommandInfo(w, nil)
}

func equalFold(b []byte, s string) bool {
	if len(b) != len(s) {
		return false
	}
	for i := range b {
		c := b[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		if byte(s[i]) != c {
			return false
		}
	}
	return true
}

func writeCommandInfo(w *resp.Writer, names [][]byte) error {
	metas := metasFor(names)
	if err := w.ArrayHeader(len(metas)); err != nil {
		return err
	}
	for _, m := range metas {
		if err := writeOneCommandEntry(w, m); err != nil {
			return err
		}
	}
	return nil
}

func writeOneCommandEntry(w *resp.Writer, m registry.Metadata) error {
	if err := w.ArrayHeader(10); err != nil {
		return err
	}
	if err := w.BulkStringFromString(m.Name); err != nil {
		return err
	}
	if err := w.Integer(int64(m.Arity)); err != nil {
		return err
	}
	flags := m.FlagStrings()
	if err := w.ArrayHeader(len(flags)); err != nil {
		return err
	}
	for _, f := range flags {
		if err := w.SimpleString(f); err != nil {
			return err
		}
	}
	if err := w.Integer(int64(m.FirstKey)); err != nil {
		return err
	}
	if err := w.Integer(int64(m.LastKey)); err != nil {
		return err
	}
	if err := w.Integer(int64(m.Step)); err != nil {
		return err
	}
	// acl-categories, tips, key-specs, subcommands: empty arrays, this
	// server doesn't model them.
	for i := 0; i < 4; i++ {
		if err := w.EmptyArray(); err != nil {
			return err
		}
	}
	return nil
}

func writeCommandDocs(w *resp.Writer, names [][]byte) error {
	metas := metasFor(names)
	if err := w.ArrayHeader(2 * len(metas)); err != nil {
		return err
	}
	for _, m := range metas {
		if err := w.BulkStringFromString(m.Name); err != nil {
			return err
		}
		if err := w.ArrayHeader(2); err != nil {
			return err
		}
		if err := w.SimpleString("summary"); err != nil {
			return err
		}
		if err := w.BulkStringFromString(m.Summary); err != nil {
			return err
		}
	}
	return nil
}

// cmdFlushAll implements the destructive full-keyspace reset resolved as
// an open question (SPEC_FULL §4): wipes every database, not just db. The
// ASYNC/SYNC modifier Redis accepts is parsed and ignored; this server has
// no background reclaim step to defer.
func (d *Dispatcher) cmdFlushAll(argv [][]byte, w *resp.Writer) error {
	if len(argv) == 2 && !equalFold(argv[1], "ASYNC") && !equalFold(argv[1], "SYNC") {
		return writeErr(w, corerr.Syntax())
	}
	if err := d.Store.FlushAll(); err != nil {
		return writeErr(w, err)
	}
	return w.SimpleString("OK")
}

func metasFor(names [][]byte) []registry.Metadata {
	if len(names) == 0 {
		return registry.All()
	}
	out := make([]registry.Metadata, 0, len(names))
	for _, n := range names {
		if m, ok := registry.Lookup(string(n)); ok {
			out = append(out, m)
		}
	}
	return out
}
