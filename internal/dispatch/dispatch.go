// Package dispatch implements the L4 command dispatcher: argv parsing,
// arity/role validation, key-set computation, lock acquisition via
// internal/lock, handler routing to internal/handlers, and RESP reply
// rendering at the wire boundary (spec §4.2). Handlers themselves never
// touch resp.Writer; only this package does.
package dispatch

import (
	"bytes"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/sabled/internal/blocking"
	"github.com/edirooss/sabled/internal/corerr"
	"github.com/edirooss/sabled/internal/handlers"
	"github.com/edirooss/sabled/internal/lock"
	"github.com/edirooss/sabled/internal/registry"
	"github.com/edirooss/sabled/internal/resp"
	"github.com/edirooss/sabled/internal/types"
)

// Role is the server's current replication role; write commands are
// rejected with READONLY while RoleReplica (spec §4.2 step 2).
type Role int32

const (
	RolePrimary Role = iota
	RoleReplica
)

// Dispatcher routes one connection's commands to handlers against a
// shared Store, under the shared key-lock Manager and blocked-client
// Registry.
type Dispatcher struct {
	Store   *handlers.Store
	Locks   *lock.Manager
	Blocked *blocking.Registry
	Log     *zap.Logger

	// Role is read once per command; server.go swaps it on REPLICAOF.
	Role func() Role
}

func New(store *handlers.Store, locks *lock.Manager, blocked *blocking.Registry, log *zap.Logger, role func() Role) *Dispatcher {
	return &Dispatcher{Store: store, Locks: locks, Blocked: blocked, Log: log, Role: role}
}

// rawKeysFor converts user key tokens into the raw lock/storage identity
// for db, matching the primary-key encoding so a lock on "foo" in db 0
// never contends with "foo" in db 1.
func rawKeysFor(db uint32, keys [][]byte) [][]byte {
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = types.EncodePrimaryKey(db, k)
	}
	return out
}

// Execute runs one already-parsed command (argv[0] is the command name)
// against db, writing exactly one reply to w. It never returns a non-nil
// error for a well-formed client-level failure (those become RESP error
// replies); a non-nil error here means the connection must close.
func (d *Dispatcher) Execute(db uint32, argv [][]byte, w *resp.Writer) error {
	if len(argv) == 0 {
		return nil
	}
	name := string(argv[0])
	meta := registry.LookupOrUnknown(name)

	if meta.Tag == registry.TagNotSupported {
		return writeErr(w, corerr.UnknownCommand(name, argvPreview(argv)))
	}
	if !meta.ValidArity(len(argv)) {
		return writeErr(w, corerr.WrongArity(meta.Name))
	}
	if meta.Flags.Has(registry.FlagWrite) && d.Role != nil && d.Role() == RoleReplica {
		return writeErr(w, corerr.ReadOnly())
	}

	keys := meta.ResolveKeys(argv)
	if meta.Flags.Has(registry.FlagBlocking) {
		return d.dispatchBlocking(db, meta, argv, w)
	}

	exclusive := meta.Flags.Has(registry.FlagWrite)
	var tok *lock.Token
	if len(keys) > 0 {
		tok = d.Locks.Acquire(rawKeysFor(db, keys), exclusive)
		defer tok.Release()
	}

	err := d.route(db, meta, argv, w)
	if err == nil && exclusive {
		n := notifyCount(meta, argv)
		for _, k := range keys {
			d.Blocked.Notify(types.EncodePrimaryKey(db, k), n)
		}
	}
	return err
}

// notifyCount is the number of newly available elements a successful write
// makes visible to blocked waiters (spec §4.2 step 7, §4.4's wake(key, n)).
// Only LPUSH/RPUSH/LPUSHX/RPUSHX can add more than one element to a single
// key in one command; every other write command here adds or changes at
// most one element per key, so n defaults to 1.
func notifyCount(meta registry.Metadata, argv [][]byte) int {
	switch meta.Tag {
	case registry.TagLPush, registry.TagRPush, registry.TagLPushX, registry.TagRPushX:
		if n := len(argv) - 2; n > 0 {
			return n
		}
		return 1
	default:
		return 1
	}
}

// route dispatches to the concrete command implementation. Every branch
// calls exactly one w.<Reply> (or none, on hard connection error).
func (d *Dispatcher) route(db uint32, meta registry.Metadata, argv [][]byte, w *resp.Writer) error {
	switch meta.Tag {
	// strings
	case registry.TagSet:
		return d.cmdSet(db, argv, w)
	case registry.TagGet:
		return d.cmdGet(db, argv, w)
	case registry.TagMSet:
		return d.cmdMSet(db, argv, w)
	case registry.TagMGet:
		return d.cmdMGet(db, argv, w)
	case registry.TagMSetNX:
		return d.cmdMSetNX(db, argv, w)
	case registry.TagAppend:
		return d.cmdAppend(db, argv, w)
	case registry.TagIncr:
		return d.cmdIncrBy(db, argv, w, 1)
	case registry.TagDecr:
		return d.cmdIncrBy(db, argv, w, -1)
	case registry.TagIncrBy:
		return d.cmdIncrByArg(db, argv, w, 1)
	case registry.TagDecrBy:
		return d.cmdIncrByArg(db, argv, w, -1)
	case registry.TagIncrByFloat:
		return d.cmdIncrByFloat(db, argv, w)
	case registry.TagGetDel:
		return d.cmdGetDel(db, argv, w)
	case registry.TagGetSet:
		return d.cmdGetSet(db, argv, w)
	case registry.TagGetEx:
		return d.cmdGetEx(db, argv, w)
	case registry.TagGetRange, registry.TagSubstr:
		return d.cmdGetRange(db, argv, w)
	case registry.TagSetRange:
		return d.cmdSetRange(db, argv, w)
	case registry.TagStrlen:
		return d.cmdStrlen(db, argv, w)
	case registry.TagSetNX:
		return d.cmdSetNX(db, argv, w)
	case registry.TagSetEX:
		return d.cmdSetEX(db, argv, w)
	case registry.TagPSetEX:
		return d.cmdPSetEX(db, argv, w)
	case registry.TagLCS:
		return d.cmdLCS(db, argv, w)

	// lists
	case registry.TagLPush:
		return d.cmdPush(db, argv, w, true, false)
	case registry.TagRPush:
		return d.cmdPush(db, argv, w, false, false)
	case registry.TagLPushX:
		return d.cmdPush(db, argv, w, true, true)
	case registry.TagRPushX:
		return d.cmdPush(db, argv, w, false, true)
	case registry.TagLPop:
		return d.cmdPop(db, argv, w, true)
	case registry.TagRPop:
		return d.cmdPop(db, argv, w, false)
	case registry.TagLLen:
		return d.cmdLLen(db, argv, w)
	case registry.TagLRange:
		return d.cmdLRange(db, argv, w)
	case registry.TagLIndex:
		return d.cmdLIndex(db, argv, w)
	case registry.TagLInsert:
		return d.cmdLInsert(db, argv, w)
	case registry.TagLSet:
		return d.cmdLSet(db, argv, w)
	case registry.TagLPos:
		return d.cmdLPos(db, argv, w)
	case registry.TagLTrim:
		return d.cmdLTrim(db, argv, w)
	case registry.TagLRem:
		return d.cmdLRem(db, argv, w)
	case registry.TagLMove:
		return d.cmdLMove(db, argv, w)
	case registry.TagRPopLPush:
		return d.cmdRPopLPush(db, argv, w)
	case registry.TagLMPop:
		return d.cmdLMPop(db, argv, w)

	// hashes
	case registry.TagHSet, registry.TagHMSet:
		return d.cmdHSet(db, argv, w, meta.Tag == registry.TagHMSet)
	case registry.TagHGet:
		return d.cmdHGet(db, argv, w)
	case registry.TagHDel:
		return d.cmdHDel(db, argv, w)
	case registry.TagHLen:
		return d.cmdHLen(db, argv, w)
	case registry.TagHExists:
		return d.cmdHExists(db, argv, w)
	case registry.TagHGetAll:
		return d.cmdHGetAll(db, argv, w)
	case registry.TagHIncrBy:
		return d.cmdHIncrBy(db, argv, w)
	case registry.TagHIncrByFloat:
		return d.cmdHIncrByFloat(db, argv, w)
	case registry.TagHKeys:
		return d.cmdHKeys(db, argv, w)
	case registry.TagHVals:
		return d.cmdHVals(db, argv, w)
	case registry.TagHMGet:
		return d.cmdHMGet(db, argv, w)
	case registry.TagHRandField:
		return d.cmdHRandField(db, argv, w)

	// generic
	case registry.TagDel:
		return d.cmdDel(db, argv, w)
	case registry.TagExists:
		return d.cmdExists(db, argv, w)
	case registry.TagExpire:
		return d.cmdExpire(db, argv, w)
	case registry.TagTTL:
		return d.cmdTTL(db, argv, w)

	// connection / server
	case registry.TagPing:
		return d.cmdPing(argv, w)
	case registry.TagCommand:
		return d.cmdCommand(argv, w)
	case registry.TagFlushAll:
		return d.cmdFlushAll(argv, w)

	default:
		return writeErr(w, corerr.UnknownCommand(meta.Name, argvPreview(argv)))
	}
}

// dispatchBlocking implements the BLPOP/BRPOP/BLMOVE/BLMPOP/BRPOPLPUSH
// family: try the non-blocking operation first; on a miss, block on the
// FIFO registry until one of the target keys is notified or the deadline
// elapses (spec §4.4, §8).
func (d *Dispatcher) dispatchBlocking(db uint32, meta registry.Metadata, argv [][]byte, w *resp.Writer) error {
	timeoutSeconds, err := parseTimeout(blockingTimeoutToken(meta, argv))
	if err != nil {
		return writeErr(w, err)
	}
	deadline, hasDeadline := time.Time{}, false
	if timeoutSeconds > 0 {
		deadline = time.Now().Add(time.Duration(timeoutSeconds * float64(time.Second)))
		hasDeadline = true
	}

	keys := meta.ResolveKeys(argv)
	rawKeys := rawKeysFor(db, keys)
	waitKeys := rawKeys
	if meta.Tag == registry.TagBLMPop {
		// BLMPOP's keys are not at fixed positions, so the registry resolves
		// none; tryLMPop locks them itself, and they are only waited on here.
		if lk, _, _, perr := parseLMPopArgs(argv[2:]); perr == nil {
			waitKeys = rawKeysFor(db, lk)
		}
	}

	for {
		tok := d.Locks.Acquire(rawKeys, true)
		ok, err := d.tryBlockingOnce(db, meta, argv, w)
		tok.Release()
		if err != nil {
			return err
		}
		if ok {
			for _, k := range keys {
				d.Blocked.Notify(types.EncodePrimaryKey(db, k), 1)
			}
			return nil
		}

		wait := d.Blocked.Block(waitKeys)
		var timer *time.Timer
		var timeoutCh <-chan time.Time
		if hasDeadline {
			timer = time.NewTimer(time.Until(deadline))
			timeoutCh = timer.C
		}
		select {
		case <-wait.Ready():
			if timer != nil {
				timer.Stop()
			}
			wait.Cancel()
		case <-timeoutCh:
			wait.Cancel()
			return w.NilArray()
		}
	}
}

// tryBlockingOnce attempts the non-blocking equivalent once under an
// already-held lock; ok=false means "no data yet, caller should block".
func (d *Dispatcher) tryBlockingOnce(db uint32, meta registry.Metadata, argv [][]byte, w *resp.Writer) (bool, error) {
	switch meta.Tag {
	case registry.TagBLPop, registry.TagBRPop:
		left := meta.Tag == registry.TagBLPop
		keys := argv[1 : len(argv)-1]
		for _, k := range keys {
			popped, ok, err := d.Store.Pop(db, k, 1, left)
			if err != nil {
				return false, writeErr(w, err)
			}
			if ok && len(popped) > 0 {
				return true, writeArray2(w, k, popped[0])
			}
		}
		return false, nil
	case registry.TagBLMove:
		src, dst := argv[1], argv[2]
		fromLeft := bytes.EqualFold(argv[3], []byte("left"))
		toLeft := bytes.EqualFold(argv[4], []byte("left"))
		elem, ok, err := d.Store.Move(db, src, dst, fromLeft, toLeft)
		if err != nil {
			return false, writeErr(w, err)
		}
		if !ok {
			return false, nil
		}
		return true, w.BulkString(elem)
	case registry.TagBRPopLPush:
		elem, ok, err := d.Store.Move(db, argv[1], argv[2], false, true)
		if err != nil {
			return false, writeErr(w, err)
		}
		if !ok {
			return false, nil
		}
		return true, w.BulkString(elem)
	case registry.TagBLMPop:
		return d.tryLMPop(db, argv[2:], w)
	default:
		return false, writeErr(w, corerr.Argument("unsupported blocking command"))
	}
}

// blockingTimeoutToken returns the argv slot holding the timeout for a
// blocking command. Every blocking command puts timeout last (BLPOP/BRPOP
// key [key ...] timeout; BLMOVE source destination LEFT|RIGHT LEFT|RIGHT
// timeout; BRPOPLPUSH source destination timeout) except BLMPOP, whose
// grammar is "BLMPOP timeout numkeys key [key ...] LEFT|RIGHT [COUNT
// count]" with timeout first, matching tryBlockingOnce's own
// argv[2:]-skip-the-timeout-and-numkeys handling of BLMPOP below.
func blockingTimeoutToken(meta registry.Metadata, argv [][]byte) []byte {
	if meta.Tag == registry.TagBLMPop {
		return argv[1]
	}
	return argv[len(argv)-1]
}

func parseTimeout(tok []byte) (float64, error) {
	f, err := types.ParseStoredFloat(tok)
	if err != nil || f < 0 {
		return 0, corerr.Argument("timeout is not a float or out of range")
	}
	return f, nil
}

func writeArray2(w *resp.Writer, a, b []byte) error {
	if err := w.ArrayHeader(2); err != nil {
		return err
	}
	if err := w.BulkString(a); err != nil {
		return err
	}
	return w.BulkString(b)
}

func writeErr(w *resp.Writer, err error) error {
	if cerr, ok := err.(*corerr.Error); ok {
		return w.Error(cerr.RESPLine())
	}
	return w.Error("ERR " + err.Error())
}

func argvPreview(argv [][]byte) []string {
	out := make([]string, 0, len(argv)-1)
	for _, a := range argv[1:] {
		out = append(out, string(a))
	}
	return out
}
