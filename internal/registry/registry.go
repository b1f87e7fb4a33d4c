// Package registry is the L3 command registry: a static, read-only table
// mapping lowercased command names to immutable CommandMetadata (spec
// §4.1), grounded on the original Rust commander.rs's CommandsManager /
// CommandMetadata shape but expressed as a plain Go map instead of a
// builder-pattern struct.
package registry

import "strings"

// Flag is a bit in CommandMetadata.Flags.
type Flag uint32

const (
	FlagRead Flag = 1 << iota
	FlagWrite
	FlagAdmin
	FlagConnection
	FlagBlocking
)

func (f Flag) Has(bit Flag) bool { return f&bit != 0 }

// names returns the RESP-visible flag strings, in a stable order, for the
// COMMAND reply (spec §4.1).
func (f Flag) names() []string {
	var out []string
	if f.Has(FlagWrite) {
		out = append(out, "write")
	}
	if f.Has(FlagRead) {
		out = append(out, "readonly")
	}
	if f.Has(FlagAdmin) {
		out = append(out, "admin")
	}
	if f.Has(FlagConnection) {
		out = append(out, "connection")
	}
	if f.Has(FlagBlocking) {
		out = append(out, "blocking")
	}
	return out
}

// Tag identifies a command for dispatcher routing, replacing the source's
// tagged enum with a plain comparable string constant.
type Tag string

const (
	TagSet          Tag = "SET"
	TagGet          Tag = "GET"
	TagMSet         Tag = "MSET"
	TagMGet         Tag = "MGET"
	TagMSetNX       Tag = "MSETNX"
	TagAppend       Tag = "APPEND"
	TagIncr         Tag = "INCR"
	TagDecr         Tag = "DECR"
	TagIncrBy       Tag = "INCRBY"
	TagDecrBy       Tag = "DECRBY"
	TagIncrByFloat  Tag = "INCRBYFLOAT"
	TagGetDel       Tag = "GETDEL"
	TagGetSet       Tag = "GETSET"
	TagGetEx        Tag = "GETEX"
	TagGetRange     Tag = "GETRANGE"
	TagSetRange     Tag = "SETRANGE"
	TagStrlen       Tag = "STRLEN"
	TagSubstr       Tag = "SUBSTR"
	TagSetNX        Tag = "SETNX"
	TagSetEX        Tag = "SETEX"
	TagPSetEX       Tag = "PSETEX"
	TagLCS          Tag = "LCS"
	TagLPush        Tag = "LPUSH"
	TagRPush        Tag = "RPUSH"
	TagLPushX       Tag = "LPUSHX"
	TagRPushX       Tag = "RPUSHX"
	TagLPop         Tag = "LPOP"
	TagRPop         Tag = "RPOP"
	TagLLen         Tag = "LLEN"
	TagLRange       Tag = "LRANGE"
	TagLIndex       Tag = "LINDEX"
	TagLInsert      Tag = "LINSERT"
	TagLSet         Tag = "LSET"
	TagLPos         Tag = "LPOS"
	TagLTrim        Tag = "LTRIM"
	TagLRem         Tag = "LREM"
	TagLMove        Tag = "LMOVE"
	TagRPopLPush    Tag = "RPOPLPUSH"
	TagLMPop        Tag = "LMPOP"
	TagBLPop        Tag = "BLPOP"
	TagBRPop        Tag = "BRPOP"
	TagBLMove       Tag = "BLMOVE"
	TagBLMPop       Tag = "BLMPOP"
	TagBRPopLPush   Tag = "BRPOPLPUSH"
	TagHSet         Tag = "HSET"
	TagHMSet        Tag = "HMSET"
	TagHGet         Tag = "HGET"
	TagHDel         Tag = "HDEL"
	TagHLen         Tag = "HLEN"
	TagHExists      Tag = "HEXISTS"
	TagHGetAll      Tag = "HGETALL"
	TagHIncrBy      Tag = "HINCRBY"
	TagHIncrByFloat Tag = "HINCRBYFLOAT"
	TagHKeys        Tag = "HKEYS"
	TagHVals        Tag = "HVALS"
	TagHMGet        Tag = "HMGET"
	TagHRandField   Tag = "HRANDFIELD"
	TagDel          Tag = "DEL"
	TagExists       Tag = "EXISTS"
	TagExpire       Tag = "EXPIRE"
	TagTTL          Tag = "TTL"
	TagClient       Tag = "CLIENT"
	TagSelect       Tag = "SELECT"
	TagPing         Tag = "PING"
	TagInfo         Tag = "INFO"
	TagConfig       Tag = "CONFIG"
	TagCommand      Tag = "COMMAND"
	TagReplicaOf    Tag = "REPLICAOF"
	TagSlaveOf      Tag = "SLAVEOF"
	TagFlushAll     Tag = "FLUSHALL"
	TagNotSupported Tag = "__NOT_SUPPORTED__"
)

// Metadata is the immutable per-command record (spec §4.1's table).
type Metadata struct {
	Name     string
	Tag      Tag
	Flags    Flag
	Arity    int // positive = exact, negative = "at least abs(n)"
	FirstKey int
	LastKey  int // -1 = through end-of-arguments; negative N = Nth-from-end
	Step     int
	Summary  string // COMMAND DOCS one-liner (SPEC_FULL §4 resolution)
}

func meta(name string, tag Tag, flags Flag, arity, firstKey, lastKey, step int, summary string) Metadata {
	return Metadata{Name: name, Tag: tag, Flags: flags, Arity: arity, FirstKey: firstKey, LastKey: lastKey, Step: step, Summary: summary}
}

// table is the static registry. Built once at package init; never mutated.
var table = buildTable()

func buildTable() map[string]Metadata {
	t := make(map[string]Metadata)
	add := func(m Metadata) { t[m.Name] = m }

	// strings
	add(meta("set", TagSet, FlagWrite, -3, 1, 1, 1, "Set the string value of a key"))
	add(meta("get", TagGet, FlagRead, 2, 1, 1, 1, "Get the string value of a key"))
	add(meta("mset", TagMSet, FlagWrite, -3, 1, -1, 2, "Set multiple keys to multiple values"))
	add(meta("mget", TagMGet, FlagRead, -2, 1, -1, 1, "Get the values of all the given keys"))
	add(meta("msetnx", TagMSetNX, FlagWrite, -3, 1, -1, 2, "Set multiple keys, only if none exist"))
	add(meta("append", TagAppend, FlagWrite, 3, 1, 1, 1, "Append a value to a key"))
	add(meta("incr", TagIncr, FlagWrite, 2, 1, 1, 1, "Increment the integer value of a key by one"))
	add(meta("decr", TagDecr, FlagWrite, 2, 1, 1, 1, "Decrement the integer value of a key by one"))
	add(meta("incrby", TagIncrBy, FlagWrite, 3, 1, 1, 1, "Increment the integer value of a key by the given amount"))
	add(meta("decrby", TagDecrBy, FlagWrite, 3, 1, 1, 1, "Decrement the integer value of a key by the given number"))
	add(meta("incrbyfloat", TagIncrByFloat, FlagWrite, 3, 1, 1, 1, "Increment the float value of a key by the given amount"))
	add(meta("getdel", TagGetDel, FlagWrite, 2, 1, 1, 1, "Get the value of a key and delete the key"))
	add(meta("getset", TagGetSet, FlagWrite, 3, 1, 1, 1, "Set the value of a key and return its old value"))
	add(meta("getex", TagGetEx, FlagWrite, -2, 1, 1, 1, "Get the value of a key and optionally set its expiration"))
	add(meta("getrange", TagGetRange, FlagRead, 4, 1, 1, 1, "Get a substring of the string stored at a key"))
	add(meta("setrange", TagSetRange, FlagWrite, 4, 1, 1, 1, "Overwrite part of a string at key starting at the specified offset"))
	add(meta("strlen", TagStrlen, FlagRead, 2, 1, 1, 1, "Get the length of the value stored in a key"))
	add(meta("substr", TagSubstr, FlagRead, 4, 1, 1, 1, "Get a substring of the string stored at a key (alias of GETRANGE)"))
	add(meta("setnx", TagSetNX, FlagWrite, 3, 1, 1, 1, "Set the value of a key, only if the key does not exist"))
	add(meta("setex", TagSetEX, FlagWrite, 4, 1, 1, 1, "Set the value and expiration of a key"))
	add(meta("psetex", TagPSetEX, FlagWrite, 4, 1, 1, 1, "Set the value and expiration in milliseconds of a key"))
	add(meta("lcs", TagLCS, FlagRead, -3, 1, 2, 1, "Find the longest common subsequence between two keys"))

	// lists
	add(meta("lpush", TagLPush, FlagWrite, -3, 1, 1, 1, "Prepend one or multiple elements to a list"))
	add(meta("rpush", TagRPush, FlagWrite, -3, 1, 1, 1, "Append one or multiple elements to a list"))
	add(meta("lpushx", TagLPushX, FlagWrite, -3, 1, 1, 1, "Prepend an element to a list, only if the list exists"))
	add(meta("rpushx", TagRPushX, FlagWrite, -3, 1, 1, 1, "Append an element to a list, only if the list exists"))
	add(meta("lpop", TagLPop, FlagWrite, -2, 1, 1, 1, "Remove and get the first elements in a list"))
	add(meta("rpop", TagRPop, FlagWrite, -2, 1, 1, 1, "Remove and get the last elements in a list"))
	add(meta("llen", TagLLen, FlagRead, 2, 1, 1, 1, "Get the length of a list"))
	add(meta("lrange", TagLRange, FlagRead, 4, 1, 1, 1, "Get a range of elements from a list"))
	add(meta("lindex", TagLIndex, FlagRead, 3, 1, 1, 1, "Get an element from a list by its index"))
	add(meta("linsert", TagLInsert, FlagWrite, 5, 1, 1, 1, "Insert an element before or after another element in a list"))
	add(meta("lset", TagLSet, FlagWrite, 4, 1, 1, 1, "Set the value of an element in a list by its index"))
	add(meta("lpos", TagLPos, FlagRead, -3, 1, 1, 1, "Return the index of matching elements on a list"))
	add(meta("ltrim", TagLTrim, FlagWrite, 4, 1, 1, 1, "Trim a list to the specified range"))
	add(meta("lrem", TagLRem, FlagWrite, 4, 1, 1, 1, "Remove elements from a list"))
	add(meta("lmove", TagLMove, FlagWrite, 5, 1, 2, 1, "Move an element from one list to another"))
	add(meta("rpoplpush", TagRPopLPush, FlagWrite, 3, 1, 2, 1, "Remove the last element in a list, prepend it to another list"))
	add(meta("lmpop", TagLMPop, FlagWrite, -4, 0, 0, 0, "Pop elements from the first non-empty list"))
	add(meta("blpop", TagBLPop, FlagWrite|FlagBlocking, -3, 1, -2, 1, "Remove and get the first element in a list, or block until one is available"))
	add(meta("brpop", TagBRPop, FlagWrite|FlagBlocking, -3, 1, -2, 1, "Remove and get the last element in a list, or block until one is available"))
	add(meta("blmove", TagBLMove, FlagWrite|FlagBlocking, 6, 1, 2, 1, "Move an element from one list to another, or block until one is available"))
	add(meta("blmpop", TagBLMPop, FlagWrite|FlagBlocking, -5, 0, 0, 0, "Pop elements from the first non-empty list, or block until one is available"))
	add(meta("brpoplpush", TagBRPopLPush, FlagWrite|FlagBlocking, 4, 1, 2, 1, "Pop an element from a list, push it to another list, or block until one is available"))

	// hashes
	add(meta("hset", TagHSet, FlagWrite, -4, 1, 1, 1, "Set the string value of a hash field"))
	add(meta("hmset", TagHMSet, FlagWrite, -4, 1, 1, 1, "Set multiple hash fields to multiple values"))
	add(meta("hget", TagHGet, FlagRead, 3, 1, 1, 1, "Get the value of a hash field"))
	add(meta("hdel", TagHDel, FlagWrite, -3, 1, 1, 1, "Delete one or more hash fields"))
	add(meta("hlen", TagHLen, FlagRead, 2, 1, 1, 1, "Get the number of fields in a hash"))
	add(meta("hexists", TagHExists, FlagRead, 3, 1, 1, 1, "Determine if a hash field exists"))
	add(meta("hgetall", TagHGetAll, FlagRead, 2, 1, 1, 1, "Get all the fields and values in a hash"))
	add(meta("hincrby", TagHIncrBy, FlagWrite, 4, 1, 1, 1, "Increment the integer value of a hash field by the given number"))
	add(meta("hincrbyfloat", TagHIncrByFloat, FlagWrite, 4, 1, 1, 1, "Increment the float value of a hash field by the given amount"))
	add(meta("hkeys", TagHKeys, FlagRead, 2, 1, 1, 1, "Get all the fields in a hash"))
	add(meta("hvals", TagHVals, FlagRead, 2, 1, 1, 1, "Get all the values in a hash"))
	add(meta("hmget", TagHMGet, FlagRead, -3, 1, 1, 1, "Get the values of all the given hash fields"))
	add(meta("hrandfield", TagHRandField, FlagRead, -2, 1, 1, 1, "Get one or more random fields from a hash"))

	// generic
	add(meta("del", TagDel, FlagWrite, -2, 1, -1, 1, "Delete one or more keys"))
	add(meta("exists", TagExists, FlagRead, -2, 1, -1, 1, "Determine if one or more keys exist"))
	add(meta("expire", TagExpire, FlagWrite, -3, 1, 1, 1, "Set a key's time to live in seconds"))
	add(meta("ttl", TagTTL, FlagRead, 2, 1, 1, 1, "Get the time to live for a key in seconds"))

	// connection / server
	add(meta("client", TagClient, FlagConnection|FlagAdmin, -2, 0, 0, 0, "A container for client connection commands"))
	add(meta("select", TagSelect, FlagConnection, 2, 0, 0, 0, "Change the selected database for the current connection"))
	add(meta("ping", TagPing, FlagConnection, -1, 0, 0, 0, "Ping the server"))
	add(meta("info", TagInfo, FlagAdmin, -1, 0, 0, 0, "Get information and statistics about the server"))
	add(meta("config", TagConfig, FlagAdmin, -2, 0, 0, 0, "A container for server configuration commands"))
	add(meta("command", TagCommand, FlagConnection, -1, 0, 0, 0, "Get array of command details"))
	add(meta("replicaof", TagReplicaOf, FlagAdmin, 3, 0, 0, 0, "Make the server a replica of another instance, or promote it as primary"))
	add(meta("slaveof", TagSlaveOf, FlagAdmin, 3, 0, 0, 0, "Alias of REPLICAOF"))
	add(meta("flushall", TagFlushAll, FlagWrite|FlagAdmin, -1, 0, 0, 0, "Remove all keys from all databases"))

	return t
}

// Lookup resolves a lowercased command name to its Metadata and a "found"
// bool; callers needing the NotSupported sentinel should use LookupOrUnknown.
func Lookup(name string) (Metadata, bool) {
	m, ok := table[strings.ToLower(name)]
	return m, ok
}

// LookupOrUnknown always returns a usable Metadata, substituting the
// NotSupported sentinel on a miss (spec §4.1).
func LookupOrUnknown(name string) Metadata {
	if m, ok := Lookup(name); ok {
		return m
	}
	return Metadata{Name: strings.ToLower(name), Tag: TagNotSupported}
}

// All returns every registered command's metadata, for COMMAND/COMMAND DOCS.
func All() []Metadata {
	out := make([]Metadata, 0, len(table))
	for _, m := range table {
		out = append(out, m)
	}
	return out
}

// Count returns the number of registered commands, for COMMAND COUNT.
func Count() int { return len(table) }

// ResolveKeys computes the key positions touched by argv (argv[0] is the
// command name) per spec §4.2 step 3: negative LastKey resolves against
// the concrete argv length; LastKey == -1 means "through end of arguments".
func (m Metadata) ResolveKeys(argv [][]byte) [][]byte {
	if m.FirstKey <= 0 {
		return nil
	}
	last := m.LastKey
	n := len(argv)
	if last == -1 {
		last = n - 1
	} else if last < 0 {
		last = n + last
	}
	if last >= n {
		last = n - 1
	}
	step := m.Step
	if step <= 0 {
		step = 1
	}

	var keys [][]byte
	for i := m.FirstKey; i <= last; i += step {
		if i < 0 || i >= n {
			break
		}
		keys = append(keys, argv[i])
	}
	return keys
}

// ValidArity reports whether argc (including the command name) satisfies
// m.Arity (spec §4.1: positive = exact, negative = at-least abs(n)).
func (m Metadata) ValidArity(argc int) bool {
	if m.Arity >= 0 {
		return argc == m.Arity
	}
	return argc >= -m.Arity
}

// FlagStrings renders the RESP COMMAND flag-name array for m.
func (m Metadata) FlagStrings() []string { return m.Flags.names() }
