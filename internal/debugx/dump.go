// Package debugx provides go-spew-based debug dumping used by the admin
// /debug/info surface and by tests that need a human-readable error
// chain, adapted from the teacher's pkg/fmtt/printe.go.
package debugx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davecgh/go-spew/spew"
)

// ErrChain renders each layer of err's Unwrap() chain as "[i] Type: msg".
func ErrChain(err error) string {
	if err == nil {
		return "<nil>"
	}
	var b strings.Builder
	for i, e := 0, err; e != nil; i, e = i+1, errors.Unwrap(e) {
		fmt.Fprintf(&b, "[%d] %T: %v\n", i, e, e)
	}
	return b.String()
}

// Dump renders v with spew.Sdump, for arbitrary server-state snapshots
// surfaced on /debug/info (connection counts, replication cursors, etc).
func Dump(v any) string {
	return spew.Sdump(v)
}
