package types

import (
	"strconv"

	"github.com/edirooss/sabled/internal/corerr"
)

// ParseStoredInt parses a string payload as the base-10 signed 64-bit
// integer the INCR family requires (spec §4.3). Any parse failure maps to
// the fixed NotInteger error text.
func ParseStoredInt(payload []byte) (int64, error) {
	n, err := strconv.ParseInt(string(payload), 10, 64)
	if err != nil {
		return 0, corerr.NotInteger()
	}
	return n, nil
}

// FormatInt renders n the way GET must read it back.
func FormatInt(n int64) []byte { return []byte(strconv.FormatInt(n, 10)) }

// AddWithOverflowCheck adds delta to base, returning corerr.Overflow() on
// signed 64-bit wraparound (spec §4.3 "ERR increment would overflow").
func AddWithOverflowCheck(base, delta int64) (int64, error) {
	sum := base + delta
	if (delta > 0 && sum < base) || (delta < 0 && sum > base) {
		return 0, corerr.Overflow()
	}
	return sum, nil
}

// ParseStoredFloat parses a string payload as a float64 for INCRBYFLOAT.
func ParseStoredFloat(payload []byte) (float64, error) {
	f, err := strconv.ParseFloat(string(payload), 64)
	if err != nil {
		return 0, corerr.NotInteger()
	}
	return f, nil
}

// FormatFloat renders a float the way INCRBYFLOAT/HINCRBYFLOAT do: fixed
// notation, trailing zeros trimmed, matching Redis's "%.17g"-then-trim
// behavior closely enough for round-tripping through GET.
func FormatFloat(f float64) []byte {
	s := strconv.FormatFloat(f, 'f', 17, 64)
	// trim trailing zeros, then a dangling '.'
	i := len(s)
	for i > 0 && s[i-1] == '0' {
		i--
	}
	if i > 0 && s[i-1] == '.' {
		i--
	}
	return []byte(s[:i])
}
