package blocking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBlockThenNotifyWakesWaiter(t *testing.T) {
	r := NewRegistry()
	w := r.Block([][]byte{[]byte("k")})

	select {
	case <-w.Ready():
		t.Fatal("should not be ready before Notify")
	case <-time.After(10 * time.Millisecond):
	}

	r.Notify([]byte("k"), 1)
	select {
	case <-w.Ready():
	case <-time.After(time.Second):
		t.Fatal("expected wake after Notify")
	}
}

func TestNotifyIsFIFO(t *testing.T) {
	r := NewRegistry()
	w1 := r.Block([][]byte{[]byte("k")})
	w2 := r.Block([][]byte{[]byte("k")})

	r.Notify([]byte("k"), 1)
	select {
	case <-w1.Ready():
	case <-time.After(time.Second):
		t.Fatal("w1 should wake first")
	}
	select {
	case <-w2.Ready():
		t.Fatal("w2 should not be woken yet")
	default:
	}
}

func TestNotifyWakesUpToN(t *testing.T) {
	r := NewRegistry()
	w1 := r.Block([][]byte{[]byte("k")})
	w2 := r.Block([][]byte{[]byte("k")})
	w3 := r.Block([][]byte{[]byte("k")})

	r.Notify([]byte("k"), 2)
	for _, w := range []*Wait{w1, w2} {
		select {
		case <-w.Ready():
		case <-time.After(time.Second):
			t.Fatal("expected wake within n")
		}
	}
	select {
	case <-w3.Ready():
		t.Fatal("w3 should not be woken, only 2 were requested")
	default:
	}
	require.Equal(t, 1, r.Len([]byte("k")))
}

func TestCancelRemovesWaiter(t *testing.T) {
	r := NewRegistry()
	w := r.Block([][]byte{[]byte("k")})
	require.Equal(t, 1, r.Len([]byte("k")))
	w.Cancel()
	require.Equal(t, 0, r.Len([]byte("k")))
}
