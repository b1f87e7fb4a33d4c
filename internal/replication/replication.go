// Package replication implements the L7 replication change-stream: a
// primary polls its Engine's commit history and streams ordered,
// idempotent batches to connected replicas; a replica applies batches to
// its own Engine and tracks a resumable cursor (spec §4.5).
//
// The state machine below (Idle -> Handshaking -> Streaming ->
// Reconnecting -> Streaming) is original to this server; nothing in the
// retrieval pack implements primary/replica streaming replication, so the
// wire encoding uses the standard library's encoding/gob rather than a
// pack-grounded codec (see DESIGN.md).
package replication

import (
	"bufio"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/sabled/internal/storage"
)

// wireUpdates is the gob-serializable form of storage.Updates.
type wireUpdates struct {
	StartSeq uint64
	EndSeq   uint64
	Records  []storage.Record
}

func toWire(u storage.Updates) wireUpdates {
	return wireUpdates{StartSeq: u.StartSeq, EndSeq: u.EndSeq, Records: u.Records}
}

func (w wireUpdates) toUpdates() storage.Updates {
	return storage.Updates{StartSeq: w.StartSeq, EndSeq: w.EndSeq, Records: w.Records}
}

// Producer streams committed batches from a primary's Engine to one
// connected replica.
type Producer struct {
	engine storage.Engine
	limits storage.UpdateLimits
	log    *zap.Logger
}

func NewProducer(engine storage.Engine, limits storage.UpdateLimits, log *zap.Logger) *Producer {
	if limits == (storage.UpdateLimits{}) {
		limits = storage.DefaultUpdateLimits
	}
	return &Producer{engine: engine, limits: limits, log: log}
}

// Stream writes batches to w starting just after fromSeq, polling at
// pollInterval when caught up, until ctx is cancelled or the connection
// errors. Each batch is idempotent-safe to re-apply (spec §8).
func (p *Producer) Stream(ctx context.Context, w io.Writer, fromSeq uint64, pollInterval time.Duration) error {
	enc := gob.NewEncoder(w)
	cursor := fromSeq
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		updates, err := p.engine.UpdatesSince(cursor, p.limits)
		if err != nil {
			if errors.Is(err, storage.ErrCursorTooOld) {
				return fmt.Errorf("replication: replica cursor %d too old: %w", cursor, err)
			}
			return fmt.Errorf("replication: updates since %d: %w", cursor, err)
		}
		if len(updates.Records) == 0 {
			continue
		}
		if err := enc.Encode(toWire(updates)); err != nil {
			return fmt.Errorf("replication: encode batch: %w", err)
		}
		cursor = updates.EndSeq
		p.log.Debug("streamed replication batch", zap.Uint64("start", updates.StartSeq), zap.Uint64("end", updates.EndSeq), zap.Int("records", len(updates.Records)))
	}
}

// State is the replica-side connection state (spec §4.5).
type State int

const (
	StateIdle State = iota
	StateHandshaking
	StateStreaming
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateHandshaking:
		return "handshaking"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "idle"
	}
}

// Replica connects to a primary, applies streamed batches to a local
// Engine, and reconnects with backoff on failure, resuming from its last
// applied sequence (spec §4.5, §8 replication round-trip/idempotence).
type Replica struct {
	engine      storage.Engine
	primaryAddr string
	log         *zap.Logger

	stateCh chan State
}

func NewReplica(engine storage.Engine, primaryAddr string, log *zap.Logger) *Replica {
	return &Replica{engine: engine, primaryAddr: primaryAddr, log: log, stateCh: make(chan State, 8)}
}

// States returns a channel of state transitions; internal/server forwards
// them to the telemetry replication-state gauge.
func (r *Replica) States() <-chan State { return r.stateCh }

func (r *Replica) setState(s State) {
	select {
	case r.stateCh <- s:
	default:
	}
}

// Run drives the reconnect loop until ctx is cancelled.
func (r *Replica) Run(ctx context.Context) {
	backoff := 500 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return
		}
		r.setState(StateHandshaking)
		err := r.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		r.log.Warn("replication connection lost, reconnecting", zap.Error(err), zap.Duration("backoff", backoff))
		r.setState(StateReconnecting)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (r *Replica) runOnce(ctx context.Context) error {
	conn, err := (&net.Dialer{Timeout: 5 * time.Second}).DialContext(ctx, "tcp", r.primaryAddr)
	if err != nil {
		return fmt.Errorf("dial primary: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	cursor := r.engine.Sequence()
	if _, err := fmt.Fprintf(conn, "SYNC %d\n", cursor); err != nil {
		return fmt.Errorf("send SYNC: %w", err)
	}

	r.setState(StateStreaming)
	dec := gob.NewDecoder(bufio.NewReader(conn))
	for {
		var w wireUpdates
		if err := dec.Decode(&w); err != nil {
			return fmt.Errorf("decode batch: %w", err)
		}
		if err := r.apply(w.toUpdates()); err != nil {
			return fmt.Errorf("apply batch: %w", err)
		}
	}
}

// apply commits a streamed batch's records verbatim, re-applying the same
// (start,end] range is a safe no-op because each Record is a last-writer-
// wins put/delete (spec §8 idempotence property).
func (r *Replica) apply(u storage.Updates) error {
	if len(u.Records) == 0 {
		return nil
	}
	batch := &storage.WriteBatch{Records: u.Records}
	_, err := r.engine.Write(batch)
	return err
}
