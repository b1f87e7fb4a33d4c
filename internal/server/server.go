// Package server implements the L8 server state and connection-accept
// loop (spec §4.6): process-wide role flag, worker inboxes (the client
// registry), the replicator handle, and shared telemetry, torn down on
// graceful shutdown after every connection has drained.
package server

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/edirooss/sabled/internal/blocking"
	"github.com/edirooss/sabled/internal/config"
	"github.com/edirooss/sabled/internal/dispatch"
	"github.com/edirooss/sabled/internal/handlers"
	"github.com/edirooss/sabled/internal/lock"
	"github.com/edirooss/sabled/internal/replication"
	"github.com/edirooss/sabled/internal/storage"
	"github.com/edirooss/sabled/internal/telemetry"
)

// defaultMaxConns bounds the server's worker pool when cfg.Workers is
// unset, the way the teacher's slotPool bounded concurrent process slots:
// a fixed-capacity semaphore rather than an unbounded goroutine-per-
// connection fan-out.
const defaultMaxConns = 4096

// Server owns every piece of process-wide state named in spec §4.6.
type Server struct {
	Cfg     config.Config
	Store   *handlers.Store
	Locks   *lock.Manager
	Blocked *blocking.Registry
	Metrics *telemetry.Metrics
	Log     *zap.Logger

	dispatcher *dispatch.Dispatcher
	clients    *clientTable

	role        atomic.Int32 // dispatch.Role
	replicaOf   atomic.Value // string, "" when primary
	replCancel  atomic.Value // context.CancelFunc of the running replica loop, if any
	replicaSeen atomic.Int64 // last sequence a connected replica's SYNC requested, for INFO

	sem *semaphore.Weighted

	engine storage.Engine
}

// New wires a Server from its already-constructed dependencies; main()
// chooses whether engine is a RocksDB or in-memory instance per config.
func New(cfg config.Config, engine storage.Engine, log *zap.Logger) *Server {
	store := handlers.NewStore(engine)
	locks := lock.NewManager()
	blocked := blocking.NewRegistry()
	metrics := telemetry.New()

	maxConns := int64(cfg.Workers)
	if maxConns <= 0 {
		maxConns = defaultMaxConns
	}

	s := &Server{
		Cfg:     cfg,
		Store:   store,
		Locks:   locks,
		Blocked: blocked,
		Metrics: metrics,
		Log:     log.Named("server"),
		clients: newClientTable(),
		sem:     semaphore.NewWeighted(maxConns),
		engine:  engine,
	}
	s.replicaOf.Store("")
	s.dispatcher = dispatch.New(store, locks, blocked, log.Named("dispatch"), s.Role)

	if persisted, ok := config.LoadPersistedRole(cfg.StateDir); ok {
		cfg.ReplicaOfAddr = persisted
	}
	if cfg.ReplicaOfAddr != "" {
		s.becomeReplica(cfg.ReplicaOfAddr)
	}
	return s
}

// Role satisfies dispatch.Dispatcher's role hook: RolePrimary unless a
// replication target is currently configured.
func (s *Server) Role() dispatch.Role {
	if dispatch.Role(s.role.Load()) == dispatch.RoleReplica {
		return dispatch.RoleReplica
	}
	return dispatch.RolePrimary
}

func (s *Server) ReplicaOfAddr() string {
	return s.replicaOf.Load().(string)
}

// ListenAndServe accepts client connections on addr until ctx is
// cancelled, bounding concurrency with a fixed-capacity semaphore (the
// worker-pool role golang.org/x/sync/semaphore plays here, generalizing
// the teacher's slotPool).
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.Log.Info("resp listener started", zap.String("addr", addr))
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := s.sem.Acquire(ctx, 1); err != nil {
			conn.Close()
			return ctx.Err()
		}
		go func() {
			defer s.sem.Release(1)
			s.handleConn(ctx, conn)
		}()
	}
}

// ServeReplication accepts SYNC connections from replicas on addr,
// streaming this primary's commit log to each (spec §4.5).
func (s *Server) ServeReplication(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.Log.Info("replication listener started", zap.String("addr", addr))
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		go s.handleReplicaSync(ctx, conn)
	}
}

func (s *Server) handleReplicaSync(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	log := s.Log.Named("replication.producer").With(zap.String("remote", conn.RemoteAddr().String()))

	var fromSeq uint64
	if _, err := readSyncLine(conn, &fromSeq); err != nil {
		log.Warn("bad SYNC handshake", zap.Error(err))
		return
	}
	s.replicaSeen.Store(int64(fromSeq))
	s.Metrics.SetReplicationState(allReplicationStates, replication.StateStreaming.String())

	producer := replication.NewProducer(s.engine, storage.DefaultUpdateLimits, log)
	if err := producer.Stream(ctx, conn, fromSeq, 50*time.Millisecond); err != nil {
		log.Warn("replication stream ended", zap.Error(err))
	}
}

// becomeReplica switches the server into replica mode, starting a
// reconnect-with-backoff loop against primaryAddr and cancelling any
// previously running one (spec §4.5 "on PrimaryMode ... stopped").
func (s *Server) becomeReplica(primaryAddr string) {
	if cancel, ok := s.replCancel.Load().(context.CancelFunc); ok && cancel != nil {
		cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.replCancel.Store(cancel)
	s.role.Store(int32(dispatch.RoleReplica))
	s.replicaOf.Store(primaryAddr)
	s.Metrics.SetReplicationState(allReplicationStates, replication.StateHandshaking.String())

	replica := replication.NewReplica(s.engine, primaryAddr, s.Log.Named("replication.replica"))
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-replica.States():
				if !ok {
					return
				}
				s.Metrics.SetReplicationState(allReplicationStates, st.String())
			}
		}
	}()
	go replica.Run(ctx)
}

// debugSnapshot is struct consumed by internal/admin's /debug/info
// endpoint via debugx.Dump.
type debugSnapshot struct {
	Role            string
	ReplicaOfAddr   string
	ConnectedCount  int
	ReplicaLastSeen int64
	Databases       int
}

// DebugSnapshot captures a point-in-time view of server state for
// admin.StateSnapshot.
func (s *Server) DebugSnapshot() any {
	role := "primary"
	if s.Role() == dispatch.RoleReplica {
		role = "replica"
	}
	return debugSnapshot{
		Role:            role,
		ReplicaOfAddr:   s.ReplicaOfAddr(),
		ConnectedCount:  s.clients.count(),
		ReplicaLastSeen: s.replicaSeen.Load(),
		Databases:       s.Cfg.Databases,
	}
}

// persistRole atomically rewrites this server's role sidecar, so a
// REPLICAOF issued at runtime survives a restart (spec §6 "Replication
// config file").
func (s *Server) persistRole(addr string) error {
	return config.PersistRole(s.Cfg.StateDir, addr)
}

// becomePrimary discards any replica loop and its cursor (spec §4.5).
func (s *Server) becomePrimary() {
	if cancel, ok := s.replCancel.Load().(context.CancelFunc); ok && cancel != nil {
		cancel()
	}
	s.replCancel.Store(context.CancelFunc(nil))
	s.role.Store(int32(dispatch.RolePrimary))
	s.replicaOf.Store("")
	s.Metrics.SetReplicationState(allReplicationStates, replication.StateIdle.String())
}

var allReplicationStates = []string{
	replication.StateIdle.String(),
	replication.StateHandshaking.String(),
	replication.StateStreaming.String(),
	replication.StateReconnecting.String(),
}
