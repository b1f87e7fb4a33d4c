package server

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/edirooss/sabled/internal/corerr"
	"github.com/edirooss/sabled/internal/registry"
	"github.com/edirooss/sabled/internal/resp"
)

// handleConn drives one client connection: read a command, intercept the
// connection/server-scope commands this package owns (SELECT, CLIENT,
// INFO, CONFIG, REPLICAOF/SLAVEOF), and otherwise hand off to the L4
// dispatcher. SYNC is handled by ServeReplication on its own listener, not
// here.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	client := s.clients.register(conn.RemoteAddr().String(), conn)
	defer s.clients.unregister(client.id)
	s.Metrics.ConnectedClients.Set(float64(s.clients.count()))
	defer s.Metrics.ConnectedClients.Set(float64(s.clients.count() - 1))

	log := s.Log.With(zap.Int64("client_id", client.id), zap.String("remote", client.addr))
	log.Debug("client connected")

	r := bufio.NewReader(conn)
	w := resp.NewWriter(conn)

	for {
		if ctx.Err() != nil {
			return
		}
		argv, err := resp.ReadCommand(r)
		if err != nil {
			if err != io.EOF {
				log.Debug("connection closed on read error", zap.Error(err))
				// Best-effort error line before the socket goes away,
				// matching the original's protocol-error teardown (no
				// RESET handshake attempted, just a final reply).
				w.Error(corerr.Protocol(err.Error()).RESPLine())
				w.Flush()
			}
			return
		}
		if len(argv) == 0 {
			continue
		}

		if err := s.dispatchOne(client, argv, w); err != nil {
			log.Warn("closing connection after protocol error", zap.Error(err))
			return
		}
		if err := w.Flush(); err != nil {
			return
		}
	}
}

// dispatchOne handles exactly one command: connection/server-scope verbs
// first, then the L4 dispatcher. It returns non-nil only for protocol-
// level failures that require closing the connection (spec §7).
func (s *Server) dispatchOne(client *clientInfo, argv [][]byte, w *resp.Writer) error {
	name := strings.ToUpper(string(argv[0]))
	errored := false
	defer func() { s.Metrics.ObserveCommand(strings.ToLower(name), errored) }()

	switch name {
	case "SELECT":
		errored = s.cmdSelect(client, argv, w) != nil
		return nil
	case "CLIENT":
		errored = s.cmdClient(client, argv, w) != nil
		return nil
	case "INFO":
		errored = s.cmdInfo(argv, w) != nil
		return nil
	case "CONFIG":
		errored = s.cmdConfig(argv, w) != nil
		return nil
	case "REPLICAOF", "SLAVEOF":
		errored = s.cmdReplicaOf(argv, w) != nil
		return nil
	}

	meta := registry.LookupOrUnknown(name)
	if meta.Flags.Has(registry.FlagBlocking) {
		s.Metrics.BlockedClients.Inc()
		defer s.Metrics.BlockedClients.Dec()
	}

	db, _ := client.snapshot()
	err := s.dispatcher.Execute(db, argv, w)
	errored = err != nil
	return err
}

func (s *Server) cmdSelect(client *clientInfo, argv [][]byte, w *resp.Writer) error {
	if len(argv) != 2 {
		return writeErr(w, corerr.WrongArity("select"))
	}
	n, err := strconv.Atoi(string(argv[1]))
	if err != nil || n < 0 || (s.Cfg.Databases > 0 && n >= s.Cfg.Databases) {
		return writeErr(w, corerr.Argument("DB index is out of range"))
	}
	client.setDB(uint32(n))
	return w.SimpleString("OK")
}

func (s *Server) cmdClient(client *clientInfo, argv [][]byte, w *resp.Writer) error {
	if len(argv) < 2 {
		return writeErr(w, corerr.WrongArity("client"))
	}
	sub := strings.ToUpper(string(argv[1]))
	switch sub {
	case "ID":
		return w.Integer(client.id)
	case "GETNAME":
		_, name := client.snapshot()
		return w.BulkStringFromString(name)
	case "SETNAME":
		if len(argv) != 3 {
			return writeErr(w, corerr.WrongArity("client|setname"))
		}
		if bytes.ContainsAny(argv[2], " \n") {
			return writeErr(w, corerr.Argument("Client names cannot contain spaces, newlines or special characters."))
		}
		client.setName(string(argv[2]))
		return w.SimpleString("OK")
	case "LIST":
		now := time.Now()
		var b strings.Builder
		for _, c := range s.clients.list() {
			b.WriteString(c.line(now))
			b.WriteByte('\n')
		}
		return w.BulkStringFromString(b.String())
	case "KILL":
		if len(argv) != 3 {
			return writeErr(w, corerr.WrongArity("client|kill"))
		}
		id, err := strconv.ParseInt(string(argv[2]), 10, 64)
		if err != nil {
			return writeErr(w, corerr.Argument("client-id should be greater than 0"))
		}
		if s.clients.kill(id) {
			return w.SimpleString("OK")
		}
		return writeErr(w, corerr.Argument("No such client ID"))
	default:
		return writeErr(w, corerr.Argument("Unknown CLIENT subcommand or wrong number of arguments for '%s'", sub))
	}
}

func (s *Server) cmdReplicaOf(argv [][]byte, w *resp.Writer) error {
	if len(argv) != 3 {
		return writeErr(w, corerr.WrongArity("replicaof"))
	}
	host, port := string(argv[1]), string(argv[2])
	if strings.EqualFold(host, "no") && strings.EqualFold(port, "one") {
		s.becomePrimary()
		if err := s.persistRole(""); err != nil {
			return writeErr(w, corerr.Storage("persist role", err))
		}
		return w.SimpleString("OK")
	}
	addr := net.JoinHostPort(host, port)
	s.becomeReplica(addr)
	if err := s.persistRole(addr); err != nil {
		return writeErr(w, corerr.Storage("persist role", err))
	}
	return w.SimpleString("OK")
}

func writeErr(w *resp.Writer, err error) error {
	if cerr, ok := err.(*corerr.Error); ok {
		return w.Error(cerr.RESPLine())
	}
	return w.Error("ERR " + err.Error())
}

// readSyncLine parses the replica handshake line "SYNC <seq>\n" sent as a
// plain inline line (not a RESP array) when a replica first connects to
// this primary's replication listener (spec §4.5).
func readSyncLine(conn net.Conn, seq *uint64) (string, error) {
	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		return "", err
	}
	line = strings.TrimSpace(line)
	fields := strings.Fields(line)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "SYNC") {
		return "", fmt.Errorf("expected SYNC <seq>, got %q", line)
	}
	n, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("invalid SYNC cursor %q: %w", fields[1], err)
	}
	*seq = n
	return line, nil
}
