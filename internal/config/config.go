// Package config loads the server's TOML configuration (spec §6) using
// BurntSushi/toml, the way the rest of the retrieval pack's services read
// their config files, and persists the mutable replication role across
// restarts via an atomic rewrite of a small sidecar file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/edirooss/sabled/internal/storage"
)

// RocksDB mirrors storage.RocksDBOptions with TOML tags (spec §6's
// "rocksdb.*" table).
type RocksDB struct {
	Path                   string `toml:"path"`
	MaxWriteBufferNumber   int    `toml:"max_write_buffer_number"`
	MaxBackgroundJobs      int    `toml:"max_background_jobs"`
	ManualWALFlush         bool   `toml:"manual_wal_flush"`
	CompressionEnabled     bool   `toml:"compression_enabled"`
	WriteBufferSize        int    `toml:"write_buffer_size"`
	MaxOpenFiles           int    `toml:"max_open_files"`
	WALTTLSeconds          int    `toml:"wal_ttl_seconds"`
	DisableWAL             bool   `toml:"disable_wal"`
	ReplicationHistoryCap  int    `toml:"replication_history_cap"`
}

func (r RocksDB) ToEngineOptions() storage.RocksDBOptions {
	return storage.RocksDBOptions{
		Path:                  r.Path,
		MaxWriteBufferNumber:  r.MaxWriteBufferNumber,
		MaxBackgroundJobs:     r.MaxBackgroundJobs,
		ManualWALFlush:        r.ManualWALFlush,
		CompressionEnabled:    r.CompressionEnabled,
		WriteBufferSize:       r.WriteBufferSize,
		MaxOpenFiles:          r.MaxOpenFiles,
		WALTTLSeconds:         r.WALTTLSeconds,
		DisableWAL:            r.DisableWAL,
		ReplicationHistoryCap: r.ReplicationHistoryCap,
	}
}

// Config is the full server configuration (spec §6).
type Config struct {
	ListenAddr      string  `toml:"listen_addr"`       // spec "listen.ip"/"listen.port"
	ReplicationAddr string  `toml:"replication_addr"`  // spec "replication.listen_ip"/"replication.port"
	AdminAddr       string  `toml:"admin_addr"`
	LogLevel        string  `toml:"log_level"`
	Workers         int     `toml:"workers"` // bounds the connection worker pool
	Databases       int     `toml:"databases"` // spec "db_count"
	UseRocksDB      bool    `toml:"use_rocksdb"`
	RocksDB         RocksDB `toml:"rocksdb"`
	StateDir        string  `toml:"state_dir"` // spec "config_dir"
	ReplicaOfAddr   string  `toml:"replicaof"` // "" means primary
}

// Default returns a conservative in-process default (in-memory engine,
// localhost listener), used when no config file is supplied.
func Default() Config {
	return Config{
		ListenAddr:      "127.0.0.1:6380",
		ReplicationAddr: "127.0.0.1:6381",
		AdminAddr:       "127.0.0.1:9121",
		LogLevel:        "info",
		Workers:         4096,
		Databases:       16,
		UseRocksDB:      false,
		StateDir:        "./data",
		RocksDB: RocksDB{
			Path:                  "./data/rocksdb",
			MaxWriteBufferNumber:  4,
			MaxBackgroundJobs:     2,
			WriteBufferSize:       64 << 20,
			MaxOpenFiles:          -1,
			WALTTLSeconds:         3600,
			ReplicationHistoryCap: 4096,
		},
	}
}

// Load reads and decodes a TOML file at path, merging onto Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return cfg, nil
}

// roleState is the tiny sidecar persisted across restarts so a server
// that was promoted/demoted via REPLICAOF resumes the same role, rather
// than reverting to whatever the static config file says.
type roleState struct {
	ReplicaOfAddr string `toml:"replicaof"`
}

func roleStatePath(stateDir string) string {
	return filepath.Join(stateDir, "role.toml")
}

// LoadPersistedRole reads the sidecar role file if present, returning
// ("", false) when none has ever been written (first boot: trust cfg).
func LoadPersistedRole(stateDir string) (string, bool) {
	var rs roleState
	if _, err := toml.DecodeFile(roleStatePath(stateDir), &rs); err != nil {
		return "", false
	}
	return rs.ReplicaOfAddr, true
}

// PersistRole atomically rewrites the role sidecar: encode to a temp file
// in the same directory, then rename over the target, so a crash mid-write
// never leaves a partially-written role file for the next boot to read.
func PersistRole(stateDir, replicaOfAddr string) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return fmt.Errorf("config: mkdir state dir: %w", err)
	}
	target := roleStatePath(stateDir)
	tmp := target + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("config: create temp role file: %w", err)
	}
	enc := toml.NewEncoder(f)
	if err := enc.Encode(roleState{ReplicaOfAddr: replicaOfAddr}); err != nil {
		f.Close()
		return fmt.Errorf("config: encode role file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("config: sync role file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("config: close role file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("config: rename role file: %w", err)
	}
	return nil
}
