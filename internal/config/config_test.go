package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsUsable(t *testing.T) {
	cfg := Default()
	require.NotEmpty(t, cfg.ListenAddr)
	require.False(t, cfg.UseRocksDB)
}

func TestLoadOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sabled.toml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr = \"0.0.0.0:7000\"\nuse_rocksdb = true\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:7000", cfg.ListenAddr)
	require.True(t, cfg.UseRocksDB)
}

func TestPersistAndLoadRoleRoundTrip(t *testing.T) {
	dir := t.TempDir()
	_, ok := LoadPersistedRole(dir)
	require.False(t, ok)

	require.NoError(t, PersistRole(dir, "10.0.0.1:6380"))
	addr, ok := LoadPersistedRole(dir)
	require.True(t, ok)
	require.Equal(t, "10.0.0.1:6380", addr)
}
