package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Equal(t, Defaults(), cfg)
	require.Equal(t, 5*time.Minute, cfg.FlushInterval())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lands.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
flush_interval_sec: 60
limits:
  max_nested_depth: 5
store:
  path: /var/lib/lands/lands.db
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 60, cfg.FlushIntervalSec)
	require.Equal(t, 5, cfg.Limits.MaxNestedDepth)
	require.Equal(t, 8, cfg.Limits.MaxChildren)
	require.Equal(t, "/var/lib/lands/lands.db", cfg.Store.Path)
}

func TestLoad_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("limits: [1, 2"), 0o644))
	_, err := Load(bad)
	require.Error(t, err)

	neg := filepath.Join(dir, "neg.yaml")
	require.NoError(t, os.WriteFile(neg, []byte("limits:\n  min_edge: 10\n  max_edge: 5\n"), 0o644))
	_, err = Load(neg)
	require.ErrorContains(t, err, "min_edge")
}
