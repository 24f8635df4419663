package main

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/yonwoo9/go-rowcask"
)

func runCmd(t *testing.T, c *rowcask.Cache, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := run(c, strings.NewReader(stdin), &out, args)
	return out.String(), err
}

func TestCommands(t *testing.T) {
	c, err := rowcask.OpenCache(t.TempDir(), rowcask.Logger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	defer c.Close()

	out, err := runCmd(t, c, "", "put", "hello")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)

	out, err = runCmd(t, c, "from stdin", "put", "-")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = runCmd(t, c, "", "get", "2")
	require.NoError(t, err)
	assert.Equal(t, "from stdin\n", out)

	_, err = runCmd(t, c, "", "del", "1")
	require.NoError(t, err)

	_, err = runCmd(t, c, "", "get", "1")
	assert.ErrorIs(t, err, rowcask.ErrNotFound)

	out, err = runCmd(t, c, "", "scan")
	require.NoError(t, err)
	assert.Equal(t, "2\tfrom stdin\n", out)

	out, err = runCmd(t, c, "", "check")
	require.NoError(t, err)
	assert.Contains(t, out, "rows=2 live=1 tombstoned=1 corrupt=0")

	out, err = runCmd(t, c, "", "stats")
	require.NoError(t, err)
	var stats statsOutput
	require.NoError(t, yaml.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 2, stats.Rows)
	assert.Equal(t, rowcask.DefaultCacheCapacity, stats.Capacity)
	assert.Equal(t, uint64(1), stats.Hits)

	snap := filepath.Join(t.TempDir(), "snap")
	_, err = runCmd(t, c, "", "snapshot", snap)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(snap, "db.rows"))
	assert.FileExists(t, filepath.Join(snap, "db.rows.idx"))
}

func TestCommandsUsage(t *testing.T) {
	c, err := rowcask.OpenCache(t.TempDir(), rowcask.Logger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	defer c.Close()

	tests := [][]string{
		{"put"},
		{"get"},
		{"get", "abc"},
		{"del", "1", "2"},
		{"snapshot"},
		{"compact"},
	}
	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			_, err := runCmd(t, c, "", args...)
			assert.ErrorIs(t, err, errUsage)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rowcask.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_value_size: 512\ncache_capacity: 8\n"), 0o644))

	cfg := rowcask.DefaultConfig()
	require.NoError(t, loadConfig(path, cfg))
	assert.Equal(t, 512, cfg.MaxValueSize)
	assert.Equal(t, 8, cfg.CacheCapacity)
	assert.Equal(t, int64(rowcask.DefaultMaxDBSize), cfg.MaxDBSize)

	require.NoError(t, os.WriteFile(path, []byte("max_value_size: [\n"), 0o644))
	assert.Error(t, loadConfig(path, cfg))

	assert.Error(t, loadConfig(filepath.Join(t.TempDir(), "missing.yaml"), cfg))
}
