package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZuoMatthew/schemaless/pkg/domain"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
data_dir: /var/lib/schemaless
sync_writes: true
keyspaces:
  - name: users
    indexes:
      - column: user
        path: $.location.state
      - column: user
        path: $.name
  - name: logs
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Listen)
	assert.Equal(t, "/var/lib/schemaless", cfg.DataDir)
	assert.True(t, cfg.SyncWrites)
	assert.False(t, cfg.InMemory)

	require.Len(t, cfg.KeySpaces, 2)
	assert.Equal(t, "users", cfg.KeySpaces[0].Name)
	assert.Equal(t, []domain.IndexDefinition{
		{Column: "user", Path: "$.location.state"},
		{Column: "user", Path: "$.name"},
	}, cfg.KeySpaces[0].Indexes)
	assert.Empty(t, cfg.KeySpaces[1].Indexes)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "schemaless-data", cfg.DataDir)
}

func TestLoadInMemorySkipsDataDir(t *testing.T) {
	path := writeConfig(t, "in_memory: true\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.InMemory)
	assert.Empty(t, cfg.DataDir)
}

func TestLoadInMemoryKeepsExplicitDataDir(t *testing.T) {
	path := writeConfig(t, "in_memory: true\ndata_dir: /tmp/scratch\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.InMemory)
	assert.Equal(t, "/tmp/scratch", cfg.DataDir)
}

func TestLoadRejectsNamelessKeySpace(t *testing.T) {
	path := writeConfig(t, `
keyspaces:
  - indexes:
      - column: user
        path: $.name
`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "without a name")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfig(t, "listen: [unclosed\n")

	_, err := Load(path)
	assert.ErrorContains(t, err, "failed to parse")
}
