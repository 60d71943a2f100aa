package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.StateDir)
	assert.Equal(t, filepath.Join(cfg.StateDir, "audit.db"), cfg.AuditDBPath)
	assert.Equal(t, 5432, cfg.OrderDB.Port)
	assert.False(t, cfg.OrderDB.Enabled())
	assert.False(t, cfg.Sheet.Enabled())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "asmtrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
state_dir: /var/lib/asmtrack
order_db:
  host: orders.internal
  name: r4
sheet:
  base_url: https://sheets.example.com/2.0
`), 0o644))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/asmtrack", cfg.StateDir)
	assert.Equal(t, "/var/lib/asmtrack/audit.db", cfg.AuditDBPath)
	assert.True(t, cfg.OrderDB.Enabled())
	assert.Equal(t, "postgres://readonly:@orders.internal:5432/r4", cfg.OrderDB.DSN())
	assert.False(t, cfg.Sheet.Enabled(), "no token, no sheet")
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ORDER_DB_HOST", "db.example.com")
	t.Setenv("ORDER_DB_PASSWORD", "hunter2")
	t.Setenv("SHEET_TOKEN", "tok-123")
	t.Setenv("SHEET_ID", "sheet-9")

	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, "db.example.com", cfg.OrderDB.Host)
	assert.Equal(t, "hunter2", cfg.OrderDB.Password)
	assert.True(t, cfg.Sheet.Enabled())
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("ORDER_DB_USER=tracker\n"), 0o644))

	cfg, err := Load("", path)
	require.NoError(t, err)
	assert.Equal(t, "tracker", cfg.OrderDB.User)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), "")
	assert.Error(t, err)
}
