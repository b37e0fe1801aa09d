package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherrrd/schemasync/internal/errors"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "custom.yaml", `
dsn: "user:pass@tcp(localhost:3306)/app"
driver: mysql
log_level: debug
module_order: [crm, billing]
`)
	t.Setenv("SCHEMASYNC_DRIVER", "postgres")
	t.Setenv("SCHEMASYNC_SAFE_MODE", "true")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "user:pass@tcp(localhost:3306)/app", c.DSN)
	assert.Equal(t, "postgres", c.Driver)
	assert.True(t, c.SafeMode)
	assert.False(t, c.IgnoreScriptErrors)
	assert.Equal(t, []string{"crm", "billing"}, c.ModuleOrder)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "silent", c.GormLogLevel)
	assert.Equal(t, "modules", c.ModulesDir)
}

func TestLoad_DefaultFileAndModuleOrderFromEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, DefaultFile, "dsn: file.db\ndriver: sqlite\nmodule_order: [a]\n")
	chdir(t, dir)
	t.Setenv("SCHEMASYNC_MODULE_ORDER", "x,y")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.Driver)
	assert.Equal(t, []string{"x", "y"}, c.ModuleOrder)
}

func TestLoad_DatabaseURL(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("SCHEMASYNC_DRIVER", "postgres")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/app", c.DSN)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "# local\nOTHER=1\nDATABASE_URL=\"root@tcp(db:3306)/app\"\n")
	chdir(t, dir)
	t.Setenv("DATABASE_URL", "")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "root@tcp(db:3306)/app", c.DSN)
	assert.Equal(t, "mysql", c.Driver)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("DATABASE_URL", "")
	bad := writeFile(t, dir, "bad.yaml", "dsn: [unclosed\n")
	unknown := writeFile(t, dir, "unknown.yaml", "dsn: x\ndriver: oracle\n")

	tests := []struct {
		name string
		path string
		msg  string
	}{
		{name: "missing-explicit-file", path: filepath.Join(dir, "nope.yaml"), msg: "read"},
		{name: "bad-yaml", path: bad, msg: "parse"},
		{name: "no-dsn", path: "", msg: "no database connection"},
		{name: "unknown-driver", path: unknown, msg: `unknown driver "oracle"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.Configuration))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
