package command

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shepherrrd/schemasync/internal/migrations"
	"github.com/shepherrrd/schemasync/internal/schema"
)

func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"modules/crm/version.txt":      "# 1 Create contacts\n@seed\n",
		"modules/crm/updates/1.sql":    "CREATE TABLE contact (id INTEGER PRIMARY KEY, name TEXT);",
		"modules/crm/updates/seed.sql": "INSERT INTO contact (name) VALUES ('ada');",
	}
	for name, content := range files {
		p := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	t.Setenv("SCHEMASYNC_DSN", filepath.Join(dir, "app.db"))
	t.Setenv("SCHEMASYNC_DRIVER", "sqlite")
	t.Setenv("SCHEMASYNC_MODULES_DIR", filepath.Join(dir, "modules"))
	return dir
}

func run(t *testing.T, meta Meta, name string, args ...string) (int, string, string) {
	t.Helper()
	ui := cli.NewMockUi()
	meta.UI = ui
	meta.LogOutput = io.Discard
	cmd, err := Commands(&meta)[name]()
	require.NoError(t, err)
	code := cmd.Run(args)
	return code, ui.OutputWriter.String(), ui.ErrorWriter.String()
}

func TestCommands_MigrateLifecycle(t *testing.T) {
	setupProject(t)
	var meta Meta

	code, out, _ := run(t, meta, "pending")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "crm: 1, seed")

	code, out, _ = run(t, meta, "migrate", "-dry-run")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "crm: 1, seed")
	assert.NotContains(t, out, "applied")

	code, out, errOut := run(t, meta, "migrate")
	require.Equal(t, 0, code, errOut)
	assert.Contains(t, out, "applied crm/1")
	assert.Contains(t, out, "applied crm/seed")
	assert.Contains(t, out, "2 updates applied")

	code, out, _ = run(t, meta, "status")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "crm")
	assert.Contains(t, out, "1.0.1")

	code, out, _ = run(t, meta, "pending", "crm")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "No pending updates.")

	code, out, _ = run(t, meta, "migrate", "crm")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "0 updates applied")
}

func TestCommands_Errors(t *testing.T) {
	setupProject(t)
	var meta Meta

	code, _, errOut := run(t, meta, "migrate", "nope")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, `unknown module "nope"`)

	code, _, errOut = run(t, meta, "migrate", "a", "b")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "at most one module")

	code, _, errOut = run(t, meta, "status", "-bogus")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "bogus")

	t.Setenv("SCHEMASYNC_DRIVER", "oracle")
	code, _, errOut = run(t, meta, "status")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, `unknown driver "oracle"`)
}

func TestCommands_ExportNeedsSchemaDriver(t *testing.T) {
	setupProject(t)
	meta := Meta{Modules: []migrations.Module{{
		ID:      "core",
		Builtin: true,
		Schema: func(b *schema.Builder) error {
			b.Table("setting").Column("id", schema.TypeInteger)
			return nil
		},
	}}}

	code, _, errOut := run(t, meta, "export")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "does not support schema synchronization")

	code, out, _ := run(t, meta, "export", "crm")
	assert.Equal(t, 0, code)
	assert.Empty(t, out)
}

func TestCommands_Help(t *testing.T) {
	for name, factory := range Commands(&Meta{}) {
		cmd, err := factory()
		require.NoError(t, err)
		assert.NotEmpty(t, cmd.Synopsis(), name)
		assert.Contains(t, cmd.Help(), "Usage: schemasync "+name, name)
	}
}
