package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func setLocalEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	blobDir := filepath.Join(dir, "blobs")
	t.Setenv("BLOB_BACKEND", "local")
	t.Setenv("BLOB_LOCAL_DIR", blobDir)
	t.Setenv("BLOB_SIGNING_KEY", "secret")
	t.Setenv("DOC_BACKEND", "badger")
	t.Setenv("BADGER_DIR", filepath.Join(dir, "docs"))
	t.Setenv("LOG_LEVEL", "error")
	return blobDir
}

func TestEnvFileFlagDefault(t *testing.T) {
	app := newCLI()

	var envFlag *cli.StringFlag
	for _, flag := range app.Flags {
		if f, ok := flag.(*cli.StringFlag); ok && f.Name == "env-file" {
			envFlag = f
		}
	}
	require.NotNil(t, envFlag)
	assert.Equal(t, ".env", envFlag.Value)
}

func TestCommandsRegistered(t *testing.T) {
	app := newCLI()
	for _, name := range []string{"serve", "migrate", "orphans"} {
		assert.NotNil(t, app.Command(name), name)
	}
}

func TestMigrateRequiresPostgres(t *testing.T) {
	setLocalEnv(t)
	app := newCLI()

	err := app.Run([]string{"eldercare", "--env-file", filepath.Join(t.TempDir(), "none.env"), "migrate"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOC_BACKEND=postgres")
}

func TestConfigErrorIsReported(t *testing.T) {
	setLocalEnv(t)
	t.Setenv("BLOB_SIGNING_KEY", "")
	app := newCLI()

	err := app.Run([]string{"eldercare", "--env-file", filepath.Join(t.TempDir(), "none.env"), "orphans"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BLOB_SIGNING_KEY is required")
}

func TestOrphansCommandListsUnreferencedBlobs(t *testing.T) {
	blobDir := setLocalEnv(t)
	require.NoError(t, os.MkdirAll(filepath.Join(blobDir, "unreal-envs"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(blobDir, "unreal-envs", "1_lost.pak"), []byte("x"), 0o644))

	out := &bytes.Buffer{}
	app := newCLI()
	app.Writer = out

	err := app.Run([]string{"eldercare", "--env-file", filepath.Join(t.TempDir(), "none.env"), "orphans"})
	require.NoError(t, err)
	assert.Equal(t, "unreal-envs/1_lost.pak\n", out.String())
}
