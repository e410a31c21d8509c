package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"notebook_server_go/auth"
	"notebook_server_go/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestHashPassword(t *testing.T) {
	out, err := runCommand(t, "correct horse\n", "hash-password")
	require.NoError(t, err)
	assert.True(t, auth.CheckPasswordHash("correct horse", strings.TrimSpace(out)))

	_, err = runCommand(t, "", "hash-password")
	assert.Error(t, err)
}

func TestSweepDryRun(t *testing.T) {
	dir := t.TempDir()
	uploads := filepath.Join(dir, "uploads")
	require.NoError(t, os.MkdirAll(uploads, 0o755))
	orphan := filepath.Join(uploads, "stray.png")
	require.NoError(t, os.WriteFile(orphan, []byte("x"), 0o644))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(orphan, old, old))

	out, err := runCommand(t, "", "sweep", "--dry-run",
		"--db", filepath.Join(dir, "notebook.db"),
		"--upload-dir", uploads,
		"--log-level", "error")
	require.NoError(t, err)

	var report services.SweepReport
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.True(t, report.DryRun)
	assert.Equal(t, []string{"stray.png"}, report.Orphans)
	assert.FileExists(t, orphan)
}

func TestListenAddr(t *testing.T) {
	assert.Equal(t, ":8080", listenAddr("8080"))
	assert.Equal(t, "127.0.0.1:9000", listenAddr("127.0.0.1:9000"))
}
