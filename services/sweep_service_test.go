package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("orphan"), 0o644))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestSweepRemovesOldOrphans(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	folder, err := env.folders.CreateFolder(ctx, "2024-01-01", "")
	require.NoError(t, err)
	image, err := env.uploads.UploadImage(ctx, strings.NewReader("kept"), "kept.png", folder.ID)
	require.NoError(t, err)
	keptNote, err := env.uploads.UploadNoteImage(ctx, strings.NewReader("note"), "n.png", "2024-01-01")
	require.NoError(t, err)

	writeAged(t, filepath.Join(env.uploadDir, "old_orphan.png"), time.Hour)
	writeAged(t, filepath.Join(env.uploadDir, "fresh_orphan.png"), 0)
	writeAged(t, filepath.Join(env.uploadDir, "notes", "1999-01-01", "x.png"), time.Hour)

	sweeper := NewSweepService(env.store, env.files, 10*time.Minute, env.metrics, zerolog.Nop())

	report, err := sweeper.Sweep(ctx, true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, 3, report.Scanned)
	assert.ElementsMatch(t, []string{"old_orphan.png", "notes/1999-01-01/"}, report.Orphans)
	assert.Equal(t, 1, report.Young)
	assert.Zero(t, report.Removed)
	assert.FileExists(t, filepath.Join(env.uploadDir, "old_orphan.png"))

	report, err = sweeper.Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Removed)
	assert.Zero(t, report.Failed)
	assert.NoFileExists(t, filepath.Join(env.uploadDir, "old_orphan.png"))
	assert.FileExists(t, filepath.Join(env.uploadDir, "fresh_orphan.png"))
	assert.NoDirExists(t, filepath.Join(env.uploadDir, "notes", "1999-01-01"))
	assert.Equal(t, 2.0, testutil.ToFloat64(env.metrics.OrphansRemoved))

	_, err = env.readURL(t, image.URL)
	assert.NoError(t, err)
	_, err = env.readURL(t, keptNote)
	assert.NoError(t, err)
}

func TestSweepKeepsRenamedFoldersNotes(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()

	url, err := env.uploads.UploadNoteImage(ctx, strings.NewReader("note"), "n.png", "2024-01-01")
	require.NoError(t, err)
	folder, err := env.folders.UpsertNotesByDate(ctx, "2024-01-01", `<img src="`+url+`">`)
	require.NoError(t, err)
	_, err = env.folders.RenameFolder(ctx, folder.ID, "2024-03-03")
	require.NoError(t, err)

	sweeper := NewSweepService(env.store, env.files, 0, env.metrics, zerolog.Nop())
	report, err := sweeper.Sweep(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, report.Orphans)

	_, err = env.readURL(t, url)
	assert.NoError(t, err)
}
