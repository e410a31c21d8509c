package data

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"notebook_server_go/models"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, path string, unique bool) *Store {
	t.Helper()
	store, err := Open(context.Background(), Options{Path: path, UniqueDates: unique}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func newTestStore(t *testing.T, unique bool) *Store {
	t.Helper()
	return openTestStore(t, filepath.Join(t.TempDir(), "db", "notebook.db"), unique)
}

func TestFolderCRUD(t *testing.T) {
	store := newTestStore(t, true)
	ctx := context.Background()
	db := store.DB()

	folder := &models.Folder{Date: "2024-01-01", NotesHTML: "<p>x</p>"}
	id, err := CreateFolder(ctx, db, folder)
	require.NoError(t, err)
	assert.Equal(t, id, folder.ID)

	got, err := GetFolderByID(ctx, db, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "<p>x</p>", got.NotesHTML)
	assert.Zero(t, got.ImageCount)

	got.NotesHTML = "<p>y</p>"
	got.Date = "2024-01-02"
	require.NoError(t, UpdateFolder(ctx, db, got))

	byDate, err := GetFolderByDate(ctx, db, "2024-01-02")
	require.NoError(t, err)
	require.NotNil(t, byDate)
	assert.Equal(t, "<p>y</p>", byDate.NotesHTML)
	assert.False(t, byDate.UpdatedAt.Before(byDate.CreatedAt))

	missing, err := GetFolderByID(ctx, db, id+1)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, DeleteFolder(ctx, db, id))
	assert.True(t, errors.Is(DeleteFolder(ctx, db, id), sql.ErrNoRows))
	assert.True(t, errors.Is(UpdateFolder(ctx, db, got), sql.ErrNoRows))
}

func TestGetAllFoldersOrder(t *testing.T) {
	store := newTestStore(t, false)
	ctx := context.Background()

	for _, d := range []string{"2024-01-01", "2024-05-01", "2024-01-01"} {
		_, err := CreateFolder(ctx, store.DB(), &models.Folder{Date: d})
		require.NoError(t, err)
	}
	folders, err := GetAllFolders(ctx, store.DB())
	require.NoError(t, err)
	require.Len(t, folders, 3)
	assert.Equal(t, "2024-05-01", folders[0].Date)
	// Equal dates: newest id first.
	assert.Greater(t, folders[1].ID, folders[2].ID)

	first, err := GetFolderByDate(ctx, store.DB(), "2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, folders[2].ID, first.ID)
}

func TestCascadeDeleteRemovesImages(t *testing.T) {
	store := newTestStore(t, true)
	ctx := context.Background()
	db := store.DB()

	folder := &models.Folder{Date: "2024-01-01"}
	_, err := CreateFolder(ctx, db, folder)
	require.NoError(t, err)
	for _, name := range []string{"a.png", "b.png"} {
		_, err := CreateImage(ctx, db, &models.Image{
			Filename: name, OriginalFilename: name, URL: "/uploads/" + name, FolderID: folder.ID,
		})
		require.NoError(t, err)
	}

	got, err := GetFolderByID(ctx, db, folder.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.ImageCount)

	names, err := GetImageFilenamesByFolderID(ctx, db, folder.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.png", "b.png"}, names)

	require.NoError(t, DeleteFolder(ctx, db, folder.ID))

	images, err := GetImagesByFolderID(ctx, db, folder.ID)
	require.NoError(t, err)
	assert.Empty(t, images)
	all, err := GetAllImageFilenames(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestImageOps(t *testing.T) {
	store := newTestStore(t, true)
	ctx := context.Background()
	db := store.DB()

	folder := &models.Folder{Date: "2024-01-01"}
	_, err := CreateFolder(ctx, db, folder)
	require.NoError(t, err)

	first := &models.Image{Filename: "a.png", OriginalFilename: "a.png", URL: "/uploads/a.png", FolderID: folder.ID}
	_, err = CreateImage(ctx, db, first)
	require.NoError(t, err)
	second := &models.Image{Filename: "b.png", OriginalFilename: "b.png", URL: "/uploads/b.png", FolderID: folder.ID}
	_, err = CreateImage(ctx, db, second)
	require.NoError(t, err)

	images, err := GetImagesByFolderID(ctx, db, folder.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, second.ID, images[0].ID, "most recent upload first")

	require.NoError(t, UpdateImageOriginalFilename(ctx, db, first.ID, "holiday.png"))
	got, err := GetImageByID(ctx, db, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "holiday.png", got.OriginalFilename)
	assert.Equal(t, "a.png", got.Filename)

	_, err = CreateImage(ctx, db, &models.Image{Filename: "a.png", URL: "/uploads/a.png", FolderID: folder.ID})
	assert.True(t, IsUniqueViolation(err), "%v", err)

	_, err = CreateImage(ctx, db, &models.Image{Filename: "c.png", URL: "/uploads/c.png", FolderID: folder.ID + 10})
	assert.True(t, IsForeignKeyViolation(err), "%v", err)

	require.NoError(t, DeleteImage(ctx, db, first.ID))
	assert.True(t, errors.Is(DeleteImage(ctx, db, first.ID), sql.ErrNoRows))
	assert.True(t, errors.Is(UpdateImageOriginalFilename(ctx, db, first.ID, "x"), sql.ErrNoRows))
	missing, err := GetImageByID(ctx, db, first.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestUniqueDates(t *testing.T) {
	store := newTestStore(t, true)
	ctx := context.Background()
	db := store.DB()

	created, err := InsertFolderIfAbsent(ctx, db, "2024-01-01")
	require.NoError(t, err)
	assert.True(t, created)
	created, err = InsertFolderIfAbsent(ctx, db, "2024-01-01")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = CreateFolder(ctx, db, &models.Folder{Date: "2024-01-01"})
	assert.True(t, IsUniqueViolation(err), "%v", err)
}

func TestOpenReconcilesUniqueIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notebook.db")
	ctx := context.Background()

	loose, err := Open(ctx, Options{Path: path, UniqueDates: false}, zerolog.Nop())
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := CreateFolder(ctx, loose.DB(), &models.Folder{Date: "2024-01-01"})
		require.NoError(t, err)
	}
	require.NoError(t, loose.Close())

	_, err = Open(ctx, Options{Path: path, UniqueDates: true}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unique folder dates")

	again := openTestStore(t, path, false)
	assert.False(t, again.UniqueDates())
}

func TestWithTxRollsBack(t *testing.T) {
	store := newTestStore(t, true)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := CreateFolder(ctx, tx, &models.Folder{Date: "2024-01-01"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	folders, err := GetAllFolders(ctx, store.DB())
	require.NoError(t, err)
	assert.Empty(t, folders)

	assert.Panics(t, func() {
		_ = store.WithTx(ctx, func(tx *sqlx.Tx) error {
			if _, err := CreateFolder(ctx, tx, &models.Folder{Date: "2024-01-02"}); err != nil {
				return err
			}
			panic("mid-transaction")
		})
	})
	folders, err = GetAllFolders(ctx, store.DB())
	require.NoError(t, err)
	assert.Empty(t, folders)
}

func TestCountFoldersWithNotesContaining(t *testing.T) {
	store := newTestStore(t, true)
	ctx := context.Background()

	_, err := CreateFolder(ctx, store.DB(), &models.Folder{Date: "a", NotesHTML: `<img src="/uploads/notes/x/1.png">`})
	require.NoError(t, err)
	_, err = CreateFolder(ctx, store.DB(), &models.Folder{Date: "b", NotesHTML: `<p>none</p>`})
	require.NoError(t, err)

	n, err := CountFoldersWithNotesContaining(ctx, store.DB(), "/uploads/notes/x/")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = CountFoldersWithNotesContaining(ctx, store.DB(), "/uploads/notes/y/")
	require.NoError(t, err)
	assert.Zero(t, n)

	dates, err := GetAllFolderDates(ctx, store.DB())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, dates)
}
