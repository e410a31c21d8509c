package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"notebook_server_go/data"
	"notebook_server_go/filestore"
	"notebook_server_go/metrics"
	"notebook_server_go/models"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

var errFolderNotFound = models.NewNotFoundError("folder not found")

// FolderService manages folders, their notes and the images they own.
type FolderService struct {
	store   *data.Store
	files   *filestore.Store
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewFolderService(store *data.Store, files *filestore.Store, m *metrics.Metrics, log zerolog.Logger) *FolderService {
	return &FolderService{
		store:   store,
		files:   files,
		metrics: m,
		log:     log.With().Str("component", "folders").Logger(),
	}
}

// ListFolders returns all folders, newest date first.
func (s *FolderService) ListFolders(ctx context.Context) ([]models.Folder, error) {
	folders, err := data.GetAllFolders(ctx, s.store.DB())
	if err != nil {
		return nil, models.NewStorageError("failed to list folders", err)
	}
	return folders, nil
}

// CreateFolder creates a folder for date with the given notes.
func (s *FolderService) CreateFolder(ctx context.Context, date, notesHTML string) (*models.Folder, error) {
	date, err := validateDate(date)
	if err != nil {
		return nil, err
	}

	folder := &models.Folder{Date: date, NotesHTML: notesHTML}
	if _, err := data.CreateFolder(ctx, s.store.DB(), folder); err != nil {
		if data.IsUniqueViolation(err) {
			return nil, models.NewValidationError(fmt.Sprintf("a folder for date %s already exists", date))
		}
		return nil, models.NewStorageError("failed to create folder", err)
	}
	s.log.Info().Int64("folder_id", folder.ID).Str("date", date).Msg("folder created")
	return folder, nil
}

// EnsureFolder returns the folder for date, creating an empty one if absent.
// With unique dates the lookup-or-insert is atomic; otherwise two concurrent
// calls for an unseen date may both create a folder.
func (s *FolderService) EnsureFolder(ctx context.Context, date string) (*models.Folder, error) {
	date, err := validateDate(date)
	if err != nil {
		return nil, err
	}

	var folder *models.Folder
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		folder, err = s.ensureFolderTx(ctx, tx, date)
		return err
	})
	if err != nil {
		return nil, models.NewStorageError("failed to ensure folder", err)
	}
	return folder, nil
}

func (s *FolderService) ensureFolderTx(ctx context.Context, tx *sqlx.Tx, date string) (*models.Folder, error) {
	if s.store.UniqueDates() {
		created, err := data.InsertFolderIfAbsent(ctx, tx, date)
		if err != nil {
			return nil, err
		}
		folder, err := data.GetFolderByDate(ctx, tx, date)
		if err != nil {
			return nil, err
		}
		if folder == nil {
			return nil, fmt.Errorf("folder for date %q vanished after insert", date)
		}
		if created {
			s.log.Info().Int64("folder_id", folder.ID).Str("date", date).Msg("folder created on first write")
		}
		return folder, nil
	}

	folder, err := data.GetFolderByDate(ctx, tx, date)
	if err != nil || folder != nil {
		return folder, err
	}
	folder = &models.Folder{Date: date}
	if _, err := data.CreateFolder(ctx, tx, folder); err != nil {
		return nil, err
	}
	s.log.Info().Int64("folder_id", folder.ID).Str("date", date).Msg("folder created on first write")
	return folder, nil
}

// GetFolder returns the folder with id.
func (s *FolderService) GetFolder(ctx context.Context, id int64) (*models.Folder, error) {
	folder, err := data.GetFolderByID(ctx, s.store.DB(), id)
	if err != nil {
		return nil, models.NewStorageError("failed to load folder", err)
	}
	if folder == nil {
		return nil, errFolderNotFound
	}
	return folder, nil
}

// GetFolderWithImages returns the folder with id and its images.
func (s *FolderService) GetFolderWithImages(ctx context.Context, id int64) (*models.FolderWithImages, error) {
	folder, err := s.GetFolder(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withImages(ctx, folder)
}

// GetFolderByDate returns the first folder labelled date and its images.
func (s *FolderService) GetFolderByDate(ctx context.Context, date string) (*models.FolderWithImages, error) {
	date, err := validateDate(date)
	if err != nil {
		return nil, err
	}
	folder, err := data.GetFolderByDate(ctx, s.store.DB(), date)
	if err != nil {
		return nil, models.NewStorageError("failed to load folder", err)
	}
	if folder == nil {
		return nil, errFolderNotFound
	}
	return s.withImages(ctx, folder)
}

func (s *FolderService) withImages(ctx context.Context, folder *models.Folder) (*models.FolderWithImages, error) {
	images, err := data.GetImagesByFolderID(ctx, s.store.DB(), folder.ID)
	if err != nil {
		return nil, models.NewStorageError("failed to list images", err)
	}
	return &models.FolderWithImages{Folder: *folder, Images: images}, nil
}

// UpdateNotes replaces the notes document of folder id.
func (s *FolderService) UpdateNotes(ctx context.Context, id int64, html string) (*models.Folder, error) {
	return s.UpdateFolder(ctx, id, &html, nil)
}

// RenameFolder changes the date label of folder id. With unique dates a
// label already used by another folder is rejected.
func (s *FolderService) RenameFolder(ctx context.Context, id int64, newDate string) (*models.Folder, error) {
	return s.UpdateFolder(ctx, id, nil, &newDate)
}

// UpdateFolder applies the non-nil fields to folder id.
func (s *FolderService) UpdateFolder(ctx context.Context, id int64, notesHTML, date *string) (*models.Folder, error) {
	if err := validateID("id", id); err != nil {
		return nil, err
	}
	if notesHTML == nil && date == nil {
		return nil, models.NewValidationError("notes_html or date is required")
	}
	if date != nil {
		d, err := validateDate(*date)
		if err != nil {
			return nil, err
		}
		date = &d
	}

	var folder *models.Folder
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		folder, err = data.GetFolderByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if folder == nil {
			return errFolderNotFound
		}
		if notesHTML != nil {
			folder.NotesHTML = *notesHTML
		}
		if date != nil {
			folder.Date = *date
		}
		return data.UpdateFolder(ctx, tx, folder)
	})
	if err != nil {
		return nil, s.updateError(err, folder)
	}
	s.log.Debug().Int64("folder_id", id).Bool("notes", notesHTML != nil).Bool("date", date != nil).Msg("folder updated")
	return folder, nil
}

// UpsertNotesByDate replaces the notes of the folder for date, creating the
// folder first if needed.
func (s *FolderService) UpsertNotesByDate(ctx context.Context, date, html string) (*models.Folder, error) {
	date, err := validateDate(date)
	if err != nil {
		return nil, err
	}

	var folder *models.Folder
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		folder, err = s.ensureFolderTx(ctx, tx, date)
		if err != nil {
			return err
		}
		folder.NotesHTML = html
		return data.UpdateFolder(ctx, tx, folder)
	})
	if err != nil {
		return nil, models.NewStorageError("failed to save notes", err)
	}
	return folder, nil
}

func (s *FolderService) updateError(err error, folder *models.Folder) error {
	switch {
	case models.IsNotFound(err):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return errFolderNotFound
	case data.IsUniqueViolation(err) && folder != nil:
		return models.NewValidationError(fmt.Sprintf("a folder for date %s already exists", folder.Date))
	default:
		return models.NewStorageError("failed to update folder", err)
	}
}

// DeleteFolder deletes folder id together with its images. Image rows go
// with the folder row in one transaction; blobs are removed afterwards on a
// best-effort basis, as is the notes directory once nothing refers to it.
func (s *FolderService) DeleteFolder(ctx context.Context, id int64) error {
	if err := validateID("id", id); err != nil {
		return err
	}

	var (
		folder *models.Folder
		blobs  []string
	)
	err := s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		folder, err = data.GetFolderByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if folder == nil {
			return errFolderNotFound
		}
		if blobs, err = data.GetImageFilenamesByFolderID(ctx, tx, id); err != nil {
			return err
		}
		return data.DeleteFolder(ctx, tx, id)
	})
	if err != nil {
		if models.IsNotFound(err) || errors.Is(err, sql.ErrNoRows) {
			return errFolderNotFound
		}
		return models.NewStorageError("failed to delete folder", err)
	}

	log := s.log.With().Int64("folder_id", id).Str("date", folder.Date).Logger()
	for _, name := range blobs {
		removeBlob(s.files, s.metrics, log, "", name)
	}
	s.removeNotesDir(ctx, log, folder.Date)
	log.Info().Int("images", len(blobs)).Msg("folder deleted")
	return nil
}

func (s *FolderService) removeNotesDir(ctx context.Context, log zerolog.Logger, date string) {
	subpath, err := filestore.NotesSubpath(date)
	if err != nil {
		return
	}
	dir := filestore.NotesDirName(date)
	inUse, err := notesDirInUse(ctx, s.store.DB(), dir)
	if err != nil {
		log.Warn().Err(err).Msg("failed to check notes directory, keeping it")
		return
	}
	if inUse {
		return
	}
	if err := s.files.RemoveDir(subpath); err != nil {
		s.metrics.BlobDeleteFailures.Inc()
		log.Warn().Err(err).Str("dir", subpath).Msg("failed to remove notes directory")
	}
}

// ListImages returns the images of folder id, most recent first. A missing
// folder simply has no images.
func (s *FolderService) ListImages(ctx context.Context, folderID int64) ([]models.Image, error) {
	images, err := data.GetImagesByFolderID(ctx, s.store.DB(), folderID)
	if err != nil {
		return nil, models.NewStorageError("failed to list images", err)
	}
	return images, nil
}

// RenameImage changes the display name of image id. The stored blob and its
// URL are left untouched.
func (s *FolderService) RenameImage(ctx context.Context, id int64, newName string) (*models.Image, error) {
	if err := validateID("id", id); err != nil {
		return nil, err
	}
	newName, err := validateDisplayName(newName)
	if err != nil {
		return nil, err
	}

	var image *models.Image
	err = s.store.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := data.UpdateImageOriginalFilename(ctx, tx, id, newName); err != nil {
			return err
		}
		var err error
		image, err = data.GetImageByID(ctx, tx, id)
		return err
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errImageNotFound
		}
		return nil, models.NewStorageError("failed to rename image", err)
	}
	if image == nil {
		return nil, errImageNotFound
	}
	return image, nil
}
