package services

import (
	"context"
	"database/sql"
	"errors"
	"io"

	"notebook_server_go/data"
	"notebook_server_go/filestore"
	"notebook_server_go/metrics"
	"notebook_server_go/models"

	"github.com/rs/zerolog"
)

const (
	areaGallery = "gallery"
	areaNotes   = "notes"
)

var (
	errImageNotFound   = models.NewNotFoundError("image not found")
	errMissingFile     = models.NewValidationError("missing file")
	errUnsupportedType = models.NewValidationError("unsupported type")
)

// UploadService pairs blob writes on the file store with image rows in the
// database.
type UploadService struct {
	store   *data.Store
	files   *filestore.Store
	folders *FolderService
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func NewUploadService(store *data.Store, files *filestore.Store, folders *FolderService, m *metrics.Metrics, log zerolog.Logger) *UploadService {
	return &UploadService{
		store:   store,
		files:   files,
		folders: folders,
		metrics: m,
		log:     log.With().Str("component", "uploads").Logger(),
	}
}

// UploadImage stores file in the gallery of folder folderID and records it.
// The blob is written before the row so a row never points at a missing
// blob; if the row cannot be written the blob is removed again.
func (s *UploadService) UploadImage(ctx context.Context, file io.Reader, fileName string, folderID int64) (image *models.Image, err error) {
	var written int64
	defer func() { s.metrics.ObserveUpload(areaGallery, written, err) }()

	name, err := s.checkFile(file, fileName)
	if err != nil {
		return nil, err
	}
	if err := validateID("folder_id", folderID); err != nil {
		return nil, err
	}
	folder, err := data.GetFolderByID(ctx, s.store.DB(), folderID)
	if err != nil {
		return nil, models.NewStorageError("failed to load folder", err)
	}
	if folder == nil {
		return nil, errFolderNotFound
	}

	cr := &countingReader{r: file}
	stored, url, err := s.files.Store(ctx, cr, name, "")
	if err != nil {
		return nil, s.storeError(err)
	}
	written = cr.n

	image = &models.Image{
		Filename:         stored,
		OriginalFilename: name,
		URL:              url,
		FolderID:         folderID,
	}
	if _, err := data.CreateImage(ctx, s.store.DB(), image); err != nil {
		s.compensate(stored, err)
		if data.IsForeignKeyViolation(err) {
			return nil, errFolderNotFound
		}
		return nil, models.NewStorageError("failed to save image", err)
	}

	s.log.Info().
		Int64("image_id", image.ID).
		Int64("folder_id", folderID).
		Str("blob", stored).
		Int64("bytes", written).
		Msg("image uploaded")
	return image, nil
}

// UploadNoteImage stores an image embedded in the notes of date and returns
// its URL. The folder for date is created if needed; no image row is made.
func (s *UploadService) UploadNoteImage(ctx context.Context, file io.Reader, fileName, date string) (url string, err error) {
	var written int64
	defer func() { s.metrics.ObserveUpload(areaNotes, written, err) }()

	name, err := s.checkFile(file, fileName)
	if err != nil {
		return "", err
	}
	if date, err = validateDate(date); err != nil {
		return "", err
	}
	// Resolved before the folder exists so a rejection leaves nothing behind.
	subpath, err := filestore.NotesSubpath(date)
	if err != nil {
		return "", models.NewValidationError("date cannot be used as a notes directory")
	}
	folder, err := s.folders.EnsureFolder(ctx, date)
	if err != nil {
		return "", err
	}

	cr := &countingReader{r: file}
	stored, url, err := s.files.Store(ctx, cr, name, subpath)
	if err != nil {
		return "", s.storeError(err)
	}
	written = cr.n

	s.log.Info().Int64("folder_id", folder.ID).Str("blob", subpath+"/"+stored).Int64("bytes", written).Msg("notes image uploaded")
	return url, nil
}

// DeleteImage deletes image id. The row delete decides the outcome; the
// blob is removed afterwards and a failure there is only logged.
func (s *UploadService) DeleteImage(ctx context.Context, id int64) error {
	if err := validateID("id", id); err != nil {
		return err
	}

	image, err := data.GetImageByID(ctx, s.store.DB(), id)
	if err != nil {
		return models.NewStorageError("failed to load image", err)
	}
	if image == nil {
		return errImageNotFound
	}
	if err := data.DeleteImage(ctx, s.store.DB(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errImageNotFound
		}
		return models.NewStorageError("failed to delete image", err)
	}

	log := s.log.With().Int64("image_id", id).Int64("folder_id", image.FolderID).Logger()
	removeBlob(s.files, s.metrics, log, "", image.Filename)
	log.Info().Msg("image deleted")
	return nil
}

// checkFile applies the payload, name and extension gates and returns the
// display name.
func (s *UploadService) checkFile(file io.Reader, fileName string) (string, error) {
	raw := baseName(fileName)
	if file == nil || raw == "" {
		return "", errMissingFile
	}
	if !s.files.Allowed(filestore.SafeName(raw)) {
		return "", errUnsupportedType
	}
	return uploadName(raw), nil
}

func (s *UploadService) storeError(err error) error {
	switch {
	case errors.Is(err, filestore.ErrUnsupportedType):
		return errUnsupportedType
	case errors.Is(err, filestore.ErrInvalidName):
		return errMissingFile
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return models.NewStorageError("failed to store file", err)
	}
}

func (s *UploadService) compensate(stored string, cause error) {
	s.metrics.UploadCompensations.Inc()
	s.log.Warn().Err(cause).Str("blob", stored).Msg("image row insert failed, removing stored blob")
	removeBlob(s.files, s.metrics, s.log, "", stored)
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
