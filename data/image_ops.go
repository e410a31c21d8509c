package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"notebook_server_go/models"

	"github.com/jmoiron/sqlx"
)

const selectImage = `SELECT Id, Filename, OriginalFilename, Url, FolderId, UploadedAt FROM Images`

// CreateImage inserts image and sets its ID and UploadedAt.
// The referenced folder must exist; the foreign key rejects the row otherwise.
func CreateImage(ctx context.Context, q sqlx.ExtContext, image *models.Image) (int64, error) {
	image.UploadedAt = time.Now().UTC()

	query := `INSERT INTO Images (Filename, OriginalFilename, Url, FolderId, UploadedAt)
	          VALUES (:Filename, :OriginalFilename, :Url, :FolderId, :UploadedAt)`
	result, err := sqlx.NamedExecContext(ctx, q, query, image)
	if err != nil {
		return 0, fmt.Errorf("CreateImage: insert failed for folder %d: %w", image.FolderID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("CreateImage: LastInsertId failed: %w", err)
	}
	image.ID = id
	return id, nil
}

// GetImageByID returns the image with id, or nil when it does not exist.
func GetImageByID(ctx context.Context, q sqlx.ExtContext, id int64) (*models.Image, error) {
	image := &models.Image{}
	err := sqlx.GetContext(ctx, q, image, selectImage+` WHERE Id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("GetImageByID: query failed for ID %d: %w", id, err)
	}
	return image, nil
}

// GetImagesByFolderID returns the folder's images, most recent upload first.
func GetImagesByFolderID(ctx context.Context, q sqlx.ExtContext, folderID int64) ([]models.Image, error) {
	images := []models.Image{}
	err := sqlx.SelectContext(ctx, q, &images,
		selectImage+` WHERE FolderId = ? ORDER BY UploadedAt DESC, Id DESC`, folderID)
	if err != nil {
		return nil, fmt.Errorf("GetImagesByFolderID: query failed for folder %d: %w", folderID, err)
	}
	return images, nil
}

// GetImageFilenamesByFolderID returns the stored blob names owned by a folder.
func GetImageFilenamesByFolderID(ctx context.Context, q sqlx.ExtContext, folderID int64) ([]string, error) {
	names := []string{}
	err := sqlx.SelectContext(ctx, q, &names, `SELECT Filename FROM Images WHERE FolderId = ?`, folderID)
	if err != nil {
		return nil, fmt.Errorf("GetImageFilenamesByFolderID: query failed for folder %d: %w", folderID, err)
	}
	return names, nil
}

// GetAllImageFilenames returns every stored blob name known to the database.
func GetAllImageFilenames(ctx context.Context, q sqlx.ExtContext) ([]string, error) {
	names := []string{}
	if err := sqlx.SelectContext(ctx, q, &names, `SELECT Filename FROM Images`); err != nil {
		return nil, fmt.Errorf("GetAllImageFilenames: query failed: %w", err)
	}
	return names, nil
}

// UpdateImageOriginalFilename changes the display name of an image.
// Returns sql.ErrNoRows when the image does not exist.
func UpdateImageOriginalFilename(ctx context.Context, q sqlx.ExtContext, id int64, name string) error {
	result, err := q.ExecContext(ctx, `UPDATE Images SET OriginalFilename = ? WHERE Id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("UpdateImageOriginalFilename: update failed for ID %d: %w", id, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteImage removes the image row. The blob is the caller's concern.
// Returns sql.ErrNoRows when the image does not exist.
func DeleteImage(ctx context.Context, q sqlx.ExtContext, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM Images WHERE Id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteImage: delete failed for ID %d: %w", id, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
