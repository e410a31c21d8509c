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

const selectFolder = `SELECT f.Id, f.Date, f.NotesHtml, f.CreatedAt, f.UpdatedAt,
	(SELECT COUNT(*) FROM Images i WHERE i.FolderId = f.Id) AS ImageCount
	FROM Folders f`

// CreateFolder inserts folder and sets its ID and timestamps.
func CreateFolder(ctx context.Context, q sqlx.ExtContext, folder *models.Folder) (int64, error) {
	now := time.Now().UTC()
	folder.CreatedAt = now
	folder.UpdatedAt = now

	query := `INSERT INTO Folders (Date, NotesHtml, CreatedAt, UpdatedAt)
	          VALUES (:Date, :NotesHtml, :CreatedAt, :UpdatedAt)`
	result, err := sqlx.NamedExecContext(ctx, q, query, folder)
	if err != nil {
		return 0, fmt.Errorf("CreateFolder: insert failed: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("CreateFolder: LastInsertId failed: %w", err)
	}
	folder.ID = id
	return id, nil
}

// InsertFolderIfAbsent creates an empty folder for date unless one exists.
// It relies on the unique date index and reports whether a row was inserted.
func InsertFolderIfAbsent(ctx context.Context, q sqlx.ExtContext, date string) (bool, error) {
	now := time.Now().UTC()
	result, err := q.ExecContext(ctx,
		`INSERT INTO Folders (Date, NotesHtml, CreatedAt, UpdatedAt) VALUES (?, '', ?, ?)
		 ON CONFLICT(Date) DO NOTHING`, date, now, now)
	if err != nil {
		return false, fmt.Errorf("InsertFolderIfAbsent: insert failed for date %q: %w", date, err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// GetFolderByID returns the folder with id, or nil when it does not exist.
func GetFolderByID(ctx context.Context, q sqlx.ExtContext, id int64) (*models.Folder, error) {
	folder := &models.Folder{}
	err := sqlx.GetContext(ctx, q, folder, selectFolder+` WHERE f.Id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("GetFolderByID: query failed for ID %d: %w", id, err)
	}
	return folder, nil
}

// GetFolderByDate returns the oldest folder labelled date, or nil.
func GetFolderByDate(ctx context.Context, q sqlx.ExtContext, date string) (*models.Folder, error) {
	folder := &models.Folder{}
	err := sqlx.GetContext(ctx, q, folder, selectFolder+` WHERE f.Date = ? ORDER BY f.Id ASC LIMIT 1`, date)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("GetFolderByDate: query failed for date %q: %w", date, err)
	}
	return folder, nil
}

// GetAllFolders returns every folder, newest date first.
func GetAllFolders(ctx context.Context, q sqlx.ExtContext) ([]models.Folder, error) {
	folders := []models.Folder{}
	err := sqlx.SelectContext(ctx, q, &folders, selectFolder+` ORDER BY f.Date DESC, f.Id DESC`)
	if err != nil {
		return nil, fmt.Errorf("GetAllFolders: query failed: %w", err)
	}
	return folders, nil
}

// GetAllFolderDates returns the distinct date labels in use.
func GetAllFolderDates(ctx context.Context, q sqlx.ExtContext) ([]string, error) {
	dates := []string{}
	if err := sqlx.SelectContext(ctx, q, &dates, `SELECT DISTINCT Date FROM Folders`); err != nil {
		return nil, fmt.Errorf("GetAllFolderDates: query failed: %w", err)
	}
	return dates, nil
}

// CountFoldersWithNotesContaining counts folders whose notes contain fragment.
func CountFoldersWithNotesContaining(ctx context.Context, q sqlx.ExtContext, fragment string) (int, error) {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, `SELECT COUNT(*) FROM Folders WHERE instr(NotesHtml, ?) > 0`, fragment); err != nil {
		return 0, fmt.Errorf("CountFoldersWithNotesContaining: query failed: %w", err)
	}
	return n, nil
}

// UpdateFolder writes Date and NotesHtml and bumps UpdatedAt.
// It returns sql.ErrNoRows when the folder does not exist.
func UpdateFolder(ctx context.Context, q sqlx.ExtContext, folder *models.Folder) error {
	folder.UpdatedAt = time.Now().UTC()

	query := `UPDATE Folders SET Date = :Date, NotesHtml = :NotesHtml, UpdatedAt = :UpdatedAt
	          WHERE Id = :Id`
	result, err := sqlx.NamedExecContext(ctx, q, query, folder)
	if err != nil {
		return fmt.Errorf("UpdateFolder: update failed for ID %d: %w", folder.ID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteFolder removes the folder; its images go with it through the
// ON DELETE CASCADE foreign key. Returns sql.ErrNoRows when absent.
func DeleteFolder(ctx context.Context, q sqlx.ExtContext, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM Folders WHERE Id = ?`, id)
	if err != nil {
		return fmt.Errorf("DeleteFolder: delete failed for ID %d: %w", id, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
