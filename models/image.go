package models

import "time"

// Image describes one gallery blob and the folder that owns it.
type Image struct {
	ID               int64     `json:"id" db:"Id"`
	Filename         string    `json:"filename" db:"Filename"`                  // stored blob name
	OriginalFilename string    `json:"original_filename" db:"OriginalFilename"` // display name
	URL              string    `json:"url" db:"Url"`
	FolderID         int64     `json:"folder_id" db:"FolderId"`
	UploadedAt       time.Time `json:"uploaded_at" db:"UploadedAt"`
}
