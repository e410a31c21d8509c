package models

import "time"

// Folder is one dated journal entry: a notes document plus an image gallery.
type Folder struct {
	ID         int64     `json:"id" db:"Id"`
	Date       string    `json:"date" db:"Date"`
	NotesHTML  string    `json:"notes_html" db:"NotesHtml"`
	CreatedAt  time.Time `json:"created_at" db:"CreatedAt"`
	UpdatedAt  time.Time `json:"updated_at" db:"UpdatedAt"`
	ImageCount int64     `json:"image_count" db:"ImageCount"` // computed on read, not stored
}

// FolderWithImages is the folder representation returned by the date lookup.
type FolderWithImages struct {
	Folder
	Images []Image `json:"images"`
}
