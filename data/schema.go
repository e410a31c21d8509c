package data

const mainSchema = `
CREATE TABLE IF NOT EXISTS Folders (
    Id INTEGER PRIMARY KEY AUTOINCREMENT,
    Date TEXT NOT NULL,
    NotesHtml TEXT NOT NULL DEFAULT '',
    CreatedAt DATETIME NOT NULL,
    UpdatedAt DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS IX_Folders_Date ON Folders(Date);

CREATE TABLE IF NOT EXISTS Images (
    Id INTEGER PRIMARY KEY AUTOINCREMENT,
    Filename TEXT NOT NULL UNIQUE, -- stored blob name, unique in the gallery area
    OriginalFilename TEXT NOT NULL DEFAULT '',
    Url TEXT NOT NULL,
    FolderId INTEGER NOT NULL,
    UploadedAt DATETIME NOT NULL,
    FOREIGN KEY (FolderId) REFERENCES Folders(Id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS IX_Images_FolderId ON Images(FolderId, UploadedAt);
`

// The unique date index is managed separately so it can follow configuration.
const uniqueDateIndexName = "UX_Folders_Date"

const createUniqueDateIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ` + uniqueDateIndexName + ` ON Folders(Date)`

const dropUniqueDateIndex = `DROP INDEX IF EXISTS ` + uniqueDateIndexName

// GetMainSchema returns the DDL for the journal tables.
func GetMainSchema() string {
	return mainSchema
}
