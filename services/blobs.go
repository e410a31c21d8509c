package services

import (
	"context"
	"errors"

	"notebook_server_go/data"
	"notebook_server_go/filestore"
	"notebook_server_go/metrics"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"
)

// removeBlob deletes a blob after its row is gone. Failures are logged and
// counted but never returned: the row deletion already happened.
func removeBlob(files *filestore.Store, m *metrics.Metrics, log zerolog.Logger, subpath, name string) {
	err := files.Delete(subpath, name)
	switch {
	case err == nil:
		log.Debug().Str("blob", name).Msg("blob removed")
	case errors.Is(err, filestore.ErrNotFound):
		log.Warn().Str("blob", name).Msg("blob already missing")
	default:
		m.BlobDeleteFailures.Inc()
		log.Warn().Err(err).Str("blob", name).Msg("failed to remove blob, left for the orphan sweep")
	}
}

// notesDirInUse reports whether the notes directory dir still belongs to a
// folder: some folder date maps to it, or some notes document links into it.
func notesDirInUse(ctx context.Context, q sqlx.ExtContext, dir string) (bool, error) {
	dates, err := data.GetAllFolderDates(ctx, q)
	if err != nil {
		return false, err
	}
	for _, d := range dates {
		if filestore.NotesDirName(d) == dir {
			return true, nil
		}
	}
	refs, err := data.CountFoldersWithNotesContaining(ctx, q, notesURLPrefix(dir))
	if err != nil {
		return false, err
	}
	return refs > 0, nil
}

func notesURLPrefix(dir string) string {
	return filestore.URLPrefix + filestore.NotesDir + "/" + dir + "/"
}
