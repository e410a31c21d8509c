package controllers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"notebook_server_go/filestore"
	"notebook_server_go/httputil"
	"notebook_server_go/models"
	"notebook_server_go/services"

	"github.com/gorilla/mux"
)

// Parts above this size spill from memory to temporary files.
const multipartMemory = 8 << 20

// FileController serves uploads, image actions and the stored blobs.
type FileController struct {
	uploads  *services.UploadService
	folders  *services.FolderService
	files    *filestore.Store
	maxBytes int64
	actions  map[string]map[string]http.HandlerFunc
}

func NewFileController(uploads *services.UploadService, folders *services.FolderService, files *filestore.Store, maxBytes int64) *FileController {
	c := &FileController{uploads: uploads, folders: folders, files: files, maxBytes: maxBytes}
	c.actions = map[string]map[string]http.HandlerFunc{
		http.MethodPut:    {"rename": c.renameAction},
		http.MethodDelete: {"delete": c.deleteAction},
	}
	return c
}

type imageActionRequest struct {
	ID          int64  `json:"id"`
	NewFilename string `json:"new_filename"`
}

// UploadImage handles POST /api/images with multipart fields file and
// folder_id.
func (c *FileController) UploadImage(w http.ResponseWriter, r *http.Request) {
	file, name, err := c.formFile(w, r)
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	if file != nil {
		defer file.Close()
	}

	// A malformed folder_id is left to the service, which reports a missing
	// file before a bad folder reference.
	folderID, _ := strconv.ParseInt(strings.TrimSpace(r.FormValue("folder_id")), 10, 64)

	image, err := c.uploads.UploadImage(r.Context(), optionalReader(file), name, folderID)
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, httputil.Envelope{"image": image})
}

// UploadNoteImage handles POST /api/folders/{date}/notes/images.
func (c *FileController) UploadNoteImage(w http.ResponseWriter, r *http.Request) {
	file, name, err := c.formFile(w, r)
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	if file != nil {
		defer file.Close()
	}

	url, err := c.uploads.UploadNoteImage(r.Context(), optionalReader(file), name, mux.Vars(r)["date"])
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, httputil.Envelope{"url": url})
}

// ImageAction handles PUT and DELETE /api/images/{action}.
func (c *FileController) ImageAction(w http.ResponseWriter, r *http.Request) {
	dispatch(w, r, c.actions)
}

func (c *FileController) renameAction(w http.ResponseWriter, r *http.Request) {
	var req imageActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	image, err := c.folders.RenameImage(r.Context(), req.ID, req.NewFilename)
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, httputil.Envelope{"image": image})
}

func (c *FileController) deleteAction(w http.ResponseWriter, r *http.Request) {
	var req imageActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	if err := c.uploads.DeleteImage(r.Context(), req.ID); err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, nil)
}

// ServeBlob handles GET /uploads/{path}. Only regular files inside the
// upload root are served; everything else is a 404.
func (c *FileController) ServeBlob(w http.ResponseWriter, r *http.Request) {
	f, info, err := c.files.Open(mux.Vars(r)["path"])
	if err != nil {
		httputil.RespondError(w, http.StatusNotFound, "file not found")
		return
	}
	defer f.Close()

	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// formFile parses the multipart body within the upload limit and returns
// the "file" part. A missing part is not an error here: the upload service
// turns it into a validation failure.
func (c *FileController) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, c.maxBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isTooLarge(err) {
			return nil, "", errTooLarge(c.maxBytes)
		}
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, "", nil
		}
		return nil, "", errInvalidMultipart(err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, "", nil
		}
		return nil, "", errInvalidMultipart(err)
	}
	return file, header.Filename, nil
}

func errInvalidMultipart(err error) error {
	return models.NewValidationError("invalid multipart form: " + err.Error())
}

// optionalReader keeps a missing part a nil interface rather than a typed
// nil.
func optionalReader(f multipart.File) io.Reader {
	if f == nil {
		return nil
	}
	return f
}
