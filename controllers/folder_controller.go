package controllers

import (
	"net/http"

	"notebook_server_go/httputil"
	"notebook_server_go/models"
	"notebook_server_go/services"

	"github.com/gorilla/mux"
)

// FolderController serves folder, notes and image-metadata endpoints.
type FolderController struct {
	folders *services.FolderService
	actions map[string]map[string]http.HandlerFunc
}

func NewFolderController(folders *services.FolderService) *FolderController {
	c := &FolderController{folders: folders}
	c.actions = map[string]map[string]http.HandlerFunc{
		http.MethodPut:    {"rename": c.renameAction},
		http.MethodPatch:  {"update": c.updateAction},
		http.MethodDelete: {"delete": c.deleteAction},
	}
	return c
}

type createFolderRequest struct {
	Date      string `json:"date"`
	NotesHTML string `json:"notes_html"`
}

type updateFolderRequest struct {
	NotesHTML *string `json:"notes_html"`
	Date      *string `json:"date"`
}

type notesRequest struct {
	NotesHTML *string `json:"notes_html"`
}

type folderActionRequest struct {
	ID        int64   `json:"id"`
	NewDate   string  `json:"new_date"`
	NotesHTML *string `json:"notes_html"`
	Date      *string `json:"date"`
}

// ListFolders handles GET /api/folders.
func (c *FolderController) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := c.folders.ListFolders(r.Context())
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, httputil.Envelope{"folders": folders})
}

// CreateFolder handles POST /api/folders.
func (c *FolderController) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	folder, err := c.folders.CreateFolder(r.Context(), req.Date, req.NotesHTML)
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, httputil.Envelope{"folder": folder})
}

// GetFolder handles GET /api/folders/{id}.
func (c *FolderController) GetFolder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	folder, err := c.folders.GetFolderWithImages(r.Context(), id)
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, httputil.Envelope{"folder": folder})
}

// UpdateFolder handles PUT /api/folders/{id}.
func (c *FolderController) UpdateFolder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	var req updateFolderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	folder, err := c.folders.UpdateFolder(r.Context(), id, req.NotesHTML, req.Date)
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, httputil.Envelope{"folder": folder})
}

// ListImages handles GET /api/folders/{id}/images.
func (c *FolderController) ListImages(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	images, err := c.folders.ListImages(r.Context(), id)
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, httputil.Envelope{"images": images})
}

// GetFolderByDate handles GET /api/folders/{date}.
func (c *FolderController) GetFolderByDate(w http.ResponseWriter, r *http.Request) {
	folder, err := c.folders.GetFolderByDate(r.Context(), mux.Vars(r)["date"])
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, httputil.Envelope{"folder": folder})
}

// UpsertNotes handles PUT and POST /api/folders/{date}/notes.
func (c *FolderController) UpsertNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	if req.NotesHTML == nil {
		httputil.RespondErr(w, r, models.NewValidationError("notes_html is required"))
		return
	}
	folder, err := c.folders.UpsertNotesByDate(r.Context(), mux.Vars(r)["date"], *req.NotesHTML)
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, httputil.Envelope{"folder": folder})
}

// FolderAction handles PUT, PATCH and DELETE /api/folders/{action}, where
// the body names the folder.
func (c *FolderController) FolderAction(w http.ResponseWriter, r *http.Request) {
	dispatch(w, r, c.actions)
}

func (c *FolderController) renameAction(w http.ResponseWriter, r *http.Request) {
	var req folderActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	folder, err := c.folders.RenameFolder(r.Context(), req.ID, req.NewDate)
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, httputil.Envelope{"folder": folder})
}

func (c *FolderController) updateAction(w http.ResponseWriter, r *http.Request) {
	var req folderActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	folder, err := c.folders.UpdateFolder(r.Context(), req.ID, req.NotesHTML, req.Date)
	if err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, httputil.Envelope{"folder": folder})
}

func (c *FolderController) deleteAction(w http.ResponseWriter, r *http.Request) {
	var req folderActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	if err := c.folders.DeleteFolder(r.Context(), req.ID); err != nil {
		httputil.RespondErr(w, r, err)
		return
	}
	httputil.RespondJSON(w, http.StatusOK, nil)
}

// dispatch runs the handler registered for the request method and the
// {action} route variable. Unknown actions are rejected.
func dispatch(w http.ResponseWriter, r *http.Request, actions map[string]map[string]http.HandlerFunc) {
	action := mux.Vars(r)["action"]
	handler, ok := actions[r.Method][action]
	if !ok {
		httputil.RespondErr(w, r, models.NewValidationError("unknown action: "+action))
		return
	}
	handler(w, r)
}
