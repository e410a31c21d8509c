package controllers

import (
	"fmt"
	"net/http"

	"notebook_server_go/auth"
	"notebook_server_go/data"
	"notebook_server_go/filestore"
	"notebook_server_go/httputil"
	"notebook_server_go/metrics"
	"notebook_server_go/middleware"
	"notebook_server_go/services"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Dependencies is everything the HTTP layer needs, resolved at startup.
type Dependencies struct {
	Store   *data.Store
	Files   *filestore.Store
	Folders *services.FolderService
	Uploads *services.UploadService
	Metrics *metrics.Metrics
	Log     zerolog.Logger

	// Tokens enables owner authentication on /api when set.
	Tokens            *auth.TokenService
	OwnerPasswordHash string

	MaxUploadBytes int64
	CORSOrigins    []string
	StaticDir      string
}

// NewRouter registers every route. Numeric folder routes come before the
// {date} and {action} ones so an id is never read as a date or action.
func NewRouter(d Dependencies) *mux.Router {
	folders := NewFolderController(d.Folders)
	files := NewFileController(d.Uploads, d.Folders, d.Files, d.MaxUploadBytes)
	health := NewHealthController(d.Store)

	router := mux.NewRouter()
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondError(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	router.Use(middleware.RouteTemplate)

	router.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	if d.Tokens != nil {
		api.Use(middleware.JWTMiddleware(d.Tokens, "/api/status", "/api/auth/token"))
		api.HandleFunc("/auth/token", NewAuthController(d.Tokens, d.OwnerPasswordHash).IssueToken).Methods(http.MethodPost)
	}
	api.HandleFunc("/status", health.HealthCheck).Methods(http.MethodGet)

	api.HandleFunc("/folders", folders.ListFolders).Methods(http.MethodGet)
	api.HandleFunc("/folders", folders.CreateFolder).Methods(http.MethodPost)
	api.HandleFunc("/folders/{id:[0-9]+}", folders.GetFolder).Methods(http.MethodGet)
	api.HandleFunc("/folders/{id:[0-9]+}", folders.UpdateFolder).Methods(http.MethodPut)
	api.HandleFunc("/folders/{id:[0-9]+}/images", folders.ListImages).Methods(http.MethodGet)
	api.HandleFunc("/folders/{date}", folders.GetFolderByDate).Methods(http.MethodGet)
	api.HandleFunc("/folders/{date}/notes", folders.UpsertNotes).Methods(http.MethodPut, http.MethodPost)
	api.HandleFunc("/folders/{date}/notes/images", files.UploadNoteImage).Methods(http.MethodPost)
	api.HandleFunc("/folders/{action}", folders.FolderAction).Methods(http.MethodPut, http.MethodPatch, http.MethodDelete)

	api.HandleFunc("/images", files.UploadImage).Methods(http.MethodPost)
	api.HandleFunc("/images/{action}", files.ImageAction).Methods(http.MethodPut, http.MethodDelete)

	// Blobs stay public so <img> tags in notes can load them.
	router.HandleFunc(filestore.URLPrefix+"{path:.+}", files.ServeBlob).Methods(http.MethodGet, http.MethodHead)

	if d.StaticDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(d.StaticDir))).Methods(http.MethodGet, http.MethodHead)
	} else {
		router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprintln(w, "Notebook server is running.")
		}).Methods(http.MethodGet)
	}
	return router
}

// NewHandler wraps the router with CORS, access logging and request metrics.
func NewHandler(d Dependencies) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: d.CORSOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
	})
	return middleware.LoggerMiddleware(d.Log, d.Metrics)(c.Handler(NewRouter(d)))
}
