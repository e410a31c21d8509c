package controllers

import (
	"net/http"

	"notebook_server_go/data"
	"notebook_server_go/httputil"
	"notebook_server_go/models"
)

// HealthController reports whether the server can reach its database.
type HealthController struct {
	store *data.Store
}

func NewHealthController(store *data.Store) *HealthController {
	return &HealthController{store: store}
}

// HealthCheck handles GET /api/status.
func (c *HealthController) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := c.store.DB().PingContext(r.Context()); err != nil {
		httputil.RespondErr(w, r, models.NewStorageError("database unavailable", err))
		return
	}
	httputil.RespondJSON(w, http.StatusOK, httputil.Envelope{
		"status":       "OK",
		"unique_dates": c.store.UniqueDates(),
	})
}
