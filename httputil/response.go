// Package httputil writes the JSON envelopes every API response uses:
// {"success":true, ...} on success and {"success":false,"error":"..."} on
// failure.
package httputil

import (
	"encoding/json"
	"net/http"

	"notebook_server_go/models"

	"github.com/rs/zerolog/hlog"
)

// Envelope holds the fields of a success response besides "success".
type Envelope map[string]interface{}

type failure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// RespondJSON writes a success envelope with the given fields. The body is
// marshalled before any header goes out so encoding errors still become a
// clean 500.
func RespondJSON(w http.ResponseWriter, status int, fields Envelope) {
	body := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		body[k] = v
	}
	body["success"] = true

	payload, err := json.Marshal(body)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	write(w, status, payload)
}

// RespondError writes a failure envelope.
func RespondError(w http.ResponseWriter, status int, message string) {
	payload, err := json.Marshal(failure{Success: false, Error: message})
	if err != nil {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("internal server error"))
		return
	}
	write(w, status, payload)
}

// RespondErr maps err to its status and public message. Server-side
// failures are logged with their cause on the request logger.
func RespondErr(w http.ResponseWriter, r *http.Request, err error) {
	status := models.StatusOf(err)
	if status >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
	}
	RespondError(w, status, models.PublicMessage(err))
}

func write(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(payload)
}
