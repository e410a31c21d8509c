package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"notebook_server_go/models"

	"github.com/gorilla/mux"
)

const maxJSONBody = 8 << 20

// decodeJSON reads a JSON object from the request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return models.NewValidationError("request body is required")
		}
		if isTooLarge(err) {
			return errTooLarge(maxJSONBody)
		}
		return models.NewValidationError("invalid JSON body: " + err.Error())
	}
	return nil
}

// pathID parses the numeric {id} route variable.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError("id must be a positive integer")
	}
	return id, nil
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

// tooLargeError is reported as 413.
type tooLargeError struct {
	limit int64
}

func (e *tooLargeError) Error() string {
	return fmt.Sprintf("request body too large (max %d MB)", e.limit>>20)
}

func (e *tooLargeError) StatusCode() int { return http.StatusRequestEntityTooLarge }

func errTooLarge(limit int64) error { return &tooLargeError{limit: limit} }
