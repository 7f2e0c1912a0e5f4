package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/gatherline/server/internal/api/middleware"
	"github.com/gatherline/server/internal/api/problem"
	"github.com/gatherline/server/internal/domain/events"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads the request body into dst, answering the 400 itself
// on malformed input.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		problem.Write(w, r, http.StatusBadRequest, "Malformed JSON request body")
		return false
	}
	return true
}

// pathUUID extracts and validates a UUID path parameter. On a bad id
// it writes the 400 and returns false; a well-formed id that matches
// nothing is the repository's 404 to report.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	value := strings.TrimSpace(r.PathValue(name))
	if _, err := uuid.Parse(value); err != nil {
		problem.Write(w, r, http.StatusBadRequest, "Invalid id: must be a UUID")
		return "", false
	}
	return value, true
}

// viewerFrom returns the request's viewer; the zero viewer is an
// anonymous caller.
func viewerFrom(r *http.Request) events.Viewer {
	viewer, _ := middleware.ViewerFrom(r.Context())
	return viewer
}
