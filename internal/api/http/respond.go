package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ensemble-works/mpa-server/internal/apperr"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the error taxonomy onto HTTP statuses. The message is
// the specific invariant that failed, so an admin can correct the data
// instead of retrying blindly.
func writeErr(w http.ResponseWriter, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		http.Error(w, ae.Message, apperr.HTTPStatus(ae.Code))
		return
	}
	http.Error(w, "internal error", http.StatusInternalServerError)
}
