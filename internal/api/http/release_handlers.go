package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ensemble-works/mpa-server/internal/rbac"
	"github.com/ensemble-works/mpa-server/internal/release"
)

// POST /events/{eventID}/ensembles/{ensembleID}/release
func ReleaseSubmissionSetHandler(orch *release.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := orch.Release(r.Context(), rbac.ActorFromContext(r.Context()),
			chi.URLParam(r, "eventID"), chi.URLParam(r, "ensembleID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, res)
	}
}

// POST /events/{eventID}/ensembles/{ensembleID}/unrelease
func UnreleaseSubmissionSetHandler(orch *release.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := orch.Unrelease(r.Context(), rbac.ActorFromContext(r.Context()),
			chi.URLParam(r, "eventID"), chi.URLParam(r, "ensembleID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, res)
	}
}
