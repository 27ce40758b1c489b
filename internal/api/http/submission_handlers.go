package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ensemble-works/mpa-server/internal/rbac"
	"github.com/ensemble-works/mpa-server/internal/rubric"
	"github.com/ensemble-works/mpa-server/internal/submission"
)

func positionParam(r *http.Request) (rubric.JudgePosition, error) {
	return rubric.ParsePosition(chi.URLParam(r, "position"))
}

// PUT /events/{eventID}/ensembles/{ensembleID}/submissions/{position}/captions
func SaveSubmissionCaptionsHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pos, err := positionParam(r)
		if err != nil {
			writeErr(w, err)
			return
		}
		var in submission.SaveInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		sub, err := svc.SaveCaptions(r.Context(), rbac.ActorFromContext(r.Context()),
			chi.URLParam(r, "eventID"), chi.URLParam(r, "ensembleID"), pos, in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, sub)
	}
}

// POST /events/{eventID}/ensembles/{ensembleID}/submissions/{position}/submit
func SubmitSubmissionHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pos, err := positionParam(r)
		if err != nil {
			writeErr(w, err)
			return
		}
		var in submission.SaveInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		sub, err := svc.Submit(r.Context(), rbac.ActorFromContext(r.Context()),
			chi.URLParam(r, "eventID"), chi.URLParam(r, "ensembleID"), pos, in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, sub)
	}
}

// POST /submissions/{submissionID}/lock and /unlock
func SubmissionLockHandler(svc *submission.Service, lock bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := rbac.ActorFromContext(r.Context())
		id := chi.URLParam(r, "submissionID")
		var (
			sub *submission.Submission
			err error
		)
		if lock {
			sub, err = svc.Lock(r.Context(), actor, id)
		} else {
			sub, err = svc.Unlock(r.Context(), actor, id)
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, sub)
	}
}

// GET /submissions/{submissionID}
func GetSubmissionHandler(svc *submission.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, err := svc.Get(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "submissionID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, sub)
	}
}
