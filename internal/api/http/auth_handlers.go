package http

import (
	"encoding/json"
	"net/http"

	"github.com/ensemble-works/mpa-server/internal/apperr"
	"github.com/ensemble-works/mpa-server/internal/auth"
	authmw "github.com/ensemble-works/mpa-server/internal/auth/middleware"
	"github.com/ensemble-works/mpa-server/internal/rbac"
)

// POST /auth/login  { "user_id": "...", "password": "..." }
func LoginHandler(dir *auth.Directory, authSvc *authmw.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID   string `json:"user_id"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		u, err := dir.Authenticate(r.Context(), req.UserID, req.Password)
		if err != nil {
			writeErr(w, err)
			return
		}
		tok, err := authSvc.IssueJWT(u.ID, u.Role, u.School)
		if err != nil {
			writeErr(w, apperr.Wrap(apperr.Internal, "issue token", err))
			return
		}
		writeJSON(w, map[string]string{"access_token": tok, "role": u.Role})
	}
}

// POST /users/change-password
func ChangePasswordHandler(dir *auth.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := rbac.ActorFromContext(r.Context())
		if actor.UID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req struct {
			OldPassword string `json:"old_password"`
			NewPassword string `json:"new_password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if err := dir.ChangePassword(r.Context(), actor.UID, req.OldPassword, req.NewPassword); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
