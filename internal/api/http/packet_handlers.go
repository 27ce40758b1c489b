package http

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ensemble-works/mpa-server/internal/packet"
	"github.com/ensemble-works/mpa-server/internal/ratelimit"
	"github.com/ensemble-works/mpa-server/internal/rbac"
	"github.com/ensemble-works/mpa-server/internal/rubric"
)

// POST /packets
func CreatePacketHandler(svc *packet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in packet.CreateInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		p, err := svc.Create(r.Context(), rbac.ActorFromContext(r.Context()), in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, p)
	}
}

// PUT /packets/{packetID}/captions
func SavePacketCaptionsHandler(svc *packet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "packetID")
		var in packet.SaveInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		p, err := svc.SaveCaptions(r.Context(), rbac.ActorFromContext(r.Context()), id, in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, p)
	}
}

// POST /packets/{packetID}/submit (rate limited per judge)
func SubmitPacketHandler(svc *packet.Service, limiter *ratelimit.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := rbac.ActorFromContext(r.Context())
		if err := limiter.Allow(r.Context(), actor.UID, "packet_submit"); err != nil {
			writeErr(w, err)
			return
		}
		id := chi.URLParam(r, "packetID")
		var in packet.SubmitInput
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				http.Error(w, "bad json", http.StatusBadRequest)
				return
			}
		}
		p, err := svc.Submit(r.Context(), actor, id, in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, p)
	}
}

// POST /packets/{packetID}/{action} for lock|unlock|release|unrelease
func PacketTransitionHandler(svc *packet.Service, action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := rbac.ActorFromContext(r.Context())
		id := chi.URLParam(r, "packetID")
		var (
			p   *packet.Packet
			err error
		)
		switch action {
		case "lock":
			p, err = svc.Lock(r.Context(), actor, id)
		case "unlock":
			p, err = svc.Unlock(r.Context(), actor, id)
		case "release":
			p, err = svc.Release(r.Context(), actor, id)
		case "unrelease":
			p, err = svc.Unrelease(r.Context(), actor, id)
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, p)
	}
}

// POST /packets/{packetID}/position
func SetJudgePositionHandler(svc *packet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "packetID")
		var req struct {
			JudgePosition string `json:"judge_position"`
			EventID       string `json:"event_id,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		p, err := svc.SetJudgePosition(r.Context(), rbac.ActorFromContext(r.Context()), id,
			rubric.JudgePosition(req.JudgePosition), req.EventID)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, p)
	}
}

// DELETE /packets/{packetID}
func DeletePacketHandler(svc *packet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "packetID")
		if err := svc.Delete(r.Context(), rbac.ActorFromContext(r.Context()), id); err != nil {
			writeErr(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// GET /packets/{packetID}
func GetPacketHandler(svc *packet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := svc.Get(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "packetID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, p)
	}
}

// GET /packets
func ListPacketsHandler(svc *packet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context(), rbac.ActorFromContext(r.Context()))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, list)
	}
}

// GET /packets/{packetID}/audit
func GetPacketAuditHandler(svc *packet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.Audit(r.Context(), rbac.ActorFromContext(r.Context()), chi.URLParam(r, "packetID"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, entries)
	}
}

// POST /packets/{packetID}/recordings (rate limited per judge)
func RecordSessionHandler(rec *packet.Recorder, limiter *ratelimit.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor := rbac.ActorFromContext(r.Context())
		if err := limiter.Allow(r.Context(), actor.UID, "transcribe"); err != nil {
			writeErr(w, err)
			return
		}
		id := chi.URLParam(r, "packetID")
		audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 32<<20))
		if err != nil {
			http.Error(w, "read audio: "+err.Error(), http.StatusBadRequest)
			return
		}
		in := packet.RecordInput{
			Audio:       audio,
			ContentType: r.Header.Get("Content-Type"),
			DurationSec: parseIntDefault(r.URL.Query().Get("duration_sec"), 0),
			Segments:    parseIntDefault(r.URL.Query().Get("segments"), 1),
		}
		p, err := rec.Record(r.Context(), actor, id, in)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, p)
	}
}

func parseIntDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
