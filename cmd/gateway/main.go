package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/ensemble-works/mpa-server/internal/api/http"
	"github.com/ensemble-works/mpa-server/internal/auth"
	authmw "github.com/ensemble-works/mpa-server/internal/auth/middleware"
	"github.com/ensemble-works/mpa-server/internal/config"
	"github.com/ensemble-works/mpa-server/internal/db"
	"github.com/ensemble-works/mpa-server/internal/docstore"
	"github.com/ensemble-works/mpa-server/internal/packet"
	"github.com/ensemble-works/mpa-server/internal/ratelimit"
	rbac "github.com/ensemble-works/mpa-server/internal/rbac"
	"github.com/ensemble-works/mpa-server/internal/release"
	storage "github.com/ensemble-works/mpa-server/internal/storage"
	"github.com/ensemble-works/mpa-server/internal/submission"
	"github.com/ensemble-works/mpa-server/internal/transcribe"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	store := docstore.NewSQLStore(dbh)

	// --- Services ---
	dir := auth.NewDirectory(store)
	authSvc := authmw.NewAuthService(cfg.AuthSecret)
	subs := submission.NewService(store)
	packets := packet.NewService(store)
	orch := release.NewOrchestrator(store)
	limiter := ratelimit.New(store, cfg.RateLimitWindow, cfg.RateLimitMax)

	blobs, err := storage.NewAudioStore(cfg.AudioBasePath)
	if err != nil {
		log.Fatalf("audio store: %v", err)
	}
	recorder := packet.NewRecorder(packets, blobs,
		transcribe.NewHTTPClient(cfg.TranscribeURL, cfg.TranscribeTimeout))

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", api.LoginHandler(dir, authSvc))

	// Protected API (JWT → actor in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(authSvc))

		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dir))

		// Open packets (judge flow)
		pr.With(rbac.Require("packet:create")).
			Post("/packets", api.CreatePacketHandler(packets))
		pr.With(rbac.RequireAny("packet:view-own", "scores:view-released")).
			Get("/packets", api.ListPacketsHandler(packets))
		pr.With(rbac.RequireAny("packet:view-own", "scores:view-released")).
			Get("/packets/{packetID}", api.GetPacketHandler(packets))
		pr.With(rbac.Require("packet:save")).
			Put("/packets/{packetID}/captions", api.SavePacketCaptionsHandler(packets))
		pr.With(rbac.Require("packet:submit")).
			Post("/packets/{packetID}/submit", api.SubmitPacketHandler(packets, limiter))
		pr.With(rbac.Require("packet:position")).
			Post("/packets/{packetID}/position", api.SetJudgePositionHandler(packets))
		pr.With(rbac.Require("packet:delete-own")).
			Delete("/packets/{packetID}", api.DeletePacketHandler(packets))
		pr.With(rbac.Require("packet:transcribe")).
			Post("/packets/{packetID}/recordings", api.RecordSessionHandler(recorder, limiter))

		// Admin packet transitions
		pr.With(rbac.Require("packet:lock")).
			Post("/packets/{packetID}/lock", api.PacketTransitionHandler(packets, "lock"))
		pr.With(rbac.Require("packet:unlock")).
			Post("/packets/{packetID}/unlock", api.PacketTransitionHandler(packets, "unlock"))
		pr.With(rbac.Require("packet:release")).
			Post("/packets/{packetID}/release", api.PacketTransitionHandler(packets, "release"))
		pr.With(rbac.Require("packet:unrelease")).
			Post("/packets/{packetID}/unrelease", api.PacketTransitionHandler(packets, "unrelease"))
		pr.With(rbac.Require("packet:audit")).
			Get("/packets/{packetID}/audit", api.GetPacketAuditHandler(packets))

		// Scheduled submissions (judge flow)
		pr.With(rbac.Require("submission:save")).
			Put("/events/{eventID}/ensembles/{ensembleID}/submissions/{position}/captions",
				api.SaveSubmissionCaptionsHandler(subs))
		pr.With(rbac.Require("submission:submit")).
			Post("/events/{eventID}/ensembles/{ensembleID}/submissions/{position}/submit",
				api.SubmitSubmissionHandler(subs))
		pr.With(rbac.RequireAny("submission:view-own", "scores:view-released")).
			Get("/submissions/{submissionID}", api.GetSubmissionHandler(subs))

		// Admin submission transitions
		pr.With(rbac.Require("submission:lock")).
			Post("/submissions/{submissionID}/lock", api.SubmissionLockHandler(subs, true))
		pr.With(rbac.Require("submission:unlock")).
			Post("/submissions/{submissionID}/unlock", api.SubmissionLockHandler(subs, false))

		// Release orchestration (admin)
		pr.With(rbac.Require("release:apply")).
			Post("/events/{eventID}/ensembles/{ensembleID}/release",
				api.ReleaseSubmissionSetHandler(orch))
		pr.With(rbac.Require("release:revoke")).
			Post("/events/{eventID}/ensembles/{ensembleID}/unrelease",
				api.UnreleaseSubmissionSetHandler(orch))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (db=%s)", cfg.HTTPAddr, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
