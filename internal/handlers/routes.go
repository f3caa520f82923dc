package handlers

import (
	"net/http"

	"github.com/chatapi/backend/internal/middleware"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
//
// Routes under /api/v1 assume the Authenticate middleware already ran on the
// outer handler chain; the policy wrappers here only decide whether an
// anonymous request may proceed.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	auth := AuthHandler{Users: deps.Users, Tokens: deps.Tokens, LoginLimiter: deps.LoginLimiter}
	profiles := ProfileHandler{Profiles: deps.Profiles, Uploads: deps.Uploads}
	msgs := MessageHandler{Messages: deps.Messages}
	uploads := UploadHandler{Uploads: deps.Uploads, Storage: deps.Storage, Limiter: deps.UploadLimiter}

	mux.HandleFunc("/healthz", health.Handle)
	mux.HandleFunc("/api/v1/auth/register", auth.Register)
	mux.HandleFunc("/api/v1/auth/login", auth.Login)
	mux.HandleFunc("/api/v1/auth/refresh", auth.Refresh)

	// Profile listing/search is readable anonymously; writes need a user.
	mux.Handle("/api/v1/profiles", middleware.RequireUserUnlessSafe(http.HandlerFunc(profiles.Collection)))
	mux.Handle("/api/v1/profiles/", middleware.RequireUser(http.HandlerFunc(profiles.Item)))

	mux.Handle("/api/v1/messages", middleware.RequireUser(http.HandlerFunc(msgs.Collection)))
	mux.Handle("/api/v1/messages/", middleware.RequireUser(http.HandlerFunc(msgs.Item)))

	mux.Handle("/api/v1/uploads", middleware.RequireUser(http.HandlerFunc(uploads.Create)))
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users         UserStore
	Tokens        TokenIssuer
	Profiles      ProfileStore
	Messages      MessageService
	Uploads       UploadStore
	Storage       FileStorage
	LoginLimiter  RateLimiter
	UploadLimiter RateLimiter
}
