package api

import (
	"net/http"

	"github.com/AdityaUmale/note-taking/internal/auth"
	"github.com/AdityaUmale/note-taking/internal/obs"
	"github.com/AdityaUmale/note-taking/internal/ratelimit"
)

// NewRouter assembles the full HTTP handler. Correlation and access-log
// middleware wrap everything; bearer auth and per-owner rate limiting wrap
// only the /api subtree. Account and health endpoints stay public.
func NewRouter(h *Handler, verifier *auth.TokenVerifier, limiter *ratelimit.RateLimiter) http.Handler {
	// Notes CRUD endpoints using Go 1.22+ routing patterns
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/notes", h.ListNotes)
	apiMux.HandleFunc("POST /api/notes", h.CreateNote)
	apiMux.HandleFunc("GET /api/notes/{id}", h.GetNote)
	apiMux.HandleFunc("PATCH /api/notes/{id}", h.UpdateNote)
	apiMux.HandleFunc("DELETE /api/notes/{id}", h.DeleteNote)
	apiMux.HandleFunc("PUT /api/notes/{id}/favorite", h.SetFavorite)

	// Rate limiting keys on the owner id the auth middleware verified, so
	// it sits inside the auth wrapper.
	protected := auth.Middleware(verifier)(ratelimit.Middleware(limiter, ownerFromRequest)(apiMux))

	root := http.NewServeMux()
	root.HandleFunc("POST /auth/register", h.Register)
	root.HandleFunc("POST /auth/login", h.Login)
	root.HandleFunc("GET /healthz", h.Healthz)
	root.Handle("/api/", protected)

	var handler http.Handler = root
	handler = obs.AccessLogMiddleware("api", handler)
	handler = obs.RequestContextMiddleware(handler)
	return handler
}

func ownerFromRequest(r *http.Request) string {
	ownerID, _ := auth.OwnerFromContext(r.Context())
	return ownerID
}
