package api

import (
	"encoding/json"
	"net/http"

	"github.com/AdityaUmale/note-taking/internal/auth"
	"github.com/AdityaUmale/note-taking/internal/db"
	"github.com/AdityaUmale/note-taking/internal/errs"
	"github.com/AdityaUmale/note-taking/internal/notes"
	"github.com/AdityaUmale/note-taking/internal/obs"
)

// Handler wraps the notes coordinator and account service and provides
// HTTP handlers. Every notes operation is scoped to the owner extracted
// by the auth middleware.
type Handler struct {
	accounts    *auth.AccountService
	coordinator *notes.Coordinator
	store       *notes.Store
	database    *db.DB
}

// NewHandler creates a new API handler.
func NewHandler(accounts *auth.AccountService, coordinator *notes.Coordinator, store *notes.Store, database *db.DB) *Handler {
	return &Handler{
		accounts:    accounts,
		coordinator: coordinator,
		store:       store,
		database:    database,
	}
}

// credentialRequest is the request body for register and login.
type credentialRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /auth/register - creates an account and returns a bearer token.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	creds, err := h.accounts.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, creds)
}

// Login handles POST /auth/login - verifies credentials and returns a bearer token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	creds, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, creds)
}

// ListNotes handles GET /api/notes - returns all notes owned by the caller,
// newest first.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	list, err := h.store.ListByOwner(r.Context(), ownerID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// CreateNote handles POST /api/notes - creates a new note for the caller.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var params notes.CreateNoteParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	note, err := h.store.Create(r.Context(), ownerID, params)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

// GetNote handles GET /api/notes/{id} - returns a single note by ID.
// Notes owned by other accounts are indistinguishable from absent ones.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	note, err := h.store.Get(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, note)
}

// UpdateNote handles PATCH /api/notes/{id} - updates title and/or content.
// Omitted fields keep their current values.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var params notes.UpdateNoteParams
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	note, err := h.coordinator.UpdateNote(r.Context(), ownerID, r.PathValue("id"), params)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id} - deletes a note and its
// favorite relation.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	if err := h.coordinator.DeleteNote(r.Context(), ownerID, r.PathValue("id")); err != nil {
		writeDomainError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// favoriteRequest is the request body for the favorite endpoint.
type favoriteRequest struct {
	Favorite bool `json:"favorite"`
}

// SetFavorite handles PUT /api/notes/{id}/favorite - marks or unmarks a note
// as a favorite. The operation is idempotent.
func (h *Handler) SetFavorite(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := requireOwner(w, r)
	if !ok {
		return
	}

	var req favoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	note, err := h.coordinator.ToggleFavorite(r.Context(), ownerID, r.PathValue("id"), req.Favorite)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, note)
}

// Healthz handles GET /healthz - reports whether the database is reachable.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.database.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireOwner extracts the authenticated owner from the request context.
// The auth middleware guarantees this for /api routes; the check here keeps
// handlers safe if one is ever mounted without it.
func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	ownerID, ok := auth.OwnerFromContext(r.Context())
	if !ok || ownerID == "" {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return "", false
	}
	return ownerID, true
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response with the given status code.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeDomainError maps a domain error to its HTTP status. Internal details
// are logged but never leaked to the client.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	status := errs.HTTPStatus(code)
	message := errs.MessageOf(err)
	if status >= 500 {
		obs.From(r.Context()).Error("request failed", "code", code, "error", err)
		message = "internal server error"
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: string(code)})
}
