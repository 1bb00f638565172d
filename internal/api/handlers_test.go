package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AdityaUmale/note-taking/internal/auth"
	"github.com/AdityaUmale/note-taking/internal/favorites"
	"github.com/AdityaUmale/note-taking/internal/notes"
	"github.com/AdityaUmale/note-taking/internal/ratelimit"
	"github.com/AdityaUmale/note-taking/internal/testdb"
)

const testSigningSeed = "cccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccccc"

var testCounter atomic.Int64

type testServer struct {
	router  http.Handler
	limiter *ratelimit.RateLimiter
}

func newTestServer(t *testing.T, rlConfig ratelimit.Config) *testServer {
	t.Helper()

	testID := testCounter.Add(1)
	database, err := testdb.NewInMemory(fmt.Sprintf("api-test-%d", testID))
	require.NoError(t, err)

	priv, pub, err := auth.KeyPairFromSeed(testSigningSeed)
	require.NoError(t, err)
	issuer := auth.NewTokenIssuer("http://localhost:8080", priv, time.Hour)
	verifier := auth.NewTokenVerifier("http://localhost:8080", pub)

	accounts := auth.NewAccountService(database, issuer)
	store := notes.NewStore(database)
	index := favorites.NewIndex(database)
	coordinator := notes.NewCoordinator(store, index)

	limiter := ratelimit.NewRateLimiter(rlConfig)
	t.Cleanup(limiter.Stop)

	handler := NewHandler(accounts, coordinator, store, database)
	return &testServer{
		router:  NewRouter(handler, verifier, limiter),
		limiter: limiter,
	}
}

// do performs a request and decodes the JSON response body into out (when
// out is non-nil).
func (s *testServer) do(t *testing.T, method, path, token string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func (s *testServer) register(t *testing.T, email string) auth.Credentials {
	t.Helper()
	var creds auth.Credentials
	rec := s.do(t, "POST", "/auth/register", "", map[string]string{
		"email":    email,
		"password": "a strong password",
	}, &creds)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, creds.Token)
	return creds
}

func generousRateLimit() ratelimit.Config {
	return ratelimit.Config{RPS: 10000, Burst: 10000, CleanupInterval: time.Hour}
}

func TestAPI_FullScenario(t *testing.T) {
	server := newTestServer(t, generousRateLimit())

	alice := server.register(t, "alice@example.com")
	bob := server.register(t, "bob@example.com")

	// Create two notes as alice.
	var first, second notes.Note
	rec := server.do(t, "POST", "/api/notes", alice.Token, notes.CreateNoteParams{Title: "first", Content: "one"}, &first)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = server.do(t, "POST", "/api/notes", alice.Token, notes.CreateNoteParams{Title: "second", Content: "two"}, &second)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEqual(t, first.ID, second.ID)

	// Listing is newest first and owner scoped.
	var list []notes.Note
	rec = server.do(t, "GET", "/api/notes", alice.Token, nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list, 2)
	require.Equal(t, second.ID, list[0].ID)
	require.Equal(t, first.ID, list[1].ID)

	var bobList []notes.Note
	rec = server.do(t, "GET", "/api/notes", bob.Token, nil, &bobList)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, bobList)

	// Favorite the first note; the flag shows up on subsequent reads.
	var favored notes.Note
	rec = server.do(t, "PUT", "/api/notes/"+first.ID+"/favorite", alice.Token, map[string]bool{"favorite": true}, &favored)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, favored.IsFavorite)

	var got notes.Note
	rec = server.do(t, "GET", "/api/notes/"+first.ID, alice.Token, nil, &got)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, got.IsFavorite)

	// Repeating the same favorite request is idempotent.
	rec = server.do(t, "PUT", "/api/notes/"+first.ID+"/favorite", alice.Token, map[string]bool{"favorite": true}, &favored)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, favored.IsFavorite)

	// Patch only the title; content is preserved.
	var patched notes.Note
	rec = server.do(t, "PATCH", "/api/notes/"+first.ID, alice.Token, map[string]string{"title": "renamed"}, &patched)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "renamed", patched.Title)
	require.Equal(t, "one", patched.Content)
	require.True(t, patched.IsFavorite, "favorite state survives an edit")

	// Bob cannot see, edit, or delete alice's note.
	rec = server.do(t, "GET", "/api/notes/"+first.ID, bob.Token, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = server.do(t, "PATCH", "/api/notes/"+first.ID, bob.Token, map[string]string{"title": "stolen"}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = server.do(t, "DELETE", "/api/notes/"+first.ID, bob.Token, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = server.do(t, "PUT", "/api/notes/"+first.ID+"/favorite", bob.Token, map[string]bool{"favorite": true}, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Delete the favorited note; it disappears from reads entirely.
	rec = server.do(t, "DELETE", "/api/notes/"+first.ID, alice.Token, nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = server.do(t, "GET", "/api/notes/"+first.ID, alice.Token, nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = server.do(t, "GET", "/api/notes", alice.Token, nil, &list)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, list, 1)
	require.Equal(t, second.ID, list[0].ID)
}

func TestAPI_ErrorMapping(t *testing.T) {
	server := newTestServer(t, generousRateLimit())
	creds := server.register(t, "errors@example.com")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   any
		status int
	}{
		{"no token", "GET", "/api/notes", "", nil, http.StatusUnauthorized},
		{"bad token", "GET", "/api/notes", "not-a-token", nil, http.StatusUnauthorized},
		{"malformed id", "GET", "/api/notes/not-a-uuid", creds.Token, nil, http.StatusBadRequest},
		{"missing note", "GET", "/api/notes/" + uuid.NewString(), creds.Token, nil, http.StatusNotFound},
		{"empty title", "POST", "/api/notes", creds.Token, map[string]string{"content": "nameless"}, http.StatusBadRequest},
		{"invalid json", "POST", "/api/notes", creds.Token, "not an object", http.StatusBadRequest},
		{"malformed id favorite", "PUT", "/api/notes/nope/favorite", creds.Token, map[string]bool{"favorite": true}, http.StatusBadRequest},
		{"duplicate register", "POST", "/auth/register", "", map[string]string{"email": "errors@example.com", "password": "a strong password"}, http.StatusConflict},
		{"bad login", "POST", "/auth/login", "", map[string]string{"email": "errors@example.com", "password": "wrong"}, http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var errResp ErrorResponse
			rec := server.do(t, tc.method, tc.path, tc.token, tc.body, &errResp)
			require.Equal(t, tc.status, rec.Code)
			require.NotEmpty(t, errResp.Error)
		})
	}
}

func TestAPI_LoginIssuesUsableToken(t *testing.T) {
	server := newTestServer(t, generousRateLimit())
	server.register(t, "login@example.com")

	var creds auth.Credentials
	rec := server.do(t, "POST", "/auth/login", "", map[string]string{
		"email":    "login@example.com",
		"password": "a strong password",
	}, &creds)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = server.do(t, "GET", "/api/notes", creds.Token, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAPI_Healthz(t *testing.T) {
	server := newTestServer(t, generousRateLimit())

	var body map[string]string
	rec := server.do(t, "GET", "/healthz", "", nil, &body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", body["status"])
}

func TestAPI_RateLimiting(t *testing.T) {
	server := newTestServer(t, ratelimit.Config{RPS: 1, Burst: 2, CleanupInterval: time.Hour})
	creds := server.register(t, "hammer@example.com")

	var limited bool
	for i := 0; i < 5; i++ {
		rec := server.do(t, "GET", "/api/notes", creds.Token, nil, nil)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			require.NotEmpty(t, rec.Header().Get("Retry-After"))
			break
		}
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.True(t, limited, "burst of requests should hit the rate limit")
}
