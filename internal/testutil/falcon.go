// Package testutil provides an in-process fake of the Falcon API for tests
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
)

// RecordedRequest is a request seen by the fake API
type RecordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// JSON decodes the recorded body into v
func (r RecordedRequest) JSON(t testing.TB, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(r.Body, v); err != nil {
		t.Fatalf("decode recorded body %q: %v", r.Body, err)
	}
}

// FakeFalcon is an httptest server that issues tokens and routes API calls to per-test handlers.
// API routes reject requests whose bearer token was not issued or has been revoked.
type FakeFalcon struct {
	Server *httptest.Server
	router *mux.Router

	mu          sync.Mutex
	requests    []RecordedRequest
	issued      int
	valid       map[string]bool
	tokenStatus int
	tokenBody   string
	expiresIn   int
}

// NewFakeFalcon starts a fake API; it is closed when the test ends
func NewFakeFalcon(t testing.TB) *FakeFalcon {
	t.Helper()

	f := &FakeFalcon{
		router:    mux.NewRouter(),
		valid:     make(map[string]bool),
		expiresIn: 1799,
	}
	f.router.Use(f.record)
	f.router.HandleFunc("/oauth2/token", f.handleToken).Methods(http.MethodPost)

	f.Server = httptest.NewServer(f.router)
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the base URL to configure clients with
func (f *FakeFalcon) URL() string {
	return f.Server.URL
}

// Handle registers an authenticated API handler
func (f *FakeFalcon) Handle(method, path string, handler http.HandlerFunc) {
	f.router.Handle(path, f.requireToken(handler)).Methods(method)
}

// HandleUnauthenticated registers a handler that skips the bearer check
func (f *FakeFalcon) HandleUnauthenticated(method, path string, handler http.HandlerFunc) {
	f.router.HandleFunc(path, handler).Methods(method)
}

// SetTokenResponse makes the token endpoint answer with status and a raw body
func (f *FakeFalcon) SetTokenResponse(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokenStatus = status
	f.tokenBody = body
}

// SetExpiresIn sets expires_in for subsequently issued tokens
func (f *FakeFalcon) SetExpiresIn(seconds int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiresIn = seconds
}

// RevokeTokens invalidates every token issued so far
func (f *FakeFalcon) RevokeTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.valid = make(map[string]bool)
}

// TokenCalls counts requests to the token endpoint
func (f *FakeFalcon) TokenCalls() int {
	return len(f.TokenRequests())
}

// TokenRequests returns the token exchanges in arrival order
func (f *FakeFalcon) TokenRequests() []RecordedRequest {
	return f.filter(func(r RecordedRequest) bool { return r.Path == "/oauth2/token" })
}

// APIRequests returns every request except token exchanges, in arrival order
func (f *FakeFalcon) APIRequests() []RecordedRequest {
	return f.filter(func(r RecordedRequest) bool { return r.Path != "/oauth2/token" })
}

// Requests returns every request, token exchanges included, in arrival order
func (f *FakeFalcon) Requests() []RecordedRequest {
	return f.filter(func(RecordedRequest) bool { return true })
}

// CallCount counts every request the fake has seen
func (f *FakeFalcon) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *FakeFalcon) filter(keep func(RecordedRequest) bool) []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]RecordedRequest, 0, len(f.requests))
	for _, r := range f.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func (f *FakeFalcon) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		f.mu.Lock()
		f.requests = append(f.requests, RecordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   body,
		})
		f.mu.Unlock()

		next.ServeHTTP(w, r)
	})
}

func (f *FakeFalcon) handleToken(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	status, body := f.tokenStatus, f.tokenBody
	f.mu.Unlock()

	if status != 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
		return
	}

	if err := r.ParseForm(); err != nil || r.PostForm.Get("client_id") == "" || r.PostForm.Get("client_secret") == "" {
		WriteErrors(w, http.StatusBadRequest, "missing client credentials")
		return
	}

	f.mu.Lock()
	f.issued++
	token := fmt.Sprintf("token-%d", f.issued)
	f.valid[token] = true
	expiresIn := f.expiresIn
	f.mu.Unlock()

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"access_token": token,
		"token_type":   "bearer",
		"expires_in":   expiresIn,
	})
}

func (f *FakeFalcon) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

		f.mu.Lock()
		ok := f.valid[token]
		f.mu.Unlock()

		if !ok {
			WriteErrors(w, http.StatusUnauthorized, "access denied, invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WriteJSON writes v as a JSON response
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteResources writes a Falcon envelope holding resources
func WriteResources(w http.ResponseWriter, resources interface{}) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"meta":      map[string]interface{}{"query_time": 0.01, "trace_id": "trace"},
		"resources": resources,
		"errors":    []interface{}{},
	})
}

// WritePage writes a Falcon envelope with pagination metadata
func WritePage(w http.ResponseWriter, resources interface{}, pagination map[string]interface{}) {
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"meta":      map[string]interface{}{"query_time": 0.01, "pagination": pagination},
		"resources": resources,
		"errors":    []interface{}{},
	})
}

// WriteErrors writes a Falcon error envelope
func WriteErrors(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]interface{}{
		"meta":      map[string]interface{}{},
		"resources": []interface{}{},
		"errors":    []map[string]interface{}{{"code": status, "message": message}},
	})
}

// EchoIDs responds with one {"id": ...} resource per id found in the JSON body key or query
func EchoIDs(key string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := r.URL.Query()[key]
		if len(ids) == 0 && r.Body != nil {
			var body map[string]json.RawMessage
			if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
				_ = json.Unmarshal(body[key], &ids)
			}
		}
		resources := make([]map[string]string, 0, len(ids))
		for _, id := range ids {
			resources = append(resources, map[string]string{"id": id})
		}
		WriteResources(w, resources)
	}
}
