// Package testutil provides a configurable mock storefront backend for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SigningSecret signs every token the mock backend mints. Token decoding in
// the client never verifies signatures, so the value only matters for minting
// well-formed JWTs.
var SigningSecret = []byte("mock-backend-secret")

// MockResponse defines the behavior for a scripted endpoint response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockBackend is a configurable mock storefront backend for testing.
type MockBackend struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)
	failures map[string]*failureScript

	// Tracking
	requestCount      int
	authorizedCount   int
	lastRequestHeader http.Header
	pathCounts        map[string]int

	// TokenTTL is the lifetime of tokens minted by the login endpoint.
	// Zero means one hour.
	TokenTTL time.Duration

	rotateTo string
}

// failureScript makes the next N requests to a path fail with a fixed status
// before normal handling resumes.
type failureScript struct {
	remaining int
	status    int
}

// NewMockBackend creates a new mock storefront server with the built-in
// login and identity endpoints registered.
func NewMockBackend() *MockBackend {
	m := &MockBackend{
		handlers:   make(map[string]func(w http.ResponseWriter, r *http.Request)),
		failures:   make(map[string]*failureScript),
		pathCounts: make(map[string]int),
	}
	m.handlers["/auth/login"] = m.handleLogin
	m.handlers["/auth/me"] = m.handleIdentity
	m.server = httptest.NewServer(http.HandlerFunc(m.rootHandler))
	return m
}

// URL returns the base URL of the mock server.
func (m *MockBackend) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockBackend) Close() {
	m.server.Close()
}

// Reset clears all scripted handlers, failure scripts, and tracking state.
// The built-in login and identity endpoints stay registered.
func (m *MockBackend) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = make(map[string]func(w http.ResponseWriter, r *http.Request))
	m.handlers["/auth/login"] = m.handleLogin
	m.handlers["/auth/me"] = m.handleIdentity
	m.failures = make(map[string]*failureScript)
	m.pathCounts = make(map[string]int)
	m.requestCount = 0
	m.authorizedCount = 0
	m.lastRequestHeader = nil
	m.rotateTo = ""
}

// SetHandler sets a custom handler for a specific path.
func (m *MockBackend) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a scripted response for a path.
func (m *MockBackend) SetResponse(path string, response MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if response.Delay > 0 {
			time.Sleep(response.Delay)
		}
		for key, value := range response.Headers {
			w.Header().Set(key, value)
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "application/json")
		}
		w.WriteHeader(response.StatusCode)
		w.Write([]byte(response.Body))
	})
}

// SetJSONResponse scripts a plain JSON body with the given status for a path.
func (m *MockBackend) SetJSONResponse(path string, status int, body string) {
	m.SetResponse(path, MockResponse{StatusCode: status, Body: body})
}

// FailTimes makes the next count requests to path fail with the given status
// before falling through to the registered handler.
func (m *MockBackend) FailTimes(path string, count, status int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[path] = &failureScript{remaining: count, status: status}
}

// SetRotation makes the identity endpoint hand out token via the x-new-token
// header on its next responses. An empty token disables rotation.
func (m *MockBackend) SetRotation(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rotateTo = token
}

// RequestCount returns the total number of requests received.
func (m *MockBackend) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.requestCount
}

// RequestsTo returns the number of requests received for a specific path.
func (m *MockBackend) RequestsTo(path string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pathCounts[path]
}

// AuthorizedCount returns the number of requests that carried a bearer token.
func (m *MockBackend) AuthorizedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authorizedCount
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockBackend) LastRequestHeader() http.Header {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRequestHeader
}

// MintToken creates a signed JWT for subject that expires at the given time.
func MintToken(subject string, expiresAt time.Time) string {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(SigningSecret)
	if err != nil {
		panic(fmt.Sprintf("testutil: mint token: %v", err))
	}
	return signed
}

func (m *MockBackend) rootHandler(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	m.requestCount++
	m.pathCounts[r.URL.Path]++
	m.lastRequestHeader = r.Header.Clone()
	if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		m.authorizedCount++
	}
	script := m.failures[r.URL.Path]
	if script != nil && script.remaining > 0 {
		script.remaining--
		status := script.status
		m.mu.Unlock()
		WriteError(w, status, "Scripted failure", "scripted_failure")
		return
	}
	handler := m.handlers[r.URL.Path]
	m.mu.Unlock()

	if handler != nil {
		handler(w, r)
		return
	}
	m.defaultHandler(w, r)
}

func (m *MockBackend) defaultHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (m *MockBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email == "" {
		WriteError(w, http.StatusBadRequest, "Malformed login request", "bad_request")
		return
	}
	if creds.Password == "wrong-password" {
		WriteError(w, http.StatusUnauthorized, "Invalid credentials", "invalid_credentials")
		return
	}

	ttl := m.TokenTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	token := MintToken(creds.Email, time.Now().Add(ttl))

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"success":true,"data":{"token":%q,"user":{"id":"u-1","email":%q,"name":"Test Shopper"}}}`, token, creds.Email)
}

func (m *MockBackend) handleIdentity(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
		WriteError(w, http.StatusUnauthorized, "Session expired", "unauthorized")
		return
	}

	m.mu.RLock()
	rotate := m.rotateTo
	m.mu.RUnlock()
	if rotate != "" {
		w.Header().Set("x-new-token", rotate)
	}

	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"success":true,"data":{"user":{"id":"u-1","email":"shopper@example.com","name":"Test Shopper"}}}`))
}

// WriteError writes a storefront error envelope with the given status.
func WriteError(w http.ResponseWriter, status int, message, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"error":{"message":%q,"code":%q}}`, message, code)
}
