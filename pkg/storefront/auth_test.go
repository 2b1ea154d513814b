package storefront

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/brightbasket/storefront-client/internal/testutil"
	"github.com/brightbasket/storefront-client/pkg/api"
	"github.com/brightbasket/storefront-client/pkg/session"
)

func TestLogin_EstablishesSession(t *testing.T) {
	h := newTestHarness(t)

	user, err := h.services.Auth.Login(context.Background(), "shopper@example.com", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.Email != "shopper@example.com" {
		t.Errorf("expected user email shopper@example.com, got %q", user.Email)
	}
	if user.Name != "Test Shopper" {
		t.Errorf("expected user name Test Shopper, got %q", user.Name)
	}

	cred, ok := h.manager.Current()
	if !ok {
		t.Fatal("expected credential to be installed after login")
	}
	if cred.Subject != "shopper@example.com" {
		t.Errorf("expected credential subject shopper@example.com, got %q", cred.Subject)
	}

	state, err := h.store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if state.Token != cred.Raw {
		t.Error("expected persisted token to match installed credential")
	}
	if len(state.UserJSON) == 0 {
		t.Error("expected user record to be persisted")
	}
	if state.AcquiredAt.IsZero() {
		t.Error("expected acquisition timestamp to be set")
	}
}

func TestLogin_AttachesBearerAfterwards(t *testing.T) {
	h := newTestHarness(t)
	loginAs(t, h, "shopper@example.com")

	h.backend.SetJSONResponse("/cart", http.StatusOK, `{"lines":[],"total_cents":0,"currency":"EUR"}`)
	if _, err := h.services.Cart.Get(context.Background()); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	auth := h.backend.LastRequestHeader().Get("Authorization")
	if auth == "" {
		t.Fatal("expected Authorization header on protected request")
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.services.Auth.Login(context.Background(), "shopper@example.com", "wrong-password")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !api.IsUnauthorized(err) {
		t.Errorf("expected unauthorized error, got %v", err)
	}
	if api.Message(err) != "Invalid credentials" {
		t.Errorf("expected message %q, got %q", "Invalid credentials", api.Message(err))
	}

	// A rejected login never installs or clears anything.
	if _, ok := h.manager.Current(); ok {
		t.Error("expected no credential after rejected login")
	}
	if _, err := h.store.Load(context.Background()); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestLogin_MalformedEnvelope(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"success without token", `{"success":true,"data":{"user":{"id":"u-1"}}}`},
		{"token without success", `{"success":false,"data":{"token":"t"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHarness(t)
			h.backend.SetJSONResponse("/auth/login", http.StatusOK, tt.body)

			_, err := h.services.Auth.Login(context.Background(), "shopper@example.com", "secret")
			if !errors.Is(err, ErrLoginFailed) {
				t.Errorf("expected ErrLoginFailed, got %v", err)
			}
		})
	}
}

func TestLogin_AcceptsAccessTokenKey(t *testing.T) {
	h := newTestHarness(t)

	raw := testutil.MintToken("alt@example.com", time.Now().Add(time.Hour))
	h.backend.SetJSONResponse("/auth/login", http.StatusOK, fmt.Sprintf(
		`{"success":true,"data":{"access_token":%q,"user":{"id":"u-2","email":"alt@example.com","name":"Alt"}}}`, raw))

	user, err := h.services.Auth.Login(context.Background(), "alt@example.com", "secret")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if user.ID != "u-2" {
		t.Errorf("expected user u-2, got %q", user.ID)
	}

	cred, ok := h.manager.Current()
	if !ok || cred.Raw != raw {
		t.Error("expected credential from access_token key")
	}
}

func TestLogin_DropsPriorSessionState(t *testing.T) {
	h := newTestHarness(t)
	loginAs(t, h, "first@example.com")

	h.backend.SetJSONResponse("/catalog/items", http.StatusOK, `{"items":[],"page":1,"total_pages":1}`)
	if _, err := h.services.Catalog.ListItems(context.Background(), 1); err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if h.responses.Len() != 1 {
		t.Fatalf("expected 1 cached response, got %d", h.responses.Len())
	}

	loginAs(t, h, "second@example.com")

	// The earlier user's cached responses must not survive into this session.
	if h.responses.Len() != 0 {
		t.Errorf("expected cache cleared by fresh login, got %d entries", h.responses.Len())
	}
	if _, err := h.services.Catalog.ListItems(context.Background(), 1); err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if count := h.backend.RequestsTo("/catalog/items"); count != 2 {
		t.Errorf("expected 2 catalog requests after re-login, got %d", count)
	}
}

func TestLogout_ClearsEverything(t *testing.T) {
	h := newTestHarness(t)
	loginAs(t, h, "shopper@example.com")

	h.backend.SetJSONResponse("/catalog/items", http.StatusOK, `{"items":[],"page":1,"total_pages":1}`)
	if _, err := h.services.Catalog.ListItems(context.Background(), 1); err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}

	if err := h.services.Auth.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	if _, ok := h.manager.Current(); ok {
		t.Error("expected credential dropped on logout")
	}
	if _, err := h.store.Load(context.Background()); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("expected ErrNoSession after logout, got %v", err)
	}
	if h.responses.Len() != 0 {
		t.Errorf("expected empty cache after logout, got %d entries", h.responses.Len())
	}

	_, err := h.services.Cart.Get(context.Background())
	if !errors.Is(err, api.ErrAuthenticationRequired) {
		t.Errorf("expected ErrAuthenticationRequired after logout, got %v", err)
	}
}

func TestMe_ReturnsCurrentUser(t *testing.T) {
	h := newTestHarness(t)
	loginAs(t, h, "shopper@example.com")

	user, err := h.services.Auth.Me(context.Background())
	if err != nil {
		t.Fatalf("Me failed: %v", err)
	}
	if user.ID != "u-1" {
		t.Errorf("expected user u-1, got %q", user.ID)
	}
	if user.Email != "shopper@example.com" {
		t.Errorf("expected email shopper@example.com, got %q", user.Email)
	}
}

func TestMe_RequiresAuthentication(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.services.Auth.Me(context.Background())
	if !errors.Is(err, api.ErrAuthenticationRequired) {
		t.Errorf("expected ErrAuthenticationRequired, got %v", err)
	}
	if count := h.backend.RequestsTo("/auth/me"); count != 0 {
		t.Errorf("expected no identity request without a session, got %d", count)
	}
}

func TestResume_RestoresSession(t *testing.T) {
	h := newTestHarness(t)

	raw := testutil.MintToken("shopper@example.com", time.Now().Add(2*time.Hour))
	seeded := session.State{
		Token:      raw,
		UserJSON:   []byte(`{"id":"u-7","email":"shopper@example.com","name":"Returning Shopper"}`),
		AcquiredAt: time.Now().Add(-time.Hour),
	}
	if err := h.store.Save(context.Background(), seeded); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	user, found, err := h.services.Auth.Resume(context.Background())
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if !found {
		t.Fatal("expected a session to be found")
	}
	if user.ID != "u-7" || user.Name != "Returning Shopper" {
		t.Errorf("unexpected resumed user: %+v", user)
	}

	cred, ok := h.manager.Current()
	if !ok || cred.Raw != raw {
		t.Error("expected persisted token to be installed")
	}
}

func TestResume_NoSession(t *testing.T) {
	h := newTestHarness(t)

	_, found, err := h.services.Auth.Resume(context.Background())
	if err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if found {
		t.Error("expected no session to be found")
	}
}

func TestResume_CorruptUserRecord(t *testing.T) {
	h := newTestHarness(t)

	seeded := session.State{
		Token:      testutil.MintToken("shopper@example.com", time.Now().Add(time.Hour)),
		UserJSON:   []byte(`{not json`),
		AcquiredAt: time.Now(),
	}
	if err := h.store.Save(context.Background(), seeded); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, _, err := h.services.Auth.Resume(context.Background())
	if err == nil {
		t.Fatal("expected error for corrupt user record")
	}
}
