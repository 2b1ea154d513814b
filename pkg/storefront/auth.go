package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/brightbasket/storefront-client/pkg/api"
	"github.com/brightbasket/storefront-client/pkg/session"
	"github.com/brightbasket/storefront-client/pkg/token"
)

// ErrLoginFailed indicates the backend answered a login request without a
// usable token.
var ErrLoginFailed = errors.New("login failed")

// AuthService handles login, logout, session resume, and the identity check.
type AuthService struct {
	client  *api.Client
	manager *token.Manager
	store   session.Store
	logger  zerolog.Logger
	now     func() time.Time
}

// NewAuthService creates the auth service.
func NewAuthService(client *api.Client, manager *token.Manager, store session.Store) *AuthService {
	return &AuthService{
		client:  client,
		manager: manager,
		store:   store,
		logger:  log.With().Str("component", "storefront-auth").Logger(),
		now:     time.Now,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginEnvelope matches the backend login contract. The token arrives under
// either key depending on backend version.
type loginEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		Token       string          `json:"token"`
		AccessToken string          `json:"access_token"`
		User        json.RawMessage `json:"user"`
	} `json:"data"`
}

type meEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		User json.RawMessage `json:"user"`
	} `json:"data"`
}

// Login authenticates with the backend and establishes a fresh session: any
// prior credential, cached responses, and persisted state are dropped before
// the new identity is installed and persisted.
func (s *AuthService) Login(ctx context.Context, email, password string) (User, error) {
	resp, err := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   "/auth/login",
		Body:   loginRequest{Email: email, Password: password},
	})
	if err != nil {
		return User{}, err
	}

	var envelope loginEnvelope
	if err := json.Unmarshal(resp.Body, &envelope); err != nil {
		return User{}, fmt.Errorf("decode login response: %w", err)
	}
	raw := envelope.Data.Token
	if raw == "" {
		raw = envelope.Data.AccessToken
	}
	if !envelope.Success || raw == "" {
		return User{}, fmt.Errorf("%w: response carried no token", ErrLoginFailed)
	}

	// Tear down any previous session before installing the new identity, so
	// stale cached responses never leak into the new one.
	if err := s.client.ResetSession(ctx); err != nil {
		return User{}, fmt.Errorf("reset prior session: %w", err)
	}

	cred := s.manager.SetCredential(raw)
	state := session.State{
		Token:      raw,
		UserJSON:   envelope.Data.User,
		AcquiredAt: s.now(),
	}
	if err := s.store.Save(ctx, state); err != nil {
		return User{}, fmt.Errorf("persist session: %w", err)
	}

	var user User
	if len(envelope.Data.User) > 0 {
		if err := json.Unmarshal(envelope.Data.User, &user); err != nil {
			return User{}, fmt.Errorf("decode login user: %w", err)
		}
	}

	s.logger.Info().
		Str("email", user.Email).
		Time("expires_at", cred.ExpiresAt).
		Msg("Login successful")
	return user, nil
}

// Logout drops the session: credential, refresh schedule, cached responses,
// and persisted state go together. No backend call is made.
func (s *AuthService) Logout(ctx context.Context) error {
	s.logger.Info().Msg("Logging out")
	return s.client.ResetSession(ctx)
}

// Me fetches the current user from the backend identity endpoint.
func (s *AuthService) Me(ctx context.Context) (User, error) {
	var envelope meEnvelope
	err := s.client.DoJSON(ctx, api.Request{
		Method: http.MethodGet,
		Path:   "/auth/me",
	}, &envelope)
	if err != nil {
		return User{}, err
	}

	var user User
	if err := json.Unmarshal(envelope.Data.User, &user); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}
	return user, nil
}

// Resume restores a persisted session, if one exists. The second return
// reports whether a session was found; a missing session is not an error.
func (s *AuthService) Resume(ctx context.Context) (User, bool, error) {
	state, err := s.store.Load(ctx)
	if errors.Is(err, session.ErrNoSession) {
		return User{}, false, nil
	}
	if err != nil {
		return User{}, false, fmt.Errorf("load session: %w", err)
	}

	cred := s.manager.SetCredential(state.Token)

	var user User
	if len(state.UserJSON) > 0 {
		if err := json.Unmarshal(state.UserJSON, &user); err != nil {
			return User{}, false, fmt.Errorf("decode persisted user: %w", err)
		}
	}

	s.logger.Info().
		Str("email", user.Email).
		Time("expires_at", cred.ExpiresAt).
		Time("acquired_at", state.AcquiredAt).
		Msg("Session resumed")
	return user, true, nil
}
