package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/brightbasket/storefront-client/pkg/session"
)

// NewTokenHeader is the response header through which the identity-check
// endpoint hands out a renewed token.
const NewTokenHeader = "x-new-token"

// Common errors returned by the manager.
var (
	// ErrNoCredential is returned when an operation needs a session
	// credential and none is installed.
	ErrNoCredential = errors.New("no session credential")

	// ErrRefreshRejected is returned when the backend refuses the
	// identity check for the current credential.
	ErrRefreshRejected = errors.New("identity check rejected")
)

// Config holds the manager configuration.
type Config struct {
	// IdentityURL is the absolute URL of the backend's identity-check
	// endpoint used to re-validate and renew the credential.
	IdentityURL string

	// RefreshMargin is how long before expiry the proactive refresh fires.
	RefreshMargin time.Duration

	// ExpiryBuffer is the safety buffer for request-time expiry gating.
	ExpiryBuffer time.Duration

	// HTTPTimeout bounds the identity-check call.
	HTTPTimeout time.Duration

	// Now is the clock used for expiry decisions. Defaults to time.Now.
	Now func() time.Time
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(identityURL string) Config {
	return Config{
		IdentityURL:   identityURL,
		RefreshMargin: 15 * time.Minute,
		ExpiryBuffer:  60 * time.Second,
		HTTPTimeout:   15 * time.Second,
		Now:           time.Now,
	}
}

// Manager owns the single current session credential: it installs new
// credentials, answers validity queries, and keeps the credential fresh
// through a scheduled one-shot refresh plus a lazy re-check on demand.
//
// The identity-check call uses the manager's own bare HTTP client rather
// than the request pipeline, so a failed proactive refresh can never recurse
// into the pipeline's authorization-failure teardown.
type Manager struct {
	store  session.Store
	http   *http.Client
	cfg    Config
	logger zerolog.Logger

	mu    sync.Mutex
	cred  *Credential
	timer *time.Timer

	refreshing atomic.Bool
}

// NewManager creates a credential manager persisting through store.
func NewManager(store session.Store, cfg Config, logger zerolog.Logger) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.IdentityURL == "" {
		return nil, fmt.Errorf("identity URL is required")
	}
	if cfg.RefreshMargin <= 0 {
		cfg.RefreshMargin = 15 * time.Minute
	}
	if cfg.ExpiryBuffer < 0 {
		cfg.ExpiryBuffer = 60 * time.Second
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 15 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{
		store:  store,
		http:   &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:    cfg,
		logger: logger,
	}, nil
}

// SetCredential decodes and installs a new credential, replacing any prior
// one, and arms the proactive refresh schedule. The caller persists the
// surrounding session state; the manager only owns the in-memory credential.
func (m *Manager) SetCredential(raw string) Credential {
	cred := Decode(raw)

	m.mu.Lock()
	m.cred = &cred
	m.scheduleLocked(cred)
	m.mu.Unlock()

	m.logger.Debug().
		Str("subject", cred.Subject).
		Time("expires_at", cred.ExpiresAt).
		Msg("Credential installed")

	return cred
}

// Resume loads a persisted session and installs its credential.
// Returns session.ErrNoSession when nothing is persisted.
func (m *Manager) Resume(ctx context.Context) (Credential, error) {
	state, err := m.store.Load(ctx)
	if err != nil {
		return Credential{}, err
	}
	return m.SetCredential(state.Token), nil
}

// Current returns the installed credential, if any.
func (m *Manager) Current() (Credential, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred == nil {
		return Credential{}, false
	}
	return *m.cred, true
}

// Token returns the raw bearer token for request injection.
// Present tokens are returned even when expired: the backend is the
// authority, and its rejection drives the pipeline's teardown.
func (m *Manager) Token(_ context.Context) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred == nil {
		return "", false
	}
	return m.cred.Raw, true
}

// IsExpired reports whether the current credential expires within buffer of
// now. No credential reads as expired.
func (m *Manager) IsExpired(buffer time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred == nil {
		return true
	}
	return m.cred.ExpiresWithin(m.cfg.Now(), buffer)
}

// EnsureFresh renews the credential inline when it is close to expiry.
//
// This is the safety net under the scheduled refresh: timers do not survive
// process suspension, so every outbound call re-checks. Failures are
// swallowed; the request proceeds with the old token and a genuinely
// expired one is rejected by the backend, not here. At most one inline
// refresh runs at a time; concurrent callers skip.
func (m *Manager) EnsureFresh(ctx context.Context) {
	m.mu.Lock()
	cred := m.cred
	m.mu.Unlock()

	if cred == nil || !cred.ExpiresWithin(m.cfg.Now(), m.cfg.ExpiryBuffer) {
		return
	}

	if !m.refreshing.CompareAndSwap(false, true) {
		return
	}
	defer m.refreshing.Store(false)

	if err := m.Refresh(ctx); err != nil {
		m.logger.Debug().Err(err).Msg("Inline credential refresh failed")
	}
}

// Refresh re-validates the current credential against the identity-check
// endpoint. When the backend hands out a renewed token it wholesale-replaces
// the old credential, is re-persisted, and the refresh schedule is re-armed.
// A rejection or transport failure leaves the credential untouched.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	cred := m.cred
	m.mu.Unlock()

	if cred == nil {
		return ErrNoCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.cfg.IdentityURL, nil)
	if err != nil {
		return fmt.Errorf("create identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cred.Raw)
	req.Header.Set("Accept", "application/json")

	resp, err := m.http.Do(req)
	if err != nil {
		tokenRefreshes.WithLabelValues("failed").Inc()
		return fmt.Errorf("identity check: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tokenRefreshes.WithLabelValues("failed").Inc()
		return fmt.Errorf("read identity response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		tokenRefreshes.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: status %d", ErrRefreshRejected, resp.StatusCode)
	}

	newRaw := resp.Header.Get(NewTokenHeader)
	if newRaw == "" || newRaw == cred.Raw {
		tokenRefreshes.WithLabelValues("unchanged").Inc()
		m.logger.Debug().Msg("Identity check passed, token unchanged")
		return nil
	}

	newCred := Decode(newRaw)

	m.mu.Lock()
	if m.cred == nil {
		// Session torn down while the identity check was in flight;
		// do not resurrect it.
		m.mu.Unlock()
		return nil
	}
	m.cred = &newCred
	m.scheduleLocked(newCred)
	m.mu.Unlock()

	state := session.State{
		Token:      newRaw,
		UserJSON:   extractUserJSON(body),
		AcquiredAt: m.cfg.Now(),
	}
	if err := m.store.Save(ctx, state); err != nil {
		m.logger.Warn().Err(err).Msg("Failed to persist rotated token")
	}

	tokenRefreshes.WithLabelValues("rotated").Inc()
	m.logger.Info().
		Str("subject", newCred.Subject).
		Time("expires_at", newCred.ExpiresAt).
		Msg("Credential rotated")

	return nil
}

// ScheduleRefresh arms the one-shot proactive refresh for the current
// credential. Any previously armed timer is canceled first, so at most one
// timer exists at a time.
func (m *Manager) ScheduleRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cred == nil {
		return
	}
	m.scheduleLocked(*m.cred)
}

// CancelSchedule clears any armed refresh timer. Invoked on logout.
func (m *Manager) CancelSchedule() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelLocked()
}

// Invalidate drops the credential, cancels the schedule, and clears the
// persisted session keys as a set. The request pipeline calls this on an
// unrecoverable authorization failure; logout uses the same path.
func (m *Manager) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	m.cancelLocked()
	m.cred = nil
	m.mu.Unlock()

	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear persisted session: %w", err)
	}

	m.logger.Debug().Msg("Credential invalidated")
	return nil
}

// refreshDelay computes how long until the proactive refresh should fire for
// a credential: its expiry minus the refresh margin, clamped at zero.
func (m *Manager) refreshDelay(cred Credential) time.Duration {
	delay := cred.ExpiresAt.Sub(m.cfg.Now()) - m.cfg.RefreshMargin
	if delay < 0 {
		return 0
	}
	return delay
}

// scheduleLocked arms the refresh timer for cred. Caller holds m.mu.
func (m *Manager) scheduleLocked(cred Credential) {
	m.cancelLocked()

	delay := m.refreshDelay(cred)
	m.timer = time.AfterFunc(delay, m.fireRefresh)
	refreshScheduled.Set(1)

	m.logger.Debug().
		Dur("delay", delay).
		Time("expires_at", cred.ExpiresAt).
		Msg("Proactive refresh scheduled")
}

// cancelLocked stops any armed timer. Caller holds m.mu.
func (m *Manager) cancelLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
		refreshScheduled.Set(0)
	}
}

// fireRefresh runs the scheduled refresh. On success with a rotated token
// the schedule re-arms for the new expiry; otherwise the timer stays
// disarmed and the per-call lazy re-check takes over. A failure leaves the
// credential untouched, and only a credential genuinely expired at request
// time triggers the pipeline's authorization teardown.
func (m *Manager) fireRefresh() {
	m.mu.Lock()
	m.timer = nil
	refreshScheduled.Set(0)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HTTPTimeout)
	defer cancel()

	if err := m.Refresh(ctx); err != nil {
		m.logger.Warn().Err(err).Msg("Scheduled credential refresh failed")
	}
}

// identityEnvelope is the identity-check response body shape.
type identityEnvelope struct {
	Success bool `json:"success"`
	Data    struct {
		User json.RawMessage `json:"user"`
	} `json:"data"`
}

// extractUserJSON pulls the serialized user record out of an identity-check
// response body, falling back to nil when the shape is unexpected.
func extractUserJSON(body []byte) []byte {
	var envelope identityEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil
	}
	if len(envelope.Data.User) == 0 {
		return nil
	}
	return envelope.Data.User
}
