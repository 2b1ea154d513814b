// Package token manages the session credential lifecycle: decoding bearer
// tokens, tracking expiry, and renewing the credential proactively so the
// interface never stalls on an expired session.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is the current session credential. It is never mutated in
// place: a refresh wholesale-replaces it.
type Credential struct {
	// Raw is the token exactly as issued by the backend.
	Raw string

	// Subject identifies the authenticated user, from the token's sub claim.
	Subject string

	// ExpiresAt is the token's expiry instant, from the exp claim.
	// Zero when the token could not be decoded, which reads as already
	// expired everywhere.
	ExpiresAt time.Time
}

// Decode extracts the expiry instant and subject from a bearer token.
//
// The token payload is read without signature verification; the backend is
// the authority on validity and this client only needs the claims. A token
// that cannot be decoded, or that carries no exp claim, yields a credential
// that is treated as already expired.
func Decode(raw string) Credential {
	cred := Credential{Raw: raw}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return cred
	}

	cred.Subject = claims.Subject
	if claims.ExpiresAt != nil {
		cred.ExpiresAt = claims.ExpiresAt.Time
	}
	return cred
}

// ExpiresWithin reports whether the credential expires within buffer of now.
// A zero buffer is the hard-expiry check; request-time gating passes the
// configured safety buffer.
func (c Credential) ExpiresWithin(now time.Time, buffer time.Duration) bool {
	return c.ExpiresAt.Sub(now) < buffer
}
