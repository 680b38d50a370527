// Package apns provides the client for the Apple Push Notification Service.
package apns

import (
	"crypto/ecdsa"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sideshow/apns2/token"
)

const (
	// tokenLifetime is how long a minted token stays in the cache. APNs
	// treats excessive re-signing as abusive, so tokens are reused for
	// almost their full permitted hour.
	tokenLifetime = 50 * time.Minute
	// refreshMargin is the minimum remaining validity a cached token must
	// have at the moment it is handed out.
	refreshMargin = 30 * time.Second
)

// signedToken is an immutable cache entry. Entries are replaced wholesale,
// never mutated in place.
type signedToken struct {
	bearer    string
	expiresAt int64 // unix seconds
}

// TokenSource produces bearer tokens for APNs requests.
type TokenSource interface {
	// SigningToken returns a token with at least refreshMargin of validity
	// left, or false when signing is not configured.
	SigningToken() (string, bool)
}

// Signer mints and caches the ES256 bearer tokens used to authenticate
// against the APNs HTTP/2 API. The cache-hit path is a single atomic load;
// only a miss takes the mutex and signs. Concurrent misses may sign more
// than once, which APNs tolerates.
type Signer struct {
	authKey *ecdsa.PrivateKey
	keyID   string
	teamID  string

	mu     sync.Mutex
	cached atomic.Pointer[signedToken]
}

// SignerConfig holds the credentials required to sign APNs tokens.
type SignerConfig struct {
	KeyID  string
	TeamID string
	// P8KeyContent is the raw string content of the .p8 file.
	P8KeyContent string
}

// NewSigner creates a signer from the given credentials. A present but
// malformed key fails fast; an absent key yields a disabled signer whose
// SigningToken reports false, which the dispatcher surfaces as a
// configuration-missing outcome rather than an error.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	s := &Signer{keyID: cfg.KeyID, teamID: cfg.TeamID}

	if cfg.P8KeyContent != "" {
		authKey, err := token.AuthKeyFromBytes([]byte(cfg.P8KeyContent))
		if err != nil {
			return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
		}
		s.authKey = authKey
	}

	return s, nil
}

// SigningToken implements TokenSource.
func (s *Signer) SigningToken() (string, bool) {
	if s.authKey == nil || s.keyID == "" || s.teamID == "" {
		return "", false
	}

	if tok := s.cached.Load(); tok.valid() {
		return tok.bearer, true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another caller may have refreshed while we waited on the lock.
	if tok := s.cached.Load(); tok.valid() {
		return tok.bearer, true
	}

	tok, err := s.mint()
	if err != nil {
		return "", false
	}
	s.cached.Store(tok)

	return tok.bearer, true
}

func (t *signedToken) valid() bool {
	return t != nil && time.Unix(t.expiresAt, 0).After(time.Now().Add(refreshMargin))
}

// mint signs a fresh token: {alg: ES256, kid} header, {iss, iat} claims,
// ECDSA P-256 over SHA-256.
func (s *Signer) mint() (*signedToken, error) {
	now := time.Now()

	jt := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": s.teamID,
		"iat": now.Unix(),
	})
	jt.Header["kid"] = s.keyID

	bearer, err := jt.SignedString(s.authKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign APNs token: %w", err)
	}

	return &signedToken{
		bearer:    bearer,
		expiresAt: now.Add(tokenLifetime).Unix(),
	}, nil
}
