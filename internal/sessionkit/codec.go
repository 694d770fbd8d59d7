// Package sessionkit owns the authentication side of the client state
// lifecycle: credential decoding, the session state machine, expiry watching,
// and the outgoing-request interceptors.
package sessionkit

import (
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the decoded fields of a credential. The subject is the stable
// per-user identity key; the role gates admin surfaces client-side only.
type Claims struct {
	UserEmail       string `json:"user_email"`
	UserDisplayName string `json:"user_display_name"`
	UserRole        string `json:"user_role"`
	jwt.RegisteredClaims
}

// SubjectID returns the stable per-user identity key.
func (claims *Claims) SubjectID() string {
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// TokenCodec decodes opaque bearer credentials into claims without network
// access or signature verification; verification happens server-side. Decoded
// results are cached per raw credential so repeated decodes in one session do
// not re-parse.
type TokenCodec struct {
	mutex  sync.Mutex
	cache  map[string]*Claims
	parser *jwt.Parser
}

// NewTokenCodec constructs a codec with an empty decode cache.
func NewTokenCodec() *TokenCodec {
	return &TokenCodec{
		cache:  make(map[string]*Claims),
		parser: jwt.NewParser(),
	}
}

// Decode extracts claims from the raw credential. Malformed input, including
// a token without a subject, yields nil; Decode never returns an error.
func (codec *TokenCodec) Decode(token string) *Claims {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	codec.mutex.Lock()
	defer codec.mutex.Unlock()
	if cached, ok := codec.cache[token]; ok {
		return cached
	}
	claims := &Claims{}
	if _, _, parseErr := codec.parser.ParseUnverified(token, claims); parseErr != nil {
		return nil
	}
	if claims.Subject == "" {
		return nil
	}
	codec.cache[token] = claims
	return claims
}

// Invalidate clears the decode cache. Called on logout.
func (codec *TokenCodec) Invalidate() {
	codec.mutex.Lock()
	defer codec.mutex.Unlock()
	codec.cache = make(map[string]*Claims)
}

// IsExpired reports whether the claims are expired at the given instant.
// The comparison is inclusive: now >= exp means expired, with no grace
// period. Claims without an expiry are treated as expired.
func (codec *TokenCodec) IsExpired(claims *Claims, now time.Time) bool {
	if claims == nil || claims.ExpiresAt == nil {
		return true
	}
	return now.Unix() >= claims.ExpiresAt.Unix()
}
