package session

import (
	"log"
	"strconv"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// Session holds the bearer credential for the current viewer. The token
// is only decoded, never verified: signature checks belong to the
// backend, the client just needs the identity claims.
type Session struct {
	mu          sync.RWMutex
	token       string
	invalidated bool
	onInvalid   func()
}

func New(token string) *Session {
	return &Session{token: token}
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.invalidated = false
	s.mu.Unlock()
}

func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}

// OnInvalidated registers the hook fired when the backend rejects the
// credential (401). The hook runs at most once per token.
func (s *Session) OnInvalidated(fn func()) {
	s.mu.Lock()
	s.onInvalid = fn
	s.mu.Unlock()
}

// Invalidate clears the token and fires the registered hook. Repeated
// calls (e.g. several in-flight requests all hitting 401) fire it once.
func (s *Session) Invalidate() {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return
	}
	s.invalidated = true
	s.token = ""
	fn := s.onInvalid
	s.mu.Unlock()

	log.Printf("[SESSION] credential invalidated")
	if fn != nil {
		fn()
	}
}

// UserID extracts the viewer id from the token claims ("sub" or
// "userId"). Returns 0 when anonymous or the token is unreadable.
func (s *Session) UserID() int64 {
	claims, ok := s.claims()
	if !ok {
		return 0
	}
	switch v := claims["sub"].(type) {
	case string:
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id
		}
	case float64:
		return int64(v)
	}
	if v, ok := claims["userId"].(float64); ok {
		return int64(v)
	}
	return 0
}

// Username extracts the viewer's display name claim, if present.
func (s *Session) Username() string {
	claims, ok := s.claims()
	if !ok {
		return ""
	}
	name, _ := claims["userName"].(string)
	return name
}

func (s *Session) claims() (jwt.MapClaims, bool) {
	tok := s.Token()
	if tok == "" {
		return nil, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil, false
	}
	return claims, true
}
