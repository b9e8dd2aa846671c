// Package session holds the signed-in user and bearer token. It is the only
// mutable piece of client state; configuration stays immutable.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldrec/internal/client/repositories/kv"
	"github.com/golang-jwt/jwt/v5"
)

const (
	keyToken = "session_token"
	keyUser  = "session_user"
)

var ErrNoSession = errors.New("no active session")

type State struct {
	mu    sync.RWMutex
	token string
	user  string
}

func New() *State {
	return &State{}
}

// Set replaces the current user and token.
func (s *State) Set(user, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user, s.token = user, token
}

func (s *State) Clear() {
	s.Set("", "")
}

// Token implements api.TokenSource.
func (s *State) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *State) User() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// ExpiresAt reads the exp claim of the token without verifying it; the
// server is the one that checks signatures. ok is false when the token is
// missing, malformed or has no exp.
func (s *State) ExpiresAt() (time.Time, bool) {
	tok := s.Token()
	if tok == "" {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether the token is past its exp at now. Tokens without
// exp are treated as valid.
func (s *State) Expired(now time.Time) bool {
	exp, ok := s.ExpiresAt()
	return ok && !now.Before(exp)
}

// Save writes the session to the key-value store.
func (s *State) Save(ctx context.Context, store kv.Store) error {
	user, token := s.User(), s.Token()
	if user == "" {
		return ErrNoSession
	}
	if err := store.Set(ctx, keyUser, user); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := store.Set(ctx, keyToken, token); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Load restores a saved session. It returns ErrNoSession when none exists.
func (s *State) Load(ctx context.Context, store kv.Store) error {
	user, ok, err := store.Get(ctx, keyUser)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !ok || user == "" {
		return ErrNoSession
	}
	token, _, err := store.Get(ctx, keyToken)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	s.Set(user, token)
	return nil
}

// Forget clears the session and removes it from store.
func (s *State) Forget(ctx context.Context, store kv.Store) error {
	s.Clear()
	return errors.Join(store.Delete(ctx, keyUser), store.Delete(ctx, keyToken))
}
