package session

import (
	"context"
	"sync"

	"photogram-backend/internal/models"
)

// Session is one client's view of the signed-in user. Every transition, including the
// initial restore, is delivered to the registered callbacks.
type Session struct {
	provider *Provider

	mu        sync.Mutex
	user      *models.User
	listeners []func(*models.User)
}

// New creates a signed-out session
func New(provider *Provider) *Session {
	return &Session{provider: provider}
}

// OnSessionChange registers a callback for session transitions
func (s *Session) OnSessionChange(fn func(*models.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SignIn verifies an identity token and returns the user and a session token
func (s *Session) SignIn(ctx context.Context, identityToken string) (*models.User, string, error) {
	user, err := s.provider.Authenticate(ctx, identityToken)
	if err != nil {
		return nil, "", err
	}
	token, err := s.provider.IssueSessionToken(user.ID)
	if err != nil {
		return nil, "", err
	}
	s.transition(user)
	return user, token, nil
}

// Restore resumes the session a session token was issued for
func (s *Session) Restore(ctx context.Context, sessionToken string) (*models.User, error) {
	userID, err := s.provider.ValidateSessionToken(sessionToken)
	if err != nil {
		return nil, err
	}
	user, err := s.provider.LoadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.transition(user)
	return user, nil
}

// SignOut clears the session
func (s *Session) SignOut() {
	s.transition(nil)
}

// User returns the signed-in user or nil
func (s *Session) User() *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) transition(user *models.User) {
	s.mu.Lock()
	s.user = user
	listeners := append([]func(*models.User){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(user)
	}
}
