package client

import (
	"sync"

	"github.com/gofrs/uuid"
)

// Session is the explicit session context shared by the cart and order
// clients. It replaces ad-hoc global token state: created on sign-in, torn
// down on sign-out or on the first 401 seen by any call.
type Session struct {
	mu        sync.RWMutex
	userID    uuid.UUID
	token     string
	onExpired func()
}

func NewSession() *Session {
	return &Session{}
}

// SignIn installs the authenticated identity.
func (s *Session) SignIn(userID uuid.UUID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
	s.token = token
}

// SignOut clears the identity without firing the expiry hook.
func (s *Session) SignOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = uuid.Nil
	s.token = ""
}

// Invalidate tears the session down and notifies the auth collaborator. Called
// by the transport on any 401.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.userID = uuid.Nil
	s.token = ""
	hook := s.onExpired
	s.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// OnExpired registers the hook invoked after an invalidation, typically the
// auth layer's force-reauthentication path.
func (s *Session) OnExpired(hook func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpired = hook
}

// UserID returns the signed-in user and whether a session exists.
func (s *Session) UserID() (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.userID != uuid.Nil
}

func (s *Session) bearerToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}
