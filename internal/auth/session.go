package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"kharcha/internal/core"
	"kharcha/internal/log"
	"kharcha/internal/store"
	"kharcha/internal/users"
)

const usersCollection = "users"

// Verifier turns a raw sign-in token into a verified identity.
// *JWTManager implements it; a Firebase token check would slot in the
// same way.
type Verifier interface {
	Verify(token string) (Identity, error)
}

// Session is the single place that knows who is signed in. Callers pass
// the current user into the services explicitly instead of reading a
// global, so two sessions in one process cannot bleed into each other.
type Session struct {
	verifier Verifier
	store    store.Store
	users    *users.Service
	logger   *log.Logger

	mu   sync.RWMutex
	user *core.AppUser
	subs map[int]func(*core.AppUser)
	next int
}

func NewSession(verifier Verifier, st store.Store, users *users.Service) *Session {
	return &Session{
		verifier: verifier,
		store:    st,
		users:    users,
		logger:   log.Component(log.ComponentAuth),
		subs:     map[int]func(*core.AppUser){},
	}
}

// SignIn verifies the token and loads the caller's profile, creating it
// with the default role on first sign-in. Admin profiles get their group
// list expanded to every known group so admin views span the whole
// household set.
func (s *Session) SignIn(ctx context.Context, token string) (core.AppUser, error) {
	id, err := s.verifier.Verify(token)
	if err != nil {
		return core.AppUser{}, fmt.Errorf("sign in: %w", err)
	}

	user, err := s.users.Get(ctx, id.UID)
	if errors.Is(err, store.ErrNotFound) {
		user = core.AppUser{
			ID:    id.UID,
			Email: id.Email,
			Role:  core.RoleUser,
		}
		if err := s.store.Set(ctx, usersCollection, id.UID, store.EncodeUser(user), false); err != nil {
			return core.AppUser{}, fmt.Errorf("create profile for %s: %w", id.UID, err)
		}
		s.logger.InfoContext(ctx, "created profile on first sign-in", log.FieldUser, id.UID)
	} else if err != nil {
		return core.AppUser{}, err
	}

	if user.IsAdmin() {
		groups, err := s.users.Groups(ctx)
		if err != nil {
			return core.AppUser{}, fmt.Errorf("expand admin groups: %w", err)
		}
		ids := make([]string, 0, len(groups))
		for _, g := range groups {
			ids = append(ids, g.ID)
		}
		user.GroupIDs = ids
	}

	s.mu.Lock()
	s.user = &user
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(&user)
	}
	s.logger.InfoContext(ctx, "signed in",
		log.FieldOperation, log.OpSignIn,
		log.FieldUser, user.ID,
		"role", user.Role)
	return user, nil
}

// SignOut clears the session and tells subscribers the user is gone.
func (s *Session) SignOut(ctx context.Context) {
	s.mu.Lock()
	was := s.user
	s.user = nil
	subs := s.snapshotSubs()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(nil)
	}
	if was != nil {
		s.logger.InfoContext(ctx, "signed out",
			log.FieldOperation, log.OpSignOut,
			log.FieldUser, was.ID)
	}
}

// User returns the signed-in user or ErrNotSignedIn.
func (s *Session) User() (core.AppUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return core.AppUser{}, ErrNotSignedIn
	}
	return *s.user, nil
}

// Subscribe registers a callback for sign-in and sign-out transitions.
// The callback receives nil on sign-out. The returned function removes
// the subscription.
func (s *Session) Subscribe(fn func(*core.AppUser)) func() {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) snapshotSubs() []func(*core.AppUser) {
	out := make([]func(*core.AppUser), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}
