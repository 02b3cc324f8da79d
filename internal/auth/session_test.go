package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"kharcha/internal/auth"
	"kharcha/internal/core"
	"kharcha/internal/store"
	"kharcha/internal/store/memory"
	"kharcha/internal/users"
)

func newSession(t *testing.T) (*auth.Session, *auth.JWTManager, store.Store) {
	t.Helper()
	st := memory.New()
	mgr := auth.NewJWTManager("test-secret", time.Hour)
	return auth.NewSession(mgr, st, users.NewService(st)), mgr, st
}

func signedToken(t *testing.T, mgr *auth.JWTManager, id auth.Identity) string {
	t.Helper()
	token, err := mgr.Generate(id)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func TestSignInCreatesProfile(t *testing.T) {
	sess, mgr, st := newSession(t)
	ctx := context.Background()

	token := signedToken(t, mgr, auth.Identity{UID: "u1", Email: "u1@example.com"})
	user, err := sess.SignIn(ctx, token)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if user.ID != "u1" || user.Email != "u1@example.com" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.Role != core.RoleUser {
		t.Fatalf("first sign-in must default to user role, got %q", user.Role)
	}

	doc, err := st.Get(ctx, "users", "u1")
	if err != nil {
		t.Fatalf("profile not persisted: %v", err)
	}
	if store.DecodeUser(doc).Email != "u1@example.com" {
		t.Fatal("persisted profile missing email")
	}
}

func TestSignInKeepsExistingProfile(t *testing.T) {
	sess, mgr, st := newSession(t)
	ctx := context.Background()

	err := st.Set(ctx, "users", "u1", store.EncodeUser(core.AppUser{
		ID: "u1", Email: "u1@example.com", FirstName: "Asha", Role: core.RoleUser, GroupIDs: []string{"g1"},
	}), false)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	user, err := sess.SignIn(ctx, signedToken(t, mgr, auth.Identity{UID: "u1", Email: "u1@example.com"}))
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if user.FirstName != "Asha" || len(user.GroupIDs) != 1 {
		t.Fatalf("existing profile clobbered: %+v", user)
	}
}

func TestSignInExpandsAdminGroups(t *testing.T) {
	sess, mgr, st := newSession(t)
	ctx := context.Background()

	st.Set(ctx, "users", "admin", store.EncodeUser(core.AppUser{ID: "admin", Role: core.RoleAdmin}), false)
	st.Set(ctx, "groups", "g1", store.EncodeGroup(core.Group{ID: "g1", Name: "Flat 4B"}), false)
	st.Set(ctx, "groups", "g2", store.EncodeGroup(core.Group{ID: "g2", Name: "Office"}), false)

	user, err := sess.SignIn(ctx, signedToken(t, mgr, auth.Identity{UID: "admin"}))
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if len(user.GroupIDs) != 2 {
		t.Fatalf("admin should see every group, got %v", user.GroupIDs)
	}
}

func TestSignInRejectsBadToken(t *testing.T) {
	sess, _, _ := newSession(t)

	_, err := sess.SignIn(context.Background(), "not-a-token")
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}

	_, err = sess.SignIn(context.Background(), "")
	if !errors.Is(err, auth.ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestSignInRejectsWrongKey(t *testing.T) {
	sess, _, _ := newSession(t)
	other := auth.NewJWTManager("different-secret", time.Hour)

	_, err := sess.SignIn(context.Background(), signedToken(t, other, auth.Identity{UID: "u1"}))
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestSessionUserAndSignOut(t *testing.T) {
	sess, mgr, _ := newSession(t)
	ctx := context.Background()

	if _, err := sess.User(); !errors.Is(err, auth.ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}

	sess.SignIn(ctx, signedToken(t, mgr, auth.Identity{UID: "u1"}))
	user, err := sess.User()
	if err != nil || user.ID != "u1" {
		t.Fatalf("expected signed-in u1, got %+v, %v", user, err)
	}

	sess.SignOut(ctx)
	if _, err := sess.User(); !errors.Is(err, auth.ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn after sign-out, got %v", err)
	}
}

func TestSubscribe(t *testing.T) {
	sess, mgr, _ := newSession(t)
	ctx := context.Background()

	var events []*core.AppUser
	unsubscribe := sess.Subscribe(func(u *core.AppUser) { events = append(events, u) })

	sess.SignIn(ctx, signedToken(t, mgr, auth.Identity{UID: "u1"}))
	sess.SignOut(ctx)

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0] == nil || events[0].ID != "u1" {
		t.Fatalf("first event should carry the user, got %+v", events[0])
	}
	if events[1] != nil {
		t.Fatal("sign-out event should be nil")
	}

	unsubscribe()
	sess.SignIn(ctx, signedToken(t, mgr, auth.Identity{UID: "u1"}))
	if len(events) != 2 {
		t.Fatal("unsubscribed callback must not fire")
	}
}
