package kharcha

import (
	"context"
	"testing"
	"time"

	"kharcha/internal/auth"
	"kharcha/internal/config"
	"kharcha/internal/core"
)

func testConfig() *config.Config {
	return &config.Config{
		DataBackend: "memory",
		JWTSecret:   "unit-test-secret-0123456789",
		JWTDuration: time.Hour,
		LogLevel:    "error",
		LogFormat:   "json",
	}
}

func TestAppLifecycle(t *testing.T) {
	ctx := context.Background()
	app, err := NewWithConfig(ctx, testConfig())
	if err != nil {
		t.Fatalf("compose app: %v", err)
	}
	defer app.Close()

	token, err := auth.NewJWTManager(app.Config.JWTSecret, app.Config.JWTDuration).
		Generate(auth.Identity{UID: "u1", Email: "a@x"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	user, err := app.Session.SignIn(ctx, token)
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if user.ID != "u1" || user.Role != core.RoleUser {
		t.Fatalf("unexpected profile: %+v", user)
	}

	if _, err := app.Expenses.Create(ctx, user, core.Expense{
		Title: "milk", Amount: 10, Currency: "INR",
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	<-app.Stats.Refresh(ctx, user)
	snap := app.Stats.Snapshot()
	if snap.Err != "" {
		t.Fatalf("refresh failed: %s", snap.Err)
	}
	year := time.Now().Format("2006")
	if snap.Report.Yearly[year] != 10 {
		t.Fatalf("yearly total = %v, want 10", snap.Report.Yearly[year])
	}

	// Sign-out clears the cached per-viewer state through the session
	// subscription.
	app.Session.SignOut(ctx)
	snap = app.Stats.Snapshot()
	if len(snap.Expenses) != 0 || len(snap.Report.Yearly) != 0 {
		t.Fatalf("stats survived sign-out: %+v", snap)
	}
	if _, err := app.Session.User(); err != auth.ErrNotSignedIn {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
}

func TestNewReadsEnvironment(t *testing.T) {
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("LOG_FORMAT", "json")

	app, err := New(context.Background())
	if err != nil {
		t.Fatalf("compose app: %v", err)
	}
	defer app.Close()

	if app.Store == nil || app.Session == nil || app.Reports == nil || app.Tracker == nil {
		t.Fatal("composition left a nil service")
	}
	if app.Worker != nil {
		t.Fatal("worker should be absent without a broker")
	}
}

func TestNewWithConfigRejectsInvalid(t *testing.T) {
	cfg := testConfig()
	cfg.DataBackend = "bogus"
	if _, err := NewWithConfig(context.Background(), cfg); err == nil {
		t.Fatal("expected validation error")
	}
}
