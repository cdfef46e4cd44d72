package services_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"cloudvps-backend/internal/handlers"
	"cloudvps-backend/internal/models"
	"cloudvps-backend/internal/services"
)

func setupRemoteEngine(t *testing.T) (*services.Engine, *fakeClock, *services.ProxyService, *fakeGitHub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	proxy, gh := setupTestProxy(t, false)
	router := gin.New()
	handlers.NewProxyHandler(proxy).Register(router)
	edge := httptest.NewServer(router)
	t.Cleanup(edge.Close)

	engine, clock, _ := setupTestEngine(t, services.WithEdgeClient(services.NewEdgeClient(edge.URL)))
	return engine, clock, proxy, gh, registerTestUser(t, engine)
}

func TestRemoteSessionLifecycle(t *testing.T) {
	engine, _, proxy, gh, userID := setupRemoteEngine(t)
	ctx := context.Background()

	if !engine.RemoteEnabled() {
		t.Fatal("Remote sessions should be enabled")
	}
	opts, err := engine.RemoteOptions(ctx)
	if err != nil {
		t.Fatalf("Failed to get options: %v", err)
	}
	if len(opts.OSOptions) != 3 {
		t.Errorf("Expected 3 os options, got %v", opts.OSOptions)
	}

	rs, err := engine.StartRemoteSession(ctx, userID, "2022", "en-US")
	if err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	if rs.Status != models.RemoteDispatched || rs.DispatchID == "" {
		t.Errorf("Unexpected new session %+v", rs)
	}

	if _, err := engine.SyncRemoteSession(ctx, userID, rs.ID); !errors.Is(err, services.ErrRunUnresolved) {
		t.Errorf("Expected ErrRunUnresolved, got %v", err)
	}
	if _, err := engine.CancelRemoteSession(ctx, userID, rs.ID); !errors.Is(err, services.ErrRunUnresolved) {
		t.Errorf("Cancel before resolve should fail with ErrRunUnresolved, got %v", err)
	}

	gh.addRun(101, dispatchTime.Add(2*time.Second))
	if _, err := proxy.StoreConnection(ctx, map[string]interface{}{
		"run_id":        "101",
		"rdp_public_ip": "5.6.7.8:3389",
	}); err != nil {
		t.Fatalf("Failed to store connection: %v", err)
	}

	synced, err := engine.SyncRemoteSession(ctx, userID, rs.ID)
	if err != nil {
		t.Fatalf("Failed to sync: %v", err)
	}
	if synced.RunID != 101 || synced.Status != models.RemoteRunning {
		t.Errorf("Expected run 101 in progress, got %d %s", synced.RunID, synced.Status)
	}
	if synced.Connection == nil || synced.Connection.RDP != "5.6.7.8:3389" || synced.Connection.Username != "Admin" {
		t.Errorf("Unexpected connection %+v", synced.Connection)
	}

	notes, _, _ := engine.Notifications(userID)
	if len(notes) == 0 || notes[0].Title != "Session ready" {
		t.Errorf("Expected a session ready notification, got %+v", notes)
	}

	cancelled, err := engine.CancelRemoteSession(ctx, userID, rs.ID)
	if err != nil {
		t.Fatalf("Failed to cancel: %v", err)
	}
	if cancelled.Status != models.RemoteCancelling {
		t.Errorf("Expected cancelling, got %s", cancelled.Status)
	}
	if _, n := gh.counts(); n != 1 {
		t.Errorf("Expected one cancel call upstream, got %d", n)
	}

	sessions, _ := engine.RemoteSessions(userID)
	if len(sessions) != 1 {
		t.Errorf("Expected one session, got %d", len(sessions))
	}
	if _, err := engine.SyncRemoteSession(ctx, userID, "rs_missing"); !errors.Is(err, services.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestPollGivesUpOnStaleDispatch(t *testing.T) {
	engine, clock, _, gh, userID := setupRemoteEngine(t)
	ctx := context.Background()

	rs, err := engine.StartRemoteSession(ctx, userID, "2022", "en-US")
	if err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}

	engine.PollRemoteSessions(ctx)
	sessions, _ := engine.RemoteSessions(userID)
	if sessions[0].Status != models.RemoteDispatched {
		t.Fatalf("A fresh dispatch should stay dispatched, got %s", sessions[0].Status)
	}

	clock.Advance(services.TTLDispatch + time.Minute)
	engine.PollRemoteSessions(ctx)

	sessions, _ = engine.RemoteSessions(userID)
	if sessions[0].Status != models.RemoteUnresolved || sessions[0].LastError == "" {
		t.Fatalf("Expected an unresolved session with an error, got %+v", sessions[0])
	}
	if sessions[0].Active() {
		t.Error("Unresolved session should not be polled")
	}

	listed := gh.runListings()
	engine.PollRemoteSessions(ctx)
	engine.PollRemoteSessions(ctx)
	if gh.runListings() != listed {
		t.Errorf("Polling kept listing runs for an abandoned dispatch: %d -> %d", listed, gh.runListings())
	}

	// A manual sync still picks the run up if it appears.
	gh.addRun(101, dispatchTime.Add(2*time.Second))
	synced, err := engine.SyncRemoteSession(ctx, userID, rs.ID)
	if err != nil {
		t.Fatalf("Manual sync failed: %v", err)
	}
	if synced.RunID != 101 || synced.Status != models.RemoteRunning || synced.LastError != "" {
		t.Errorf("Expected run 101 in progress after manual sync, got %+v", synced)
	}
}

func TestRemoteSessionsDisabled(t *testing.T) {
	engine, _, _ := setupTestEngine(t)
	userID := registerTestUser(t, engine)

	if engine.RemoteEnabled() {
		t.Error("Remote sessions should be disabled without an edge URL")
	}
	if _, err := engine.StartRemoteSession(context.Background(), userID, "2022", "en-US"); !errors.Is(err, services.ErrRemoteDisabled) {
		t.Errorf("Expected ErrRemoteDisabled, got %v", err)
	}
}
