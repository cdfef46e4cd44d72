package services_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"cloudvps-backend/internal/config"
	"cloudvps-backend/internal/services"
)

var dispatchTime = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type fakeRun struct {
	ID        int64  `json:"id"`
	HTMLURL   string `json:"html_url"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// fakeGitHub serves the handful of Actions endpoints the proxy uses.
type fakeGitHub struct {
	mu         sync.Mutex
	runs       []fakeRun // newest first
	dispatches int
	listings   int
	cancelled  []string
}

func (f *fakeGitHub) addRun(id int64, createdAt time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := fakeRun{
		ID:        id,
		HTMLURL:   "https://github.com/o/r/actions/runs/" + strconv.FormatInt(id, 10),
		Status:    "queued",
		CreatedAt: createdAt.UTC().Format(time.RFC3339),
	}
	f.runs = append([]fakeRun{run}, f.runs...)
}

func (f *fakeGitHub) counts() (dispatches, cancels int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dispatches, len(f.cancelled)
}

func (f *fakeGitHub) runListings() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listings
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer gh-token" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	path := r.URL.Path
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/repos/o/r/contents/"):
		encoded := base64.StdEncoding.EncodeToString([]byte(sampleWorkflow))
		// The contents API wraps base64 at 60 columns.
		json.NewEncoder(w).Encode(map[string]string{"content": encoded[:60] + "\n" + encoded[60:], "encoding": "base64"})

	case r.Method == http.MethodPost && path == "/repos/o/r/actions/workflows/WindowsRDP.yml/dispatches":
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		f.dispatches++
		if body["return_run_details"] == true {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"workflow_run_id": 777,
				"html_url":        "https://github.com/o/r/actions/runs/777",
			})
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case r.Method == http.MethodGet && path == "/repos/o/r/actions/workflows/WindowsRDP.yml/runs":
		f.listings++
		json.NewEncoder(w).Encode(map[string]interface{}{"workflow_runs": f.runs})

	case r.Method == http.MethodGet && path == "/repos/o/r/actions/runs/101":
		json.NewEncoder(w).Encode(map[string]interface{}{"id": 101, "status": "in_progress"})

	case r.Method == http.MethodPost && path == "/repos/o/r/actions/runs/101/cancel":
		f.cancelled = append(f.cancelled, "101")
		w.WriteHeader(http.StatusAccepted)

	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
	}
}

func setupTestProxy(t *testing.T, returnDetails bool) (*services.ProxyService, *fakeGitHub) {
	t.Helper()

	gh := &fakeGitHub{}
	server := httptest.NewServer(gh)
	t.Cleanup(server.Close)

	cfg := &config.Config{
		GitHubAPIURL:           server.URL,
		GitHubToken:            "gh-token",
		GitHubOwner:            "o",
		GitHubRepo:             "r",
		GitHubRef:              "main",
		WorkflowPath:           ".github/workflows/WindowsRDP.yml",
		WorkflowFile:           "WindowsRDP.yml",
		GitHubReturnRunDetails: returnDetails,
		WebhookSecret:          "s3cret",
		DefaultRDPUser:         "Admin",
		DefaultRDPPassword:     "Window@123456",
	}
	proxy := services.NewProxyService(cfg, services.NewGitHubClient(cfg), services.NewMemoryKV())
	proxy.SetClock(func() time.Time { return dispatchTime })
	return proxy, gh
}

func TestProxyConfig(t *testing.T) {
	proxy, _ := setupTestProxy(t, false)

	opts, err := proxy.Config(context.Background())
	if err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}
	if opts.OSDefault != "2022" || len(opts.LanguageOptions) != 2 || opts.TimeoutMinutes != 120 {
		t.Errorf("Unexpected options %+v", opts)
	}
}

func TestProxyDispatchAndResolve(t *testing.T) {
	proxy, gh := setupTestProxy(t, false)
	ctx := context.Background()

	if _, err := proxy.Dispatch(ctx, " ", "en-US"); !errors.Is(err, services.ErrMissingInputs) {
		t.Errorf("Expected ErrMissingInputs, got %v", err)
	}

	first, err := proxy.Dispatch(ctx, "2022", "en-US")
	if err != nil {
		t.Fatalf("Failed to dispatch: %v", err)
	}
	if first.RunID != nil {
		t.Errorf("No run exists yet, got run id %d", *first.RunID)
	}
	second, err := proxy.Dispatch(ctx, "2019", "vi-VN")
	if err != nil {
		t.Fatalf("Failed to dispatch: %v", err)
	}
	if n, _ := gh.counts(); n != 2 {
		t.Errorf("Expected 2 dispatches, got %d", n)
	}

	gh.addRun(99, dispatchTime.Add(-time.Hour))
	gh.addRun(101, dispatchTime.Add(2*time.Second))
	gh.addRun(102, dispatchTime.Add(3*time.Second))

	res, err := proxy.Resolve(ctx, first.DispatchID)
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if res.RunID == nil || *res.RunID != 101 {
		t.Fatalf("Expected the earliest run 101, got %v", res.RunID)
	}

	res, err = proxy.Resolve(ctx, second.DispatchID)
	if err != nil {
		t.Fatalf("Failed to resolve: %v", err)
	}
	if res.RunID == nil || *res.RunID != 102 {
		t.Fatalf("A claimed run must not resolve twice, got %v", res.RunID)
	}

	res, _ = proxy.Resolve(ctx, first.DispatchID)
	if res.RunID == nil || *res.RunID != 101 {
		t.Errorf("Resolved run id should be stable, got %v", res.RunID)
	}

	res, err = proxy.Resolve(ctx, "unknown")
	if err != nil || res.RunID != nil {
		t.Errorf("Unknown dispatch should resolve to null, got %v %v", res, err)
	}
}

func TestProxyDispatchWithRunDetails(t *testing.T) {
	proxy, _ := setupTestProxy(t, true)

	resp, err := proxy.Dispatch(context.Background(), "2022", "en-US")
	if err != nil {
		t.Fatalf("Failed to dispatch: %v", err)
	}
	if resp.RunID == nil || *resp.RunID != 777 {
		t.Fatalf("Expected run 777 from the dispatch response, got %v", resp.RunID)
	}

	res, _ := proxy.Resolve(context.Background(), resp.DispatchID)
	if res.RunID == nil || *res.RunID != 777 {
		t.Errorf("Expected stored run 777, got %v", res.RunID)
	}
}

func TestProxyRuns(t *testing.T) {
	proxy, gh := setupTestProxy(t, false)
	ctx := context.Background()

	raw, err := proxy.Run(ctx, "101")
	if err != nil {
		t.Fatalf("Failed to get run: %v", err)
	}
	var run map[string]interface{}
	if err := json.Unmarshal(raw, &run); err != nil || run["status"] != "in_progress" {
		t.Errorf("Unexpected run body %s", raw)
	}

	if _, err := proxy.Run(ctx, "12a"); !errors.Is(err, services.ErrInvalidRunID) {
		t.Errorf("Expected ErrInvalidRunID, got %v", err)
	}

	_, err = proxy.Run(ctx, "404")
	var upstream *services.UpstreamError
	if !errors.As(err, &upstream) || upstream.Status != http.StatusNotFound {
		t.Errorf("Expected upstream 404, got %v", err)
	}

	if err := proxy.Cancel(ctx, "101"); err != nil {
		t.Fatalf("Failed to cancel: %v", err)
	}
	if _, n := gh.counts(); n != 1 {
		t.Errorf("Expected one cancel call, got %d", n)
	}
}

func TestProxyWebhook(t *testing.T) {
	proxy, _ := setupTestProxy(t, false)
	ctx := context.Background()

	if !proxy.Authorized("Bearer s3cret") {
		t.Error("Matching secret should be authorized")
	}
	for _, header := range []string{"", "Bearer nope", "s3cret", "Basic s3cret"} {
		if proxy.Authorized(header) {
			t.Errorf("Header %q should be rejected", header)
		}
	}

	conn, err := proxy.StoreConnection(ctx, map[string]interface{}{
		"run_id":        float64(101),
		"rdp_public_ip": "1.2.3.4:3389",
		"web_public_ip": "https://1.2.3.4",
		"os_name":       "Windows Server 2022",
	})
	if err != nil {
		t.Fatalf("Failed to store connection: %v", err)
	}
	if conn.RunID != "101" || conn.Username != "Admin" || conn.Password != "Window@123456" {
		t.Errorf("Unexpected defaults %+v", conn)
	}

	raw, err := proxy.Connection(ctx, "101")
	if err != nil {
		t.Fatalf("Failed to read connection: %v", err)
	}
	var stored services.ConnectionRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("Failed to decode connection: %v", err)
	}
	if stored.RDP != "1.2.3.4:3389" || stored.Web != "https://1.2.3.4" {
		t.Errorf("Field aliases not applied: %+v", stored)
	}

	padded, err := proxy.StoreConnection(ctx, map[string]interface{}{"run_id": "007", "rdp": "9.9.9.9:3389"})
	if err != nil {
		t.Fatalf("Failed to store padded run id: %v", err)
	}
	if padded.RunID != "7" {
		t.Errorf("Expected canonical run id 7, got %q", padded.RunID)
	}
	raw, _ = proxy.Connection(ctx, "7")
	if !strings.Contains(string(raw), "9.9.9.9:3389") {
		t.Errorf("Connection stored as 007 should be readable as 7, got %s", raw)
	}

	raw, _ = proxy.Connection(ctx, "555")
	if string(raw) != "{}" {
		t.Errorf("Expected {} for an unknown run, got %s", raw)
	}

	if _, err := proxy.StoreConnection(ctx, map[string]interface{}{"rdp": "x"}); !errors.Is(err, services.ErrMissingRunID) {
		t.Errorf("Expected ErrMissingRunID, got %v", err)
	}
}
