package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"cloudvps-backend/internal/config"

	"github.com/google/uuid"
)

// resolveTolerance allows for clock skew between us and GitHub.
const resolveTolerance = 10 * time.Second

type dispatchRecord struct {
	RunID        *int64  `json:"run_id"`
	HTMLURL      *string `json:"html_url"`
	CreatedAt    *string `json:"created_at"`
	DispatchedAt string  `json:"dispatched_at"`
}

type DispatchResponse struct {
	DispatchID   string  `json:"dispatch_id"`
	DispatchedAt string  `json:"dispatched_at"`
	RunID        *int64  `json:"run_id"`
	HTMLURL      *string `json:"html_url"`
}

type ResolveResponse struct {
	RunID   *int64  `json:"run_id"`
	HTMLURL *string `json:"html_url,omitempty"`
}

type ConnectionRecord struct {
	RunID    string `json:"run_id"`
	RDP      string `json:"rdp"`
	Web      string `json:"web"`
	Username string `json:"username"`
	Password string `json:"password"`
	OSName   string `json:"os_name"`
	TS       int64  `json:"ts"`
}

// ProxyService is the edge function: it turns a few REST calls into GitHub
// Actions calls and keeps dispatch and connection records in a KV store.
type ProxyService struct {
	github *GitHubClient
	kv     KeyValueStore
	now    func() time.Time

	ref           string
	workflowPath  string
	workflowFile  string
	returnDetails bool
	webhookSecret string
	defaultUser   string
	defaultPass   string
}

func NewProxyService(cfg *config.Config, github *GitHubClient, kv KeyValueStore) *ProxyService {
	return &ProxyService{
		github:        github,
		kv:            kv,
		now:           time.Now,
		ref:           cfg.GitHubRef,
		workflowPath:  cfg.WorkflowPath,
		workflowFile:  cfg.WorkflowFile,
		returnDetails: cfg.GitHubReturnRunDetails,
		webhookSecret: cfg.WebhookSecret,
		defaultUser:   cfg.DefaultRDPUser,
		defaultPass:   cfg.DefaultRDPPassword,
	}
}

// SetClock replaces the time source.
func (p *ProxyService) SetClock(now func() time.Time) {
	p.now = now
}

func (p *ProxyService) Config(ctx context.Context) (*WorkflowOptions, error) {
	src, err := p.github.FileContent(ctx, p.workflowPath, p.ref)
	if err != nil {
		return nil, err
	}
	return ParseWorkflow(src)
}

// Dispatch triggers a run and tries once to find its run id.
func (p *ProxyService) Dispatch(ctx context.Context, osVersion, language string) (*DispatchResponse, error) {
	osVersion = strings.TrimSpace(osVersion)
	language = strings.TrimSpace(language)
	if osVersion == "" || language == "" {
		return nil, ErrMissingInputs
	}

	dispatchID := uuid.New().String()
	dispatchedAt := p.now().UTC().Format(time.RFC3339Nano)

	details, err := p.github.DispatchWorkflow(ctx, p.workflowFile, p.ref,
		map[string]string{"os_version": osVersion, "language": language}, p.returnDetails)
	if err != nil {
		return nil, err
	}

	rec := dispatchRecord{DispatchedAt: dispatchedAt}
	if details != nil {
		runID := details.RunID
		rec.RunID = &runID
		rec.HTMLURL = &details.HTMLURL
		p.claimRun(ctx, runID, dispatchID)
	} else if run, err := p.findRun(ctx, dispatchID, dispatchedAt); err != nil {
		log.Printf("Run lookup after dispatch %s failed: %v", dispatchID, err)
	} else if run != nil {
		applyRun(&rec, run)
	}

	if err := p.saveDispatch(ctx, dispatchID, rec); err != nil {
		return nil, err
	}

	return &DispatchResponse{
		DispatchID:   dispatchID,
		DispatchedAt: dispatchedAt,
		RunID:        rec.RunID,
		HTMLURL:      rec.HTMLURL,
	}, nil
}

// Resolve maps a dispatch id to its run id, retrying the lookup while it
// is still unknown. An unknown dispatch id resolves to a null run id.
func (p *ProxyService) Resolve(ctx context.Context, dispatchID string) (*ResolveResponse, error) {
	raw, ok, err := p.kv.Get(ctx, fmt.Sprintf(KeyDispatch, dispatchID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ResolveResponse{}, nil
	}

	var rec dispatchRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return &ResolveResponse{}, nil
	}
	if rec.RunID != nil {
		return &ResolveResponse{RunID: rec.RunID, HTMLURL: rec.HTMLURL}, nil
	}

	run, err := p.findRun(ctx, dispatchID, rec.DispatchedAt)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return &ResolveResponse{}, nil
	}
	applyRun(&rec, run)
	if err := p.saveDispatch(ctx, dispatchID, rec); err != nil {
		return nil, err
	}
	return &ResolveResponse{RunID: rec.RunID, HTMLURL: rec.HTMLURL}, nil
}

func applyRun(rec *dispatchRecord, run *WorkflowRun) {
	id := run.ID
	htmlURL := run.HTMLURL
	created := run.CreatedAt.UTC().Format(time.RFC3339)
	rec.RunID = &id
	rec.HTMLURL = &htmlURL
	rec.CreatedAt = &created
}

func (p *ProxyService) saveDispatch(ctx context.Context, dispatchID string, rec dispatchRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return p.kv.Put(ctx, fmt.Sprintf(KeyDispatch, dispatchID), string(data), TTLDispatch)
}

// findRun picks the earliest recent run created no earlier than the
// dispatch time minus the tolerance that no other dispatch has claimed.
func (p *ProxyService) findRun(ctx context.Context, dispatchID, dispatchedAt string) (*WorkflowRun, error) {
	t, err := time.Parse(time.RFC3339Nano, dispatchedAt)
	if err != nil {
		return nil, nil
	}
	t0 := t.Add(-resolveTolerance)

	runs, err := p.github.ListDispatchRuns(ctx, p.workflowFile)
	if err != nil {
		return nil, err
	}

	// The API lists newest first.
	for i := len(runs) - 1; i >= 0; i-- {
		run := runs[i]
		if run.CreatedAt.IsZero() || run.CreatedAt.Before(t0) {
			continue
		}
		if p.claimRun(ctx, run.ID, dispatchID) {
			return &run, nil
		}
	}
	return nil, nil
}

// claimRun binds a run to one dispatch. It reports whether the run is now
// owned by dispatchID.
func (p *ProxyService) claimRun(ctx context.Context, runID int64, dispatchID string) bool {
	key := fmt.Sprintf(KeyRunClaim, runID)
	ok, err := p.kv.PutIfAbsent(ctx, key, dispatchID, TTLRunClaim)
	if err != nil {
		log.Printf("Failed to claim run %d: %v", runID, err)
		return true
	}
	if ok {
		return true
	}
	owner, found, err := p.kv.Get(ctx, key)
	return err == nil && found && owner == dispatchID
}

func parseRunID(raw string) (int64, error) {
	if raw == "" {
		return 0, ErrMissingRunID
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, ErrInvalidRunID
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrInvalidRunID
	}
	return id, nil
}

func (p *ProxyService) Run(ctx context.Context, rawRunID string) (json.RawMessage, error) {
	runID, err := parseRunID(rawRunID)
	if err != nil {
		return nil, err
	}
	return p.github.Run(ctx, runID)
}

func (p *ProxyService) Cancel(ctx context.Context, rawRunID string) error {
	runID, err := parseRunID(rawRunID)
	if err != nil {
		return err
	}
	return p.github.CancelRun(ctx, runID)
}

// Connection returns the stored connection record, or {} when none.
func (p *ProxyService) Connection(ctx context.Context, rawRunID string) (json.RawMessage, error) {
	runID, err := parseRunID(rawRunID)
	if err != nil {
		return nil, err
	}
	raw, ok, err := p.kv.Get(ctx, fmt.Sprintf(KeyConn, strconv.FormatInt(runID, 10)))
	if err != nil {
		return nil, err
	}
	if !ok {
		return json.RawMessage(`{}`), nil
	}
	return json.RawMessage(raw), nil
}

// Authorized checks the webhook bearer token in constant time. An empty
// configured secret rejects everything.
func (p *ProxyService) Authorized(authHeader string) bool {
	if p.webhookSecret == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return false
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(p.webhookSecret)) == 1
}

// StoreConnection normalizes a webhook body and caches it for eight hours.
func (p *ProxyService) StoreConnection(ctx context.Context, body map[string]interface{}) (*ConnectionRecord, error) {
	raw := strings.TrimSpace(stringField(body, "run_id"))
	if raw == "" {
		return nil, ErrMissingRunID
	}
	parsed, err := parseRunID(raw)
	if err != nil {
		return nil, err
	}
	// Stored under the canonical id so "007" and "7" meet in Connection.
	runID := strconv.FormatInt(parsed, 10)

	conn := &ConnectionRecord{
		RunID:    runID,
		RDP:      firstNonEmpty(stringField(body, "rdp"), stringField(body, "rdp_public_ip")),
		Web:      firstNonEmpty(stringField(body, "web"), stringField(body, "web_public_ip")),
		Username: firstNonEmpty(stringField(body, "username"), p.defaultUser),
		Password: firstNonEmpty(stringField(body, "password"), p.defaultPass),
		OSName:   stringField(body, "os_name"),
		TS:       p.now().UnixMilli(),
	}

	data, err := json.Marshal(conn)
	if err != nil {
		return nil, err
	}
	if err := p.kv.Put(ctx, fmt.Sprintf(KeyConn, runID), string(data), TTLConnection); err != nil {
		return nil, err
	}
	return conn, nil
}

// stringField renders strings and JSON numbers; run ids arrive as either.
func stringField(body map[string]interface{}, key string) string {
	switch v := body[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
