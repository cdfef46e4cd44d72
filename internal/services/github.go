package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloudvps-backend/internal/config"
)

type WorkflowRun struct {
	ID         int64     `json:"id"`
	HTMLURL    string    `json:"html_url"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	CreatedAt  time.Time `json:"created_at"`
}

// DispatchResult carries the run only when the API was asked to return
// run details.
type DispatchResult struct {
	RunID   int64  `json:"workflow_run_id"`
	RunURL  string `json:"run_url"`
	HTMLURL string `json:"html_url"`
}

// GitHubClient talks to the Actions REST API of one repository.
type GitHubClient struct {
	baseURL    string
	token      string
	owner      string
	repo       string
	httpClient *http.Client
}

func NewGitHubClient(cfg *config.Config) *GitHubClient {
	return &GitHubClient{
		baseURL: cfg.GitHubAPIURL,
		token:   cfg.GitHubToken,
		owner:   cfg.GitHubOwner,
		repo:    cfg.GitHubRepo,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

func (g *GitHubClient) repoPath(format string, args ...interface{}) string {
	return fmt.Sprintf("/repos/%s/%s", url.PathEscape(g.owner), url.PathEscape(g.repo)) + fmt.Sprintf(format, args...)
}

func (g *GitHubClient) do(ctx context.Context, method, path string, body interface{}) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("User-Agent", "cloudvps-worker")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, nil, &UpstreamError{Service: "GitHub " + method, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &UpstreamError{Service: "GitHub " + method, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, &UpstreamError{Service: "GitHub " + method, Status: resp.StatusCode, Body: string(data)}
	}
	return resp, data, nil
}

func (g *GitHubClient) get(ctx context.Context, path string, out interface{}) error {
	_, data, err := g.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode GitHub response: %v", err)
	}
	return nil
}

// FileContent reads a repository file through the contents API.
func (g *GitHubClient) FileContent(ctx context.Context, path, ref string) ([]byte, error) {
	var data struct {
		Content  string `json:"content"`
		Encoding string `json:"encoding"`
	}
	p := g.repoPath("/contents/%s?ref=%s", url.PathEscape(path), url.QueryEscape(ref))
	if err := g.get(ctx, p, &data); err != nil {
		return nil, err
	}
	if data.Content == "" {
		return nil, ErrWorkflowNotFound
	}
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(data.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow content: %v", err)
	}
	return raw, nil
}

// DispatchWorkflow triggers workflow_dispatch. With returnDetails the API
// answers 200 with the new run; otherwise 204 and the result is nil.
func (g *GitHubClient) DispatchWorkflow(ctx context.Context, workflow, ref string, inputs map[string]string, returnDetails bool) (*DispatchResult, error) {
	payload := map[string]interface{}{
		"ref":    ref,
		"inputs": inputs,
	}
	if returnDetails {
		payload["return_run_details"] = true
	}

	resp, data, err := g.do(ctx, http.MethodPost, g.repoPath("/actions/workflows/%s/dispatches", url.PathEscape(workflow)), payload)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNoContent || len(data) == 0 {
		return nil, nil
	}

	var result DispatchResult
	if err := json.Unmarshal(data, &result); err != nil || result.RunID == 0 {
		return nil, nil
	}
	return &result, nil
}

// ListDispatchRuns returns the ten most recent workflow_dispatch runs,
// newest first.
func (g *GitHubClient) ListDispatchRuns(ctx context.Context, workflow string) ([]WorkflowRun, error) {
	var list struct {
		WorkflowRuns []WorkflowRun `json:"workflow_runs"`
	}
	p := g.repoPath("/actions/workflows/%s/runs?event=workflow_dispatch&per_page=10", url.PathEscape(workflow))
	if err := g.get(ctx, p, &list); err != nil {
		return nil, err
	}
	return list.WorkflowRuns, nil
}

// Run returns the raw run object.
func (g *GitHubClient) Run(ctx context.Context, runID int64) (json.RawMessage, error) {
	_, data, err := g.do(ctx, http.MethodGet, g.repoPath("/actions/runs/%d", runID), nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (g *GitHubClient) CancelRun(ctx context.Context, runID int64) error {
	_, _, err := g.do(ctx, http.MethodPost, g.repoPath("/actions/runs/%d/cancel", runID), map[string]interface{}{})
	return err
}
