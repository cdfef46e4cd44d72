package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// EdgeClient calls the edge function on behalf of the engine.
type EdgeClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewEdgeClient(baseURL string) *EdgeClient {
	return &EdgeClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *EdgeClient) call(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Service: "edge", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &UpstreamError{Service: "edge", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := string(data)
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &UpstreamError{Service: "edge", Status: resp.StatusCode, Body: msg}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode edge response: %v", err)
	}
	return nil
}

func (c *EdgeClient) Health(ctx context.Context) error {
	return c.call(ctx, http.MethodGet, "/api/health", nil, nil)
}

func (c *EdgeClient) Options(ctx context.Context) (*WorkflowOptions, error) {
	var out WorkflowOptions
	if err := c.call(ctx, http.MethodGet, "/api/config", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *EdgeClient) Dispatch(ctx context.Context, osVersion, language string) (*DispatchResponse, error) {
	var out DispatchResponse
	body := map[string]string{"os_version": osVersion, "language": language}
	if err := c.call(ctx, http.MethodPost, "/api/dispatch", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *EdgeClient) Resolve(ctx context.Context, dispatchID string) (*ResolveResponse, error) {
	var out ResolveResponse
	if err := c.call(ctx, http.MethodGet, "/api/dispatch/"+url.PathEscape(dispatchID)+"/resolve", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *EdgeClient) Run(ctx context.Context, runID int64) (*WorkflowRun, error) {
	var out WorkflowRun
	if err := c.call(ctx, http.MethodGet, "/api/runs/"+strconv.FormatInt(runID, 10), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *EdgeClient) Cancel(ctx context.Context, runID int64) error {
	return c.call(ctx, http.MethodPost, "/api/runs/"+strconv.FormatInt(runID, 10)+"/cancel", nil, nil)
}

// Connection returns nil when the workflow has not reported yet.
func (c *EdgeClient) Connection(ctx context.Context, runID int64) (*ConnectionRecord, error) {
	var out ConnectionRecord
	if err := c.call(ctx, http.MethodGet, "/api/runs/"+strconv.FormatInt(runID, 10)+"/connection", nil, &out); err != nil {
		return nil, err
	}
	if out.RunID == "" && out.RDP == "" && out.Web == "" {
		return nil, nil
	}
	return &out, nil
}
