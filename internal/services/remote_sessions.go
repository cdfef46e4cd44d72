package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"cloudvps-backend/internal/models"
)

func (e *Engine) RemoteEnabled() bool {
	return e.edge != nil
}

func (e *Engine) RemoteOptions(ctx context.Context) (*WorkflowOptions, error) {
	if e.edge == nil {
		return nil, ErrRemoteDisabled
	}
	return e.edge.Options(ctx)
}

func (e *Engine) RemoteSessions(userID string) ([]models.RemoteSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.RemoteSession, len(s.RemoteSessions))
	copy(out, s.RemoteSessions)
	return out, nil
}

func findRemote(s *models.UserGameState, id string) *models.RemoteSession {
	for i := range s.RemoteSessions {
		if s.RemoteSessions[i].ID == id {
			return &s.RemoteSessions[i]
		}
	}
	return nil
}

// remoteSnapshot copies a session under the lock so network calls can run
// without it.
func (e *Engine) remoteSnapshot(userID, sessionID string) (models.RemoteSession, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return models.RemoteSession{}, err
	}
	rs := findRemote(s, sessionID)
	if rs == nil {
		return models.RemoteSession{}, ErrSessionNotFound
	}
	return *rs, nil
}

// StartRemoteSession dispatches a workflow run and records the session.
// Nothing is recorded when the dispatch fails.
func (e *Engine) StartRemoteSession(ctx context.Context, userID, osVersion, language string) (*models.RemoteSession, error) {
	if e.edge == nil {
		return nil, ErrRemoteDisabled
	}
	if osVersion == "" || language == "" {
		return nil, ErrMissingInputs
	}

	e.mu.Lock()
	_, err := e.state(userID)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	resp, err := e.edge.Dispatch(ctx, osVersion, language)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}

	nowMs := e.now().UnixMilli()
	rs := models.RemoteSession{
		ID:           models.NewID("rs"),
		DispatchID:   resp.DispatchID,
		DispatchedAt: resp.DispatchedAt,
		OSVersion:    osVersion,
		Language:     language,
		Status:       models.RemoteDispatched,
		CreatedAt:    nowMs,
		UpdatedAt:    nowMs,
	}
	if resp.RunID != nil {
		rs.RunID = *resp.RunID
		rs.Status = models.RemoteQueued
	}
	if resp.HTMLURL != nil {
		rs.HTMLURL = *resp.HTMLURL
	}

	s.RemoteSessions = append([]models.RemoteSession{rs}, s.RemoteSessions...)
	if len(s.RemoteSessions) > models.MaxRemoteSessions {
		s.RemoteSessions = s.RemoteSessions[:models.MaxRemoteSessions]
	}
	e.notify(userID, s, "info", "Session dispatched", fmt.Sprintf("%s (%s)", osVersion, language))
	e.commit(userID, "remote")
	return &rs, nil
}

// SyncRemoteSession resolves the run id if needed, then refreshes status
// and connection details. ErrRunUnresolved means the caller should retry.
func (e *Engine) SyncRemoteSession(ctx context.Context, userID, sessionID string) (*models.RemoteSession, error) {
	if e.edge == nil {
		return nil, ErrRemoteDisabled
	}
	snap, err := e.remoteSnapshot(userID, sessionID)
	if err != nil {
		return nil, err
	}

	runID := snap.RunID
	htmlURL := snap.HTMLURL
	if runID == 0 {
		res, err := e.edge.Resolve(ctx, snap.DispatchID)
		if err != nil {
			return nil, err
		}
		if res.RunID == nil {
			return nil, ErrRunUnresolved
		}
		runID = *res.RunID
		if res.HTMLURL != nil {
			htmlURL = *res.HTMLURL
		}
	}

	run, err := e.edge.Run(ctx, runID)
	if err != nil {
		return nil, err
	}
	var conn *ConnectionRecord
	if run.Status != string(models.RemoteCompleted) {
		if conn, err = e.edge.Connection(ctx, runID); err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}
	rs := findRemote(s, sessionID)
	if rs == nil {
		return nil, ErrSessionNotFound
	}

	prevStatus := rs.Status
	hadConn := rs.Connection != nil

	rs.RunID = runID
	if run.HTMLURL != "" {
		htmlURL = run.HTMLURL
	}
	rs.HTMLURL = htmlURL
	if run.Status != "" && !(rs.Status == models.RemoteCancelling && run.Status != string(models.RemoteCompleted)) {
		rs.Status = models.RemoteStatus(run.Status)
	}
	rs.Conclusion = run.Conclusion
	if conn != nil {
		rs.Connection = &models.RemoteConnection{
			RDP:      conn.RDP,
			Web:      conn.Web,
			Username: conn.Username,
			Password: conn.Password,
			OSName:   conn.OSName,
		}
	}
	rs.LastError = ""
	rs.UpdatedAt = e.now().UnixMilli()

	if !hadConn && rs.Connection != nil {
		e.notify(userID, s, "good", "Session ready", fmt.Sprintf("RDP %s", rs.Connection.RDP))
	}
	if prevStatus != models.RemoteCompleted && rs.Status == models.RemoteCompleted {
		e.notify(userID, s, "info", "Session finished", fmt.Sprintf("Run %d: %s", rs.RunID, rs.Conclusion))
	}
	e.commit(userID, "remote")

	out := *rs
	return &out, nil
}

func (e *Engine) CancelRemoteSession(ctx context.Context, userID, sessionID string) (*models.RemoteSession, error) {
	if e.edge == nil {
		return nil, ErrRemoteDisabled
	}
	snap, err := e.remoteSnapshot(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if snap.RunID == 0 {
		return nil, ErrRunUnresolved
	}
	if snap.Status == models.RemoteCompleted {
		return nil, ErrSessionFinished
	}

	if err := e.edge.Cancel(ctx, snap.RunID); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	s, err := e.state(userID)
	if err != nil {
		return nil, err
	}
	rs := findRemote(s, sessionID)
	if rs == nil {
		return nil, ErrSessionNotFound
	}
	rs.Status = models.RemoteCancelling
	rs.UpdatedAt = e.now().UnixMilli()
	e.notify(userID, s, "warn", "Cancelling session", fmt.Sprintf("Run %d", rs.RunID))
	e.commit(userID, "remote")

	out := *rs
	return &out, nil
}

// PollRemoteSessions syncs every active session of every user. Failures
// are logged and left for the next poll. Dispatches still without a run
// once the edge function forgot them are marked unresolved and dropped
// from polling.
func (e *Engine) PollRemoteSessions(ctx context.Context) {
	if e.edge == nil {
		return
	}

	type ref struct{ userID, sessionID string }
	var pending []ref

	e.mu.Lock()
	nowMs := e.now().UnixMilli()
	for userID, s := range e.doc.PerUser {
		if s == nil {
			continue
		}
		if _, ok := e.doc.Users[userID]; !ok {
			continue
		}
		expired := false
		for i := range s.RemoteSessions {
			rs := &s.RemoteSessions[i]
			if rs.RunID == 0 && rs.Status == models.RemoteDispatched && nowMs-rs.CreatedAt >= TTLDispatch.Milliseconds() {
				if !expired {
					e.normalizeDaily(s)
				}
				rs.Status = models.RemoteUnresolved
				rs.LastError = "No workflow run matched the dispatch"
				rs.UpdatedAt = nowMs
				e.notify(userID, s, "warn", "Session not started", fmt.Sprintf("%s (%s)", rs.OSVersion, rs.Language))
				expired = true
				continue
			}
			if rs.Active() {
				pending = append(pending, ref{userID, rs.ID})
			}
		}
		if expired {
			e.commit(userID, "remote")
		}
	}
	e.mu.Unlock()

	for _, p := range pending {
		if ctx.Err() != nil {
			return
		}
		if _, err := e.SyncRemoteSession(ctx, p.userID, p.sessionID); err != nil && !errors.Is(err, ErrRunUnresolved) {
			log.Printf("Remote session %s sync failed: %v", p.sessionID, err)
		}
	}
}
