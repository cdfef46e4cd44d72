package models

type RemoteStatus string

const (
	RemoteDispatched RemoteStatus = "dispatched"
	RemoteQueued     RemoteStatus = "queued"
	RemoteRunning    RemoteStatus = "in_progress"
	RemoteCompleted  RemoteStatus = "completed"
	RemoteCancelling RemoteStatus = "cancelling"
	// RemoteUnresolved marks a dispatch whose run never showed up. Only a
	// manual sync retries it.
	RemoteUnresolved RemoteStatus = "unresolved"
)

type RemoteConnection struct {
	RDP      string `json:"rdp"`
	Web      string `json:"web"`
	Username string `json:"username"`
	Password string `json:"password"`
	OSName   string `json:"os_name,omitempty"`
}

// RemoteSession maps a local session record to a workflow run behind the
// edge function. RunID stays 0 until the dispatch is resolved.
type RemoteSession struct {
	ID           string            `json:"id"`
	DispatchID   string            `json:"dispatchId"`
	DispatchedAt string            `json:"dispatchedAt"`
	RunID        int64             `json:"runId"`
	HTMLURL      string            `json:"htmlUrl"`
	OSVersion    string            `json:"osVersion"`
	Language     string            `json:"language"`
	Status       RemoteStatus      `json:"status"`
	Conclusion   string            `json:"conclusion"`
	Connection   *RemoteConnection `json:"connection,omitempty"`
	CreatedAt    int64             `json:"createdAt"`
	UpdatedAt    int64             `json:"updatedAt"`
	LastError    string            `json:"lastError,omitempty"`
}

// Active reports whether background polling should keep syncing it.
func (r *RemoteSession) Active() bool {
	return r.Status != RemoteCompleted && r.Status != RemoteUnresolved
}
