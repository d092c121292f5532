package apiclient

import "time"

// Session mirrors the JSON shape of pkg/models.Session as returned by the
// sessions endpoints.
type Session struct {
	ID           string     `json:"id"`
	SessionID    string     `json:"session_id"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	MachineID    string     `json:"machine_id"`
	TargetID     string     `json:"target_id"`
	ImageID      string     `json:"image_id"`
	ServerIP     string     `json:"server_ip,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
	RetryCount   int        `json:"retry_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// StartSessionRequest is the body of POST /api/v1/sessions.
type StartSessionRequest struct {
	MachineID   string `json:"machine_id"`
	ImageID     string `json:"image_id"`
	Type        string `json:"type,omitempty"`
	Description string `json:"description,omitempty"`
}

// StartSessionResponse mirrors handlers.startResponse.
type StartSessionResponse struct {
	Session       *Session    `json:"session"`
	TargetInfo    interface{} `json:"target_info"`
	BootScript    string      `json:"boot_script"`
	IPXEScriptURL string      `json:"ipxe_script_url"`
	ISCSIDetails  interface{} `json:"iscsi_details"`
}

// StopSessionResponse mirrors handlers.stopResponse.
type StopSessionResponse struct {
	SessionID string `json:"session_id"`
	MachineID string `json:"machine_id"`
}

// SessionStats mirrors orchestrator.Stats.
type SessionStats struct {
	Total    int `json:"total"`
	Starting int `json:"starting"`
	Active   int `json:"active"`
	Stopping int `json:"stopping"`
	Stopped  int `json:"stopped"`
	Error    int `json:"error"`
	Timeout  int `json:"timeout"`
}

// StartSession provisions a diskless boot session for a machine.
func (c *Client) StartSession(req StartSessionRequest) (*StartSessionResponse, error) {
	var resp StartSessionResponse
	if err := c.post("/api/v1/sessions", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StopSession tears a session down by its opaque session ID.
func (c *Client) StopSession(sessionID string) (*StopSessionResponse, error) {
	var resp StopSessionResponse
	if err := c.post("/api/v1/sessions/"+sessionID+"/stop", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetSession fetches a single session by ID.
func (c *Client) GetSession(sessionID string) (*Session, error) {
	var s Session
	if err := c.get("/api/v1/sessions/"+sessionID, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// ListSessions lists sessions, optionally filtered by status ("" for all).
func (c *Client) ListSessions(status string) ([]Session, error) {
	path := "/api/v1/sessions"
	if status != "" {
		path += "?status=" + status
	}
	var sessions []Session
	if err := c.get(path, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SessionStatistics fetches the point-in-time session count breakdown.
func (c *Client) SessionStatistics() (*SessionStats, error) {
	var stats SessionStats
	if err := c.get("/api/v1/sessions/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
