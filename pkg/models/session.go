package models

import "time"

// SessionType classifies the purpose of a boot session.
type SessionType string

const (
	SessionTypeDisklessBoot SessionType = "diskless-boot"
	SessionTypeMaintenance  SessionType = "maintenance"
	SessionTypeTesting      SessionType = "testing"
)

// SessionStatus tracks a boot session through orchestration.
type SessionStatus string

const (
	SessionStatusStarting SessionStatus = "starting"
	SessionStatusActive   SessionStatus = "active"
	SessionStatusStopping SessionStatus = "stopping"
	SessionStatusStopped  SessionStatus = "stopped"
	SessionStatusError    SessionStatus = "error"
	SessionStatusTimeout  SessionStatus = "timeout"
)

// IsLive reports whether a Session in this status counts against the
// at-most-one-live-session-per-machine invariant.
func (s SessionStatus) IsLive() bool {
	return s == SessionStatusStarting || s == SessionStatusActive
}

// Session is one diskless boot lifecycle for a Machine, bound to exactly one
// Target for its duration.
type Session struct {
	ID         string  `gorm:"primaryKey;size:36" json:"id"`
	SessionID  string  `gorm:"uniqueIndex;not null;size:64" json:"session_id"` // opaque, externally visible
	Type       string  `gorm:"not null;size:20" json:"type"`
	Status     string  `gorm:"index;not null;size:20" json:"status"`
	MachineID  string  `gorm:"not null;size:36;index" json:"machine_id"`
	TargetID   string  `gorm:"not null;size:36;index" json:"target_id"`
	ImageID    string  `gorm:"not null;size:36" json:"image_id"`
	ServerIP   string  `gorm:"size:45" json:"server_ip,omitempty"`

	StartedAt *time.Time `gorm:"index" json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	BootAt    *time.Time `json:"boot_at,omitempty"`
	LoadAt    *time.Time `json:"load_at,omitempty"`
	ReadyAt   *time.Time `json:"ready_at,omitempty"`

	// LastActivity is updated by the watchdog reconciler's keep-alive check
	// and used to detect abandoned sessions.
	LastActivity *time.Time `gorm:"index" json:"last_activity,omitempty"`

	RetryCount   int    `gorm:"default:0" json:"retry_count"`
	ErrorMessage string `json:"error_message,omitempty"`

	// ClientIP and BytesTransferred are optional watchdog-populated fields
	// carried over from the original implementation's keep-alive reporting;
	// they have no effect on lifecycle transitions.
	ClientIP         string `gorm:"size:45" json:"client_ip,omitempty"`
	BytesTransferred int64  `gorm:"default:0" json:"bytes_transferred,omitempty"`

	CreatedByID string    `gorm:"size:36" json:"created_by_id"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Session.
func (Session) TableName() string {
	return "sessions"
}

// Durations computed from the recorded timestamps. A zero time.Duration is
// returned for any leg whose endpoints are not both set.
func (s *Session) BootDuration() time.Duration {
	if s.StartedAt == nil || s.BootAt == nil {
		return 0
	}
	return s.BootAt.Sub(*s.StartedAt)
}

func (s *Session) LoadDuration() time.Duration {
	if s.BootAt == nil || s.LoadAt == nil {
		return 0
	}
	return s.LoadAt.Sub(*s.BootAt)
}

func (s *Session) TotalDuration() time.Duration {
	if s.StartedAt == nil || s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(*s.StartedAt)
}
