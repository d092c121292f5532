// Package audit defines the action vocabulary the orchestrator emits at each
// successful transaction boundary and a Recorder interface external
// collaborators implement to persist them. Per spec scope, audit persistence
// itself is an external collaborator; this package only fixes the contract
// and ships a logging-only Recorder so the orchestrator has something to
// call when no dedicated audit store is wired in.
package audit

import (
	"context"
	"time"

	"github.com/ggnet/ggnetd/internal/logger"
)

// Action names an auditable control-plane event. Stop emits a distinct
// SessionStopped action rather than reusing SessionStarted, correcting the
// original implementation's mislabeled stop-event audit entry.
type Action string

const (
	ActionSessionStarted  Action = "SESSION_STARTED"
	ActionSessionStopped  Action = "SESSION_STOPPED"
	ActionSessionFailed   Action = "SESSION_FAILED"
	ActionTargetCreated   Action = "TARGET_CREATED"
	ActionTargetDeleted   Action = "TARGET_DELETED"
	ActionImageUploaded   Action = "IMAGE_UPLOADED"
	ActionImageConverted  Action = "IMAGE_CONVERTED"
	ActionImageFailed     Action = "IMAGE_CONVERSION_FAILED"
	ActionImageDeleted    Action = "IMAGE_DELETED"
	ActionDriftHealed     Action = "DRIFT_HEALED"
	ActionConfigDrift     Action = "DHCP_CONFIG_DRIFT"
)

// Entry is one audit record.
type Entry struct {
	Action    Action
	Actor     string
	MachineID string
	SessionID string
	TargetID  string
	ImageID   string
	Message   string
	At        time.Time
}

// Recorder persists audit entries. Implementations must not block the
// orchestrator's transaction boundary for longer than a best-effort write;
// a Recorder that fails should log rather than propagate, since audit
// failures must never roll back an otherwise successful operation.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

// LoggingRecorder writes entries through the structured logger. It is the
// default Recorder when no external audit store is configured, matching
// this package's scope as a contract rather than a persistence layer.
type LoggingRecorder struct{}

// Record logs e at info level with its fields flattened for correlation.
func (LoggingRecorder) Record(_ context.Context, e Entry) {
	logger.Info("audit",
		logger.KeyAction, string(e.Action),
		logger.KeyActor, e.Actor,
		logger.KeyMachineID, e.MachineID,
		logger.KeySessionID, e.SessionID,
		logger.KeyTargetID, e.TargetID,
		logger.KeyImageID, e.ImageID,
		logger.KeyMessage, e.Message,
	)
}
