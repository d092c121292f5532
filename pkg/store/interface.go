// Package store provides the control plane persistence layer.
//
// This package implements the Store interface for managing the diskless-boot
// control plane's entities: operator users, uploaded images, registered
// machines, provisioned iSCSI targets, and boot sessions.
//
// The Store interface is composed of focused sub-interfaces, each grouping
// related operations by entity. Consumers should accept the narrowest
// sub-interface they need for improved testability and explicit dependencies.
//
// Two backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL (HA-capable)
package store

import (
	"context"
	"time"

	"github.com/ggnet/ggnetd/pkg/models"
)

// UserStore provides operator-console user CRUD and credential operations.
//
// All methods are safe for concurrent use. Username lookups are
// case-sensitive.
type UserStore interface {
	// GetUser returns a user by username.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	GetUser(ctx context.Context, username string) (*models.User, error)

	// GetUserByID returns a user by their unique ID (UUID).
	// Returns models.ErrUserNotFound if no user has this ID.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// ListUsers returns all users.
	ListUsers(ctx context.Context) ([]*models.User, error)

	// CreateUser creates a new user. The user ID will be generated if empty.
	// Returns the generated ID.
	// Returns models.ErrDuplicateUser if a user with the same username exists.
	CreateUser(ctx context.Context, user *models.User) (string, error)

	// UpdateUser updates an existing user's role/active flag.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	UpdateUser(ctx context.Context, user *models.User) error

	// DeleteUser deactivates a user by username (never a hard delete, to
	// preserve audit foreign keys).
	// Returns models.ErrUserNotFound if the user doesn't exist.
	DeleteUser(ctx context.Context, username string) error

	// UpdatePassword updates a user's password hash.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	UpdatePassword(ctx context.Context, username, passwordHash string) error

	// RecordLoginSuccess clears failed-attempt tracking and stamps LastLogin.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	RecordLoginSuccess(ctx context.Context, username string, at time.Time) error

	// RecordLoginFailure increments FailedLoginAttempts and, once the
	// configured threshold is reached, sets LockedUntil.
	// Returns models.ErrUserNotFound if the user doesn't exist.
	RecordLoginFailure(ctx context.Context, username string, at time.Time, threshold int, lockDuration time.Duration) error
}

// ImageStore provides Image CRUD and status-transition operations.
type ImageStore interface {
	// GetImage returns an image by ID.
	// Returns models.ErrImageNotFound if the image doesn't exist.
	GetImage(ctx context.Context, id string) (*models.Image, error)

	// ListImages returns all non-deleted images, optionally filtered by status.
	ListImages(ctx context.Context, status string) ([]*models.Image, error)

	// CreateImage creates a new image row at status=uploading.
	// The ID will be generated if empty. Returns the generated ID.
	// Returns models.ErrDuplicateImage if a non-deleted image with the same
	// display name already exists.
	CreateImage(ctx context.Context, image *models.Image) (string, error)

	// UpdateImage persists an image's DisplayName and ImageType (used by
	// handlers updating metadata); other fields are not written.
	// Returns models.ErrImageNotFound if the image doesn't exist.
	UpdateImage(ctx context.Context, image *models.Image) error

	// SoftDeleteImage transitions an image to status=deleted.
	// Returns models.ErrImageNotFound if the image doesn't exist.
	// Returns models.ErrImageInUse if an active Target still references it.
	SoftDeleteImage(ctx context.Context, id string) error

	// ClaimImageForConversion atomically transitions up to batchSize images
	// from status=processing to status=converting, stamping
	// ClaimedBy/ClaimedAt. Returns the images this claimer won; when no
	// eligible row exists it returns an empty slice and a nil error.
	ClaimImageForConversion(ctx context.Context, claimerID string, batchSize int) ([]*models.Image, error)

	// ReleaseStuckConversions returns any image stuck in status=converting
	// with a ClaimedAt older than olderThan back to status=processing,
	// clearing the claim. Used by the worker's crash-recovery sweep.
	ReleaseStuckConversions(ctx context.Context, olderThan time.Time) (int64, error)

	// CompleteConversion transitions an image from converting to ready,
	// recording the final file path, virtual size, and processing log.
	// Returns models.ErrImageNotFound if the image is not in status=converting
	// under this claimer.
	CompleteConversion(ctx context.Context, id, claimerID, filePath string, virtualSizeBytes int64, processingLog string) error

	// FailConversion transitions an image from converting to error,
	// recording the error message and stderr tail in ProcessingLog.
	FailConversion(ctx context.Context, id, claimerID, errMessage, processingLog string) error

	// RetryImage transitions an image from error back to processing.
	// Returns models.ErrImageNotFound if the image doesn't exist.
	// Returns models.ErrImageNotReady if the image is not in status=error.
	RetryImage(ctx context.Context, id string) error
}

// MachineStore provides Machine CRUD operations.
type MachineStore interface {
	// GetMachine returns a machine by ID.
	// Returns models.ErrMachineNotFound if the machine doesn't exist.
	GetMachine(ctx context.Context, id string) (*models.Machine, error)

	// GetMachineByMAC returns a machine by its canonical MAC address.
	// Returns models.ErrMachineNotFound if no machine has this MAC.
	GetMachineByMAC(ctx context.Context, mac string) (*models.Machine, error)

	// ListMachines returns all machines, optionally filtered by status.
	ListMachines(ctx context.Context, status string) ([]*models.Machine, error)

	// CreateMachine creates a new machine. The ID will be generated if empty.
	// Returns the generated ID.
	// Returns models.ErrDuplicateMachine if the display name or MAC collides.
	CreateMachine(ctx context.Context, machine *models.Machine) (string, error)

	// UpdateMachine updates an existing machine.
	// Returns models.ErrMachineNotFound if the machine doesn't exist.
	UpdateMachine(ctx context.Context, machine *models.Machine) error

	// DeleteMachine deletes a machine by ID.
	// Returns models.ErrMachineNotFound if the machine doesn't exist.
	DeleteMachine(ctx context.Context, id string) error

	// RecordHeartbeat marks a machine online and stamps LastSeen, optionally
	// merging a HardwareReport into its metadata.
	// Returns models.ErrMachineNotFound if the machine doesn't exist.
	RecordHeartbeat(ctx context.Context, mac string, at time.Time, report *models.HardwareReport) error

	// IncrementBootCount bumps a machine's boot counter.
	// Returns models.ErrMachineNotFound if the machine doesn't exist.
	IncrementBootCount(ctx context.Context, id string) error
}

// TargetStore provides Target CRUD operations.
type TargetStore interface {
	// GetTarget returns a target by ID.
	// Returns models.ErrTargetNotFound if the target doesn't exist.
	GetTarget(ctx context.Context, id string) (*models.Target, error)

	// GetTargetByMachine returns the current target for a machine, if any.
	// Returns models.ErrTargetNotFound if the machine has no target.
	GetTargetByMachine(ctx context.Context, machineID string) (*models.Target, error)

	// ListTargets returns all targets.
	ListTargets(ctx context.Context) ([]*models.Target, error)

	// CreateTarget creates a new target. The ID will be generated if empty.
	// Returns the generated ID.
	// Returns models.ErrDuplicateTarget if the machine already has a target.
	CreateTarget(ctx context.Context, target *models.Target) (string, error)

	// UpdateTargetStatus updates a target's status field.
	// Returns models.ErrTargetNotFound if the target doesn't exist.
	UpdateTargetStatus(ctx context.Context, id, status string) error

	// DeleteTarget deletes a target by ID.
	// Returns models.ErrTargetNotFound if the target doesn't exist.
	DeleteTarget(ctx context.Context, id string) error
}

// SessionStore provides Session CRUD and lifecycle operations.
type SessionStore interface {
	// GetSession returns a session by its opaque session ID.
	// Returns models.ErrSessionNotFound if the session doesn't exist.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)

	// GetLiveSessionByMachine returns the machine's session with
	// status in {starting, active}, if any.
	// Returns models.ErrSessionNotFound if the machine has no live session.
	GetLiveSessionByMachine(ctx context.Context, machineID string) (*models.Session, error)

	// ListSessions returns sessions, optionally filtered by status.
	ListSessions(ctx context.Context, status string) ([]*models.Session, error)

	// CreateSession inserts a session, setting status=starting when Status
	// is empty. The ID and SessionID will be generated if empty and are set
	// on session. Returns the row ID (session.ID), not the SessionID.
	// Returns models.ErrSessionConflict if the machine already has a live
	// session (the database partial unique index is the authoritative guard;
	// this error surfaces that constraint violation).
	CreateSession(ctx context.Context, session *models.Session) (string, error)

	// ActivateSession transitions a session from starting to active.
	// Returns models.ErrSessionNotFound if the session doesn't exist.
	ActivateSession(ctx context.Context, sessionID string, startedAt time.Time) error

	// StopSession transitions a session to stopped, recording EndedAt.
	// Returns models.ErrSessionNotFound if the session doesn't exist.
	StopSession(ctx context.Context, sessionID string, endedAt time.Time) error

	// FailSession transitions a session to error, recording the message.
	// Returns models.ErrSessionNotFound if the session doesn't exist.
	FailSession(ctx context.Context, sessionID, errMessage string) error

	// TouchSession updates LastActivity (and optionally ClientIP/
	// BytesTransferred) for the watchdog reconciler's keep-alive check.
	// Returns models.ErrSessionNotFound if the session doesn't exist.
	TouchSession(ctx context.Context, sessionID string, at time.Time, clientIP string, bytesTransferred int64) error

	// ListStaleSessions returns sessions with status in {starting, active}
	// whose LastActivity (or CreatedAt, if never touched) is older than
	// olderThan. Used by the watchdog reconciler.
	ListStaleSessions(ctx context.Context, olderThan time.Time) ([]*models.Session, error)
}

// AdminStore provides admin user initialization operations, used during
// server startup to guarantee at least one admin account exists.
type AdminStore interface {
	// EnsureAdminUser ensures an admin user exists.
	// Returns the initial password if a new admin was created, empty
	// string otherwise.
	EnsureAdminUser(ctx context.Context) (initialPassword string, err error)
}

// HealthStore provides store health check and lifecycle operations.
type HealthStore interface {
	// Healthcheck verifies the store is operational.
	Healthcheck(ctx context.Context) error

	// Close closes the store and releases resources.
	Close() error
}

// UnitOfWork provides a transactional execution boundary. fn receives a
// Store bound to the transaction; any error returned rolls the transaction
// back.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

// Store is the composite control plane persistence interface.
//
// It embeds all sub-interfaces to provide the full set of operations.
// Callers that need everything (the orchestrator, tests) accept Store;
// individual handlers accept only the narrowest sub-interface they need.
//
// Thread Safety: implementations must be safe for concurrent use from
// multiple goroutines.
type Store interface {
	UserStore
	ImageStore
	MachineStore
	TargetStore
	SessionStore
	AdminStore
	HealthStore
	UnitOfWork
}
