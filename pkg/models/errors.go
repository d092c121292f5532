package models

import "errors"

// Sentinel errors for the control plane's persistence and orchestration
// layers. Callers use errors.Is against these; the orchestrator wraps them
// with a Kind (see pkg/ggnetrr) for caller-visible status classification.
var (
	// User errors
	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("user already exists")
	ErrUserDisabled  = errors.New("user account is disabled")

	// Image errors
	ErrImageNotFound  = errors.New("image not found")
	ErrDuplicateImage = errors.New("image with this name already exists")
	ErrImageInvalidType = errors.New("unrecognized image format")
	ErrImageQuota     = errors.New("upload exceeds configured quota")
	ErrImageInUse     = errors.New("image is referenced by an active target")
	ErrImageNotReady  = errors.New("image is not in ready status")

	// Machine errors
	ErrMachineNotFound   = errors.New("machine not found")
	ErrDuplicateMachine  = errors.New("machine already exists")
	ErrMachineInvalidMAC = errors.New("MAC address is not in canonical form")
	ErrMachineNotActive  = errors.New("machine is not active")
	ErrMachineInvalidIP  = errors.New("IP address is not a valid IPv4 address")

	// Target errors
	ErrTargetNotFound  = errors.New("target not found")
	ErrDuplicateTarget = errors.New("target already exists for this machine")

	// Session errors
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionConflict  = errors.New("machine already has an active or starting session")
	ErrSessionNotActive = errors.New("session is not active")
)
