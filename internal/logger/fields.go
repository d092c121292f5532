package logger

// Standard field keys for structured logging across the control plane.
// Use these consistently across log statements so entries correlate on the
// same key regardless of which package emitted them.
const (
	// Entities
	KeyMachineID    = "machine_id"
	KeySessionID    = "session_id"
	KeyTargetID     = "target_id"
	KeyImageID      = "image_id"
	KeyDisplayName  = "display_name"
	KeyMAC          = "mac"
	KeyIQN          = "iqn"
	KeyInitiatorIQN = "initiator_iqn"
	KeyIP           = "ip"

	// Outcome / diagnostics
	KeyError    = "error"
	KeyAction   = "action"
	KeyActor    = "actor"
	KeyMessage  = "message"
	KeyFailures = "failures"

	// Filesystem / artifact operations
	KeyPath        = "path"
	KeyFilename    = "filename"
	KeyOutputPath  = "output_path"
	KeyBytes       = "bytes"
	KeyVirtualSize = "virtual_size"
	KeyCount       = "count"

	// HTTP / transport
	KeyRequestID  = "request_id"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyRemoteAddr = "remote_addr"
	KeyPort       = "port"
	KeyDuration   = "duration"

	// Request-scoped LogContext fields (see appendContextFields)
	KeyTraceID   = "trace_id"
	KeySpanID    = "span_id"
	KeyProcedure = "procedure"
	KeyShare     = "share"
	KeyClientIP  = "client_ip"
	KeyUID       = "uid"
	KeyGID       = "gid"

	// Misc
	KeyVersion = "version"
	KeyDirty   = "dirty"
	KeyTool    = "tool"
)
