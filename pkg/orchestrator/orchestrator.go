// Package orchestrator implements the session orchestrator: the single
// component that drives a diskless boot session into existence across the
// iSCSI target adapter, the TFTP artifact manager, and the DHCP reservation
// manager, and tears it back down again. Every operation that touches more
// than one of those collaborators runs under a keyed per-machine lock, the
// same shape as the teacher's Runtime.mu guarding a share's mount/unmount
// transitions in pkg/runtime, generalized here to a lock-per-key instead of
// one lock for the whole process since unrelated machines must not
// serialize against each other.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ggnet/ggnetd/internal/logger"
	"github.com/ggnet/ggnetd/internal/telemetry"
	"github.com/ggnet/ggnetd/pkg/audit"
	"github.com/ggnet/ggnetd/pkg/dhcp"
	"github.com/ggnet/ggnetd/pkg/ggnetrr"
	"github.com/ggnet/ggnetd/pkg/ipxe"
	"github.com/ggnet/ggnetd/pkg/iscsi"
	"github.com/ggnet/ggnetd/pkg/metrics"
	"github.com/ggnet/ggnetd/pkg/models"
	"github.com/ggnet/ggnetd/pkg/store"
	"github.com/ggnet/ggnetd/pkg/tftp"
)

// keyedMutex serializes operations on the same machine ID without
// serializing unrelated machines against each other.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Config configures the orchestrator's control-plane-wide settings.
type Config struct {
	// IQNPrefix namespaces generated target/initiator IQNs, shared with the
	// iSCSI adapter's own Config.IQNPrefix so derived IQNs agree.
	IQNPrefix string

	// PortalIP/PortalPort is the iSCSI portal address rendered into boot
	// scripts.
	PortalIP   string
	PortalPort int

	// IPXE carries the server-wide values the iPXE generator needs.
	IPXE ipxe.ServerConfig

	// WatchdogInterval is how often the reconciler sweeps for stale
	// sessions and drift. Defaults to 60s.
	WatchdogInterval time.Duration

	// ClientActivityTimeout is how long a session may go without a
	// keep-alive touch before the watchdog marks it timed out. Defaults to
	// 5 minutes.
	ClientActivityTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.WatchdogInterval == 0 {
		c.WatchdogInterval = 60 * time.Second
	}
	if c.ClientActivityTimeout == 0 {
		c.ClientActivityTimeout = 5 * time.Minute
	}
}

// Orchestrator owns the session lifecycle. It is safe for concurrent use.
type Orchestrator struct {
	cfg    Config
	db     store.Store
	iscsi  *iscsi.Adapter
	tftp   *tftp.Manager
	dhcp   *dhcp.Manager
	audit  audit.Recorder
	locks  *keyedMutex

	stopWatchdog  chan struct{}
	watchdogDone  chan struct{}
	stopDHCPWatch func() error
}

// New creates an Orchestrator wired to its collaborators. audit may be nil,
// in which case a audit.LoggingRecorder is used.
func New(cfg Config, db store.Store, iscsiAdapter *iscsi.Adapter, tftpMgr *tftp.Manager, dhcpMgr *dhcp.Manager, rec audit.Recorder) *Orchestrator {
	cfg.applyDefaults()
	if rec == nil {
		rec = audit.LoggingRecorder{}
	}
	return &Orchestrator{
		cfg:   cfg,
		db:    db,
		iscsi: iscsiAdapter,
		tftp:  tftpMgr,
		dhcp:  dhcpMgr,
		audit: rec,
		locks: newKeyedMutex(),
	}
}

// StartRequest is the input to Start.
type StartRequest struct {
	MachineID   string
	ImageID     string
	Type        models.SessionType
	Description string
	Actor       string
}

// StartResult is the output of a successful Start.
type StartResult struct {
	Session    *models.Session
	Target     *models.Target
	TargetInfo *iscsi.TargetInfo
	BootScript string
}

// Start provisions a complete diskless boot session for a machine: an iSCSI
// target backed by the image, a TFTP-served iPXE script, and a DHCP
// reservation pointing at it, in that order, with the Session row inserted
// last so "a Session exists" always implies every upstream resource it
// depends on was provisioned successfully. Every step's audit entry is
// emitted only once its step has durably succeeded (§4.G).
func (o *Orchestrator) Start(ctx context.Context, req StartRequest) (*StartResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.Start")
	defer span.End()

	startedAt := time.Now()
	unlock := o.locks.lock(req.MachineID)
	defer unlock()

	machine, err := o.db.GetMachine(ctx, req.MachineID)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, ggnetrr.New(ggnetrr.NotFound, "orchestrator.start", err)
	}
	if !machine.IsActive() {
		return nil, ggnetrr.New(ggnetrr.Validation, "orchestrator.start", fmt.Errorf("machine %s is not active", machine.ID))
	}

	image, err := o.db.GetImage(ctx, req.ImageID)
	if err != nil {
		return nil, ggnetrr.New(ggnetrr.NotFound, "orchestrator.start", err)
	}
	if !image.IsReady() {
		return nil, ggnetrr.New(ggnetrr.Validation, "orchestrator.start", fmt.Errorf("image %s is not ready (status %s)", image.ID, image.Status))
	}

	if _, err := o.db.GetLiveSessionByMachine(ctx, machine.ID); err == nil {
		return nil, ggnetrr.New(ggnetrr.Conflict, "orchestrator.start", fmt.Errorf("machine %s already has a live session", machine.ID))
	} else if err != models.ErrSessionNotFound {
		return nil, ggnetrr.New(ggnetrr.Internal, "orchestrator.start", err)
	}
	if _, err := o.db.GetTargetByMachine(ctx, machine.ID); err == nil {
		return nil, ggnetrr.New(ggnetrr.Conflict, "orchestrator.start", fmt.Errorf("machine %s already has a target", machine.ID))
	} else if err != models.ErrTargetNotFound {
		return nil, ggnetrr.New(ggnetrr.Internal, "orchestrator.start", err)
	}

	targetID := models.TargetIDFor(machine.ID)
	initiatorIQN := models.InitiatorIQNFor(o.cfg.IQNPrefix, machine.MACWithoutSeparators())

	targetInfo, err := o.iscsi.CreateCompleteTarget(ctx, targetID, image.FilePath, initiatorIQN, req.Description)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	target := &models.Target{
		TargetID:     targetID,
		IQN:          targetInfo.IQN,
		MachineID:    machine.ID,
		ImageID:      image.ID,
		ImagePath:    image.FilePath,
		InitiatorIQN: initiatorIQN,
		LUN:          targetInfo.LUN,
		Status:       string(models.TargetStatusActive),
		Description:  req.Description,
		CreatedByID:  req.Actor,
	}
	targetRowID, err := o.db.CreateTarget(ctx, target)
	if err != nil {
		_ = o.iscsi.DeleteTarget(ctx, targetID)
		return nil, ggnetrr.New(ggnetrr.Internal, "orchestrator.start", err)
	}
	target.ID = targetRowID

	o.emit(ctx, audit.ActionTargetCreated, req.Actor, machine.ID, "", target.ID, image.ID, "target provisioned")

	script := ipxe.Generate(machine, target, o.cfg.PortalIP, o.cfg.PortalPort, o.cfg.IPXE)
	scriptName := ipxe.FilenameFor(machine)
	if err := o.tftp.InstallMachineScript(scriptName, []byte(script)); err != nil {
		o.rollbackTarget(ctx, target, targetID)
		return nil, err
	}

	if err := o.dhcp.AddMachine(ctx, dhcp.Reservation{
		MachineID: machine.ID,
		Hostname:  machine.Hostname,
		MAC:       machine.MAC,
		IP:        derefString(machine.IP),
	}); err != nil {
		_ = o.tftp.RemoveMachineScript(scriptName)
		o.rollbackTarget(ctx, target, targetID)
		return nil, err
	}

	session := &models.Session{
		Type:        string(req.Type),
		Status:      string(models.SessionStatusActive),
		MachineID:   machine.ID,
		TargetID:    target.ID,
		ImageID:     image.ID,
		ServerIP:    o.cfg.PortalIP,
		CreatedByID: req.Actor,
	}
	sessionID, err := o.db.CreateSession(ctx, session)
	if err != nil {
		_ = o.dhcp.RemoveMachine(ctx, machine.ID)
		_ = o.tftp.RemoveMachineScript(scriptName)
		o.rollbackTarget(ctx, target, targetID)
		return nil, ggnetrr.New(ggnetrr.Internal, "orchestrator.start", err)
	}
	session.ID = sessionID
	now := time.Now()
	session.StartedAt = &now
	if err := o.db.ActivateSession(ctx, session.SessionID, now); err != nil {
		logger.Error("orchestrator failed to stamp session activation", logger.KeySessionID, session.SessionID, logger.KeyError, err)
	}

	if err := o.db.IncrementBootCount(ctx, machine.ID); err != nil {
		logger.Warn("orchestrator failed to increment boot count", logger.KeyMachineID, machine.ID, logger.KeyError, err)
	}

	o.emit(ctx, audit.ActionSessionStarted, req.Actor, machine.ID, session.SessionID, target.ID, image.ID, "session started")
	metrics.ObserveSessionStarted(session.Type, time.Since(startedAt))

	return &StartResult{Session: session, Target: target, TargetInfo: targetInfo, BootScript: script}, nil
}

// rollbackTarget deletes a just-created Target row and its backing iSCSI
// target, logging (not returning) any secondary failure: a failed rollback
// must not mask the original error that triggered it.
func (o *Orchestrator) rollbackTarget(ctx context.Context, target *models.Target, targetID string) {
	if err := o.db.DeleteTarget(ctx, target.ID); err != nil {
		logger.Error("orchestrator rollback: failed to delete target row", logger.KeyTargetID, target.ID, logger.KeyError, err)
	}
	if err := o.iscsi.DeleteTarget(ctx, targetID); err != nil {
		logger.Error("orchestrator rollback: failed to delete iscsi target", logger.KeyTargetID, targetID, logger.KeyError, err)
	}
}

// Stop tears a session down: delete the iSCSI target, remove the DHCP
// reservation and TFTP script, then mark the session stopped. Unlike Start,
// failures removing the DHCP reservation, the TFTP script or the Target row
// after the iSCSI target is deleted are logged rather than propagated, since
// there is no longer a consistent prior state to roll back to (§4.G, §5);
// they are not written to the audit log or to the Session row. A failure to
// mark the session stopped is returned.
func (o *Orchestrator) Stop(ctx context.Context, sessionID, actor string) error {
	ctx, span := telemetry.StartSpan(ctx, "orchestrator.Stop")
	defer span.End()

	session, err := o.db.GetSession(ctx, sessionID)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return ggnetrr.New(ggnetrr.NotFound, "orchestrator.stop", err)
	}
	// Stop is idempotent (§8): a session already stopped has nothing left
	// to tear down, so a repeat call succeeds as a no-op rather than
	// surfacing Validation. A session in any other status that is not
	// starting or active (error, timeout, stopping) is rejected with
	// Validation and its Target row, if any, is left in place.
	if session.Status == string(models.SessionStatusStopped) {
		return nil
	}
	if session.Status != string(models.SessionStatusActive) && session.Status != string(models.SessionStatusStarting) {
		return ggnetrr.New(ggnetrr.Validation, "orchestrator.stop", fmt.Errorf("session %s is not active (status %s)", sessionID, session.Status))
	}

	unlock := o.locks.lock(session.MachineID)
	defer unlock()

	machine, err := o.db.GetMachine(ctx, session.MachineID)
	if err != nil {
		return ggnetrr.New(ggnetrr.Internal, "orchestrator.stop", err)
	}
	target, err := o.db.GetTarget(ctx, session.TargetID)
	if err != nil {
		return ggnetrr.New(ggnetrr.Internal, "orchestrator.stop", err)
	}

	var softFailures []string

	if err := o.iscsi.DeleteTarget(ctx, target.TargetID); err != nil {
		telemetry.RecordError(ctx, err)
		return ggnetrr.New(ggnetrr.ExternalToolFailure, "orchestrator.stop", err)
	}
	o.emit(ctx, audit.ActionTargetDeleted, actor, machine.ID, sessionID, target.ID, session.ImageID, "target deleted")

	if err := o.dhcp.RemoveMachine(ctx, machine.ID); err != nil {
		logger.Error("orchestrator stop: dhcp reservation removal failed", logger.KeyMachineID, machine.ID, logger.KeyError, err)
		softFailures = append(softFailures, fmt.Sprintf("dhcp: %v", err))
	}

	scriptName := ipxe.FilenameFor(machine)
	if err := o.tftp.RemoveMachineScript(scriptName); err != nil {
		logger.Error("orchestrator stop: tftp script removal failed", logger.KeyMachineID, machine.ID, logger.KeyError, err)
		softFailures = append(softFailures, fmt.Sprintf("tftp: %v", err))
	}

	now := time.Now()
	if err := o.db.StopSession(ctx, sessionID, now); err != nil {
		return ggnetrr.New(ggnetrr.Internal, "orchestrator.stop", err)
	}

	if err := o.db.DeleteTarget(ctx, target.ID); err != nil {
		logger.Error("orchestrator stop: failed to delete target row", logger.KeyTargetID, target.ID, logger.KeyError, err)
		softFailures = append(softFailures, fmt.Sprintf("target row: %v", err))
	}

	if len(softFailures) > 0 {
		logger.Warn("session stopped with non-fatal cleanup failures", logger.KeySessionID, sessionID, logger.KeyFailures, softFailures)
	}

	o.emit(ctx, audit.ActionSessionStopped, actor, machine.ID, sessionID, target.ID, session.ImageID, "session stopped")
	metrics.ObserveSessionStopped(string(models.SessionStatusStopped))
	return nil
}

// ServeBootScript regenerates the iPXE script for a machine's active
// session, without mutating any state: boot firmware may re-fetch the same
// path repeatedly and must see identical bytes every time (§8).
func (o *Orchestrator) ServeBootScript(ctx context.Context, machineID string) (string, error) {
	machine, err := o.db.GetMachine(ctx, machineID)
	if err != nil {
		return "", ggnetrr.New(ggnetrr.NotFound, "orchestrator.serve_boot_script", err)
	}
	session, err := o.db.GetLiveSessionByMachine(ctx, machineID)
	if err != nil {
		return "", ggnetrr.New(ggnetrr.NotFound, "orchestrator.serve_boot_script", fmt.Errorf("machine %s has no active session", machineID))
	}
	target, err := o.db.GetTarget(ctx, session.TargetID)
	if err != nil {
		return "", ggnetrr.New(ggnetrr.Internal, "orchestrator.serve_boot_script", err)
	}
	return ipxe.Generate(machine, target, o.cfg.PortalIP, o.cfg.PortalPort, o.cfg.IPXE), nil
}

// Get returns a session by its opaque session ID.
func (o *Orchestrator) Get(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := o.db.GetSession(ctx, sessionID)
	if err != nil {
		return nil, ggnetrr.New(ggnetrr.NotFound, "orchestrator.get", err)
	}
	return session, nil
}

// List returns sessions, optionally filtered by status.
func (o *Orchestrator) List(ctx context.Context, status string) ([]*models.Session, error) {
	return o.db.ListSessions(ctx, status)
}

// Stats summarizes the current session population by status.
type Stats struct {
	Total    int
	Starting int
	Active   int
	Stopping int
	Stopped  int
	Error    int
	Timeout  int
}

// Stats computes a point-in-time count of sessions by status.
func (o *Orchestrator) Stats(ctx context.Context) (*Stats, error) {
	sessions, err := o.db.ListSessions(ctx, "")
	if err != nil {
		return nil, ggnetrr.New(ggnetrr.Internal, "orchestrator.stats", err)
	}
	stats := &Stats{Total: len(sessions)}
	for _, s := range sessions {
		switch models.SessionStatus(s.Status) {
		case models.SessionStatusStarting:
			stats.Starting++
		case models.SessionStatusActive:
			stats.Active++
		case models.SessionStatusStopping:
			stats.Stopping++
		case models.SessionStatusStopped:
			stats.Stopped++
		case models.SessionStatusError:
			stats.Error++
		case models.SessionStatusTimeout:
			stats.Timeout++
		}
	}
	return stats, nil
}

func (o *Orchestrator) emit(ctx context.Context, action audit.Action, actor, machineID, sessionID, targetID, imageID, message string) {
	o.audit.Record(ctx, audit.Entry{
		Action:    action,
		Actor:     actor,
		MachineID: machineID,
		SessionID: sessionID,
		TargetID:  targetID,
		ImageID:   imageID,
		Message:   message,
		At:        time.Now(),
	})
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
