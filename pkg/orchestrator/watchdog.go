package orchestrator

import (
	"context"
	"strings"
	"time"

	"github.com/ggnet/ggnetd/internal/logger"
	"github.com/ggnet/ggnetd/pkg/audit"
	"github.com/ggnet/ggnetd/pkg/dhcp"
	"github.com/ggnet/ggnetd/pkg/ipxe"
	"github.com/ggnet/ggnetd/pkg/metrics"
	"github.com/ggnet/ggnetd/pkg/models"
)

// StartWatchdog launches the periodic reconciler goroutine described in
// spec §5: every WatchdogInterval it compares declared Sessions against the
// Target CLI's live listing and the TFTP/DHCP artifacts, logging drift and
// healing the cases that are safe to heal unattended (an orphaned iSCSI
// target with no backing Session, a missing TFTP script for a live
// Session). It also marks Sessions whose LastActivity has exceeded
// ClientActivityTimeout as failed via FailSession (status=error with the
// message "client activity timeout"). Calling StartWatchdog twice on
// the same Orchestrator is a programmer error; callers own lifecycle
// sequencing via Stop.
func (o *Orchestrator) StartWatchdog(ctx context.Context) {
	o.stopWatchdog = make(chan struct{})
	o.watchdogDone = make(chan struct{})

	if o.dhcp != nil {
		stop, err := dhcp.WatchDrift(o.dhcp.ConfigPath(), func() {
			logger.Warn("watchdog: dhcp config changed outside ggnetd", logger.KeyPath, o.dhcp.ConfigPath())
			o.emit(ctx, audit.ActionConfigDrift, "watchdog", "", "", "", "", "dhcp config file modified externally")
			o.reconcile(ctx)
		})
		if err != nil {
			logger.Error("watchdog: failed to start dhcp config watch", logger.KeyError, err)
		} else {
			o.stopDHCPWatch = stop
		}
	}

	go func() {
		defer close(o.watchdogDone)
		ticker := time.NewTicker(o.cfg.WatchdogInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-o.stopWatchdog:
				return
			case <-ticker.C:
				o.reconcile(ctx)
			}
		}
	}()
}

// StopWatchdog signals the reconciler goroutine to exit and waits for it to
// finish. It is a no-op if StartWatchdog was never called.
func (o *Orchestrator) StopWatchdog() {
	if o.stopWatchdog == nil {
		return
	}
	close(o.stopWatchdog)
	<-o.watchdogDone

	if o.stopDHCPWatch != nil {
		if err := o.stopDHCPWatch(); err != nil {
			logger.Error("watchdog: failed to stop dhcp config watch", logger.KeyError, err)
		}
		o.stopDHCPWatch = nil
	}
}

// reconcile runs one sweep: timeout stale sessions, then diff live targets
// against the iSCSI CLI's listing and the TFTP root, healing what it can.
// Every healing action is logged and emitted as a DriftHealed audit entry;
// a reconciler that silently fixes things defeats its own purpose as a
// early-warning signal for operators.
func (o *Orchestrator) reconcile(ctx context.Context) {
	o.timeoutStaleSessions(ctx)
	o.healOrphanTargets(ctx)
	o.healMissingArtifacts(ctx)
}

// timeoutStaleSessions marks Sessions with status in {starting, active}
// whose LastActivity has exceeded ClientActivityTimeout as failed through
// FailSession, which sets status=error with the message "client activity
// timeout"; the status=timeout value is not set here. It does not tear down
// external resources: the session's Target, DHCP reservation and TFTP script
// remain, and Stop rejects a session that is no longer starting or active.
func (o *Orchestrator) timeoutStaleSessions(ctx context.Context) {
	cutoff := time.Now().Add(-o.cfg.ClientActivityTimeout)
	stale, err := o.db.ListStaleSessions(ctx, cutoff)
	if err != nil {
		logger.Error("watchdog: failed to list stale sessions", logger.KeyError, err)
		return
	}
	for _, s := range stale {
		if err := o.db.FailSession(ctx, s.SessionID, "client activity timeout"); err != nil {
			logger.Error("watchdog: failed to timeout session", logger.KeySessionID, s.SessionID, logger.KeyError, err)
			continue
		}
		logger.Warn("watchdog: session timed out", logger.KeySessionID, s.SessionID, logger.KeyMachineID, s.MachineID)
		o.emit(ctx, audit.ActionSessionFailed, "watchdog", s.MachineID, s.SessionID, s.TargetID, s.ImageID, "client activity timeout")
		metrics.ObserveSessionStopped(string(models.SessionStatusTimeout))
	}
}

// healOrphanTargets deletes iSCSI targets the CLI reports that have no
// corresponding active Target row, a drift pattern that arises when a
// crash interrupts Start or Stop between the CLI call and the row write.
func (o *Orchestrator) healOrphanTargets(ctx context.Context) {
	live, err := o.db.ListTargets(ctx)
	if err != nil {
		logger.Error("watchdog: failed to list target rows", logger.KeyError, err)
		return
	}
	known := make(map[string]bool, len(live))
	for _, t := range live {
		known[t.IQN] = true
	}

	cliTargets, err := o.iscsi.ListTargets(ctx)
	if err != nil {
		logger.Error("watchdog: failed to list iscsi targets", logger.KeyError, err)
		return
	}
	for _, ct := range cliTargets {
		if known[ct.IQN] {
			continue
		}
		targetID := targetIDFromIQN(ct.IQN)
		if targetID == "" {
			continue
		}
		logger.Warn("watchdog: deleting orphaned iscsi target", logger.KeyIQN, ct.IQN)
		if err := o.iscsi.DeleteTarget(ctx, targetID); err != nil {
			logger.Error("watchdog: failed to delete orphaned target", logger.KeyIQN, ct.IQN, logger.KeyError, err)
			continue
		}
		o.emit(ctx, audit.ActionDriftHealed, "watchdog", "", "", "", "", "deleted orphaned iscsi target "+ct.IQN)
	}
}

// healMissingArtifacts reinstalls the TFTP script for any Target whose
// Machine has a live Session but whose per-MAC script is absent from the
// TFTP root, e.g. after an operator manually cleared the TFTP directory.
func (o *Orchestrator) healMissingArtifacts(ctx context.Context) {
	sessions, err := o.db.ListSessions(ctx, string(models.SessionStatusActive))
	if err != nil {
		logger.Error("watchdog: failed to list active sessions", logger.KeyError, err)
		return
	}
	installed, err := o.tftp.ListMachineScripts()
	if err != nil {
		logger.Error("watchdog: failed to list tftp scripts", logger.KeyError, err)
		return
	}
	present := make(map[string]bool, len(installed))
	for _, f := range installed {
		present[f.RelPath] = true
	}

	for _, s := range sessions {
		machine, err := o.db.GetMachine(ctx, s.MachineID)
		if err != nil {
			logger.Error("watchdog: failed to load machine for drift check", logger.KeyMachineID, s.MachineID, logger.KeyError, err)
			continue
		}
		scriptName := ipxe.FilenameFor(machine)
		if present[scriptName] {
			continue
		}
		target, err := o.db.GetTarget(ctx, s.TargetID)
		if err != nil {
			logger.Error("watchdog: failed to load target for drift check", logger.KeyTargetID, s.TargetID, logger.KeyError, err)
			continue
		}
		script := ipxe.Generate(machine, target, o.cfg.PortalIP, o.cfg.PortalPort, o.cfg.IPXE)
		logger.Warn("watchdog: reinstalling missing tftp script", logger.KeyMachineID, machine.ID, logger.KeyFilename, scriptName)
		if err := o.tftp.InstallMachineScript(scriptName, []byte(script)); err != nil {
			logger.Error("watchdog: failed to reinstall tftp script", logger.KeyMachineID, machine.ID, logger.KeyError, err)
			continue
		}
		o.emit(ctx, audit.ActionDriftHealed, "watchdog", machine.ID, s.SessionID, target.ID, s.ImageID, "reinstalled missing tftp script")
	}
}

// targetIDFromIQN extracts the target-id suffix from an IQN formatted as
// "<prefix>:target-<target_id>", returning "" if the IQN doesn't match that
// shape (e.g. it belongs to a different namespace entirely).
func targetIDFromIQN(iqn string) string {
	const marker = ":target-"
	idx := strings.LastIndex(iqn, marker)
	if idx < 0 {
		return ""
	}
	return iqn[idx+len(marker):]
}
