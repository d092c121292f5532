// Package iscsi wraps the host's LIO/targetcli iSCSI target configuration as
// a set of direct subprocess calls, one per sub-command (backstore, target,
// LUN, ACL, portal, save-config), instead of the original implementation's
// single shelled script file (see original_source/backend/app/adapters/targetcli.py).
// This lets a failing step's stderr attach to that step alone rather than to
// a bundled script failure, and keeps shell-argument safety by never
// interpolating untrusted strings into a shell invocation: every call goes
// through exec.CommandContext with an argv list.
package iscsi

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/ggnet/ggnetd/internal/logger"
	"github.com/ggnet/ggnetd/pkg/ggnetrr"
	"github.com/ggnet/ggnetd/pkg/metrics"
)

// DefaultSubcommandTimeout is the per sub-command deadline (§4.C).
const DefaultSubcommandTimeout = 30 * time.Second

// Config configures the adapter's target namespace and portal.
type Config struct {
	// IQNPrefix namespaces generated target/initiator IQNs, e.g. "iqn.2025.ggnet".
	IQNPrefix string

	// PortalIP/PortalPort is the address the target listens on.
	PortalIP   string
	PortalPort int

	// Timeout bounds every sub-command invocation. Defaults to
	// DefaultSubcommandTimeout when zero.
	Timeout time.Duration

	// TargetCLIPath is the path to the host's target management binary.
	// Defaults to "targetcli" (resolved via PATH).
	TargetCLIPath string
}

func (c *Config) applyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = DefaultSubcommandTimeout
	}
	if c.TargetCLIPath == "" {
		c.TargetCLIPath = "targetcli"
	}
	if c.PortalPort == 0 {
		c.PortalPort = 3260
	}
}

// TargetInfo describes a provisioned iSCSI target.
type TargetInfo struct {
	IQN          string
	TargetID     string
	InitiatorIQN string
	PortalIP     string
	PortalPort   int
	Backstore    string
	LUN          int
	CreatedAt    time.Time
}

// Status describes the live state of a target as parsed from the CLI's
// listing output.
type Status struct {
	IQN     string
	LUNs    []string
	ACLs    []string
	Portals []string
	Active  bool
}

// runner abstracts subprocess execution so tests can substitute a fake
// without touching a real host's kernel target configuration.
type runner interface {
	run(ctx context.Context, args ...string) (stdout, stderr string, err error)
}

type execRunner struct {
	path string
}

func (r *execRunner) run(ctx context.Context, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, r.path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Adapter drives the host's iSCSI target daemon. The underlying CLI tool is
// not concurrency-safe, so every call is serialized through a process-wide
// mutex (§5).
type Adapter struct {
	cfg Config
	mu  sync.Mutex
	run runner
}

// New creates an Adapter bound to the host's target CLI.
func New(cfg Config) *Adapter {
	cfg.applyDefaults()
	return &Adapter{cfg: cfg, run: &execRunner{path: cfg.TargetCLIPath}}
}

// backstoreName derives the deterministic fileio backstore name.
func backstoreName(targetID string) string {
	return "img_" + targetID
}

func (a *Adapter) iqn(targetID string) string {
	return fmt.Sprintf("%s:target-%s", a.cfg.IQNPrefix, targetID)
}

func (a *Adapter) exec(ctx context.Context, op string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	startedAt := time.Now()
	stdout, stderr, err := a.run.run(ctx, args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			wrapped := ggnetrr.WithStderr(ggnetrr.Timeout, op, fmt.Errorf("%s timed out after %s", op, a.cfg.Timeout), stderr)
			metrics.ObserveExternalTool("targetcli", time.Since(startedAt), wrapped)
			return stdout, wrapped
		}
		wrapped := ggnetrr.WithStderr(ggnetrr.ExternalToolFailure, op, err, stderr)
		metrics.ObserveExternalTool("targetcli", time.Since(startedAt), wrapped)
		return stdout, wrapped
	}
	metrics.ObserveExternalTool("targetcli", time.Since(startedAt), nil)
	return stdout, nil
}

// CreateCompleteTarget performs the full backstore -> target -> LUN -> ACL ->
// portal -> save-config sequence (§4.C). On any step's failure, it runs a
// best-effort reverse cleanup of whatever was already created before
// surfacing the error.
func (a *Adapter) CreateCompleteTarget(ctx context.Context, targetID, imagePath, initiatorIQN, description string) (*TargetInfo, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	backstore := backstoreName(targetID)
	iqn := a.iqn(targetID)

	created := struct {
		backstore, target, lun, acl, portal bool
	}{}

	rollback := func() {
		if created.portal {
			_, _ = a.exec(ctx, "iscsi.delete_portal", "/iscsi/"+iqn+"/tpg1/portals", "delete", a.cfg.PortalIP, fmt.Sprintf("%d", a.cfg.PortalPort))
		}
		if created.acl {
			_, _ = a.exec(ctx, "iscsi.delete_acl", "/iscsi/"+iqn+"/tpg1/acls", "delete", initiatorIQN)
		}
		if created.lun {
			_, _ = a.exec(ctx, "iscsi.delete_lun", "/iscsi/"+iqn+"/tpg1/luns", "delete", "lun0")
		}
		if created.target {
			_, _ = a.exec(ctx, "iscsi.delete_target", "/iscsi", "delete", iqn)
		}
		if created.backstore {
			_, _ = a.exec(ctx, "iscsi.delete_backstore", "/backstores/fileio", "delete", backstore)
		}
	}

	if _, err := a.exec(ctx, "iscsi.create_backstore", "/backstores/fileio", "create", backstore, imagePath); err != nil {
		return nil, err
	}
	created.backstore = true

	if _, err := a.exec(ctx, "iscsi.create_target", "/iscsi", "create", iqn); err != nil {
		rollback()
		return nil, err
	}
	created.target = true

	if _, err := a.exec(ctx, "iscsi.create_lun", "/iscsi/"+iqn+"/tpg1/luns", "create", "/backstores/fileio/"+backstore); err != nil {
		rollback()
		return nil, err
	}
	created.lun = true

	if _, err := a.exec(ctx, "iscsi.create_acl", "/iscsi/"+iqn+"/tpg1/acls", "create", initiatorIQN); err != nil {
		rollback()
		return nil, err
	}
	created.acl = true

	if _, err := a.exec(ctx, "iscsi.create_portal", "/iscsi/"+iqn+"/tpg1/portals", "create", a.cfg.PortalIP, fmt.Sprintf("%d", a.cfg.PortalPort)); err != nil {
		rollback()
		return nil, err
	}
	created.portal = true

	if err := a.saveConfigLocked(ctx); err != nil {
		rollback()
		return nil, err
	}

	logger.Info("iscsi target created", logger.KeyTargetID, targetID, logger.KeyIQN, iqn, logger.KeyInitiatorIQN, initiatorIQN)

	return &TargetInfo{
		IQN:          iqn,
		TargetID:     targetID,
		InitiatorIQN: initiatorIQN,
		PortalIP:     a.cfg.PortalIP,
		PortalPort:   a.cfg.PortalPort,
		Backstore:    backstore,
		LUN:          0,
		CreatedAt:    time.Now(),
	}, nil
}

// DeleteTarget reverses CreateCompleteTarget in descending order. Every
// sub-step tolerates "not found" from the CLI so the function is idempotent.
func (a *Adapter) DeleteTarget(ctx context.Context, targetID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	backstore := backstoreName(targetID)
	iqn := a.iqn(targetID)

	tolerateMissing := func(op string, args ...string) error {
		_, err := a.exec(ctx, op, args...)
		if err == nil {
			return nil
		}
		if ggnetrr.KindOf(err) == ggnetrr.ExternalToolFailure {
			// targetcli's delete subcommands print "No such ..." and exit
			// non-zero for an already-absent object; treat any failure of
			// a delete step as tolerable so repeated stop() calls succeed.
			return nil
		}
		return err
	}

	if err := tolerateMissing("iscsi.delete_portal", "/iscsi/"+iqn+"/tpg1/portals", "delete", a.cfg.PortalIP, fmt.Sprintf("%d", a.cfg.PortalPort)); err != nil {
		return err
	}
	if err := tolerateMissing("iscsi.delete_acl", "/iscsi/"+iqn+"/tpg1/acls", "delete_all"); err != nil {
		return err
	}
	if err := tolerateMissing("iscsi.delete_lun", "/iscsi/"+iqn+"/tpg1/luns", "delete", "lun0"); err != nil {
		return err
	}
	if err := tolerateMissing("iscsi.delete_target", "/iscsi", "delete", iqn); err != nil {
		return err
	}
	if err := tolerateMissing("iscsi.delete_backstore", "/backstores/fileio", "delete", backstore); err != nil {
		return err
	}

	if err := a.saveConfigLocked(ctx); err != nil {
		return err
	}

	logger.Info("iscsi target deleted", logger.KeyTargetID, targetID, logger.KeyIQN, iqn)
	return nil
}

// SaveConfig persists the running configuration to disk.
func (a *Adapter) SaveConfig(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.saveConfigLocked(ctx)
}

func (a *Adapter) saveConfigLocked(ctx context.Context) error {
	_, err := a.exec(ctx, "iscsi.save_config", "saveconfig")
	return err
}

// ListTargets parses the CLI's listing into one TargetInfo-shaped Status per
// configured target.
func (a *Adapter) ListTargets(ctx context.Context) ([]Status, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	stdout, err := a.exec(ctx, "iscsi.list", "/iscsi", "ls")
	if err != nil {
		return nil, err
	}
	return parseListing(stdout), nil
}

// GetTargetStatus returns the live status for a single target, by IQN.
func (a *Adapter) GetTargetStatus(ctx context.Context, targetID string) (*Status, error) {
	statuses, err := a.ListTargets(ctx)
	if err != nil {
		return nil, err
	}
	iqn := a.iqn(targetID)
	for i := range statuses {
		if statuses[i].IQN == iqn {
			return &statuses[i], nil
		}
	}
	return nil, ggnetrr.New(ggnetrr.NotFound, "iscsi.get_target_status", fmt.Errorf("target %s not found in live listing", targetID))
}
