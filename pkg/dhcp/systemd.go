package dhcp

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/ggnet/ggnetd/pkg/metrics"
)

// ReloadViaSystemd restarts the DHCP daemon's systemd unit over D-Bus
// instead of shelling a reload command, grounded on the StartUnit/D-Bus
// connection pattern used for systemd-nspawn unit management in the
// reference systemd integration example.
type ReloadViaSystemd struct {
	// UnitName is the systemd unit to restart, e.g. "isc-dhcp-server.service".
	UnitName string
}

// Reload connects to the system bus, restarts the unit, and waits for the
// job to finish.
func (r ReloadViaSystemd) Reload(ctx context.Context) error {
	startedAt := time.Now()

	conn, err := dbus.NewSystemConnectionContext(ctx)
	if err != nil {
		wrapped := fmt.Errorf("connect to systemd over dbus: %w", err)
		metrics.ObserveExternalTool("dhcp_reload", time.Since(startedAt), wrapped)
		return wrapped
	}
	defer conn.Close()

	ch := make(chan string, 1)
	if _, err := conn.RestartUnitContext(ctx, r.UnitName, "replace", ch); err != nil {
		wrapped := fmt.Errorf("restart unit %s: %w", r.UnitName, err)
		metrics.ObserveExternalTool("dhcp_reload", time.Since(startedAt), wrapped)
		return wrapped
	}

	select {
	case result := <-ch:
		if result != "done" {
			wrapped := fmt.Errorf("restart unit %s: job result %q", r.UnitName, result)
			metrics.ObserveExternalTool("dhcp_reload", time.Since(startedAt), wrapped)
			return wrapped
		}
		metrics.ObserveExternalTool("dhcp_reload", time.Since(startedAt), nil)
		return nil
	case <-ctx.Done():
		wrapped := fmt.Errorf("restart unit %s: %w", r.UnitName, ctx.Err())
		metrics.ObserveExternalTool("dhcp_reload", time.Since(startedAt), wrapped)
		return wrapped
	}
}
