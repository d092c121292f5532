// Package ipxe generates per-machine iPXE boot scripts that sanboot the
// iSCSI LUN provisioned for a Machine's active Target. Generation is a pure,
// side-effect-free function of (Machine, Target, portal address, ServerConfig);
// this lets both the session orchestrator (at session start) and the
// boot-time re-fetch endpoint (serve_boot_script) share one deterministic
// code path, grounded on original_source/backend/app/adapters/ipxe.py's
// template, translated here to a plain string builder rather than a
// template engine since deterministic line ordering matters more than
// templating flexibility (§4.D).
package ipxe

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ggnet/ggnetd/pkg/models"
)

// Signature is the mandatory first line of every generated script.
const Signature = "#!ipxe"

// ServerConfig carries the control-plane-wide values needed to render a
// script: the TFTP next-server address used for the post-sanboot fallback
// chain, and the delay before a final reboot on total failure.
type ServerConfig struct {
	// NextServerIP is the TFTP server address for the fallback chainload.
	NextServerIP string

	// RebootDelaySeconds is how long to wait before rebooting after every
	// fallback has failed. Defaults to 10 if zero.
	RebootDelaySeconds int
}

func (c ServerConfig) rebootDelay() int {
	if c.RebootDelaySeconds <= 0 {
		return 10
	}
	return c.RebootDelaySeconds
}

// Generate renders the deterministic iPXE script for a machine's active
// boot target. Byte-identical output is guaranteed for identical inputs
// (§8 round-trip property). portalIP/portalPort come from the live
// TargetInfo the iSCSI adapter returned at provisioning time; Target does
// not persist its own portal column since the portal is a control-plane-
// wide setting, not a per-target attribute.
func Generate(machine *models.Machine, target *models.Target, portalIP string, portalPort int, cfg ServerConfig) string {
	var b strings.Builder

	b.WriteString(Signature)
	b.WriteString("\n")
	fmt.Fprintf(&b, "# ggnetd diskless boot chain for %s (%s)\n", machine.DisplayName, machine.MAC)
	b.WriteString("\n")

	b.WriteString("dhcp net0 || goto boot_failed\n")
	b.WriteString("\n")

	fmt.Fprintf(&b, "set initiator-iqn %s\n", target.InitiatorIQN)
	fmt.Fprintf(&b, "set target-iqn %s\n", target.IQN)
	fmt.Fprintf(&b, "set portal-ip %s\n", portalIP)
	b.WriteString("\n")

	fmt.Fprintf(&b, "echo Booting %s from iSCSI target %s\n", machine.DisplayName, target.IQN)
	fmt.Fprintf(&b, "sanboot iscsi:%s::%d:%s || goto sanboot_failed\n", portalIP, target.LUN, target.IQN)
	b.WriteString("\n")

	b.WriteString(":sanboot_failed\n")
	b.WriteString("echo Sanboot failed, falling back to TFTP chain\n")
	if cfg.NextServerIP != "" {
		fmt.Fprintf(&b, "chain tftp://%s/boot/boot.ipxe || goto boot_failed\n", cfg.NextServerIP)
	} else {
		b.WriteString("chain boot.ipxe || goto boot_failed\n")
	}
	b.WriteString("goto done\n")
	b.WriteString("\n")

	b.WriteString(":boot_failed\n")
	b.WriteString("echo Boot failed, rebooting\n")
	fmt.Fprintf(&b, "sleep %d\n", cfg.rebootDelay())
	b.WriteString("reboot\n")
	b.WriteString("\n")

	b.WriteString(":done\n")

	_ = portalPort // reserved: only needed if a non-default iSCSI port must appear in the sanboot URI form.

	return b.String()
}

// FilenameFor returns the canonical per-machine TFTP path. The canonical
// encoding is hyphens: original_source has two call sites that disagreed
// between hyphen- and colon-stripped MAC encodings for this path; this
// implementation picks hyphens as the one form used everywhere.
func FilenameFor(machine *models.Machine) string {
	return "machines/" + strings.ToLower(machine.MACWithDashes()) + ".ipxe"
}

var sanbootLine = regexp.MustCompile(`(?m)^sanboot iscsi:`)

// ValidateSyntax checks that text looks like a well-formed iPXE program:
// it must begin with the signature line and contain a sanboot invocation.
func ValidateSyntax(text string) error {
	if !strings.HasPrefix(text, Signature) {
		return fmt.Errorf("ipxe script missing signature line %q", Signature)
	}
	if !sanbootLine.MatchString(text) {
		return fmt.Errorf("ipxe script missing a sanboot iscsi: line")
	}
	return nil
}
