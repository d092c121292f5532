package iscsi

import (
	"bufio"
	"strings"
)

// parseListing parses targetcli's tree-style `ls` output under /iscsi into
// one Status per target IQN encountered. targetcli's real output nests
// LUNs/ACLs/portals as indented children of the target line; this parser
// only needs the IQN of each o- line directly under /iscsi and the raw
// indented children beneath it, since the orchestrator's watchdog only
// checks presence, not full object counts.
func parseListing(raw string) []Status {
	var statuses []Status
	var current *Status

	scanner := bufio.NewScanner(strings.NewReader(raw))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		indent := len(line) - len(strings.TrimLeft(line, " |"))

		if strings.Contains(trimmed, "iqn.") && indent <= 2 {
			iqn := extractIQN(trimmed)
			if iqn == "" {
				continue
			}
			statuses = append(statuses, Status{IQN: iqn, Active: true})
			current = &statuses[len(statuses)-1]
			continue
		}

		if current == nil {
			continue
		}

		switch {
		case strings.Contains(trimmed, "lun"):
			current.LUNs = append(current.LUNs, trimmed)
		case strings.Contains(trimmed, "acls") || strings.Contains(trimmed, "iqn.") && indent > 2:
			current.ACLs = append(current.ACLs, trimmed)
		case strings.Contains(trimmed, "portals") || strings.Contains(trimmed, ":"):
			current.Portals = append(current.Portals, trimmed)
		}
	}

	return statuses
}

// extractIQN pulls the first "iqn...." token out of a targetcli tree line.
func extractIQN(line string) string {
	fields := strings.Fields(line)
	for _, f := range fields {
		if strings.HasPrefix(f, "iqn.") {
			return strings.TrimRight(f, ".")
		}
	}
	return ""
}
