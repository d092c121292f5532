package models

import (
	"regexp"
	"strings"
	"time"
)

// macPattern matches canonical lower-hex, colon-separated MAC addresses.
var macPattern = regexp.MustCompile(`^[0-9a-f]{2}(:[0-9a-f]{2}){5}$`)

// bareHexPattern matches a MAC's 12 hex digits with separators stripped.
var bareHexPattern = regexp.MustCompile(`^[0-9a-fA-F]{12}$`)

// IsCanonicalMAC reports whether mac is in canonical lower-hex colon form.
func IsCanonicalMAC(mac string) bool {
	return macPattern.MatchString(mac)
}

// CanonicalizeMAC accepts a MAC address in any mix of upper/lower case and
// colon or hyphen separators and returns its canonical lower-hex
// colon-separated form, e.g. "AA-bb-CC-dd-EE-ff" -> "aa:bb:cc:dd:ee:ff". It
// returns false if mac, once separators are stripped, is not exactly 12
// hex digits (e.g. "00:11:22:33:44" is rejected for being short).
func CanonicalizeMAC(mac string) (string, bool) {
	bare := strings.NewReplacer(":", "", "-", "").Replace(mac)
	if !bareHexPattern.MatchString(bare) {
		return "", false
	}
	bare = strings.ToLower(bare)
	var b strings.Builder
	for i := 0; i < len(bare); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(bare[i : i+2])
	}
	return b.String(), true
}

// BootMode identifies the firmware boot path a Machine uses.
type BootMode string

const (
	BootModeLegacy      BootMode = "legacy"
	BootModeUEFI        BootMode = "uefi"
	BootModeUEFISecure  BootMode = "uefi-secure"
)

// MachineStatus tracks the administrative state of a diskless client.
type MachineStatus string

const (
	MachineStatusActive      MachineStatus = "active"
	MachineStatusInactive    MachineStatus = "inactive"
	MachineStatusMaintenance MachineStatus = "maintenance"
	MachineStatusRetired     MachineStatus = "retired"
)

// HardwareReport captures the subset of an out-of-band hardware inventory
// submission worth retaining for operator visibility. It is carried inside
// Machine.Metadata rather than as dedicated columns, since the report
// shape is open-ended and the schema should not grow with every client
// that reports a new field.
type HardwareReport struct {
	CPUInfo  string `json:"cpu_info,omitempty"`
	RAMMB    int64  `json:"ram_mb,omitempty"`
	DiskInfo string `json:"disk_info,omitempty"`
}

// Machine is a diskless client registered with the control plane.
type Machine struct {
	ID          string     `gorm:"primaryKey;size:36" json:"id"`
	DisplayName string     `gorm:"uniqueIndex;not null;size:255" json:"display_name"`
	Description string     `json:"description,omitempty"`
	MAC         string     `gorm:"uniqueIndex;not null;size:17" json:"mac"`
	IP          *string    `gorm:"size:15" json:"ip,omitempty"`
	Hostname    string     `gorm:"size:255" json:"hostname,omitempty"`
	BootMode    string     `gorm:"not null;size:20" json:"boot_mode"`
	SecureBoot  bool       `gorm:"default:false" json:"secure_boot"`
	Status      string     `gorm:"index;not null;size:20" json:"status"`
	Online      bool       `gorm:"index;default:false" json:"online"`
	LastSeen    *time.Time `gorm:"index" json:"last_seen,omitempty"`
	Location    string     `gorm:"size:255" json:"location,omitempty"`
	BootCount   int64      `gorm:"default:0" json:"boot_count"`

	// Metadata holds free-form per-machine overrides and the last
	// HardwareReport received, serialized as a JSON object by the store.
	Metadata map[string]any `gorm:"-" json:"metadata,omitempty"`
	MetadataJSON string    `gorm:"column:metadata_json;type:text" json:"-"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Machine.
func (Machine) TableName() string {
	return "machines"
}

// IsActive reports whether the machine may be the target of a session start.
func (m *Machine) IsActive() bool {
	return m.Status == string(MachineStatusActive)
}

// MACWithoutSeparators returns the MAC address with colons stripped, used to
// derive deterministic initiator IQNs (TFTP filenames use MACWithDashes).
func (m *Machine) MACWithoutSeparators() string {
	out := make([]byte, 0, 12)
	for i := 0; i < len(m.MAC); i++ {
		if m.MAC[i] != ':' {
			out = append(out, m.MAC[i])
		}
	}
	return string(out)
}

// MACWithDashes returns the MAC address with colons replaced by dashes, the
// canonical form used for per-machine TFTP script filenames.
func (m *Machine) MACWithDashes() string {
	out := []byte(m.MAC)
	for i, b := range out {
		if b == ':' {
			out[i] = '-'
		}
	}
	return string(out)
}
