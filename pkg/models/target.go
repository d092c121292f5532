package models

import "time"

// TargetStatus tracks the lifecycle of a provisioned iSCSI target.
type TargetStatus string

const (
	TargetStatusCreating TargetStatus = "creating"
	TargetStatusActive   TargetStatus = "active"
	TargetStatusInactive TargetStatus = "inactive"
	TargetStatusError    TargetStatus = "error"
	TargetStatusDeleting TargetStatus = "deleting"
)

// Target is a provisioned iSCSI target backing a single Machine's boot disk.
type Target struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	TargetID      string    `gorm:"uniqueIndex;not null;size:128" json:"target_id"` // e.g. "machine_7"
	IQN           string    `gorm:"uniqueIndex;not null;size:255" json:"iqn"`
	MachineID     string    `gorm:"not null;size:36;index" json:"machine_id"`
	ImageID       string    `gorm:"not null;size:36;index" json:"image_id"`
	ImagePath     string    `gorm:"not null" json:"image_path"` // snapshot at creation time
	InitiatorIQN  string    `gorm:"not null;size:255" json:"initiator_iqn"`
	LUN           int       `gorm:"default:0" json:"lun"`
	Status        string    `gorm:"index;not null;size:20" json:"status"`
	Description   string    `json:"description,omitempty"`
	CreatedByID   string    `gorm:"size:36" json:"created_by_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for Target.
func (Target) TableName() string {
	return "targets"
}

// TargetIDFor derives the deterministic external target-id for a machine.
func TargetIDFor(machineID string) string {
	return "machine_" + machineID
}

// IQNFor derives the deterministic IQN for a machine's target, given the
// configured IQN prefix (e.g. "iqn.2025.ggnet").
func IQNFor(iqnPrefix, machineID string) string {
	return iqnPrefix + ":target-" + TargetIDFor(machineID)
}

// InitiatorIQNFor derives the deterministic initiator IQN from a machine's
// MAC address with separators stripped, given the configured IQN prefix.
func InitiatorIQNFor(iqnPrefix, macNoSeparators string) string {
	return iqnPrefix + ":initiator-" + macNoSeparators
}
