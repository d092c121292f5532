package store

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/ggnet/ggnetd/pkg/models"
)

// ============================================
// MACHINE OPERATIONS
// ============================================

func (s *GORMStore) GetMachine(ctx context.Context, id string) (*models.Machine, error) {
	m, err := getByField[models.Machine](s.db, ctx, "id", id, models.ErrMachineNotFound)
	if err != nil {
		return nil, err
	}
	decodeMachineMetadata(m)
	return m, nil
}

func (s *GORMStore) GetMachineByMAC(ctx context.Context, mac string) (*models.Machine, error) {
	m, err := getByField[models.Machine](s.db, ctx, "mac", mac, models.ErrMachineNotFound)
	if err != nil {
		return nil, err
	}
	decodeMachineMetadata(m)
	return m, nil
}

func (s *GORMStore) ListMachines(ctx context.Context, status string) ([]*models.Machine, error) {
	var machines []*models.Machine
	q := s.db.WithContext(ctx)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&machines).Error; err != nil {
		return nil, err
	}
	for _, m := range machines {
		decodeMachineMetadata(m)
	}
	return machines, nil
}

func (s *GORMStore) CreateMachine(ctx context.Context, machine *models.Machine) (string, error) {
	now := time.Now()
	machine.CreatedAt = now
	machine.UpdatedAt = now
	if machine.BootMode == "" {
		machine.BootMode = string(models.BootModeUEFI)
	}
	if machine.Status == "" {
		machine.Status = string(models.MachineStatusActive)
	}
	if err := encodeMachineMetadata(machine); err != nil {
		return "", err
	}
	return createWithID(s.db, ctx, machine, func(m *models.Machine, id string) { m.ID = id }, machine.ID, models.ErrDuplicateMachine)
}

func (s *GORMStore) UpdateMachine(ctx context.Context, machine *models.Machine) error {
	machine.UpdatedAt = time.Now()
	if err := encodeMachineMetadata(machine); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).
		Model(&models.Machine{}).
		Where("id = ?", machine.ID).
		Updates(map[string]any{
			"display_name":  machine.DisplayName,
			"description":   machine.Description,
			"ip":            machine.IP,
			"hostname":      machine.Hostname,
			"boot_mode":     machine.BootMode,
			"secure_boot":   machine.SecureBoot,
			"status":        machine.Status,
			"location":      machine.Location,
			"metadata_json": machine.MetadataJSON,
			"updated_at":    machine.UpdatedAt,
		})
	return checkRowsAffected(result, models.ErrMachineNotFound)
}

func (s *GORMStore) DeleteMachine(ctx context.Context, id string) error {
	return deleteByField[models.Machine](s.db, ctx, "id", id, models.ErrMachineNotFound)
}

func (s *GORMStore) RecordHeartbeat(ctx context.Context, mac string, at time.Time, report *models.HardwareReport) error {
	machine, err := s.GetMachineByMAC(ctx, mac)
	if err != nil {
		return err
	}

	if report != nil {
		if machine.Metadata == nil {
			machine.Metadata = map[string]any{}
		}
		machine.Metadata["hardware_report"] = report
		if err := encodeMachineMetadata(machine); err != nil {
			return err
		}
	}

	result := s.db.WithContext(ctx).
		Model(&models.Machine{}).
		Where("id = ?", machine.ID).
		Updates(map[string]any{
			"online":        true,
			"last_seen":     at,
			"metadata_json": machine.MetadataJSON,
			"updated_at":    at,
		})
	return checkRowsAffected(result, models.ErrMachineNotFound)
}

func (s *GORMStore) IncrementBootCount(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Machine{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"boot_count": gorm.Expr("boot_count + 1"),
			"updated_at": time.Now(),
		})
	return checkRowsAffected(result, models.ErrMachineNotFound)
}

// encodeMachineMetadata serializes Machine.Metadata into MetadataJSON for
// storage; the map itself is not a GORM column (see models.Machine).
func encodeMachineMetadata(m *models.Machine) error {
	if m.Metadata == nil {
		m.MetadataJSON = ""
		return nil
	}
	b, err := json.Marshal(m.Metadata)
	if err != nil {
		return err
	}
	m.MetadataJSON = string(b)
	return nil
}

// decodeMachineMetadata populates Machine.Metadata from MetadataJSON after a
// read; failures are ignored and leave Metadata nil, since the field is
// advisory and never load-bearing for invariants.
func decodeMachineMetadata(m *models.Machine) {
	if m.MetadataJSON == "" {
		return
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(m.MetadataJSON), &out); err == nil {
		m.Metadata = out
	}
}
