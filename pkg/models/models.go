// Package models defines the persistent entities of the diskless-boot
// control plane: Users, Images, Machines, Targets, and Sessions.
package models

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&User{},
		&Image{},
		&Machine{},
		&Target{},
		&Session{},
	}
}
