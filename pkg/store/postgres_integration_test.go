//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ggnet/ggnetd/pkg/models"
)

// startPostgres spins up a disposable PostgreSQL container and returns
// connection parameters for it, terminating the container on test cleanup.
func startPostgres(t *testing.T) PostgresConfig {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("ggnetd_test"),
		postgres.WithUsername("ggnetd_test"),
		postgres.WithPassword("ggnetd_test"),
		testcontainers.WithWaitStrategyAndDeadline(2*time.Minute,
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return PostgresConfig{
		Host:         host,
		Port:         port.Int(),
		Database:     "ggnetd_test",
		User:         "ggnetd_test",
		Password:     "ggnetd_test",
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}
}

// TestRunMigrations_AppliesSchema verifies the golang-migrate path lays down
// a schema that a GORM model can immediately read and write against, and
// that running it twice is a no-op (idempotent re-apply).
func TestRunMigrations_AppliesSchema(t *testing.T) {
	pgCfg := startPostgres(t)
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, &pgCfg))
	require.NoError(t, RunMigrations(ctx, &pgCfg), "re-running migrations must be a no-op")

	db, err := New(&Config{Type: DatabaseTypePostgres, Postgres: pgCfg})
	require.NoError(t, err)

	machine := &models.Machine{
		DisplayName: "integration-test-machine",
		MAC:         "aa:bb:cc:dd:ee:ff",
		BootMode:    string(models.BootModeUEFI),
		Status:      string(models.MachineStatusActive),
	}
	id, err := db.CreateMachine(ctx, machine)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := db.GetMachine(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "aa:bb:cc:dd:ee:ff", got.MAC)
}

// TestRunMigrations_LiveSessionIndex verifies the migration's partial
// unique index rejects a second starting-or-active session for the same
// machine, matching GORMStore.ensureLiveSessionIndex's AutoMigrate-path
// equivalent.
func TestRunMigrations_LiveSessionIndex(t *testing.T) {
	pgCfg := startPostgres(t)
	ctx := context.Background()
	require.NoError(t, RunMigrations(ctx, &pgCfg))

	db, err := New(&Config{Type: DatabaseTypePostgres, Postgres: pgCfg})
	require.NoError(t, err)

	machine := &models.Machine{
		DisplayName: "live-index-machine",
		MAC:         "11:22:33:44:55:66",
		BootMode:    string(models.BootModeUEFI),
		Status:      string(models.MachineStatusActive),
	}
	machineID, err := db.CreateMachine(ctx, machine)
	require.NoError(t, err)

	image := &models.Image{DisplayName: "img", FileName: "img.raw", FilePath: "/tmp/img.raw", Format: "raw", Status: string(models.ImageStatusReady)}
	imageID, err := db.CreateImage(ctx, image)
	require.NoError(t, err)

	target := &models.Target{TargetID: "t1", IQN: "iqn.test:target-t1", MachineID: machineID, ImageID: imageID, ImagePath: "/tmp/img.raw", InitiatorIQN: "iqn.test:initiator", Status: string(models.TargetStatusActive)}
	targetID, err := db.CreateTarget(ctx, target)
	require.NoError(t, err)

	first := &models.Session{SessionID: "s1", Type: string(models.SessionTypeDisklessBoot), Status: string(models.SessionStatusActive), MachineID: machineID, TargetID: targetID, ImageID: imageID}
	_, err = db.CreateSession(ctx, first)
	require.NoError(t, err)

	second := &models.Session{SessionID: "s2", Type: string(models.SessionTypeDisklessBoot), Status: string(models.SessionStatusStarting), MachineID: machineID, TargetID: targetID, ImageID: imageID}
	_, err = db.CreateSession(ctx, second)
	require.Error(t, err, "a second live session for the same machine must violate the partial unique index")
}
