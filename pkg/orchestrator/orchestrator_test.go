package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggnet/ggnetd/pkg/dhcp"
	"github.com/ggnet/ggnetd/pkg/ggnetrr"
	"github.com/ggnet/ggnetd/pkg/iscsi"
	"github.com/ggnet/ggnetd/pkg/models"
	"github.com/ggnet/ggnetd/pkg/tftp"
)

// writeFakeExe writes an executable shell script at dir/name that exits
// with the given status, standing in for the host's targetcli / dhcpd
// binaries so tests never touch a real kernel target configuration.
func writeFakeExe(t *testing.T, dir, name string, exitCode int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	script := fmt.Sprintf("#!/bin/sh\nexit %d\n", exitCode)
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// fakeReload counts reload invocations and can be scripted to fail.
type fakeReload struct {
	calls int
	err   error
}

func (r *fakeReload) Reload(ctx context.Context) error {
	r.calls++
	return r.err
}

type harness struct {
	orch    *Orchestrator
	store   *fakeStore
	tftpDir string
	reload  *fakeReload
}

func newHarness(t *testing.T, targetCLIExit int, validatorExit *int) *harness {
	t.Helper()
	binDir := t.TempDir()
	targetCLI := writeFakeExe(t, binDir, "targetcli", targetCLIExit)

	iscsiAdapter := iscsi.New(iscsi.Config{
		IQNPrefix:     "iqn.2025.ggnet",
		PortalIP:      "10.0.0.1",
		PortalPort:    3260,
		TargetCLIPath: targetCLI,
	})

	tftpDir := t.TempDir()
	tftpMgr, err := tftp.New(tftp.Config{RootDir: tftpDir})
	require.NoError(t, err)

	dhcpDir := t.TempDir()
	reload := &fakeReload{}
	dhcpCfg := dhcp.Config{
		ConfigPath: filepath.Join(dhcpDir, "dhcpd.conf"),
		Reload:     reload,
	}
	if validatorExit != nil {
		dhcpCfg.ValidatorPath = writeFakeExe(t, binDir, "dhcpd", *validatorExit)
	}
	dhcpMgr := dhcp.New(dhcpCfg)

	st := newFakeStore()
	orch := New(Config{
		IQNPrefix:  "iqn.2025.ggnet",
		PortalIP:   "10.0.0.1",
		PortalPort: 3260,
	}, st, iscsiAdapter, tftpMgr, dhcpMgr, nil)

	return &harness{orch: orch, store: st, tftpDir: tftpDir, reload: reload}
}

func seedMachine(h *harness, id, mac string) *models.Machine {
	m := &models.Machine{
		ID:          id,
		DisplayName: "pc-" + id,
		MAC:         mac,
		Status:      string(models.MachineStatusActive),
		BootMode:    string(models.BootModeUEFI),
	}
	h.store.putMachine(m)
	return m
}

func seedImage(h *harness, id string) *models.Image {
	img := &models.Image{
		ID:          id,
		DisplayName: "win11-" + id,
		FilePath:    "/srv/img/" + id + ".raw",
		Format:      string(models.ImageFormatRaw),
		Status:      string(models.ImageStatusReady),
	}
	h.store.putImage(img)
	return img
}

// Scenario 1 (spec §8): happy path start produces a Target row, a TFTP
// script containing the expected literal tokens, and exactly one DHCP
// reload.
func TestStart_HappyPath(t *testing.T) {
	h := newHarness(t, 0, nil)
	ctx := context.Background()

	machine := seedMachine(h, "7", "00:11:22:33:44:55")
	image := seedImage(h, "3")

	res, err := h.orch.Start(ctx, StartRequest{
		MachineID:   machine.ID,
		ImageID:     image.ID,
		Type:        models.SessionTypeDisklessBoot,
		Description: "test",
		Actor:       "operator1",
	})
	require.NoError(t, err)

	assert.Equal(t, "machine_7", res.Target.TargetID)
	assert.Equal(t, "iqn.2025.ggnet:target-machine_7", res.Target.IQN)
	assert.Equal(t, "iqn.2025.ggnet:initiator-001122334455", res.Target.InitiatorIQN)

	scriptPath := filepath.Join(h.tftpDir, "machines", "00-11-22-33-44-55.ipxe")
	content, err := os.ReadFile(scriptPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "#!ipxe")
	assert.Contains(t, string(content), "sanboot iscsi:10.0.0.1::0:iqn.2025.ggnet:target-machine_7")

	assert.Equal(t, 1, h.reload.calls)
	assert.Equal(t, string(models.SessionStatusActive), res.Session.Status)
}

// Scenario 2 (spec §8): a non-zero exit from the DHCP validator rolls the
// whole start back -- no Target row, no Session row, no TFTP file.
func TestStart_DHCPFailureRollsBack(t *testing.T) {
	failExit := 1
	h := newHarness(t, 0, &failExit)
	ctx := context.Background()

	machine := seedMachine(h, "7", "00:11:22:33:44:55")
	image := seedImage(h, "3")

	_, err := h.orch.Start(ctx, StartRequest{
		MachineID: machine.ID,
		ImageID:   image.ID,
		Type:      models.SessionTypeDisklessBoot,
		Actor:     "operator1",
	})
	require.Error(t, err)
	var kerr *ggnetrr.Error
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, ggnetrr.ExternalToolFailure, kerr.Kind)

	_, terr := h.store.GetTargetByMachine(ctx, machine.ID)
	assert.ErrorIs(t, terr, models.ErrTargetNotFound)

	_, serr := h.store.GetLiveSessionByMachine(ctx, machine.ID)
	assert.ErrorIs(t, serr, models.ErrSessionNotFound)

	scriptPath := filepath.Join(h.tftpDir, "machines", "00-11-22-33-44-55.ipxe")
	_, statErr := os.Stat(scriptPath)
	assert.True(t, os.IsNotExist(statErr))
}

// Scenario 3 (spec §8): concurrent starts for the same machine -- one wins,
// one observes Conflict; invariant 3 (at most one live session per machine)
// holds afterward.
func TestStart_ConcurrentSameMachine(t *testing.T) {
	h := newHarness(t, 0, nil)
	ctx := context.Background()

	machine := seedMachine(h, "7", "00:11:22:33:44:55")
	image := seedImage(h, "3")

	results := make(chan error, 2)
	start := func() {
		_, err := h.orch.Start(ctx, StartRequest{
			MachineID: machine.ID,
			ImageID:   image.ID,
			Type:      models.SessionTypeDisklessBoot,
			Actor:     "operator1",
		})
		results <- err
	}
	go start()
	go start()

	errs := []error{<-results, <-results}
	successes, conflicts := 0, 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		var kerr *ggnetrr.Error
		if require.ErrorAs(t, err, &kerr) {
			if kerr.Kind == ggnetrr.Conflict {
				conflicts++
			}
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	sessions, err := h.store.ListSessions(ctx, string(models.SessionStatusActive))
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

// Scenario 4 (spec §8): starting against an image that is not ready is
// rejected as Validation with no external side effects.
func TestStart_ImageNotReady(t *testing.T) {
	h := newHarness(t, 0, nil)
	ctx := context.Background()

	machine := seedMachine(h, "7", "00:11:22:33:44:55")
	image := seedImage(h, "3")
	image.Status = string(models.ImageStatusProcessing)
	h.store.putImage(image)

	_, err := h.orch.Start(ctx, StartRequest{
		MachineID: machine.ID,
		ImageID:   image.ID,
		Type:      models.SessionTypeDisklessBoot,
		Actor:     "operator1",
	})
	require.Error(t, err)
	var kerr *ggnetrr.Error
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, ggnetrr.Validation, kerr.Kind)
	assert.Equal(t, 0, h.reload.calls)
}

// Scenario 5 (spec §8): repeated boot-script re-fetches are byte-identical
// and match the file installed on disk.
func TestServeBootScript_Deterministic(t *testing.T) {
	h := newHarness(t, 0, nil)
	ctx := context.Background()

	machine := seedMachine(h, "7", "00:11:22:33:44:55")
	image := seedImage(h, "3")
	_, err := h.orch.Start(ctx, StartRequest{
		MachineID: machine.ID,
		ImageID:   image.ID,
		Type:      models.SessionTypeDisklessBoot,
		Actor:     "operator1",
	})
	require.NoError(t, err)

	first, err := h.orch.ServeBootScript(ctx, machine.ID)
	require.NoError(t, err)
	second, err := h.orch.ServeBootScript(ctx, machine.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	onDisk, err := os.ReadFile(filepath.Join(h.tftpDir, "machines", "00-11-22-33-44-55.ipxe"))
	require.NoError(t, err)
	assert.Equal(t, string(onDisk), first)
}

// Scenario 6 (spec §8): stop is idempotent -- the second call on an
// already-stopped session succeeds without re-invoking external calls.
func TestStop_Idempotent(t *testing.T) {
	h := newHarness(t, 0, nil)
	ctx := context.Background()

	machine := seedMachine(h, "7", "00:11:22:33:44:55")
	image := seedImage(h, "3")
	res, err := h.orch.Start(ctx, StartRequest{
		MachineID: machine.ID,
		ImageID:   image.ID,
		Type:      models.SessionTypeDisklessBoot,
		Actor:     "operator1",
	})
	require.NoError(t, err)

	err = h.orch.Stop(ctx, res.Session.SessionID, "operator1")
	require.NoError(t, err)

	session, err := h.store.GetSession(ctx, res.Session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, string(models.SessionStatusStopped), session.Status)

	_, terr := h.store.GetTargetByMachine(ctx, machine.ID)
	assert.ErrorIs(t, terr, models.ErrTargetNotFound)

	scriptPath := filepath.Join(h.tftpDir, "machines", "00-11-22-33-44-55.ipxe")
	_, statErr := os.Stat(scriptPath)
	assert.True(t, os.IsNotExist(statErr))

	// Second stop on an already-stopped session is a no-op that succeeds,
	// per the idempotence property (spec §8 scenario 6).
	require.NoError(t, h.orch.Stop(ctx, res.Session.SessionID, "operator1"))
}

// Round-trip property (spec §8): stop(start(m,i)) leaves the machine with
// no active session, no target row, no TFTP script, and no DHCP block.
func TestStartThenStop_RoundTrip(t *testing.T) {
	h := newHarness(t, 0, nil)
	ctx := context.Background()

	machine := seedMachine(h, "7", "00:11:22:33:44:55")
	image := seedImage(h, "3")
	res, err := h.orch.Start(ctx, StartRequest{
		MachineID: machine.ID,
		ImageID:   image.ID,
		Type:      models.SessionTypeDisklessBoot,
		Actor:     "operator1",
	})
	require.NoError(t, err)

	require.NoError(t, h.orch.Stop(ctx, res.Session.SessionID, "operator1"))

	_, err = h.store.GetLiveSessionByMachine(ctx, machine.ID)
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
	_, err = h.store.GetTargetByMachine(ctx, machine.ID)
	assert.ErrorIs(t, err, models.ErrTargetNotFound)

	reservations, err := h.orch.dhcp.Status(ctx)
	require.NoError(t, err)
	for _, r := range reservations {
		assert.NotEqual(t, machine.ID, r.MachineID)
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
