package tftp

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := New(Config{RootDir: dir})
	require.NoError(t, err)
	return m
}

func TestNew_CreatesSubtrees(t *testing.T) {
	dir := t.TempDir()
	_, err := New(Config{RootDir: dir})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "machines"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "boot"))
	assert.NoError(t, err)
}

func TestInstallAndRemoveMachineScript(t *testing.T) {
	m := newTestManager(t)

	rel := "machines/00-11-22-33-44-55.ipxe"
	require.NoError(t, m.InstallMachineScript(rel, []byte("#!ipxe\nsanboot iscsi:...\n")))

	data, err := os.ReadFile(m.MachinePath(rel))
	require.NoError(t, err)
	assert.Contains(t, string(data), "#!ipxe")

	require.NoError(t, m.RemoveMachineScript(rel))
	_, err = os.Stat(m.MachinePath(rel))
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveMachineScript_MissingIsNotError(t *testing.T) {
	m := newTestManager(t)
	err := m.RemoveMachineScript("machines/does-not-exist.ipxe")
	assert.NoError(t, err)
}

func TestInstallMachineScript_OverwritesExisting(t *testing.T) {
	m := newTestManager(t)
	rel := "machines/aa-bb-cc-dd-ee-ff.ipxe"

	require.NoError(t, m.InstallMachineScript(rel, []byte("first")))
	require.NoError(t, m.InstallMachineScript(rel, []byte("second")))

	data, err := os.ReadFile(m.MachinePath(rel))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestListMachineScripts_SortedAndCounted(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.InstallMachineScript("machines/b.ipxe", []byte("b")))
	require.NoError(t, m.InstallMachineScript("machines/a.ipxe", []byte("a")))

	scripts, err := m.ListMachineScripts()
	require.NoError(t, err)
	require.Len(t, scripts, 2)
	assert.Equal(t, "machines/a.ipxe", scripts[0].RelPath)
	assert.Equal(t, "machines/b.ipxe", scripts[1].RelPath)
}

func TestStatus_CountsMachineScripts(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.InstallMachineScript("machines/a.ipxe", []byte("hello")))
	require.NoError(t, m.InstallGenericScript("boot.ipxe", []byte("generic")))

	status, err := m.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, status.MachineScriptCount)
	assert.True(t, status.TotalBytes > 0)
}

func TestGCOlderThan_RemovesStaleScripts(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.InstallMachineScript("machines/stale.ipxe", []byte("x")))

	removed, err := m.GCOlderThan(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"machines/stale.ipxe"}, removed)

	_, err = os.Stat(m.MachinePath("machines/stale.ipxe"))
	assert.True(t, os.IsNotExist(err))
}

func TestGCOlderThan_KeepsFreshScripts(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.InstallMachineScript("machines/fresh.ipxe", []byte("x")))

	removed, err := m.GCOlderThan(time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, removed)
}
