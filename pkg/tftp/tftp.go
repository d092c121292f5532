// Package tftp manages the on-disk tree a TFTP daemon serves boot artifacts
// from: per-machine iPXE scripts under machines/ and shared chainload/boot
// artifacts under boot/. Every write lands via write-to-temp, fsync, rename
// so a concurrent TFTP read never observes a partially written file,
// grounded on the teacher's atomic-write helpers in
// pkg/payload/store/fs (write-temp-then-rename) adapted to this package's
// much smaller surface (no byte-range writes, no content hashing).
package tftp

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ggnet/ggnetd/internal/logger"
	"github.com/ggnet/ggnetd/pkg/ggnetrr"
)

const (
	machinesDir = "machines"
	bootDir     = "boot"

	fileMode = 0o644
	dirMode  = 0o755
)

// Config configures the manager's root directory.
type Config struct {
	// RootDir is the TFTP daemon's serving root. machines/ and boot/ are
	// created beneath it.
	RootDir string
}

// Manager installs and removes TFTP-served boot scripts.
type Manager struct {
	root string
}

// New creates a Manager rooted at cfg.RootDir, ensuring the machines/ and
// boot/ subtrees exist.
func New(cfg Config) (*Manager, error) {
	m := &Manager{root: cfg.RootDir}
	for _, sub := range []string{machinesDir, bootDir} {
		if err := os.MkdirAll(filepath.Join(m.root, sub), dirMode); err != nil {
			return nil, ggnetrr.New(ggnetrr.Internal, "tftp.new", fmt.Errorf("create %s: %w", sub, err))
		}
	}
	return m, nil
}

// MachinePath returns the absolute path a relative machine script name
// (e.g. "machines/00-11-22-33-44-55.ipxe") resolves to.
func (m *Manager) MachinePath(relName string) string {
	return filepath.Join(m.root, relName)
}

// InstallMachineScript atomically writes content to relName (as returned by
// ipxe.FilenameFor), replacing any existing script for that machine.
func (m *Manager) InstallMachineScript(relName string, content []byte) error {
	dest := filepath.Join(m.root, relName)
	if err := atomicWrite(dest, content); err != nil {
		return ggnetrr.New(ggnetrr.ExternalToolFailure, "tftp.install_machine_script", err)
	}
	logger.Info("tftp script installed", logger.KeyPath, relName, logger.KeyBytes, len(content))
	return nil
}

// RemoveMachineScript deletes a machine's script. Missing files are not an
// error, matching the idempotent removal semantics the orchestrator's
// rollback path relies on.
func (m *Manager) RemoveMachineScript(relName string) error {
	dest := filepath.Join(m.root, relName)
	if err := os.Remove(dest); err != nil && !os.IsNotExist(err) {
		return ggnetrr.New(ggnetrr.ExternalToolFailure, "tftp.remove_machine_script", err)
	}
	logger.Info("tftp script removed", logger.KeyPath, relName)
	return nil
}

// InstallGenericScript writes a shared, non-machine-specific boot artifact
// (e.g. boot/boot.ipxe, the fallback chain target) under boot/.
func (m *Manager) InstallGenericScript(name string, content []byte) error {
	dest := filepath.Join(m.root, bootDir, name)
	if err := atomicWrite(dest, content); err != nil {
		return ggnetrr.New(ggnetrr.ExternalToolFailure, "tftp.install_generic_script", err)
	}
	logger.Info("tftp generic artifact installed", logger.KeyPath, filepath.Join(bootDir, name), logger.KeyBytes, len(content))
	return nil
}

// ScriptInfo describes a script file found under machines/.
type ScriptInfo struct {
	RelPath string
	Size    int64
	ModTime time.Time
}

// ListMachineScripts enumerates every script currently installed under
// machines/, sorted by relative path for deterministic output.
func (m *Manager) ListMachineScripts() ([]ScriptInfo, error) {
	dir := filepath.Join(m.root, machinesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, ggnetrr.New(ggnetrr.Internal, "tftp.list_machine_scripts", err)
	}

	var out []ScriptInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, ScriptInfo{
			RelPath: filepath.Join(machinesDir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}

// Status reports how many machine scripts exist and the root's total size.
type Status struct {
	MachineScriptCount int
	TotalBytes         int64
}

// Status summarizes the manager's current on-disk state.
func (m *Manager) Status() (*Status, error) {
	var total int64
	var count int

	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		if strings.HasPrefix(path, filepath.Join(m.root, machinesDir)) {
			count++
		}
		return nil
	})
	if err != nil {
		return nil, ggnetrr.New(ggnetrr.Internal, "tftp.status", err)
	}

	return &Status{MachineScriptCount: count, TotalBytes: total}, nil
}

// GCOlderThan removes machine scripts whose modification time is older than
// olderThan, for orphaned scripts left behind by machines that have since
// been deleted. Returns the relative paths removed.
func (m *Manager) GCOlderThan(olderThan time.Time) ([]string, error) {
	scripts, err := m.ListMachineScripts()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, s := range scripts {
		if s.ModTime.Before(olderThan) {
			if err := os.Remove(filepath.Join(m.root, s.RelPath)); err != nil && !os.IsNotExist(err) {
				return removed, ggnetrr.New(ggnetrr.ExternalToolFailure, "tftp.gc_older_than", err)
			}
			removed = append(removed, s.RelPath)
		}
	}
	if len(removed) > 0 {
		logger.Info("tftp gc removed stale scripts", logger.KeyCount, len(removed))
	}
	return removed, nil
}

// atomicWrite writes data to a temp file in dest's directory, fsyncs it,
// then renames it over dest so readers never see a partial write.
func atomicWrite(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("fsync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, fileMode); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
