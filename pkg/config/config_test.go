package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func TestLoad_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

database:
  type: sqlite
  sqlite:
    path: "` + yamlSafePath(tmpDir) + `/ggnetd.db"

iscsi:
  target_prefix: "iqn.2025.ggnet"
  portal_ip: "10.0.0.1"

tftp:
  root: "` + yamlSafePath(tmpDir) + `/tftp"

dhcp:
  config_path: "` + yamlSafePath(tmpDir) + `/dhcpd.conf"

images:
  images_dir: "` + yamlSafePath(tmpDir) + `/images"
  upload_dir: "` + yamlSafePath(tmpDir) + `/uploads"

api:
  port: 8080
  jwt:
    secret: "test-secret-key-for-testing-minimum-32-chars"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected API port 8080, got %d", cfg.API.Port)
	}
	if cfg.ISCSI.PortalPort != 3260 {
		t.Errorf("Expected default iscsi portal port 3260, got %d", cfg.ISCSI.PortalPort)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Loading with no config file returns a valid default config, so
	// operators can run the server without a config file for quick testing.
	tmpDir := t.TempDir()
	nonExistentPath := filepath.Join(tmpDir, "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	configContent := `
logging:
  level: INFO
  invalid yaml here [[[
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error with invalid YAML, got nil")
	}
}

func TestLoad_TOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	configContent := `
[logging]
level = "WARN"
format = "json"

[database]
type = "sqlite"

[database.sqlite]
path = "` + yamlSafePath(tmpDir) + `/ggnetd.db"

[iscsi]
target_prefix = "iqn.2025.ggnet"
portal_ip = "10.0.0.1"

[tftp]
root = "` + yamlSafePath(tmpDir) + `/tftp"

[dhcp]
config_path = "` + yamlSafePath(tmpDir) + `/dhcpd.conf"

[images]
images_dir = "` + yamlSafePath(tmpDir) + `/images"
upload_dir = "` + yamlSafePath(tmpDir) + `/uploads"

[api]
port = 8080

[api.jwt]
secret = "test-secret-key-for-testing-minimum-32-chars"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if cfg.Admin.Username != "admin" {
		t.Errorf("Expected default admin username 'admin', got %q", cfg.Admin.Username)
	}
	if cfg.ISCSI.TargetPrefix != "iqn.2025.ggnet" {
		t.Errorf("Expected default iscsi target prefix, got %q", cfg.ISCSI.TargetPrefix)
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	dir := GetConfigDir()

	if filepath.Base(dir) != "ggnet" {
		t.Errorf("Expected directory name 'ggnet', got %q", filepath.Base(dir))
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	_ = os.Setenv("GGNET_LOGGING_LEVEL", "ERROR")
	_ = os.Setenv("GGNET_API_PORT", "9090")
	defer func() {
		_ = os.Unsetenv("GGNET_LOGGING_LEVEL")
		_ = os.Unsetenv("GGNET_API_PORT")
	}()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
logging:
  level: "INFO"

database:
  type: sqlite
  sqlite:
    path: "` + yamlSafePath(tmpDir) + `/ggnetd.db"

iscsi:
  target_prefix: "iqn.2025.ggnet"
  portal_ip: "10.0.0.1"

tftp:
  root: "` + yamlSafePath(tmpDir) + `/tftp"

dhcp:
  config_path: "` + yamlSafePath(tmpDir) + `/dhcpd.conf"

images:
  images_dir: "` + yamlSafePath(tmpDir) + `/images"
  upload_dir: "` + yamlSafePath(tmpDir) + `/uploads"

api:
  port: 8080
  jwt:
    secret: "test-secret-key-for-testing-minimum-32-chars"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	if cfg.API.Port != 9090 {
		t.Errorf("Expected port 9090 from env var, got %d", cfg.API.Port)
	}
}
