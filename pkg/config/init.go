package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// configTemplate is the commented starter file written by 'ggnetd init'.
// It intentionally is NOT yaml.Marshal(GetDefaultConfig()) so that operators
// get inline guidance instead of a flat dump of every field.
const configTemplate = `# ggnetd Configuration File
#
# Full option reference: see SPEC_FULL.md / spec.md section 6.
# Environment variables override these values: GGNET_<SECTION>_<KEY>,
# e.g. GGNET_ISCSI_PORTAL_IP=10.0.0.5

logging:
  level: "INFO"
  format: "text"
  output: "stdout"

shutdown_timeout: 30s

database:
  type: sqlite
  sqlite:
    path: "%s"

iscsi:
  target_prefix: "iqn.2025.ggnet"
  portal_ip: "0.0.0.0"
  portal_port: 3260
  targetcli_path: "targetcli"

tftp:
  root: "/var/lib/tftpboot"

dhcp:
  config_path: "/etc/dhcp/dhcpd.conf"
  service_name: "isc-dhcp-server"
  reload_strategy: "command"

images:
  images_dir: "/var/lib/ggnetd/images"
  upload_dir: "/var/lib/ggnetd/uploads"
  max_upload_bytes: 64Gi

conversion_worker:
  batch_size: 10
  poll_interval_seconds: 30
  conversion_timeout_seconds: 7200

session:
  watchdog_interval_seconds: 60
  client_activity_timeout_seconds: 300

api:
  port: 8080
  jwt:
    secret: "%s"

admin:
  username: "admin"
`

// InitConfig creates a sample configuration file at the default location.
// It returns the path written to. Set force to true to overwrite an
// existing file.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath creates a sample configuration file at the given path.
// Set force to true to overwrite an existing file.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	secret, err := randomHexSecret(32)
	if err != nil {
		return fmt.Errorf("failed to generate JWT secret: %w", err)
	}

	dbPath := filepath.Join(dir, "ggnetd.db")
	content := fmt.Sprintf(configTemplate, dbPath, secret)

	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// randomHexSecret returns a hex-encoded random secret of n bytes of
// entropy, suitable as a development-default JWT signing key.
func randomHexSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
