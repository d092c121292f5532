package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ggnet/ggnetd/internal/bytesize"
	"github.com/ggnet/ggnetd/pkg/api"
	"github.com/ggnet/ggnetd/pkg/store"
)

// Config represents the ggnetd control plane configuration.
//
// This structure captures the static configuration of the diskless-boot
// control plane:
//   - Logging and telemetry
//   - Server settings (shutdown timeout, metrics, API)
//   - Database connection (session/image/machine persistence)
//   - iSCSI/TFTP/DHCP collaborator settings
//   - Image store and conversion worker settings
//   - Session watchdog settings
//   - Admin user bootstrap
//
// Configuration sources (in order of precedence):
//  1. Environment variables (GGNET_*) (highest priority)
//  2. Configuration file (YAML or TOML)
//  3. Default values (lowest priority)
//
// The --config flag only selects the file; no CLI flag overrides a value.
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Database configures the control plane database (SQLite or PostgreSQL).
	Database store.Config `mapstructure:"database" yaml:"database"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains control plane API server configuration.
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Admin contains initial admin user configuration for bootstrap.
	Admin AdminConfig `mapstructure:"admin" yaml:"admin"`

	// ISCSI configures the target CLI adapter.
	ISCSI ISCSIConfig `mapstructure:"iscsi" yaml:"iscsi"`

	// TFTP configures the boot-artifact filesystem root.
	TFTP TFTPConfig `mapstructure:"tftp" yaml:"tftp"`

	// DHCP configures the reservation config-file manager.
	DHCP DHCPConfig `mapstructure:"dhcp" yaml:"dhcp"`

	// Images configures upload handling for VHD/VHDX source images.
	Images ImagesConfig `mapstructure:"images" yaml:"images"`

	// ConversionWorker configures the background image-conversion poller.
	ConversionWorker ConversionWorkerConfig `mapstructure:"conversion_worker" yaml:"conversion_worker"`

	// Session configures the orchestrator's watchdog/reconciler.
	Session SessionConfig `mapstructure:"session" yaml:"session"`
}

// ISCSIConfig configures the iSCSI target CLI adapter (spec.md §6).
type ISCSIConfig struct {
	// TargetPrefix namespaces generated target/initiator IQNs.
	// Example: "iqn.2025.ggnet".
	TargetPrefix string `mapstructure:"target_prefix" validate:"required" yaml:"target_prefix"`

	// PortalIP/PortalPort is the address the iSCSI portal listens on.
	PortalIP   string `mapstructure:"portal_ip" validate:"required" yaml:"portal_ip"`
	PortalPort int    `mapstructure:"portal_port" validate:"omitempty,min=1,max=65535" yaml:"portal_port"`

	// TargetCLIPath is the path to the host's target CLI binary.
	// Default: "targetcli".
	TargetCLIPath string `mapstructure:"targetcli_path" yaml:"targetcli_path"`

	// Timeout bounds every target CLI sub-command invocation.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// TFTPConfig configures the boot-artifact manager.
type TFTPConfig struct {
	// Root is the TFTP daemon's serving root.
	Root string `mapstructure:"root" validate:"required" yaml:"root"`
}

// DHCPConfig configures the reservation config-file manager.
type DHCPConfig struct {
	// ConfigPath is the DHCP daemon's configuration file on disk.
	ConfigPath string `mapstructure:"config_path" validate:"required" yaml:"config_path"`

	// ServiceName is the init-system service name reloaded after an edit,
	// e.g. "isc-dhcp-server" or, for the systemd D-Bus reload strategy,
	// "isc-dhcp-server.service".
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`

	// ValidatorPath is the DHCP daemon binary used in dry-run mode
	// ("<tool> -t -cf <path>"). Skipped if empty.
	ValidatorPath string `mapstructure:"validator_path" yaml:"validator_path"`

	// ValidateTimeout bounds the validator subprocess.
	ValidateTimeout time.Duration `mapstructure:"validate_timeout" yaml:"validate_timeout"`

	// ReloadStrategy selects how the daemon picks up a changed config file.
	// Valid values: "command" (shell the init-system reload verb),
	// "systemd" (restart the unit over D-Bus).
	ReloadStrategy string `mapstructure:"reload_strategy" validate:"omitempty,oneof=command systemd" yaml:"reload_strategy"`
}

// ImagesConfig configures VHD/VHDX source-image upload handling.
type ImagesConfig struct {
	// ImagesDir holds accepted uploads, keyed by Image.FileName.
	ImagesDir string `mapstructure:"images_dir" validate:"required" yaml:"images_dir"`

	// UploadDir receives in-flight uploads before they are renamed into
	// ImagesDir under their final name.
	UploadDir string `mapstructure:"upload_dir" validate:"required" yaml:"upload_dir"`

	// MaxUploadBytes bounds accepted upload size. Zero means unbounded.
	MaxUploadBytes bytesize.ByteSize `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes,omitempty"`
}

// ConversionWorkerConfig configures the background conversion poller.
type ConversionWorkerConfig struct {
	// BatchSize is the maximum number of images claimed per poll.
	// Default: 10.
	BatchSize int `mapstructure:"batch_size" validate:"omitempty,gt=0" yaml:"batch_size"`

	// PollIntervalSeconds is how often the worker looks for new work.
	// Default: 30.
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds" validate:"omitempty,gt=0" yaml:"poll_interval_seconds"`

	// ConversionTimeoutSeconds bounds a single conversion subprocess.
	// Default: 7200 (2h).
	ConversionTimeoutSeconds int `mapstructure:"conversion_timeout_seconds" validate:"omitempty,gt=0" yaml:"conversion_timeout_seconds"`

	// ConverterPath is the image conversion tool invoked as a subprocess.
	ConverterPath string `mapstructure:"converter_path" yaml:"converter_path"`
}

// SessionConfig configures the orchestrator's watchdog/reconciler.
type SessionConfig struct {
	// WatchdogIntervalSeconds is how often the reconciler sweeps for stale
	// sessions and drift. Default: 60.
	WatchdogIntervalSeconds int `mapstructure:"watchdog_interval_seconds" validate:"omitempty,gt=0" yaml:"watchdog_interval_seconds"`

	// ClientActivityTimeoutSeconds is how long a session may go without a
	// keep-alive touch before the watchdog marks it timed out.
	// Default: 300 (5m).
	ClientActivityTimeoutSeconds int `mapstructure:"client_activity_timeout_seconds" validate:"omitempty,gt=0" yaml:"client_activity_timeout_seconds"`

	// IPXERebootDelaySeconds is rendered into generated iPXE scripts as the
	// delay before a fallback reboot.
	IPXERebootDelaySeconds int `mapstructure:"ipxe_reboot_delay_seconds" yaml:"ipxe_reboot_delay_seconds"`

	// NextServerIP is the TFTP next-server address rendered into iPXE
	// scripts and DHCP host blocks.
	NextServerIP string `mapstructure:"next_server_ip" yaml:"next_server_ip"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized
	// to uppercase).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format.
	// Valid values: text, json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written.
	// Valid values: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port).
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use an insecure (non-TLS) connection.
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// MetricsConfig configures Prometheus metric collection into
// pkg/metrics.Registry. When Enabled is false, no metrics are collected
// (zero overhead). ggnetd starts no HTTP server for these metrics.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is enabled.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is accepted and defaulted to 9090 when Enabled, but ggnetd does
	// not listen on it.
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// AdminConfig contains initial admin user configuration for bootstrap.
// This is used by 'ggnetd init' to pre-configure the first admin user.
type AdminConfig struct {
	// Username is the admin username. Default: "admin".
	Username string `mapstructure:"username" yaml:"username"`

	// Email is the admin user's email address (optional).
	Email string `mapstructure:"email" yaml:"email,omitempty"`

	// PasswordHash is the bcrypt hash of the admin password, generated
	// during 'ggnetd init' or set manually.
	PasswordHash string `mapstructure:"password_hash" yaml:"password_hash,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (GGNET_*)
//  2. Configuration file
//  3. Default values
//
// If no configuration file is found, Load returns GetDefaultConfig() as is;
// environment variables are not applied in that case.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		return GetDefaultConfig(), nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages. It checks
// whether the config file exists and provides user-friendly instructions
// if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  ggnetd init\n\n"+
				"Or specify a custom config file:\n"+
				"  ggnetd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  ggnetd init --config %s",
				configPath, configPath)
		}
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML
// format using proper yaml tags.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600 because the config may carry the admin password hash and the
	// JWT signing secret.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variable and config file
// settings.
func setupViper(v *viper.Viper, configPath string) {
	// GGNET_LOGGING_LEVEL=DEBUG, GGNET_ISCSI_PORTAL_IP=10.0.0.1, etc.
	v.SetEnvPrefix("GGNET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. Returns
// (fileFound, error) where fileFound indicates whether a config file was
// found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for custom types: byte
// sizes and time.Duration.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize,
// enabling config files to use human-readable sizes like "4Gi", "500Mi",
// "100MB", or plain numbers for max_upload_bytes.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration, enabling config
// files to use human-readable durations like "30s", "5m", "1h".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path. Uses
// XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the current
// directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ggnet")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "ggnet")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	path := GetDefaultConfigPath()
	_, err := os.Stat(path)
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}
