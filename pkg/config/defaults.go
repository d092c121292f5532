package config

import (
	"strings"
	"time"

	"github.com/ggnet/ggnetd/internal/bytesize"
	"github.com/ggnet/ggnetd/pkg/api"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// This function is called after loading configuration from file and
// environment variables to fill in any missing values with sensible
// defaults.
//
// Default strategy: zero values (0, "", false, nil) are replaced with
// defaults; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	cfg.Database.ApplyDefaults()
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyAPIDefaults(&cfg.API)
	applyAdminDefaults(&cfg.Admin)
	applyISCSIDefaults(&cfg.ISCSI)
	applyTFTPDefaults(&cfg.TFTP)
	applyDHCPDefaults(&cfg.DHCP)
	applyImagesDefaults(&cfg.Images)
	applyConversionWorkerDefaults(&cfg.ConversionWorker)
	applySessionDefaults(&cfg.Session)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// applyAPIDefaults sets API server defaults.
func applyAPIDefaults(cfg *api.APIConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
	if cfg.JWT.AccessTokenDuration == 0 {
		cfg.JWT.AccessTokenDuration = 15 * time.Minute
	}
	if cfg.JWT.RefreshTokenDuration == 0 {
		cfg.JWT.RefreshTokenDuration = 7 * 24 * time.Hour
	}
}

// applyAdminDefaults sets admin bootstrap defaults.
func applyAdminDefaults(cfg *AdminConfig) {
	if cfg.Username == "" {
		cfg.Username = "admin"
	}
}

// applyISCSIDefaults sets iSCSI adapter defaults.
func applyISCSIDefaults(cfg *ISCSIConfig) {
	if cfg.PortalPort == 0 {
		cfg.PortalPort = 3260
	}
	if cfg.TargetCLIPath == "" {
		cfg.TargetCLIPath = "targetcli"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
}

// applyTFTPDefaults sets TFTP manager defaults.
func applyTFTPDefaults(cfg *TFTPConfig) {
	if cfg.Root == "" {
		cfg.Root = "/var/lib/tftpboot"
	}
}

// applyDHCPDefaults sets DHCP manager defaults.
func applyDHCPDefaults(cfg *DHCPConfig) {
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = "/etc/dhcp/dhcpd.conf"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "isc-dhcp-server"
	}
	if cfg.ValidateTimeout == 0 {
		cfg.ValidateTimeout = 10 * time.Second
	}
	if cfg.ReloadStrategy == "" {
		cfg.ReloadStrategy = "command"
	}
}

// applyImagesDefaults sets image upload defaults.
func applyImagesDefaults(cfg *ImagesConfig) {
	if cfg.ImagesDir == "" {
		cfg.ImagesDir = "/var/lib/ggnetd/images"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "/var/lib/ggnetd/uploads"
	}
}

// applyConversionWorkerDefaults sets conversion worker defaults, matching
// spec.md §4.B's recognized options.
func applyConversionWorkerDefaults(cfg *ConversionWorkerConfig) {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.PollIntervalSeconds == 0 {
		cfg.PollIntervalSeconds = 30
	}
	if cfg.ConversionTimeoutSeconds == 0 {
		cfg.ConversionTimeoutSeconds = 7200
	}
	if cfg.ConverterPath == "" {
		cfg.ConverterPath = "qemu-img"
	}
}

// applySessionDefaults sets watchdog/reconciler defaults.
func applySessionDefaults(cfg *SessionConfig) {
	if cfg.WatchdogIntervalSeconds == 0 {
		cfg.WatchdogIntervalSeconds = 60
	}
	if cfg.ClientActivityTimeoutSeconds == 0 {
		cfg.ClientActivityTimeoutSeconds = 300
	}
	if cfg.IPXERebootDelaySeconds == 0 {
		cfg.IPXERebootDelaySeconds = 10
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for generating sample configuration files, testing, and
// documentation.
func GetDefaultConfig() *Config {
	cfg := &Config{
		ISCSI: ISCSIConfig{
			TargetPrefix: "iqn.2025.ggnet",
			PortalIP:     "0.0.0.0",
		},
		TFTP: TFTPConfig{
			Root: "/var/lib/tftpboot",
		},
		DHCP: DHCPConfig{
			ConfigPath:  "/etc/dhcp/dhcpd.conf",
			ServiceName: "isc-dhcp-server",
		},
		Images: ImagesConfig{
			ImagesDir:      "/var/lib/ggnetd/images",
			UploadDir:      "/var/lib/ggnetd/uploads",
			MaxUploadBytes: 64 * bytesize.GiB,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
