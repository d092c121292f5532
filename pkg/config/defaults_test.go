package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_API(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if cfg.API.ReadTimeout != 10*time.Second {
		t.Errorf("Expected default read timeout 10s, got %v", cfg.API.ReadTimeout)
	}
	if cfg.API.WriteTimeout != 10*time.Second {
		t.Errorf("Expected default write timeout 10s, got %v", cfg.API.WriteTimeout)
	}
	if cfg.API.IdleTimeout != 60*time.Second {
		t.Errorf("Expected default idle timeout 60s, got %v", cfg.API.IdleTimeout)
	}
}

func TestApplyDefaults_Admin(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Admin.Username != "admin" {
		t.Errorf("Expected default admin username 'admin', got %q", cfg.Admin.Username)
	}
}

func TestApplyDefaults_ISCSI(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ISCSI.PortalPort != 3260 {
		t.Errorf("Expected default iscsi portal port 3260, got %d", cfg.ISCSI.PortalPort)
	}
	if cfg.ISCSI.TargetCLIPath != "targetcli" {
		t.Errorf("Expected default targetcli path 'targetcli', got %q", cfg.ISCSI.TargetCLIPath)
	}
	if cfg.ISCSI.Timeout != 30*time.Second {
		t.Errorf("Expected default iscsi timeout 30s, got %v", cfg.ISCSI.Timeout)
	}
}

func TestApplyDefaults_ConversionWorker(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ConversionWorker.BatchSize != 10 {
		t.Errorf("Expected default batch size 10, got %d", cfg.ConversionWorker.BatchSize)
	}
	if cfg.ConversionWorker.PollIntervalSeconds != 30 {
		t.Errorf("Expected default poll interval 30s, got %d", cfg.ConversionWorker.PollIntervalSeconds)
	}
	if cfg.ConversionWorker.ConversionTimeoutSeconds != 7200 {
		t.Errorf("Expected default conversion timeout 7200s, got %d", cfg.ConversionWorker.ConversionTimeoutSeconds)
	}
}

func TestApplyDefaults_Session(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Session.WatchdogIntervalSeconds != 60 {
		t.Errorf("Expected default watchdog interval 60s, got %d", cfg.Session.WatchdogIntervalSeconds)
	}
	if cfg.Session.ClientActivityTimeoutSeconds != 300 {
		t.Errorf("Expected default client activity timeout 300s, got %d", cfg.Session.ClientActivityTimeoutSeconds)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{
			Level:  "DEBUG",
			Format: "json",
			Output: "/var/log/ggnetd.log",
		},
		ShutdownTimeout: 60 * time.Second,
		Admin: AdminConfig{
			Username: "customadmin",
			Email:    "admin@example.com",
		},
	}

	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected explicit level 'DEBUG' to be preserved, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected explicit format 'json' to be preserved, got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "/var/log/ggnetd.log" {
		t.Errorf("Expected explicit output to be preserved, got %q", cfg.Logging.Output)
	}
	if cfg.ShutdownTimeout != 60*time.Second {
		t.Errorf("Expected explicit timeout 60s to be preserved, got %v", cfg.ShutdownTimeout)
	}
	if cfg.Admin.Username != "customadmin" {
		t.Errorf("Expected explicit admin username to be preserved, got %q", cfg.Admin.Username)
	}
}

func TestGetDefaultConfig_IsValid(t *testing.T) {
	cfg := GetDefaultConfig()

	err := Validate(cfg)
	if err != nil {
		t.Errorf("Default config should be valid, got error: %v", err)
	}
}

func TestGetDefaultConfig_HasRequiredFields(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Logging.Level == "" {
		t.Error("Default config missing logging level")
	}
	if cfg.API.Port == 0 {
		t.Error("Default config missing API port")
	}
	if cfg.Admin.Username == "" {
		t.Error("Default config missing admin username")
	}
	if cfg.ISCSI.TargetPrefix == "" {
		t.Error("Default config missing iscsi target prefix")
	}
	if cfg.TFTP.Root == "" {
		t.Error("Default config missing tftp root")
	}
	if cfg.DHCP.ConfigPath == "" {
		t.Error("Default config missing dhcp config path")
	}
	if cfg.Images.ImagesDir == "" {
		t.Error("Default config missing images dir")
	}
}
