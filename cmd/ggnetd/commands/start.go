package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ggnet/ggnetd/internal/logger"
	"github.com/ggnet/ggnetd/internal/telemetry"
	"github.com/ggnet/ggnetd/pkg/api"
	"github.com/ggnet/ggnetd/pkg/config"
	"github.com/ggnet/ggnetd/pkg/dhcp"
	"github.com/ggnet/ggnetd/pkg/imageconvert"
	"github.com/ggnet/ggnetd/pkg/images"
	"github.com/ggnet/ggnetd/pkg/ipxe"
	"github.com/ggnet/ggnetd/pkg/iscsi"
	"github.com/ggnet/ggnetd/pkg/metrics"
	"github.com/ggnet/ggnetd/pkg/orchestrator"
	"github.com/ggnet/ggnetd/pkg/store"
	"github.com/ggnet/ggnetd/pkg/tftp"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ggnetd control plane daemon",
	RunE:  runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}

	logger.Info("ggnetd starting", logger.KeyVersion, Version, "commit", Commit)

	db, err := store.New(&cfg.Database)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}

	imgs, err := images.New(images.Config{
		UploadDir:      cfg.Images.UploadDir,
		ImagesDir:      cfg.Images.ImagesDir,
		MaxUploadBytes: int64(cfg.Images.MaxUploadBytes),
	}, db)
	if err != nil {
		return fmt.Errorf("initialize image store: %w", err)
	}

	iscsiAdapter := iscsi.New(iscsi.Config{
		IQNPrefix:     cfg.ISCSI.TargetPrefix,
		PortalIP:      cfg.ISCSI.PortalIP,
		PortalPort:    cfg.ISCSI.PortalPort,
		Timeout:       cfg.ISCSI.Timeout,
		TargetCLIPath: cfg.ISCSI.TargetCLIPath,
	})

	tftpMgr, err := tftp.New(tftp.Config{RootDir: cfg.TFTP.Root})
	if err != nil {
		return fmt.Errorf("initialize TFTP manager: %w", err)
	}

	dhcpMgr := dhcp.New(dhcp.Config{
		ConfigPath:      cfg.DHCP.ConfigPath,
		ValidatorPath:   cfg.DHCP.ValidatorPath,
		ValidateTimeout: cfg.DHCP.ValidateTimeout,
		Reload:          dhcpReloadStrategy(cfg.DHCP),
	})

	orch := orchestrator.New(orchestrator.Config{
		IQNPrefix:  cfg.ISCSI.TargetPrefix,
		PortalIP:   cfg.ISCSI.PortalIP,
		PortalPort: cfg.ISCSI.PortalPort,
		IPXE: ipxe.ServerConfig{
			NextServerIP:       cfg.Session.NextServerIP,
			RebootDelaySeconds: cfg.Session.IPXERebootDelaySeconds,
		},
		WatchdogInterval:      time.Duration(cfg.Session.WatchdogIntervalSeconds) * time.Second,
		ClientActivityTimeout: time.Duration(cfg.Session.ClientActivityTimeoutSeconds) * time.Second,
	}, db, iscsiAdapter, tftpMgr, dhcpMgr, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "ggnetd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.KeyError, err)
		}
	}()
	if telemetry.IsEnabled() {
		logger.Info("distributed tracing enabled", "endpoint", cfg.Telemetry.Endpoint)
	}

	orch.StartWatchdog(ctx)
	defer orch.StopWatchdog()

	worker := imageconvert.New(imageconvert.Config{
		PollInterval:      time.Duration(cfg.ConversionWorker.PollIntervalSeconds) * time.Second,
		BatchSize:         cfg.ConversionWorker.BatchSize,
		ConversionTimeout: time.Duration(cfg.ConversionWorker.ConversionTimeoutSeconds) * time.Second,
		ConverterPath:     cfg.ConversionWorker.ConverterPath,
	}, db, "ggnetd-"+hostnameOrDefault())
	go worker.Run(ctx)
	defer worker.Stop()

	metrics.Init(cfg.Metrics.Enabled)
	if cfg.Metrics.Enabled {
		logger.Info("metrics collection enabled (scrape pkg/metrics.Registry from an embedding process)")
	}

	apiServer, err := api.NewServer(cfg.API, db, orch, imgs)
	if err != nil {
		return fmt.Errorf("initialize API server: %w", err)
	}

	serverDone := make(chan error, 1)
	go func() { serverDone <- apiServer.Start(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("ggnetd is running", logger.KeyPort, apiServer.Port())

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, initiating graceful shutdown")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("API server shutdown error", logger.KeyError, err)
			return err
		}
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("API server error", logger.KeyError, err)
			return err
		}
	}

	logger.Info("ggnetd stopped gracefully")
	return nil
}

// dhcpReloadStrategy selects the reservation-reload mechanism from
// cfg.ReloadStrategy ("command" or "systemd"), defaulting to the shelled
// command strategy.
func dhcpReloadStrategy(cfg config.DHCPConfig) dhcp.ReloadStrategy {
	if cfg.ReloadStrategy == "systemd" {
		return dhcp.ReloadViaSystemd{UnitName: cfg.ServiceName}
	}
	return dhcp.ReloadViaCommand{
		Argv:    []string{"service", cfg.ServiceName, "reload"},
		Timeout: cfg.ValidateTimeout,
	}
}

func hostnameOrDefault() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "unknown"
	}
	return h
}

