// Package commands implements the ggnetd daemon's subcommands.
package commands

import (
	"github.com/spf13/cobra"
)

// Version information injected at build time via ldflags.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ggnetd",
	Short: "ggnetd is the diskless-boot control plane daemon",
	Long: `ggnetd boots Windows 11 UEFI/SecureBoot clients from iSCSI volumes.

It owns the image store, the conversion worker, the iSCSI target adapter,
the iPXE script generator, the TFTP artifact manager, the DHCP reservation
manager, and the session orchestrator that ties them together.

Use "ggnetd [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: $XDG_CONFIG_HOME/ggnet/config.yaml)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}
