// Package commands implements the ggnetctl CLI commands.
package commands

import (
	"github.com/spf13/cobra"

	sessioncmd "github.com/ggnet/ggnetd/cmd/ggnetctl/commands/session"
	"github.com/ggnet/ggnetd/cmd/ggnetctl/cmdutil"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "ggnetctl",
	Short: "ggnetctl drives a ggnetd control plane over its HTTP API",
	Long: `ggnetctl is the operator command-line client for ggnetd.

Use it to start and stop diskless boot sessions and inspect their status
through the control plane's REST API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cmdutil.Flags.ServerURL, _ = cmd.Flags().GetString("server")
		cmdutil.Flags.Token, _ = cmd.Flags().GetString("token")
		cmdutil.Flags.Output, _ = cmd.Flags().GetString("output")
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "ggnetd API server URL")
	rootCmd.PersistentFlags().String("token", "", "Bearer token identifying the acting operator")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "Output format (table|json)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(sessioncmd.Cmd)
}
