// Package session implements ggnetctl's "session" resource commands.
package session

import "github.com/spf13/cobra"

// Cmd is the "session" resource command, exposed to the root command.
var Cmd = &cobra.Command{
	Use:   "session",
	Short: "Manage diskless boot sessions",
}
