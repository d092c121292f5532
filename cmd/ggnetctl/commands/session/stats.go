package session

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ggnet/ggnetd/cmd/ggnetctl/cmdutil"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show session counts by status",
	RunE:  runStats,
}

func init() {
	Cmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	stats, err := client.SessionStatistics()
	if err != nil {
		return fmt.Errorf("get session stats: %w", err)
	}

	if cmdutil.IsJSON() {
		return cmdutil.PrintJSON(os.Stdout, stats)
	}

	fmt.Printf("Total:    %d\n", stats.Total)
	fmt.Printf("Starting: %d\n", stats.Starting)
	fmt.Printf("Active:   %d\n", stats.Active)
	fmt.Printf("Stopping: %d\n", stats.Stopping)
	fmt.Printf("Stopped:  %d\n", stats.Stopped)
	fmt.Printf("Error:    %d\n", stats.Error)
	fmt.Printf("Timeout:  %d\n", stats.Timeout)
	return nil
}
