package session

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ggnet/ggnetd/cmd/ggnetctl/cmdutil"
)

var listStatus string

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by status (starting|active|stopping|stopped|error|timeout)")
	Cmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	sessions, err := client.ListSessions(listStatus)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	if cmdutil.IsJSON() {
		return cmdutil.PrintJSON(os.Stdout, sessions)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found.")
		return nil
	}

	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		rows = append(rows, []string{s.SessionID, s.Status, s.Type, s.MachineID, s.ImageID})
	}
	cmdutil.PrintTable(os.Stdout, []string{"Session ID", "Status", "Type", "Machine ID", "Image ID"}, rows)
	return nil
}
