package session

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ggnet/ggnetd/cmd/ggnetctl/cmdutil"
)

var getCmd = &cobra.Command{
	Use:   "get <session-id>",
	Short: "Show a single session",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	Cmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	s, err := client.GetSession(args[0])
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}

	if cmdutil.IsJSON() {
		return cmdutil.PrintJSON(os.Stdout, s)
	}

	fmt.Printf("ID:            %s\n", s.SessionID)
	fmt.Printf("Status:        %s\n", s.Status)
	fmt.Printf("Type:          %s\n", s.Type)
	fmt.Printf("Machine:       %s\n", s.MachineID)
	fmt.Printf("Target:        %s\n", s.TargetID)
	fmt.Printf("Image:         %s\n", s.ImageID)
	if s.ErrorMessage != "" {
		fmt.Printf("Error:         %s\n", s.ErrorMessage)
	}
	return nil
}
