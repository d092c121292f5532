package session

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ggnet/ggnetd/cmd/ggnetctl/cmdutil"
	"github.com/ggnet/ggnetd/internal/cliprompt"
)

var stopForce bool

var stopCmd = &cobra.Command{
	Use:   "stop <session-id>",
	Short: "Stop a diskless boot session",
	Long: `Tear a session down: deletes the iSCSI target, removes the TFTP boot
artifacts, and releases the machine's DHCP reservation.`,
	Args: cobra.ExactArgs(1),
	RunE: runStop,
}

func init() {
	stopCmd.Flags().BoolVarP(&stopForce, "yes", "f", false, "skip the confirmation prompt")
	Cmd.AddCommand(stopCmd)
}

func runStop(cmd *cobra.Command, args []string) error {
	ok, err := cliprompt.ConfirmWithForce(fmt.Sprintf("stop session %s", args[0]), stopForce)
	if err != nil {
		if errors.Is(err, cliprompt.ErrAborted) {
			return nil
		}
		return err
	}
	if !ok {
		fmt.Println("aborted")
		return nil
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	resp, err := client.StopSession(args[0])
	if err != nil {
		return fmt.Errorf("stop session: %w", err)
	}

	if cmdutil.IsJSON() {
		return cmdutil.PrintJSON(os.Stdout, resp)
	}

	fmt.Printf("Session %s stopped (machine %s)\n", resp.SessionID, resp.MachineID)
	return nil
}
