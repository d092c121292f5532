package session

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ggnet/ggnetd/cmd/ggnetctl/cmdutil"
	"github.com/ggnet/ggnetd/pkg/apiclient"
)

var (
	startMachineID   string
	startImageID     string
	startType        string
	startDescription string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a diskless boot session for a machine",
	Long: `Provision a complete diskless boot session: creates the iSCSI target,
installs the TFTP boot artifacts, and reserves the machine's DHCP lease.

Examples:
  ggnetctl session start --machine-id m-01 --image-id win11-golden`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&startMachineID, "machine-id", "", "Machine to boot (required)")
	startCmd.Flags().StringVar(&startImageID, "image-id", "", "Image to boot from (required)")
	startCmd.Flags().StringVar(&startType, "type", "", "Session type (default: diskless-boot)")
	startCmd.Flags().StringVar(&startDescription, "description", "", "Free-text description")
	_ = startCmd.MarkFlagRequired("machine-id")
	_ = startCmd.MarkFlagRequired("image-id")

	Cmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	resp, err := client.StartSession(apiclient.StartSessionRequest{
		MachineID:   startMachineID,
		ImageID:     startImageID,
		Type:        startType,
		Description: startDescription,
	})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	if cmdutil.IsJSON() {
		return cmdutil.PrintJSON(os.Stdout, resp)
	}

	fmt.Printf("Session %s started for machine %s (status: %s)\n", resp.Session.SessionID, resp.Session.MachineID, resp.Session.Status)
	fmt.Printf("  iPXE script: %s\n", resp.IPXEScriptURL)
	return nil
}
