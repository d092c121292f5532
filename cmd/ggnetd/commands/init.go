package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ggnet/ggnetd/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	var (
		path string
		err  error
	)

	if configPath != "" {
		err = config.InitConfigToPath(configPath, initForce)
		path = configPath
	} else {
		path, err = config.InitConfig(initForce)
	}
	if err != nil {
		return fmt.Errorf("initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", path)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Edit the configuration file to customize your deployment")
	fmt.Println("  2. Start the daemon with: ggnetd start")
	fmt.Printf("  3. Or specify a custom config: ggnetd start --config %s\n", path)
	return nil
}
