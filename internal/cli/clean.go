package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// cleanCommand creates the clean command.
func (c *CLI) cleanCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove the build directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := workspaceRoot()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			dir := filepath.Join(root, cfg.Build.Dir)
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				printInfo("Nothing to clean")
				return nil
			}
			if err := os.RemoveAll(dir); err != nil {
				return err
			}
			printSuccess("Removed %s", dir)
			return nil
		},
	}
}
