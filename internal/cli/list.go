package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/printforge/printforge/pkg/manifest"
)

// listCommand creates the list command.
func (c *CLI) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List model directories and their declared outputs",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := workspaceRoot()
			if err != nil {
				return err
			}

			models, err := manifest.Discover(root)
			if err != nil {
				return err
			}
			if len(models) == 0 {
				printInfo("No model directories found")
				printNextStep("Create one", "mkdir mymodel && $EDITOR mymodel/"+manifest.Filename)
				return nil
			}

			for _, name := range models {
				m, err := manifest.Load(filepath.Join(root, name))
				if err != nil {
					printWarning("%s: %v", name, err)
					continue
				}

				printInfo("%s", StyleHighlight.Render(name))
				for _, s := range m.STLs {
					printKeyValue("stl", s.Out)
				}
				for _, img := range m.Images {
					printKeyValue("image", img.Out)
				}
				for _, d := range m.Documents {
					printKeyValue("document", d.Out)
				}
				for _, a := range m.Assets {
					printKeyValue("asset", a.Dir+" → "+a.Category)
				}
				printNewline()
			}
			return nil
		},
	}
}
