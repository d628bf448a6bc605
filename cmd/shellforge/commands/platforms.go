package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shellforge/shellforge/pkg/platform"
)

func newPlatformsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "platforms",
		Short: "List the default platform set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			current := platform.Current()
			defaults := platform.DefaultPlatforms()

			if jsonOutput {
				return printJSON(struct {
					Current  platform.Platform   `json:"current"`
					Defaults []platform.Platform `json:"defaults"`
				}{Current: current, Defaults: defaults})
			}

			for _, p := range defaults {
				marker := " "
				if p == current {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, p)
			}
			if !platform.IsDefault(current) {
				fmt.Printf("\ncurrent platform %s is outside the default set\n", current)
			}
			return nil
		},
	}
}
