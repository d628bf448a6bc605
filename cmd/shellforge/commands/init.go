package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const descriptorTemplate = `description: "%s"

inputs: {
	nixpkgs: "github:NixOS/nixpkgs/nixos-unstable"
}

outputs: {
	devShell: {
		from: "nixpkgs"
		buildInputs: ["stdenv.cc"]
	}
}
`

func newInitCommand() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Scaffold a new environment descriptor",
		Example: `  # Create shellforge.cue in the current directory
  shellforge init

  # Create a descriptor with a custom description
  shellforge init ./env.cue --description "frontend toolchain"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := descriptorArg(args)

			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}

			content := fmt.Sprintf(descriptorTemplate, description)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return fmt.Errorf("failed to write descriptor: %w", err)
			}

			fmt.Printf("Created %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "development environment", "environment description")

	return cmd
}
