package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shellforge/shellforge/pkg/policy"
)

func newValidateCommand(version string) *cobra.Command {
	var locked bool

	cmd := &cobra.Command{
		Use:   "validate [descriptor]",
		Short: "Validate a descriptor without resolving it",
		Long: `Validate an environment descriptor.

This command checks:
  - CUE syntax validity
  - Schema conformance
  - Input references from outputs
  - Policy compliance (OPA/rego)`,
		Example: `  # Validate the default descriptor
  shellforge validate

  # Validate as the locked resolve would see it
  shellforge validate ./env.cue --locked`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			parsed, err := app.parser.Load(ctx, descriptorArg(args))
			if err != nil {
				return err
			}

			if len(parsed.Errors) > 0 {
				if jsonOutput {
					return printJSON(parsed)
				}
				for _, ve := range parsed.Errors {
					fmt.Printf("error: %s\n", ve.Error())
				}
				return fmt.Errorf("descriptor has %d validation errors", len(parsed.Errors))
			}

			mode := "unlocked"
			if locked {
				mode = "locked"
			}
			result, err := app.policies.EvaluateDescriptor(ctx, &parsed.Descriptor, &policy.Context{
				Mode:      mode,
				Operation: "validate",
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(result)
			}

			for _, v := range result.Violations {
				fmt.Printf("%s: [%s] %s\n", v.Severity, v.Policy, v.Message)
			}
			if !result.Allowed {
				return fmt.Errorf("descriptor rejected by policy")
			}

			fmt.Println("Descriptor is valid")
			return nil
		},
	}

	cmd.Flags().BoolVar(&locked, "locked", false, "evaluate policies in locked mode")

	return cmd
}
