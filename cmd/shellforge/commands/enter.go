package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shellforge/shellforge/pkg/platform"
	"github.com/shellforge/shellforge/pkg/policy"
)

func newEnterCommand(version string) *cobra.Command {
	var locked bool

	cmd := &cobra.Command{
		Use:   "enter [descriptor]",
		Short: "Resolve the current platform and launch the dev shell",
		Long: `Resolve the descriptor for this machine's platform and launch an
interactive shell with the resolved tools on PATH.

The shell's exit status becomes shellforge's exit status.`,
		Example: `  # Enter the shell declared by shellforge.cue
  shellforge enter

  # Refuse moving refs while entering
  shellforge enter --locked`,
		Args: cobra.MaximumNArgs(1),
		// The shell's own exit status is not a usage problem and is not
		// worth a cobra error print.
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			desc, err := app.loadDescriptor(ctx, descriptorArg(args))
			if err != nil {
				return err
			}

			mode := "unlocked"
			if locked {
				mode = "locked"
			}
			if err := app.enforcePolicies(ctx, desc, &policy.Context{Mode: mode, Operation: "enter"}); err != nil {
				return err
			}

			spec, err := app.resolver.Resolve(ctx, desc, platform.Current())
			if err != nil {
				return err
			}

			session, err := app.launcher.MkShell(spec)
			if err != nil {
				return err
			}

			fmt.Printf("Entering %s shell (%d tools, revision %.12s)\n",
				spec.Platform, len(spec.Tools), spec.Revision)

			if err := session.Start(ctx); err != nil {
				return err
			}

			code, err := session.Wait()
			if err != nil {
				return err
			}
			if code != 0 {
				// Propagated as the process exit status by main after
				// cleanup has run.
				return &ExitCodeError{Code: code}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&locked, "locked", false, "enforce pinned source references")

	return cmd
}
