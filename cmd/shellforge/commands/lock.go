package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/shellforge/shellforge/pkg/lockfile"
	"github.com/shellforge/shellforge/pkg/resolver"
)

func newLockCommand(version string) *cobra.Command {
	var (
		output string
		check  bool
	)

	cmd := &cobra.Command{
		Use:   "lock [descriptor]",
		Short: "Pin descriptor inputs to exact revisions",
		Long: `Resolve every default platform and write a lockfile pinning each
input to the revision it resolved to.

With --check, no lockfile is written; the existing one is verified
against the descriptor and any drift fails the command.`,
		Example: `  # Write shellforge.lock.json next to the descriptor
  shellforge lock

  # Verify the lock is still current
  shellforge lock --check`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			descPath := descriptorArg(args)
			desc, err := app.loadDescriptor(ctx, descPath)
			if err != nil {
				return err
			}

			lockPath := output
			if lockPath == "" {
				lockPath = filepath.Join(filepath.Dir(descPath), lockfile.DefaultName)
			}

			if check {
				lf, err := lockfile.Read(lockPath)
				if err != nil {
					return err
				}

				drifts := lf.Verify(desc)
				if jsonOutput {
					return printJSON(drifts)
				}
				for _, d := range drifts {
					fmt.Println(d.String())
				}
				if len(drifts) > 0 {
					return fmt.Errorf("lockfile has %d drifts", len(drifts))
				}
				fmt.Println("Lockfile is current")
				return nil
			}

			set, err := app.resolver.ResolveAll(ctx, desc, resolver.Options{
				MaxParallel: app.settings.Resolver.MaxParallel,
			})
			if err != nil {
				return err
			}
			if failed := set.Failed(); len(failed) > 0 {
				for p, re := range failed {
					app.logger.Error().Str("platform", string(p)).Msg(re.Message)
				}
				return fmt.Errorf("cannot lock with %d failed platforms", len(failed))
			}

			lf, err := lockfile.New(desc, set)
			if err != nil {
				return err
			}
			if err := lf.Write(lockPath); err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(lf)
			}

			fmt.Printf("Locked %d inputs to %s\n", len(lf.Inputs), lockPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "lockfile path (default: next to the descriptor)")
	cmd.Flags().BoolVar(&check, "check", false, "verify the existing lockfile instead of writing")

	return cmd
}
