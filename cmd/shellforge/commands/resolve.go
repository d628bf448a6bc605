package commands

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/shellforge/shellforge/pkg/platform"
	"github.com/shellforge/shellforge/pkg/policy"
	"github.com/shellforge/shellforge/pkg/resolver"
)

func newResolveCommand(version string) *cobra.Command {
	var (
		platforms []string
		locked    bool
	)

	cmd := &cobra.Command{
		Use:   "resolve [descriptor]",
		Short: "Resolve a descriptor into per-platform shell specifications",
		Long: `Resolve an environment descriptor against pinned package snapshots.

Without --platform, every default platform is resolved independently;
a failure on one platform does not abort the others.`,
		Example: `  # Resolve shellforge.cue for all default platforms
  shellforge resolve

  # Resolve a specific descriptor for one platform
  shellforge resolve ./env.cue --platform x86_64-linux

  # Machine-readable output
  shellforge resolve --json`,
		Args: cobra.MaximumNArgs(1),
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
			if err := app.enforcePolicies(ctx, desc, &policy.Context{Mode: mode, Operation: "resolve"}); err != nil {
				return err
			}

			opts := resolver.Options{MaxParallel: app.settings.Resolver.MaxParallel}
			if err := parsePlatformFlags(platforms, &opts); err != nil {
				return err
			}

			set, err := app.resolver.ResolveAll(ctx, desc, opts)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(set)
			}

			printResolutionSet(set)

			if len(set.Failed()) > 0 {
				return fmt.Errorf("%d of %d platforms failed to resolve", len(set.Failed()), len(set.Results))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&platforms, "platform", nil, "platform to resolve (repeatable, default: all)")
	cmd.Flags().BoolVar(&locked, "locked", false, "enforce pinned source references")

	return cmd
}

// printResolutionSet renders a human-readable summary, platforms sorted
// for stable output.
func printResolutionSet(set *resolver.ResolutionSet) {
	names := make([]string, 0, len(set.Results))
	for p := range set.Results {
		names = append(names, string(p))
	}
	sort.Strings(names)

	for _, name := range names {
		res := set.Results[platform.Platform(name)]
		if res.Error != nil {
			fmt.Printf("%-16s FAILED  %s\n", name, res.Error.Message)
			continue
		}
		fmt.Printf("%-16s ok      %d tools @ %.12s\n", name, len(res.Spec.Tools), res.Spec.Revision)
	}
}
