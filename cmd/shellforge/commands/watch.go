package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/shellforge/shellforge/pkg/policy"
	"github.com/shellforge/shellforge/pkg/resolver"
)

func newWatchCommand(version string) *cobra.Command {
	var platforms []string

	cmd := &cobra.Command{
		Use:   "watch [descriptor]",
		Short: "Re-resolve the descriptor whenever it changes",
		Long: `Watch a descriptor file and re-resolve on every change.

Edits are debounced; parse errors are reported and watching continues.`,
		Example: `  # Watch the default descriptor
  shellforge watch

  # Watch a specific descriptor for one platform
  shellforge watch ./env.cue --platform x86_64-linux`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app, err := newApp(ctx, version)
			if err != nil {
				return err
			}
			defer app.Close(ctx)

			descPath := descriptorArg(args)

			opts := resolver.Options{MaxParallel: app.settings.Resolver.MaxParallel}
			if err := parsePlatformFlags(platforms, &opts); err != nil {
				return err
			}

			resolveOnce := func() {
				desc, err := app.loadDescriptor(ctx, descPath)
				if err != nil {
					app.logger.Error().Err(err).Msg("Descriptor is invalid")
					return
				}
				if err := app.enforcePolicies(ctx, desc, &policy.Context{Mode: "unlocked", Operation: "watch"}); err != nil {
					app.logger.Error().Err(err).Msg("Descriptor rejected by policy")
					return
				}
				set, err := app.resolver.ResolveAll(ctx, desc, opts)
				if err != nil {
					app.logger.Error().Err(err).Msg("Resolution failed")
					return
				}
				printResolutionSet(set)
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("failed to create watcher: %w", err)
			}
			defer func() { _ = watcher.Close() }()

			// Watch the directory: editors replace files on save, which
			// drops a direct file watch.
			if err := watcher.Add(filepath.Dir(descPath)); err != nil {
				return fmt.Errorf("failed to watch %s: %w", descPath, err)
			}

			// Policy files hot-reload alongside the descriptor, so edits
			// to either take effect on the next change.
			if len(app.settings.PolicyPaths) > 0 {
				policyLoader := policy.NewLoader(app.logger)
				err := policyLoader.Watch(ctx, app.settings.PolicyPaths, func(policies []policy.Policy) error {
					return app.policies.ReplacePolicies(ctx, policies)
				})
				if err != nil {
					return fmt.Errorf("failed to watch policy paths: %w", err)
				}
				defer func() { _ = policyLoader.StopWatching() }()
			}

			app.logger.Info().Str("descriptor", descPath).Msg("Watching for changes")
			resolveOnce()

			var debounce *time.Timer
			for {
				select {
				case <-ctx.Done():
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(event.Name) != filepath.Clean(descPath) {
						continue
					}
					if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
						continue
					}

					if debounce != nil {
						debounce.Stop()
					}
					debounce = time.AfterFunc(300*time.Millisecond, func() {
						app.logger.Info().Str("descriptor", descPath).Msg("Descriptor changed, re-resolving")
						resolveOnce()
					})

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					app.logger.Error().Err(err).Msg("Watcher error")
				}
			}
		},
	}

	cmd.Flags().StringSliceVar(&platforms, "platform", nil, "platform to resolve (repeatable, default: all)")

	return cmd
}
