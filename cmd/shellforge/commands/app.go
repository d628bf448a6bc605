package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/shellforge/shellforge/pkg/config"
	"github.com/shellforge/shellforge/pkg/descriptor"
	"github.com/shellforge/shellforge/pkg/platform"
	"github.com/shellforge/shellforge/pkg/policy"
	"github.com/shellforge/shellforge/pkg/resolver"
	"github.com/shellforge/shellforge/pkg/shell"
	"github.com/shellforge/shellforge/pkg/snapshot"
	"github.com/shellforge/shellforge/pkg/telemetry"
)

// app wires the settings, telemetry, and collaborators a command needs.
type app struct {
	settings  *config.Settings
	telemetry *telemetry.Telemetry
	logger    zerolog.Logger
	parser    *descriptor.Parser
	resolver  *resolver.Resolver
	policies  *policy.Engine
	launcher  *shell.Launcher
	cache     *snapshot.Cache
}

// newApp builds the full collaborator chain from the settings file.
func newApp(ctx context.Context, version string) (*app, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	telCfg := settings.TelemetryConfig(version)
	if verbose {
		telCfg.Logging.Level = "debug"
	}

	tel, err := telemetry.New(telCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	logger := tel.Logger.NewComponentLogger("cli").Zerolog()

	if telCfg.Metrics.Enabled {
		if err := tel.Metrics.StartMetricsServer(); err != nil {
			logger.Warn().Err(err).Msg("Failed to start metrics server")
		}
	}

	var evaluator resolver.SnapshotEvaluator
	evaluator = snapshot.NewHTTPEvaluator(settings.SnapshotConfig(), logger, tel.Metrics)

	var cache *snapshot.Cache
	if settings.Cache.Enabled {
		path, err := settings.CachePath()
		if err != nil {
			return nil, err
		}
		cache, err = snapshot.NewCache(path, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot cache: %w", err)
		}
		if err := cache.Init(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize snapshot cache: %w", err)
		}
		evaluator = snapshot.NewCachingEvaluator(evaluator, cache, logger, tel.Metrics)
	}

	policies, err := policy.NewEngine(logger)
	if err != nil {
		return nil, err
	}
	if len(settings.PolicyPaths) > 0 {
		if err := policies.LoadPolicies(ctx, settings.PolicyPaths); err != nil {
			return nil, err
		}
	}

	return &app{
		settings:  settings,
		telemetry: tel,
		logger:    logger,
		parser:    descriptor.NewParser(),
		resolver:  resolver.New(evaluator, logger, tel.Metrics),
		policies:  policies,
		launcher:  shell.NewLauncher(logger),
		cache:     cache,
	}, nil
}

// Close releases the app's resources.
func (a *app) Close(ctx context.Context) {
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close snapshot cache")
		}
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to shut down telemetry")
	}
}

// loadDescriptor parses and fully validates a descriptor file.
func (a *app) loadDescriptor(ctx context.Context, path string) (*descriptor.Descriptor, error) {
	desc, err := a.parser.LoadStrict(ctx, path)
	if err != nil {
		return nil, err
	}
	return desc, nil
}

// enforcePolicies evaluates descriptor policies and fails on blocking
// violations.
func (a *app) enforcePolicies(ctx context.Context, desc *descriptor.Descriptor, pctx *policy.Context) error {
	result, err := a.policies.EvaluateDescriptor(ctx, desc, pctx)
	if err != nil {
		return fmt.Errorf("policy evaluation failed: %w", err)
	}

	for _, v := range result.Violations {
		event := a.logger.Warn()
		if v.Severity == policy.SeverityError || v.Severity == policy.SeverityCritical {
			event = a.logger.Error()
		}
		event.Str("policy", v.Policy).Str("input", v.Input).Msg(v.Message)
	}

	if !result.Allowed {
		return fmt.Errorf("descriptor rejected by policy")
	}

	return nil
}

// descriptorArg returns the descriptor path from positional args.
func descriptorArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return DefaultDescriptor
}

// parsePlatformFlags parses --platform values into resolver options.
func parsePlatformFlags(values []string, opts *resolver.Options) error {
	for _, v := range values {
		parsed, err := platform.Parse(v)
		if err != nil {
			return err
		}
		opts.Platforms = append(opts.Platforms, parsed)
	}
	return nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
