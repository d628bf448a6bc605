package resolver

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shellforge/shellforge/pkg/descriptor"
	"github.com/shellforge/shellforge/pkg/platform"
	"github.com/shellforge/shellforge/pkg/telemetry"
)

const tracerName = "github.com/shellforge/shellforge/pkg/resolver"

// defaultMaxParallel bounds concurrent platform resolutions when the
// caller does not override it.
const defaultMaxParallel = 4

// Resolver resolves descriptors into platform-specific shell
// specifications. The snapshot evaluator is injected so resolution is a
// pure function of its explicit inputs; the resolver holds no mutable
// state of its own.
type Resolver struct {
	evaluator SnapshotEvaluator
	logger    zerolog.Logger
	metrics   *telemetry.Metrics
}

// New creates a resolver backed by the given snapshot evaluator. metrics
// may be nil.
func New(evaluator SnapshotEvaluator, logger zerolog.Logger, metrics *telemetry.Metrics) *Resolver {
	return &Resolver{
		evaluator: evaluator,
		logger:    logger.With().Str("component", "resolver").Logger(),
		metrics:   metrics,
	}
}

// Resolve produces the shell specification for one platform, or fails
// with a classified ResolveError. The descriptor is never mutated and the
// returned spec is freshly allocated; resolving the same pinned
// descriptor twice yields identical specs.
func (r *Resolver) Resolve(ctx context.Context, desc *descriptor.Descriptor, p platform.Platform) (*ShellSpec, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "resolver.Resolve",
		trace.WithAttributes(attribute.String("platform", p.String())))
	defer span.End()

	spec, err := r.resolve(ctx, desc, p)
	if err != nil {
		telemetry.RecordError(span, err)
		r.metrics.ObserveResolveError(string(KindOf(err)))
		return nil, err
	}
	telemetry.RecordSuccess(span)
	return spec, nil
}

func (r *Resolver) resolve(ctx context.Context, desc *descriptor.Descriptor, p platform.Platform) (*ShellSpec, error) {
	if !platform.IsDefault(p) {
		return nil, NewUnsupportedPlatformError(p.String())
	}

	shell := desc.Outputs.DevShell
	if shell == nil {
		return nil, &ResolveError{
			Kind:     ErrKindUnresolvedInput,
			Message:  "descriptor declares no devShell output",
			Platform: p.String(),
		}
	}

	ref, ok := desc.Inputs[shell.From]
	if !ok {
		return nil, NewUnresolvedInputError(shell.From).WithPlatform(p.String())
	}

	logger := r.logger.With().
		Str("platform", p.String()).
		Str("source", ref.String()).
		Logger()
	logger.Debug().Strs("build_inputs", shell.BuildInputs).Msg("resolving dev shell")

	pkgs, err := r.evaluator.ImportSnapshot(ctx, ref, p)
	if err != nil {
		return nil, withPlatform(err, p)
	}

	tools := make([]ToolReference, 0, len(shell.BuildInputs))
	for _, toolID := range shell.BuildInputs {
		tool, err := pkgs.Lookup(toolID)
		if err != nil {
			// Never return a partial specification.
			return nil, withPlatform(err, p)
		}
		tools = append(tools, tool)
	}

	env := make(map[string]string, len(shell.Env))
	for k, v := range shell.Env {
		env[k] = v
	}

	logger.Info().
		Str("revision", pkgs.Revision()).
		Int("tools", len(tools)).
		Msg("resolved dev shell")

	return &ShellSpec{
		Platform:   p,
		Input:      shell.From,
		Source:     ref.Pin(pkgs.Revision()),
		Revision:   pkgs.Revision(),
		Tools:      tools,
		Env:        env,
		ResolvedAt: time.Now(),
	}, nil
}

// ResolveAll applies Resolve once per platform, independently and with
// bounded parallelism. Per-platform failures do not abort sibling
// resolutions; every requested platform appears in the result exactly
// once.
func (r *Resolver) ResolveAll(ctx context.Context, desc *descriptor.Descriptor, opts Options) (*ResolutionSet, error) {
	platforms := opts.Platforms
	if len(platforms) == 0 {
		platforms = platform.DefaultPlatforms()
	}

	maxParallel := opts.MaxParallel
	if maxParallel <= 0 {
		maxParallel = defaultMaxParallel
	}
	if len(platforms) < maxParallel {
		maxParallel = len(platforms)
	}

	set := &ResolutionSet{
		ID:        uuid.New().String(),
		Results:   make(map[platform.Platform]*PlatformResult, len(platforms)),
		StartedAt: time.Now(),
	}

	r.metrics.ObserveResolutionStarted()
	r.logger.Info().
		Str("run_id", set.ID).
		Int("platforms", len(platforms)).
		Int("max_parallel", maxParallel).
		Msg("starting full resolution")

	workQueue := make(chan platform.Platform, len(platforms))
	for _, p := range platforms {
		workQueue <- p
	}
	close(workQueue)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for i := 0; i < maxParallel; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range workQueue {
				started := time.Now()
				spec, err := r.Resolve(ctx, desc, p)

				result := &PlatformResult{
					Platform: p,
					Spec:     spec,
					Duration: time.Since(started),
				}
				if err != nil {
					result.Error = asResolveError(err)
					r.logger.Warn().
						Str("run_id", set.ID).
						Str("platform", p.String()).
						Err(err).
						Msg("platform resolution failed")
				}

				mu.Lock()
				set.Results[p] = result
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	set.Duration = time.Since(set.StartedAt)

	failed := len(set.Failed())
	r.metrics.ObserveResolutionCompleted(failed == 0, set.Duration)
	r.logger.Info().
		Str("run_id", set.ID).
		Int("succeeded", len(platforms)-failed).
		Int("failed", failed).
		Dur("duration", set.Duration).
		Msg("full resolution finished")

	return set, nil
}

// withPlatform attaches platform context to a classified error, wrapping
// unclassified errors as unreachable-source failures.
func withPlatform(err error, p platform.Platform) error {
	return asResolveError(err).WithPlatform(p.String())
}

func asResolveError(err error) *ResolveError {
	var re *ResolveError
	if errors.As(err, &re) {
		return re
	}
	return &ResolveError{
		Kind:    ErrKindUnreachableSource,
		Message: "resolution aborted",
		Err:     err,
	}
}
