package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shellforge/shellforge/pkg/descriptor"
	"github.com/shellforge/shellforge/pkg/platform"
	"github.com/shellforge/shellforge/pkg/resolver"
	"github.com/shellforge/shellforge/pkg/telemetry"
)

const tracerName = "github.com/shellforge/shellforge/pkg/snapshot"

// Config holds HTTP evaluator configuration.
type Config struct {
	// Endpoints maps host shorthands (e.g. "github") to snapshot index
	// service base URLs.
	Endpoints map[string]string

	// Timeout bounds a single fetch attempt.
	Timeout time.Duration

	// MaxAttempts is the total number of fetch attempts per import.
	MaxAttempts int

	// BaseBackoff is the delay before the first retry; it doubles per
	// attempt up to MaxBackoff.
	BaseBackoff time.Duration

	// MaxBackoff caps the retry delay.
	MaxBackoff time.Duration
}

// DefaultConfig returns the default evaluator configuration.
func DefaultConfig() Config {
	return Config{
		Endpoints: map[string]string{
			"github":    "https://snapshots.shellforge.dev/github",
			"gitlab":    "https://snapshots.shellforge.dev/gitlab",
			"sourcehut": "https://snapshots.shellforge.dev/sourcehut",
		},
		Timeout:     30 * time.Second,
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  10 * time.Second,
	}
}

// HTTPEvaluator implements resolver.SnapshotEvaluator by fetching
// snapshot indexes over HTTP. Transport failures and server errors are
// retried with exponential backoff and jitter; client errors are
// terminal.
type HTTPEvaluator struct {
	config  Config
	client  *http.Client
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

// NewHTTPEvaluator creates an HTTP snapshot evaluator. metrics may be
// nil.
func NewHTTPEvaluator(cfg Config, logger zerolog.Logger, metrics *telemetry.Metrics) *HTTPEvaluator {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 10 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &HTTPEvaluator{
		config:  cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With().Str("component", "snapshot-http").Logger(),
		metrics: metrics,
	}
}

// ImportSnapshot fetches and evaluates the snapshot index for ref on the
// given platform.
func (e *HTTPEvaluator) ImportSnapshot(ctx context.Context, ref descriptor.SourceRef, p platform.Platform) (resolver.PackageSet, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "snapshot.import",
		trace.WithAttributes(
			attribute.String("source.ref", ref.String()),
			attribute.String("platform", p.String()),
		))
	defer span.End()

	started := time.Now()
	index, err := e.fetchIndex(ctx, ref, p)
	if err != nil {
		telemetry.RecordError(span, err)
		e.metrics.ObserveSnapshotFetch("failed", time.Since(started))
		return nil, err
	}
	telemetry.RecordSuccess(span)
	e.metrics.ObserveSnapshotFetch("fetched", time.Since(started))

	return newPackageSet(index), nil
}

// indexURL builds the snapshot index URL for a source reference.
func (e *HTTPEvaluator) indexURL(ref descriptor.SourceRef, p platform.Platform) (string, error) {
	base, ok := e.config.Endpoints[ref.Host]
	if !ok {
		return "", resolver.NewUnreachableSourceError(ref.String(),
			fmt.Errorf("unknown host %q", ref.Host))
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s/index.json", base, ref.Owner, ref.Repo, ref.Ref, p), nil
}

func (e *HTTPEvaluator) fetchIndex(ctx context.Context, ref descriptor.SourceRef, p platform.Platform) (*Index, error) {
	url, err := e.indexURL(ref, p)
	if err != nil {
		return nil, err
	}

	logger := e.logger.With().
		Str("source", ref.String()).
		Str("platform", p.String()).
		Logger()

	var lastErr error
	for attempt := 0; attempt < e.config.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := e.backoff(attempt - 1)
			logger.Debug().
				Int("attempt", attempt+1).
				Dur("backoff", backoff).
				Msg("retrying snapshot fetch")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, resolver.NewUnreachableSourceError(ref.String(), ctx.Err())
			}
		}

		index, retryable, err := e.fetchOnce(ctx, url, ref, p)
		if err == nil {
			return index, nil
		}
		lastErr = err
		if !retryable {
			break
		}
	}

	logger.Warn().Err(lastErr).Msg("snapshot fetch failed")
	return nil, lastErr
}

// fetchOnce performs a single fetch attempt. The second return value
// reports whether the failure is worth retrying.
func (e *HTTPEvaluator) fetchOnce(ctx context.Context, url string, ref descriptor.SourceRef, p platform.Platform) (*Index, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, resolver.NewUnreachableSourceError(ref.String(), err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		// Transport errors (DNS, connection refused, timeout) may be
		// transient.
		return nil, true, resolver.NewUnreachableSourceError(ref.String(), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return nil, true, resolver.NewUnreachableSourceError(ref.String(),
			fmt.Errorf("server returned %s", resp.Status))
	default:
		// 4xx: unknown repo, ref, or platform. Retrying cannot help.
		return nil, false, resolver.NewUnreachableSourceError(ref.String(),
			fmt.Errorf("server returned %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, true, resolver.NewUnreachableSourceError(ref.String(), err)
	}

	var index Index
	if err := json.Unmarshal(body, &index); err != nil {
		return nil, false, resolver.NewUnreachableSourceError(ref.String(),
			fmt.Errorf("malformed snapshot index: %w", err))
	}

	if index.Revision == "" {
		return nil, false, resolver.NewUnreachableSourceError(ref.String(),
			fmt.Errorf("snapshot index has no revision"))
	}
	if index.Platform == "" {
		index.Platform = p
	}

	return &index, false, nil
}

// backoff computes the exponential backoff delay with ±20% jitter.
func (e *HTTPEvaluator) backoff(retry int) time.Duration {
	delay := time.Duration(float64(e.config.BaseBackoff) * math.Pow(2, float64(retry)))
	if delay > e.config.MaxBackoff {
		delay = e.config.MaxBackoff
	}
	jitter := 0.8 + 0.4*rand.Float64()
	return time.Duration(float64(delay) * jitter)
}
