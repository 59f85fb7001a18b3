package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/signalnine/verifierbench/internal/config"
	"github.com/signalnine/verifierbench/internal/metrics"
	"github.com/signalnine/verifierbench/internal/result"
	"github.com/signalnine/verifierbench/internal/tracing"
)

// Backend is a named model backend and the pipeline bound to it.
type Backend struct {
	Name     string
	Model    string
	Pipeline *Pipeline
}

// Harness runs every goal through every variant on every backend.
type Harness struct {
	Goals    []config.Goal
	Variants []config.Variant
	Backends []Backend
	Log      result.Log
	// Parallel is the number of units run at once; 0 or 1 runs them in order.
	Parallel int
	Logger   *slog.Logger
}

// Summary counts what a Run did.
type Summary struct {
	Units  int
	Passed int
	Errors int
}

type unit struct {
	goal    config.Goal
	variant config.Variant
	backend *Backend
}

func (h *Harness) units() []unit {
	var units []unit
	for _, g := range h.Goals {
		for _, v := range h.Variants {
			for i := range h.Backends {
				units = append(units, unit{goal: g, variant: v, backend: &h.Backends[i]})
			}
		}
	}
	return units
}

// Run executes all units. A failing unit is recorded and never stops the
// run; the returned error reports only result-log failures and
// cancellation.
func (h *Harness) Run(ctx context.Context) (*Summary, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}
	units := h.units()
	var passed, failed atomic.Int32

	jobs := make([]Job, len(units))
	for i, u := range units {
		jobs[i] = func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec := h.runUnit(ctx, u, logger, i+1, len(units))
			if rec.Passed() {
				passed.Add(1)
			}
			if rec.Error != "" {
				failed.Add(1)
			}
			if err := h.Log.Append(*rec); err != nil {
				return fmt.Errorf("appending %s/%s/goal %d: %w", u.variant, u.backend.Name, u.goal.ID, err)
			}
			return nil
		}
	}

	errs := RunPool(ctx, h.Parallel, jobs)
	summary := &Summary{Units: len(units), Passed: int(passed.Load()), Errors: int(failed.Load())}
	if ctx.Err() != nil {
		errs = append(errs, ctx.Err())
	}
	return summary, errors.Join(dedupe(errs)...)
}

func (h *Harness) runUnit(ctx context.Context, u unit, logger *slog.Logger, n, total int) *result.RunRecord {
	rec := result.NewRecord(u.goal.ID, u.goal.Text, string(u.variant), u.backend.Name, u.backend.Model)
	log := logger.With("goal_id", u.goal.ID, "variant", string(u.variant), "backend", u.backend.Name)

	ctx, span := tracing.Start(ctx, "unit",
		tracing.AttrGoalID.Int(u.goal.ID),
		tracing.AttrVariant.String(string(u.variant)),
		tracing.AttrBackend.String(u.backend.Name),
	)
	start := time.Now()
	err := u.backend.Pipeline.Run(ctx, u.variant, u.goal.Text, rec)
	elapsed := time.Since(start)
	rec.LatencyMS = elapsed.Milliseconds()
	span.SetAttributes(tracing.AttrVerdict.String(rec.Verdict))
	tracing.End(span, err)

	metrics.Observe(rec.Variant, rec.Backend, rec.Verdict, rec.ErrorKind, elapsed, rec.InputTokens, rec.OutputTokens)
	if err != nil {
		log.Warn("unit error", "n", n, "of", total, "verdict", rec.Verdict, "kind", rec.ErrorKind, "err", err)
	} else {
		log.Info("unit done", "n", n, "of", total, "verdict", rec.Verdict, "latency_ms", rec.LatencyMS)
	}
	return rec
}

// dedupe drops repeated cancellation errors from skipped units.
func dedupe(errs []error) []error {
	var out []error
	seen := false
	for _, err := range errs {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if seen {
				continue
			}
			seen = true
		}
		out = append(out, err)
	}
	return out
}
