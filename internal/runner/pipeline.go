package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/signalnine/verifierbench/internal/agent"
	"github.com/signalnine/verifierbench/internal/config"
	"github.com/signalnine/verifierbench/internal/gateway"
	"github.com/signalnine/verifierbench/internal/result"
	"github.com/signalnine/verifierbench/internal/search"
	"github.com/signalnine/verifierbench/internal/tracing"
)

// Stages a unit passes through, in order.
const (
	StagePlanned       = "PLANNED"
	StageExecuted      = "EXECUTED"
	StageSelfCritiqued = "SELF-CRITIQUED"
	StageVerified      = "VERIFIED"
	StageDone          = "DONE"
)

// Pipeline holds the three agents bound to one backend.
type Pipeline struct {
	Planner  *agent.Planner
	Executor *agent.Executor
	Verifier *agent.Verifier
}

func NewPipeline(gw gateway.Gateway, opts gateway.Options, tool search.Tool, maxResults int) *Pipeline {
	return &Pipeline{
		Planner:  agent.NewPlanner(gw, opts),
		Executor: agent.NewExecutor(gw, opts, tool, maxResults),
		Verifier: agent.NewVerifier(gw, opts),
	}
}

// Run drives one goal through variant v, filling rec as stages complete.
// The returned error is what the unit recorded; rec.Verdict stays empty
// when the unit ended before a verdict.
func (p *Pipeline) Run(ctx context.Context, v config.Variant, goal string, rec *result.RunRecord) (err error) {
	var exchanges []*agent.Exchange
	defer func() {
		rec.InputTokens, rec.OutputTokens = agent.Tokens(exchanges...)
		if err != nil {
			rec.Error = err.Error()
			rec.ErrorKind = ErrorKind(err)
		}
	}()

	plan, err := stage(ctx, "plan", func(ctx context.Context) (*agent.Plan, error) {
		return p.Planner.Plan(ctx, goal)
	})
	if plan != nil {
		exchanges = append(exchanges, plan.Exchange)
	}
	if err != nil {
		return err
	}
	rec.Task = plan.Task.Description
	rec.Checklist = plan.Checklist
	rec.Stages = append(rec.Stages, StagePlanned)

	exec, execErr := stage(ctx, "execute", func(ctx context.Context) (*agent.Execution, error) {
		return p.Executor.Execute(ctx, plan.Task)
	})
	if exec != nil {
		rec.RawOutput = exec.Output.Text()
		exchanges = append(exchanges, exec.Exchange)
	}
	if execErr != nil && !errors.Is(execErr, agent.ErrExecution) {
		return execErr
	}
	rec.Stages = append(rec.Stages, StageExecuted)

	var (
		judgment *agent.Judgment
		judgeErr error
		reached  string
	)
	switch v {
	case config.VariantNoVerifier:
		setVerdict(rec, agent.Unverified(execErr))
		rec.Stages = append(rec.Stages, StageDone)
		return execErr
	case config.VariantSelfVerifier:
		reached = StageSelfCritiqued
		judgment, judgeErr = stage(ctx, "self-critique", func(ctx context.Context) (*agent.Judgment, error) {
			return p.Executor.Critique(ctx, exec, plan.Checklist)
		})
	case config.VariantVerifier:
		reached = StageVerified
		judgment, judgeErr = stage(ctx, "verify", func(ctx context.Context) (*agent.Judgment, error) {
			return p.Verifier.Verify(ctx, plan.Checklist, exec.Output)
		})
	default:
		return fmt.Errorf("unknown variant %q", v)
	}

	if judgment == nil {
		return errors.Join(execErr, judgeErr)
	}
	exchanges = append(exchanges, judgment.Exchange)
	setVerdict(rec, judgment.Verdict)
	rec.Stages = append(rec.Stages, reached, StageDone)
	return errors.Join(execErr, judgeErr)
}

// stage runs fn inside its own span.
func stage[T any](ctx context.Context, name string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := tracing.Start(ctx, name, tracing.AttrStage.String(name))
	out, err := fn(ctx)
	tracing.End(span, err)
	return out, err
}

func setVerdict(rec *result.RunRecord, v agent.Verdict) {
	rec.Verdict = string(v.Outcome)
	rec.Rationale = v.Rationale
	rec.Judgments = nil
	for _, item := range v.Items {
		rec.Judgments = append(rec.Judgments, result.Judgment{Item: item.Item, Satisfied: item.Satisfied, Reason: item.Reason})
	}
}
