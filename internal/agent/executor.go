package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/signalnine/verifierbench/internal/gateway"
	"github.com/signalnine/verifierbench/internal/search"
)

// Execution is one executor run: the raw output and the executor's own
// exchange, kept for self-critique.
type Execution struct {
	Task     TaskSpec
	Output   RawOutput
	Exchange *Exchange
}

type narrateInput struct {
	Task    TaskSpec
	Query   string
	Results []search.Result
}

type critiqueInput struct {
	Exec      *Execution
	Checklist Checklist
}

type Executor struct {
	gw         gateway.Gateway
	opts       gateway.Options
	tool       search.Tool
	maxResults int
	narrate    Role[narrateInput, string]
	critique   Role[critiqueInput, Verdict]
}

func NewExecutor(gw gateway.Gateway, opts gateway.Options, tool search.Tool, maxResults int) *Executor {
	return &Executor{
		gw:         gw,
		opts:       opts,
		tool:       tool,
		maxResults: maxResults,
		narrate: Role[narrateInput, string]{
			Name:   "executor",
			System: executorSystem,
			Build: func(in narrateInput) string {
				results := formatResults(in.Results)
				if results == "" {
					results = "(no results)\n"
				}
				return fmt.Sprintf(executorUser, in.Task.Description, in.Query, results)
			},
			Parse: func(_ narrateInput, response string) (string, error) {
				return strings.TrimSpace(response), nil
			},
		},
		critique: Role[critiqueInput, Verdict]{
			Name:   "self-critic",
			System: executorSystem,
			Build: func(in critiqueInput) string {
				return fmt.Sprintf(critiqueUser, in.Exec.request(), in.Exec.Output.Text(), numbered(in.Checklist), judgmentFormat)
			},
			Parse: func(in critiqueInput, response string) (Verdict, error) {
				return parseVerdict(in.Checklist, response)
			},
			JSON: true,
		},
	}
}

// Execute runs one search for the task and narrates the results. A failed
// search is recorded in the output and returned as ErrExecution without a
// model call. A gateway failure during narration returns the partial
// Execution and the gateway error.
func (e *Executor) Execute(ctx context.Context, task TaskSpec) (*Execution, error) {
	query := strings.TrimSpace(task.Description)
	exec := &Execution{Task: task, Output: RawOutput{Query: query}}

	res, err := e.tool.Search(ctx, query, e.maxResults)
	if err != nil {
		exec.Output.ToolError = err.Error()
		return exec, fmt.Errorf("%w: %w", ErrExecution, err)
	}
	exec.Output.Results = res.Collect()

	narrative, ex, err := e.narrate.Call(ctx, e.gw, e.opts, narrateInput{Task: task, Query: query, Results: exec.Output.Results})
	if err != nil {
		return exec, err
	}
	exec.Output.Narrative = narrative
	exec.Exchange = ex
	return exec, nil
}

// Critique asks the executor role to judge its own output against the
// checklist, with the same reading rules as Verifier.Verify.
func (e *Executor) Critique(ctx context.Context, exec *Execution, checklist Checklist) (*Judgment, error) {
	if len(checklist) == 0 {
		return &Judgment{Verdict: failVerdict("empty checklist")}, fmt.Errorf("%w: empty checklist", ErrVerdictParse)
	}
	verdict, ex, err := e.critique.Call(ctx, e.gw, e.opts, critiqueInput{Exec: exec, Checklist: checklist})
	if ex == nil {
		return nil, err
	}
	return &Judgment{Verdict: verdict, Exchange: ex}, err
}

// request is the prompt the executor answered, or the bare task when the
// executor never reached the model.
func (x *Execution) request() string {
	if x.Exchange != nil {
		return strings.TrimSpace(x.Exchange.User)
	}
	return "Task: " + x.Task.Description
}
