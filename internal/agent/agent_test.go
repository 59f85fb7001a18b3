package agent_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/verifierbench/internal/agent"
	"github.com/signalnine/verifierbench/internal/gateway"
	"github.com/signalnine/verifierbench/internal/gateway/gatewaytest"
	"github.com/signalnine/verifierbench/internal/result"
	"github.com/signalnine/verifierbench/internal/search"
	"github.com/signalnine/verifierbench/internal/tracing"
)

const (
	matchPlanner  = "meticulous planner"
	matchCritique = "critically evaluate your own work"
	matchExecutor = "executor agent"
	matchVerifier = "scrupulous verifier"
)

var opts = gateway.Options{ModelID: "test"}

func staticTool(results ...search.Result) search.Tool {
	return search.Func(func(_ context.Context, _ string, max int) (*search.Results, error) {
		return search.FromSlice(results, max), nil
	})
}

func failingTool() search.Tool {
	return search.Func(func(context.Context, string, int) (*search.Results, error) {
		return nil, fmt.Errorf("%w: connection reset", search.ErrSearchUnavailable)
	})
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantErr  bool
		wantTask string
		wantList agent.Checklist
	}{
		{
			name:     "plain",
			response: `{"task":"search for current Tokyo population","checklist":["includes a number","cites a source"]}`,
			wantTask: "search for current Tokyo population",
			wantList: agent.Checklist{"includes a number", "cites a source"},
		},
		{
			name:     "fenced with preamble",
			response: "Here is the plan:\n```json\n{\"task\":\"  t  \",\"checklist\":[\" a \",\"\",\"b\"]}\n```",
			wantTask: "t",
			wantList: agent.Checklist{"a", "b"},
		},
		{name: "zero items", response: `{"task":"t","checklist":[]}`, wantErr: true},
		{name: "only blank items", response: `{"task":"t","checklist":["  ",""]}`, wantErr: true},
		{name: "empty task", response: `{"task":" ","checklist":["a"]}`, wantErr: true},
		{name: "missing checklist", response: `{"task":"t"}`, wantErr: true},
		{name: "checklist not strings", response: `{"task":"t","checklist":[1,2]}`, wantErr: true},
		{name: "not json", response: `I would search for Tokyo.`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := gatewaytest.New(gatewaytest.Rule{Match: matchPlanner, Text: tt.response})
			plan, err := agent.NewPlanner(gw, opts).Plan(context.Background(), "goal")
			if tt.wantErr {
				assert.ErrorIs(t, err, agent.ErrPlanParse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantTask, plan.Task.Description)
			assert.Equal(t, agent.ToolSearch, plan.Task.ToolHint)
			assert.Equal(t, tt.wantList, plan.Checklist)
			assert.NotEmpty(t, plan.Checklist)
			require.NotNil(t, plan.Exchange)
			assert.Equal(t, 10, plan.Exchange.InputTokens)
		})
	}
}

func TestPlanGatewayError(t *testing.T) {
	gw := gatewaytest.New(gatewaytest.Rule{Match: matchPlanner, Err: gateway.ErrModelRefusal})
	plan, err := agent.NewPlanner(gw, opts).Plan(context.Background(), "goal")
	assert.Nil(t, plan)
	assert.ErrorIs(t, err, gateway.ErrModelRefusal)
	assert.NotErrorIs(t, err, agent.ErrPlanParse)
}

func TestExecuteEmptyResultsIsNotAnError(t *testing.T) {
	gw := gatewaytest.New(gatewaytest.Rule{Match: matchExecutor, Text: "The search returned nothing."})
	exec, err := agent.NewExecutor(gw, opts, staticTool(), 3).Execute(context.Background(), agent.TaskSpec{Description: " q "})
	require.NoError(t, err)
	assert.Equal(t, "q", exec.Output.Query)
	assert.False(t, exec.Output.Failed())
	assert.Empty(t, exec.Output.Results)
	assert.Contains(t, exec.Output.Text(), "returned no results")
	assert.Equal(t, "The search returned nothing.", exec.Output.Narrative)
}

func TestExecuteToolFailure(t *testing.T) {
	gw := gatewaytest.New(gatewaytest.Rule{Match: matchExecutor, Text: "narrative"})
	exec, err := agent.NewExecutor(gw, opts, failingTool(), 3).Execute(context.Background(), agent.TaskSpec{Description: "q"})
	assert.ErrorIs(t, err, agent.ErrExecution)
	assert.ErrorIs(t, err, search.ErrSearchUnavailable)
	require.NotNil(t, exec)
	assert.True(t, exec.Output.Failed())
	assert.Contains(t, exec.Output.Text(), "Search tool error")
	assert.Zero(t, gw.CallsMatching(matchExecutor), "no model call after a failed search")
}

func TestExecuteBoundsResults(t *testing.T) {
	gw := gatewaytest.New(gatewaytest.Rule{Match: matchExecutor, Text: "n"})
	tool := staticTool(search.Result{Title: "a"}, search.Result{Title: "b"}, search.Result{Title: "c"})
	exec, err := agent.NewExecutor(gw, opts, tool, 2).Execute(context.Background(), agent.TaskSpec{Description: "q"})
	require.NoError(t, err)
	assert.Len(t, exec.Output.Results, 2)
}

func TestExecuteNarrationFailure(t *testing.T) {
	gw := gatewaytest.New(gatewaytest.Rule{Match: matchExecutor, Err: gateway.ErrModelUnavailable})
	exec, err := agent.NewExecutor(gw, opts, staticTool(search.Result{Title: "a"}), 3).Execute(context.Background(), agent.TaskSpec{Description: "q"})
	assert.ErrorIs(t, err, gateway.ErrModelUnavailable)
	assert.NotErrorIs(t, err, agent.ErrExecution)
	require.NotNil(t, exec)
	assert.Len(t, exec.Output.Results, 1)
	assert.Nil(t, exec.Exchange)
}

func TestVerifyAggregation(t *testing.T) {
	checklist := agent.Checklist{"first", "second", "third"}
	tests := []struct {
		name     string
		response string
		want     agent.Outcome
		parseErr bool
	}{
		{
			name:     "all satisfied",
			response: `{"judgments":[{"index":1,"satisfied":true},{"index":2,"satisfied":true},{"index":3,"satisfied":true}],"rationale":"ok"}`,
			want:     agent.Pass,
		},
		{
			name:     "one false is enough",
			response: `{"judgments":[{"index":1,"satisfied":true},{"index":2,"satisfied":false},{"index":3,"satisfied":true}]}`,
			want:     agent.Fail,
		},
		{
			name:     "out of order",
			response: `{"judgments":[{"index":3,"satisfied":true},{"index":1,"satisfied":true},{"index":2,"satisfied":true}]}`,
			want:     agent.Pass,
		},
		{name: "malformed", response: `{"judgments": [ {"index":1, "satisfied": "yes"`, want: agent.Fail, parseErr: true},
		{name: "prose", response: `All conditions are satisfied. PASS.`, want: agent.Fail, parseErr: true},
		{
			name:     "missing item",
			response: `{"judgments":[{"index":1,"satisfied":true},{"index":2,"satisfied":true}]}`,
			want:     agent.Fail, parseErr: true,
		},
		{
			name:     "duplicate item",
			response: `{"judgments":[{"index":1,"satisfied":true},{"index":1,"satisfied":true},{"index":2,"satisfied":true}]}`,
			want:     agent.Fail, parseErr: true,
		},
		{
			name:     "index out of range",
			response: `{"judgments":[{"index":1,"satisfied":true},{"index":2,"satisfied":true},{"index":4,"satisfied":true}]}`,
			want:     agent.Fail, parseErr: true,
		},
		{
			name:     "satisfied missing",
			response: `{"judgments":[{"index":1},{"index":2,"satisfied":true},{"index":3,"satisfied":true}]}`,
			want:     agent.Fail, parseErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := gatewaytest.New(gatewaytest.Rule{Match: matchVerifier, Text: tt.response})
			j, err := agent.NewVerifier(gw, opts).Verify(context.Background(), checklist, agent.RawOutput{Query: "q"})
			require.NotNil(t, j)
			assert.Equal(t, tt.want, j.Verdict.Outcome)
			if tt.parseErr {
				assert.ErrorIs(t, err, agent.ErrVerdictParse)
			} else {
				require.NoError(t, err)
				assert.Len(t, j.Verdict.Items, 3)
				assert.Equal(t, "second", j.Verdict.Items[1].Item)
			}
		})
	}
}

func TestVerifyEmptyChecklistFails(t *testing.T) {
	gw := gatewaytest.New()
	j, err := agent.NewVerifier(gw, opts).Verify(context.Background(), nil, agent.RawOutput{})
	assert.ErrorIs(t, err, agent.ErrVerdictParse)
	assert.Equal(t, agent.Fail, j.Verdict.Outcome)
	assert.Empty(t, gw.Calls())
}

func TestVerifyGatewayError(t *testing.T) {
	gw := gatewaytest.New(gatewaytest.Rule{Match: matchVerifier, Err: gateway.ErrModelTimeout})
	j, err := agent.NewVerifier(gw, opts).Verify(context.Background(), agent.Checklist{"a"}, agent.RawOutput{})
	assert.Nil(t, j)
	assert.ErrorIs(t, err, gateway.ErrModelTimeout)
}

func TestVerifierSeesOnlyChecklistAndOutput(t *testing.T) {
	gw := gatewaytest.New(gatewaytest.Rule{Match: matchVerifier, Text: `{"judgments":[{"index":1,"satisfied":false}]}`})
	out := agent.RawOutput{Query: "q", Results: []search.Result{{Title: "Result title", Snippet: "snippet text"}}, Narrative: "narrative text"}
	_, err := agent.NewVerifier(gw, opts).Verify(context.Background(), agent.Checklist{"item one"}, out)
	require.NoError(t, err)

	calls := gw.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].User, "snippet text")
	assert.Contains(t, calls[0].User, "1. item one")
	assert.NotContains(t, calls[0].System, "executor agent")
}

func TestRawOutputSurvivesResultsCSV(t *testing.T) {
	out := agent.RawOutput{
		Query:     "tokyo population",
		Results:   []search.Result{{Title: "Tokyo", Link: "https://example.com", Snippet: "line1\r\nline2"}},
		Narrative: "first\r\nsecond",
	}
	text := out.Text()
	assert.NotContains(t, text, "\r\n")
	assert.Contains(t, text, "line1\nline2")

	path := filepath.Join(t.TempDir(), result.CSVName)
	l, err := result.OpenCSV(path)
	require.NoError(t, err)
	rec := result.NewRecord(1, "goal", "verifier", "fake", "fake-model")
	rec.RawOutput = text
	require.NoError(t, l.Append(*rec))
	require.NoError(t, l.Close())

	records, err := result.ReadCSV(path)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, text, records[0].RawOutput)
}

func TestModelCallsAreTracedByRole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	tp, err := tracing.Setup(path, "test")
	require.NoError(t, err)

	gw := gatewaytest.New(
		gatewaytest.Rule{Match: matchPlanner, Text: `{"task":"tokyo population","checklist":["states a figure"]}`},
		gatewaytest.Rule{Match: matchVerifier, Err: gateway.ErrModelTimeout},
	)
	_, err = agent.NewPlanner(gw, opts).Plan(context.Background(), "Find the population of Tokyo.")
	require.NoError(t, err)
	_, err = agent.NewVerifier(gw, opts).Verify(context.Background(), agent.Checklist{"states a figure"}, agent.RawOutput{Query: "q"})
	require.ErrorIs(t, err, gateway.ErrModelTimeout)
	require.NoError(t, tp.Shutdown(context.Background()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	trace := string(data)
	assert.Contains(t, trace, `"Name":"model.planner"`)
	assert.Contains(t, trace, `"Name":"model.verifier"`)
	assert.Contains(t, trace, "verifierbench.role")
	assert.Contains(t, trace, "model timeout")
}

func TestUnverified(t *testing.T) {
	assert.Equal(t, agent.Pass, agent.Unverified(nil).Outcome)
	assert.Equal(t, agent.Fail, agent.Unverified(fmt.Errorf("%w: boom", agent.ErrExecution)).Outcome)
}

func TestCritiqueReusesExecutorContext(t *testing.T) {
	gw := gatewaytest.New(
		gatewaytest.Rule{Match: matchCritique, Text: `{"judgments":[{"index":1,"satisfied":true}],"rationale":"looks right"}`},
		gatewaytest.Rule{Match: matchExecutor, Text: "Tokyo has 14 million people."},
	)
	ex := agent.NewExecutor(gw, opts, staticTool(search.Result{Title: "Tokyo", Snippet: "14,047,594"}), 3)
	exec, err := ex.Execute(context.Background(), agent.TaskSpec{Description: "tokyo population"})
	require.NoError(t, err)

	j, err := ex.Critique(context.Background(), exec, agent.Checklist{"has a number"})
	require.NoError(t, err)
	assert.Equal(t, agent.Pass, j.Verdict.Outcome)
	assert.Equal(t, "looks right", j.Verdict.Rationale)

	calls := gw.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, calls[0].System, calls[1].System, "critique uses the executor's system prompt")
	assert.Contains(t, calls[1].User, calls[0].User)
	assert.Contains(t, calls[1].User, "Tokyo has 14 million people.")
}

func TestCritiqueMalformedFails(t *testing.T) {
	gw := gatewaytest.New(gatewaytest.Rule{Match: matchCritique, Text: `I did great.`})
	ex := agent.NewExecutor(gw, opts, staticTool(), 3)
	j, err := ex.Critique(context.Background(), &agent.Execution{Task: agent.TaskSpec{Description: "q"}}, agent.Checklist{"a"})
	assert.ErrorIs(t, err, agent.ErrVerdictParse)
	assert.Equal(t, agent.Fail, j.Verdict.Outcome)
}

// Find the current population of Tokyo, with a search that returns a snippet
// carrying no figure.
func TestTokyoScenario(t *testing.T) {
	var searched string
	tool := search.Func(func(_ context.Context, q string, max int) (*search.Results, error) {
		searched = q
		return search.FromSlice([]search.Result{{
			Title:   "Tokyo - Wikipedia",
			Link:    "https://en.wikipedia.org/wiki/Tokyo",
			Snippet: "Tokyo is the capital and most populous city of Japan.",
		}}, max), nil
	})
	gw := gatewaytest.New(
		gatewaytest.Rule{Match: matchPlanner, Text: `{"task":"search for current Tokyo population","checklist":["response includes a numeric population figure","figure is attributed to a source or year"]}`},
		gatewaytest.Rule{Match: matchVerifier, Text: `{"judgments":[{"index":1,"satisfied":false,"reason":"no number in output"},{"index":2,"satisfied":false,"reason":"no figure to attribute"}],"rationale":"no population figure"}`},
		gatewaytest.Rule{Match: matchExecutor, Text: "The result describes Tokyo as the most populous city in Japan but gives no figure."},
	)
	ctx := context.Background()

	plan, err := agent.NewPlanner(gw, opts).Plan(ctx, "Find the current population of Tokyo.")
	require.NoError(t, err)
	require.Len(t, plan.Checklist, 2)

	exec, execErr := agent.NewExecutor(gw, opts, tool, 3).Execute(ctx, plan.Task)
	require.NoError(t, execErr)
	assert.Equal(t, "search for current Tokyo population", searched)
	assert.False(t, strings.ContainsAny(exec.Output.Narrative, "0123456789"), "narrative must not invent a number")

	j, err := agent.NewVerifier(gw, opts).Verify(ctx, plan.Checklist, exec.Output)
	require.NoError(t, err)
	assert.Equal(t, agent.Fail, j.Verdict.Outcome)
	assert.False(t, j.Verdict.Items[0].Satisfied)

	assert.Equal(t, agent.Pass, agent.Unverified(execErr).Outcome)
}

func TestNoVerifierIgnoresOutputContent(t *testing.T) {
	for _, out := range []agent.RawOutput{
		{Query: "q", Narrative: "no results found"},
		{Query: "q"},
	} {
		var execErr error
		if out.Failed() {
			execErr = errors.New("unexpected")
		}
		assert.Equal(t, agent.Pass, agent.Unverified(execErr).Outcome)
	}
}

func TestTokens(t *testing.T) {
	in, out := agent.Tokens(&agent.Exchange{InputTokens: 3, OutputTokens: 1}, nil, &agent.Exchange{InputTokens: 2, OutputTokens: 4})
	assert.Equal(t, 5, in)
	assert.Equal(t, 5, out)
}
