package agent

import (
	"errors"
	"fmt"
	"strings"

	"github.com/signalnine/verifierbench/internal/search"
)

var (
	// ErrPlanParse means the planner response could not be decomposed into a
	// task and at least one checklist item.
	ErrPlanParse = errors.New("plan parse error")
	// ErrExecution means the executor's tool call failed. The RawOutput
	// still records the failure.
	ErrExecution = errors.New("execution error")
	// ErrVerdictParse means a judge response could not be read as one
	// judgment per checklist item. The accompanying verdict is FAIL.
	ErrVerdictParse = errors.New("verdict parse error")
)

const ToolSearch = "search"

type TaskSpec struct {
	Description string
	ToolHint    string
}

// Checklist holds the planner's success conditions in order.
type Checklist []string

// RawOutput is the executor's unmodified tool result plus its narrative.
// Judges see it only through Text.
type RawOutput struct {
	Query     string
	Results   []search.Result
	ToolError string
	Narrative string
}

func (o RawOutput) Failed() bool {
	return o.ToolError != ""
}

// Text renders the output the judges see. Line endings are normalized to
// \n so the stored text reads back byte for byte from the results CSV.
func (o RawOutput) Text() string {
	return strings.ReplaceAll(o.text(), "\r\n", "\n")
}

func (o RawOutput) text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Search query: %s\n", o.Query)
	if o.Failed() {
		fmt.Fprintf(&b, "Search tool error: %s\n", o.ToolError)
		return b.String()
	}
	if len(o.Results) == 0 {
		b.WriteString("Search results: none (the search succeeded but returned no results)\n")
	} else {
		b.WriteString("Search results:\n")
		b.WriteString(formatResults(o.Results))
	}
	if o.Narrative != "" {
		fmt.Fprintf(&b, "Narrative:\n%s\n", o.Narrative)
	}
	return b.String()
}

func formatResults(results []search.Result) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s (%s)\n", i+1, r.Title, r.Link)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "    %s\n", r.Snippet)
		}
	}
	return b.String()
}

type Outcome string

const (
	Pass Outcome = "PASS"
	Fail Outcome = "FAIL"
)

type ItemJudgment struct {
	Item      string
	Satisfied bool
	Reason    string
}

type Verdict struct {
	Outcome   Outcome
	Items     []ItemJudgment
	Rationale string
}

// failVerdict is the closed-world default for anything a judge cannot
// state clearly.
func failVerdict(reason string) Verdict {
	return Verdict{Outcome: Fail, Rationale: reason}
}

// Exchange is one request/response with the model gateway.
type Exchange struct {
	System       string
	User         string
	Response     string
	InputTokens  int
	OutputTokens int
}

// Tokens sums token usage across exchanges, skipping nil ones.
func Tokens(exchanges ...*Exchange) (input, output int) {
	for _, e := range exchanges {
		if e == nil {
			continue
		}
		input += e.InputTokens
		output += e.OutputTokens
	}
	return
}
