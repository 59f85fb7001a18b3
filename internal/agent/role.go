// Package agent implements the planner, executor and verifier roles. Each
// role is a Role: a system prompt, a prompt builder and a response parser
// driven through the model gateway.
package agent

import (
	"context"

	"github.com/signalnine/verifierbench/internal/gateway"
	"github.com/signalnine/verifierbench/internal/tracing"
)

// Role is one prompted model role. Name labels its model-call span.
type Role[In, Out any] struct {
	Name   string
	System string
	Build  func(In) string
	Parse  func(in In, response string) (Out, error)
	JSON   bool
}

// Call sends one prompt and parses the answer. A gateway failure returns a
// nil Exchange. A parse failure returns the Exchange together with whatever
// the parser produced, so callers can apply their own default.
func (r *Role[In, Out]) Call(ctx context.Context, gw gateway.Gateway, opts gateway.Options, in In) (_ Out, _ *Exchange, err error) {
	ctx, span := tracing.Start(ctx, "model."+r.Name, tracing.AttrRole.String(r.Name))
	defer func() { tracing.End(span, err) }()

	var zero Out
	prompt := gateway.Prompt{System: r.System, User: r.Build(in)}
	opts.JSON = r.JSON
	completion, err := gw.Complete(ctx, prompt, opts)
	if err != nil {
		return zero, nil, err
	}
	ex := &Exchange{
		System:       prompt.System,
		User:         prompt.User,
		Response:     completion.Text,
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
	}
	out, err := r.Parse(in, completion.Text)
	return out, ex, err
}
