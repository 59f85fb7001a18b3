// Package gatewaytest provides a scripted in-memory Gateway for tests.
package gatewaytest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/signalnine/verifierbench/internal/gateway"
)

// Rule answers any prompt whose system or user text contains Match, or
// that When accepts if set.
type Rule struct {
	Match string
	When  func(gateway.Prompt) bool
	Text  string
	Err   error
}

func (r *Rule) matches(p gateway.Prompt) bool {
	if r.When != nil {
		return r.When(p)
	}
	return strings.Contains(p.System, r.Match) || strings.Contains(p.User, r.Match)
}

// Fake answers prompts from its rules, first match wins. Unmatched prompts
// fail with ErrModelUnavailable. An expired context is ErrModelTimeout and a
// cancelled one keeps context.Canceled. Every call is recorded.
type Fake struct {
	Rules []Rule
	// Tokens reported per completion.
	InputTokens, OutputTokens int

	mu    sync.Mutex
	calls []gateway.Prompt
}

func New(rules ...Rule) *Fake {
	return &Fake{Rules: rules, InputTokens: 10, OutputTokens: 5}
}

func (f *Fake) Complete(ctx context.Context, p gateway.Prompt, _ gateway.Options) (*gateway.Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	f.mu.Unlock()

	switch err := ctx.Err(); {
	case errors.Is(err, context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: %v", gateway.ErrModelTimeout, err)
	case err != nil:
		return nil, fmt.Errorf("fake: %w", err)
	}
	for i := range f.Rules {
		r := &f.Rules[i]
		if !r.matches(p) {
			continue
		}
		if r.Err != nil {
			return nil, r.Err
		}
		return &gateway.Completion{Text: r.Text, InputTokens: f.InputTokens, OutputTokens: f.OutputTokens}, nil
	}
	return nil, fmt.Errorf("%w: no scripted answer", gateway.ErrModelUnavailable)
}

// Calls returns the prompts received so far.
func (f *Fake) Calls() []gateway.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]gateway.Prompt(nil), f.calls...)
}

// CallsMatching counts prompts containing s.
func (f *Fake) CallsMatching(s string) int {
	n := 0
	for _, p := range f.Calls() {
		if strings.Contains(p.System, s) || strings.Contains(p.User, s) {
			n++
		}
	}
	return n
}
