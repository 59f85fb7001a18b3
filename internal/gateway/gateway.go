// Package gateway sends a single system+user prompt to a language model
// backend and returns the completion text. Two backends satisfy the same
// contract: a local Ollama-compatible server and a hosted
// OpenAI-compatible API.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/signalnine/verifierbench/internal/config"
)

var (
	// ErrModelUnavailable means the backend could not be reached or
	// answered with a server-side failure.
	ErrModelUnavailable = errors.New("model unavailable")
	// ErrModelTimeout means no response arrived within the call timeout.
	ErrModelTimeout = errors.New("model timeout")
	// ErrModelRefusal means the backend declined to answer.
	ErrModelRefusal = errors.New("model refusal")
)

type Prompt struct {
	System string
	User   string
}

type Options struct {
	ModelID     string
	Temperature float64
	MaxTokens   int
	// JSON asks the backend to constrain its output to a JSON object.
	JSON    bool
	Timeout time.Duration
}

type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Gateway is the capability every agent role is driven through. It never
// retries.
type Gateway interface {
	Complete(ctx context.Context, prompt Prompt, opts Options) (*Completion, error)
}

// New builds the client for a configured backend. The hosted key is looked
// up in secrets by the backend's api_key_env name.
func New(b *config.Backend, secrets Secrets) (Gateway, error) {
	switch b.Kind {
	case config.KindLocal:
		return NewLocalClient(b.BaseURL), nil
	case config.KindHosted:
		key := secrets.Get(b.APIKeyEnv)
		if key == "" {
			return nil, fmt.Errorf("backend %q: %s not set", b.Name, b.APIKeyEnv)
		}
		return NewHostedClient(b.BaseURL, key), nil
	default:
		return nil, fmt.Errorf("backend %q: unknown kind %q", b.Name, b.Kind)
	}
}

// OptionsFor returns the per-call options for a backend.
func OptionsFor(b *config.Backend, timeout time.Duration) Options {
	return Options{
		ModelID:     b.Model,
		Temperature: b.Temperature,
		MaxTokens:   b.MaxTokens,
		Timeout:     timeout,
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// transportError maps a failed round trip onto the gateway taxonomy. A
// cancelled caller is not a backend failure and keeps context.Canceled.
func transportError(ctx context.Context, backend string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s: call interrupted: %w", backend, context.Canceled)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrModelTimeout, backend, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", ErrModelTimeout, backend, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrModelUnavailable, backend, err)
}

// statusError maps a non-200 response onto the gateway taxonomy.
func statusError(backend string, code int, body string) error {
	switch {
	case code == http.StatusGatewayTimeout || code == http.StatusRequestTimeout:
		return fmt.Errorf("%w: %s returned %d: %s", ErrModelTimeout, backend, code, body)
	case code == http.StatusBadRequest && isPolicyBody(body):
		return fmt.Errorf("%w: %s returned %d: %s", ErrModelRefusal, backend, code, body)
	default:
		return fmt.Errorf("%w: %s returned %d: %s", ErrModelUnavailable, backend, code, body)
	}
}

func isPolicyBody(body string) bool {
	lower := strings.ToLower(body)
	for _, marker := range []string{"content_policy", "content_filter", "safety"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
