// Package search runs a text query against a web-search provider and hands
// back a bounded, single-use sequence of result snippets.
package search

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"github.com/signalnine/verifierbench/internal/config"
)

// ErrSearchUnavailable means the provider could not be queried. A query that
// legitimately matches nothing is not an error; it yields an empty Results.
var ErrSearchUnavailable = errors.New("search unavailable")

type Result struct {
	Title   string `json:"title" yaml:"title"`
	Link    string `json:"link" yaml:"link"`
	Snippet string `json:"snippet" yaml:"snippet"`
}

// Tool is the search capability the executor depends on.
type Tool interface {
	Search(ctx context.Context, query string, maxResults int) (*Results, error)
}

// Func adapts an ordinary function to the Tool interface.
type Func func(ctx context.Context, query string, maxResults int) (*Results, error)

func (f Func) Search(ctx context.Context, query string, maxResults int) (*Results, error) {
	return f(ctx, query, maxResults)
}

// Results is a lazy, finite sequence bounded by the requested maximum. It
// can be iterated once; later iterations yield nothing.
type Results struct {
	mu    sync.Mutex
	next  func() (Result, bool)
	limit int
	used  bool
}

func newResults(limit int, next func() (Result, bool)) *Results {
	return &Results{next: next, limit: limit}
}

// FromSlice wraps already-fetched items, keeping at most limit of them.
func FromSlice(items []Result, limit int) *Results {
	i := 0
	return newResults(limit, func() (Result, bool) {
		if i >= len(items) {
			return Result{}, false
		}
		r := items[i]
		i++
		return r, true
	})
}

// Empty returns a sequence with no items.
func Empty() *Results {
	return FromSlice(nil, 0)
}

// All yields at most limit items, once. A nil Results is empty.
func (r *Results) All() iter.Seq[Result] {
	return func(yield func(Result) bool) {
		if r == nil {
			return
		}
		r.mu.Lock()
		if r.used {
			r.mu.Unlock()
			return
		}
		r.used = true
		r.mu.Unlock()

		for n := 0; n < r.limit; n++ {
			item, ok := r.next()
			if !ok || !yield(item) {
				return
			}
		}
	}
}

// Collect drains the sequence into a slice.
func (r *Results) Collect() []Result {
	var out []Result
	for item := range r.All() {
		out = append(out, item)
	}
	return out
}

// New builds the configured provider.
func New(cfg *config.Search, apiKey string) (Tool, error) {
	switch cfg.Provider {
	case config.ProviderDuckDuckGo:
		return NewDuckDuckGo(cfg.BaseURL, cfg.QPS, cfg.Timeout()), nil
	case config.ProviderBrave:
		if apiKey == "" {
			return nil, fmt.Errorf("brave search: %s not set", cfg.APIKeyEnv)
		}
		return NewBrave(cfg.BaseURL, apiKey, cfg.QPS, cfg.Timeout()), nil
	case config.ProviderStatic:
		return LoadStatic(cfg.FixturesFile)
	default:
		return nil, fmt.Errorf("unknown search provider %q", cfg.Provider)
	}
}

func clampMax(maxResults int) int {
	if maxResults < 1 {
		return 1
	}
	return maxResults
}
