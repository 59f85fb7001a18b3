package search

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// Fixture maps queries containing every word of Match (case-folded) to canned
// results, or to a provider failure when Error is set.
type Fixture struct {
	Match   string   `yaml:"match"`
	Results []Result `yaml:"results"`
	Error   string   `yaml:"error"`
}

// Static answers queries from fixtures. It is used for offline runs and
// reproducible benchmarks.
type Static struct {
	Fixtures []Fixture
}

func LoadStatic(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading search fixtures %s: %w", path, err)
	}
	var fixtures []Fixture
	if err := yaml.Unmarshal(data, &fixtures); err != nil {
		return nil, fmt.Errorf("parsing search fixtures %s: %w", path, err)
	}
	for i, f := range fixtures {
		if strings.TrimSpace(f.Match) == "" {
			return nil, fmt.Errorf("search fixtures %s: entry %d has no match", path, i)
		}
	}
	return &Static{Fixtures: fixtures}, nil
}

// Search returns the first fixture whose Match words all appear in the
// query. No match yields an empty sequence.
func (s *Static) Search(ctx context.Context, query string, maxResults int) (*Results, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: static: %v", ErrSearchUnavailable, err)
	}
	fold := cases.Fold()
	q := fold.String(query)
	for _, f := range s.Fixtures {
		if !containsAll(q, strings.Fields(fold.String(f.Match))) {
			continue
		}
		if f.Error != "" {
			return nil, fmt.Errorf("%w: static: %s", ErrSearchUnavailable, f.Error)
		}
		return FromSlice(f.Results, clampMax(maxResults)), nil
	}
	return Empty(), nil
}

func containsAll(s string, words []string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}
