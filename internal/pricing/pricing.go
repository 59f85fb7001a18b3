// Package pricing estimates model spend from token counts.
package pricing

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Wildcard prices every model of a backend without its own entry.
const Wildcard = "*"

type ModelPricing struct {
	Input  float64 `yaml:"input"`
	Output float64 `yaml:"output"`
}

// Table maps backend name to model to per-1K-token prices.
type Table struct {
	Backends map[string]map[string]ModelPricing
}

func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading pricing file: %w", err)
	}
	var backends map[string]map[string]ModelPricing
	if err := yaml.Unmarshal(data, &backends); err != nil {
		return nil, fmt.Errorf("parsing pricing file: %w", err)
	}
	return &Table{Backends: backends}, nil
}

// Lookup finds the price for a backend's model, falling back to the
// backend's wildcard entry.
func (t *Table) Lookup(backend, model string) (ModelPricing, bool) {
	if t == nil || t.Backends == nil {
		return ModelPricing{}, false
	}
	models, ok := t.Backends[backend]
	if !ok {
		return ModelPricing{}, false
	}
	if p, ok := models[model]; ok {
		return p, true
	}
	p, ok := models[Wildcard]
	return p, ok
}

// Cost calculates total cost for a request. Prices are per 1K tokens.
func (t *Table) Cost(backend, model string, inputTokens, outputTokens int) float64 {
	p, ok := t.Lookup(backend, model)
	if !ok {
		return 0
	}
	return (float64(inputTokens)/1000.0)*p.Input + (float64(outputTokens)/1000.0)*p.Output
}
