package pricing_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/signalnine/verifierbench/internal/pricing"
)

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func TestLoadPricing(t *testing.T) {
	dir := t.TempDir()
	content := `gpt4o:
  gpt-4o:
    input: 0.0025
    output: 0.01
local:
  "*":
    input: 0.0001
    output: 0.0002
`
	path := filepath.Join(dir, "pricing.yaml")
	os.WriteFile(path, []byte(content), 0o644)

	table, err := pricing.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tests := []struct {
		backend, model string
		want           float64
	}{
		{"gpt4o", "gpt-4o", 0.0075},
		{"gpt4o", "gpt-4o-mini", 0},
		{"local", "phi3:mini", 0.0002},
		{"missing", "gpt-4o", 0},
	}
	for _, tt := range tests {
		got := table.Cost(tt.backend, tt.model, 1000, 500)
		if abs(got-tt.want) > 1e-9 {
			t.Errorf("Cost(%s, %s) = %f, want %f", tt.backend, tt.model, got, tt.want)
		}
	}
}

func TestCostUnknownModel(t *testing.T) {
	table := &pricing.Table{}
	cost := table.Cost("unknown", "unknown", 1000, 500)
	if cost != 0 {
		t.Errorf("expected 0 for unknown model, got %f", cost)
	}
	var none *pricing.Table
	if cost := none.Cost("a", "b", 1, 1); cost != 0 {
		t.Errorf("nil table cost = %f, want 0", cost)
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := pricing.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
