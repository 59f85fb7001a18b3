package tracing_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/verifierbench/internal/tracing"
)

func TestSetupWritesSpans(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.jsonl")
	p, err := tracing.Setup(path, "test")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}

	ctx, span := tracing.Start(context.Background(), "unit", tracing.AttrVariant.String("verifier"))
	_, child := tracing.Start(ctx, "verify")
	tracing.End(child, errors.New("model call timed out"))
	tracing.End(span, nil)

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading trace: %v", err)
	}
	out := string(data)
	for _, want := range []string{`"Name":"unit"`, `"Name":"verify"`, "model call timed out", "verifierbench.variant"} {
		if !strings.Contains(out, want) {
			t.Errorf("trace missing %s", want)
		}
	}
}
