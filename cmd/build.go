package cmd

import (
	"github.com/signalnine/verifierbench/internal/config"
	"github.com/signalnine/verifierbench/internal/gateway"
	"github.com/signalnine/verifierbench/internal/runner"
	"github.com/signalnine/verifierbench/internal/search"
)

// buildBackends binds a pipeline to each backend. Every role of a unit runs
// on the same backend.
func buildBackends(cfg *config.Config, backends []config.Backend, secrets gateway.Secrets, tool search.Tool) ([]runner.Backend, error) {
	out := make([]runner.Backend, 0, len(backends))
	for i := range backends {
		b := &backends[i]
		gw, err := gateway.New(b, secrets)
		if err != nil {
			return nil, err
		}
		out = append(out, runner.Backend{
			Name:     b.Name,
			Model:    b.Model,
			Pipeline: runner.NewPipeline(gw, gateway.OptionsFor(b, cfg.CallTimeout()), tool, cfg.Search.MaxResults),
		})
	}
	return out, nil
}

func usesLocal(backends []config.Backend) bool {
	for _, b := range backends {
		if b.Kind == config.KindLocal {
			return true
		}
	}
	return false
}

func filterBackends(backends []config.Backend, name string) []config.Backend {
	if name == "" {
		return backends
	}
	var filtered []config.Backend
	for _, b := range backends {
		if b.Name == name {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

func filterVariants(variants []config.Variant, name string) []config.Variant {
	if name == "" {
		return variants
	}
	var filtered []config.Variant
	for _, v := range variants {
		if string(v) == name {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

func filterGoals(goals []config.Goal, id int) []config.Goal {
	if id == 0 {
		return goals
	}
	var filtered []config.Goal
	for _, g := range goals {
		if g.ID == id {
			filtered = append(filtered, g)
		}
	}
	return filtered
}
