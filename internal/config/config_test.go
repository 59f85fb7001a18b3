package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalnine/verifierbench/internal/config"
)

func TestLoadMinimal(t *testing.T) {
	cfg, err := config.Load("../../testdata/minimal.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Backends) != 1 {
		t.Fatalf("expected 1 backend, got %d", len(cfg.Backends))
	}
	b := cfg.Backends[0]
	if b.BaseURL != "http://localhost:11434" {
		t.Errorf("expected default local base_url, got %q", b.BaseURL)
	}
	if b.MaxTokens != 1024 {
		t.Errorf("expected default max_tokens 1024, got %d", b.MaxTokens)
	}
	if len(cfg.Variants) != 3 {
		t.Errorf("expected all 3 variants by default, got %v", cfg.Variants)
	}
	if len(cfg.Goals) != 20 {
		t.Errorf("expected the 20 reference goals, got %d", len(cfg.Goals))
	}
	if cfg.Search.Provider != config.ProviderDuckDuckGo {
		t.Errorf("expected duckduckgo search by default, got %q", cfg.Search.Provider)
	}
	if cfg.Search.MaxResults != 3 {
		t.Errorf("expected max_results 3, got %d", cfg.Search.MaxResults)
	}
	if cfg.CallTimeout() != 120*time.Second {
		t.Errorf("expected 120s call timeout, got %s", cfg.CallTimeout())
	}
	if cfg.Results.Dir != "results" {
		t.Errorf("expected results dir 'results', got %q", cfg.Results.Dir)
	}
}

func TestLoadFull(t *testing.T) {
	cfg, err := config.Load("../../testdata/full.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Backends) != 2 {
		t.Fatalf("expected 2 backends, got %d", len(cfg.Backends))
	}
	hosted := cfg.Backend("gpt4o")
	if hosted == nil {
		t.Fatal("expected gpt4o backend")
	}
	if hosted.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("expected default hosted base_url, got %q", hosted.BaseURL)
	}
	if len(cfg.Goals) != 3 {
		t.Errorf("expected 3 goals from goals_file, got %d", len(cfg.Goals))
	}
	if g := cfg.Goal(1); g == nil || g.Text != "Find the current population of Tokyo." {
		t.Errorf("unexpected goal 1: %+v", g)
	}
	if cfg.Search.Provider != config.ProviderStatic || cfg.Search.MaxResults != 1 {
		t.Errorf("unexpected search config: %+v", cfg.Search)
	}
	if cfg.LocalServer.Port != 11434 {
		t.Errorf("expected default local server port, got %d", cfg.LocalServer.Port)
	}
	if !cfg.Results.SQLite {
		t.Error("expected sqlite mirror enabled")
	}
	if cfg.Secrets.EnvFile == "" {
		t.Error("expected secrets env_file to be set")
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := config.Load("nonexistent.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadInvalid(t *testing.T) {
	_, err := config.Load("../../testdata/invalid.yaml")
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no backends", "variants: [verifier]\n"},
		{"unknown kind", "backends:\n  - {name: a, kind: remote, model: m}\n"},
		{"missing model", "backends:\n  - {name: a, kind: local}\n"},
		{"duplicate backend", "backends:\n  - {name: a, kind: local, model: m}\n  - {name: a, kind: local, model: n}\n"},
		{"bad temperature", "backends:\n  - {name: a, kind: local, model: m, temperature: 3}\n"},
		{"unknown variant", "backends:\n  - {name: a, kind: local, model: m}\nvariants: [judge]\n"},
		{"unknown provider", "backends:\n  - {name: a, kind: local, model: m}\nsearch: {provider: bing}\n"},
		{"static without fixtures", "backends:\n  - {name: a, kind: local, model: m}\nsearch: {provider: static}\n"},
		{"duplicate goal id", "backends:\n  - {name: a, kind: local, model: m}\ngoals:\n  - {id: 1, goal: x}\n  - {id: 1, goal: y}\n"},
		{"empty goal", "backends:\n  - {name: a, kind: local, model: m}\ngoals:\n  - {id: 1, goal: \"  \"}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := config.Load(path); err == nil {
				t.Errorf("expected validation error for %q", tt.name)
			}
		})
	}
}

func TestHostedDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	os.WriteFile(path, []byte("backends:\n  - {name: h, kind: hosted, model: gpt-4o}\nsearch: {provider: brave}\n"), 0o644)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Backends[0].APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("expected OPENAI_API_KEY, got %q", cfg.Backends[0].APIKeyEnv)
	}
	if cfg.Search.APIKeyEnv != "BRAVE_API_KEY" {
		t.Errorf("expected BRAVE_API_KEY, got %q", cfg.Search.APIKeyEnv)
	}
}

func TestLocalServerPortSetsLocalBaseURL(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no server", "backends:\n  - {name: phi, kind: local, model: phi3}\n", "http://localhost:11434"},
		{"server default port", "backends:\n  - {name: phi, kind: local, model: phi3}\nlocal_server: {image: ollama/ollama}\n", "http://localhost:11434"},
		{"server custom port", "backends:\n  - {name: phi, kind: local, model: phi3}\nlocal_server: {image: ollama/ollama, port: 11500}\n", "http://localhost:11500"},
		{"explicit base_url wins", "backends:\n  - {name: phi, kind: local, model: phi3, base_url: \"http://gpu:11434\"}\nlocal_server: {image: ollama/ollama, port: 11500}\n", "http://gpu:11434"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "cfg.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			cfg, err := config.Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if got := cfg.Backends[0].BaseURL; got != tt.want {
				t.Errorf("base_url = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadGoals(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    int
		firstID int
	}{
		{"mappings", "../../testdata/goals.yaml", 3, 1},
		{"plain strings", "../../testdata/goals_plain.yaml", 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			goals, err := config.LoadGoals(tt.path)
			if err != nil {
				t.Fatalf("LoadGoals: %v", err)
			}
			if len(goals) != tt.want {
				t.Fatalf("got %d goals, want %d", len(goals), tt.want)
			}
			if goals[0].ID != tt.firstID {
				t.Errorf("first id: got %d, want %d", goals[0].ID, tt.firstID)
			}
		})
	}
}

func TestDefaultGoalsAreCopies(t *testing.T) {
	a := config.DefaultGoals()
	a[0].Text = "mutated"
	b := config.DefaultGoals()
	if b[0].Text == "mutated" {
		t.Error("DefaultGoals must return an independent copy")
	}
	if b[19].ID != 20 {
		t.Errorf("expected last goal id 20, got %d", b[19].ID)
	}
}
