package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Variant names one of the three agent architectures under test.
type Variant string

const (
	VariantNoVerifier   Variant = "no-verifier"
	VariantSelfVerifier Variant = "self-verifier"
	VariantVerifier     Variant = "verifier"
)

// AllVariants is the default benchmark order.
var AllVariants = []Variant{VariantNoVerifier, VariantSelfVerifier, VariantVerifier}

const (
	KindLocal  = "local"
	KindHosted = "hosted"
)

const (
	ProviderDuckDuckGo = "duckduckgo"
	ProviderBrave      = "brave"
	ProviderStatic     = "static"
)

type Config struct {
	Backends    []Backend   `yaml:"backends"`
	Variants    []Variant   `yaml:"variants"`
	Goals       []Goal      `yaml:"goals"`
	GoalsFile   string      `yaml:"goals_file"`
	Search      Search      `yaml:"search"`
	Timeouts    Timeouts    `yaml:"timeouts"`
	LocalServer LocalServer `yaml:"local_server"`
	Secrets     Secrets     `yaml:"secrets"`
	Results     Results     `yaml:"results"`
}

// Backend is one model the whole pipeline is driven by.
type Backend struct {
	Name        string  `yaml:"name"`
	Kind        string  `yaml:"kind"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

type Goal struct {
	ID   int    `yaml:"id"`
	Text string `yaml:"goal"`
}

type Search struct {
	Provider       string  `yaml:"provider"`
	MaxResults     int     `yaml:"max_results"`
	BaseURL        string  `yaml:"base_url"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	FixturesFile   string  `yaml:"fixtures_file"`
	QPS            float64 `yaml:"qps"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
}

type Timeouts struct {
	CallSeconds int `yaml:"call_seconds"`
}

// LocalServer optionally launches the local model server in a container
// before the benchmark starts. Empty Image disables it.
type LocalServer struct {
	Image     string   `yaml:"image"`
	Port      int      `yaml:"port"`
	ModelsDir string   `yaml:"models_dir"`
	Pull      []string `yaml:"pull"`
}

type Secrets struct {
	EnvFile string `yaml:"env_file"`
}

type Results struct {
	Dir    string `yaml:"dir"`
	SQLite bool   `yaml:"sqlite"`
}

// CallTimeout is the bound on a single gateway or search call.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Timeouts.CallSeconds) * time.Second
}

func (s *Search) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.GoalsFile != "" && len(cfg.Goals) == 0 {
		goals, err := LoadGoals(cfg.GoalsFile)
		if err != nil {
			return nil, err
		}
		cfg.Goals = goals
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if len(cfg.Backends) == 0 {
		return fmt.Errorf("no backends defined")
	}
	if cfg.LocalServer.Image != "" && cfg.LocalServer.Port == 0 {
		cfg.LocalServer.Port = 11434
	}
	localURL := "http://localhost:11434"
	if cfg.LocalServer.Image != "" {
		localURL = "http://localhost:" + strconv.Itoa(cfg.LocalServer.Port)
	}

	seen := make(map[string]bool)
	for i := range cfg.Backends {
		b := &cfg.Backends[i]
		if b.Name == "" {
			return fmt.Errorf("backend %d: name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("backend %q: duplicate name", b.Name)
		}
		seen[b.Name] = true
		if b.Model == "" {
			return fmt.Errorf("backend %q: model is required", b.Name)
		}
		switch b.Kind {
		case KindLocal:
			if b.BaseURL == "" {
				b.BaseURL = localURL
			}
		case KindHosted:
			if b.BaseURL == "" {
				b.BaseURL = "https://api.openai.com/v1"
			}
			if b.APIKeyEnv == "" {
				b.APIKeyEnv = "OPENAI_API_KEY"
			}
		default:
			return fmt.Errorf("backend %q: kind must be %q or %q, got %q", b.Name, KindLocal, KindHosted, b.Kind)
		}
		if b.Temperature < 0 || b.Temperature > 2 {
			return fmt.Errorf("backend %q: temperature %.2f out of range [0, 2]", b.Name, b.Temperature)
		}
		if b.MaxTokens == 0 {
			b.MaxTokens = 1024
		}
		if b.MaxTokens < 0 {
			return fmt.Errorf("backend %q: max_tokens must be positive", b.Name)
		}
	}

	if len(cfg.Variants) == 0 {
		cfg.Variants = append([]Variant(nil), AllVariants...)
	}
	for _, v := range cfg.Variants {
		if !v.Valid() {
			return fmt.Errorf("unknown variant %q", v)
		}
	}

	if len(cfg.Goals) == 0 {
		cfg.Goals = DefaultGoals()
	}
	if err := normalizeGoals(cfg.Goals); err != nil {
		return err
	}

	s := &cfg.Search
	if s.Provider == "" {
		s.Provider = ProviderDuckDuckGo
	}
	switch s.Provider {
	case ProviderDuckDuckGo:
	case ProviderBrave:
		if s.APIKeyEnv == "" {
			s.APIKeyEnv = "BRAVE_API_KEY"
		}
	case ProviderStatic:
		if s.FixturesFile == "" {
			return fmt.Errorf("search: static provider requires fixtures_file")
		}
	default:
		return fmt.Errorf("search: unknown provider %q", s.Provider)
	}
	if s.MaxResults < 1 {
		s.MaxResults = 3
	}
	if s.QPS <= 0 {
		s.QPS = 1
	}
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = 15
	}

	if cfg.Timeouts.CallSeconds <= 0 {
		cfg.Timeouts.CallSeconds = 120
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "results"
	}
	return nil
}

func (v Variant) Valid() bool {
	for _, known := range AllVariants {
		if v == known {
			return true
		}
	}
	return false
}

// Backend returns the backend with the given name, or nil.
func (c *Config) Backend(name string) *Backend {
	for i := range c.Backends {
		if c.Backends[i].Name == name {
			return &c.Backends[i]
		}
	}
	return nil
}
