package result

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// RunRecord is one (goal, variant, backend) unit. It is built by a single
// goroutine and appended once.
type RunRecord struct {
	ID           string     `json:"id"`
	RunAt        time.Time  `json:"run_at"`
	GoalID       int        `json:"goal_id"`
	Goal         string     `json:"goal"`
	Variant      string     `json:"variant"`
	Backend      string     `json:"backend"`
	Model        string     `json:"model"`
	Task         string     `json:"task"`
	Checklist    []string   `json:"checklist"`
	RawOutput    string     `json:"raw_output"`
	Verdict      string     `json:"verdict"`
	Judgments    []Judgment `json:"judgments"`
	Rationale    string     `json:"rationale"`
	Stages       []string   `json:"stages"`
	LatencyMS    int64      `json:"latency_ms"`
	InputTokens  int        `json:"input_tokens"`
	OutputTokens int        `json:"output_tokens"`
	Error        string     `json:"error,omitempty"`
	ErrorKind    string     `json:"error_kind,omitempty"`
}

type Judgment struct {
	Item      string `json:"item"`
	Satisfied bool   `json:"satisfied"`
	Reason    string `json:"reason,omitempty"`
}

// NewRecord stamps a fresh record for one unit.
func NewRecord(goalID int, goal, variant, backend, model string) *RunRecord {
	return &RunRecord{
		ID:      ulid.Make().String(),
		RunAt:   time.Now().UTC(),
		GoalID:  goalID,
		Goal:    goal,
		Variant: variant,
		Backend: backend,
		Model:   model,
	}
}

// Passed reports a PASS verdict.
func (r *RunRecord) Passed() bool {
	return r.Verdict == "PASS"
}

// RunMeta describes a whole benchmark run. It is written to meta.json in the
// run directory.
type RunMeta struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	ConfigPath string    `json:"config_path"`
	Variants   []string  `json:"variants"`
	Backends   []string  `json:"backends"`
	Goals      int       `json:"goals"`
	Search     string    `json:"search_provider"`
	MaxResults int       `json:"max_results"`
	Units      int       `json:"units"`
	Errors     int       `json:"errors"`
}
