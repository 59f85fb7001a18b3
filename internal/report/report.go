// Package report summarizes a run's records per variant and backend.
package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"gopkg.in/yaml.v3"

	"github.com/signalnine/verifierbench/internal/pricing"
	"github.com/signalnine/verifierbench/internal/result"
)

const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
	FormatHTML     = "html"
	FormatXLSX     = "xlsx"
)

// Labels maps goal ID to whether the goal is actually achievable.
type Labels map[int]bool

func LoadLabels(path string) (Labels, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading labels: %w", err)
	}
	var labels Labels
	if err := yaml.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("parsing labels: %w", err)
	}
	return labels, nil
}

type Summary struct {
	Variant       string  `json:"variant"`
	Backend       string  `json:"backend"`
	Units         int     `json:"units"`
	Passed        int     `json:"passed"`
	Failed        int     `json:"failed"`
	NoVerdict     int     `json:"no_verdict"`
	Errors        int     `json:"errors"`
	PassRate      float64 `json:"pass_rate"`
	MeanLatencyMS float64 `json:"mean_latency_ms"`
	MeanTokens    float64 `json:"mean_tokens"`
	CostUSD       float64 `json:"cost_usd"`

	// Set only when labels were supplied.
	Scores *Scores `json:"scores,omitempty"`
}

// Scores treats PASS as the positive prediction and an achievable goal as
// the positive truth. Units without a verdict count as not passed.
type Scores struct {
	Labeled        int     `json:"labeled"`
	TruePositives  int     `json:"true_positives"`
	FalsePositives int     `json:"false_positives"`
	TrueNegatives  int     `json:"true_negatives"`
	FalseNegatives int     `json:"false_negatives"`
	FPRate         float64 `json:"false_positive_rate"`
	Accuracy       float64 `json:"accuracy"`
	Precision      float64 `json:"precision"`
}

type Options struct {
	Format  string
	Labels  Labels
	Pricing *pricing.Table
	// XLSXPath is where the xlsx format is written.
	XLSXPath string
}

// Generate aggregates records and writes the report.
func Generate(records []result.RunRecord, opts Options, w io.Writer) error {
	summaries := Aggregate(records, opts.Labels, opts.Pricing)

	switch opts.Format {
	case FormatMarkdown:
		return writeMarkdown(summaries, w)
	case FormatJSON:
		return writeJSON(summaries, w)
	case FormatHTML:
		return writeHTML(summaries, w)
	case FormatXLSX:
		if opts.XLSXPath == "" {
			return fmt.Errorf("xlsx format needs an output path")
		}
		if err := WriteXLSX(opts.XLSXPath, summaries, records); err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote %s\n", opts.XLSXPath)
		return nil
	case FormatTable, "":
		return writeTable(summaries, w)
	default:
		return fmt.Errorf("unknown report format %q", opts.Format)
	}
}

func Aggregate(records []result.RunRecord, labels Labels, table *pricing.Table) []Summary {
	type key struct{ variant, backend string }
	type accum struct {
		Summary
		latency float64
		tokens  float64
	}
	groups := map[key]*accum{}

	for _, r := range records {
		k := key{r.Variant, r.Backend}
		a, ok := groups[k]
		if !ok {
			a = &accum{Summary: Summary{Variant: r.Variant, Backend: r.Backend}}
			if labels != nil {
				a.Scores = &Scores{}
			}
			groups[k] = a
		}
		a.Units++
		switch r.Verdict {
		case "PASS":
			a.Passed++
		case "FAIL":
			a.Failed++
		default:
			a.NoVerdict++
		}
		if r.Error != "" {
			a.Errors++
		}
		a.latency += float64(r.LatencyMS)
		a.tokens += float64(r.InputTokens + r.OutputTokens)
		a.CostUSD += table.Cost(r.Backend, r.Model, r.InputTokens, r.OutputTokens)

		if achievable, ok := labels[r.GoalID]; ok {
			a.Scores.add(r.Passed(), achievable)
		}
	}

	summaries := make([]Summary, 0, len(groups))
	for _, a := range groups {
		n := float64(a.Units)
		a.PassRate = float64(a.Passed) / n
		a.MeanLatencyMS = a.latency / n
		a.MeanTokens = a.tokens / n
		if a.Scores != nil {
			a.Scores.finish()
		}
		summaries = append(summaries, a.Summary)
	}
	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].Backend != summaries[j].Backend {
			return summaries[i].Backend < summaries[j].Backend
		}
		return variantRank(summaries[i].Variant) < variantRank(summaries[j].Variant)
	})
	return summaries
}

func variantRank(v string) string {
	switch v {
	case "no-verifier":
		return "0"
	case "self-verifier":
		return "1"
	case "verifier":
		return "2"
	}
	return "3" + v
}

func (s *Scores) add(passed, achievable bool) {
	s.Labeled++
	switch {
	case passed && achievable:
		s.TruePositives++
	case passed && !achievable:
		s.FalsePositives++
	case !passed && achievable:
		s.FalseNegatives++
	default:
		s.TrueNegatives++
	}
}

func (s *Scores) finish() {
	s.FPRate = ratio(s.FalsePositives, s.FalsePositives+s.TrueNegatives)
	s.Accuracy = ratio(s.TruePositives+s.TrueNegatives, s.Labeled)
	s.Precision = ratio(s.TruePositives, s.TruePositives+s.FalsePositives)
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func hasScores(summaries []Summary) bool {
	for _, s := range summaries {
		if s.Scores != nil {
			return true
		}
	}
	return false
}

func writeTable(summaries []Summary, w io.Writer) error {
	scored := hasScores(summaries)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := "BACKEND\tVARIANT\tUNITS\tPASS RATE\tERRORS\tMEAN LATENCY\tMEAN TOKENS\tCOST"
	if scored {
		header += "\tFP RATE\tACCURACY\tPRECISION"
	}
	fmt.Fprintln(tw, header)
	fmt.Fprintln(tw, strings.Repeat("-", 100))
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.0f%%\t%d\t%.1fs\t%.0f\t$%.4f",
			s.Backend, s.Variant, s.Units, s.PassRate*100, s.Errors, s.MeanLatencyMS/1000, s.MeanTokens, s.CostUSD)
		if scored {
			fmt.Fprint(tw, scoreCells(s.Scores, "\t"))
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func scoreCells(sc *Scores, sep string) string {
	if sc == nil || sc.Labeled == 0 {
		return strings.Repeat(sep+"-", 3)
	}
	return fmt.Sprintf("%s%.0f%%%s%.0f%%%s%.0f%%", sep, sc.FPRate*100, sep, sc.Accuracy*100, sep, sc.Precision*100)
}

func writeMarkdown(summaries []Summary, w io.Writer) error {
	scored := hasScores(summaries)
	header := []string{"Backend", "Variant", "Units", "Pass Rate", "Errors", "Mean Latency", "Mean Tokens", "Cost"}
	if scored {
		header = append(header, "FP Rate", "Accuracy", "Precision")
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(header, " | "))
	fmt.Fprintf(w, "|%s\n", strings.Repeat("---|", len(header)))
	for _, s := range summaries {
		row := fmt.Sprintf("| %s | %s | %d | %.0f%% | %d | %.1fs | %.0f | $%.4f",
			s.Backend, s.Variant, s.Units, s.PassRate*100, s.Errors, s.MeanLatencyMS/1000, s.MeanTokens, s.CostUSD)
		if scored {
			row += scoreCells(s.Scores, " | ")
		}
		fmt.Fprintln(w, row+" |")
	}
	return nil
}

// writeHTML renders the markdown table as an HTML fragment.
func writeHTML(summaries []Summary, w io.Writer) error {
	var md bytes.Buffer
	if err := writeMarkdown(summaries, &md); err != nil {
		return err
	}
	return goldmark.New(goldmark.WithExtensions(extension.Table)).Convert(md.Bytes(), w)
}

func writeJSON(summaries []Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(summaries)
}
