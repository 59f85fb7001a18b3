package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/signalnine/verifierbench/internal/config"
	"github.com/signalnine/verifierbench/internal/pricing"
	"github.com/signalnine/verifierbench/internal/report"
	"github.com/signalnine/verifierbench/internal/result"
	"github.com/spf13/cobra"
)

var (
	flagFormat  string
	flagOut     string
	flagLabels  string
	flagPricing string
)

func newReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report [run-dir]",
		Short: "Generate summary from stored results",
		Long:  "Summarize a run directory (default: the latest run) per backend and variant. Rejudged records, if any, are reported as their own variants.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			var runDir string
			if len(args) > 0 {
				runDir = args[0]
			}
			resolved, err := result.ResolveRunDir(cfg.Results.Dir, runDir)
			if err != nil {
				return err
			}
			records, err := loadRecords(resolved)
			if err != nil {
				return err
			}

			opts := report.Options{Format: flagFormat, XLSXPath: flagOut}
			if opts.Format == report.FormatXLSX && opts.XLSXPath == "" {
				opts.XLSXPath = filepath.Join(resolved, "report.xlsx")
			}
			if flagLabels != "" {
				if opts.Labels, err = report.LoadLabels(flagLabels); err != nil {
					return err
				}
			}
			if flagPricing != "" {
				if opts.Pricing, err = pricing.Load(flagPricing); err != nil {
					return err
				}
			}
			return report.Generate(records, opts, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json, html, xlsx)")
	cmd.Flags().StringVar(&flagOut, "out", "", "xlsx output path (default <run-dir>/report.xlsx)")
	cmd.Flags().StringVar(&flagLabels, "labels", "", "ground-truth labels file (goal id: achievable)")
	cmd.Flags().StringVar(&flagPricing, "pricing", "", "per-backend token pricing file")
	return cmd
}

// loadRecords reads a run's records plus any rejudged ones.
func loadRecords(runDir string) ([]result.RunRecord, error) {
	records, err := result.LoadRun(runDir)
	if err != nil {
		return nil, err
	}
	rejudged, err := result.ReadCSV(filepath.Join(runDir, result.RejudgedName))
	if errors.Is(err, fs.ErrNotExist) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading rejudged records: %w", err)
	}
	return append(records, rejudged...), nil
}
