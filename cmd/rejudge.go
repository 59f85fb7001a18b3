package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/signalnine/verifierbench/internal/agent"
	"github.com/signalnine/verifierbench/internal/config"
	"github.com/signalnine/verifierbench/internal/gateway"
	"github.com/signalnine/verifierbench/internal/result"
	"github.com/signalnine/verifierbench/internal/runner"
	"github.com/spf13/cobra"
)

var (
	flagJudge         string
	flagSourceVariant string
	flagJudgeParallel int
)

func newRejudgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rejudge [run-dir]",
		Short: "Re-run the verifier over stored raw outputs",
		Long:  "Judge every stored raw output of a run directory (default: the latest run) with the decoupled verifier on the chosen backend, appending the new verdicts to rejudged.csv. The original results are not modified.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  rejudgeRun,
	}
	cmd.Flags().StringVar(&flagJudge, "backend", "", "backend that judges (required)")
	cmd.Flags().StringVar(&flagSourceVariant, "variant", "", "only rejudge records of this variant")
	cmd.Flags().IntVar(&flagJudgeParallel, "parallel", 1, "max concurrent verifier calls")
	cmd.MarkFlagRequired("backend")
	return cmd
}

func rejudgeRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := newLogger()

	b := cfg.Backend(flagJudge)
	if b == nil {
		return fmt.Errorf("unknown backend %q", flagJudge)
	}
	var runDir string
	if len(args) > 0 {
		runDir = args[0]
	}
	runDir, err = result.ResolveRunDir(cfg.Results.Dir, runDir)
	if err != nil {
		return err
	}
	records, err := result.LoadRun(runDir)
	if err != nil {
		return err
	}
	records = selectRejudgeable(records, flagSourceVariant)
	if len(records) == 0 {
		return fmt.Errorf("no records with a checklist in %s", runDir)
	}

	secrets, err := gateway.LoadSecrets(cfg.Secrets.EnvFile)
	if err != nil {
		return fmt.Errorf("loading secrets: %w", err)
	}
	gw, err := gateway.New(b, secrets)
	if err != nil {
		return err
	}
	verifier := agent.NewVerifier(gw, gateway.OptionsFor(b, cfg.CallTimeout()))

	out, err := result.OpenCSV(filepath.Join(runDir, result.RejudgedName))
	if err != nil {
		return err
	}
	defer out.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		mu         sync.Mutex
		overturned int
	)
	jobs := make([]runner.Job, len(records))
	for i := range records {
		src := &records[i]
		jobs[i] = func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, _, err := runner.Rejudge(ctx, verifier, b.Name, b.Model, src)
			if err != nil {
				logger.Warn("rejudge error", "goal_id", src.GoalID, "variant", src.Variant, "backend", src.Backend, "err", err)
			}
			mu.Lock()
			fmt.Printf("Goal %d %s/%s: %s -> %s\n", src.GoalID, src.Variant, src.Backend, verdictOrNone(src.Verdict), verdictOrNone(rec.Verdict))
			if rec.Verdict != "" && src.Verdict != "" && rec.Verdict != src.Verdict {
				overturned++
			}
			mu.Unlock()
			return out.Append(*rec)
		}
	}
	errs := runner.RunPool(ctx, flagJudgeParallel, jobs)
	for _, err := range errs {
		if !errors.Is(err, context.Canceled) {
			fmt.Printf("  ERROR: %v\n", err)
		}
	}
	fmt.Printf("\nRejudged %d records with %s, %d verdicts changed. Wrote %s\n",
		len(records), b.Name, overturned, filepath.Join(runDir, result.RejudgedName))
	return ctx.Err()
}

// selectRejudgeable keeps original records that reached a checklist.
func selectRejudgeable(records []result.RunRecord, variant string) []result.RunRecord {
	var out []result.RunRecord
	for _, r := range records {
		if len(r.Checklist) == 0 || strings.HasPrefix(r.Variant, runner.RejudgedPrefix) {
			continue
		}
		if variant != "" && r.Variant != variant {
			continue
		}
		out = append(out, r)
	}
	return out
}

func verdictOrNone(v string) string {
	if v == "" {
		return "none"
	}
	return v
}
