package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/signalnine/verifierbench/internal/config"
	"github.com/signalnine/verifierbench/internal/docker"
	"github.com/signalnine/verifierbench/internal/gateway"
	"github.com/signalnine/verifierbench/internal/metrics"
	"github.com/signalnine/verifierbench/internal/report"
	"github.com/signalnine/verifierbench/internal/result"
	"github.com/signalnine/verifierbench/internal/runner"
	"github.com/signalnine/verifierbench/internal/search"
	"github.com/signalnine/verifierbench/internal/tracing"
	"github.com/spf13/cobra"
)

var (
	flagVariant     string
	flagBackend     string
	flagGoal        int
	flagParallel    int
	flagSQLite      bool
	flagMetricsAddr string
	flagTraceFile   string
)

const (
	serverReadyTimeout = 2 * time.Minute
	serverPollInterval = 2 * time.Second
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a benchmark run",
		RunE:  runBenchmark,
	}
	cmd.Flags().StringVar(&flagVariant, "variant", "", "filter to a single variant")
	cmd.Flags().StringVar(&flagBackend, "backend", "", "filter to a single backend")
	cmd.Flags().IntVar(&flagGoal, "goal", 0, "filter to a single goal id")
	cmd.Flags().IntVar(&flagParallel, "parallel", 1, "max concurrent units")
	cmd.Flags().BoolVar(&flagSQLite, "sqlite", false, "also record results in results.db")
	cmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&flagTraceFile, "trace-file", "", "write stage spans as JSON lines to this file")
	return cmd
}

func runBenchmark(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	logger := newLogger()

	variants := filterVariants(cfg.Variants, flagVariant)
	backends := filterBackends(cfg.Backends, flagBackend)
	goals := filterGoals(cfg.Goals, flagGoal)
	if len(variants) == 0 || len(backends) == 0 || len(goals) == 0 {
		return fmt.Errorf("nothing to run: %d variants, %d backends, %d goals after filtering",
			len(variants), len(backends), len(goals))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.LocalServer.Image != "" && usesLocal(backends) {
		srv, err := startLocalServer(ctx, cfg)
		if err != nil {
			return err
		}
		defer srv.Stop()
	}

	secrets, err := gateway.LoadSecrets(cfg.Secrets.EnvFile)
	if err != nil {
		return fmt.Errorf("loading secrets: %w", err)
	}
	tool, err := search.New(&cfg.Search, secrets.Get(cfg.Search.APIKeyEnv))
	if err != nil {
		return err
	}
	pipelines, err := buildBackends(cfg, backends, secrets, tool)
	if err != nil {
		return err
	}

	runDir, err := result.CreateRunDir(cfg.Results.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("Run directory: %s\n", runDir)

	meta := &result.RunMeta{
		StartedAt:  time.Now().UTC(),
		ConfigPath: cfgFile,
		Goals:      len(goals),
		Search:     cfg.Search.Provider,
		MaxResults: cfg.Search.MaxResults,
		Units:      len(goals) * len(variants) * len(backends),
	}
	for _, v := range variants {
		meta.Variants = append(meta.Variants, string(v))
	}
	for _, b := range backends {
		meta.Backends = append(meta.Backends, b.Name)
	}
	if err := result.WriteRunMeta(runDir, meta); err != nil {
		return err
	}

	log, err := openLog(runDir, flagSQLite || cfg.Results.SQLite)
	if err != nil {
		return err
	}
	defer log.Close()

	if flagMetricsAddr != "" {
		srv, err := metrics.Serve(flagMetricsAddr)
		if err != nil {
			return fmt.Errorf("serving metrics: %w", err)
		}
		logger.Info("serving metrics", "addr", srv.Addr)
		defer srv.Shutdown(context.Background())
	}
	if flagTraceFile != "" {
		tp, err := tracing.Setup(flagTraceFile, version)
		if err != nil {
			return err
		}
		defer tp.Shutdown(context.Background())
	}

	h := &runner.Harness{
		Goals:    goals,
		Variants: variants,
		Backends: pipelines,
		Log:      log,
		Parallel: flagParallel,
		Logger:   logger,
	}
	summary, runErr := h.Run(ctx)

	meta.FinishedAt = time.Now().UTC()
	meta.Errors = summary.Errors
	if err := result.WriteRunMeta(runDir, meta); err != nil {
		logger.Warn("updating run meta", "err", err)
	}
	if runErr != nil {
		fmt.Printf("  ERROR: %v\n", runErr)
	}

	records, err := result.LoadRun(runDir)
	if err != nil {
		return err
	}
	fmt.Printf("\n--- Results (%d units, %d passed, %d errors) ---\n", summary.Units, summary.Passed, summary.Errors)
	if err := report.Generate(records, report.Options{Format: report.FormatTable}, os.Stdout); err != nil {
		return err
	}
	return runErr
}

// startLocalServer launches the model server container, waits for it to
// answer and pulls the configured models.
func startLocalServer(ctx context.Context, cfg *config.Config) (*docker.Server, error) {
	ls := &cfg.LocalServer
	srv, err := docker.StartServer(ctx, &docker.ServerOpts{Image: ls.Image, Port: ls.Port, ModelsDir: ls.ModelsDir})
	if err != nil {
		return nil, fmt.Errorf("starting local model server: %w", err)
	}
	fmt.Printf("Local model server: %s (container %.12s)\n", srv.URL, srv.ID)

	local := gateway.NewLocalClient(srv.URL)
	if err := docker.WaitReady(ctx, local.Ping, serverReadyTimeout, serverPollInterval); err != nil {
		logs := srv.Logs(context.Background(), 20)
		srv.Stop()
		return nil, fmt.Errorf("%w\n%s", err, logs)
	}
	for _, model := range ls.Pull {
		fmt.Printf("Pulling %s...\n", model)
		if err := local.Pull(ctx, model); err != nil {
			srv.Stop()
			return nil, fmt.Errorf("pulling %s: %w", model, err)
		}
	}
	return srv, nil
}

func openLog(runDir string, withSQLite bool) (result.Log, error) {
	csvLog, err := result.OpenCSV(filepath.Join(runDir, result.CSVName))
	if err != nil {
		return nil, err
	}
	if !withSQLite {
		return csvLog, nil
	}
	db, err := result.OpenSQLite(filepath.Join(runDir, result.SQLiteName))
	if err != nil {
		csvLog.Close()
		return nil, err
	}
	return result.MultiLog{csvLog, db}, nil
}
