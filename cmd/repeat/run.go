package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/deixis/repeat/internal/config"
	"github.com/deixis/repeat/internal/harness"
	"github.com/deixis/repeat/internal/metrics"
	"github.com/deixis/repeat/internal/report"
	"github.com/deixis/repeat/internal/runner"
)

// batchFlags are shared by run and sync. Only flags the user set override
// the loaded configuration.
type batchFlags struct {
	count       int
	concurrency int
	timeout     string
	failure     string
	out         string
	metricsFile string
	stripANSI   bool
}

func (f *batchFlags) register(cmd *cobra.Command, defaultOut string) {
	fl := cmd.Flags()
	fl.IntVarP(&f.count, "count", "n", config.DefaultCount, "number of invocations")
	fl.IntVar(&f.concurrency, "concurrency", 0, "maximum invocations in flight (0 starts all at once)")
	fl.StringVar(&f.timeout, "timeout", "", "per-invocation timeout (e.g. 5m)")
	fl.StringVar(&f.failure, "failure", "", "failure policy: exit1 or nonzero")
	fl.StringVarP(&f.out, "out", "o", "", "output file (default "+defaultOut+")")
	fl.StringVar(&f.metricsFile, "metrics-file", "", "write Prometheus text metrics to this file")
	fl.BoolVar(&f.stripANSI, "strip-ansi", false, "strip ANSI escape sequences from captured output")
}

// apply copies changed flags and the command after "--" onto cfg, then
// validates the result.
func (f *batchFlags) apply(cmd *cobra.Command, args []string, cfg *config.Config, kind report.Kind) error {
	fl := cmd.Flags()
	if fl.Changed("count") {
		cfg.SetCount(f.count)
	}
	if fl.Changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if fl.Changed("timeout") {
		cfg.RawTimeout = f.timeout
	}
	if fl.Changed("failure") {
		cfg.RawPolicy = f.failure
	}
	if fl.Changed("strip-ansi") {
		cfg.StripANSI = f.stripANSI
	}
	if fl.Changed("metrics-file") {
		path, err := filepath.Abs(f.metricsFile)
		if err != nil {
			return err
		}
		cfg.Output.Metrics = path
	}
	if fl.Changed("out") {
		path, err := filepath.Abs(f.out)
		if err != nil {
			return err
		}
		if kind == report.Sequential {
			cfg.Output.Log = path
		} else {
			cfg.Output.Results = path
		}
	}
	if dash := cmd.ArgsLenAtDash(); dash >= 0 && dash < len(args) {
		cfg.RawCommand = append([]string(nil), args[dash:]...)
	}
	return cfg.Validate()
}

var (
	runFlags  batchFlags
	syncFlags batchFlags
)

var runCmd = &cobra.Command{
	Use:   "run [flags] [-- command args...]",
	Short: "Run every invocation at once and overwrite the results file",
	Args:  dashArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, args, &runFlags, report.Concurrent)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync [flags] [-- command args...]",
	Short: "Run invocations one at a time and append failures to the log file",
	Args:  dashArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(cmd, args, &syncFlags, report.Sequential)
	},
}

func init() {
	runFlags.register(runCmd, config.DefaultResultsFile)
	syncFlags.register(syncCmd, config.DefaultLogFile)
	rootCmd.AddCommand(runCmd, syncCmd)
}

// dashArgs only accepts positional arguments after "--".
func dashArgs(cmd *cobra.Command, args []string) error {
	dash := cmd.ArgsLenAtDash()
	if (dash < 0 && len(args) > 0) || dash > 0 {
		return fmt.Errorf("unexpected argument %q; put the command after --", args[0])
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string, flags *batchFlags, kind report.Kind) error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}
	loaded, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config
	if err := flags.apply(cmd, args, cfg, kind); err != nil {
		return err
	}

	r := &runner.Runner{
		Workspace: loaded.Root,
		Timeout:   cfg.Timeout(),
		MaxOutput: cfg.MaxOutputBytes(),
		Env:       cfg.Env(),
	}
	h, err := harness.FromConfig(cfg, r)
	if err != nil {
		return err
	}
	rec := metrics.NewRecorder()
	h.Logger = newLogger()
	h.Metrics = rec

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var summary *harness.Summary
	if kind == report.Sequential {
		summary, err = h.Sequential(ctx, &report.FailureLog{Path: loaded.Resolve(cfg.LogFile())})
	} else {
		summary, err = h.RunAll(ctx, loaded.Resolve(cfg.ResultsFile()))
	}
	if err != nil {
		return err
	}

	batch := summary.Batch()
	store := report.NewDiskStore(storeDir)
	if err := store.Save(batch); err != nil {
		h.Logger.Warn("batch not stored", "error", err)
	} else if dir, err := store.Dir(); err == nil {
		h.Logger.Info("batch stored", "batch", batch.ID, "dir", dir)
	}
	if err := rec.WriteTextfile(loaded.Resolve(cfg.Output.Metrics)); err != nil {
		h.Logger.Warn("metrics not written", "error", err)
	}

	return printBatch(cmd, batch)
}

func printBatch(cmd *cobra.Command, batch *report.Batch) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(batch)
	}
	fmt.Fprintln(out, batch.Header())
	fmt.Fprintf(out, "Batch: %s\n\n", batch.ID)
	report.PrintTable(out, batch)
	return nil
}
