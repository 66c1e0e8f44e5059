package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hea-tools/mxstar/internal/executor"
	"github.com/hea-tools/mxstar/internal/heasoft"
	"github.com/hea-tools/mxstar/internal/joblist"
	"github.com/hea-tools/mxstar/internal/log"
	"github.com/hea-tools/mxstar/internal/model"
	"github.com/hea-tools/mxstar/internal/pool"
	"github.com/hea-tools/mxstar/internal/rundir"
	"github.com/hea-tools/mxstar/internal/table"
	"github.com/hea-tools/mxstar/internal/verify"
)

const runDirPrefix = "mxstar"

func doRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, err := heasoft.Discover()
	if err != nil {
		return err
	}
	workDir, err := filepath.Abs(config.WorkDir)
	if err != nil {
		return fmt.Errorf("resolving work directory: %w", err)
	}
	if err := heasoft.CheckWritable(workDir); err != nil {
		return err
	}

	// a fresh run directory on every invocation, never reused
	runDir, err := rundir.Allocate(workDir, runDirPrefix, flagTag)
	if err != nil {
		return err
	}

	exe := executor.New(config.Shell, env.BinDir())
	commands, baseFits, err := joblist.NewSource(exe, env).Acquire(ctx, runDir, args)
	if err != nil {
		return err
	}
	jobs, err := model.BuildJobSet(commands)
	if err != nil {
		return err
	}
	modelName, err := jobs.ModelName()
	if err != nil {
		return err
	}
	modelDir, err := rundir.ModelDir(runDir, modelName)
	if err != nil {
		return err
	}

	logPath := config.LogFile
	if !filepath.IsAbs(logPath) {
		logPath = filepath.Join(modelDir, logPath)
	}
	logger, closeLog, err := log.NewRunLogger(os.Stdout, logPath, config.Verbose)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	logClosed := false
	defer func() {
		// failed runs keep the log, but not an open handle
		if !logClosed {
			_ = closeLog()
		}
	}()

	report := model.NewRunReport(modelDir)
	ctx = log.ContextAttrs(ctx, slog.String("run_id", report.ID.String()))

	slog.InfoContext(ctx, "using directory", "dir", modelDir)
	slog.InfoContext(ctx, "run started",
		"start", report.Started.Format(time.RFC3339),
		"jobs", jobs.Len(),
		"workers", workers(),
	)

	runJob := func(ctx context.Context, job model.Job) executor.Result {
		iso, err := rundir.Materialize(job, modelDir, env.SysPfile())
		if err != nil {
			now := time.Now().UTC()
			return executor.Result{Job: job, Started: now, Stopped: now, Err: err}
		}
		return exe.Execute(ctx, iso)
	}
	results := pool.RunAll(ctx, jobs, config.Workers, runJob)

	// reported in key order regardless of completion order
	for _, res := range results {
		jobCtx := log.ContextAttrs(ctx, slog.String("key", res.Job.Key))
		slog.InfoContext(jobCtx, "job finished",
			"command", res.Job.Command,
			"pid", res.Pid,
			"elapsed", res.Stopped.Sub(res.Started).String(),
		)
		for _, line := range res.Lines {
			slog.InfoContext(jobCtx, line)
		}
		if res.Err != nil {
			slog.WarnContext(jobCtx, "command failed", "error", res.Err)
		}
	}

	report.Stopped = time.Now().UTC()
	report.FailedKeys = verify.Check(modelDir, jobs.Keys())

	slog.InfoContext(ctx, "run finished",
		"end", report.Stopped.Format(time.RFC3339),
		"duration", report.Duration().String(),
	)

	if !report.Succeeded() {
		slog.ErrorContext(ctx, "jobs missing spectrum output",
			"failed", strings.Join(report.FailedKeys, ","),
		)
		return fmt.Errorf("%d of %d jobs failed: %s",
			len(report.FailedKeys), jobs.Len(), strings.Join(report.FailedKeys, ","))
	}

	if err := table.NewBuilder(exe, env).Build(ctx, modelDir, baseFits, jobs.Keys()); err != nil {
		return err
	}
	slog.InfoContext(ctx, "run succeeded", "model", modelName)

	// back to console-only before touching the log file
	slog.SetDefault(log.New(config.Verbose))
	logClosed = true
	if err := closeLog(); err != nil {
		return err
	}
	if !config.KeepLog {
		if err := os.Remove(logPath); err != nil {
			return fmt.Errorf("removing log file: %w", err)
		}
	}
	return nil
}

// doCollate is the idempotent re-entry point: it re-runs verification and
// table building over an existing model directory without executing jobs.
func doCollate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	env, err := heasoft.Discover()
	if err != nil {
		return err
	}
	modelDir, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving model directory: %w", err)
	}

	keys, err := rundir.ListJobKeys(modelDir)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("no job directories in %s", modelDir)
	}

	if failed := verify.Check(modelDir, keys); len(failed) > 0 {
		return fmt.Errorf("%d of %d jobs failed: %s",
			len(failed), len(keys), strings.Join(failed, ","))
	}

	baseFits := flagBaseFits
	if baseFits == "" {
		baseFits = filepath.Join(modelDir, "..", joblist.GeneratedFits)
	}
	exe := executor.New(config.Shell, env.BinDir())
	return table.NewBuilder(exe, env).Build(ctx, modelDir, baseFits, keys)
}

func workers() int {
	if config.Workers > 0 {
		return config.Workers
	}
	return pool.DefaultWorkers()
}
