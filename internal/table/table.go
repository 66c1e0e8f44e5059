// Package table assembles the final table model from per-job spectra. It
// runs only after the verifier reported zero failures.
package table

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hea-tools/mxstar/internal/executor"
	"github.com/hea-tools/mxstar/internal/heasoft"
	"github.com/hea-tools/mxstar/internal/rundir"
	"github.com/hea-tools/mxstar/internal/verify"
)

// BaseTables are seeded from the job-generation FITS output before any
// per-job append happens.
var BaseTables = []string{"xout_ain.fits", "xout_aout.fits", "xout_mtable.fits"}

type Builder struct {
	exec *executor.Executor
	env  heasoft.Env
}

func NewBuilder(exec *executor.Executor, env heasoft.Env) Builder {
	return Builder{exec: exec, env: env}
}

// Build copies baseFits into the three base tables under modelDir, then
// invokes xstar2table once per job in ascending key order. xstar2table
// appends into the base tables, so the order of invocations is part of the
// output. A single failed invocation is logged and skipped, there is no
// rollback of the ones before it.
func (b Builder) Build(ctx context.Context, modelDir, baseFits string, keys []string) error {
	for _, name := range BaseTables {
		if err := rundir.CopyFile(baseFits, filepath.Join(modelDir, name)); err != nil {
			return err
		}
	}

	for _, key := range keys {
		spec := filepath.Join(modelDir, key, verify.SpectrumFile)
		line := b.env.Bin("xstar2table") + " xstarspec=" + spec
		out, err := b.exec.Run(ctx, line, modelDir, os.Environ())
		if err != nil {
			slog.ErrorContext(ctx, "table build failed", "key", key, "output", out, "error", err)
			continue
		}
		slog.DebugContext(ctx, "table built", "key", key)
	}
	return nil
}
