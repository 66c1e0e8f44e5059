package mxstar_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hea-tools/mxstar/internal/executor"
	"github.com/hea-tools/mxstar/internal/heasoft"
	"github.com/hea-tools/mxstar/internal/model"
	"github.com/hea-tools/mxstar/internal/pool"
	"github.com/hea-tools/mxstar/internal/rundir"
	"github.com/hea-tools/mxstar/internal/table"
	"github.com/hea-tools/mxstar/internal/verify"
)

func TestMain(m *testing.M) {
	if _, err := exec.LookPath("sh"); err != nil {
		os.Exit(0)
	}
	os.Exit(m.Run())
}

// toolset builds a fake HEASoft installation: xstar echoes its arguments
// and PFILES, then writes the spectrum artifact unless told to skip;
// xstar2table records each invocation into calls.log.
func toolset(t *testing.T) (heasoft.Env, string) {
	t.Helper()
	root := t.TempDir()
	bin := filepath.Join(root, "bin")
	syspfiles := filepath.Join(root, "syspfiles")
	require.NoError(t, os.Mkdir(bin, 0o755))
	require.NoError(t, os.Mkdir(syspfiles, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(syspfiles, "xstar.par"), []byte("cfrac,r,a,1.0\n"), 0o644))

	callsLog := filepath.Join(root, "calls.log")
	xstar := "#!/bin/sh\n" +
		"echo \"args: $*\"\n" +
		"echo \"pfiles: $PFILES\"\n" +
		"case \"$*\" in *spectrum=no*) exit 0 ;; esac\n" +
		": > " + verify.SpectrumFile + "\n"
	xstar2table := "#!/bin/sh\necho \"$@\" >> " + callsLog + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(bin, "xstar"), []byte(xstar), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bin, "xstar2table"), []byte(xstar2table), 0o755))

	return heasoft.Env{FTools: root, Headas: root}, callsLog
}

// runAll wires the production pieces together the way cmd/mxstar does:
// allocate, materialize per worker, execute, verify, and - only on a clean
// verification - build tables.
func runAll(t *testing.T, ctx context.Context, env heasoft.Env, commands []string) (string, []executor.Result, []string) {
	t.Helper()
	work := t.TempDir()

	require.NoError(t, heasoft.CheckWritable(work))
	runDir, err := rundir.Allocate(work, "mxstar", "")
	require.NoError(t, err)

	jobs, err := model.BuildJobSet(commands)
	require.NoError(t, err)
	modelName, err := jobs.ModelName()
	require.NoError(t, err)
	modelDir, err := rundir.ModelDir(runDir, modelName)
	require.NoError(t, err)

	exe := executor.New("", env.BinDir())
	runJob := func(ctx context.Context, job model.Job) executor.Result {
		iso, err := rundir.Materialize(job, modelDir, env.SysPfile())
		if err != nil {
			now := time.Now().UTC()
			return executor.Result{Job: job, Started: now, Stopped: now, Err: err}
		}
		return exe.Execute(ctx, iso)
	}
	results := pool.RunAll(ctx, jobs, 2, runJob)

	failed := verify.Check(modelDir, jobs.Keys())
	if len(failed) == 0 {
		baseFits := filepath.Join(runDir, "xstinitable.fits")
		require.NoError(t, os.WriteFile(baseFits, []byte("SIMPLE = T"), 0o644))
		require.NoError(t, table.NewBuilder(exe, env).Build(ctx, modelDir, baseFits, jobs.Keys()))
	}
	return modelDir, results, failed
}

func TestRun_AllJobsSucceed(t *testing.T) {
	t.Parallel()
	env, callsLog := toolset(t)
	commands := []string{
		`xstar modelname="stub" spectrum=yes density=1e3`,
		`xstar modelname="stub" spectrum=yes density=1e4`,
		`xstar modelname="stub" spectrum=yes density=1e5`,
	}

	modelDir, results, failed := runAll(t, t.Context(), env, commands)

	require.Empty(t, failed)
	require.Len(t, results, 3)

	t.Run("results in key order with captured output", func(t *testing.T) {
		for i, res := range results {
			require.Equal(t, commands[i], res.Job.Command)
			require.NoError(t, res.Err)
			require.Greater(t, res.Pid, 0)
			require.NotEmpty(t, res.Lines)
			for _, line := range res.Lines {
				require.True(t, strings.HasPrefix(line, executor.OutputMarker))
			}
		}
	})

	t.Run("each job saw its private pfiles copy", func(t *testing.T) {
		for _, res := range results {
			pfiles := filepath.Join(modelDir, res.Job.Key, "pfiles")
			require.FileExists(t, filepath.Join(pfiles, "xstar.par"))
			require.Contains(t, res.Lines, executor.OutputMarker+"pfiles: "+pfiles)
		}
	})

	t.Run("aggregation ran once per job in key order", func(t *testing.T) {
		for _, name := range table.BaseTables {
			require.FileExists(t, filepath.Join(modelDir, name))
		}
		data, err := os.ReadFile(callsLog)
		require.NoError(t, err)
		calls := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, calls, 3)
		for i, key := range []string{"1", "2", "3"} {
			require.Contains(t, calls[i], filepath.Join(modelDir, key, verify.SpectrumFile))
		}
	})
}

func TestRun_OneJobFails(t *testing.T) {
	t.Parallel()
	env, callsLog := toolset(t)
	commands := []string{
		`xstar modelname="stub" spectrum=yes density=1e3`,
		`xstar modelname="stub" spectrum=no density=1e4`,
		`xstar modelname="stub" spectrum=yes density=1e5`,
	}

	modelDir, results, failed := runAll(t, t.Context(), env, commands)

	// job 2 exited zero yet produced nothing, only the artifact check sees it
	require.Len(t, results, 3)
	require.NoError(t, results[1].Err)
	require.Equal(t, []string{"2"}, failed)

	t.Run("aggregator never invoked", func(t *testing.T) {
		require.NoFileExists(t, callsLog)
		for _, name := range table.BaseTables {
			require.NoFileExists(t, filepath.Join(modelDir, name))
		}
	})

	t.Run("verification is idempotent", func(t *testing.T) {
		keys := []string{"1", "2", "3"}
		require.Equal(t, failed, verify.Check(modelDir, keys))
		require.Equal(t, failed, verify.Check(modelDir, keys))
	})
}
