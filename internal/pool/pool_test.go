package pool_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hea-tools/mxstar/internal/executor"
	"github.com/hea-tools/mxstar/internal/model"
	"github.com/hea-tools/mxstar/internal/pool"
	"github.com/stretchr/testify/require"
)

func TestDefaultWorkers(t *testing.T) {
	t.Parallel()
	require.GreaterOrEqual(t, pool.DefaultWorkers(), 1)
}

func TestRunAll_KeyOrder(t *testing.T) {
	t.Parallel()
	jobs, err := model.BuildJobSet([]string{"a", "b", "c"})
	require.NoError(t, err)

	// later keys finish first, result order must not care
	run := func(ctx context.Context, job model.Job) executor.Result {
		switch job.Key {
		case "1":
			time.Sleep(30 * time.Millisecond)
		case "2":
			time.Sleep(15 * time.Millisecond)
		}
		return executor.Result{Job: job}
	}

	results := pool.RunAll(t.Context(), jobs, 3, run)
	require.Len(t, results, 3)
	require.Equal(t, "1", results[0].Job.Key)
	require.Equal(t, "2", results[1].Job.Key)
	require.Equal(t, "3", results[2].Job.Key)
}

func TestRunAll_BoundedConcurrency(t *testing.T) {
	t.Parallel()
	commands := make([]string, 9)
	for i := range commands {
		commands[i] = "job"
	}
	jobs, err := model.BuildJobSet(commands)
	require.NoError(t, err)

	var active, peak atomic.Int32
	run := func(ctx context.Context, job model.Job) executor.Result {
		n := active.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		active.Add(-1)
		return executor.Result{Job: job}
	}

	results := pool.RunAll(t.Context(), jobs, 2, run)
	require.Len(t, results, 9)
	require.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRunAll_FailureDoesNotCancelSiblings(t *testing.T) {
	t.Parallel()
	jobs, err := model.BuildJobSet([]string{"a", "b", "c", "d"})
	require.NoError(t, err)

	var executed atomic.Int32
	run := func(ctx context.Context, job model.Job) executor.Result {
		executed.Add(1)
		res := executor.Result{Job: job}
		if job.Key == "2" {
			res.Err = errors.New("exit status 1")
		}
		return res
	}

	results := pool.RunAll(t.Context(), jobs, 2, run)
	require.Len(t, results, 4)
	require.EqualValues(t, 4, executed.Load())
	require.NoError(t, results[0].Err)
	require.Error(t, results[1].Err)
	require.NoError(t, results[2].Err)
	require.NoError(t, results[3].Err)
}

func TestRunAll_ZeroWorkersMeansDefault(t *testing.T) {
	t.Parallel()
	jobs, err := model.BuildJobSet([]string{"a"})
	require.NoError(t, err)

	results := pool.RunAll(t.Context(), jobs, 0, func(ctx context.Context, job model.Job) executor.Result {
		return executor.Result{Job: job}
	})
	require.Len(t, results, 1)
}
